// Command hedgeproxy runs the hedged-request HTTP front-end described
// in spec.md: it fronts a flaky upstream JSON service, hedging up to
// three staggered attempts per client request.
package main

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/aponysus/hedgeproxy/internal/admission"
	"github.com/aponysus/hedgeproxy/internal/config"
	"github.com/aponysus/hedgeproxy/internal/fetch"
	"github.com/aponysus/hedgeproxy/internal/hedge"
	"github.com/aponysus/hedgeproxy/internal/httpapi"
	"github.com/aponysus/hedgeproxy/internal/logging"
	"github.com/aponysus/hedgeproxy/internal/observe"
	"github.com/aponysus/hedgeproxy/internal/observe/otelobs"
	"github.com/aponysus/hedgeproxy/internal/observe/prometheusobs"
	"github.com/aponysus/hedgeproxy/internal/policykey"
)

func main() {
	v := viper.New()
	root := &cobra.Command{
		Use:   "hedgeproxy <remote>",
		Short: "Hedged HTTP front-end for a flaky upstream JSON service",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), v, args)
		},
	}
	config.BindFlags(root, v)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, v *viper.Viper, args []string) error {
	cfg, err := config.Resolve(v, args)
	if err != nil {
		return err
	}

	logger, err := logging.New(logging.DefaultPath)
	if err != nil {
		return fmt.Errorf("logging: %w", err)
	}
	defer logger.Sync()

	tracerProvider, err := newTracerProvider(ctx)
	if err != nil {
		return fmt.Errorf("tracing: %w", err)
	}
	defer tracerProvider.Shutdown(ctx)
	otel.SetTracerProvider(tracerProvider)

	promObserver := prometheusobs.New(nil)
	otelObserver := otelobs.New(otel.Tracer("hedgeproxy"))
	observer := observe.MultiObserver{Observers: []observe.Observer{promObserver, otelObserver}}

	keyHost := cfg.RemoteURL
	if u, err := url.Parse(cfg.RemoteURL); err == nil && u.Host != "" {
		keyHost = u.Host
	}
	key := policykey.ForUpstream(keyHost)
	fetcher := fetch.New(fetch.NewStdClient(nil), logger)
	coordinator := hedge.New(fetcher)
	coordinator.PerAttemptTimeout = cfg.ReqTimeout
	coordinator.Observer = observer

	server := &httpapi.Server{
		UpstreamURL: cfg.RemoteURL,
		Gate:        admission.New(cfg.ReqLimit),
		Coordinator: coordinator,
		Observer:    observer,
		Key:         key,
		Logger:      logger,
	}

	mux := server.NewRouter()
	mux.Handle("/metrics", promhttp.Handler())

	addr := fmt.Sprintf(":%d", cfg.Port)
	httpServer := &http.Server{Addr: addr, Handler: mux}

	logger.Sugar().Infof("hedgeproxy listening on %s, upstream=%s", addr, cfg.RemoteURL)

	errCh := make(chan error, 1)
	go func() { errCh <- httpServer.ListenAndServe() }()

	stop, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
	case <-stop.Done():
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		return httpServer.Shutdown(shutdownCtx)
	}
	return nil
}

func newTracerProvider(ctx context.Context) (*sdktrace.TracerProvider, error) {
	exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, err
	}

	res, err := resource.New(ctx, resource.WithAttributes())
	if err != nil {
		return nil, err
	}

	return sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	), nil
}
