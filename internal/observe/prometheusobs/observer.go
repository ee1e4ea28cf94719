// Package prometheusobs reports hedge-coordinator lifecycle events as
// Prometheus metrics. Adapted from the teacher library's
// examples/prometheus/observer.go, narrowed to the events a hedge
// coordinator produces (races and attempts, not retries/backoff).
package prometheusobs

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/aponysus/hedgeproxy/internal/observe"
	"github.com/aponysus/hedgeproxy/internal/policykey"
)

// Observer records race and attempt metrics into a Prometheus
// registry.
type Observer struct {
	observe.BaseObserver

	races          *prometheus.CounterVec
	raceLatency    *prometheus.HistogramVec
	attempts       *prometheus.CounterVec
	attemptLatency *prometheus.HistogramVec
	admission      *prometheus.CounterVec
}

// New registers the hedgeproxy metric family on reg (or the default
// registerer, when reg is nil) and returns an Observer.
func New(reg prometheus.Registerer) *Observer {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	o := &Observer{
		races: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "hedgeproxy_races_total", Help: "Total hedged races, by result."},
			[]string{"namespace", "name", "result"},
		),
		raceLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{Name: "hedgeproxy_race_latency_seconds", Help: "End-to-end latency per race.", Buckets: prometheus.DefBuckets},
			[]string{"namespace", "name", "result"},
		),
		attempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "hedgeproxy_attempts_total", Help: "Total fetcher attempts, by outcome."},
			[]string{"namespace", "name", "outcome", "hedge"},
		),
		attemptLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{Name: "hedgeproxy_attempt_latency_seconds", Help: "Latency per fetcher attempt.", Buckets: prometheus.DefBuckets},
			[]string{"namespace", "name", "hedge"},
		),
		admission: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "hedgeproxy_admission_decisions_total", Help: "Admission gate allow/deny decisions."},
			[]string{"namespace", "name", "allowed"},
		),
	}

	reg.MustRegister(o.races, o.raceLatency, o.attempts, o.attemptLatency, o.admission)
	return o
}

func (o *Observer) OnAttempt(_ context.Context, key policykey.Key, rec observe.AttemptRecord) {
	hedge := boolLabel(rec.IsHedge)
	outcome := rec.Outcome.Kind.String()
	o.attempts.WithLabelValues(key.Namespace, key.Name, outcome, hedge).Inc()
	if !rec.StartTime.IsZero() && !rec.EndTime.IsZero() {
		o.attemptLatency.WithLabelValues(key.Namespace, key.Name, hedge).Observe(rec.EndTime.Sub(rec.StartTime).Seconds())
	}
}

func (o *Observer) OnBudgetDecision(_ context.Context, ev observe.BudgetDecisionEvent) {
	o.admission.WithLabelValues(ev.Key.Namespace, ev.Key.Name, boolLabel(ev.Allowed)).Inc()
}

func (o *Observer) OnRaceEnd(_ context.Context, key policykey.Key, tl observe.Timeline) {
	result := string(tl.Result)
	o.races.WithLabelValues(key.Namespace, key.Name, result).Inc()
	if !tl.Start.IsZero() && !tl.End.IsZero() {
		o.raceLatency.WithLabelValues(key.Namespace, key.Name, result).Observe(tl.End.Sub(tl.Start).Seconds())
	}
}

func boolLabel(v bool) string {
	if v {
		return "true"
	}
	return "false"
}
