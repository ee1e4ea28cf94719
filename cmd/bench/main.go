// Command bench ramps concurrency against a running hedgeproxy
// instance and prints per-level latency percentiles, in place of the
// matplotlib scatter plot in original_source/tools/benchmark.py (no
// plotting library is available in this stack, so the ramp is
// reported as a text table instead).
package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/aponysus/hedgeproxy/internal/hedge"
)

func main() {
	var requests int

	root := &cobra.Command{
		Use:   "bench <url>",
		Short: "Ramp concurrency against a hedgeproxy endpoint and report latency percentiles",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), args[0], requests)
		},
	}
	root.Flags().IntVar(&requests, "req", 500, "request budget per concurrency level: level n sends about req/n requests in batches of n, for n = 1..req/10")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, url string, requests int) error {
	client := &http.Client{}
	totalSent := 0

	totalStart := time.Now()
	fmt.Printf("%-12s %-10s %-10s %-10s %-10s\n", "concurrency", "count", "p50", "p95", "p99")

	for n := 1; n <= requests/10; n++ {
		fmt.Fprintf(os.Stderr, "current concurrency: %d...\n", n)

		tracker := hedge.NewRingBufferTracker(requests)
		levelStart := time.Now()
		for sent := 0; sent < requests/n; sent += n {
			totalSent += n
			var wg sync.WaitGroup
			wg.Add(n)
			for i := 0; i < n; i++ {
				go func() {
					defer wg.Done()
					start := time.Now()
					if err := fetchOnce(ctx, client, url); err == nil {
						tracker.Observe(time.Since(start))
					}
				}()
			}
			wg.Wait()
		}

		snap := tracker.Snapshot()
		fmt.Printf("%-12d %-10d %-10s %-10s %-10s\n", n, snap.Count, snap.P50, snap.P95, snap.P99)
		fmt.Fprintf(os.Stderr, "\t...%s since level start\n", time.Since(levelStart))
	}

	fmt.Printf("total time for %d requests: %s\n", totalSent, time.Since(totalStart))
	return nil
}

func fetchOnce(ctx context.Context, client *http.Client, url string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, err = io.Copy(io.Discard, resp.Body)
	return err
}
