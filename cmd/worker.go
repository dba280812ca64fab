// Package cmd provides CLI commands for the dicta tool.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/otherjamesbrown/dicta-cli/pkg/db"
	"github.com/otherjamesbrown/dicta-cli/pkg/workers"
)

// Worker command flags.
var (
	workerCount       int
	workerMetricsAddr string
)

// WorkerCommandDeps holds the dependencies for the worker command.
type WorkerCommandDeps struct {
	// Start builds and starts the worker pool, returning the pool and a
	// shutdown function. Injectable for tests.
	Start func(ctx context.Context, count int, reg *prometheus.Registry) (*workers.Pool, func(), error)

	// Output receives status lines, normally stdout.
	Output io.Writer
}

// DefaultWorkerDeps returns the default dependencies for production use.
func DefaultWorkerDeps() *WorkerCommandDeps {
	return &WorkerCommandDeps{
		Output: os.Stdout,
		Start: func(ctx context.Context, count int, reg *prometheus.Registry) (*workers.Pool, func(), error) {
			rt, err := newRuntime(ctx, "dicta-worker")
			if err != nil {
				return nil, nil, err
			}

			p, err := newPipeline(rt)
			if err != nil {
				rt.Close()
				return nil, nil, err
			}

			poolCfg := rt.Config.Worker
			if count > 0 {
				poolCfg.Count = count
			}

			reg.MustRegister(db.NewPoolStatsCollector(rt.Pool, "dicta", "dicta-worker"))

			pool := workers.NewPool(
				poolCfg,
				newProcessQueue(rt),
				p.Process,
				workers.NewMetrics(reg),
				rt.Logger,
			)
			pool.Start(ctx)
			return pool, func() {
				pool.Stop()
				rt.Close()
			}, nil
		},
	}
}

// NewWorkerCommand creates the worker command.
func NewWorkerCommand(deps *WorkerCommandDeps) *cobra.Command {
	if deps == nil {
		deps = DefaultWorkerDeps()
	}

	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Run background workers that process queued meetings",
		Long: `Run the background worker pool. Workers drain the Redis processing
queue and run the full pipeline (transcribe, attribute, summarize, index,
finalize) for each queued meeting. Stale in-flight messages are recovered
periodically.

Prometheus metrics are served on --metrics-addr at /metrics.

Examples:
  dicta worker
  dicta worker --workers 4
  dicta worker --metrics-addr :9102`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWorker(cmd.Context(), deps)
		},
	}

	cmd.Flags().IntVar(&workerCount, "workers", 0, "number of workers (default from config)")
	cmd.Flags().StringVar(&workerMetricsAddr, "metrics-addr", ":9102", "address for the Prometheus metrics endpoint")

	return cmd
}

func runWorker(ctx context.Context, deps *WorkerCommandDeps) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())

	pool, shutdown, err := deps.Start(ctx, workerCount, reg)
	if err != nil {
		return err
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: workerMetricsAddr, Handler: mux}

	httpErr := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			httpErr <- err
		}
	}()

	fmt.Fprintf(deps.Output, "Workers running; metrics on %s/metrics. Ctrl-C to stop.\n", workerMetricsAddr)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case <-ctx.Done():
	case <-sigCh:
	case err := <-httpErr:
		shutdown()
		return fmt.Errorf("metrics server: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	shutdown()

	processed, failed := pool.Stats()
	fmt.Fprintf(deps.Output, "Stopped. Processed %d meetings (%d failed).\n", processed, failed)
	return nil
}
