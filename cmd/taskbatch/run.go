package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"os/signal"
	"slices"
	"syscall"
	"time"

	taskbatch "github.com/Swind/go-task-batch"
	"github.com/Swind/go-task-batch/core"
	"github.com/Swind/go-task-batch/internal/config"
	"github.com/Swind/go-task-batch/internal/logging"
	promexporter "github.com/Swind/go-task-batch/observability/prometheus"
	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"
)

// workload describes the synthetic tasks of one run.
type workload struct {
	Tasks   int
	Latency time.Duration
	Jitter  bool
	Linger  time.Duration
}

// summary is the outcome of one run.
type summary struct {
	Coordinator string
	Mode        core.Mode
	Tasks       int
	Results     int
	Chunks      int
	Ordered     bool
	Elapsed     time.Duration
	Faults      int
	Late        int64
	Cause       error
}

func newRunCmd(v *viper.Viper) *cobra.Command {
	var load workload

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one synthetic batch and print a summary",
		Example: `  taskbatch run --tasks 65 --mode pool
  taskbatch run --tasks 10 --latency 20ms --jitter --timeout 1s
  TASKBATCH_BATCH_CHUNK_SIZE=10 taskbatch run --mode pool --metrics-addr :9090 --linger 30s`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadWith(v, v.GetString("config"))
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			sum, err := runBatch(ctx, cfg, load)
			if err != nil {
				return err
			}
			printSummary(cmd.OutOrStdout(), sum)
			return nil
		},
	}

	flags := cmd.Flags()
	flags.IntVar(&load.Tasks, "tasks", 10, "number of synthetic tasks")
	flags.DurationVar(&load.Latency, "latency", 0, "completion latency of every task")
	flags.BoolVar(&load.Jitter, "jitter", false, "randomize each latency within [0, 2*latency)")
	flags.DurationVar(&load.Linger, "linger", 0, "keep serving metrics this long after the batch")

	flags.String("mode", "", "execution mode: queue or pool")
	flags.Int("chunk-size", 0, "pool-mode concurrency bound")
	flags.Duration("timeout", 0, "force the batch terminal after this long")
	flags.Int("workers", 0, "host thread pool workers")
	flags.String("metrics-addr", "", "serve Prometheus metrics on this address")
	flags.String("log-level", "", "debug, info, warn or error")
	flags.String("log-file", "", "append JSON logs to this file instead of stderr")

	for key, flag := range map[string]string{
		"batch.mode":       "mode",
		"batch.chunk_size": "chunk-size",
		"batch.timeout":    "timeout",
		"pool.workers":     "workers",
		"metrics.addr":     "metrics-addr",
		"log.level":        "log-level",
		"log.file":         "log-file",
	} {
		_ = v.BindPFlag(key, flags.Lookup(flag))
	}

	return cmd
}

func runBatch(ctx context.Context, cfg *config.Config, load workload) (summary, error) {
	sink, err := logging.New(cfg.Log.File, cfg.Log.Level)
	if err != nil {
		return summary{}, err
	}
	defer sink.Close()
	log := sink.Core("taskbatch")

	registry := prom.NewRegistry()
	exporter, err := promexporter.NewMetricsExporter(cfg.Metrics.Namespace, registry, promexporter.ExporterOptions{})
	if err != nil {
		return summary{}, fmt.Errorf("failed to create metrics exporter: %w", err)
	}
	poller, err := promexporter.NewSnapshotPoller(registry, time.Second)
	if err != nil {
		return summary{}, fmt.Errorf("failed to create snapshot poller: %w", err)
	}

	pool := taskbatch.NewGoroutineThreadPoolWithConfig("taskbatch", cfg.Pool.Workers, &core.TaskSchedulerConfig{
		Metrics: exporter,
	})
	pool.Start(ctx)
	defer pool.Stop()

	coreCfg, err := cfg.CoreConfig(pool, sink.Core("coordinator"), exporter)
	if err != nil {
		return summary{}, err
	}
	c := core.NewCoordinator[int](coreCfg)
	for i := range load.Tasks {
		c.AddTask(core.NamedTask(fmt.Sprintf("synthetic-%d", i), syntheticWork(i, load)))
	}

	poller.AddCoordinator(coreCfg.Name, c)
	poller.AddPool(pool.ID(), pool)
	poller.Start(ctx)
	defer poller.Stop()

	var server *http.Server
	if cfg.Metrics.Addr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
		server = &http.Server{Addr: cfg.Metrics.Addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	}

	var sum summary
	g, gctx := errgroup.WithContext(ctx)
	if server != nil {
		g.Go(func() error {
			log.Info("serving metrics", core.F("addr", server.Addr))
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
	}
	g.Go(func() error {
		start := time.Now()
		c.Run(nil)

		results, err := c.Wait(gctx)
		if gctx.Err() != nil && !c.IsFinished() {
			c.Quit(nil)
			results, err = c.Wait(context.Background())
		}

		stats := c.Stats()
		sum = summary{
			Mode:        c.Mode(),
			Tasks:       c.Len(),
			Results:     len(results),
			Chunks:      stats.Chunks,
			Ordered:     ordered(results, c.Mode(), coreCfg.ChunkSize),
			Elapsed:     time.Since(start),
			Faults:      len(c.Faults()),
			Late:        stats.LateCallbacks,
			Cause:       terminalCause(err),
			Coordinator: c.ID(),
		}

		if server != nil {
			if load.Linger > 0 {
				select {
				case <-time.After(load.Linger):
				case <-gctx.Done():
				}
			}
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return server.Shutdown(shutdownCtx)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return sum, err
	}
	return sum, nil
}

// syntheticWork completes with index after the configured latency.
func syntheticWork(index int, load workload) core.WorkFunc[int] {
	return func(done core.Done[int]) {
		d := load.Latency
		if load.Jitter && d > 0 {
			d = rand.N(2 * d)
		}
		if d <= 0 {
			done(index)
			return
		}
		time.AfterFunc(d, func() { done(index) })
	}
}

// ordered reports whether results honor the ordering guarantee of mode:
// registry order for queue mode, chunk grouping for pool mode.
func ordered(results []int, mode core.Mode, chunk int) bool {
	if mode == core.ModeQueue {
		return slices.IsSorted(results)
	}
	for i, v := range results {
		lo := (i / chunk) * chunk
		if v < lo || v >= lo+chunk {
			return false
		}
	}
	return true
}

func terminalCause(err error) error {
	switch {
	case errors.Is(err, core.ErrTimeout):
		return core.ErrTimeout
	case errors.Is(err, core.ErrQuit):
		return core.ErrQuit
	default:
		return nil
	}
}

func printSummary(w io.Writer, s summary) {
	fmt.Fprintf(w, "coordinator: %s\n", s.Coordinator)
	fmt.Fprintf(w, "mode: %s\n", s.Mode)
	fmt.Fprintf(w, "tasks: %d\n", s.Tasks)
	fmt.Fprintf(w, "results: %d\n", s.Results)
	fmt.Fprintf(w, "chunks: %d\n", s.Chunks)
	fmt.Fprintf(w, "ordered: %t\n", s.Ordered)
	fmt.Fprintf(w, "faults: %d\n", s.Faults)
	fmt.Fprintf(w, "late callbacks: %d\n", s.Late)
	if s.Cause != nil {
		fmt.Fprintf(w, "terminated: %v\n", s.Cause)
	} else {
		fmt.Fprintf(w, "terminated: completed\n")
	}
	fmt.Fprintf(w, "elapsed: %s\n", s.Elapsed.Round(time.Microsecond))
}
