// Package schedrunner drives the scheduling loops: the fast trigger tick
// and the slower schedule refresh.
package schedrunner

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/tdxstock/ingestd/internal/data"
	"github.com/tdxstock/ingestd/internal/observability/metrics"
	"github.com/tdxstock/ingestd/internal/observability/statsd"
)

const (
	defaultTickInterval    = 1 * time.Second
	defaultRefreshInterval = 60 * time.Second
	defaultShutdownWait    = 15 * time.Second
)

// ScheduleReconciler is the reconciler surface the runner drives.
type ScheduleReconciler interface {
	Refresh(ctx context.Context) error
	Tick(ctx context.Context, now time.Time) (int, error)
}

// RunCoordinator is the coordinator lifecycle the runner owns while its
// loop is alive.
type RunCoordinator interface {
	Start(ctx context.Context)
	Shutdown(ctx context.Context) error
}

// Runner owns the scheduler loop: it starts the coordinator pool, performs
// an initial schedule refresh, then ticks triggers and re-refreshes on their
// intervals until the context is cancelled.
type Runner struct {
	reconciler      ScheduleReconciler
	coordinator     RunCoordinator
	tickInterval    time.Duration
	refreshInterval time.Duration
	shutdownWait    time.Duration
	timeProvider    data.TimeProvider
	logger          *slog.Logger
	metrics         statsd.Sink
}

// RunnerOptions holds the dependencies for creating a Runner.
type RunnerOptions struct {
	Reconciler  ScheduleReconciler
	Coordinator RunCoordinator

	TickInterval    time.Duration // defaults to 1s
	RefreshInterval time.Duration // defaults to 60s
	ShutdownWait    time.Duration // defaults to 15s
	TimeProvider    data.TimeProvider
	Logger          *slog.Logger
	Metrics         statsd.Sink
}

// NewRunner creates a new scheduler runner with the given options.
func NewRunner(opts RunnerOptions) (*Runner, error) {
	if opts.Reconciler == nil {
		return nil, errors.New("schedule reconciler is required")
	}
	if opts.Coordinator == nil {
		return nil, errors.New("run coordinator is required")
	}
	if opts.TickInterval <= 0 {
		opts.TickInterval = defaultTickInterval
	}
	if opts.RefreshInterval <= 0 {
		opts.RefreshInterval = defaultRefreshInterval
	}
	if opts.ShutdownWait <= 0 {
		opts.ShutdownWait = defaultShutdownWait
	}
	if opts.TimeProvider == nil {
		opts.TimeProvider = &data.RealTimeProvider{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	return &Runner{
		reconciler:      opts.Reconciler,
		coordinator:     opts.Coordinator,
		tickInterval:    opts.TickInterval,
		refreshInterval: opts.RefreshInterval,
		shutdownWait:    opts.ShutdownWait,
		timeProvider:    opts.TimeProvider,
		logger:          opts.Logger,
		metrics:         opts.Metrics,
	}, nil
}

// Run starts the coordinator pool and the scheduling loops, and blocks
// until the context is cancelled. Tick and refresh errors are logged and
// the loop keeps going; a scheduler that dies on a transient store error
// strands every schedule.
func (r *Runner) Run(ctx context.Context) error {
	r.logger.InfoContext(ctx, "starting scheduler runner",
		"tick_interval", r.tickInterval, "refresh_interval", r.refreshInterval)

	r.coordinator.Start(ctx)

	// Initial refresh so triggers exist before the first tick.
	if err := r.reconciler.Refresh(ctx); err != nil {
		r.logger.ErrorContext(ctx, "initial schedule refresh failed", "error", err)
	}

	tick := time.NewTicker(r.tickInterval)
	defer tick.Stop()
	refresh := time.NewTicker(r.refreshInterval)
	defer refresh.Stop()

	for {
		select {
		case <-ctx.Done():
			return r.stop(ctx)

		case <-tick.C:
			r.runTick(ctx)

		case <-refresh.C:
			if err := r.reconciler.Refresh(ctx); err != nil {
				r.logger.ErrorContext(ctx, "schedule refresh failed", "error", err)
			}
		}
	}
}

func (r *Runner) runTick(ctx context.Context) {
	start := time.Now()
	fired, err := r.reconciler.Tick(ctx, r.timeProvider.Now())
	elapsed := time.Since(start)

	metrics.EmitSchedulerTick(r.metrics, metrics.TickMetric{
		Fired:    fired,
		Duration: elapsed,
		Err:      err,
	})

	if err != nil {
		r.logger.ErrorContext(ctx, "scheduler tick failed", "error", err)
		return
	}
	if fired > 0 {
		r.logger.InfoContext(ctx, "scheduler fired triggers", "count", fired)
	}
}

// stop drains the coordinator with a bounded wait so in-flight runs can
// record terminal state.
func (r *Runner) stop(ctx context.Context) error {
	r.logger.Info("scheduler runner stopping", "reason", ctx.Err())

	shutdownCtx, cancel := context.WithTimeout(context.Background(), r.shutdownWait)
	defer cancel()
	if err := r.coordinator.Shutdown(shutdownCtx); err != nil {
		r.logger.Error("coordinator shutdown incomplete", "error", err)
	}

	if errors.Is(ctx.Err(), context.Canceled) {
		return nil
	}
	return ctx.Err()
}
