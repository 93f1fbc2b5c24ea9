package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/tdxstock/ingestd/config"
	"github.com/tdxstock/ingestd/internal/adapters/reaper"
	"github.com/tdxstock/ingestd/internal/adapters/schedrunner"
	"github.com/tdxstock/ingestd/internal/observability/statsd"
)

// SchedulerRunnerConfig contains configuration for the scheduler loops.
type SchedulerRunnerConfig struct {
	Services ServiceContainer
	Logger   *slog.Logger
	Config   config.SchedulerConfig
}

// RunScheduler starts the scheduling loops and blocks until the context is
// cancelled.
func RunScheduler(ctx context.Context, cfg SchedulerRunnerConfig) error {
	runner, err := schedrunner.NewRunner(schedrunner.RunnerOptions{
		Reconciler:      cfg.Services.Reconciler,
		Coordinator:     cfg.Services.Coordinator,
		TickInterval:    cfg.Config.TickInterval,
		RefreshInterval: cfg.Config.RefreshInterval,
		ShutdownWait:    cfg.Config.ShutdownWait,
		Logger:          cfg.Logger,
		Metrics:         cfg.Services.Observability.MetricsSink,
	})
	if err != nil {
		return fmt.Errorf("create scheduler runner: %w", err)
	}

	return runner.Run(ctx)
}

// ReaperRunnerConfig contains configuration for the reaper loop.
type ReaperRunnerConfig struct {
	DB      *sql.DB
	Logger  *slog.Logger
	Config  config.ReaperConfig
	Metrics statsd.Sink
}

// RunReaper starts the reaper loop and blocks until the context is cancelled.
func RunReaper(ctx context.Context, cfg ReaperRunnerConfig) error {
	runner, err := reaper.NewRunner(reaper.RunnerOptions{
		DB:      cfg.DB,
		Config:  cfg.Config,
		Logger:  cfg.Logger,
		Metrics: cfg.Metrics,
	})
	if err != nil {
		return fmt.Errorf("create reaper runner: %w", err)
	}

	return runner.Run(ctx)
}
