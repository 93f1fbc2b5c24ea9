package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ServiceMode represents the available service modes.
type ServiceMode string

const (
	// ServiceModeHTTP runs the HTTP server.
	ServiceModeHTTP ServiceMode = "http"
	// ServiceModeScheduler runs the schedule reconciler and run coordinator.
	ServiceModeScheduler ServiceMode = "scheduler"
	// ServiceModeReaper runs the stale-run reaper loop.
	ServiceModeReaper ServiceMode = "reaper"
)

// ValidServiceModes returns all valid service mode names.
func ValidServiceModes() []ServiceMode {
	return []ServiceMode{
		ServiceModeHTTP,
		ServiceModeScheduler,
		ServiceModeReaper,
	}
}

// ParseServices parses a comma-delimited string of service names and returns the enabled services.
// It validates that all service names are valid and returns an error if any are invalid.
func ParseServices(servicesStr string) (map[ServiceMode]bool, error) {
	services := make(map[ServiceMode]bool)

	if servicesStr == "" {
		return services, errors.New("at least one service must be specified")
	}

	parts := strings.Split(servicesStr, ",")
	for _, part := range parts {
		serviceName := strings.TrimSpace(part)
		if serviceName == "" {
			continue
		}

		mode := ServiceMode(serviceName)
		switch mode {
		case ServiceModeHTTP, ServiceModeScheduler, ServiceModeReaper:
			services[mode] = true
		default:
			return nil, fmt.Errorf(
				"invalid service name: %q (valid options: http, scheduler, reaper)",
				serviceName,
			)
		}
	}

	if len(services) == 0 {
		return nil, errors.New("at least one valid service must be specified")
	}

	return services, nil
}

// SchedulerConfig contains scheduler service configuration.
type SchedulerConfig struct {
	// Workers is the number of run coordinator worker goroutines.
	// Each worker executes one external process at a time.
	Workers int `env:"SCHED_WORKERS" envDefault:"4"`

	// TickInterval is how often due triggers are evaluated.
	TickInterval time.Duration `env:"SCHED_TICK_INTERVAL" envDefault:"1s"`

	// RefreshInterval is how often schedule rows are re-read from the
	// job store to pick up edits made while the scheduler is running.
	RefreshInterval time.Duration `env:"SCHED_REFRESH_INTERVAL" envDefault:"60s"`

	// ShutdownWait is how long to wait for in-flight runs on shutdown.
	ShutdownWait time.Duration `env:"SCHED_SHUTDOWN_WAIT" envDefault:"15s"`
}

// Sanitize applies guardrails to scheduler configuration values.
func (s *SchedulerConfig) Sanitize() {
	if s.Workers < 1 {
		s.Workers = 1
	}
	if s.Workers > 64 {
		s.Workers = 64
	}

	// Enforce minimum intervals to prevent busy loops and database load
	if s.TickInterval < 100*time.Millisecond {
		s.TickInterval = 100 * time.Millisecond
	}
	if s.RefreshInterval < 1*time.Second {
		s.RefreshInterval = 1 * time.Second
	}
	if s.ShutdownWait < 1*time.Second {
		s.ShutdownWait = 1 * time.Second
	}
}

// ReaperConfig contains stale-run reaper configuration.
type ReaperConfig struct {
	// Interval is the reaper tick interval.
	Interval time.Duration `env:"REAPER_INTERVAL" envDefault:"5m"`

	// StaleRunMaxAge is how long a run or job may sit in a non-terminal
	// status before it is marked failed. A run this old belongs to a
	// scheduler process that died before writing its terminal state.
	StaleRunMaxAge time.Duration `env:"REAPER_STALE_RUN_MAX_AGE" envDefault:"6h"`

	// CompletedMaxAge is the maximum age for successful runs before deletion.
	CompletedMaxAge time.Duration `env:"REAPER_COMPLETED_MAX_AGE" envDefault:"720h"` // 30 days

	// FailedMaxAge is the maximum age for failed runs before deletion.
	FailedMaxAge time.Duration `env:"REAPER_FAILED_MAX_AGE" envDefault:"720h"` // 30 days

	// LogsMaxAge is the maximum age for ingestion log lines before deletion.
	LogsMaxAge time.Duration `env:"REAPER_LOGS_MAX_AGE" envDefault:"360h"` // 15 days

	// BatchSize is the maximum number of rows to process per operation.
	// Batching prevents long locks and I/O spikes on large tables.
	BatchSize int `env:"REAPER_BATCH_SIZE" envDefault:"1000"`
}

// Sanitize applies guardrails to reaper configuration values.
func (r *ReaperConfig) Sanitize() {
	// Enforce minimum intervals to prevent excessive database load
	if r.Interval < 1*time.Minute {
		r.Interval = 1 * time.Minute
	}
	if r.StaleRunMaxAge < 5*time.Minute {
		r.StaleRunMaxAge = 5 * time.Minute
	}
	if r.CompletedMaxAge < 1*time.Hour {
		r.CompletedMaxAge = 1 * time.Hour
	}
	if r.FailedMaxAge < 1*time.Hour {
		r.FailedMaxAge = 1 * time.Hour
	}
	if r.LogsMaxAge < 24*time.Hour {
		r.LogsMaxAge = 24 * time.Hour
	}

	// Enforce batch size bounds to prevent excessive locks or inefficiency
	if r.BatchSize < 1 {
		r.BatchSize = 1
	}
	if r.BatchSize > 10000 {
		r.BatchSize = 10000
	}
}

// IngestConfig locates the interpreter and scripts launched for testing
// and ingestion runs. Empty script fields fall back to the defaults
// compiled into the command builder.
type IngestConfig struct {
	// Python is the interpreter binary used to launch scripts.
	Python string `env:"INGEST_PYTHON" envDefault:"python3"`

	// ScriptsDir holds the default entry point scripts.
	ScriptsDir string `env:"INGEST_SCRIPTS_DIR" envDefault:"scripts"`

	// OutputDir receives testing run result files.
	OutputDir string `env:"INGEST_OUTPUT_DIR" envDefault:"tmp/testing_runs"`

	// WorkDir is the working directory for launched processes.
	// Empty means inherit the scheduler's working directory.
	WorkDir string `env:"INGEST_WORK_DIR" envDefault:""`

	// Script overrides, resolved under ScriptsDir when relative.
	TestingScript     string `env:"INGEST_TESTING_SCRIPT"      envDefault:""`
	IncrementalScript string `env:"INGEST_INCREMENTAL_SCRIPT"  envDefault:""`
	FullDailyScript   string `env:"INGEST_FULL_DAILY_SCRIPT"   envDefault:""`
	FullMinuteScript  string `env:"INGEST_FULL_MINUTE_SCRIPT"  envDefault:""`
}

// Sanitize normalises ingest configuration values.
func (i *IngestConfig) Sanitize() {
	i.Python = strings.TrimSpace(i.Python)
	if i.Python == "" {
		i.Python = "python3"
	}
	i.ScriptsDir = strings.TrimSpace(i.ScriptsDir)
	i.OutputDir = strings.TrimSpace(i.OutputDir)
	i.WorkDir = strings.TrimSpace(i.WorkDir)
}
