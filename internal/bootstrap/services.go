package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/tdxstock/ingestd/config"
	"github.com/tdxstock/ingestd/internal/adapters/procrunner"
	"github.com/tdxstock/ingestd/internal/core"
	"github.com/tdxstock/ingestd/internal/data"
	"github.com/tdxstock/ingestd/internal/domain/command"
	"github.com/tdxstock/ingestd/internal/observability/notify/pagerduty"
	"github.com/tdxstock/ingestd/internal/observability/notify/slack"
	"github.com/tdxstock/ingestd/internal/observability/statsd"
	"github.com/tdxstock/ingestd/internal/service"
	"github.com/tdxstock/ingestd/internal/service/failurenotifier"
)

// ServiceContainer holds all application services.
type ServiceContainer struct {
	Coordinator *service.CoordinatorService
	Reconciler  *service.ReconcilerService
	Schedules   *service.ScheduleService
	JobStatus   *service.JobStatusService

	// Read-only repository ports exposed straight to the facade; the list
	// endpoints have no business rules worth a service layer.
	TestingRuns   core.TestingRunRepository
	IngestionRuns core.IngestionRunRepository
	Logs          core.IngestionLogRepository

	Observability ObservabilityContainer
}

// ObservabilityContainer groups shared observability dependencies.
type ObservabilityContainer struct {
	MetricsSink     *statsd.Client
	MetricsConfig   config.ObservabilityMetricsConfig
	FailureNotifier *failurenotifier.Service
}

// ServiceDeps groups dependencies for service initialization.
type ServiceDeps struct {
	Config      *config.AppConfig
	DB          *sql.DB
	RedisClient redis.UniversalClient
	Logger      *slog.Logger
}

// serviceRepositories groups data adapters backing service ports.
type serviceRepositories struct {
	DB                 *sql.DB
	Redis              redis.UniversalClient
	TestingSchedules   *data.TestingScheduleRepo
	TestingRuns        *data.TestingRunRepo
	IngestionSchedules *data.IngestionScheduleRepo
	IngestionJobs      *data.IngestionJobRepo
	IngestionRuns      *data.IngestionRunRepo
	Logs               *data.IngestionLogRepo
	Cache              *data.RedisCacheRepo
}

// buildObservability configures the metrics sink.
func buildObservability(logger *slog.Logger, cfg config.ObservabilityConfig) ObservabilityContainer {
	obsLogger := logger
	if obsLogger == nil {
		obsLogger = slog.Default()
	}

	var metricsSink *statsd.Client
	if cfg.Metrics.IsEnabled() {
		client, err := statsd.NewClient(statsd.Config{
			Enabled: true,
			Address: cfg.Metrics.StatsdAddress,
			Prefix:  cfg.Metrics.StatsdPrefix,
			Logger:  obsLogger,
		})
		if err != nil {
			obsLogger.Error("failed to initialise statsd client", "error", err)
		} else {
			metricsSink = client
		}
	}

	return ObservabilityContainer{
		MetricsSink:     metricsSink,
		MetricsConfig:   cfg.Metrics,
		FailureNotifier: buildFailureNotifier(obsLogger, cfg.Notifications),
	}
}

// buildFailureNotifier assembles the run failure fan-out from the enabled
// notification sinks. A sink that fails to initialise is logged and dropped;
// the remaining sinks still deliver.
func buildFailureNotifier(logger *slog.Logger, cfg config.ObservabilityNotificationsConfig) *failurenotifier.Service {
	baseLogger := logger
	if baseLogger == nil {
		baseLogger = slog.Default()
	}

	if !cfg.Enabled {
		return failurenotifier.NewService(failurenotifier.Options{
			Logger: baseLogger.With("component", "failure_notifier"),
		})
	}

	sinks := make([]failurenotifier.SinkRegistration, 0, 2)

	if cfg.Slack.Enabled {
		client, err := slack.NewClient(slack.Config{
			WebhookURL:   cfg.Slack.WebhookURL,
			Channel:      cfg.Slack.Channel,
			Username:     cfg.Slack.Username,
			Timeout:      cfg.Timeout,
			RetryLimit:   cfg.RetryLimit,
			JobURLPrefix: cfg.Slack.JobURLPrefix,
		})
		if err != nil {
			baseLogger.Error("failed to initialise slack notifier", "error", err)
		} else {
			sinks = append(sinks, failurenotifier.SinkRegistration{
				Name: "slack",
				Sink: client,
			})
		}
	}

	if cfg.PagerDuty.Enabled {
		client, err := pagerduty.NewClient(pagerduty.Config{
			RoutingKey: cfg.PagerDuty.RoutingKey,
			Source:     cfg.PagerDuty.Source,
			Component:  cfg.PagerDuty.Component,
			Timeout:    cfg.Timeout,
			RetryLimit: cfg.RetryLimit,
		})
		if err != nil {
			baseLogger.Error("failed to initialise pagerduty notifier", "error", err)
		} else {
			sinks = append(sinks, failurenotifier.SinkRegistration{
				Name: "pagerduty",
				Sink: client,
			})
		}
	}

	return failurenotifier.NewService(failurenotifier.Options{
		Logger: baseLogger.With("component", "failure_notifier"),
		Sinks:  sinks,
	})
}

// buildRepositories builds repositories backing service ports; no business rules here.
func buildRepositories(db *sql.DB, redisClient redis.UniversalClient) *serviceRepositories {
	repos := &serviceRepositories{
		DB:                 db,
		Redis:              redisClient,
		TestingSchedules:   data.NewTestingScheduleRepo(db),
		TestingRuns:        data.NewTestingRunRepo(db),
		IngestionSchedules: data.NewIngestionScheduleRepo(db),
		IngestionJobs:      data.NewIngestionJobRepo(db),
		IngestionRuns:      data.NewIngestionRunRepo(db),
		Logs:               data.NewIngestionLogRepo(db),
	}
	if redisClient != nil {
		repos.Cache = data.NewRedisCacheRepo(redisClient)
	}
	return repos
}

func newCommandBuilder(cfg config.IngestConfig) *command.Builder {
	return command.NewBuilder(command.Paths{
		Python:            cfg.Python,
		ScriptsDir:        cfg.ScriptsDir,
		OutputDir:         cfg.OutputDir,
		TestingScript:     cfg.TestingScript,
		IncrementalScript: cfg.IncrementalScript,
		FullDailyScript:   cfg.FullDailyScript,
		FullMinuteScript:  cfg.FullMinuteScript,
	})
}

func newJobStatusService(repos *serviceRepositories, cfg config.CacheConfig, logger *slog.Logger) *service.JobStatusService {
	opts := service.JobStatusOptions{
		Jobs:   repos.IngestionJobs,
		Runs:   repos.IngestionRuns,
		Logs:   repos.Logs,
		Logger: logger,
	}
	if cfg.Enabled && repos.Cache != nil {
		opts.Cache = repos.Cache
		opts.StatsTTL = cfg.StatsTTL
	}
	return service.MustNewJobStatusService(opts)
}

// DomainServicesOptions groups inputs for service wiring.
type DomainServicesOptions struct {
	Repos         *serviceRepositories
	Observability ObservabilityContainer
	Config        *config.AppConfig
	Logger        *slog.Logger
}

// buildDomainServices wires business services using repositories and observability adapters.
func buildDomainServices(opts *DomainServicesOptions) ServiceContainer {
	if opts == nil {
		return ServiceContainer{}
	}
	svcLogger := opts.Logger
	if svcLogger == nil {
		svcLogger = slog.Default()
	}

	appCfg := opts.Config
	if appCfg == nil {
		appCfg = &config.AppConfig{}
	}

	commands := newCommandBuilder(appCfg.Ingest)
	processes := procrunner.NewRunner(procrunner.RunnerOptions{
		WorkDir: appCfg.Ingest.WorkDir,
		Logger:  svcLogger,
	})

	coordinator := service.MustNewCoordinatorService(service.CoordinatorOptions{
		TestingRuns:        opts.Repos.TestingRuns,
		TestingSchedules:   opts.Repos.TestingSchedules,
		IngestionSchedules: opts.Repos.IngestionSchedules,
		Jobs:               opts.Repos.IngestionJobs,
		Logs:               opts.Repos.Logs,
		Processes:          processes,
		Commands:           commands,
		Workers:            appCfg.Scheduler.Workers,
		Metrics:            opts.Observability.MetricsSink,
		Logger:             svcLogger,
		FailureNotifier:    opts.Observability.FailureNotifier,
	})

	reconciler := service.MustNewReconcilerService(service.ReconcilerOptions{
		TestingSchedules:   opts.Repos.TestingSchedules,
		IngestionSchedules: opts.Repos.IngestionSchedules,
		Submitter:          coordinator,
		Metrics:            opts.Observability.MetricsSink,
		Logger:             svcLogger,
	})

	schedules := service.MustNewScheduleService(service.ScheduleServiceOptions{
		TestingSchedules:   opts.Repos.TestingSchedules,
		IngestionSchedules: opts.Repos.IngestionSchedules,
		Commands:           commands,
		Refresher:          reconciler,
		Logger:             svcLogger,
	})

	return ServiceContainer{
		Coordinator:   coordinator,
		Reconciler:    reconciler,
		Schedules:     schedules,
		JobStatus:     newJobStatusService(opts.Repos, appCfg.Cache, svcLogger),
		TestingRuns:   opts.Repos.TestingRuns,
		IngestionRuns: opts.Repos.IngestionRuns,
		Logs:          opts.Repos.Logs,
		Observability: opts.Observability,
	}
}

// NewServices builds the full service container from raw dependencies.
func NewServices(deps *ServiceDeps) ServiceContainer {
	if deps == nil {
		return ServiceContainer{}
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var obsCfg config.ObservabilityConfig
	if deps.Config != nil {
		obsCfg = deps.Config.Observability
	}
	observability := buildObservability(logger, obsCfg)
	repos := buildRepositories(deps.DB, deps.RedisClient)
	return buildDomainServices(&DomainServicesOptions{
		Repos:         repos,
		Observability: observability,
		Config:        deps.Config,
		Logger:        logger,
	})
}

// ServiceOrchestrationConfig contains configuration for service orchestration.
type ServiceOrchestrationConfig struct {
	Config      *config.AppConfig
	Services    ServiceContainer
	DB          *sql.DB
	RedisClient redis.UniversalClient
	Logger      *slog.Logger
}

// serviceStartupDeps groups dependencies for service startup.
type serviceStartupDeps struct {
	ctx             context.Context
	cfg             *ServiceOrchestrationConfig
	logger          *slog.Logger
	enabledServices map[config.ServiceMode]bool
	errCh           chan error
}

// backgroundService describes a startable background component.
type backgroundService struct {
	mode  config.ServiceMode
	name  string
	start func(context.Context) error
}

// backgroundServiceHandle tracks a running background service.
type backgroundServiceHandle struct {
	mode config.ServiceMode
	name string
	done <-chan struct{}
}

// startHTTPServerIfEnabled starts the HTTP server if enabled.
func startHTTPServerIfEnabled(deps *serviceStartupDeps) *http.Server {
	if deps == nil || deps.cfg == nil || !deps.enabledServices[config.ServiceModeHTTP] {
		return nil
	}
	return StartHTTPServer(&HTTPServerConfig{
		Config:   deps.cfg.Config,
		Services: deps.cfg.Services,
		Logger:   deps.logger,
	})
}

func launchBackground(ctx context.Context, deps *serviceStartupDeps, descriptor backgroundService) <-chan struct{} {
	if deps == nil || !deps.enabledServices[descriptor.mode] {
		return nil
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := descriptor.start(ctx); err != nil {
			errMsg := fmt.Errorf("%s failed: %w", descriptor.name, err)
			select {
			case deps.errCh <- errMsg:
			case <-ctx.Done():
			default:
				deps.logger.WarnContext(ctx, "dropping background service error",
					"service", descriptor.name, "error", errMsg)
			}
		}
	}()

	deps.logger.InfoContext(ctx, "background service started", "service", descriptor.name, "mode", descriptor.mode)

	return done
}

func startBackgroundServices(deps *serviceStartupDeps, services []backgroundService) []backgroundServiceHandle {
	if deps == nil {
		return nil
	}
	handles := make([]backgroundServiceHandle, 0, len(services))

	for _, svc := range services {
		done := launchBackground(deps.ctx, deps, svc)
		if done == nil {
			continue
		}

		handles = append(handles, backgroundServiceHandle{
			mode: svc.mode,
			name: svc.name,
			done: done,
		})
	}

	return handles
}

func newSchedulerBackgroundService(deps *serviceStartupDeps) backgroundService {
	return backgroundService{
		mode: config.ServiceModeScheduler,
		name: "scheduler",
		start: func(ctx context.Context) error {
			if deps == nil || deps.cfg == nil {
				return nil
			}
			schedulerCfg := config.SchedulerConfig{}
			if deps.cfg.Config != nil {
				schedulerCfg = deps.cfg.Config.Scheduler
			}
			return RunScheduler(ctx, SchedulerRunnerConfig{
				Services: deps.cfg.Services,
				Logger:   deps.logger,
				Config:   schedulerCfg,
			})
		},
	}
}

func newReaperBackgroundService(deps *serviceStartupDeps) backgroundService {
	return backgroundService{
		mode: config.ServiceModeReaper,
		name: "reaper",
		start: func(ctx context.Context) error {
			if deps == nil || deps.cfg == nil {
				return nil
			}
			var reaperCfg config.ReaperConfig
			if deps.cfg.Config != nil {
				reaperCfg = deps.cfg.Config.Reaper
			}
			return RunReaper(ctx, ReaperRunnerConfig{
				DB:      deps.cfg.DB,
				Logger:  deps.logger,
				Config:  reaperCfg,
				Metrics: deps.cfg.Services.Observability.MetricsSink,
			})
		},
	}
}

func buildBackgroundServices(deps *serviceStartupDeps) []backgroundService {
	if deps == nil {
		return nil
	}
	return []backgroundService{
		newSchedulerBackgroundService(deps),
		newReaperBackgroundService(deps),
	}
}

// ServiceStartupResult holds the results of starting all services.
type ServiceStartupResult struct {
	HTTPServer *http.Server
	Background []backgroundServiceHandle
}

// startServices starts all enabled services and returns their completion channels.
func startServices(deps *serviceStartupDeps) ServiceStartupResult {
	return ServiceStartupResult{
		HTTPServer: startHTTPServerIfEnabled(deps),
		Background: startBackgroundServices(deps, buildBackgroundServices(deps)),
	}
}

// RunServicesWithShutdown starts all enabled services and manages their lifecycle.
// This function blocks until a shutdown signal is received or a service fails.
func RunServicesWithShutdown(cfg *ServiceOrchestrationConfig) error {
	if cfg == nil {
		return errors.New("service orchestration config is required")
	}
	ctx := context.Background()
	serviceCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	if cfg.Config == nil {
		return errors.New("service orchestration config missing AppConfig")
	}

	// Determine which services are enabled
	enabledServices, err := cfg.Config.GetEnabledServices()
	if err != nil {
		return fmt.Errorf("determine enabled services: %w", err)
	}
	errCh := make(chan error, errorChannelBufferSize(enabledServices))

	// The coordinator pool serves manual submissions from the facade as well
	// as scheduled firings, so it runs in every service mode.
	if cfg.Services.Coordinator != nil {
		cfg.Services.Coordinator.Start(serviceCtx)
	}

	// Start all enabled services
	result := startServices(&serviceStartupDeps{
		ctx:             serviceCtx,
		cfg:             cfg,
		logger:          logger,
		enabledServices: enabledServices,
		errCh:           errCh,
	})

	// Wait for shutdown signal or error
	return waitForShutdown(shutdownConfig{
		ctx:          serviceCtx,
		cancel:       cancel,
		errCh:        errCh,
		httpServer:   result.HTTPServer,
		coordinator:  cfg.Services.Coordinator,
		shutdownWait: cfg.Config.Scheduler.ShutdownWait,
		logger:       logger,
		backgrounds:  result.Background,
	})
}

func errorChannelCapacity(enabled map[config.ServiceMode]bool) int {
	modes := []config.ServiceMode{
		config.ServiceModeHTTP,
		config.ServiceModeScheduler,
		config.ServiceModeReaper,
	}

	count := 0
	for _, mode := range modes {
		if enabled[mode] {
			count++
		}
	}
	return count
}

func errorChannelBufferSize(enabled map[config.ServiceMode]bool) int {
	size := errorChannelCapacity(enabled) + 1
	if size < 1 {
		return 1
	}
	return size
}

// shutdownConfig contains dependencies for graceful shutdown.
type shutdownConfig struct {
	ctx          context.Context
	cancel       context.CancelFunc
	errCh        <-chan error
	httpServer   *http.Server
	coordinator  *service.CoordinatorService
	shutdownWait time.Duration
	logger       *slog.Logger
	backgrounds  []backgroundServiceHandle
}

func (c shutdownConfig) waitTimeout() time.Duration {
	if c.shutdownWait > 0 {
		return c.shutdownWait
	}
	return 15 * time.Second
}

// waitForShutdown waits for shutdown signal or service error.
func waitForShutdown(cfg shutdownConfig) error {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case <-quit:
		cfg.logger.Info("shutting down services...")
		cfg.cancel() // Cancel service context before waiting
		return gracefulStop(cfg)
	case err := <-cfg.errCh:
		cfg.logger.Error("service error", "error", err)
		cfg.cancel() // Cancel service context before waiting
		if stopErr := gracefulStop(cfg); stopErr != nil {
			cfg.logger.Error("graceful stop failed", "error", stopErr)
		}
		return err
	}
}

// gracefulStop attempts to gracefully stop all services.
func gracefulStop(cfg shutdownConfig) error {
	// Gracefully stop HTTP server if running
	if cfg.httpServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.waitTimeout())
		defer cancel()

		if err := ShutdownHTTPServer(ShutdownConfig{
			Context: shutdownCtx,
			Server:  cfg.httpServer,
			Logger:  cfg.logger,
		}); err != nil {
			return err
		}
	}

	// Wait for background services to finish; the scheduler drains the
	// coordinator itself on the way out.
	for _, svc := range cfg.backgrounds {
		waitForService(svc.done, svc.name, cfg.logger, cfg.waitTimeout())
	}

	// Drain in-flight runs so terminal statuses land. A no-op when the
	// scheduler loop already shut the pool down.
	if cfg.coordinator != nil {
		drainCtx, cancel := context.WithTimeout(context.Background(), cfg.waitTimeout())
		defer cancel()
		if err := cfg.coordinator.Shutdown(drainCtx); err != nil {
			cfg.logger.Error("coordinator shutdown incomplete", "error", err)
		}
	}

	return nil
}

// waitForService waits for a service to finish with timeout.
func waitForService(done <-chan struct{}, name string, logger *slog.Logger, timeout time.Duration) {
	if done == nil {
		return
	}
	select {
	case <-done:
		logger.Info(name + " stopped")
	case <-time.After(timeout):
		logger.Warn("timeout waiting for " + name + " to stop")
	}
}
