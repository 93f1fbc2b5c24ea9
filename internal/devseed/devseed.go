// Package devseed inserts a default schedule set for local development.
package devseed

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/tdxstock/ingestd/internal/core"
	"github.com/tdxstock/ingestd/internal/data"
	"github.com/tdxstock/ingestd/internal/domain/command"
	"github.com/tdxstock/ingestd/internal/domain/model"
	apperrors "github.com/tdxstock/ingestd/internal/errors"
	"github.com/tdxstock/ingestd/internal/service"
)

// Services bundles the dependencies needed for development seeding.
type Services struct {
	DB        *sql.DB
	schedules *service.ScheduleService
	testing   core.TestingScheduleRepository
	ingestion core.IngestionScheduleRepository
}

// NewServices constructs all required services for seeding using the provided DB.
func NewServices(db *sql.DB) Services {
	testingRepo := data.NewTestingScheduleRepo(db)
	ingestionRepo := data.NewIngestionScheduleRepo(db)
	scheduleService := service.MustNewScheduleService(service.ScheduleServiceOptions{
		TestingSchedules:   testingRepo,
		IngestionSchedules: ingestionRepo,
		Commands:           command.NewBuilder(command.Paths{}),
	})

	return Services{
		DB:        db,
		schedules: scheduleService,
		testing:   testingRepo,
		ingestion: ingestionRepo,
	}
}

// Run executes the development seeding workflow against the provided DB.
// Existing rows are left untouched so operator edits survive repeated runs.
func Run(ctx context.Context, svcs Services, logger *slog.Logger) error {
	failures := 0
	failures += seedIngestionSchedules(ctx, svcs, logger)
	failures += seedTestingSchedule(ctx, svcs, logger)
	if failures > 0 {
		return fmt.Errorf("%d seed errors; check logs", failures)
	}
	return nil
}

type ingestionScheduleSeed struct {
	dataset   string
	mode      model.IngestMode
	frequency string
	options   map[string]any
}

// defaultIngestionScheduleSeeds covers the incremental catch-up runs a dev
// environment needs: daily bars after the 15:00 close, minute bars once the
// vendor finishes publishing.
func defaultIngestionScheduleSeeds() []ingestionScheduleSeed {
	return []ingestionScheduleSeed{
		{
			dataset:   "kline_daily_qfq",
			mode:      model.IngestModeIncremental,
			frequency: "daily",
			options:   map[string]any{"at": "17:30"},
		},
		{
			dataset:   "kline_minute_raw",
			mode:      model.IngestModeIncremental,
			frequency: "daily",
			options:   map[string]any{"at": "18:00"},
		},
	}
}

func seedIngestionSchedules(ctx context.Context, svcs Services, logger *slog.Logger) int {
	failures := 0
	for _, seed := range defaultIngestionScheduleSeeds() {
		created, err := createIngestionSchedule(ctx, svcs, seed)
		if err != nil {
			if logger != nil {
				logger.ErrorContext(ctx, "failed to seed ingestion schedule",
					"dataset", seed.dataset, "mode", seed.mode, "error", err)
			}
			failures++
			continue
		}
		if logger != nil {
			msg := "ingestion schedule already exists"
			if created {
				msg = "created ingestion schedule"
			}
			logger.InfoContext(ctx, msg, "dataset", seed.dataset, "mode", seed.mode)
		}
	}
	return failures
}

func createIngestionSchedule(ctx context.Context, svcs Services, seed ingestionScheduleSeed) (bool, error) {
	if _, err := svcs.ingestion.FindByTarget(ctx, seed.dataset, seed.mode); err == nil {
		return false, nil
	} else if !apperrors.IsNotFound(err) {
		return false, fmt.Errorf("resolve schedule: %w", err)
	}

	options, err := json.Marshal(seed.options)
	if err != nil {
		return false, fmt.Errorf("marshal options: %w", err)
	}
	if _, err := svcs.schedules.UpsertIngestionSchedule(ctx, model.UpsertIngestionScheduleRequest{
		Dataset:   seed.dataset,
		Mode:      seed.mode,
		Frequency: seed.frequency,
		Options:   options,
	}); err != nil {
		return false, err
	}
	return true, nil
}

// seedTestingSchedule creates one pre-market API health check unless any
// testing schedule already exists. Testing schedules have no natural key,
// so presence of any row means a human has taken over.
func seedTestingSchedule(ctx context.Context, svcs Services, logger *slog.Logger) int {
	existing, err := svcs.testing.List(ctx)
	if err != nil {
		if logger != nil {
			logger.ErrorContext(ctx, "failed to list testing schedules", "error", err)
		}
		return 1
	}
	if len(existing) > 0 {
		if logger != nil {
			logger.InfoContext(ctx, "testing schedules already exist", "count", len(existing))
		}
		return 0
	}

	options, err := json.Marshal(map[string]any{"at": "08:45"})
	if err != nil {
		if logger != nil {
			logger.ErrorContext(ctx, "failed to marshal testing options", "error", err)
		}
		return 1
	}
	if _, err := svcs.schedules.UpsertTestingSchedule(ctx, model.UpsertTestingScheduleRequest{
		Frequency: "daily",
		Options:   options,
	}); err != nil {
		if logger != nil {
			logger.ErrorContext(ctx, "failed to seed testing schedule", "error", err)
		}
		return 1
	}
	if logger != nil {
		logger.InfoContext(ctx, "created testing schedule", "frequency", "daily", "at", "08:45")
	}
	return 0
}
