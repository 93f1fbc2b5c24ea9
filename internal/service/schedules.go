package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/tdxstock/ingestd/internal/core"
	"github.com/tdxstock/ingestd/internal/domain/command"
	"github.com/tdxstock/ingestd/internal/domain/model"
	"github.com/tdxstock/ingestd/internal/domain/trigger"
	apperrors "github.com/tdxstock/ingestd/internal/errors"
)

// ScheduleRefresher re-reads schedule rows into the live trigger table.
// The reconciler satisfies this; a nil refresher means the scheduler
// process converges on its own refresh interval.
type ScheduleRefresher interface {
	Refresh(ctx context.Context) error
}

// ScheduleServiceOptions groups dependencies for ScheduleService.
type ScheduleServiceOptions struct {
	TestingSchedules   core.TestingScheduleRepository
	IngestionSchedules core.IngestionScheduleRepository
	Commands           *command.Builder

	// Refresher is poked after every schedule write so edits take effect
	// without waiting for the periodic refresh. Optional.
	Refresher ScheduleRefresher
	Logger    *slog.Logger
}

// ScheduleService validates and persists schedule definitions for both run
// families. Validation happens synchronously at write time: a row that made
// it into the store always parses.
type ScheduleService struct {
	testing   core.TestingScheduleRepository
	ingestion core.IngestionScheduleRepository
	commands  *command.Builder
	refresher ScheduleRefresher
	logger    *slog.Logger
}

// NewScheduleService constructs a new ScheduleService.
func NewScheduleService(opts ScheduleServiceOptions) (*ScheduleService, error) {
	switch {
	case opts.TestingSchedules == nil:
		return nil, errors.New("TestingScheduleRepository is required")
	case opts.IngestionSchedules == nil:
		return nil, errors.New("IngestionScheduleRepository is required")
	case opts.Commands == nil:
		return nil, errors.New("command Builder is required")
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &ScheduleService{
		testing:   opts.TestingSchedules,
		ingestion: opts.IngestionSchedules,
		commands:  opts.Commands,
		refresher: opts.Refresher,
		logger:    opts.Logger,
	}, nil
}

// MustNewScheduleService constructs a new ScheduleService and panics on error.
func MustNewScheduleService(opts ScheduleServiceOptions) *ScheduleService {
	svc, err := NewScheduleService(opts)
	if err != nil {
		panic(err) //nolint:forbidigo // Must constructor fails fast when dependencies are invalid during startup
	}
	return svc
}

// UpsertTestingSchedule validates and writes a testing schedule row,
// minting an id when the request omits one.
func (s *ScheduleService) UpsertTestingSchedule(
	ctx context.Context,
	req model.UpsertTestingScheduleRequest,
) (*model.TestingSchedule, error) {
	params, err := model.DecodeTestingParams(req.Options)
	if err != nil {
		return nil, apperrors.Validationf("invalid options: %v", err)
	}
	if _, err := trigger.ParseFrequency(req.Frequency, params.At); err != nil {
		return nil, apperrors.ValidationField("frequency", err.Error())
	}

	scheduleID := req.ScheduleID
	if scheduleID == "" {
		scheduleID = uuid.NewString()
	}

	row, err := s.testing.Upsert(ctx, core.UpsertTestingScheduleParams{
		ScheduleID: scheduleID,
		Enabled:    enabledOrDefault(req.Enabled),
		Frequency:  req.Frequency,
		Options:    req.Options,
	})
	if err != nil {
		return nil, fmt.Errorf("upsert testing schedule: %w", err)
	}

	s.refresh(ctx)
	return row, nil
}

// UpsertIngestionSchedule validates and writes an ingestion schedule row.
// When the request omits the id, an existing (dataset, mode) row is reused
// so repeated submits from the facade stay one row per target.
func (s *ScheduleService) UpsertIngestionSchedule(
	ctx context.Context,
	req model.UpsertIngestionScheduleRequest,
) (*model.IngestionSchedule, error) {
	if req.Dataset == "" {
		return nil, apperrors.ValidationField("dataset", "dataset is required and cannot be empty")
	}
	if !req.Mode.Valid() {
		return nil, apperrors.ValidationField("mode", "must be one of: init, incremental")
	}

	target, err := model.DecodeIngestionOptions(req.Dataset, req.Mode, req.Options)
	if err != nil {
		return nil, apperrors.Validationf("invalid options: %v", err)
	}
	if _, err := s.commands.Ingestion(target); err != nil {
		if errors.Is(err, command.ErrNoScript) {
			return nil, apperrors.Validationf("no ingestion script for dataset %q mode %q", req.Dataset, req.Mode)
		}
		return nil, apperrors.Validationf("invalid options: %v", err)
	}
	if _, err := trigger.ParseFrequency(req.Frequency, target.At); err != nil {
		return nil, apperrors.ValidationField("frequency", err.Error())
	}

	scheduleID := req.ScheduleID
	if scheduleID == "" {
		existing, findErr := s.ingestion.FindByTarget(ctx, req.Dataset, req.Mode)
		switch {
		case findErr == nil:
			scheduleID = existing.ScheduleID
		case apperrors.IsNotFound(findErr):
			scheduleID = uuid.NewString()
		default:
			return nil, fmt.Errorf("resolve ingestion schedule: %w", findErr)
		}
	}

	row, err := s.ingestion.Upsert(ctx, core.UpsertIngestionScheduleParams{
		ScheduleID: scheduleID,
		Dataset:    req.Dataset,
		Mode:       req.Mode,
		Enabled:    enabledOrDefault(req.Enabled),
		Frequency:  req.Frequency,
		Options:    req.Options,
	})
	if err != nil {
		return nil, fmt.Errorf("upsert ingestion schedule: %w", err)
	}

	s.refresh(ctx)
	return row, nil
}

// ToggleTestingSchedule flips the enabled flag and returns the updated row.
func (s *ScheduleService) ToggleTestingSchedule(ctx context.Context, id string, enabled bool) (*model.TestingSchedule, error) {
	row, err := s.testing.SetEnabled(ctx, id, enabled)
	if err != nil {
		return nil, fmt.Errorf("toggle testing schedule: %w", err)
	}
	s.refresh(ctx)
	return row, nil
}

// ToggleIngestionSchedule flips the enabled flag and returns the updated row.
func (s *ScheduleService) ToggleIngestionSchedule(ctx context.Context, id string, enabled bool) (*model.IngestionSchedule, error) {
	row, err := s.ingestion.SetEnabled(ctx, id, enabled)
	if err != nil {
		return nil, fmt.Errorf("toggle ingestion schedule: %w", err)
	}
	s.refresh(ctx)
	return row, nil
}

// ListTestingSchedules returns all testing schedules, oldest first.
func (s *ScheduleService) ListTestingSchedules(ctx context.Context) ([]model.TestingSchedule, error) {
	return s.testing.List(ctx)
}

// ListIngestionSchedules returns all ingestion schedules ordered by target.
func (s *ScheduleService) ListIngestionSchedules(ctx context.Context) ([]model.IngestionSchedule, error) {
	return s.ingestion.List(ctx)
}

// GetTestingSchedule fetches one testing schedule row.
func (s *ScheduleService) GetTestingSchedule(ctx context.Context, id string) (*model.TestingSchedule, error) {
	return s.testing.GetByID(ctx, id)
}

// GetIngestionSchedule fetches one ingestion schedule row.
func (s *ScheduleService) GetIngestionSchedule(ctx context.Context, id string) (*model.IngestionSchedule, error) {
	return s.ingestion.GetByID(ctx, id)
}

// refresh nudges the reconciler after a write. The row is already durable,
// so a failed refresh only delays pickup until the periodic cycle.
func (s *ScheduleService) refresh(ctx context.Context) {
	if s.refresher == nil {
		return
	}
	if err := s.refresher.Refresh(ctx); err != nil {
		s.logger.WarnContext(ctx, "schedule refresh after write failed", "error", err)
	}
}

func enabledOrDefault(enabled *bool) bool {
	if enabled == nil {
		return true
	}
	return *enabled
}
