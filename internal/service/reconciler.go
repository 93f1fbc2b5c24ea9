package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/tdxstock/ingestd/internal/core"
	"github.com/tdxstock/ingestd/internal/data"
	"github.com/tdxstock/ingestd/internal/domain/model"
	"github.com/tdxstock/ingestd/internal/domain/trigger"
	"github.com/tdxstock/ingestd/internal/observability/statsd"
)

// RunSubmitter is the coordinator surface the reconciler fires into.
// Submissions deduplicate inside the coordinator, so a firing that lands
// while the previous run is alive is a no-op.
type RunSubmitter interface {
	FireScheduledTesting(ctx context.Context, sched model.TestingSchedule) error
	FireScheduledIngestion(ctx context.Context, sched model.IngestionSchedule) error
}

// ReconcilerService owns the in-memory trigger table and keeps it aligned
// with the schedule rows. Refresh diffs rows against registered triggers by
// a canonical snapshot, so unchanged rows never lose their firing time.
type ReconcilerService struct {
	testingSchedules   core.TestingScheduleRepository
	ingestionSchedules core.IngestionScheduleRepository
	submitter          RunSubmitter
	timeProvider       data.TimeProvider
	metrics            statsd.Sink
	logger             *slog.Logger

	mu       sync.Mutex
	triggers map[string]*scheduleTrigger
}

// ReconcilerOptions holds the dependencies for creating a ReconcilerService.
type ReconcilerOptions struct {
	TestingSchedules   core.TestingScheduleRepository
	IngestionSchedules core.IngestionScheduleRepository
	Submitter          RunSubmitter
	TimeProvider       data.TimeProvider
	Metrics            statsd.Sink
	Logger             *slog.Logger
}

// NewReconcilerService constructs a new ReconcilerService.
func NewReconcilerService(opts ReconcilerOptions) (*ReconcilerService, error) {
	switch {
	case opts.TestingSchedules == nil:
		return nil, errors.New("TestingScheduleRepository is required")
	case opts.IngestionSchedules == nil:
		return nil, errors.New("IngestionScheduleRepository is required")
	case opts.Submitter == nil:
		return nil, errors.New("RunSubmitter is required")
	}

	if opts.TimeProvider == nil {
		opts.TimeProvider = &data.RealTimeProvider{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	return &ReconcilerService{
		testingSchedules:   opts.TestingSchedules,
		ingestionSchedules: opts.IngestionSchedules,
		submitter:          opts.Submitter,
		timeProvider:       opts.TimeProvider,
		metrics:            opts.Metrics,
		logger:             opts.Logger,
		triggers:           make(map[string]*scheduleTrigger),
	}, nil
}

// MustNewReconcilerService constructs a new ReconcilerService and panics on
// error.
func MustNewReconcilerService(opts ReconcilerOptions) *ReconcilerService {
	svc, err := NewReconcilerService(opts)
	if err != nil {
		panic(err) //nolint:forbidigo // Must constructor fails fast when dependencies are invalid during startup
	}
	return svc
}

// scheduleTrigger is one registered firing rule. The snapshot pins the
// schedule definition it was built from; a row edit produces a different
// snapshot and therefore a fresh trigger.
type scheduleTrigger struct {
	key      string
	snapshot string
	plan     *trigger.Plan
	nextFire time.Time
	fire     func(ctx context.Context) error
}

func testingTriggerKey(scheduleID string) string { return "testing:" + scheduleID }

func ingestionTriggerKey(scheduleID string) string { return "ingestion:" + scheduleID }

// Refresh reloads the enabled schedule rows and reconciles the trigger
// table against them. Unchanged rows keep their trigger untouched; changed
// rows get exactly one cancel and recreate; rows that cannot be parsed are
// marked invalid and lose their trigger; vanished rows lose their trigger.
func (s *ReconcilerService) Refresh(ctx context.Context) error {
	now := s.timeProvider.Now()

	testing, err := s.testingSchedules.ListEnabled(ctx)
	if err != nil {
		return fmt.Errorf("list testing schedules: %w", err)
	}
	ingestion, err := s.ingestionSchedules.ListEnabled(ctx)
	if err != nil {
		return fmt.Errorf("list ingestion schedules: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[string]struct{}, len(testing)+len(ingestion))
	for _, sched := range testing {
		key := testingTriggerKey(sched.ScheduleID)
		seen[key] = struct{}{}
		s.reconcileTesting(ctx, sched, now)
	}
	for _, sched := range ingestion {
		key := ingestionTriggerKey(sched.ScheduleID)
		seen[key] = struct{}{}
		s.reconcileIngestion(ctx, sched, now)
	}

	for key := range s.triggers {
		if _, ok := seen[key]; !ok {
			delete(s.triggers, key)
			s.logger.InfoContext(ctx, "trigger canceled, schedule gone", "key", key)
		}
	}

	if s.metrics != nil {
		s.metrics.Gauge("scheduler.triggers", float64(len(s.triggers)), nil)
	}
	return nil
}

func (s *ReconcilerService) reconcileTesting(ctx context.Context, sched model.TestingSchedule, now time.Time) {
	key := testingTriggerKey(sched.ScheduleID)

	params, err := model.DecodeTestingParams(sched.Options)
	if err != nil {
		s.invalidate(ctx, invalidSchedule{key: key, scheduleID: sched.ScheduleID, testing: true,
			err: fmt.Errorf("invalid options: %w", err)})
		return
	}
	snap, err := testingSnapshot(sched)
	if err != nil {
		s.invalidate(ctx, invalidSchedule{key: key, scheduleID: sched.ScheduleID, testing: true,
			err: fmt.Errorf("invalid options: %w", err)})
		return
	}
	if existing, ok := s.triggers[key]; ok && existing.snapshot == snap {
		return
	}

	plan, err := trigger.ParseFrequency(sched.Frequency, params.At)
	if err != nil {
		s.invalidate(ctx, invalidSchedule{key: key, scheduleID: sched.ScheduleID, testing: true,
			err: fmt.Errorf("invalid frequency %q: %w", sched.Frequency, err)})
		return
	}

	fire := func(ctx context.Context) error {
		return s.submitter.FireScheduledTesting(ctx, sched)
	}
	s.register(ctx, registerParams{
		key: key, scheduleID: sched.ScheduleID, testing: true,
		snapshot: snap, plan: plan, now: now, fire: fire,
	})
}

func (s *ReconcilerService) reconcileIngestion(ctx context.Context, sched model.IngestionSchedule, now time.Time) {
	key := ingestionTriggerKey(sched.ScheduleID)

	target, err := model.DecodeIngestionOptions(sched.Dataset, sched.Mode, sched.Options)
	if err != nil {
		s.invalidate(ctx, invalidSchedule{key: key, scheduleID: sched.ScheduleID,
			err: fmt.Errorf("invalid options: %w", err)})
		return
	}
	snap, err := ingestionSnapshot(sched)
	if err != nil {
		s.invalidate(ctx, invalidSchedule{key: key, scheduleID: sched.ScheduleID,
			err: fmt.Errorf("invalid options: %w", err)})
		return
	}
	if existing, ok := s.triggers[key]; ok && existing.snapshot == snap {
		return
	}

	plan, err := trigger.ParseFrequency(sched.Frequency, target.At)
	if err != nil {
		s.invalidate(ctx, invalidSchedule{key: key, scheduleID: sched.ScheduleID,
			err: fmt.Errorf("invalid frequency %q: %w", sched.Frequency, err)})
		return
	}

	fire := func(ctx context.Context) error {
		return s.submitter.FireScheduledIngestion(ctx, sched)
	}
	s.register(ctx, registerParams{
		key: key, scheduleID: sched.ScheduleID,
		snapshot: snap, plan: plan, now: now, fire: fire,
	})
}

type registerParams struct {
	key        string
	scheduleID string
	testing    bool
	snapshot   string
	plan       *trigger.Plan
	now        time.Time
	fire       func(ctx context.Context) error
}

// register replaces whatever trigger the key held. A nil plan means manual
// cadence: no trigger, next_run_at cleared.
func (s *ReconcilerService) register(ctx context.Context, p registerParams) {
	delete(s.triggers, p.key)

	if p.plan == nil {
		s.updateRunState(ctx, p.testing, core.ScheduleRunStateUpdate{
			ScheduleID:     p.scheduleID,
			ClearNextRunAt: true,
		})
		return
	}

	next := p.plan.FirstFire(p.now)
	s.triggers[p.key] = &scheduleTrigger{
		key:      p.key,
		snapshot: p.snapshot,
		plan:     p.plan,
		nextFire: next,
		fire:     p.fire,
	}
	s.updateRunState(ctx, p.testing, core.ScheduleRunStateUpdate{
		ScheduleID: p.scheduleID,
		NextRunAt:  &next,
	})
	s.logger.InfoContext(ctx, "trigger registered",
		"key", p.key, "next_fire", next.Format(time.RFC3339))
}

type invalidSchedule struct {
	key        string
	scheduleID string
	testing    bool
	err        error
}

// invalidate drops the trigger and marks the row so operators see why it
// stopped firing. Other rows keep reconciling.
func (s *ReconcilerService) invalidate(ctx context.Context, in invalidSchedule) {
	delete(s.triggers, in.key)
	s.logger.WarnContext(ctx, "schedule invalid", "key", in.key, "error", in.err)

	invalid := model.RunStatusInvalid
	msg := in.err.Error()
	s.updateRunState(ctx, in.testing, core.ScheduleRunStateUpdate{
		ScheduleID:     in.scheduleID,
		LastStatus:     &invalid,
		LastError:      &msg,
		ClearNextRunAt: true,
	})
}

func (s *ReconcilerService) updateRunState(ctx context.Context, testing bool, update core.ScheduleRunStateUpdate) {
	var err error
	if testing {
		err = s.testingSchedules.UpdateRunState(ctx, update)
	} else {
		err = s.ingestionSchedules.UpdateRunState(ctx, update)
	}
	if err != nil {
		s.logger.ErrorContext(ctx, "update schedule run state",
			"schedule_id", update.ScheduleID, "error", err)
	}
}

// Tick fires every trigger due at now and advances its next firing time.
// Returns the number of triggers fired. Fire errors are logged per trigger;
// the trigger still advances so a broken schedule cannot storm the pool.
func (s *ReconcilerService) Tick(ctx context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	fired := 0
	for _, tr := range s.triggers {
		if err := ctx.Err(); err != nil {
			return fired, err
		}
		if tr.nextFire.After(now) {
			continue
		}
		if err := tr.fire(ctx); err != nil {
			s.logger.ErrorContext(ctx, "trigger fire", "key", tr.key, "error", err)
		} else {
			fired++
		}
		tr.nextFire = tr.plan.NextAfter(now)
	}
	return fired, nil
}

// Triggers reports the number of registered triggers.
func (s *ReconcilerService) Triggers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.triggers)
}

// testingSnapshot builds the canonical definition snapshot for a testing
// schedule row. Options are decoded and re-marshaled so formatting noise in
// the stored document cannot churn triggers.
func testingSnapshot(s model.TestingSchedule) (string, error) {
	opts, err := decodeOptionsDoc(s.Options)
	if err != nil {
		return "", err
	}
	raw, err := json.Marshal(map[string]any{
		"frequency": s.Frequency,
		"options":   opts,
	})
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// ingestionSnapshot builds the canonical definition snapshot for an
// ingestion schedule row. Dataset and mode are part of the definition: a
// repointed row must recreate its trigger.
func ingestionSnapshot(s model.IngestionSchedule) (string, error) {
	opts, err := decodeOptionsDoc(s.Options)
	if err != nil {
		return "", err
	}
	raw, err := json.Marshal(map[string]any{
		"dataset":   s.Dataset,
		"frequency": s.Frequency,
		"mode":      string(s.Mode),
		"options":   opts,
	})
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

func decodeOptionsDoc(raw json.RawMessage) (any, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}
