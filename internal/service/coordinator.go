// Package service provides business logic services for the ingestd job system.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tdxstock/ingestd/internal/core"
	"github.com/tdxstock/ingestd/internal/data"
	"github.com/tdxstock/ingestd/internal/domain/command"
	"github.com/tdxstock/ingestd/internal/domain/model"
	"github.com/tdxstock/ingestd/internal/domain/trigger"
	apperrors "github.com/tdxstock/ingestd/internal/errors"
	"github.com/tdxstock/ingestd/internal/observability/metrics"
	"github.com/tdxstock/ingestd/internal/observability/notify"
	"github.com/tdxstock/ingestd/internal/observability/statsd"
	"github.com/tdxstock/ingestd/internal/service/failurenotifier"
)

const (
	defaultCoordinatorWorkers = 4
	// submissionQueueFactor sizes the buffered submission channel relative
	// to the worker count.
	submissionQueueFactor = 8
)

// ErrCoordinatorStopped is returned for submissions after Shutdown began
// (or before Start).
var ErrCoordinatorStopped = errors.New("coordinator is not accepting submissions")

// CoordinatorService owns run submission and execution. Every run enters
// through a dedup-keyed submission, waits in a bounded queue, and executes
// on a fixed worker pool. Whatever happens to the external process, the
// bookkeeping rows always reach a terminal status.
type CoordinatorService struct {
	testingRuns        core.TestingRunRepository
	testingSchedules   core.TestingScheduleRepository
	ingestionSchedules core.IngestionScheduleRepository
	jobs               core.IngestionJobRepository
	logs               core.IngestionLogRepository
	processes          core.ProcessRunner
	commands           *command.Builder
	timeProvider       data.TimeProvider
	metrics            statsd.Sink
	logger             *slog.Logger
	notifier           *failurenotifier.Service

	workers int

	mu       sync.Mutex
	inFlight map[string]struct{}
	started  bool
	stopping bool

	submissions chan submission
	stopCh      chan struct{}
	wg          sync.WaitGroup
}

// CoordinatorOptions holds the dependencies for creating a CoordinatorService.
type CoordinatorOptions struct {
	TestingRuns        core.TestingRunRepository
	TestingSchedules   core.TestingScheduleRepository
	IngestionSchedules core.IngestionScheduleRepository
	Jobs               core.IngestionJobRepository
	Logs               core.IngestionLogRepository
	Processes          core.ProcessRunner
	Commands           *command.Builder

	// Workers is the pool size; defaults to 4.
	Workers      int
	TimeProvider data.TimeProvider
	Metrics      statsd.Sink
	Logger       *slog.Logger
	// FailureNotifier receives scheduled-run failures; optional.
	FailureNotifier *failurenotifier.Service
}

// NewCoordinatorService constructs a new CoordinatorService.
//
// Returns an error when a required dependency is missing. Metrics and
// Logger are optional.
func NewCoordinatorService(opts CoordinatorOptions) (*CoordinatorService, error) {
	switch {
	case opts.TestingRuns == nil:
		return nil, errors.New("TestingRunRepository is required")
	case opts.TestingSchedules == nil:
		return nil, errors.New("TestingScheduleRepository is required")
	case opts.IngestionSchedules == nil:
		return nil, errors.New("IngestionScheduleRepository is required")
	case opts.Jobs == nil:
		return nil, errors.New("IngestionJobRepository is required")
	case opts.Logs == nil:
		return nil, errors.New("IngestionLogRepository is required")
	case opts.Processes == nil:
		return nil, errors.New("ProcessRunner is required")
	case opts.Commands == nil:
		return nil, errors.New("command Builder is required")
	}

	if opts.TimeProvider == nil {
		opts.TimeProvider = &data.RealTimeProvider{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = defaultCoordinatorWorkers
	}

	return &CoordinatorService{
		testingRuns:        opts.TestingRuns,
		testingSchedules:   opts.TestingSchedules,
		ingestionSchedules: opts.IngestionSchedules,
		jobs:               opts.Jobs,
		logs:               opts.Logs,
		processes:          opts.Processes,
		commands:           opts.Commands,
		timeProvider:       opts.TimeProvider,
		metrics:            opts.Metrics,
		logger:             opts.Logger,
		notifier:           opts.FailureNotifier,
		workers:            workers,
		inFlight:           make(map[string]struct{}),
		submissions:        make(chan submission, workers*submissionQueueFactor),
		stopCh:             make(chan struct{}),
	}, nil
}

// MustNewCoordinatorService constructs a new CoordinatorService and panics
// on error.
func MustNewCoordinatorService(opts CoordinatorOptions) *CoordinatorService {
	svc, err := NewCoordinatorService(opts)
	if err != nil {
		panic(err) //nolint:forbidigo // Must constructor fails fast when dependencies are invalid during startup
	}
	return svc
}

// submission is one accepted unit of work. The key is held from acceptance
// until finish returns, which is what makes duplicate submissions cheap to
// reject.
type submission struct {
	key    string
	kind   string
	task   core.Task
	detail runDetail
	finish func(ctx context.Context, outcome model.TaskOutcome)
}

// runDetail identifies a submission for failure notifications.
type runDetail struct {
	runID       string
	dataset     string
	mode        string
	jobID       string
	triggeredBy string
}

// Start launches the worker pool. Idempotent; workers run until Shutdown.
// The context bounds the lifetime of in-flight processes.
func (s *CoordinatorService) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.started = true

	s.logger.InfoContext(ctx, "starting run coordinator", "workers", s.workers)
	for i := 0; i < s.workers; i++ {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.workerLoop(ctx)
		}()
	}
}

// Shutdown stops accepting submissions, drains the queue, and waits for
// in-flight runs up to the context deadline.
func (s *CoordinatorService) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if !s.started || s.stopping {
		s.mu.Unlock()
		return nil
	}
	s.stopping = true
	close(s.stopCh)
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("coordinator shutdown: %w", ctx.Err())
	}
}

func (s *CoordinatorService) workerLoop(ctx context.Context) {
	for {
		select {
		case sub := <-s.submissions:
			s.process(ctx, sub)
		case <-s.stopCh:
			s.drain(ctx)
			return
		case <-ctx.Done():
			return
		}
	}
}

// drain processes whatever was accepted before shutdown began.
func (s *CoordinatorService) drain(ctx context.Context) {
	for {
		select {
		case sub := <-s.submissions:
			s.process(ctx, sub)
		default:
			return
		}
	}
}

func (s *CoordinatorService) process(ctx context.Context, sub submission) {
	defer s.release(sub.key)

	start := time.Now()
	outcome := s.runTask(ctx, sub)
	sub.finish(ctx, outcome)
	s.notifyRunFailure(ctx, sub, outcome)

	metrics.EmitRunLifecycle(s.metrics, metrics.RunMetric{
		Kind:     sub.kind,
		Status:   string(outcome.Status),
		Duration: time.Since(start),
	})
}

// notifyRunFailure pushes a failed outcome to the failure notifier, when one
// is configured. Delivery happens after the terminal writes so the alert
// never races the row it points at.
func (s *CoordinatorService) notifyRunFailure(ctx context.Context, sub submission, outcome model.TaskOutcome) {
	if s.notifier == nil || !s.notifier.Enabled() {
		return
	}
	if outcome.Status != model.RunStatusFailed {
		return
	}

	errMsg, errClass := outcomeError(outcome)

	s.notifier.NotifyRunFailure(ctx, notify.RunFailurePayload{
		RunID:       sub.detail.runID,
		Kind:        sub.kind,
		Dataset:     sub.detail.dataset,
		Mode:        sub.detail.mode,
		JobID:       sub.detail.jobID,
		TriggeredBy: sub.detail.triggeredBy,
		Error:       errMsg,
		ErrorClass:  errClass,
		OccurredAt:  s.timeProvider.Now(),
	})
}

// outcomeError derives the notification error text and class from a failed
// outcome. Harness failures carry their own message; script failures report
// the exit code.
func outcomeError(outcome model.TaskOutcome) (msg, class string) {
	if m, ok := harnessError(outcome); ok {
		return m, "harness"
	}
	if rc, ok := outcome.Summary["returncode"]; ok {
		return fmt.Sprintf("script exited with code %v", rc), "script"
	}
	return "run failed", "script"
}

// runTask executes the task, converting a panic into a failed outcome so
// the completion hook still records terminal state.
func (s *CoordinatorService) runTask(ctx context.Context, sub submission) (outcome model.TaskOutcome) {
	defer func() {
		if rec := recover(); rec != nil {
			s.logger.ErrorContext(ctx, "run panicked", "key", sub.key, "panic", rec)
			outcome = harnessFailure(fmt.Errorf("panic: %v", rec))
		}
	}()
	return sub.task.Run(ctx)
}

// tryAcquire claims a dedup key. Callers that fail to enqueue must release.
func (s *CoordinatorService) tryAcquire(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.inFlight[key]; exists {
		return false
	}
	s.inFlight[key] = struct{}{}
	return true
}

func (s *CoordinatorService) release(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inFlight, key)
}

// InFlight reports whether a dedup key currently holds a queued or running
// submission.
func (s *CoordinatorService) InFlight(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, exists := s.inFlight[key]
	return exists
}

func (s *CoordinatorService) accepting() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.started && !s.stopping
}

// submit claims the key and enqueues the task. Returns false with no error
// when the key is already in flight.
func (s *CoordinatorService) submit(ctx context.Context, sub submission) (bool, error) {
	if !s.accepting() {
		return false, ErrCoordinatorStopped
	}
	if !s.tryAcquire(sub.key) {
		s.logger.InfoContext(ctx, "submission skipped, already in flight", "key", sub.key)
		if s.metrics != nil {
			s.metrics.Count("runs.skipped", 1, map[string]string{"kind": sub.kind})
		}
		return false, nil
	}

	select {
	case s.submissions <- sub:
		if s.metrics != nil {
			s.metrics.Count("runs.submitted", 1, map[string]string{"kind": sub.kind})
		}
		return true, nil
	case <-s.stopCh:
		s.release(sub.key)
		return false, ErrCoordinatorStopped
	case <-ctx.Done():
		s.release(sub.key)
		return false, ctx.Err()
	}
}

// TestingKey returns the dedup key for a scheduled testing submission.
func TestingKey(scheduleID string) string { return "testing:" + scheduleID }

// IngestionKey returns the dedup key for a scheduled ingestion submission.
func IngestionKey(dataset string, mode model.IngestMode) string {
	return fmt.Sprintf("ingestion:%s:%s", dataset, mode)
}

// RunTestingNow submits a one-off testing run. The dedup key embeds the
// fresh run id, so manual runs never collide with anything.
func (s *CoordinatorService) RunTestingNow(
	ctx context.Context,
	triggeredBy string,
	options json.RawMessage,
) (string, error) {
	params, err := model.DecodeTestingParams(options)
	if err != nil {
		return "", apperrors.Validationf("invalid testing options: %v", err)
	}
	if triggeredBy == "" {
		triggeredBy = model.TriggeredByManual
	}

	runID := uuid.NewString()
	task := &testingTask{
		svc:         s,
		runID:       runID,
		triggeredBy: triggeredBy,
		params:      params,
	}
	if _, err := s.submit(ctx, submission{
		key:    TestingKey(runID),
		kind:   kindTesting,
		task:   task,
		detail: runDetail{runID: runID, triggeredBy: triggeredBy},
		finish: task.finish,
	}); err != nil {
		return "", err
	}
	return runID, nil
}

// RunTestingForSchedule submits an immediate run of an existing testing
// schedule under its scheduled dedup key. If the schedule is already in
// flight the submission is skipped and the fresh run id is returned anyway;
// the caller can observe the actual run through the runs listing.
func (s *CoordinatorService) RunTestingForSchedule(ctx context.Context, scheduleID string) (string, error) {
	sched, err := s.testingSchedules.GetByID(ctx, scheduleID)
	if err != nil {
		return "", err
	}
	params, err := model.DecodeTestingParams(sched.Options)
	if err != nil {
		return "", apperrors.Validationf("invalid testing options: %v", err)
	}

	runID := uuid.NewString()
	task := &testingTask{
		svc:         s,
		runID:       runID,
		scheduleID:  &sched.ScheduleID,
		triggeredBy: model.TriggeredByManual,
		params:      params,
	}
	if _, err := s.submit(ctx, submission{
		key:    TestingKey(sched.ScheduleID),
		kind:   kindTesting,
		task:   task,
		detail: runDetail{runID: runID, triggeredBy: model.TriggeredByManual},
		finish: task.finish,
	}); err != nil {
		return "", err
	}

	s.markQueued(ctx, queuedUpdate{
		scheduleID: sched.ScheduleID,
		frequency:  sched.Frequency,
		at:         params.At,
		testing:    true,
	})
	return runID, nil
}

// FireScheduledTesting is the trigger callback for a testing schedule. A
// firing that lands while the previous run is still going is skipped.
func (s *CoordinatorService) FireScheduledTesting(ctx context.Context, sched model.TestingSchedule) error {
	params, err := model.DecodeTestingParams(sched.Options)
	if err != nil {
		return apperrors.Validationf("invalid testing options: %v", err)
	}

	runID := uuid.NewString()
	task := &testingTask{
		svc:         s,
		runID:       runID,
		scheduleID:  &sched.ScheduleID,
		triggeredBy: model.TriggeredBySchedule,
		params:      params,
	}
	submitted, err := s.submit(ctx, submission{
		key:    TestingKey(sched.ScheduleID),
		kind:   kindTesting,
		task:   task,
		detail: runDetail{runID: runID, triggeredBy: model.TriggeredBySchedule},
		finish: task.finish,
	})
	if err != nil {
		return err
	}
	if !submitted {
		return nil
	}

	now := s.timeProvider.Now()
	s.markQueued(ctx, queuedUpdate{
		scheduleID: sched.ScheduleID,
		frequency:  sched.Frequency,
		at:         params.At,
		lastRunAt:  &now,
		testing:    true,
	})
	return nil
}

// RunIngestionParams groups inputs for a one-off ingestion submission.
type RunIngestionParams struct {
	Dataset     string
	Mode        model.IngestMode
	TriggeredBy string
	Options     json.RawMessage
	// JobID links the run to a pre-created ingestion job; the coordinator
	// finalizes that job when the script exits.
	JobID string
}

// manualIngestionTarget validates a one-off submission and resolves its
// target, including the command-synthesis check that rejects datasets with
// no script.
func (s *CoordinatorService) manualIngestionTarget(params RunIngestionParams) (model.IngestionTarget, error) {
	if params.Dataset == "" {
		return model.IngestionTarget{}, apperrors.ValidationField("dataset", "dataset is required and cannot be empty")
	}
	if !params.Mode.Valid() {
		return model.IngestionTarget{}, apperrors.ValidationField("mode", "mode must be one of: init, incremental")
	}

	target, err := model.DecodeIngestionOptions(params.Dataset, params.Mode, params.Options)
	if err != nil {
		return model.IngestionTarget{}, apperrors.Validationf("invalid ingestion options: %v", err)
	}
	if params.JobID != "" {
		target = target.WithJobID(params.JobID)
	}
	if _, err := s.commands.Ingestion(target); err != nil {
		return model.IngestionTarget{}, apperrors.Validationf("invalid ingestion target: %v", err)
	}
	return target, nil
}

// RunIngestionNow submits a one-off ingestion run for a dataset and mode.
func (s *CoordinatorService) RunIngestionNow(ctx context.Context, params RunIngestionParams) (string, error) {
	target, err := s.manualIngestionTarget(params)
	if err != nil {
		return "", err
	}
	triggeredBy := params.TriggeredBy
	if triggeredBy == "" {
		triggeredBy = model.TriggeredByManual
	}

	runID := uuid.NewString()
	task := &ingestionTask{
		svc:         s,
		runID:       runID,
		triggeredBy: triggeredBy,
		jobID:       params.JobID,
		target:      target,
	}
	if _, err := s.submit(ctx, submission{
		key:  "ingestion-manual:" + runID,
		kind: kindIngestion,
		task: task,
		detail: runDetail{
			runID:       runID,
			dataset:     target.Dataset,
			mode:        string(target.Mode),
			jobID:       params.JobID,
			triggeredBy: triggeredBy,
		},
		finish: task.finish,
	}); err != nil {
		return "", err
	}
	return runID, nil
}

// RunIngestionWithJob pre-creates a queued ingestion job row and submits a
// one-off run carrying its id. The job is pollable immediately, before the
// script starts, and the coordinator finalizes it when the script exits.
func (s *CoordinatorService) RunIngestionWithJob(ctx context.Context, params RunIngestionParams) (runID, jobID string, err error) {
	// Validate before touching the store so a bad request never leaves an
	// orphaned job row behind.
	if _, err := s.manualIngestionTarget(params); err != nil {
		return "", "", err
	}

	jobID = uuid.NewString()
	if _, err := s.jobs.Create(ctx, core.CreateIngestionJobParams{
		JobID:     jobID,
		JobType:   params.Mode,
		Status:    model.RunStatusQueued,
		CreatedAt: s.timeProvider.Now(),
	}); err != nil {
		return "", "", fmt.Errorf("create ingestion job: %w", err)
	}

	params.JobID = jobID
	runID, err = s.RunIngestionNow(ctx, params)
	if err != nil {
		return "", "", err
	}
	return runID, jobID, nil
}

// RunIngestionForSchedule submits an immediate run of an existing ingestion
// schedule under its scheduled (dataset, mode) dedup key.
func (s *CoordinatorService) RunIngestionForSchedule(ctx context.Context, scheduleID string) (string, error) {
	sched, err := s.ingestionSchedules.GetByID(ctx, scheduleID)
	if err != nil {
		return "", err
	}
	target, err := model.DecodeIngestionOptions(sched.Dataset, sched.Mode, sched.Options)
	if err != nil {
		return "", apperrors.Validationf("invalid ingestion options: %v", err)
	}
	if _, err := s.commands.Ingestion(target); err != nil {
		return "", apperrors.Validationf("invalid ingestion target: %v", err)
	}

	runID := uuid.NewString()
	task := &ingestionTask{
		svc:         s,
		runID:       runID,
		scheduleID:  &sched.ScheduleID,
		triggeredBy: model.TriggeredByManual,
		target:      target,
	}
	if _, err := s.submit(ctx, submission{
		key:  IngestionKey(sched.Dataset, sched.Mode),
		kind: kindIngestion,
		task: task,
		detail: runDetail{
			runID:       runID,
			dataset:     sched.Dataset,
			mode:        string(sched.Mode),
			triggeredBy: model.TriggeredByManual,
		},
		finish: task.finish,
	}); err != nil {
		return "", err
	}

	s.markQueued(ctx, queuedUpdate{
		scheduleID: sched.ScheduleID,
		frequency:  sched.Frequency,
		at:         target.At,
	})
	return runID, nil
}

// FireScheduledIngestion is the trigger callback for an ingestion schedule.
func (s *CoordinatorService) FireScheduledIngestion(ctx context.Context, sched model.IngestionSchedule) error {
	target, err := model.DecodeIngestionOptions(sched.Dataset, sched.Mode, sched.Options)
	if err != nil {
		return apperrors.Validationf("invalid ingestion options: %v", err)
	}

	runID := uuid.NewString()
	task := &ingestionTask{
		svc:         s,
		runID:       runID,
		scheduleID:  &sched.ScheduleID,
		triggeredBy: model.TriggeredBySchedule,
		target:      target,
	}
	submitted, err := s.submit(ctx, submission{
		key:  IngestionKey(sched.Dataset, sched.Mode),
		kind: kindIngestion,
		task: task,
		detail: runDetail{
			runID:       runID,
			dataset:     sched.Dataset,
			mode:        string(sched.Mode),
			triggeredBy: model.TriggeredBySchedule,
		},
		finish: task.finish,
	})
	if err != nil {
		return err
	}
	if !submitted {
		return nil
	}

	now := s.timeProvider.Now()
	s.markQueued(ctx, queuedUpdate{
		scheduleID: sched.ScheduleID,
		frequency:  sched.Frequency,
		at:         target.At,
		lastRunAt:  &now,
	})
	return nil
}

// queuedUpdate carries the best-effort schedule write performed at submit
// time: last_status queued, next fire recomputed from the plan, and, for
// scheduled firings, last_run_at.
type queuedUpdate struct {
	scheduleID string
	frequency  string
	at         string
	lastRunAt  *time.Time
	testing    bool
}

func (s *CoordinatorService) markQueued(ctx context.Context, u queuedUpdate) {
	queued := model.RunStatusQueued
	update := core.ScheduleRunStateUpdate{
		ScheduleID: u.scheduleID,
		LastRunAt:  u.lastRunAt,
		LastStatus: &queued,
	}
	if plan, err := trigger.ParseFrequency(u.frequency, u.at); err == nil && plan != nil {
		next := plan.NextAfter(s.timeProvider.Now())
		update.NextRunAt = &next
	}

	var err error
	if u.testing {
		err = s.testingSchedules.UpdateRunState(ctx, update)
	} else {
		err = s.ingestionSchedules.UpdateRunState(ctx, update)
	}
	if err != nil {
		s.logger.ErrorContext(ctx, "mark schedule queued", "schedule_id", u.scheduleID, "error", err)
	}
}

const (
	kindTesting   = "testing"
	kindIngestion = "ingestion"
)

// harnessFailure is the outcome shape for failures of the harness itself:
// spawn errors, store errors before launch, panics. The error message lands
// in the summary so operators see it next to script-reported summaries.
func harnessFailure(err error) model.TaskOutcome {
	return model.TaskOutcome{
		Status:  model.RunStatusFailed,
		Summary: map[string]any{"error": err.Error()},
	}
}

// harnessError extracts the harness failure message from an outcome, when
// present.
func harnessError(outcome model.TaskOutcome) (string, bool) {
	if outcome.Status != model.RunStatusFailed {
		return "", false
	}
	msg, ok := outcome.Summary["error"].(string)
	return msg, ok && msg != ""
}

// testingTask runs the API testing harness once and records the run row.
type testingTask struct {
	svc         *CoordinatorService
	runID       string
	scheduleID  *string
	triggeredBy string
	params      model.TestingParams

	startedAt time.Time
	inserted  bool
}

func (t *testingTask) Run(ctx context.Context) model.TaskOutcome {
	t.startedAt = t.svc.timeProvider.Now()

	if err := t.svc.testingRuns.Insert(ctx, core.InsertTestingRunParams{
		RunID:       t.runID,
		ScheduleID:  t.scheduleID,
		TriggeredBy: t.triggeredBy,
		Status:      model.RunStatusRunning,
		StartedAt:   t.startedAt,
	}); err != nil {
		return harnessFailure(fmt.Errorf("insert testing run: %w", err))
	}
	t.inserted = true

	outputPath := t.svc.commands.TestingOutputPath(t.params, t.runID)
	argv := t.svc.commands.Testing(t.params, outputPath)

	result, err := t.svc.processes.Run(ctx, argv)
	if err != nil {
		return harnessFailure(fmt.Errorf("launch testing script: %w", err))
	}

	summary := map[string]any{"returncode": result.ExitCode}
	detail := map[string]any{"command": argv}
	mergeTestingResults(outputPath, summary, detail)

	return model.TaskOutcome{
		Status:  result.Status(),
		Summary: summary,
		Detail:  detail,
		Log:     result.Output,
	}
}

// finish drives the run row and the linked schedule to terminal state. Store
// failures are logged and the remaining writes still attempted.
func (t *testingTask) finish(ctx context.Context, outcome model.TaskOutcome) {
	now := t.svc.timeProvider.Now()
	if t.startedAt.IsZero() {
		t.startedAt = now
	}

	if t.inserted {
		if err := t.svc.testingRuns.Complete(ctx, core.CompleteTestingRunParams{
			RunID:      t.runID,
			Status:     outcome.Status,
			FinishedAt: now,
			Summary:    outcome.Summary,
			Detail:     outcome.Detail,
			Log:        outcome.Log,
		}); err != nil {
			t.svc.logger.ErrorContext(ctx, "complete testing run", "run_id", t.runID, "error", err)
		}
	}

	if t.scheduleID == nil {
		return
	}
	update := core.ScheduleRunStateUpdate{
		ScheduleID: *t.scheduleID,
		LastRunAt:  &t.startedAt,
		LastStatus: &outcome.Status,
	}
	if msg, ok := harnessError(outcome); ok {
		update.LastError = &msg
	}
	if err := t.svc.testingSchedules.UpdateRunState(ctx, update); err != nil {
		t.svc.logger.ErrorContext(ctx, "update testing schedule", "schedule_id", *t.scheduleID, "error", err)
	}
}

// mergeTestingResults folds the harness results file into the run summary.
// The file is optional; a malformed file marks the detail but never fails
// the run.
func mergeTestingResults(path string, summary, detail map[string]any) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return
	}
	detail["results_path"] = path

	var doc struct {
		Summary map[string]any `json:"summary"`
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		detail["summary_error"] = err.Error()
		return
	}
	for k, v := range doc.Summary {
		summary[k] = v
	}
}

// ingestionTask launches an ingestion script once. The script owns its own
// run rows; the task's run id is a correlation handle for the log stream.
type ingestionTask struct {
	svc         *CoordinatorService
	runID       string
	scheduleID  *string
	triggeredBy string
	jobID       string
	target      model.IngestionTarget

	startedAt time.Time
}

func (t *ingestionTask) Run(ctx context.Context) model.TaskOutcome {
	t.startedAt = t.svc.timeProvider.Now()

	argv, err := t.svc.commands.Ingestion(t.target)
	if err != nil {
		return harnessFailure(fmt.Errorf("build ingestion command: %w", err))
	}

	result, err := t.svc.processes.Run(ctx, argv)
	if err != nil {
		outcome := harnessFailure(fmt.Errorf("launch ingestion script: %w", err))
		outcome.Detail = map[string]any{"command": argv}
		outcome.Log = result.Output
		return outcome
	}

	return model.TaskOutcome{
		Status: result.Status(),
		Summary: map[string]any{
			"returncode": result.ExitCode,
			"dataset":    t.target.Dataset,
			"mode":       string(t.target.Mode),
		},
		Detail: map[string]any{"command": argv},
		Log:    result.Output,
	}
}

func (t *ingestionTask) finish(ctx context.Context, outcome model.TaskOutcome) {
	now := t.svc.timeProvider.Now()
	if t.startedAt.IsZero() {
		t.startedAt = now
	}

	harnessMsg, harnessFailed := harnessError(outcome)

	if t.scheduleID != nil {
		update := core.ScheduleRunStateUpdate{
			ScheduleID: *t.scheduleID,
			LastRunAt:  &t.startedAt,
			LastStatus: &outcome.Status,
		}
		if harnessFailed {
			update.LastError = &harnessMsg
		}
		if err := t.svc.ingestionSchedules.UpdateRunState(ctx, update); err != nil {
			t.svc.logger.ErrorContext(ctx, "update ingestion schedule", "schedule_id", *t.scheduleID, "error", err)
		}
	}

	if t.jobID != "" {
		changed, err := t.svc.jobs.Finalize(ctx, core.FinalizeIngestionJobParams{
			JobID:      t.jobID,
			Status:     outcome.Status,
			FinishedAt: now,
			Summary:    outcome.Summary,
		})
		if err != nil {
			t.svc.logger.ErrorContext(ctx, "finalize ingestion job", "job_id", t.jobID, "error", err)
		} else if !changed {
			t.svc.logger.DebugContext(ctx, "ingestion job already terminal", "job_id", t.jobID)
		}
	}

	doc := ingestionLogDoc{
		RunID:       t.runID,
		ScheduleID:  t.scheduleID,
		TriggeredBy: t.triggeredBy,
		Status:      outcome.Status,
		Summary:     outcome.Summary,
		Detail:      outcome.Detail,
		Error:       harnessMsg,
		Logs:        outcome.Log,
	}
	level := "INFO"
	if outcome.Status != model.RunStatusSuccess {
		level = "ERROR"
	}
	message, err := json.Marshal(doc)
	if err != nil {
		message = []byte(fmt.Sprintf(`{"run_id":%q,"status":%q}`, t.runID, outcome.Status))
	}
	if err := t.svc.logs.Append(ctx, core.AppendIngestionLogParams{
		JobID:   t.runID,
		TS:      t.startedAt,
		Level:   level,
		Message: string(message),
	}); err != nil {
		t.svc.logger.ErrorContext(ctx, "append ingestion log", "run_id", t.runID, "error", err)
	}
}

// ingestionLogDoc is the structured message written to the shared ingestion
// log stream for every coordinator-launched ingestion run.
type ingestionLogDoc struct {
	RunID       string          `json:"run_id"`
	ScheduleID  *string         `json:"schedule_id,omitempty"`
	TriggeredBy string          `json:"triggered_by"`
	Status      model.RunStatus `json:"status"`
	Summary     map[string]any  `json:"summary,omitempty"`
	Detail      map[string]any  `json:"detail,omitempty"`
	Error       string          `json:"error,omitempty"`
	Logs        string          `json:"logs,omitempty"`
}
