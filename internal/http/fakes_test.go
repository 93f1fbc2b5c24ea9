package httpx

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/tdxstock/ingestd/internal/core"
	"github.com/tdxstock/ingestd/internal/domain/model"
	apperrors "github.com/tdxstock/ingestd/internal/errors"
)

// In-memory repository fakes backing the handler tests. Rows live in maps
// under a mutex so coordinator workers can write concurrently with test
// assertions.

type fakeTestingScheduleRepo struct {
	mu    sync.Mutex
	rows  map[string]model.TestingSchedule
	order []string
}

func newFakeTestingScheduleRepo() *fakeTestingScheduleRepo {
	return &fakeTestingScheduleRepo{rows: make(map[string]model.TestingSchedule)}
}

func (f *fakeTestingScheduleRepo) Upsert(
	_ context.Context,
	params core.UpsertTestingScheduleParams,
) (*model.TestingSchedule, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := time.Now().UTC()
	row, ok := f.rows[params.ScheduleID]
	if !ok {
		row = model.TestingSchedule{ScheduleID: params.ScheduleID, CreatedAt: now}
		f.order = append(f.order, params.ScheduleID)
	}
	row.Enabled = params.Enabled
	row.Frequency = params.Frequency
	row.Options = params.Options
	row.UpdatedAt = now
	f.rows[params.ScheduleID] = row
	out := row
	return &out, nil
}

func (f *fakeTestingScheduleRepo) GetByID(_ context.Context, id string) (*model.TestingSchedule, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.rows[id]
	if !ok {
		return nil, apperrors.NotFoundf("testing schedule %s not found", id)
	}
	out := row
	return &out, nil
}

func (f *fakeTestingScheduleRepo) List(_ context.Context) ([]model.TestingSchedule, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]model.TestingSchedule, 0, len(f.order))
	for _, id := range f.order {
		out = append(out, f.rows[id])
	}
	return out, nil
}

func (f *fakeTestingScheduleRepo) ListEnabled(ctx context.Context) ([]model.TestingSchedule, error) {
	all, _ := f.List(ctx)
	out := all[:0]
	for _, row := range all {
		if row.Enabled {
			out = append(out, row)
		}
	}
	return out, nil
}

func (f *fakeTestingScheduleRepo) SetEnabled(_ context.Context, id string, enabled bool) (*model.TestingSchedule, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.rows[id]
	if !ok {
		return nil, apperrors.NotFoundf("testing schedule %s not found", id)
	}
	row.Enabled = enabled
	row.UpdatedAt = time.Now().UTC()
	f.rows[id] = row
	out := row
	return &out, nil
}

func (f *fakeTestingScheduleRepo) UpdateRunState(_ context.Context, update core.ScheduleRunStateUpdate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.rows[update.ScheduleID]
	if !ok {
		return apperrors.NotFoundf("testing schedule %s not found", update.ScheduleID)
	}
	applyRunState(&row.LastRunAt, &row.NextRunAt, &row.LastStatus, &row.LastError, update)
	row.UpdatedAt = time.Now().UTC()
	f.rows[update.ScheduleID] = row
	return nil
}

type fakeIngestionScheduleRepo struct {
	mu    sync.Mutex
	rows  map[string]model.IngestionSchedule
	order []string
}

func newFakeIngestionScheduleRepo() *fakeIngestionScheduleRepo {
	return &fakeIngestionScheduleRepo{rows: make(map[string]model.IngestionSchedule)}
}

func (f *fakeIngestionScheduleRepo) Upsert(
	_ context.Context,
	params core.UpsertIngestionScheduleParams,
) (*model.IngestionSchedule, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := time.Now().UTC()
	row, ok := f.rows[params.ScheduleID]
	if !ok {
		row = model.IngestionSchedule{ScheduleID: params.ScheduleID, CreatedAt: now}
		f.order = append(f.order, params.ScheduleID)
	}
	row.Dataset = params.Dataset
	row.Mode = params.Mode
	row.Enabled = params.Enabled
	row.Frequency = params.Frequency
	row.Options = params.Options
	row.UpdatedAt = now
	f.rows[params.ScheduleID] = row
	out := row
	return &out, nil
}

func (f *fakeIngestionScheduleRepo) GetByID(_ context.Context, id string) (*model.IngestionSchedule, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.rows[id]
	if !ok {
		return nil, apperrors.NotFoundf("ingestion schedule %s not found", id)
	}
	out := row
	return &out, nil
}

func (f *fakeIngestionScheduleRepo) FindByTarget(
	_ context.Context,
	dataset string,
	mode model.IngestMode,
) (*model.IngestionSchedule, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, id := range f.order {
		row := f.rows[id]
		if row.Dataset == dataset && row.Mode == mode {
			out := row
			return &out, nil
		}
	}
	return nil, apperrors.NotFoundf("ingestion schedule for %s/%s not found", dataset, mode)
}

func (f *fakeIngestionScheduleRepo) List(_ context.Context) ([]model.IngestionSchedule, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]model.IngestionSchedule, 0, len(f.order))
	for _, id := range f.order {
		out = append(out, f.rows[id])
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Dataset != out[j].Dataset {
			return out[i].Dataset < out[j].Dataset
		}
		return out[i].Mode < out[j].Mode
	})
	return out, nil
}

func (f *fakeIngestionScheduleRepo) ListEnabled(ctx context.Context) ([]model.IngestionSchedule, error) {
	all, _ := f.List(ctx)
	out := all[:0]
	for _, row := range all {
		if row.Enabled {
			out = append(out, row)
		}
	}
	return out, nil
}

func (f *fakeIngestionScheduleRepo) SetEnabled(
	_ context.Context,
	id string,
	enabled bool,
) (*model.IngestionSchedule, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.rows[id]
	if !ok {
		return nil, apperrors.NotFoundf("ingestion schedule %s not found", id)
	}
	row.Enabled = enabled
	row.UpdatedAt = time.Now().UTC()
	f.rows[id] = row
	out := row
	return &out, nil
}

func (f *fakeIngestionScheduleRepo) UpdateRunState(_ context.Context, update core.ScheduleRunStateUpdate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.rows[update.ScheduleID]
	if !ok {
		return apperrors.NotFoundf("ingestion schedule %s not found", update.ScheduleID)
	}
	applyRunState(&row.LastRunAt, &row.NextRunAt, &row.LastStatus, &row.LastError, update)
	row.UpdatedAt = time.Now().UTC()
	f.rows[update.ScheduleID] = row
	return nil
}

func applyRunState(
	lastRunAt, nextRunAt **time.Time,
	lastStatus **string,
	lastError **string,
	update core.ScheduleRunStateUpdate,
) {
	if update.LastRunAt != nil {
		t := *update.LastRunAt
		*lastRunAt = &t
	}
	switch {
	case update.ClearNextRunAt:
		*nextRunAt = nil
	case update.NextRunAt != nil:
		t := *update.NextRunAt
		*nextRunAt = &t
	}
	if update.LastStatus != nil {
		s := string(*update.LastStatus)
		*lastStatus = &s
	}
	if update.LastError != nil {
		e := *update.LastError
		*lastError = &e
	}
}

type fakeTestingRunRepo struct {
	mu   sync.Mutex
	runs map[string]model.TestingRun
}

func newFakeTestingRunRepo() *fakeTestingRunRepo {
	return &fakeTestingRunRepo{runs: make(map[string]model.TestingRun)}
}

func (f *fakeTestingRunRepo) Insert(_ context.Context, params core.InsertTestingRunParams) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runs[params.RunID] = model.TestingRun{
		RunID:       params.RunID,
		ScheduleID:  params.ScheduleID,
		TriggeredBy: params.TriggeredBy,
		Status:      params.Status,
		StartedAt:   params.StartedAt,
	}
	return nil
}

func (f *fakeTestingRunRepo) Complete(_ context.Context, params core.CompleteTestingRunParams) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	run, ok := f.runs[params.RunID]
	if !ok {
		return apperrors.NotFoundf("testing run %s not found", params.RunID)
	}
	run.Status = params.Status
	run.FinishedAt = &params.FinishedAt
	f.runs[params.RunID] = run
	return nil
}

func (f *fakeTestingRunRepo) ListRecent(_ context.Context, limit int) ([]model.TestingRun, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]model.TestingRun, 0, len(f.runs))
	for _, run := range f.runs {
		out = append(out, run)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeTestingRunRepo) get(runID string) (model.TestingRun, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	run, ok := f.runs[runID]
	return run, ok
}

type fakeIngestionJobRepo struct {
	mu    sync.Mutex
	jobs  map[string]model.IngestionJob
	stats map[string]model.JobTaskStats
	tasks map[string][]model.IngestionJobTask
}

func newFakeIngestionJobRepo() *fakeIngestionJobRepo {
	return &fakeIngestionJobRepo{
		jobs:  make(map[string]model.IngestionJob),
		stats: make(map[string]model.JobTaskStats),
		tasks: make(map[string][]model.IngestionJobTask),
	}
}

func (f *fakeIngestionJobRepo) Create(_ context.Context, params core.CreateIngestionJobParams) (*model.IngestionJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	job := model.IngestionJob{
		JobID:     params.JobID,
		JobType:   params.JobType,
		Status:    params.Status,
		CreatedAt: params.CreatedAt,
	}
	f.jobs[params.JobID] = job
	out := job
	return &out, nil
}

func (f *fakeIngestionJobRepo) GetByID(_ context.Context, id string) (*model.IngestionJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	job, ok := f.jobs[id]
	if !ok {
		return nil, apperrors.NotFoundf("ingestion job %s not found", id)
	}
	out := job
	return &out, nil
}

func (f *fakeIngestionJobRepo) Finalize(_ context.Context, params core.FinalizeIngestionJobParams) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	job, ok := f.jobs[params.JobID]
	if !ok {
		return false, apperrors.NotFoundf("ingestion job %s not found", params.JobID)
	}
	if job.Status.Terminal() {
		return false, nil
	}
	job.Status = params.Status
	job.FinishedAt = &params.FinishedAt
	f.jobs[params.JobID] = job
	return true, nil
}

func (f *fakeIngestionJobRepo) TaskStats(_ context.Context, jobID string) (*model.JobTaskStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	stats := f.stats[jobID]
	out := stats
	return &out, nil
}

func (f *fakeIngestionJobRepo) ListTasks(_ context.Context, jobID string, limit int) ([]model.IngestionJobTask, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	tasks := f.tasks[jobID]
	if limit > 0 && len(tasks) > limit {
		tasks = tasks[:limit]
	}
	out := make([]model.IngestionJobTask, len(tasks))
	copy(out, tasks)
	return out, nil
}

func (f *fakeIngestionJobRepo) StatusCounts(_ context.Context) (map[string]int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	counts := make(map[string]int)
	for _, job := range f.jobs {
		counts[string(job.Status)]++
	}
	return counts, nil
}

func (f *fakeIngestionJobRepo) get(jobID string) (model.IngestionJob, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	job, ok := f.jobs[jobID]
	return job, ok
}

type fakeIngestionRunRepo struct {
	mu          sync.Mutex
	runs        []model.IngestionRun
	errors      []model.IngestionError
	checkpoints []model.IngestionCheckpoint
}

func (f *fakeIngestionRunRepo) ListRecent(
	_ context.Context,
	params core.ListIngestionRunsParams,
) ([]model.IngestionRun, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]model.IngestionRun, 0, len(f.runs))
	for _, run := range f.runs {
		if params.Dataset != "" && (run.Dataset == nil || *run.Dataset != params.Dataset) {
			continue
		}
		out = append(out, run)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if params.Limit > 0 && len(out) > params.Limit {
		out = out[:params.Limit]
	}
	return out, nil
}

func (f *fakeIngestionRunRepo) ErrorSamplesForJob(_ context.Context, _ string, limit int) ([]model.IngestionError, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := f.errors
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return append([]model.IngestionError(nil), out...), nil
}

func (f *fakeIngestionRunRepo) RecentErrors(ctx context.Context, limit int) ([]model.IngestionError, error) {
	return f.ErrorSamplesForJob(ctx, "", limit)
}

func (f *fakeIngestionRunRepo) CheckpointsForRun(_ context.Context, runID string) ([]model.IngestionCheckpoint, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]model.IngestionCheckpoint, 0, len(f.checkpoints))
	for _, cp := range f.checkpoints {
		if cp.RunID == runID {
			out = append(out, cp)
		}
	}
	return out, nil
}

func (f *fakeIngestionRunRepo) CountSince(_ context.Context, since time.Time) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, run := range f.runs {
		if run.CreatedAt.After(since) {
			n++
		}
	}
	return n, nil
}

type fakeIngestionLogRepo struct {
	mu      sync.Mutex
	entries []model.IngestionLogEntry
}

func (f *fakeIngestionLogRepo) Append(_ context.Context, params core.AppendIngestionLogParams) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, model.IngestionLogEntry{
		JobID:   params.JobID,
		TS:      params.TS,
		Level:   params.Level,
		Message: params.Message,
	})
	return nil
}

func (f *fakeIngestionLogRepo) Tail(_ context.Context, limit int) ([]model.IngestionLogEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := append([]model.IngestionLogEntry(nil), f.entries...)
	sort.Slice(out, func(i, j int) bool { return out[i].TS.After(out[j].TS) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeIngestionLogRepo) TailForJob(_ context.Context, jobID string, limit int) ([]model.IngestionLogEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]model.IngestionLogEntry, 0, len(f.entries))
	for _, entry := range f.entries {
		if entry.JobID == jobID {
			out = append(out, entry)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TS.After(out[j].TS) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type fakeProcessRunner struct {
	mu     sync.Mutex
	result model.ProcessResult
	err    error
	calls  [][]string
}

func (f *fakeProcessRunner) Run(_ context.Context, argv []string) (model.ProcessResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, append([]string(nil), argv...))
	return f.result, f.err
}

type fakeRefresher struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (f *fakeRefresher) Refresh(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.err
}

func (f *fakeRefresher) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}
