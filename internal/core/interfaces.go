// Package core defines the ports between the service layer and the data
// layer (hexagonal architecture). Services depend on these interfaces,
// never on concrete repositories.
package core

import (
	"context"
	"time"

	"github.com/tdxstock/ingestd/internal/domain/model"
)

// UpsertTestingScheduleParams groups inputs for a testing schedule upsert.
type UpsertTestingScheduleParams struct {
	ScheduleID string
	Enabled    bool
	Frequency  string
	Options    []byte
}

// UpsertIngestionScheduleParams groups inputs for an ingestion schedule upsert.
type UpsertIngestionScheduleParams struct {
	ScheduleID string
	Dataset    string
	Mode       model.IngestMode
	Enabled    bool
	Frequency  string
	Options    []byte
}

// ScheduleRunStateUpdate names the mutable run-tracking columns of a
// schedule row. Nil fields are left unchanged; updated_at always advances.
// ClearNextRunAt nulls next_run_at (for manual frequencies) and wins over
// NextRunAt.
type ScheduleRunStateUpdate struct {
	ScheduleID     string
	LastRunAt      *time.Time
	NextRunAt      *time.Time
	ClearNextRunAt bool
	LastStatus     *model.RunStatus
	LastError      *string
}

// TestingScheduleRepository defines the interface for testing schedule rows.
type TestingScheduleRepository interface {
	Upsert(ctx context.Context, params UpsertTestingScheduleParams) (*model.TestingSchedule, error)
	GetByID(ctx context.Context, id string) (*model.TestingSchedule, error)
	List(ctx context.Context) ([]model.TestingSchedule, error)
	ListEnabled(ctx context.Context) ([]model.TestingSchedule, error)
	SetEnabled(ctx context.Context, id string, enabled bool) (*model.TestingSchedule, error)
	UpdateRunState(ctx context.Context, update ScheduleRunStateUpdate) error
}

// IngestionScheduleRepository defines the interface for ingestion schedule rows.
type IngestionScheduleRepository interface {
	Upsert(ctx context.Context, params UpsertIngestionScheduleParams) (*model.IngestionSchedule, error)
	GetByID(ctx context.Context, id string) (*model.IngestionSchedule, error)
	// FindByTarget resolves the unique (dataset, mode) row; NotFound when absent.
	FindByTarget(ctx context.Context, dataset string, mode model.IngestMode) (*model.IngestionSchedule, error)
	List(ctx context.Context) ([]model.IngestionSchedule, error)
	ListEnabled(ctx context.Context) ([]model.IngestionSchedule, error)
	SetEnabled(ctx context.Context, id string, enabled bool) (*model.IngestionSchedule, error)
	UpdateRunState(ctx context.Context, update ScheduleRunStateUpdate) error
}

// InsertTestingRunParams groups inputs for recording a started testing run.
type InsertTestingRunParams struct {
	RunID       string
	ScheduleID  *string
	TriggeredBy string
	Status      model.RunStatus
	StartedAt   time.Time
}

// CompleteTestingRunParams carries the terminal state of a testing run.
type CompleteTestingRunParams struct {
	RunID      string
	Status     model.RunStatus
	FinishedAt time.Time
	Summary    map[string]any
	Detail     map[string]any
	Log        string
}

// TestingRunRepository defines the interface for testing run rows.
type TestingRunRepository interface {
	Insert(ctx context.Context, params InsertTestingRunParams) error
	Complete(ctx context.Context, params CompleteTestingRunParams) error
	ListRecent(ctx context.Context, limit int) ([]model.TestingRun, error)
}

// CreateIngestionJobParams groups inputs for pre-creating a job row.
type CreateIngestionJobParams struct {
	JobID     string
	JobType   model.IngestMode
	Status    model.RunStatus
	CreatedAt time.Time
}

// FinalizeIngestionJobParams carries the coordinator's terminal write for a
// job. Summary entries merge into the stored summary (numeric values add,
// everything else overwrites) and the status write is guarded so a terminal
// status already recorded by the script is never clobbered.
type FinalizeIngestionJobParams struct {
	JobID      string
	Status     model.RunStatus
	FinishedAt time.Time
	Summary    map[string]any
}

// IngestionJobRepository defines the interface for job and task rows.
type IngestionJobRepository interface {
	Create(ctx context.Context, params CreateIngestionJobParams) (*model.IngestionJob, error)
	GetByID(ctx context.Context, id string) (*model.IngestionJob, error)
	// Finalize reports whether the guarded status write changed the row.
	Finalize(ctx context.Context, params FinalizeIngestionJobParams) (bool, error)
	TaskStats(ctx context.Context, jobID string) (*model.JobTaskStats, error)
	ListTasks(ctx context.Context, jobID string, limit int) ([]model.IngestionJobTask, error)
	StatusCounts(ctx context.Context) (map[string]int, error)
}

// ListIngestionRunsParams filters the recent-runs listing.
type ListIngestionRunsParams struct {
	Dataset string
	Limit   int
}

// IngestionRunRepository reads the script-written run, error, and
// checkpoint rows.
type IngestionRunRepository interface {
	ListRecent(ctx context.Context, params ListIngestionRunsParams) ([]model.IngestionRun, error)
	// ErrorSamplesForJob joins errors through runs whose params carry the job id.
	ErrorSamplesForJob(ctx context.Context, jobID string, limit int) ([]model.IngestionError, error)
	RecentErrors(ctx context.Context, limit int) ([]model.IngestionError, error)
	CheckpointsForRun(ctx context.Context, runID string) ([]model.IngestionCheckpoint, error)
	CountSince(ctx context.Context, since time.Time) (int, error)
}

// AppendIngestionLogParams groups inputs for one ingestion log line.
type AppendIngestionLogParams struct {
	JobID   string
	TS      time.Time
	Level   string
	Message string
}

// IngestionLogRepository defines the interface for the shared ingestion
// log stream.
type IngestionLogRepository interface {
	Append(ctx context.Context, params AppendIngestionLogParams) error
	Tail(ctx context.Context, limit int) ([]model.IngestionLogEntry, error)
	TailForJob(ctx context.Context, jobID string, limit int) ([]model.IngestionLogEntry, error)
}

// ProcessRunner launches one external process and waits for it, returning
// the exit code and combined stdout/stderr. A non-zero exit is not an
// error; errors mean the process could not be launched or waited on.
type ProcessRunner interface {
	Run(ctx context.Context, argv []string) (model.ProcessResult, error)
}

// Task is the uniform unit the coordinator's worker pool executes. Run
// never returns an error; failures are encoded in the outcome so every
// task kind shares the same terminal-state handling.
type Task interface {
	Run(ctx context.Context) model.TaskOutcome
}

// DeleteOldRunsParams groups parameters for the retention delete operations.
type DeleteOldRunsParams struct {
	Status    model.RunStatus
	MaxAge    time.Duration
	BatchSize int
}

// ReaperRepository defines the interface for run cleanup operations.
type ReaperRepository interface {
	// FailStaleTestingRuns marks running testing runs older than maxAge as
	// failed. Processes up to batchSize rows per call to prevent long locks.
	// Returns the number of runs marked as failed.
	FailStaleTestingRuns(ctx context.Context, maxAge time.Duration, batchSize int) (int64, error)

	// FailStaleIngestionJobs marks queued and running ingestion jobs older
	// than maxAge as failed. Processes up to batchSize rows per call.
	FailStaleIngestionJobs(ctx context.Context, maxAge time.Duration, batchSize int) (int64, error)

	// DeleteOldTestingRuns deletes testing runs with the given status older
	// than maxAge. Processes up to batchSize rows per call.
	DeleteOldTestingRuns(ctx context.Context, params DeleteOldRunsParams) (int64, error)

	// DeleteOldIngestionJobs deletes ingestion jobs with the given status
	// older than maxAge. Task rows cascade with the job.
	DeleteOldIngestionJobs(ctx context.Context, params DeleteOldRunsParams) (int64, error)

	// DeleteOldIngestionLogs deletes shared log lines older than maxAge.
	DeleteOldIngestionLogs(ctx context.Context, maxAge time.Duration, batchSize int) (int64, error)
}
