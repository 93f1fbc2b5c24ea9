// Package testutil provides testing utilities and helpers for the ingestd job store.
package testutil

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/tdxstock/ingestd/internal/core"
	"github.com/tdxstock/ingestd/internal/domain/model"
)

// IngestionScheduleBuilder provides a fluent interface for building ingestion
// schedule upsert params for testing.
type IngestionScheduleBuilder struct {
	params core.UpsertIngestionScheduleParams
}

// NewIngestionSchedule creates a new IngestionScheduleBuilder with sensible defaults.
func NewIngestionSchedule() *IngestionScheduleBuilder {
	return &IngestionScheduleBuilder{
		params: core.UpsertIngestionScheduleParams{
			ScheduleID: uuid.NewString(),
			Dataset:    "kline_daily_qfq",
			Mode:       model.IngestModeIncremental,
			Enabled:    true,
			Frequency:  "daily",
			Options:    []byte(`{"at": "17:30"}`),
		},
	}
}

// WithID sets the schedule id.
func (b *IngestionScheduleBuilder) WithID(id string) *IngestionScheduleBuilder {
	b.params.ScheduleID = id
	return b
}

// WithDataset sets the dataset.
func (b *IngestionScheduleBuilder) WithDataset(dataset string) *IngestionScheduleBuilder {
	b.params.Dataset = dataset
	return b
}

// WithMode sets the ingest mode.
func (b *IngestionScheduleBuilder) WithMode(mode model.IngestMode) *IngestionScheduleBuilder {
	b.params.Mode = mode
	return b
}

// WithEnabled sets the enabled flag.
func (b *IngestionScheduleBuilder) WithEnabled(enabled bool) *IngestionScheduleBuilder {
	b.params.Enabled = enabled
	return b
}

// WithFrequency sets the schedule frequency.
func (b *IngestionScheduleBuilder) WithFrequency(frequency string) *IngestionScheduleBuilder {
	b.params.Frequency = frequency
	return b
}

// WithOptions sets the options JSON from a string.
func (b *IngestionScheduleBuilder) WithOptions(options string) *IngestionScheduleBuilder {
	b.params.Options = []byte(options)
	return b
}

// Build returns the constructed upsert params.
func (b *IngestionScheduleBuilder) Build() core.UpsertIngestionScheduleParams {
	return b.params
}

// TestingScheduleBuilder provides a fluent interface for building testing
// schedule upsert params for testing.
type TestingScheduleBuilder struct {
	params core.UpsertTestingScheduleParams
}

// NewTestingSchedule creates a new TestingScheduleBuilder with sensible defaults.
func NewTestingSchedule() *TestingScheduleBuilder {
	return &TestingScheduleBuilder{
		params: core.UpsertTestingScheduleParams{
			ScheduleID: uuid.NewString(),
			Enabled:    true,
			Frequency:  "daily",
			Options:    []byte(`{"at": "08:45"}`),
		},
	}
}

// WithID sets the schedule id.
func (b *TestingScheduleBuilder) WithID(id string) *TestingScheduleBuilder {
	b.params.ScheduleID = id
	return b
}

// WithEnabled sets the enabled flag.
func (b *TestingScheduleBuilder) WithEnabled(enabled bool) *TestingScheduleBuilder {
	b.params.Enabled = enabled
	return b
}

// WithFrequency sets the schedule frequency.
func (b *TestingScheduleBuilder) WithFrequency(frequency string) *TestingScheduleBuilder {
	b.params.Frequency = frequency
	return b
}

// WithOptions sets the options JSON from a string.
func (b *TestingScheduleBuilder) WithOptions(options string) *TestingScheduleBuilder {
	b.params.Options = []byte(options)
	return b
}

// Build returns the constructed upsert params.
func (b *TestingScheduleBuilder) Build() core.UpsertTestingScheduleParams {
	return b.params
}

// Common schedule presets

// DailyKlineSchedule returns the incremental daily-kline schedule used across tests.
func DailyKlineSchedule() core.UpsertIngestionScheduleParams {
	return NewIngestionSchedule().Build()
}

// MinuteKlineSchedule returns an incremental minute-kline schedule.
func MinuteKlineSchedule() core.UpsertIngestionScheduleParams {
	return NewIngestionSchedule().
		WithDataset("kline_minute_raw").
		WithOptions(`{"at": "18:00"}`).
		Build()
}

// BackfillSchedule returns a manual init-mode schedule for daily klines.
func BackfillSchedule() core.UpsertIngestionScheduleParams {
	return NewIngestionSchedule().
		WithMode(model.IngestModeInit).
		WithFrequency("manual").
		WithOptions(`{"start": "20200101"}`).
		Build()
}

// Seed helpers for tables the ingestion scripts own. Runs, checkpoints,
// errors and job tasks have no Go-side writer, so tests insert rows directly.

// IngestionRunSeed describes one ingestion run row to insert.
type IngestionRunSeed struct {
	RunID      string
	Mode       model.IngestMode
	Dataset    string
	Status     model.RunStatus
	CreatedAt  time.Time
	StartedAt  *time.Time
	FinishedAt *time.Time
	Params     []byte
	Summary    []byte
}

// SeedIngestionRun inserts an ingestion run row, filling defaults for zero
// fields, and returns the run id.
func SeedIngestionRun(t TestingTB, db *sql.DB, seed IngestionRunSeed) string {
	t.Helper()

	if seed.RunID == "" {
		seed.RunID = uuid.NewString()
	}
	if seed.Mode == "" {
		seed.Mode = model.IngestModeIncremental
	}
	if seed.Status == "" {
		seed.Status = model.RunStatusSuccess
	}
	if seed.CreatedAt.IsZero() {
		seed.CreatedAt = TestTime()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := db.ExecContext(ctx, `
		INSERT INTO market.ingestion_runs (run_id, mode, dataset, status, created_at, started_at, finished_at, params, summary)
		VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6, $7, $8, $9)
	`, seed.RunID, string(seed.Mode), seed.Dataset, string(seed.Status),
		seed.CreatedAt, seed.StartedAt, seed.FinishedAt, nullJSON(seed.Params), nullJSON(seed.Summary))
	if err != nil {
		t.Fatalf("Failed to seed ingestion run: %v", err)
	}
	return seed.RunID
}

// JobTaskSeed describes one ingestion job task row to insert.
type JobTaskSeed struct {
	TaskID    string
	JobID     string
	Dataset   string
	TsCode    *string
	Status    model.RunStatus
	Progress  float64
	Retries   int
	LastError *string
	UpdatedAt time.Time
}

// SeedJobTask inserts a job task row, filling defaults for zero fields, and
// returns the task id. The referenced job must already exist.
func SeedJobTask(t TestingTB, db *sql.DB, seed JobTaskSeed) string {
	t.Helper()

	if seed.TaskID == "" {
		seed.TaskID = uuid.NewString()
	}
	if seed.Dataset == "" {
		seed.Dataset = "kline_daily_qfq"
	}
	if seed.Status == "" {
		seed.Status = model.RunStatusQueued
	}
	if seed.UpdatedAt.IsZero() {
		seed.UpdatedAt = time.Now()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := db.ExecContext(ctx, `
		INSERT INTO market.ingestion_job_tasks (task_id, job_id, dataset, ts_code, status, progress, retries, last_error, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, seed.TaskID, seed.JobID, seed.Dataset, seed.TsCode,
		string(seed.Status), seed.Progress, seed.Retries, seed.LastError, seed.UpdatedAt)
	if err != nil {
		t.Fatalf("Failed to seed job task: %v", err)
	}
	return seed.TaskID
}

// IngestionErrorSeed describes one ingestion error row to insert.
type IngestionErrorSeed struct {
	RunID   string
	Dataset string
	TsCode  *string
	ErrorAt time.Time
	Message string
	Detail  []byte
}

// SeedIngestionError inserts an ingestion error row. The referenced run must
// already exist.
func SeedIngestionError(t TestingTB, db *sql.DB, seed IngestionErrorSeed) {
	t.Helper()

	if seed.ErrorAt.IsZero() {
		seed.ErrorAt = TestTime()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := db.ExecContext(ctx, `
		INSERT INTO market.ingestion_errors (run_id, dataset, ts_code, error_at, message, detail)
		VALUES ($1, NULLIF($2, ''), $3, $4, $5, $6)
	`, seed.RunID, seed.Dataset, seed.TsCode, seed.ErrorAt, seed.Message, nullJSON(seed.Detail))
	if err != nil {
		t.Fatalf("Failed to seed ingestion error: %v", err)
	}
}

// nullJSON maps empty byte slices to NULL so JSONB columns stay null instead
// of holding an empty string.
func nullJSON(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return b
}
