package model

import (
	"encoding/json"
	"time"
)

// TestingSchedule is a persistent definition of a recurring API testing run.
type TestingSchedule struct {
	ScheduleID string          `json:"schedule_id"           db:"schedule_id"`
	Enabled    bool            `json:"enabled"               db:"enabled"`
	Frequency  string          `json:"frequency"             db:"frequency"`
	Options    json.RawMessage `json:"options,omitempty"     db:"options"`
	LastRunAt  *time.Time      `json:"last_run_at,omitempty" db:"last_run_at"`
	NextRunAt  *time.Time      `json:"next_run_at,omitempty" db:"next_run_at"`
	LastStatus *string         `json:"last_status,omitempty" db:"last_status"`
	LastError  *string         `json:"last_error,omitempty"  db:"last_error"`
	CreatedAt  time.Time       `json:"created_at"            db:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"            db:"updated_at"`
}

// TestingRun is one execution of the API testing harness.
type TestingRun struct {
	RunID       string          `json:"run_id"                db:"run_id"`
	ScheduleID  *string         `json:"schedule_id,omitempty" db:"schedule_id"`
	TriggeredBy string          `json:"triggered_by"          db:"triggered_by"`
	Status      RunStatus       `json:"status"                db:"status"`
	StartedAt   time.Time       `json:"started_at"            db:"started_at"`
	FinishedAt  *time.Time      `json:"finished_at,omitempty" db:"finished_at"`
	Summary     json.RawMessage `json:"summary,omitempty"     db:"summary"`
	Detail      json.RawMessage `json:"detail,omitempty"      db:"detail"`
	Log         *string         `json:"log,omitempty"         db:"log"`
}

// UpsertTestingScheduleRequest is the facade payload for creating or
// replacing a testing schedule. A nil Enabled defaults to true.
type UpsertTestingScheduleRequest struct {
	ScheduleID string          `json:"schedule_id,omitempty"`
	Frequency  string          `json:"frequency"`
	Enabled    *bool           `json:"enabled,omitempty"`
	Options    json.RawMessage `json:"options,omitempty"`
}

// RunTestingRequest submits a one-off testing run.
type RunTestingRequest struct {
	TriggeredBy string          `json:"triggered_by,omitempty"`
	Options     json.RawMessage `json:"options,omitempty"`
}

// TestingParams are the recognized testing options. The stored options
// document decodes strictly: unknown keys are rejected at the API boundary
// instead of being silently dropped.
type TestingParams struct {
	// Script overrides the default testing entry point, relative to the
	// configured scripts directory unless absolute.
	Script string `json:"script,omitempty"`

	// At anchors daily and weekly frequencies to a wall-clock "HH:MM".
	// The planner consumes it; the command builder ignores it.
	At string `json:"at,omitempty"`

	BaseURL   string `json:"base_url,omitempty"`
	Codes     string `json:"codes,omitempty"`
	IndexCode string `json:"index_code,omitempty"`

	// Timeout is per-request seconds; emitted only when positive.
	Timeout float64 `json:"timeout,omitempty"`
	// BulkTimeout is emitted whenever present, zero included.
	BulkTimeout *float64 `json:"bulk_timeout,omitempty"`

	NoTasks bool `json:"no_tasks,omitempty"`
	Verbose bool `json:"verbose,omitempty"`

	// OutputPath overrides the generated results file location.
	OutputPath string `json:"output_path,omitempty"`
}

// DecodeTestingParams strictly parses a stored testing options document.
// A nil or empty document yields zero params.
func DecodeTestingParams(raw json.RawMessage) (TestingParams, error) {
	var params TestingParams
	if err := decodeStrict(raw, &params); err != nil {
		return TestingParams{}, err
	}
	return params, nil
}
