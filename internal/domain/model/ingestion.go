// Package model defines the core data types and structures used throughout
// the ingestd job store.
package model

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// IngestionSchedule is a persistent definition of a recurring ingestion run
// for one (dataset, mode) pair.
type IngestionSchedule struct {
	ScheduleID string          `json:"schedule_id"           db:"schedule_id"`
	Dataset    string          `json:"dataset"               db:"dataset"`
	Mode       IngestMode      `json:"mode"                  db:"mode"`
	Frequency  string          `json:"frequency"             db:"frequency"`
	Enabled    bool            `json:"enabled"               db:"enabled"`
	Options    json.RawMessage `json:"options,omitempty"     db:"options"`
	LastRunAt  *time.Time      `json:"last_run_at,omitempty" db:"last_run_at"`
	NextRunAt  *time.Time      `json:"next_run_at,omitempty" db:"next_run_at"`
	LastStatus *string         `json:"last_status,omitempty" db:"last_status"`
	LastError  *string         `json:"last_error,omitempty"  db:"last_error"`
	CreatedAt  time.Time       `json:"created_at"            db:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"            db:"updated_at"`
}

// UpsertIngestionScheduleRequest is the facade payload for creating or
// replacing an ingestion schedule. A nil Enabled defaults to true.
type UpsertIngestionScheduleRequest struct {
	ScheduleID string          `json:"schedule_id,omitempty"`
	Dataset    string          `json:"dataset"`
	Mode       IngestMode      `json:"mode"`
	Frequency  string          `json:"frequency"`
	Enabled    *bool           `json:"enabled,omitempty"`
	Options    json.RawMessage `json:"options,omitempty"`
}

// RunIngestionRequest submits a one-off ingestion run.
type RunIngestionRequest struct {
	Dataset     string          `json:"dataset"`
	Mode        IngestMode      `json:"mode"`
	TriggeredBy string          `json:"triggered_by,omitempty"`
	Options     json.RawMessage `json:"options,omitempty"`
}

// IngestionJob is the top-level unit of ingestion work polled by clients.
// The facade creates it queued; the external script starts it and merges
// summary counters; the coordinator guarantees a terminal status.
type IngestionJob struct {
	JobID      string          `json:"job_id"                db:"job_id"`
	JobType    IngestMode      `json:"job_type"              db:"job_type"`
	Status     RunStatus       `json:"status"                db:"status"`
	CreatedAt  time.Time       `json:"created_at"            db:"created_at"`
	StartedAt  *time.Time      `json:"started_at,omitempty"  db:"started_at"`
	FinishedAt *time.Time      `json:"finished_at,omitempty" db:"finished_at"`
	Summary    json.RawMessage `json:"summary,omitempty"     db:"summary"`
}

// IngestionJobTask is one per-security (or per-window) slice of a job,
// written by the external script.
type IngestionJobTask struct {
	TaskID    string     `json:"task_id"              db:"task_id"`
	JobID     string     `json:"job_id"               db:"job_id"`
	Dataset   string     `json:"dataset"              db:"dataset"`
	TsCode    *string    `json:"ts_code,omitempty"    db:"ts_code"`
	DateFrom  *time.Time `json:"date_from,omitempty"  db:"date_from"`
	DateTo    *time.Time `json:"date_to,omitempty"    db:"date_to"`
	Status    RunStatus  `json:"status"               db:"status"`
	Progress  float64    `json:"progress"             db:"progress"`
	Retries   int        `json:"retries"              db:"retries"`
	LastError *string    `json:"last_error,omitempty" db:"last_error"`
	UpdatedAt time.Time  `json:"updated_at"           db:"updated_at"`
}

// IngestionRun is a script-written execution record. Mode here is the
// script's vocabulary ("full" or "incremental"), not the schedule's.
type IngestionRun struct {
	RunID      string          `json:"run_id"                db:"run_id"`
	Mode       string          `json:"mode"                  db:"mode"`
	Dataset    *string         `json:"dataset,omitempty"     db:"dataset"`
	Status     RunStatus       `json:"status"                db:"status"`
	CreatedAt  time.Time       `json:"created_at"            db:"created_at"`
	StartedAt  *time.Time      `json:"started_at,omitempty"  db:"started_at"`
	FinishedAt *time.Time      `json:"finished_at,omitempty" db:"finished_at"`
	Params     json.RawMessage `json:"params,omitempty"      db:"params"`
	Summary    json.RawMessage `json:"summary,omitempty"     db:"summary"`
}

// IngestionCheckpoint is a script-written resume cursor for one
// (run, dataset, security) slice.
type IngestionCheckpoint struct {
	RunID      string          `json:"run_id"                db:"run_id"`
	Dataset    string          `json:"dataset"               db:"dataset"`
	TsCode     *string         `json:"ts_code,omitempty"     db:"ts_code"`
	CursorDate *time.Time      `json:"cursor_date,omitempty" db:"cursor_date"`
	CursorTime *time.Time      `json:"cursor_time,omitempty" db:"cursor_time"`
	Extra      json.RawMessage `json:"extra,omitempty"       db:"extra"`
}

// IngestionError is a per-security failure sample attached to a run.
type IngestionError struct {
	ErrorID int64           `json:"error_id"          db:"error_id"`
	RunID   string          `json:"run_id"            db:"run_id"`
	Dataset *string         `json:"dataset,omitempty" db:"dataset"`
	TsCode  *string         `json:"ts_code,omitempty" db:"ts_code"`
	ErrorAt time.Time       `json:"error_at"          db:"error_at"`
	Message *string         `json:"message,omitempty" db:"message"`
	Detail  json.RawMessage `json:"detail,omitempty"  db:"detail"`
}

// IngestionLogEntry is one line in the shared ingestion log stream. JobID is
// a correlation id, not a foreign key; the coordinator logs under its run id
// while scripts log under their job id.
type IngestionLogEntry struct {
	JobID   string    `json:"job_id"  db:"job_id"`
	TS      time.Time `json:"ts"      db:"ts"`
	Level   string    `json:"level"   db:"level"`
	Message string    `json:"message" db:"message"`
}

// IngestionArgs is the closed set of argument shapes an ingestion command can
// carry. Exactly one concrete type applies per target.
type IngestionArgs interface {
	isIngestionArgs()
}

// RawArgs passes stored arguments to the script verbatim, bypassing flag
// synthesis entirely.
type RawArgs []string

func (RawArgs) isIngestionArgs() {}

// IncrementalArgs are the synthesized flags for incremental catch-up runs.
type IncrementalArgs struct {
	Datasets  string
	Date      string
	StartDate string
	Exchanges []string
	BatchSize int
	MaxEmpty  int
	JobID     string
}

func (IncrementalArgs) isIngestionArgs() {}

// BackfillArgs are the synthesized flags shared by the full-history daily and
// minute backfill scripts.
type BackfillArgs struct {
	Exchanges  []string
	StartDate  string
	EndDate    string
	BatchSize  int
	LimitCodes int
	JobID      string
}

func (BackfillArgs) isIngestionArgs() {}

// IngestionTarget is everything the command builder needs to produce an argv.
type IngestionTarget struct {
	Dataset string
	Mode    IngestMode
	// Script overrides the default per-family entry point when non-empty.
	Script string
	// At is the daily/weekly wall-clock anchor, carried for the planner.
	At   string
	Args IngestionArgs
}

// ingestionOptionsDoc is the strict wire shape of a stored ingestion options
// document. Keys that do not apply to the schedule's mode are rejected rather
// than silently dropped.
type ingestionOptionsDoc struct {
	Script     string          `json:"script,omitempty"`
	At         string          `json:"at,omitempty"`
	Args       json.RawMessage `json:"args,omitempty"`
	Datasets   string          `json:"datasets,omitempty"`
	Date       string          `json:"date,omitempty"`
	StartDate  string          `json:"start_date,omitempty"`
	EndDate    string          `json:"end_date,omitempty"`
	Exchanges  []string        `json:"exchanges,omitempty"`
	BatchSize  int             `json:"batch_size,omitempty"`
	MaxEmpty   int             `json:"max_empty,omitempty"`
	LimitCodes int             `json:"limit_codes,omitempty"`
	JobID      string          `json:"job_id,omitempty"`
}

// DecodeIngestionOptions parses a stored options document into a typed
// target for the given dataset and mode.
func DecodeIngestionOptions(dataset string, mode IngestMode, raw json.RawMessage) (IngestionTarget, error) {
	if !mode.Valid() {
		return IngestionTarget{}, fmt.Errorf("invalid ingest mode: %q", mode)
	}

	var doc ingestionOptionsDoc
	if err := decodeStrict(raw, &doc); err != nil {
		return IngestionTarget{}, err
	}

	target := IngestionTarget{Dataset: dataset, Mode: mode, Script: doc.Script, At: doc.At}

	if len(doc.Args) > 0 {
		argv, err := parseRawArgs(doc.Args)
		if err != nil {
			return IngestionTarget{}, err
		}
		if field := firstSynthesizedField(doc); field != "" {
			return IngestionTarget{}, fmt.Errorf("option %q conflicts with verbatim args", field)
		}
		target.Args = argv
		return target, nil
	}

	switch mode {
	case IngestModeIncremental:
		if doc.EndDate != "" {
			return IngestionTarget{}, fmt.Errorf("option %q does not apply to incremental mode", "end_date")
		}
		if doc.LimitCodes != 0 {
			return IngestionTarget{}, fmt.Errorf("option %q does not apply to incremental mode", "limit_codes")
		}
		datasets := doc.Datasets
		if datasets == "" {
			datasets = dataset
		}
		target.Args = IncrementalArgs{
			Datasets:  datasets,
			Date:      doc.Date,
			StartDate: doc.StartDate,
			Exchanges: doc.Exchanges,
			BatchSize: doc.BatchSize,
			MaxEmpty:  doc.MaxEmpty,
			JobID:     doc.JobID,
		}
	case IngestModeInit:
		if doc.Date != "" {
			return IngestionTarget{}, fmt.Errorf("option %q does not apply to init mode", "date")
		}
		if doc.MaxEmpty != 0 {
			return IngestionTarget{}, fmt.Errorf("option %q does not apply to init mode", "max_empty")
		}
		if doc.Datasets != "" {
			return IngestionTarget{}, fmt.Errorf("option %q does not apply to init mode", "datasets")
		}
		target.Args = BackfillArgs{
			Exchanges:  doc.Exchanges,
			StartDate:  doc.StartDate,
			EndDate:    doc.EndDate,
			BatchSize:  doc.BatchSize,
			LimitCodes: doc.LimitCodes,
			JobID:      doc.JobID,
		}
	}

	return target, nil
}

// WithJobID returns a copy of the target with the job correlation id set on
// its synthesized args. Verbatim args are left alone; the caller owns those.
func (t IngestionTarget) WithJobID(jobID string) IngestionTarget {
	switch args := t.Args.(type) {
	case IncrementalArgs:
		args.JobID = jobID
		t.Args = args
	case BackfillArgs:
		args.JobID = jobID
		t.Args = args
	}
	return t
}

// parseRawArgs accepts either a JSON array of scalars or a single
// whitespace-separated string.
func parseRawArgs(raw json.RawMessage) (RawArgs, error) {
	var list []any
	if err := json.Unmarshal(raw, &list); err == nil {
		argv := make(RawArgs, 0, len(list))
		for _, item := range list {
			switch v := item.(type) {
			case string:
				argv = append(argv, v)
			case float64:
				argv = append(argv, formatJSONNumber(v))
			case bool:
				argv = append(argv, fmt.Sprintf("%t", v))
			default:
				return nil, fmt.Errorf("unsupported args element %T", item)
			}
		}
		return argv, nil
	}

	var joined string
	if err := json.Unmarshal(raw, &joined); err == nil {
		return RawArgs(strings.Fields(joined)), nil
	}

	return nil, fmt.Errorf("args must be an array or a string")
}

func formatJSONNumber(v float64) string {
	if v == float64(int64(v)) {
		return fmt.Sprintf("%d", int64(v))
	}
	return fmt.Sprintf("%g", v)
}

// firstSynthesizedField reports which flag-synthesis key is set alongside
// verbatim args, empty when none are.
func firstSynthesizedField(doc ingestionOptionsDoc) string {
	switch {
	case doc.Datasets != "":
		return "datasets"
	case doc.Date != "":
		return "date"
	case doc.StartDate != "":
		return "start_date"
	case doc.EndDate != "":
		return "end_date"
	case len(doc.Exchanges) > 0:
		return "exchanges"
	case doc.BatchSize != 0:
		return "batch_size"
	case doc.MaxEmpty != 0:
		return "max_empty"
	case doc.LimitCodes != 0:
		return "limit_codes"
	}
	return ""
}
