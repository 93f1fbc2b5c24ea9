// Package model defines the core data types for the ingestion scheduling system.
package model

import (
	"fmt"
	"strings"
)

// RunStatus represents the lifecycle state of a run, job, or task row.
type RunStatus string

// IngestMode selects between a full historical backfill and an incremental
// catch-up ingestion.
//
//nolint:recvcheck // UnmarshalText needs pointer receiver, Valid needs value receiver
type IngestMode string

const (
	// RunStatusQueued indicates a run accepted by the coordinator but not yet started.
	RunStatusQueued RunStatus = "queued"
	// RunStatusRunning indicates the external process is executing.
	RunStatusRunning RunStatus = "running"
	// RunStatusSuccess indicates the process exited zero.
	RunStatusSuccess RunStatus = "success"
	// RunStatusFailed indicates a non-zero exit or a launch failure.
	RunStatusFailed RunStatus = "failed"
	// RunStatusInvalid marks a schedule whose stored configuration cannot be
	// parsed; the reconciler sets it and drops the trigger.
	RunStatusInvalid RunStatus = "invalid"

	// IngestModeInit requests a full historical backfill.
	IngestModeInit IngestMode = "init"
	// IngestModeIncremental requests an incremental catch-up.
	IngestModeIncremental IngestMode = "incremental"

	// TriggeredBySchedule marks runs fired by the tick loop.
	TriggeredBySchedule = "schedule"
	// TriggeredByManual marks runs submitted through the facade.
	TriggeredByManual = "manual"
)

// Valid returns true if the RunStatus is one of the known states.
func (s RunStatus) Valid() bool {
	return s == RunStatusQueued || s == RunStatusRunning || s == RunStatusSuccess ||
		s == RunStatusFailed || s == RunStatusInvalid
}

// Terminal returns true once a run can no longer change state.
func (s RunStatus) Terminal() bool {
	return s == RunStatusSuccess || s == RunStatusFailed
}

// Valid returns true if the IngestMode is a known mode.
func (m IngestMode) Valid() bool {
	return m == IngestModeInit || m == IngestModeIncremental
}

// UnmarshalText implements encoding.TextUnmarshaler so modes parse from env
// and request bodies.
func (m *IngestMode) UnmarshalText(text []byte) error {
	v := IngestMode(strings.ToLower(strings.TrimSpace(string(text))))
	if !v.Valid() {
		return fmt.Errorf("invalid ingest mode: %q", string(text))
	}
	*m = v
	return nil
}

// ProcessResult captures what an external process left behind.
type ProcessResult struct {
	ExitCode int
	Output   string
}

// Status maps the exit code onto a terminal run status.
func (r ProcessResult) Status() RunStatus {
	if r.ExitCode == 0 {
		return RunStatusSuccess
	}
	return RunStatusFailed
}

// TaskOutcome is the uniform result every pool task produces. Failures are
// encoded in the outcome rather than returned as errors so the worker loop
// can persist terminal state the same way for every task kind.
type TaskOutcome struct {
	Status  RunStatus
	Summary map[string]any
	Detail  map[string]any
	Log     string
}
