// Package httpx provides HTTP handlers and utilities for the ingestd job API.
package httpx

import (
	"errors"
	"net/http"

	"github.com/tdxstock/ingestd/internal/core"
	"github.com/tdxstock/ingestd/internal/domain/model"
	"github.com/tdxstock/ingestd/internal/service"
)

// TestingHandlers provides HTTP handlers for the API testing harness.
type TestingHandlers struct {
	Schedules   *service.ScheduleService
	Coordinator *service.CoordinatorService
	Runs        core.TestingRunRepository
}

// RunNow handles HTTP requests to launch a one-off testing run. The body is
// optional; an empty POST submits a run with default options.
func (h *TestingHandlers) RunNow(w http.ResponseWriter, r *http.Request) {
	var req model.RunTestingRequest
	if r.ContentLength != 0 {
		if !DecodeJSON(w, r, &req) {
			return
		}
	}

	runID, err := h.Coordinator.RunTestingNow(r.Context(), req.TriggeredBy, req.Options)
	if err != nil {
		WriteAppError(w, err)
		return
	}
	WriteJSON(w, http.StatusAccepted, map[string]string{"run_id": runID})
}

// ListRuns handles HTTP requests to list recent testing runs.
func (h *TestingHandlers) ListRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := h.Runs.ListRecent(r.Context(), parseLimit(r, defaultRunsLimit))
	if err != nil {
		WriteAppError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, runs)
}

// ListSchedules handles HTTP requests to list testing schedules.
func (h *TestingHandlers) ListSchedules(w http.ResponseWriter, r *http.Request) {
	schedules, err := h.Schedules.ListTestingSchedules(r.Context())
	if err != nil {
		WriteAppError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, schedules)
}

// UpsertSchedule handles HTTP requests to create or replace a testing
// schedule. Frequency and options are validated before anything is written.
func (h *TestingHandlers) UpsertSchedule(w http.ResponseWriter, r *http.Request) {
	var req model.UpsertTestingScheduleRequest
	if !DecodeJSON(w, r, &req) {
		return
	}

	sched, err := h.Schedules.UpsertTestingSchedule(r.Context(), req)
	if err != nil {
		WriteAppError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, sched)
}

// ToggleSchedule handles HTTP requests to enable or disable a testing
// schedule.
func (h *TestingHandlers) ToggleSchedule(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Enabled *bool `json:"enabled"`
	}
	if !DecodeJSON(w, r, &body) {
		return
	}
	if body.Enabled == nil {
		WriteError(w, ErrorParams{
			Code:    http.StatusBadRequest,
			ErrCode: "invalid_body",
			Err:     errors.New("enabled is required"),
		})
		return
	}

	sched, err := h.Schedules.ToggleTestingSchedule(r.Context(), r.PathValue("id"), *body.Enabled)
	if err != nil {
		WriteAppError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, sched)
}

// RunSchedule handles HTTP requests to run an existing testing schedule
// immediately. The response carries the fresh run id and the schedule row
// as updated by the submission.
func (h *TestingHandlers) RunSchedule(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	runID, err := h.Coordinator.RunTestingForSchedule(r.Context(), id)
	if err != nil {
		WriteAppError(w, err)
		return
	}

	sched, err := h.Schedules.GetTestingSchedule(r.Context(), id)
	if err != nil {
		WriteAppError(w, err)
		return
	}
	WriteJSON(w, http.StatusAccepted, map[string]any{"run_id": runID, "schedule": sched})
}
