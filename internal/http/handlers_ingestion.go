package httpx

import (
	"errors"
	"net/http"

	"github.com/tdxstock/ingestd/internal/core"
	"github.com/tdxstock/ingestd/internal/domain/model"
	"github.com/tdxstock/ingestd/internal/service"
)

// IngestionHandlers provides HTTP handlers for ingestion runs, schedules,
// jobs, and the shared log stream.
type IngestionHandlers struct {
	Schedules   *service.ScheduleService
	Coordinator *service.CoordinatorService
	JobStatus   *service.JobStatusService
	Runs        core.IngestionRunRepository
	Logs        core.IngestionLogRepository
}

// RunNow handles HTTP requests to launch a one-off ingestion run. A queued
// job row is created up front so callers can poll status immediately.
func (h *IngestionHandlers) RunNow(w http.ResponseWriter, r *http.Request) {
	var req model.RunIngestionRequest
	if !DecodeJSON(w, r, &req) {
		return
	}

	runID, jobID, err := h.Coordinator.RunIngestionWithJob(r.Context(), service.RunIngestionParams{
		Dataset:     req.Dataset,
		Mode:        req.Mode,
		TriggeredBy: req.TriggeredBy,
		Options:     req.Options,
	})
	if err != nil {
		WriteAppError(w, err)
		return
	}
	WriteJSON(w, http.StatusAccepted, map[string]string{"run_id": runID, "job_id": jobID})
}

// ListRuns handles HTTP requests to list recent script-written ingestion
// runs, optionally filtered by dataset.
func (h *IngestionHandlers) ListRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := h.Runs.ListRecent(r.Context(), core.ListIngestionRunsParams{
		Dataset: r.URL.Query().Get("dataset"),
		Limit:   parseLimit(r, defaultRunsLimit),
	})
	if err != nil {
		WriteAppError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, runs)
}

// ListSchedules handles HTTP requests to list ingestion schedules.
func (h *IngestionHandlers) ListSchedules(w http.ResponseWriter, r *http.Request) {
	schedules, err := h.Schedules.ListIngestionSchedules(r.Context())
	if err != nil {
		WriteAppError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, schedules)
}

// UpsertSchedule handles HTTP requests to create or replace an ingestion
// schedule. When schedule_id is omitted an existing (dataset, mode) row is
// reused before a new id is minted.
func (h *IngestionHandlers) UpsertSchedule(w http.ResponseWriter, r *http.Request) {
	var req model.UpsertIngestionScheduleRequest
	if !DecodeJSON(w, r, &req) {
		return
	}

	sched, err := h.Schedules.UpsertIngestionSchedule(r.Context(), req)
	if err != nil {
		WriteAppError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, sched)
}

// ToggleSchedule handles HTTP requests to enable or disable an ingestion
// schedule.
func (h *IngestionHandlers) ToggleSchedule(w http.ResponseWriter, r *http.Request) {
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

	sched, err := h.Schedules.ToggleIngestionSchedule(r.Context(), r.PathValue("id"), *body.Enabled)
	if err != nil {
		WriteAppError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, sched)
}

// RunSchedule handles HTTP requests to run an existing ingestion schedule
// immediately under its scheduled dedup key.
func (h *IngestionHandlers) RunSchedule(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	runID, err := h.Coordinator.RunIngestionForSchedule(r.Context(), id)
	if err != nil {
		WriteAppError(w, err)
		return
	}

	sched, err := h.Schedules.GetIngestionSchedule(r.Context(), id)
	if err != nil {
		WriteAppError(w, err)
		return
	}
	WriteJSON(w, http.StatusAccepted, map[string]any{"run_id": runID, "schedule": sched})
}

// ListLogs handles HTTP requests to tail the shared ingestion log stream.
func (h *IngestionHandlers) ListLogs(w http.ResponseWriter, r *http.Request) {
	entries, err := h.Logs.Tail(r.Context(), parseLimit(r, defaultLogsLimit))
	if err != nil {
		WriteAppError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, entries)
}

// GetJobStatus handles HTTP requests for the aggregated status document of
// one ingestion job.
func (h *IngestionHandlers) GetJobStatus(w http.ResponseWriter, r *http.Request) {
	report, err := h.JobStatus.GetJobStatus(r.Context(), r.PathValue("id"))
	if err != nil {
		WriteAppError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, report)
}

// Stats handles HTTP requests for the aggregate job and run counts.
func (h *IngestionHandlers) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.JobStatus.Stats(r.Context())
	if err != nil {
		WriteAppError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, stats)
}
