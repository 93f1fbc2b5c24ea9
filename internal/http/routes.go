package httpx

import (
	"log/slog"
	"net/http"

	"github.com/tdxstock/ingestd/internal/core"
	"github.com/tdxstock/ingestd/internal/service"
)

// RouterServices holds all the services needed by the HTTP router.
type RouterServices struct {
	Schedules   *service.ScheduleService
	Coordinator *service.CoordinatorService
	JobStatus   *service.JobStatusService
	// Refresher serves the manual reconcile endpoint. Schedule writes go
	// through the ScheduleService, which refreshes on its own.
	Refresher service.ScheduleRefresher
	// Read-only listings go straight to the repositories; they carry no
	// business rules worth a service layer.
	TestingRuns   core.TestingRunRepository
	IngestionRuns core.IngestionRunRepository
	Logs          core.IngestionLogRepository
	Logger        *slog.Logger // Logger for HTTP errors (optional)
}

// NewRouter creates and configures a new HTTP router.
func NewRouter(services RouterServices) http.Handler {
	mux := http.NewServeMux()

	testingHandlers := &TestingHandlers{
		Schedules:   services.Schedules,
		Coordinator: services.Coordinator,
		Runs:        services.TestingRuns,
	}
	ingestionHandlers := &IngestionHandlers{
		Schedules:   services.Schedules,
		Coordinator: services.Coordinator,
		JobStatus:   services.JobStatus,
		Runs:        services.IngestionRuns,
		Logs:        services.Logs,
	}
	schedulerHandlers := &SchedulerHandlers{Refresher: services.Refresher}

	registerTestingRoutes(mux, testingHandlers)
	registerIngestionRoutes(mux, ingestionHandlers)
	registerSchedulerRoutes(mux, schedulerHandlers)
	mux.Handle("GET /healthz", http.HandlerFunc(healthHandler))
	mux.Handle("HEAD /healthz", http.HandlerFunc(healthHandler))

	return mux
}

func registerTestingRoutes(mux *http.ServeMux, h *TestingHandlers) {
	mux.HandleFunc("POST /api/testing/run", h.RunNow)
	mux.HandleFunc("GET /api/testing/runs", h.ListRuns)
	mux.HandleFunc("GET /api/testing/schedule", h.ListSchedules)
	mux.HandleFunc("POST /api/testing/schedule", h.UpsertSchedule)
	mux.HandleFunc("POST /api/testing/schedule/{id}/toggle", h.ToggleSchedule)
	mux.HandleFunc("POST /api/testing/schedule/{id}/run", h.RunSchedule)
}

func registerIngestionRoutes(mux *http.ServeMux, h *IngestionHandlers) {
	mux.HandleFunc("POST /api/ingestion/run", h.RunNow)
	mux.HandleFunc("GET /api/ingestion/runs", h.ListRuns)
	mux.HandleFunc("GET /api/ingestion/schedule", h.ListSchedules)
	mux.HandleFunc("POST /api/ingestion/schedule", h.UpsertSchedule)
	mux.HandleFunc("POST /api/ingestion/schedule/{id}/toggle", h.ToggleSchedule)
	mux.HandleFunc("POST /api/ingestion/schedule/{id}/run", h.RunSchedule)
	mux.HandleFunc("GET /api/ingestion/logs", h.ListLogs)
	mux.HandleFunc("GET /api/ingestion/jobs/{id}/status", h.GetJobStatus)
	mux.HandleFunc("GET /api/ingestion/stats", h.Stats)
}

func registerSchedulerRoutes(mux *http.ServeMux, h *SchedulerHandlers) {
	mux.HandleFunc("POST /api/scheduler/refresh", h.Refresh)
}
