package httpx

import (
	"net/http"

	"github.com/tdxstock/ingestd/internal/service"
)

// SchedulerHandlers exposes manual scheduler controls.
type SchedulerHandlers struct {
	Refresher service.ScheduleRefresher
}

// Refresh handles HTTP requests to re-read schedules and reconcile the
// in-memory triggers against them.
func (h *SchedulerHandlers) Refresh(w http.ResponseWriter, r *http.Request) {
	if err := h.Refresher.Refresh(r.Context()); err != nil {
		WriteAppError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]bool{"refreshed": true})
}
