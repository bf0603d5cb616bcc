package handler

import (
	"encoding/json"
	"net/http"

	"mypts/internal/scheduler"
	"mypts/pkg/logger"
)

// SchedulerHandler exposes the periodic verification configuration.
type SchedulerHandler struct {
	scheduler *scheduler.Scheduler
	logger    logger.Logger
}

// NewSchedulerHandler creates a SchedulerHandler.
func NewSchedulerHandler(s *scheduler.Scheduler, log logger.Logger) *SchedulerHandler {
	return &SchedulerHandler{
		scheduler: s,
		logger:    log,
	}
}

// GetConfig returns the scheduler's current status.
func (h *SchedulerHandler) GetConfig(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.scheduler.Status())
}

type schedulerConfigRequest struct {
	Enabled         bool `json:"enabled"`
	IntervalMinutes int  `json:"interval_minutes"`
}

// UpdateConfig enables or disables periodic verification.
func (h *SchedulerHandler) UpdateConfig(w http.ResponseWriter, r *http.Request) {
	var req schedulerConfigRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if req.Enabled {
		if err := h.scheduler.Enable(req.IntervalMinutes); err != nil {
			respondOperationError(w, err)
			return
		}
	} else {
		h.scheduler.Disable()
	}

	respondJSON(w, http.StatusOK, h.scheduler.Status())
}
