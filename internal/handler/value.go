package handler

import (
	"net/http"

	"mypts/internal/currency"
	"mypts/pkg/logger"
)

// ValueHandler exposes the value object, rate recompute previews, and the
// explicit sync action.
type ValueHandler struct {
	service *currency.Service
	logger  logger.Logger
}

// NewValueHandler creates a ValueHandler.
func NewValueHandler(service *currency.Service, log logger.Logger) *ValueHandler {
	return &ValueHandler{
		service: service,
		logger:  log,
	}
}

// GetValue returns the canonical value object.
func (h *ValueHandler) GetValue(w http.ResponseWriter, r *http.Request) {
	value, err := h.service.Value(r.Context())
	if err != nil {
		respondOperationError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, value)
}

// PreviewRates recomputes every stored rate against a fresh external
// snapshot without persisting anything.
func (h *ValueHandler) PreviewRates(w http.ResponseWriter, r *http.Request) {
	force := r.URL.Query().Get("force") == "true"

	candidates, err := h.service.Preview(r.Context(), force)
	if err != nil {
		respondOperationError(w, err)
		return
	}

	outOfSync := 0
	for _, cand := range candidates {
		if !cand.InSync {
			outOfSync++
		}
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"candidates":  candidates,
		"out_of_sync": outOfSync,
	})
}

// SyncRates persists recomputed rates to the hub.
func (h *ValueHandler) SyncRates(w http.ResponseWriter, r *http.Request) {
	value, err := h.service.Sync(r.Context())
	if err != nil {
		respondOperationError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, value)
}
