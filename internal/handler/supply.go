package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"mypts/internal/domain"
	"mypts/internal/middleware"
	"mypts/internal/supply"
	"mypts/pkg/logger"
	"mypts/pkg/validator"
)

// SupplyHandler exposes the supply ledger and its mutating operations.
type SupplyHandler struct {
	ops       *supply.Service
	validator *validator.Validator
	logger    logger.Logger
}

// NewSupplyHandler creates a SupplyHandler.
func NewSupplyHandler(ops *supply.Service, val *validator.Validator, log logger.Logger) *SupplyHandler {
	return &SupplyHandler{
		ops:       ops,
		validator: val,
		logger:    log,
	}
}

// GetState returns the mirrored supply state, refreshing from the hub.
func (h *SupplyHandler) GetState(w http.ResponseWriter, r *http.Request) {
	state, err := h.ops.Refresh(r.Context())
	if err != nil {
		// Fall back to the last known-good mirror when the hub is down.
		if cached, cacheErr := h.ops.Ledger().State(); cacheErr == nil {
			respondJSON(w, http.StatusOK, map[string]interface{}{
				"state": cached,
				"stale": true,
			})
			return
		}
		respondOperationError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"state": state})
}

// Issue mints new supply.
func (h *SupplyHandler) Issue(w http.ResponseWriter, r *http.Request) {
	var req supply.IssueRequest
	adminID, ok := h.decode(w, r, &req)
	if !ok {
		return
	}

	state, err := h.ops.Issue(r.Context(), adminID, &req)
	if err != nil {
		respondOperationError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"state": state})
}

// ReleaseFromHolding moves units from holding into circulation.
func (h *SupplyHandler) ReleaseFromHolding(w http.ResponseWriter, r *http.Request) {
	h.move(w, r, h.ops.ReleaseFromHolding)
}

// RebalanceReserve moves units from reserve into circulation.
func (h *SupplyHandler) RebalanceReserve(w http.ResponseWriter, r *http.Request) {
	h.move(w, r, h.ops.RebalanceReserveToCirculation)
}

// MoveToReserve withdraws units from circulation into reserve.
func (h *SupplyHandler) MoveToReserve(w http.ResponseWriter, r *http.Request) {
	h.move(w, r, h.ops.MoveToReserve)
}

type moveFunc func(ctx context.Context, adminID uuid.UUID, req *supply.MoveRequest) (*domain.SupplyState, error)

func (h *SupplyHandler) move(w http.ResponseWriter, r *http.Request, fn moveFunc) {
	var req supply.MoveRequest
	adminID, ok := h.decode(w, r, &req)
	if !ok {
		return
	}

	state, err := fn(r.Context(), adminID, &req)
	if err != nil {
		respondOperationError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"state": state})
}

// SetMaxSupply adjusts or lifts the cap.
func (h *SupplyHandler) SetMaxSupply(w http.ResponseWriter, r *http.Request) {
	var req supply.AdjustMaxSupplyRequest
	adminID, ok := h.decode(w, r, &req)
	if !ok {
		return
	}

	state, err := h.ops.AdjustMaxSupply(r.Context(), adminID, &req)
	if err != nil {
		respondOperationError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"state": state})
}

// UpdateValue sets a new USD value per MyPt.
func (h *SupplyHandler) UpdateValue(w http.ResponseWriter, r *http.Request) {
	var req supply.UpdateValueRequest
	adminID, ok := h.decode(w, r, &req)
	if !ok {
		return
	}

	state, err := h.ops.UpdateValue(r.Context(), adminID, &req)
	if err != nil {
		respondOperationError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"state": state})
}

// SupplyLogs proxies the hub's paginated audit trail.
func (h *SupplyHandler) SupplyLogs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := supply.LogFilter{
		Action: domain.SupplyAction(q.Get("action")),
	}
	if v := q.Get("limit"); v != "" {
		filter.Limit, _ = strconv.Atoi(v)
	}
	if v := q.Get("offset"); v != "" {
		filter.Offset, _ = strconv.Atoi(v)
	}
	if v := q.Get("start_date"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			filter.StartDate = &t
		}
	}
	if v := q.Get("end_date"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			filter.EndDate = &t
		}
	}

	entries, total, err := h.ops.SupplyLogs(r.Context(), filter)
	if err != nil {
		respondOperationError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"logs":  entries,
		"total": total,
	})
}

// decode reads the admin identity, parses the JSON body, and runs struct
// validation, answering the request itself on failure.
func (h *SupplyHandler) decode(w http.ResponseWriter, r *http.Request, req interface{}) (uuid.UUID, bool) {
	adminID, ok := middleware.AdminIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "Missing admin identity")
		return uuid.Nil, false
	}

	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return uuid.Nil, false
	}

	if fieldErrs := h.validator.ValidateStructured(req); fieldErrs != nil {
		respondJSON(w, http.StatusBadRequest, map[string]interface{}{
			"error":  "Validation failed",
			"fields": fieldErrs,
		})
		return uuid.Nil, false
	}

	return adminID, true
}
