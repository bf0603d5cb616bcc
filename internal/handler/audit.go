package handler

import (
	"net/http"
	"strconv"

	"mypts/internal/domain"
	"mypts/internal/repository/postgres"
	"mypts/pkg/logger"
)

// AuditHandler exposes the console-side audit trail. This is the console's
// own record of operation attempts, distinct from the hub's supply log.
type AuditHandler struct {
	repo   *postgres.AuditRepository
	logger logger.Logger
}

// NewAuditHandler creates an AuditHandler.
func NewAuditHandler(repo *postgres.AuditRepository, log logger.Logger) *AuditHandler {
	return &AuditHandler{
		repo:   repo,
		logger: log,
	}
}

// List returns the newest console audit entries with per-action counts.
func (h *AuditHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit := 20
	if v, err := strconv.Atoi(q.Get("limit")); err == nil && v > 0 && v <= 100 {
		limit = v
	}
	offset := 0
	if v, err := strconv.Atoi(q.Get("offset")); err == nil && v > 0 {
		offset = v
	}

	entries, err := h.repo.List(r.Context(), limit, offset)
	if err != nil {
		respondOperationError(w, err)
		return
	}
	if entries == nil {
		entries = []*domain.ConsoleAuditEntry{}
	}

	counts, err := h.repo.CountByAction(r.Context())
	if err != nil {
		respondOperationError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"entries": entries,
		"counts":  counts,
	})
}
