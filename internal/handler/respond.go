// Package handler provides the HTTP handlers behind the admin dashboard.
package handler

import (
	"encoding/json"
	stderrors "errors"
	"net/http"

	"mypts/pkg/errors"
)

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// respondOperationError maps validation sentinels to 400s so they render
// inline in the dashboard; everything else is a 502 with the hub's or
// transport's message shown verbatim.
func respondOperationError(w http.ResponseWriter, err error) {
	switch {
	case stderrors.Is(err, errors.ErrInvalidAmount),
		stderrors.Is(err, errors.ErrInsufficientPool),
		stderrors.Is(err, errors.ErrExceedsMaxSupply),
		stderrors.Is(err, errors.ErrMissingReason),
		stderrors.Is(err, errors.ErrInvalidArgument),
		stderrors.Is(err, errors.ErrInvalidInterval),
		stderrors.Is(err, errors.ErrNothingToReconcile):
		respondError(w, http.StatusBadRequest, err.Error())
	case stderrors.Is(err, errors.ErrStateUnavailable):
		respondError(w, http.StatusServiceUnavailable, err.Error())
	case stderrors.Is(err, errors.ErrUnauthorized):
		respondError(w, http.StatusUnauthorized, err.Error())
	default:
		respondError(w, http.StatusBadGateway, err.Error())
	}
}
