// Package verifier implements the consistency check between the hub's
// ledger and the independently computed circulating supply, and the
// reconciliation action that corrects a divergence.
package verifier

import (
	"context"
	"strings"
	"sync"

	"mypts/internal/domain"
	"mypts/pkg/errors"
	"mypts/pkg/logger"
)

// HubClient is the slice of the hub API the verifier needs.
type HubClient interface {
	Verify(ctx context.Context) (*domain.ConsistencyCheckResult, error)
	Reconcile(ctx context.Context, reason string) (*domain.SupplyState, string, error)
}

// Service runs verifications on demand and guards reconciliation behind a
// prior inconsistent result. It never retries on its own; retry policy
// belongs to callers and the scheduler.
type Service struct {
	hub    HubClient
	logger logger.Logger

	mu   sync.Mutex
	last *domain.ConsistencyCheckResult
}

func NewService(hub HubClient, log logger.Logger) *Service {
	return &Service{
		hub:    hub,
		logger: log,
	}
}

// Verify fetches a fresh consistency result. An inconsistent outcome is a
// valid answer, not an error.
func (s *Service) Verify(ctx context.Context) (*domain.ConsistencyCheckResult, error) {
	result, err := s.hub.Verify(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "verification failed")
	}

	s.mu.Lock()
	s.last = result
	s.mu.Unlock()

	if !result.IsConsistent {
		s.logger.Warn("Supply inconsistency detected", map[string]interface{}{
			"ledger_circulating": result.LedgerCirculatingSupply,
			"actual_circulating": result.ActualCirculatingSupply,
			"difference":         result.Difference,
		})
	}
	return result, nil
}

// Last returns the most recent verification result, if any.
func (s *Service) Last() *domain.ConsistencyCheckResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

// Correction describes the corrective operation the hub will perform for a
// given inconsistency. Display-only; the hub decides authoritatively.
type Correction struct {
	Action domain.SupplyAction `json:"action"`
	Amount int64               `json:"amount"`
}

// PlanCorrection maps an inconsistency onto its corrective operation: a
// positive difference is covered by issuing that many new units, a negative
// one by moving the shortfall from circulation into reserve. Returns nil
// when the result is consistent.
func PlanCorrection(result *domain.ConsistencyCheckResult) *Correction {
	if result == nil || result.IsConsistent {
		return nil
	}
	if result.Difference > 0 {
		return &Correction{Action: domain.ActionIssue, Amount: result.Difference}
	}
	return &Correction{Action: domain.ActionMoveToReserve, Amount: -result.Difference}
}

// Reconcile triggers the hub's corrective operation. It requires a prior
// Verify call that reported an inconsistency, and a usable audit reason.
// On success the recorded result is cleared; the next decision needs a
// fresh verification.
func (s *Service) Reconcile(ctx context.Context, reason string) (*domain.SupplyState, string, error) {
	if len(strings.TrimSpace(reason)) < domain.MinReasonLength {
		return nil, "", errors.ErrMissingReason
	}

	s.mu.Lock()
	last := s.last
	s.mu.Unlock()

	if last == nil || last.IsConsistent {
		return nil, "", errors.ErrNothingToReconcile
	}

	state, message, err := s.hub.Reconcile(ctx, reason)
	if err != nil {
		return nil, "", errors.Wrap(err, "reconciliation failed")
	}

	s.mu.Lock()
	s.last = nil
	s.mu.Unlock()

	s.logger.Info("Supply reconciled", map[string]interface{}{
		"difference":  last.Difference,
		"reason":      reason,
		"hub_message": message,
	})
	return state, message, nil
}
