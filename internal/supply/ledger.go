// Package supply implements the client-side MyPts supply accounting model:
// the mirrored ledger, advisory precondition checks, and the two-phase
// supply operations against the authoritative hub.
package supply

import (
	"sync"

	"github.com/shopspring/decimal"

	"mypts/internal/domain"
	"mypts/pkg/errors"
)

// Operation is a candidate supply mutation checked against the mirrored
// ledger before any network call.
type Operation struct {
	Action domain.SupplyAction
	Amount int64
	// NewMax applies to ADJUST_MAX_SUPPLY; nil removes the cap.
	NewMax *int64
	// Value applies to UPDATE_VALUE.
	Value decimal.Decimal
}

// Ledger is the read-only client mirror of the hub's SupplyState. It is
// replaced wholesale by hub responses, never mutated locally.
type Ledger struct {
	mu    sync.RWMutex
	state *domain.SupplyState
}

func NewLedger() *Ledger {
	return &Ledger{}
}

// Set replaces the mirrored state with the hub's latest answer.
func (l *Ledger) Set(state *domain.SupplyState) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.state = state
}

// State returns a copy of the mirrored state, or ErrStateUnavailable before
// the first successful fetch.
func (l *Ledger) State() (*domain.SupplyState, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.state == nil {
		return nil, errors.ErrStateUnavailable
	}
	copied := *l.state
	if l.state.MaxSupply != nil {
		max := *l.state.MaxSupply
		copied.MaxSupply = &max
	}
	return &copied, nil
}

// CanApply checks an operation against the mirrored ledger. The check is
// advisory: it gates submission in the UI, while the hub re-validates every
// operation independently.
func (l *Ledger) CanApply(op Operation) error {
	state, err := l.State()
	if err != nil {
		return err
	}
	return Validate(state, op)
}

// Validate applies the precondition rules for one operation against a given
// state snapshot.
func Validate(state *domain.SupplyState, op Operation) error {
	switch op.Action {
	case domain.ActionIssue:
		if op.Amount <= 0 {
			return errors.ErrInvalidAmount
		}
		if state.Bounded() && state.TotalSupply+op.Amount > *state.MaxSupply {
			return errors.ErrExceedsMaxSupply
		}
	case domain.ActionReleaseFromHolding:
		if op.Amount <= 0 {
			return errors.ErrInvalidAmount
		}
		if op.Amount > state.HoldingSupply {
			return errors.ErrInsufficientPool
		}
	case domain.ActionRebalanceReserve:
		if op.Amount <= 0 {
			return errors.ErrInvalidAmount
		}
		if op.Amount > state.ReserveSupply {
			return errors.ErrInsufficientPool
		}
	case domain.ActionMoveToReserve:
		if op.Amount <= 0 {
			return errors.ErrInvalidAmount
		}
		if op.Amount > state.CirculatingSupply {
			return errors.ErrInsufficientPool
		}
	case domain.ActionAdjustMaxSupply:
		if op.NewMax != nil && *op.NewMax < state.TotalSupply {
			return errors.ErrExceedsMaxSupply
		}
	case domain.ActionUpdateValue:
		if op.Value.Sign() <= 0 {
			return errors.ErrInvalidArgument
		}
	default:
		return errors.ErrInvalidArgument
	}
	return nil
}
