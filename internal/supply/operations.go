package supply

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"mypts/internal/domain"
	"mypts/internal/middleware"
	"mypts/pkg/errors"
	"mypts/pkg/logger"
	"mypts/pkg/validator"
)

// HubClient is the slice of the hub API the operations service needs. Every
// mutation is performed atomically by the hub and returns the updated state.
type HubClient interface {
	SupplyState(ctx context.Context) (*domain.SupplyState, error)
	Issue(ctx context.Context, amount int64, reason string, metadata map[string]interface{}) (*domain.SupplyState, error)
	MoveToCirculation(ctx context.Context, amount int64, reason string, metadata map[string]interface{}) (*domain.SupplyState, error)
	MoveToReserve(ctx context.Context, amount int64, reason string, metadata map[string]interface{}) (*domain.SupplyState, error)
	SetMaxSupply(ctx context.Context, maxSupply *int64, reason string) (*domain.SupplyState, error)
	UpdateValuePerMyPt(ctx context.Context, value decimal.Decimal) (*domain.SupplyState, error)
	SupplyLogs(ctx context.Context, filter LogFilter) ([]*domain.SupplyLogEntry, int, error)
}

// AuditStore records console-side operation attempts.
type AuditStore interface {
	Record(ctx context.Context, entry *domain.ConsoleAuditEntry) error
}

// LogFilter narrows hub supply-log queries.
type LogFilter struct {
	Action    domain.SupplyAction
	StartDate *time.Time
	EndDate   *time.Time
	Limit     int
	Offset    int
}

// Service implements the two-phase supply operations: advisory validation
// against the mirrored ledger, then a single hub call. The mirror is only
// ever replaced by the hub's response; no optimistic updates.
type Service struct {
	hub    HubClient
	ledger *Ledger
	audit  AuditStore
	logger logger.Logger
}

func NewService(hub HubClient, ledger *Ledger, audit AuditStore, log logger.Logger) *Service {
	return &Service{
		hub:    hub,
		ledger: ledger,
		audit:  audit,
		logger: log,
	}
}

// Ledger exposes the mirrored state for read-only consumers.
func (s *Service) Ledger() *Ledger {
	return s.ledger
}

// Refresh re-fetches the authoritative state from the hub.
func (s *Service) Refresh(ctx context.Context) (*domain.SupplyState, error) {
	state, err := s.hub.SupplyState(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to fetch supply state")
	}
	s.ledger.Set(state)
	return state, nil
}

// IssueRequest creates new supply into the holding pool.
type IssueRequest struct {
	Amount int64  `json:"amount" validate:"required,gt=0"`
	Reason string `json:"reason" validate:"required,min=5"`
}

// Issue mints new units into holding, subject to the max-supply cap.
func (s *Service) Issue(ctx context.Context, adminID uuid.UUID, req *IssueRequest) (*domain.SupplyState, error) {
	if err := checkReason(req.Reason); err != nil {
		return nil, err
	}
	req.Reason = cleanReason(req.Reason)
	if err := s.ledger.CanApply(Operation{Action: domain.ActionIssue, Amount: req.Amount}); err != nil {
		return nil, err
	}

	state, err := s.hub.Issue(ctx, req.Amount, req.Reason, nil)
	s.record(ctx, adminID, domain.ActionIssue, decimal.NewFromInt(req.Amount), req.Reason, err)
	if err != nil {
		return nil, err
	}

	s.ledger.Set(state)
	s.logger.Info("Supply issued", map[string]interface{}{
		"amount":       req.Amount,
		"total_supply": state.TotalSupply,
		"admin_id":     adminID,
	})
	return state, nil
}

// MoveRequest moves units between pools.
type MoveRequest struct {
	Amount int64  `json:"amount" validate:"required,gt=0"`
	Reason string `json:"reason" validate:"required,min=5"`
}

// ReleaseFromHolding moves units from holding into circulation.
func (s *Service) ReleaseFromHolding(ctx context.Context, adminID uuid.UUID, req *MoveRequest) (*domain.SupplyState, error) {
	return s.moveToCirculation(ctx, adminID, req, domain.ActionReleaseFromHolding, "holding")
}

// RebalanceReserveToCirculation moves units from reserve into circulation.
func (s *Service) RebalanceReserveToCirculation(ctx context.Context, adminID uuid.UUID, req *MoveRequest) (*domain.SupplyState, error) {
	return s.moveToCirculation(ctx, adminID, req, domain.ActionRebalanceReserve, "reserve")
}

func (s *Service) moveToCirculation(ctx context.Context, adminID uuid.UUID, req *MoveRequest, action domain.SupplyAction, source string) (*domain.SupplyState, error) {
	if err := checkReason(req.Reason); err != nil {
		return nil, err
	}
	req.Reason = cleanReason(req.Reason)
	if err := s.ledger.CanApply(Operation{Action: action, Amount: req.Amount}); err != nil {
		return nil, err
	}

	// The hub exposes a single move-to-circulation endpoint; the source pool
	// travels in metadata so both operations stay distinguishable in its log.
	state, err := s.hub.MoveToCirculation(ctx, req.Amount, req.Reason, map[string]interface{}{
		"source": source,
	})
	s.record(ctx, adminID, action, decimal.NewFromInt(req.Amount), req.Reason, err)
	if err != nil {
		return nil, err
	}

	s.ledger.Set(state)
	s.logger.Info("Supply moved to circulation", map[string]interface{}{
		"amount":   req.Amount,
		"source":   source,
		"admin_id": adminID,
	})
	return state, nil
}

// MoveToReserve withdraws units from circulation into reserve.
func (s *Service) MoveToReserve(ctx context.Context, adminID uuid.UUID, req *MoveRequest) (*domain.SupplyState, error) {
	if err := checkReason(req.Reason); err != nil {
		return nil, err
	}
	req.Reason = cleanReason(req.Reason)
	if err := s.ledger.CanApply(Operation{Action: domain.ActionMoveToReserve, Amount: req.Amount}); err != nil {
		return nil, err
	}

	state, err := s.hub.MoveToReserve(ctx, req.Amount, req.Reason, nil)
	s.record(ctx, adminID, domain.ActionMoveToReserve, decimal.NewFromInt(req.Amount), req.Reason, err)
	if err != nil {
		return nil, err
	}

	s.ledger.Set(state)
	s.logger.Info("Supply moved to reserve", map[string]interface{}{
		"amount":   req.Amount,
		"admin_id": adminID,
	})
	return state, nil
}

// AdjustMaxSupplyRequest changes or removes the max-supply cap.
type AdjustMaxSupplyRequest struct {
	MaxSupply *int64 `json:"max_supply" validate:"omitempty,gte=0"`
	Reason    string `json:"reason" validate:"required,min=5"`
}

// AdjustMaxSupply sets a new cap, or lifts it entirely when MaxSupply is nil.
func (s *Service) AdjustMaxSupply(ctx context.Context, adminID uuid.UUID, req *AdjustMaxSupplyRequest) (*domain.SupplyState, error) {
	if err := checkReason(req.Reason); err != nil {
		return nil, err
	}
	req.Reason = cleanReason(req.Reason)
	if err := s.ledger.CanApply(Operation{Action: domain.ActionAdjustMaxSupply, NewMax: req.MaxSupply}); err != nil {
		return nil, err
	}

	amount := decimal.Zero
	if req.MaxSupply != nil {
		amount = decimal.NewFromInt(*req.MaxSupply)
	}

	state, err := s.hub.SetMaxSupply(ctx, req.MaxSupply, req.Reason)
	s.record(ctx, adminID, domain.ActionAdjustMaxSupply, amount, req.Reason, err)
	if err != nil {
		return nil, err
	}

	s.ledger.Set(state)
	return state, nil
}

// UpdateValueRequest changes the USD value of one MyPt.
type UpdateValueRequest struct {
	Value decimal.Decimal `json:"value" validate:"required,gt=0"`
}

// UpdateValue sets a new value per unit. Stored exchange rates are not
// touched here; recomputation and the explicit sync happen in the currency
// service.
func (s *Service) UpdateValue(ctx context.Context, adminID uuid.UUID, req *UpdateValueRequest) (*domain.SupplyState, error) {
	if err := s.ledger.CanApply(Operation{Action: domain.ActionUpdateValue, Value: req.Value}); err != nil {
		return nil, err
	}

	state, err := s.hub.UpdateValuePerMyPt(ctx, req.Value)
	s.record(ctx, adminID, domain.ActionUpdateValue, req.Value, "", err)
	if err != nil {
		return nil, err
	}

	s.ledger.Set(state)
	s.logger.Info("Value per MyPt updated", map[string]interface{}{
		"value":    req.Value.String(),
		"admin_id": adminID,
	})
	return state, nil
}

// SupplyLogs proxies the hub's paginated audit trail for display.
func (s *Service) SupplyLogs(ctx context.Context, filter LogFilter) ([]*domain.SupplyLogEntry, int, error) {
	if filter.Limit <= 0 || filter.Limit > 100 {
		filter.Limit = 20
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	return s.hub.SupplyLogs(ctx, filter)
}

// record writes a console audit entry. Audit failures are logged, never
// propagated into the operation result.
func (s *Service) record(ctx context.Context, adminID uuid.UUID, action domain.SupplyAction, amount decimal.Decimal, reason string, opErr error) {
	if s.audit == nil {
		return
	}

	entry := &domain.ConsoleAuditEntry{
		ID:        uuid.New(),
		AdminID:   adminID,
		Action:    action,
		Amount:    amount,
		Reason:    reason,
		Succeeded: opErr == nil,
		CreatedAt: time.Now(),
	}
	if opErr != nil {
		msg := opErr.Error()
		entry.ErrorMessage = &msg
	}
	if reqID, ok := middleware.RequestIDFromContext(ctx); ok {
		entry.RequestID = reqID
	}

	if err := s.audit.Record(ctx, entry); err != nil {
		s.logger.Error("Failed to record console audit entry", map[string]interface{}{
			"action": action,
			"error":  err.Error(),
		})
	}
}

func checkReason(reason string) error {
	if len(strings.TrimSpace(reason)) < domain.MinReasonLength {
		return errors.ErrMissingReason
	}
	return nil
}

// cleanReason trims and escapes a reason before it is stored or displayed.
func cleanReason(reason string) string {
	return validator.Sanitize(reason)
}
