package verifier

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"mypts/internal/domain"
	"mypts/pkg/errors"
	"mypts/pkg/logger"
)

type mockHubClient struct {
	mock.Mock
}

func (m *mockHubClient) Verify(ctx context.Context) (*domain.ConsistencyCheckResult, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ConsistencyCheckResult), args.Error(1)
}

func (m *mockHubClient) Reconcile(ctx context.Context, reason string) (*domain.SupplyState, string, error) {
	args := m.Called(ctx, reason)
	if args.Get(0) == nil {
		return nil, args.String(1), args.Error(2)
	}
	return args.Get(0).(*domain.SupplyState), args.String(1), args.Error(2)
}

func TestVerifyConsistent(t *testing.T) {
	hub := new(mockHubClient)
	svc := NewService(hub, logger.NewNop())

	result := domain.NewConsistencyCheckResult(5000, 5000, time.Now())
	hub.On("Verify", mock.Anything).Return(result, nil)

	got, err := svc.Verify(context.Background())

	assert.NoError(t, err)
	assert.True(t, got.IsConsistent)
	assert.Equal(t, int64(0), got.Difference)
	assert.Equal(t, result, svc.Last())
}

func TestVerifyDetectsDivergence(t *testing.T) {
	hub := new(mockHubClient)
	svc := NewService(hub, logger.NewNop())

	result := domain.NewConsistencyCheckResult(4970, 5000, time.Now())
	hub.On("Verify", mock.Anything).Return(result, nil)

	got, err := svc.Verify(context.Background())

	assert.NoError(t, err)
	assert.False(t, got.IsConsistent)
	assert.Equal(t, int64(-30), got.Difference)
}

func TestVerifyErrorLeavesLastUntouched(t *testing.T) {
	hub := new(mockHubClient)
	svc := NewService(hub, logger.NewNop())

	hub.On("Verify", mock.Anything).Return(nil, assert.AnError)

	_, err := svc.Verify(context.Background())

	assert.Error(t, err)
	assert.Nil(t, svc.Last())
}

func TestPlanCorrection(t *testing.T) {
	now := time.Now()

	assert.Nil(t, PlanCorrection(nil))
	assert.Nil(t, PlanCorrection(domain.NewConsistencyCheckResult(5000, 5000, now)))

	// Ledger claims more than the accounts hold: issue the gap.
	plan := PlanCorrection(domain.NewConsistencyCheckResult(5040, 5000, now))
	assert.Equal(t, domain.ActionIssue, plan.Action)
	assert.Equal(t, int64(40), plan.Amount)

	// Accounts hold more than the ledger claims: park the excess in reserve.
	plan = PlanCorrection(domain.NewConsistencyCheckResult(4970, 5000, now))
	assert.Equal(t, domain.ActionMoveToReserve, plan.Action)
	assert.Equal(t, int64(30), plan.Amount)
}

func TestReconcileRequiresPriorInconsistentResult(t *testing.T) {
	hub := new(mockHubClient)
	svc := NewService(hub, logger.NewNop())

	// No verification yet.
	_, _, err := svc.Reconcile(context.Background(), "correct drift")
	assert.ErrorIs(t, err, errors.ErrNothingToReconcile)

	// Last verification was clean.
	hub.On("Verify", mock.Anything).Return(domain.NewConsistencyCheckResult(5000, 5000, time.Now()), nil)
	_, verr := svc.Verify(context.Background())
	assert.NoError(t, verr)

	_, _, err = svc.Reconcile(context.Background(), "correct drift")
	assert.ErrorIs(t, err, errors.ErrNothingToReconcile)
	hub.AssertNotCalled(t, "Reconcile", mock.Anything, mock.Anything)
}

func TestReconcileRequiresReason(t *testing.T) {
	hub := new(mockHubClient)
	svc := NewService(hub, logger.NewNop())

	_, _, err := svc.Reconcile(context.Background(), "  ok  ")
	assert.ErrorIs(t, err, errors.ErrMissingReason)

	// Same rule as the supply operations: one character short is rejected.
	_, _, err = svc.Reconcile(context.Background(), strings.Repeat("x", domain.MinReasonLength-1))
	assert.ErrorIs(t, err, errors.ErrMissingReason)
}

func TestReconcileClearsResultOnSuccess(t *testing.T) {
	hub := new(mockHubClient)
	svc := NewService(hub, logger.NewNop())

	hub.On("Verify", mock.Anything).Return(domain.NewConsistencyCheckResult(4970, 5000, time.Now()), nil)
	_, err := svc.Verify(context.Background())
	assert.NoError(t, err)

	after := &domain.SupplyState{TotalSupply: 10000, CirculatingSupply: 4970, ReserveSupply: 30, HoldingSupply: 5000}
	hub.On("Reconcile", mock.Anything, "scheduled drift correction").
		Return(after, "Moved 30 MyPts to reserve", nil)

	state, message, err := svc.Reconcile(context.Background(), "scheduled drift correction")

	assert.NoError(t, err)
	assert.Equal(t, after, state)
	assert.Equal(t, "Moved 30 MyPts to reserve", message)

	// A second reconcile needs a fresh verification first.
	_, _, err = svc.Reconcile(context.Background(), "scheduled drift correction")
	assert.ErrorIs(t, err, errors.ErrNothingToReconcile)
}

func TestReconcileHubFailureKeepsResult(t *testing.T) {
	hub := new(mockHubClient)
	svc := NewService(hub, logger.NewNop())

	hub.On("Verify", mock.Anything).Return(domain.NewConsistencyCheckResult(5040, 5000, time.Now()), nil)
	_, err := svc.Verify(context.Background())
	assert.NoError(t, err)

	hub.On("Reconcile", mock.Anything, "first attempt").Return(nil, "", assert.AnError)

	_, _, err = svc.Reconcile(context.Background(), "first attempt")
	assert.Error(t, err)
	assert.NotNil(t, svc.Last(), "a failed reconcile must not consume the pending result")
}
