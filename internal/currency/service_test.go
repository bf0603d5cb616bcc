package currency

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"mypts/internal/domain"
	"mypts/pkg/logger"
)

type mockHubClient struct {
	mock.Mock
}

func (m *mockHubClient) Value(ctx context.Context) (*domain.MyPtsValue, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.MyPtsValue), args.Error(1)
}

func (m *mockHubClient) UpdateExchangeRates(ctx context.Context, rates []domain.ExchangeRate) (*domain.MyPtsValue, error) {
	args := m.Called(ctx, rates)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.MyPtsValue), args.Error(1)
}

type stubRateSource struct {
	snap   *domain.RateSnapshot
	err    error
	forced []bool
}

func (s *stubRateSource) Latest(ctx context.Context, base string, force bool) (*domain.RateSnapshot, error) {
	s.forced = append(s.forced, force)
	if s.err != nil {
		return nil, s.err
	}
	return s.snap, nil
}

func storedValue() *domain.MyPtsValue {
	return &domain.MyPtsValue{
		BaseValue:    decimal.NewFromFloat(0.024),
		BaseCurrency: "USD",
		BaseSymbol:   "$",
		ValuePerPts:  decimal.NewFromFloat(0.024),
		ExchangeRates: []domain.ExchangeRate{
			{CurrencyCode: "EUR", Symbol: "€", Rate: decimal.NewFromFloat(0.0221)},
			{CurrencyCode: "GBP", Symbol: "£", Rate: decimal.NewFromFloat(0.05)},
		},
	}
}

func externalSnapshot() *domain.RateSnapshot {
	return &domain.RateSnapshot{
		Base: "USD",
		Rates: map[string]decimal.Decimal{
			"EUR": decimal.NewFromFloat(0.92),
			"GBP": decimal.NewFromFloat(0.79),
		},
		LastUpdated: time.Now(),
	}
}

func TestPreviewFlagsDriftedRates(t *testing.T) {
	hub := new(mockHubClient)
	source := &stubRateSource{snap: externalSnapshot()}
	svc := NewService(hub, source, logger.NewNop())

	hub.On("Value", mock.Anything).Return(storedValue(), nil)

	candidates, err := svc.Preview(context.Background(), false)

	assert.NoError(t, err)
	assert.Len(t, candidates, 2)
	assert.Equal(t, []bool{false}, source.forced)

	// 0.024 * 0.92 = 0.02208, within 1% of the stored 0.0221.
	assert.Equal(t, "EUR", candidates[0].CurrencyCode)
	assert.True(t, candidates[0].InSync)
	assert.Equal(t, "0.02208", candidates[0].ComputedRate.String())

	// 0.024 * 0.79 = 0.01896, far from the stored 0.05.
	assert.Equal(t, "GBP", candidates[1].CurrencyCode)
	assert.False(t, candidates[1].InSync)
}

func TestSyncPersistsComputedRates(t *testing.T) {
	hub := new(mockHubClient)
	source := &stubRateSource{snap: externalSnapshot()}
	svc := NewService(hub, source, logger.NewNop())

	hub.On("Value", mock.Anything).Return(storedValue(), nil)
	updated := storedValue()
	hub.On("UpdateExchangeRates", mock.Anything, mock.MatchedBy(func(rates []domain.ExchangeRate) bool {
		return len(rates) == 2 &&
			rates[0].CurrencyCode == "EUR" && rates[0].Rate.String() == "0.02208" &&
			rates[1].CurrencyCode == "GBP" && rates[1].Rate.String() == "0.01896"
	})).Return(updated, nil)

	got, err := svc.Sync(context.Background())

	assert.NoError(t, err)
	assert.Equal(t, updated, got)
	assert.Equal(t, []bool{true}, source.forced, "sync must bypass the rate cache")
	hub.AssertExpectations(t)
}

func TestSyncAbortsWhenSnapshotUnavailable(t *testing.T) {
	hub := new(mockHubClient)
	source := &stubRateSource{err: assert.AnError}
	svc := NewService(hub, source, logger.NewNop())

	hub.On("Value", mock.Anything).Return(storedValue(), nil)

	_, err := svc.Sync(context.Background())

	assert.Error(t, err)
	hub.AssertNotCalled(t, "UpdateExchangeRates", mock.Anything, mock.Anything)
}
