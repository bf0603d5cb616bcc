package currency

import (
	"context"
	"time"

	"mypts/internal/domain"
	"mypts/pkg/errors"
	"mypts/pkg/logger"
)

// HubClient is the slice of the hub API the value service needs.
type HubClient interface {
	Value(ctx context.Context) (*domain.MyPtsValue, error)
	UpdateExchangeRates(ctx context.Context, rates []domain.ExchangeRate) (*domain.MyPtsValue, error)
}

// RateSource supplies external USD rate snapshots.
type RateSource interface {
	Latest(ctx context.Context, base string, force bool) (*domain.RateSnapshot, error)
}

// Service exposes the value object, recompute previews, and the explicit
// sync action that persists recomputed rates back to the hub.
type Service struct {
	hub    HubClient
	source RateSource
	logger logger.Logger
}

func NewService(hub HubClient, source RateSource, log logger.Logger) *Service {
	return &Service{
		hub:    hub,
		source: source,
		logger: log,
	}
}

// Value fetches the canonical value object from the hub.
func (s *Service) Value(ctx context.Context) (*domain.MyPtsValue, error) {
	return s.hub.Value(ctx)
}

// Preview recomputes every stored rate against a fresh external snapshot.
// Nothing is persisted; the result feeds the admin review table.
func (s *Service) Preview(ctx context.Context, force bool) ([]RateCandidate, error) {
	value, err := s.hub.Value(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to fetch value")
	}

	snap, err := s.source.Latest(ctx, value.BaseCurrency, force)
	if err != nil {
		return nil, errors.Wrap(err, "failed to fetch rate snapshot")
	}

	return RecomputeRates(value.ValuePerPts, snap, value.ExchangeRates)
}

// Sync recomputes all stored rates and persists the result to the hub in a
// single update. Currencies absent from the external snapshot keep their
// stored rate.
func (s *Service) Sync(ctx context.Context) (*domain.MyPtsValue, error) {
	candidates, err := s.Preview(ctx, true)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	rates := make([]domain.ExchangeRate, 0, len(candidates))
	for _, cand := range candidates {
		rates = append(rates, domain.ExchangeRate{
			CurrencyCode: cand.CurrencyCode,
			Symbol:       cand.Symbol,
			Rate:         cand.ComputedRate,
			UpdatedAt:    now,
		})
	}

	updated, err := s.hub.UpdateExchangeRates(ctx, rates)
	if err != nil {
		return nil, errors.Wrap(err, "failed to persist exchange rates")
	}

	s.logger.Info("Exchange rates synced", map[string]interface{}{
		"currencies": len(rates),
	})

	return updated, nil
}
