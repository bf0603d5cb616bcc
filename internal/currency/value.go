// Package currency implements the MyPts value model: deriving per-currency
// exchange rates from the base USD value and detecting stale stored rates.
package currency

import (
	"github.com/shopspring/decimal"

	"mypts/internal/domain"
	"mypts/pkg/errors"
)

// syncTolerance is the relative drift above which a stored rate is reported
// as out of sync with its recomputed value.
var syncTolerance = decimal.NewFromFloat(0.01)

// DeriveRate computes the stored-rate candidate for a currency: the base USD
// value of one MyPt multiplied by the external USD rate for that currency.
func DeriveRate(baseValueUSD, externalUSDRate decimal.Decimal) (decimal.Decimal, error) {
	if baseValueUSD.Sign() <= 0 || externalUSDRate.Sign() <= 0 {
		return decimal.Zero, errors.ErrInvalidArgument
	}
	return baseValueUSD.Mul(externalUSDRate), nil
}

// IsInSync reports whether a stored rate is within tolerance of its
// recomputed value. A non-positive stored rate is always out of sync.
func IsInSync(stored, computed decimal.Decimal) bool {
	if stored.Sign() <= 0 {
		return false
	}
	drift := stored.Sub(computed).Abs().Div(stored)
	return drift.LessThan(syncTolerance)
}

// RateCandidate pairs a stored rate with its recomputed value. Candidates
// are display-only; nothing is persisted until an explicit sync.
type RateCandidate struct {
	CurrencyCode string          `json:"currency_code"`
	Symbol       string          `json:"symbol"`
	StoredRate   decimal.Decimal `json:"stored_rate"`
	ComputedRate decimal.Decimal `json:"computed_rate"`
	InSync       bool            `json:"in_sync"`
}

// RecomputeRates derives fresh rate candidates for every stored currency
// from the given value per unit and external snapshot. Currencies missing
// from the snapshot keep their stored rate and are flagged out of sync.
func RecomputeRates(valuePerUnit decimal.Decimal, snap *domain.RateSnapshot, stored []domain.ExchangeRate) ([]RateCandidate, error) {
	if valuePerUnit.Sign() <= 0 {
		return nil, errors.ErrInvalidArgument
	}

	candidates := make([]RateCandidate, 0, len(stored))
	for _, rate := range stored {
		cand := RateCandidate{
			CurrencyCode: rate.CurrencyCode,
			Symbol:       rate.Symbol,
			StoredRate:   rate.Rate,
		}

		external, ok := snap.Rates[rate.CurrencyCode]
		if !ok || external.Sign() <= 0 {
			cand.ComputedRate = rate.Rate
			cand.InSync = false
			candidates = append(candidates, cand)
			continue
		}

		computed, err := DeriveRate(valuePerUnit, external)
		if err != nil {
			return nil, err
		}
		cand.ComputedRate = computed
		cand.InSync = IsInSync(rate.Rate, computed)
		candidates = append(candidates, cand)
	}

	return candidates, nil
}
