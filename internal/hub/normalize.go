package hub

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"mypts/internal/domain"
)

// The hub API has grown several envelope and nesting variants for the same
// logical resources. Everything is funneled through this file so the rest
// of the console only ever sees the canonical domain types.

// unwrapEnvelope strips an optional {success, message, data} envelope.
func unwrapEnvelope(payload []byte) (json.RawMessage, string) {
	var env struct {
		Success *bool           `json:"success"`
		Message string          `json:"message"`
		Data    json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(payload, &env); err != nil {
		return payload, ""
	}
	if len(env.Data) > 0 {
		return env.Data, env.Message
	}
	return payload, env.Message
}

// extractMessage pulls a human-readable error out of a non-success body.
func extractMessage(payload []byte) string {
	var body struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(payload, &body); err != nil {
		return ""
	}
	if body.Message != "" {
		return body.Message
	}
	return body.Error
}

type exchangeRateDTO struct {
	Currency  string          `json:"currency"`
	Symbol    string          `json:"symbol"`
	Rate      decimal.Decimal `json:"rate"`
	UpdatedAt *time.Time      `json:"updatedAt"`
}

func (d exchangeRateDTO) toDomain() domain.ExchangeRate {
	rate := domain.ExchangeRate{
		CurrencyCode: d.Currency,
		Symbol:       d.Symbol,
		Rate:         d.Rate,
	}
	if d.UpdatedAt != nil {
		rate.UpdatedAt = *d.UpdatedAt
	}
	return rate
}

type valueDTO struct {
	BaseValue     decimal.Decimal   `json:"baseValue"`
	BaseCurrency  string            `json:"baseCurrency"`
	BaseSymbol    string            `json:"baseSymbol"`
	ValuePerPts   decimal.Decimal   `json:"valuePerPts"`
	ValuePerMyPt  decimal.Decimal   `json:"valuePerMyPt"`
	ExchangeRates []exchangeRateDTO `json:"exchangeRates"`
}

func decodeValue(raw json.RawMessage) (*domain.MyPtsValue, error) {
	var dto valueDTO
	if err := json.Unmarshal(raw, &dto); err != nil {
		return nil, fmt.Errorf("failed to decode value object: %w", err)
	}

	perPts := dto.ValuePerPts
	if perPts.IsZero() {
		// Older deployments name the field valuePerMyPt.
		perPts = dto.ValuePerMyPt
	}

	value := &domain.MyPtsValue{
		BaseValue:    dto.BaseValue,
		BaseCurrency: dto.BaseCurrency,
		BaseSymbol:   dto.BaseSymbol,
		ValuePerPts:  perPts,
	}
	for _, r := range dto.ExchangeRates {
		value.ExchangeRates = append(value.ExchangeRates, r.toDomain())
	}
	return value, nil
}

type supplyStateDTO struct {
	TotalSupply       *int64          `json:"totalSupply"`
	HoldingSupply     int64           `json:"holdingSupply"`
	ReserveSupply     int64           `json:"reserveSupply"`
	CirculatingSupply int64           `json:"circulatingSupply"`
	MaxSupply         *int64          `json:"maxSupply"`
	ValuePerMyPt      decimal.Decimal `json:"valuePerMyPt"`
	ValuePerPts       decimal.Decimal `json:"valuePerPts"`
	UpdatedAt         *time.Time      `json:"updatedAt"`
	State             json.RawMessage `json:"state"`
	Hub               json.RawMessage `json:"hub"`
}

func decodeSupplyState(raw json.RawMessage) (*domain.SupplyState, error) {
	var dto supplyStateDTO
	if err := json.Unmarshal(raw, &dto); err != nil {
		return nil, fmt.Errorf("failed to decode supply state: %w", err)
	}

	// Some endpoints nest the state under "state" or "hub".
	if dto.TotalSupply == nil {
		if len(dto.State) > 0 {
			return decodeSupplyState(dto.State)
		}
		if len(dto.Hub) > 0 {
			return decodeSupplyState(dto.Hub)
		}
		return nil, fmt.Errorf("supply state missing from hub response")
	}

	value := dto.ValuePerMyPt
	if value.IsZero() {
		value = dto.ValuePerPts
	}

	state := &domain.SupplyState{
		TotalSupply:       *dto.TotalSupply,
		HoldingSupply:     dto.HoldingSupply,
		ReserveSupply:     dto.ReserveSupply,
		CirculatingSupply: dto.CirculatingSupply,
		MaxSupply:         dto.MaxSupply,
		ValuePerUnit:      value,
	}
	if dto.UpdatedAt != nil {
		state.UpdatedAt = *dto.UpdatedAt
	} else {
		state.UpdatedAt = time.Now()
	}
	return state, nil
}

type consistencyDTO struct {
	LedgerCirculatingSupply *int64 `json:"ledgerCirculatingSupply"`
	CirculatingSupply       *int64 `json:"circulatingSupply"`
	ActualCirculatingSupply int64  `json:"actualCirculatingSupply"`
}

func decodeConsistency(raw json.RawMessage) (*domain.ConsistencyCheckResult, error) {
	var dto consistencyDTO
	if err := json.Unmarshal(raw, &dto); err != nil {
		return nil, fmt.Errorf("failed to decode consistency result: %w", err)
	}

	// Older responses name the ledger figure circulatingSupply.
	ledger := dto.LedgerCirculatingSupply
	if ledger == nil {
		ledger = dto.CirculatingSupply
	}
	if ledger == nil {
		return nil, fmt.Errorf("consistency result missing ledger circulating supply")
	}

	// Difference and isConsistent are always rederived locally; the pair of
	// supply figures is the only trusted input.
	return domain.NewConsistencyCheckResult(*ledger, dto.ActualCirculatingSupply, time.Now()), nil
}

type supplyLogDTO struct {
	ID                      string          `json:"id"`
	Action                  string          `json:"action"`
	Amount                  decimal.Decimal `json:"amount"`
	Reason                  string          `json:"reason"`
	AdminID                 string          `json:"adminId"`
	TotalSupplyBefore       int64           `json:"totalSupplyBefore"`
	TotalSupplyAfter        int64           `json:"totalSupplyAfter"`
	CirculatingSupplyBefore int64           `json:"circulatingSupplyBefore"`
	CirculatingSupplyAfter  int64           `json:"circulatingSupplyAfter"`
	ReserveSupplyBefore     int64           `json:"reserveSupplyBefore"`
	ReserveSupplyAfter      int64           `json:"reserveSupplyAfter"`
	ValuePerMyPt            decimal.Decimal `json:"valuePerMyPt"`
	CreatedAt               time.Time       `json:"createdAt"`
}

func (d supplyLogDTO) toDomain() *domain.SupplyLogEntry {
	entry := &domain.SupplyLogEntry{
		Action:                  domain.SupplyAction(d.Action),
		Amount:                  d.Amount,
		Reason:                  d.Reason,
		TotalSupplyBefore:       d.TotalSupplyBefore,
		TotalSupplyAfter:        d.TotalSupplyAfter,
		CirculatingSupplyBefore: d.CirculatingSupplyBefore,
		CirculatingSupplyAfter:  d.CirculatingSupplyAfter,
		ReserveSupplyBefore:     d.ReserveSupplyBefore,
		ReserveSupplyAfter:      d.ReserveSupplyAfter,
		ValuePerMyPt:            d.ValuePerMyPt,
		CreatedAt:               d.CreatedAt,
	}
	if id, err := uuid.Parse(d.ID); err == nil {
		entry.ID = id
	}
	if adminID, err := uuid.Parse(d.AdminID); err == nil {
		entry.AdminID = adminID
	}
	return entry
}

func decodeSupplyLogs(raw json.RawMessage) ([]*domain.SupplyLogEntry, int, error) {
	// Paginated shape.
	var page struct {
		Logs  []supplyLogDTO `json:"logs"`
		Total *int           `json:"total"`
	}
	if err := json.Unmarshal(raw, &page); err == nil && page.Logs != nil {
		entries := make([]*domain.SupplyLogEntry, 0, len(page.Logs))
		for _, dto := range page.Logs {
			entries = append(entries, dto.toDomain())
		}
		total := len(entries)
		if page.Total != nil {
			total = *page.Total
		}
		return entries, total, nil
	}

	// Bare array shape.
	var dtos []supplyLogDTO
	if err := json.Unmarshal(raw, &dtos); err != nil {
		return nil, 0, fmt.Errorf("failed to decode supply logs: %w", err)
	}
	entries := make([]*domain.SupplyLogEntry, 0, len(dtos))
	for _, dto := range dtos {
		entries = append(entries, dto.toDomain())
	}
	return entries, len(entries), nil
}
