// Package domain defines the canonical types for the MyPts supply accounting
// model. Every hub response shape is normalized into these types at the API
// boundary; nothing outside this package depends on the hub's wire format.
package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SupplyAction identifies a mutating supply operation.
type SupplyAction string

const (
	ActionIssue              SupplyAction = "ISSUE"
	ActionReleaseFromHolding SupplyAction = "RELEASE_FROM_HOLDING"
	ActionRebalanceReserve   SupplyAction = "REBALANCE_RESERVE_TO_CIRCULATION"
	ActionMoveToReserve      SupplyAction = "MOVE_TO_RESERVE"
	ActionAdjustMaxSupply    SupplyAction = "ADJUST_MAX_SUPPLY"
	ActionUpdateValue        SupplyAction = "UPDATE_VALUE"
	ActionReconcile          SupplyAction = "RECONCILE"
)

// MinReasonLength is the shortest accepted audit justification for any
// mutating operation, measured after trimming whitespace.
const MinReasonLength = 5

// SupplyState mirrors the hub's authoritative supply ledger. Supplies are
// whole units; there is no fractional MyPt. A nil MaxSupply means unbounded.
type SupplyState struct {
	TotalSupply       int64           `json:"total_supply"`
	HoldingSupply     int64           `json:"holding_supply"`
	ReserveSupply     int64           `json:"reserve_supply"`
	CirculatingSupply int64           `json:"circulating_supply"`
	MaxSupply         *int64          `json:"max_supply"`
	ValuePerUnit      decimal.Decimal `json:"value_per_unit"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// Bounded reports whether a max-supply cap is in effect.
func (s *SupplyState) Bounded() bool {
	return s.MaxSupply != nil
}

// Conserved reports whether total supply equals the sum of the three pools.
func (s *SupplyState) Conserved() bool {
	return s.TotalSupply == s.HoldingSupply+s.ReserveSupply+s.CirculatingSupply
}

// NonNegative reports whether all four supply figures are >= 0.
func (s *SupplyState) NonNegative() bool {
	return s.TotalSupply >= 0 && s.HoldingSupply >= 0 &&
		s.ReserveSupply >= 0 && s.CirculatingSupply >= 0
}

// ExchangeRate is the stored per-currency rate: units of the currency per
// one MyPt, derived from the value per unit and the external USD rate.
type ExchangeRate struct {
	CurrencyCode string          `json:"currency_code"`
	Symbol       string          `json:"symbol"`
	Rate         decimal.Decimal `json:"rate"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// MyPtsValue is the canonical value object: the base USD value of one MyPt
// plus the stored per-currency exchange rates.
type MyPtsValue struct {
	BaseValue     decimal.Decimal `json:"base_value"`
	BaseCurrency  string          `json:"base_currency"`
	BaseSymbol    string          `json:"base_symbol"`
	ValuePerPts   decimal.Decimal `json:"value_per_pts"`
	ExchangeRates []ExchangeRate  `json:"exchange_rates"`
}

// SupplyLogEntry is one immutable hub audit record. The console only reads
// these for display.
type SupplyLogEntry struct {
	ID                      uuid.UUID       `json:"id"`
	Action                  SupplyAction    `json:"action"`
	Amount                  decimal.Decimal `json:"amount"`
	Reason                  string          `json:"reason"`
	AdminID                 uuid.UUID       `json:"admin_id"`
	TotalSupplyBefore       int64           `json:"total_supply_before"`
	TotalSupplyAfter        int64           `json:"total_supply_after"`
	CirculatingSupplyBefore int64           `json:"circulating_supply_before"`
	CirculatingSupplyAfter  int64           `json:"circulating_supply_after"`
	ReserveSupplyBefore     int64           `json:"reserve_supply_before"`
	ReserveSupplyAfter      int64           `json:"reserve_supply_after"`
	ValuePerMyPt            decimal.Decimal `json:"value_per_mypt"`
	CreatedAt               time.Time       `json:"created_at"`
}

// ConsistencyCheckResult classifies the ledger against the independently
// computed sum of account balances. An inconsistent result is a valid,
// expected outcome, not an error.
type ConsistencyCheckResult struct {
	LedgerCirculatingSupply int64     `json:"ledger_circulating_supply"`
	ActualCirculatingSupply int64     `json:"actual_circulating_supply"`
	Difference              int64     `json:"difference"`
	IsConsistent            bool      `json:"is_consistent"`
	CheckedAt               time.Time `json:"checked_at"`
}

// NewConsistencyCheckResult derives difference and consistency from the two
// circulating supply figures.
func NewConsistencyCheckResult(ledger, actual int64, at time.Time) *ConsistencyCheckResult {
	diff := ledger - actual
	return &ConsistencyCheckResult{
		LedgerCirculatingSupply: ledger,
		ActualCirculatingSupply: actual,
		Difference:              diff,
		IsConsistent:            diff == 0,
		CheckedAt:               at,
	}
}

// RateSnapshot is one fetch from the external USD rate source.
type RateSnapshot struct {
	Base        string                     `json:"base"`
	Rates       map[string]decimal.Decimal `json:"rates"`
	LastUpdated time.Time                  `json:"last_updated"`
	NextUpdate  time.Time                  `json:"next_update"`
}

// SchedulerPrefs is client-local state for periodic verification. It is a
// UI convenience, never authoritative, and lives outside the hub.
type SchedulerPrefs struct {
	Enabled         bool       `json:"enabled"`
	IntervalMinutes int        `json:"interval_minutes"`
	LastCheckAt     *time.Time `json:"last_check_at,omitempty"`
}

// ConsoleAuditEntry records an admin-initiated operation attempt on the
// console side, independent of the hub's own supply log.
type ConsoleAuditEntry struct {
	ID           uuid.UUID       `json:"id" db:"id"`
	AdminID      uuid.UUID       `json:"admin_id" db:"admin_id"`
	Action       SupplyAction    `json:"action" db:"action"`
	Amount       decimal.Decimal `json:"amount" db:"amount"`
	Reason       string          `json:"reason" db:"reason"`
	RequestID    string          `json:"request_id" db:"request_id"`
	Succeeded    bool            `json:"succeeded" db:"succeeded"`
	ErrorMessage *string         `json:"error_message,omitempty" db:"error_message"`
	CreatedAt    time.Time       `json:"created_at" db:"created_at"`
}
