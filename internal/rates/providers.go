package rates

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"mypts/internal/domain"
)

// HTTPProvider fetches snapshots from the external rate API.
type HTTPProvider struct {
	baseURL string
	client  *http.Client
}

func NewHTTPProvider(baseURL string, timeout time.Duration) *HTTPProvider {
	return &HTTPProvider{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

func (p *HTTPProvider) Name() string {
	return "ExchangeRateAPI"
}

func (p *HTTPProvider) Latest(ctx context.Context, base string) (*domain.RateSnapshot, error) {
	// The _t parameter defeats intermediary caching.
	q := url.Values{}
	q.Set("_t", strconv.FormatInt(time.Now().UnixMilli(), 10))
	endpoint := fmt.Sprintf("%s/exchange-rates/latest/%s?%s", p.baseURL, url.PathEscape(base), q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("rate source request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("rate source returned status %d", resp.StatusCode)
	}

	var payload struct {
		Base        string             `json:"base"`
		Rates       map[string]float64 `json:"rates"`
		LastUpdated time.Time          `json:"lastUpdated"`
		NextUpdate  time.Time          `json:"nextUpdate"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode rate snapshot: %w", err)
	}
	if len(payload.Rates) == 0 {
		return nil, fmt.Errorf("rate source returned no rates for %s", base)
	}

	snap := &domain.RateSnapshot{
		Base:        base,
		Rates:       make(map[string]decimal.Decimal, len(payload.Rates)),
		LastUpdated: payload.LastUpdated,
		NextUpdate:  payload.NextUpdate,
	}
	if payload.Base != "" {
		snap.Base = payload.Base
	}
	for code, rate := range payload.Rates {
		snap.Rates[code] = decimal.NewFromFloat(rate)
	}
	return snap, nil
}

// StaticProvider serves a fixed snapshot, for tests and offline runs.
type StaticProvider struct {
	Snapshot *domain.RateSnapshot
	Err      error
}

func (p *StaticProvider) Name() string {
	return "StaticProvider"
}

func (p *StaticProvider) Latest(ctx context.Context, base string) (*domain.RateSnapshot, error) {
	if p.Err != nil {
		return nil, p.Err
	}
	return p.Snapshot, nil
}
