// Package hub is the typed REST client for the authoritative MyPts hub.
// All response shapes are normalized into the domain types before they
// leave this package.
package hub

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"mypts/internal/auth"
	"mypts/internal/domain"
	"mypts/internal/supply"
	"mypts/pkg/errors"
	"mypts/pkg/logger"
)

// Error is a non-success hub response. The message is displayed to the
// admin verbatim; the console does not interpret it.
type Error struct {
	Status  int
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("hub returned status %d", e.Status)
	}
	return fmt.Sprintf("hub returned status %d: %s", e.Status, e.Message)
}

// Unwrap maps 401 responses onto ErrUnauthorized so the token-refresh
// wrapper can recognize them.
func (e *Error) Unwrap() error {
	if e.Status == http.StatusUnauthorized {
		return errors.ErrUnauthorized
	}
	return nil
}

// Client talks to the hub over HTTPS with bearer auth.
type Client struct {
	baseURL string
	http    *http.Client
	tokens  auth.TokenProvider
	logger  logger.Logger
}

func NewClient(baseURL string, timeout time.Duration, tokens auth.TokenProvider, log logger.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
		tokens:  tokens,
		logger:  log,
	}
}

// Value fetches the canonical value object.
func (c *Client) Value(ctx context.Context) (*domain.MyPtsValue, error) {
	raw, err := c.do(ctx, http.MethodGet, "/mypts/value", nil)
	if err != nil {
		return nil, err
	}
	return decodeValue(raw)
}

// UpdateExchangeRates persists a full set of recomputed rates.
func (c *Client) UpdateExchangeRates(ctx context.Context, rates []domain.ExchangeRate) (*domain.MyPtsValue, error) {
	body := make([]exchangeRateDTO, 0, len(rates))
	for _, r := range rates {
		body = append(body, exchangeRateDTO{
			Currency: r.CurrencyCode,
			Symbol:   r.Symbol,
			Rate:     r.Rate,
		})
	}
	raw, err := c.do(ctx, http.MethodPut, "/mypts/value/exchange-rates", body)
	if err != nil {
		return nil, err
	}
	return decodeValue(raw)
}

// SupplyState fetches the authoritative ledger state.
func (c *Client) SupplyState(ctx context.Context) (*domain.SupplyState, error) {
	raw, err := c.do(ctx, http.MethodGet, "/mypts/hub", nil)
	if err != nil {
		return nil, err
	}
	return decodeSupplyState(raw)
}

// UpdateValuePerMyPt sets a new USD value per unit.
func (c *Client) UpdateValuePerMyPt(ctx context.Context, value decimal.Decimal) (*domain.SupplyState, error) {
	raw, err := c.do(ctx, http.MethodPut, "/mypts/hub/value-per-mypt", map[string]interface{}{
		"value": value,
	})
	if err != nil {
		return nil, err
	}
	return decodeSupplyState(raw)
}

// Issue mints new supply into holding.
func (c *Client) Issue(ctx context.Context, amount int64, reason string, metadata map[string]interface{}) (*domain.SupplyState, error) {
	return c.mutate(ctx, http.MethodPost, "/mypts/hub/issue", amount, reason, metadata)
}

// MoveToCirculation releases units into circulation; the source pool rides
// in metadata.
func (c *Client) MoveToCirculation(ctx context.Context, amount int64, reason string, metadata map[string]interface{}) (*domain.SupplyState, error) {
	return c.mutate(ctx, http.MethodPost, "/mypts/hub/move-to-circulation", amount, reason, metadata)
}

// MoveToReserve withdraws units from circulation into reserve.
func (c *Client) MoveToReserve(ctx context.Context, amount int64, reason string, metadata map[string]interface{}) (*domain.SupplyState, error) {
	return c.mutate(ctx, http.MethodPost, "/mypts/hub/move-to-reserve", amount, reason, metadata)
}

func (c *Client) mutate(ctx context.Context, method, path string, amount int64, reason string, metadata map[string]interface{}) (*domain.SupplyState, error) {
	body := map[string]interface{}{
		"amount": amount,
		"reason": reason,
	}
	if len(metadata) > 0 {
		body["metadata"] = metadata
	}
	raw, err := c.do(ctx, method, path, body)
	if err != nil {
		return nil, err
	}
	return decodeSupplyState(raw)
}

// SetMaxSupply updates the cap; nil lifts it.
func (c *Client) SetMaxSupply(ctx context.Context, maxSupply *int64, reason string) (*domain.SupplyState, error) {
	raw, err := c.do(ctx, http.MethodPut, "/mypts/hub/max-supply", map[string]interface{}{
		"maxSupply": maxSupply,
		"reason":    reason,
	})
	if err != nil {
		return nil, err
	}
	return decodeSupplyState(raw)
}

// Verify asks the hub to compare the ledger against the computed sum of
// account balances.
func (c *Client) Verify(ctx context.Context) (*domain.ConsistencyCheckResult, error) {
	raw, err := c.do(ctx, http.MethodGet, "/mypts/hub/verify", nil)
	if err != nil {
		return nil, err
	}
	return decodeConsistency(raw)
}

// Reconcile triggers the hub's corrective operation and returns the updated
// state plus the hub's message.
func (c *Client) Reconcile(ctx context.Context, reason string) (*domain.SupplyState, string, error) {
	raw, message, err := c.doWithMessage(ctx, http.MethodPost, "/mypts/hub/reconcile", map[string]interface{}{
		"reason": reason,
	})
	if err != nil {
		return nil, "", err
	}
	state, err := decodeSupplyState(raw)
	if err != nil {
		return nil, "", err
	}
	return state, message, nil
}

// SupplyLogs fetches the hub's paginated audit trail.
func (c *Client) SupplyLogs(ctx context.Context, filter supply.LogFilter) ([]*domain.SupplyLogEntry, int, error) {
	q := url.Values{}
	if filter.Action != "" {
		q.Set("action", string(filter.Action))
	}
	if filter.StartDate != nil {
		q.Set("startDate", filter.StartDate.UTC().Format(time.RFC3339))
	}
	if filter.EndDate != nil {
		q.Set("endDate", filter.EndDate.UTC().Format(time.RFC3339))
	}
	q.Set("limit", strconv.Itoa(filter.Limit))
	q.Set("offset", strconv.Itoa(filter.Offset))

	raw, err := c.do(ctx, http.MethodGet, "/mypts/hub/supply-logs?"+q.Encode(), nil)
	if err != nil {
		return nil, 0, err
	}
	return decodeSupplyLogs(raw)
}

func (c *Client) do(ctx context.Context, method, path string, body interface{}) (json.RawMessage, error) {
	raw, _, err := c.doWithMessage(ctx, method, path, body)
	return raw, err
}

// doWithMessage performs one authenticated round trip, refreshing the token
// once on 401, and returns the raw payload plus any envelope message.
func (c *Client) doWithMessage(ctx context.Context, method, path string, body interface{}) (json.RawMessage, string, error) {
	var encoded []byte
	if body != nil {
		var err error
		encoded, err = json.Marshal(body)
		if err != nil {
			return nil, "", err
		}
	}

	var raw json.RawMessage
	var message string
	err := auth.WithFreshToken(ctx, c.tokens, func(token string) error {
		var reader io.Reader
		if encoded != nil {
			reader = bytes.NewReader(encoded)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
		if err != nil {
			return err
		}
		req.Header.Set("Accept", "application/json")
		if encoded != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return errors.Wrap(err, "hub request failed")
		}
		defer resp.Body.Close()

		payload, err := io.ReadAll(resp.Body)
		if err != nil {
			return errors.Wrap(err, "failed to read hub response")
		}

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return &Error{Status: resp.StatusCode, Message: extractMessage(payload)}
		}

		raw, message = unwrapEnvelope(payload)
		return nil
	})
	if err != nil {
		return nil, "", err
	}
	return raw, message, nil
}
