package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"mypts/internal/domain"
	"mypts/internal/middleware"
	"mypts/internal/supply"
	"mypts/pkg/logger"
	"mypts/pkg/validator"
)

type stubHub struct {
	state    *domain.SupplyState
	stateErr error
	issueErr error
	issued   []int64
}

func (s *stubHub) SupplyState(ctx context.Context) (*domain.SupplyState, error) {
	if s.stateErr != nil {
		return nil, s.stateErr
	}
	copied := *s.state
	return &copied, nil
}

func (s *stubHub) Issue(ctx context.Context, amount int64, reason string, metadata map[string]interface{}) (*domain.SupplyState, error) {
	if s.issueErr != nil {
		return nil, s.issueErr
	}
	s.issued = append(s.issued, amount)
	after := *s.state
	after.TotalSupply += amount
	after.HoldingSupply += amount
	return &after, nil
}

func (s *stubHub) MoveToCirculation(ctx context.Context, amount int64, reason string, metadata map[string]interface{}) (*domain.SupplyState, error) {
	after := *s.state
	return &after, nil
}

func (s *stubHub) MoveToReserve(ctx context.Context, amount int64, reason string, metadata map[string]interface{}) (*domain.SupplyState, error) {
	after := *s.state
	return &after, nil
}

func (s *stubHub) SetMaxSupply(ctx context.Context, maxSupply *int64, reason string) (*domain.SupplyState, error) {
	after := *s.state
	after.MaxSupply = maxSupply
	return &after, nil
}

func (s *stubHub) UpdateValuePerMyPt(ctx context.Context, value decimal.Decimal) (*domain.SupplyState, error) {
	after := *s.state
	after.ValuePerUnit = value
	return &after, nil
}

func (s *stubHub) SupplyLogs(ctx context.Context, filter supply.LogFilter) ([]*domain.SupplyLogEntry, int, error) {
	return []*domain.SupplyLogEntry{}, 0, nil
}

func newSupplyRouter(hub *stubHub) *mux.Router {
	ledger := supply.NewLedger()
	ledger.Set(hub.state)
	ops := supply.NewService(hub, ledger, nil, logger.NewNop())
	h := NewSupplyHandler(ops, validator.New(), logger.NewNop())

	r := mux.NewRouter()
	m := middleware.NewAuthMiddleware("test-secret")
	api := r.PathPrefix("/api/v1").Subrouter()
	api.Use(m.Authenticate)
	api.HandleFunc("/supply", h.GetState).Methods(http.MethodGet)

	admin := api.NewRoute().Subrouter()
	admin.Use(m.RequireAdmin)
	admin.HandleFunc("/supply/issue", h.Issue).Methods(http.MethodPost)
	admin.HandleFunc("/supply/move-to-reserve", h.MoveToReserve).Methods(http.MethodPost)
	return r
}

func adminToken(t *testing.T) string {
	t.Helper()
	claims := jwt.MapClaims{
		"user_id":   uuid.New().String(),
		"user_type": "admin",
		"exp":       9999999999,
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	assert.NoError(t, err)
	return token
}

func baseState() *domain.SupplyState {
	return &domain.SupplyState{
		TotalSupply:       1000,
		HoldingSupply:     400,
		ReserveSupply:     100,
		CirculatingSupply: 500,
		ValuePerUnit:      decimal.NewFromFloat(0.024),
	}
}

func TestGetStateRefreshesFromHub(t *testing.T) {
	hub := &stubHub{state: baseState()}
	router := newSupplyRouter(hub)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/supply", nil)
	req.Header.Set("Authorization", "Bearer "+adminToken(t))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		State domain.SupplyState `json:"state"`
		Stale bool               `json:"stale"`
	}
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, int64(1000), body.State.TotalSupply)
	assert.False(t, body.Stale)
}

func TestGetStateFallsBackToStaleMirror(t *testing.T) {
	hub := &stubHub{state: baseState()}
	router := newSupplyRouter(hub)
	hub.stateErr = assert.AnError

	req := httptest.NewRequest(http.MethodGet, "/api/v1/supply", nil)
	req.Header.Set("Authorization", "Bearer "+adminToken(t))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Stale bool `json:"stale"`
	}
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, body.Stale)
}

func TestIssueEndpoint(t *testing.T) {
	hub := &stubHub{state: baseState()}
	router := newSupplyRouter(hub)

	payload := bytes.NewBufferString(`{"amount": 10000, "reason": "Q1 allocation"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/supply/issue", payload)
	req.Header.Set("Authorization", "Bearer "+adminToken(t))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []int64{10000}, hub.issued)

	var body struct {
		State domain.SupplyState `json:"state"`
	}
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, int64(11000), body.State.TotalSupply)
}

func TestIssueValidationFailure(t *testing.T) {
	hub := &stubHub{state: baseState()}
	router := newSupplyRouter(hub)

	payload := bytes.NewBufferString(`{"amount": -5, "reason": "bad"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/supply/issue", payload)
	req.Header.Set("Authorization", "Bearer "+adminToken(t))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, hub.issued)

	var body struct {
		Error  string            `json:"error"`
		Fields map[string]string `json:"fields"`
	}
	assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.NotEmpty(t, body.Fields)
}

func TestMoveToReserveInsufficientPool(t *testing.T) {
	hub := &stubHub{state: baseState()}
	router := newSupplyRouter(hub)

	// Circulation holds 500 units.
	payload := bytes.NewBufferString(`{"amount": 501, "reason": "buyback program"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/supply/move-to-reserve", payload)
	req.Header.Set("Authorization", "Bearer "+adminToken(t))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
