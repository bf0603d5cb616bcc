package rates

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"mypts/internal/domain"
	"mypts/pkg/errors"
	"mypts/pkg/logger"
)

type countingProvider struct {
	mu    sync.Mutex
	calls int
	snap  *domain.RateSnapshot
	err   error
}

func (p *countingProvider) Name() string {
	return "CountingProvider"
}

func (p *countingProvider) Latest(ctx context.Context, base string) (*domain.RateSnapshot, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if p.err != nil {
		return nil, p.err
	}
	copied := *p.snap
	return &copied, nil
}

func (p *countingProvider) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

type memorySnapshotCache struct {
	mu    sync.Mutex
	snaps map[string]*domain.RateSnapshot
	sets  int
}

func newMemorySnapshotCache() *memorySnapshotCache {
	return &memorySnapshotCache{snaps: make(map[string]*domain.RateSnapshot)}
}

func (c *memorySnapshotCache) Get(ctx context.Context, base string) (*domain.RateSnapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snaps[base], nil
}

func (c *memorySnapshotCache) Set(ctx context.Context, base string, snap *domain.RateSnapshot, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snaps[base] = snap
	c.sets++
	return nil
}

func usdSnapshot(age time.Duration) *domain.RateSnapshot {
	return &domain.RateSnapshot{
		Base: "USD",
		Rates: map[string]decimal.Decimal{
			"EUR": decimal.NewFromFloat(0.92),
			"GBP": decimal.NewFromFloat(0.79),
		},
		LastUpdated: time.Now().Add(-age),
	}
}

func TestLatestFetchesAndCaches(t *testing.T) {
	provider := &countingProvider{snap: usdSnapshot(0)}
	cache := newMemorySnapshotCache()
	svc := NewService([]Provider{provider}, cache, time.Hour, logger.NewNop())

	snap, err := svc.Latest(context.Background(), "USD", false)

	assert.NoError(t, err)
	assert.Equal(t, "USD", snap.Base)
	assert.Equal(t, 1, provider.callCount())
	assert.Equal(t, 1, cache.sets)

	// Second call is served from the in-memory layer.
	_, err = svc.Latest(context.Background(), "USD", false)
	assert.NoError(t, err)
	assert.Equal(t, 1, provider.callCount())
}

func TestLatestServesFromDistributedCache(t *testing.T) {
	provider := &countingProvider{snap: usdSnapshot(0)}
	cache := newMemorySnapshotCache()
	cache.snaps["USD"] = usdSnapshot(time.Minute)
	svc := NewService([]Provider{provider}, cache, time.Hour, logger.NewNop())

	snap, err := svc.Latest(context.Background(), "USD", false)

	assert.NoError(t, err)
	assert.True(t, snap.Rates["EUR"].Equal(decimal.NewFromFloat(0.92)))
	assert.Equal(t, 0, provider.callCount())
}

func TestLatestRefetchesStaleSnapshot(t *testing.T) {
	provider := &countingProvider{snap: usdSnapshot(0)}
	cache := newMemorySnapshotCache()
	cache.snaps["USD"] = usdSnapshot(2 * time.Hour)
	svc := NewService([]Provider{provider}, cache, time.Hour, logger.NewNop())

	_, err := svc.Latest(context.Background(), "USD", false)

	assert.NoError(t, err)
	assert.Equal(t, 1, provider.callCount())
}

func TestLatestForceBypassesCaches(t *testing.T) {
	provider := &countingProvider{snap: usdSnapshot(0)}
	svc := NewService([]Provider{provider}, newMemorySnapshotCache(), time.Hour, logger.NewNop())

	_, err := svc.Latest(context.Background(), "USD", false)
	assert.NoError(t, err)
	_, err = svc.Latest(context.Background(), "USD", true)
	assert.NoError(t, err)

	assert.Equal(t, 2, provider.callCount())
}

func TestLatestFallsThroughFailedProviders(t *testing.T) {
	broken := &countingProvider{err: assert.AnError}
	working := &countingProvider{snap: usdSnapshot(0)}
	svc := NewService([]Provider{broken, working}, nil, time.Hour, logger.NewNop())

	snap, err := svc.Latest(context.Background(), "USD", false)

	assert.NoError(t, err)
	assert.Equal(t, "USD", snap.Base)
	assert.Equal(t, 1, broken.callCount())
	assert.Equal(t, 1, working.callCount())
}

func TestLatestAllProvidersFailed(t *testing.T) {
	svc := NewService([]Provider{
		&countingProvider{err: assert.AnError},
		&countingProvider{err: assert.AnError},
	}, nil, time.Hour, logger.NewNop())

	_, err := svc.Latest(context.Background(), "USD", false)
	assert.ErrorIs(t, err, errors.ErrRateNotAvailable)
}

func TestHTTPProviderDecodesSnapshot(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/exchange-rates/latest/USD", r.URL.Path)
		assert.NotEmpty(t, r.URL.Query().Get("_t"))
		w.Write([]byte(`{
			"base": "USD",
			"rates": {"EUR": 0.92, "JPY": 148.5},
			"lastUpdated": "2026-08-30T12:00:00Z",
			"nextUpdate": "2026-08-31T12:00:00Z"
		}`))
	}))
	defer server.Close()

	provider := NewHTTPProvider(server.URL, 5*time.Second)
	snap, err := provider.Latest(context.Background(), "USD")

	assert.NoError(t, err)
	assert.Equal(t, "USD", snap.Base)
	assert.True(t, snap.Rates["EUR"].Equal(decimal.NewFromFloat(0.92)))
	assert.True(t, snap.Rates["JPY"].Equal(decimal.NewFromFloat(148.5)))
	assert.Equal(t, 2026, snap.LastUpdated.Year())
}

func TestHTTPProviderRejectsEmptyRates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"base": "USD", "rates": {}}`))
	}))
	defer server.Close()

	provider := NewHTTPProvider(server.URL, 5*time.Second)
	_, err := provider.Latest(context.Background(), "USD")
	assert.Error(t, err)
}
