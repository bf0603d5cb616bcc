// Package rates retrieves external USD exchange-rate snapshots with
// layered caching and provider fallback.
package rates

import (
	"context"
	"sync"
	"time"

	"mypts/internal/domain"
	"mypts/pkg/errors"
	"mypts/pkg/logger"
)

// Provider supplies external rate snapshots.
type Provider interface {
	Name() string
	Latest(ctx context.Context, base string) (*domain.RateSnapshot, error)
}

// SnapshotCache stores snapshots across console restarts.
type SnapshotCache interface {
	Get(ctx context.Context, base string) (*domain.RateSnapshot, error)
	Set(ctx context.Context, base string, snap *domain.RateSnapshot, ttl time.Duration) error
}

// Service layers an in-memory cache over a distributed cache over the
// providers, trying each provider in order until one answers.
type Service struct {
	providers []Provider
	cache     SnapshotCache
	ttl       time.Duration
	logger    logger.Logger

	mu    sync.RWMutex
	local map[string]*domain.RateSnapshot
}

func NewService(providers []Provider, cache SnapshotCache, ttl time.Duration, log logger.Logger) *Service {
	return &Service{
		providers: providers,
		cache:     cache,
		ttl:       ttl,
		logger:    log,
		local:     make(map[string]*domain.RateSnapshot),
	}
}

// Latest returns the freshest snapshot for a base currency. force bypasses
// both cache layers.
func (s *Service) Latest(ctx context.Context, base string, force bool) (*domain.RateSnapshot, error) {
	if !force {
		s.mu.RLock()
		if snap, ok := s.local[base]; ok && s.fresh(snap) {
			s.mu.RUnlock()
			return snap, nil
		}
		s.mu.RUnlock()

		if s.cache != nil {
			if snap, err := s.cache.Get(ctx, base); err == nil && snap != nil && s.fresh(snap) {
				s.mu.Lock()
				s.local[base] = snap
				s.mu.Unlock()
				return snap, nil
			}
		}
	}

	return s.fetchAndStore(ctx, base)
}

func (s *Service) fresh(snap *domain.RateSnapshot) bool {
	if snap.LastUpdated.IsZero() {
		return false
	}
	return time.Since(snap.LastUpdated) < s.ttl
}

func (s *Service) fetchAndStore(ctx context.Context, base string) (*domain.RateSnapshot, error) {
	for _, provider := range s.providers {
		snap, err := provider.Latest(ctx, base)
		if err != nil {
			s.logger.Warn("Rate provider failed", map[string]interface{}{
				"provider": provider.Name(),
				"base":     base,
				"error":    err.Error(),
			})
			continue
		}

		if snap.LastUpdated.IsZero() {
			snap.LastUpdated = time.Now()
		}

		s.mu.Lock()
		s.local[base] = snap
		s.mu.Unlock()

		if s.cache != nil {
			if err := s.cache.Set(ctx, base, snap, s.ttl); err != nil {
				s.logger.Warn("Failed to cache rate snapshot", map[string]interface{}{
					"base":  base,
					"error": err.Error(),
				})
			}
		}
		return snap, nil
	}

	return nil, errors.ErrRateNotAvailable
}
