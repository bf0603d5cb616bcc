package rates

import (
	"context"
	"time"

	"mypts/internal/domain"
	"mypts/pkg/cache"
)

// RedisSnapshotCache persists rate snapshots in redis so a console restart
// does not hammer the external source.
type RedisSnapshotCache struct {
	cache *cache.RedisCache
}

func NewRedisSnapshotCache(c *cache.RedisCache) *RedisSnapshotCache {
	return &RedisSnapshotCache{cache: c}
}

func (c *RedisSnapshotCache) key(base string) string {
	return "mypts:rates:" + base
}

func (c *RedisSnapshotCache) Get(ctx context.Context, base string) (*domain.RateSnapshot, error) {
	var snap domain.RateSnapshot
	if err := c.cache.Get(ctx, c.key(base), &snap); err != nil {
		if cache.IsMiss(err) {
			return nil, nil
		}
		return nil, err
	}
	return &snap, nil
}

func (c *RedisSnapshotCache) Set(ctx context.Context, base string, snap *domain.RateSnapshot, ttl time.Duration) error {
	return c.cache.Set(ctx, c.key(base), snap, ttl)
}
