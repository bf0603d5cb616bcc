package scheduler

import (
	"context"
	"sync"

	"mypts/internal/domain"
	"mypts/pkg/cache"
)

// PrefsStore persists scheduler preferences across restarts. Load returns
// (nil, nil) when nothing has been saved yet.
type PrefsStore interface {
	Load(ctx context.Context) (*domain.SchedulerPrefs, error)
	Save(ctx context.Context, prefs *domain.SchedulerPrefs) error
}

const prefsKey = "mypts:console:scheduler"

// RedisPrefsStore keeps preferences in the console's redis instance.
type RedisPrefsStore struct {
	cache *cache.RedisCache
}

func NewRedisPrefsStore(c *cache.RedisCache) *RedisPrefsStore {
	return &RedisPrefsStore{cache: c}
}

func (s *RedisPrefsStore) Load(ctx context.Context) (*domain.SchedulerPrefs, error) {
	var prefs domain.SchedulerPrefs
	err := s.cache.Get(ctx, prefsKey, &prefs)
	if err != nil {
		if cache.IsMiss(err) {
			return nil, nil
		}
		return nil, err
	}
	return &prefs, nil
}

func (s *RedisPrefsStore) Save(ctx context.Context, prefs *domain.SchedulerPrefs) error {
	// No expiration: the preference lives until changed.
	return s.cache.Set(ctx, prefsKey, prefs, 0)
}

// MemoryPrefsStore is an in-process store for tests and redis-less runs.
type MemoryPrefsStore struct {
	mu    sync.Mutex
	prefs *domain.SchedulerPrefs
}

func NewMemoryPrefsStore() *MemoryPrefsStore {
	return &MemoryPrefsStore{}
}

func (s *MemoryPrefsStore) Load(ctx context.Context) (*domain.SchedulerPrefs, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.prefs == nil {
		return nil, nil
	}
	copied := *s.prefs
	return &copied, nil
}

func (s *MemoryPrefsStore) Save(ctx context.Context, prefs *domain.SchedulerPrefs) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *prefs
	s.prefs = &copied
	return nil
}
