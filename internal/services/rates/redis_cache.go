package rates

import (
	"context"
	"time"

	"orusfx/internal/repositories/cache"
)

// RedisCache shares rate snapshots between instances through redis.
type RedisCache struct {
	cache *cache.CacheService
}

func NewRedisCache(c *cache.CacheService) *RedisCache {
	return &RedisCache{cache: c}
}

func (r *RedisCache) key(base string) string {
	return r.cache.GenerateKey("fx", "rates", base)
}

func (r *RedisCache) Get(ctx context.Context, base string) (*Snapshot, bool, error) {
	var s Snapshot
	found, err := r.cache.Get(ctx, r.key(base), &s)
	if err != nil || !found {
		return nil, false, err
	}
	return &s, true, nil
}

func (r *RedisCache) Set(ctx context.Context, s *Snapshot) error {
	ttl := time.Until(s.ExpiresAt)
	if ttl <= 0 {
		return nil
	}
	return r.cache.SetWithTTL(ctx, r.key(s.Base), s, ttl)
}
