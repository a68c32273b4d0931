package cache

import (
	"context"
	"fmt"

	"orusfx/internal/config"

	"github.com/redis/go-redis/v9"
)

// NewRedisClient builds a client from the redis section of the config.
func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}

// HealthCheck pings redis.
func (s *CacheService) HealthCheck(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis connection failed: %w", err)
	}
	return nil
}

// GetStats returns the client pool stats.
func (s *CacheService) GetStats() *redis.PoolStats {
	return s.client.PoolStats()
}
