package wallet

import (
	"context"

	"orusfx/internal/models"
	"orusfx/internal/repositories/cache"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// RedisWalletCache implements WalletCache on the shared redis cache service.
type RedisWalletCache struct {
	cache  *cache.CacheService
	logger *zap.Logger
}

func NewRedisWalletCache(c *cache.CacheService, logger *zap.Logger) *RedisWalletCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisWalletCache{cache: c, logger: logger}
}

func (c *RedisWalletCache) key(id uuid.UUID) string {
	return c.cache.GenerateKey(WalletCachePrefix, "id", id)
}

func (c *RedisWalletCache) GetWallet(ctx context.Context, id uuid.UUID) (*models.Wallet, bool) {
	var wallet models.Wallet
	found, err := c.cache.Get(ctx, c.key(id), &wallet)
	if err != nil {
		c.logger.Warn("wallet cache read failed", zap.Stringer("wallet_id", id), zap.Error(err))
		return nil, false
	}
	if !found {
		return nil, false
	}
	return &wallet, true
}

func (c *RedisWalletCache) SetWallet(ctx context.Context, wallet *models.Wallet) {
	if err := c.cache.SetWithTTL(ctx, c.key(wallet.ID), wallet, CacheDuration); err != nil {
		c.logger.Warn("wallet cache write failed", zap.Stringer("wallet_id", wallet.ID), zap.Error(err))
	}
}

// InvalidateWallet invalidates the cache entry for a wallet
func (c *RedisWalletCache) InvalidateWallet(ctx context.Context, id uuid.UUID) {
	if err := c.cache.Delete(ctx, c.key(id)); err != nil {
		c.logger.Warn("wallet cache invalidation failed", zap.Stringer("wallet_id", id), zap.Error(err))
	}
}
