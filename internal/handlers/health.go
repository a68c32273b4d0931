package handlers

import (
	"context"
	"time"

	"orusfx/internal/repositories/cache"
	"orusfx/internal/services/wallet"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

const healthTimeout = 2 * time.Second

// HealthHandler reports dependency health and in-process metrics.
type HealthHandler struct {
	db      *gorm.DB
	cache   *cache.CacheService
	metrics *wallet.RingCollector
}

// NewHealthHandler creates a HealthHandler. cacheService and metrics may be nil.
func NewHealthHandler(db *gorm.DB, cacheService *cache.CacheService, metrics *wallet.RingCollector) *HealthHandler {
	return &HealthHandler{db: db, cache: cacheService, metrics: metrics}
}

// HealthCheck handles GET /health. It answers 503 when the database is down.
func (h *HealthHandler) HealthCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), healthTimeout)
	defer cancel()

	status := fiber.StatusOK
	services := fiber.Map{"database": "connected"}

	sqlDB, err := h.db.DB()
	if err == nil {
		err = sqlDB.PingContext(ctx)
	}
	if err != nil {
		status = fiber.StatusServiceUnavailable
		services["database"] = "unavailable"
	}

	if h.cache != nil {
		if err := h.cache.HealthCheck(ctx); err != nil {
			services["redis"] = "unavailable"
		} else {
			services["redis"] = "connected"
		}
	}

	state := "ok"
	if status != fiber.StatusOK {
		state = "degraded"
	}
	return c.Status(status).JSON(fiber.Map{
		"status":   state,
		"services": services,
	})
}

// Metrics handles GET /api/service/metrics.
func (h *HealthHandler) Metrics(c *fiber.Ctx) error {
	if h.metrics == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "metrics disabled"})
	}
	body := fiber.Map{"ledger": h.metrics.Snapshot()}
	if h.cache != nil {
		pool := h.cache.GetStats()
		body["redis_pool"] = fiber.Map{
			"hits":        pool.Hits,
			"misses":      pool.Misses,
			"timeouts":    pool.Timeouts,
			"total_conns": pool.TotalConns,
			"idle_conns":  pool.IdleConns,
			"stale_conns": pool.StaleConns,
		}
	}
	return c.JSON(body)
}
