// Package routes wires the HTTP surface of the ledger onto a fiber app.
package routes

import (
	"orusfx/internal/handlers"
	"orusfx/internal/middleware"
	"orusfx/internal/models"
	"orusfx/internal/repositories/cache"
	"orusfx/internal/services/exchange"
	"orusfx/internal/services/transfer"
	"orusfx/internal/services/wallet"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Deps are the services and infrastructure the routes dispatch to.
// Cache and Metrics are optional.
type Deps struct {
	DB        *gorm.DB
	Cache     *cache.CacheService
	Metrics   *wallet.RingCollector
	Wallets   wallet.Service
	Exchange  exchange.Service
	Transfers transfer.Service
	JWTSecret string
	Logger    *zap.Logger
}

// SetupRoutes configures all application routes.
func SetupRoutes(app *fiber.App, deps Deps) {
	healthHandler := handlers.NewHealthHandler(deps.DB, deps.Cache, deps.Metrics)
	walletHandler := handlers.NewWalletHandler(deps.Wallets, deps.Exchange, deps.Logger)
	transferHandler := handlers.NewTransferHandler(deps.Transfers, deps.Logger)

	// Public endpoints
	app.Get("/health", healthHandler.HealthCheck)

	api := app.Group("/api", middleware.Auth(deps.JWTSecret, deps.Logger))
	api.Post("/wallets", walletHandler.CreateWallet)
	api.Post("/transfers", transferHandler.Transfer)

	// Ownership is checked against the wallet's owner before the handler runs.
	// Exchange re-checks it inside the engine.
	owned := api.Group("/wallets/:id", middleware.WalletOwner(deps.Wallets))
	owned.Get("/balances", walletHandler.GetBalances)
	owned.Get("/ledger", walletHandler.GetLedger)
	owned.Get("/ledger/verify", walletHandler.VerifyLedger)
	owned.Post("/quote", walletHandler.Quote)
	owned.Post("/exchange", walletHandler.Exchange)

	// Holds are placed and released by integrations, never by the owner.
	service := api.Group("/service", middleware.RequireRole(models.RoleService))
	service.Get("/metrics", healthHandler.Metrics)
	service.Post("/wallets/:id/lock", walletHandler.Lock)
	service.Post("/wallets/:id/unlock", walletHandler.Unlock)
}
