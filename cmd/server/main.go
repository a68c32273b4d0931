// Package main is the entry point of the ledger HTTP server.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"orusfx/internal/config"
	"orusfx/internal/currency"
	"orusfx/internal/events"
	"orusfx/internal/repositories"
	"orusfx/internal/repositories/cache"
	"orusfx/internal/routes"
	"orusfx/internal/services/exchange"
	"orusfx/internal/services/rates"
	"orusfx/internal/services/transfer"
	"orusfx/internal/services/wallet"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

func main() {
	config.LoadEnv()
	cfg := config.Load()

	logger, err := newLogger(cfg)
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}

func newLogger(cfg config.Config) (*zap.Logger, error) {
	zcfg := zap.NewDevelopmentConfig()
	if cfg.Env == "production" {
		zcfg = zap.NewProductionConfig()
	}
	level, err := zap.ParseAtomicLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	zcfg.Level = level
	return zcfg.Build()
}

func run(cfg config.Config, logger *zap.Logger) error {
	table := currency.Default()
	if cfg.FX.CurrenciesFile != "" {
		loaded, err := currency.LoadFile(cfg.FX.CurrenciesFile)
		if err != nil {
			return err
		}
		table = loaded
	}
	logger.Info("currency table loaded", zap.String("base", table.Base()), zap.Strings("codes", table.Codes()))

	db, err := repositories.InitDB(cfg.DB)
	if err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	defer func() {
		if err := sqlDB.Close(); err != nil {
			logger.Warn("failed to close database", zap.Error(err))
		}
	}()
	logger.Info("connected to database", zap.String("host", cfg.DB.Host), zap.String("name", cfg.DB.Name))

	var cacheService *cache.CacheService
	if cfg.NeedsRedis() {
		cacheService = cache.NewCacheService(cache.NewRedisClient(cfg.Redis), cfg.Redis.CacheTTL)
		defer func() {
			if err := cacheService.Close(); err != nil {
				logger.Warn("failed to close redis", zap.Error(err))
			}
		}()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := cacheService.HealthCheck(ctx)
		cancel()
		if err != nil {
			// The ledger works without redis; only caches and the redis bus degrade.
			logger.Warn("redis unavailable at startup", zap.Error(err))
		}
	}

	var source rates.Source = rates.NewStaticSource(table)
	if cfg.FX.RateSourceURL != "" {
		source = rates.NewHTTPSource(cfg.FX.RateSourceURL, 5*time.Second)
	}
	var rateOpts []rates.Option
	if cfg.FX.RedisRateCache && cacheService != nil {
		rateOpts = append(rateOpts, rates.WithSharedCache(rates.NewRedisCache(cacheService)))
	}
	provider := rates.NewProvider(source, table, rates.Config{
		TTL:           cfg.FX.RateTTL,
		MaxStale:      cfg.FX.RateMaxStale,
		MarkupPercent: cfg.FX.MarkupPercent,
	}, logger, rateOpts...)

	publisher, closePublisher := newPublisher(cfg, cacheService, logger)
	defer closePublisher()

	repo := repositories.NewLedgerRepository(db, cfg.Ledger.TxTimeout)
	metrics := wallet.NewRingCollector(wallet.DefaultRingSize)

	var walletCache wallet.WalletCache
	if cacheService != nil {
		walletCache = wallet.NewRedisWalletCache(cacheService, logger)
	}
	wallets := wallet.NewService(wallet.Deps{
		Repo:      repo,
		Table:     table,
		Rates:     provider,
		Publisher: publisher,
		Cache:     walletCache,
		Metrics:   metrics,
		Logger:    logger,
	}, wallet.WalletConfig{})
	exchangeService := exchange.NewService(repo, table, provider, publisher, metrics, logger, exchange.Config{
		MinAmount: cfg.FX.MinExchangeAmount,
		MaxAmount: cfg.FX.MaxExchangeAmount,
		QuoteTTL:  cfg.FX.QuoteTTL,
	})
	transfers := transfer.NewService(repo, table, exchangeService, publisher, metrics, logger, transfer.Config{})

	app := fiber.New(fiber.Config{
		AppName:      "orusfx",
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	})
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: config.GetEnv("CORS_ALLOW_ORIGINS", "http://localhost:5173"),
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, Idempotency-Key",
		AllowMethods: "GET,POST,HEAD",
	}))
	app.Use(requestLogger(logger))

	routes.SetupRoutes(app, routes.Deps{
		DB:        db,
		Cache:     cacheService,
		Metrics:   metrics,
		Wallets:   wallets,
		Exchange:  exchangeService,
		Transfers: transfers,
		JWTSecret: cfg.Auth.JWTSecret,
		Logger:    logger,
	})

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("port", cfg.Port))
		errCh <- app.Listen(":" + cfg.Port)
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return err
	case sig := <-stop:
		logger.Info("shutting down", zap.String("signal", sig.String()))
	}
	return app.ShutdownWithTimeout(shutdownTimeout)
}

// newPublisher selects the event bus named by EVENT_BUS. The returned func
// releases its resources.
func newPublisher(cfg config.Config, cacheService *cache.CacheService, logger *zap.Logger) (events.Publisher, func()) {
	switch cfg.EventBus {
	case "redis":
		if cacheService != nil {
			return events.NewRedisPublisher(cacheService.Client(), events.DefaultChannel), func() {}
		}
	case "kafka":
		p := events.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic, logger)
		return p, func() {
			if err := p.Close(); err != nil {
				logger.Warn("failed to close kafka writer", zap.Error(err))
			}
		}
	case "none":
		return events.Noop{}, func() {}
	}
	return events.NewLogPublisher(logger), func() {}
}

func requestLogger(logger *zap.Logger) fiber.Handler {
	logger = logger.Named("http")
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		logger.Info("request",
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Int("status", c.Response().StatusCode()),
			zap.Duration("latency", time.Since(start)))
		return err
	}
}
