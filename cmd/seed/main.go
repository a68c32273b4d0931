// Command seed opens a funded wallet for local development and prints a
// bearer token for its owner.
//
//	SEED_PRINCIPAL_ID=<uuid> SEED_BALANCES="USD=1000,EUR=250" go run ./cmd/seed
package main

import (
	"context"
	"fmt"
	"strings"

	"orusfx/internal/config"
	"orusfx/internal/currency"
	"orusfx/internal/models"
	"orusfx/internal/repositories"
	"orusfx/internal/services/wallet"
	"orusfx/internal/utils"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

func main() {
	config.LoadEnv()
	cfg := config.Load()

	logger, err := zap.NewDevelopment()
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()

	principal := uuid.New()
	if raw := config.GetEnv("SEED_PRINCIPAL_ID", ""); raw != "" {
		if principal, err = uuid.Parse(raw); err != nil {
			logger.Fatal("invalid SEED_PRINCIPAL_ID", zap.Error(err))
		}
	}
	balances, err := parseBalances(config.GetEnv("SEED_BALANCES", "USD=1000"))
	if err != nil {
		logger.Fatal("invalid SEED_BALANCES", zap.Error(err))
	}

	table := currency.Default()
	if cfg.FX.CurrenciesFile != "" {
		if table, err = currency.LoadFile(cfg.FX.CurrenciesFile); err != nil {
			logger.Fatal("failed to load currencies", zap.Error(err))
		}
	}

	db, err := repositories.InitDB(cfg.DB)
	if err != nil {
		logger.Fatal("failed to open database", zap.Error(err))
	}
	if sqlDB, err := db.DB(); err == nil {
		defer sqlDB.Close()
	}

	svc := wallet.NewService(wallet.Deps{
		Repo:   repositories.NewLedgerRepository(db, cfg.Ledger.TxTimeout),
		Table:  table,
		Logger: logger,
	}, wallet.WalletConfig{})

	ctx := context.Background()
	w, err := svc.CreateWallet(ctx, principal)
	if err != nil {
		logger.Fatal("failed to create wallet", zap.Error(err))
	}
	for code, amount := range balances {
		if _, err := svc.Credit(ctx, wallet.OperationRequest{
			WalletID:      w.ID,
			Currency:      code,
			Amount:        amount,
			ReferenceType: models.ReferenceAdjustment,
			Description:   "Seed balance",
		}); err != nil {
			logger.Fatal("failed to credit seed balance", zap.String("currency", code), zap.Error(err))
		}
	}

	token, err := utils.GenerateToken(cfg.Auth.JWTSecret, principal, w.ID, cfg.Auth.TokenTTL)
	if err != nil {
		logger.Fatal("failed to sign token", zap.Error(err))
	}
	serviceToken, err := utils.GenerateServiceToken(cfg.Auth.JWTSecret, uuid.New(), cfg.Auth.TokenTTL)
	if err != nil {
		logger.Fatal("failed to sign service token", zap.Error(err))
	}
	fmt.Printf("principal_id=%s\nwallet_id=%s\ntoken=%s\nservice_token=%s\n", principal, w.ID, token, serviceToken)
}

func parseBalances(s string) (map[string]decimal.Decimal, error) {
	out := make(map[string]decimal.Decimal)
	for _, pair := range strings.Split(s, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		code, amount, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, fmt.Errorf("expected CODE=AMOUNT, got %q", pair)
		}
		d, err := decimal.NewFromString(strings.TrimSpace(amount))
		if err != nil {
			return nil, fmt.Errorf("amount for %s: %w", code, err)
		}
		out[strings.TrimSpace(code)] = d
	}
	return out, nil
}
