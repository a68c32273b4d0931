package wallet

import (
	"context"

	"orusfx/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Service defines the main wallet service interface
type Service interface {
	// Wallet management
	CreateWallet(ctx context.Context, ownerID uuid.UUID) (*models.Wallet, error)
	GetWallet(ctx context.Context, id uuid.UUID) (*models.Wallet, error)
	GetWalletByOwner(ctx context.Context, ownerID uuid.UUID) (*models.Wallet, error)
	DeactivateWallet(ctx context.Context, id uuid.UUID) error

	// Balance operations
	Credit(ctx context.Context, req OperationRequest) (*models.CurrencyBalance, error)
	Debit(ctx context.Context, req OperationRequest) (*models.CurrencyBalance, error)
	Lock(ctx context.Context, req OperationRequest) (*models.CurrencyBalance, error)
	Unlock(ctx context.Context, req OperationRequest) (*models.CurrencyBalance, error)

	// Queries
	GetBalance(ctx context.Context, walletID uuid.UUID, currency string) (*models.CurrencyBalance, error)
	GetBalances(ctx context.Context, walletID uuid.UUID) (*BalancesSummary, error)
	GetLedgerHistory(ctx context.Context, walletID uuid.UUID, q HistoryQuery) (*HistoryPage, error)
	VerifyLedger(ctx context.Context, walletID uuid.UUID, currency string) (*VerifyResult, error)
}

// RateSource converts balances into the base currency for GetBalances.
type RateSource interface {
	Base() string
	Rate(ctx context.Context, from, to string) (decimal.Decimal, error)
}

// WalletCache is an optional read-through cache of wallet records. Balance
// mutations never consult it.
type WalletCache interface {
	GetWallet(ctx context.Context, id uuid.UUID) (*models.Wallet, bool)
	SetWallet(ctx context.Context, wallet *models.Wallet)
	InvalidateWallet(ctx context.Context, id uuid.UUID)
}
