package repositories

import (
	"context"
	"time"

	"orusfx/internal/models"

	"github.com/google/uuid"
)

// LedgerRepository is the durable store of wallets, balances and ledger entries.
type LedgerRepository interface {
	// ExecuteInTransaction runs fn as one atomic unit with a bounded timeout.
	// Either every write made through the LedgerTx is committed or none is.
	ExecuteInTransaction(ctx context.Context, fn func(tx LedgerTx) error) error

	// Wallets
	CreateWallet(ctx context.Context, wallet *models.Wallet) error
	GetWallet(ctx context.Context, id uuid.UUID) (*models.Wallet, error)
	GetWalletByOwner(ctx context.Context, ownerID uuid.UUID) (*models.Wallet, error)
	UpdateWalletStatus(ctx context.Context, id uuid.UUID, status string) error

	// Balances
	GetBalance(ctx context.Context, walletID uuid.UUID, currency string) (*models.CurrencyBalance, error)
	ListBalances(ctx context.Context, walletID uuid.UUID) ([]models.CurrencyBalance, error)

	// Ledger
	ListEntries(ctx context.Context, filter EntryFilter, limit, offset int) ([]models.LedgerEntry, int64, error)
	EntriesForBalance(ctx context.Context, walletID uuid.UUID, currency string) ([]models.LedgerEntry, error)
	EntriesByReference(ctx context.Context, referenceID string) ([]models.LedgerEntry, error)
	FindOperationByIdempotencyKey(ctx context.Context, key string) (*models.LedgerOperation, error)
}

// LedgerTx is the view of the store inside an open transaction.
type LedgerTx interface {
	GetWallet(id uuid.UUID) (*models.Wallet, error)
	// EnsureBalance creates the zero row for key if absent. Safe under
	// concurrent first access.
	EnsureBalance(key models.BalanceKey) error
	// LockBalances row-locks the given keys in BalanceKey order.
	LockBalances(keys ...models.BalanceKey) (map[models.BalanceKey]*models.CurrencyBalance, error)
	// UpdateBalance writes balance and locked balance guarded by the row version.
	UpdateBalance(balance *models.CurrencyBalance) error
	AppendEntry(entry *models.LedgerEntry) error
	CreateOperation(op *models.LedgerOperation) error
}

// EntryFilter narrows a ledger history query. Zero fields are ignored.
type EntryFilter struct {
	WalletID      uuid.UUID
	Currency      string
	Type          models.EntryType
	ReferenceType string
	ReferenceID   string
	From          *time.Time
	To            *time.Time
}
