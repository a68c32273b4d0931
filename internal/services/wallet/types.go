package wallet

import (
	"time"

	"orusfx/internal/models"
	"orusfx/internal/repositories"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OperationRequest is a single-balance credit, debit, lock or unlock.
type OperationRequest struct {
	WalletID      uuid.UUID
	Currency      string
	Amount        decimal.Decimal
	ReferenceType string
	ReferenceID   string
	Description   string
}

// Posting describes one ledger entry applied to an already-locked balance.
type Posting struct {
	Type                 models.EntryType
	Amount               decimal.Decimal
	ReferenceType        string
	ReferenceID          string
	CounterpartyWalletID *uuid.UUID
	Description          string
}

// WalletConfig holds configuration for wallet operations
type WalletConfig struct {
	// MaxOperationAmount caps a single credit or debit; zero means no cap.
	MaxOperationAmount decimal.Decimal
	HistoryPageSize    int
	MaxHistoryPageSize int
}

// BalanceView is one currency balance with its derived available amount and
// its value in the base currency.
type BalanceView struct {
	Currency      string          `json:"currency"`
	Balance       decimal.Decimal `json:"balance"`
	LockedBalance decimal.Decimal `json:"locked_balance"`
	Available     decimal.Decimal `json:"available"`
	BaseValue     decimal.Decimal `json:"base_value"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// BalancesSummary lists every balance of a wallet with the total in Base.
type BalancesSummary struct {
	WalletID uuid.UUID       `json:"wallet_id"`
	Base     string          `json:"base_currency"`
	Total    decimal.Decimal `json:"total"`
	Balances []BalanceView   `json:"balances"`
	// Unpriced lists currencies left out of Total because no rate was available.
	Unpriced []string `json:"unpriced,omitempty"`
}

// HistoryQuery selects a page of ledger history.
type HistoryQuery struct {
	Filter repositories.EntryFilter
	Limit  int
	Offset int
}

// HistoryPage is one page of ledger entries, newest first.
type HistoryPage struct {
	Entries []models.LedgerEntry `json:"entries"`
	Total   int64                `json:"total"`
	Limit   int                  `json:"limit"`
	Offset  int                  `json:"offset"`
}

// VerifyResult is the outcome of replaying a balance's ledger.
type VerifyResult struct {
	WalletID      uuid.UUID       `json:"wallet_id"`
	Currency      string          `json:"currency"`
	Entries       int             `json:"entries"`
	Replayed      decimal.Decimal `json:"replayed"`
	Stored        decimal.Decimal `json:"stored"`
	BrokenEntryID uint            `json:"broken_entry_id,omitempty"`
}

// MetricsCollector defines the interface for collecting wallet metrics
type MetricsCollector interface {
	// Operation metrics
	RecordOperationDuration(operation string, duration time.Duration)
	RecordOperationResult(operation, result string)

	// Error metrics
	RecordError(operation, code string)

	// Volume metrics
	RecordVolume(operation, currency string, amount decimal.Decimal)
}
