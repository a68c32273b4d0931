package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// LedgerOperation summarizes one exchange or transfer. Its two ledger entries
// share ReferenceID; the pairing stays logical, there is no foreign key.
type LedgerOperation struct {
	ReferenceID    string          `gorm:"type:varchar(64);primaryKey" json:"reference_id"`
	Kind           string          `gorm:"type:varchar(32);not null" json:"kind"`
	IdempotencyKey *string         `gorm:"type:varchar(128);uniqueIndex" json:"idempotency_key,omitempty"`
	FromWalletID   uuid.UUID       `gorm:"type:uuid;not null" json:"from_wallet_id"`
	ToWalletID     uuid.UUID       `gorm:"type:uuid;not null" json:"to_wallet_id"`
	FromCurrency   string          `gorm:"type:varchar(3);not null" json:"from_currency"`
	ToCurrency     string          `gorm:"type:varchar(3);not null" json:"to_currency"`
	FromAmount     decimal.Decimal `gorm:"type:numeric(36,18);not null" json:"from_amount"`
	ToAmount       decimal.Decimal `gorm:"type:numeric(36,18);not null" json:"to_amount"`
	Rate           decimal.Decimal `gorm:"type:numeric(36,18);not null" json:"rate"`
	BaseRate       decimal.Decimal `gorm:"type:numeric(36,18);not null" json:"base_rate"`
	Fee            decimal.Decimal `gorm:"type:numeric(36,18);not null;default:0" json:"fee"`
	Description    string          `json:"description,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}
