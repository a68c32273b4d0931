package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CurrencyBalance is the single balance row of a wallet in one currency.
// Invariant: Balance >= LockedBalance >= 0.
type CurrencyBalance struct {
	ID            uint            `gorm:"primarykey" json:"-"`
	WalletID      uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_balance_wallet_currency,priority:1" json:"wallet_id"`
	Currency      string          `gorm:"type:varchar(3);not null;uniqueIndex:idx_balance_wallet_currency,priority:2" json:"currency"`
	Balance       decimal.Decimal `gorm:"type:numeric(36,18);not null;default:0" json:"balance"`
	LockedBalance decimal.Decimal `gorm:"type:numeric(36,18);not null;default:0" json:"locked_balance"`
	Version       int64           `gorm:"not null;default:0" json:"-"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// Available is Balance minus LockedBalance; it is never stored.
func (b *CurrencyBalance) Available() decimal.Decimal {
	return b.Balance.Sub(b.LockedBalance)
}

// BalanceKey identifies a balance row.
type BalanceKey struct {
	WalletID uuid.UUID
	Currency string
}

// Less orders keys by wallet id then currency code; multi-key operations
// lock rows in this order.
func (k BalanceKey) Less(other BalanceKey) bool {
	a, b := k.WalletID.String(), other.WalletID.String()
	if a != b {
		return a < b
	}
	return k.Currency < other.Currency
}
