package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// EntryType is the direction of a ledger entry.
type EntryType string

const (
	EntryCredit      EntryType = "CREDIT"
	EntryDebit       EntryType = "DEBIT"
	EntryTransferIn  EntryType = "TRANSFER_IN"
	EntryTransferOut EntryType = "TRANSFER_OUT"
)

// IsCredit reports whether the entry increases the balance.
func (t EntryType) IsCredit() bool {
	return t == EntryCredit || t == EntryTransferIn
}

// Reference types: the business reason of a mutation.
const (
	ReferenceExchange   = "EXCHANGE"
	ReferenceTransfer   = "TRANSFER"
	ReferenceDeposit    = "DEPOSIT"
	ReferenceWithdrawal = "WITHDRAWAL"
	ReferenceOrder      = "ORDER"
	ReferenceAdjustment = "ADJUSTMENT"
)

// EntryStatusCompleted is the only persisted status: entries are written in
// the same transaction as the mutation they describe.
const EntryStatusCompleted = "COMPLETED"

// LedgerEntry is an immutable record of one balance mutation.
// BalanceAfter - BalanceBefore equals +Amount for credits and -Amount for debits.
type LedgerEntry struct {
	ID                   uint            `gorm:"primarykey" json:"id"`
	WalletID             uuid.UUID       `gorm:"type:uuid;not null;index:idx_ledger_wallet_currency_created,priority:1" json:"wallet_id"`
	Type                 EntryType       `gorm:"type:varchar(16);not null" json:"type"`
	Amount               decimal.Decimal `gorm:"type:numeric(36,18);not null" json:"amount"`
	Currency             string          `gorm:"type:varchar(3);not null;index:idx_ledger_wallet_currency_created,priority:2" json:"currency"`
	BalanceBefore        decimal.Decimal `gorm:"type:numeric(36,18);not null" json:"balance_before"`
	BalanceAfter         decimal.Decimal `gorm:"type:numeric(36,18);not null" json:"balance_after"`
	CounterpartyWalletID *uuid.UUID      `gorm:"type:uuid" json:"counterparty_wallet_id,omitempty"`
	ReferenceType        string          `gorm:"type:varchar(32);not null" json:"reference_type"`
	ReferenceID          string          `gorm:"type:varchar(64);not null;index" json:"reference_id"`
	Status               string          `gorm:"type:varchar(16);not null" json:"status"`
	Description          string          `json:"description,omitempty"`
	CreatedAt            time.Time       `gorm:"index:idx_ledger_wallet_currency_created,priority:3" json:"created_at"`
}

// Signed returns the amount with the sign of the entry type.
func (e *LedgerEntry) Signed() decimal.Decimal {
	if e.Type.IsCredit() {
		return e.Amount
	}
	return e.Amount.Neg()
}
