package transfer

import (
	"context"

	"orusfx/internal/models"
	"orusfx/internal/services/exchange"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Quoter prices the in-flight conversion of a cross-currency transfer.
type Quoter interface {
	Quote(ctx context.Context, walletID uuid.UUID, from, to string, amount decimal.Decimal) (*exchange.Quote, error)
}

// Service moves money between two wallets.
type Service interface {
	Transfer(ctx context.Context, req Request) (*Result, error)
}

// Request moves Amount of Currency from FromWalletID to ToWalletID. When
// ConvertTo is set and differs from Currency the destination is credited in
// ConvertTo at the quoted rate.
type Request struct {
	FromWalletID   uuid.UUID
	ToWalletID     uuid.UUID
	Currency       string
	Amount         decimal.Decimal
	ConvertTo      string
	RequestorID    uuid.UUID
	Description    string
	IdempotencyKey string
}

// Result is a committed transfer.
type Result struct {
	ReferenceID      string                  `json:"reference_id"`
	FromWalletID     uuid.UUID               `json:"from_wallet_id"`
	ToWalletID       uuid.UUID               `json:"to_wallet_id"`
	SentCurrency     string                  `json:"sent_currency"`
	SentAmount       decimal.Decimal         `json:"sent_amount"`
	ReceivedCurrency string                  `json:"received_currency"`
	ReceivedAmount   decimal.Decimal         `json:"received_amount"`
	Rate             decimal.Decimal         `json:"rate"`
	Quote            *exchange.Quote         `json:"quote,omitempty"`
	SourceBalance    *models.CurrencyBalance `json:"source_balance"`
	Replayed         bool                    `json:"replayed,omitempty"`

	// DestinationBalance belongs to the receiver and is not serialized.
	DestinationBalance *models.CurrencyBalance `json:"-"`
}

// CompletedEvent is the payload of wallet.transfer_completed.
type CompletedEvent struct {
	ReferenceID      string          `json:"reference_id"`
	FromWalletID     uuid.UUID       `json:"from_wallet_id"`
	ToWalletID       uuid.UUID       `json:"to_wallet_id"`
	SentCurrency     string          `json:"sent_currency"`
	SentAmount       decimal.Decimal `json:"sent_amount"`
	ReceivedCurrency string          `json:"received_currency"`
	ReceivedAmount   decimal.Decimal `json:"received_amount"`
	Rate             decimal.Decimal `json:"rate"`
	Description      string          `json:"description,omitempty"`
}
