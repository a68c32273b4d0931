package exchange

import (
	"context"
	"time"

	"orusfx/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// RateProvider supplies base rates and the customer markup.
type RateProvider interface {
	Rate(ctx context.Context, from, to string) (decimal.Decimal, error)
	CustomerRate(rate decimal.Decimal) decimal.Decimal
	MarkupPercent() decimal.Decimal
}

// Service converts currency inside one wallet.
type Service interface {
	Quote(ctx context.Context, walletID uuid.UUID, from, to string, amount decimal.Decimal) (*Quote, error)
	Exchange(ctx context.Context, req Request) (*Result, error)
}

// Quote is an ephemeral price for converting FromAmount. It is never trusted
// back from a client: Exchange derives a fresh one.
type Quote struct {
	WalletID      uuid.UUID       `json:"wallet_id"`
	FromCurrency  string          `json:"from_currency"`
	ToCurrency    string          `json:"to_currency"`
	FromAmount    decimal.Decimal `json:"from_amount"`
	ToAmount      decimal.Decimal `json:"to_amount"`
	Rate          decimal.Decimal `json:"rate"`
	BaseRate      decimal.Decimal `json:"base_rate"`
	Fee           decimal.Decimal `json:"fee"`
	FeePercentage decimal.Decimal `json:"fee_percentage"`
	ExpiresAt     time.Time       `json:"expires_at"`
}

// Request asks to convert Amount of FromCurrency into ToCurrency.
type Request struct {
	WalletID       uuid.UUID
	RequestorID    uuid.UUID
	FromCurrency   string
	ToCurrency     string
	Amount         decimal.Decimal
	IdempotencyKey string
}

// Result is a committed exchange. Replayed is set when the request matched an
// earlier idempotency key and nothing new was applied.
type Result struct {
	ReferenceID string                  `json:"reference_id"`
	Quote       Quote                   `json:"quote"`
	FromBalance *models.CurrencyBalance `json:"from_balance"`
	ToBalance   *models.CurrencyBalance `json:"to_balance"`
	Rate        decimal.Decimal         `json:"rate"`
	Replayed    bool                    `json:"replayed,omitempty"`
}

// ExchangedEvent is the payload of wallet.currency_exchanged.
type ExchangedEvent struct {
	ReferenceID  string          `json:"reference_id"`
	WalletID     uuid.UUID       `json:"wallet_id"`
	FromCurrency string          `json:"from_currency"`
	ToCurrency   string          `json:"to_currency"`
	FromAmount   decimal.Decimal `json:"from_amount"`
	ToAmount     decimal.Decimal `json:"to_amount"`
	Rate         decimal.Decimal `json:"rate"`
	Fee          decimal.Decimal `json:"fee"`
}
