package exchange

import (
	"context"
	"fmt"

	apperrors "orusfx/internal/errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

func (s *service) Quote(ctx context.Context, walletID uuid.UUID, from, to string, amount decimal.Decimal) (*Quote, error) {
	if _, err := s.repo.GetWallet(ctx, walletID); err != nil {
		return nil, err
	}
	q, err := s.quote(ctx, walletID, from, to, amount)
	if err != nil {
		s.fail(opQuote, err)
		return nil, err
	}
	return q, nil
}

// quote validates the pair and amount and prices the conversion with markup.
func (s *service) quote(ctx context.Context, walletID uuid.UUID, from, to string, amount decimal.Decimal) (*Quote, error) {
	fromCode, err := s.table.Normalize(from)
	if err != nil {
		return nil, err
	}
	toCode, err := s.table.Normalize(to)
	if err != nil {
		return nil, err
	}
	if fromCode == toCode {
		return nil, fmt.Errorf("%w: %s", apperrors.ErrSameCurrency, fromCode)
	}

	if !amount.IsPositive() {
		return nil, fmt.Errorf("%w: amount must be positive", apperrors.ErrAmountOutOfRange)
	}
	if !s.table.Exact(amount, fromCode) {
		return nil, fmt.Errorf("%w: %s has more than %d decimal places for %s",
			apperrors.ErrAmountOutOfRange, amount, s.table.Precision(fromCode), fromCode)
	}
	fromAmount := s.table.Round(amount, fromCode)
	if fromAmount.LessThan(s.config.MinAmount) || fromAmount.GreaterThan(s.config.MaxAmount) {
		return nil, fmt.Errorf("%w: amount must be between %s and %s",
			apperrors.ErrAmountOutOfRange, s.config.MinAmount, s.config.MaxAmount)
	}

	baseRate, err := s.rates.Rate(ctx, fromCode, toCode)
	if err != nil {
		return nil, err
	}
	rate := s.rates.CustomerRate(baseRate)
	toAmount := s.table.Round(fromAmount.Mul(rate), toCode)
	if !toAmount.IsPositive() {
		return nil, fmt.Errorf("%w: %s %s converts to nothing in %s",
			apperrors.ErrAmountOutOfRange, fromAmount, fromCode, toCode)
	}

	markup := s.rates.MarkupPercent()
	return &Quote{
		WalletID:      walletID,
		FromCurrency:  fromCode,
		ToCurrency:    toCode,
		FromAmount:    fromAmount,
		ToAmount:      toAmount,
		Rate:          rate,
		BaseRate:      baseRate,
		Fee:           s.table.Round(fromAmount.Mul(markup).Div(hundred), fromCode),
		FeePercentage: markup,
		ExpiresAt:     s.now().Add(s.config.QuoteTTL),
	}, nil
}
