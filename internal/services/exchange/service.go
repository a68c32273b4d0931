// Package exchange converts currency inside one wallet. The debit of the
// source currency and the credit of the target currency commit together.
package exchange

import (
	"context"
	"errors"
	"fmt"
	"time"

	"orusfx/internal/currency"
	apperrors "orusfx/internal/errors"
	"orusfx/internal/events"
	"orusfx/internal/models"
	"orusfx/internal/repositories"
	"orusfx/internal/services/wallet"
	"orusfx/internal/utils"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const opQuote = "quote"

// Default limits
var (
	DefaultMinAmount = decimal.NewFromInt(1)
	DefaultMaxAmount = decimal.NewFromInt(1000000)
)

// DefaultQuoteTTL is how long a quote is advertised as valid.
const DefaultQuoteTTL = 5 * time.Minute

// Config bounds exchange amounts, in units of the source currency.
type Config struct {
	MinAmount decimal.Decimal
	MaxAmount decimal.Decimal
	QuoteTTL  time.Duration
}

type service struct {
	repo      repositories.LedgerRepository
	table     *currency.Table
	rates     RateProvider
	publisher events.Publisher
	metrics   wallet.MetricsCollector
	logger    *zap.Logger
	config    Config
	now       func() time.Time
}

// NewService creates a new exchange service instance.
func NewService(
	repo repositories.LedgerRepository,
	table *currency.Table,
	rates RateProvider,
	publisher events.Publisher,
	metrics wallet.MetricsCollector,
	logger *zap.Logger,
	config Config,
) Service {
	if repo == nil {
		panic("repo is required")
	}
	if table == nil {
		panic("currency table is required")
	}
	if rates == nil {
		panic("rate provider is required")
	}

	if config.MinAmount.IsZero() {
		config.MinAmount = DefaultMinAmount
	}
	if config.MaxAmount.IsZero() {
		config.MaxAmount = DefaultMaxAmount
	}
	if config.QuoteTTL <= 0 {
		config.QuoteTTL = DefaultQuoteTTL
	}
	if publisher == nil {
		publisher = events.Noop{}
	}
	if metrics == nil {
		metrics = &wallet.NoopMetricsCollector{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &service{
		repo:      repo,
		table:     table,
		rates:     rates,
		publisher: publisher,
		metrics:   metrics,
		logger:    logger.Named("exchange"),
		config:    config,
		now:       time.Now,
	}
}

// Exchange converts req.Amount of req.FromCurrency into req.ToCurrency.
func (s *service) Exchange(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()
	res, err := s.exchange(ctx, req)
	s.metrics.RecordOperationDuration(wallet.OpExchange, time.Since(start))
	if err != nil {
		s.fail(wallet.OpExchange, err)
		return nil, err
	}
	if res.Replayed {
		s.metrics.RecordOperationResult(wallet.OpExchange, "replayed")
		return res, nil
	}

	s.metrics.RecordOperationResult(wallet.OpExchange, "success")
	s.metrics.RecordVolume(wallet.OpExchange, res.Quote.FromCurrency, res.Quote.FromAmount)
	s.logger.Info("currency exchanged",
		zap.String("reference_id", res.ReferenceID),
		zap.Stringer("wallet_id", req.WalletID),
		zap.String("from", res.Quote.FromCurrency),
		zap.String("to", res.Quote.ToCurrency),
		zap.Stringer("from_amount", res.Quote.FromAmount),
		zap.Stringer("to_amount", res.Quote.ToAmount),
		zap.Stringer("rate", res.Rate))

	wallet.Emit(ctx, s.publisher, s.logger, events.WalletCurrencyExchanged, ExchangedEvent{
		ReferenceID:  res.ReferenceID,
		WalletID:     req.WalletID,
		FromCurrency: res.Quote.FromCurrency,
		ToCurrency:   res.Quote.ToCurrency,
		FromAmount:   res.Quote.FromAmount,
		ToAmount:     res.Quote.ToAmount,
		Rate:         res.Rate,
		Fee:          res.Quote.Fee,
	})
	return res, nil
}

func (s *service) exchange(ctx context.Context, req Request) (*Result, error) {
	// 1. ownership and status
	w, err := s.repo.GetWallet(ctx, req.WalletID)
	if err != nil {
		return nil, err
	}
	if req.RequestorID == uuid.Nil || w.OwnerID != req.RequestorID {
		return nil, apperrors.ErrUnauthorized
	}
	if !w.IsActive() {
		return nil, fmt.Errorf("%w: %s", apperrors.ErrWalletInactive, w.ID)
	}

	if req.IdempotencyKey != "" {
		if res, err := s.replay(ctx, req); !errors.Is(err, repositories.ErrOperationNotFound) {
			return res, err
		}
	}

	// 2. validation, 4. quote derived now, never taken from the client
	q, err := s.quote(ctx, req.WalletID, req.FromCurrency, req.ToCurrency, req.Amount)
	if err != nil {
		return nil, err
	}

	// 3. available balance pre-check; the binding check runs on the locked row
	current, err := s.repo.GetBalance(ctx, req.WalletID, q.FromCurrency)
	if err != nil {
		return nil, err
	}
	if q.FromAmount.GreaterThan(current.Available()) {
		return nil, fmt.Errorf("%w: %s %s requested, %s available",
			apperrors.ErrInsufficientBalance, q.FromAmount, q.FromCurrency, current.Available())
	}

	// 5. both legs in one transaction
	ref := utils.NewReference(utils.PrefixExchange)
	fromKey := models.BalanceKey{WalletID: req.WalletID, Currency: q.FromCurrency}
	toKey := models.BalanceKey{WalletID: req.WalletID, Currency: q.ToCurrency}
	res := &Result{ReferenceID: ref, Quote: *q, Rate: q.Rate}

	err = s.repo.ExecuteInTransaction(ctx, func(tx repositories.LedgerTx) error {
		if err := wallet.RequireActive(tx, req.WalletID); err != nil {
			return err
		}
		for _, k := range []models.BalanceKey{fromKey, toKey} {
			if err := tx.EnsureBalance(k); err != nil {
				return err
			}
		}
		locked, err := tx.LockBalances(fromKey, toKey)
		if err != nil {
			return err
		}

		description := fmt.Sprintf("Exchange %s %s to %s", q.FromAmount, q.FromCurrency, q.ToCurrency)
		if _, err := wallet.DebitTx(tx, locked[fromKey], wallet.Posting{
			Type:          models.EntryDebit,
			Amount:        q.FromAmount,
			ReferenceType: models.ReferenceExchange,
			ReferenceID:   ref,
			Description:   description,
		}); err != nil {
			return err
		}
		if _, err := wallet.CreditTx(tx, locked[toKey], wallet.Posting{
			Type:          models.EntryCredit,
			Amount:        q.ToAmount,
			ReferenceType: models.ReferenceExchange,
			ReferenceID:   ref,
			Description:   description,
		}); err != nil {
			return err
		}

		if err := tx.CreateOperation(&models.LedgerOperation{
			ReferenceID:    ref,
			Kind:           models.ReferenceExchange,
			IdempotencyKey: idempotencyKey(req.IdempotencyKey),
			FromWalletID:   req.WalletID,
			ToWalletID:     req.WalletID,
			FromCurrency:   q.FromCurrency,
			ToCurrency:     q.ToCurrency,
			FromAmount:     q.FromAmount,
			ToAmount:       q.ToAmount,
			Rate:           q.Rate,
			BaseRate:       q.BaseRate,
			Fee:            q.Fee,
			Description:    description,
		}); err != nil {
			return err
		}

		res.FromBalance = locked[fromKey]
		res.ToBalance = locked[toKey]
		return nil
	})
	if errors.Is(err, apperrors.ErrDuplicateRequest) && req.IdempotencyKey != "" {
		// A concurrent request with the same key committed first.
		return s.replay(ctx, req)
	}
	if err != nil {
		return nil, err
	}
	return res, nil
}

// replay rebuilds the result of an already applied request without
// applying it again.
func (s *service) replay(ctx context.Context, req Request) (*Result, error) {
	op, err := s.repo.FindOperationByIdempotencyKey(ctx, req.IdempotencyKey)
	if err != nil {
		return nil, err
	}
	if !s.sameRequest(op, req) {
		return nil, fmt.Errorf("%w: key %q belongs to %s %s",
			apperrors.ErrDuplicateRequest, req.IdempotencyKey, op.Kind, op.ReferenceID)
	}

	from, err := s.repo.GetBalance(ctx, op.FromWalletID, op.FromCurrency)
	if err != nil {
		return nil, err
	}
	to, err := s.repo.GetBalance(ctx, op.ToWalletID, op.ToCurrency)
	if err != nil {
		return nil, err
	}
	return &Result{
		ReferenceID: op.ReferenceID,
		Quote: Quote{
			WalletID:      op.FromWalletID,
			FromCurrency:  op.FromCurrency,
			ToCurrency:    op.ToCurrency,
			FromAmount:    op.FromAmount,
			ToAmount:      op.ToAmount,
			Rate:          op.Rate,
			BaseRate:      op.BaseRate,
			Fee:           op.Fee,
			FeePercentage: s.rates.MarkupPercent(),
			ExpiresAt:     op.CreatedAt.Add(s.config.QuoteTTL),
		},
		FromBalance: from,
		ToBalance:   to,
		Rate:        op.Rate,
		Replayed:    true,
	}, nil
}

// sameRequest reports whether req asks for exactly what op recorded.
func (s *service) sameRequest(op *models.LedgerOperation, req Request) bool {
	if op.Kind != models.ReferenceExchange || op.FromWalletID != req.WalletID {
		return false
	}
	from, err := s.table.Normalize(req.FromCurrency)
	if err != nil || from != op.FromCurrency {
		return false
	}
	to, err := s.table.Normalize(req.ToCurrency)
	if err != nil || to != op.ToCurrency {
		return false
	}
	return req.Amount.Equal(op.FromAmount)
}

func (s *service) fail(op string, err error) {
	code := apperrors.Code(err)
	if code == "" {
		code = "internal"
		s.logger.Error("exchange failed", zap.String("operation", op), zap.Error(err))
	}
	s.metrics.RecordError(op, code)
	s.metrics.RecordOperationResult(op, "failure")
}

func idempotencyKey(key string) *string {
	if key == "" {
		return nil
	}
	return &key
}
