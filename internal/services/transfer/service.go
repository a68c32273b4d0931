// Package transfer moves money between wallets, optionally converting it in
// flight. Both legs commit in one ledger transaction.
package transfer

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
	"orusfx/internal/services/exchange"
	"orusfx/internal/services/wallet"
	"orusfx/internal/utils"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Config bounds same-currency transfer amounts. Zero means no cap.
type Config struct {
	MaxAmount decimal.Decimal
}

// service implements the transfer Service interface.
type service struct {
	repo      repositories.LedgerRepository
	table     *currency.Table
	quoter    Quoter
	publisher events.Publisher
	metrics   wallet.MetricsCollector
	logger    *zap.Logger
	config    Config
}

// NewService creates a new transfer service instance.
func NewService(
	repo repositories.LedgerRepository,
	table *currency.Table,
	quoter Quoter,
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
		quoter:    quoter,
		publisher: publisher,
		metrics:   metrics,
		logger:    logger.Named("transfer"),
		config:    config,
	}
}

// Transfer moves funds between two wallets.
func (s *service) Transfer(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()
	res, err := s.transfer(ctx, req)
	s.metrics.RecordOperationDuration(wallet.OpTransfer, time.Since(start))
	if err != nil {
		code := apperrors.Code(err)
		if code == "" {
			code = "internal"
			s.logger.Error("transfer failed", zap.Error(err))
		}
		s.metrics.RecordError(wallet.OpTransfer, code)
		s.metrics.RecordOperationResult(wallet.OpTransfer, "failure")
		return nil, err
	}
	if res.Replayed {
		s.metrics.RecordOperationResult(wallet.OpTransfer, "replayed")
		return res, nil
	}

	s.metrics.RecordOperationResult(wallet.OpTransfer, "success")
	s.metrics.RecordVolume(wallet.OpTransfer, res.SentCurrency, res.SentAmount)
	s.logger.Info("transfer completed",
		zap.String("reference_id", res.ReferenceID),
		zap.Stringer("from_wallet_id", req.FromWalletID),
		zap.Stringer("to_wallet_id", req.ToWalletID),
		zap.String("sent_currency", res.SentCurrency),
		zap.Stringer("sent_amount", res.SentAmount),
		zap.String("received_currency", res.ReceivedCurrency),
		zap.Stringer("received_amount", res.ReceivedAmount))

	wallet.Emit(ctx, s.publisher, s.logger, events.WalletTransferCompleted, CompletedEvent{
		ReferenceID:      res.ReferenceID,
		FromWalletID:     req.FromWalletID,
		ToWalletID:       req.ToWalletID,
		SentCurrency:     res.SentCurrency,
		SentAmount:       res.SentAmount,
		ReceivedCurrency: res.ReceivedCurrency,
		ReceivedAmount:   res.ReceivedAmount,
		Rate:             res.Rate,
		Description:      req.Description,
	})
	return res, nil
}

func (s *service) transfer(ctx context.Context, req Request) (*Result, error) {
	if req.FromWalletID == req.ToWalletID {
		return nil, apperrors.ErrSameWallet
	}

	from, err := s.repo.GetWallet(ctx, req.FromWalletID)
	if err != nil {
		return nil, fmt.Errorf("source wallet: %w", err)
	}
	to, err := s.repo.GetWallet(ctx, req.ToWalletID)
	if err != nil {
		return nil, fmt.Errorf("destination wallet: %w", err)
	}
	if req.RequestorID == uuid.Nil || from.OwnerID != req.RequestorID {
		return nil, apperrors.ErrUnauthorized
	}
	for _, w := range []*models.Wallet{from, to} {
		if !w.IsActive() {
			return nil, fmt.Errorf("%w: %s", apperrors.ErrWalletInactive, w.ID)
		}
	}

	if req.IdempotencyKey != "" {
		if res, err := s.replay(ctx, req); !errors.Is(err, repositories.ErrOperationNotFound) {
			return res, err
		}
	}

	code, err := s.table.Normalize(req.Currency)
	if err != nil {
		return nil, err
	}
	if !req.Amount.IsPositive() {
		return nil, fmt.Errorf("%w: amount must be positive", apperrors.ErrAmountOutOfRange)
	}
	if !s.table.Exact(req.Amount, code) {
		return nil, fmt.Errorf("%w: %s has more than %d decimal places for %s",
			apperrors.ErrAmountOutOfRange, req.Amount, s.table.Precision(code), code)
	}
	amount := s.table.Round(req.Amount, code)
	if s.config.MaxAmount.IsPositive() && amount.GreaterThan(s.config.MaxAmount) {
		return nil, fmt.Errorf("%w: amount exceeds maximum of %s", apperrors.ErrAmountOutOfRange, s.config.MaxAmount)
	}

	current, err := s.repo.GetBalance(ctx, req.FromWalletID, code)
	if err != nil {
		return nil, err
	}
	if amount.GreaterThan(current.Available()) {
		return nil, fmt.Errorf("%w: %s %s requested, %s available",
			apperrors.ErrInsufficientBalance, amount, code, current.Available())
	}

	res := &Result{
		ReferenceID:      utils.NewReference(utils.PrefixTransfer),
		FromWalletID:     req.FromWalletID,
		ToWalletID:       req.ToWalletID,
		SentCurrency:     code,
		SentAmount:       amount,
		ReceivedCurrency: code,
		ReceivedAmount:   amount,
		Rate:             decimal.NewFromInt(1),
	}
	baseRate := res.Rate

	if req.ConvertTo != "" {
		target, err := s.table.Normalize(req.ConvertTo)
		if err != nil {
			return nil, err
		}
		if target != code {
			if s.quoter == nil {
				return nil, fmt.Errorf("%w: conversion not configured", apperrors.ErrRateUnavailable)
			}
			q, err := s.quoter.Quote(ctx, req.FromWalletID, code, target, amount)
			if err != nil {
				return nil, err
			}
			res.Quote = q
			res.ReceivedCurrency = q.ToCurrency
			res.ReceivedAmount = q.ToAmount
			res.Rate = q.Rate
			baseRate = q.BaseRate
		}
	}

	fromKey := models.BalanceKey{WalletID: req.FromWalletID, Currency: res.SentCurrency}
	toKey := models.BalanceKey{WalletID: req.ToWalletID, Currency: res.ReceivedCurrency}
	description := req.Description
	if description == "" {
		description = "Wallet transfer"
	}

	err = s.repo.ExecuteInTransaction(ctx, func(tx repositories.LedgerTx) error {
		for _, id := range []uuid.UUID{req.FromWalletID, req.ToWalletID} {
			if err := wallet.RequireActive(tx, id); err != nil {
				return err
			}
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

		if _, err := wallet.DebitTx(tx, locked[fromKey], wallet.Posting{
			Type:                 models.EntryTransferOut,
			Amount:               res.SentAmount,
			ReferenceType:        models.ReferenceTransfer,
			ReferenceID:          res.ReferenceID,
			CounterpartyWalletID: &req.ToWalletID,
			Description:          description,
		}); err != nil {
			return err
		}
		if _, err := wallet.CreditTx(tx, locked[toKey], wallet.Posting{
			Type:                 models.EntryTransferIn,
			Amount:               res.ReceivedAmount,
			ReferenceType:        models.ReferenceTransfer,
			ReferenceID:          res.ReferenceID,
			CounterpartyWalletID: &req.FromWalletID,
			Description:          description,
		}); err != nil {
			return err
		}

		var fee decimal.Decimal
		if res.Quote != nil {
			fee = res.Quote.Fee
		}
		if err := tx.CreateOperation(&models.LedgerOperation{
			ReferenceID:    res.ReferenceID,
			Kind:           models.ReferenceTransfer,
			IdempotencyKey: idempotencyKey(req.IdempotencyKey),
			FromWalletID:   req.FromWalletID,
			ToWalletID:     req.ToWalletID,
			FromCurrency:   res.SentCurrency,
			ToCurrency:     res.ReceivedCurrency,
			FromAmount:     res.SentAmount,
			ToAmount:       res.ReceivedAmount,
			Rate:           res.Rate,
			BaseRate:       baseRate,
			Fee:            fee,
			Description:    description,
		}); err != nil {
			return err
		}

		res.SourceBalance = locked[fromKey]
		res.DestinationBalance = locked[toKey]
		return nil
	})
	if errors.Is(err, apperrors.ErrDuplicateRequest) && req.IdempotencyKey != "" {
		return s.replay(ctx, req)
	}
	if err != nil {
		return nil, err
	}
	return res, nil
}

// replay returns the transfer already recorded under req.IdempotencyKey.
func (s *service) replay(ctx context.Context, req Request) (*Result, error) {
	op, err := s.repo.FindOperationByIdempotencyKey(ctx, req.IdempotencyKey)
	if err != nil {
		return nil, err
	}
	if !s.sameRequest(op, req) {
		return nil, fmt.Errorf("%w: key %q belongs to %s %s",
			apperrors.ErrDuplicateRequest, req.IdempotencyKey, op.Kind, op.ReferenceID)
	}
	source, err := s.repo.GetBalance(ctx, op.FromWalletID, op.FromCurrency)
	if err != nil {
		return nil, err
	}
	return &Result{
		ReferenceID:      op.ReferenceID,
		FromWalletID:     op.FromWalletID,
		ToWalletID:       op.ToWalletID,
		SentCurrency:     op.FromCurrency,
		SentAmount:       op.FromAmount,
		ReceivedCurrency: op.ToCurrency,
		ReceivedAmount:   op.ToAmount,
		Rate:             op.Rate,
		SourceBalance:    source,
		Replayed:         true,
	}, nil
}

// sameRequest reports whether req asks for exactly what op recorded.
func (s *service) sameRequest(op *models.LedgerOperation, req Request) bool {
	if op.Kind != models.ReferenceTransfer || op.FromWalletID != req.FromWalletID || op.ToWalletID != req.ToWalletID {
		return false
	}
	sent, err := s.table.Normalize(req.Currency)
	if err != nil || sent != op.FromCurrency {
		return false
	}
	received := sent
	if req.ConvertTo != "" {
		if received, err = s.table.Normalize(req.ConvertTo); err != nil {
			return false
		}
	}
	return received == op.ToCurrency && req.Amount.Equal(op.FromAmount)
}

func idempotencyKey(key string) *string {
	if key == "" {
		return nil
	}
	return &key
}

var _ Quoter = exchange.Service(nil)
