package wallet

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
	"orusfx/internal/utils"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type service struct {
	repo      repositories.LedgerRepository
	table     *currency.Table
	rates     RateSource
	publisher events.Publisher
	cache     WalletCache
	config    WalletConfig
	metrics   MetricsCollector
	logger    *zap.Logger
}

// Deps groups the collaborators of the wallet service. Rates, Publisher,
// Cache and Metrics are optional.
type Deps struct {
	Repo      repositories.LedgerRepository
	Table     *currency.Table
	Rates     RateSource
	Publisher events.Publisher
	Cache     WalletCache
	Metrics   MetricsCollector
	Logger    *zap.Logger
}

// NewService creates a new wallet service
func NewService(deps Deps, config WalletConfig) Service {
	if deps.Repo == nil {
		panic("repo is required")
	}
	if deps.Table == nil {
		panic("currency table is required")
	}

	// Set default configuration values if not provided
	if config.HistoryPageSize <= 0 {
		config.HistoryPageSize = DefaultHistoryPageSize
	}
	if config.MaxHistoryPageSize <= 0 {
		config.MaxHistoryPageSize = DefaultMaxHistoryPageSize
	}

	if deps.Publisher == nil {
		deps.Publisher = events.Noop{}
	}
	// Metrics is optional, create no-op collector if nil
	if deps.Metrics == nil {
		deps.Metrics = &NoopMetricsCollector{}
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}

	return &service{
		repo:      deps.Repo,
		table:     deps.Table,
		rates:     deps.Rates,
		publisher: deps.Publisher,
		cache:     deps.Cache,
		config:    config,
		metrics:   deps.Metrics,
		logger:    deps.Logger.Named("wallet"),
	}
}

// BalanceEvent is the payload of wallet.credited and wallet.debited.
type BalanceEvent struct {
	WalletID      uuid.UUID       `json:"wallet_id"`
	Currency      string          `json:"currency"`
	Amount        decimal.Decimal `json:"amount"`
	BalanceAfter  decimal.Decimal `json:"balance_after"`
	ReferenceType string          `json:"reference_type"`
	ReferenceID   string          `json:"reference_id"`
	EntryID       uint            `json:"entry_id"`
}

func (s *service) Credit(ctx context.Context, req OperationRequest) (*models.CurrencyBalance, error) {
	if req.ReferenceType == "" {
		req.ReferenceType = models.ReferenceDeposit
	}
	if req.ReferenceID == "" {
		req.ReferenceID = utils.NewReference(utils.PrefixDeposit)
	}
	return s.post(ctx, OpCredit, req, func(tx repositories.LedgerTx, b *models.CurrencyBalance, p Posting) (*models.LedgerEntry, error) {
		p.Type = models.EntryCredit
		return CreditTx(tx, b, p)
	})
}

func (s *service) Debit(ctx context.Context, req OperationRequest) (*models.CurrencyBalance, error) {
	if req.ReferenceType == "" {
		req.ReferenceType = models.ReferenceWithdrawal
	}
	if req.ReferenceID == "" {
		req.ReferenceID = utils.NewReference(utils.PrefixWithdrawal)
	}
	return s.post(ctx, OpDebit, req, func(tx repositories.LedgerTx, b *models.CurrencyBalance, p Posting) (*models.LedgerEntry, error) {
		p.Type = models.EntryDebit
		return DebitTx(tx, b, p)
	})
}

type applyFunc func(tx repositories.LedgerTx, balance *models.CurrencyBalance, p Posting) (*models.LedgerEntry, error)

// post runs one credit or debit as its own atomic unit.
func (s *service) post(ctx context.Context, op string, req OperationRequest, apply applyFunc) (*models.CurrencyBalance, error) {
	start := time.Now()

	code, amount, err := s.validate(req)
	if err != nil {
		s.fail(op, err)
		return nil, err
	}

	key := models.BalanceKey{WalletID: req.WalletID, Currency: code}
	var (
		updated *models.CurrencyBalance
		entry   *models.LedgerEntry
	)
	err = s.repo.ExecuteInTransaction(ctx, func(tx repositories.LedgerTx) error {
		if err := RequireActive(tx, req.WalletID); err != nil {
			return err
		}
		if err := tx.EnsureBalance(key); err != nil {
			return err
		}
		locked, err := tx.LockBalances(key)
		if err != nil {
			return err
		}
		updated = locked[key]
		entry, err = apply(tx, updated, Posting{
			Amount:        amount,
			ReferenceType: req.ReferenceType,
			ReferenceID:   req.ReferenceID,
			Description:   req.Description,
		})
		return err
	})
	s.metrics.RecordOperationDuration(op, time.Since(start))
	if err != nil {
		s.fail(op, err)
		return nil, err
	}

	s.metrics.RecordOperationResult(op, "success")
	s.metrics.RecordVolume(op, code, amount)
	s.logger.Info("balance updated",
		zap.String("operation", op),
		zap.Stringer("wallet_id", req.WalletID),
		zap.String("currency", code),
		zap.Stringer("amount", amount),
		zap.Stringer("balance", updated.Balance),
		zap.String("reference_id", req.ReferenceID))

	name := events.WalletCredited
	if op == OpDebit {
		name = events.WalletDebited
	}
	s.emit(ctx, name, BalanceEvent{
		WalletID:      req.WalletID,
		Currency:      code,
		Amount:        amount,
		BalanceAfter:  updated.Balance,
		ReferenceType: req.ReferenceType,
		ReferenceID:   req.ReferenceID,
		EntryID:       entry.ID,
	})
	return updated, nil
}

// Lock moves amount from available into the locked balance. No ledger entry
// is written because the balance itself does not change.
func (s *service) Lock(ctx context.Context, req OperationRequest) (*models.CurrencyBalance, error) {
	return s.reserve(ctx, OpLock, req, func(b *models.CurrencyBalance, amount decimal.Decimal) error {
		if available := b.Available(); amount.GreaterThan(available) {
			return fmt.Errorf("%w: cannot lock %s %s, %s available",
				apperrors.ErrInsufficientBalance, amount, b.Currency, available)
		}
		b.LockedBalance = b.LockedBalance.Add(amount)
		return nil
	})
}

// Unlock releases a previous Lock.
func (s *service) Unlock(ctx context.Context, req OperationRequest) (*models.CurrencyBalance, error) {
	return s.reserve(ctx, OpUnlock, req, func(b *models.CurrencyBalance, amount decimal.Decimal) error {
		if amount.GreaterThan(b.LockedBalance) {
			return fmt.Errorf("%w: cannot unlock %s %s, %s locked",
				apperrors.ErrInsufficientLocked, amount, b.Currency, b.LockedBalance)
		}
		b.LockedBalance = b.LockedBalance.Sub(amount)
		return nil
	})
}

func (s *service) reserve(ctx context.Context, op string, req OperationRequest, apply func(*models.CurrencyBalance, decimal.Decimal) error) (*models.CurrencyBalance, error) {
	start := time.Now()

	code, amount, err := s.validate(req)
	if err != nil {
		s.fail(op, err)
		return nil, err
	}

	key := models.BalanceKey{WalletID: req.WalletID, Currency: code}
	var updated *models.CurrencyBalance
	err = s.repo.ExecuteInTransaction(ctx, func(tx repositories.LedgerTx) error {
		if err := RequireActive(tx, req.WalletID); err != nil {
			return err
		}
		if err := tx.EnsureBalance(key); err != nil {
			return err
		}
		locked, err := tx.LockBalances(key)
		if err != nil {
			return err
		}
		updated = locked[key]
		if err := apply(updated, amount); err != nil {
			return err
		}
		return tx.UpdateBalance(updated)
	})
	s.metrics.RecordOperationDuration(op, time.Since(start))
	if err != nil {
		s.fail(op, err)
		return nil, err
	}

	s.metrics.RecordOperationResult(op, "success")
	s.logger.Info("locked balance updated",
		zap.String("operation", op),
		zap.Stringer("wallet_id", req.WalletID),
		zap.String("currency", code),
		zap.Stringer("amount", amount),
		zap.Stringer("locked_balance", updated.LockedBalance))
	return updated, nil
}

// validate normalizes the currency and rounds the amount to its precision.
func (s *service) validate(req OperationRequest) (string, decimal.Decimal, error) {
	if req.WalletID == uuid.Nil {
		return "", decimal.Zero, apperrors.ErrWalletNotFound
	}
	code, err := s.table.Normalize(req.Currency)
	if err != nil {
		return "", decimal.Zero, err
	}
	if !req.Amount.IsPositive() {
		return "", decimal.Zero, fmt.Errorf("%w: amount must be positive", apperrors.ErrAmountOutOfRange)
	}
	if !s.table.Exact(req.Amount, code) {
		return "", decimal.Zero, fmt.Errorf("%w: %s has more than %d decimal places for %s",
			apperrors.ErrAmountOutOfRange, req.Amount, s.table.Precision(code), code)
	}
	amount := s.table.Round(req.Amount, code)
	if s.config.MaxOperationAmount.IsPositive() && amount.GreaterThan(s.config.MaxOperationAmount) {
		return "", decimal.Zero, fmt.Errorf("%w: amount exceeds maximum of %s",
			apperrors.ErrAmountOutOfRange, s.config.MaxOperationAmount)
	}
	return code, amount, nil
}

func (s *service) fail(op string, err error) {
	code := apperrors.Code(err)
	if code == "" {
		code = "internal"
	}
	s.metrics.RecordError(op, code)
	s.metrics.RecordOperationResult(op, "failure")
	if code == "internal" || errors.Is(err, apperrors.ErrContention) {
		s.logger.Warn("balance operation failed", zap.String("operation", op), zap.Error(err))
	}
}

func (s *service) emit(ctx context.Context, name string, payload interface{}) {
	Emit(ctx, s.publisher, s.logger, name, payload)
}

// Emit publishes an event after commit. Failures are logged only; the
// committed operation stands.
func Emit(ctx context.Context, publisher events.Publisher, logger *zap.Logger, name string, payload interface{}) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), DefaultEventTimeout)
	defer cancel()
	if err := publisher.Publish(ctx, name, payload); err != nil {
		logger.Warn("failed to publish event", zap.String("event", name), zap.Error(err))
	}
}

// RequireActive loads the wallet inside tx and rejects inactive wallets.
func RequireActive(tx repositories.LedgerTx, id uuid.UUID) error {
	w, err := tx.GetWallet(id)
	if err != nil {
		return err
	}
	if !w.IsActive() {
		return fmt.Errorf("%w: %s", apperrors.ErrWalletInactive, id)
	}
	return nil
}
