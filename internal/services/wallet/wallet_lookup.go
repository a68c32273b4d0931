package wallet

import (
	"context"
	"errors"
	"fmt"

	apperrors "orusfx/internal/errors"
	"orusfx/internal/models"
	"orusfx/internal/repositories"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// CreateWallet opens the wallet of ownerID. A principal has exactly one
// wallet; calling it again returns the existing one.
func (s *service) CreateWallet(ctx context.Context, ownerID uuid.UUID) (*models.Wallet, error) {
	if ownerID == uuid.Nil {
		return nil, apperrors.ErrUnauthorized
	}

	wallet := &models.Wallet{OwnerID: ownerID}
	if err := s.repo.CreateWallet(ctx, wallet); err != nil {
		if errors.Is(err, repositories.ErrDuplicateWallet) {
			return s.repo.GetWalletByOwner(ctx, ownerID)
		}
		return nil, err
	}

	s.logger.Info("wallet created", zap.Stringer("wallet_id", wallet.ID), zap.Stringer("owner_id", ownerID))
	if s.cache != nil {
		s.cache.SetWallet(ctx, wallet)
	}
	return wallet, nil
}

func (s *service) GetWallet(ctx context.Context, id uuid.UUID) (*models.Wallet, error) {
	// Try cache first
	if s.cache != nil {
		if wallet, ok := s.cache.GetWallet(ctx, id); ok {
			return wallet, nil
		}
	}

	wallet, err := s.repo.GetWallet(ctx, id)
	if err != nil {
		return nil, err
	}

	// Update cache
	if s.cache != nil {
		s.cache.SetWallet(ctx, wallet)
	}
	return wallet, nil
}

func (s *service) GetWalletByOwner(ctx context.Context, ownerID uuid.UUID) (*models.Wallet, error) {
	return s.repo.GetWalletByOwner(ctx, ownerID)
}

// DeactivateWallet blocks further mutations. Balances and history stay readable.
func (s *service) DeactivateWallet(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.UpdateWalletStatus(ctx, id, models.WalletStatusInactive); err != nil {
		s.fail(OpDeactivate, err)
		return err
	}
	if s.cache != nil {
		s.cache.InvalidateWallet(ctx, id)
	}
	s.metrics.RecordOperationResult(OpDeactivate, "success")
	s.logger.Info("wallet deactivated", zap.Stringer("wallet_id", id))
	return nil
}

func (s *service) GetBalance(ctx context.Context, walletID uuid.UUID, currency string) (*models.CurrencyBalance, error) {
	code, err := s.table.Normalize(currency)
	if err != nil {
		return nil, err
	}
	return s.repo.GetBalance(ctx, walletID, code)
}

// GetBalances lists every balance of the wallet and totals them in the
// base currency. Currencies without a rate are listed but left out of the total.
func (s *service) GetBalances(ctx context.Context, walletID uuid.UUID) (*BalancesSummary, error) {
	if _, err := s.GetWallet(ctx, walletID); err != nil {
		return nil, err
	}
	balances, err := s.repo.ListBalances(ctx, walletID)
	if err != nil {
		return nil, err
	}

	base := s.table.Base()
	if s.rates != nil {
		base = s.rates.Base()
	}
	summary := &BalancesSummary{
		WalletID: walletID,
		Base:     base,
		Total:    decimal.Zero,
		Balances: make([]BalanceView, 0, len(balances)),
	}

	for i := range balances {
		b := &balances[i]
		view := BalanceView{
			Currency:      b.Currency,
			Balance:       b.Balance,
			LockedBalance: b.LockedBalance,
			Available:     b.Available(),
			UpdatedAt:     b.UpdatedAt,
		}

		rate, err := s.baseRate(ctx, b.Currency, base)
		if err != nil {
			s.logger.Warn("no rate for balance total",
				zap.String("currency", b.Currency), zap.String("base", base), zap.Error(err))
			summary.Unpriced = append(summary.Unpriced, b.Currency)
		} else {
			view.BaseValue = s.table.Round(b.Balance.Mul(rate), base)
			summary.Total = summary.Total.Add(view.BaseValue)
		}
		summary.Balances = append(summary.Balances, view)
	}
	return summary, nil
}

func (s *service) baseRate(ctx context.Context, code, base string) (decimal.Decimal, error) {
	if code == base {
		return decimal.NewFromInt(1), nil
	}
	if s.rates == nil {
		return decimal.Zero, apperrors.ErrRateUnavailable
	}
	return s.rates.Rate(ctx, code, base)
}

// GetLedgerHistory returns a page of the wallet's ledger, newest first.
func (s *service) GetLedgerHistory(ctx context.Context, walletID uuid.UUID, q HistoryQuery) (*HistoryPage, error) {
	if _, err := s.GetWallet(ctx, walletID); err != nil {
		return nil, err
	}

	filter := q.Filter
	filter.WalletID = walletID
	if filter.Currency != "" {
		code, err := s.table.Normalize(filter.Currency)
		if err != nil {
			return nil, err
		}
		filter.Currency = code
	}

	limit := q.Limit
	if limit <= 0 {
		limit = s.config.HistoryPageSize
	}
	if limit > s.config.MaxHistoryPageSize {
		limit = s.config.MaxHistoryPageSize
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}

	entries, total, err := s.repo.ListEntries(ctx, filter, limit, offset)
	if err != nil {
		return nil, err
	}
	return &HistoryPage{Entries: entries, Total: total, Limit: limit, Offset: offset}, nil
}

// VerifyLedger replays the entries of one balance from zero and compares the
// result with the stored balance. Every entry must start where the previous
// one ended and move the balance by exactly its signed amount.
func (s *service) VerifyLedger(ctx context.Context, walletID uuid.UUID, currency string) (*VerifyResult, error) {
	code, err := s.table.Normalize(currency)
	if err != nil {
		return nil, err
	}
	stored, err := s.repo.GetBalance(ctx, walletID, code)
	if err != nil {
		return nil, err
	}
	entries, err := s.repo.EntriesForBalance(ctx, walletID, code)
	if err != nil {
		return nil, err
	}

	result := &VerifyResult{
		WalletID: walletID,
		Currency: code,
		Entries:  len(entries),
		Replayed: decimal.Zero,
		Stored:   stored.Balance,
	}
	for i := range entries {
		e := &entries[i]
		if !e.BalanceBefore.Equal(result.Replayed) {
			result.BrokenEntryID = e.ID
			return result, fmt.Errorf("%w: entry %d starts at %s, expected %s",
				apperrors.ErrLedgerMismatch, e.ID, e.BalanceBefore, result.Replayed)
		}
		if !e.BalanceAfter.Sub(e.BalanceBefore).Equal(e.Signed()) {
			result.BrokenEntryID = e.ID
			return result, fmt.Errorf("%w: entry %d moves %s by %s, amount is %s",
				apperrors.ErrLedgerMismatch, e.ID, e.Type, e.BalanceAfter.Sub(e.BalanceBefore), e.Amount)
		}
		result.Replayed = e.BalanceAfter
	}
	if !result.Replayed.Equal(stored.Balance) {
		return result, fmt.Errorf("%w: replayed %s, stored %s",
			apperrors.ErrLedgerMismatch, result.Replayed, stored.Balance)
	}
	return result, nil
}
