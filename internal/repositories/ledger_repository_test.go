package repositories_test

import (
	"context"
	"errors"
	"testing"

	apperrors "orusfx/internal/errors"
	"orusfx/internal/models"
	"orusfx/internal/repositories"
	"orusfx/internal/repositories/repotest"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newWallet(t *testing.T, repo repositories.LedgerRepository) *models.Wallet {
	t.Helper()
	w := &models.Wallet{OwnerID: uuid.New()}
	require.NoError(t, repo.CreateWallet(context.Background(), w))
	return w
}

func TestLedgerRepository_GetBalanceCreatesZeroRowOnce(t *testing.T) {
	repo := repotest.NewRepository(t)
	ctx := context.Background()
	w := newWallet(t, repo)

	first, err := repo.GetBalance(ctx, w.ID, "USD")
	require.NoError(t, err)
	assert.True(t, first.Balance.IsZero())
	assert.True(t, first.LockedBalance.IsZero())

	second, err := repo.GetBalance(ctx, w.ID, "USD")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	balances, err := repo.ListBalances(ctx, w.ID)
	require.NoError(t, err)
	assert.Len(t, balances, 1)
}

func TestLedgerRepository_GetBalanceUnknownWallet(t *testing.T) {
	repo := repotest.NewRepository(t)

	_, err := repo.GetBalance(context.Background(), uuid.New(), "USD")
	assert.True(t, errors.Is(err, apperrors.ErrWalletNotFound))
}

func TestLedgerRepository_DuplicateOwner(t *testing.T) {
	repo := repotest.NewRepository(t)
	ctx := context.Background()
	owner := uuid.New()

	require.NoError(t, repo.CreateWallet(ctx, &models.Wallet{OwnerID: owner}))
	err := repo.CreateWallet(ctx, &models.Wallet{OwnerID: owner})
	assert.ErrorIs(t, err, repositories.ErrDuplicateWallet)
}

func TestLedgerRepository_RollbackOnError(t *testing.T) {
	repo := repotest.NewRepository(t)
	ctx := context.Background()
	w := newWallet(t, repo)
	key := models.BalanceKey{WalletID: w.ID, Currency: "EUR"}
	boom := errors.New("boom")

	err := repo.ExecuteInTransaction(ctx, func(tx repositories.LedgerTx) error {
		require.NoError(t, tx.EnsureBalance(key))
		locked, err := tx.LockBalances(key)
		require.NoError(t, err)
		b := locked[key]
		b.Balance = decimal.NewFromInt(50)
		require.NoError(t, tx.UpdateBalance(b))
		require.NoError(t, tx.AppendEntry(&models.LedgerEntry{
			WalletID:      w.ID,
			Type:          models.EntryCredit,
			Amount:        decimal.NewFromInt(50),
			Currency:      "EUR",
			BalanceBefore: decimal.Zero,
			BalanceAfter:  decimal.NewFromInt(50),
			ReferenceType: models.ReferenceDeposit,
			ReferenceID:   "DEP-1",
		}))
		return boom
	})
	require.ErrorIs(t, err, boom)

	balances, err := repo.ListBalances(ctx, w.ID)
	require.NoError(t, err)
	assert.Empty(t, balances)

	entries, err := repo.EntriesForBalance(ctx, w.ID, "EUR")
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestLedgerRepository_CanceledBeforeCommit(t *testing.T) {
	repo := repotest.NewRepository(t)
	w := newWallet(t, repo)
	key := models.BalanceKey{WalletID: w.ID, Currency: "USD"}

	ctx, cancel := context.WithCancel(context.Background())
	err := repo.ExecuteInTransaction(ctx, func(tx repositories.LedgerTx) error {
		if err := tx.EnsureBalance(key); err != nil {
			return err
		}
		cancel()
		return nil
	})
	require.ErrorIs(t, err, context.Canceled)

	balances, err := repo.ListBalances(context.Background(), w.ID)
	require.NoError(t, err)
	assert.Empty(t, balances)
}

func TestLedgerTx_UpdateBalanceGuards(t *testing.T) {
	repo := repotest.NewRepository(t)
	ctx := context.Background()
	w := newWallet(t, repo)
	key := models.BalanceKey{WalletID: w.ID, Currency: "USD"}

	t.Run("stale version", func(t *testing.T) {
		err := repo.ExecuteInTransaction(ctx, func(tx repositories.LedgerTx) error {
			require.NoError(t, tx.EnsureBalance(key))
			locked, err := tx.LockBalances(key)
			require.NoError(t, err)
			stale := *locked[key]

			locked[key].Balance = decimal.NewFromInt(10)
			require.NoError(t, tx.UpdateBalance(locked[key]))

			stale.Balance = decimal.NewFromInt(20)
			return tx.UpdateBalance(&stale)
		})
		assert.True(t, errors.Is(err, apperrors.ErrContention))
		assert.True(t, apperrors.IsRetryable(err))
	})

	t.Run("locked above balance", func(t *testing.T) {
		err := repo.ExecuteInTransaction(ctx, func(tx repositories.LedgerTx) error {
			require.NoError(t, tx.EnsureBalance(key))
			locked, err := tx.LockBalances(key)
			require.NoError(t, err)
			b := locked[key]
			b.LockedBalance = b.Balance.Add(decimal.NewFromInt(1))
			return tx.UpdateBalance(b)
		})
		assert.ErrorIs(t, err, repositories.ErrBalanceInvariant)
	})
}

func TestLedgerTx_LockBalancesMissingRow(t *testing.T) {
	repo := repotest.NewRepository(t)
	w := newWallet(t, repo)

	err := repo.ExecuteInTransaction(context.Background(), func(tx repositories.LedgerTx) error {
		_, err := tx.LockBalances(models.BalanceKey{WalletID: w.ID, Currency: "GBP"})
		return err
	})
	assert.ErrorIs(t, err, repositories.ErrBalanceNotFound)
}

func TestLedgerTx_DuplicateIdempotencyKey(t *testing.T) {
	repo := repotest.NewRepository(t)
	ctx := context.Background()
	w := newWallet(t, repo)
	key := "idem-1"

	op := func(ref string) *models.LedgerOperation {
		return &models.LedgerOperation{
			ReferenceID:    ref,
			Kind:           models.ReferenceExchange,
			IdempotencyKey: &key,
			FromWalletID:   w.ID,
			ToWalletID:     w.ID,
			FromCurrency:   "USD",
			ToCurrency:     "EUR",
			FromAmount:     decimal.NewFromInt(1),
			ToAmount:       decimal.NewFromInt(1),
			Rate:           decimal.NewFromInt(1),
			Fee:            decimal.Zero,
		}
	}

	require.NoError(t, repo.ExecuteInTransaction(ctx, func(tx repositories.LedgerTx) error {
		return tx.CreateOperation(op("EXC-1"))
	}))
	err := repo.ExecuteInTransaction(ctx, func(tx repositories.LedgerTx) error {
		return tx.CreateOperation(op("EXC-2"))
	})
	assert.True(t, errors.Is(err, apperrors.ErrDuplicateRequest))

	found, err := repo.FindOperationByIdempotencyKey(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "EXC-1", found.ReferenceID)

	_, err = repo.FindOperationByIdempotencyKey(ctx, "missing")
	assert.ErrorIs(t, err, repositories.ErrOperationNotFound)
}

func TestLedgerRepository_ListEntriesFiltersAndPages(t *testing.T) {
	repo := repotest.NewRepository(t)
	ctx := context.Background()
	w := newWallet(t, repo)

	require.NoError(t, repo.ExecuteInTransaction(ctx, func(tx repositories.LedgerTx) error {
		for i, cur := range []string{"USD", "USD", "EUR"} {
			if err := tx.AppendEntry(&models.LedgerEntry{
				WalletID:      w.ID,
				Type:          models.EntryCredit,
				Amount:        decimal.NewFromInt(int64(i + 1)),
				Currency:      cur,
				BalanceBefore: decimal.Zero,
				BalanceAfter:  decimal.NewFromInt(int64(i + 1)),
				ReferenceType: models.ReferenceDeposit,
				ReferenceID:   "DEP",
			}); err != nil {
				return err
			}
		}
		return nil
	}))

	entries, total, err := repo.ListEntries(ctx, repositories.EntryFilter{WalletID: w.ID, Currency: "USD"}, 1, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	require.Len(t, entries, 1)
	assert.True(t, entries[0].Amount.Equal(decimal.NewFromInt(2)), "newest first")
	assert.Equal(t, models.EntryStatusCompleted, entries[0].Status)

	entries, total, err = repo.ListEntries(ctx, repositories.EntryFilter{WalletID: w.ID}, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Len(t, entries, 3)

	byRef, err := repo.EntriesByReference(ctx, "DEP")
	require.NoError(t, err)
	assert.Len(t, byRef, 3)
}
