package exchange_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"orusfx/internal/currency"
	apperrors "orusfx/internal/errors"
	"orusfx/internal/events"
	"orusfx/internal/models"
	"orusfx/internal/repositories"
	"orusfx/internal/repositories/repotest"
	"orusfx/internal/services/exchange"
	"orusfx/internal/services/rates"
	"orusfx/internal/services/wallet"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fixture struct {
	repo    repositories.LedgerRepository
	faulty  *repotest.FaultyRepository
	wallets wallet.Service
	svc     exchange.Service
	events  *events.Recorder
}

func newFixture(t *testing.T, table *currency.Table) *fixture {
	t.Helper()
	if table == nil {
		table = currency.Default()
	}
	repo := repositories.NewLedgerRepository(repotest.OpenDB(t), 0)
	faulty := repotest.NewFaultyRepository(repo, repotest.Faults{})
	provider := rates.NewProvider(rates.NewStaticSource(table), table, rates.Config{
		MarkupPercent: dec("1.5"),
	}, zap.NewNop())
	rec := &events.Recorder{}

	return &fixture{
		repo:   repo,
		faulty: faulty,
		wallets: wallet.NewService(wallet.Deps{
			Repo:   repo,
			Table:  table,
			Rates:  provider,
			Logger: zap.NewNop(),
		}, wallet.WalletConfig{}),
		svc: exchange.NewService(faulty, table, provider, rec, nil, zap.NewNop(), exchange.Config{
			MinAmount: dec("1"),
			MaxAmount: dec("1000000"),
		}),
		events: rec,
	}
}

func (f *fixture) fundedWallet(t *testing.T, code, amount string) *models.Wallet {
	t.Helper()
	ctx := context.Background()
	w, err := f.wallets.CreateWallet(ctx, uuid.New())
	require.NoError(t, err)
	_, err = f.wallets.Credit(ctx, wallet.OperationRequest{WalletID: w.ID, Currency: code, Amount: dec(amount)})
	require.NoError(t, err)
	return w
}

func (f *fixture) balance(t *testing.T, walletID uuid.UUID, code string) decimal.Decimal {
	t.Helper()
	b, err := f.wallets.GetBalance(context.Background(), walletID, code)
	require.NoError(t, err)
	return b.Balance
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func assertDecimal(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.True(t, got.Equal(dec(want)), "want %s got %s", want, got.String())
}

func TestExchange_USDToINR(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	w := f.fundedWallet(t, "USD", "500")

	res, err := f.svc.Exchange(ctx, exchange.Request{
		WalletID:     w.ID,
		RequestorID:  w.OwnerID,
		FromCurrency: "USD",
		ToCurrency:   "INR",
		Amount:       dec("100"),
	})
	require.NoError(t, err)

	assertDecimal(t, "82.2475", res.Rate)
	assertDecimal(t, "83.5", res.Quote.BaseRate)
	assertDecimal(t, "8224.75", res.Quote.ToAmount)
	assertDecimal(t, "1.5", res.Quote.Fee)
	assertDecimal(t, "400", res.FromBalance.Balance)
	assertDecimal(t, "8224.75", res.ToBalance.Balance)

	assertDecimal(t, "400", f.balance(t, w.ID, "USD"))
	assertDecimal(t, "8224.75", f.balance(t, w.ID, "INR"))

	entries, err := f.repo.EntriesByReference(ctx, res.ReferenceID)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, models.EntryDebit, entries[0].Type)
	assert.Equal(t, "USD", entries[0].Currency)
	assertDecimal(t, "100", entries[0].Amount)
	assert.Equal(t, models.EntryCredit, entries[1].Type)
	assert.Equal(t, "INR", entries[1].Currency)
	assertDecimal(t, "8224.75", entries[1].Amount)
	for _, e := range entries {
		assert.Equal(t, models.ReferenceExchange, e.ReferenceType)
		assert.Equal(t, models.EntryStatusCompleted, e.Status)
	}

	assert.Equal(t, []string{events.WalletCurrencyExchanged}, f.events.Names())
}

func TestQuote(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	w := f.fundedWallet(t, "USD", "10")

	q, err := f.svc.Quote(ctx, w.ID, "usd", "inr", dec("100"))
	require.NoError(t, err)
	assert.Equal(t, "USD", q.FromCurrency)
	assert.Equal(t, "INR", q.ToCurrency)
	assertDecimal(t, "8224.75", q.ToAmount)
	assertDecimal(t, "1.5", q.FeePercentage)
	assert.WithinDuration(t, time.Now().Add(exchange.DefaultQuoteTTL), q.ExpiresAt, 5*time.Second)

	t.Run("rounds to destination precision", func(t *testing.T) {
		q, err := f.svc.Quote(ctx, w.ID, "USD", "JPY", dec("10"))
		require.NoError(t, err)
		// 10 * 151.2 * 0.985 = 1489.32
		assertDecimal(t, "1489", q.ToAmount)
	})

	tests := []struct {
		name    string
		from    string
		to      string
		amount  string
		wantErr error
	}{
		{name: "same currency", from: "USD", to: "usd", amount: "10", wantErr: apperrors.ErrSameCurrency},
		{name: "unsupported source", from: "ABC", to: "USD", amount: "10", wantErr: apperrors.ErrInvalidCurrency},
		{name: "unsupported target", from: "USD", to: "ABC", amount: "10", wantErr: apperrors.ErrInvalidCurrency},
		{name: "below minimum", from: "USD", to: "EUR", amount: "0.99", wantErr: apperrors.ErrAmountOutOfRange},
		{name: "above maximum", from: "USD", to: "EUR", amount: "1000000.01", wantErr: apperrors.ErrAmountOutOfRange},
		{name: "negative", from: "USD", to: "EUR", amount: "-5", wantErr: apperrors.ErrAmountOutOfRange},
		{name: "more places than source currency", from: "USD", to: "EUR", amount: "100.005", wantErr: apperrors.ErrAmountOutOfRange},
		{name: "fractional yen", from: "JPY", to: "USD", amount: "1500.5", wantErr: apperrors.ErrAmountOutOfRange},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Quote(ctx, w.ID, tt.from, tt.to, dec(tt.amount))
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	_, err = f.svc.Quote(ctx, uuid.New(), "USD", "EUR", dec("10"))
	assert.ErrorIs(t, err, apperrors.ErrWalletNotFound)
}

func TestExchange_SameCurrencyIsInvalidCurrency(t *testing.T) {
	f := newFixture(t, nil)
	w := f.fundedWallet(t, "USD", "100")

	_, err := f.svc.Exchange(context.Background(), exchange.Request{
		WalletID:     w.ID,
		RequestorID:  w.OwnerID,
		FromCurrency: "USD",
		ToCurrency:   "USD",
		Amount:       dec("10"),
	})
	assert.ErrorIs(t, err, apperrors.ErrSameCurrency)
	assert.ErrorIs(t, err, apperrors.ErrInvalidCurrency)
	assertDecimal(t, "100", f.balance(t, w.ID, "USD"))
}

func TestExchange_RejectedBeforeMutation(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	w := f.fundedWallet(t, "USD", "50")
	inactive := f.fundedWallet(t, "USD", "50")
	require.NoError(t, f.wallets.DeactivateWallet(ctx, inactive.ID))

	tests := []struct {
		name    string
		req     exchange.Request
		wantErr error
	}{
		{
			name:    "other principal",
			req:     exchange.Request{WalletID: w.ID, RequestorID: uuid.New(), FromCurrency: "USD", ToCurrency: "EUR", Amount: dec("10")},
			wantErr: apperrors.ErrUnauthorized,
		},
		{
			name:    "no principal",
			req:     exchange.Request{WalletID: w.ID, FromCurrency: "USD", ToCurrency: "EUR", Amount: dec("10")},
			wantErr: apperrors.ErrUnauthorized,
		},
		{
			name:    "unknown wallet",
			req:     exchange.Request{WalletID: uuid.New(), RequestorID: w.OwnerID, FromCurrency: "USD", ToCurrency: "EUR", Amount: dec("10")},
			wantErr: apperrors.ErrWalletNotFound,
		},
		{
			name:    "inactive wallet",
			req:     exchange.Request{WalletID: inactive.ID, RequestorID: inactive.OwnerID, FromCurrency: "USD", ToCurrency: "EUR", Amount: dec("10")},
			wantErr: apperrors.ErrWalletInactive,
		},
		{
			name:    "insufficient balance",
			req:     exchange.Request{WalletID: w.ID, RequestorID: w.OwnerID, FromCurrency: "USD", ToCurrency: "EUR", Amount: dec("50.01")},
			wantErr: apperrors.ErrInsufficientBalance,
		},
		{
			name:    "out of range",
			req:     exchange.Request{WalletID: w.ID, RequestorID: w.OwnerID, FromCurrency: "USD", ToCurrency: "EUR", Amount: dec("0.5")},
			wantErr: apperrors.ErrAmountOutOfRange,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Exchange(ctx, tt.req)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	assertDecimal(t, "50", f.balance(t, w.ID, "USD"))
	assertDecimal(t, "0", f.balance(t, w.ID, "EUR"))
	assert.Empty(t, f.events.Names())
}

func TestExchange_AllOrNothing(t *testing.T) {
	boom := errors.New("injected failure")

	tests := []struct {
		name   string
		faults repotest.Faults
	}{
		{
			name: "credit entry fails",
			faults: repotest.Faults{AppendEntry: func(e *models.LedgerEntry) error {
				if e.Type == models.EntryCredit {
					return boom
				}
				return nil
			}},
		},
		{
			name: "credit balance update fails",
			faults: repotest.Faults{UpdateBalance: func(b *models.CurrencyBalance) error {
				if b.Currency == "EUR" {
					return boom
				}
				return nil
			}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, nil)
			ctx := context.Background()
			w := f.fundedWallet(t, "USD", "200")
			f.faulty.Faults = tt.faults

			_, err := f.svc.Exchange(ctx, exchange.Request{
				WalletID:     w.ID,
				RequestorID:  w.OwnerID,
				FromCurrency: "USD",
				ToCurrency:   "EUR",
				Amount:       dec("100"),
			})
			require.ErrorIs(t, err, boom)

			assertDecimal(t, "200", f.balance(t, w.ID, "USD"))
			assertDecimal(t, "0", f.balance(t, w.ID, "EUR"))

			usd, err := f.repo.EntriesForBalance(ctx, w.ID, "USD")
			require.NoError(t, err)
			assert.Len(t, usd, 1, "only the funding credit")
			eur, err := f.repo.EntriesForBalance(ctx, w.ID, "EUR")
			require.NoError(t, err)
			assert.Empty(t, eur)
			assert.Empty(t, f.events.Names())
		})
	}
}

func TestExchange_Idempotent(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	w := f.fundedWallet(t, "USD", "100")

	req := exchange.Request{
		WalletID:       w.ID,
		RequestorID:    w.OwnerID,
		FromCurrency:   "USD",
		ToCurrency:     "GBP",
		Amount:         dec("40"),
		IdempotencyKey: "key-1",
	}
	first, err := f.svc.Exchange(ctx, req)
	require.NoError(t, err)
	assert.False(t, first.Replayed)

	second, err := f.svc.Exchange(ctx, req)
	require.NoError(t, err)
	assert.True(t, second.Replayed)
	assert.Equal(t, first.ReferenceID, second.ReferenceID)
	assert.True(t, first.Quote.ToAmount.Equal(second.Quote.ToAmount))

	assertDecimal(t, "60", f.balance(t, w.ID, "USD"))
	assert.Len(t, f.events.Names(), 1)

	other := f.fundedWallet(t, "USD", "100")
	_, err = f.svc.Exchange(ctx, exchange.Request{
		WalletID:       other.ID,
		RequestorID:    other.OwnerID,
		FromCurrency:   "USD",
		ToCurrency:     "GBP",
		Amount:         dec("40"),
		IdempotencyKey: "key-1",
	})
	assert.ErrorIs(t, err, apperrors.ErrDuplicateRequest)
	assertDecimal(t, "100", f.balance(t, other.ID, "USD"))

	t.Run("same key with different terms", func(t *testing.T) {
		changed := []struct {
			name string
			mod  func(r *exchange.Request)
		}{
			{name: "target currency", mod: func(r *exchange.Request) { r.ToCurrency = "JPY" }},
			{name: "amount", mod: func(r *exchange.Request) { r.Amount = dec("50") }},
			{name: "source currency", mod: func(r *exchange.Request) { r.FromCurrency = "EUR"; r.ToCurrency = "GBP" }},
		}
		for _, tt := range changed {
			t.Run(tt.name, func(t *testing.T) {
				r := req
				tt.mod(&r)
				_, err := f.svc.Exchange(ctx, r)
				assert.ErrorIs(t, err, apperrors.ErrDuplicateRequest)
			})
		}

		lowercase := req
		lowercase.FromCurrency = "usd"
		lowercase.Amount = dec("40.00")
		res, err := f.svc.Exchange(ctx, lowercase)
		require.NoError(t, err)
		assert.True(t, res.Replayed)

		assertDecimal(t, "60", f.balance(t, w.ID, "USD"))
		jpy, err := f.wallets.GetBalance(ctx, w.ID, "JPY")
		require.NoError(t, err)
		assert.True(t, jpy.Balance.IsZero())
		assert.Len(t, f.events.Names(), 1)
	})
}

func TestExchange_ConcurrentConservation(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	w := f.fundedWallet(t, "USD", "100")

	var (
		wg sync.WaitGroup
		mu sync.Mutex
		ok int
	)
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Exchange(ctx, exchange.Request{
				WalletID:     w.ID,
				RequestorID:  w.OwnerID,
				FromCurrency: "USD",
				ToCurrency:   "INR",
				Amount:       dec("30"),
			})
			if err != nil {
				assert.ErrorIs(t, err, apperrors.ErrInsufficientBalance)
				return
			}
			mu.Lock()
			ok++
			mu.Unlock()
		}()
	}
	wg.Wait()

	require.Equal(t, 3, ok)
	assertDecimal(t, "10", f.balance(t, w.ID, "USD"))
	// 30 * 82.2475 = 2467.425, half-even to 2467.42
	assertDecimal(t, "7402.26", f.balance(t, w.ID, "INR"))

	for _, code := range []string{"USD", "INR"} {
		_, err := f.wallets.VerifyLedger(ctx, w.ID, code)
		assert.NoError(t, err, code)
	}
}

func TestExchange_RateUnavailable(t *testing.T) {
	table, err := currency.NewTable("USD", []currency.Currency{
		{Code: "USD", Precision: 2, Rate: "1"},
		{Code: "XAU", Precision: 4},
	})
	require.NoError(t, err)
	f := newFixture(t, table)
	w := f.fundedWallet(t, "USD", "100")

	_, err = f.svc.Exchange(context.Background(), exchange.Request{
		WalletID:     w.ID,
		RequestorID:  w.OwnerID,
		FromCurrency: "USD",
		ToCurrency:   "XAU",
		Amount:       dec("10"),
	})
	assert.ErrorIs(t, err, apperrors.ErrRateUnavailable)
	assertDecimal(t, "100", f.balance(t, w.ID, "USD"))
}
