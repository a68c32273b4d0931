package wallet_test

import (
	"context"
	"errors"
	"testing"

	"orusfx/internal/events"
	"orusfx/internal/services/wallet"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) Publish(ctx context.Context, name string, payload interface{}) error {
	args := m.Called(ctx, name, payload)
	return args.Error(0)
}

func TestWalletService_PublishFailureDoesNotFailCommit(t *testing.T) {
	pub := &mockPublisher{}
	pub.On("Publish", mock.Anything, events.WalletCredited, mock.AnythingOfType("wallet.BalanceEvent")).
		Return(errors.New("bus down")).Once()

	f := newFixture(t, func(d *wallet.Deps) { d.Publisher = pub })
	w := f.wallet(t)

	b, err := f.svc.Credit(context.Background(), wallet.OperationRequest{
		WalletID: w.ID,
		Currency: "USD",
		Amount:   dec("25"),
	})
	require.NoError(t, err)
	assertDecimal(t, "25", b.Balance)
	pub.AssertExpectations(t)

	stored, err := f.svc.GetBalance(context.Background(), w.ID, "USD")
	require.NoError(t, err)
	assertDecimal(t, "25", stored.Balance)
}
