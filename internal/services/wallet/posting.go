package wallet

import (
	"fmt"

	apperrors "orusfx/internal/errors"
	"orusfx/internal/models"
	"orusfx/internal/repositories"

	"github.com/shopspring/decimal"
)

// CreditTx adds p.Amount to a balance locked in tx and appends the matching
// entry. Before and after values come from the locked row.
func CreditTx(tx repositories.LedgerTx, balance *models.CurrencyBalance, p Posting) (*models.LedgerEntry, error) {
	if p.Type == "" {
		p.Type = models.EntryCredit
	}
	if !p.Type.IsCredit() {
		return nil, fmt.Errorf("entry type %s does not credit a balance", p.Type)
	}
	if !p.Amount.IsPositive() {
		return nil, fmt.Errorf("%w: credit amount must be positive", apperrors.ErrAmountOutOfRange)
	}

	before := balance.Balance
	balance.Balance = before.Add(p.Amount)
	if err := tx.UpdateBalance(balance); err != nil {
		balance.Balance = before
		return nil, err
	}
	return appendEntry(tx, balance, p, before)
}

// DebitTx subtracts p.Amount from a balance locked in tx. The available
// balance check runs on the locked row, so concurrent debits cannot both pass.
func DebitTx(tx repositories.LedgerTx, balance *models.CurrencyBalance, p Posting) (*models.LedgerEntry, error) {
	if p.Type == "" {
		p.Type = models.EntryDebit
	}
	if p.Type.IsCredit() {
		return nil, fmt.Errorf("entry type %s does not debit a balance", p.Type)
	}
	if !p.Amount.IsPositive() {
		return nil, fmt.Errorf("%w: debit amount must be positive", apperrors.ErrAmountOutOfRange)
	}
	if available := balance.Available(); p.Amount.GreaterThan(available) {
		return nil, fmt.Errorf("%w: %s %s requested, %s available",
			apperrors.ErrInsufficientBalance, p.Amount, balance.Currency, available)
	}

	before := balance.Balance
	balance.Balance = before.Sub(p.Amount)
	if err := tx.UpdateBalance(balance); err != nil {
		balance.Balance = before
		return nil, err
	}
	return appendEntry(tx, balance, p, before)
}

func appendEntry(tx repositories.LedgerTx, balance *models.CurrencyBalance, p Posting, before decimal.Decimal) (*models.LedgerEntry, error) {
	entry := &models.LedgerEntry{
		WalletID:             balance.WalletID,
		Type:                 p.Type,
		Amount:               p.Amount,
		Currency:             balance.Currency,
		BalanceBefore:        before,
		BalanceAfter:         balance.Balance,
		CounterpartyWalletID: p.CounterpartyWalletID,
		ReferenceType:        p.ReferenceType,
		ReferenceID:          p.ReferenceID,
		Status:               models.EntryStatusCompleted,
		Description:          p.Description,
	}
	if err := tx.AppendEntry(entry); err != nil {
		return nil, err
	}
	return entry, nil
}
