package repotest

import (
	"context"

	"orusfx/internal/models"
	"orusfx/internal/repositories"
)

// Faults injects errors into the transactional writes of a repository.
// A nil hook never fails.
type Faults struct {
	UpdateBalance func(b *models.CurrencyBalance) error
	AppendEntry   func(e *models.LedgerEntry) error
}

// FaultyRepository wraps a LedgerRepository and applies Faults inside every
// transaction it opens.
type FaultyRepository struct {
	repositories.LedgerRepository
	Faults Faults
}

func NewFaultyRepository(repo repositories.LedgerRepository, faults Faults) *FaultyRepository {
	return &FaultyRepository{LedgerRepository: repo, Faults: faults}
}

func (r *FaultyRepository) ExecuteInTransaction(ctx context.Context, fn func(tx repositories.LedgerTx) error) error {
	return r.LedgerRepository.ExecuteInTransaction(ctx, func(tx repositories.LedgerTx) error {
		return fn(&faultyTx{LedgerTx: tx, faults: r.Faults})
	})
}

type faultyTx struct {
	repositories.LedgerTx
	faults Faults
}

func (t *faultyTx) UpdateBalance(b *models.CurrencyBalance) error {
	if t.faults.UpdateBalance != nil {
		if err := t.faults.UpdateBalance(b); err != nil {
			return err
		}
	}
	return t.LedgerTx.UpdateBalance(b)
}

func (t *faultyTx) AppendEntry(e *models.LedgerEntry) error {
	if t.faults.AppendEntry != nil {
		if err := t.faults.AppendEntry(e); err != nil {
			return err
		}
	}
	return t.LedgerTx.AppendEntry(e)
}
