package repositories

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	apperrors "orusfx/internal/errors"
	"orusfx/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DefaultTxTimeout bounds every ledger transaction.
const DefaultTxTimeout = 5 * time.Second

type ledgerRepository struct {
	db        *gorm.DB
	txTimeout time.Duration
}

// NewLedgerRepository returns a gorm-backed LedgerRepository.
func NewLedgerRepository(db *gorm.DB, txTimeout time.Duration) LedgerRepository {
	if txTimeout <= 0 {
		txTimeout = DefaultTxTimeout
	}
	return &ledgerRepository{db: db, txTimeout: txTimeout}
}

func (r *ledgerRepository) ExecuteInTransaction(ctx context.Context, fn func(tx LedgerTx) error) error {
	txCtx, cancel := context.WithTimeout(ctx, r.txTimeout)
	defer cancel()

	err := r.db.WithContext(txCtx).Transaction(func(tx *gorm.DB) error {
		if tx.Dialector.Name() == "postgres" {
			stmt := fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", r.txTimeout.Milliseconds())
			if err := tx.Exec(stmt).Error; err != nil {
				return err
			}
		}
		if err := fn(&ledgerTx{db: tx}); err != nil {
			return err
		}
		// Last point where cancellation aborts the unit; after this the
		// commit either applies everything or fails.
		return txCtx.Err()
	})
	return translateTxError(err)
}

func (r *ledgerRepository) CreateWallet(ctx context.Context, wallet *models.Wallet) error {
	if err := r.db.WithContext(ctx).Create(wallet).Error; err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateWallet
		}
		return fmt.Errorf("failed to create wallet: %w", err)
	}
	return nil
}

func (r *ledgerRepository) GetWallet(ctx context.Context, id uuid.UUID) (*models.Wallet, error) {
	return getWallet(r.db.WithContext(ctx), id)
}

func (r *ledgerRepository) GetWalletByOwner(ctx context.Context, ownerID uuid.UUID) (*models.Wallet, error) {
	var wallet models.Wallet
	if err := r.db.WithContext(ctx).Where("owner_id = ?", ownerID).First(&wallet).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrWalletNotFound
		}
		return nil, fmt.Errorf("failed to get wallet: %w", err)
	}
	return &wallet, nil
}

func (r *ledgerRepository) UpdateWalletStatus(ctx context.Context, id uuid.UUID, status string) error {
	result := r.db.WithContext(ctx).Model(&models.Wallet{}).Where("id = ?", id).Update("status", status)
	if result.Error != nil {
		return fmt.Errorf("failed to update wallet status: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperrors.ErrWalletNotFound
	}
	return nil
}

func (r *ledgerRepository) GetBalance(ctx context.Context, walletID uuid.UUID, currency string) (*models.CurrencyBalance, error) {
	db := r.db.WithContext(ctx)
	if _, err := getWallet(db, walletID); err != nil {
		return nil, err
	}
	key := models.BalanceKey{WalletID: walletID, Currency: currency}
	if err := ensureBalance(db, key); err != nil {
		return nil, err
	}
	var balance models.CurrencyBalance
	if err := db.Where("wallet_id = ? AND currency = ?", walletID, currency).First(&balance).Error; err != nil {
		return nil, fmt.Errorf("failed to get balance: %w", err)
	}
	return &balance, nil
}

func (r *ledgerRepository) ListBalances(ctx context.Context, walletID uuid.UUID) ([]models.CurrencyBalance, error) {
	var balances []models.CurrencyBalance
	err := r.db.WithContext(ctx).
		Where("wallet_id = ?", walletID).
		Order("currency ASC").
		Find(&balances).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list balances: %w", err)
	}
	return balances, nil
}

func (r *ledgerRepository) ListEntries(ctx context.Context, filter EntryFilter, limit, offset int) ([]models.LedgerEntry, int64, error) {
	q := r.db.WithContext(ctx).Model(&models.LedgerEntry{}).Where("wallet_id = ?", filter.WalletID)
	if filter.Currency != "" {
		q = q.Where("currency = ?", filter.Currency)
	}
	if filter.Type != "" {
		q = q.Where("type = ?", filter.Type)
	}
	if filter.ReferenceType != "" {
		q = q.Where("reference_type = ?", filter.ReferenceType)
	}
	if filter.ReferenceID != "" {
		q = q.Where("reference_id = ?", filter.ReferenceID)
	}
	if filter.From != nil {
		q = q.Where("created_at >= ?", *filter.From)
	}
	if filter.To != nil {
		q = q.Where("created_at < ?", *filter.To)
	}

	q = q.Session(&gorm.Session{})

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count ledger entries: %w", err)
	}

	var entries []models.LedgerEntry
	err := q.Order("created_at DESC").Order("id DESC").
		Limit(limit).
		Offset(offset).
		Find(&entries).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to get ledger history: %w", err)
	}
	return entries, total, nil
}

func (r *ledgerRepository) EntriesForBalance(ctx context.Context, walletID uuid.UUID, currency string) ([]models.LedgerEntry, error) {
	var entries []models.LedgerEntry
	err := r.db.WithContext(ctx).
		Where("wallet_id = ? AND currency = ?", walletID, currency).
		Order("id ASC").
		Find(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get ledger entries: %w", err)
	}
	return entries, nil
}

func (r *ledgerRepository) EntriesByReference(ctx context.Context, referenceID string) ([]models.LedgerEntry, error) {
	var entries []models.LedgerEntry
	err := r.db.WithContext(ctx).
		Where("reference_id = ?", referenceID).
		Order("id ASC").
		Find(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get ledger entries by reference: %w", err)
	}
	return entries, nil
}

func (r *ledgerRepository) FindOperationByIdempotencyKey(ctx context.Context, key string) (*models.LedgerOperation, error) {
	var op models.LedgerOperation
	if err := r.db.WithContext(ctx).Where("idempotency_key = ?", key).First(&op).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOperationNotFound
		}
		return nil, fmt.Errorf("failed to get operation: %w", err)
	}
	return &op, nil
}

// ledgerTx implements LedgerTx on an open gorm transaction.
type ledgerTx struct {
	db *gorm.DB
}

func (t *ledgerTx) GetWallet(id uuid.UUID) (*models.Wallet, error) {
	return getWallet(t.db, id)
}

func (t *ledgerTx) EnsureBalance(key models.BalanceKey) error {
	return ensureBalance(t.db, key)
}

func (t *ledgerTx) LockBalances(keys ...models.BalanceKey) (map[models.BalanceKey]*models.CurrencyBalance, error) {
	ordered := make([]models.BalanceKey, 0, len(keys))
	seen := make(map[models.BalanceKey]bool, len(keys))
	for _, k := range keys {
		if !seen[k] {
			seen[k] = true
			ordered = append(ordered, k)
		}
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Less(ordered[j]) })

	locked := make(map[models.BalanceKey]*models.CurrencyBalance, len(ordered))
	for _, k := range ordered {
		var balance models.CurrencyBalance
		err := t.db.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("wallet_id = ? AND currency = ?", k.WalletID, k.Currency).
			First(&balance).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, fmt.Errorf("balance %s/%s: %w", k.WalletID, k.Currency, ErrBalanceNotFound)
			}
			return nil, fmt.Errorf("failed to lock balance %s/%s: %w", k.WalletID, k.Currency, err)
		}
		locked[k] = &balance
	}
	return locked, nil
}

func (t *ledgerTx) UpdateBalance(balance *models.CurrencyBalance) error {
	if balance.LockedBalance.IsNegative() || balance.Balance.LessThan(balance.LockedBalance) {
		return fmt.Errorf("balance %s/%s: %w", balance.WalletID, balance.Currency, ErrBalanceInvariant)
	}
	now := time.Now().UTC()
	result := t.db.Model(&models.CurrencyBalance{}).
		Where("id = ? AND version = ?", balance.ID, balance.Version).
		Updates(map[string]interface{}{
			"balance":        balance.Balance,
			"locked_balance": balance.LockedBalance,
			"version":        balance.Version + 1,
			"updated_at":     now,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to update balance: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperrors.ErrContention
	}
	balance.Version++
	balance.UpdatedAt = now
	return nil
}

func (t *ledgerTx) AppendEntry(entry *models.LedgerEntry) error {
	if entry.Status == "" {
		entry.Status = models.EntryStatusCompleted
	}
	if err := t.db.Create(entry).Error; err != nil {
		return fmt.Errorf("failed to append ledger entry: %w", err)
	}
	return nil
}

func (t *ledgerTx) CreateOperation(op *models.LedgerOperation) error {
	if err := t.db.Create(op).Error; err != nil {
		if isUniqueViolation(err) {
			return apperrors.ErrDuplicateRequest
		}
		return fmt.Errorf("failed to record operation: %w", err)
	}
	return nil
}

func getWallet(db *gorm.DB, id uuid.UUID) (*models.Wallet, error) {
	var wallet models.Wallet
	if err := db.Where("id = ?", id).First(&wallet).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrWalletNotFound
		}
		return nil, fmt.Errorf("failed to get wallet: %w", err)
	}
	return &wallet, nil
}

// ensureBalance inserts the zero row unless another transaction already did.
func ensureBalance(db *gorm.DB, key models.BalanceKey) error {
	row := models.CurrencyBalance{
		WalletID:      key.WalletID,
		Currency:      key.Currency,
		Balance:       decimal.Zero,
		LockedBalance: decimal.Zero,
	}
	err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "wallet_id"}, {Name: "currency"}},
		DoNothing: true,
	}).Create(&row).Error
	if err != nil && !isUniqueViolation(err) {
		return fmt.Errorf("failed to create balance %s/%s: %w", key.WalletID, key.Currency, err)
	}
	return nil
}
