package repositories

import (
	"context"
	"errors"
	"fmt"
	"strings"

	apperrors "orusfx/internal/errors"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

var (
	ErrDuplicateWallet   = errors.New("wallet already exists")
	ErrBalanceNotFound   = errors.New("balance not found")
	ErrOperationNotFound = errors.New("operation not found")
	ErrBalanceInvariant  = errors.New("balance would violate balance >= locked >= 0")
)

// Postgres SQLSTATE codes
const (
	pgUniqueViolation      = "23505"
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
	pgLockNotAvailable     = "55P03"
	pgQueryCanceled        = "57014"
)

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// translateTxError maps lock waits, deadlocks and timeouts to the retryable
// contention error. Domain errors pass through unchanged.
func translateTxError(err error) error {
	if err == nil {
		return nil
	}
	var de *apperrors.DomainError
	if errors.As(err, &de) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", apperrors.ErrContention, err)
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgSerializationFailure, pgDeadlockDetected, pgLockNotAvailable, pgQueryCanceled:
			return fmt.Errorf("%w: %v", apperrors.ErrContention, err)
		}
	}
	return fmt.Errorf("ledger transaction failed: %w", err)
}
