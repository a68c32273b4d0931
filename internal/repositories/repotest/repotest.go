// Package repotest opens throwaway ledger databases for tests.
package repotest

import (
	"path/filepath"
	"testing"

	"orusfx/internal/repositories"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// OpenDB returns a migrated SQLite database in t's temp dir. The pool is
// limited to one connection, so transactions run strictly one at a time.
func OpenDB(t testing.TB) *gorm.DB {
	t.Helper()

	path := filepath.Join(t.TempDir(), "ledger.db")
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, repositories.Migrate(db))
	return db
}

// NewRepository returns a LedgerRepository over a fresh database.
func NewRepository(t testing.TB) repositories.LedgerRepository {
	t.Helper()
	return repositories.NewLedgerRepository(OpenDB(t), 0)
}
