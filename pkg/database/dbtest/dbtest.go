// Package dbtest opens throwaway SQLite stores for package tests.
package dbtest

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/qwinhub/backend/pkg/database"
)

// NewSQLite returns a migrated SQLite database in a temp dir, closed on cleanup.
func NewSQLite(t testing.TB) *sql.DB {
	t.Helper()
	ctx := context.Background()
	db, err := database.NewSQLite(ctx, filepath.Join(t.TempDir(), "qwinhub_test.db"), zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, database.Migrate(ctx, db, database.DialectSQLite))
	t.Cleanup(func() { _ = db.Close() })
	return db
}
