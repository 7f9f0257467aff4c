package database_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qwinhub/backend/pkg/database"
	"github.com/qwinhub/backend/pkg/database/dbtest"
)

func TestMigrateIsIdempotent(t *testing.T) {
	db := dbtest.NewSQLite(t)
	require.NoError(t, database.Migrate(context.Background(), db, database.DialectSQLite))
}

func TestIsUniqueViolation(t *testing.T) {
	db := dbtest.NewSQLite(t)
	ctx := context.Background()

	const q = `INSERT INTO drafts (id, type, subject, content, updated_at) VALUES ($1, $2, $3, $4, $5)`
	_, err := db.ExecContext(ctx, q, "d1", "SHARE", "s", "c", 1)
	require.NoError(t, err)
	_, err = db.ExecContext(ctx, q, "d2", "SHARE", "s", "c", 1)
	require.Error(t, err)

	assert.True(t, database.IsUniqueViolation(err))
	assert.True(t, database.IsUniqueViolation(fmt.Errorf("wrapped: %w", err)))
	assert.True(t, database.IsUniqueViolation(&pgconn.PgError{Code: "23505"}))
	assert.False(t, database.IsUniqueViolation(&pgconn.PgError{Code: "23503"}))
	assert.False(t, database.IsUniqueViolation(errors.New("boom")))
	assert.False(t, database.IsUniqueViolation(nil))
}

func TestForeignKeysEnforced(t *testing.T) {
	db := dbtest.NewSQLite(t)
	_, err := db.ExecContext(context.Background(),
		`INSERT INTO responses (id, quiz_id, name, phone, answer, is_correct, submitted_at) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		"r1", "missing-quiz", "Ann", "+14155550123", "A", true, 1)
	assert.Error(t, err)
}

func TestMicrosRoundTrip(t *testing.T) {
	now := database.Now()
	assert.True(t, now.Equal(database.FromMicros(database.Micros(now))))
	assert.Equal(t, time.UTC, database.FromMicros(0).Location())
}
