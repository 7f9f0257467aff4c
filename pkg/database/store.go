package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"

	"github.com/qwinhub/backend/config"
)

// Dialect names the SQL engine behind a Store.
type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite"
)

// Store is the process-wide persistence handle. It is built once in main and
// passed explicitly to every repository.
type Store struct {
	DB      *sql.DB
	Dialect Dialect
	pool    *pgxpool.Pool
}

// Open connects to the configured engine and applies migrations.
func Open(ctx context.Context, cfg config.DatabaseConfig, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	var s *Store
	switch Dialect(cfg.Driver) {
	case DialectPostgres:
		pool, err := NewPostgresPool(ctx, cfg, logger)
		if err != nil {
			return nil, err
		}
		s = &Store{DB: stdlib.OpenDBFromPool(pool), Dialect: DialectPostgres, pool: pool}
	case DialectSQLite:
		db, err := NewSQLite(ctx, cfg.SQLitePath, logger)
		if err != nil {
			return nil, err
		}
		s = &Store{DB: db, Dialect: DialectSQLite}
	default:
		return nil, fmt.Errorf("unsupported driver: %s", cfg.Driver)
	}

	if err := Migrate(ctx, s.DB, s.Dialect); err != nil {
		s.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// Close releases the database handle and, for Postgres, the underlying pool.
func (s *Store) Close() {
	_ = s.DB.Close()
	if s.pool != nil {
		s.pool.Close()
	}
}

// PoolStats reports connection usage for metrics.
func (s *Store) PoolStats() sql.DBStats {
	return s.DB.Stats()
}
