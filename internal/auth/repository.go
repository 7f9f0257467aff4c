package auth

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	"github.com/qwinhub/backend/internal/models"
	"github.com/qwinhub/backend/pkg/database"
)

var ErrAdminNotFound = errors.New("admin not found")

// Repository handles admin persistence.
type Repository struct {
	db *sql.DB
}

// NewRepository creates an auth repository.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// GetByEmail returns an admin by email.
func (r *Repository) GetByEmail(ctx context.Context, email string) (*models.Admin, error) {
	const q = `SELECT id, email, password_hash, created_at FROM admins WHERE email = $1`
	var (
		a         models.Admin
		createdAt int64
	)
	err := r.db.QueryRowContext(ctx, q, email).Scan(&a.ID, &a.Email, &a.Password, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrAdminNotFound
	}
	if err != nil {
		return nil, err
	}
	a.CreatedAt = database.FromMicros(createdAt)
	return &a, nil
}

// Upsert creates the admin or replaces its password hash.
func (r *Repository) Upsert(ctx context.Context, email, passwordHash string) (*models.Admin, error) {
	const q = `INSERT INTO admins (id, email, password_hash, created_at) VALUES ($1, $2, $3, $4)
		ON CONFLICT (email) DO UPDATE SET password_hash = EXCLUDED.password_hash`
	if _, err := r.db.ExecContext(ctx, q, uuid.New(), email, passwordHash, database.Micros(database.Now())); err != nil {
		return nil, err
	}
	return r.GetByEmail(ctx, email)
}
