package drafts

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	"github.com/qwinhub/backend/internal/models"
	"github.com/qwinhub/backend/pkg/database"
)

var ErrNotFound = errors.New("draft not found")

// Repository handles draft persistence. There is at most one draft per type.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a drafts repository.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func scanDraft(row interface{ Scan(...interface{}) error }) (*models.Draft, error) {
	var (
		d         models.Draft
		updatedAt int64
	)
	if err := row.Scan(&d.ID, &d.Type, &d.Subject, &d.Content, &updatedAt); err != nil {
		return nil, err
	}
	d.UpdatedAt = database.FromMicros(updatedAt)
	return &d, nil
}

// List returns every saved draft ordered by type.
func (r *Repository) List(ctx context.Context) ([]models.Draft, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, type, subject, content, updated_at FROM drafts ORDER BY type`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := []models.Draft{}
	for rows.Next() {
		d, err := scanDraft(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *d)
	}
	return list, rows.Err()
}

// Get returns the draft of type t.
func (r *Repository) Get(ctx context.Context, t models.DraftType) (*models.Draft, error) {
	const q = `SELECT id, type, subject, content, updated_at FROM drafts WHERE type = $1`
	d, err := scanDraft(r.db.QueryRowContext(ctx, q, string(t)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return d, err
}

// Upsert saves the draft for d.Type, replacing any existing one.
func (r *Repository) Upsert(ctx context.Context, d *models.Draft) error {
	d.UpdatedAt = database.Now()
	const q = `INSERT INTO drafts (id, type, subject, content, updated_at) VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (type) DO UPDATE SET subject = EXCLUDED.subject, content = EXCLUDED.content, updated_at = EXCLUDED.updated_at
		RETURNING id`
	return r.db.QueryRowContext(ctx, q, uuid.New(), string(d.Type), d.Subject, d.Content, database.Micros(d.UpdatedAt)).Scan(&d.ID)
}

// Delete removes the draft of type t.
func (r *Repository) Delete(ctx context.Context, t models.DraftType) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM drafts WHERE type = $1`, string(t))
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// CountTypes returns how many distinct draft types are saved.
func (r *Repository) CountTypes(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(DISTINCT type) FROM drafts`).Scan(&n)
	return n, err
}
