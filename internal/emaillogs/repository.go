package emaillogs

import (
	"context"
	"database/sql"
	"strconv"

	"github.com/google/uuid"

	"github.com/qwinhub/backend/internal/models"
	"github.com/qwinhub/backend/pkg/database"
)

// DefaultLimit caps List when no limit is given.
const DefaultLimit = 100

// Repository handles email_logs persistence.
type Repository struct {
	db *sql.DB
}

// NewRepository creates an email logs repository.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Create records a pending delivery and fills in ID, status and CreatedAt.
func (r *Repository) Create(ctx context.Context, el *models.EmailLog) error {
	if el.ID == uuid.Nil {
		el.ID = uuid.New()
	}
	el.Status = models.EmailLogStatusPending
	el.CreatedAt = database.Now()
	const q = `INSERT INTO email_logs (id, quiz_id, email_type, recipient_email, subject, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := r.db.ExecContext(ctx, q, el.ID, nullUUID(el.QuizID), string(el.EmailType), el.RecipientEmail, el.Subject, el.Status, database.Micros(el.CreatedAt))
	return err
}

// MarkSent flags a delivery as sent.
func (r *Repository) MarkSent(ctx context.Context, id uuid.UUID) error {
	const q = `UPDATE email_logs SET status = $1, sent_at = $2, error_message = NULL WHERE id = $3`
	_, err := r.db.ExecContext(ctx, q, models.EmailLogStatusSent, database.Micros(database.Now()), id)
	return err
}

// MarkFailed flags a delivery as failed with the given reason.
func (r *Repository) MarkFailed(ctx context.Context, id uuid.UUID, reason string) error {
	const q = `UPDATE email_logs SET status = $1, error_message = $2 WHERE id = $3`
	_, err := r.db.ExecContext(ctx, q, models.EmailLogStatusFailed, reason, id)
	return err
}

// List returns the most recent logs, newest first. A quizID narrows the list
// to one quiz.
func (r *Repository) List(ctx context.Context, quizID *uuid.UUID, limit int) ([]models.EmailLog, error) {
	if limit <= 0 || limit > DefaultLimit {
		limit = DefaultLimit
	}
	q := `SELECT id, quiz_id, email_type, recipient_email, subject, status, sent_at, error_message, created_at
		FROM email_logs`
	args := []interface{}{}
	if quizID != nil {
		q += ` WHERE quiz_id = $1`
		args = append(args, *quizID)
	}
	args = append(args, limit)
	q += ` ORDER BY created_at DESC, id DESC LIMIT $` + strconv.Itoa(len(args))

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := make([]models.EmailLog, 0)
	for rows.Next() {
		var (
			el        models.EmailLog
			quiz      uuid.NullUUID
			emailType string
			sentAt    sql.NullInt64
			errMsg    sql.NullString
			createdAt int64
		)
		if err := rows.Scan(&el.ID, &quiz, &emailType, &el.RecipientEmail, &el.Subject, &el.Status, &sentAt, &errMsg, &createdAt); err != nil {
			return nil, err
		}
		if quiz.Valid {
			id := quiz.UUID
			el.QuizID = &id
		}
		el.EmailType = models.DraftType(emailType)
		el.SentAt = database.NullMicros(sentAt)
		el.ErrorMessage = errMsg.String
		el.CreatedAt = database.FromMicros(createdAt)
		list = append(list, el)
	}
	return list, rows.Err()
}

func nullUUID(id *uuid.UUID) uuid.NullUUID {
	if id == nil {
		return uuid.NullUUID{}
	}
	return uuid.NullUUID{UUID: *id, Valid: true}
}

