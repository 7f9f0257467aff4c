package submissions

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	"github.com/qwinhub/backend/internal/models"
	"github.com/qwinhub/backend/pkg/database"
)

// Repository handles response persistence.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a responses repository.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

const responseColumns = `id, quiz_id, name, phone, answer, is_correct, submitted_at`

func scanResponse(row interface{ Scan(...interface{}) error }) (*models.Response, error) {
	var (
		r           models.Response
		submittedAt int64
	)
	if err := row.Scan(&r.ID, &r.QuizID, &r.Name, &r.Phone, &r.Answer, &r.IsCorrect, &submittedAt); err != nil {
		return nil, err
	}
	r.SubmittedAt = database.FromMicros(submittedAt)
	return &r, nil
}

// Create inserts r. The (quiz_id, phone) unique index turns a second answer
// from the same identity into ErrDuplicateSubmission.
func (r *Repository) Create(ctx context.Context, resp *models.Response) error {
	if resp.ID == uuid.Nil {
		resp.ID = uuid.New()
	}
	const q = `INSERT INTO responses (` + responseColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := r.db.ExecContext(ctx, q, resp.ID, resp.QuizID, resp.Name, resp.Phone, resp.Answer, resp.IsCorrect, database.Micros(resp.SubmittedAt))
	if database.IsUniqueViolation(err) {
		return ErrDuplicateSubmission
	}
	return err
}

// FindByQuizAndPhone returns the identity's response to a quiz, or nil.
func (r *Repository) FindByQuizAndPhone(ctx context.Context, quizID uuid.UUID, phone string) (*models.Response, error) {
	const q = `SELECT ` + responseColumns + ` FROM responses WHERE quiz_id = $1 AND phone = $2`
	resp, err := scanResponse(r.db.QueryRowContext(ctx, q, quizID, phone))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return resp, err
}

// ListByQuiz returns a quiz's responses in submission order.
func (r *Repository) ListByQuiz(ctx context.Context, quizID uuid.UUID) ([]models.Response, error) {
	const q = `SELECT ` + responseColumns + ` FROM responses WHERE quiz_id = $1 ORDER BY submitted_at ASC, id ASC`
	rows, err := r.db.QueryContext(ctx, q, quizID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := []models.Response{}
	for rows.Next() {
		resp, err := scanResponse(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *resp)
	}
	return list, rows.Err()
}
