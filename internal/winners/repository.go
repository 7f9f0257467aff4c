package winners

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/qwinhub/backend/internal/models"
	"github.com/qwinhub/backend/pkg/database"
)

// ErrAlreadySelected is returned when a quiz or month already has its winner.
var ErrAlreadySelected = errors.New("winner already selected")

// Repository handles winner and monthly winner persistence.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a winners repository.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// GetByQuiz returns the quiz's winner, or nil when none has been drawn.
func (r *Repository) GetByQuiz(ctx context.Context, quizID uuid.UUID) (*models.Winner, error) {
	const q = `SELECT id, quiz_id, name, phone, selected_at FROM winners WHERE quiz_id = $1`
	var (
		w          models.Winner
		selectedAt int64
	)
	err := r.db.QueryRowContext(ctx, q, quizID).Scan(&w.ID, &w.QuizID, &w.Name, &w.Phone, &selectedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	w.SelectedAt = database.FromMicros(selectedAt)
	return &w, nil
}

// Create stores w. A second winner for the same quiz yields ErrAlreadySelected.
func (r *Repository) Create(ctx context.Context, w *models.Winner) error {
	if w.ID == uuid.Nil {
		w.ID = uuid.New()
	}
	if w.SelectedAt.IsZero() {
		w.SelectedAt = database.Now()
	}
	const q = `INSERT INTO winners (id, quiz_id, name, phone, selected_at) VALUES ($1, $2, $3, $4, $5)`
	_, err := r.db.ExecContext(ctx, q, w.ID, w.QuizID, w.Name, w.Phone, database.Micros(w.SelectedAt))
	if database.IsUniqueViolation(err) {
		return ErrAlreadySelected
	}
	return err
}

// ListForMonth returns the winners of quizzes whose deadline fell in the given
// month (UTC), oldest deadline first.
func (r *Repository) ListForMonth(ctx context.Context, month time.Month, year int) ([]models.Winner, error) {
	start := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0)
	const q = `SELECT w.id, w.quiz_id, w.name, w.phone, w.selected_at
		FROM winners w JOIN quizzes q ON q.id = w.quiz_id
		WHERE q.deadline >= $1 AND q.deadline < $2
		ORDER BY q.deadline ASC, w.id ASC`
	rows, err := r.db.QueryContext(ctx, q, database.Micros(start), database.Micros(end))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.Winner
	for rows.Next() {
		var (
			w          models.Winner
			selectedAt int64
		)
		if err := rows.Scan(&w.ID, &w.QuizID, &w.Name, &w.Phone, &selectedAt); err != nil {
			return nil, err
		}
		w.SelectedAt = database.FromMicros(selectedAt)
		list = append(list, w)
	}
	return list, rows.Err()
}

// GetMonthly returns the monthly winner for (month, year), or nil.
func (r *Repository) GetMonthly(ctx context.Context, month time.Month, year int) (*models.MonthlyWinner, error) {
	const q = `SELECT id, quiz_id, month, year, name, phone, selected_at FROM monthly_winners WHERE month = $1 AND year = $2`
	var (
		m          models.MonthlyWinner
		selectedAt int64
	)
	err := r.db.QueryRowContext(ctx, q, int(month), year).Scan(&m.ID, &m.QuizID, &m.Month, &m.Year, &m.Name, &m.Phone, &selectedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	m.SelectedAt = database.FromMicros(selectedAt)
	return &m, nil
}

// CreateMonthly stores m. A second winner for the same month yields ErrAlreadySelected.
func (r *Repository) CreateMonthly(ctx context.Context, m *models.MonthlyWinner) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	if m.SelectedAt.IsZero() {
		m.SelectedAt = database.Now()
	}
	const q = `INSERT INTO monthly_winners (id, quiz_id, month, year, name, phone, selected_at) VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := r.db.ExecContext(ctx, q, m.ID, m.QuizID, m.Month, m.Year, m.Name, m.Phone, database.Micros(m.SelectedAt))
	if database.IsUniqueViolation(err) {
		return ErrAlreadySelected
	}
	return err
}
