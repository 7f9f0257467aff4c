package quizzes

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/qwinhub/backend/internal/models"
	"github.com/qwinhub/backend/internal/pagination"
	"github.com/qwinhub/backend/pkg/database"
)

const quizColumns = `q.id, q.slug, q.title, q.options_json, q.correct_answer, q.deadline, q.created_at, q.is_processed`

// Repository handles quiz persistence.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a quizzes repository.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanQuiz(row rowScanner, extra ...interface{}) (*models.Quiz, error) {
	var (
		q                   models.Quiz
		optionsJSON         string
		deadline, createdAt int64
	)
	dest := append([]interface{}{&q.ID, &q.Slug, &q.Title, &optionsJSON, &q.CorrectAnswer, &deadline, &createdAt, &q.IsProcessed}, extra...)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(optionsJSON), &q.Options); err != nil {
		return nil, fmt.Errorf("decode options of quiz %s: %w", q.ID, err)
	}
	q.Deadline = database.FromMicros(deadline)
	q.CreatedAt = database.FromMicros(createdAt)
	return &q, nil
}

// Create inserts q, assigning its ID and CreatedAt when unset.
func (r *Repository) Create(ctx context.Context, q *models.Quiz) error {
	if q.ID == uuid.Nil {
		q.ID = uuid.New()
	}
	if q.CreatedAt.IsZero() {
		q.CreatedAt = database.Now()
	}
	options, err := json.Marshal(q.Options)
	if err != nil {
		return err
	}
	const query = `INSERT INTO quizzes (id, slug, title, options_json, correct_answer, deadline, created_at, is_processed)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err = r.db.ExecContext(ctx, query, q.ID, q.Slug, q.Title, string(options), q.CorrectAnswer,
		database.Micros(q.Deadline), database.Micros(q.CreatedAt), q.IsProcessed)
	if database.IsUniqueViolation(err) {
		return ErrSlugConflict
	}
	return err
}

// GetByID returns a quiz by ID.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Quiz, error) {
	query := `SELECT ` + quizColumns + ` FROM quizzes q WHERE q.id = $1`
	q, err := scanQuiz(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return q, err
}

// GetBySlug returns a quiz by slug.
func (r *Repository) GetBySlug(ctx context.Context, slug string) (*models.Quiz, error) {
	query := `SELECT ` + quizColumns + ` FROM quizzes q WHERE q.slug = $1`
	q, err := scanQuiz(r.db.QueryRowContext(ctx, query, slug))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return q, err
}

// Update overwrites the editable fields of q.
func (r *Repository) Update(ctx context.Context, q *models.Quiz) error {
	options, err := json.Marshal(q.Options)
	if err != nil {
		return err
	}
	const query = `UPDATE quizzes SET slug = $1, title = $2, options_json = $3, correct_answer = $4, deadline = $5
		WHERE id = $6`
	res, err := r.db.ExecContext(ctx, query, q.Slug, q.Title, string(options), q.CorrectAnswer, database.Micros(q.Deadline), q.ID)
	if database.IsUniqueViolation(err) {
		return ErrSlugConflict
	}
	if err != nil {
		return err
	}
	return expectOne(res)
}

// Delete removes a quiz with its responses, winner and monthly winner in one transaction.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, stmt := range []string{
		`DELETE FROM responses WHERE quiz_id = $1`,
		`DELETE FROM winners WHERE quiz_id = $1`,
		`DELETE FROM monthly_winners WHERE quiz_id = $1`,
	} {
		if _, err := tx.ExecContext(ctx, stmt, id); err != nil {
			return err
		}
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM quizzes WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if err := expectOne(res); err != nil {
		return err
	}
	return tx.Commit()
}

// MarkProcessed flags a quiz as handled by the winner sweep.
func (r *Repository) MarkProcessed(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `UPDATE quizzes SET is_processed = $1 WHERE id = $2`, true, id)
	if err != nil {
		return err
	}
	return expectOne(res)
}

// ListExpiredUnprocessed returns quizzes past their deadline that the winner sweep has not handled, oldest deadline first.
func (r *Repository) ListExpiredUnprocessed(ctx context.Context, now time.Time, limit int) ([]models.Quiz, error) {
	query := `SELECT ` + quizColumns + ` FROM quizzes q WHERE q.deadline <= $1 AND q.is_processed = $2
		ORDER BY q.deadline ASC, q.id ASC LIMIT $3`
	rows, err := r.db.QueryContext(ctx, query, database.Micros(now), false, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []models.Quiz
	for rows.Next() {
		q, err := scanQuiz(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *q)
	}
	return out, rows.Err()
}

// CountUnprocessedBetween counts quizzes with a deadline in [from, to) that
// the winner sweep has not handled yet.
func (r *Repository) CountUnprocessedBetween(ctx context.Context, from, to time.Time) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM quizzes WHERE deadline >= $1 AND deadline < $2 AND is_processed = $3`,
		database.Micros(from), database.Micros(to), false,
	).Scan(&n)
	return n, err
}

// Count returns how many quizzes match f at now.
func (r *Repository) Count(ctx context.Context, f pagination.Filter, now time.Time) (int, error) {
	where, args := filterClause(f, now, 1)
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM quizzes q WHERE `+where, args...).Scan(&n)
	return n, err
}

// Slice returns a page of quizzes in listing order.
func (r *Repository) Slice(ctx context.Context, pq pagination.Query) ([]models.Quiz, error) {
	query, args := sliceQuery(`SELECT `+quizColumns+` FROM quizzes q`, pq)
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []models.Quiz
	for rows.Next() {
		q, err := scanQuiz(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *q)
	}
	return out, rows.Err()
}

// Summaries adapts the repository to a pagination source of admin rows carrying
// response counts and winners.
func (r *Repository) Summaries() pagination.Source[models.QuizSummary] {
	return summarySource{r}
}

type summarySource struct{ r *Repository }

func (s summarySource) Count(ctx context.Context, f pagination.Filter, now time.Time) (int, error) {
	return s.r.Count(ctx, f, now)
}

func (s summarySource) Slice(ctx context.Context, pq pagination.Query) ([]models.QuizSummary, error) {
	base := `SELECT ` + quizColumns + `,
		(SELECT COUNT(*) FROM responses rs WHERE rs.quiz_id = q.id),
		w.id, w.name, w.phone, w.selected_at
		FROM quizzes q LEFT JOIN winners w ON w.quiz_id = q.id`
	query, args := sliceQuery(base, pq)
	rows, err := s.r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []models.QuizSummary
	for rows.Next() {
		var (
			count      int
			winnerID   uuid.NullUUID
			name       sql.NullString
			phone      sql.NullString
			selectedAt sql.NullInt64
		)
		q, err := scanQuiz(rows, &count, &winnerID, &name, &phone, &selectedAt)
		if err != nil {
			return nil, err
		}
		sum := models.QuizSummary{Quiz: *q, ResponseCount: count}
		if winnerID.Valid {
			sum.Winner = &models.Winner{
				ID:         winnerID.UUID,
				QuizID:     q.ID,
				Name:       name.String,
				Phone:      phone.String,
				SelectedAt: database.FromMicros(selectedAt.Int64),
			}
		}
		out = append(out, sum)
	}
	return out, rows.Err()
}

// Stats is the admin dashboard summary.
type Stats struct {
	TotalQuizzes   int `json:"total_quizzes"`
	ActiveQuizzes  int `json:"active_quizzes"`
	ExpiredQuizzes int `json:"expired_quizzes"`
	TotalResponses int `json:"total_responses"`
	TotalWinners   int `json:"total_winners"`
}

// Stats counts quizzes by state, responses and winners.
func (r *Repository) Stats(ctx context.Context, now time.Time) (*Stats, error) {
	const query = `SELECT
		(SELECT COUNT(*) FROM quizzes),
		(SELECT COUNT(*) FROM quizzes WHERE deadline > $1),
		(SELECT COUNT(*) FROM responses),
		(SELECT COUNT(*) FROM winners)`
	var s Stats
	if err := r.db.QueryRowContext(ctx, query, database.Micros(now)).
		Scan(&s.TotalQuizzes, &s.ActiveQuizzes, &s.TotalResponses, &s.TotalWinners); err != nil {
		return nil, err
	}
	s.ExpiredQuizzes = s.TotalQuizzes - s.ActiveQuizzes
	return &s, nil
}

func filterClause(f pagination.Filter, now time.Time, argPos int) (string, []interface{}) {
	op := ">"
	if f == pagination.FilterExpired {
		op = "<="
	}
	return "q.deadline " + op + " $" + strconv.Itoa(argPos), []interface{}{database.Micros(now)}
}

// sliceQuery appends the lifecycle filter, keyset boundary, order and limit to base.
func sliceQuery(base string, pq pagination.Query) (string, []interface{}) {
	where, args := filterClause(pq.Filter, pq.Now, 1)
	conds := []string{where}
	if pq.After != nil {
		t := "$" + strconv.Itoa(len(args)+1)
		id := "$" + strconv.Itoa(len(args)+2)
		conds = append(conds, "(q.created_at < "+t+" OR (q.created_at = "+t+" AND q.id < "+id+"))")
		args = append(args, pq.After.T, pq.After.ID)
	}
	args = append(args, pq.Limit)
	query := base + " WHERE " + strings.Join(conds, " AND ") +
		" ORDER BY q.created_at DESC, q.id DESC LIMIT $" + strconv.Itoa(len(args))
	return query, args
}

func expectOne(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
