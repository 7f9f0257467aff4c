// Package submissions accepts quiz answers and guarantees at most one per
// identity per quiz.
package submissions

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/qwinhub/backend/internal/models"
	"github.com/qwinhub/backend/internal/quizzes"
)

var (
	ErrQuizNotFound        = errors.New("quiz not found")
	ErrQuizExpired         = errors.New("this quiz has expired")
	ErrDuplicateSubmission = errors.New("you have already submitted a response for this quiz")
)

// Submission outcomes as recorded by a Recorder.
const (
	OutcomeAccepted  = "accepted"
	OutcomeDuplicate = "duplicate"
	OutcomeExpired   = "expired"
	OutcomeNotFound  = "not_found"
	OutcomeError     = "error"
)

// QuizFinder loads quizzes.
type QuizFinder interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Quiz, error)
	GetBySlug(ctx context.Context, slug string) (*models.Quiz, error)
}

// Store persists responses.
type Store interface {
	Create(ctx context.Context, r *models.Response) error
	FindByQuizAndPhone(ctx context.Context, quizID uuid.UUID, phone string) (*models.Response, error)
}

// Recorder counts submission outcomes.
type Recorder interface {
	SubmissionOutcome(outcome string)
}

// Publisher fans activity events out to connected admins.
type Publisher interface {
	Publish(event string, payload interface{})
}

// SubmitInput identifies the quiz by slug or ID. Identity must already be canonical.
type SubmitInput struct {
	QuizSlug string
	QuizID   uuid.UUID
	Name     string
	Identity string
	Answer   string
}

// Result is what the respondent learns after a successful submission.
type Result struct {
	ResponseID uuid.UUID `json:"response_id"`
	IsCorrect  bool      `json:"is_correct"`
}

// Guard validates and records submissions.
type Guard struct {
	quizzes   QuizFinder
	store     Store
	recorder  Recorder
	publisher Publisher
	logger    *zap.Logger
}

// NewGuard creates a submission guard. recorder and publisher may be nil.
func NewGuard(quizzes QuizFinder, store Store, recorder Recorder, publisher Publisher, logger *zap.Logger) *Guard {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Guard{quizzes: quizzes, store: store, recorder: recorder, publisher: publisher, logger: logger}
}

// Submit records one answer. Checks run in order: the quiz exists, it is still
// open at now, and the identity has not answered it yet. Any answer is stored;
// correctness is an exact match against the trimmed answer.
func (g *Guard) Submit(ctx context.Context, in SubmitInput, now time.Time) (Result, error) {
	res, err := g.submit(ctx, in, now)
	g.record(err)
	return res, err
}

func (g *Guard) submit(ctx context.Context, in SubmitInput, now time.Time) (Result, error) {
	q, err := g.findQuiz(ctx, in)
	if err != nil {
		return Result{}, err
	}
	if !now.Before(q.Deadline) {
		return Result{}, ErrQuizExpired
	}

	prior, err := g.store.FindByQuizAndPhone(ctx, q.ID, in.Identity)
	if err != nil {
		return Result{}, fmt.Errorf("lookup prior response: %w", err)
	}
	if prior != nil {
		return Result{}, ErrDuplicateSubmission
	}

	answer := strings.TrimSpace(in.Answer)
	resp := &models.Response{
		ID:          uuid.New(),
		QuizID:      q.ID,
		Name:        strings.TrimSpace(in.Name),
		Phone:       in.Identity,
		Answer:      answer,
		IsCorrect:   answer == q.CorrectAnswer,
		SubmittedAt: now.UTC().Truncate(time.Microsecond),
	}
	if err := g.store.Create(ctx, resp); err != nil {
		if errors.Is(err, ErrDuplicateSubmission) {
			return Result{}, err
		}
		return Result{}, fmt.Errorf("insert response: %w", err)
	}

	g.logger.Info("response recorded", zap.String("quiz_id", q.ID.String()), zap.String("response_id", resp.ID.String()))
	if g.publisher != nil {
		g.publisher.Publish("response_received", map[string]interface{}{
			"quiz_id": q.ID, "slug": q.Slug, "name": resp.Name, "is_correct": resp.IsCorrect,
		})
	}
	return Result{ResponseID: resp.ID, IsCorrect: resp.IsCorrect}, nil
}

func (g *Guard) findQuiz(ctx context.Context, in SubmitInput) (*models.Quiz, error) {
	var (
		q   *models.Quiz
		err error
	)
	if in.QuizID != uuid.Nil {
		q, err = g.quizzes.GetByID(ctx, in.QuizID)
	} else {
		q, err = g.quizzes.GetBySlug(ctx, in.QuizSlug)
	}
	if errors.Is(err, quizzes.ErrNotFound) {
		return nil, ErrQuizNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load quiz: %w", err)
	}
	return q, nil
}

func (g *Guard) record(err error) {
	if g.recorder == nil {
		return
	}
	outcome := OutcomeAccepted
	switch {
	case err == nil:
	case errors.Is(err, ErrDuplicateSubmission):
		outcome = OutcomeDuplicate
	case errors.Is(err, ErrQuizExpired):
		outcome = OutcomeExpired
	case errors.Is(err, ErrQuizNotFound):
		outcome = OutcomeNotFound
	default:
		outcome = OutcomeError
	}
	g.recorder.SubmissionOutcome(outcome)
}
