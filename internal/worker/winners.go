package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/qwinhub/backend/internal/models"
	"github.com/qwinhub/backend/internal/quizzes"
	"github.com/qwinhub/backend/internal/templates"
	"github.com/qwinhub/backend/internal/winners"
	"github.com/qwinhub/backend/pkg/database"
	"github.com/qwinhub/backend/pkg/queue"
)

// SweepBatch bounds how many expired quizzes one sweep settles.
const SweepBatch = 50

// QuizStore is the quiz persistence the scheduler needs.
type QuizStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Quiz, error)
	ListExpiredUnprocessed(ctx context.Context, now time.Time, limit int) ([]models.Quiz, error)
	CountUnprocessedBetween(ctx context.Context, from, to time.Time) (int, error)
	MarkProcessed(ctx context.Context, id uuid.UUID) error
}

// WinnerStore is the winner persistence the scheduler needs.
type WinnerStore interface {
	Create(ctx context.Context, w *models.Winner) error
	ListForMonth(ctx context.Context, month time.Month, year int) ([]models.Winner, error)
	GetMonthly(ctx context.Context, month time.Month, year int) (*models.MonthlyWinner, error)
	CreateMonthly(ctx context.Context, m *models.MonthlyWinner) error
}

// ResponseLister lists a quiz's responses.
type ResponseLister interface {
	ListByQuiz(ctx context.Context, quizID uuid.UUID) ([]models.Response, error)
}

// Renderer populates a draft for a quiz.
type Renderer interface {
	Render(ctx context.Context, t models.DraftType, q *models.Quiz) (*quizzes.Rendered, error)
}

// DraftGetter loads a draft by type.
type DraftGetter interface {
	Get(ctx context.Context, t models.DraftType) (*models.Draft, error)
}

// Mailer queues an outbound email.
type Mailer interface {
	EnqueueEmail(ctx context.Context, payload queue.EmailPayload) error
}

// Publisher fans activity events out to connected admins.
type Publisher interface {
	Publish(event string, payload interface{})
}

// SchedulerDeps groups the collaborators of WinnerScheduler.
type SchedulerDeps struct {
	Quizzes   QuizStore
	Responses ResponseLister
	Winners   WinnerStore
	Renderer  Renderer
	Drafts    DraftGetter
	Mailer    Mailer    // nil disables notification emails
	Publisher Publisher // nil disables activity events
	Notify    []string
}

// WinnerScheduler draws quiz winners once deadlines pass and the monthly
// winner once a month closes.
type WinnerScheduler struct {
	deps     SchedulerDeps
	interval time.Duration
	logger   *zap.Logger
	now      func() time.Time
}

// NewWinnerScheduler creates a scheduler that sweeps every interval.
func NewWinnerScheduler(deps SchedulerDeps, interval time.Duration, logger *zap.Logger) *WinnerScheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if interval <= 0 {
		interval = time.Minute
	}
	return &WinnerScheduler{deps: deps, interval: interval, logger: logger, now: database.Now}
}

// Run sweeps immediately and then on every tick until ctx is done.
func (s *WinnerScheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		if err := s.Sweep(ctx); err != nil && ctx.Err() == nil {
			s.logger.Error("winner sweep failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			s.logger.Info("winner scheduler stopping")
			return
		case <-ticker.C:
		}
	}
}

// Sweep settles expired quizzes and then the previous month. The monthly draw
// waits until every quiz of that month has been settled.
func (s *WinnerScheduler) Sweep(ctx context.Context) error {
	now := s.now()
	expired, err := s.deps.Quizzes.ListExpiredUnprocessed(ctx, now, SweepBatch)
	if err != nil {
		return fmt.Errorf("list expired: %w", err)
	}
	for i := range expired {
		if err := s.settle(ctx, &expired[i]); err != nil {
			s.logger.Error("settle quiz", zap.String("quiz_id", expired[i].ID.String()), zap.Error(err))
		}
	}
	start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	prev := start.AddDate(0, -1, 0)
	pending, err := s.deps.Quizzes.CountUnprocessedBetween(ctx, prev, start)
	if err != nil {
		return fmt.Errorf("count unprocessed %d-%02d: %w", prev.Year(), prev.Month(), err)
	}
	if pending > 0 {
		s.logger.Info("monthly draw deferred", zap.Int("month", int(prev.Month())), zap.Int("year", prev.Year()), zap.Int("unprocessed", pending))
		return nil
	}
	if err := s.SelectMonthly(ctx, prev.Month(), prev.Year()); err != nil {
		return fmt.Errorf("monthly %d-%02d: %w", prev.Year(), prev.Month(), err)
	}
	return nil
}

// settle draws the winner of one expired quiz and marks it processed. A quiz
// without correct answers is marked processed with no winner.
func (s *WinnerScheduler) settle(ctx context.Context, q *models.Quiz) error {
	rs, err := s.deps.Responses.ListByQuiz(ctx, q.ID)
	if err != nil {
		return fmt.Errorf("list responses: %w", err)
	}
	pick, err := winners.PickCorrect(rs)
	switch {
	case errors.Is(err, winners.ErrNoCandidates):
		s.logger.Info("no correct answers, no winner", zap.String("quiz_id", q.ID.String()), zap.Int("responses", len(rs)))
		return s.deps.Quizzes.MarkProcessed(ctx, q.ID)
	case err != nil:
		return err
	}

	w := &models.Winner{QuizID: q.ID, Name: pick.Name, Phone: pick.Phone, SelectedAt: s.now()}
	createErr := s.deps.Winners.Create(ctx, w)
	if createErr != nil && !errors.Is(createErr, winners.ErrAlreadySelected) {
		return fmt.Errorf("create winner: %w", createErr)
	}
	if err := s.deps.Quizzes.MarkProcessed(ctx, q.ID); err != nil {
		return fmt.Errorf("mark processed: %w", err)
	}
	if createErr != nil {
		return nil
	}

	s.logger.Info("winner selected", zap.String("quiz_id", q.ID.String()), zap.String("winner_id", w.ID.String()))
	s.publish("winner_selected", map[string]interface{}{"quiz_id": q.ID, "slug": q.Slug, "name": w.Name, "phone": w.Phone})

	if s.deps.Mailer == nil || len(s.deps.Notify) == 0 {
		return nil
	}
	out, err := s.deps.Renderer.Render(ctx, models.DraftResult, q)
	if err != nil {
		s.logger.Warn("render result draft", zap.String("quiz_id", q.ID.String()), zap.Error(err))
		return nil
	}
	s.notify(ctx, models.DraftResult, &q.ID, out.Subject, out.Content)
	return nil
}

// SelectMonthly draws the monthly winner among the winners of quizzes whose
// deadline fell in month/year. It does nothing when the month is already
// settled or had no winners.
func (s *WinnerScheduler) SelectMonthly(ctx context.Context, month time.Month, year int) error {
	existing, err := s.deps.Winners.GetMonthly(ctx, month, year)
	if err != nil {
		return err
	}
	if existing != nil {
		return nil
	}
	ws, err := s.deps.Winners.ListForMonth(ctx, month, year)
	if err != nil {
		return err
	}
	i, err := winners.Pick(len(ws))
	if errors.Is(err, winners.ErrNoCandidates) {
		return nil
	}
	if err != nil {
		return err
	}

	m := &models.MonthlyWinner{QuizID: ws[i].QuizID, Month: int(month), Year: year, Name: ws[i].Name, Phone: ws[i].Phone, SelectedAt: s.now()}
	if err := s.deps.Winners.CreateMonthly(ctx, m); err != nil {
		if errors.Is(err, winners.ErrAlreadySelected) {
			return nil
		}
		return err
	}
	s.logger.Info("monthly winner selected", zap.Int("month", int(month)), zap.Int("year", year), zap.String("quiz_id", m.QuizID.String()))
	s.publish("monthly_winner_selected", map[string]interface{}{"month": int(month), "year": year, "quiz_id": m.QuizID, "name": m.Name, "phone": m.Phone})

	if s.deps.Mailer == nil || len(s.deps.Notify) == 0 {
		return nil
	}
	q, err := s.deps.Quizzes.GetByID(ctx, m.QuizID)
	if err != nil {
		s.logger.Warn("load monthly quiz", zap.Error(err))
		return nil
	}
	d, err := s.deps.Drafts.Get(ctx, models.DraftMonthly)
	if err != nil {
		s.logger.Warn("load monthly draft", zap.Error(err))
		return nil
	}
	values := templates.MonthlyValues(q, month, year, ws, m)
	s.notify(ctx, models.DraftMonthly, &q.ID, templates.Render(d.Subject, values), templates.Render(d.Content, values))
	return nil
}

func (s *WinnerScheduler) notify(ctx context.Context, t models.DraftType, quizID *uuid.UUID, subject, body string) {
	for _, to := range s.deps.Notify {
		err := s.deps.Mailer.EnqueueEmail(ctx, queue.EmailPayload{
			EmailType:      string(t),
			QuizID:         quizID,
			RecipientEmail: to,
			Subject:        subject,
			Body:           body,
		})
		if err != nil {
			s.logger.Error("enqueue notification", zap.String("type", string(t)), zap.String("to", to), zap.Error(err))
		}
	}
}

func (s *WinnerScheduler) publish(event string, payload interface{}) {
	if s.deps.Publisher != nil {
		s.deps.Publisher.Publish(event, payload)
	}
}
