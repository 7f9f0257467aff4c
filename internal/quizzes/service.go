package quizzes

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"go.uber.org/zap"

	"github.com/qwinhub/backend/internal/models"
	"github.com/qwinhub/backend/internal/pagination"
	"github.com/qwinhub/backend/internal/templates"
	"github.com/qwinhub/backend/pkg/database"
)

// Quiz field limits.
const (
	MaxTitleLen = 200
	MinOptions  = 2
	MaxOptions  = 6
)

// DraftReader is the draft lookup the quiz workflow depends on.
type DraftReader interface {
	Get(ctx context.Context, t models.DraftType) (*models.Draft, error)
	CountTypes(ctx context.Context) (int, error)
}

// ResponseReader lists a quiz's responses.
type ResponseReader interface {
	ListByQuiz(ctx context.Context, quizID uuid.UUID) ([]models.Response, error)
}

// WinnerReader reads drawn winners. Lookups return nil when nothing has been
// drawn yet.
type WinnerReader interface {
	GetByQuiz(ctx context.Context, quizID uuid.UUID) (*models.Winner, error)
	GetMonthly(ctx context.Context, month time.Month, year int) (*models.MonthlyWinner, error)
	ListForMonth(ctx context.Context, month time.Month, year int) ([]models.Winner, error)
}

// Publisher fans activity events out to connected admins.
type Publisher interface {
	Publish(event string, payload interface{})
}

// Input is a full quiz definition as submitted by an admin.
type Input struct {
	Title         string
	Options       []string
	CorrectAnswer string
	Deadline      time.Time
}

// Patch holds the fields of an update; nil fields keep their current value.
type Patch struct {
	Title         *string
	Options       []string
	CorrectAnswer *string
	Deadline      *time.Time
}

// Rendered is a draft populated for a specific quiz.
type Rendered struct {
	Type    models.DraftType `json:"type"`
	Subject string           `json:"subject"`
	Content string           `json:"content"`
}

// Results is the admin view of a finished or running quiz.
type Results struct {
	Quiz           *models.Quiz      `json:"quiz"`
	TotalResponses int               `json:"total_responses"`
	CorrectCount   int               `json:"correct_count"`
	WrongCount     int               `json:"wrong_count"`
	Correct        []models.Response `json:"correct"`
	Wrong          []models.Response `json:"wrong"`
	Winner         *models.Winner    `json:"winner"`
}

// Service implements the admin quiz workflow on top of Repository.
type Service struct {
	repo      *Repository
	drafts    DraftReader
	responses ResponseReader
	winners   WinnerReader
	publisher Publisher
	baseURL   string
	logger    *zap.Logger
	now       func() time.Time
}

// NewService creates a quiz service. publisher may be nil.
func NewService(repo *Repository, drafts DraftReader, responses ResponseReader, winners WinnerReader, publisher Publisher, baseURL string, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		repo:      repo,
		drafts:    drafts,
		responses: responses,
		winners:   winners,
		publisher: publisher,
		baseURL:   baseURL,
		logger:    logger,
		now:       database.Now,
	}
}

// Create validates in, derives the slug and stores the quiz. It fails with
// ErrDraftsMissing until every draft type has been saved.
func (s *Service) Create(ctx context.Context, in Input) (*models.Quiz, *Rendered, error) {
	n, err := s.drafts.CountTypes(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("count drafts: %w", err)
	}
	if n < len(models.DraftTypes) {
		return nil, nil, ErrDraftsMissing
	}

	in, err = normalizeInput(in)
	if err != nil {
		return nil, nil, err
	}
	now := s.now()
	if !in.Deadline.After(now) {
		return nil, nil, invalid("deadline", "must be in the future")
	}

	q := &models.Quiz{
		ID:            uuid.New(),
		Slug:          Slugify(in.Title),
		Title:         in.Title,
		Options:       in.Options,
		CorrectAnswer: in.CorrectAnswer,
		Deadline:      in.Deadline.UTC().Truncate(time.Microsecond),
		CreatedAt:     now,
	}
	if err := s.repo.Create(ctx, q); err != nil {
		return nil, nil, err
	}
	s.logger.Info("quiz created", zap.String("quiz_id", q.ID.String()), zap.String("slug", q.Slug))
	s.publish("quiz_created", map[string]interface{}{"id": q.ID, "slug": q.Slug, "title": q.Title})

	share, err := s.Render(ctx, models.DraftShare, q)
	if err != nil {
		s.logger.Warn("share preview failed", zap.String("quiz_id", q.ID.String()), zap.Error(err))
		return q, nil, nil
	}
	return q, share, nil
}

// Update applies p to the quiz identified by slug. A title change regenerates the slug.
func (s *Service) Update(ctx context.Context, slugValue string, p Patch) (*models.Quiz, error) {
	q, err := s.repo.GetBySlug(ctx, slugValue)
	if err != nil {
		return nil, err
	}
	in := Input{Title: q.Title, Options: q.Options, CorrectAnswer: q.CorrectAnswer, Deadline: q.Deadline}
	if p.Title != nil {
		in.Title = *p.Title
	}
	if p.Options != nil {
		in.Options = p.Options
	}
	if p.CorrectAnswer != nil {
		in.CorrectAnswer = *p.CorrectAnswer
	}
	if p.Deadline != nil {
		if !p.Deadline.After(s.now()) {
			return nil, invalid("deadline", "must be in the future")
		}
		in.Deadline = p.Deadline.UTC().Truncate(time.Microsecond)
	}
	in, err = normalizeInput(in)
	if err != nil {
		return nil, err
	}

	if in.Title != q.Title {
		q.Slug = Slugify(in.Title)
	}
	q.Title, q.Options, q.CorrectAnswer, q.Deadline = in.Title, in.Options, in.CorrectAnswer, in.Deadline
	if err := s.repo.Update(ctx, q); err != nil {
		return nil, err
	}
	s.logger.Info("quiz updated", zap.String("quiz_id", q.ID.String()), zap.String("slug", q.Slug))
	return q, nil
}

// Delete removes the quiz identified by slug and everything attached to it.
func (s *Service) Delete(ctx context.Context, slugValue string) error {
	q, err := s.repo.GetBySlug(ctx, slugValue)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, q.ID); err != nil {
		return err
	}
	s.logger.Info("quiz deleted", zap.String("quiz_id", q.ID.String()))
	s.publish("quiz_deleted", map[string]interface{}{"id": q.ID, "slug": q.Slug})
	return nil
}

// Results splits the responses of a quiz into correct and wrong and attaches the winner.
func (s *Service) Results(ctx context.Context, slugValue string) (*Results, error) {
	q, err := s.repo.GetBySlug(ctx, slugValue)
	if err != nil {
		return nil, err
	}
	rs, err := s.responses.ListByQuiz(ctx, q.ID)
	if err != nil {
		return nil, fmt.Errorf("list responses: %w", err)
	}
	w, err := s.winners.GetByQuiz(ctx, q.ID)
	if err != nil {
		return nil, fmt.Errorf("get winner: %w", err)
	}
	res := &Results{Quiz: q, TotalResponses: len(rs), Correct: []models.Response{}, Wrong: []models.Response{}, Winner: w}
	for _, r := range rs {
		if r.IsCorrect {
			res.Correct = append(res.Correct, r)
		} else {
			res.Wrong = append(res.Wrong, r)
		}
	}
	res.CorrectCount, res.WrongCount = len(res.Correct), len(res.Wrong)
	return res, nil
}

// Render populates the draft of type t with data from q.
func (s *Service) Render(ctx context.Context, t models.DraftType, q *models.Quiz) (*Rendered, error) {
	d, err := s.drafts.Get(ctx, t)
	if err != nil {
		return nil, err
	}
	var values map[string]string
	switch t {
	case models.DraftShare:
		values = templates.ShareValues(q, s.baseURL)
	case models.DraftResult:
		rs, err := s.responses.ListByQuiz(ctx, q.ID)
		if err != nil {
			return nil, err
		}
		w, err := s.winners.GetByQuiz(ctx, q.ID)
		if err != nil {
			return nil, err
		}
		values = templates.ResultValues(q, rs, w)
	case models.DraftMonthly:
		dl := q.Deadline.UTC()
		ws, err := s.winners.ListForMonth(ctx, dl.Month(), dl.Year())
		if err != nil {
			return nil, err
		}
		mw, err := s.winners.GetMonthly(ctx, dl.Month(), dl.Year())
		if err != nil {
			return nil, err
		}
		values = templates.MonthlyValues(q, dl.Month(), dl.Year(), ws, mw)
	default:
		return nil, fmt.Errorf("unknown draft type %q", t)
	}
	return &Rendered{
		Type:    t,
		Subject: templates.Render(d.Subject, values),
		Content: templates.Render(d.Content, values),
	}, nil
}

// Page lists quizzes for the public listing.
func (s *Service) Page(ctx context.Context, req pagination.Request) (pagination.Page[models.Quiz], time.Time, error) {
	now := s.now()
	p, err := pagination.Paginate[models.Quiz](ctx, s.repo, req, now, s.logger)
	return p, now, err
}

// AdminPage lists quizzes with response counts and winners.
func (s *Service) AdminPage(ctx context.Context, req pagination.Request) (pagination.Page[models.QuizSummary], time.Time, error) {
	now := s.now()
	p, err := pagination.Paginate[models.QuizSummary](ctx, s.repo.Summaries(), req, now, s.logger)
	return p, now, err
}

func (s *Service) publish(event string, payload interface{}) {
	if s.publisher != nil {
		s.publisher.Publish(event, payload)
	}
}

// Slugify derives the URL slug for a title.
func Slugify(title string) string {
	if sl := slug.Make(title); sl != "" {
		return sl
	}
	return "quiz-" + strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

// normalizeInput trims every field and enforces the quiz shape rules except the deadline.
func normalizeInput(in Input) (Input, error) {
	in.Title = strings.TrimSpace(in.Title)
	if in.Title == "" {
		return in, invalid("title", "is required")
	}
	if utf8.RuneCountInString(in.Title) > MaxTitleLen {
		return in, invalid("title", "must be at most %d characters", MaxTitleLen)
	}

	if len(in.Options) < MinOptions || len(in.Options) > MaxOptions {
		return in, invalid("options", "must have between %d and %d entries", MinOptions, MaxOptions)
	}
	opts := make([]string, len(in.Options))
	seen := make(map[string]bool, len(in.Options))
	for i, o := range in.Options {
		o = strings.TrimSpace(o)
		if o == "" {
			return in, invalid("options", "option %d is empty", i+1)
		}
		key := strings.ToLower(o)
		if seen[key] {
			return in, invalid("options", "option %q is duplicated", o)
		}
		seen[key] = true
		opts[i] = o
	}
	in.Options = opts

	in.CorrectAnswer = strings.TrimSpace(in.CorrectAnswer)
	found := false
	for _, o := range opts {
		if o == in.CorrectAnswer {
			found = true
			break
		}
	}
	if !found {
		return in, invalid("correct_answer", "must be one of the options")
	}
	if in.Deadline.IsZero() {
		return in, invalid("deadline", "is required")
	}
	return in, nil
}
