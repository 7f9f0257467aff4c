package quizzes

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qwinhub/backend/internal/drafts"
	"github.com/qwinhub/backend/internal/models"
	"github.com/qwinhub/backend/internal/winners"
	"github.com/qwinhub/backend/pkg/database"
	"github.com/qwinhub/backend/pkg/database/dbtest"
)

// sqlResponses reads and writes responses directly; the submissions package
// depends on this one and cannot be imported here.
type sqlResponses struct{ db *sql.DB }

func (r sqlResponses) Create(ctx context.Context, resp *models.Response) error {
	if resp.ID == uuid.Nil {
		resp.ID = uuid.New()
	}
	_, err := r.db.ExecContext(ctx, `INSERT INTO responses (id, quiz_id, name, phone, answer, is_correct, submitted_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		resp.ID, resp.QuizID, resp.Name, resp.Phone, resp.Answer, resp.IsCorrect, database.Micros(resp.SubmittedAt))
	return err
}

func (r sqlResponses) ListByQuiz(ctx context.Context, quizID uuid.UUID) ([]models.Response, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name, phone, answer, is_correct FROM responses
		WHERE quiz_id = $1 ORDER BY submitted_at, id`, quizID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []models.Response
	for rows.Next() {
		resp := models.Response{QuizID: quizID}
		if err := rows.Scan(&resp.ID, &resp.Name, &resp.Phone, &resp.Answer, &resp.IsCorrect); err != nil {
			return nil, err
		}
		out = append(out, resp)
	}
	return out, rows.Err()
}

type recordingPublisher struct{ events []string }

func (p *recordingPublisher) Publish(event string, _ interface{}) { p.events = append(p.events, event) }

type env struct {
	svc       *Service
	repo      *Repository
	drafts    *drafts.Repository
	winners   *winners.Repository
	responses sqlResponses
	pub       *recordingPublisher
}

func newEnv(t *testing.T, withDrafts bool) env {
	t.Helper()
	db := dbtest.NewSQLite(t)
	e := env{
		repo:      NewRepository(db),
		drafts:    drafts.NewRepository(db),
		winners:   winners.NewRepository(db),
		responses: sqlResponses{db},
		pub:       &recordingPublisher{},
	}
	if withDrafts {
		ctx := context.Background()
		require.NoError(t, e.drafts.Upsert(ctx, &models.Draft{Type: models.DraftShare, Subject: "New: {{TITLE}}", Content: "Pick {{OPTIONS}} at {{LINK}} before {{DEADLINE}}"}))
		require.NoError(t, e.drafts.Upsert(ctx, &models.Draft{Type: models.DraftResult, Subject: "Results", Content: "{{CORRECT_COUNT}}/{{TOTAL_RESPONSES}} won by {{WINNER_NAME}}"}))
		require.NoError(t, e.drafts.Upsert(ctx, &models.Draft{Type: models.DraftMonthly, Subject: "{{MONTH}} {{YEAR}}", Content: "{{MONTHLY_WINNER_NAME}}"}))
	}
	e.svc = NewService(e.repo, e.drafts, e.responses, e.winners, e.pub, "https://qwinhub.com", nil)
	e.svc.now = func() time.Time { return baseTime }
	return e
}

func validInput() Input {
	return Input{
		Title:         "  Capital of France?  ",
		Options:       []string{" Paris", "Lyon ", "Nice"},
		CorrectAnswer: "Paris ",
		Deadline:      baseTime.Add(24 * time.Hour),
	}
}

func TestCreate(t *testing.T) {
	e := newEnv(t, true)
	q, share, err := e.svc.Create(context.Background(), validInput())
	require.NoError(t, err)

	assert.Equal(t, "Capital of France?", q.Title)
	assert.Equal(t, "capital-of-france", q.Slug)
	assert.Equal(t, []string{"Paris", "Lyon", "Nice"}, q.Options)
	assert.Equal(t, "Paris", q.CorrectAnswer)
	assert.Equal(t, []string{"quiz_created"}, e.pub.events)

	require.NotNil(t, share)
	assert.Equal(t, "New: Capital of France?", share.Subject)
	assert.Contains(t, share.Content, "Pick Paris, Lyon, Nice at https://qwinhub.com/quiz/capital-of-france")

	_, _, err = e.svc.Create(context.Background(), validInput())
	assert.ErrorIs(t, err, ErrSlugConflict)
}

func TestCreateRequiresDrafts(t *testing.T) {
	e := newEnv(t, false)
	_, _, err := e.svc.Create(context.Background(), validInput())
	assert.ErrorIs(t, err, ErrDraftsMissing)
}

func TestCreateValidation(t *testing.T) {
	e := newEnv(t, true)
	tests := []struct {
		name  string
		mod   func(*Input)
		field string
	}{
		{"empty title", func(in *Input) { in.Title = "   " }, "title"},
		{"long title", func(in *Input) { in.Title = strings.Repeat("x", MaxTitleLen+1) }, "title"},
		{"one option", func(in *Input) { in.Options = []string{"Paris"}; in.CorrectAnswer = "Paris" }, "options"},
		{"seven options", func(in *Input) { in.Options = []string{"a", "b", "c", "d", "e", "f", "g"}; in.CorrectAnswer = "a" }, "options"},
		{"blank option", func(in *Input) { in.Options = []string{"Paris", " "} }, "options"},
		{"case-insensitive duplicate", func(in *Input) { in.Options = []string{"Paris", "PARIS"} }, "options"},
		{"answer not an option", func(in *Input) { in.CorrectAnswer = "Marseille" }, "correct_answer"},
		{"answer differs in case", func(in *Input) { in.CorrectAnswer = "paris" }, "correct_answer"},
		{"deadline in past", func(in *Input) { in.Deadline = baseTime.Add(-time.Second) }, "deadline"},
		{"deadline now", func(in *Input) { in.Deadline = baseTime }, "deadline"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := validInput()
			tt.mod(&in)
			_, _, err := e.svc.Create(context.Background(), in)
			var verr *ValidationError
			require.True(t, errors.As(err, &verr), "got %v", err)
			assert.Equal(t, tt.field, verr.Field)
		})
	}
}

func TestUpdate(t *testing.T) {
	e := newEnv(t, true)
	ctx := context.Background()
	q, _, err := e.svc.Create(ctx, validInput())
	require.NoError(t, err)

	other := validInput()
	other.Title = "Largest ocean"
	_, _, err = e.svc.Create(ctx, other)
	require.NoError(t, err)

	title := "Capital of Italy"
	answer := "Rome"
	updated, err := e.svc.Update(ctx, q.Slug, Patch{Title: &title, Options: []string{"Rome", "Milan"}, CorrectAnswer: &answer})
	require.NoError(t, err)
	assert.Equal(t, "capital-of-italy", updated.Slug)
	assert.Equal(t, q.ID, updated.ID)
	assert.True(t, q.Deadline.Equal(updated.Deadline))

	clash := "Largest Ocean"
	_, err = e.svc.Update(ctx, updated.Slug, Patch{Title: &clash})
	assert.ErrorIs(t, err, ErrSlugConflict)

	_, err = e.svc.Update(ctx, updated.Slug, Patch{Options: []string{"Milan", "Turin"}})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "correct_answer", verr.Field)

	past := baseTime.Add(-time.Hour)
	_, err = e.svc.Update(ctx, updated.Slug, Patch{Deadline: &past})
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "deadline", verr.Field)

	_, err = e.svc.Update(ctx, "missing", Patch{Title: &title})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteRemovesResponsesAndWinner(t *testing.T) {
	e := newEnv(t, true)
	ctx := context.Background()
	q, _, err := e.svc.Create(ctx, validInput())
	require.NoError(t, err)

	require.NoError(t, e.responses.Create(ctx, &models.Response{QuizID: q.ID, Name: "Ann", Phone: "+12015550123", Answer: "Paris", IsCorrect: true, SubmittedAt: baseTime}))
	require.NoError(t, e.winners.Create(ctx, &models.Winner{QuizID: q.ID, Name: "Ann", Phone: "+12015550123"}))

	require.NoError(t, e.svc.Delete(ctx, q.Slug))
	_, err = e.repo.GetByID(ctx, q.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	rs, err := e.responses.ListByQuiz(ctx, q.ID)
	require.NoError(t, err)
	assert.Empty(t, rs)
	w, err := e.winners.GetByQuiz(ctx, q.ID)
	require.NoError(t, err)
	assert.Nil(t, w)
	assert.Contains(t, e.pub.events, "quiz_deleted")
}

func TestResultsAndRender(t *testing.T) {
	e := newEnv(t, true)
	ctx := context.Background()
	q, _, err := e.svc.Create(ctx, validInput())
	require.NoError(t, err)

	for i, r := range []struct {
		name, answer string
	}{{"Ann", "Paris"}, {"Bob", "Lyon"}, {"Cid", "Paris"}} {
		require.NoError(t, e.responses.Create(ctx, &models.Response{
			ID: uuid.New(), QuizID: q.ID, Name: r.name, Phone: "+1201555012" + string(rune('0'+i)),
			Answer: r.answer, IsCorrect: r.answer == q.CorrectAnswer, SubmittedAt: baseTime.Add(time.Duration(i) * time.Second),
		}))
	}
	require.NoError(t, e.winners.Create(ctx, &models.Winner{QuizID: q.ID, Name: "Cid", Phone: "+12015550122"}))

	res, err := e.svc.Results(ctx, q.Slug)
	require.NoError(t, err)
	assert.Equal(t, 3, res.TotalResponses)
	assert.Equal(t, 2, res.CorrectCount)
	assert.Equal(t, 1, res.WrongCount)
	assert.Equal(t, "Bob", res.Wrong[0].Name)
	require.NotNil(t, res.Winner)

	out, err := e.svc.Render(ctx, models.DraftResult, q)
	require.NoError(t, err)
	assert.Equal(t, "2/3 won by Cid", out.Content)

	require.NoError(t, e.drafts.Delete(ctx, models.DraftMonthly))
	_, err = e.svc.Render(ctx, models.DraftMonthly, q)
	assert.ErrorIs(t, err, drafts.ErrNotFound)
}

func TestRenderMonthlyFromStoredWinners(t *testing.T) {
	e := newEnv(t, true)
	ctx := context.Background()
	require.NoError(t, e.drafts.Upsert(ctx, &models.Draft{
		Type:    models.DraftMonthly,
		Subject: "{{MONTH}} {{YEAR}}",
		Content: "{{MONTHLY_WINNER_NAME}} of {{TOTAL_WINNERS}}: {{WINNER_NAMES}}",
	}))

	var qs []*models.Quiz
	for i, name := range []string{"Ann", "Dee"} {
		deadline := baseTime.Add(time.Duration(i+1) * 24 * time.Hour)
		q := &models.Quiz{
			Slug: "april-" + strings.ToLower(name), Title: "April " + name,
			Options: []string{"Paris", "Lyon"}, CorrectAnswer: "Paris",
			Deadline: deadline, CreatedAt: baseTime,
		}
		require.NoError(t, e.repo.Create(ctx, q))
		require.NoError(t, e.winners.Create(ctx, &models.Winner{QuizID: q.ID, Name: name, Phone: "+1201555013" + string(rune('0'+i))}))
		qs = append(qs, q)
	}

	out, err := e.svc.Render(ctx, models.DraftMonthly, qs[0])
	require.NoError(t, err)
	assert.Equal(t, "April 2026", out.Subject)
	assert.Equal(t, " of 2: Ann, Dee", out.Content)

	require.NoError(t, e.winners.CreateMonthly(ctx, &models.MonthlyWinner{
		QuizID: qs[1].ID, Month: int(time.April), Year: 2026, Name: "Dee", Phone: "+12015550131",
	}))

	out, err = e.svc.Render(ctx, models.DraftMonthly, qs[0])
	require.NoError(t, err)
	assert.Equal(t, "Dee of 2: Ann, Dee", out.Content)
}

func TestSlugify(t *testing.T) {
	assert.Equal(t, "largest-ocean-on-earth", Slugify("  Largest ocean on Earth "))
	assert.True(t, strings.HasPrefix(Slugify("???"), "quiz-"))
}
