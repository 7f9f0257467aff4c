package quizzes

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qwinhub/backend/internal/auth"
	"github.com/qwinhub/backend/internal/middleware"
	"github.com/qwinhub/backend/internal/models"
	"github.com/qwinhub/backend/pkg/queue"
	"github.com/qwinhub/backend/pkg/response"
)

type fakeMailer struct{ sent []queue.EmailPayload }

func (m *fakeMailer) EnqueueEmail(_ context.Context, p queue.EmailPayload) error {
	m.sent = append(m.sent, p)
	return nil
}

type server struct {
	env    env
	router *gin.Engine
	token  string
	mailer *fakeMailer
}

func newServer(t *testing.T, withDrafts bool) *server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	e := newEnv(t, withDrafts)
	jwtSvc := auth.NewJWTService("secret", 1)
	token, err := jwtSvc.Generate(uuid.New(), "admin@example.com")
	require.NoError(t, err)

	mailer := &fakeMailer{}
	h := NewHandler(e.svc, e.repo, e.winners, mailer, nil)
	r := gin.New()
	pub := r.Group("", middleware.DetectAdmin(jwtSvc))
	pub.GET("/quizzes", h.List)
	pub.GET("/quizzes/:slug", h.Get)
	admin := r.Group("/admin", middleware.RequireAdmin(jwtSvc))
	admin.GET("/stats", h.Stats)
	admin.GET("/quizzes", h.AdminList)
	admin.POST("/quizzes", h.Create)
	admin.PATCH("/quizzes/:slug", h.Update)
	admin.DELETE("/quizzes/:slug", h.Delete)
	admin.GET("/quizzes/:slug/results", h.Results)
	admin.POST("/quizzes/:slug/share", h.Share)
	admin.GET("/drafts/:type/preview", h.PreviewDraft)
	return &server{env: e, router: r, token: token, mailer: mailer}
}

func (s *server) do(method, path string, body interface{}, asAdmin bool) (int, response.Body) {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if asAdmin {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	var out response.Body
	_ = json.Unmarshal(w.Body.Bytes(), &out)
	return w.Code, out
}

func decode(t *testing.T, data interface{}, v interface{}) {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, v))
}

func createBody() CreateRequest {
	return CreateRequest{
		Title:         "Capital of France",
		Options:       []string{"Paris", "Lyon"},
		CorrectAnswer: "Paris",
		Deadline:      baseTime.Add(time.Hour),
	}
}

func TestHandlerCreateRequiresAdminAndDrafts(t *testing.T) {
	s := newServer(t, false)
	code, _ := s.do(http.MethodPost, "/admin/quizzes", createBody(), false)
	assert.Equal(t, http.StatusUnauthorized, code)

	code, body := s.do(http.MethodPost, "/admin/quizzes", createBody(), true)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "DRAFTS_MISSING", body.Code)
}

func TestHandlerCreateAndConflict(t *testing.T) {
	s := newServer(t, true)
	code, body := s.do(http.MethodPost, "/admin/quizzes", createBody(), true)
	require.Equal(t, http.StatusCreated, code)
	var created struct {
		Quiz  models.Quiz `json:"quiz"`
		Share *Rendered   `json:"share"`
	}
	decode(t, body.Data, &created)
	assert.Equal(t, "capital-of-france", created.Quiz.Slug)
	require.NotNil(t, created.Share)
	assert.Contains(t, created.Share.Content, "https://qwinhub.com/quiz/capital-of-france")

	code, body = s.do(http.MethodPost, "/admin/quizzes", createBody(), true)
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "SLUG_CONFLICT", body.Code)

	bad := createBody()
	bad.Title = "Other"
	bad.Options = []string{"Paris", "paris"}
	code, body = s.do(http.MethodPost, "/admin/quizzes", bad, true)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "VALIDATION_ERROR", body.Code)
}

func TestHandlerPublicProjection(t *testing.T) {
	s := newServer(t, true)
	code, _ := s.do(http.MethodPost, "/admin/quizzes", createBody(), true)
	require.Equal(t, http.StatusCreated, code)

	var detail map[string]interface{}

	// still open: the answer is hidden from the public and shown to admins
	code, body := s.do(http.MethodGet, "/quizzes/capital-of-france", nil, false)
	require.Equal(t, http.StatusOK, code)
	decode(t, body.Data, &detail)
	assert.Nil(t, detail["correct_answer"])
	assert.Equal(t, "active", detail["status"])

	_, body = s.do(http.MethodGet, "/quizzes/capital-of-france", nil, true)
	decode(t, body.Data, &detail)
	assert.Equal(t, "Paris", detail["correct_answer"])

	// after the deadline the answer and a masked winner are public
	q, err := s.env.repo.GetBySlug(context.Background(), "capital-of-france")
	require.NoError(t, err)
	require.NoError(t, s.env.winners.Create(context.Background(), &models.Winner{QuizID: q.ID, Name: "Ann", Phone: "+14155550123"}))
	s.env.svc.now = func() time.Time { return q.Deadline.Add(time.Second) }

	_, body = s.do(http.MethodGet, "/quizzes/capital-of-france", nil, false)
	detail = nil
	decode(t, body.Data, &detail)
	assert.Equal(t, "Paris", detail["correct_answer"])
	winner := detail["winner"].(map[string]interface{})
	assert.Equal(t, "+1 415****123", winner["phone"])

	code, _ = s.do(http.MethodGet, "/quizzes/nope", nil, false)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestHandlerListing(t *testing.T) {
	s := newServer(t, true)
	for _, title := range []string{"One", "Two", "Three"} {
		b := createBody()
		b.Title = title
		code, _ := s.do(http.MethodPost, "/admin/quizzes", b, true)
		require.Equal(t, http.StatusCreated, code)
		s.env.svc.now = func(prev func() time.Time) func() time.Time {
			return func() time.Time { return prev().Add(time.Second) }
		}(s.env.svc.now)
	}

	code, body := s.do(http.MethodGet, "/quizzes?pageSize=2", nil, false)
	require.Equal(t, http.StatusOK, code)
	var page struct {
		Items      []map[string]interface{} `json:"items"`
		NextCursor string                   `json:"next_cursor"`
		HasMore    bool                     `json:"has_more"`
		Total      int                      `json:"total"`
	}
	decode(t, body.Data, &page)
	assert.Len(t, page.Items, 2)
	assert.True(t, page.HasMore)
	assert.Equal(t, 3, page.Total)
	assert.Equal(t, "Three", page.Items[0]["title"])
	assert.Nil(t, page.Items[0]["correct_answer"])

	_, body = s.do(http.MethodGet, "/quizzes?pageSize=2&cursor="+page.NextCursor, nil, false)
	decode(t, body.Data, &page)
	assert.Len(t, page.Items, 1)
	assert.Equal(t, "One", page.Items[0]["title"])

	_, body = s.do(http.MethodGet, "/quizzes?filter=expired", nil, false)
	decode(t, body.Data, &page)
	assert.Empty(t, page.Items)
	assert.Zero(t, page.Total)

	_, body = s.do(http.MethodGet, "/admin/quizzes?pageSize=5", nil, true)
	decode(t, body.Data, &page)
	assert.Len(t, page.Items, 3)
	assert.Equal(t, "Paris", page.Items[0]["correct_answer"])
	assert.EqualValues(t, 0, page.Items[0]["response_count"])

	code, body = s.do(http.MethodGet, "/admin/stats", nil, true)
	require.Equal(t, http.StatusOK, code)
	var stats Stats
	decode(t, body.Data, &stats)
	assert.Equal(t, 3, stats.ActiveQuizzes)
}

func TestHandlerShareUpdateDelete(t *testing.T) {
	s := newServer(t, true)
	code, _ := s.do(http.MethodPost, "/admin/quizzes", createBody(), true)
	require.Equal(t, http.StatusCreated, code)

	code, body := s.do(http.MethodPost, "/admin/quizzes/capital-of-france/share", ShareRequest{Recipients: []string{"a@example.com", "b@example.com"}}, true)
	require.Equal(t, http.StatusOK, code)
	require.Len(t, s.mailer.sent, 2)
	assert.Equal(t, "SHARE", s.mailer.sent[0].EmailType)
	assert.Equal(t, "New: Capital of France", s.mailer.sent[0].Subject)
	assert.NotNil(t, body.Data)

	code, body = s.do(http.MethodGet, "/admin/drafts/result/preview?quiz=capital-of-france", nil, true)
	require.Equal(t, http.StatusOK, code)
	var rendered Rendered
	decode(t, body.Data, &rendered)
	assert.Equal(t, "0/0 won by ", rendered.Content)

	title := "Capital of Spain"
	code, _ = s.do(http.MethodPatch, "/admin/quizzes/capital-of-france", UpdateRequest{Title: &title}, true)
	require.Equal(t, http.StatusOK, code)

	code, _ = s.do(http.MethodGet, "/admin/quizzes/capital-of-spain/results", nil, true)
	assert.Equal(t, http.StatusOK, code)

	code, _ = s.do(http.MethodDelete, "/admin/quizzes/capital-of-spain", nil, true)
	assert.Equal(t, http.StatusOK, code)
	code, _ = s.do(http.MethodDelete, "/admin/quizzes/capital-of-spain", nil, true)
	assert.Equal(t, http.StatusNotFound, code)
}
