package drafts

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qwinhub/backend/internal/models"
	"github.com/qwinhub/backend/pkg/database/dbtest"
	"github.com/qwinhub/backend/pkg/response"
)

func TestRepositoryUpsertByType(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(dbtest.NewSQLite(t))

	n, err := repo.CountTypes(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	first := &models.Draft{Type: models.DraftShare, Subject: "s1", Content: "c1"}
	require.NoError(t, repo.Upsert(ctx, first))
	second := &models.Draft{Type: models.DraftShare, Subject: "s2", Content: "c2"}
	require.NoError(t, repo.Upsert(ctx, second))
	assert.Equal(t, first.ID, second.ID)

	got, err := repo.Get(ctx, models.DraftShare)
	require.NoError(t, err)
	assert.Equal(t, "s2", got.Subject)

	require.NoError(t, repo.Upsert(ctx, &models.Draft{Type: models.DraftResult, Subject: "r", Content: "r"}))
	n, err = repo.CountTypes(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	_, err = repo.Get(ctx, models.DraftMonthly)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, repo.Delete(ctx, models.DraftShare))
	assert.ErrorIs(t, repo.Delete(ctx, models.DraftShare), ErrNotFound)
}

func newRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	h := NewHandler(NewRepository(dbtest.NewSQLite(t)), nil)
	r := gin.New()
	r.GET("/drafts", h.List)
	r.POST("/drafts", h.Save)
	r.DELETE("/drafts/:type", h.Delete)
	return r
}

func post(r *gin.Engine, body interface{}) (*httptest.ResponseRecorder, response.Body) {
	raw, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, "/drafts", bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	var out response.Body
	_ = json.Unmarshal(w.Body.Bytes(), &out)
	return w, out
}

func TestSaveRejectsUnknownPlaceholder(t *testing.T) {
	r := newRouter(t)
	w, body := post(r, SaveRequest{Type: "share", Subject: "New quiz", Content: "Hi {{TITLE}}, click {{LINK}}, enjoy {{BOGUS}}"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_PLACEHOLDER", body.Code)
	assert.Contains(t, body.Error, "BOGUS")
}

func TestSaveReturnsWarnings(t *testing.T) {
	r := newRouter(t)
	w, body := post(r, SaveRequest{Type: "SHARE", Subject: "{{TITLE}}", Content: "click {{LINK}}"})
	require.Equal(t, http.StatusOK, w.Code)

	data, _ := json.Marshal(body.Data)
	var saved SaveResponse
	require.NoError(t, json.Unmarshal(data, &saved))
	assert.Equal(t, []string{"OPTIONS", "DEADLINE"}, saved.Warnings)
	assert.Equal(t, models.DraftShare, saved.Draft.Type)
}

func TestSaveRejectsUnknownType(t *testing.T) {
	r := newRouter(t)
	w, body := post(r, SaveRequest{Type: "WEEKLY", Subject: "x", Content: "y"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "VALIDATION_ERROR", body.Code)
}

func TestListAndDelete(t *testing.T) {
	r := newRouter(t)
	_, _ = post(r, SaveRequest{Type: "RESULT", Subject: "Results", Content: "{{WINNER_NAME}}"})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/drafts", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"type":"MONTHLY"`)
	assert.Contains(t, w.Body.String(), `"WINNER_NAME"`)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/drafts/result", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/drafts/result", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}
