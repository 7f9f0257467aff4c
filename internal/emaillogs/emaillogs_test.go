package emaillogs

import (
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

func TestRepositoryLifecycle(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(dbtest.NewSQLite(t))

	sent := &models.EmailLog{EmailType: models.DraftShare, RecipientEmail: "a@example.com", Subject: "New quiz"}
	require.NoError(t, repo.Create(ctx, sent))
	assert.Equal(t, models.EmailLogStatusPending, sent.Status)
	failed := &models.EmailLog{EmailType: models.DraftResult, RecipientEmail: "b@example.com", Subject: "Results"}
	require.NoError(t, repo.Create(ctx, failed))

	require.NoError(t, repo.MarkSent(ctx, sent.ID))
	require.NoError(t, repo.MarkFailed(ctx, failed.ID, "smtp: 550 mailbox unavailable"))

	logs, err := repo.List(ctx, nil, 0)
	require.NoError(t, err)
	require.Len(t, logs, 2)

	byID := map[string]models.EmailLog{}
	for _, l := range logs {
		byID[l.ID.String()] = l
	}
	got := byID[sent.ID.String()]
	assert.Equal(t, models.EmailLogStatusSent, got.Status)
	assert.NotNil(t, got.SentAt)
	assert.Nil(t, got.QuizID)
	assert.Equal(t, models.DraftShare, got.EmailType)

	got = byID[failed.ID.String()]
	assert.Equal(t, models.EmailLogStatusFailed, got.Status)
	assert.Nil(t, got.SentAt)
	assert.Equal(t, "smtp: 550 mailbox unavailable", got.ErrorMessage)

	logs, err = repo.List(ctx, nil, 1)
	require.NoError(t, err)
	assert.Len(t, logs, 1)
}

func TestHandlerList(t *testing.T) {
	gin.SetMode(gin.TestMode)
	repo := NewRepository(dbtest.NewSQLite(t))
	require.NoError(t, repo.Create(context.Background(), &models.EmailLog{EmailType: models.DraftMonthly, RecipientEmail: "a@example.com", Subject: "Monthly"}))

	r := gin.New()
	r.GET("/admin/emails", NewHandler(repo, nil).List)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/admin/emails", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Success bool              `json:"success"`
		Data    []models.EmailLog `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.True(t, body.Success)
	require.Len(t, body.Data, 1)
	assert.Equal(t, "Monthly", body.Data[0].Subject)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/admin/emails?quiz_id=nope", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	var fail response.Body
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &fail))
	assert.False(t, fail.Success)
}
