package exports

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qwinhub/backend/internal/models"
	"github.com/qwinhub/backend/internal/quizzes"
	"github.com/qwinhub/backend/internal/submissions"
	"github.com/qwinhub/backend/pkg/database"
	"github.com/qwinhub/backend/pkg/database/dbtest"
)

type memStore struct {
	objects map[string][]byte
	fail    error
}

func (m *memStore) Upload(_ context.Context, key, _ string, body io.Reader) error {
	if m.fail != nil {
		return m.fail
	}
	b, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	m.objects[key] = b
	return nil
}

func (m *memStore) PresignGet(_ context.Context, key string) (string, error) {
	return "https://exports.example.com/" + key + "?sig=1", nil
}

func (m *memStore) PresignExpire() time.Duration { return 15 * time.Minute }

func seed(t *testing.T) (*quizzes.Repository, *submissions.Repository) {
	t.Helper()
	ctx := context.Background()
	db := dbtest.NewSQLite(t)
	qr := quizzes.NewRepository(db)
	sr := submissions.NewRepository(db)
	q := &models.Quiz{
		Slug:          "largest-ocean",
		Title:         "Largest ocean",
		Options:       []string{"Pacific", "Atlantic"},
		CorrectAnswer: "Pacific",
		Deadline:      database.Now().Add(time.Hour),
	}
	require.NoError(t, qr.Create(ctx, q))
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, sr.Create(ctx, &models.Response{QuizID: q.ID, Name: "Ana", Phone: "+14155550123", Answer: "Pacific", IsCorrect: true, SubmittedAt: at}))
	require.NoError(t, sr.Create(ctx, &models.Response{QuizID: q.ID, Name: "Ben", Phone: "+442071838750", Answer: "Atlantic", SubmittedAt: at.Add(time.Minute)}))
	return qr, sr
}

func TestRunUploadsCSV(t *testing.T) {
	qr, sr := seed(t)
	store := &memStore{objects: map[string][]byte{}}
	h := NewHandler(qr, sr, store, nil)
	h.now = func() time.Time { return time.Unix(1700000000, 0).UTC() }

	out, err := h.Run(context.Background(), "largest-ocean")
	require.NoError(t, err)
	assert.Equal(t, "exports/largest-ocean/1700000000.csv", out.Key)
	assert.Equal(t, 2, out.Rows)
	assert.Contains(t, out.URL, out.Key)
	assert.Equal(t, time.Unix(1700000000, 0).UTC().Add(15*time.Minute), out.ExpiresAt)

	records, err := csv.NewReader(bytes.NewReader(store.objects[out.Key])).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, header, records[0])
	names := []string{records[1][0], records[2][0]}
	assert.ElementsMatch(t, []string{"Ana", "Ben"}, names)
}

func TestRunErrors(t *testing.T) {
	qr, sr := seed(t)
	h := NewHandler(qr, sr, &memStore{objects: map[string][]byte{}}, nil)
	_, err := h.Run(context.Background(), "missing")
	assert.ErrorIs(t, err, quizzes.ErrNotFound)

	boom := errors.New("s3 down")
	h = NewHandler(qr, sr, &memStore{fail: boom}, nil)
	_, err = h.Run(context.Background(), "largest-ocean")
	assert.ErrorIs(t, err, boom)
}

func TestExportHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	qr, sr := seed(t)

	cases := []struct {
		name  string
		store ObjectStore
		slug  string
		want  int
	}{
		{"not configured", nil, "largest-ocean", http.StatusServiceUnavailable},
		{"unknown quiz", &memStore{objects: map[string][]byte{}}, "missing", http.StatusNotFound},
		{"ok", &memStore{objects: map[string][]byte{}}, "largest-ocean", http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := gin.New()
			r.POST("/admin/quizzes/:slug/export", NewHandler(qr, sr, tc.store, nil).Export)
			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/admin/quizzes/"+tc.slug+"/export", nil))
			assert.Equal(t, tc.want, w.Code)
		})
	}
}
