package exports

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/qwinhub/backend/internal/models"
	"github.com/qwinhub/backend/internal/quizzes"
	"github.com/qwinhub/backend/pkg/database"
	"github.com/qwinhub/backend/pkg/response"
	"github.com/qwinhub/backend/pkg/storage"
)

const contentType = "text/csv"

var header = []string{"name", "phone", "answer", "is_correct", "submitted_at"}

// ObjectStore is where exports are written.
type ObjectStore interface {
	Upload(ctx context.Context, key, contentType string, body io.Reader) error
	PresignGet(ctx context.Context, key string) (string, error)
	PresignExpire() time.Duration
}

// QuizFinder resolves a quiz by slug.
type QuizFinder interface {
	GetBySlug(ctx context.Context, slug string) (*models.Quiz, error)
}

// ResponseLister lists a quiz's responses.
type ResponseLister interface {
	ListByQuiz(ctx context.Context, quizID uuid.UUID) ([]models.Response, error)
}

// Export describes an uploaded CSV.
type Export struct {
	Key       string    `json:"key"`
	URL       string    `json:"url"`
	Rows      int       `json:"rows"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Handler writes quiz responses to object storage as CSV.
type Handler struct {
	quizzes   QuizFinder
	responses ResponseLister
	store     ObjectStore
	logger    *zap.Logger
	now       func() time.Time
}

// NewHandler creates an export handler. store may be nil when S3 is not configured.
func NewHandler(quizzes QuizFinder, responses ResponseLister, store ObjectStore, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{quizzes: quizzes, responses: responses, store: store, logger: logger, now: database.Now}
}

// WriteCSV writes responses as CSV with a header row.
func WriteCSV(w io.Writer, responses []models.Response) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, r := range responses {
		row := []string{r.Name, r.Phone, r.Answer, strconv.FormatBool(r.IsCorrect), r.SubmittedAt.UTC().Format(time.RFC3339)}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// Run exports the responses of the quiz with the given slug.
func (h *Handler) Run(ctx context.Context, slug string) (*Export, error) {
	q, err := h.quizzes.GetBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	rs, err := h.responses.ListByQuiz(ctx, q.ID)
	if err != nil {
		return nil, fmt.Errorf("list responses: %w", err)
	}
	var buf bytes.Buffer
	if err := WriteCSV(&buf, rs); err != nil {
		return nil, fmt.Errorf("write csv: %w", err)
	}

	now := h.now()
	key := storage.ExportKey(q.Slug, now)
	if err := h.store.Upload(ctx, key, contentType, &buf); err != nil {
		return nil, err
	}
	url, err := h.store.PresignGet(ctx, key)
	if err != nil {
		return nil, err
	}
	h.logger.Info("responses exported", zap.String("quiz_id", q.ID.String()), zap.String("key", key), zap.Int("rows", len(rs)))
	return &Export{Key: key, URL: url, Rows: len(rs), ExpiresAt: now.Add(h.store.PresignExpire())}, nil
}

// Export handles POST /admin/quizzes/:slug/export.
func (h *Handler) Export(c *gin.Context) {
	if h.store == nil {
		response.ServiceUnavailable(c, "object storage is not configured")
		return
	}
	out, err := h.Run(c.Request.Context(), c.Param("slug"))
	switch {
	case err == nil:
		response.OK(c, out)
	case errors.Is(err, quizzes.ErrNotFound):
		response.NotFound(c, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		response.GatewayTimeout(c)
	default:
		h.logger.Error("export responses", zap.String("slug", c.Param("slug")), zap.Error(err))
		response.Internal(c, "failed to export responses")
	}
}
