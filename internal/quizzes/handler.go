package quizzes

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/qwinhub/backend/internal/drafts"
	"github.com/qwinhub/backend/internal/middleware"
	"github.com/qwinhub/backend/internal/models"
	"github.com/qwinhub/backend/internal/pagination"
	"github.com/qwinhub/backend/internal/visibility"
	"github.com/qwinhub/backend/pkg/queue"
	"github.com/qwinhub/backend/pkg/response"
)

// CreateRequest is the body for POST /admin/quizzes.
type CreateRequest struct {
	Title         string    `json:"title" binding:"required"`
	Options       []string  `json:"options" binding:"required"`
	CorrectAnswer string    `json:"correct_answer" binding:"required"`
	Deadline      time.Time `json:"deadline" binding:"required"`
}

// UpdateRequest is the body for PATCH /admin/quizzes/:slug.
type UpdateRequest struct {
	Title         *string    `json:"title"`
	Options       []string   `json:"options"`
	CorrectAnswer *string    `json:"correct_answer"`
	Deadline      *time.Time `json:"deadline"`
}

// ShareRequest is the optional body for POST /admin/quizzes/:slug/share.
type ShareRequest struct {
	Recipients []string `json:"recipients" binding:"omitempty,max=100,dive,email"`
}

// QuizDetail is the public view of one quiz.
type QuizDetail struct {
	visibility.ProjectedQuiz
	Winner *visibility.ProjectedWinner `json:"winner,omitempty"`
}

// AdminQuiz is one row of the admin listing.
type AdminQuiz struct {
	visibility.ProjectedQuiz
	ResponseCount int                         `json:"response_count"`
	Winner        *visibility.ProjectedWinner `json:"winner,omitempty"`
}

// Enqueuer schedules outbound email.
type Enqueuer interface {
	EnqueueEmail(ctx context.Context, payload queue.EmailPayload) error
}

// Handler handles quiz HTTP endpoints.
type Handler struct {
	svc     *Service
	repo    *Repository
	winners WinnerReader
	mailer  Enqueuer
	logger  *zap.Logger
}

// NewHandler creates a quizzes handler. mailer may be nil when Redis is not configured.
func NewHandler(svc *Service, repo *Repository, winners WinnerReader, mailer Enqueuer, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, repo: repo, winners: winners, mailer: mailer, logger: logger}
}

func pageRequest(c *gin.Context) pagination.Request {
	size, _ := strconv.Atoi(c.Query("pageSize"))
	return pagination.Request{
		Filter:   pagination.ParseFilter(c.Query("filter")),
		PageSize: size,
		Cursor:   c.Query("cursor"),
	}
}

// List handles GET /quizzes.
func (h *Handler) List(c *gin.Context) {
	page, now, err := h.svc.Page(c.Request.Context(), pageRequest(c))
	if err != nil {
		h.writeError(c, err, "failed to list quizzes")
		return
	}
	admin := middleware.IsAdmin(c)
	items := make([]visibility.ProjectedQuiz, 0, len(page.Items))
	for i := range page.Items {
		items = append(items, visibility.ProjectQuiz(&page.Items[i], admin, now))
	}
	response.OK(c, pagination.Page[visibility.ProjectedQuiz]{
		Items: items, NextCursor: page.NextCursor, HasMore: page.HasMore, Total: page.Total,
	})
}

// Get handles GET /quizzes/:slug.
func (h *Handler) Get(c *gin.Context) {
	ctx := c.Request.Context()
	q, err := h.repo.GetBySlug(ctx, c.Param("slug"))
	if err != nil {
		h.writeError(c, err, "failed to load quiz")
		return
	}
	w, err := h.winners.GetByQuiz(ctx, q.ID)
	if err != nil {
		h.writeError(c, err, "failed to load winner")
		return
	}
	now := h.svc.now()
	admin := middleware.IsAdmin(c)
	response.OK(c, QuizDetail{
		ProjectedQuiz: visibility.ProjectQuiz(q, admin, now),
		Winner:        visibility.ProjectWinner(w, admin, now, q.Deadline),
	})
}

// AdminList handles GET /admin/quizzes.
func (h *Handler) AdminList(c *gin.Context) {
	page, now, err := h.svc.AdminPage(c.Request.Context(), pageRequest(c))
	if err != nil {
		h.writeError(c, err, "failed to list quizzes")
		return
	}
	items := make([]AdminQuiz, 0, len(page.Items))
	for i := range page.Items {
		s := &page.Items[i]
		items = append(items, AdminQuiz{
			ProjectedQuiz: visibility.ProjectQuiz(&s.Quiz, true, now),
			ResponseCount: s.ResponseCount,
			Winner:        visibility.ProjectWinner(s.Winner, true, now, s.Deadline),
		})
	}
	response.OK(c, pagination.Page[AdminQuiz]{
		Items: items, NextCursor: page.NextCursor, HasMore: page.HasMore, Total: page.Total,
	})
}

// Create handles POST /admin/quizzes. The response carries the rendered SHARE draft.
func (h *Handler) Create(c *gin.Context) {
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Fail(c, http.StatusBadRequest, "VALIDATION_ERROR", "invalid request: "+err.Error())
		return
	}
	q, share, err := h.svc.Create(c.Request.Context(), Input{
		Title:         req.Title,
		Options:       req.Options,
		CorrectAnswer: req.CorrectAnswer,
		Deadline:      req.Deadline,
	})
	if err != nil {
		h.writeError(c, err, "failed to create quiz")
		return
	}
	response.Created(c, gin.H{"quiz": q, "share": share})
}

// AdminGet handles GET /admin/quizzes/:slug.
func (h *Handler) AdminGet(c *gin.Context) {
	ctx := c.Request.Context()
	q, err := h.repo.GetBySlug(ctx, c.Param("slug"))
	if err != nil {
		h.writeError(c, err, "failed to load quiz")
		return
	}
	w, err := h.winners.GetByQuiz(ctx, q.ID)
	if err != nil {
		h.writeError(c, err, "failed to load winner")
		return
	}
	now := h.svc.now()
	response.OK(c, QuizDetail{
		ProjectedQuiz: visibility.ProjectQuiz(q, true, now),
		Winner:        visibility.ProjectWinner(w, true, now, q.Deadline),
	})
}

// Update handles PATCH /admin/quizzes/:slug.
func (h *Handler) Update(c *gin.Context) {
	var req UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Fail(c, http.StatusBadRequest, "VALIDATION_ERROR", "invalid request: "+err.Error())
		return
	}
	q, err := h.svc.Update(c.Request.Context(), c.Param("slug"), Patch{
		Title:         req.Title,
		Options:       req.Options,
		CorrectAnswer: req.CorrectAnswer,
		Deadline:      req.Deadline,
	})
	if err != nil {
		h.writeError(c, err, "failed to update quiz")
		return
	}
	response.OK(c, q)
}

// Delete handles DELETE /admin/quizzes/:slug.
func (h *Handler) Delete(c *gin.Context) {
	if err := h.svc.Delete(c.Request.Context(), c.Param("slug")); err != nil {
		h.writeError(c, err, "failed to delete quiz")
		return
	}
	response.OKMessage(c, "quiz deleted", nil)
}

// Results handles GET /admin/quizzes/:slug/results.
func (h *Handler) Results(c *gin.Context) {
	res, err := h.svc.Results(c.Request.Context(), c.Param("slug"))
	if err != nil {
		h.writeError(c, err, "failed to load results")
		return
	}
	response.OK(c, res)
}

// Stats handles GET /admin/stats.
func (h *Handler) Stats(c *gin.Context) {
	s, err := h.repo.Stats(c.Request.Context(), h.svc.now())
	if err != nil {
		h.writeError(c, err, "failed to load stats")
		return
	}
	response.OK(c, s)
}

// Share handles POST /admin/quizzes/:slug/share. It renders the SHARE draft and
// queues one email per recipient, if any were given.
func (h *Handler) Share(c *gin.Context) {
	var req ShareRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Fail(c, http.StatusBadRequest, "VALIDATION_ERROR", "invalid request: "+err.Error())
			return
		}
	}
	ctx := c.Request.Context()
	q, err := h.repo.GetBySlug(ctx, c.Param("slug"))
	if err != nil {
		h.writeError(c, err, "failed to load quiz")
		return
	}
	share, err := h.svc.Render(ctx, models.DraftShare, q)
	if err != nil {
		h.writeError(c, err, "failed to render share draft")
		return
	}
	if len(req.Recipients) > 0 && h.mailer == nil {
		response.ServiceUnavailable(c, "email delivery is not configured")
		return
	}
	queued := 0
	for _, to := range req.Recipients {
		err := h.mailer.EnqueueEmail(ctx, queue.EmailPayload{
			EmailType:      string(models.DraftShare),
			QuizID:         &q.ID,
			RecipientEmail: to,
			Subject:        share.Subject,
			Body:           share.Content,
		})
		if err != nil {
			h.logger.Error("enqueue share email failed", zap.String("quiz_id", q.ID.String()), zap.Error(err))
			response.ServiceUnavailable(c, "failed to queue email")
			return
		}
		queued++
	}
	response.OK(c, gin.H{"share": share, "queued": queued})
}

// PreviewDraft handles GET /admin/drafts/:type/preview?quiz=slug.
func (h *Handler) PreviewDraft(c *gin.Context) {
	t, err := models.ParseDraftType(c.Param("type"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}
	slug := c.Query("quiz")
	if slug == "" {
		response.Fail(c, http.StatusBadRequest, "VALIDATION_ERROR", "quiz query parameter is required")
		return
	}
	ctx := c.Request.Context()
	q, err := h.repo.GetBySlug(ctx, slug)
	if err != nil {
		h.writeError(c, err, "failed to load quiz")
		return
	}
	out, err := h.svc.Render(ctx, t, q)
	if err != nil {
		h.writeError(c, err, "failed to render preview")
		return
	}
	response.OK(c, out)
}

func (h *Handler) writeError(c *gin.Context, err error, msg string) {
	var verr *ValidationError
	switch {
	case errors.As(err, &verr):
		response.Fail(c, http.StatusBadRequest, "VALIDATION_ERROR", verr.Error())
	case errors.Is(err, ErrNotFound):
		response.NotFound(c, err.Error())
	case errors.Is(err, drafts.ErrNotFound):
		response.NotFound(c, err.Error())
	case errors.Is(err, ErrSlugConflict):
		response.Conflict(c, "SLUG_CONFLICT", err.Error())
	case errors.Is(err, ErrDraftsMissing):
		response.Fail(c, http.StatusBadRequest, "DRAFTS_MISSING", err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		response.GatewayTimeout(c)
	default:
		h.logger.Error(msg, zap.String("path", c.FullPath()), zap.Error(err))
		response.Internal(c, msg)
	}
}
