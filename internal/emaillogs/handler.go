package emaillogs

import (
	"context"
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/qwinhub/backend/pkg/response"
)

// Handler handles email log HTTP endpoints.
type Handler struct {
	repo   *Repository
	logger *zap.Logger
}

// NewHandler creates an email logs handler.
func NewHandler(repo *Repository, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{repo: repo, logger: logger}
}

// List handles GET /admin/emails?quiz_id=&limit=. Newest first.
func (h *Handler) List(c *gin.Context) {
	var quizID *uuid.UUID
	if v := c.Query("quiz_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			response.BadRequest(c, "invalid quiz_id")
			return
		}
		quizID = &id
	}
	limit, _ := strconv.Atoi(c.Query("limit"))

	logs, err := h.repo.List(c.Request.Context(), quizID, limit)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			response.GatewayTimeout(c)
			return
		}
		h.logger.Error("list email logs", zap.Error(err))
		response.Internal(c, "failed to load email logs")
		return
	}
	response.OK(c, logs)
}
