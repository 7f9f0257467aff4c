package drafts

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/qwinhub/backend/internal/models"
	"github.com/qwinhub/backend/internal/templates"
	"github.com/qwinhub/backend/pkg/response"
)

// SaveRequest is the body for POST /admin/drafts.
type SaveRequest struct {
	Type    string `json:"type" binding:"required"`
	Subject string `json:"subject" binding:"required,max=300"`
	Content string `json:"content" binding:"required"`
}

// SaveResponse carries the saved draft and the placeholders it does not use.
type SaveResponse struct {
	Draft    *models.Draft `json:"draft"`
	Warnings []string      `json:"warnings"`
}

// Handler handles draft HTTP endpoints.
type Handler struct {
	repo   *Repository
	logger *zap.Logger
}

// NewHandler creates a drafts handler.
func NewHandler(repo *Repository, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{repo: repo, logger: logger}
}

// List handles GET /admin/drafts. Every type is listed with its vocabulary,
// with a nil draft when none is saved yet.
func (h *Handler) List(c *gin.Context) {
	saved, err := h.repo.List(c.Request.Context())
	if err != nil {
		h.logger.Error("list drafts failed", zap.Error(err))
		response.Internal(c, "failed to list drafts")
		return
	}
	byType := make(map[models.DraftType]*models.Draft, len(saved))
	for i := range saved {
		byType[saved[i].Type] = &saved[i]
	}
	type entry struct {
		Type         models.DraftType `json:"type"`
		Placeholders []string         `json:"placeholders"`
		Draft        *models.Draft    `json:"draft"`
	}
	out := make([]entry, 0, len(models.DraftTypes))
	for _, t := range models.DraftTypes {
		out = append(out, entry{Type: t, Placeholders: templates.Placeholders(t), Draft: byType[t]})
	}
	response.OK(c, out)
}

// Save handles POST /admin/drafts. Unknown placeholders reject the save;
// unused ones come back as warnings.
func (h *Handler) Save(c *gin.Context) {
	var req SaveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	t, err := models.ParseDraftType(req.Type)
	if err != nil {
		response.Fail(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}

	v := templates.Validate(t, req.Subject+"\n"+req.Content)
	if err := v.Err(); err != nil {
		response.Fail(c, http.StatusBadRequest, "INVALID_PLACEHOLDER", err.Error())
		return
	}

	d := &models.Draft{Type: t, Subject: req.Subject, Content: req.Content}
	if err := h.repo.Upsert(c.Request.Context(), d); err != nil {
		h.logger.Error("save draft failed", zap.String("type", string(t)), zap.Error(err))
		response.Internal(c, "failed to save draft")
		return
	}
	h.logger.Info("draft saved", zap.String("type", string(t)), zap.Strings("missing", v.Missing))
	response.OK(c, SaveResponse{Draft: d, Warnings: v.Missing})
}

// Delete handles DELETE /admin/drafts/:type.
func (h *Handler) Delete(c *gin.Context) {
	t, err := models.ParseDraftType(c.Param("type"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}
	if err := h.repo.Delete(c.Request.Context(), t); err != nil {
		if errors.Is(err, ErrNotFound) {
			response.NotFound(c, "draft not found")
			return
		}
		response.Internal(c, "failed to delete draft")
		return
	}
	response.OKMessage(c, "draft deleted", nil)
}
