package submissions

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/qwinhub/backend/internal/identity"
	"github.com/qwinhub/backend/pkg/database"
	"github.com/qwinhub/backend/pkg/response"
)

// SubmitRequest is the body for POST /quizzes/:slug/responses.
type SubmitRequest struct {
	Name    string `json:"name" binding:"required,max=100,personname"`
	Country string `json:"country" binding:"required,len=2"`
	Phone   string `json:"phone" binding:"required,max=32"`
	Answer  string `json:"answer" binding:"required"`
}

// Handler handles the public submission endpoint.
type Handler struct {
	guard  *Guard
	logger *zap.Logger
}

// NewHandler creates a submissions handler.
func NewHandler(guard *Guard, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{guard: guard, logger: logger}
}

// Submit handles POST /quizzes/:slug/responses.
func (h *Handler) Submit(c *gin.Context) {
	var req SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Fail(c, http.StatusBadRequest, "VALIDATION_ERROR", "invalid request: "+err.Error())
		return
	}

	phone, err := identity.Normalize(req.Phone, req.Country)
	if err != nil {
		h.writeError(c, err)
		return
	}

	res, err := h.guard.Submit(c.Request.Context(), SubmitInput{
		QuizSlug: c.Param("slug"),
		Name:     req.Name,
		Identity: phone,
		Answer:   req.Answer,
	}, database.Now())
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, response.Body{Success: true, Message: "response recorded", Data: res})
}

func (h *Handler) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, identity.ErrContainsLetters):
		response.Fail(c, http.StatusBadRequest, "PHONE_CONTAINS_LETTERS", err.Error())
	case errors.Is(err, identity.ErrInvalidCharacters):
		response.Fail(c, http.StatusBadRequest, "PHONE_INVALID_CHARACTERS", err.Error())
	case errors.Is(err, identity.ErrInvalidForRegion):
		response.Fail(c, http.StatusBadRequest, "PHONE_INVALID_FOR_REGION", identity.ErrInvalidForRegion.Error())
	case errors.Is(err, identity.ErrInvalidCountry):
		response.Fail(c, http.StatusBadRequest, "PHONE_INVALID_COUNTRY", err.Error())
	case errors.Is(err, ErrQuizNotFound):
		response.NotFound(c, err.Error())
	case errors.Is(err, ErrQuizExpired):
		response.Fail(c, http.StatusBadRequest, "QUIZ_EXPIRED", err.Error())
	case errors.Is(err, ErrDuplicateSubmission):
		response.Conflict(c, "DUPLICATE_SUBMISSION", err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		response.GatewayTimeout(c)
	default:
		h.logger.Error("submission failed", zap.String("slug", c.Param("slug")), zap.Error(err))
		response.Internal(c, "failed to record response")
	}
}
