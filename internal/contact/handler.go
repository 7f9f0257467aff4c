// Package contact relays the public contact form to the support inbox.
package contact

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/qwinhub/backend/internal/models"
	"github.com/qwinhub/backend/pkg/queue"
	"github.com/qwinhub/backend/pkg/response"
)

// Email types recorded in the email log.
const (
	EmailContact      models.DraftType = "CONTACT"
	EmailConfirmation models.DraftType = "CONTACT_CONFIRMATION"
)

// Enqueuer schedules outbound email.
type Enqueuer interface {
	EnqueueEmail(ctx context.Context, payload queue.EmailPayload) error
}

// Request is the contact form body.
type Request struct {
	Name    string `json:"name" binding:"required,max=100"`
	Email   string `json:"email" binding:"required,email"`
	Subject string `json:"subject" binding:"required,max=200"`
	Message string `json:"message" binding:"required,max=5000"`
}

// Handler handles the contact endpoint.
type Handler struct {
	mailer  Enqueuer
	support string
	logger  *zap.Logger
}

// NewHandler creates a contact handler. mailer may be nil when Redis is not
// configured; support is the inbox that receives submissions.
func NewHandler(mailer Enqueuer, support string, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{mailer: mailer, support: strings.TrimSpace(support), logger: logger}
}

// Submit handles POST /contact. The message goes to the support inbox and
// the sender gets a confirmation.
func (h *Handler) Submit(c *gin.Context) {
	var req Request
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Fail(c, http.StatusBadRequest, "VALIDATION_ERROR", "invalid request: "+err.Error())
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	req.Subject = strings.TrimSpace(req.Subject)
	req.Message = strings.TrimSpace(req.Message)
	if req.Name == "" || req.Subject == "" || req.Message == "" {
		response.Fail(c, http.StatusBadRequest, "VALIDATION_ERROR", "name, subject and message are required")
		return
	}
	if h.mailer == nil || h.support == "" {
		response.ServiceUnavailable(c, "email delivery is not configured")
		return
	}

	ctx := c.Request.Context()
	err := h.mailer.EnqueueEmail(ctx, queue.EmailPayload{
		EmailType:      string(EmailContact),
		RecipientEmail: h.support,
		Subject:        "Contact Form: " + req.Subject,
		Body:           supportBody(req),
	})
	if err != nil {
		h.logger.Error("enqueue contact email failed", zap.Error(err))
		response.ServiceUnavailable(c, "failed to queue email")
		return
	}

	err = h.mailer.EnqueueEmail(ctx, queue.EmailPayload{
		EmailType:      string(EmailConfirmation),
		RecipientEmail: req.Email,
		Subject:        "Thank you for contacting QWinHub",
		Body:           confirmationBody(req),
	})
	if err != nil {
		h.logger.Warn("enqueue contact confirmation failed", zap.Error(err))
	}
	response.OKMessage(c, "message sent", nil)
}

func supportBody(r Request) string {
	return fmt.Sprintf("New contact form submission\n\nName: %s\nEmail: %s\nSubject: %s\n\nMessage:\n%s\n\nReply to: %s\n",
		r.Name, r.Email, r.Subject, r.Message, r.Email)
}

func confirmationBody(r Request) string {
	return fmt.Sprintf("Hi %s,\n\nWe have received your message and will get back to you as soon as possible.\n\nSubject: %s\nMessage: %s\n\nThe QWinHub Team\n",
		r.Name, r.Subject, r.Message)
}
