package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/qwinhub/backend/pkg/response"
	"github.com/qwinhub/backend/pkg/utils"
)

// CookieName carries the admin token for browser clients.
const CookieName = "admin-token"

// LoginRequest is the body for POST /admin/auth/login.
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// TokenResponse is the login response.
type TokenResponse struct {
	Token string `json:"token"`
	Email string `json:"email"`
}

// Handler handles admin auth endpoints.
type Handler struct {
	repo         *Repository
	jwt          *JWTService
	secureCookie bool
	logger       *zap.Logger
}

// NewHandler creates an auth handler. secureCookie marks the session cookie HTTPS-only.
func NewHandler(repo *Repository, jwt *JWTService, secureCookie bool, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{repo: repo, jwt: jwt, secureCookie: secureCookie, logger: logger}
}

// Login handles POST /admin/auth/login.
func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	admin, err := h.repo.GetByEmail(c.Request.Context(), strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil {
		if !errors.Is(err, ErrAdminNotFound) {
			h.logger.Error("admin lookup failed", zap.Error(err))
		}
		response.Unauthorized(c, "invalid email or password")
		return
	}
	if !utils.CheckPassword(req.Password, admin.Password) {
		response.Unauthorized(c, "invalid email or password")
		return
	}

	token, err := h.jwt.Generate(admin.ID, admin.Email)
	if err != nil {
		response.Internal(c, "failed to generate token")
		return
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(CookieName, token, int(h.jwt.TTL().Seconds()), "/", "", h.secureCookie, true)
	response.OKMessage(c, "logged in", TokenResponse{Token: token, Email: admin.Email})
}

// Logout handles POST /admin/auth/logout.
func (h *Handler) Logout(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(CookieName, "", -1, "/", "", h.secureCookie, true)
	response.OKMessage(c, "logged out", nil)
}

// Check handles GET /admin/auth/check and reports whether the caller holds a valid token.
func (h *Handler) Check(c *gin.Context) {
	claims, err := h.jwt.Validate(TokenFromRequest(c))
	if err != nil {
		response.OK(c, gin.H{"authenticated": false})
		return
	}
	response.OK(c, gin.H{"authenticated": true, "email": claims.Email})
}

// TokenFromRequest reads the admin token from the Authorization header, the
// session cookie or, for websocket upgrades, the token query parameter.
func TokenFromRequest(c *gin.Context) string {
	if header := c.GetHeader("Authorization"); header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && parts[0] == "Bearer" {
			return parts[1]
		}
	}
	if v, err := c.Cookie(CookieName); err == nil && v != "" {
		return v
	}
	return c.Query("token")
}

// EnsureAdmin creates or refreshes the bootstrap admin account. It is a no-op
// when either credential is empty.
func EnsureAdmin(ctx context.Context, repo *Repository, email, password string, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		logger.Warn("ADMIN_EMAIL or ADMIN_PASSWORD not set; skipping admin bootstrap")
		return nil
	}
	hash, err := utils.HashPassword(password)
	if err != nil {
		return err
	}
	a, err := repo.Upsert(ctx, email, hash)
	if err != nil {
		return err
	}
	logger.Info("admin account ready", zap.String("email", a.Email))
	return nil
}
