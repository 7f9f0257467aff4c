package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/qwinhub/backend/internal/auth"
	"github.com/qwinhub/backend/pkg/response"
)

const (
	// ContextAdminID is the key for the admin ID in gin context.
	ContextAdminID = "admin_id"
	// ContextAdminEmail is the key for the admin email in gin context.
	ContextAdminEmail = "admin_email"
	// ContextIsAdmin is set on every request that passed through DetectAdmin or RequireAdmin.
	ContextIsAdmin = "is_admin"
)

// RequireAdmin rejects requests without a valid admin token (401) or with a
// token for another role (403).
func RequireAdmin(jwtService *auth.JWTService) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := auth.TokenFromRequest(c)
		if token == "" {
			response.Unauthorized(c, "missing admin token")
			c.Abort()
			return
		}
		claims, err := jwtService.Validate(token)
		if err != nil {
			response.Unauthorized(c, "invalid or expired token")
			c.Abort()
			return
		}
		if claims.Role != auth.RoleAdmin {
			response.Forbidden(c, "insufficient permissions")
			c.Abort()
			return
		}
		setAdmin(c, claims)
		c.Next()
	}
}

// DetectAdmin marks the request as coming from an admin when a valid token is
// present and otherwise lets it through as a public viewer.
func DetectAdmin(jwtService *auth.JWTService) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(ContextIsAdmin, false)
		if token := auth.TokenFromRequest(c); token != "" {
			if claims, err := jwtService.Validate(token); err == nil && claims.Role == auth.RoleAdmin {
				setAdmin(c, claims)
			}
		}
		c.Next()
	}
}

// IsAdmin reports whether the current viewer is an authenticated admin.
func IsAdmin(c *gin.Context) bool {
	return c.GetBool(ContextIsAdmin)
}

// AdminID returns the authenticated admin's ID, or uuid.Nil.
func AdminID(c *gin.Context) uuid.UUID {
	if v, ok := c.Get(ContextAdminID); ok {
		if id, ok := v.(uuid.UUID); ok {
			return id
		}
	}
	return uuid.Nil
}

func setAdmin(c *gin.Context, claims *auth.Claims) {
	c.Set(ContextIsAdmin, true)
	c.Set(ContextAdminID, claims.AdminID)
	c.Set(ContextAdminEmail, claims.Email)
}
