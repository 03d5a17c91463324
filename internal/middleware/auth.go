package middleware

import (
	"strings"

	"agencydesk/internal/config"
	"agencydesk/internal/models"
	"agencydesk/internal/services"
	"agencydesk/internal/utils"

	"github.com/gin-gonic/gin"
)

// Context keys set by RequireAuth
const (
	CtxUserID = "user_id"
	CtxEmail  = "email"
	CtxRole   = "role"
)

// tokenFromRequest pulls the access token from the Authorization header
// or, for browser navigation, from the session cookie.
func tokenFromRequest(c *gin.Context, cookieName string) string {
	authHeader := c.GetHeader("Authorization")
	if authHeader != "" {
		parts := strings.Split(authHeader, " ")
		if len(parts) == 2 && parts[0] == "Bearer" {
			return parts[1]
		}
		return ""
	}

	if cookie, err := c.Cookie(cookieName); err == nil {
		return cookie
	}
	return ""
}

// RequireAuth validates the JWT and, when allowedRoles are given, checks
// the caller's role against them. An empty role in the token fails
// closed: role provisioning happens at login, never here.
func RequireAuth(auth *services.AuthService, cfg *config.Config, allowedRoles ...models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := tokenFromRequest(c, cfg.JWT.CookieName)
		if token == "" {
			utils.RespondWithUnauthorized(c, "authentication required")
			c.Abort()
			return
		}

		claims, err := auth.ValidateToken(token)
		if err != nil {
			utils.RespondWithUnauthorized(c, "invalid or expired token")
			c.Abort()
			return
		}

		if _, err := models.ParseRole(string(claims.Role)); err != nil {
			utils.RespondWithForbidden(c, "account has no role assigned")
			c.Abort()
			return
		}

		if len(allowedRoles) > 0 {
			allowed := false
			for _, role := range allowedRoles {
				if role == claims.Role {
					allowed = true
					break
				}
			}
			if !allowed {
				utils.RespondWithForbidden(c, "insufficient permissions")
				c.Abort()
				return
			}
		}

		c.Set(CtxUserID, claims.UserID)
		c.Set(CtxEmail, claims.Email)
		c.Set(CtxRole, claims.Role)
		c.Next()
	}
}

// RoleFromContext reads the role RequireAuth stored, failing closed when
// it is missing or malformed.
func RoleFromContext(c *gin.Context) (models.Role, bool) {
	v, ok := c.Get(CtxRole)
	if !ok {
		return "", false
	}
	role, ok := v.(models.Role)
	if !ok {
		return "", false
	}
	if _, err := models.ParseRole(string(role)); err != nil {
		return "", false
	}
	return role, true
}

// EmailFromContext reads the authenticated account email
func EmailFromContext(c *gin.Context) string {
	return c.GetString(CtxEmail)
}

// UserIDFromContext reads the authenticated user ID
func UserIDFromContext(c *gin.Context) string {
	return c.GetString(CtxUserID)
}
