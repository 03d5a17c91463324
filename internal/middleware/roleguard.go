package middleware

import (
	"net/http"
	"strings"

	"agencydesk/internal/config"
	"agencydesk/internal/models"
	"agencydesk/internal/services"

	"github.com/gin-gonic/gin"
)

// Dashboard page paths
const (
	PathLogin             = "/login"
	PathSignup            = "/signup"
	PathSelectRole        = "/select-role"
	PathDashboard         = "/dashboard"
	PathDashboardEmployee = "/dashboard/employee"
	PathDashboardClient   = "/dashboard/client"
)

// roleHome maps a role to the dashboard section it lands on
func roleHome(role models.Role) string {
	switch role {
	case models.RoleAdmin:
		return PathDashboard
	case models.RoleProjectManager:
		return PathDashboardEmployee
	case models.RoleClient:
		return PathDashboardClient
	}
	return PathLogin
}

// RoleGuard routes browser navigation across the dashboard sections. It
// is a per-request state machine over the session cookie: anonymous
// visitors are sent to /login, authenticated visitors are pinned to the
// section their role owns, and any lookup failure is treated as
// unauthenticated. It never grants access on error.
func RoleGuard(auth *services.AuthService, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Request.URL.Path

		guarded := strings.HasPrefix(path, PathDashboard) ||
			path == PathLogin || path == PathSignup || path == PathSelectRole
		if !guarded {
			c.Next()
			return
		}

		role, authenticated := resolveRole(c, auth, cfg)

		if !authenticated {
			if strings.HasPrefix(path, PathDashboard) {
				redirect(c, PathLogin)
				return
			}
			// Anonymous on /login, /signup, /select-role: allowed
			c.Next()
			return
		}

		// Authenticated users have no business on the auth pages
		if path == PathLogin || path == PathSignup || path == PathSelectRole {
			redirect(c, roleHome(role))
			return
		}

		switch role {
		case models.RoleClient:
			if !strings.HasPrefix(path, PathDashboardClient) {
				redirect(c, PathDashboardClient)
				return
			}
		case models.RoleProjectManager:
			if !strings.HasPrefix(path, PathDashboardEmployee) {
				redirect(c, PathDashboardEmployee)
				return
			}
		case models.RoleAdmin:
			if strings.HasPrefix(path, PathDashboardClient) || strings.HasPrefix(path, PathDashboardEmployee) {
				redirect(c, PathDashboard)
				return
			}
		}

		c.Set(CtxRole, role)
		c.Next()
	}
}

// resolveRole resolves the session cookie to a confirmed role. Any
// failure along the way (no cookie, bad token, user row gone, role
// unparseable) reports unauthenticated.
func resolveRole(c *gin.Context, auth *services.AuthService, cfg *config.Config) (models.Role, bool) {
	cookie, err := c.Cookie(cfg.JWT.CookieName)
	if err != nil || cookie == "" {
		return "", false
	}

	claims, err := auth.ValidateToken(cookie)
	if err != nil {
		return "", false
	}

	// The token's role claim is not trusted on its own: the user row is
	// the source of truth, and a deleted account means no access.
	user, err := auth.GetUserByID(claims.UserID)
	if err != nil || !user.IsActive {
		return "", false
	}

	role, err := models.ParseRole(string(user.Role))
	if err != nil {
		return "", false
	}

	return role, true
}

func redirect(c *gin.Context, location string) {
	c.Redirect(http.StatusFound, location)
	c.Abort()
}
