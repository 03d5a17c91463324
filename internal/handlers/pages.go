package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Page handlers back the browser routes the role guard protects. The
// frontend is served separately; these render minimal shells so the
// redirect behavior is observable without it.

func pageShell(title string) string {
	return "<!doctype html><html><head><title>" + title +
		"</title></head><body><div id=\"app\" data-page=\"" + title +
		"\"></div></body></html>"
}

func (h *Handler) PageLogin(c *gin.Context) {
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(pageShell("login")))
}

func (h *Handler) PageSignup(c *gin.Context) {
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(pageShell("signup")))
}

func (h *Handler) PageSelectRole(c *gin.Context) {
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(pageShell("select-role")))
}

func (h *Handler) PageDashboard(c *gin.Context) {
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(pageShell("dashboard")))
}

func (h *Handler) PageDashboardEmployee(c *gin.Context) {
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(pageShell("dashboard-employee")))
}

func (h *Handler) PageDashboardClient(c *gin.Context) {
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(pageShell("dashboard-client")))
}
