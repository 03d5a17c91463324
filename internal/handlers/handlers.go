package handlers

import (
	"errors"
	"net/http"

	"agencydesk/internal/config"
	"agencydesk/internal/middleware"
	"agencydesk/internal/models"
	"agencydesk/internal/services"
	"agencydesk/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type Handler struct {
	cfg       *config.Config
	log       *logrus.Logger
	auth      *services.AuthService
	client    *services.ClientService
	project   *services.ProjectService
	invoice   *services.InvoiceService
	pdf       *services.PDFService
	files     *services.FileService
	settings  *services.SettingsService
	dashboard *services.DashboardService
	report    *services.ReportService
}

func NewHandler(
	cfg *config.Config,
	log *logrus.Logger,
	auth *services.AuthService,
	client *services.ClientService,
	project *services.ProjectService,
	invoice *services.InvoiceService,
	pdf *services.PDFService,
	files *services.FileService,
	settings *services.SettingsService,
	dashboard *services.DashboardService,
	report *services.ReportService,
) *Handler {
	return &Handler{
		cfg:       cfg,
		log:       log,
		auth:      auth,
		client:    client,
		project:   project,
		invoice:   invoice,
		pdf:       pdf,
		files:     files,
		settings:  settings,
		dashboard: dashboard,
		report:    report,
	}
}

// ==================== AUTH HANDLERS ====================

// Signup creates a new user account
func (h *Handler) Signup(c *gin.Context) {
	var req services.SignupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondWithValidationError(c, "Invalid request body", err.Error())
		return
	}

	resp, err := h.auth.Signup(&req)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrEmailExists):
			utils.RespondWithConflict(c, "Email already registered")
		case errors.Is(err, services.ErrWeakPassword):
			utils.RespondWithValidationError(c, "Password too weak", err.Error())
		case errors.Is(err, services.ErrInvalidRole):
			utils.RespondWithValidationError(c, "Invalid role", "role must be project_manager or client")
		default:
			utils.RespondWithError(c, http.StatusBadRequest, utils.ErrCodeBadRequest, err.Error())
		}
		return
	}

	h.setSessionCookie(c, resp.AccessToken)
	utils.RespondWithCreated(c, resp)
}

// Login authenticates a user and sets the session cookie
func (h *Handler) Login(c *gin.Context) {
	var req struct {
		Email    string `json:"email" binding:"required,email"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondWithValidationError(c, "Invalid credentials", err.Error())
		return
	}

	resp, err := h.auth.Login(req.Email, req.Password)
	if err != nil {
		utils.RespondWithUnauthorized(c, "Invalid email or password")
		return
	}

	h.setSessionCookie(c, resp.AccessToken)
	utils.RespondWithSuccess(c, resp)
}

// RefreshToken exchanges a refresh token for a new pair
func (h *Handler) RefreshToken(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refresh_token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondWithValidationError(c, "Invalid request", err.Error())
		return
	}

	resp, err := h.auth.RefreshToken(req.RefreshToken)
	if err != nil {
		utils.RespondWithUnauthorized(c, "Invalid or expired refresh token")
		return
	}

	h.setSessionCookie(c, resp.AccessToken)
	utils.RespondWithSuccess(c, resp)
}

// Logout invalidates the refresh token and clears the session cookie
func (h *Handler) Logout(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refresh_token"`
	}
	c.ShouldBindJSON(&req)

	if err := h.auth.Logout(req.RefreshToken); err != nil {
		h.log.WithError(err).Warn("logout failed")
	}

	h.clearSessionCookie(c)
	utils.RespondWithSuccess(c, gin.H{"message": "logged out"})
}

// GetMe returns the authenticated user
func (h *Handler) GetMe(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	user, err := h.auth.GetUserByID(userID)
	if err != nil {
		utils.RespondWithNotFound(c, "User")
		return
	}

	utils.RespondWithSuccess(c, user)
}

// ListUsers returns all accounts. Admin only.
func (h *Handler) ListUsers(c *gin.Context) {
	users, err := h.auth.ListUsers()
	if err != nil {
		h.log.WithError(err).Error("list users")
		utils.RespondWithInternalError(c)
		return
	}

	utils.RespondWithSuccess(c, users)
}

// ChangeUserRole reassigns a user's role. Admin only.
func (h *Handler) ChangeUserRole(c *gin.Context) {
	var req struct {
		Role string `json:"role" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondWithValidationError(c, "Invalid request", err.Error())
		return
	}

	adminID := middleware.UserIDFromContext(c)
	user, err := h.auth.ChangeRole(adminID, c.Param("id"), req.Role)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrUserNotFound):
			utils.RespondWithNotFound(c, "User")
		case errors.Is(err, services.ErrInvalidRole):
			utils.RespondWithValidationError(c, "Invalid role", req.Role)
		default:
			h.log.WithError(err).Error("change role")
			utils.RespondWithInternalError(c)
		}
		return
	}

	utils.RespondWithSuccess(c, user)
}

func (h *Handler) setSessionCookie(c *gin.Context, token string) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.cfg.JWT.CookieName, token,
		int(h.cfg.JWT.Expiry.Seconds()), "/", "", false, true)
}

func (h *Handler) clearSessionCookie(c *gin.Context) {
	c.SetCookie(h.cfg.JWT.CookieName, "", -1, "/", "", false, true)
}

// callerRole reads the confirmed role from context, failing closed
func callerRole(c *gin.Context) models.Role {
	role, ok := middleware.RoleFromContext(c)
	if !ok {
		return ""
	}
	return role
}
