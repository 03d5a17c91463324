package handlers

import (
	"fmt"
	"net/http"
	"time"

	"agencydesk/internal/middleware"
	"agencydesk/internal/models"
	"agencydesk/internal/services"
	"agencydesk/internal/utils"

	"github.com/gin-gonic/gin"
)

// ==================== DASHBOARD / SETTINGS / REPORTS ====================

// GetDashboardStats returns the stats block for the caller's role
func (h *Handler) GetDashboardStats(c *gin.Context) {
	ctx := c.Request.Context()

	switch callerRole(c) {
	case models.RoleAdmin:
		stats, err := h.dashboard.GetAdminStats(ctx)
		if err != nil {
			h.log.WithError(err).Error("admin stats")
			utils.RespondWithInternalError(c)
			return
		}
		utils.RespondWithSuccess(c, stats)

	case models.RoleProjectManager:
		stats, err := h.dashboard.GetEmployeeStats(ctx)
		if err != nil {
			h.log.WithError(err).Error("employee stats")
			utils.RespondWithInternalError(c)
			return
		}
		utils.RespondWithSuccess(c, stats)

	case models.RoleClient:
		dash, err := h.dashboard.GetClientDashboard(ctx, middleware.EmailFromContext(c))
		if err != nil {
			h.log.WithError(err).Error("client dashboard")
			utils.RespondWithInternalError(c)
			return
		}
		utils.RespondWithSuccess(c, dash)

	default:
		utils.RespondWithForbidden(c, "")
	}
}

// GetCompanySettings returns the issuer identity. Admin only.
func (h *Handler) GetCompanySettings(c *gin.Context) {
	settings, err := h.settings.GetSettings()
	if err != nil {
		h.log.WithError(err).Error("get settings")
		utils.RespondWithInternalError(c)
		return
	}

	utils.RespondWithSuccess(c, settings)
}

// UpdateCompanySettings upserts the issuer identity. Admin only.
func (h *Handler) UpdateCompanySettings(c *gin.Context) {
	var req services.UpdateSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondWithValidationError(c, "Invalid request body", err.Error())
		return
	}

	settings, err := h.settings.UpdateSettings(&req)
	if err != nil {
		utils.RespondWithValidationError(c, err.Error(), nil)
		return
	}

	utils.RespondWithSuccess(c, settings)
}

// ExportInvoiceReport streams the invoice ledger as xlsx. Admin only.
func (h *Handler) ExportInvoiceReport(c *gin.Context) {
	filter := services.InvoiceReportFilter{Status: c.Query("status")}
	if from := c.Query("from"); from != "" {
		if t, err := time.Parse("2006-01-02", from); err == nil {
			filter.From = &t
		}
	}
	if to := c.Query("to"); to != "" {
		if t, err := time.Parse("2006-01-02", to); err == nil {
			filter.To = &t
		}
	}

	data, err := h.report.ExportInvoicesXLSX(filter)
	if err != nil {
		h.log.WithError(err).Error("export invoices")
		utils.RespondWithInternalError(c)
		return
	}

	filename := fmt.Sprintf("invoices-%s.xlsx", time.Now().UTC().Format("2006-01-02"))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s", filename))
	c.Data(http.StatusOK,
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", data)
}
