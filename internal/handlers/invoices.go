package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"agencydesk/internal/middleware"
	"agencydesk/internal/models"
	"agencydesk/internal/services"
	"agencydesk/internal/utils"

	"github.com/gin-gonic/gin"
)

// ==================== INVOICE HANDLERS ====================

// CreateInvoice creates an invoice with items. Admin and PM only.
func (h *Handler) CreateInvoice(c *gin.Context) {
	var req services.CreateInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondWithValidationError(c, "Invalid request body", err.Error())
		return
	}

	invoice, err := h.invoice.CreateInvoice(&req)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrClientNotFound):
			utils.RespondWithNotFound(c, "Client")
		case errors.Is(err, services.ErrProjectNotFound):
			utils.RespondWithNotFound(c, "Project")
		case errors.Is(err, services.ErrEmptyItems),
			errors.Is(err, services.ErrInvalidQuantity),
			errors.Is(err, services.ErrInvalidRate),
			errors.Is(err, services.ErrInvalidDiscount):
			utils.RespondWithValidationError(c, err.Error(), nil)
		default:
			h.log.WithError(err).Error("create invoice")
			utils.RespondWithError(c, http.StatusBadRequest, utils.ErrCodeBadRequest, err.Error())
		}
		return
	}

	middleware.CountInvoiceCreated()
	h.invalidateDashboards(c, invoice.Client.Email)
	utils.RespondWithCreated(c, invoice)
}

// GetInvoice returns one invoice. Client-role callers may only read
// invoices owned by their own client record, and never drafts.
func (h *Handler) GetInvoice(c *gin.Context) {
	invoice, ok := h.loadInvoiceForCaller(c)
	if !ok {
		return
	}
	utils.RespondWithSuccess(c, invoice)
}

// ListInvoices returns invoices. Client-role callers are scoped to their
// own client record and never see drafts.
func (h *Handler) ListInvoices(c *gin.Context) {
	// Opportunistic overdue sweep keeps list views honest
	if err := h.invoice.MarkOverdueInvoices(); err != nil {
		h.log.WithError(err).Warn("overdue sweep failed")
	}

	page, limit, offset := utils.PaginationParams(c)

	filter := services.InvoiceFilter{
		Status:    c.Query("status"),
		ClientID:  c.Query("client_id"),
		ProjectID: c.Query("project_id"),
		Offset:    offset,
		Limit:     limit,
	}
	if callerRole(c) == models.RoleClient {
		filter.ClientID = ""
		filter.ClientEmail = middleware.EmailFromContext(c)
		if filter.Status == "" || filter.Status == string(models.InvoiceStatusDraft) {
			filter.Status = ""
		}
	}

	invoices, total, err := h.invoice.ListInvoices(filter)
	if err != nil {
		h.log.WithError(err).Error("list invoices")
		utils.RespondWithInternalError(c)
		return
	}

	// Drafts are internal until sent
	if callerRole(c) == models.RoleClient {
		visible := invoices[:0]
		for _, inv := range invoices {
			if inv.Status != models.InvoiceStatusDraft {
				visible = append(visible, inv)
			}
		}
		invoices = visible
	}

	utils.PaginatedResponse(c, invoices, total, page, limit)
}

// UpdateInvoice updates a draft invoice. Admin and PM only.
func (h *Handler) UpdateInvoice(c *gin.Context) {
	var req services.UpdateInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondWithValidationError(c, "Invalid request body", err.Error())
		return
	}

	invoice, err := h.invoice.UpdateInvoice(c.Param("id"), &req)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrInvoiceNotFound):
			utils.RespondWithNotFound(c, "Invoice")
		case errors.Is(err, services.ErrCannotEditPaid):
			utils.RespondWithConflict(c, err.Error())
		case errors.Is(err, services.ErrEmptyItems),
			errors.Is(err, services.ErrInvalidQuantity),
			errors.Is(err, services.ErrInvalidRate),
			errors.Is(err, services.ErrInvalidDiscount):
			utils.RespondWithValidationError(c, err.Error(), nil)
		default:
			h.log.WithError(err).Error("update invoice")
			utils.RespondWithInternalError(c)
		}
		return
	}

	h.invalidateDashboards(c, invoice.Client.Email)
	utils.RespondWithSuccess(c, invoice)
}

// SendInvoice marks a draft as sent. Admin and PM only.
func (h *Handler) SendInvoice(c *gin.Context) {
	invoice, err := h.invoice.SendInvoice(c.Param("id"), middleware.UserIDFromContext(c))
	if err != nil {
		switch {
		case errors.Is(err, services.ErrInvoiceNotFound):
			utils.RespondWithNotFound(c, "Invoice")
		case errors.Is(err, services.ErrAlreadySent):
			utils.RespondWithConflict(c, err.Error())
		default:
			utils.RespondWithConflict(c, err.Error())
		}
		return
	}

	h.invalidateDashboards(c, invoice.Client.Email)
	utils.RespondWithSuccess(c, invoice)
}

// MarkInvoiceViewed transitions sent -> viewed. Called when a client
// opens the invoice; idempotent for later states.
func (h *Handler) MarkInvoiceViewed(c *gin.Context) {
	invoice, ok := h.loadInvoiceForCaller(c)
	if !ok {
		return
	}

	invoice, err := h.invoice.MarkViewed(invoice.ID)
	if err != nil {
		h.log.WithError(err).Error("mark viewed")
		utils.RespondWithInternalError(c)
		return
	}

	utils.RespondWithSuccess(c, invoice)
}

// RecordPayment appends a payment against an invoice. Admin and PM only.
func (h *Handler) RecordPayment(c *gin.Context) {
	var req services.RecordPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondWithValidationError(c, "Invalid request body", err.Error())
		return
	}

	invoice, err := h.invoice.RecordPayment(c.Param("id"), &req, middleware.UserIDFromContext(c))
	if err != nil {
		switch {
		case errors.Is(err, services.ErrInvoiceNotFound):
			utils.RespondWithNotFound(c, "Invoice")
		case errors.Is(err, services.ErrInvalidPayment),
			errors.Is(err, services.ErrMissingPayDate):
			utils.RespondWithValidationError(c, err.Error(), nil)
		default:
			h.log.WithError(err).Error("record payment")
			utils.RespondWithInternalError(c)
		}
		return
	}

	middleware.CountPaymentRecorded()
	h.invalidateDashboards(c, invoice.Client.Email)
	utils.RespondWithSuccess(c, invoice)
}

// CancelInvoice cancels an unpaid invoice. Admin and PM only.
func (h *Handler) CancelInvoice(c *gin.Context) {
	err := h.invoice.CancelInvoice(c.Param("id"), middleware.UserIDFromContext(c))
	if err != nil {
		switch {
		case errors.Is(err, services.ErrInvoiceNotFound):
			utils.RespondWithNotFound(c, "Invoice")
		case errors.Is(err, services.ErrCannotCancelPaid):
			utils.RespondWithConflict(c, err.Error())
		default:
			utils.RespondWithConflict(c, err.Error())
		}
		return
	}

	h.invalidateDashboards(c)
	utils.RespondWithSuccess(c, gin.H{"message": "invoice cancelled"})
}

// DeleteInvoice removes an invoice without payments. Admin only.
func (h *Handler) DeleteInvoice(c *gin.Context) {
	err := h.invoice.DeleteInvoice(c.Param("id"), middleware.UserIDFromContext(c))
	if err != nil {
		switch {
		case errors.Is(err, services.ErrInvoiceNotFound):
			utils.RespondWithNotFound(c, "Invoice")
		case errors.Is(err, services.ErrInvoiceHasPayments):
			utils.RespondWithConflict(c, err.Error())
		default:
			h.log.WithError(err).Error("delete invoice")
			utils.RespondWithInternalError(c)
		}
		return
	}

	h.invalidateDashboards(c)
	utils.RespondWithSuccess(c, gin.H{"message": "invoice deleted"})
}

// DownloadInvoicePDF streams the rendered invoice as a PDF attachment
func (h *Handler) DownloadInvoicePDF(c *gin.Context) {
	invoice, ok := h.loadInvoiceForCaller(c)
	if !ok {
		return
	}

	settings, err := h.settings.GetSettings()
	if err != nil {
		h.log.WithError(err).Error("load settings for pdf")
		utils.RespondWithInternalError(c)
		return
	}

	data, err := h.pdf.RenderInvoice(invoice, settings)
	if err != nil {
		middleware.CountPDFRender(false)
		switch {
		case errors.Is(err, services.ErrPDFNoItems),
			errors.Is(err, services.ErrPDFNoIssuer):
			utils.RespondWithConflict(c, err.Error())
		default:
			h.log.WithError(err).WithField("invoice_id", invoice.ID).Error("render pdf")
			utils.RespondWithInternalError(c)
		}
		return
	}

	middleware.CountPDFRender(true)
	c.Header("Content-Disposition",
		fmt.Sprintf("attachment; filename=invoice-%s.pdf", invoice.InvoiceNumber))
	c.Data(http.StatusOK, "application/pdf", data)
}

// loadInvoiceForCaller fetches the invoice and applies ownership rules:
// 404 when absent, 403 for a client-role caller who does not own it or
// when the invoice is still a draft.
func (h *Handler) loadInvoiceForCaller(c *gin.Context) (*models.Invoice, bool) {
	invoice, err := h.invoice.GetInvoiceByID(c.Param("id"))
	if err != nil {
		if errors.Is(err, services.ErrInvoiceNotFound) {
			utils.RespondWithNotFound(c, "Invoice")
			return nil, false
		}
		h.log.WithError(err).Error("get invoice")
		utils.RespondWithInternalError(c)
		return nil, false
	}

	if callerRole(c) == models.RoleClient {
		email := middleware.EmailFromContext(c)
		if !h.invoice.OwnedByClientEmail(invoice, email) || invoice.Status == models.InvoiceStatusDraft {
			utils.RespondWithForbidden(c, "")
			return nil, false
		}
	}

	return invoice, true
}

// invalidateDashboards clears cached stats after money or state changed
func (h *Handler) invalidateDashboards(c *gin.Context, clientEmails ...string) {
	h.dashboard.InvalidateStats(c.Request.Context(), clientEmails...)
}
