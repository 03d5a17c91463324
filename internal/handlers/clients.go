package handlers

import (
	"errors"
	"strings"

	"agencydesk/internal/middleware"
	"agencydesk/internal/models"
	"agencydesk/internal/services"
	"agencydesk/internal/utils"

	"github.com/gin-gonic/gin"
)

// ==================== CLIENT HANDLERS ====================

// CreateClient creates a client record. Admin and PM only.
func (h *Handler) CreateClient(c *gin.Context) {
	var req services.CreateClientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondWithValidationError(c, "Invalid request body", err.Error())
		return
	}

	client, err := h.client.CreateClient(&req)
	if err != nil {
		utils.RespondWithValidationError(c, err.Error(), nil)
		return
	}

	utils.RespondWithCreated(c, client)
}

// GetClient returns one client. A client-role caller may only read the
// record matching their own account email.
func (h *Handler) GetClient(c *gin.Context) {
	client, err := h.client.GetClient(c.Param("id"))
	if err != nil {
		if errors.Is(err, services.ErrClientNotFound) {
			utils.RespondWithNotFound(c, "Client")
			return
		}
		h.log.WithError(err).Error("get client")
		utils.RespondWithInternalError(c)
		return
	}

	if callerRole(c) == models.RoleClient && !ownsClientRecord(c, client) {
		utils.RespondWithForbidden(c, "")
		return
	}

	utils.RespondWithSuccess(c, client)
}

// ListClients returns clients with search and pagination. Admin and PM only.
func (h *Handler) ListClients(c *gin.Context) {
	page, limit, offset := utils.PaginationParams(c)

	clients, total, err := h.client.ListClients(services.ClientFilter{
		Status: c.Query("status"),
		Search: c.Query("search"),
		Offset: offset,
		Limit:  limit,
	})
	if err != nil {
		h.log.WithError(err).Error("list clients")
		utils.RespondWithInternalError(c)
		return
	}

	utils.PaginatedResponse(c, clients, total, page, limit)
}

// UpdateClient updates a client record. Admin and PM only.
func (h *Handler) UpdateClient(c *gin.Context) {
	var req services.UpdateClientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondWithValidationError(c, "Invalid request body", err.Error())
		return
	}

	client, err := h.client.UpdateClient(c.Param("id"), &req)
	if err != nil {
		if errors.Is(err, services.ErrClientNotFound) {
			utils.RespondWithNotFound(c, "Client")
			return
		}
		utils.RespondWithValidationError(c, err.Error(), nil)
		return
	}

	utils.RespondWithSuccess(c, client)
}

// DeleteClient removes a client without invoices. Admin only.
func (h *Handler) DeleteClient(c *gin.Context) {
	err := h.client.DeleteClient(c.Param("id"))
	if err != nil {
		switch {
		case errors.Is(err, services.ErrClientNotFound):
			utils.RespondWithNotFound(c, "Client")
		case errors.Is(err, services.ErrClientHasInvoices):
			utils.RespondWithConflict(c, err.Error())
		default:
			h.log.WithError(err).Error("delete client")
			utils.RespondWithInternalError(c)
		}
		return
	}

	utils.RespondWithSuccess(c, gin.H{"message": "client deleted"})
}

// GetClientStats returns billing and project stats for a client
func (h *Handler) GetClientStats(c *gin.Context) {
	clientID := c.Param("id")

	if callerRole(c) == models.RoleClient {
		client, err := h.client.GetClient(clientID)
		if err != nil {
			utils.RespondWithNotFound(c, "Client")
			return
		}
		if !ownsClientRecord(c, client) {
			utils.RespondWithForbidden(c, "")
			return
		}
	}

	stats, err := h.client.GetClientStats(clientID)
	if err != nil {
		if errors.Is(err, services.ErrClientNotFound) {
			utils.RespondWithNotFound(c, "Client")
			return
		}
		h.log.WithError(err).Error("client stats")
		utils.RespondWithInternalError(c)
		return
	}

	utils.RespondWithSuccess(c, stats)
}

// ownsClientRecord reports whether the caller's account email matches the
// client record
func ownsClientRecord(c *gin.Context, client *models.Client) bool {
	email := middleware.EmailFromContext(c)
	return email != "" && strings.EqualFold(client.Email, email)
}
