package handlers

import (
	"errors"

	"agencydesk/internal/middleware"
	"agencydesk/internal/models"
	"agencydesk/internal/services"
	"agencydesk/internal/utils"

	"github.com/gin-gonic/gin"
)

// ==================== PROJECT HANDLERS ====================

// CreateProject creates a project. Admin and PM only.
func (h *Handler) CreateProject(c *gin.Context) {
	var req services.CreateProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondWithValidationError(c, "Invalid request body", err.Error())
		return
	}

	project, err := h.project.CreateProject(&req)
	if err != nil {
		if errors.Is(err, services.ErrClientNotFound) {
			utils.RespondWithNotFound(c, "Client")
			return
		}
		utils.RespondWithValidationError(c, err.Error(), nil)
		return
	}

	utils.RespondWithCreated(c, project)
}

// GetProject returns one project with milestones. Client-role callers may
// only read projects belonging to their own client record.
func (h *Handler) GetProject(c *gin.Context) {
	project, err := h.project.GetProject(c.Param("id"))
	if err != nil {
		if errors.Is(err, services.ErrProjectNotFound) {
			utils.RespondWithNotFound(c, "Project")
			return
		}
		h.log.WithError(err).Error("get project")
		utils.RespondWithInternalError(c)
		return
	}

	if callerRole(c) == models.RoleClient && !ownsClientRecord(c, &project.Client) {
		utils.RespondWithForbidden(c, "")
		return
	}

	utils.RespondWithSuccess(c, project)
}

// ListProjects returns projects. Client-role callers are scoped to their
// own client record.
func (h *Handler) ListProjects(c *gin.Context) {
	page, limit, offset := utils.PaginationParams(c)

	filter := services.ProjectFilter{
		ClientID:    c.Query("client_id"),
		Status:      c.Query("status"),
		ServiceType: c.Query("service_type"),
		Offset:      offset,
		Limit:       limit,
	}
	if callerRole(c) == models.RoleClient {
		filter.ClientID = ""
		filter.ClientEmail = middleware.EmailFromContext(c)
	}

	projects, total, err := h.project.ListProjects(filter)
	if err != nil {
		h.log.WithError(err).Error("list projects")
		utils.RespondWithInternalError(c)
		return
	}

	utils.PaginatedResponse(c, projects, total, page, limit)
}

// UpdateProject updates project fields. Admin and PM only.
func (h *Handler) UpdateProject(c *gin.Context) {
	var req services.UpdateProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondWithValidationError(c, "Invalid request body", err.Error())
		return
	}

	project, err := h.project.UpdateProject(c.Param("id"), &req)
	if err != nil {
		if errors.Is(err, services.ErrProjectNotFound) {
			utils.RespondWithNotFound(c, "Project")
			return
		}
		utils.RespondWithValidationError(c, err.Error(), nil)
		return
	}

	utils.RespondWithSuccess(c, project)
}

// ChangeProjectStatus moves a project along its lifecycle. Admin and PM only.
func (h *Handler) ChangeProjectStatus(c *gin.Context) {
	var req struct {
		Status string `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondWithValidationError(c, "Invalid request body", err.Error())
		return
	}

	project, err := h.project.ChangeStatus(c.Param("id"), req.Status)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrProjectNotFound):
			utils.RespondWithNotFound(c, "Project")
		case errors.Is(err, services.ErrInvalidTransition):
			utils.RespondWithConflict(c, err.Error())
		default:
			h.log.WithError(err).Error("project status")
			utils.RespondWithInternalError(c)
		}
		return
	}

	utils.RespondWithSuccess(c, project)
}

// SetProjectProgress updates progress_percentage. Admin and PM only.
func (h *Handler) SetProjectProgress(c *gin.Context) {
	var req struct {
		Progress *int `json:"progress" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondWithValidationError(c, "Invalid request body", err.Error())
		return
	}

	project, err := h.project.SetProgress(c.Param("id"), *req.Progress)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrProjectNotFound):
			utils.RespondWithNotFound(c, "Project")
		case errors.Is(err, services.ErrInvalidProgress):
			utils.RespondWithValidationError(c, err.Error(), nil)
		default:
			h.log.WithError(err).Error("project progress")
			utils.RespondWithInternalError(c)
		}
		return
	}

	utils.RespondWithSuccess(c, project)
}

// DeleteProject removes a project and its milestones. Admin only.
func (h *Handler) DeleteProject(c *gin.Context) {
	if err := h.project.DeleteProject(c.Param("id")); err != nil {
		if errors.Is(err, services.ErrProjectNotFound) {
			utils.RespondWithNotFound(c, "Project")
			return
		}
		h.log.WithError(err).Error("delete project")
		utils.RespondWithInternalError(c)
		return
	}

	utils.RespondWithSuccess(c, gin.H{"message": "project deleted"})
}

// ==================== MILESTONE HANDLERS ====================

// AddMilestone attaches a milestone to a project. Admin and PM only.
func (h *Handler) AddMilestone(c *gin.Context) {
	var req services.CreateMilestoneRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondWithValidationError(c, "Invalid request body", err.Error())
		return
	}

	milestone, err := h.project.AddMilestone(c.Param("id"), &req)
	if err != nil {
		if errors.Is(err, services.ErrProjectNotFound) {
			utils.RespondWithNotFound(c, "Project")
			return
		}
		utils.RespondWithValidationError(c, err.Error(), nil)
		return
	}

	utils.RespondWithCreated(c, milestone)
}

// ChangeMilestoneStatus moves a milestone along its lifecycle. Admin and PM only.
func (h *Handler) ChangeMilestoneStatus(c *gin.Context) {
	var req struct {
		Status string `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondWithValidationError(c, "Invalid request body", err.Error())
		return
	}

	milestone, err := h.project.ChangeMilestoneStatus(c.Param("id"), req.Status)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrMilestoneNotFound):
			utils.RespondWithNotFound(c, "Milestone")
		case errors.Is(err, services.ErrInvalidTransition):
			utils.RespondWithConflict(c, err.Error())
		default:
			h.log.WithError(err).Error("milestone status")
			utils.RespondWithInternalError(c)
		}
		return
	}

	utils.RespondWithSuccess(c, milestone)
}
