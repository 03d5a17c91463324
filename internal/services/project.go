package services

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"agencydesk/internal/database"
	"agencydesk/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	ErrMilestoneNotFound = errors.New("milestone not found")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrInvalidProgress   = errors.New("progress must be between 0 and 100")
)

type ProjectService struct {
	db *database.DB
}

func NewProjectService(db *database.DB) *ProjectService {
	return &ProjectService{db: db}
}

// projectTransitions encodes the planning -> in_progress -> in_review ->
// completed lifecycle. Cancellation is allowed from any non-terminal state.
var projectTransitions = map[models.ProjectStatus][]models.ProjectStatus{
	models.ProjectStatusPlanning:   {models.ProjectStatusInProgress, models.ProjectStatusCancelled},
	models.ProjectStatusInProgress: {models.ProjectStatusInReview, models.ProjectStatusCancelled},
	models.ProjectStatusInReview:   {models.ProjectStatusInProgress, models.ProjectStatusCompleted, models.ProjectStatusCancelled},
	models.ProjectStatusCompleted:  {},
	models.ProjectStatusCancelled:  {},
}

// CreateProject creates a project for a client and bumps the client's
// project counter.
func (s *ProjectService) CreateProject(req *CreateProjectRequest) (*models.Project, error) {
	if strings.TrimSpace(req.Name) == "" {
		return nil, errors.New("project name is required")
	}

	var client models.Client
	if err := s.db.First(&client, "id = ?", req.ClientID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrClientNotFound
		}
		return nil, fmt.Errorf("failed to find client: %w", err)
	}

	project := &models.Project{
		ID:          uuid.New().String(),
		ClientID:    req.ClientID,
		Name:        strings.TrimSpace(req.Name),
		Description: strings.TrimSpace(req.Description),
		Status:      models.ProjectStatusPlanning,
		ServiceType: validServiceType(req.ServiceType),
		Budget:      req.Budget,
	}
	if req.StartDate != nil {
		project.StartDate = sql.NullTime{Time: *req.StartDate, Valid: true}
	}
	if req.EndDate != nil {
		project.EndDate = sql.NullTime{Time: *req.EndDate, Valid: true}
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(project).Error; err != nil {
			return fmt.Errorf("failed to create project: %w", err)
		}
		return tx.Model(&models.Client{}).
			Where("id = ?", req.ClientID).
			UpdateColumn("total_projects", gorm.Expr("total_projects + 1")).Error
	})
	if err != nil {
		return nil, err
	}

	return project, nil
}

// GetProject retrieves a project with milestones
func (s *ProjectService) GetProject(projectID string) (*models.Project, error) {
	if strings.TrimSpace(projectID) == "" {
		return nil, ErrProjectNotFound
	}

	var project models.Project
	err := s.db.Preload("Client").
		Preload("Milestones", func(db *gorm.DB) *gorm.DB { return db.Order("due_date ASC") }).
		First(&project, "id = ?", projectID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProjectNotFound
		}
		return nil, fmt.Errorf("failed to fetch project: %w", err)
	}
	return &project, nil
}

// ListProjects returns projects with filtering and pagination
func (s *ProjectService) ListProjects(filter ProjectFilter) ([]models.Project, int64, error) {
	var projects []models.Project
	var total int64

	query := s.db.Model(&models.Project{})

	if filter.ClientID != "" {
		query = query.Where("client_id = ?", filter.ClientID)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.ServiceType != "" {
		query = query.Where("service_type = ?", filter.ServiceType)
	}
	if filter.ClientEmail != "" {
		query = query.Joins("JOIN clients ON clients.id = projects.client_id").
			Where("clients.email = ?", filter.ClientEmail)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count projects: %w", err)
	}

	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	limit := filter.Limit
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	err := query.Preload("Client").
		Order("projects.created_at DESC").
		Offset(offset).Limit(limit).
		Find(&projects).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to fetch projects: %w", err)
	}

	return projects, total, nil
}

// UpdateProject updates basic project fields
func (s *ProjectService) UpdateProject(projectID string, req *UpdateProjectRequest) (*models.Project, error) {
	project, err := s.GetProject(projectID)
	if err != nil {
		return nil, err
	}

	if req.Name != nil && strings.TrimSpace(*req.Name) != "" {
		project.Name = strings.TrimSpace(*req.Name)
	}
	if req.Description != nil {
		project.Description = strings.TrimSpace(*req.Description)
	}
	if req.Budget != nil {
		if *req.Budget < 0 {
			return nil, errors.New("budget cannot be negative")
		}
		project.Budget = *req.Budget
	}
	if req.ServiceType != nil {
		project.ServiceType = validServiceType(*req.ServiceType)
	}
	if req.StartDate != nil {
		project.StartDate = sql.NullTime{Time: *req.StartDate, Valid: true}
	}
	if req.EndDate != nil {
		project.EndDate = sql.NullTime{Time: *req.EndDate, Valid: true}
	}

	if err := s.db.Save(project).Error; err != nil {
		return nil, fmt.Errorf("failed to update project: %w", err)
	}

	return project, nil
}

// ChangeStatus moves a project along its lifecycle
func (s *ProjectService) ChangeStatus(projectID string, newStatus string) (*models.Project, error) {
	project, err := s.GetProject(projectID)
	if err != nil {
		return nil, err
	}

	target := models.ProjectStatus(newStatus)
	allowed := false
	for _, next := range projectTransitions[project.Status] {
		if next == target {
			allowed = true
			break
		}
	}
	if !allowed {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, project.Status, target)
	}

	project.Status = target
	if target == models.ProjectStatusCompleted {
		project.ProgressPercentage = 100
		project.EndDate = sql.NullTime{Time: time.Now().UTC(), Valid: true}
	}

	if err := s.db.Save(project).Error; err != nil {
		return nil, fmt.Errorf("failed to update project status: %w", err)
	}

	return project, nil
}

// SetProgress updates progress_percentage, clamped to the 0-100 contract
func (s *ProjectService) SetProgress(projectID string, progress int) (*models.Project, error) {
	if progress < 0 || progress > 100 {
		return nil, ErrInvalidProgress
	}

	project, err := s.GetProject(projectID)
	if err != nil {
		return nil, err
	}

	project.ProgressPercentage = progress
	if err := s.db.Save(project).Error; err != nil {
		return nil, fmt.Errorf("failed to update progress: %w", err)
	}

	return project, nil
}

// DeleteProject removes a project and its milestones
func (s *ProjectService) DeleteProject(projectID string) error {
	project, err := s.GetProject(projectID)
	if err != nil {
		return err
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("project_id = ?", projectID).Delete(&models.Milestone{}).Error; err != nil {
			return fmt.Errorf("failed to delete milestones: %w", err)
		}
		if err := tx.Delete(&models.Project{}, "id = ?", projectID).Error; err != nil {
			return fmt.Errorf("failed to delete project: %w", err)
		}
		return tx.Model(&models.Client{}).
			Where("id = ? AND total_projects > 0", project.ClientID).
			UpdateColumn("total_projects", gorm.Expr("total_projects - 1")).Error
	})
}

// ==================== MILESTONES ====================

// AddMilestone attaches a milestone to a project
func (s *ProjectService) AddMilestone(projectID string, req *CreateMilestoneRequest) (*models.Milestone, error) {
	if _, err := s.GetProject(projectID); err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.Title) == "" {
		return nil, errors.New("milestone title is required")
	}

	milestone := &models.Milestone{
		ID:          uuid.New().String(),
		ProjectID:   projectID,
		Title:       strings.TrimSpace(req.Title),
		Description: strings.TrimSpace(req.Description),
		Status:      models.MilestoneStatusPending,
	}
	if req.DueDate != nil {
		milestone.DueDate = sql.NullTime{Time: *req.DueDate, Valid: true}
	}

	if err := s.db.Create(milestone).Error; err != nil {
		return nil, fmt.Errorf("failed to create milestone: %w", err)
	}

	return milestone, nil
}

// milestoneTransitions: pending -> in_progress -> completed
var milestoneTransitions = map[models.MilestoneStatus][]models.MilestoneStatus{
	models.MilestoneStatusPending:    {models.MilestoneStatusInProgress},
	models.MilestoneStatusInProgress: {models.MilestoneStatusCompleted},
	models.MilestoneStatusCompleted:  {},
}

// ChangeMilestoneStatus moves a milestone along its lifecycle
func (s *ProjectService) ChangeMilestoneStatus(milestoneID string, newStatus string) (*models.Milestone, error) {
	var milestone models.Milestone
	if err := s.db.First(&milestone, "id = ?", milestoneID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMilestoneNotFound
		}
		return nil, fmt.Errorf("failed to fetch milestone: %w", err)
	}

	target := models.MilestoneStatus(newStatus)
	allowed := false
	for _, next := range milestoneTransitions[milestone.Status] {
		if next == target {
			allowed = true
			break
		}
	}
	if !allowed {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, milestone.Status, target)
	}

	milestone.Status = target
	if target == models.MilestoneStatusCompleted {
		milestone.CompletedAt = sql.NullTime{Time: time.Now().UTC(), Valid: true}
	}

	if err := s.db.Save(&milestone).Error; err != nil {
		return nil, fmt.Errorf("failed to update milestone: %w", err)
	}

	return &milestone, nil
}

// Request types
type CreateProjectRequest struct {
	ClientID    string     `json:"client_id" binding:"required"`
	Name        string     `json:"name" binding:"required"`
	Description string     `json:"description"`
	ServiceType string     `json:"service_type"`
	Budget      float64    `json:"budget"`
	StartDate   *time.Time `json:"start_date"`
	EndDate     *time.Time `json:"end_date"`
}

type UpdateProjectRequest struct {
	Name        *string    `json:"name"`
	Description *string    `json:"description"`
	ServiceType *string    `json:"service_type"`
	Budget      *float64   `json:"budget"`
	StartDate   *time.Time `json:"start_date"`
	EndDate     *time.Time `json:"end_date"`
}

type CreateMilestoneRequest struct {
	Title       string     `json:"title" binding:"required"`
	Description string     `json:"description"`
	DueDate     *time.Time `json:"due_date"`
}

type ProjectFilter struct {
	ClientID    string
	Status      string
	ServiceType string
	ClientEmail string
	Offset      int
	Limit       int
}
