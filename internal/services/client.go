package services

import (
	"errors"
	"fmt"
	"strings"

	"agencydesk/internal/database"
	"agencydesk/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var ErrClientHasInvoices = errors.New("cannot delete client with existing invoices")

type ClientService struct {
	db *database.DB
}

func NewClientService(db *database.DB) *ClientService {
	return &ClientService{db: db}
}

// CreateClient creates a new client record
func (s *ClientService) CreateClient(req *CreateClientRequest) (*models.Client, error) {
	if strings.TrimSpace(req.CompanyName) == "" {
		return nil, errors.New("company name is required")
	}

	client := &models.Client{
		ID:            uuid.New().String(),
		CompanyName:   strings.TrimSpace(req.CompanyName),
		ContactPerson: strings.TrimSpace(req.ContactPerson),
		Email:         strings.ToLower(strings.TrimSpace(req.Email)),
		Phone:         strings.TrimSpace(req.Phone),
		Address:       strings.TrimSpace(req.Address),
		Status:        models.ClientStatusActive,
	}

	if err := s.db.Create(client).Error; err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}

	return client, nil
}

// GetClient retrieves a client by ID
func (s *ClientService) GetClient(clientID string) (*models.Client, error) {
	if strings.TrimSpace(clientID) == "" {
		return nil, ErrClientNotFound
	}

	var client models.Client
	if err := s.db.First(&client, "id = ?", clientID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrClientNotFound
		}
		return nil, fmt.Errorf("failed to fetch client: %w", err)
	}
	return &client, nil
}

// GetClientByEmail finds the client record owned by a user account
func (s *ClientService) GetClientByEmail(email string) (*models.Client, error) {
	if strings.TrimSpace(email) == "" {
		return nil, ErrClientNotFound
	}

	var client models.Client
	if err := s.db.First(&client, "email = ?", strings.ToLower(strings.TrimSpace(email))).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrClientNotFound
		}
		return nil, fmt.Errorf("failed to fetch client: %w", err)
	}
	return &client, nil
}

// ListClients returns clients with search and pagination
func (s *ClientService) ListClients(filter ClientFilter) ([]models.Client, int64, error) {
	var clients []models.Client
	var total int64

	query := s.db.Model(&models.Client{})

	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.Search != "" {
		search := "%" + strings.TrimSpace(filter.Search) + "%"
		query = query.Where("company_name LIKE ? OR contact_person LIKE ? OR email LIKE ?", search, search, search)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count clients: %w", err)
	}

	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	limit := filter.Limit
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	if err := query.Order("created_at DESC").Offset(offset).Limit(limit).Find(&clients).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to fetch clients: %w", err)
	}

	return clients, total, nil
}

// UpdateClient updates a client's fields
func (s *ClientService) UpdateClient(clientID string, req *UpdateClientRequest) (*models.Client, error) {
	client, err := s.GetClient(clientID)
	if err != nil {
		return nil, err
	}

	if req.CompanyName != nil && strings.TrimSpace(*req.CompanyName) != "" {
		client.CompanyName = strings.TrimSpace(*req.CompanyName)
	}
	if req.ContactPerson != nil {
		client.ContactPerson = strings.TrimSpace(*req.ContactPerson)
	}
	if req.Email != nil {
		client.Email = strings.ToLower(strings.TrimSpace(*req.Email))
	}
	if req.Phone != nil {
		client.Phone = strings.TrimSpace(*req.Phone)
	}
	if req.Address != nil {
		client.Address = strings.TrimSpace(*req.Address)
	}
	if req.Status != nil {
		switch models.ClientStatus(*req.Status) {
		case models.ClientStatusActive, models.ClientStatusInactive:
			client.Status = models.ClientStatus(*req.Status)
		default:
			return nil, errors.New("invalid client status")
		}
	}

	if err := s.db.Save(client).Error; err != nil {
		return nil, fmt.Errorf("failed to update client: %w", err)
	}

	return client, nil
}

// DeleteClient removes a client without invoices
func (s *ClientService) DeleteClient(clientID string) error {
	client, err := s.GetClient(clientID)
	if err != nil {
		return err
	}

	var invoiceCount int64
	if err := s.db.Model(&models.Invoice{}).Where("client_id = ?", clientID).Count(&invoiceCount).Error; err != nil {
		return fmt.Errorf("failed to check invoices: %w", err)
	}
	if invoiceCount > 0 {
		return ErrClientHasInvoices
	}

	return s.db.Delete(client).Error
}

// ClientStats summarizes a single client relationship
type ClientStats struct {
	TotalProjects   int64   `json:"total_projects"`
	ActiveProjects  int64   `json:"active_projects"`
	TotalInvoiced   float64 `json:"total_invoiced"`
	TotalPaid       float64 `json:"total_paid"`
	OutstandingDue  float64 `json:"outstanding_due"`
	InvoiceCount    int64   `json:"invoice_count"`
	OverdueInvoices int64   `json:"overdue_invoices"`
}

// GetClientStats computes billing and project stats for a client
func (s *ClientService) GetClientStats(clientID string) (*ClientStats, error) {
	if _, err := s.GetClient(clientID); err != nil {
		return nil, err
	}

	var stats ClientStats

	s.db.Model(&models.Project{}).Where("client_id = ?", clientID).Count(&stats.TotalProjects)
	s.db.Model(&models.Project{}).
		Where("client_id = ? AND status IN ?", clientID, []string{
			string(models.ProjectStatusPlanning),
			string(models.ProjectStatusInProgress),
			string(models.ProjectStatusInReview),
		}).Count(&stats.ActiveProjects)

	s.db.Model(&models.Invoice{}).Where("client_id = ?", clientID).Count(&stats.InvoiceCount)
	s.db.Model(&models.Invoice{}).Where("client_id = ? AND status = ?", clientID, models.InvoiceStatusOverdue).
		Count(&stats.OverdueInvoices)

	s.db.Model(&models.Invoice{}).Where("client_id = ? AND status <> ?", clientID, models.InvoiceStatusCancelled).
		Select("COALESCE(SUM(total), 0)").Scan(&stats.TotalInvoiced)
	s.db.Model(&models.Invoice{}).Where("client_id = ?", clientID).
		Select("COALESCE(SUM(paid_amount), 0)").Scan(&stats.TotalPaid)

	stats.OutstandingDue = round2(stats.TotalInvoiced - stats.TotalPaid)
	if stats.OutstandingDue < 0 {
		stats.OutstandingDue = 0
	}

	return &stats, nil
}

// Request types
type CreateClientRequest struct {
	CompanyName   string `json:"company_name" binding:"required"`
	ContactPerson string `json:"contact_person"`
	Email         string `json:"email"`
	Phone         string `json:"phone"`
	Address       string `json:"address"`
}

type UpdateClientRequest struct {
	CompanyName   *string `json:"company_name"`
	ContactPerson *string `json:"contact_person"`
	Email         *string `json:"email"`
	Phone         *string `json:"phone"`
	Address       *string `json:"address"`
	Status        *string `json:"status"`
}

type ClientFilter struct {
	Status string
	Search string
	Offset int
	Limit  int
}
