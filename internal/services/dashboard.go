package services

import (
	"context"
	"fmt"
	"time"

	"agencydesk/internal/cache"
	"agencydesk/internal/database"
	"agencydesk/internal/models"
)

const (
	cacheKeyAdminStats    = "dashboard:admin"
	cacheKeyEmployeeStats = "dashboard:employee"
	cacheKeyClientStats   = "dashboard:client:%s"
)

// DashboardService aggregates role-scoped stats. Results are cached in
// redis for a short TTL since dashboards are read far more often than
// the underlying data changes.
type DashboardService struct {
	db    *database.DB
	cache *cache.Cache
}

func NewDashboardService(db *database.DB, c *cache.Cache) *DashboardService {
	return &DashboardService{db: db, cache: c}
}

// AdminStats is the company-wide view
type AdminStats struct {
	TotalClients      int64   `json:"total_clients"`
	ActiveClients     int64   `json:"active_clients"`
	TotalProjects     int64   `json:"total_projects"`
	ActiveProjects    int64   `json:"active_projects"`
	TotalInvoiced     float64 `json:"total_invoiced"`
	TotalCollected    float64 `json:"total_collected"`
	OutstandingAmount float64 `json:"outstanding_amount"`
	OverdueInvoices   int64   `json:"overdue_invoices"`
	DraftInvoices     int64   `json:"draft_invoices"`
	RevenueThisMonth  float64 `json:"revenue_this_month"`
}

// EmployeeStats is the project-manager view: delivery workload, not money
type EmployeeStats struct {
	ActiveProjects     int64              `json:"active_projects"`
	ProjectsInReview   int64              `json:"projects_in_review"`
	PendingMilestones  int64              `json:"pending_milestones"`
	OverdueMilestones  int64              `json:"overdue_milestones"`
	ProjectsByStatus   map[string]int64   `json:"projects_by_status"`
	UpcomingMilestones []models.Milestone `json:"upcoming_milestones"`
}

// ClientDashboard is what a client sees about their own relationship
type ClientDashboard struct {
	Client          *models.Client   `json:"client"`
	ActiveProjects  []models.Project `json:"active_projects"`
	RecentInvoices  []models.Invoice `json:"recent_invoices"`
	OutstandingDue  float64          `json:"outstanding_due"`
	TotalPaid       float64          `json:"total_paid"`
	OverdueInvoices int64            `json:"overdue_invoices"`
}

// GetAdminStats returns the company-wide aggregate
func (s *DashboardService) GetAdminStats(ctx context.Context) (*AdminStats, error) {
	var stats AdminStats
	if s.cache.GetObject(ctx, cacheKeyAdminStats, &stats) {
		return &stats, nil
	}

	activeProjectStatuses := []string{
		string(models.ProjectStatusPlanning),
		string(models.ProjectStatusInProgress),
		string(models.ProjectStatusInReview),
	}

	s.db.Model(&models.Client{}).Count(&stats.TotalClients)
	s.db.Model(&models.Client{}).Where("status = ?", models.ClientStatusActive).Count(&stats.ActiveClients)
	s.db.Model(&models.Project{}).Count(&stats.TotalProjects)
	s.db.Model(&models.Project{}).Where("status IN ?", activeProjectStatuses).Count(&stats.ActiveProjects)

	s.db.Model(&models.Invoice{}).Where("status <> ?", models.InvoiceStatusCancelled).
		Select("COALESCE(SUM(total), 0)").Scan(&stats.TotalInvoiced)
	s.db.Model(&models.Invoice{}).Select("COALESCE(SUM(paid_amount), 0)").Scan(&stats.TotalCollected)
	s.db.Model(&models.Invoice{}).Where("status = ?", models.InvoiceStatusOverdue).Count(&stats.OverdueInvoices)
	s.db.Model(&models.Invoice{}).Where("status = ?", models.InvoiceStatusDraft).Count(&stats.DraftInvoices)

	monthStart := time.Now().UTC().Truncate(24 * time.Hour)
	monthStart = time.Date(monthStart.Year(), monthStart.Month(), 1, 0, 0, 0, 0, time.UTC)
	s.db.Model(&models.Payment{}).Where("payment_date >= ?", monthStart).
		Select("COALESCE(SUM(amount), 0)").Scan(&stats.RevenueThisMonth)

	stats.OutstandingAmount = round2(stats.TotalInvoiced - stats.TotalCollected)
	if stats.OutstandingAmount < 0 {
		stats.OutstandingAmount = 0
	}

	s.cache.SetObject(ctx, cacheKeyAdminStats, &stats)
	return &stats, nil
}

// GetEmployeeStats returns the project-manager workload view
func (s *DashboardService) GetEmployeeStats(ctx context.Context) (*EmployeeStats, error) {
	var stats EmployeeStats
	if s.cache.GetObject(ctx, cacheKeyEmployeeStats, &stats) {
		return &stats, nil
	}

	stats.ProjectsByStatus = make(map[string]int64)

	type statusCount struct {
		Status string
		Count  int64
	}
	var counts []statusCount
	if err := s.db.Model(&models.Project{}).
		Select("status, COUNT(*) as count").
		Group("status").
		Scan(&counts).Error; err != nil {
		return nil, fmt.Errorf("failed to count projects: %w", err)
	}
	for _, c := range counts {
		stats.ProjectsByStatus[c.Status] = c.Count
	}
	stats.ActiveProjects = stats.ProjectsByStatus[string(models.ProjectStatusPlanning)] +
		stats.ProjectsByStatus[string(models.ProjectStatusInProgress)] +
		stats.ProjectsByStatus[string(models.ProjectStatusInReview)]
	stats.ProjectsInReview = stats.ProjectsByStatus[string(models.ProjectStatusInReview)]

	s.db.Model(&models.Milestone{}).
		Where("status <> ?", models.MilestoneStatusCompleted).
		Count(&stats.PendingMilestones)
	s.db.Model(&models.Milestone{}).
		Where("status <> ? AND due_date IS NOT NULL AND due_date < ?", models.MilestoneStatusCompleted, time.Now().UTC()).
		Count(&stats.OverdueMilestones)

	if err := s.db.
		Where("status <> ? AND due_date IS NOT NULL AND due_date >= ?", models.MilestoneStatusCompleted, time.Now().UTC()).
		Order("due_date ASC").Limit(10).
		Find(&stats.UpcomingMilestones).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch milestones: %w", err)
	}

	s.cache.SetObject(ctx, cacheKeyEmployeeStats, &stats)
	return &stats, nil
}

// GetClientDashboard returns the view for the client record matching the
// account email. An account without a client record gets an empty
// dashboard rather than an error page.
func (s *DashboardService) GetClientDashboard(ctx context.Context, email string) (*ClientDashboard, error) {
	key := fmt.Sprintf(cacheKeyClientStats, email)
	var dash ClientDashboard
	if s.cache.GetObject(ctx, key, &dash) {
		return &dash, nil
	}

	var client models.Client
	if err := s.db.First(&client, "email = ?", email).Error; err != nil {
		return &ClientDashboard{}, nil
	}
	dash.Client = &client

	activeStatuses := []string{
		string(models.ProjectStatusPlanning),
		string(models.ProjectStatusInProgress),
		string(models.ProjectStatusInReview),
	}
	if err := s.db.Where("client_id = ? AND status IN ?", client.ID, activeStatuses).
		Order("created_at DESC").
		Find(&dash.ActiveProjects).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch projects: %w", err)
	}

	if err := s.db.Preload("Items").
		Where("client_id = ? AND status <> ?", client.ID, models.InvoiceStatusDraft).
		Order("created_at DESC").Limit(10).
		Find(&dash.RecentInvoices).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch invoices: %w", err)
	}

	var invoiced, paid float64
	s.db.Model(&models.Invoice{}).
		Where("client_id = ? AND status NOT IN ?", client.ID, []string{
			string(models.InvoiceStatusCancelled),
			string(models.InvoiceStatusDraft),
		}).
		Select("COALESCE(SUM(total), 0)").Scan(&invoiced)
	s.db.Model(&models.Invoice{}).Where("client_id = ?", client.ID).
		Select("COALESCE(SUM(paid_amount), 0)").Scan(&paid)
	s.db.Model(&models.Invoice{}).
		Where("client_id = ? AND status = ?", client.ID, models.InvoiceStatusOverdue).
		Count(&dash.OverdueInvoices)

	dash.TotalPaid = round2(paid)
	dash.OutstandingDue = round2(invoiced - paid)
	if dash.OutstandingDue < 0 {
		dash.OutstandingDue = 0
	}

	s.cache.SetObject(ctx, key, &dash)
	return &dash, nil
}

// InvalidateStats clears cached dashboards after a write that changes
// money or project state.
func (s *DashboardService) InvalidateStats(ctx context.Context, clientEmails ...string) {
	keys := []string{cacheKeyAdminStats, cacheKeyEmployeeStats}
	for _, email := range clientEmails {
		if email != "" {
			keys = append(keys, fmt.Sprintf(cacheKeyClientStats, email))
		}
	}
	s.cache.Invalidate(ctx, keys...)
}
