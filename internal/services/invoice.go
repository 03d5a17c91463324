package services

import (
	"database/sql"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"agencydesk/internal/database"
	"agencydesk/internal/models"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

var (
	ErrEmptyItems         = errors.New("invoice must have at least one item")
	ErrInvalidQuantity    = errors.New("item quantity must be positive")
	ErrInvalidRate        = errors.New("item rate cannot be negative")
	ErrInvalidDiscount    = errors.New("discount cannot exceed subtotal plus tax")
	ErrInvoiceNotFound    = errors.New("invoice not found")
	ErrClientNotFound     = errors.New("client not found")
	ErrProjectNotFound    = errors.New("project not found")
	ErrCannotEditPaid     = errors.New("cannot edit a non-draft invoice")
	ErrCannotCancelPaid   = errors.New("cannot cancel paid invoice")
	ErrAlreadySent        = errors.New("invoice already sent")
	ErrInvalidPayment     = errors.New("payment amount must be positive")
	ErrMissingPayDate     = errors.New("payment date is required")
	ErrInvoiceHasPayments = errors.New("cannot delete invoice with recorded payments")
)

// invoiceNumberFormat yields INV-00001, INV-00002, ...
const invoiceNumberFormat = "INV-%05d"

type InvoiceService struct {
	db  *database.DB
	log *logrus.Logger
}

func NewInvoiceService(db *database.DB, log *logrus.Logger) *InvoiceService {
	return &InvoiceService{db: db, log: log}
}

// CreateInvoice creates a new invoice with items. Line amounts and totals
// are always recomputed here; client-submitted amounts are ignored. The
// invoice number comes from the counter table inside the same transaction
// as the insert, so numbers are strictly increasing and never reused.
func (s *InvoiceService) CreateInvoice(req *CreateInvoiceRequest) (*models.Invoice, error) {
	if err := s.validateCreateRequest(req); err != nil {
		return nil, err
	}

	client := &models.Client{}
	if err := s.db.First(client, "id = ?", req.ClientID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrClientNotFound
		}
		return nil, fmt.Errorf("failed to find client: %w", err)
	}

	if req.ProjectID != "" {
		var project models.Project
		if err := s.db.First(&project, "id = ? AND client_id = ?", req.ProjectID, req.ClientID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, ErrProjectNotFound
			}
			return nil, fmt.Errorf("failed to find project: %w", err)
		}
	}

	// Compute line amounts server-side
	var subtotal float64
	var items []models.InvoiceItem
	for i, item := range req.Items {
		if item.Quantity <= 0 {
			return nil, ErrInvalidQuantity
		}
		if item.Rate < 0 {
			return nil, ErrInvalidRate
		}

		amount := round2(item.Quantity * item.Rate)
		subtotal += amount
		items = append(items, models.InvoiceItem{
			ID:          uuid.New().String(),
			ServiceType: validServiceType(item.ServiceType),
			Description: strings.TrimSpace(item.Description),
			Quantity:    item.Quantity,
			Rate:        item.Rate,
			Amount:      amount,
			SortOrder:   i,
		})
	}

	taxRate := math.Max(0, math.Min(100, req.TaxRate))
	taxAmount := round2(subtotal * taxRate / 100)
	discount := req.Discount
	if discount < 0 {
		discount = 0
	}
	if discount > subtotal+taxAmount {
		return nil, ErrInvalidDiscount
	}
	total := round2(subtotal + taxAmount - discount)

	status := models.InvoiceStatusDraft
	if req.Status == string(models.InvoiceStatusSent) {
		status = models.InvoiceStatusSent
	}

	invoice := &models.Invoice{
		ID:        uuid.New().String(),
		ClientID:  req.ClientID,
		ProjectID: req.ProjectID,
		IssueDate: req.IssueDate,
		DueDate:   req.DueDate,
		Subtotal:  round2(subtotal),
		TaxRate:   taxRate,
		TaxAmount: taxAmount,
		Discount:  round2(discount),
		Total:     total,
		Status:    status,
		Notes:     strings.TrimSpace(req.Notes),
	}
	if status == models.InvoiceStatusSent {
		invoice.SentAt = nowNull()
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		number, err := nextInvoiceNumber(tx)
		if err != nil {
			return err
		}
		invoice.InvoiceNumber = number

		if err := tx.Create(invoice).Error; err != nil {
			return fmt.Errorf("failed to create invoice: %w", err)
		}

		for i := range items {
			items[i].InvoiceID = invoice.ID
		}
		if err := tx.Create(&items).Error; err != nil {
			return fmt.Errorf("failed to create invoice items: %w", err)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	invoice.Items = items
	invoice.Client = *client

	return invoice, nil
}

// nextInvoiceNumber increments the counter row and formats the result.
// Must run inside the invoice-create transaction.
func nextInvoiceNumber(tx *gorm.DB) (string, error) {
	res := tx.Model(&models.InvoiceSequence{}).
		Where("id = ?", 1).
		UpdateColumn("next_value", gorm.Expr("next_value + 1"))
	if res.Error != nil {
		return "", fmt.Errorf("failed to advance invoice sequence: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return "", errors.New("invoice sequence row missing")
	}

	var seq models.InvoiceSequence
	if err := tx.First(&seq, "id = ?", 1).Error; err != nil {
		return "", fmt.Errorf("failed to read invoice sequence: %w", err)
	}

	return fmt.Sprintf(invoiceNumberFormat, seq.NextValue), nil
}

func (s *InvoiceService) validateCreateRequest(req *CreateInvoiceRequest) error {
	if strings.TrimSpace(req.ClientID) == "" {
		return errors.New("client ID is required")
	}
	if req.IssueDate.IsZero() {
		return errors.New("issue date is required")
	}
	if req.DueDate.IsZero() {
		return errors.New("due date is required")
	}
	if req.DueDate.Before(req.IssueDate) {
		return errors.New("due date cannot be before issue date")
	}
	if len(req.Items) == 0 {
		return ErrEmptyItems
	}
	return nil
}

// GetInvoiceByID retrieves an invoice with its relations
func (s *InvoiceService) GetInvoiceByID(invoiceID string) (*models.Invoice, error) {
	if strings.TrimSpace(invoiceID) == "" {
		return nil, ErrInvoiceNotFound
	}

	var invoice models.Invoice
	err := s.db.Preload("Client").Preload("Project").
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("sort_order ASC") }).
		Preload("Payments").
		First(&invoice, "id = ?", invoiceID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvoiceNotFound
		}
		return nil, fmt.Errorf("failed to fetch invoice: %w", err)
	}
	return &invoice, nil
}

// ListInvoices returns invoices with filtering and pagination
func (s *InvoiceService) ListInvoices(filter InvoiceFilter) ([]models.Invoice, int64, error) {
	var invoices []models.Invoice
	var total int64

	query := s.db.Model(&models.Invoice{})

	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.ClientID != "" {
		query = query.Where("client_id = ?", filter.ClientID)
	}
	if filter.ProjectID != "" {
		query = query.Where("project_id = ?", filter.ProjectID)
	}
	if filter.ClientEmail != "" {
		// Client-role callers only ever see invoices owned by the client
		// record matching their account email.
		query = query.Joins("JOIN clients ON clients.id = invoices.client_id").
			Where("clients.email = ?", filter.ClientEmail)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count invoices: %w", err)
	}

	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	limit := filter.Limit
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	err := query.Preload("Client").Preload("Items").
		Order("invoices.created_at DESC").
		Offset(offset).Limit(limit).
		Find(&invoices).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to fetch invoices: %w", err)
	}

	return invoices, total, nil
}

// UpdateInvoice updates a draft invoice's editable fields and items
func (s *InvoiceService) UpdateInvoice(invoiceID string, req *UpdateInvoiceRequest) (*models.Invoice, error) {
	invoice, err := s.GetInvoiceByID(invoiceID)
	if err != nil {
		return nil, err
	}

	if invoice.Status != models.InvoiceStatusDraft {
		return nil, ErrCannotEditPaid
	}

	if req.DueDate != nil {
		if req.DueDate.IsZero() {
			return nil, errors.New("due date cannot be empty")
		}
		invoice.DueDate = *req.DueDate
	}
	if req.TaxRate != nil {
		invoice.TaxRate = math.Max(0, math.Min(100, *req.TaxRate))
	}
	if req.Discount != nil {
		if *req.Discount < 0 {
			return nil, errors.New("discount cannot be negative")
		}
		invoice.Discount = round2(*req.Discount)
	}
	if req.Notes != nil {
		invoice.Notes = strings.TrimSpace(*req.Notes)
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if req.Items != nil {
			if len(req.Items) == 0 {
				return ErrEmptyItems
			}

			if err := tx.Where("invoice_id = ?", invoiceID).Delete(&models.InvoiceItem{}).Error; err != nil {
				return fmt.Errorf("failed to delete items: %w", err)
			}

			var newItems []models.InvoiceItem
			for i, item := range req.Items {
				if item.Quantity <= 0 {
					return ErrInvalidQuantity
				}
				if item.Rate < 0 {
					return ErrInvalidRate
				}
				newItems = append(newItems, models.InvoiceItem{
					ID:          uuid.New().String(),
					InvoiceID:   invoiceID,
					ServiceType: validServiceType(item.ServiceType),
					Description: strings.TrimSpace(item.Description),
					Quantity:    item.Quantity,
					Rate:        item.Rate,
					Amount:      round2(item.Quantity * item.Rate),
					SortOrder:   i,
				})
			}
			if err := tx.Create(&newItems).Error; err != nil {
				return fmt.Errorf("failed to create items: %w", err)
			}
			invoice.Items = newItems
		}

		recalculateTotals(invoice)
		if invoice.Discount > invoice.Subtotal+invoice.TaxAmount {
			return ErrInvalidDiscount
		}

		if err := tx.Save(invoice).Error; err != nil {
			return fmt.Errorf("failed to update invoice: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return invoice, nil
}

// recalculateTotals re-derives the money fields from the items
func recalculateTotals(invoice *models.Invoice) {
	var subtotal float64
	for _, item := range invoice.Items {
		subtotal += item.Amount
	}
	invoice.Subtotal = round2(subtotal)
	invoice.TaxAmount = round2(subtotal * invoice.TaxRate / 100)
	invoice.Total = round2(invoice.Subtotal + invoice.TaxAmount - invoice.Discount)
}

// SendInvoice marks a draft invoice as sent
func (s *InvoiceService) SendInvoice(invoiceID, actorID string) (*models.Invoice, error) {
	invoice, err := s.GetInvoiceByID(invoiceID)
	if err != nil {
		return nil, err
	}

	switch invoice.Status {
	case models.InvoiceStatusDraft:
		// ok
	case models.InvoiceStatusCancelled:
		return nil, errors.New("cannot send cancelled invoice")
	default:
		return nil, ErrAlreadySent
	}

	invoice.Status = models.InvoiceStatusSent
	invoice.SentAt = nowNull()

	if err := s.db.Save(invoice).Error; err != nil {
		return nil, fmt.Errorf("failed to send invoice: %w", err)
	}

	s.db.Create(&models.AuditLog{
		ID:         uuid.New().String(),
		UserID:     actorID,
		Action:     "invoice.sent",
		EntityType: "invoice",
		EntityID:   invoiceID,
		Details:    fmt.Sprintf(`{"invoice_number": "%s"}`, invoice.InvoiceNumber),
	})

	return invoice, nil
}

// MarkViewed transitions sent -> viewed. Later states are left alone.
func (s *InvoiceService) MarkViewed(invoiceID string) (*models.Invoice, error) {
	invoice, err := s.GetInvoiceByID(invoiceID)
	if err != nil {
		return nil, err
	}

	if invoice.Status != models.InvoiceStatusSent {
		return invoice, nil
	}

	invoice.Status = models.InvoiceStatusViewed
	invoice.ViewedAt = nowNull()
	if err := s.db.Save(invoice).Error; err != nil {
		return nil, fmt.Errorf("failed to mark invoice viewed: %w", err)
	}
	return invoice, nil
}

// RecordPayment appends a payment and rolls the invoice status forward.
// Payments are additive and never reversed; there is no refund flow.
func (s *InvoiceService) RecordPayment(invoiceID string, req *RecordPaymentRequest, recordedBy string) (*models.Invoice, error) {
	if req.Amount <= 0 {
		return nil, ErrInvalidPayment
	}
	if req.PaymentDate.IsZero() {
		return nil, ErrMissingPayDate
	}

	invoice, err := s.GetInvoiceByID(invoiceID)
	if err != nil {
		return nil, err
	}

	payment := &models.Payment{
		ID:              uuid.New().String(),
		InvoiceID:       invoiceID,
		Amount:          round2(req.Amount),
		PaymentDate:     req.PaymentDate,
		PaymentMethod:   strings.TrimSpace(req.PaymentMethod),
		ReferenceNumber: strings.TrimSpace(req.ReferenceNumber),
		Notes:           strings.TrimSpace(req.Notes),
		RecordedBy:      recordedBy,
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(payment).Error; err != nil {
			return fmt.Errorf("failed to record payment: %w", err)
		}

		invoice.PaidAmount = round2(invoice.PaidAmount + payment.Amount)
		if invoice.PaidAmount >= invoice.Total {
			invoice.Status = models.InvoiceStatusPaid
			invoice.PaidAt = nowNull()
		} else {
			invoice.Status = models.InvoiceStatusPartiallyPaid
		}

		if err := tx.Save(invoice).Error; err != nil {
			return fmt.Errorf("failed to update invoice: %w", err)
		}

		// Keep the client's lifetime revenue in step with received money
		if err := tx.Model(&models.Client{}).
			Where("id = ?", invoice.ClientID).
			UpdateColumn("total_revenue", gorm.Expr("total_revenue + ?", payment.Amount)).Error; err != nil {
			return fmt.Errorf("failed to update client revenue: %w", err)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	s.db.Create(&models.AuditLog{
		ID:         uuid.New().String(),
		UserID:     recordedBy,
		Action:     "payment.recorded",
		EntityType: "payment",
		EntityID:   payment.ID,
		Details:    fmt.Sprintf(`{"invoice_id": "%s", "amount": %.2f}`, invoiceID, payment.Amount),
	})

	invoice.Payments = append(invoice.Payments, *payment)
	return invoice, nil
}

// CancelInvoice cancels an unpaid invoice
func (s *InvoiceService) CancelInvoice(invoiceID, actorID string) error {
	invoice, err := s.GetInvoiceByID(invoiceID)
	if err != nil {
		return err
	}

	if invoice.Status == models.InvoiceStatusPaid {
		return ErrCannotCancelPaid
	}
	if invoice.Status == models.InvoiceStatusCancelled {
		return errors.New("invoice already cancelled")
	}

	invoice.Status = models.InvoiceStatusCancelled
	if err := s.db.Save(invoice).Error; err != nil {
		return fmt.Errorf("failed to cancel invoice: %w", err)
	}

	return nil
}

// DeleteInvoice removes an invoice and its items. Refused when payments
// exist, so the audit trail can never be orphaned. Invoice numbers are
// not recycled.
func (s *InvoiceService) DeleteInvoice(invoiceID, actorID string) error {
	invoice, err := s.GetInvoiceByID(invoiceID)
	if err != nil {
		return err
	}

	var paymentCount int64
	if err := s.db.Model(&models.Payment{}).Where("invoice_id = ?", invoiceID).Count(&paymentCount).Error; err != nil {
		return fmt.Errorf("failed to check payments: %w", err)
	}
	if paymentCount > 0 {
		return ErrInvoiceHasPayments
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("invoice_id = ?", invoiceID).Delete(&models.InvoiceItem{}).Error; err != nil {
			return fmt.Errorf("failed to delete invoice items: %w", err)
		}
		if err := tx.Delete(&models.Invoice{}, "id = ?", invoiceID).Error; err != nil {
			return fmt.Errorf("failed to delete invoice: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.db.Create(&models.AuditLog{
		ID:         uuid.New().String(),
		UserID:     actorID,
		Action:     "invoice.deleted",
		EntityType: "invoice",
		EntityID:   invoiceID,
		Details:    fmt.Sprintf(`{"invoice_number": "%s"}`, invoice.InvoiceNumber),
	})

	return nil
}

// MarkOverdueInvoices flips unpaid invoices past their due date to
// overdue. Called opportunistically from the list endpoints.
func (s *InvoiceService) MarkOverdueInvoices() error {
	return s.db.Model(&models.Invoice{}).
		Where("due_date < ? AND status IN ?", time.Now().UTC(), []string{
			string(models.InvoiceStatusSent),
			string(models.InvoiceStatusViewed),
			string(models.InvoiceStatusPartiallyPaid),
		}).
		Update("status", models.InvoiceStatusOverdue).Error
}

// OwnedByClientEmail reports whether the invoice belongs to the client
// record matching the given account email. Client-role access checks
// go through this.
func (s *InvoiceService) OwnedByClientEmail(invoice *models.Invoice, email string) bool {
	if email == "" {
		return false
	}
	return strings.EqualFold(invoice.Client.Email, email)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func validServiceType(s string) models.ServiceType {
	switch models.ServiceType(s) {
	case models.ServiceTypeVideo, models.ServiceTypeSocial, models.ServiceTypeDesign:
		return models.ServiceType(s)
	}
	return models.ServiceTypeVideo
}

func nowNull() sql.NullTime {
	return sql.NullTime{Time: time.Now().UTC(), Valid: true}
}

// Request types
type CreateInvoiceRequest struct {
	ClientID  string               `json:"client_id" binding:"required"`
	ProjectID string               `json:"project_id"`
	IssueDate time.Time            `json:"issue_date" binding:"required"`
	DueDate   time.Time            `json:"due_date" binding:"required"`
	TaxRate   float64              `json:"tax_rate"`
	Discount  float64              `json:"discount"`
	Notes     string               `json:"notes"`
	Status    string               `json:"status"` // "draft" (default) or "sent"
	Items     []InvoiceItemRequest `json:"items" binding:"required,min=1"`
}

type InvoiceItemRequest struct {
	ServiceType string  `json:"service_type"`
	Description string  `json:"description" binding:"required"`
	Quantity    float64 `json:"quantity" binding:"required"`
	Rate        float64 `json:"rate"`
}

type UpdateInvoiceRequest struct {
	DueDate  *time.Time           `json:"due_date"`
	TaxRate  *float64             `json:"tax_rate"`
	Discount *float64             `json:"discount"`
	Notes    *string              `json:"notes"`
	Items    []InvoiceItemRequest `json:"items"`
}

type RecordPaymentRequest struct {
	Amount          float64   `json:"amount"`
	PaymentDate     time.Time `json:"payment_date"`
	PaymentMethod   string    `json:"payment_method"`
	ReferenceNumber string    `json:"reference_number"`
	Notes           string    `json:"notes"`
}

type InvoiceFilter struct {
	Status      string
	ClientID    string
	ProjectID   string
	ClientEmail string
	Offset      int
	Limit       int
}
