package models

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Role determines which dashboard section a user may reach and which
// mutations they are allowed to perform. Roles are assigned at signup
// (or by an admin) and never inferred ad hoc from strings elsewhere.
type Role string

const (
	RoleAdmin          Role = "admin"
	RoleProjectManager Role = "project_manager"
	RoleClient         Role = "client"
)

// ParseRole validates a role string. Unknown values are rejected so a
// bad row can never silently widen access.
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleAdmin, RoleProjectManager, RoleClient:
		return Role(s), nil
	}
	return "", fmt.Errorf("unknown role %q", s)
}

// User represents an account in the system
type User struct {
	ID           string    `json:"id" gorm:"type:uuid;primaryKey"`
	Email        string    `json:"email" gorm:"uniqueIndex;not null"`
	PasswordHash string    `json:"-" gorm:"not null"`
	Name         string    `json:"name"`
	Phone        string    `json:"phone"`
	Role         Role      `json:"role" gorm:"index"`
	IsActive     bool      `json:"is_active" gorm:"default:true"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// ClientStatus is active or inactive
type ClientStatus string

const (
	ClientStatusActive   ClientStatus = "active"
	ClientStatusInactive ClientStatus = "inactive"
)

// Client represents an agency customer. A client record is owned by one
// user account, matched by email, which is what the client dashboard and
// invoice ownership checks key off.
type Client struct {
	ID            string       `json:"id" gorm:"type:uuid;primaryKey"`
	CompanyName   string       `json:"company_name" gorm:"not null"`
	ContactPerson string       `json:"contact_person"`
	Email         string       `json:"email" gorm:"index"`
	Phone         string       `json:"phone"`
	Address       string       `json:"address"`
	Status        ClientStatus `json:"status" gorm:"default:'active'"`
	TotalProjects int64        `json:"total_projects" gorm:"default:0"`
	TotalRevenue  float64      `json:"total_revenue" gorm:"default:0"`
	CreatedAt     time.Time    `json:"created_at"`
	UpdatedAt     time.Time    `json:"updated_at"`

	Projects []Project `json:"-" gorm:"foreignKey:ClientID"`
	Invoices []Invoice `json:"-" gorm:"foreignKey:ClientID"`
}

// ProjectStatus lifecycle: planning -> in_progress -> in_review -> completed,
// or cancelled from any non-terminal state.
type ProjectStatus string

const (
	ProjectStatusPlanning   ProjectStatus = "planning"
	ProjectStatusInProgress ProjectStatus = "in_progress"
	ProjectStatusInReview   ProjectStatus = "in_review"
	ProjectStatusCompleted  ProjectStatus = "completed"
	ProjectStatusCancelled  ProjectStatus = "cancelled"
)

// ServiceType is the category of work a project represents
type ServiceType string

const (
	ServiceTypeVideo  ServiceType = "video"
	ServiceTypeSocial ServiceType = "social"
	ServiceTypeDesign ServiceType = "design"
)

// Project represents an engagement for a client
type Project struct {
	ID                 string        `json:"id" gorm:"type:uuid;primaryKey"`
	ClientID           string        `json:"client_id" gorm:"type:uuid;index;not null"`
	Name               string        `json:"name" gorm:"not null"`
	Description        string        `json:"description"`
	Status             ProjectStatus `json:"status" gorm:"default:'planning'"`
	ServiceType        ServiceType   `json:"service_type" gorm:"default:'video'"`
	Budget             float64       `json:"budget" gorm:"default:0"`
	ProgressPercentage int           `json:"progress_percentage" gorm:"default:0"`
	StartDate          sql.NullTime  `json:"start_date"`
	EndDate            sql.NullTime  `json:"end_date"`
	CreatedAt          time.Time     `json:"created_at"`
	UpdatedAt          time.Time     `json:"updated_at"`

	Client     Client      `json:"client,omitempty" gorm:"foreignKey:ClientID"`
	Milestones []Milestone `json:"milestones,omitempty" gorm:"foreignKey:ProjectID"`
}

// MilestoneStatus lifecycle: pending -> in_progress -> completed
type MilestoneStatus string

const (
	MilestoneStatusPending    MilestoneStatus = "pending"
	MilestoneStatusInProgress MilestoneStatus = "in_progress"
	MilestoneStatusCompleted  MilestoneStatus = "completed"
)

// Milestone is a dated checkpoint within a project's delivery timeline
type Milestone struct {
	ID          string          `json:"id" gorm:"type:uuid;primaryKey"`
	ProjectID   string          `json:"project_id" gorm:"type:uuid;index;not null"`
	Title       string          `json:"title" gorm:"not null"`
	Description string          `json:"description"`
	Status      MilestoneStatus `json:"status" gorm:"default:'pending'"`
	DueDate     sql.NullTime    `json:"due_date"`
	CompletedAt sql.NullTime    `json:"completed_at"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// InvoiceStatus represents the lifecycle stage of a bill
type InvoiceStatus string

const (
	InvoiceStatusDraft         InvoiceStatus = "draft"
	InvoiceStatusSent          InvoiceStatus = "sent"
	InvoiceStatusViewed        InvoiceStatus = "viewed"
	InvoiceStatusPartiallyPaid InvoiceStatus = "partially_paid"
	InvoiceStatusPaid          InvoiceStatus = "paid"
	InvoiceStatusOverdue       InvoiceStatus = "overdue"
	InvoiceStatusCancelled     InvoiceStatus = "cancelled"
)

// Invoice represents a bill issued to a client, optionally tied to a project.
// Invariant: Total = Subtotal + TaxAmount - Discount, all rounded to 2dp.
type Invoice struct {
	ID            string        `json:"id" gorm:"type:uuid;primaryKey"`
	ClientID      string        `json:"client_id" gorm:"type:uuid;index;not null"`
	ProjectID     string        `json:"project_id" gorm:"type:uuid;index"`
	InvoiceNumber string        `json:"invoice_number" gorm:"uniqueIndex;not null"`
	IssueDate     time.Time     `json:"issue_date"`
	DueDate       time.Time     `json:"due_date"`
	Subtotal      float64       `json:"subtotal" gorm:"not null"`
	TaxRate       float64       `json:"tax_rate" gorm:"default:0"`
	TaxAmount     float64       `json:"tax_amount" gorm:"default:0"`
	Discount      float64       `json:"discount" gorm:"default:0"`
	Total         float64       `json:"total" gorm:"not null"`
	PaidAmount    float64       `json:"paid_amount" gorm:"default:0"`
	Status        InvoiceStatus `json:"status" gorm:"default:'draft'"`
	Notes         string        `json:"notes"`
	SentAt        sql.NullTime  `json:"sent_at"`
	ViewedAt      sql.NullTime  `json:"viewed_at"`
	PaidAt        sql.NullTime  `json:"paid_at"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`

	// Relations
	Client   Client        `json:"client,omitempty" gorm:"foreignKey:ClientID"`
	Project  *Project      `json:"project,omitempty" gorm:"foreignKey:ProjectID"`
	Items    []InvoiceItem `json:"items,omitempty" gorm:"foreignKey:InvoiceID;constraint:OnDelete:CASCADE"`
	Payments []Payment     `json:"payments,omitempty" gorm:"foreignKey:InvoiceID"`
}

// InvoiceItem represents a line item in an invoice.
// Amount is always recomputed server-side as Quantity * Rate.
type InvoiceItem struct {
	ID          string      `json:"id" gorm:"type:uuid;primaryKey"`
	InvoiceID   string      `json:"invoice_id" gorm:"type:uuid;index;not null"`
	ServiceType ServiceType `json:"service_type" gorm:"default:'video'"`
	Description string      `json:"description" gorm:"not null"`
	Quantity    float64     `json:"quantity" gorm:"default:1"`
	Rate        float64     `json:"rate" gorm:"not null"`
	Amount      float64     `json:"amount" gorm:"not null"`
	SortOrder   int         `json:"sort_order" gorm:"default:0"`
	CreatedAt   time.Time   `json:"created_at"`
}

// Payment is an append-only audit record of money received against an
// invoice. Payments are never updated or deleted.
type Payment struct {
	ID              string    `json:"id" gorm:"type:uuid;primaryKey"`
	InvoiceID       string    `json:"invoice_id" gorm:"type:uuid;index;not null"`
	Amount          float64   `json:"amount" gorm:"not null"`
	PaymentDate     time.Time `json:"payment_date" gorm:"not null"`
	PaymentMethod   string    `json:"payment_method"`
	ReferenceNumber string    `json:"reference_number"`
	Notes           string    `json:"notes"`
	RecordedBy      string    `json:"recorded_by" gorm:"type:uuid;index"`
	CreatedAt       time.Time `json:"created_at"`

	Invoice Invoice `json:"-" gorm:"foreignKey:InvoiceID"`
}

// InvoiceSequence is a single-row counter table backing invoice numbering.
// Incrementing it inside the invoice-create transaction makes numbers
// strictly increasing and never reused, even under concurrent creation.
type InvoiceSequence struct {
	ID        int       `json:"id" gorm:"primaryKey"`
	NextValue int64     `json:"next_value" gorm:"not null"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CompanySettings holds the issuer identity printed on invoice PDFs.
// Singleton row, editable by admins only.
type CompanySettings struct {
	ID          int       `json:"id" gorm:"primaryKey"`
	CompanyName string    `json:"company_name" gorm:"not null"`
	Address     string    `json:"address"`
	Email       string    `json:"email"`
	Phone       string    `json:"phone"`
	TaxID       string    `json:"tax_id"`
	Website     string    `json:"website"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// FileObject is metadata for an uploaded file stored on disk
type FileObject struct {
	ID          string    `json:"id" gorm:"type:uuid;primaryKey"`
	ProjectID   string    `json:"project_id" gorm:"type:uuid;index"`
	UploadedBy  string    `json:"uploaded_by" gorm:"type:uuid;index;not null"`
	Name        string    `json:"name" gorm:"not null"`
	Size        int64     `json:"size"`
	ContentType string    `json:"content_type"`
	StoragePath string    `json:"-" gorm:"not null"`
	CreatedAt   time.Time `json:"created_at"`
}

// RefreshToken for JWT refresh
type RefreshToken struct {
	ID        string    `json:"id" gorm:"type:uuid;primaryKey"`
	UserID    string    `json:"user_id" gorm:"type:uuid;index;not null"`
	Token     string    `json:"token" gorm:"uniqueIndex;not null"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

// AuditLog for tracking changes
type AuditLog struct {
	ID         string    `json:"id" gorm:"type:uuid;primaryKey"`
	UserID     string    `json:"user_id" gorm:"type:uuid;index"`
	Action     string    `json:"action" gorm:"not null"`
	EntityType string    `json:"entity_type"` // invoice, client, project, payment
	EntityID   string    `json:"entity_id"`
	Details    string    `json:"details"` // JSON blob
	CreatedAt  time.Time `json:"created_at"`
}

// BeforeCreate hooks for UUID assignment
func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.New().String()
	}
	return nil
}

func (c *Client) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	return nil
}

func (p *Project) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	return nil
}

func (m *Milestone) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	return nil
}

func (i *Invoice) BeforeCreate(tx *gorm.DB) error {
	if i.ID == "" {
		i.ID = uuid.New().String()
	}
	return nil
}

func (i *InvoiceItem) BeforeCreate(tx *gorm.DB) error {
	if i.ID == "" {
		i.ID = uuid.New().String()
	}
	return nil
}

func (p *Payment) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	return nil
}

func (f *FileObject) BeforeCreate(tx *gorm.DB) error {
	if f.ID == "" {
		f.ID = uuid.New().String()
	}
	return nil
}
