package services

import (
	"errors"
	"fmt"
	"strings"

	"agencydesk/internal/database"
	"agencydesk/internal/models"

	"gorm.io/gorm"
)

var ErrSettingsIncomplete = errors.New("company name is required")

// SettingsService manages the singleton issuer identity printed on
// invoice PDFs.
type SettingsService struct {
	db *database.DB
}

func NewSettingsService(db *database.DB) *SettingsService {
	return &SettingsService{db: db}
}

// GetSettings returns the company settings row, or an empty record when
// none has been saved yet.
func (s *SettingsService) GetSettings() (*models.CompanySettings, error) {
	var settings models.CompanySettings
	err := s.db.First(&settings, "id = ?", 1).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &models.CompanySettings{ID: 1}, nil
		}
		return nil, fmt.Errorf("failed to fetch settings: %w", err)
	}
	return &settings, nil
}

// UpdateSettings upserts the singleton row
func (s *SettingsService) UpdateSettings(req *UpdateSettingsRequest) (*models.CompanySettings, error) {
	if strings.TrimSpace(req.CompanyName) == "" {
		return nil, ErrSettingsIncomplete
	}

	settings := &models.CompanySettings{
		ID:          1,
		CompanyName: strings.TrimSpace(req.CompanyName),
		Address:     strings.TrimSpace(req.Address),
		Email:       strings.TrimSpace(req.Email),
		Phone:       strings.TrimSpace(req.Phone),
		TaxID:       strings.TrimSpace(req.TaxID),
		Website:     strings.TrimSpace(req.Website),
	}

	if err := s.db.Save(settings).Error; err != nil {
		return nil, fmt.Errorf("failed to save settings: %w", err)
	}

	return settings, nil
}

type UpdateSettingsRequest struct {
	CompanyName string `json:"company_name" binding:"required"`
	Address     string `json:"address"`
	Email       string `json:"email"`
	Phone       string `json:"phone"`
	TaxID       string `json:"tax_id"`
	Website     string `json:"website"`
}
