package services

import (
	"testing"
	"time"

	"agencydesk/internal/config"
	"agencydesk/internal/database"
	"agencydesk/internal/logging"
	"agencydesk/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	testDB          *database.DB
	testCfg         *config.Config
	authService     *AuthService
	clientService   *ClientService
	projectService  *ProjectService
	invoiceService  *InvoiceService
	pdfService      *PDFService
	settingsService *SettingsService
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)

	testCfg = &config.Config{
		Database: config.DatabaseConfig{
			Driver:          "sqlite",
			DSN:             ":memory:",
			MaxOpenConns:    5,
			MaxIdleConns:    2,
			ConnMaxLifetime: 5 * time.Minute,
			QueryTimeout:    10 * time.Second,
		},
		JWT: config.JWTConfig{
			Secret:        "test-secret-key",
			Expiry:        24 * time.Hour,
			RefreshExpiry: 7 * 24 * time.Hour,
			CookieName:    "agencydesk_session",
		},
	}

	log := logging.NewNop()

	var err error
	testDB, err = database.New(&testCfg.Database, log)
	if err != nil {
		panic("failed to connect to test database: " + err.Error())
	}

	if err := testDB.Migrate(); err != nil {
		panic("failed to run migrations: " + err.Error())
	}

	authService = NewAuthService(testDB, testCfg, log)
	clientService = NewClientService(testDB)
	projectService = NewProjectService(testDB)
	invoiceService = NewInvoiceService(testDB, log)
	pdfService = NewPDFService()
	settingsService = NewSettingsService(testDB)

	m.Run()
}

// createTestClient is shared by the invoice and project tests
func createTestClient(t *testing.T, company, email string) *models.Client {
	t.Helper()
	client, err := clientService.CreateClient(&CreateClientRequest{
		CompanyName:   company,
		ContactPerson: "Test Person",
		Email:         email,
	})
	require.NoError(t, err)
	return client
}

// ==================== AUTH TESTS ====================

func TestSignup(t *testing.T) {
	req := SignupRequest{
		Email:    "pm@example.com",
		Password: "password123",
		Name:     "Project Manager",
		Role:     "project_manager",
	}

	resp, err := authService.Signup(&req)
	require.NoError(t, err)
	assert.NotEmpty(t, resp.AccessToken)
	assert.NotEmpty(t, resp.RefreshToken)
	assert.Equal(t, models.RoleProjectManager, resp.User.Role)

	// Duplicate email
	_, err = authService.Signup(&req)
	assert.ErrorIs(t, err, ErrEmailExists)

	// Short password
	_, err = authService.Signup(&SignupRequest{
		Email:    "short@example.com",
		Password: "123",
		Name:     "Short",
		Role:     "client",
	})
	assert.ErrorIs(t, err, ErrWeakPassword)

	// Invalid email
	_, err = authService.Signup(&SignupRequest{
		Email:    "not-an-email",
		Password: "password123",
		Name:     "Bad",
		Role:     "client",
	})
	assert.ErrorIs(t, err, ErrInvalidEmail)
}

func TestSignupRejectsAdminRole(t *testing.T) {
	_, err := authService.Signup(&SignupRequest{
		Email:    "wannabe-admin@example.com",
		Password: "password123",
		Name:     "Sneaky",
		Role:     "admin",
	})
	assert.ErrorIs(t, err, ErrInvalidRole)

	_, err = authService.Signup(&SignupRequest{
		Email:    "norole@example.com",
		Password: "password123",
		Name:     "No Role",
		Role:     "superuser",
	})
	assert.ErrorIs(t, err, ErrInvalidRole)
}

func TestLogin(t *testing.T) {
	_, err := authService.Signup(&SignupRequest{
		Email:    "login@example.com",
		Password: "password123",
		Name:     "Login User",
		Role:     "client",
	})
	require.NoError(t, err)

	resp, err := authService.Login("login@example.com", "password123")
	require.NoError(t, err)
	assert.NotEmpty(t, resp.AccessToken)

	_, err = authService.Login("login@example.com", "wrong-password")
	assert.ErrorIs(t, err, ErrWrongPassword)

	_, err = authService.Login("ghost@example.com", "password123")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestLoginProvisionsMissingRole(t *testing.T) {
	// A user row with an empty role gets project_manager at login, the
	// one sanctioned auto-provisioning path.
	resp, err := authService.Signup(&SignupRequest{
		Email:    "legacy@example.com",
		Password: "password123",
		Name:     "Legacy User",
		Role:     "client",
	})
	require.NoError(t, err)

	require.NoError(t, testDB.Model(&models.User{}).
		Where("id = ?", resp.User.ID).
		Update("role", "").Error)

	loginResp, err := authService.Login("legacy@example.com", "password123")
	require.NoError(t, err)
	assert.Equal(t, models.RoleProjectManager, loginResp.User.Role)

	// Persisted, not just in the response
	user, err := authService.GetUserByID(resp.User.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RoleProjectManager, user.Role)
}

func TestValidateToken(t *testing.T) {
	resp, err := authService.Signup(&SignupRequest{
		Email:    "token@example.com",
		Password: "password123",
		Name:     "Token User",
		Role:     "client",
	})
	require.NoError(t, err)

	claims, err := authService.ValidateToken(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, resp.User.ID, claims.UserID)
	assert.Equal(t, models.RoleClient, claims.Role)

	_, err = authService.ValidateToken("garbage.token.here")
	assert.Error(t, err)

	_, err = authService.ValidateToken("")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestRefreshTokenRotation(t *testing.T) {
	resp, err := authService.Signup(&SignupRequest{
		Email:    "refresh@example.com",
		Password: "password123",
		Name:     "Refresh User",
		Role:     "client",
	})
	require.NoError(t, err)

	fresh, err := authService.RefreshToken(resp.RefreshToken)
	require.NoError(t, err)
	assert.NotEmpty(t, fresh.AccessToken)

	// Old refresh token is single use
	_, err = authService.RefreshToken(resp.RefreshToken)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestChangeRole(t *testing.T) {
	resp, err := authService.Signup(&SignupRequest{
		Email:    "promote-me@example.com",
		Password: "password123",
		Name:     "Promotable",
		Role:     "client",
	})
	require.NoError(t, err)

	user, err := authService.ChangeRole("admin-id", resp.User.ID, "admin")
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, user.Role)

	_, err = authService.ChangeRole("admin-id", resp.User.ID, "emperor")
	assert.ErrorIs(t, err, ErrInvalidRole)

	_, err = authService.ChangeRole("admin-id", "no-such-user", "client")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

// ==================== CLIENT TESTS ====================

func TestClientCRUD(t *testing.T) {
	client := createTestClient(t, "Acme Studios", "billing@acme.test")
	assert.Equal(t, models.ClientStatusActive, client.Status)
	assert.Equal(t, "billing@acme.test", client.Email)

	fetched, err := clientService.GetClient(client.ID)
	require.NoError(t, err)
	assert.Equal(t, "Acme Studios", fetched.CompanyName)

	newName := "Acme Studios GmbH"
	updated, err := clientService.UpdateClient(client.ID, &UpdateClientRequest{
		CompanyName: &newName,
	})
	require.NoError(t, err)
	assert.Equal(t, newName, updated.CompanyName)

	badStatus := "frozen"
	_, err = clientService.UpdateClient(client.ID, &UpdateClientRequest{Status: &badStatus})
	assert.Error(t, err)

	_, err = clientService.GetClient("missing-id")
	assert.ErrorIs(t, err, ErrClientNotFound)
}

func TestGetClientByEmailIsCaseInsensitiveOnLookup(t *testing.T) {
	createTestClient(t, "CasedCo", "Upper@Cased.Test")

	// Emails are normalized to lower case on write
	client, err := clientService.GetClientByEmail("upper@cased.test")
	require.NoError(t, err)
	assert.Equal(t, "CasedCo", client.CompanyName)
}

func TestDeleteClientWithInvoicesRefused(t *testing.T) {
	client := createTestClient(t, "Sticky Client", "sticky@client.test")

	_, err := invoiceService.CreateInvoice(&CreateInvoiceRequest{
		ClientID:  client.ID,
		IssueDate: time.Now(),
		DueDate:   time.Now().AddDate(0, 0, 14),
		Items: []InvoiceItemRequest{
			{Description: "Edit session", Quantity: 1, Rate: 100},
		},
	})
	require.NoError(t, err)

	err = clientService.DeleteClient(client.ID)
	assert.ErrorIs(t, err, ErrClientHasInvoices)
}

// ==================== PROJECT TESTS ====================

func TestProjectLifecycle(t *testing.T) {
	client := createTestClient(t, "Lifecycle Films", "lifecycle@films.test")

	project, err := projectService.CreateProject(&CreateProjectRequest{
		ClientID:    client.ID,
		Name:        "Brand Film",
		ServiceType: "video",
		Budget:      12000,
	})
	require.NoError(t, err)
	assert.Equal(t, models.ProjectStatusPlanning, project.Status)

	// Client project counter moved
	refreshed, err := clientService.GetClient(client.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), refreshed.TotalProjects)

	// planning -> in_progress -> in_review -> completed
	project, err = projectService.ChangeStatus(project.ID, "in_progress")
	require.NoError(t, err)
	project, err = projectService.ChangeStatus(project.ID, "in_review")
	require.NoError(t, err)
	project, err = projectService.ChangeStatus(project.ID, "completed")
	require.NoError(t, err)
	assert.Equal(t, 100, project.ProgressPercentage)

	// Terminal state
	_, err = projectService.ChangeStatus(project.ID, "in_progress")
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestProjectInvalidTransitions(t *testing.T) {
	client := createTestClient(t, "Jumpy Films", "jumpy@films.test")
	project, err := projectService.CreateProject(&CreateProjectRequest{
		ClientID: client.ID,
		Name:     "Short Cut",
	})
	require.NoError(t, err)

	// planning cannot jump straight to completed
	_, err = projectService.ChangeStatus(project.ID, "completed")
	assert.ErrorIs(t, err, ErrInvalidTransition)

	// but can be cancelled
	_, err = projectService.ChangeStatus(project.ID, "cancelled")
	assert.NoError(t, err)
}

func TestSetProgress(t *testing.T) {
	client := createTestClient(t, "Progress Co", "progress@co.test")
	project, err := projectService.CreateProject(&CreateProjectRequest{
		ClientID: client.ID,
		Name:     "Cutting Room",
	})
	require.NoError(t, err)

	project, err = projectService.SetProgress(project.ID, 55)
	require.NoError(t, err)
	assert.Equal(t, 55, project.ProgressPercentage)

	_, err = projectService.SetProgress(project.ID, 101)
	assert.ErrorIs(t, err, ErrInvalidProgress)
	_, err = projectService.SetProgress(project.ID, -1)
	assert.ErrorIs(t, err, ErrInvalidProgress)
}

func TestMilestoneLifecycle(t *testing.T) {
	client := createTestClient(t, "Milestone Media", "milestone@media.test")
	project, err := projectService.CreateProject(&CreateProjectRequest{
		ClientID: client.ID,
		Name:     "Docu Series",
	})
	require.NoError(t, err)

	due := time.Now().AddDate(0, 0, 7)
	milestone, err := projectService.AddMilestone(project.ID, &CreateMilestoneRequest{
		Title:   "First cut",
		DueDate: &due,
	})
	require.NoError(t, err)
	assert.Equal(t, models.MilestoneStatusPending, milestone.Status)

	// pending cannot jump to completed
	_, err = projectService.ChangeMilestoneStatus(milestone.ID, "completed")
	assert.ErrorIs(t, err, ErrInvalidTransition)

	milestone, err = projectService.ChangeMilestoneStatus(milestone.ID, "in_progress")
	require.NoError(t, err)
	milestone, err = projectService.ChangeMilestoneStatus(milestone.ID, "completed")
	require.NoError(t, err)
	assert.True(t, milestone.CompletedAt.Valid)
}

// ==================== SETTINGS TESTS ====================

func TestCompanySettingsSingleton(t *testing.T) {
	// Empty until saved
	settings, err := settingsService.GetSettings()
	require.NoError(t, err)

	_, err = settingsService.UpdateSettings(&UpdateSettingsRequest{CompanyName: "  "})
	assert.ErrorIs(t, err, ErrSettingsIncomplete)

	settings, err = settingsService.UpdateSettings(&UpdateSettingsRequest{
		CompanyName: "AgencyDesk Studio",
		Email:       "studio@agencydesk.test",
		TaxID:       "TAX-123",
	})
	require.NoError(t, err)
	assert.Equal(t, 1, settings.ID)

	// Second save overwrites the same row
	settings, err = settingsService.UpdateSettings(&UpdateSettingsRequest{
		CompanyName: "AgencyDesk Studio Ltd",
	})
	require.NoError(t, err)

	var count int64
	testDB.Model(&models.CompanySettings{}).Count(&count)
	assert.Equal(t, int64(1), count)
	assert.Equal(t, "AgencyDesk Studio Ltd", settings.CompanyName)
}
