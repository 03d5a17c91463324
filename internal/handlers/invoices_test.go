package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"agencydesk/internal/cache"
	"agencydesk/internal/config"
	"agencydesk/internal/database"
	"agencydesk/internal/logging"
	"agencydesk/internal/middleware"
	"agencydesk/internal/models"
	"agencydesk/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	testRouter  *gin.Engine
	testDB      *database.DB
	testAuth    *services.AuthService
	testClients *services.ClientService
	testInvoice *services.InvoiceService

	staffToken       string
	adminToken       string
	ownerToken       string
	otherClientToken string

	ownerClient *models.Client
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{
		Database: config.DatabaseConfig{
			Driver: "sqlite",
			DSN:    ":memory:",
		},
		JWT: config.JWTConfig{
			Secret:        "test-secret-key",
			Expiry:        time.Hour,
			RefreshExpiry: 24 * time.Hour,
			CookieName:    "agencydesk_session",
		},
		Upload: config.UploadConfig{
			Dir:          "/tmp/agencydesk-test-uploads",
			MaxSizeBytes: 1 << 20,
		},
	}

	log := logging.NewNop()

	var err error
	testDB, err = database.New(&cfg.Database, log)
	if err != nil {
		panic("failed to connect to test database: " + err.Error())
	}
	if err := testDB.Migrate(); err != nil {
		panic("failed to run migrations: " + err.Error())
	}

	statsCache := cache.New(&config.RedisConfig{Enabled: false}, log)

	testAuth = services.NewAuthService(testDB, cfg, log)
	testClients = services.NewClientService(testDB)
	projectService := services.NewProjectService(testDB)
	testInvoice = services.NewInvoiceService(testDB, log)
	pdfService := services.NewPDFService()
	fileService := services.NewFileService(testDB, cfg, log)
	settingsService := services.NewSettingsService(testDB)
	dashboardService := services.NewDashboardService(testDB, statsCache)
	reportService := services.NewReportService(testDB)

	handler := NewHandler(cfg, log,
		testAuth, testClients, projectService, testInvoice,
		pdfService, fileService, settingsService, dashboardService, reportService)

	// Issuer identity for PDF rendering
	if _, err := settingsService.UpdateSettings(&services.UpdateSettingsRequest{
		CompanyName: "AgencyDesk Studio",
	}); err != nil {
		panic("failed to seed settings: " + err.Error())
	}

	staffToken = signupToken("staff@handlers.test", models.RoleProjectManager)
	adminToken = signupToken("admin@handlers.test", models.RoleAdmin)
	ownerToken = signupToken("owner@handlers.test", models.RoleClient)
	otherClientToken = signupToken("rival@handlers.test", models.RoleClient)

	ownerClient, err = testClients.CreateClient(&services.CreateClientRequest{
		CompanyName: "Owner Films",
		Email:       "owner@handlers.test",
	})
	if err != nil {
		panic("failed to seed client: " + err.Error())
	}
	if _, err := testClients.CreateClient(&services.CreateClientRequest{
		CompanyName: "Rival Films",
		Email:       "rival@handlers.test",
	}); err != nil {
		panic("failed to seed client: " + err.Error())
	}

	anyRole := middleware.RequireAuth(testAuth, cfg)
	staffOnly := middleware.RequireAuth(testAuth, cfg, models.RoleAdmin, models.RoleProjectManager)
	adminOnly := middleware.RequireAuth(testAuth, cfg, models.RoleAdmin)

	testRouter = gin.New()
	api := testRouter.Group("/api/v1")
	{
		api.POST("/invoices", staffOnly, handler.CreateInvoice)
		api.GET("/invoices/:id", anyRole, handler.GetInvoice)
		api.POST("/invoices/:id/send", staffOnly, handler.SendInvoice)
		api.POST("/invoices/:id/payments", staffOnly, handler.RecordPayment)
		api.DELETE("/invoices/:id", adminOnly, handler.DeleteInvoice)
		api.GET("/invoices/:id/pdf", anyRole, handler.DownloadInvoicePDF)
	}

	m.Run()
}

func signupToken(email string, role models.Role) string {
	signupRole := role
	if role == models.RoleAdmin {
		signupRole = models.RoleProjectManager
	}
	resp, err := testAuth.Signup(&services.SignupRequest{
		Email:    email,
		Password: "password123",
		Name:     "Handler User",
		Role:     string(signupRole),
	})
	if err != nil {
		panic("signup failed: " + err.Error())
	}
	if role == models.RoleAdmin {
		if _, err := testAuth.ChangeRole("bootstrap", resp.User.ID, string(models.RoleAdmin)); err != nil {
			panic("promote failed: " + err.Error())
		}
		fresh, err := testAuth.Login(email, "password123")
		if err != nil {
			panic("relogin failed: " + err.Error())
		}
		return fresh.AccessToken
	}
	return resp.AccessToken
}

func doJSON(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	testRouter.ServeHTTP(w, req)
	return w
}

func createSentInvoice(t *testing.T) *models.Invoice {
	t.Helper()
	invoice, err := testInvoice.CreateInvoice(&services.CreateInvoiceRequest{
		ClientID:  ownerClient.ID,
		IssueDate: time.Now(),
		DueDate:   time.Now().AddDate(0, 0, 14),
		TaxRate:   10,
		Status:    "sent",
		Items: []services.InvoiceItemRequest{
			{Description: "Concept & script", Quantity: 1, Rate: 3000},
			{Description: "Shoot day", Quantity: 1, Rate: 2000},
		},
	})
	require.NoError(t, err)
	return invoice
}

func TestCreateInvoiceEndpoint(t *testing.T) {
	w := doJSON(t, http.MethodPost, "/api/v1/invoices", staffToken, gin.H{
		"client_id":  ownerClient.ID,
		"issue_date": time.Now().Format(time.RFC3339),
		"due_date":   time.Now().AddDate(0, 0, 14).Format(time.RFC3339),
		"tax_rate":   10,
		"items": []gin.H{
			{"description": "Concept & script", "quantity": 1, "rate": 3000},
			{"description": "Shoot day", "quantity": 1, "rate": 2000},
		},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var resp struct {
		Data models.Invoice `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 5500.0, resp.Data.Total)
	assert.NotEmpty(t, resp.Data.InvoiceNumber)

	// Client role may not create invoices
	w = doJSON(t, http.MethodPost, "/api/v1/invoices", ownerToken, gin.H{})
	assert.Equal(t, http.StatusForbidden, w.Code)

	// Anonymous gets 401
	w = doJSON(t, http.MethodPost, "/api/v1/invoices", "", gin.H{})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestDownloadPDFOwnership(t *testing.T) {
	invoice := createSentInvoice(t)
	path := fmt.Sprintf("/api/v1/invoices/%s/pdf", invoice.ID)

	// Owner gets the PDF
	w := doJSON(t, http.MethodGet, path, ownerToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.Equal(t,
		fmt.Sprintf("attachment; filename=invoice-%s.pdf", invoice.InvoiceNumber),
		w.Header().Get("Content-Disposition"))
	assert.Equal(t, "%PDF", w.Body.String()[:4])

	// A different client gets 403
	w = doJSON(t, http.MethodGet, path, otherClientToken, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	// Staff can always fetch
	w = doJSON(t, http.MethodGet, path, staffToken, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	// Missing invoice is 404
	w = doJSON(t, http.MethodGet, "/api/v1/invoices/no-such-id/pdf", staffToken, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestClientCannotSeeDraftInvoice(t *testing.T) {
	draft, err := testInvoice.CreateInvoice(&services.CreateInvoiceRequest{
		ClientID:  ownerClient.ID,
		IssueDate: time.Now(),
		DueDate:   time.Now().AddDate(0, 0, 14),
		Items: []services.InvoiceItemRequest{
			{Description: "Unannounced work", Quantity: 1, Rate: 100},
		},
	})
	require.NoError(t, err)

	w := doJSON(t, http.MethodGet, "/api/v1/invoices/"+draft.ID, ownerToken, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = doJSON(t, http.MethodGet, "/api/v1/invoices/"+draft.ID+"/pdf", ownerToken, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestRecordPaymentEndpointValidation(t *testing.T) {
	invoice := createSentInvoice(t)
	path := fmt.Sprintf("/api/v1/invoices/%s/payments", invoice.ID)

	// Missing amount
	w := doJSON(t, http.MethodPost, path, staffToken, gin.H{
		"payment_date": time.Now().Format(time.RFC3339),
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Missing payment_date
	w = doJSON(t, http.MethodPost, path, staffToken, gin.H{
		"amount": 100,
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Valid payment settles the invoice
	w = doJSON(t, http.MethodPost, path, staffToken, gin.H{
		"amount":       5500,
		"payment_date": time.Now().Format(time.RFC3339),
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		Data models.Invoice `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, models.InvoiceStatusPaid, resp.Data.Status)
	assert.Equal(t, 5500.0, resp.Data.PaidAmount)
}

func TestDeleteInvoiceEndpoint(t *testing.T) {
	invoice := createSentInvoice(t)
	path := "/api/v1/invoices/" + invoice.ID

	// Staff (non-admin) may not delete
	w := doJSON(t, http.MethodDelete, path, staffToken, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	// Admin can
	w = doJSON(t, http.MethodDelete, path, adminToken, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	// Deleting an invoice with payments is a conflict
	paidInvoice := createSentInvoice(t)
	_, err := testInvoice.RecordPayment(paidInvoice.ID, &services.RecordPaymentRequest{
		Amount:      100,
		PaymentDate: time.Now(),
	}, "tester")
	require.NoError(t, err)

	w = doJSON(t, http.MethodDelete, "/api/v1/invoices/"+paidInvoice.ID, adminToken, nil)
	assert.Equal(t, http.StatusConflict, w.Code)
}
