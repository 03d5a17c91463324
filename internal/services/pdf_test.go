package services

import (
	"testing"
	"time"

	"agencydesk/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSettings() *models.CompanySettings {
	return &models.CompanySettings{
		ID:          1,
		CompanyName: "AgencyDesk Studio",
		Address:     "42 Frame Street",
		Email:       "studio@agencydesk.test",
		Phone:       "+1 555 0100",
		TaxID:       "TAX-123",
	}
}

func TestRenderInvoiceProducesPDF(t *testing.T) {
	client := createTestClient(t, "PDF Co", "pdf@co.test")
	invoice := createTestInvoice(t, client.ID, []InvoiceItemRequest{
		{Description: "Concept & script", Quantity: 1, Rate: 3000, ServiceType: "video"},
		{Description: "Shoot day", Quantity: 1, Rate: 2000, ServiceType: "video"},
	}, 10, 0)

	loaded, err := invoiceService.GetInvoiceByID(invoice.ID)
	require.NoError(t, err)

	data, err := pdfService.RenderInvoice(loaded, testSettings())
	require.NoError(t, err)
	require.NotEmpty(t, data)
	assert.Equal(t, "%PDF", string(data[:4]), "output must start with the PDF magic")
}

func TestRenderInvoiceDeterministic(t *testing.T) {
	client := createTestClient(t, "Deterministic Co", "deterministic@co.test")
	invoice := createTestInvoice(t, client.ID, []InvoiceItemRequest{
		{Description: "Grade", Quantity: 2, Rate: 450},
	}, 0, 0)

	loaded, err := invoiceService.GetInvoiceByID(invoice.ID)
	require.NoError(t, err)

	first, err := pdfService.RenderInvoice(loaded, testSettings())
	require.NoError(t, err)
	second, err := pdfService.RenderInvoice(loaded, testSettings())
	require.NoError(t, err)
	assert.Equal(t, len(first), len(second), "same input renders the same layout")
}

func TestRenderInvoiceFailsFast(t *testing.T) {
	_, err := pdfService.RenderInvoice(nil, testSettings())
	assert.ErrorIs(t, err, ErrPDFNilInvoice)

	noItems := &models.Invoice{
		InvoiceNumber: "INV-99999",
		IssueDate:     time.Now(),
		DueDate:       time.Now(),
	}
	_, err = pdfService.RenderInvoice(noItems, testSettings())
	assert.ErrorIs(t, err, ErrPDFNoItems)

	withItems := &models.Invoice{
		InvoiceNumber: "INV-99998",
		IssueDate:     time.Now(),
		DueDate:       time.Now(),
		Items:         []models.InvoiceItem{{Description: "Work", Quantity: 1, Rate: 1, Amount: 1}},
	}
	_, err = pdfService.RenderInvoice(withItems, nil)
	assert.ErrorIs(t, err, ErrPDFNoIssuer)

	_, err = pdfService.RenderInvoice(withItems, &models.CompanySettings{CompanyName: "   "})
	assert.ErrorIs(t, err, ErrPDFNoIssuer)
}
