package services

import (
	"fmt"
	"strconv"
	"strings"
	"testing"
	"time"

	"agencydesk/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestInvoice(t *testing.T, clientID string, items []InvoiceItemRequest, taxRate, discount float64) *models.Invoice {
	t.Helper()
	invoice, err := invoiceService.CreateInvoice(&CreateInvoiceRequest{
		ClientID:  clientID,
		IssueDate: time.Now(),
		DueDate:   time.Now().AddDate(0, 0, 14),
		TaxRate:   taxRate,
		Discount:  discount,
		Items:     items,
	})
	require.NoError(t, err)
	return invoice
}

func invoiceNumberValue(t *testing.T, number string) int {
	t.Helper()
	n, err := strconv.Atoi(strings.TrimPrefix(number, "INV-"))
	require.NoError(t, err, "invoice number %q", number)
	return n
}

func TestCreateInvoiceTotals(t *testing.T) {
	client := createTestClient(t, "Totals Co", "totals@co.test")

	// items [{1,3000},{1,2000}], tax 10%, no discount
	invoice := createTestInvoice(t, client.ID, []InvoiceItemRequest{
		{Description: "Concept & script", Quantity: 1, Rate: 3000},
		{Description: "Shoot day", Quantity: 1, Rate: 2000},
	}, 10, 0)

	assert.Equal(t, 5000.0, invoice.Subtotal)
	assert.Equal(t, 500.0, invoice.TaxAmount)
	assert.Equal(t, 5500.0, invoice.Total)
	assert.Equal(t, models.InvoiceStatusDraft, invoice.Status)
	assert.Len(t, invoice.Items, 2)

	// Line amounts recomputed server-side
	assert.Equal(t, 3000.0, invoice.Items[0].Amount)
	assert.Equal(t, 2000.0, invoice.Items[1].Amount)
}

func TestTotalsInvariantWithDiscountAndRounding(t *testing.T) {
	client := createTestClient(t, "Rounding Co", "rounding@co.test")

	invoice := createTestInvoice(t, client.ID, []InvoiceItemRequest{
		{Description: "Editing", Quantity: 3, Rate: 333.33},
		{Description: "Color grade", Quantity: 1.5, Rate: 240.10},
	}, 16, 150)

	// total == subtotal + tax - discount, to 2dp
	assert.InDelta(t, invoice.Subtotal+invoice.TaxAmount-invoice.Discount, invoice.Total, 0.005)
	assert.Equal(t, round2(invoice.Subtotal), invoice.Subtotal)
	assert.Equal(t, round2(invoice.TaxAmount), invoice.TaxAmount)
	assert.Equal(t, round2(invoice.Total), invoice.Total)
}

func TestCreateInvoiceValidation(t *testing.T) {
	client := createTestClient(t, "Validation Co", "validation@co.test")

	base := func() *CreateInvoiceRequest {
		return &CreateInvoiceRequest{
			ClientID:  client.ID,
			IssueDate: time.Now(),
			DueDate:   time.Now().AddDate(0, 0, 14),
			Items: []InvoiceItemRequest{
				{Description: "Work", Quantity: 1, Rate: 100},
			},
		}
	}

	// No items
	req := base()
	req.Items = nil
	_, err := invoiceService.CreateInvoice(req)
	assert.ErrorIs(t, err, ErrEmptyItems)

	// Zero quantity
	req = base()
	req.Items[0].Quantity = 0
	_, err = invoiceService.CreateInvoice(req)
	assert.ErrorIs(t, err, ErrInvalidQuantity)

	// Negative rate
	req = base()
	req.Items[0].Rate = -5
	_, err = invoiceService.CreateInvoice(req)
	assert.ErrorIs(t, err, ErrInvalidRate)

	// Discount larger than subtotal plus tax
	req = base()
	req.Discount = 500
	_, err = invoiceService.CreateInvoice(req)
	assert.ErrorIs(t, err, ErrInvalidDiscount)

	// Due before issue
	req = base()
	req.DueDate = req.IssueDate.AddDate(0, 0, -1)
	_, err = invoiceService.CreateInvoice(req)
	assert.Error(t, err)

	// Unknown client
	req = base()
	req.ClientID = "no-such-client"
	_, err = invoiceService.CreateInvoice(req)
	assert.ErrorIs(t, err, ErrClientNotFound)
}

func TestInvoiceNumbersSequential(t *testing.T) {
	client := createTestClient(t, "Sequence Co", "sequence@co.test")
	items := []InvoiceItemRequest{{Description: "Work", Quantity: 1, Rate: 100}}

	first := createTestInvoice(t, client.ID, items, 0, 0)
	prev := invoiceNumberValue(t, first.InvoiceNumber)
	assert.Equal(t, fmt.Sprintf("INV-%05d", prev), first.InvoiceNumber)

	for i := 0; i < 5; i++ {
		inv := createTestInvoice(t, client.ID, items, 0, 0)
		n := invoiceNumberValue(t, inv.InvoiceNumber)
		assert.Equal(t, prev+1, n, "numbers must be strictly sequential")
		prev = n
	}
}

func TestInvoiceNumbersNotReusedAfterDeletion(t *testing.T) {
	client := createTestClient(t, "NoReuse Co", "noreuse@co.test")
	items := []InvoiceItemRequest{{Description: "Work", Quantity: 1, Rate: 100}}

	doomed := createTestInvoice(t, client.ID, items, 0, 0)
	deletedNumber := doomed.InvoiceNumber

	require.NoError(t, invoiceService.DeleteInvoice(doomed.ID, "tester"))

	next := createTestInvoice(t, client.ID, items, 0, 0)
	assert.NotEqual(t, deletedNumber, next.InvoiceNumber)
	assert.Greater(t,
		invoiceNumberValue(t, next.InvoiceNumber),
		invoiceNumberValue(t, deletedNumber))
}

func TestRecordPaymentFullAndPartial(t *testing.T) {
	client := createTestClient(t, "Payment Co", "payment@co.test")

	invoice := createTestInvoice(t, client.ID, []InvoiceItemRequest{
		{Description: "Concept & script", Quantity: 1, Rate: 3000},
		{Description: "Shoot day", Quantity: 1, Rate: 2000},
	}, 10, 0)
	require.Equal(t, 5500.0, invoice.Total)

	// Partial payment
	invoice, err := invoiceService.RecordPayment(invoice.ID, &RecordPaymentRequest{
		Amount:      2000,
		PaymentDate: time.Now(),
	}, "tester")
	require.NoError(t, err)
	assert.Equal(t, 2000.0, invoice.PaidAmount)
	assert.Equal(t, models.InvoiceStatusPartiallyPaid, invoice.Status)

	// Remainder settles it
	invoice, err = invoiceService.RecordPayment(invoice.ID, &RecordPaymentRequest{
		Amount:      3500,
		PaymentDate: time.Now(),
	}, "tester")
	require.NoError(t, err)
	assert.Equal(t, 5500.0, invoice.PaidAmount)
	assert.Equal(t, models.InvoiceStatusPaid, invoice.Status)
	assert.True(t, invoice.PaidAt.Valid)

	// Client lifetime revenue followed the money
	refreshed, err := clientService.GetClient(client.ID)
	require.NoError(t, err)
	assert.Equal(t, 5500.0, refreshed.TotalRevenue)
}

func TestSinglePaymentOfTotalMarksPaid(t *testing.T) {
	client := createTestClient(t, "FullPay Co", "fullpay@co.test")

	invoice := createTestInvoice(t, client.ID, []InvoiceItemRequest{
		{Description: "Concept & script", Quantity: 1, Rate: 3000},
		{Description: "Shoot day", Quantity: 1, Rate: 2000},
	}, 10, 0)

	invoice, err := invoiceService.RecordPayment(invoice.ID, &RecordPaymentRequest{
		Amount:      5500,
		PaymentDate: time.Now(),
	}, "tester")
	require.NoError(t, err)
	assert.Equal(t, 5500.0, invoice.PaidAmount)
	assert.Equal(t, models.InvoiceStatusPaid, invoice.Status)
}

func TestRecordPaymentValidation(t *testing.T) {
	client := createTestClient(t, "PayValidation Co", "payvalidation@co.test")
	invoice := createTestInvoice(t, client.ID,
		[]InvoiceItemRequest{{Description: "Work", Quantity: 1, Rate: 100}}, 0, 0)

	_, err := invoiceService.RecordPayment(invoice.ID, &RecordPaymentRequest{
		Amount:      0,
		PaymentDate: time.Now(),
	}, "tester")
	assert.ErrorIs(t, err, ErrInvalidPayment)

	_, err = invoiceService.RecordPayment(invoice.ID, &RecordPaymentRequest{
		Amount: 50,
	}, "tester")
	assert.ErrorIs(t, err, ErrMissingPayDate)

	_, err = invoiceService.RecordPayment("no-such-invoice", &RecordPaymentRequest{
		Amount:      50,
		PaymentDate: time.Now(),
	}, "tester")
	assert.ErrorIs(t, err, ErrInvoiceNotFound)
}

func TestDeleteInvoiceCascadesToItems(t *testing.T) {
	client := createTestClient(t, "Cascade Co", "cascade@co.test")
	invoice := createTestInvoice(t, client.ID, []InvoiceItemRequest{
		{Description: "One", Quantity: 1, Rate: 100},
		{Description: "Two", Quantity: 1, Rate: 200},
	}, 0, 0)

	require.NoError(t, invoiceService.DeleteInvoice(invoice.ID, "tester"))

	_, err := invoiceService.GetInvoiceByID(invoice.ID)
	assert.ErrorIs(t, err, ErrInvoiceNotFound)

	var orphans int64
	testDB.Model(&models.InvoiceItem{}).Where("invoice_id = ?", invoice.ID).Count(&orphans)
	assert.Equal(t, int64(0), orphans, "no orphaned items after delete")
}

func TestDeleteInvoiceWithPaymentsRefused(t *testing.T) {
	client := createTestClient(t, "Audit Co", "audit@co.test")
	invoice := createTestInvoice(t, client.ID,
		[]InvoiceItemRequest{{Description: "Work", Quantity: 1, Rate: 100}}, 0, 0)

	_, err := invoiceService.RecordPayment(invoice.ID, &RecordPaymentRequest{
		Amount:      50,
		PaymentDate: time.Now(),
	}, "tester")
	require.NoError(t, err)

	err = invoiceService.DeleteInvoice(invoice.ID, "tester")
	assert.ErrorIs(t, err, ErrInvoiceHasPayments)

	// Still there, audit trail intact
	kept, err := invoiceService.GetInvoiceByID(invoice.ID)
	require.NoError(t, err)
	assert.Len(t, kept.Payments, 1)
}

func TestUpdateInvoiceDraftOnly(t *testing.T) {
	client := createTestClient(t, "Update Co", "update@co.test")
	invoice := createTestInvoice(t, client.ID,
		[]InvoiceItemRequest{{Description: "Work", Quantity: 1, Rate: 100}}, 0, 0)

	// Draft is editable; totals re-derive from the new items
	updated, err := invoiceService.UpdateInvoice(invoice.ID, &UpdateInvoiceRequest{
		Items: []InvoiceItemRequest{
			{Description: "More work", Quantity: 2, Rate: 150},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 300.0, updated.Subtotal)
	assert.Equal(t, 300.0, updated.Total)

	_, err = invoiceService.SendInvoice(invoice.ID, "tester")
	require.NoError(t, err)

	// Sent invoices are immutable
	_, err = invoiceService.UpdateInvoice(invoice.ID, &UpdateInvoiceRequest{
		Items: []InvoiceItemRequest{
			{Description: "Late edit", Quantity: 1, Rate: 1},
		},
	})
	assert.ErrorIs(t, err, ErrCannotEditPaid)
}

func TestSendAndViewedTransitions(t *testing.T) {
	client := createTestClient(t, "SendView Co", "sendview@co.test")
	invoice := createTestInvoice(t, client.ID,
		[]InvoiceItemRequest{{Description: "Work", Quantity: 1, Rate: 100}}, 0, 0)

	sent, err := invoiceService.SendInvoice(invoice.ID, "tester")
	require.NoError(t, err)
	assert.Equal(t, models.InvoiceStatusSent, sent.Status)
	assert.True(t, sent.SentAt.Valid)

	_, err = invoiceService.SendInvoice(invoice.ID, "tester")
	assert.ErrorIs(t, err, ErrAlreadySent)

	viewed, err := invoiceService.MarkViewed(invoice.ID)
	require.NoError(t, err)
	assert.Equal(t, models.InvoiceStatusViewed, viewed.Status)

	// Idempotent past sent
	viewed, err = invoiceService.MarkViewed(invoice.ID)
	require.NoError(t, err)
	assert.Equal(t, models.InvoiceStatusViewed, viewed.Status)
}

func TestCancelInvoice(t *testing.T) {
	client := createTestClient(t, "Cancel Co", "cancel@co.test")
	invoice := createTestInvoice(t, client.ID,
		[]InvoiceItemRequest{{Description: "Work", Quantity: 1, Rate: 100}}, 0, 0)

	require.NoError(t, invoiceService.CancelInvoice(invoice.ID, "tester"))

	// Paid invoices cannot be cancelled
	paid := createTestInvoice(t, client.ID,
		[]InvoiceItemRequest{{Description: "Work", Quantity: 1, Rate: 100}}, 0, 0)
	_, err := invoiceService.RecordPayment(paid.ID, &RecordPaymentRequest{
		Amount:      100,
		PaymentDate: time.Now(),
	}, "tester")
	require.NoError(t, err)

	err = invoiceService.CancelInvoice(paid.ID, "tester")
	assert.ErrorIs(t, err, ErrCannotCancelPaid)
}

func TestMarkOverdueInvoices(t *testing.T) {
	client := createTestClient(t, "Overdue Co", "overdue@co.test")

	invoice, err := invoiceService.CreateInvoice(&CreateInvoiceRequest{
		ClientID:  client.ID,
		IssueDate: time.Now().AddDate(0, 0, -30),
		DueDate:   time.Now().AddDate(0, 0, -10),
		Status:    "sent",
		Items:     []InvoiceItemRequest{{Description: "Work", Quantity: 1, Rate: 100}},
	})
	require.NoError(t, err)

	require.NoError(t, invoiceService.MarkOverdueInvoices())

	swept, err := invoiceService.GetInvoiceByID(invoice.ID)
	require.NoError(t, err)
	assert.Equal(t, models.InvoiceStatusOverdue, swept.Status)
}

func TestOwnedByClientEmail(t *testing.T) {
	client := createTestClient(t, "Owner Co", "owner@co.test")
	invoice := createTestInvoice(t, client.ID,
		[]InvoiceItemRequest{{Description: "Work", Quantity: 1, Rate: 100}}, 0, 0)

	loaded, err := invoiceService.GetInvoiceByID(invoice.ID)
	require.NoError(t, err)

	assert.True(t, invoiceService.OwnedByClientEmail(loaded, "owner@co.test"))
	assert.True(t, invoiceService.OwnedByClientEmail(loaded, "OWNER@CO.TEST"))
	assert.False(t, invoiceService.OwnedByClientEmail(loaded, "other@co.test"))
	assert.False(t, invoiceService.OwnedByClientEmail(loaded, ""))
}

func TestListInvoicesScopedByClientEmail(t *testing.T) {
	mine := createTestClient(t, "Mine Co", "mine@scope.test")
	other := createTestClient(t, "Other Co", "other@scope.test")

	createTestInvoice(t, mine.ID, []InvoiceItemRequest{{Description: "A", Quantity: 1, Rate: 10}}, 0, 0)
	createTestInvoice(t, mine.ID, []InvoiceItemRequest{{Description: "B", Quantity: 1, Rate: 20}}, 0, 0)
	createTestInvoice(t, other.ID, []InvoiceItemRequest{{Description: "C", Quantity: 1, Rate: 30}}, 0, 0)

	invoices, total, err := invoiceService.ListInvoices(InvoiceFilter{ClientEmail: "mine@scope.test"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	for _, inv := range invoices {
		assert.Equal(t, mine.ID, inv.ClientID)
	}
}
