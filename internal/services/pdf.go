package services

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"agencydesk/internal/models"

	"github.com/jung-kurt/gofpdf"
	qrcode "github.com/skip2/go-qrcode"
)

var (
	ErrPDFNoItems    = errors.New("cannot render invoice without items")
	ErrPDFNoIssuer   = errors.New("company settings are missing a company name")
	ErrPDFNilInvoice = errors.New("nil invoice")
)

// PDFService renders invoices as PDF documents. Rendering is
// deterministic: the same invoice and settings always produce the same
// layout, with line items in insertion order.
type PDFService struct{}

func NewPDFService() *PDFService {
	return &PDFService{}
}

var serviceTypeLabels = map[models.ServiceType]string{
	models.ServiceTypeVideo:  "Video Production",
	models.ServiceTypeSocial: "Social Media",
	models.ServiceTypeDesign: "Design & Branding",
}

// RenderInvoice produces the PDF byte buffer for an invoice. It fails
// fast on incomplete input and never returns a partially written buffer.
func (s *PDFService) RenderInvoice(invoice *models.Invoice, settings *models.CompanySettings) ([]byte, error) {
	if invoice == nil {
		return nil, ErrPDFNilInvoice
	}
	if len(invoice.Items) == 0 {
		return nil, ErrPDFNoItems
	}
	if settings == nil || strings.TrimSpace(settings.CompanyName) == "" {
		return nil, ErrPDFNoIssuer
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetAutoPageBreak(true, 20)
	pdf.AddPage()

	drawHeader(pdf, invoice, settings)
	drawParties(pdf, invoice, settings)
	drawItemsTable(pdf, invoice)
	drawTotals(pdf, invoice)
	drawNotes(pdf, invoice)
	if err := drawQRFooter(pdf, invoice); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to render invoice pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func drawHeader(pdf *gofpdf.Fpdf, invoice *models.Invoice, settings *models.CompanySettings) {
	pdf.SetFont("Helvetica", "B", 20)
	pdf.SetTextColor(37, 99, 235)
	pdf.CellFormat(120, 10, settings.CompanyName, "", 0, "L", false, 0, "")

	pdf.SetFont("Helvetica", "B", 16)
	pdf.CellFormat(0, 10, "INVOICE", "", 1, "R", false, 0, "")

	pdf.SetTextColor(80, 80, 80)
	pdf.SetFont("Helvetica", "", 9)
	for _, line := range []string{settings.Address, settings.Email, settings.Phone} {
		if line != "" {
			pdf.CellFormat(120, 4.5, line, "", 1, "L", false, 0, "")
		}
	}
	if settings.TaxID != "" {
		pdf.CellFormat(120, 4.5, "Tax ID: "+settings.TaxID, "", 1, "L", false, 0, "")
	}

	// Invoice metadata block, right-aligned
	pdf.SetY(22)
	pdf.SetFont("Helvetica", "", 10)
	meta := [][2]string{
		{"Invoice No.", invoice.InvoiceNumber},
		{"Issue Date", invoice.IssueDate.Format("02 Jan 2006")},
		{"Due Date", invoice.DueDate.Format("02 Jan 2006")},
		{"Status", strings.ToUpper(string(invoice.Status))},
	}
	for _, row := range meta {
		pdf.SetX(120)
		pdf.SetFont("Helvetica", "", 9)
		pdf.CellFormat(30, 5, row[0], "", 0, "L", false, 0, "")
		pdf.SetFont("Helvetica", "B", 9)
		pdf.CellFormat(0, 5, row[1], "", 1, "R", false, 0, "")
	}

	pdf.Ln(6)
	pdf.SetDrawColor(37, 99, 235)
	pdf.SetLineWidth(0.8)
	pdf.Line(10, pdf.GetY(), 200, pdf.GetY())
	pdf.Ln(6)
}

func drawParties(pdf *gofpdf.Fpdf, invoice *models.Invoice, settings *models.CompanySettings) {
	pdf.SetTextColor(120, 120, 120)
	pdf.SetFont("Helvetica", "B", 8)
	pdf.CellFormat(95, 5, "BILL TO", "", 0, "L", false, 0, "")
	if invoice.Project != nil {
		pdf.CellFormat(0, 5, "PROJECT", "", 1, "L", false, 0, "")
	} else {
		pdf.Ln(5)
	}

	pdf.SetTextColor(30, 30, 30)
	pdf.SetFont("Helvetica", "B", 10)
	pdf.CellFormat(95, 5, invoice.Client.CompanyName, "", 0, "L", false, 0, "")
	if invoice.Project != nil {
		pdf.CellFormat(0, 5, invoice.Project.Name, "", 1, "L", false, 0, "")
	} else {
		pdf.Ln(5)
	}

	pdf.SetFont("Helvetica", "", 9)
	billTo := []string{invoice.Client.ContactPerson, invoice.Client.Address, invoice.Client.Email, invoice.Client.Phone}
	var projectLines []string
	if invoice.Project != nil {
		projectLines = append(projectLines,
			serviceTypeLabels[invoice.Project.ServiceType],
			fmt.Sprintf("Progress: %d%%", invoice.Project.ProgressPercentage))
	}
	for i := 0; i < len(billTo) || i < len(projectLines); i++ {
		left, right := "", ""
		if i < len(billTo) {
			left = billTo[i]
		}
		if i < len(projectLines) {
			right = projectLines[i]
		}
		pdf.CellFormat(95, 4.5, left, "", 0, "L", false, 0, "")
		pdf.CellFormat(0, 4.5, right, "", 1, "L", false, 0, "")
	}

	pdf.Ln(8)
}

func drawItemsTable(pdf *gofpdf.Fpdf, invoice *models.Invoice) {
	// Header row
	pdf.SetFillColor(37, 99, 235)
	pdf.SetTextColor(255, 255, 255)
	pdf.SetFont("Helvetica", "B", 9)
	pdf.CellFormat(35, 8, "Service", "", 0, "L", true, 0, "")
	pdf.CellFormat(80, 8, "Description", "", 0, "L", true, 0, "")
	pdf.CellFormat(20, 8, "Qty", "", 0, "R", true, 0, "")
	pdf.CellFormat(27, 8, "Rate", "", 0, "R", true, 0, "")
	pdf.CellFormat(28, 8, "Amount", "", 1, "R", true, 0, "")

	pdf.SetTextColor(30, 30, 30)
	pdf.SetFont("Helvetica", "", 9)
	pdf.SetDrawColor(229, 231, 235)
	pdf.SetLineWidth(0.2)

	for _, item := range invoice.Items {
		pdf.CellFormat(35, 7, serviceTypeLabels[item.ServiceType], "B", 0, "L", false, 0, "")
		pdf.CellFormat(80, 7, item.Description, "B", 0, "L", false, 0, "")
		pdf.CellFormat(20, 7, trimFloat(item.Quantity), "B", 0, "R", false, 0, "")
		pdf.CellFormat(27, 7, money(item.Rate), "B", 0, "R", false, 0, "")
		pdf.CellFormat(28, 7, money(item.Amount), "B", 1, "R", false, 0, "")
	}

	pdf.Ln(4)
}

func drawTotals(pdf *gofpdf.Fpdf, invoice *models.Invoice) {
	writeRow := func(label, value string, bold bool) {
		pdf.SetX(120)
		style := ""
		if bold {
			style = "B"
		}
		pdf.SetFont("Helvetica", style, 10)
		pdf.CellFormat(45, 6, label, "", 0, "L", false, 0, "")
		pdf.CellFormat(0, 6, value, "", 1, "R", false, 0, "")
	}

	writeRow("Subtotal", money(invoice.Subtotal), false)
	if invoice.TaxAmount > 0 {
		writeRow(fmt.Sprintf("Tax (%s%%)", trimFloat(invoice.TaxRate)), money(invoice.TaxAmount), false)
	}
	if invoice.Discount > 0 {
		writeRow("Discount", "-"+money(invoice.Discount), false)
	}

	pdf.SetDrawColor(37, 99, 235)
	pdf.SetLineWidth(0.5)
	pdf.Line(120, pdf.GetY()+1, 200, pdf.GetY()+1)
	pdf.Ln(2)

	writeRow("Total", money(invoice.Total), true)

	if invoice.PaidAmount > 0 {
		balance := invoice.Total - invoice.PaidAmount
		if balance < 0 {
			balance = 0
		}
		pdf.SetTextColor(22, 163, 74)
		writeRow("Paid", "-"+money(invoice.PaidAmount), false)
		pdf.SetTextColor(30, 30, 30)
		writeRow("Balance Due", money(balance), true)
	}

	pdf.Ln(6)
}

func drawNotes(pdf *gofpdf.Fpdf, invoice *models.Invoice) {
	if strings.TrimSpace(invoice.Notes) == "" {
		return
	}
	pdf.SetTextColor(120, 120, 120)
	pdf.SetFont("Helvetica", "B", 8)
	pdf.CellFormat(0, 5, "NOTES", "", 1, "L", false, 0, "")
	pdf.SetTextColor(30, 30, 30)
	pdf.SetFont("Helvetica", "", 9)
	pdf.MultiCell(0, 4.5, invoice.Notes, "", "L", false)
	pdf.Ln(4)
}

// drawQRFooter embeds a QR code encoding the invoice identity so a
// printed copy can be checked against the system.
func drawQRFooter(pdf *gofpdf.Fpdf, invoice *models.Invoice) error {
	content := fmt.Sprintf("INV:%s|TOTAL:%.2f|DATE:%s",
		invoice.InvoiceNumber, invoice.Total, invoice.IssueDate.Format("2006-01-02"))

	png, err := qrcode.Encode(content, qrcode.Medium, 256)
	if err != nil {
		return fmt.Errorf("failed to encode verification qr: %w", err)
	}

	opts := gofpdf.ImageOptions{ImageType: "PNG"}
	pdf.RegisterImageOptionsReader("invoice-qr", opts, bytes.NewReader(png))
	pdf.ImageOptions("invoice-qr", 10, 260, 20, 20, false, opts, 0, "")

	pdf.SetY(264)
	pdf.SetX(34)
	pdf.SetTextColor(150, 150, 150)
	pdf.SetFont("Helvetica", "", 8)
	pdf.CellFormat(0, 4, "Thank you for your business.", "", 1, "L", false, 0, "")
	pdf.SetX(34)
	pdf.CellFormat(0, 4, "Scan to verify "+invoice.InvoiceNumber, "", 1, "L", false, 0, "")

	return pdf.Error()
}

func money(v float64) string {
	return fmt.Sprintf("%.2f", v)
}

func trimFloat(v float64) string {
	s := fmt.Sprintf("%.2f", v)
	s = strings.TrimRight(s, "0")
	return strings.TrimRight(s, ".")
}
