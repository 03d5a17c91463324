package services

import (
	"bytes"
	"fmt"
	"time"

	"agencydesk/internal/database"
	"agencydesk/internal/models"

	"github.com/xuri/excelize/v2"
)

// ReportService exports billing data as spreadsheets for bookkeeping.
type ReportService struct {
	db *database.DB
}

func NewReportService(db *database.DB) *ReportService {
	return &ReportService{db: db}
}

// InvoiceReportFilter narrows the export window
type InvoiceReportFilter struct {
	From   *time.Time
	To     *time.Time
	Status string
}

var invoiceReportHeaders = []string{
	"Invoice No.", "Client", "Project", "Issue Date", "Due Date",
	"Status", "Subtotal", "Tax", "Discount", "Total", "Paid", "Balance",
}

// ExportInvoicesXLSX renders the invoice ledger as an xlsx workbook
func (s *ReportService) ExportInvoicesXLSX(filter InvoiceReportFilter) ([]byte, error) {
	query := s.db.Model(&models.Invoice{}).Preload("Client").Preload("Project")

	if filter.From != nil {
		query = query.Where("issue_date >= ?", *filter.From)
	}
	if filter.To != nil {
		query = query.Where("issue_date <= ?", *filter.To)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}

	var invoices []models.Invoice
	if err := query.Order("invoice_number ASC").Find(&invoices).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch invoices for export: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Invoices"
	f.SetSheetName("Sheet1", sheet)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"2563EB"}},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create style: %w", err)
	}

	for i, h := range invoiceReportHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheet, cell, h)
	}
	f.SetCellStyle(sheet, "A1", "L1", headerStyle)
	f.SetColWidth(sheet, "A", "B", 18)
	f.SetColWidth(sheet, "C", "C", 24)
	f.SetColWidth(sheet, "D", "F", 12)

	var totalBilled, totalPaid float64
	for i, inv := range invoices {
		row := i + 2
		projectName := ""
		if inv.Project != nil {
			projectName = inv.Project.Name
		}
		balance := round2(inv.Total - inv.PaidAmount)
		if balance < 0 {
			balance = 0
		}

		values := []interface{}{
			inv.InvoiceNumber,
			inv.Client.CompanyName,
			projectName,
			inv.IssueDate.Format("2006-01-02"),
			inv.DueDate.Format("2006-01-02"),
			string(inv.Status),
			inv.Subtotal,
			inv.TaxAmount,
			inv.Discount,
			inv.Total,
			inv.PaidAmount,
			balance,
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			f.SetCellValue(sheet, cell, v)
		}

		if inv.Status != models.InvoiceStatusCancelled {
			totalBilled += inv.Total
		}
		totalPaid += inv.PaidAmount
	}

	// Summary row below the data
	summaryRow := len(invoices) + 3
	f.SetCellValue(sheet, fmt.Sprintf("A%d", summaryRow), "Totals")
	f.SetCellValue(sheet, fmt.Sprintf("J%d", summaryRow), round2(totalBilled))
	f.SetCellValue(sheet, fmt.Sprintf("K%d", summaryRow), round2(totalPaid))

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	return buf.Bytes(), nil
}
