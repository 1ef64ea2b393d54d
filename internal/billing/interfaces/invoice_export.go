package interfaces

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"

	billing "academy-cloud/internal/billing/domain"
)

// BuildInvoicePDF renders a one-page invoice.
func BuildInvoicePDF(invoice *billing.Invoice, currency string) ([]byte, error) {
	if invoice == nil {
		return nil, errors.New("invoice export: nil invoice")
	}
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetFont("Arial", "", 12)
	pdf.AddPage()

	pdf.Cell(0, 8, "Invoice")
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("Invoice: %s", invoice.ID))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Student: %s", invoice.StudentID))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Batch: %s", invoice.BatchID))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Period: %s to %s", invoice.Period.Start, invoice.Period.End))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Status: %s", invoice.Status))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Issued: %s", invoice.CreatedAt.Format(time.RFC3339)))
	pdf.Ln(5)
	if !invoice.DueDate.IsZero() {
		pdf.Cell(0, 6, fmt.Sprintf("Due: %s", invoice.DueDate))
		pdf.Ln(5)
	}

	pdf.Ln(4)
	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(30, 6, "Date", "1", 0, "C", false, 0, "")
	pdf.CellFormat(120, 6, "Description", "1", 0, "C", false, 0, "")
	pdf.CellFormat(40, 6, "Amount", "1", 0, "C", false, 0, "")
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 10)
	for _, item := range invoice.Items {
		pdf.CellFormat(30, 6, item.SessionDate.String(), "1", 0, "C", false, 0, "")
		pdf.CellFormat(120, 6, item.Description, "1", 0, "L", false, 0, "")
		pdf.CellFormat(40, 6, item.Amount.StringFixed(2), "1", 0, "R", false, 0, "")
		pdf.Ln(-1)
	}

	pdf.Ln(4)
	pdf.Cell(0, 6, fmt.Sprintf("Total (%s): %s", currency, invoice.CalculatedAmount.StringFixed(2)))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Paid (%s): %s", currency, invoice.AmountPaid.StringFixed(2)))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Outstanding (%s): %s", currency, invoice.Outstanding().StringFixed(2)))

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildInvoiceXLSX renders an invoice workbook with summary and items sheets.
func BuildInvoiceXLSX(invoice *billing.Invoice, currency string) ([]byte, error) {
	if invoice == nil {
		return nil, errors.New("invoice export: nil invoice")
	}
	f := excelize.NewFile()
	defer f.Close()
	summarySheet := "summary"
	itemsSheet := "items"
	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(itemsSheet); err != nil {
		return nil, err
	}

	summary := [][2]any{
		{"Invoice", invoice.ID},
		{"Student", invoice.StudentID},
		{"Batch", invoice.BatchID},
		{"Period Start", invoice.Period.Start.String()},
		{"Period End", invoice.Period.End.String()},
		{"Status", string(invoice.Status)},
		{"Due Date", invoice.DueDate.String()},
		{"Total", invoice.CalculatedAmount.InexactFloat64()},
		{"Paid", invoice.AmountPaid.InexactFloat64()},
		{"Outstanding", invoice.Outstanding().InexactFloat64()},
		{"Currency", currency},
	}
	_ = f.SetCellValue(summarySheet, "A1", "Invoice")
	for i, row := range summary {
		_ = f.SetCellValue(summarySheet, fmt.Sprintf("A%d", i+3), row[0])
		_ = f.SetCellValue(summarySheet, fmt.Sprintf("B%d", i+3), row[1])
	}

	_ = f.SetCellValue(itemsSheet, "A1", "Session")
	_ = f.SetCellValue(itemsSheet, "B1", "Date")
	_ = f.SetCellValue(itemsSheet, "C1", "Type")
	_ = f.SetCellValue(itemsSheet, "D1", "Description")
	_ = f.SetCellValue(itemsSheet, "E1", "Amount")
	for i, item := range invoice.Items {
		row := i + 2
		_ = f.SetCellValue(itemsSheet, fmt.Sprintf("A%d", row), item.SessionID)
		_ = f.SetCellValue(itemsSheet, fmt.Sprintf("B%d", row), item.SessionDate.String())
		_ = f.SetCellValue(itemsSheet, fmt.Sprintf("C%d", row), string(item.Kind))
		_ = f.SetCellValue(itemsSheet, fmt.Sprintf("D%d", row), item.Description)
		_ = f.SetCellValue(itemsSheet, fmt.Sprintf("E%d", row), item.Amount.InexactFloat64())
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
