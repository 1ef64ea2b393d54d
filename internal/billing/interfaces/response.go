package interfaces

import (
	"time"

	"github.com/shopspring/decimal"

	billing "academy-cloud/internal/billing/domain"
)

// money renders an amount with a fixed number of fraction digits.
type money string

func moneyOf(amount decimal.Decimal) money {
	return money(amount.StringFixed(billing.MoneyScale))
}

type itemResponse struct {
	SessionID   string           `json:"sessionId,omitempty"`
	SessionDate billing.Date     `json:"sessionDate"`
	Description string           `json:"description"`
	Amount      money            `json:"amount"`
	Kind        billing.ItemKind `json:"type"`
}

type invoiceResponse struct {
	ID               string                `json:"invoiceId"`
	OrganizationID   string                `json:"organizationId"`
	StudentID        string                `json:"studentId"`
	BatchID          string                `json:"batchId"`
	Period           billing.BillingPeriod `json:"billingPeriod"`
	CalculatedAmount money                 `json:"calculatedAmount"`
	AmountPaid       money                 `json:"amountPaid"`
	Status           billing.InvoiceStatus `json:"status"`
	DueDate          billing.Date          `json:"dueDate"`
	Items            []itemResponse        `json:"items"`
	CreatedAt        time.Time             `json:"createdAt"`
	UpdatedAt        time.Time             `json:"updatedAt"`
}

type pageResponse struct {
	Content       []invoiceResponse `json:"content"`
	Page          int               `json:"page"`
	Size          int               `json:"size"`
	TotalElements int               `json:"totalElements"`
	TotalPages    int               `json:"totalPages"`
}

type calculationResponse struct {
	Total money          `json:"totalAmount"`
	Items []itemResponse `json:"items"`
}

func toItems(items []billing.InvoiceItem) []itemResponse {
	out := make([]itemResponse, 0, len(items))
	for _, item := range items {
		out = append(out, itemResponse{
			SessionID:   item.SessionID,
			SessionDate: item.SessionDate,
			Description: item.Description,
			Amount:      moneyOf(item.Amount),
			Kind:        item.Kind,
		})
	}
	return out
}

func toInvoiceResponse(invoice *billing.Invoice) invoiceResponse {
	return invoiceResponse{
		ID:               invoice.ID,
		OrganizationID:   invoice.OrganizationID,
		StudentID:        invoice.StudentID,
		BatchID:          invoice.BatchID,
		Period:           invoice.Period,
		CalculatedAmount: moneyOf(invoice.CalculatedAmount),
		AmountPaid:       moneyOf(invoice.AmountPaid),
		Status:           invoice.Status,
		DueDate:          invoice.DueDate,
		Items:            toItems(invoice.Items),
		CreatedAt:        invoice.CreatedAt,
		UpdatedAt:        invoice.UpdatedAt,
	}
}

func toPageResponse(page billing.Page) pageResponse {
	content := make([]invoiceResponse, 0, len(page.Items))
	for _, invoice := range page.Items {
		content = append(content, toInvoiceResponse(invoice))
	}
	return pageResponse{
		Content:       content,
		Page:          page.Page,
		Size:          page.Size,
		TotalElements: page.TotalElements,
		TotalPages:    page.TotalPages,
	}
}

func toCalculationResponse(calc billing.Calculation) calculationResponse {
	return calculationResponse{Total: moneyOf(calc.Total), Items: toItems(calc.Items)}
}
