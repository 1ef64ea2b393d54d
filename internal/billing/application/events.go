package application

import (
	"time"

	"github.com/shopspring/decimal"

	billing "academy-cloud/internal/billing/domain"
)

// InvoiceGenerated is emitted after an invoice is persisted.
type InvoiceGenerated struct {
	InvoiceID      string
	OrganizationID string
	StudentID      string
	BatchID        string
	Period         billing.BillingPeriod
	Total          decimal.Decimal
	DueDate        billing.Date
	ItemCount      int
	OccurredAt     time.Time
}

// EventName names the event in the outbox.
func (InvoiceGenerated) EventName() string { return "billing.invoice_generated" }

// PaymentRecorded is emitted after a payment is applied.
type PaymentRecorded struct {
	InvoiceID      string
	OrganizationID string
	StudentID      string
	Amount         decimal.Decimal
	AmountPaid     decimal.Decimal
	Status         billing.InvoiceStatus
	Method         billing.PaymentMethod
	PaidOn         billing.Date
	OccurredAt     time.Time
}

// EventName names the event in the outbox.
func (PaymentRecorded) EventName() string { return "billing.payment_recorded" }

// Activity actions.
const (
	ActionInvoiceGenerated = "INVOICE_GENERATED"
	ActionPaymentRecorded  = "PAYMENT_RECORDED"
	ActionInvoiceUpdated   = "INVOICE_UPDATED"
	ActionInvoiceDeleted   = "INVOICE_DELETED"
)

// Activity is one entry of the invoice activity log.
type Activity struct {
	OrganizationID string
	ActorID        string
	Action         string
	InvoiceID      string
	StudentID      string
	Description    string
	Metadata       map[string]any
	OccurredAt     time.Time
}
