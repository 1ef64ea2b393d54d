package billing

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// InvoiceStatus is the payment state of an invoice.
type InvoiceStatus string

const (
	StatusPending       InvoiceStatus = "PENDING"
	StatusPartiallyPaid InvoiceStatus = "PARTIALLY_PAID"
	StatusPaid          InvoiceStatus = "PAID"
)

// ParseInvoiceStatus normalizes a status string.
func ParseInvoiceStatus(value string) (InvoiceStatus, error) {
	status := InvoiceStatus(strings.ToUpper(strings.TrimSpace(value)))
	switch status {
	case StatusPending, StatusPartiallyPaid, StatusPaid:
		return status, nil
	}
	return "", ErrInvalidStatus
}

// DeriveStatus maps the paid total against the invoiced total.
func DeriveStatus(amountPaid, calculated decimal.Decimal) InvoiceStatus {
	switch {
	case !amountPaid.IsPositive():
		return StatusPending
	case amountPaid.GreaterThanOrEqual(calculated):
		return StatusPaid
	default:
		return StatusPartiallyPaid
	}
}

// ItemKind tags how an invoice line was derived.
type ItemKind string

const (
	ItemSession      ItemKind = "SESSION"
	ItemAttendance   ItemKind = "ATTENDANCE"
	ItemFixedMonthly ItemKind = "FIXED_MONTHLY"
	ItemOneTime      ItemKind = "ONE_TIME"
)

// InvoiceItem is one billed line. SessionID is empty for lines not bound to a session.
type InvoiceItem struct {
	SessionID   string          `json:"sessionId,omitempty"`
	SessionDate Date            `json:"sessionDate"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	Kind        ItemKind        `json:"type"`
}

// Invoice bills a student's enrolment in a batch over one period.
type Invoice struct {
	ID               string          `json:"invoiceId"`
	OrganizationID   string          `json:"organizationId"`
	StudentID        string          `json:"studentId"`
	BatchID          string          `json:"batchId"`
	Period           BillingPeriod   `json:"billingPeriod"`
	CalculatedAmount decimal.Decimal `json:"calculatedAmount"`
	AmountPaid       decimal.Decimal `json:"amountPaid"`
	Status           InvoiceStatus   `json:"status"`
	DueDate          Date            `json:"dueDate"`
	Items            []InvoiceItem   `json:"items"`
	CreatedAt        time.Time       `json:"createdAt"`
	UpdatedAt        time.Time       `json:"updatedAt"`
}

// Validate checks the structural invariants of a persisted invoice.
func (i *Invoice) Validate() error {
	if i == nil {
		return ErrNilInvoice
	}
	if i.ID == "" || i.OrganizationID == "" || i.StudentID == "" || i.BatchID == "" {
		return ErrEmptyID
	}
	if err := i.Period.Validate(); err != nil {
		return err
	}
	if _, err := ParseInvoiceStatus(string(i.Status)); err != nil {
		return err
	}
	return nil
}

// ItemsTotal sums the line amounts.
func (i *Invoice) ItemsTotal() decimal.Decimal {
	total := decimal.Zero
	for _, item := range i.Items {
		total = total.Add(item.Amount)
	}
	return total
}

// Outstanding is the unpaid remainder, never negative.
func (i *Invoice) Outstanding() decimal.Decimal {
	remainder := i.CalculatedAmount.Sub(i.AmountPaid)
	if remainder.IsNegative() {
		return decimal.Zero
	}
	return remainder
}

// Clone returns a deep copy so stores never share item slices with callers.
func (i *Invoice) Clone() *Invoice {
	if i == nil {
		return nil
	}
	clone := *i
	if i.Items != nil {
		clone.Items = make([]InvoiceItem, len(i.Items))
		copy(clone.Items, i.Items)
	}
	return &clone
}

// PaymentMethod records how a payment was received.
type PaymentMethod string

const (
	MethodCash         PaymentMethod = "CASH"
	MethodCard         PaymentMethod = "CARD"
	MethodBankTransfer PaymentMethod = "BANK_TRANSFER"
	MethodUPI          PaymentMethod = "UPI"
	MethodOther        PaymentMethod = "OTHER"
)

// ParsePaymentMethod normalizes a method string. Empty means OTHER.
func ParsePaymentMethod(value string) (PaymentMethod, error) {
	method := PaymentMethod(strings.ToUpper(strings.TrimSpace(value)))
	switch method {
	case "":
		return MethodOther, nil
	case MethodCash, MethodCard, MethodBankTransfer, MethodUPI, MethodOther:
		return method, nil
	}
	return "", fmt.Errorf("%w: unknown payment method %q", ErrInvalidArgument, value)
}

// MoneyScale is the number of fraction digits money is stored and rendered with.
const MoneyScale = 2

// CheckScale rejects amounts that carry more than MoneyScale significant fraction digits.
func CheckScale(amount decimal.Decimal) error {
	if !amount.Equal(amount.Round(MoneyScale)) {
		return fmt.Errorf("%w: %s has more than %d fraction digits", ErrInvalidArgument, amount.String(), MoneyScale)
	}
	return nil
}

// Payment is a single amount received against an invoice.
type Payment struct {
	Amount decimal.Decimal
	Method PaymentMethod
	PaidOn Date
	Notes  string
}

// Override is an administrative correction that bypasses the payment state
// machine. Nil fields are left unchanged.
type Override struct {
	CalculatedAmount *decimal.Decimal
	AmountPaid       *decimal.Decimal
	Status           *InvoiceStatus
	DueDate          *Date
}

// Apply writes the set fields onto the invoice.
func (o Override) Apply(invoice *Invoice) {
	if o.CalculatedAmount != nil {
		invoice.CalculatedAmount = *o.CalculatedAmount
	}
	if o.AmountPaid != nil {
		invoice.AmountPaid = *o.AmountPaid
	}
	if o.Status != nil {
		invoice.Status = *o.Status
	}
	if o.DueDate != nil {
		invoice.DueDate = *o.DueDate
	}
}

// IsEmpty reports whether no field is set.
func (o Override) IsEmpty() bool {
	return o.CalculatedAmount == nil && o.AmountPaid == nil && o.Status == nil && o.DueDate == nil
}
