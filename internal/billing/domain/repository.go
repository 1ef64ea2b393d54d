package billing

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// InvoiceStore persists invoices. CompareAndSwapAmountPaid must be atomic
// with respect to other writers of the same invoice.
type InvoiceStore interface {
	Save(ctx context.Context, invoice *Invoice) error
	Load(ctx context.Context, invoiceID string) (*Invoice, error)
	// CompareAndSwapAmountPaid writes newPaid and status only if the stored
	// amount paid still equals expectedPaid. It reports false when it did not.
	CompareAndSwapAmountPaid(ctx context.Context, invoiceID string, expectedPaid, newPaid decimal.Decimal, status InvoiceStatus, updatedAt time.Time) (bool, error)
	// Overwrite replaces the scalar fields of an existing invoice only if the
	// stored amount paid still equals expectedPaid. It returns
	// ErrInvoiceNotFound when the invoice is gone and ErrConcurrentUpdate when
	// a payment landed in between.
	Overwrite(ctx context.Context, invoice *Invoice, expectedPaid decimal.Decimal) error
	Delete(ctx context.Context, invoiceID string) (bool, error)
	List(ctx context.Context, filter InvoiceFilter, page PageRequest) ([]*Invoice, int, error)
}

// InvoiceFilter narrows a listing. OrganizationID is mandatory; empty fields match all.
type InvoiceFilter struct {
	OrganizationID string
	StudentID      string
	BatchID        string
	Status         InvoiceStatus
	DueFrom        Date
	DueTo          Date
}

// Matches reports whether the invoice satisfies every set field.
func (f InvoiceFilter) Matches(invoice *Invoice) bool {
	if invoice == nil || invoice.OrganizationID != f.OrganizationID {
		return false
	}
	if f.StudentID != "" && invoice.StudentID != f.StudentID {
		return false
	}
	if f.BatchID != "" && invoice.BatchID != f.BatchID {
		return false
	}
	if f.Status != "" && invoice.Status != f.Status {
		return false
	}
	if !f.DueFrom.IsZero() && invoice.DueDate.Before(f.DueFrom) {
		return false
	}
	if !f.DueTo.IsZero() && invoice.DueDate.After(f.DueTo) {
		return false
	}
	return true
}

// PageRequest is a zero-based page of the given size.
type PageRequest struct {
	Page int
	Size int
}

// Offset returns the number of rows to skip.
func (p PageRequest) Offset() int {
	return p.Page * p.Size
}

// Page is one slice of a listing with totals.
type Page struct {
	Items         []*Invoice `json:"content"`
	Page          int        `json:"page"`
	Size          int        `json:"size"`
	TotalElements int        `json:"totalElements"`
	TotalPages    int        `json:"totalPages"`
}

// NewPage assembles a page from a slice and total count.
func NewPage(items []*Invoice, req PageRequest, total int) Page {
	pages := 0
	if req.Size > 0 {
		pages = (total + req.Size - 1) / req.Size
	}
	if items == nil {
		items = []*Invoice{}
	}
	return Page{Items: items, Page: req.Page, Size: req.Size, TotalElements: total, TotalPages: pages}
}
