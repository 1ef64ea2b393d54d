package memory

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	billing "academy-cloud/internal/billing/domain"
)

// InvoiceRepository is an in-memory invoice store.
type InvoiceRepository struct {
	mu   sync.RWMutex
	data map[string]*billing.Invoice
}

// NewInvoiceRepository constructs a repository.
func NewInvoiceRepository() *InvoiceRepository {
	return &InvoiceRepository{data: make(map[string]*billing.Invoice)}
}

// Save inserts a new invoice. Saving an existing id is an error.
func (r *InvoiceRepository) Save(ctx context.Context, invoice *billing.Invoice) error {
	_ = ctx
	if err := invoice.Validate(); err != nil {
		return err
	}

	stored := invoice.Clone()
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.data[invoice.ID]; exists {
		return errors.New("invoice repo: duplicate id " + invoice.ID)
	}
	r.data[invoice.ID] = stored
	return nil
}

// Load returns nil, nil when the invoice is absent.
func (r *InvoiceRepository) Load(ctx context.Context, invoiceID string) (*billing.Invoice, error) {
	_ = ctx
	r.mu.RLock()
	invoice := r.data[invoiceID]
	r.mu.RUnlock()
	if invoice == nil {
		return nil, nil
	}
	return invoice.Clone(), nil
}

// CompareAndSwapAmountPaid updates amount paid and status under the write lock.
func (r *InvoiceRepository) CompareAndSwapAmountPaid(ctx context.Context, invoiceID string, expectedPaid, newPaid decimal.Decimal, status billing.InvoiceStatus, updatedAt time.Time) (bool, error) {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	invoice := r.data[invoiceID]
	if invoice == nil {
		return false, nil
	}
	if !invoice.AmountPaid.Equal(expectedPaid) {
		return false, nil
	}
	invoice.AmountPaid = newPaid
	invoice.Status = status
	invoice.UpdatedAt = updatedAt
	return true, nil
}

// Overwrite replaces the scalar fields of an existing invoice when its amount
// paid still equals expectedPaid. Items are kept.
func (r *InvoiceRepository) Overwrite(ctx context.Context, invoice *billing.Invoice, expectedPaid decimal.Decimal) error {
	_ = ctx
	if invoice == nil {
		return billing.ErrNilInvoice
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	existing := r.data[invoice.ID]
	if existing == nil {
		return billing.ErrInvoiceNotFound
	}
	if !existing.AmountPaid.Equal(expectedPaid) {
		return billing.ErrConcurrentUpdate
	}
	existing.CalculatedAmount = invoice.CalculatedAmount
	existing.AmountPaid = invoice.AmountPaid
	existing.Status = invoice.Status
	existing.DueDate = invoice.DueDate
	existing.UpdatedAt = invoice.UpdatedAt
	return nil
}

// Delete removes an invoice and reports whether it existed.
func (r *InvoiceRepository) Delete(ctx context.Context, invoiceID string) (bool, error) {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.data[invoiceID]; !ok {
		return false, nil
	}
	delete(r.data, invoiceID)
	return true, nil
}

// List returns one page of matching invoices, newest first, and the total match count.
func (r *InvoiceRepository) List(ctx context.Context, filter billing.InvoiceFilter, page billing.PageRequest) ([]*billing.Invoice, int, error) {
	_ = ctx
	r.mu.RLock()
	matched := make([]*billing.Invoice, 0)
	for _, invoice := range r.data {
		if filter.Matches(invoice) {
			matched = append(matched, invoice.Clone())
		}
	}
	r.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].ID < matched[j].ID
	})

	total := len(matched)
	if page.Size <= 0 {
		return matched, total, nil
	}
	start := page.Offset()
	if start >= total {
		return []*billing.Invoice{}, total, nil
	}
	end := start + page.Size
	if end > total {
		end = total
	}
	return matched[start:end], total, nil
}
