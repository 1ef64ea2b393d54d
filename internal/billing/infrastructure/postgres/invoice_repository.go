package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	billing "academy-cloud/internal/billing/domain"
)

const (
	defaultInvoicesTable = "invoices"
	defaultItemsTable    = "invoice_items"
)

// InvoiceRepository is a Postgres implementation of the invoice store.
type InvoiceRepository struct {
	db         *sql.DB
	table      string
	itemsTable string
}

// NewInvoiceRepository constructs a repository.
func NewInvoiceRepository(db *sql.DB, opts ...Option) *InvoiceRepository {
	repo := &InvoiceRepository{db: db, table: defaultInvoicesTable, itemsTable: defaultItemsTable}
	for _, opt := range opts {
		opt(repo)
	}
	return repo
}

// Option configures the repository.
type Option func(*InvoiceRepository)

// WithInvoiceTable overrides the invoice table name.
func WithInvoiceTable(table string) Option {
	return func(repo *InvoiceRepository) {
		if table != "" {
			repo.table = table
		}
	}
}

// WithItemTable overrides the invoice item table name.
func WithItemTable(table string) Option {
	return func(repo *InvoiceRepository) {
		if table != "" {
			repo.itemsTable = table
		}
	}
}

// Save inserts an invoice and its items in one transaction.
func (r *InvoiceRepository) Save(ctx context.Context, invoice *billing.Invoice) error {
	if r == nil || r.db == nil {
		return errors.New("invoice repo: nil db")
	}
	if err := invoice.Validate(); err != nil {
		return err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, fmt.Sprintf(`
INSERT INTO %s (
	invoice_id, organization_id, student_id, batch_id, period_start, period_end,
	calculated_amount, amount_paid, status, due_date, created_at, updated_at
) VALUES (
	$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12
)`, r.table),
		invoice.ID,
		invoice.OrganizationID,
		invoice.StudentID,
		invoice.BatchID,
		invoice.Period.Start.Time(),
		invoice.Period.End.Time(),
		invoice.CalculatedAmount,
		invoice.AmountPaid,
		string(invoice.Status),
		nullDate(invoice.DueDate),
		invoice.CreatedAt.UTC(),
		invoice.UpdatedAt.UTC(),
	)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	for position, item := range invoice.Items {
		_, err := tx.ExecContext(ctx, fmt.Sprintf(`
INSERT INTO %s (
	invoice_id, position, session_id, session_date, description, amount, kind
) VALUES (
	$1, $2, $3, $4, $5, $6, $7
)`, r.itemsTable),
			invoice.ID,
			position,
			sql.NullString{String: item.SessionID, Valid: item.SessionID != ""},
			nullDate(item.SessionDate),
			item.Description,
			item.Amount,
			string(item.Kind),
		)
		if err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

// Load fetches an invoice with its items. It returns nil, nil when absent.
func (r *InvoiceRepository) Load(ctx context.Context, invoiceID string) (*billing.Invoice, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("invoice repo: nil db")
	}
	if invoiceID == "" {
		return nil, billing.ErrEmptyID
	}

	row := r.db.QueryRowContext(ctx, fmt.Sprintf(`
SELECT %s
FROM %s
WHERE invoice_id = $1`, invoiceColumns, r.table), invoiceID)
	invoice, err := scanInvoice(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	items, err := r.listItems(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	invoice.Items = items
	return invoice, nil
}

// CompareAndSwapAmountPaid updates the paid total only when the stored value
// still equals expectedPaid.
func (r *InvoiceRepository) CompareAndSwapAmountPaid(ctx context.Context, invoiceID string, expectedPaid, newPaid decimal.Decimal, status billing.InvoiceStatus, updatedAt time.Time) (bool, error) {
	if r == nil || r.db == nil {
		return false, errors.New("invoice repo: nil db")
	}
	res, err := r.db.ExecContext(ctx, fmt.Sprintf(`
UPDATE %s
SET amount_paid = $1, status = $2, updated_at = $3
WHERE invoice_id = $4 AND amount_paid = $5`, r.table),
		newPaid,
		string(status),
		updatedAt.UTC(),
		invoiceID,
		expectedPaid,
	)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}

// Overwrite replaces the scalar fields of an existing invoice when its amount
// paid still equals expectedPaid.
func (r *InvoiceRepository) Overwrite(ctx context.Context, invoice *billing.Invoice, expectedPaid decimal.Decimal) error {
	if r == nil || r.db == nil {
		return errors.New("invoice repo: nil db")
	}
	if invoice == nil {
		return billing.ErrNilInvoice
	}
	res, err := r.db.ExecContext(ctx, fmt.Sprintf(`
UPDATE %s
SET calculated_amount = $1, amount_paid = $2, status = $3, due_date = $4, updated_at = $5
WHERE invoice_id = $6 AND amount_paid = $7`, r.table),
		invoice.CalculatedAmount,
		invoice.AmountPaid,
		string(invoice.Status),
		nullDate(invoice.DueDate),
		invoice.UpdatedAt.UTC(),
		invoice.ID,
		expectedPaid,
	)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 1 {
		return nil
	}

	var exists bool
	if err := r.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT EXISTS (SELECT 1 FROM %s WHERE invoice_id = $1)`, r.table), invoice.ID).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return billing.ErrInvoiceNotFound
	}
	return billing.ErrConcurrentUpdate
}

// Delete removes an invoice and its items.
func (r *InvoiceRepository) Delete(ctx context.Context, invoiceID string) (bool, error) {
	if r == nil || r.db == nil {
		return false, errors.New("invoice repo: nil db")
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	if _, err := tx.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE invoice_id = $1`, r.itemsTable), invoiceID); err != nil {
		_ = tx.Rollback()
		return false, err
	}
	res, err := tx.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE invoice_id = $1`, r.table), invoiceID)
	if err != nil {
		_ = tx.Rollback()
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		_ = tx.Rollback()
		return false, err
	}
	if err := tx.Commit(); err != nil {
		return false, err
	}
	return affected > 0, nil
}

// List returns one page of matching invoices, newest first, plus the total
// match count. Items are not loaded.
func (r *InvoiceRepository) List(ctx context.Context, filter billing.InvoiceFilter, page billing.PageRequest) ([]*billing.Invoice, int, error) {
	if r == nil || r.db == nil {
		return nil, 0, errors.New("invoice repo: nil db")
	}
	if filter.OrganizationID == "" {
		return nil, 0, billing.ErrEmptyID
	}

	where, args := buildFilter(filter)

	var total int
	countQuery := fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE %s`, r.table, where)
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(`
SELECT %s
FROM %s
WHERE %s
ORDER BY created_at DESC, invoice_id ASC`, invoiceColumns, r.table, where)
	if page.Size > 0 {
		query += fmt.Sprintf("\nLIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
		args = append(args, page.Size, page.Offset())
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	result := make([]*billing.Invoice, 0)
	for rows.Next() {
		invoice, err := scanInvoice(rows)
		if err != nil {
			return nil, 0, err
		}
		result = append(result, invoice)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return result, total, nil
}

func buildFilter(filter billing.InvoiceFilter) (string, []any) {
	conditions := []string{"organization_id = $1"}
	args := []any{filter.OrganizationID}
	add := func(clause string, value any) {
		args = append(args, value)
		conditions = append(conditions, fmt.Sprintf(clause, len(args)))
	}
	if filter.StudentID != "" {
		add("student_id = $%d", filter.StudentID)
	}
	if filter.BatchID != "" {
		add("batch_id = $%d", filter.BatchID)
	}
	if filter.Status != "" {
		add("status = $%d", string(filter.Status))
	}
	if !filter.DueFrom.IsZero() {
		add("due_date >= $%d", filter.DueFrom.Time())
	}
	if !filter.DueTo.IsZero() {
		add("due_date <= $%d", filter.DueTo.Time())
	}
	return strings.Join(conditions, " AND "), args
}

func (r *InvoiceRepository) listItems(ctx context.Context, invoiceID string) ([]billing.InvoiceItem, error) {
	rows, err := r.db.QueryContext(ctx, fmt.Sprintf(`
SELECT session_id, session_date, description, amount, kind
FROM %s
WHERE invoice_id = $1
ORDER BY position ASC`, r.itemsTable), invoiceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]billing.InvoiceItem, 0)
	for rows.Next() {
		var item billing.InvoiceItem
		var sessionID sql.NullString
		var sessionDate sql.NullTime
		var kind string
		if err := rows.Scan(&sessionID, &sessionDate, &item.Description, &item.Amount, &kind); err != nil {
			return nil, err
		}
		item.SessionID = sessionID.String
		if sessionDate.Valid {
			item.SessionDate = billing.DateOf(sessionDate.Time.UTC())
		}
		item.Kind = billing.ItemKind(kind)
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const invoiceColumns = `invoice_id, organization_id, student_id, batch_id, period_start, period_end,
	calculated_amount, amount_paid, status, due_date, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanInvoice(row rowScanner) (*billing.Invoice, error) {
	var invoice billing.Invoice
	var periodStart, periodEnd time.Time
	var dueDate sql.NullTime
	var status string
	err := row.Scan(
		&invoice.ID,
		&invoice.OrganizationID,
		&invoice.StudentID,
		&invoice.BatchID,
		&periodStart,
		&periodEnd,
		&invoice.CalculatedAmount,
		&invoice.AmountPaid,
		&status,
		&dueDate,
		&invoice.CreatedAt,
		&invoice.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	invoice.Period = billing.BillingPeriod{
		Start: billing.DateOf(periodStart.UTC()),
		End:   billing.DateOf(periodEnd.UTC()),
	}
	if dueDate.Valid {
		invoice.DueDate = billing.DateOf(dueDate.Time.UTC())
	}
	invoice.Status = billing.InvoiceStatus(status)
	invoice.CreatedAt = invoice.CreatedAt.UTC()
	invoice.UpdatedAt = invoice.UpdatedAt.UTC()
	return &invoice, nil
}

func nullDate(d billing.Date) sql.NullTime {
	return sql.NullTime{Time: d.Time(), Valid: !d.IsZero()}
}
