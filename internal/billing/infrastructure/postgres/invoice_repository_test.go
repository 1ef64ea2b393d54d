package postgres

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	billing "academy-cloud/internal/billing/domain"
)

var invoiceRowColumns = []string{
	"invoice_id", "organization_id", "student_id", "batch_id", "period_start", "period_end",
	"calculated_amount", "amount_paid", "status", "due_date", "created_at", "updated_at",
}

func sampleInvoice() *billing.Invoice {
	now := time.Date(2024, 2, 1, 9, 0, 0, 0, time.UTC)
	return &billing.Invoice{
		ID:               "inv-1",
		OrganizationID:   "org-1",
		StudentID:        "stu-1",
		BatchID:          "b1",
		Period:           billing.BillingPeriod{Start: billing.NewDate(2024, 1, 1), End: billing.NewDate(2024, 1, 31)},
		CalculatedAmount: decimal.NewFromInt(40),
		AmountPaid:       decimal.Zero,
		Status:           billing.StatusPending,
		DueDate:          billing.NewDate(2024, 3, 1),
		Items: []billing.InvoiceItem{
			{SessionID: "s1", SessionDate: billing.NewDate(2024, 1, 5), Description: "a", Amount: decimal.NewFromInt(20), Kind: billing.ItemAttendance},
			{SessionID: "s2", SessionDate: billing.NewDate(2024, 1, 19), Description: "b", Amount: decimal.NewFromInt(20), Kind: billing.ItemAttendance},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestInvoiceRepository_SaveWritesItemsInTx(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO invoices")).
		WithArgs("inv-1", "org-1", "stu-1", "b1", sqlmock.AnyArg(), sqlmock.AnyArg(),
			decimal.NewFromInt(40), decimal.Zero, "PENDING", sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO invoice_items")).
		WithArgs("inv-1", 0, sqlmock.AnyArg(), sqlmock.AnyArg(), "a", decimal.NewFromInt(20), "ATTENDANCE").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO invoice_items")).
		WithArgs("inv-1", 1, sqlmock.AnyArg(), sqlmock.AnyArg(), "b", decimal.NewFromInt(20), "ATTENDANCE").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, NewInvoiceRepository(db).Save(context.Background(), sampleInvoice()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInvoiceRepository_SaveRollsBackOnItemFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO invoices")).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO invoice_items")).WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	err = NewInvoiceRepository(db).Save(context.Background(), sampleInvoice())
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInvoiceRepository_Load(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Date(2024, 2, 1, 9, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta("FROM invoices")).
		WithArgs("inv-1").
		WillReturnRows(sqlmock.NewRows(invoiceRowColumns).AddRow(
			"inv-1", "org-1", "stu-1", "b1",
			time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC),
			"40.00", "10.00", "PARTIALLY_PAID", time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), now, now,
		))
	mock.ExpectQuery(regexp.QuoteMeta("FROM invoice_items")).
		WithArgs("inv-1").
		WillReturnRows(sqlmock.NewRows([]string{"session_id", "session_date", "description", "amount", "kind"}).
			AddRow("s1", time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC), "a", "20.00", "SESSION").
			AddRow(nil, nil, "b", "20.00", "ONE_TIME"))

	invoice, err := NewInvoiceRepository(db).Load(context.Background(), "inv-1")
	require.NoError(t, err)
	require.NotNil(t, invoice)
	assert.True(t, invoice.CalculatedAmount.Equal(decimal.NewFromInt(40)))
	assert.True(t, invoice.AmountPaid.Equal(decimal.NewFromInt(10)))
	assert.Equal(t, billing.StatusPartiallyPaid, invoice.Status)
	assert.True(t, invoice.DueDate.Equal(billing.NewDate(2024, 3, 1)))
	require.Len(t, invoice.Items, 2)
	assert.Equal(t, "s1", invoice.Items[0].SessionID)
	assert.Empty(t, invoice.Items[1].SessionID)
	assert.True(t, invoice.Items[1].SessionDate.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInvoiceRepository_LoadMissing(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta("FROM invoices")).
		WithArgs("nope").
		WillReturnRows(sqlmock.NewRows(invoiceRowColumns))

	invoice, err := NewInvoiceRepository(db).Load(context.Background(), "nope")
	require.NoError(t, err)
	assert.Nil(t, invoice)
}

func TestInvoiceRepository_CompareAndSwap(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta("WHERE invoice_id = $4 AND amount_paid = $5")).
		WithArgs(decimal.NewFromInt(100), "PARTIALLY_PAID", sqlmock.AnyArg(), "inv-1", decimal.Zero).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("WHERE invoice_id = $4 AND amount_paid = $5")).
		WithArgs(decimal.NewFromInt(200), "PAID", sqlmock.AnyArg(), "inv-1", decimal.Zero).
		WillReturnResult(sqlmock.NewResult(0, 0))

	repo := NewInvoiceRepository(db)
	ok, err := repo.CompareAndSwapAmountPaid(context.Background(), "inv-1", decimal.Zero, decimal.NewFromInt(100), billing.StatusPartiallyPaid, time.Now())
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.CompareAndSwapAmountPaid(context.Background(), "inv-1", decimal.Zero, decimal.NewFromInt(200), billing.StatusPaid, time.Now())
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInvoiceRepository_ListBuildsFilter(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Now().UTC()
	due := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM invoices WHERE organization_id = $1 AND student_id = $2 AND status = $3 AND due_date >= $4")).
		WithArgs("org-1", "stu-1", "PENDING", due).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(11))
	mock.ExpectQuery(regexp.QuoteMeta("LIMIT $5 OFFSET $6")).
		WithArgs("org-1", "stu-1", "PENDING", due, 5, 10).
		WillReturnRows(sqlmock.NewRows(invoiceRowColumns).AddRow(
			"inv-9", "org-1", "stu-1", "b1", due, due, "10", "0", "PENDING", due, now, now,
		))

	filter := billing.InvoiceFilter{
		OrganizationID: "org-1",
		StudentID:      "stu-1",
		Status:         billing.StatusPending,
		DueFrom:        billing.NewDate(2024, 3, 1),
	}
	items, total, err := NewInvoiceRepository(db).List(context.Background(), filter, billing.PageRequest{Page: 2, Size: 5})
	require.NoError(t, err)
	assert.Equal(t, 11, total)
	require.Len(t, items, 1)
	assert.Equal(t, "inv-9", items[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInvoiceRepository_OverwriteGuardsAmountPaid(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	update := regexp.QuoteMeta("WHERE invoice_id = $6 AND amount_paid = $7")
	mock.ExpectExec(update).
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), "PENDING", sqlmock.AnyArg(), sqlmock.AnyArg(), "inv-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(update).
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), "PENDING", sqlmock.AnyArg(), sqlmock.AnyArg(), "inv-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS (SELECT 1 FROM invoices WHERE invoice_id = $1)")).
		WithArgs("inv-1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	repo := NewInvoiceRepository(db)
	require.NoError(t, repo.Overwrite(context.Background(), sampleInvoice(), decimal.Zero))

	err = repo.Overwrite(context.Background(), sampleInvoice(), decimal.Zero)
	assert.ErrorIs(t, err, billing.ErrConcurrentUpdate)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInvoiceRepository_OverwriteMissing(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta("SET calculated_amount = $1")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS")).
		WithArgs("inv-1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

	err = NewInvoiceRepository(db).Overwrite(context.Background(), sampleInvoice(), decimal.Zero)
	assert.ErrorIs(t, err, billing.ErrInvoiceNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInvoiceRepository_Delete(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM invoice_items")).WithArgs("inv-1").WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM invoices")).WithArgs("inv-1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	deleted, err := NewInvoiceRepository(db).Delete(context.Background(), "inv-1")
	require.NoError(t, err)
	assert.True(t, deleted)
	assert.NoError(t, mock.ExpectationsWereMet())
}
