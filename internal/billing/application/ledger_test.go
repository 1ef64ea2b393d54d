package application_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"academy-cloud/internal/auth"
	"academy-cloud/internal/billing/application"
	billing "academy-cloud/internal/billing/domain"
	"academy-cloud/internal/billing/infrastructure/memory"
)

const (
	orgID   = "org-1"
	coachID = "coach-1"
	stuID   = "stu-1"
	otherID = "stu-2"
)

type roleTable map[string]auth.Role

func (t roleTable) RoleOf(_ context.Context, organizationID, userID string) (auth.Role, bool, error) {
	role, ok := t[organizationID+"/"+userID]
	return role, ok, nil
}

type stubCatalog map[string]*billing.BatchFeeConfig

func (c stubCatalog) Get(_ context.Context, organizationID, batchID string) (*billing.BatchFeeConfig, error) {
	batch, ok := c[batchID]
	if !ok || batch.OrganizationID != organizationID {
		return nil, nil
	}
	return batch, nil
}

type stubAttendance []billing.AttendanceRecord

func (s stubAttendance) ListByStudent(_ context.Context, _, studentID string) ([]billing.AttendanceRecord, error) {
	var out []billing.AttendanceRecord
	for _, record := range s {
		if record.StudentID == studentID {
			out = append(out, record)
		}
	}
	return out, nil
}

type recordingPublisher struct {
	mu        sync.Mutex
	generated []application.InvoiceGenerated
	payments  []application.PaymentRecorded
}

func (p *recordingPublisher) PublishInvoiceGenerated(_ context.Context, event application.InvoiceGenerated) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.generated = append(p.generated, event)
	return nil
}

func (p *recordingPublisher) PublishPaymentRecorded(_ context.Context, event application.PaymentRecorded) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.payments = append(p.payments, event)
	return nil
}

type activitySink struct {
	mu      sync.Mutex
	entries []application.Activity
	err     error
}

func (s *activitySink) LogActivity(_ context.Context, activity application.Activity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.entries = append(s.entries, activity)
	return nil
}

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

// interleavingStore runs beforeOverwrite between the ledger's read and its
// overwrite of an invoice.
type interleavingStore struct {
	billing.InvoiceStore
	beforeOverwrite func()
}

func (s *interleavingStore) Overwrite(ctx context.Context, invoice *billing.Invoice, expectedPaid decimal.Decimal) error {
	if s.beforeOverwrite != nil {
		hook := s.beforeOverwrite
		s.beforeOverwrite = nil
		hook()
	}
	return s.InvoiceStore.Overwrite(ctx, invoice, expectedPaid)
}

// losingStore never wins a compare-and-swap.
type losingStore struct {
	billing.InvoiceStore
}

func (losingStore) CompareAndSwapAmountPaid(context.Context, string, decimal.Decimal, decimal.Decimal, billing.InvoiceStatus, time.Time) (bool, error) {
	return false, nil
}

type fixture struct {
	ledger    *application.Ledger
	store     *memory.InvoiceRepository
	publisher *recordingPublisher
	activity  *activitySink
	logs      *test.Hook
}

func d(value string) decimal.Decimal { return decimal.RequireFromString(value) }

func period(t *testing.T, start, end string) billing.BillingPeriod {
	t.Helper()
	s, err := billing.ParseDate(start)
	require.NoError(t, err)
	e, err := billing.ParseDate(end)
	require.NoError(t, err)
	return billing.BillingPeriod{Start: s, End: e}
}

func defaultBatches() stubCatalog {
	return stubCatalog{
		"b1": {BatchID: "b1", OrganizationID: orgID, Name: "Evening", Fee: billing.PerAttendanceFee{SessionFee: d("20")}},
		"b2": {BatchID: "b2", OrganizationID: orgID, Name: "Weekend", Fee: billing.FixedMonthlyFee{MonthlyFee: d("1000")}},
		"b3": {BatchID: "b3", OrganizationID: orgID, Name: "Camp", Fee: billing.OneTimeFee{Amount: d("100")}},
		"bx": {BatchID: "bx", OrganizationID: "org-2", Name: "Elsewhere", Fee: billing.OneTimeFee{Amount: d("5")}},
	}
}

func defaultAttendance() stubAttendance {
	return stubAttendance{
		{StudentID: stuID, SessionID: "s1", SessionDate: billing.NewDate(2024, 1, 5), IsPresent: true},
		{StudentID: stuID, SessionID: "s2", SessionDate: billing.NewDate(2024, 1, 12), IsPresent: false},
		{StudentID: stuID, SessionID: "s3", SessionDate: billing.NewDate(2024, 1, 19), IsPresent: true},
		{StudentID: stuID, SessionID: "s4", SessionDate: billing.NewDate(2024, 2, 2), IsPresent: true},
	}
}

func newFixture(t *testing.T, opts ...application.Option) *fixture {
	t.Helper()
	guard, err := auth.NewGuard(roleTable{
		orgID + "/" + coachID: auth.RoleCoach,
		orgID + "/" + stuID:   auth.RoleStudent,
		orgID + "/" + otherID: auth.RoleStudent,
	}, []string{"root"})
	require.NoError(t, err)

	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	store := memory.NewInvoiceRepository()
	publisher := &recordingPublisher{}
	activity := &activitySink{}

	seq := 0
	base := []application.Option{
		application.WithClock(fixedClock{now: time.Date(2024, 2, 1, 10, 0, 0, 0, time.UTC)}),
		application.WithIDGenerator(func() string {
			seq++
			return fmt.Sprintf("inv-%d", seq)
		}),
		application.WithPublisher(publisher),
		application.WithActivityLog(activity),
		application.WithLogger(logger),
	}
	ledger, err := application.NewLedger(store, defaultBatches(), defaultAttendance(), guard, append(base, opts...)...)
	require.NoError(t, err)
	return &fixture{ledger: ledger, store: store, publisher: publisher, activity: activity, logs: hook}
}

func (f *fixture) generate(t *testing.T, batchID string) *billing.Invoice {
	t.Helper()
	invoice, err := f.ledger.GenerateInvoice(context.Background(), coachID, orgID, application.GenerateRequest{
		StudentID: stuID,
		BatchID:   batchID,
		Period:    period(t, "2024-01-01", "2024-01-31"),
	})
	require.NoError(t, err)
	return invoice
}

func TestNewLedgerRejectsMissingCollaborators(t *testing.T) {
	guard, err := auth.NewGuard(roleTable{}, nil)
	require.NoError(t, err)
	store := memory.NewInvoiceRepository()

	_, err = application.NewLedger(nil, defaultBatches(), defaultAttendance(), guard)
	assert.Error(t, err)
	_, err = application.NewLedger(store, nil, defaultAttendance(), guard)
	assert.Error(t, err)
	_, err = application.NewLedger(store, defaultBatches(), nil, guard)
	assert.Error(t, err)
	_, err = application.NewLedger(store, defaultBatches(), defaultAttendance(), nil)
	assert.Error(t, err)

	bad := application.DefaultConfig()
	bad.PaymentRetryAttempts = 0
	_, err = application.NewLedger(store, defaultBatches(), defaultAttendance(), guard, application.WithConfig(bad))
	assert.Error(t, err)
}

func TestGenerateInvoicePerAttendance(t *testing.T) {
	f := newFixture(t)

	invoice := f.generate(t, "b1")

	assert.Equal(t, "inv-1", invoice.ID)
	assert.Equal(t, billing.StatusPending, invoice.Status)
	assert.True(t, invoice.CalculatedAmount.Equal(d("40")))
	assert.True(t, invoice.AmountPaid.IsZero())
	require.Len(t, invoice.Items, 2)
	assert.Equal(t, "s1", invoice.Items[0].SessionID)
	assert.Equal(t, "s3", invoice.Items[1].SessionID)
	assert.Equal(t, "Attendance for session s1 on 2024-01-05", invoice.Items[0].Description)
	assert.True(t, invoice.DueDate.Equal(billing.NewDate(2024, 3, 1)))

	stored, err := f.store.Load(context.Background(), invoice.ID)
	require.NoError(t, err)
	assert.True(t, stored.CalculatedAmount.Equal(stored.ItemsTotal()))

	require.Len(t, f.publisher.generated, 1)
	assert.Equal(t, invoice.ID, f.publisher.generated[0].InvoiceID)
	require.Len(t, f.activity.entries, 1)
	assert.Equal(t, application.ActionInvoiceGenerated, f.activity.entries[0].Action)
	assert.Equal(t, coachID, f.activity.entries[0].ActorID)
}

func TestGenerateInvoiceFixedMonthly(t *testing.T) {
	f := newFixture(t)

	invoice, err := f.ledger.GenerateInvoice(context.Background(), coachID, orgID, application.GenerateRequest{
		StudentID: stuID,
		BatchID:   "b2",
		Period:    period(t, "2024-01-15", "2024-03-10"),
	})
	require.NoError(t, err)

	assert.True(t, invoice.CalculatedAmount.Equal(d("3000")))
	require.Len(t, invoice.Items, 1)
	assert.Equal(t, billing.ItemFixedMonthly, invoice.Items[0].Kind)
}

func TestGenerateInvoiceWithoutAttendanceIsZero(t *testing.T) {
	f := newFixture(t)

	invoice, err := f.ledger.GenerateInvoice(context.Background(), coachID, orgID, application.GenerateRequest{
		StudentID: stuID,
		BatchID:   "b1",
		Period:    period(t, "2023-06-01", "2023-06-30"),
	})
	require.NoError(t, err)
	assert.True(t, invoice.CalculatedAmount.IsZero())
	assert.NotNil(t, invoice.Items)
	assert.Empty(t, invoice.Items)
}

func TestGenerateInvoiceTwiceCreatesTwoInvoices(t *testing.T) {
	f := newFixture(t)

	first := f.generate(t, "b1")
	second := f.generate(t, "b1")

	assert.NotEqual(t, first.ID, second.ID)
	page, err := f.ledger.ListInvoicesByStudent(context.Background(), coachID, orgID, stuID, billing.PageRequest{})
	require.NoError(t, err)
	assert.Equal(t, 2, page.TotalElements)
}

func TestGenerateInvoiceErrors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	jan := period(t, "2024-01-01", "2024-01-31")

	cases := []struct {
		name  string
		actor string
		req   application.GenerateRequest
		kind  billing.Kind
	}{
		{"student cannot generate", stuID, application.GenerateRequest{StudentID: stuID, BatchID: "b1", Period: jan}, billing.KindForbidden},
		{"stranger cannot generate", "nobody", application.GenerateRequest{StudentID: stuID, BatchID: "b1", Period: jan}, billing.KindForbidden},
		{"unknown batch", coachID, application.GenerateRequest{StudentID: stuID, BatchID: "missing", Period: jan}, billing.KindNotFound},
		{"batch of another organization", coachID, application.GenerateRequest{StudentID: stuID, BatchID: "bx", Period: jan}, billing.KindNotFound},
		{"reversed period", coachID, application.GenerateRequest{StudentID: stuID, BatchID: "b1", Period: period(t, "2024-02-01", "2024-01-01")}, billing.KindInvalidArgument},
		{"missing student", coachID, application.GenerateRequest{BatchID: "b1", Period: jan}, billing.KindInvalidArgument},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.ledger.GenerateInvoice(ctx, tc.actor, orgID, tc.req)
			require.Error(t, err)
			assert.Equal(t, tc.kind, billing.KindOf(err))
		})
	}

	_, total, err := f.store.List(ctx, billing.InvoiceFilter{OrganizationID: orgID}, billing.PageRequest{Size: 10})
	require.NoError(t, err)
	assert.Zero(t, total)
}

func TestGenerateInvoiceSuperAdminBypassesMembership(t *testing.T) {
	f := newFixture(t)

	_, err := f.ledger.GenerateInvoice(context.Background(), "root", orgID, application.GenerateRequest{
		StudentID: stuID,
		BatchID:   "b3",
		Period:    period(t, "2024-01-01", "2024-01-31"),
	})
	assert.NoError(t, err)
}

func TestCalculateFeesPersistsNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	calc, err := f.ledger.CalculateFees(ctx, coachID, orgID, stuID, "b1", period(t, "2024-01-01", "2024-02-29"))
	require.NoError(t, err)
	assert.True(t, calc.Total.Equal(d("60")))
	assert.Len(t, calc.Items, 3)

	_, total, err := f.store.List(ctx, billing.InvoiceFilter{OrganizationID: orgID}, billing.PageRequest{Size: 10})
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, f.activity.entries)
}

func TestRecordPaymentLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	invoice := f.generate(t, "b3")

	partial, err := f.ledger.RecordPayment(ctx, coachID, orgID, invoice.ID, billing.Payment{Amount: d("40"), Method: billing.MethodCash})
	require.NoError(t, err)
	assert.Equal(t, billing.StatusPartiallyPaid, partial.Status)
	assert.True(t, partial.AmountPaid.Equal(d("40")))

	paid, err := f.ledger.RecordPayment(ctx, coachID, orgID, invoice.ID, billing.Payment{Amount: d("60")})
	require.NoError(t, err)
	assert.Equal(t, billing.StatusPaid, paid.Status)
	assert.True(t, paid.AmountPaid.Equal(d("100")))

	stored, err := f.store.Load(ctx, invoice.ID)
	require.NoError(t, err)
	assert.Equal(t, billing.StatusPaid, stored.Status)
	assert.True(t, stored.AmountPaid.Equal(d("100")))

	require.Len(t, f.publisher.payments, 2)
	assert.Equal(t, billing.MethodCash, f.publisher.payments[0].Method)
	assert.Equal(t, billing.MethodOther, f.publisher.payments[1].Method)

	last := f.activity.entries[len(f.activity.entries)-1]
	assert.Equal(t, application.ActionPaymentRecorded, last.Action)
	assert.Equal(t, "OTHER", last.Metadata["method"])
	assert.Contains(t, last.Description, "by OTHER")
}

func TestRecordPaymentRejectsSubCentAmounts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	invoice := f.generate(t, "b3")

	_, err := f.ledger.RecordPayment(ctx, coachID, orgID, invoice.ID, billing.Payment{Amount: d("10.125")})
	assert.Equal(t, billing.KindInvalidArgument, billing.KindOf(err))

	_, err = f.ledger.RecordPayment(ctx, coachID, orgID, invoice.ID, billing.Payment{Amount: d("1"), Method: "BARTER"})
	assert.Equal(t, billing.KindInvalidArgument, billing.KindOf(err))

	paid, err := f.ledger.RecordPayment(ctx, coachID, orgID, invoice.ID, billing.Payment{Amount: d("10.100"), Method: "upi"})
	require.NoError(t, err)
	assert.True(t, paid.AmountPaid.Equal(d("10.10")))
	assert.Equal(t, billing.MethodUPI, f.publisher.payments[0].Method)

	fine := d("99.999")
	_, err = f.ledger.UpdateInvoice(ctx, coachID, orgID, invoice.ID, billing.Override{CalculatedAmount: &fine})
	assert.Equal(t, billing.KindInvalidArgument, billing.KindOf(err))
}

func TestRecordPaymentOverpaymentIsKept(t *testing.T) {
	f := newFixture(t)
	invoice := f.generate(t, "b3")

	paid, err := f.ledger.RecordPayment(context.Background(), coachID, orgID, invoice.ID, billing.Payment{Amount: d("150")})
	require.NoError(t, err)
	assert.Equal(t, billing.StatusPaid, paid.Status)
	assert.True(t, paid.AmountPaid.Equal(d("150")))
	assert.True(t, paid.Outstanding().IsZero())
}

func TestRecordPaymentOnZeroInvoiceBecomesPaid(t *testing.T) {
	f := newFixture(t)
	invoice, err := f.ledger.GenerateInvoice(context.Background(), coachID, orgID, application.GenerateRequest{
		StudentID: stuID,
		BatchID:   "b1",
		Period:    period(t, "2023-06-01", "2023-06-30"),
	})
	require.NoError(t, err)

	paid, err := f.ledger.RecordPayment(context.Background(), coachID, orgID, invoice.ID, billing.Payment{Amount: d("1")})
	require.NoError(t, err)
	assert.Equal(t, billing.StatusPaid, paid.Status)
}

func TestRecordPaymentErrors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	invoice := f.generate(t, "b3")

	_, err := f.ledger.RecordPayment(ctx, coachID, orgID, invoice.ID, billing.Payment{Amount: d("0")})
	assert.ErrorIs(t, err, billing.ErrInvalidAmount)
	_, err = f.ledger.RecordPayment(ctx, coachID, orgID, invoice.ID, billing.Payment{Amount: d("-5")})
	assert.Equal(t, billing.KindInvalidArgument, billing.KindOf(err))
	_, err = f.ledger.RecordPayment(ctx, stuID, orgID, invoice.ID, billing.Payment{Amount: d("5")})
	assert.Equal(t, billing.KindForbidden, billing.KindOf(err))
	_, err = f.ledger.RecordPayment(ctx, coachID, orgID, "missing", billing.Payment{Amount: d("5")})
	assert.Equal(t, billing.KindNotFound, billing.KindOf(err))
	_, err = f.ledger.RecordPayment(ctx, "root", "org-2", invoice.ID, billing.Payment{Amount: d("5")})
	assert.Equal(t, billing.KindNotFound, billing.KindOf(err))

	stored, err := f.store.Load(ctx, invoice.ID)
	require.NoError(t, err)
	assert.True(t, stored.AmountPaid.IsZero())
	assert.Equal(t, billing.StatusPending, stored.Status)
}

func TestRecordPaymentLostSwapIsRetryable(t *testing.T) {
	f := newFixture(t)
	invoice := f.generate(t, "b3")

	guard, err := auth.NewGuard(roleTable{orgID + "/" + coachID: auth.RoleCoach}, nil)
	require.NoError(t, err)
	ledger, err := application.NewLedger(losingStore{InvoiceStore: f.store}, defaultBatches(), defaultAttendance(), guard)
	require.NoError(t, err)

	_, err = ledger.RecordPayment(context.Background(), coachID, orgID, invoice.ID, billing.Payment{Amount: d("10")})
	assert.ErrorIs(t, err, billing.ErrConcurrentUpdate)
	assert.Equal(t, billing.KindConflictRetryable, billing.KindOf(err))

	_, err = ledger.RecordPaymentWithRetry(context.Background(), coachID, orgID, invoice.ID, billing.Payment{Amount: d("10")})
	assert.Equal(t, billing.KindConflictRetryable, billing.KindOf(err))

	stored, err := f.store.Load(context.Background(), invoice.ID)
	require.NoError(t, err)
	assert.True(t, stored.AmountPaid.IsZero())
}

func TestConcurrentPaymentsAllLand(t *testing.T) {
	cfg := application.DefaultConfig()
	cfg.PaymentRetryAttempts = 10
	f := newFixture(t, application.WithConfig(cfg))
	invoice := f.generate(t, "b3")

	var wg sync.WaitGroup
	errs := make(chan error, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.ledger.RecordPaymentWithRetry(context.Background(), coachID, orgID, invoice.ID, billing.Payment{Amount: d("20")})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	stored, err := f.store.Load(context.Background(), invoice.ID)
	require.NoError(t, err)
	assert.True(t, stored.AmountPaid.Equal(d("200")), stored.AmountPaid.String())
	assert.Equal(t, billing.StatusPaid, stored.Status)
}

func TestActivityLogFailureOnlyWarns(t *testing.T) {
	f := newFixture(t)
	f.activity.err = errors.New("activity table gone")

	invoice := f.generate(t, "b1")
	assert.NotEmpty(t, invoice.ID)

	var warned bool
	for _, entry := range f.logs.AllEntries() {
		if entry.Data["evt"] == "activity_log_failed" {
			warned = true
			assert.Equal(t, logrus.WarnLevel, entry.Level)
		}
	}
	assert.True(t, warned)
}

func TestGetInvoiceVisibility(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	invoice := f.generate(t, "b1")

	got, err := f.ledger.GetInvoice(ctx, stuID, orgID, invoice.ID)
	require.NoError(t, err)
	assert.Equal(t, invoice.ID, got.ID)

	_, err = f.ledger.GetInvoice(ctx, coachID, orgID, invoice.ID)
	assert.NoError(t, err)

	_, err = f.ledger.GetInvoice(ctx, otherID, orgID, invoice.ID)
	assert.Equal(t, billing.KindForbidden, billing.KindOf(err))

	_, err = f.ledger.GetInvoice(ctx, "root", "org-2", invoice.ID)
	assert.Equal(t, billing.KindNotFound, billing.KindOf(err))
}

func TestListInvoicesByStudent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		f.generate(t, "b3")
	}

	page, err := f.ledger.ListInvoicesByStudent(ctx, stuID, orgID, stuID, billing.PageRequest{Page: 0, Size: 2})
	require.NoError(t, err)
	assert.Equal(t, 3, page.TotalElements)
	assert.Equal(t, 2, page.TotalPages)
	assert.Len(t, page.Items, 2)

	_, err = f.ledger.ListInvoicesByStudent(ctx, otherID, orgID, stuID, billing.PageRequest{})
	assert.Equal(t, billing.KindForbidden, billing.KindOf(err))

	empty, err := f.ledger.ListInvoicesByStudent(ctx, coachID, orgID, otherID, billing.PageRequest{})
	require.NoError(t, err)
	assert.Zero(t, empty.TotalElements)
	assert.NotNil(t, empty.Items)
}

func TestListInvoicesFilters(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	first := f.generate(t, "b3")
	f.generate(t, "b1")
	_, err := f.ledger.RecordPayment(ctx, coachID, orgID, first.ID, billing.Payment{Amount: d("100")})
	require.NoError(t, err)

	paid, err := f.ledger.ListInvoices(ctx, coachID, orgID, billing.InvoiceFilter{Status: billing.StatusPaid}, billing.PageRequest{})
	require.NoError(t, err)
	require.Equal(t, 1, paid.TotalElements)
	assert.Equal(t, first.ID, paid.Items[0].ID)

	byBatch, err := f.ledger.ListInvoices(ctx, coachID, orgID, billing.InvoiceFilter{BatchID: "b1"}, billing.PageRequest{})
	require.NoError(t, err)
	assert.Equal(t, 1, byBatch.TotalElements)

	_, err = f.ledger.ListInvoices(ctx, stuID, orgID, billing.InvoiceFilter{}, billing.PageRequest{})
	assert.Equal(t, billing.KindForbidden, billing.KindOf(err))

	_, err = f.ledger.ListInvoices(ctx, coachID, orgID, billing.InvoiceFilter{
		DueFrom: billing.NewDate(2024, 4, 1),
		DueTo:   billing.NewDate(2024, 3, 1),
	}, billing.PageRequest{})
	assert.Equal(t, billing.KindInvalidArgument, billing.KindOf(err))
}

func TestListInvoicesClampsPageSize(t *testing.T) {
	f := newFixture(t)

	page, err := f.ledger.ListInvoices(context.Background(), coachID, orgID, billing.InvoiceFilter{}, billing.PageRequest{Page: -1, Size: 5000})
	require.NoError(t, err)
	assert.Equal(t, 0, page.Page)
	assert.Equal(t, f.ledger.Config().MaxPageSize, page.Size)
}

func TestUpdateInvoiceWritesStatusAsGiven(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	invoice := f.generate(t, "b3")

	paidStatus := billing.StatusPaid
	amount := d("80")
	updated, err := f.ledger.UpdateInvoice(ctx, coachID, orgID, invoice.ID, billing.Override{
		CalculatedAmount: &amount,
		Status:           &paidStatus,
	})
	require.NoError(t, err)
	assert.Equal(t, billing.StatusPaid, updated.Status)
	assert.True(t, updated.AmountPaid.IsZero())
	assert.True(t, updated.CalculatedAmount.Equal(d("80")))
	assert.Len(t, updated.Items, 1)

	stored, err := f.store.Load(ctx, invoice.ID)
	require.NoError(t, err)
	assert.Equal(t, billing.StatusPaid, stored.Status)

	_, err = f.ledger.UpdateInvoice(ctx, coachID, orgID, invoice.ID, billing.Override{})
	assert.Equal(t, billing.KindInvalidArgument, billing.KindOf(err))

	negative := d("-1")
	_, err = f.ledger.UpdateInvoice(ctx, coachID, orgID, invoice.ID, billing.Override{AmountPaid: &negative})
	assert.Equal(t, billing.KindInvalidArgument, billing.KindOf(err))

	_, err = f.ledger.UpdateInvoice(ctx, stuID, orgID, invoice.ID, billing.Override{Status: &paidStatus})
	assert.Equal(t, billing.KindForbidden, billing.KindOf(err))
}

func TestUpdateInvoiceKeepsConcurrentPayment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	invoice := f.generate(t, "b3")

	guard, err := auth.NewGuard(roleTable{orgID + "/" + coachID: auth.RoleCoach}, nil)
	require.NoError(t, err)
	store := &interleavingStore{InvoiceStore: f.store}
	ledger, err := application.NewLedger(store, defaultBatches(), defaultAttendance(), guard)
	require.NoError(t, err)
	store.beforeOverwrite = func() {
		_, err := ledger.RecordPayment(ctx, coachID, orgID, invoice.ID, billing.Payment{Amount: d("40")})
		require.NoError(t, err)
	}

	due := billing.NewDate(2024, 6, 1)
	_, err = ledger.UpdateInvoice(ctx, coachID, orgID, invoice.ID, billing.Override{DueDate: &due})
	assert.ErrorIs(t, err, billing.ErrConcurrentUpdate)
	assert.Equal(t, billing.KindConflictRetryable, billing.KindOf(err))

	stored, err := f.store.Load(ctx, invoice.ID)
	require.NoError(t, err)
	assert.True(t, stored.AmountPaid.Equal(d("40")))
	assert.Equal(t, billing.StatusPartiallyPaid, stored.Status)
	assert.Equal(t, "2024-03-01", stored.DueDate.String())

	updated, err := ledger.UpdateInvoice(ctx, coachID, orgID, invoice.ID, billing.Override{DueDate: &due})
	require.NoError(t, err)
	assert.True(t, updated.AmountPaid.Equal(d("40")))
	assert.Equal(t, "2024-06-01", updated.DueDate.String())
}

func TestDeleteInvoice(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	invoice := f.generate(t, "b3")

	assert.Equal(t, billing.KindForbidden, billing.KindOf(f.ledger.DeleteInvoice(ctx, stuID, orgID, invoice.ID)))
	require.NoError(t, f.ledger.DeleteInvoice(ctx, coachID, orgID, invoice.ID))
	assert.Equal(t, billing.KindNotFound, billing.KindOf(f.ledger.DeleteInvoice(ctx, coachID, orgID, invoice.ID)))

	_, err := f.ledger.GetInvoice(ctx, coachID, orgID, invoice.ID)
	assert.Equal(t, billing.KindNotFound, billing.KindOf(err))

	last := f.activity.entries[len(f.activity.entries)-1]
	assert.Equal(t, application.ActionInvoiceDeleted, last.Action)
}
