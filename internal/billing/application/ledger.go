package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"academy-cloud/internal/auth"
	billing "academy-cloud/internal/billing/domain"
	"academy-cloud/internal/observability/metrics"
)

// GenerateRequest selects what to bill.
type GenerateRequest struct {
	StudentID string
	BatchID   string
	Period    billing.BillingPeriod
}

// Ledger owns invoice creation and the payment lifecycle. It holds no
// per-request state; every read-modify-write goes through the store's
// compare-and-swap.
type Ledger struct {
	store      billing.InvoiceStore
	batches    BatchCatalog
	attendance AttendanceStore
	guard      AccessGuard

	students  StudentDirectory
	publisher EventPublisher
	activity  ActivityLogger
	clock     Clock
	newID     IDGenerator
	logger    logrus.FieldLogger
	cfg       Config
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithClock overrides the time source.
func WithClock(clock Clock) Option {
	return func(l *Ledger) {
		if clock != nil {
			l.clock = clock
		}
	}
}

// WithIDGenerator overrides invoice id minting.
func WithIDGenerator(gen IDGenerator) Option {
	return func(l *Ledger) {
		if gen != nil {
			l.newID = gen
		}
	}
}

// WithPublisher sets the event publisher.
func WithPublisher(publisher EventPublisher) Option {
	return func(l *Ledger) { l.publisher = publisher }
}

// WithActivityLog sets the activity logger.
func WithActivityLog(activity ActivityLogger) Option {
	return func(l *Ledger) { l.activity = activity }
}

// WithStudentDirectory enables the student membership check on generation.
func WithStudentDirectory(students StudentDirectory) Option {
	return func(l *Ledger) { l.students = students }
}

// WithLogger sets the logger.
func WithLogger(logger logrus.FieldLogger) Option {
	return func(l *Ledger) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// WithConfig overrides the default settings.
func WithConfig(cfg Config) Option {
	return func(l *Ledger) { l.cfg = cfg }
}

// NewLedger constructs a ledger.
func NewLedger(store billing.InvoiceStore, batches BatchCatalog, attendance AttendanceStore, guard AccessGuard, opts ...Option) (*Ledger, error) {
	if store == nil {
		return nil, errors.New("invoice ledger: nil invoice store")
	}
	if batches == nil {
		return nil, errors.New("invoice ledger: nil batch catalog")
	}
	if attendance == nil {
		return nil, errors.New("invoice ledger: nil attendance store")
	}
	if guard == nil {
		return nil, errors.New("invoice ledger: nil access guard")
	}
	l := &Ledger{
		store:      store,
		batches:    batches,
		attendance: attendance,
		guard:      guard,
		clock:      SystemClock{},
		newID:      uuid.NewString,
		logger:     logrus.StandardLogger(),
		cfg:        DefaultConfig(),
	}
	for _, opt := range opts {
		opt(l)
	}
	if err := l.cfg.Validate(); err != nil {
		return nil, err
	}
	return l, nil
}

// Config returns the active settings.
func (l *Ledger) Config() Config { return l.cfg }

// GenerateInvoice prices the student's attendance for the period and stores a
// new PENDING invoice. Repeated calls create distinct invoices.
func (l *Ledger) GenerateInvoice(ctx context.Context, actorID, organizationID string, req GenerateRequest) (*billing.Invoice, error) {
	start := time.Now()
	result := metrics.ResultSuccess
	defer func() {
		metrics.ObserveInvoiceGenerate(result, time.Since(start))
	}()

	invoice, err := l.generate(ctx, actorID, organizationID, req)
	if err != nil {
		result = metrics.ResultError
		l.logger.WithFields(logrus.Fields{
			"evt":             "invoice_generate_failed",
			"organization_id": organizationID,
			"student_id":      req.StudentID,
			"batch_id":        req.BatchID,
		}).WithError(err).Warn("invoice generation failed")
		return nil, err
	}

	l.logger.WithFields(logrus.Fields{
		"evt":             "invoice_generated",
		"invoice_id":      invoice.ID,
		"organization_id": organizationID,
		"student_id":      invoice.StudentID,
		"batch_id":        invoice.BatchID,
		"amount":          invoice.CalculatedAmount.StringFixed(2),
		"items":           len(invoice.Items),
	}).Info("invoice generated")

	l.recordActivity(ctx, Activity{
		OrganizationID: organizationID,
		ActorID:        actorID,
		Action:         ActionInvoiceGenerated,
		InvoiceID:      invoice.ID,
		StudentID:      invoice.StudentID,
		Description:    fmt.Sprintf("Generated invoice for %s to %s totalling %s", invoice.Period.Start, invoice.Period.End, invoice.CalculatedAmount.StringFixed(2)),
		Metadata: map[string]any{
			"batchId": invoice.BatchID,
			"items":   len(invoice.Items),
		},
		OccurredAt: invoice.CreatedAt,
	})
	if l.publisher != nil {
		event := InvoiceGenerated{
			InvoiceID:      invoice.ID,
			OrganizationID: invoice.OrganizationID,
			StudentID:      invoice.StudentID,
			BatchID:        invoice.BatchID,
			Period:         invoice.Period,
			Total:          invoice.CalculatedAmount,
			DueDate:        invoice.DueDate,
			ItemCount:      len(invoice.Items),
			OccurredAt:     invoice.CreatedAt,
		}
		if err := l.publisher.PublishInvoiceGenerated(ctx, event); err != nil {
			l.logger.WithField("invoice_id", invoice.ID).WithError(err).Warn("publish invoice generated failed")
		}
	}
	return invoice, nil
}

func (l *Ledger) generate(ctx context.Context, actorID, organizationID string, req GenerateRequest) (*billing.Invoice, error) {
	if organizationID == "" || req.StudentID == "" || req.BatchID == "" {
		return nil, billing.ErrEmptyID
	}
	if err := l.authorize(l.guard.RequireRole(ctx, actorID, organizationID, auth.RoleCoach)); err != nil {
		return nil, err
	}
	if err := req.Period.Validate(); err != nil {
		return nil, err
	}
	if l.students != nil {
		ok, err := l.students.IsStudent(ctx, organizationID, req.StudentID)
		if err != nil {
			return nil, billing.Internal("lookup student", err)
		}
		if !ok {
			return nil, billing.ErrStudentNotFound
		}
	}

	calc, err := l.calculate(ctx, organizationID, req.StudentID, req.BatchID, req.Period)
	if err != nil {
		return nil, err
	}

	now := l.clock.Now().UTC()
	invoice := &billing.Invoice{
		ID:               l.newID(),
		OrganizationID:   organizationID,
		StudentID:        req.StudentID,
		BatchID:          req.BatchID,
		Period:           req.Period,
		CalculatedAmount: calc.Total,
		AmountPaid:       decimal.Zero,
		Status:           billing.StatusPending,
		DueDate:          req.Period.End.AddDays(l.cfg.DueDays),
		Items:            calc.Items,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := l.store.Save(ctx, invoice); err != nil {
		return nil, billing.Internal("save invoice", err)
	}
	return invoice, nil
}

// CalculateFees prices the period without persisting anything.
func (l *Ledger) CalculateFees(ctx context.Context, actorID, organizationID, studentID, batchID string, period billing.BillingPeriod) (billing.Calculation, error) {
	if organizationID == "" || studentID == "" || batchID == "" {
		return billing.Calculation{}, billing.ErrEmptyID
	}
	if err := l.authorize(l.guard.RequireRole(ctx, actorID, organizationID, auth.RoleCoach)); err != nil {
		return billing.Calculation{}, err
	}
	return l.calculate(ctx, organizationID, studentID, batchID, period)
}

func (l *Ledger) calculate(ctx context.Context, organizationID, studentID, batchID string, period billing.BillingPeriod) (billing.Calculation, error) {
	if err := period.Validate(); err != nil {
		return billing.Calculation{}, err
	}
	batch, err := l.batches.Get(ctx, organizationID, batchID)
	if err != nil {
		if billing.KindOf(err) == billing.KindInvalidArgument {
			return billing.Calculation{}, err
		}
		return billing.Calculation{}, billing.Internal("load batch", err)
	}
	if batch == nil || batch.OrganizationID != organizationID {
		return billing.Calculation{}, billing.ErrBatchNotFound
	}
	records, err := l.attendance.ListByStudent(ctx, organizationID, studentID)
	if err != nil {
		return billing.Calculation{}, billing.Internal("load attendance", err)
	}
	calc, err := billing.Calculate(studentID, *batch, period, records)
	if err != nil {
		return billing.Calculation{}, err
	}
	metrics.IncFeeCalculation(string(batch.Fee.Model()))
	return calc, nil
}

// RecordPayment adds amount to the invoice's paid total and re-derives its
// status. A lost compare-and-swap returns ErrConcurrentUpdate and changes nothing.
func (l *Ledger) RecordPayment(ctx context.Context, actorID, organizationID, invoiceID string, payment billing.Payment) (*billing.Invoice, error) {
	start := time.Now()
	result := metrics.ResultSuccess
	defer func() {
		metrics.ObserveInvoicePayment(result, time.Since(start))
	}()

	method, err := billing.ParsePaymentMethod(string(payment.Method))
	if err != nil {
		result = metrics.ResultError
		return nil, err
	}
	payment.Method = method

	invoice, err := l.applyPayment(ctx, actorID, organizationID, invoiceID, payment)
	if err != nil {
		result = metrics.ResultError
		if errors.Is(err, billing.ErrConflictRetryable) {
			result = metrics.ResultConflict
		}
		return nil, err
	}

	l.logger.WithFields(logrus.Fields{
		"evt":             "payment_recorded",
		"invoice_id":      invoice.ID,
		"organization_id": organizationID,
		"amount":          payment.Amount.StringFixed(2),
		"amount_paid":     invoice.AmountPaid.StringFixed(2),
		"status":          invoice.Status,
	}).Info("payment recorded")

	metadata := map[string]any{
		"amount":     payment.Amount.StringFixed(2),
		"amountPaid": invoice.AmountPaid.StringFixed(2),
		"status":     string(invoice.Status),
		"method":     string(payment.Method),
	}
	if payment.Notes != "" {
		metadata["notes"] = payment.Notes
	}
	l.recordActivity(ctx, Activity{
		OrganizationID: organizationID,
		ActorID:        actorID,
		Action:         ActionPaymentRecorded,
		InvoiceID:      invoice.ID,
		StudentID:      invoice.StudentID,
		Description:    fmt.Sprintf("Recorded payment of %s by %s", payment.Amount.StringFixed(2), payment.Method),
		Metadata:       metadata,
		OccurredAt:     invoice.UpdatedAt,
	})
	if l.publisher != nil {
		event := PaymentRecorded{
			InvoiceID:      invoice.ID,
			OrganizationID: invoice.OrganizationID,
			StudentID:      invoice.StudentID,
			Amount:         payment.Amount,
			AmountPaid:     invoice.AmountPaid,
			Status:         invoice.Status,
			Method:         payment.Method,
			PaidOn:         payment.PaidOn,
			OccurredAt:     invoice.UpdatedAt,
		}
		if err := l.publisher.PublishPaymentRecorded(ctx, event); err != nil {
			l.logger.WithField("invoice_id", invoice.ID).WithError(err).Warn("publish payment recorded failed")
		}
	}
	return invoice, nil
}

func (l *Ledger) applyPayment(ctx context.Context, actorID, organizationID, invoiceID string, payment billing.Payment) (*billing.Invoice, error) {
	if organizationID == "" || invoiceID == "" {
		return nil, billing.ErrEmptyID
	}
	if err := l.authorize(l.guard.RequireRole(ctx, actorID, organizationID, auth.RoleCoach)); err != nil {
		return nil, err
	}
	if !payment.Amount.IsPositive() {
		return nil, billing.ErrInvalidAmount
	}
	if err := billing.CheckScale(payment.Amount); err != nil {
		return nil, err
	}

	invoice, err := l.load(ctx, organizationID, invoiceID)
	if err != nil {
		return nil, err
	}

	expected := invoice.AmountPaid
	newPaid := expected.Add(payment.Amount)
	status := billing.DeriveStatus(newPaid, invoice.CalculatedAmount)
	now := l.clock.Now().UTC()

	swapped, err := l.store.CompareAndSwapAmountPaid(ctx, invoiceID, expected, newPaid, status, now)
	if err != nil {
		return nil, billing.Internal("update amount paid", err)
	}
	if !swapped {
		return nil, billing.ErrConcurrentUpdate
	}

	invoice.AmountPaid = newPaid
	invoice.Status = status
	invoice.UpdatedAt = now
	return invoice, nil
}

// RecordPaymentWithRetry retries RecordPayment while it loses the
// compare-and-swap, up to the configured number of attempts.
func (l *Ledger) RecordPaymentWithRetry(ctx context.Context, actorID, organizationID, invoiceID string, payment billing.Payment) (*billing.Invoice, error) {
	attempts := l.cfg.PaymentRetryAttempts
	if attempts < 1 {
		attempts = 1
	}
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		invoice, err := l.RecordPayment(ctx, actorID, organizationID, invoiceID, payment)
		if err == nil {
			return invoice, nil
		}
		if !errors.Is(err, billing.ErrConflictRetryable) {
			return nil, err
		}
		lastErr = err
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, billing.Internal("record payment", ctxErr)
		}
		if attempt < attempts {
			metrics.IncPaymentRetry()
			l.logger.WithFields(logrus.Fields{
				"evt":        "payment_retry",
				"invoice_id": invoiceID,
				"attempt":    attempt,
			}).Debug("retrying payment after concurrent update")
		}
	}
	return nil, lastErr
}

// GetInvoice returns an invoice. Students may only read their own.
func (l *Ledger) GetInvoice(ctx context.Context, actorID, organizationID, invoiceID string) (*billing.Invoice, error) {
	if organizationID == "" || invoiceID == "" {
		return nil, billing.ErrEmptyID
	}
	if err := l.authorize(l.guard.RequireRole(ctx, actorID, organizationID, auth.RoleStudent)); err != nil {
		return nil, err
	}
	invoice, err := l.load(ctx, organizationID, invoiceID)
	if err != nil {
		return nil, err
	}
	if err := l.authorize(l.guard.RequireSelfOrRole(ctx, actorID, organizationID, invoice.StudentID, auth.RoleCoach)); err != nil {
		return nil, err
	}
	return invoice, nil
}

// ListInvoicesByStudent pages through one student's invoices.
func (l *Ledger) ListInvoicesByStudent(ctx context.Context, actorID, organizationID, studentID string, page billing.PageRequest) (billing.Page, error) {
	if organizationID == "" || studentID == "" {
		return billing.Page{}, billing.ErrEmptyID
	}
	if err := l.authorize(l.guard.RequireSelfOrRole(ctx, actorID, organizationID, studentID, auth.RoleCoach)); err != nil {
		return billing.Page{}, err
	}
	return l.list(ctx, billing.InvoiceFilter{OrganizationID: organizationID, StudentID: studentID}, page)
}

// ListInvoices pages through the organization's invoices.
func (l *Ledger) ListInvoices(ctx context.Context, actorID, organizationID string, filter billing.InvoiceFilter, page billing.PageRequest) (billing.Page, error) {
	if organizationID == "" {
		return billing.Page{}, billing.ErrEmptyID
	}
	if err := l.authorize(l.guard.RequireRole(ctx, actorID, organizationID, auth.RoleCoach)); err != nil {
		return billing.Page{}, err
	}
	if !filter.DueFrom.IsZero() && !filter.DueTo.IsZero() && filter.DueFrom.After(filter.DueTo) {
		return billing.Page{}, fmt.Errorf("%w: due date range is reversed", billing.ErrInvalidArgument)
	}
	filter.OrganizationID = organizationID
	return l.list(ctx, filter, page)
}

func (l *Ledger) list(ctx context.Context, filter billing.InvoiceFilter, page billing.PageRequest) (billing.Page, error) {
	page = l.normalizePage(page)
	items, total, err := l.store.List(ctx, filter, page)
	if err != nil {
		return billing.Page{}, billing.Internal("list invoices", err)
	}
	return billing.NewPage(items, page, total), nil
}

func (l *Ledger) normalizePage(page billing.PageRequest) billing.PageRequest {
	if page.Page < 0 {
		page.Page = 0
	}
	if page.Size <= 0 {
		page.Size = l.cfg.DefaultPageSize
	}
	if page.Size > l.cfg.MaxPageSize {
		page.Size = l.cfg.MaxPageSize
	}
	return page
}

// UpdateInvoice applies an administrative override. Status is written as given
// and is not re-derived from the amounts. A payment recorded between the read
// and the write fails the override with ErrConcurrentUpdate.
func (l *Ledger) UpdateInvoice(ctx context.Context, actorID, organizationID, invoiceID string, override billing.Override) (*billing.Invoice, error) {
	if organizationID == "" || invoiceID == "" {
		return nil, billing.ErrEmptyID
	}
	if err := l.authorize(l.guard.RequireRole(ctx, actorID, organizationID, auth.RoleCoach)); err != nil {
		return nil, err
	}
	if override.IsEmpty() {
		return nil, fmt.Errorf("%w: nothing to update", billing.ErrInvalidArgument)
	}
	if override.CalculatedAmount != nil && override.CalculatedAmount.IsNegative() {
		return nil, fmt.Errorf("%w: negative calculated amount", billing.ErrInvalidArgument)
	}
	if override.AmountPaid != nil && override.AmountPaid.IsNegative() {
		return nil, fmt.Errorf("%w: negative amount paid", billing.ErrInvalidArgument)
	}
	for _, amount := range []*decimal.Decimal{override.CalculatedAmount, override.AmountPaid} {
		if amount == nil {
			continue
		}
		if err := billing.CheckScale(*amount); err != nil {
			return nil, err
		}
	}
	if override.Status != nil {
		if _, err := billing.ParseInvoiceStatus(string(*override.Status)); err != nil {
			return nil, err
		}
	}

	invoice, err := l.load(ctx, organizationID, invoiceID)
	if err != nil {
		return nil, err
	}
	expectedPaid := invoice.AmountPaid
	override.Apply(invoice)
	invoice.UpdatedAt = l.clock.Now().UTC()
	if err := l.store.Overwrite(ctx, invoice, expectedPaid); err != nil {
		switch {
		case errors.Is(err, billing.ErrNotFound):
			return nil, billing.ErrInvoiceNotFound
		case errors.Is(err, billing.ErrConflictRetryable):
			return nil, billing.ErrConcurrentUpdate
		}
		return nil, billing.Internal("overwrite invoice", err)
	}

	l.logger.WithFields(logrus.Fields{
		"evt":             "invoice_updated",
		"invoice_id":      invoiceID,
		"organization_id": organizationID,
	}).Info("invoice updated")
	l.recordActivity(ctx, Activity{
		OrganizationID: organizationID,
		ActorID:        actorID,
		Action:         ActionInvoiceUpdated,
		InvoiceID:      invoiceID,
		StudentID:      invoice.StudentID,
		Description:    "Updated invoice",
		Metadata: map[string]any{
			"calculatedAmount": invoice.CalculatedAmount.StringFixed(2),
			"amountPaid":       invoice.AmountPaid.StringFixed(2),
			"status":           string(invoice.Status),
			"dueDate":          invoice.DueDate.String(),
		},
		OccurredAt: invoice.UpdatedAt,
	})
	return invoice, nil
}

// DeleteInvoice removes an invoice.
func (l *Ledger) DeleteInvoice(ctx context.Context, actorID, organizationID, invoiceID string) error {
	if organizationID == "" || invoiceID == "" {
		return billing.ErrEmptyID
	}
	if err := l.authorize(l.guard.RequireRole(ctx, actorID, organizationID, auth.RoleCoach)); err != nil {
		return err
	}
	invoice, err := l.load(ctx, organizationID, invoiceID)
	if err != nil {
		return err
	}
	deleted, err := l.store.Delete(ctx, invoiceID)
	if err != nil {
		return billing.Internal("delete invoice", err)
	}
	if !deleted {
		return billing.ErrInvoiceNotFound
	}

	l.logger.WithFields(logrus.Fields{
		"evt":             "invoice_deleted",
		"invoice_id":      invoiceID,
		"organization_id": organizationID,
	}).Info("invoice deleted")
	l.recordActivity(ctx, Activity{
		OrganizationID: organizationID,
		ActorID:        actorID,
		Action:         ActionInvoiceDeleted,
		InvoiceID:      invoiceID,
		StudentID:      invoice.StudentID,
		Description:    "Deleted invoice",
		OccurredAt:     l.clock.Now().UTC(),
	})
	return nil
}

// load fetches an invoice scoped to the organization. Invoices of other
// organizations are reported as not found.
func (l *Ledger) load(ctx context.Context, organizationID, invoiceID string) (*billing.Invoice, error) {
	invoice, err := l.store.Load(ctx, invoiceID)
	if err != nil {
		return nil, billing.Internal("load invoice", err)
	}
	if invoice == nil || invoice.OrganizationID != organizationID {
		return nil, billing.ErrInvoiceNotFound
	}
	return invoice, nil
}

// authorize maps a guard result into the billing error taxonomy.
func (l *Ledger) authorize(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, auth.ErrForbidden), errors.Is(err, auth.ErrUnauthorized):
		return fmt.Errorf("%w: %v", billing.ErrForbidden, err)
	default:
		return billing.Internal("authorize", err)
	}
}

func (l *Ledger) recordActivity(ctx context.Context, activity Activity) {
	if l.activity == nil {
		return
	}
	if err := l.activity.LogActivity(ctx, activity); err != nil {
		l.logger.WithFields(logrus.Fields{
			"evt":        "activity_log_failed",
			"invoice_id": activity.InvoiceID,
			"action":     activity.Action,
		}).WithError(err).Warn("activity log write failed")
	}
}
