package interfaces

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"

	"academy-cloud/internal/billing/application"
)

// LoggingPublisher logs ledger events.
type LoggingPublisher struct {
	logger logrus.FieldLogger
}

// NewLoggingPublisher constructs a logging publisher.
func NewLoggingPublisher(logger logrus.FieldLogger) *LoggingPublisher {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &LoggingPublisher{logger: logger}
}

// PublishInvoiceGenerated logs the event.
func (p *LoggingPublisher) PublishInvoiceGenerated(ctx context.Context, event application.InvoiceGenerated) error {
	_ = ctx
	if p == nil {
		return errors.New("invoice publisher: nil publisher")
	}
	p.logger.WithFields(logrus.Fields{
		"evt":             event.EventName(),
		"invoice_id":      event.InvoiceID,
		"organization_id": event.OrganizationID,
		"student_id":      event.StudentID,
		"total":           event.Total.StringFixed(2),
	}).Info("invoice generated event")
	return nil
}

// PublishPaymentRecorded logs the event.
func (p *LoggingPublisher) PublishPaymentRecorded(ctx context.Context, event application.PaymentRecorded) error {
	_ = ctx
	if p == nil {
		return errors.New("invoice publisher: nil publisher")
	}
	p.logger.WithFields(logrus.Fields{
		"evt":             event.EventName(),
		"invoice_id":      event.InvoiceID,
		"organization_id": event.OrganizationID,
		"amount":          event.Amount.StringFixed(2),
		"status":          event.Status,
	}).Info("payment recorded event")
	return nil
}
