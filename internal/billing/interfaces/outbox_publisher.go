package interfaces

import (
	"context"

	"academy-cloud/internal/billing/application"
	"academy-cloud/internal/eventing"
)

// OutboxPublisher writes ledger events to the outbox.
type OutboxPublisher struct {
	publisher *eventing.Publisher
}

// NewOutboxPublisher constructs an outbox publisher.
func NewOutboxPublisher(publisher *eventing.Publisher) *OutboxPublisher {
	return &OutboxPublisher{publisher: publisher}
}

// PublishInvoiceGenerated writes the event to the outbox.
func (p *OutboxPublisher) PublishInvoiceGenerated(ctx context.Context, event application.InvoiceGenerated) error {
	if p == nil || p.publisher == nil {
		return nil
	}
	return p.publisher.Publish(ctx, event, eventing.Meta{
		OccurredAt:     event.OccurredAt,
		OrganizationID: event.OrganizationID,
		AggregateID:    event.InvoiceID,
	})
}

// PublishPaymentRecorded writes the event to the outbox.
func (p *OutboxPublisher) PublishPaymentRecorded(ctx context.Context, event application.PaymentRecorded) error {
	if p == nil || p.publisher == nil {
		return nil
	}
	return p.publisher.Publish(ctx, event, eventing.Meta{
		OccurredAt:     event.OccurredAt,
		OrganizationID: event.OrganizationID,
		AggregateID:    event.InvoiceID,
	})
}
