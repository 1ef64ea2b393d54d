package eventing

import (
	"context"
	"errors"
)

// OutboxWriter inserts outbox records.
type OutboxWriter interface {
	Insert(ctx context.Context, env Envelope) (string, error)
}

// Publisher writes events to the outbox and triggers dispatch.
type Publisher struct {
	outbox   OutboxWriter
	dispatch *Dispatcher
}

// NewPublisher constructs a publisher. dispatch may be nil.
func NewPublisher(outbox OutboxWriter, dispatch *Dispatcher) *Publisher {
	return &Publisher{outbox: outbox, dispatch: dispatch}
}

// Publish writes the event to outbox and triggers dispatch.
func (p *Publisher) Publish(ctx context.Context, event any, meta Meta) error {
	if p == nil || p.outbox == nil {
		return nil
	}
	if meta.CorrelationID == "" {
		meta.CorrelationID = CorrelationIDFromContext(ctx)
	}
	env, err := BuildEnvelope(event, meta)
	if err != nil {
		return err
	}
	if _, err := p.outbox.Insert(ctx, env); err != nil {
		return err
	}
	if p.dispatch != nil {
		_ = p.dispatch.Dispatch(ctx, 1)
	}
	return nil
}

// Handler consumes one delivered envelope.
type Handler func(ctx context.Context, env Envelope) error

// OutboxStore provides access to outbox records.
type OutboxStore interface {
	ListPending(ctx context.Context, limit int) ([]OutboxRecord, error)
	MarkSent(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id string) error
}

// OutboxRecord represents a pending outbox entry.
type OutboxRecord struct {
	ID       string
	Envelope Envelope
}

// Dispatcher relays pending outbox records to in-process handlers.
type Dispatcher struct {
	outbox   OutboxStore
	handlers map[string][]Handler
}

// NewDispatcher constructs a dispatcher.
func NewDispatcher(outbox OutboxStore) *Dispatcher {
	return &Dispatcher{outbox: outbox, handlers: make(map[string][]Handler)}
}

// Subscribe registers a handler for an event type. "*" receives every type.
// Not safe to call concurrently with Dispatch.
func (d *Dispatcher) Subscribe(eventType string, handler Handler) {
	if d == nil || handler == nil {
		return
	}
	d.handlers[eventType] = append(d.handlers[eventType], handler)
}

// Dispatch pulls pending outbox messages and delivers them.
func (d *Dispatcher) Dispatch(ctx context.Context, limit int) error {
	if d == nil || d.outbox == nil {
		return errors.New("eventing: nil outbox")
	}
	if limit <= 0 {
		limit = 50
	}
	records, err := d.outbox.ListPending(ctx, limit)
	if err != nil {
		return err
	}

	for _, record := range records {
		env := record.Envelope
		ctxWithEnv := WithEnvelope(ctx, env)
		if err := d.deliver(ctxWithEnv, env); err != nil {
			_ = d.outbox.MarkFailed(ctx, record.ID)
			continue
		}
		_ = d.outbox.MarkSent(ctx, record.ID)
	}
	return nil
}

func (d *Dispatcher) deliver(ctx context.Context, env Envelope) error {
	handlers := append([]Handler{}, d.handlers[env.EventType]...)
	handlers = append(handlers, d.handlers["*"]...)
	for _, handler := range handlers {
		if err := handler(ctx, env); err != nil {
			return err
		}
	}
	return nil
}
