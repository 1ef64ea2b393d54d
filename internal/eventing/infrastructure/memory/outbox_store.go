package memory

import (
	"context"
	"sync"

	"academy-cloud/internal/eventing"
)

const (
	statusPending = "pending"
	statusSent    = "sent"
	statusFailed  = "failed"
)

type outboxRow struct {
	id       string
	env      eventing.Envelope
	status   string
	attempts int
}

// OutboxStore keeps outbox records in memory.
type OutboxStore struct {
	mu   sync.Mutex
	rows []*outboxRow
}

// NewOutboxStore constructs an empty store.
func NewOutboxStore() *OutboxStore {
	return &OutboxStore{}
}

// Insert appends a pending record.
func (s *OutboxStore) Insert(ctx context.Context, env eventing.Envelope) (string, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	id := eventing.NewEventID()
	s.rows = append(s.rows, &outboxRow{id: id, env: env, status: statusPending})
	return id, nil
}

// ListPending returns pending records in insertion order.
func (s *OutboxStore) ListPending(ctx context.Context, limit int) ([]eventing.OutboxRecord, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []eventing.OutboxRecord
	for _, row := range s.rows {
		if row.status != statusPending {
			continue
		}
		out = append(out, eventing.OutboxRecord{ID: row.id, Envelope: row.env})
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// MarkSent marks a record sent.
func (s *OutboxStore) MarkSent(ctx context.Context, id string) error {
	return s.mark(id, statusSent)
}

// MarkFailed marks a record failed.
func (s *OutboxStore) MarkFailed(ctx context.Context, id string) error {
	return s.mark(id, statusFailed)
}

// Envelopes returns every stored envelope regardless of status.
func (s *OutboxStore) Envelopes() []eventing.Envelope {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]eventing.Envelope, 0, len(s.rows))
	for _, row := range s.rows {
		out = append(out, row.env)
	}
	return out
}

func (s *OutboxStore) mark(id, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, row := range s.rows {
		if row.id == id {
			row.status = status
			if status == statusFailed {
				row.attempts++
			}
			return nil
		}
	}
	return nil
}
