package memory

import (
	"context"
	"sort"
	"sync"

	attendance "academy-cloud/internal/attendance/domain"
)

// Repository keeps attendance marks in memory.
type Repository struct {
	mu      sync.RWMutex
	records map[string]attendance.Record
}

// NewRepository constructs an empty repository.
func NewRepository() *Repository {
	return &Repository{records: make(map[string]attendance.Record)}
}

func recordKey(r attendance.Record) string {
	return r.OrganizationID + "|" + r.StudentID + "|" + r.SessionID
}

// Mark upserts a presence mark.
func (r *Repository) Mark(ctx context.Context, record attendance.Record) error {
	_ = ctx
	if err := record.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records[recordKey(record)] = record
	return nil
}

// ListByStudent returns a student's marks ordered by session date.
func (r *Repository) ListByStudent(ctx context.Context, organizationID, studentID string) ([]attendance.Record, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []attendance.Record
	for _, record := range r.records {
		if record.OrganizationID == organizationID && record.StudentID == studentID {
			out = append(out, record)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].SessionDate.Equal(out[j].SessionDate) {
			return out[i].SessionDate.Before(out[j].SessionDate)
		}
		if !out[i].MarkedAt.Equal(out[j].MarkedAt) {
			return out[i].MarkedAt.Before(out[j].MarkedAt)
		}
		return out[i].SessionID < out[j].SessionID
	})
	return out, nil
}
