package attendance

import (
	"context"
	"errors"
	"time"
)

// Record is one student's presence mark for one session.
type Record struct {
	OrganizationID string
	StudentID      string
	SessionID      string
	BatchID        string
	SessionDate    time.Time
	IsPresent      bool
	MarkedBy       string
	MarkedAt       time.Time
}

// Validate checks record invariants.
func (r Record) Validate() error {
	if r.OrganizationID == "" {
		return errors.New("attendance: empty organization id")
	}
	if r.StudentID == "" {
		return errors.New("attendance: empty student id")
	}
	if r.SessionID == "" {
		return errors.New("attendance: empty session id")
	}
	if r.SessionDate.IsZero() {
		return errors.New("attendance: empty session date")
	}
	return nil
}

// Repository persists attendance marks. Marking the same student and session
// again replaces the previous mark.
type Repository interface {
	Mark(ctx context.Context, record Record) error
}

// Query reads attendance history.
type Query interface {
	ListByStudent(ctx context.Context, organizationID, studentID string) ([]Record, error)
}
