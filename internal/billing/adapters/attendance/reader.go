package attendance

import (
	"context"
	"errors"

	attendance "academy-cloud/internal/attendance/domain"
	billing "academy-cloud/internal/billing/domain"
)

// Reader exposes attendance history in billing terms.
type Reader struct {
	query attendance.Query
}

// NewReader constructs a reader.
func NewReader(query attendance.Query) (*Reader, error) {
	if query == nil {
		return nil, errors.New("attendance reader: nil query")
	}
	return &Reader{query: query}, nil
}

// ListByStudent maps stored marks to billing attendance records. Session
// dates are taken as calendar dates in UTC.
func (r *Reader) ListByStudent(ctx context.Context, organizationID, studentID string) ([]billing.AttendanceRecord, error) {
	records, err := r.query.ListByStudent(ctx, organizationID, studentID)
	if err != nil {
		return nil, err
	}
	out := make([]billing.AttendanceRecord, 0, len(records))
	for _, record := range records {
		out = append(out, billing.AttendanceRecord{
			StudentID:   record.StudentID,
			SessionID:   record.SessionID,
			SessionDate: billing.DateOf(record.SessionDate.UTC()),
			IsPresent:   record.IsPresent,
		})
	}
	return out, nil
}
