package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	attendance "academy-cloud/internal/attendance/domain"
)

const defaultAttendanceTable = "attendance"

// Repository is a Postgres implementation of attendance storage.
type Repository struct {
	db    *sql.DB
	table string
}

// Option configures the repository.
type Option func(*Repository)

// WithTable overrides the default table name.
func WithTable(table string) Option {
	return func(r *Repository) {
		if table != "" {
			r.table = table
		}
	}
}

// NewRepository constructs a repository with default table name.
func NewRepository(db *sql.DB, opts ...Option) *Repository {
	repo := &Repository{db: db, table: defaultAttendanceTable}
	for _, opt := range opts {
		opt(repo)
	}
	return repo
}

// Mark upserts a presence mark.
func (r *Repository) Mark(ctx context.Context, record attendance.Record) error {
	if r == nil || r.db == nil {
		return errors.New("attendance repo: nil db")
	}
	if err := record.Validate(); err != nil {
		return err
	}

	query := fmt.Sprintf(`
INSERT INTO %s (
	organization_id,
	student_id,
	session_id,
	batch_id,
	session_date,
	is_present,
	marked_by,
	marked_at
) VALUES (
	$1, $2, $3, $4, $5, $6, $7, $8
)
ON CONFLICT (organization_id, student_id, session_id)
DO UPDATE SET
	is_present = EXCLUDED.is_present,
	marked_by = EXCLUDED.marked_by,
	marked_at = EXCLUDED.marked_at`, r.table)

	_, err := r.db.ExecContext(ctx, query,
		record.OrganizationID,
		record.StudentID,
		record.SessionID,
		sql.NullString{String: record.BatchID, Valid: record.BatchID != ""},
		record.SessionDate.UTC(),
		record.IsPresent,
		sql.NullString{String: record.MarkedBy, Valid: record.MarkedBy != ""},
		record.MarkedAt.UTC(),
	)
	return err
}

// ListByStudent returns a student's marks ordered by session date.
func (r *Repository) ListByStudent(ctx context.Context, organizationID, studentID string) ([]attendance.Record, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("attendance query: nil db")
	}
	if organizationID == "" || studentID == "" {
		return nil, errors.New("attendance query: invalid arguments")
	}

	query := fmt.Sprintf(`
SELECT organization_id, student_id, session_id, batch_id, session_date, is_present, marked_by, marked_at
FROM %s
WHERE organization_id = $1
	AND student_id = $2
ORDER BY session_date ASC, marked_at ASC`, r.table)

	rows, err := r.db.QueryContext(ctx, query, organizationID, studentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []attendance.Record
	for rows.Next() {
		var record attendance.Record
		var batchID, markedBy sql.NullString
		var markedAt sql.NullTime
		if err := rows.Scan(
			&record.OrganizationID,
			&record.StudentID,
			&record.SessionID,
			&batchID,
			&record.SessionDate,
			&record.IsPresent,
			&markedBy,
			&markedAt,
		); err != nil {
			return nil, err
		}
		record.BatchID = batchID.String
		record.MarkedBy = markedBy.String
		if markedAt.Valid {
			record.MarkedAt = markedAt.Time.UTC()
		}
		record.SessionDate = record.SessionDate.UTC()
		result = append(result, record)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
