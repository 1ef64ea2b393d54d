package application

import (
	"context"
	"time"

	"academy-cloud/internal/auth"
	billing "academy-cloud/internal/billing/domain"
)

// AttendanceStore reads a student's attendance within an organization.
type AttendanceStore interface {
	ListByStudent(ctx context.Context, organizationID, studentID string) ([]billing.AttendanceRecord, error)
}

// BatchCatalog resolves batch fee configuration. It returns nil, nil when the
// batch does not exist in the organization.
type BatchCatalog interface {
	Get(ctx context.Context, organizationID, batchID string) (*billing.BatchFeeConfig, error)
}

// AccessGuard authorizes a user against an organization.
type AccessGuard interface {
	RequireRole(ctx context.Context, userID, organizationID string, role auth.Role) error
	// RequireSelfOrRole passes when userID is subjectID or holds role.
	RequireSelfOrRole(ctx context.Context, userID, organizationID, subjectID string, role auth.Role) error
}

// StudentDirectory confirms a student belongs to an organization.
type StudentDirectory interface {
	IsStudent(ctx context.Context, organizationID, studentID string) (bool, error)
}

// EventPublisher publishes ledger events.
type EventPublisher interface {
	PublishInvoiceGenerated(ctx context.Context, event InvoiceGenerated) error
	PublishPaymentRecorded(ctx context.Context, event PaymentRecorded) error
}

// ActivityLogger records who changed which invoice.
type ActivityLogger interface {
	LogActivity(ctx context.Context, activity Activity) error
}

// Clock provides current time.
type Clock interface {
	Now() time.Time
}

// SystemClock uses time.Now.
type SystemClock struct{}

// Now returns current time.
func (SystemClock) Now() time.Time {
	return time.Now()
}

// IDGenerator mints invoice identifiers.
type IDGenerator func() string
