package billing

import (
	"errors"
	"fmt"
)

// Error kinds. Every error returned by the billing engine wraps exactly one.
var (
	ErrForbidden         = errors.New("billing: forbidden")
	ErrNotFound          = errors.New("billing: not found")
	ErrInvalidArgument   = errors.New("billing: invalid argument")
	ErrConflictRetryable = errors.New("billing: conflict")
	ErrInternal          = errors.New("billing: internal error")
)

var (
	// ErrInvalidPeriod is returned when a billing period is empty or reversed.
	ErrInvalidPeriod = fmt.Errorf("%w: invalid billing period", ErrInvalidArgument)
	// ErrInvalidConfiguration is returned when a batch fee configuration is missing or negative.
	ErrInvalidConfiguration = fmt.Errorf("%w: invalid fee configuration", ErrInvalidArgument)
	// ErrInvalidAmount is returned when a payment amount is not positive.
	ErrInvalidAmount = fmt.Errorf("%w: payment amount must be positive", ErrInvalidArgument)
	// ErrEmptyID is returned when a required identifier is blank.
	ErrEmptyID = fmt.Errorf("%w: empty id", ErrInvalidArgument)
	// ErrInvalidStatus is returned for an unknown invoice status.
	ErrInvalidStatus = fmt.Errorf("%w: invalid invoice status", ErrInvalidArgument)

	ErrInvoiceNotFound = fmt.Errorf("%w: invoice", ErrNotFound)
	ErrBatchNotFound   = fmt.Errorf("%w: batch", ErrNotFound)
	ErrStudentNotFound = fmt.Errorf("%w: student", ErrNotFound)

	// ErrConcurrentUpdate is returned when a compare-and-swap on amount paid loses a race.
	ErrConcurrentUpdate = fmt.Errorf("%w: invoice was modified concurrently", ErrConflictRetryable)
	// ErrNilInvoice is returned when saving a nil invoice.
	ErrNilInvoice = fmt.Errorf("%w: nil invoice", ErrInternal)
)

// Kind is the caller-facing class of a billing error.
type Kind string

const (
	KindNone              Kind = ""
	KindForbidden         Kind = "FORBIDDEN"
	KindNotFound          Kind = "NOT_FOUND"
	KindInvalidArgument   Kind = "INVALID_ARGUMENT"
	KindConflictRetryable Kind = "CONFLICT_RETRYABLE"
	KindInternal          Kind = "INTERNAL"
)

// KindOf classifies err. Unclassified non-nil errors are internal.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrForbidden):
		return KindForbidden
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrInvalidArgument):
		return KindInvalidArgument
	case errors.Is(err, ErrConflictRetryable):
		return KindConflictRetryable
	default:
		return KindInternal
	}
}

// Internal wraps a collaborator failure so callers see ErrInternal while the
// cause stays available to logs.
func Internal(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %s: %w", ErrInternal, op, err)
}
