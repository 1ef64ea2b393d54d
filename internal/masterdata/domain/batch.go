package masterdata

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// Batch is a recurring class group with its fee settings. Fee columns are
// nullable; which one is read depends on PaymentType.
type Batch struct {
	ID              string
	OrganizationID  string
	Name            string
	PaymentType     string
	FixedMonthlyFee decimal.NullDecimal
	PerSessionFee   decimal.NullDecimal
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Validate checks batch invariants.
func (b Batch) Validate() error {
	if b.ID == "" {
		return errors.New("batch: empty id")
	}
	if b.OrganizationID == "" {
		return errors.New("batch: empty organization id")
	}
	if b.Name == "" {
		return errors.New("batch: empty name")
	}
	if b.PaymentType == "" {
		return errors.New("batch: empty payment type")
	}
	return nil
}

// BatchRepository manages batch persistence.
type BatchRepository interface {
	Get(ctx context.Context, id string) (*Batch, error)
	Save(ctx context.Context, batch *Batch) error
}
