package masterdata

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	billing "academy-cloud/internal/billing/domain"
	masterdata "academy-cloud/internal/masterdata/domain"
)

// BatchCatalog exposes masterdata batches as billing fee configurations.
type BatchCatalog struct {
	repo masterdata.BatchRepository
}

// NewBatchCatalog constructs a catalog.
func NewBatchCatalog(repo masterdata.BatchRepository) (*BatchCatalog, error) {
	if repo == nil {
		return nil, errors.New("batch catalog: nil repository")
	}
	return &BatchCatalog{repo: repo}, nil
}

// Get returns nil, nil when the batch is absent or owned by another organization.
func (c *BatchCatalog) Get(ctx context.Context, organizationID, batchID string) (*billing.BatchFeeConfig, error) {
	batch, err := c.repo.Get(ctx, batchID)
	if err != nil {
		return nil, err
	}
	if batch == nil || batch.OrganizationID != organizationID {
		return nil, nil
	}
	return ToFeeConfig(batch)
}

// ToFeeConfig converts the nullable storage shape into a fee variant.
func ToFeeConfig(batch *masterdata.Batch) (*billing.BatchFeeConfig, error) {
	fee, err := billing.NewFeeConfig(batch.PaymentType, nullable(batch.FixedMonthlyFee), nullable(batch.PerSessionFee))
	if err != nil {
		return nil, err
	}
	return &billing.BatchFeeConfig{
		BatchID:        batch.ID,
		OrganizationID: batch.OrganizationID,
		Name:           batch.Name,
		Fee:            fee,
	}, nil
}

func nullable(value decimal.NullDecimal) *decimal.Decimal {
	if !value.Valid {
		return nil
	}
	out := value.Decimal
	return &out
}

// StudentDirectory checks student membership through masterdata.
type StudentDirectory struct {
	repo masterdata.MemberRepository
}

// NewStudentDirectory constructs a directory.
func NewStudentDirectory(repo masterdata.MemberRepository) (*StudentDirectory, error) {
	if repo == nil {
		return nil, errors.New("student directory: nil repository")
	}
	return &StudentDirectory{repo: repo}, nil
}

// IsStudent reports whether the user is a student member of the organization.
func (d *StudentDirectory) IsStudent(ctx context.Context, organizationID, studentID string) (bool, error) {
	member, err := d.repo.Get(ctx, organizationID, studentID)
	if err != nil {
		return false, err
	}
	return member != nil && member.Role == masterdata.MemberStudent, nil
}
