package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	masterdata "academy-cloud/internal/masterdata/domain"
)

const defaultBatchesTable = "batches"

// BatchRepository is a Postgres implementation for batches.
type BatchRepository struct {
	db    DBTX
	table string
}

// NewBatchRepository constructs a repository.
func NewBatchRepository(db DBTX, opts ...BatchOption) *BatchRepository {
	repo := &BatchRepository{db: db, table: defaultBatchesTable}
	for _, opt := range opts {
		opt(repo)
	}
	return repo
}

// BatchOption configures the repository.
type BatchOption func(*BatchRepository)

// WithBatchTable overrides the default table name.
func WithBatchTable(table string) BatchOption {
	return func(repo *BatchRepository) {
		if table != "" {
			repo.table = table
		}
	}
}

// Get loads a batch by id.
func (r *BatchRepository) Get(ctx context.Context, id string) (*masterdata.Batch, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("batch repo: nil db")
	}
	if id == "" {
		return nil, errors.New("batch repo: empty id")
	}

	query := fmt.Sprintf(`
SELECT id, organization_id, name, payment_type, fixed_monthly_fee, per_session_fee, created_at, updated_at
FROM %s
WHERE id = $1
LIMIT 1`, r.table)

	var batch masterdata.Batch
	if err := r.db.QueryRowContext(ctx, query, id).Scan(
		&batch.ID,
		&batch.OrganizationID,
		&batch.Name,
		&batch.PaymentType,
		&batch.FixedMonthlyFee,
		&batch.PerSessionFee,
		&batch.CreatedAt,
		&batch.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	batch.CreatedAt = batch.CreatedAt.UTC()
	batch.UpdatedAt = batch.UpdatedAt.UTC()
	return &batch, nil
}

// Save upserts a batch.
func (r *BatchRepository) Save(ctx context.Context, batch *masterdata.Batch) error {
	if r == nil || r.db == nil {
		return errors.New("batch repo: nil db")
	}
	if batch == nil {
		return errors.New("batch repo: nil batch")
	}
	if err := batch.Validate(); err != nil {
		return err
	}

	query := fmt.Sprintf(`
INSERT INTO %s (
	id,
	organization_id,
	name,
	payment_type,
	fixed_monthly_fee,
	per_session_fee
) VALUES (
	$1, $2, $3, $4, $5, $6
)
ON CONFLICT (id)
DO UPDATE SET
	name = EXCLUDED.name,
	payment_type = EXCLUDED.payment_type,
	fixed_monthly_fee = EXCLUDED.fixed_monthly_fee,
	per_session_fee = EXCLUDED.per_session_fee,
	updated_at = NOW()`, r.table)

	_, err := r.db.ExecContext(ctx, query,
		batch.ID,
		batch.OrganizationID,
		batch.Name,
		batch.PaymentType,
		batch.FixedMonthlyFee,
		batch.PerSessionFee,
	)
	return err
}
