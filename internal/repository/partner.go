package repository

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/xenking/tripmarket-pricing/internal/domain/settlement"
)

const (
	getPartnerFeeSQL = `SELECT fee_percentage FROM partners WHERE id = $1`

	upsertPartnerSQL = `INSERT INTO partners (id, name, fee_percentage) VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, fee_percentage = EXCLUDED.fee_percentage`
)

var _ settlement.PartnerRepository = (*PartnerRepository)(nil)

// PartnerRepository implements settlement.PartnerRepository backed by PostgreSQL.
type PartnerRepository struct {
	pool *pgxpool.Pool
}

// NewPartnerRepository returns a PartnerRepository that uses the given pool.
func NewPartnerRepository(pool *pgxpool.Pool) *PartnerRepository {
	return &PartnerRepository{pool: pool}
}

// FeePercentage returns the platform fee percentage negotiated with the
// partner, or settlement.ErrPartnerNotFound.
func (r *PartnerRepository) FeePercentage(ctx context.Context, partnerID string) (decimal.Decimal, error) {
	var pct decimal.Decimal
	if err := r.pool.QueryRow(ctx, getPartnerFeeSQL, partnerID).Scan(&pct); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return decimal.Zero, settlement.ErrPartnerNotFound
		}
		return decimal.Zero, errors.Wrapf(err, "get fee of partner %s", partnerID)
	}
	return pct, nil
}

// Upsert creates or updates a partner.
func (r *PartnerRepository) Upsert(ctx context.Context, id, name string, feePercentage decimal.Decimal) error {
	if _, err := r.pool.Exec(ctx, upsertPartnerSQL, id, name, feePercentage); err != nil {
		return errors.Wrapf(err, "upsert partner %s", id)
	}
	return nil
}
