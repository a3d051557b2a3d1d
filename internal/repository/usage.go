package repository

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/tripmarket-pricing/internal/domain/coupon"
)

const (
	countUserUsageSQL = `SELECT COUNT(*) FROM coupon_usages
		WHERE coupon_id = $1 AND user_id = $2 AND status = 'applied'`

	listUserUsagesSQL = `SELECT coupon_id::text, user_id, booking_id, discount_amount, applied_at, status
		FROM coupon_usages WHERE user_id = $1 ORDER BY applied_at DESC`

	insertUsageSQL = `INSERT INTO coupon_usages (coupon_id, user_id, booking_id, discount_amount, applied_at, status)
		VALUES ($1, $2, $3, $4, $5, $6)`

	incrementCouponUsesSQL = `UPDATE coupons SET usage_count = usage_count + 1 WHERE id = $1`
)

var _ coupon.UsageRepository = (*UsageRepository)(nil)

// UsageRepository implements coupon.UsageRepository backed by PostgreSQL.
type UsageRepository struct {
	pool *pgxpool.Pool
}

// NewUsageRepository returns a UsageRepository that uses the given pool.
func NewUsageRepository(pool *pgxpool.Pool) *UsageRepository {
	return &UsageRepository{pool: pool}
}

// CountUserUsage counts the applied usages of a coupon by one user.
func (r *UsageRepository) CountUserUsage(ctx context.Context, couponID, userID string) (int, error) {
	var n int
	if err := r.pool.QueryRow(ctx, countUserUsageSQL, couponID, userID).Scan(&n); err != nil {
		return 0, errors.Wrapf(err, "count usage of coupon %s by %s", couponID, userID)
	}
	return n, nil
}

// ListUserUsages returns every usage recorded for userID, newest first.
func (r *UsageRepository) ListUserUsages(ctx context.Context, userID string) ([]coupon.Usage, error) {
	rows, err := r.pool.Query(ctx, listUserUsagesSQL, userID)
	if err != nil {
		return nil, errors.Wrapf(err, "list usages of %s", userID)
	}

	usages, err := pgx.CollectRows(rows, scanUsage)
	if err != nil {
		return nil, errors.Wrapf(err, "scan usages of %s", userID)
	}
	return usages, nil
}

// Record stores an applied usage and bumps the coupon's usage counter.
// Booking flows own coupon application; this is used by seeding and tests.
func (r *UsageRepository) Record(ctx context.Context, u coupon.Usage) error {
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, insertUsageSQL,
			u.CouponID, u.UserID, u.BookingID, u.DiscountAmount, u.AppliedAt, string(u.Status),
		); err != nil {
			return err
		}
		if u.Status != coupon.UsageApplied {
			return nil
		}
		_, err := tx.Exec(ctx, incrementCouponUsesSQL, u.CouponID)
		return err
	})
	if err != nil {
		return errors.Wrapf(err, "record usage of coupon %s", u.CouponID)
	}
	return nil
}

func scanUsage(row pgx.CollectableRow) (coupon.Usage, error) {
	var (
		u      coupon.Usage
		status string
	)
	err := row.Scan(&u.CouponID, &u.UserID, &u.BookingID, &u.DiscountAmount, &u.AppliedAt, &status)
	u.Status = coupon.UsageStatus(status)
	return u, err
}
