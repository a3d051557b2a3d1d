package repository

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/xenking/tripmarket-pricing/internal/domain/coupon"
)

const (
	couponSelectSQL = `SELECT c.id::text, c.code, c.discount_type, c.discount_value,
		c.max_discount_amount, c.minimum_order_value, c.maximum_order_value,
		c.usage_limit, c.usage_count, c.user_usage_limit,
		c.valid_from, c.valid_until, c.is_active, c.deleted_at, c.stackable, c.type,
		c.is_global, c.global_asset_types,
		COALESCE(a.asset_types, '{}'), COALESCE(a.asset_ids, '{}'), COALESCE(a.asset_active, '{}')
		FROM coupons c
		LEFT JOIN LATERAL (
			SELECT array_agg(asset_type ORDER BY asset_type, asset_id) AS asset_types,
				array_agg(asset_id ORDER BY asset_type, asset_id) AS asset_ids,
				array_agg(is_active ORDER BY asset_type, asset_id) AS asset_active
			FROM coupon_assets WHERE coupon_id = c.id
		) a ON TRUE`

	findCouponByCodeSQL = couponSelectSQL + ` WHERE UPPER(c.code) = UPPER($1)`

	listActiveCouponsSQL = couponSelectSQL + ` WHERE c.deleted_at IS NULL AND c.is_active
		AND (
			(c.is_global AND (cardinality(c.global_asset_types) = 0 OR $1 = ANY (c.global_asset_types)))
			OR EXISTS (
				SELECT 1 FROM coupon_assets ca
				WHERE ca.coupon_id = c.id AND ca.asset_type = $1 AND ca.asset_id = $2 AND ca.is_active
			)
		)
		ORDER BY c.created_at, c.code`

	couponCodeExistsSQL = `SELECT EXISTS (SELECT 1 FROM coupons WHERE UPPER(code) = UPPER($1))`

	listCouponCodesSQL = `SELECT code FROM coupons`

	insertCouponSQL = `INSERT INTO coupons (code, discount_type, discount_value, max_discount_amount,
		minimum_order_value, maximum_order_value, usage_limit, usage_count, user_usage_limit,
		valid_from, valid_until, is_active, stackable, type, is_global, global_asset_types)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		RETURNING id::text`

	insertCouponAssetSQL = `INSERT INTO coupon_assets (coupon_id, asset_type, asset_id, is_active)
		VALUES ($1, $2, $3, $4)`
)

var _ coupon.Repository = (*CouponRepository)(nil)

// CouponRepository implements coupon.Repository backed by PostgreSQL.
type CouponRepository struct {
	pool *pgxpool.Pool
}

// NewCouponRepository returns a CouponRepository that uses the given pool.
func NewCouponRepository(pool *pgxpool.Pool) *CouponRepository {
	return &CouponRepository{pool: pool}
}

// FindByCode looks up a coupon by its code (case-insensitive), including
// deleted and inactive ones. Returns coupon.ErrNotFound when nothing matches.
func (r *CouponRepository) FindByCode(ctx context.Context, code string) (*coupon.Coupon, error) {
	rows, err := r.pool.Query(ctx, findCouponByCodeSQL, code)
	if err != nil {
		return nil, errors.Wrapf(err, "find coupon by code %q", code)
	}

	c, err := pgx.CollectExactlyOneRow(rows, scanCoupon)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, coupon.ErrNotFound
		}
		return nil, errors.Wrapf(err, "find coupon by code %q", code)
	}
	return &c, nil
}

// ListActive returns active, non-deleted coupons that are global for the
// asset type or attached to the specific asset.
func (r *CouponRepository) ListActive(ctx context.Context, assetType coupon.AssetType, assetID string) ([]coupon.Coupon, error) {
	rows, err := r.pool.Query(ctx, listActiveCouponsSQL, string(assetType), assetID)
	if err != nil {
		return nil, errors.Wrap(err, "list active coupons")
	}

	coupons, err := pgx.CollectRows(rows, scanCoupon)
	if err != nil {
		return nil, errors.Wrap(err, "scan active coupons")
	}
	return coupons, nil
}

// CodeExists reports whether any coupon, deleted or not, uses code.
func (r *CouponRepository) CodeExists(ctx context.Context, code string) (bool, error) {
	var exists bool
	if err := r.pool.QueryRow(ctx, couponCodeExistsSQL, code).Scan(&exists); err != nil {
		return false, errors.Wrapf(err, "check coupon code %q", code)
	}
	return exists, nil
}

// ListCodes returns every stored coupon code.
func (r *CouponRepository) ListCodes(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx, listCouponCodesSQL)
	if err != nil {
		return nil, errors.Wrap(err, "list coupon codes")
	}

	codes, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, errors.Wrap(err, "scan coupon codes")
	}
	return codes, nil
}

// Create validates and stores c with its asset links in one transaction
// and sets c.ID. A taken code yields coupon.ErrDuplicateCode.
func (r *CouponRepository) Create(ctx context.Context, c *coupon.Coupon) error {
	if err := c.Validate(); err != nil {
		return err
	}

	assetTypes := make([]string, len(c.GlobalApplication.AssetTypes))
	for i, t := range c.GlobalApplication.AssetTypes {
		assetTypes[i] = string(t)
	}

	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, insertCouponSQL,
			c.Code, string(c.DiscountType), c.DiscountValue, c.MaxDiscountAmount,
			c.MinimumOrderValue, c.MaximumOrderValue, c.UsageLimit, c.UsageCount, c.UserUsageLimit,
			c.ValidFrom, c.ValidUntil, c.IsActive, c.Stackable, string(c.Type),
			c.GlobalApplication.IsGlobal, assetTypes,
		).Scan(&c.ID)
		if err != nil {
			return err
		}

		for _, a := range c.ApplicableAssets {
			if _, err := tx.Exec(ctx, insertCouponAssetSQL, c.ID, string(a.AssetType), a.AssetID, a.IsActive); err != nil {
				return errors.Wrapf(err, "link asset %s/%s", a.AssetType, a.AssetID)
			}
		}
		return nil
	})
	if err != nil {
		if isUniqueViolation(err) {
			return errors.Wrapf(coupon.ErrDuplicateCode, "%q", c.Code)
		}
		return errors.Wrapf(err, "create coupon %q", c.Code)
	}
	return nil
}

func scanCoupon(row pgx.CollectableRow) (coupon.Coupon, error) {
	var (
		c            coupon.Coupon
		discountType string
		couponType   string
		value        decimal.Decimal
		deletedAt    *time.Time
		globalTypes  []string
		assetTypes   []string
		assetIDs     []string
		assetActive  []bool
	)
	err := row.Scan(
		&c.ID, &c.Code, &discountType, &value,
		&c.MaxDiscountAmount, &c.MinimumOrderValue, &c.MaximumOrderValue,
		&c.UsageLimit, &c.UsageCount, &c.UserUsageLimit,
		&c.ValidFrom, &c.ValidUntil, &c.IsActive, &deletedAt, &c.Stackable, &couponType,
		&c.GlobalApplication.IsGlobal, &globalTypes,
		&assetTypes, &assetIDs, &assetActive,
	)
	if err != nil {
		return c, err
	}

	c.DiscountType = coupon.DiscountType(discountType)
	c.DiscountValue = value
	c.DeletedAt = deletedAt
	c.Type = coupon.Type(couponType)
	for _, t := range globalTypes {
		c.GlobalApplication.AssetTypes = append(c.GlobalApplication.AssetTypes, coupon.AssetType(t))
	}
	for i := range assetTypes {
		c.ApplicableAssets = append(c.ApplicableAssets, coupon.ApplicableAsset{
			AssetType: coupon.AssetType(assetTypes[i]),
			AssetID:   assetIDs[i],
			IsActive:  assetActive[i],
		})
	}
	return c, nil
}
