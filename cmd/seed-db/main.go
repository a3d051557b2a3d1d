package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/tripmarket-pricing/db"
	"github.com/xenking/tripmarket-pricing/internal/domain/coupon"
	"github.com/xenking/tripmarket-pricing/internal/repository"
)

type seedFile struct {
	Partners []partnerJSON `json:"partners"`
	Coupons  []couponJSON  `json:"coupons"`
	Usages   []usageJSON   `json:"usages"`
}

type partnerJSON struct {
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	FeePercentage decimal.Decimal `json:"fee_percentage"`
}

type couponJSON struct {
	Code              string              `json:"code"`
	DiscountType      coupon.DiscountType `json:"discount_type"`
	DiscountValue     decimal.Decimal     `json:"discount_value"`
	MaxDiscountAmount *int64              `json:"max_discount_amount"`
	MinimumOrderValue *int64              `json:"minimum_order_value"`
	MaximumOrderValue *int64              `json:"maximum_order_value"`
	UsageLimit        *int                `json:"usage_limit"`
	UserUsageLimit    *int                `json:"user_usage_limit"`
	ValidDays         int                 `json:"valid_days"`
	Stackable         bool                `json:"stackable"`
	Type              coupon.Type         `json:"type"`
	Global            bool                `json:"global"`
	AssetTypes        []coupon.AssetType  `json:"asset_types"`
	Assets            []struct {
		AssetType coupon.AssetType `json:"asset_type"`
		AssetID   string           `json:"asset_id"`
	} `json:"assets"`
}

type usageJSON struct {
	Code           string             `json:"code"`
	UserID         string             `json:"user_id"`
	BookingID      string             `json:"booking_id"`
	DiscountAmount int64              `json:"discount_amount"`
	DaysAgo        int                `json:"days_ago"`
	Status         coupon.UsageStatus `json:"status"`
}

func (u usageJSON) toUsage(couponID string, now time.Time) coupon.Usage {
	return coupon.Usage{
		CouponID:       couponID,
		UserID:         u.UserID,
		BookingID:      u.BookingID,
		DiscountAmount: u.DiscountAmount,
		AppliedAt:      now.AddDate(0, 0, -u.DaysAgo),
		Status:         u.Status,
	}
}

// toCoupon builds an active coupon valid from now for ValidDays days.
func (c couponJSON) toCoupon(now time.Time) *coupon.Coupon {
	out := &coupon.Coupon{
		Code:              c.Code,
		DiscountType:      c.DiscountType,
		DiscountValue:     c.DiscountValue,
		MaxDiscountAmount: c.MaxDiscountAmount,
		MinimumOrderValue: c.MinimumOrderValue,
		MaximumOrderValue: c.MaximumOrderValue,
		UsageLimit:        c.UsageLimit,
		UserUsageLimit:    c.UserUsageLimit,
		ValidFrom:         now,
		ValidUntil:        now.AddDate(0, 0, c.ValidDays),
		IsActive:          true,
		Stackable:         c.Stackable,
		Type:              c.Type,
		GlobalApplication: coupon.GlobalApplication{
			IsGlobal:   c.Global,
			AssetTypes: c.AssetTypes,
		},
	}
	for _, a := range c.Assets {
		out.ApplicableAssets = append(out.ApplicableAssets, coupon.ApplicableAsset{
			AssetType: a.AssetType,
			AssetID:   a.AssetID,
			IsActive:  true,
		})
	}
	return out
}

func main() {
	var (
		databaseURL string
		seedPath    string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&seedPath, "seed-file", "", "seed JSON file (defaults to the embedded sample data)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, seedPath); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, seedPath string) error {
	data := db.Seed
	if seedPath != "" {
		b, err := os.ReadFile(seedPath)
		if err != nil {
			return errors.Wrap(err, "read seed file")
		}
		data = b
	}

	var seed seedFile
	if err := json.Unmarshal(data, &seed); err != nil {
		return errors.Wrap(err, "parse seed JSON")
	}

	slog.Info("connecting to database")

	pool, err := repository.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	if err := repository.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	partners := repository.NewPartnerRepository(pool)
	for _, p := range seed.Partners {
		if err := partners.Upsert(ctx, p.ID, p.Name, p.FeePercentage); err != nil {
			return errors.Wrapf(err, "upsert partner %s", p.ID)
		}
		slog.Info("upserted partner", slog.String("id", p.ID), slog.String("fee", p.FeePercentage.String()))
	}

	coupons := repository.NewCouponRepository(pool)
	now := time.Now().UTC()
	// Usages are recorded only for coupons created by this run.
	created := make(map[string]bool)
	for _, c := range seed.Coupons {
		err := coupons.Create(ctx, c.toCoupon(now))
		switch {
		case errors.Is(err, coupon.ErrDuplicateCode):
			slog.Info("coupon already present", slog.String("code", c.Code))
		case err != nil:
			return errors.Wrapf(err, "create coupon %s", c.Code)
		default:
			created[strings.ToUpper(c.Code)] = true
			slog.Info("created coupon", slog.String("code", c.Code), slog.String("type", string(c.Type)))
		}
	}

	usages := repository.NewUsageRepository(pool)
	for _, u := range seed.Usages {
		if !created[strings.ToUpper(u.Code)] {
			continue
		}
		c, err := coupons.FindByCode(ctx, u.Code)
		if err != nil {
			return errors.Wrapf(err, "find coupon %s", u.Code)
		}
		if err := usages.Record(ctx, u.toUsage(c.ID, now)); err != nil {
			return err
		}
		slog.Info("recorded usage", slog.String("code", u.Code), slog.String("user", u.UserID))
	}

	return nil
}
