package coupon

import (
	"context"
	"slices"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// DiscountType enumerates the supported coupon discount strategies.
type DiscountType string

const (
	// DiscountPercentage takes a percentage of the order amount, optionally capped.
	DiscountPercentage DiscountType = "percentage"
	// DiscountFixedAmount takes a fixed number of minor units, capped at the order amount.
	DiscountFixedAmount DiscountType = "fixed_amount"
)

// Valid reports whether t is a known discount type.
func (t DiscountType) Valid() bool {
	switch t {
	case DiscountPercentage, DiscountFixedAmount:
		return true
	default:
		return false
	}
}

// Type is the audience category of a coupon.
type Type string

const (
	TypePublic            Type = "public"
	TypePrivate           Type = "private"
	TypeFirstPurchase     Type = "first_purchase"
	TypeReturningCustomer Type = "returning_customer"
	TypeSeasonal          Type = "seasonal"
	TypePartner           Type = "partner"
)

// AssetType is the kind of bookable listing a coupon can target.
type AssetType string

const (
	AssetActivity      AssetType = "activity"
	AssetAccommodation AssetType = "accommodation"
	AssetRestaurant    AssetType = "restaurant"
	AssetVehicle       AssetType = "vehicle"
	AssetEvent         AssetType = "event"
	AssetPackage       AssetType = "package"
)

var (
	// ErrNotFound is returned by repositories when no coupon matches the code.
	ErrNotFound = errors.New("coupon not found")
	// ErrDuplicateCode is returned by repositories when the code is already stored.
	ErrDuplicateCode = errors.New("coupon code already exists")
	// ErrInvalidCode is returned for codes outside 3-20 chars of [A-Za-z0-9-].
	ErrInvalidCode = errors.New("invalid coupon code format")
	// ErrInvalidDiscountType is returned for an unknown discount type.
	ErrInvalidDiscountType = errors.New("invalid discount type")
	// ErrInvalidDiscountValue is returned when the discount value is out of range.
	ErrInvalidDiscountValue = errors.New("invalid discount value")
	// ErrInvalidDateRange is returned when ValidUntil precedes ValidFrom.
	ErrInvalidDateRange = errors.New("valid until precedes valid from")
	// ErrInvalidMaxDiscount is returned for a non-positive cap or a cap on a fixed discount.
	ErrInvalidMaxDiscount = errors.New("invalid maximum discount amount")
)

// GlobalApplication marks a coupon as valid for every asset of the listed
// types. An empty AssetTypes list means every asset type.
type GlobalApplication struct {
	IsGlobal   bool
	AssetTypes []AssetType
}

// ApplicableAsset scopes a non-global coupon to one listing.
type ApplicableAsset struct {
	AssetType AssetType
	AssetID   string
	IsActive  bool
}

// Coupon is the stored coupon record. The engine treats it as read-only.
type Coupon struct {
	ID                string
	Code              string
	DiscountType      DiscountType
	DiscountValue     decimal.Decimal
	MaxDiscountAmount *int64
	MinimumOrderValue *int64
	MaximumOrderValue *int64
	UsageLimit        *int
	UsageCount        int
	UserUsageLimit    *int
	ValidFrom         time.Time
	ValidUntil        time.Time
	IsActive          bool
	DeletedAt         *time.Time
	Stackable         bool
	Type              Type
	GlobalApplication GlobalApplication
	ApplicableAssets  []ApplicableAsset
}

// Validate checks the record invariants. A failure indicates bad data
// upstream and must not be recovered by guessing intent.
func (c *Coupon) Validate() error {
	if err := ValidateCode(c.Code); err != nil {
		return err
	}
	if err := ValidateDiscount(c.DiscountType, c.DiscountValue, c.MaxDiscountAmount); err != nil {
		return err
	}
	if c.ValidUntil.Before(c.ValidFrom) {
		return ErrInvalidDateRange
	}
	return nil
}

// ValidateDiscount checks a discount rule: a known type, a positive value,
// a percentage of at most 100 with an optional positive cap, or a fixed
// amount in whole minor units without a cap.
func ValidateDiscount(t DiscountType, value decimal.Decimal, maxDiscount *int64) error {
	if !t.Valid() {
		return errors.Wrapf(ErrInvalidDiscountType, "%q", t)
	}
	if !value.IsPositive() {
		return errors.Wrap(ErrInvalidDiscountValue, "must be positive")
	}
	switch t {
	case DiscountPercentage:
		if value.GreaterThan(decimal.NewFromInt(100)) {
			return errors.Wrap(ErrInvalidDiscountValue, "percentage above 100")
		}
		if maxDiscount != nil && *maxDiscount <= 0 {
			return ErrInvalidMaxDiscount
		}
	case DiscountFixedAmount:
		if !value.IsInteger() {
			return errors.Wrap(ErrInvalidDiscountValue, "fixed amount must be whole minor units")
		}
		if maxDiscount != nil {
			return errors.Wrap(ErrInvalidMaxDiscount, "cap applies to percentage discounts only")
		}
	}
	return nil
}

// Calculate computes this coupon's discount against orderAmount.
func (c *Coupon) Calculate(orderAmount int64) Calculation {
	return CalculateDiscount(c.DiscountType, c.DiscountValue, orderAmount, c.MaxDiscountAmount)
}

// AppliesTo reports whether the coupon may target the given listing.
func (c *Coupon) AppliesTo(assetType AssetType, assetID string) bool {
	if c.GlobalApplication.IsGlobal {
		return len(c.GlobalApplication.AssetTypes) == 0 ||
			slices.Contains(c.GlobalApplication.AssetTypes, assetType)
	}
	for _, a := range c.ApplicableAssets {
		if a.IsActive && a.AssetType == assetType && a.AssetID == assetID {
			return true
		}
	}
	return false
}

// ValidateCode checks that code is 3-20 characters of letters, digits and hyphens.
func ValidateCode(code string) error {
	if len(code) < 3 || len(code) > 20 {
		return errors.Wrapf(ErrInvalidCode, "%q: length %d", code, len(code))
	}
	for i := range len(code) {
		ch := code[i]
		switch {
		case ch >= 'A' && ch <= 'Z', ch >= 'a' && ch <= 'z', ch >= '0' && ch <= '9', ch == '-':
		default:
			return errors.Wrapf(ErrInvalidCode, "%q: unexpected character %q", code, ch)
		}
	}
	return nil
}

// UsageStatus is the state of a historical coupon application.
type UsageStatus string

const (
	UsageApplied  UsageStatus = "applied"
	UsageReverted UsageStatus = "reverted"
)

// Usage records one application of a coupon to a booking.
type Usage struct {
	CouponID       string
	UserID         string
	BookingID      string
	DiscountAmount int64
	AppliedAt      time.Time
	Status         UsageStatus
}

// Repository provides lookup of stored coupons.
type Repository interface {
	FindByCode(ctx context.Context, code string) (*Coupon, error)
	// ListActive returns non-deleted, active coupons that may target the listing.
	ListActive(ctx context.Context, assetType AssetType, assetID string) ([]Coupon, error)
	CodeExists(ctx context.Context, code string) (bool, error)
	ListCodes(ctx context.Context) ([]string, error)
	Create(ctx context.Context, c *Coupon) error
}

// UsageRepository provides the per-user usage history of coupons.
type UsageRepository interface {
	CountUserUsage(ctx context.Context, couponID, userID string) (int, error)
	ListUserUsages(ctx context.Context, userID string) ([]Usage, error)
}
