package handler

import (
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/tripmarket-pricing/internal/domain/checkout"
	"github.com/xenking/tripmarket-pricing/internal/domain/coupon"
	"github.com/xenking/tripmarket-pricing/internal/domain/settlement"
)

// readDecimal accepts both JSON numbers and numeric strings.
func readDecimal(d *jx.Decoder) (decimal.Decimal, error) {
	switch d.Next() {
	case jx.String:
		s, err := d.Str()
		if err != nil {
			return decimal.Zero, err
		}
		v, err := decimal.NewFromString(s)
		if err != nil {
			return decimal.Zero, &badRequestError{err: errors.Wrapf(err, "invalid decimal %q", s)}
		}
		return v, nil
	case jx.Number:
		n, err := d.Num()
		if err != nil {
			return decimal.Zero, err
		}
		v, err := decimal.NewFromString(n.String())
		if err != nil {
			return decimal.Zero, &badRequestError{err: errors.Wrapf(err, "invalid decimal %s", n)}
		}
		return v, nil
	default:
		return decimal.Zero, badRequest("decimal must be a number or string")
	}
}

// readOptInt64 returns nil for a JSON null.
func readOptInt64(d *jx.Decoder) (*int64, error) {
	if d.Next() == jx.Null {
		return nil, d.Null()
	}
	v, err := d.Int64()
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func readStrings(d *jx.Decoder) ([]string, error) {
	var out []string
	err := d.Arr(func(d *jx.Decoder) error {
		s, err := d.Str()
		if err != nil {
			return err
		}
		out = append(out, s)
		return nil
	})
	return out, err
}

func encodeDecimal(e *jx.Encoder, v decimal.Decimal) {
	e.Str(v.String())
}

func encodeTime(e *jx.Encoder, t time.Time) {
	e.Str(t.UTC().Format(time.RFC3339))
}

func encodeStrings(e *jx.Encoder, ss []string) {
	e.ArrStart()
	for _, s := range ss {
		e.Str(s)
	}
	e.ArrEnd()
}

func encodeCalculation(e *jx.Encoder, c coupon.Calculation) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("original_amount", func(e *jx.Encoder) { e.Int64(c.OriginalAmount) })
		e.Field("discount_amount", func(e *jx.Encoder) { e.Int64(c.DiscountAmount) })
		e.Field("final_amount", func(e *jx.Encoder) { e.Int64(c.FinalAmount) })
		e.Field("discount_percentage", func(e *jx.Encoder) { encodeDecimal(e, c.DiscountPercentage) })
		e.Field("max_discount_reached", func(e *jx.Encoder) { e.Bool(c.MaxDiscountReached) })
	})
}

func encodeValidation(e *jx.Encoder, v coupon.ValidationResult) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("is_valid", func(e *jx.Encoder) { e.Bool(v.IsValid) })
		e.Field("can_use", func(e *jx.Encoder) { e.Bool(v.CanUse) })
		e.Field("status", func(e *jx.Encoder) { e.Str(string(v.Status)) })
		e.Field("reasons", func(e *jx.Encoder) { encodeStrings(e, v.Reasons) })
		e.Field("max_usage_reached", func(e *jx.Encoder) { e.Bool(v.MaxUsageReached) })
		e.Field("user_limit_reached", func(e *jx.Encoder) { e.Bool(v.UserLimitReached) })
	})
}

func encodeCouponSummary(e *jx.Encoder, c *coupon.Coupon) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("code", func(e *jx.Encoder) { e.Str(c.Code) })
		e.Field("discount_type", func(e *jx.Encoder) { e.Str(string(c.DiscountType)) })
		e.Field("discount_value", func(e *jx.Encoder) { encodeDecimal(e, c.DiscountValue) })
		e.Field("type", func(e *jx.Encoder) { e.Str(string(c.Type)) })
		e.Field("stackable", func(e *jx.Encoder) { e.Bool(c.Stackable) })
		e.Field("valid_until", func(e *jx.Encoder) { encodeTime(e, c.ValidUntil) })
	})
}

func encodeCodeResult(e *jx.Encoder, r checkout.CodeResult) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("coupon", func(e *jx.Encoder) { encodeCouponSummary(e, r.Coupon) })
		e.Field("validation", func(e *jx.Encoder) { encodeValidation(e, r.Validation) })
		e.Field("calculation", func(e *jx.Encoder) { encodeCalculation(e, r.Calculation) })
	})
}

func encodeConflicts(e *jx.Encoder, r coupon.ConflictReport) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("has_conflicts", func(e *jx.Encoder) { e.Bool(r.HasConflicts) })
		e.Field("conflicts", func(e *jx.Encoder) {
			e.ArrStart()
			for _, c := range r.Conflicts {
				e.Obj(func(e *jx.Encoder) {
					e.Field("kind", func(e *jx.Encoder) { e.Str(string(c.Kind)) })
					e.Field("message", func(e *jx.Encoder) { e.Str(c.Message) })
					e.Field("codes", func(e *jx.Encoder) { encodeStrings(e, c.Codes) })
				})
			}
			e.ArrEnd()
		})
	})
}

func encodeCombination(e *jx.Encoder, c coupon.Combination) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("coupons", func(e *jx.Encoder) {
			e.ArrStart()
			for i := range c.Coupons {
				encodeCouponSummary(e, &c.Coupons[i])
			}
			e.ArrEnd()
		})
		e.Field("total_discount", func(e *jx.Encoder) { e.Int64(c.TotalDiscount) })
		e.Field("final_amount", func(e *jx.Encoder) { e.Int64(c.FinalAmount) })
		e.Field("savings", func(e *jx.Encoder) { e.Int64(c.Savings) })
	})
}

func encodeFees(e *jx.Encoder, f settlement.FeeCalculation) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("transaction_amount", func(e *jx.Encoder) { e.Int64(f.TransactionAmount) })
		e.Field("stripe_fee", func(e *jx.Encoder) { e.Int64(f.StripeFee) })
		e.Field("platform_fee", func(e *jx.Encoder) { e.Int64(f.PlatformFee) })
		e.Field("partner_amount", func(e *jx.Encoder) { e.Int64(f.PartnerAmount) })
	})
}

func encodeTransaction(e *jx.Encoder, tx *settlement.Transaction, replayed bool) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Str(tx.ID.String()) })
		e.Field("partner_id", func(e *jx.Encoder) { e.Str(tx.PartnerID) })
		e.Field("booking_id", func(e *jx.Encoder) { e.Str(tx.BookingID) })
		e.Field("fee_percentage", func(e *jx.Encoder) { encodeDecimal(e, tx.FeePercentage) })
		e.Field("fees", func(e *jx.Encoder) { encodeFees(e, tx.Fees) })
		e.Field("created_at", func(e *jx.Encoder) { encodeTime(e, tx.CreatedAt) })
		e.Field("replayed", func(e *jx.Encoder) { e.Bool(replayed) })
	})
}
