package coupon

import (
	"github.com/shopspring/decimal"

	"github.com/xenking/tripmarket-pricing/internal/money"
)

// Calculation is the result of applying a single coupon to an order amount.
type Calculation struct {
	OriginalAmount     int64
	DiscountAmount     int64
	FinalAmount        int64
	DiscountPercentage decimal.Decimal
	MaxDiscountReached bool
}

// CalculateDiscount computes the discount for one coupon against orderAmount.
//
// Percentage discounts are floored to whole minor units and clamped to
// maxDiscount when set. Fixed discounts never exceed the order amount. The
// result always satisfies 0 <= DiscountAmount <= OriginalAmount.
func CalculateDiscount(t DiscountType, value decimal.Decimal, orderAmount int64, maxDiscount *int64) Calculation {
	if orderAmount <= 0 {
		return Calculation{
			OriginalAmount:     orderAmount,
			FinalAmount:        money.Max(0, orderAmount),
			DiscountPercentage: decimal.Zero,
		}
	}

	var (
		discount   int64
		capReached bool
	)
	switch t {
	case DiscountPercentage:
		discount = money.ApplyPercentage(orderAmount, value)
		if maxDiscount != nil && discount > *maxDiscount {
			discount = *maxDiscount
			capReached = true
		}
	case DiscountFixedAmount:
		discount = money.Min(value.Floor().IntPart(), orderAmount)
	default:
		discount = 0
	}
	discount = money.Clamp(discount, 0, orderAmount)

	return Calculation{
		OriginalAmount:     orderAmount,
		DiscountAmount:     discount,
		FinalAmount:        money.Max(0, orderAmount-discount),
		DiscountPercentage: money.Percentage(discount, orderAmount),
		MaxDiscountReached: capReached,
	}
}
