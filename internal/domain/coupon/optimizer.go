package coupon

import "github.com/xenking/tripmarket-pricing/internal/money"

// Combination is the coupon set chosen by Optimize.
type Combination struct {
	Coupons       []Coupon
	TotalDiscount int64
	FinalAmount   int64
	Savings       int64
}

// Optimize picks the coupon combination with the largest total discount.
//
// The search is greedy: the sum of all stackable coupons competes against
// each non-stackable coupon on its own. Every discount is computed against
// the original orderValue; discounts are never compounded. A candidate
// replaces the current best only when strictly larger.
func Optimize(available []Coupon, orderValue int64) Combination {
	var stackable, nonStackable []Coupon
	for _, c := range available {
		if c.Stackable {
			stackable = append(stackable, c)
		} else {
			nonStackable = append(nonStackable, c)
		}
	}

	best := []Coupon{}
	var bestDiscount int64

	if len(stackable) > 0 {
		var sum int64
		for i := range stackable {
			sum += stackable[i].Calculate(orderValue).DiscountAmount
		}
		if sum > bestDiscount {
			best = stackable
			bestDiscount = sum
		}
	}

	for i := range nonStackable {
		d := nonStackable[i].Calculate(orderValue).DiscountAmount
		if d > bestDiscount {
			best = []Coupon{nonStackable[i]}
			bestDiscount = d
		}
	}

	return Combination{
		Coupons:       best,
		TotalDiscount: bestDiscount,
		FinalAmount:   money.Max(0, orderValue-bestDiscount),
		Savings:       bestDiscount,
	}
}
