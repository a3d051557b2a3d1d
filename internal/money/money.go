// Package money provides integer minor-unit arithmetic helpers shared by the
// coupon and settlement packages.
//
// Amounts are int64 minor currency units (cents). Percentages are decimals so
// that fractional rates such as 0.1% or 2.9% stay exact until the final floor.
package money

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// ApplyPercentage returns floor(amount * percent / 100).
//
// Flooring is mandatory: fee splits rely on it to reconstruct the original
// amount exactly.
func ApplyPercentage(amount int64, percent decimal.Decimal) int64 {
	return decimal.NewFromInt(amount).Mul(percent).Div(hundred).Floor().IntPart()
}

// Percentage returns part/whole*100 rounded to two decimal places, or zero
// when whole is not positive.
func Percentage(part, whole int64) decimal.Decimal {
	if whole <= 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(part).Mul(hundred).DivRound(decimal.NewFromInt(whole), 2)
}

// Clamp limits v to the closed range [lo, hi].
func Clamp(v, lo, hi int64) int64 {
	return Max(lo, Min(v, hi))
}

// Min returns the smaller of a and b.
func Min(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}

// Max returns the larger of a and b.
func Max(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}
