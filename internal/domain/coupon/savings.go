package coupon

import "time"

// Savings aggregates what a user saved through coupons.
type Savings struct {
	TotalSaved    int64
	CouponsUsed   int
	LastAppliedAt *time.Time
}

// SummarizeSavings totals the discount of every applied usage. Usages in
// any other status are ignored.
func SummarizeSavings(usages []Usage) Savings {
	var s Savings
	for i := range usages {
		u := &usages[i]
		if u.Status != UsageApplied {
			continue
		}
		s.TotalSaved += u.DiscountAmount
		s.CouponsUsed++
		if s.LastAppliedAt == nil || u.AppliedAt.After(*s.LastAppliedAt) {
			at := u.AppliedAt
			s.LastAppliedAt = &at
		}
	}
	return s
}
