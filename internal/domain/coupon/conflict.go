package coupon

import "fmt"

// ConflictKind identifies which combination rule a conflict violates.
type ConflictKind string

const (
	ConflictMultipleNonStackable ConflictKind = "multiple_non_stackable"
	ConflictNonStackableCombined ConflictKind = "non_stackable_combined"
	ConflictExclusiveCategory    ConflictKind = "exclusive_category"
)

// exclusiveTypes are coupon categories of which at most one may be applied.
var exclusiveTypes = []Type{TypeFirstPurchase, TypeReturningCustomer}

// Conflict is one violated combination rule.
type Conflict struct {
	Kind    ConflictKind
	Message string
	Codes   []string
}

// ConflictReport collects every conflict found in a coupon combination.
type ConflictReport struct {
	HasConflicts bool
	Conflicts    []Conflict
}

// Messages returns the human-readable conflict messages in report order.
func (r ConflictReport) Messages() []string {
	out := make([]string, len(r.Conflicts))
	for i, c := range r.Conflicts {
		out[i] = c.Message
	}
	return out
}

// CheckConflicts evaluates all combination rules independently. The
// multiple-non-stackable and non-stackable-combined rules may both fire for
// the same input and are reported separately.
func CheckConflicts(coupons []Coupon) ConflictReport {
	var conflicts []Conflict

	var nonStackable []string
	for _, c := range coupons {
		if !c.Stackable {
			nonStackable = append(nonStackable, c.Code)
		}
	}

	if len(nonStackable) > 1 {
		conflicts = append(conflicts, Conflict{
			Kind:    ConflictMultipleNonStackable,
			Message: "Multiple non-stackable coupons cannot be used together",
			Codes:   nonStackable,
		})
	}
	if len(nonStackable) > 0 && len(coupons) > 1 {
		conflicts = append(conflicts, Conflict{
			Kind:    ConflictNonStackableCombined,
			Message: "Non-stackable coupons cannot be combined with other coupons",
			Codes:   nonStackable,
		})
	}

	byType := make(map[Type][]string)
	for _, c := range coupons {
		byType[c.Type] = append(byType[c.Type], c.Code)
	}
	for _, t := range exclusiveTypes {
		if codes := byType[t]; len(codes) > 1 {
			conflicts = append(conflicts, Conflict{
				Kind:    ConflictExclusiveCategory,
				Message: fmt.Sprintf("Only one %s coupon can be applied", t),
				Codes:   codes,
			})
		}
	}

	return ConflictReport{
		HasConflicts: len(conflicts) > 0,
		Conflicts:    conflicts,
	}
}
