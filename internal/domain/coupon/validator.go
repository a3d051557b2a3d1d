package coupon

import (
	"fmt"
	"time"
)

// ValidationRequest describes the order and user a coupon is checked against.
// The per-user limit is only evaluated when UserID and UserUsageCount are
// both provided and the coupon carries a UserUsageLimit.
type ValidationRequest struct {
	OrderValue     int64
	UserID         string
	UserUsageCount *int
}

// ValidationResult lists every reason a coupon cannot be used. Reasons is
// empty if and only if IsValid is true.
type ValidationResult struct {
	IsValid          bool
	CanUse           bool
	Reasons          []string
	Status           Status
	MaxUsageReached  bool
	UserLimitReached bool
}

// Validator applies the business eligibility rules to a coupon.
type Validator struct {
	now func() time.Time
}

// NewValidator creates a Validator that reads the wall clock.
func NewValidator() *Validator {
	return &Validator{now: time.Now}
}

// Validate evaluates every rule without short-circuiting so that all
// applicable reasons reach the caller in one pass.
func (v *Validator) Validate(c *Coupon, req ValidationRequest) ValidationResult {
	status := ResolveStatus(c, v.now())
	reasons := make([]string, 0, 4)

	if status != StatusActive {
		reasons = append(reasons, status.Message())
	}
	if c.MinimumOrderValue != nil && req.OrderValue < *c.MinimumOrderValue {
		reasons = append(reasons, fmt.Sprintf("Minimum order value of %d required", *c.MinimumOrderValue))
	}
	if c.MaximumOrderValue != nil && req.OrderValue > *c.MaximumOrderValue {
		reasons = append(reasons, fmt.Sprintf("Maximum order value of %d exceeded", *c.MaximumOrderValue))
	}

	var userLimitReached bool
	if req.UserID != "" && c.UserUsageLimit != nil && req.UserUsageCount != nil {
		if *req.UserUsageCount >= *c.UserUsageLimit {
			userLimitReached = true
			reasons = append(reasons, "You have reached the usage limit for this coupon")
		}
	}

	valid := len(reasons) == 0
	return ValidationResult{
		IsValid:          valid,
		CanUse:           valid,
		Reasons:          reasons,
		Status:           status,
		MaxUsageReached:  status == StatusUsedUp,
		UserLimitReached: userLimitReached,
	}
}
