package coupon

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestValidator_Validate(t *testing.T) {
	fixedNow := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	pastTime := fixedNow.Add(-24 * time.Hour)
	futureTime := fixedNow.Add(24 * time.Hour)

	base := func(mod func(c *Coupon)) Coupon {
		c := Coupon{
			Code:          "SAVE10",
			DiscountType:  DiscountPercentage,
			DiscountValue: d("10"),
			ValidFrom:     pastTime,
			ValidUntil:    futureTime,
			IsActive:      true,
		}
		if mod != nil {
			mod(&c)
		}
		return c
	}

	tests := []struct {
		name          string
		coupon        Coupon
		req           ValidationRequest
		wantValid     bool
		wantReasons   []string
		wantMaxUsage  bool
		wantUserLimit bool
	}{
		{
			name:      "valid coupon",
			coupon:    base(nil),
			req:       ValidationRequest{OrderValue: 10000},
			wantValid: true,
		},
		{
			name:        "expired coupon",
			coupon:      base(func(c *Coupon) { c.ValidUntil = pastTime }),
			req:         ValidationRequest{OrderValue: 10000},
			wantReasons: []string{"Coupon has expired"},
		},
		{
			name:        "inactive coupon",
			coupon:      base(func(c *Coupon) { c.IsActive = false }),
			req:         ValidationRequest{OrderValue: 10000},
			wantReasons: []string{"Coupon is inactive"},
		},
		{
			name:        "below minimum order",
			coupon:      base(func(c *Coupon) { c.MinimumOrderValue = ptr[int64](5000) }),
			req:         ValidationRequest{OrderValue: 4999},
			wantReasons: []string{"Minimum order value of 5000 required"},
		},
		{
			name:      "at minimum order",
			coupon:    base(func(c *Coupon) { c.MinimumOrderValue = ptr[int64](5000) }),
			req:       ValidationRequest{OrderValue: 5000},
			wantValid: true,
		},
		{
			name:        "above maximum order",
			coupon:      base(func(c *Coupon) { c.MaximumOrderValue = ptr[int64](20000) }),
			req:         ValidationRequest{OrderValue: 20001},
			wantReasons: []string{"Maximum order value of 20000 exceeded"},
		},
		{
			name: "usage limit reached",
			coupon: base(func(c *Coupon) {
				c.UsageLimit = ptr(100)
				c.UsageCount = 100
			}),
			req:          ValidationRequest{OrderValue: 10000},
			wantReasons:  []string{"Coupon usage limit has been reached"},
			wantMaxUsage: true,
		},
		{
			name:          "user limit reached",
			coupon:        base(func(c *Coupon) { c.UserUsageLimit = ptr(1) }),
			req:           ValidationRequest{OrderValue: 10000, UserID: "u1", UserUsageCount: ptr(1)},
			wantReasons:   []string{"You have reached the usage limit for this coupon"},
			wantUserLimit: true,
		},
		{
			name:      "user under limit",
			coupon:    base(func(c *Coupon) { c.UserUsageLimit = ptr(3) }),
			req:       ValidationRequest{OrderValue: 10000, UserID: "u1", UserUsageCount: ptr(2)},
			wantValid: true,
		},
		{
			name:      "user limit skipped without user id",
			coupon:    base(func(c *Coupon) { c.UserUsageLimit = ptr(1) }),
			req:       ValidationRequest{OrderValue: 10000, UserUsageCount: ptr(5)},
			wantValid: true,
		},
		{
			name:      "user limit skipped without usage count",
			coupon:    base(func(c *Coupon) { c.UserUsageLimit = ptr(1) }),
			req:       ValidationRequest{OrderValue: 10000, UserID: "u1"},
			wantValid: true,
		},
		{
			name: "minimum order and user limit both reported",
			coupon: base(func(c *Coupon) {
				c.MinimumOrderValue = ptr[int64](5000)
				c.UserUsageLimit = ptr(1)
			}),
			req: ValidationRequest{OrderValue: 100, UserID: "u1", UserUsageCount: ptr(1)},
			wantReasons: []string{
				"Minimum order value of 5000 required",
				"You have reached the usage limit for this coupon",
			},
			wantUserLimit: true,
		},
		{
			name: "every rule reported in order",
			coupon: base(func(c *Coupon) {
				c.ValidUntil = pastTime
				c.MinimumOrderValue = ptr[int64](5000)
				c.MaximumOrderValue = ptr[int64](50)
				c.UserUsageLimit = ptr(2)
			}),
			req: ValidationRequest{OrderValue: 100, UserID: "u1", UserUsageCount: ptr(2)},
			wantReasons: []string{
				"Coupon has expired",
				"Minimum order value of 5000 required",
				"Maximum order value of 50 exceeded",
				"You have reached the usage limit for this coupon",
			},
			wantUserLimit: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := NewValidator()
			v.now = func() time.Time { return fixedNow }

			got := v.Validate(&tt.coupon, tt.req)

			assert.Equal(t, tt.wantValid, got.IsValid)
			assert.Equal(t, got.IsValid, got.CanUse)
			if tt.wantValid {
				assert.Empty(t, got.Reasons)
			} else {
				assert.Equal(t, tt.wantReasons, got.Reasons)
			}
			assert.Equal(t, tt.wantMaxUsage, got.MaxUsageReached)
			assert.Equal(t, tt.wantUserLimit, got.UserLimitReached)
		})
	}
}
