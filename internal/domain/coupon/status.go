package coupon

import "time"

// Status is the lifecycle state derived from a coupon record and the current time.
type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
	StatusExpired  Status = "expired"
	StatusUsedUp   Status = "used_up"
	StatusDeleted  Status = "deleted"
)

// ResolveStatus derives the coupon's status at now.
//
// Checks run in fixed precedence: deleted, inactive, expired, used up.
// Deletion and inactivity win over expiry, which wins over exhaustion.
func ResolveStatus(c *Coupon, now time.Time) Status {
	switch {
	case c.DeletedAt != nil:
		return StatusDeleted
	case !c.IsActive:
		return StatusInactive
	case c.ValidUntil.Before(now):
		return StatusExpired
	case c.UsageLimit != nil && c.UsageCount >= *c.UsageLimit:
		return StatusUsedUp
	default:
		return StatusActive
	}
}

// Message returns the user-facing rejection reason for a non-active status.
func (s Status) Message() string {
	switch s {
	case StatusActive:
		return "Coupon is active"
	case StatusInactive:
		return "Coupon is inactive"
	case StatusExpired:
		return "Coupon has expired"
	case StatusUsedUp:
		return "Coupon usage limit has been reached"
	case StatusDeleted:
		return "Coupon has been deleted"
	default:
		return "Coupon status is unknown"
	}
}
