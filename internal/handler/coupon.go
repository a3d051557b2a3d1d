package handler

import (
	"net/http"

	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/tripmarket-pricing/internal/domain/checkout"
	"github.com/xenking/tripmarket-pricing/internal/domain/coupon"
)

// CalculateDiscount computes a discount from explicit rule parameters
// without touching stored coupons.
func (h *Handler) CalculateDiscount(w http.ResponseWriter, r *http.Request) {
	var (
		discountType coupon.DiscountType
		value        decimal.Decimal
		orderAmount  int64
		maxDiscount  *int64
	)
	err := decodeObject(r, func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "discount_type":
			var s string
			s, err = d.Str()
			discountType = coupon.DiscountType(s)
		case "discount_value":
			value, err = readDecimal(d)
		case "order_amount":
			orderAmount, err = d.Int64()
		case "max_discount_amount":
			maxDiscount, err = readOptInt64(d)
		default:
			err = d.Skip()
		}
		return err
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := coupon.ValidateDiscount(discountType, value, maxDiscount); err != nil {
		writeError(w, r, err)
		return
	}

	calc := coupon.CalculateDiscount(discountType, value, orderAmount, maxDiscount)
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeCalculation(e, calc) })
}

// ValidateCoupon checks a stored coupon against an order and user.
func (h *Handler) ValidateCoupon(w http.ResponseWriter, r *http.Request) {
	var req checkout.ValidateRequest
	err := decodeObject(r, func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "code":
			req.Code, err = d.Str()
		case "order_value":
			req.OrderValue, err = d.Int64()
		case "user_id":
			req.UserID, err = d.Str()
		default:
			err = d.Skip()
		}
		return err
	})
	if err == nil && req.Code == "" {
		err = badRequest("code required")
	}
	if err != nil {
		writeError(w, r, err)
		return
	}

	res, err := h.checkout.ValidateCode(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeCodeResult(e, *res) })
}

// CheckConflicts reports stacking conflicts between stored coupons.
func (h *Handler) CheckConflicts(w http.ResponseWriter, r *http.Request) {
	var codes []string
	err := decodeObject(r, func(d *jx.Decoder, key string) error {
		if key == "codes" {
			var err error
			codes, err = readStrings(d)
			return err
		}
		return d.Skip()
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	report, err := h.checkout.Conflicts(r.Context(), codes)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeConflicts(e, report) })
}

// OptimizeCoupons returns the best coupon combination for a listing.
func (h *Handler) OptimizeCoupons(w http.ResponseWriter, r *http.Request) {
	var req checkout.OptimizeRequest
	err := decodeObject(r, func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "asset_type":
			var s string
			s, err = d.Str()
			req.AssetType = coupon.AssetType(s)
		case "asset_id":
			req.AssetID, err = d.Str()
		case "order_value":
			req.OrderValue, err = d.Int64()
		case "user_id":
			req.UserID, err = d.Str()
		default:
			err = d.Skip()
		}
		return err
	})
	if err == nil && req.AssetType == "" {
		err = badRequest("asset_type required")
	}
	if err != nil {
		writeError(w, r, err)
		return
	}

	best, err := h.checkout.BestOffer(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeCombination(e, best) })
}

// QuoteCoupons validates a user's chosen codes and prices the best usable set.
func (h *Handler) QuoteCoupons(w http.ResponseWriter, r *http.Request) {
	var req checkout.QuoteRequest
	err := decodeObject(r, func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "codes":
			req.Codes, err = readStrings(d)
		case "order_value":
			req.OrderValue, err = d.Int64()
		case "user_id":
			req.UserID, err = d.Str()
		default:
			err = d.Skip()
		}
		return err
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	q, err := h.checkout.Quote(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("results", func(e *jx.Encoder) {
				e.ArrStart()
				for _, res := range q.Results {
					encodeCodeResult(e, res)
				}
				e.ArrEnd()
			})
			e.Field("conflicts", func(e *jx.Encoder) { encodeConflicts(e, q.Conflicts) })
			e.Field("combination", func(e *jx.Encoder) { encodeCombination(e, q.Combination) })
		})
	})
}

// GenerateCode reserves a fresh coupon code.
func (h *Handler) GenerateCode(w http.ResponseWriter, r *http.Request) {
	var (
		prefix string
		length int
	)
	err := decodeObject(r, func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "prefix":
			prefix, err = d.Str()
		case "length":
			length, err = d.Int()
		default:
			err = d.Skip()
		}
		return err
	})
	if err == nil && (length < 0 || length > 20) {
		err = badRequest("length must be between 0 and 20")
	}
	if err != nil {
		writeError(w, r, err)
		return
	}

	code, err := h.issuer.IssueWith(r.Context(), prefix, length)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("code", func(e *jx.Encoder) { e.Str(code) })
		})
	})
}

// UserSavings reports how much a user saved with coupons.
func (h *Handler) UserSavings(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("userID")

	s, err := h.checkout.UserSavings(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("user_id", func(e *jx.Encoder) { e.Str(userID) })
			e.Field("total_saved", func(e *jx.Encoder) { e.Int64(s.TotalSaved) })
			e.Field("coupons_used", func(e *jx.Encoder) { e.Int(s.CouponsUsed) })
			e.Field("last_applied_at", func(e *jx.Encoder) {
				if s.LastAppliedAt == nil {
					e.Null()
					return
				}
				encodeTime(e, *s.LastAppliedAt)
			})
		})
	})
}
