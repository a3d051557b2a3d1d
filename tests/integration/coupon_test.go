//go:build integration

package integration

import (
	"net/http"
	"regexp"
	"strings"
	"testing"
)

func TestCalculateDiscount(t *testing.T) {
	resp := doPost(t, "/api/coupons/calculate", map[string]any{
		"discount_type":       "percentage",
		"discount_value":      "20",
		"order_amount":        50000,
		"max_discount_amount": 5000,
	})
	defer resp.Body.Close()
	expectStatus(t, resp, http.StatusOK)

	got := decodeJSON[calculation](t, resp)
	if got.DiscountAmount != 5000 || got.FinalAmount != 45000 || !got.MaxDiscountReached {
		t.Fatalf("unexpected calculation: %+v", got)
	}
}

func TestCalculateDiscount_InvalidType(t *testing.T) {
	resp := doPost(t, "/api/coupons/calculate", map[string]any{
		"discount_type":  "bogus",
		"discount_value": "5",
		"order_amount":   1000,
	})
	defer resp.Body.Close()
	expectStatus(t, resp, http.StatusUnprocessableEntity)
}

func TestValidateCoupon(t *testing.T) {
	resp := doPost(t, "/api/coupons/validate", map[string]any{
		"code":        "summer-25",
		"order_value": 5000,
	})
	defer resp.Body.Close()
	expectStatus(t, resp, http.StatusOK)

	got := decodeJSON[codeResult](t, resp)
	if got.Coupon.Code != "SUMMER-25" {
		t.Errorf("code: got %q", got.Coupon.Code)
	}
	if got.Validation.IsValid {
		t.Error("order below minimum must not be valid")
	}
	if len(got.Validation.Reasons) == 0 {
		t.Error("expected a reason")
	}
	if got.Calculation.DiscountAmount != 0 {
		t.Errorf("discount: got %d, want 0", got.Calculation.DiscountAmount)
	}
}

func TestValidateCoupon_NotFound(t *testing.T) {
	resp := doPost(t, "/api/coupons/validate", map[string]any{"code": "NOPE-NOPE", "order_value": 1000})
	defer resp.Body.Close()
	expectStatus(t, resp, http.StatusNotFound)

	body := decodeJSON[errorResponse](t, resp)
	if body.Code != http.StatusNotFound {
		t.Errorf("code: got %d", body.Code)
	}
}

func TestValidateCoupon_MalformedJSON(t *testing.T) {
	resp := doPost(t, "/api/coupons/validate", "not an object")
	defer resp.Body.Close()
	expectStatus(t, resp, http.StatusBadRequest)
}

func TestCheckConflicts(t *testing.T) {
	resp := doPost(t, "/api/coupons/conflicts", map[string]any{
		"codes": []string{"WELCOME10", "LOYAL5"},
	})
	defer resp.Body.Close()
	expectStatus(t, resp, http.StatusOK)

	got := decodeJSON[conflictReport](t, resp)
	if !got.HasConflicts {
		t.Fatal("first purchase and returning customer coupons must conflict")
	}
}

func TestOptimizeCoupons(t *testing.T) {
	resp := doPost(t, "/api/coupons/optimize", map[string]any{
		"asset_type":  "accommodation",
		"asset_id":    "hillside-inn-double",
		"order_value": 30000,
	})
	defer resp.Body.Close()
	expectStatus(t, resp, http.StatusOK)

	got := decodeJSON[combination](t, resp)
	if got.TotalDiscount <= 0 {
		t.Fatalf("expected a discount, got %+v", got)
	}
	if got.FinalAmount+got.TotalDiscount != 30000 {
		t.Errorf("final %d + discount %d != 30000", got.FinalAmount, got.TotalDiscount)
	}
}

func TestQuoteCoupons(t *testing.T) {
	resp := doPost(t, "/api/coupons/quote", map[string]any{
		"codes":       []string{"FLAT500", "LOYAL5", "flat500"},
		"order_value": 20000,
		"user_id":     "user-42",
	})
	defer resp.Body.Close()
	expectStatus(t, resp, http.StatusOK)

	got := decodeJSON[quoteResponse](t, resp)
	if len(got.Results) != 2 {
		t.Fatalf("results: got %d, want 2", len(got.Results))
	}
	// FLAT500 (500) and LOYAL5 (5% of 20000) both stack.
	if got.Combination.TotalDiscount != 1500 {
		t.Errorf("total discount: got %d, want 1500", got.Combination.TotalDiscount)
	}
}

var codePattern = regexp.MustCompile(`^[A-Z0-9]+(-[A-Z0-9]+)?$`)

func TestGenerateCode(t *testing.T) {
	resp := doPost(t, "/api/coupons/generate", map[string]any{"prefix": "promo", "length": 12})
	defer resp.Body.Close()
	expectStatus(t, resp, http.StatusCreated)

	got := decodeJSON[struct {
		Code string `json:"code"`
	}](t, resp)
	if !strings.HasPrefix(got.Code, "PROMO-") || !codePattern.MatchString(got.Code) {
		t.Errorf("unexpected code %q", got.Code)
	}
}

func TestUserSavings_NoHistory(t *testing.T) {
	resp := doGet(t, "/api/users/nobody/savings")
	defer resp.Body.Close()
	expectStatus(t, resp, http.StatusOK)

	got := decodeJSON[map[string]any](t, resp)
	if got["total_saved"] != float64(0) || got["last_applied_at"] != nil {
		t.Errorf("unexpected savings: %v", got)
	}
}

func TestUserSavings_Seeded(t *testing.T) {
	resp := doGet(t, "/api/users/user-demo/savings")
	defer resp.Body.Close()
	expectStatus(t, resp, http.StatusOK)

	got := decodeJSON[struct {
		TotalSaved    int64   `json:"total_saved"`
		CouponsUsed   int     `json:"coupons_used"`
		LastAppliedAt *string `json:"last_applied_at"`
	}](t, resp)
	// The reverted LOYAL5 usage does not count.
	if got.TotalSaved != 1700 || got.CouponsUsed != 2 || got.LastAppliedAt == nil {
		t.Errorf("unexpected savings: %+v", got)
	}
}
