package checkout

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/tripmarket-pricing/internal/domain/coupon"
)

// --- Mock implementations ---

type mockCouponRepo struct {
	byCode  map[string]*coupon.Coupon
	active  []coupon.Coupon
	findErr error
	listErr error
}

func (m *mockCouponRepo) FindByCode(_ context.Context, code string) (*coupon.Coupon, error) {
	if m.findErr != nil {
		return nil, m.findErr
	}
	c, ok := m.byCode[strings.ToUpper(code)]
	if !ok {
		return nil, coupon.ErrNotFound
	}
	return c, nil
}

func (m *mockCouponRepo) ListActive(_ context.Context, _ coupon.AssetType, _ string) ([]coupon.Coupon, error) {
	return m.active, m.listErr
}

func (m *mockCouponRepo) CodeExists(_ context.Context, code string) (bool, error) {
	_, ok := m.byCode[strings.ToUpper(code)]
	return ok, nil
}

func (m *mockCouponRepo) ListCodes(_ context.Context) ([]string, error) {
	return nil, nil
}

func (m *mockCouponRepo) Create(_ context.Context, c *coupon.Coupon) error {
	m.byCode[strings.ToUpper(c.Code)] = c
	return nil
}

type mockUsageRepo struct {
	counts map[string]int // couponID/userID -> count
	usages []coupon.Usage
	err    error
}

func (m *mockUsageRepo) CountUserUsage(_ context.Context, couponID, userID string) (int, error) {
	return m.counts[couponID+"/"+userID], m.err
}

func (m *mockUsageRepo) ListUserUsages(_ context.Context, _ string) ([]coupon.Usage, error) {
	return m.usages, m.err
}

// --- Helpers ---

func ptr[T any](v T) *T {
	return &v
}

func newTestCoupon(code string, discountType coupon.DiscountType, value string, stackable bool) coupon.Coupon {
	now := time.Now()
	return coupon.Coupon{
		ID:                "id-" + code,
		Code:              code,
		DiscountType:      discountType,
		DiscountValue:     decimal.RequireFromString(value),
		ValidFrom:         now.Add(-24 * time.Hour),
		ValidUntil:        now.Add(24 * time.Hour),
		IsActive:          true,
		Stackable:         stackable,
		Type:              coupon.TypePublic,
		GlobalApplication: coupon.GlobalApplication{IsGlobal: true},
	}
}

func newCouponRepo(coupons ...coupon.Coupon) *mockCouponRepo {
	byCode := make(map[string]*coupon.Coupon, len(coupons))
	for i := range coupons {
		byCode[strings.ToUpper(coupons[i].Code)] = &coupons[i]
	}
	return &mockCouponRepo{byCode: byCode, active: coupons}
}

func couponCodes(cs []coupon.Coupon) []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = c.Code
	}
	return out
}

// --- Tests ---

func TestValidateCode(t *testing.T) {
	c := newTestCoupon("SAVE10", coupon.DiscountPercentage, "10", true)
	svc := NewService(newCouponRepo(c), &mockUsageRepo{})

	res, err := svc.ValidateCode(context.Background(), ValidateRequest{Code: "save10", OrderValue: 10000})
	require.NoError(t, err)

	assert.True(t, res.Validation.IsValid)
	assert.Equal(t, coupon.StatusActive, res.Validation.Status)
	assert.Equal(t, int64(1000), res.Calculation.DiscountAmount)
	assert.Equal(t, int64(9000), res.Calculation.FinalAmount)
}

func TestValidateCode_NotFound(t *testing.T) {
	svc := NewService(newCouponRepo(), &mockUsageRepo{})

	_, err := svc.ValidateCode(context.Background(), ValidateRequest{Code: "MISSING", OrderValue: 100})

	var nfErr *CodeNotFoundError
	require.ErrorAs(t, err, &nfErr)
	assert.Equal(t, "MISSING", nfErr.Code)
	assert.ErrorIs(t, err, coupon.ErrNotFound)
}

func TestValidateCode_UserLimit(t *testing.T) {
	c := newTestCoupon("ONCE", coupon.DiscountFixedAmount, "500", false)
	c.UserUsageLimit = ptr(1)
	usages := &mockUsageRepo{counts: map[string]int{"id-ONCE/u1": 1}}
	svc := NewService(newCouponRepo(c), usages)

	res, err := svc.ValidateCode(context.Background(), ValidateRequest{Code: "ONCE", OrderValue: 2000, UserID: "u1"})
	require.NoError(t, err)

	assert.False(t, res.Validation.IsValid)
	assert.True(t, res.Validation.UserLimitReached)
	assert.Equal(t, []string{"You have reached the usage limit for this coupon"}, res.Validation.Reasons)
	assert.Equal(t, int64(0), res.Calculation.DiscountAmount)
	assert.Equal(t, int64(2000), res.Calculation.FinalAmount)

	// Another user is unaffected.
	res, err = svc.ValidateCode(context.Background(), ValidateRequest{Code: "ONCE", OrderValue: 2000, UserID: "u2"})
	require.NoError(t, err)
	assert.True(t, res.Validation.IsValid)
	assert.Equal(t, int64(500), res.Calculation.DiscountAmount)
}

func TestValidateCode_Errors(t *testing.T) {
	broken := newTestCoupon("BROKEN", coupon.DiscountFixedAmount, "10.5", false)
	dbErr := errors.New("connection refused")

	tests := []struct {
		name    string
		repo    *mockCouponRepo
		usages  *mockUsageRepo
		req     ValidateRequest
		wantErr error
	}{
		{
			name:    "negative order",
			repo:    newCouponRepo(),
			usages:  &mockUsageRepo{},
			req:     ValidateRequest{Code: "X", OrderValue: -1},
			wantErr: ErrInvalidOrderValue,
		},
		{
			name:    "invalid stored record",
			repo:    newCouponRepo(broken),
			usages:  &mockUsageRepo{},
			req:     ValidateRequest{Code: "BROKEN", OrderValue: 100},
			wantErr: coupon.ErrInvalidDiscountValue,
		},
		{
			name:    "repository failure",
			repo:    &mockCouponRepo{findErr: dbErr},
			usages:  &mockUsageRepo{},
			req:     ValidateRequest{Code: "X", OrderValue: 100},
			wantErr: dbErr,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewService(tt.repo, tt.usages)
			_, err := svc.ValidateCode(context.Background(), tt.req)
			require.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestConflicts(t *testing.T) {
	a := newTestCoupon("NS-ONE", coupon.DiscountPercentage, "10", false)
	b := newTestCoupon("NS-TWO", coupon.DiscountPercentage, "15", false)
	svc := NewService(newCouponRepo(a, b), &mockUsageRepo{})

	report, err := svc.Conflicts(context.Background(), []string{"NS-ONE", "NS-TWO", "ns-one"})
	require.NoError(t, err)

	assert.True(t, report.HasConflicts)
	assert.Contains(t, report.Messages(), "Multiple non-stackable coupons cannot be used together")

	_, err = svc.Conflicts(context.Background(), nil)
	require.ErrorIs(t, err, ErrEmptyCodes)

	_, err = svc.Conflicts(context.Background(), []string{"NS-ONE", "GHOST"})
	require.ErrorIs(t, err, coupon.ErrNotFound)
}

func TestBestOffer(t *testing.T) {
	ten := newTestCoupon("TEN", coupon.DiscountPercentage, "10", true)
	twenty := newTestCoupon("TWENTY", coupon.DiscountPercentage, "20", true)
	solo := newTestCoupon("SOLO", coupon.DiscountPercentage, "25", false)

	expired := newTestCoupon("OLD", coupon.DiscountPercentage, "90", false)
	expired.ValidUntil = time.Now().Add(-time.Hour)

	elsewhere := newTestCoupon("HOTEL", coupon.DiscountPercentage, "50", false)
	elsewhere.GlobalApplication = coupon.GlobalApplication{}
	elsewhere.ApplicableAssets = []coupon.ApplicableAsset{
		{AssetType: coupon.AssetAccommodation, AssetID: "h9", IsActive: true},
	}

	minOrder := newTestCoupon("BIGSPEND", coupon.DiscountPercentage, "40", false)
	minOrder.MinimumOrderValue = ptr[int64](50000)

	svc := NewService(newCouponRepo(ten, twenty, solo, expired, elsewhere, minOrder), &mockUsageRepo{})

	best, err := svc.BestOffer(context.Background(), OptimizeRequest{
		AssetType:  coupon.AssetActivity,
		AssetID:    "a1",
		OrderValue: 10000,
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"TEN", "TWENTY"}, couponCodes(best.Coupons))
	assert.Equal(t, int64(3000), best.TotalDiscount)
	assert.Equal(t, int64(7000), best.FinalAmount)
}

func TestBestOffer_NoCandidates(t *testing.T) {
	svc := NewService(newCouponRepo(), &mockUsageRepo{})

	best, err := svc.BestOffer(context.Background(), OptimizeRequest{
		AssetType:  coupon.AssetEvent,
		AssetID:    "e1",
		OrderValue: 500,
	})
	require.NoError(t, err)

	assert.Empty(t, best.Coupons)
	assert.Equal(t, int64(500), best.FinalAmount)
}

func TestBestOffer_RepositoryError(t *testing.T) {
	svc := NewService(&mockCouponRepo{listErr: errors.New("timeout")}, &mockUsageRepo{})

	_, err := svc.BestOffer(context.Background(), OptimizeRequest{OrderValue: 100})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "list active coupons")
}

func TestQuote(t *testing.T) {
	ten := newTestCoupon("TEN", coupon.DiscountPercentage, "10", true)
	flat := newTestCoupon("FLAT5", coupon.DiscountFixedAmount, "500", true)
	inactive := newTestCoupon("OFF", coupon.DiscountPercentage, "50", true)
	inactive.IsActive = false

	svc := NewService(newCouponRepo(ten, flat, inactive), &mockUsageRepo{})

	q, err := svc.Quote(context.Background(), QuoteRequest{
		Codes:      []string{"TEN", "OFF", "FLAT5", "ten"},
		OrderValue: 10000,
	})
	require.NoError(t, err)

	require.Len(t, q.Results, 3)
	assert.True(t, q.Results[0].Validation.IsValid)
	assert.False(t, q.Results[1].Validation.IsValid)
	assert.Equal(t, []string{"Coupon is inactive"}, q.Results[1].Validation.Reasons)
	assert.True(t, q.Results[2].Validation.IsValid)

	assert.False(t, q.Conflicts.HasConflicts)
	assert.Equal(t, []string{"TEN", "FLAT5"}, couponCodes(q.Combination.Coupons))
	assert.Equal(t, int64(1500), q.Combination.TotalDiscount)
	assert.Equal(t, int64(8500), q.Combination.FinalAmount)
}

func TestQuote_ExclusiveConflict(t *testing.T) {
	first := newTestCoupon("WELCOME", coupon.DiscountPercentage, "10", true)
	first.Type = coupon.TypeFirstPurchase
	second := newTestCoupon("WELCOME2", coupon.DiscountPercentage, "15", true)
	second.Type = coupon.TypeFirstPurchase

	svc := NewService(newCouponRepo(first, second), &mockUsageRepo{})

	q, err := svc.Quote(context.Background(), QuoteRequest{Codes: []string{"WELCOME", "WELCOME2"}, OrderValue: 1000})
	require.NoError(t, err)

	assert.True(t, q.Conflicts.HasConflicts)
	assert.Equal(t, []string{"Only one first_purchase coupon can be applied"}, q.Conflicts.Messages())
}

func TestQuote_Errors(t *testing.T) {
	svc := NewService(newCouponRepo(), &mockUsageRepo{})

	_, err := svc.Quote(context.Background(), QuoteRequest{})
	require.ErrorIs(t, err, ErrEmptyCodes)

	_, err = svc.Quote(context.Background(), QuoteRequest{Codes: []string{"X"}, OrderValue: -5})
	require.ErrorIs(t, err, ErrInvalidOrderValue)

	_, err = svc.Quote(context.Background(), QuoteRequest{Codes: []string{"NOPE"}, OrderValue: 5})
	require.ErrorIs(t, err, coupon.ErrNotFound)
}

func TestUserSavings(t *testing.T) {
	at := time.Date(2025, 5, 5, 0, 0, 0, 0, time.UTC)
	usages := &mockUsageRepo{usages: []coupon.Usage{
		{DiscountAmount: 300, AppliedAt: at, Status: coupon.UsageApplied},
		{DiscountAmount: 700, AppliedAt: at, Status: coupon.UsageApplied},
		{DiscountAmount: 100, AppliedAt: at, Status: coupon.UsageReverted},
	}}
	svc := NewService(newCouponRepo(), usages)

	got, err := svc.UserSavings(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(1000), got.TotalSaved)
	assert.Equal(t, 2, got.CouponsUsed)

	usages.err = errors.New("boom")
	_, err = svc.UserSavings(context.Background(), "u1")
	require.Error(t, err)
}

func TestDedupe(t *testing.T) {
	assert.Equal(t, []string{"A", "b"}, dedupe([]string{"A", " ", "b", "a", "B "}))
}
