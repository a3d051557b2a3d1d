// Package handler exposes the pricing engine over HTTP with JSON bodies.
package handler

import (
	"context"
	"io"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/tripmarket-pricing/internal/domain/checkout"
	"github.com/xenking/tripmarket-pricing/internal/domain/coupon"
	"github.com/xenking/tripmarket-pricing/internal/domain/settlement"
	"github.com/xenking/tripmarket-pricing/internal/issuance"
)

// maxBodySize caps request bodies.
const maxBodySize = 1 << 20

// CheckoutService answers coupon questions for an order.
type CheckoutService interface {
	ValidateCode(ctx context.Context, req checkout.ValidateRequest) (*checkout.CodeResult, error)
	Conflicts(ctx context.Context, codes []string) (coupon.ConflictReport, error)
	BestOffer(ctx context.Context, req checkout.OptimizeRequest) (coupon.Combination, error)
	Quote(ctx context.Context, req checkout.QuoteRequest) (*checkout.Quote, error)
	UserSavings(ctx context.Context, userID string) (coupon.Savings, error)
}

// SettlementService records partner settlements.
type SettlementService interface {
	Settle(ctx context.Context, req settlement.SettleRequest) (*settlement.SettleResult, error)
}

// CodeIssuer hands out unused coupon codes.
type CodeIssuer interface {
	IssueWith(ctx context.Context, prefix string, length int) (string, error)
}

// Handler serves the pricing API.
type Handler struct {
	checkout    CheckoutService
	settlements SettlementService
	issuer      CodeIssuer
}

// New constructs a Handler with the required domain dependencies.
func New(checkout CheckoutService, settlements SettlementService, issuer CodeIssuer) *Handler {
	return &Handler{
		checkout:    checkout,
		settlements: settlements,
		issuer:      issuer,
	}
}

// Register adds the API routes to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/coupons/calculate", h.CalculateDiscount)
	mux.HandleFunc("POST /api/coupons/validate", h.ValidateCoupon)
	mux.HandleFunc("POST /api/coupons/conflicts", h.CheckConflicts)
	mux.HandleFunc("POST /api/coupons/optimize", h.OptimizeCoupons)
	mux.HandleFunc("POST /api/coupons/quote", h.QuoteCoupons)
	mux.HandleFunc("POST /api/coupons/generate", h.GenerateCode)
	mux.HandleFunc("GET /api/users/{userID}/savings", h.UserSavings)
	mux.HandleFunc("POST /api/settlements/fees", h.CalculateFees)
	mux.HandleFunc("POST /api/settlements/application-fee", h.CalculateApplicationFee)
	mux.HandleFunc("POST /api/partners/{partnerID}/settlements", h.SettleBooking)
}

// badRequestError marks client input that could not be decoded.
type badRequestError struct {
	err error
}

func (e *badRequestError) Error() string { return e.err.Error() }

func (e *badRequestError) Unwrap() error { return e.err }

func badRequest(msg string) error {
	return &badRequestError{err: errors.New(msg)}
}

// decodeObject reads the request body as a JSON object and calls fn for
// every field.
func decodeObject(r *http.Request, fn func(d *jx.Decoder, key string) error) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		return &badRequestError{err: errors.Wrap(err, "read body")}
	}
	if len(body) == 0 {
		return badRequest("request body required")
	}
	if err := jx.DecodeBytes(body).Obj(fn); err != nil {
		var bad *badRequestError
		if errors.As(err, &bad) {
			return bad
		}
		return &badRequestError{err: errors.Wrap(err, "invalid JSON")}
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, fn func(e *jx.Encoder)) {
	var e jx.Encoder
	fn(&e)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}

// writeError maps domain errors to HTTP statuses. Unknown errors are logged
// and reported as 500 without details.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := errorStatus(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		zctx.From(r.Context()).Error("Request failed", zap.Error(err))
		msg = "internal server error"
	}
	writeJSON(w, status, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("code", func(e *jx.Encoder) { e.Int(status) })
			e.Field("message", func(e *jx.Encoder) { e.Str(msg) })
		})
	})
}

func errorStatus(err error) int {
	var bad *badRequestError
	switch {
	case errors.As(err, &bad):
		return http.StatusBadRequest
	case errors.Is(err, coupon.ErrNotFound),
		errors.Is(err, settlement.ErrPartnerNotFound):
		return http.StatusNotFound
	case errors.Is(err, coupon.ErrDuplicateCode),
		errors.Is(err, settlement.ErrSettlementConflict):
		return http.StatusConflict
	case errors.Is(err, settlement.ErrInvalidAmount),
		errors.Is(err, settlement.ErrInvalidFeePercentage),
		errors.Is(err, settlement.ErrBookingRequired),
		errors.Is(err, checkout.ErrEmptyCodes),
		errors.Is(err, checkout.ErrInvalidOrderValue),
		errors.Is(err, coupon.ErrInvalidCode),
		errors.Is(err, coupon.ErrInvalidDiscountType),
		errors.Is(err, coupon.ErrInvalidDiscountValue),
		errors.Is(err, coupon.ErrInvalidDateRange),
		errors.Is(err, coupon.ErrInvalidMaxDiscount):
		return http.StatusUnprocessableEntity
	case errors.Is(err, issuance.ErrCodeSpaceExhausted):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
