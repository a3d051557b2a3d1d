// Package checkout answers coupon questions for a pending booking by
// combining stored coupons and usage history with the pricing rules.
package checkout

import (
	"context"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"

	"github.com/xenking/tripmarket-pricing/internal/domain/coupon"
)

var (
	// ErrEmptyCodes is returned when a request names no coupon codes.
	ErrEmptyCodes = errors.New("codes required")
	// ErrInvalidOrderValue is returned for a negative order value.
	ErrInvalidOrderValue = errors.New("order value must not be negative")
)

// CodeNotFoundError indicates a requested coupon code does not exist.
type CodeNotFoundError struct {
	Code string
}

func (e *CodeNotFoundError) Error() string {
	return "coupon " + e.Code + " not found"
}

// Is makes CodeNotFoundError match coupon.ErrNotFound.
func (e *CodeNotFoundError) Is(target error) bool {
	return target == coupon.ErrNotFound
}

// ValidateRequest holds the input for validating a single code.
type ValidateRequest struct {
	Code       string
	OrderValue int64
	UserID     string
}

// CodeResult is the outcome of validating one coupon against an order.
type CodeResult struct {
	Coupon      *coupon.Coupon
	Validation  coupon.ValidationResult
	Calculation coupon.Calculation
}

// OptimizeRequest describes the listing and order to find the best offer for.
type OptimizeRequest struct {
	AssetType  coupon.AssetType
	AssetID    string
	OrderValue int64
	UserID     string
}

// QuoteRequest lists the codes a user wants to apply to an order.
type QuoteRequest struct {
	Codes      []string
	OrderValue int64
	UserID     string
}

// Quote reports per-code validation, conflicts among the usable codes, and
// the best combination of them.
type Quote struct {
	Results     []CodeResult
	Conflicts   coupon.ConflictReport
	Combination coupon.Combination
}

// Service encapsulates coupon checkout logic.
type Service struct {
	coupons   coupon.Repository
	usages    coupon.UsageRepository
	validator *coupon.Validator

	tracer      trace.Tracer
	validations metric.Int64Counter
}

// Option configures a Service.
type Option func(*Service)

// WithMeterProvider records validation counters with mp.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(s *Service) {
		s.validations, _ = mp.Meter("tripmarket/checkout").Int64Counter("pricing.coupon.validations",
			metric.WithDescription("Coupon validations by outcome"))
	}
}

// WithTracerProvider creates checkout spans with tp.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(s *Service) {
		s.tracer = tp.Tracer("tripmarket/checkout")
	}
}

// WithValidator replaces the eligibility validator.
func WithValidator(v *coupon.Validator) Option {
	return func(s *Service) {
		s.validator = v
	}
}

// NewService creates a checkout Service with the required repositories.
func NewService(coupons coupon.Repository, usages coupon.UsageRepository, opts ...Option) *Service {
	s := &Service{
		coupons:   coupons,
		usages:    usages,
		validator: coupon.NewValidator(),
	}
	WithMeterProvider(noop.NewMeterProvider())(s)
	WithTracerProvider(tracenoop.NewTracerProvider())(s)
	for _, o := range opts {
		o(s)
	}
	return s
}

// ValidateCode looks up a coupon and checks it against the order and the
// user's history. Ineligibility is reported in the result, not as an error.
func (s *Service) ValidateCode(ctx context.Context, req ValidateRequest) (*CodeResult, error) {
	ctx, span := s.tracer.Start(ctx, "checkout.ValidateCode",
		trace.WithAttributes(attribute.String("coupon.code", req.Code)))
	defer span.End()

	if req.OrderValue < 0 {
		return nil, ErrInvalidOrderValue
	}
	c, err := s.find(ctx, req.Code)
	if err != nil {
		return nil, err
	}
	res, err := s.evaluate(ctx, c, req.OrderValue, req.UserID)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// Conflicts looks up every code and reports the stacking conflicts between them.
func (s *Service) Conflicts(ctx context.Context, codes []string) (coupon.ConflictReport, error) {
	ctx, span := s.tracer.Start(ctx, "checkout.Conflicts")
	defer span.End()

	if len(codes) == 0 {
		return coupon.ConflictReport{}, ErrEmptyCodes
	}
	found := make([]coupon.Coupon, 0, len(codes))
	for _, code := range dedupe(codes) {
		c, err := s.find(ctx, code)
		if err != nil {
			return coupon.ConflictReport{}, err
		}
		found = append(found, *c)
	}
	return coupon.CheckConflicts(found), nil
}

// BestOffer finds the coupons applicable to a listing that the user may
// use on this order and returns the combination with the largest discount.
func (s *Service) BestOffer(ctx context.Context, req OptimizeRequest) (coupon.Combination, error) {
	ctx, span := s.tracer.Start(ctx, "checkout.BestOffer",
		trace.WithAttributes(
			attribute.String("asset.type", string(req.AssetType)),
			attribute.String("asset.id", req.AssetID),
		),
	)
	defer span.End()

	if req.OrderValue < 0 {
		return coupon.Combination{}, ErrInvalidOrderValue
	}
	active, err := s.coupons.ListActive(ctx, req.AssetType, req.AssetID)
	if err != nil {
		return coupon.Combination{}, errors.Wrap(err, "list active coupons")
	}

	eligible := make([]coupon.Coupon, 0, len(active))
	for i := range active {
		c := &active[i]
		if !c.AppliesTo(req.AssetType, req.AssetID) {
			continue
		}
		res, err := s.evaluate(ctx, c, req.OrderValue, req.UserID)
		if err != nil {
			return coupon.Combination{}, err
		}
		if res.Validation.IsValid {
			eligible = append(eligible, *c)
		}
	}

	best := coupon.Optimize(eligible, req.OrderValue)
	zctx.From(ctx).Debug("Best offer",
		zap.Int("candidates", len(active)),
		zap.Int("eligible", len(eligible)),
		zap.Int64("discount", best.TotalDiscount),
	)
	return best, nil
}

// Quote validates each requested code, reports conflicts among the usable
// ones, and picks the best combination of them.
func (s *Service) Quote(ctx context.Context, req QuoteRequest) (*Quote, error) {
	ctx, span := s.tracer.Start(ctx, "checkout.Quote")
	defer span.End()

	if len(req.Codes) == 0 {
		return nil, ErrEmptyCodes
	}
	if req.OrderValue < 0 {
		return nil, ErrInvalidOrderValue
	}

	codes := dedupe(req.Codes)
	q := &Quote{Results: make([]CodeResult, 0, len(codes))}
	usable := make([]coupon.Coupon, 0, len(codes))
	for _, code := range codes {
		c, err := s.find(ctx, code)
		if err != nil {
			return nil, err
		}
		res, err := s.evaluate(ctx, c, req.OrderValue, req.UserID)
		if err != nil {
			return nil, err
		}
		q.Results = append(q.Results, res)
		if res.Validation.IsValid {
			usable = append(usable, *c)
		}
	}

	q.Conflicts = coupon.CheckConflicts(usable)
	q.Combination = coupon.Optimize(usable, req.OrderValue)
	return q, nil
}

// UserSavings summarizes what the user saved with applied coupons.
func (s *Service) UserSavings(ctx context.Context, userID string) (coupon.Savings, error) {
	usages, err := s.usages.ListUserUsages(ctx, userID)
	if err != nil {
		return coupon.Savings{}, errors.Wrap(err, "list user usages")
	}
	return coupon.SummarizeSavings(usages), nil
}

func (s *Service) find(ctx context.Context, code string) (*coupon.Coupon, error) {
	c, err := s.coupons.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, coupon.ErrNotFound) {
			return nil, &CodeNotFoundError{Code: code}
		}
		return nil, errors.Wrapf(err, "find coupon %q", code)
	}
	if err := c.Validate(); err != nil {
		return nil, errors.Wrapf(err, "stored coupon %q", c.Code)
	}
	return c, nil
}

func (s *Service) evaluate(ctx context.Context, c *coupon.Coupon, orderValue int64, userID string) (CodeResult, error) {
	req := coupon.ValidationRequest{OrderValue: orderValue, UserID: userID}
	if userID != "" && c.UserUsageLimit != nil {
		n, err := s.usages.CountUserUsage(ctx, c.ID, userID)
		if err != nil {
			return CodeResult{}, errors.Wrapf(err, "count usage of %q", c.Code)
		}
		req.UserUsageCount = &n
	}

	v := s.validator.Validate(c, req)
	s.validations.Add(ctx, 1, metric.WithAttributes(
		attribute.Bool("valid", v.IsValid),
		attribute.String("status", string(v.Status)),
	))

	res := CodeResult{Coupon: c, Validation: v}
	if v.IsValid {
		res.Calculation = c.Calculate(orderValue)
	} else {
		res.Calculation = coupon.Calculation{
			OriginalAmount: orderValue,
			FinalAmount:    orderValue,
		}
	}
	return res, nil
}

// dedupe drops repeated codes, comparing case-insensitively, and keeps the
// first occurrence order.
func dedupe(codes []string) []string {
	seen := make(map[string]struct{}, len(codes))
	out := make([]string, 0, len(codes))
	for _, code := range codes {
		key := strings.ToUpper(strings.TrimSpace(code))
		if key == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, strings.TrimSpace(code))
	}
	return out
}
