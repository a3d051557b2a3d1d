package settlement

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"
)

var (
	// ErrPartnerNotFound is returned when no partner matches the ID.
	ErrPartnerNotFound = errors.New("partner not found")
	// ErrBookingRequired is returned when a settlement request has no booking ID.
	ErrBookingRequired = errors.New("booking id required")
	// ErrTransactionNotFound is returned when a booking has no settlement.
	ErrTransactionNotFound = errors.New("transaction not found")
	// ErrSettlementConflict is returned when a booking was already settled
	// for a different partner or amount.
	ErrSettlementConflict = errors.New("booking already settled with different terms")
)

// Transaction is a recorded partner settlement for one booking.
type Transaction struct {
	ID            uuid.UUID
	PartnerID     string
	BookingID     string
	FeePercentage decimal.Decimal
	Fees          FeeCalculation
	CreatedAt     time.Time
}

// PartnerRepository resolves the platform fee negotiated with a partner.
type PartnerRepository interface {
	FeePercentage(ctx context.Context, partnerID string) (decimal.Decimal, error)
}

// TransactionRepository persists settlements.
type TransactionRepository interface {
	// Create stores tx unless a transaction for the same booking exists.
	// It reports whether a new row was written.
	Create(ctx context.Context, tx *Transaction) (bool, error)
	// FindByBooking returns ErrTransactionNotFound when the booking has no
	// settlement.
	FindByBooking(ctx context.Context, bookingID string) (*Transaction, error)
}

// SettleRequest is the input of Service.Settle.
type SettleRequest struct {
	PartnerID string
	BookingID string
	Amount    int64
}

// SettleResult carries the stored transaction. Replayed is true when the
// booking was already settled and the earlier transaction was returned.
type SettleResult struct {
	Transaction *Transaction
	Replayed    bool
}

// Service records partner settlements.
type Service struct {
	partners     PartnerRepository
	transactions TransactionRepository
	now          func() time.Time

	tracer      trace.Tracer
	settled     metric.Int64Counter
	platformFee metric.Int64Counter
}

// Option configures a Service.
type Option func(*Service)

// WithMeterProvider records settlement counters with mp.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(s *Service) {
		meter := mp.Meter("tripmarket/settlement")
		s.settled, _ = meter.Int64Counter("pricing.settlement.count",
			metric.WithDescription("Settled partner transactions"))
		s.platformFee, _ = meter.Int64Counter("pricing.settlement.platform_fee",
			metric.WithDescription("Platform fee collected"),
			metric.WithUnit("{minor_unit}"))
	}
}

// WithTracerProvider creates settlement spans with tp.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(s *Service) {
		s.tracer = tp.Tracer("tripmarket/settlement")
	}
}

// NewService creates a settlement Service.
func NewService(partners PartnerRepository, transactions TransactionRepository, opts ...Option) *Service {
	s := &Service{
		partners:     partners,
		transactions: transactions,
		now:          time.Now,
	}
	WithMeterProvider(noop.NewMeterProvider())(s)
	WithTracerProvider(tracenoop.NewTracerProvider())(s)
	for _, o := range opts {
		o(s)
	}
	return s
}

// Settle computes the fee split for a booking using the partner's fee
// percentage and stores it. Settling the same booking again with the same
// partner and amount returns the first transaction without recomputing it;
// any other terms fail with ErrSettlementConflict.
func (s *Service) Settle(ctx context.Context, req SettleRequest) (*SettleResult, error) {
	ctx, span := s.tracer.Start(ctx, "settlement.Settle",
		trace.WithAttributes(
			attribute.String("partner.id", req.PartnerID),
			attribute.String("booking.id", req.BookingID),
		),
	)
	defer span.End()

	if req.BookingID == "" {
		return nil, ErrBookingRequired
	}

	lg := zctx.From(ctx).With(
		zap.String("partner_id", req.PartnerID),
		zap.String("booking_id", req.BookingID),
	)

	switch existing, err := s.transactions.FindByBooking(ctx, req.BookingID); {
	case err == nil:
		return replay(lg, existing, req)
	case !errors.Is(err, ErrTransactionNotFound):
		return nil, errors.Wrap(err, "find existing transaction")
	}

	pct, err := s.partners.FeePercentage(ctx, req.PartnerID)
	if err != nil {
		return nil, errors.Wrap(err, "get partner fee")
	}

	fees, err := CalculateFees(FeeRequest{Amount: req.Amount, FeePercentage: pct})
	if err != nil {
		return nil, err
	}

	tx := &Transaction{
		ID:            uuid.New(),
		PartnerID:     req.PartnerID,
		BookingID:     req.BookingID,
		FeePercentage: pct,
		Fees:          fees,
		CreatedAt:     s.now().UTC(),
	}
	created, err := s.transactions.Create(ctx, tx)
	if err != nil {
		return nil, errors.Wrap(err, "create transaction")
	}
	if !created {
		// Lost a race with a concurrent settlement of the same booking.
		existing, err := s.transactions.FindByBooking(ctx, req.BookingID)
		if err != nil {
			return nil, errors.Wrap(err, "find existing transaction")
		}
		return replay(lg, existing, req)
	}

	attrs := metric.WithAttributes(attribute.String("partner.id", req.PartnerID))
	s.settled.Add(ctx, 1, attrs)
	s.platformFee.Add(ctx, fees.PlatformFee, attrs)

	if fees.PartnerAmount < 0 {
		lg.Warn("Partner amount is negative",
			zap.Int64("amount", fees.TransactionAmount),
			zap.Int64("partner_amount", fees.PartnerAmount),
		)
	}
	lg.Info("Settled",
		zap.Stringer("transaction_id", tx.ID),
		zap.Int64("platform_fee", fees.PlatformFee),
		zap.Int64("partner_amount", fees.PartnerAmount),
	)
	return &SettleResult{Transaction: tx}, nil
}

func replay(lg *zap.Logger, existing *Transaction, req SettleRequest) (*SettleResult, error) {
	if existing.PartnerID != req.PartnerID || existing.Fees.TransactionAmount != req.Amount {
		lg.Warn("Booking settled with different terms",
			zap.Stringer("transaction_id", existing.ID),
			zap.String("settled_partner_id", existing.PartnerID),
			zap.Int64("settled_amount", existing.Fees.TransactionAmount),
			zap.Int64("amount", req.Amount),
		)
		return nil, errors.Wrapf(ErrSettlementConflict, "booking %s", req.BookingID)
	}
	lg.Info("Booking already settled", zap.Stringer("transaction_id", existing.ID))
	return &SettleResult{Transaction: existing, Replayed: true}, nil
}
