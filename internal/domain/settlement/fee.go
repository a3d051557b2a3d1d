// Package settlement splits partner transactions into processor fee,
// platform fee and partner payout.
package settlement

import (
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/tripmarket-pricing/internal/money"
)

var (
	// ErrInvalidAmount is returned for a non-positive transaction amount.
	ErrInvalidAmount = errors.New("amount must be greater than 0")
	// ErrInvalidFeePercentage is returned for a fee percentage outside [0, 100].
	ErrInvalidFeePercentage = errors.New("fee percentage must be between 0 and 100")
)

var (
	// processorRate and processorFixed emulate the card processor's
	// 2.9% + 29 minor units pricing.
	processorRate  = decimal.RequireFromString("2.9")
	processorFixed = int64(29)
	hundred        = decimal.NewFromInt(100)
)

// FeeCalculation is the split of one transaction amount in minor units.
type FeeCalculation struct {
	TransactionAmount int64
	StripeFee         int64
	PlatformFee       int64
	PartnerAmount     int64
}

// FeeRequest is the input of CalculateFees.
type FeeRequest struct {
	Amount        int64
	FeePercentage decimal.Decimal
}

// ProcessorFee estimates the card processor's cut of amount.
func ProcessorFee(amount int64) int64 {
	return money.ApplyPercentage(amount, processorRate) + processorFixed
}

// CalculateApplicationFee computes the platform's application fee for a
// charge. The partner receives amount minus the platform fee; StripeFee is an
// informational estimate because the processor deducts its real fee
// out of band.
func CalculateApplicationFee(totalAmount int64, feePercentage decimal.Decimal) (FeeCalculation, error) {
	if err := validate(totalAmount, feePercentage); err != nil {
		return FeeCalculation{}, err
	}

	platformFee := money.ApplyPercentage(totalAmount, feePercentage)
	return FeeCalculation{
		TransactionAmount: totalAmount,
		StripeFee:         ProcessorFee(totalAmount),
		PlatformFee:       platformFee,
		PartnerAmount:     totalAmount - platformFee,
	}, nil
}

// CalculateFees computes the payout accounting split. The partner amount is
// what remains after both fees, so StripeFee + PlatformFee + PartnerAmount
// always equals Amount exactly.
//
// For amounts below the processor's fixed fee the partner amount is negative;
// the identity still holds and the caller decides how to settle the deficit.
func CalculateFees(req FeeRequest) (FeeCalculation, error) {
	if err := validate(req.Amount, req.FeePercentage); err != nil {
		return FeeCalculation{}, err
	}

	stripeFee := ProcessorFee(req.Amount)
	platformFee := money.ApplyPercentage(req.Amount, req.FeePercentage)
	return FeeCalculation{
		TransactionAmount: req.Amount,
		StripeFee:         stripeFee,
		PlatformFee:       platformFee,
		PartnerAmount:     req.Amount - stripeFee - platformFee,
	}, nil
}

func validate(amount int64, feePercentage decimal.Decimal) error {
	if amount <= 0 {
		return errors.Wrapf(ErrInvalidAmount, "got %d", amount)
	}
	if feePercentage.IsNegative() || feePercentage.GreaterThan(hundred) {
		return errors.Wrapf(ErrInvalidFeePercentage, "got %s", feePercentage)
	}
	return nil
}
