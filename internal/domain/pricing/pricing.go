package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/servilink/service-booking/internal/domain"
)

// MaxFeePercentage is the upper bound the platform allows for its cut.
const MaxFeePercentage = 50

// Quote holds the amounts computed once at booking creation. They are never
// recomputed afterwards; every later component reads them from the booking.
type Quote struct {
	ServiceAmount decimal.Decimal
	PlatformFee   decimal.Decimal
	TotalAmount   decimal.Decimal
}

// ComputeAmounts turns a service price and the platform fee percentage into a
// Quote. The service amount passes through unchanged (the price is already
// the provider's ask); the fee is price * pct / 100 rounded half-up to the
// currency's minor unit. Pure function, no side effects.
func ComputeAmounts(servicePrice decimal.Decimal, feePercentage int64) (Quote, error) {
	if servicePrice.Sign() <= 0 {
		return Quote{}, domain.NewInvalidInputError("service price must be positive")
	}
	if feePercentage < 0 || feePercentage > MaxFeePercentage {
		return Quote{}, domain.NewInvalidInputError("fee percentage must be between 0 and 50")
	}

	serviceAmount := servicePrice.Round(2)
	platformFee := servicePrice.
		Mul(decimal.NewFromInt(feePercentage)).
		Div(decimal.NewFromInt(100)).
		Round(2)

	return Quote{
		ServiceAmount: serviceAmount,
		PlatformFee:   platformFee,
		TotalAmount:   serviceAmount.Add(platformFee),
	}, nil
}

// MinorUnits converts a decimal amount to the gateway's integer minor units
// (e.g. 110.00 -> 11000).
func MinorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}
