package application

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	bookingDomain "github.com/servilink/service-booking/internal/domain/booking"
	"github.com/servilink/service-booking/internal/domain/earnings"
)

// EarningsDTO is the API response DTO for a provider's earnings total.
type EarningsDTO struct {
	ProviderID uuid.UUID       `json:"provider_id"`
	Total      decimal.Decimal `json:"total"`
}

// ReconciliationDTO compares the running earnings counter against the total
// derived from completed bookings.
type ReconciliationDTO struct {
	ProviderID   uuid.UUID       `json:"provider_id"`
	CounterTotal decimal.Decimal `json:"counter_total"`
	DerivedTotal decimal.Decimal `json:"derived_total"`
	Consistent   bool            `json:"consistent"`
}

// EarningsService exposes the provider earnings ledger.
type EarningsService struct {
	earnings earnings.Repository
	bookings bookingDomain.Repository
	logger   *zap.Logger
}

// NewEarningsService creates a new EarningsService.
func NewEarningsService(earnings earnings.Repository, bookings bookingDomain.Repository, logger *zap.Logger) *EarningsService {
	return &EarningsService{earnings: earnings, bookings: bookings, logger: logger}
}

// GetEarnings returns the provider's accumulated total, zero if the provider
// has never completed a booking.
func (s *EarningsService) GetEarnings(ctx context.Context, providerID uuid.UUID) (*EarningsDTO, error) {
	total, err := s.earnings.TotalFor(ctx, providerID)
	if err != nil {
		return nil, err
	}
	return &EarningsDTO{ProviderID: providerID, Total: total}, nil
}

// Reconcile audits the counter against the sum of service amounts over the
// provider's completed bookings. The two must agree; a mismatch means a
// credit was lost or double-applied and is worth an alert.
func (s *EarningsService) Reconcile(ctx context.Context, providerID uuid.UUID) (*ReconciliationDTO, error) {
	counter, err := s.earnings.TotalFor(ctx, providerID)
	if err != nil {
		return nil, err
	}
	derived, err := s.bookings.SumCompletedServiceAmount(ctx, providerID)
	if err != nil {
		return nil, err
	}

	consistent := counter.Equal(derived)
	if !consistent {
		s.logger.Warn("earnings counter out of sync",
			zap.String("provider_id", providerID.String()),
			zap.String("counter_total", counter.String()),
			zap.String("derived_total", derived.String()),
		)
	}

	return &ReconciliationDTO{
		ProviderID:   providerID,
		CounterTotal: counter,
		DerivedTotal: derived,
		Consistent:   consistent,
	}, nil
}
