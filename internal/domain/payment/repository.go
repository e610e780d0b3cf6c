package payment

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Repository defines the persistence contract for Payment aggregates.
type Repository interface {
	// FindByID retrieves a payment by its unique ID.
	FindByID(ctx context.Context, id uuid.UUID) (*Payment, error)

	// FindByBookingID retrieves the payment for a booking.
	FindByBookingID(ctx context.Context, bookingID uuid.UUID) (*Payment, error)

	// FindByGatewayOrderID retrieves the payment correlated with a gateway order.
	FindByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*Payment, error)

	// ListAll retrieves all payments with pagination (admin).
	ListAll(ctx context.Context, page, limit int) ([]*Payment, int64, error)

	// GetRevenueStats returns platform fee revenue and counts by status (admin).
	GetRevenueStats(ctx context.Context) (totalFees decimal.Decimal, countByStatus map[string]int64, err error)

	// Save persists a new payment aggregate.
	Save(ctx context.Context, p *Payment) error

	// Update persists changes to an existing payment with optimistic locking.
	Update(ctx context.Context, p *Payment) error
}
