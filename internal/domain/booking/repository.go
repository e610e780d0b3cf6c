package booking

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Repository defines the persistence contract for Booking aggregates.
type Repository interface {
	// FindByID retrieves a booking by its unique ID.
	FindByID(ctx context.Context, id uuid.UUID) (*Booking, error)

	// FindByCustomer retrieves a customer's bookings, newest first.
	FindByCustomer(ctx context.Context, customerID uuid.UUID, page, limit int) ([]*Booking, int64, error)

	// FindByProvider retrieves a provider's bookings, newest first.
	FindByProvider(ctx context.Context, providerID uuid.UUID, page, limit int) ([]*Booking, int64, error)

	// SumCompletedServiceAmount derives a provider's earnings from the
	// completed-booking set, used to audit the earnings counter.
	SumCompletedServiceAmount(ctx context.Context, providerID uuid.UUID) (decimal.Decimal, error)

	// Save persists a new booking aggregate.
	Save(ctx context.Context, b *Booking) error

	// Update persists changes to an existing booking with optimistic locking.
	Update(ctx context.Context, b *Booking) error
}
