// Package earnings holds the provider earnings ledger: a monotonically
// increasing counter per provider, credited exactly once per booking at the
// moment the booking completes.
package earnings

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ProviderEarnings is the materialized total owed to a provider for
// completed bookings, excluding the platform fee.
type ProviderEarnings struct {
	ProviderID uuid.UUID
	Total      decimal.Decimal
	UpdatedAt  time.Time
}

// Repository defines persistence for the earnings counter. The only writer
// is the accepted->completed booking transition.
type Repository interface {
	// Credit atomically increases the provider's total by amount, creating
	// the row on first credit. Crediting is keyed by booking id: a second
	// credit for the same booking is a no-op, so a completion retry after a
	// partial failure never double-counts.
	Credit(ctx context.Context, providerID, bookingID uuid.UUID, amount decimal.Decimal) error

	// TotalFor returns the provider's current total (zero when never credited).
	TotalFor(ctx context.Context, providerID uuid.UUID) (decimal.Decimal, error)
}
