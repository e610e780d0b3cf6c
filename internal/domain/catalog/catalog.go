// Package catalog is a local read model of the external service catalog,
// kept current by consuming catalog events. Booking creation reads the
// service price and provider from here; the catalog itself is owned by
// another system.
package catalog

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Service is one bookable catalog entry as this service sees it.
type Service struct {
	ID         uuid.UUID
	ProviderID uuid.UUID
	Title      string
	Price      decimal.Decimal
	Active     bool
	UpdatedAt  time.Time
}

// Repository defines persistence for the catalog read model.
type Repository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Service, error)
	Upsert(ctx context.Context, s *Service) error
	Delete(ctx context.Context, id uuid.UUID) error
}
