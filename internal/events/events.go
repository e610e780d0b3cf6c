// Package events defines the CloudEvent types this service publishes and
// consumes, plus the consumer that maintains the catalog read model.
package events

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// EventSource identifies this service in published CloudEvents.
const EventSource = "service-booking"

// Topics.
const (
	TopicBookingEvents = "booking.events"
	TopicPaymentEvents = "payment.events"
	TopicCatalogEvents = "catalog.events"
)

// Published event types.
const (
	BookingCreated   = "booking.created"
	BookingAccepted  = "booking.accepted"
	BookingRejected  = "booking.rejected"
	BookingCancelled = "booking.cancelled"
	BookingCompleted = "booking.completed"
	PaymentCompleted = "payment.completed"
	PaymentRefunded  = "payment.refunded"
	PaymentFailed    = "payment.failed"
)

// Consumed event types (from the catalog service).
const (
	ServiceUpserted = "service.upserted"
	ServiceDeleted  = "service.deleted"
)

// BookingEvent is the payload for every booking lifecycle event.
type BookingEvent struct {
	BookingID   uuid.UUID       `json:"booking_id"`
	CustomerID  uuid.UUID       `json:"customer_id"`
	ProviderID  uuid.UUID       `json:"provider_id"`
	ServiceID   uuid.UUID       `json:"service_id"`
	Status      string          `json:"status"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	OccurredAt  time.Time       `json:"occurred_at"`
}

// BookingCompletedEvent additionally carries the provider's settled amount;
// the review subsystem and notifications hang off this event.
type BookingCompletedEvent struct {
	BookingID      uuid.UUID       `json:"booking_id"`
	CustomerID     uuid.UUID       `json:"customer_id"`
	ProviderID     uuid.UUID       `json:"provider_id"`
	ProviderAmount decimal.Decimal `json:"provider_amount"`
	OccurredAt     time.Time       `json:"occurred_at"`
}

// PaymentEvent is the payload for payment lifecycle events.
type PaymentEvent struct {
	PaymentID        uuid.UUID       `json:"payment_id"`
	BookingID        uuid.UUID       `json:"booking_id"`
	CustomerID       uuid.UUID       `json:"customer_id"`
	ProviderID       uuid.UUID       `json:"provider_id"`
	Amount           decimal.Decimal `json:"amount"`
	Currency         string          `json:"currency"`
	GatewayPaymentID string          `json:"gateway_payment_id,omitempty"`
	RefundID         string          `json:"refund_id,omitempty"`
	Reason           string          `json:"reason,omitempty"`
	OccurredAt       time.Time       `json:"occurred_at"`
}

// ServiceUpsertedEvent mirrors a catalog entry create or update.
type ServiceUpsertedEvent struct {
	ServiceID  uuid.UUID       `json:"service_id"`
	ProviderID uuid.UUID       `json:"provider_id"`
	Title      string          `json:"title"`
	Price      decimal.Decimal `json:"price"`
	Active     bool            `json:"active"`
	OccurredAt time.Time       `json:"occurred_at"`
}

// ServiceDeletedEvent mirrors a catalog entry removal.
type ServiceDeletedEvent struct {
	ServiceID  uuid.UUID `json:"service_id"`
	OccurredAt time.Time `json:"occurred_at"`
}
