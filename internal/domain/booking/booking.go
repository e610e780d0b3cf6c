package booking

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/servilink/service-booking/internal/domain"
	"github.com/servilink/service-booking/internal/domain/pricing"
)

// Status represents the lifecycle state of a booking.
type Status string

const (
	StatusPending   Status = "pending"
	StatusAccepted  Status = "accepted"
	StatusRejected  Status = "rejected"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// IsTerminal reports whether no further transitions are legal from s.
func (s Status) IsTerminal() bool {
	return s == StatusRejected || s == StatusCompleted || s == StatusCancelled
}

// Booking is the aggregate root for a customer's request to receive a
// service. References and schedule fields are immutable after creation; the
// amounts are computed exactly once at creation and never recomputed.
type Booking struct {
	id            uuid.UUID
	customerID    uuid.UUID
	serviceID     uuid.UUID
	providerID    uuid.UUID
	scheduledDate time.Time
	timeSlot      string
	address       string
	notes         string
	serviceAmount decimal.Decimal
	platformFee   decimal.Decimal
	totalAmount   decimal.Decimal
	status        Status
	version       int64
	createdAt     time.Time
	updatedAt     time.Time
}

// NewBooking creates a pending booking with its amounts fixed from the quote.
func NewBooking(customerID, serviceID, providerID uuid.UUID, scheduledDate time.Time, timeSlot, address, notes string, quote pricing.Quote) *Booking {
	now := time.Now().UTC()
	return &Booking{
		id:            uuid.New(),
		customerID:    customerID,
		serviceID:     serviceID,
		providerID:    providerID,
		scheduledDate: scheduledDate,
		timeSlot:      timeSlot,
		address:       address,
		notes:         notes,
		serviceAmount: quote.ServiceAmount,
		platformFee:   quote.PlatformFee,
		totalAmount:   quote.TotalAmount,
		status:        StatusPending,
		version:       1,
		createdAt:     now,
		updatedAt:     now,
	}
}

// --- Getters ---

func (b *Booking) ID() uuid.UUID                 { return b.id }
func (b *Booking) CustomerID() uuid.UUID         { return b.customerID }
func (b *Booking) ServiceID() uuid.UUID          { return b.serviceID }
func (b *Booking) ProviderID() uuid.UUID         { return b.providerID }
func (b *Booking) ScheduledDate() time.Time      { return b.scheduledDate }
func (b *Booking) TimeSlot() string              { return b.timeSlot }
func (b *Booking) Address() string               { return b.address }
func (b *Booking) Notes() string                 { return b.notes }
func (b *Booking) ServiceAmount() decimal.Decimal { return b.serviceAmount }
func (b *Booking) PlatformFee() decimal.Decimal  { return b.platformFee }
func (b *Booking) TotalAmount() decimal.Decimal  { return b.totalAmount }
func (b *Booking) Status() Status                { return b.status }
func (b *Booking) Version() int64                { return b.version }
func (b *Booking) CreatedAt() time.Time          { return b.createdAt }
func (b *Booking) UpdatedAt() time.Time          { return b.updatedAt }

// --- State transitions ---
//
// pending  -> accepted | rejected | cancelled
// accepted -> completed | cancelled
// rejected, completed, cancelled are terminal.
//
// Illegal requests return ErrInvalidTransition and leave the aggregate
// untouched, so accept/reject/cancel/complete are naturally idempotent
// against retries.

// Accept moves the booking to accepted, either on verified payment or on an
// explicit provider accept (pay-later path).
func (b *Booking) Accept() error {
	if b.status != StatusPending {
		return domain.NewInvalidTransitionError(string(b.status), string(StatusAccepted))
	}
	b.setStatus(StatusAccepted)
	return nil
}

// Reject records an explicit provider rejection of a pending booking. Once a
// booking is accepted (paid or not) rejection is no longer legal; the
// remediation for a paid booking is a refund.
func (b *Booking) Reject() error {
	if b.status != StatusPending {
		return domain.NewInvalidTransitionError(string(b.status), string(StatusRejected))
	}
	b.setStatus(StatusRejected)
	return nil
}

// Cancel moves the booking to cancelled. Legal from pending (customer cancel)
// and from accepted (refund flow).
func (b *Booking) Cancel() error {
	if b.status != StatusPending && b.status != StatusAccepted {
		return domain.NewInvalidTransitionError(string(b.status), string(StatusCancelled))
	}
	b.setStatus(StatusCancelled)
	return nil
}

// Complete marks the work done. Only legal from accepted; in particular a
// booking can never jump from pending straight to completed.
func (b *Booking) Complete() error {
	if b.status != StatusAccepted {
		return domain.NewInvalidTransitionError(string(b.status), string(StatusCompleted))
	}
	b.setStatus(StatusCompleted)
	return nil
}

func (b *Booking) setStatus(s Status) {
	b.status = s
	b.updatedAt = time.Now().UTC()
}

// IncrementVersion bumps the version for optimistic locking.
func (b *Booking) IncrementVersion() {
	b.version++
	b.updatedAt = time.Now().UTC()
}

// Reconstitute rebuilds a Booking from persisted data.
func Reconstitute(
	id, customerID, serviceID, providerID uuid.UUID,
	scheduledDate time.Time,
	timeSlot, address, notes string,
	serviceAmount, platformFee, totalAmount decimal.Decimal,
	status Status,
	version int64,
	createdAt, updatedAt time.Time,
) *Booking {
	return &Booking{
		id:            id,
		customerID:    customerID,
		serviceID:     serviceID,
		providerID:    providerID,
		scheduledDate: scheduledDate,
		timeSlot:      timeSlot,
		address:       address,
		notes:         notes,
		serviceAmount: serviceAmount,
		platformFee:   platformFee,
		totalAmount:   totalAmount,
		status:        status,
		version:       version,
		createdAt:     createdAt,
		updatedAt:     updatedAt,
	}
}
