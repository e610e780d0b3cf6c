package payment

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/servilink/service-booking/internal/domain"
	"github.com/servilink/service-booking/internal/domain/pricing"
)

// Status represents the state of a payment attempt.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusRefunded  Status = "refunded"
	StatusFailed    Status = "failed"
)

// Payment is the aggregate root for one attempt to settle a booking through
// the external gateway. At most one non-superseded payment exists per
// booking; retries before completion reuse the same record.
type Payment struct {
	id               uuid.UUID
	bookingID        uuid.UUID
	customerID       uuid.UUID
	providerID       uuid.UUID
	amount           decimal.Decimal // equals the booking's total amount
	platformFee      decimal.Decimal
	providerAmount   decimal.Decimal // equals the booking's service amount
	currency         string
	gatewayOrderID   string
	gatewayPaymentID string // set only after successful verification
	gatewaySignature string // set only after successful verification
	refundID         string // set only after a refund
	refundReason     string
	status           Status
	version          int64
	createdAt        time.Time
	updatedAt        time.Time
}

// NewPayment creates a pending payment for a freshly created gateway order.
func NewPayment(bookingID, customerID, providerID uuid.UUID, quote pricing.Quote, currency, gatewayOrderID string) *Payment {
	now := time.Now().UTC()
	return &Payment{
		id:             uuid.New(),
		bookingID:      bookingID,
		customerID:     customerID,
		providerID:     providerID,
		amount:         quote.TotalAmount,
		platformFee:    quote.PlatformFee,
		providerAmount: quote.ServiceAmount,
		currency:       currency,
		gatewayOrderID: gatewayOrderID,
		status:         StatusPending,
		version:        1,
		createdAt:      now,
		updatedAt:      now,
	}
}

// NewSettlementPayment creates an already-completed payment with no gateway
// correlation, used when a provider completes a booking that was accepted
// pre-payment (pay-on-completion path).
func NewSettlementPayment(bookingID, customerID, providerID uuid.UUID, quote pricing.Quote, currency string) *Payment {
	p := NewPayment(bookingID, customerID, providerID, quote, currency, "")
	p.status = StatusCompleted
	return p
}

// --- Getters ---

func (p *Payment) ID() uuid.UUID                   { return p.id }
func (p *Payment) BookingID() uuid.UUID            { return p.bookingID }
func (p *Payment) CustomerID() uuid.UUID           { return p.customerID }
func (p *Payment) ProviderID() uuid.UUID           { return p.providerID }
func (p *Payment) Amount() decimal.Decimal         { return p.amount }
func (p *Payment) PlatformFee() decimal.Decimal    { return p.platformFee }
func (p *Payment) ProviderAmount() decimal.Decimal { return p.providerAmount }
func (p *Payment) Currency() string                { return p.currency }
func (p *Payment) GatewayOrderID() string          { return p.gatewayOrderID }
func (p *Payment) GatewayPaymentID() string        { return p.gatewayPaymentID }
func (p *Payment) GatewaySignature() string        { return p.gatewaySignature }
func (p *Payment) RefundID() string                { return p.refundID }
func (p *Payment) RefundReason() string            { return p.refundReason }
func (p *Payment) Status() Status                  { return p.status }
func (p *Payment) Version() int64                  { return p.version }
func (p *Payment) CreatedAt() time.Time            { return p.createdAt }
func (p *Payment) UpdatedAt() time.Time            { return p.updatedAt }

// --- Behavior / state transitions ---

// Reissue points an existing non-terminal payment at a new gateway order
// when the customer retries before any verification succeeded.
func (p *Payment) Reissue(gatewayOrderID string, quote pricing.Quote) error {
	if p.status == StatusCompleted || p.status == StatusRefunded {
		return domain.NewInvalidTransitionError(string(p.status), string(StatusPending))
	}
	p.gatewayOrderID = gatewayOrderID
	p.gatewayPaymentID = ""
	p.gatewaySignature = ""
	p.amount = quote.TotalAmount
	p.platformFee = quote.PlatformFee
	p.providerAmount = quote.ServiceAmount
	p.status = StatusPending
	p.updatedAt = time.Now().UTC()
	return nil
}

// MarkCompleted records a verified gateway payment. Only legal from pending;
// callers handle the already-completed case as an explicit no-op success.
func (p *Payment) MarkCompleted(gatewayPaymentID, signature string) error {
	if p.status != StatusPending {
		return domain.NewInvalidTransitionError(string(p.status), string(StatusCompleted))
	}
	p.gatewayPaymentID = gatewayPaymentID
	p.gatewaySignature = signature
	p.status = StatusCompleted
	p.updatedAt = time.Now().UTC()
	return nil
}

// Settle completes a pending payment without gateway correlation, for the
// pay-on-completion path where no online payment ever happened.
func (p *Payment) Settle() error {
	if p.status != StatusPending {
		return domain.NewInvalidTransitionError(string(p.status), string(StatusCompleted))
	}
	p.gatewayOrderID = ""
	p.status = StatusCompleted
	p.updatedAt = time.Now().UTC()
	return nil
}

// MarkRefunded records a full gateway refund. Only legal from completed.
func (p *Payment) MarkRefunded(refundID, reason string) error {
	if p.status != StatusCompleted {
		return domain.NewInvalidTransitionError(string(p.status), string(StatusRefunded))
	}
	p.refundID = refundID
	p.refundReason = reason
	p.status = StatusRefunded
	p.updatedAt = time.Now().UTC()
	return nil
}

// Fail marks a non-terminal payment as failed.
func (p *Payment) Fail(reason string) error {
	if p.status == StatusCompleted || p.status == StatusRefunded || p.status == StatusFailed {
		return domain.NewInvalidTransitionError(string(p.status), string(StatusFailed))
	}
	p.refundReason = reason
	p.status = StatusFailed
	p.updatedAt = time.Now().UTC()
	return nil
}

// IncrementVersion bumps the version for optimistic locking.
func (p *Payment) IncrementVersion() {
	p.version++
	p.updatedAt = time.Now().UTC()
}

// Reconstitute rebuilds a Payment from persisted data.
func Reconstitute(
	id, bookingID, customerID, providerID uuid.UUID,
	amount, platformFee, providerAmount decimal.Decimal,
	currency, gatewayOrderID, gatewayPaymentID, gatewaySignature, refundID, refundReason string,
	status Status,
	version int64,
	createdAt, updatedAt time.Time,
) *Payment {
	return &Payment{
		id:               id,
		bookingID:        bookingID,
		customerID:       customerID,
		providerID:       providerID,
		amount:           amount,
		platformFee:      platformFee,
		providerAmount:   providerAmount,
		currency:         currency,
		gatewayOrderID:   gatewayOrderID,
		gatewayPaymentID: gatewayPaymentID,
		gatewaySignature: gatewaySignature,
		refundID:         refundID,
		refundReason:     refundReason,
		status:           status,
		version:          version,
		createdAt:        createdAt,
		updatedAt:        updatedAt,
	}
}
