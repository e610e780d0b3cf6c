package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors classifying every failure the service can surface.
// The response layer maps these to HTTP status codes.
var (
	ErrInvalidInput       = errors.New("invalid input")
	ErrNotFound           = errors.New("not found")
	ErrForbidden          = errors.New("forbidden")
	ErrInvalidTransition  = errors.New("invalid transition")
	ErrConflict           = errors.New("conflict")
	ErrAlreadyPaid        = errors.New("already paid")
	ErrAlreadyRefunded    = errors.New("already refunded")
	ErrNotCompleted       = errors.New("not completed")
	ErrInvalidSignature   = errors.New("invalid signature")
	ErrGatewayUnavailable = errors.New("gateway unavailable")
	ErrGatewayRejected    = errors.New("gateway rejected")
	ErrRefundRejected     = errors.New("refund rejected")
)

// DomainError pairs a sentinel with a human-readable message.
type DomainError struct {
	Err     error
	Message string
}

func (e *DomainError) Error() string { return e.Message }

func (e *DomainError) Unwrap() error { return e.Err }

// NewInvalidInputError reports malformed amounts, percentages or fields.
func NewInvalidInputError(msg string) *DomainError {
	return &DomainError{Err: ErrInvalidInput, Message: msg}
}

// NewNotFoundError reports a missing entity by type and identifier.
func NewNotFoundError(entity, id string) *DomainError {
	return &DomainError{Err: ErrNotFound, Message: fmt.Sprintf("%s %s not found", entity, id)}
}

// NewForbiddenError reports an actor/ownership mismatch.
func NewForbiddenError(msg string) *DomainError {
	return &DomainError{Err: ErrForbidden, Message: msg}
}

// NewInvalidTransitionError reports an illegal state change. The request is
// rejected without mutating anything, which keeps retries harmless.
func NewInvalidTransitionError(from, to string) *DomainError {
	return &DomainError{Err: ErrInvalidTransition, Message: fmt.Sprintf("cannot transition from %s to %s", from, to)}
}

// NewConflictError reports a concurrent-modification conflict.
func NewConflictError(msg string) *DomainError {
	return &DomainError{Err: ErrConflict, Message: msg}
}

// NewAlreadyPaidError reports an order request for a booking whose payment
// has already completed.
func NewAlreadyPaidError(bookingID string) *DomainError {
	return &DomainError{Err: ErrAlreadyPaid, Message: fmt.Sprintf("booking %s is already paid", bookingID)}
}

// NewAlreadyRefundedError reports a refund request for an already refunded payment.
func NewAlreadyRefundedError(paymentID string) *DomainError {
	return &DomainError{Err: ErrAlreadyRefunded, Message: fmt.Sprintf("payment %s is already refunded", paymentID)}
}

// NewNotCompletedError reports a refund request for a payment that never completed.
func NewNotCompletedError(paymentID string) *DomainError {
	return &DomainError{Err: ErrNotCompleted, Message: fmt.Sprintf("payment %s is not in completed state", paymentID)}
}

// NewInvalidSignatureError reports a gateway callback whose signature did not
// verify. This is the sole external trust boundary and must never be
// converted into a success path.
func NewInvalidSignatureError(orderID string) *DomainError {
	return &DomainError{Err: ErrInvalidSignature, Message: fmt.Sprintf("signature verification failed for order %s", orderID)}
}

// NewGatewayUnavailableError reports a transient gateway failure. The caller
// may retry; no local state has been mutated.
func NewGatewayUnavailableError(op string, cause error) *DomainError {
	return &DomainError{Err: ErrGatewayUnavailable, Message: fmt.Sprintf("gateway %s failed: %v", op, cause)}
}

// NewGatewayRejectedError reports a permanent gateway-side denial.
func NewGatewayRejectedError(op, detail string) *DomainError {
	return &DomainError{Err: ErrGatewayRejected, Message: fmt.Sprintf("gateway rejected %s: %s", op, detail)}
}

// NewRefundRejectedError reports a permanent refund denial by the gateway.
func NewRefundRejectedError(detail string) *DomainError {
	return &DomainError{Err: ErrRefundRejected, Message: fmt.Sprintf("refund rejected: %s", detail)}
}
