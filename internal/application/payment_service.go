package application

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/servilink/service-booking/internal/adapter"
	"github.com/servilink/service-booking/internal/domain"
	bookingDomain "github.com/servilink/service-booking/internal/domain/booking"
	paymentDomain "github.com/servilink/service-booking/internal/domain/payment"
	"github.com/servilink/service-booking/internal/domain/pricing"
	"github.com/servilink/service-booking/internal/events"
	"github.com/servilink/service-booking/internal/platform/auth"
	"github.com/servilink/service-booking/internal/platform/kafka"
	"github.com/servilink/service-booking/internal/platform/lock"
	"github.com/servilink/service-booking/internal/saga"
)

// CreateOrderRequest is the DTO for creating a gateway order.
type CreateOrderRequest struct {
	BookingID uuid.UUID `json:"booking_id" binding:"required"`
}

// VerifyPaymentRequest carries the gateway callback fields the checkout page
// posts back after the customer pays.
type VerifyPaymentRequest struct {
	GatewayOrderID   string `json:"gateway_order_id" binding:"required"`
	GatewayPaymentID string `json:"gateway_payment_id" binding:"required"`
	Signature        string `json:"signature" binding:"required"`
}

// RefundRequest is the DTO for initiating a refund.
type RefundRequest struct {
	Reason string `json:"reason" binding:"required"`
}

// OrderDTO is returned to the checkout page to open the gateway widget.
type OrderDTO struct {
	GatewayOrderID string `json:"gateway_order_id"`
	Amount         int64  `json:"amount"`
	Currency       string `json:"currency"`
	KeyID          string `json:"key_id"`
}

// PaymentDTO is the API response DTO for payment data.
type PaymentDTO struct {
	ID               uuid.UUID       `json:"id"`
	BookingID        uuid.UUID       `json:"booking_id"`
	CustomerID       uuid.UUID       `json:"customer_id"`
	ProviderID       uuid.UUID       `json:"provider_id"`
	Amount           decimal.Decimal `json:"amount"`
	PlatformFee      decimal.Decimal `json:"platform_fee"`
	ProviderAmount   decimal.Decimal `json:"provider_amount"`
	Currency         string          `json:"currency"`
	GatewayOrderID   string          `json:"gateway_order_id,omitempty"`
	GatewayPaymentID string          `json:"gateway_payment_id,omitempty"`
	RefundID         string          `json:"refund_id,omitempty"`
	RefundReason     string          `json:"refund_reason,omitempty"`
	Status           string          `json:"status"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// VerifyResultDTO carries the verified payment plus an explicit flag for the
// duplicate-callback no-op case.
type VerifyResultDTO struct {
	Payment         PaymentDTO `json:"payment"`
	AlreadyVerified bool       `json:"already_verified"`
}

// PaymentStatsDTO is the admin revenue summary.
type PaymentStatsDTO struct {
	TotalPlatformFees decimal.Decimal  `json:"total_platform_fees"`
	CountByStatus     map[string]int64 `json:"count_by_status"`
}

// PaymentService is the application service that orchestrates the payment
// use cases: order creation, callback verification and refunds.
type PaymentService struct {
	payments paymentDomain.Repository
	bookings bookingDomain.Repository
	gateway  adapter.GatewayAdapter
	sagaSvc  *saga.PaymentSagaService
	producer kafka.Publisher
	locks    *lock.KeyedMutex
	keyID    string
	logger   *zap.Logger
}

// NewPaymentService creates a new PaymentService.
func NewPaymentService(
	payments paymentDomain.Repository,
	bookings bookingDomain.Repository,
	gateway adapter.GatewayAdapter,
	sagaSvc *saga.PaymentSagaService,
	producer kafka.Publisher,
	locks *lock.KeyedMutex,
	keyID string,
	logger *zap.Logger,
) *PaymentService {
	return &PaymentService{
		payments: payments,
		bookings: bookings,
		gateway:  gateway,
		sagaSvc:  sagaSvc,
		producer: producer,
		locks:    locks,
		keyID:    keyID,
		logger:   logger,
	}
}

// CreateOrder creates a gateway order for the customer's pending booking and
// returns what the checkout page needs. Retrying before the payment is
// verified reissues the order on the same payment record.
func (s *PaymentService) CreateOrder(ctx context.Context, customerID, bookingID uuid.UUID) (*OrderDTO, error) {
	b, err := s.bookings.FindByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if b.CustomerID() != customerID {
		return nil, domain.NewForbiddenError("booking belongs to another customer")
	}
	if b.Status() != bookingDomain.StatusPending {
		// A verified payment accepts the booking, so distinguish "already
		// paid" from the genuinely unpayable states.
		p, err := s.payments.FindByBookingID(ctx, bookingID)
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
		if err == nil && p.Status() == paymentDomain.StatusCompleted {
			return nil, domain.NewAlreadyPaidError(bookingID.String())
		}
		return nil, domain.NewInvalidTransitionError(string(b.Status()), "payment")
	}

	s.logger.Info("creating gateway order",
		zap.String("booking_id", bookingID.String()),
		zap.String("total_amount", b.TotalAmount().String()),
	)

	p, err := s.sagaSvc.CreateOrderSaga(ctx, b)
	if err != nil {
		s.logger.Error("failed to create gateway order", zap.Error(err))
		return nil, err
	}

	return &OrderDTO{
		GatewayOrderID: p.GatewayOrderID(),
		Amount:         pricing.MinorUnits(p.Amount()),
		Currency:       p.Currency(),
		KeyID:          s.keyID,
	}, nil
}

// VerifyPayment checks the callback signature and, on the first valid
// callback, completes the payment and accepts the booking. A duplicate valid
// callback is an explicit no-op success; an invalid signature mutates
// nothing.
func (s *PaymentService) VerifyPayment(ctx context.Context, customerID uuid.UUID, req VerifyPaymentRequest) (*VerifyResultDTO, error) {
	// Authenticity first. Nothing is looked up or written on a forged
	// callback beyond this log line.
	if !s.gateway.VerifySignature(req.GatewayOrderID, req.GatewayPaymentID, req.Signature) {
		s.logger.Warn("payment callback signature mismatch",
			zap.String("gateway_order_id", req.GatewayOrderID),
			zap.String("gateway_payment_id", req.GatewayPaymentID),
		)
		return nil, domain.NewInvalidSignatureError(req.GatewayOrderID)
	}

	p, err := s.payments.FindByGatewayOrderID(ctx, req.GatewayOrderID)
	if err != nil {
		return nil, err
	}
	if p.CustomerID() != customerID {
		return nil, domain.NewForbiddenError("payment belongs to another customer")
	}

	unlock := s.locks.Lock(p.BookingID())
	defer unlock()

	// Reload under the lock; a concurrent duplicate callback may have won.
	p, err = s.payments.FindByGatewayOrderID(ctx, req.GatewayOrderID)
	if err != nil {
		return nil, err
	}

	if p.Status() == paymentDomain.StatusCompleted && p.GatewayPaymentID() == req.GatewayPaymentID {
		// A prior attempt may have completed the payment and then failed
		// before accepting the booking; re-drive the acceptance so the
		// retry heals instead of stranding the booking in pending.
		if err := s.acceptBookingIfPending(ctx, p.BookingID()); err != nil {
			return nil, err
		}
		s.logger.Info("payment already verified",
			zap.String("gateway_order_id", req.GatewayOrderID),
		)
		return &VerifyResultDTO{Payment: toPaymentDTO(p), AlreadyVerified: true}, nil
	}

	if err := p.MarkCompleted(req.GatewayPaymentID, req.Signature); err != nil {
		return nil, err
	}
	p.IncrementVersion()
	if err := s.payments.Update(ctx, p); err != nil {
		return nil, err
	}

	if err := s.acceptBookingIfPending(ctx, p.BookingID()); err != nil {
		return nil, err
	}

	s.logger.Info("payment verified",
		zap.String("payment_id", p.ID().String()),
		zap.String("booking_id", p.BookingID().String()),
		zap.String("gateway_payment_id", req.GatewayPaymentID),
	)

	s.publishPaymentCompleted(ctx, p)

	return &VerifyResultDTO{Payment: toPaymentDTO(p)}, nil
}

// acceptBookingIfPending drives the pending->accepted transition a verified
// payment implies. Callers hold the per-booking lock.
func (s *PaymentService) acceptBookingIfPending(ctx context.Context, bookingID uuid.UUID) error {
	b, err := s.bookings.FindByID(ctx, bookingID)
	if err != nil {
		return err
	}
	if b.Status() != bookingDomain.StatusPending {
		return nil
	}
	if err := b.Accept(); err != nil {
		return err
	}
	b.IncrementVersion()
	if err := s.bookings.Update(ctx, b); err != nil {
		return err
	}
	s.publishBookingAccepted(ctx, b)
	return nil
}

// GetPaymentByBooking retrieves the booking's payment for a party to the
// booking or an admin.
func (s *PaymentService) GetPaymentByBooking(ctx context.Context, userID uuid.UUID, role string, bookingID uuid.UUID) (*PaymentDTO, error) {
	p, err := s.payments.FindByBookingID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if role != auth.RoleAdmin && p.CustomerID() != userID && p.ProviderID() != userID {
		return nil, domain.NewForbiddenError("not a party to this payment")
	}
	dto := toPaymentDTO(p)
	return &dto, nil
}

// InitiateRefund refunds a completed payment in full and cancels the
// booking. All state checks happen before the gateway is contacted.
func (s *PaymentService) InitiateRefund(ctx context.Context, paymentID uuid.UUID, reason string) (*PaymentDTO, error) {
	p, err := s.payments.FindByID(ctx, paymentID)
	if err != nil {
		return nil, err
	}

	switch p.Status() {
	case paymentDomain.StatusRefunded:
		return nil, domain.NewAlreadyRefundedError(p.ID().String())
	case paymentDomain.StatusCompleted:
		// fall through to the gateway
	default:
		return nil, domain.NewNotCompletedError(p.ID().String())
	}
	if p.GatewayPaymentID() == "" {
		return nil, domain.NewRefundRejectedError("payment was settled offline, nothing to refund at the gateway")
	}

	s.logger.Info("initiating refund",
		zap.String("payment_id", p.ID().String()),
		zap.String("booking_id", p.BookingID().String()),
		zap.String("reason", reason),
	)

	if err := s.sagaSvc.RefundSaga(ctx, p, reason); err != nil {
		s.logger.Error("refund failed", zap.Error(err))
		return nil, err
	}

	// Reload after the saga completes.
	p, err = s.payments.FindByID(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	dto := toPaymentDTO(p)
	return &dto, nil
}

// ListAllPayments retrieves all payments with pagination (admin).
func (s *PaymentService) ListAllPayments(ctx context.Context, page, limit int) ([]PaymentDTO, int64, error) {
	list, total, err := s.payments.ListAll(ctx, page, limit)
	if err != nil {
		return nil, 0, err
	}
	dtos := make([]PaymentDTO, 0, len(list))
	for _, p := range list {
		dtos = append(dtos, toPaymentDTO(p))
	}
	return dtos, total, nil
}

// GetPaymentStats returns platform fee revenue and payment counts by status
// (admin).
func (s *PaymentService) GetPaymentStats(ctx context.Context) (*PaymentStatsDTO, error) {
	totalFees, counts, err := s.payments.GetRevenueStats(ctx)
	if err != nil {
		return nil, err
	}
	return &PaymentStatsDTO{
		TotalPlatformFees: totalFees,
		CountByStatus:     counts,
	}, nil
}

func (s *PaymentService) publishPaymentCompleted(ctx context.Context, p *paymentDomain.Payment) {
	event := events.PaymentEvent{
		PaymentID:        p.ID(),
		BookingID:        p.BookingID(),
		CustomerID:       p.CustomerID(),
		ProviderID:       p.ProviderID(),
		Amount:           p.Amount(),
		Currency:         p.Currency(),
		GatewayPaymentID: p.GatewayPaymentID(),
		OccurredAt:       time.Now().UTC(),
	}
	ce, err := kafka.NewCloudEvent(events.EventSource, events.PaymentCompleted, event)
	if err != nil {
		s.logger.Error("failed to build payment completed event", zap.Error(err))
		return
	}
	if err := s.producer.PublishEvent(ctx, events.TopicPaymentEvents, ce); err != nil {
		s.logger.Error("failed to publish payment completed event", zap.Error(err))
	}
}

func (s *PaymentService) publishBookingAccepted(ctx context.Context, b *bookingDomain.Booking) {
	event := events.BookingEvent{
		BookingID:   b.ID(),
		CustomerID:  b.CustomerID(),
		ProviderID:  b.ProviderID(),
		ServiceID:   b.ServiceID(),
		Status:      string(b.Status()),
		TotalAmount: b.TotalAmount(),
		OccurredAt:  time.Now().UTC(),
	}
	ce, err := kafka.NewCloudEvent(events.EventSource, events.BookingAccepted, event)
	if err != nil {
		s.logger.Error("failed to build booking accepted event", zap.Error(err))
		return
	}
	if err := s.producer.PublishEvent(ctx, events.TopicBookingEvents, ce); err != nil {
		s.logger.Error("failed to publish booking accepted event", zap.Error(err))
	}
}

func toPaymentDTO(p *paymentDomain.Payment) PaymentDTO {
	return PaymentDTO{
		ID:               p.ID(),
		BookingID:        p.BookingID(),
		CustomerID:       p.CustomerID(),
		ProviderID:       p.ProviderID(),
		Amount:           p.Amount(),
		PlatformFee:      p.PlatformFee(),
		ProviderAmount:   p.ProviderAmount(),
		Currency:         p.Currency(),
		GatewayOrderID:   p.GatewayOrderID(),
		GatewayPaymentID: p.GatewayPaymentID(),
		RefundID:         p.RefundID(),
		RefundReason:     p.RefundReason(),
		Status:           string(p.Status()),
		CreatedAt:        p.CreatedAt(),
		UpdatedAt:        p.UpdatedAt(),
	}
}
