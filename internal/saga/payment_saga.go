package saga

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/servilink/service-booking/internal/adapter"
	"github.com/servilink/service-booking/internal/domain"
	bookingDomain "github.com/servilink/service-booking/internal/domain/booking"
	paymentDomain "github.com/servilink/service-booking/internal/domain/payment"
	"github.com/servilink/service-booking/internal/domain/pricing"
	"github.com/servilink/service-booking/internal/events"
	"github.com/servilink/service-booking/internal/platform/kafka"
	"github.com/servilink/service-booking/internal/platform/lock"
)

// PaymentSagaService orchestrates the multi-step gateway workflows: creating
// an order and issuing a refund. Gateway calls run before any local mutation
// and outside the per-booking lock, so a transient gateway failure leaves no
// partial state and every operation is safe to retry.
type PaymentSagaService struct {
	payments paymentDomain.Repository
	bookings bookingDomain.Repository
	gateway  adapter.GatewayAdapter
	producer kafka.Publisher
	locks    *lock.KeyedMutex
	currency string
	logger   *zap.Logger
}

// NewPaymentSagaService creates a new PaymentSagaService.
func NewPaymentSagaService(
	payments paymentDomain.Repository,
	bookings bookingDomain.Repository,
	gateway adapter.GatewayAdapter,
	producer kafka.Publisher,
	locks *lock.KeyedMutex,
	currency string,
	logger *zap.Logger,
) *PaymentSagaService {
	return &PaymentSagaService{
		payments: payments,
		bookings: bookings,
		gateway:  gateway,
		producer: producer,
		locks:    locks,
		currency: currency,
		logger:   logger,
	}
}

// receiptRef derives the gateway receipt reference from the booking id.
func receiptRef(b *bookingDomain.Booking) string {
	return "rcpt_" + strings.ReplaceAll(b.ID().String(), "-", "")
}

// CreateOrderSaga creates a gateway order for the booking's total amount and
// upserts the payment record: a retry before completion reuses the existing
// record, pointed at the new order.
func (s *PaymentSagaService) CreateOrderSaga(ctx context.Context, b *bookingDomain.Booking) (*paymentDomain.Payment, error) {
	quote := pricing.Quote{
		ServiceAmount: b.ServiceAmount(),
		PlatformFee:   b.PlatformFee(),
		TotalAmount:   b.TotalAmount(),
	}

	var (
		gatewayOrderID string
		result         *paymentDomain.Payment
	)

	sg := New("create_order", s.logger)

	// Step 1: create the gateway order. No compensation: an unpaid gateway
	// order simply expires.
	sg.AddStep(Step{
		Name: "create_gateway_order",
		Execute: func(ctx context.Context) error {
			var err error
			gatewayOrderID, err = s.gateway.CreateOrder(ctx,
				pricing.MinorUnits(b.TotalAmount()), s.currency, receiptRef(b))
			return err
		},
	})

	// Step 2: upsert the payment record under the per-booking lock.
	sg.AddStep(Step{
		Name: "upsert_payment",
		Execute: func(ctx context.Context) error {
			unlock := s.locks.Lock(b.ID())
			defer unlock()

			existing, err := s.payments.FindByBookingID(ctx, b.ID())
			if err != nil {
				if !errors.Is(err, domain.ErrNotFound) {
					return err
				}
				p := paymentDomain.NewPayment(b.ID(), b.CustomerID(), b.ProviderID(), quote, s.currency, gatewayOrderID)
				if err := s.payments.Save(ctx, p); err != nil {
					return err
				}
				result = p
				return nil
			}

			if existing.Status() == paymentDomain.StatusCompleted {
				return domain.NewAlreadyPaidError(b.ID().String())
			}
			if err := existing.Reissue(gatewayOrderID, quote); err != nil {
				return err
			}
			existing.IncrementVersion()
			if err := s.payments.Update(ctx, existing); err != nil {
				return err
			}
			result = existing
			return nil
		},
	})

	if err := sg.Execute(ctx); err != nil {
		return nil, unwrapDomainError(err)
	}
	return result, nil
}

// RefundSaga issues a full gateway refund for a completed payment, then
// marks it refunded and cancels the booking. A gateway failure aborts before
// any mutation; the gateway deduplicates refunds by payment id, so retries
// are safe.
func (s *PaymentSagaService) RefundSaga(ctx context.Context, p *paymentDomain.Payment, reason string) error {
	var refundID string

	sg := New("refund_payment", s.logger)

	// Step 1: gateway refund of the full original amount.
	sg.AddStep(Step{
		Name: "gateway_refund",
		Execute: func(ctx context.Context) error {
			var err error
			refundID, err = s.gateway.Refund(ctx,
				p.GatewayPaymentID(), pricing.MinorUnits(p.Amount()), reason)
			return err
		},
	})

	// Step 2: mark refunded and cancel the booking under the lock.
	sg.AddStep(Step{
		Name: "mark_refunded",
		Execute: func(ctx context.Context) error {
			unlock := s.locks.Lock(p.BookingID())
			defer unlock()

			if err := p.MarkRefunded(refundID, reason); err != nil {
				return err
			}
			p.IncrementVersion()
			if err := s.payments.Update(ctx, p); err != nil {
				return err
			}

			b, err := s.bookings.FindByID(ctx, p.BookingID())
			if err != nil {
				return err
			}
			if err := b.Cancel(); err != nil {
				return err
			}
			b.IncrementVersion()
			return s.bookings.Update(ctx, b)
		},
	})

	// Step 3: notify downstream consumers.
	sg.AddStep(Step{
		Name: "publish_payment_refunded",
		Execute: func(ctx context.Context) error {
			event := events.PaymentEvent{
				PaymentID:  p.ID(),
				BookingID:  p.BookingID(),
				CustomerID: p.CustomerID(),
				ProviderID: p.ProviderID(),
				Amount:     p.Amount(),
				Currency:   p.Currency(),
				RefundID:   refundID,
				Reason:     reason,
				OccurredAt: time.Now().UTC(),
			}
			ce, err := kafka.NewCloudEvent(events.EventSource, events.PaymentRefunded, event)
			if err != nil {
				return err
			}
			if err := s.producer.PublishEvent(ctx, events.TopicPaymentEvents, ce); err != nil {
				// The refund is already durable; losing the event must not
				// fail the operation.
				s.logger.Error("failed to publish payment refunded event", zap.Error(err))
			}
			return nil
		},
	})

	if err := sg.Execute(ctx); err != nil {
		return unwrapDomainError(err)
	}
	return nil
}

// unwrapDomainError strips the saga wrapping so callers and the response
// layer see the original domain error.
func unwrapDomainError(err error) error {
	var de *domain.DomainError
	if errors.As(err, &de) {
		return de
	}
	return err
}
