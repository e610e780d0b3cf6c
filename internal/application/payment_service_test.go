package application

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/servilink/service-booking/internal/domain"
	"github.com/servilink/service-booking/internal/events"
	"github.com/servilink/service-booking/internal/platform/auth"
	"github.com/servilink/service-booking/internal/platform/lock"
	"github.com/servilink/service-booking/internal/saga"
)

func TestCreateOrder(t *testing.T) {
	stack := newTestStack(t)
	ctx := context.Background()
	b := stack.createBooking(t)

	order, err := stack.paymentSvc.CreateOrder(ctx, stack.customerID, b.ID)
	require.NoError(t, err)

	assert.NotEmpty(t, order.GatewayOrderID)
	assert.Equal(t, int64(11000), order.Amount, "total amount in minor units")
	assert.Equal(t, "INR", order.Currency)
	assert.Equal(t, "key_id", order.KeyID)

	p, err := stack.payments.FindByBookingID(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, "pending", string(p.Status()))
	assert.Equal(t, order.GatewayOrderID, p.GatewayOrderID())
}

func TestCreateOrder_WrongCustomer(t *testing.T) {
	stack := newTestStack(t)
	b := stack.createBooking(t)

	_, err := stack.paymentSvc.CreateOrder(context.Background(), uuid.New(), b.ID)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrForbidden))
}

func TestCreateOrder_UnknownBooking(t *testing.T) {
	stack := newTestStack(t)

	_, err := stack.paymentSvc.CreateOrder(context.Background(), stack.customerID, uuid.New())
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestCreateOrder_RetryReusesPaymentRecord(t *testing.T) {
	stack := newTestStack(t)
	ctx := context.Background()
	b := stack.createBooking(t)

	first, err := stack.paymentSvc.CreateOrder(ctx, stack.customerID, b.ID)
	require.NoError(t, err)

	second, err := stack.paymentSvc.CreateOrder(ctx, stack.customerID, b.ID)
	require.NoError(t, err)
	assert.NotEqual(t, first.GatewayOrderID, second.GatewayOrderID)

	// Still a single payment record, now pointing at the new order.
	list, total, err := stack.payments.ListAll(ctx, 1, 100)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, second.GatewayOrderID, list[0].GatewayOrderID())
	assert.Equal(t, "pending", string(list[0].Status()))
}

func TestCreateOrder_AfterAcceptRejected(t *testing.T) {
	stack := newTestStack(t)
	ctx := context.Background()
	b := stack.createBooking(t)

	_, err := stack.bookingSvc.AcceptBooking(ctx, stack.providerID, b.ID)
	require.NoError(t, err)

	_, err = stack.paymentSvc.CreateOrder(ctx, stack.customerID, b.ID)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrInvalidTransition))
}

func TestVerifyPayment(t *testing.T) {
	stack := newTestStack(t)
	ctx := context.Background()
	b := stack.createBooking(t)

	result := stack.payBooking(t, b.ID)

	assert.False(t, result.AlreadyVerified)
	assert.Equal(t, "completed", result.Payment.Status)
	assert.NotEmpty(t, result.Payment.GatewayPaymentID)

	// Verified payment accepts the booking.
	got, err := stack.bookingSvc.GetBooking(ctx, stack.customerID, auth.RoleCustomer, b.ID)
	require.NoError(t, err)
	assert.Equal(t, "accepted", got.Status)

	assert.Equal(t, 1, stack.publisher.count(events.PaymentCompleted))
	assert.Equal(t, 1, stack.publisher.count(events.BookingAccepted))
}

func TestVerifyPayment_InvalidSignature(t *testing.T) {
	stack := newTestStack(t)
	ctx := context.Background()
	b := stack.createBooking(t)

	order, err := stack.paymentSvc.CreateOrder(ctx, stack.customerID, b.ID)
	require.NoError(t, err)

	_, err = stack.paymentSvc.VerifyPayment(ctx, stack.customerID, VerifyPaymentRequest{
		GatewayOrderID:   order.GatewayOrderID,
		GatewayPaymentID: "pay_forged",
		Signature:        "deadbeef",
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrInvalidSignature))

	// Nothing moved.
	p, err := stack.payments.FindByBookingID(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, "pending", string(p.Status()))

	got, err := stack.bookingSvc.GetBooking(ctx, stack.customerID, auth.RoleCustomer, b.ID)
	require.NoError(t, err)
	assert.Equal(t, "pending", got.Status)
}

func TestVerifyPayment_TamperedPaymentID(t *testing.T) {
	stack := newTestStack(t)
	ctx := context.Background()
	b := stack.createBooking(t)

	order, err := stack.paymentSvc.CreateOrder(ctx, stack.customerID, b.ID)
	require.NoError(t, err)

	// Signature is valid for a different payment id.
	sig := stack.gateway.mock.SignatureFor(order.GatewayOrderID, "pay_real")
	_, err = stack.paymentSvc.VerifyPayment(ctx, stack.customerID, VerifyPaymentRequest{
		GatewayOrderID:   order.GatewayOrderID,
		GatewayPaymentID: "pay_other",
		Signature:        sig,
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrInvalidSignature))
}

func TestVerifyPayment_DuplicateCallback(t *testing.T) {
	stack := newTestStack(t)
	ctx := context.Background()
	b := stack.createBooking(t)

	order, err := stack.paymentSvc.CreateOrder(ctx, stack.customerID, b.ID)
	require.NoError(t, err)

	req := VerifyPaymentRequest{
		GatewayOrderID:   order.GatewayOrderID,
		GatewayPaymentID: "pay_1",
		Signature:        stack.gateway.mock.SignatureFor(order.GatewayOrderID, "pay_1"),
	}

	first, err := stack.paymentSvc.VerifyPayment(ctx, stack.customerID, req)
	require.NoError(t, err)
	assert.False(t, first.AlreadyVerified)

	second, err := stack.paymentSvc.VerifyPayment(ctx, stack.customerID, req)
	require.NoError(t, err)
	assert.True(t, second.AlreadyVerified)
	assert.Equal(t, first.Payment.ID, second.Payment.ID)

	// The completion side effects happened exactly once.
	assert.Equal(t, 1, stack.publisher.count(events.PaymentCompleted))
	assert.Equal(t, 1, stack.publisher.count(events.BookingAccepted))
}

func TestCreateOrder_AlreadyPaid(t *testing.T) {
	stack := newTestStack(t)
	ctx := context.Background()
	b := stack.createBooking(t)
	stack.payBooking(t, b.ID)

	_, err := stack.paymentSvc.CreateOrder(ctx, stack.customerID, b.ID)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrAlreadyPaid))
}

func TestVerifyPayment_RetryHealsStuckBooking(t *testing.T) {
	stack := newTestStack(t)
	ctx := context.Background()
	b := stack.createBooking(t)

	flaky := &flakyBookingRepo{fakeBookingRepo: stack.bookings, updateFailures: 1}
	locks := lock.NewKeyedMutex()
	sagaSvc := saga.NewPaymentSagaService(stack.payments, flaky, stack.gateway, stack.publisher, locks, "INR", zap.NewNop())
	svc := NewPaymentService(stack.payments, flaky, stack.gateway, sagaSvc, stack.publisher, locks, "key_id", zap.NewNop())

	order, err := svc.CreateOrder(ctx, stack.customerID, b.ID)
	require.NoError(t, err)

	paymentID := "pay_" + uuid.NewString()
	req := VerifyPaymentRequest{
		GatewayOrderID:   order.GatewayOrderID,
		GatewayPaymentID: paymentID,
		Signature:        stack.gateway.mock.SignatureFor(order.GatewayOrderID, paymentID),
	}

	// The payment completes, then the booking accept write fails.
	_, err = svc.VerifyPayment(ctx, stack.customerID, req)
	require.Error(t, err)

	p, err := stack.payments.FindByBookingID(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, "completed", string(p.Status()))

	stored, err := stack.bookings.FindByID(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, "pending", string(stored.Status()))

	// Retrying the same callback is a no-op success that accepts the booking.
	result, err := svc.VerifyPayment(ctx, stack.customerID, req)
	require.NoError(t, err)
	assert.True(t, result.AlreadyVerified)

	stored, err = stack.bookings.FindByID(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, "accepted", string(stored.Status()))
}

func TestRejectAfterPayment(t *testing.T) {
	stack := newTestStack(t)
	ctx := context.Background()
	b := stack.createBooking(t)

	stack.payBooking(t, b.ID)

	// A paid booking can no longer be rejected; refund is the remediation.
	_, err := stack.bookingSvc.RejectBooking(ctx, stack.providerID, b.ID)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrInvalidTransition))
}

func TestInitiateRefund(t *testing.T) {
	stack := newTestStack(t)
	ctx := context.Background()
	b := stack.createBooking(t)

	paid := stack.payBooking(t, b.ID)

	dto, err := stack.paymentSvc.InitiateRefund(ctx, paid.Payment.ID, "provider unavailable")
	require.NoError(t, err)
	assert.Equal(t, "refunded", dto.Status)
	assert.NotEmpty(t, dto.RefundID)
	assert.Equal(t, "provider unavailable", dto.RefundReason)

	// Refund cancels the booking.
	got, err := stack.bookingSvc.GetBooking(ctx, stack.customerID, auth.RoleCustomer, b.ID)
	require.NoError(t, err)
	assert.Equal(t, "cancelled", got.Status)

	assert.Equal(t, 1, stack.publisher.count(events.PaymentRefunded))
}

func TestInitiateRefund_NotCompleted(t *testing.T) {
	stack := newTestStack(t)
	ctx := context.Background()
	b := stack.createBooking(t)

	_, err := stack.paymentSvc.CreateOrder(ctx, stack.customerID, b.ID)
	require.NoError(t, err)
	p, err := stack.payments.FindByBookingID(ctx, b.ID)
	require.NoError(t, err)

	_, err = stack.paymentSvc.InitiateRefund(ctx, p.ID(), "changed my mind")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrNotCompleted))
	assert.Equal(t, 0, stack.gateway.refundCalls(), "gateway must not be contacted")
}

func TestInitiateRefund_AlreadyRefunded(t *testing.T) {
	stack := newTestStack(t)
	ctx := context.Background()
	b := stack.createBooking(t)

	paid := stack.payBooking(t, b.ID)

	_, err := stack.paymentSvc.InitiateRefund(ctx, paid.Payment.ID, "first")
	require.NoError(t, err)

	_, err = stack.paymentSvc.InitiateRefund(ctx, paid.Payment.ID, "second")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrAlreadyRefunded))
	assert.Equal(t, 1, stack.gateway.refundCalls(), "only the first refund reaches the gateway")
}

func TestInitiateRefund_SettlementPayment(t *testing.T) {
	stack := newTestStack(t)
	ctx := context.Background()
	b := stack.createBooking(t)

	_, err := stack.bookingSvc.AcceptBooking(ctx, stack.providerID, b.ID)
	require.NoError(t, err)
	_, err = stack.bookingSvc.CompleteBooking(ctx, stack.providerID, b.ID)
	require.NoError(t, err)

	p, err := stack.payments.FindByBookingID(ctx, b.ID)
	require.NoError(t, err)

	// Settled offline: no gateway payment to refund.
	_, err = stack.paymentSvc.InitiateRefund(ctx, p.ID(), "oops")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrRefundRejected))
	assert.Equal(t, 0, stack.gateway.refundCalls())
}

func TestInitiateRefund_UnknownPayment(t *testing.T) {
	stack := newTestStack(t)

	_, err := stack.paymentSvc.InitiateRefund(context.Background(), uuid.New(), "ghost")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestGetPaymentByBooking_AccessControl(t *testing.T) {
	stack := newTestStack(t)
	ctx := context.Background()
	b := stack.createBooking(t)
	stack.payBooking(t, b.ID)

	_, err := stack.paymentSvc.GetPaymentByBooking(ctx, stack.customerID, auth.RoleCustomer, b.ID)
	assert.NoError(t, err)

	_, err = stack.paymentSvc.GetPaymentByBooking(ctx, stack.providerID, auth.RoleProvider, b.ID)
	assert.NoError(t, err)

	_, err = stack.paymentSvc.GetPaymentByBooking(ctx, uuid.New(), auth.RoleCustomer, b.ID)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrForbidden))
}

func TestCompleteAfterVerifiedPayment_NoDoubleSettlement(t *testing.T) {
	stack := newTestStack(t)
	ctx := context.Background()
	b := stack.createBooking(t)

	stack.payBooking(t, b.ID)

	result, err := stack.bookingSvc.CompleteBooking(ctx, stack.providerID, b.ID)
	require.NoError(t, err)
	assert.Equal(t, "completed", result.Booking.Status)

	// The verified payment stays as is; no settlement record is added.
	list, total, err := stack.payments.ListAll(ctx, 1, 100)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, "completed", string(list[0].Status()))
	assert.NotEmpty(t, list[0].GatewayPaymentID())

	earned, err := stack.earningsSvc.GetEarnings(ctx, stack.providerID)
	require.NoError(t, err)
	assert.True(t, earned.Total.Equal(decimal.RequireFromString("100.00")))
}

func TestGetPaymentStats(t *testing.T) {
	stack := newTestStack(t)
	ctx := context.Background()
	b := stack.createBooking(t)
	stack.payBooking(t, b.ID)

	stats, err := stack.paymentSvc.GetPaymentStats(ctx)
	require.NoError(t, err)
	assert.True(t, stats.TotalPlatformFees.Equal(decimal.RequireFromString("10")))
	assert.Equal(t, int64(1), stats.CountByStatus["completed"])
}
