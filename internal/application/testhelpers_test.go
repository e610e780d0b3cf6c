package application

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/servilink/service-booking/internal/adapter"
	"github.com/servilink/service-booking/internal/domain"
	bookingDomain "github.com/servilink/service-booking/internal/domain/booking"
	"github.com/servilink/service-booking/internal/domain/catalog"
	paymentDomain "github.com/servilink/service-booking/internal/domain/payment"
	"github.com/servilink/service-booking/internal/domain/platformcfg"
	"github.com/servilink/service-booking/internal/platform/kafka"
	"github.com/servilink/service-booking/internal/platform/lock"
	"github.com/servilink/service-booking/internal/saga"
)

const testGatewaySecret = "test-secret"

// --- In-memory repositories mirroring the GORM implementations' semantics ---

func cloneBooking(b *bookingDomain.Booking) *bookingDomain.Booking {
	return bookingDomain.Reconstitute(
		b.ID(), b.CustomerID(), b.ServiceID(), b.ProviderID(),
		b.ScheduledDate(), b.TimeSlot(), b.Address(), b.Notes(),
		b.ServiceAmount(), b.PlatformFee(), b.TotalAmount(),
		b.Status(), b.Version(), b.CreatedAt(), b.UpdatedAt(),
	)
}

func clonePayment(p *paymentDomain.Payment) *paymentDomain.Payment {
	return paymentDomain.Reconstitute(
		p.ID(), p.BookingID(), p.CustomerID(), p.ProviderID(),
		p.Amount(), p.PlatformFee(), p.ProviderAmount(),
		p.Currency(), p.GatewayOrderID(), p.GatewayPaymentID(), p.GatewaySignature(),
		p.RefundID(), p.RefundReason(),
		p.Status(), p.Version(), p.CreatedAt(), p.UpdatedAt(),
	)
}

type fakeBookingRepo struct {
	mu    sync.Mutex
	items map[uuid.UUID]*bookingDomain.Booking
}

func newFakeBookingRepo() *fakeBookingRepo {
	return &fakeBookingRepo{items: make(map[uuid.UUID]*bookingDomain.Booking)}
}

func (r *fakeBookingRepo) FindByID(_ context.Context, id uuid.UUID) (*bookingDomain.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.items[id]
	if !ok {
		return nil, domain.NewNotFoundError("booking", id.String())
	}
	return cloneBooking(b), nil
}

func (r *fakeBookingRepo) FindByCustomer(_ context.Context, customerID uuid.UUID, page, limit int) ([]*bookingDomain.Booking, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*bookingDomain.Booking
	for _, b := range r.items {
		if b.CustomerID() == customerID {
			out = append(out, cloneBooking(b))
		}
	}
	return out, int64(len(out)), nil
}

func (r *fakeBookingRepo) FindByProvider(_ context.Context, providerID uuid.UUID, page, limit int) ([]*bookingDomain.Booking, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*bookingDomain.Booking
	for _, b := range r.items {
		if b.ProviderID() == providerID {
			out = append(out, cloneBooking(b))
		}
	}
	return out, int64(len(out)), nil
}

func (r *fakeBookingRepo) SumCompletedServiceAmount(_ context.Context, providerID uuid.UUID) (decimal.Decimal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sum := decimal.Zero
	for _, b := range r.items {
		if b.ProviderID() == providerID && b.Status() == bookingDomain.StatusCompleted {
			sum = sum.Add(b.ServiceAmount())
		}
	}
	return sum, nil
}

func (r *fakeBookingRepo) Save(_ context.Context, b *bookingDomain.Booking) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[b.ID()] = cloneBooking(b)
	return nil
}

func (r *fakeBookingRepo) Update(_ context.Context, b *bookingDomain.Booking) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.items[b.ID()]
	if !ok {
		return domain.NewNotFoundError("booking", b.ID().String())
	}
	if stored.Version() != b.Version()-1 {
		return domain.NewConflictError("booking was modified by another transaction")
	}
	r.items[b.ID()] = cloneBooking(b)
	return nil
}

type fakePaymentRepo struct {
	mu    sync.Mutex
	items map[uuid.UUID]*paymentDomain.Payment
}

func newFakePaymentRepo() *fakePaymentRepo {
	return &fakePaymentRepo{items: make(map[uuid.UUID]*paymentDomain.Payment)}
}

func (r *fakePaymentRepo) FindByID(_ context.Context, id uuid.UUID) (*paymentDomain.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.items[id]
	if !ok {
		return nil, domain.NewNotFoundError("payment", id.String())
	}
	return clonePayment(p), nil
}

func (r *fakePaymentRepo) FindByBookingID(_ context.Context, bookingID uuid.UUID) (*paymentDomain.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.items {
		if p.BookingID() == bookingID {
			return clonePayment(p), nil
		}
	}
	return nil, domain.NewNotFoundError("payment for booking", bookingID.String())
}

func (r *fakePaymentRepo) FindByGatewayOrderID(_ context.Context, gatewayOrderID string) (*paymentDomain.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.items {
		if p.GatewayOrderID() == gatewayOrderID {
			return clonePayment(p), nil
		}
	}
	return nil, domain.NewNotFoundError("payment for order", gatewayOrderID)
}

func (r *fakePaymentRepo) ListAll(_ context.Context, page, limit int) ([]*paymentDomain.Payment, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*paymentDomain.Payment
	for _, p := range r.items {
		out = append(out, clonePayment(p))
	}
	return out, int64(len(out)), nil
}

func (r *fakePaymentRepo) GetRevenueStats(_ context.Context) (decimal.Decimal, map[string]int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	total := decimal.Zero
	counts := make(map[string]int64)
	for _, p := range r.items {
		counts[string(p.Status())]++
		if p.Status() == paymentDomain.StatusCompleted {
			total = total.Add(p.PlatformFee())
		}
	}
	return total, counts, nil
}

func (r *fakePaymentRepo) Save(_ context.Context, p *paymentDomain.Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[p.ID()] = clonePayment(p)
	return nil
}

func (r *fakePaymentRepo) Update(_ context.Context, p *paymentDomain.Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.items[p.ID()]
	if !ok {
		return domain.NewNotFoundError("payment", p.ID().String())
	}
	if stored.Version() != p.Version()-1 {
		return domain.NewConflictError("payment was modified by another transaction")
	}
	r.items[p.ID()] = clonePayment(p)
	return nil
}

type fakeCatalogRepo struct {
	mu    sync.Mutex
	items map[uuid.UUID]*catalog.Service
}

func newFakeCatalogRepo() *fakeCatalogRepo {
	return &fakeCatalogRepo{items: make(map[uuid.UUID]*catalog.Service)}
}

func (r *fakeCatalogRepo) FindByID(_ context.Context, id uuid.UUID) (*catalog.Service, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.items[id]
	if !ok {
		return nil, domain.NewNotFoundError("service", id.String())
	}
	copied := *s
	return &copied, nil
}

func (r *fakeCatalogRepo) Upsert(_ context.Context, s *catalog.Service) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *s
	r.items[s.ID] = &copied
	return nil
}

func (r *fakeCatalogRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.items, id)
	return nil
}

type fakeConfigRepo struct {
	mu  sync.Mutex
	cfg *platformcfg.Config
}

func (r *fakeConfigRepo) GetOrCreateDefault(_ context.Context) (*platformcfg.Config, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cfg == nil {
		r.cfg = &platformcfg.Config{FeePercentage: platformcfg.DefaultFeePercentage, UpdatedAt: time.Now().UTC()}
	}
	copied := *r.cfg
	return &copied, nil
}

func (r *fakeConfigRepo) Update(_ context.Context, c *platformcfg.Config) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *c
	r.cfg = &copied
	return nil
}

type fakeEarningsRepo struct {
	mu       sync.Mutex
	totals   map[uuid.UUID]decimal.Decimal
	credited map[uuid.UUID]bool
}

func newFakeEarningsRepo() *fakeEarningsRepo {
	return &fakeEarningsRepo{
		totals:   make(map[uuid.UUID]decimal.Decimal),
		credited: make(map[uuid.UUID]bool),
	}
}

func (r *fakeEarningsRepo) Credit(_ context.Context, providerID, bookingID uuid.UUID, amount decimal.Decimal) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.credited[bookingID] {
		return nil
	}
	r.credited[bookingID] = true
	cur, ok := r.totals[providerID]
	if !ok {
		cur = decimal.Zero
	}
	r.totals[providerID] = cur.Add(amount)
	return nil
}

func (r *fakeEarningsRepo) TotalFor(_ context.Context, providerID uuid.UUID) (decimal.Decimal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.totals[providerID]
	if !ok {
		return decimal.Zero, nil
	}
	return cur, nil
}

// flakyEarningsRepo fails the first n Credit calls, then delegates.
type flakyEarningsRepo struct {
	*fakeEarningsRepo
	failures int
}

func (r *flakyEarningsRepo) Credit(ctx context.Context, providerID, bookingID uuid.UUID, amount decimal.Decimal) error {
	if r.failures > 0 {
		r.failures--
		return errors.New("earnings store unavailable")
	}
	return r.fakeEarningsRepo.Credit(ctx, providerID, bookingID, amount)
}

// flakyBookingRepo fails the first n Update calls, then delegates.
type flakyBookingRepo struct {
	*fakeBookingRepo
	updateFailures int
}

func (r *flakyBookingRepo) Update(ctx context.Context, b *bookingDomain.Booking) error {
	if r.updateFailures > 0 {
		r.updateFailures--
		return errors.New("booking store unavailable")
	}
	return r.fakeBookingRepo.Update(ctx, b)
}

// capturingPublisher records published CloudEvents instead of hitting Kafka.
type capturingPublisher struct {
	mu     sync.Mutex
	events []kafka.CloudEvent
}

func (p *capturingPublisher) PublishEvent(_ context.Context, topic string, ce kafka.CloudEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ce)
	return nil
}

func (p *capturingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, ce := range p.events {
		out = append(out, ce.Type)
	}
	return out
}

func (p *capturingPublisher) count(eventType string) int {
	n := 0
	for _, t := range p.types() {
		if t == eventType {
			n++
		}
	}
	return n
}

// countingGateway wraps the mock gateway and records call counts.
type countingGateway struct {
	mock    *adapter.MockGatewayAdapter
	mu      sync.Mutex
	orders  int
	refunds int
}

func (g *countingGateway) CreateOrder(ctx context.Context, amountMinorUnits int64, currency, receiptRef string) (string, error) {
	g.mu.Lock()
	g.orders++
	g.mu.Unlock()
	return g.mock.CreateOrder(ctx, amountMinorUnits, currency, receiptRef)
}

func (g *countingGateway) VerifySignature(orderID, paymentID, providedSignature string) bool {
	return g.mock.VerifySignature(orderID, paymentID, providedSignature)
}

func (g *countingGateway) Refund(ctx context.Context, gatewayPaymentID string, amountMinorUnits int64, reason string) (string, error) {
	g.mu.Lock()
	g.refunds++
	g.mu.Unlock()
	return g.mock.Refund(ctx, gatewayPaymentID, amountMinorUnits, reason)
}

func (g *countingGateway) refundCalls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.refunds
}

// testStack wires all services against in-memory fakes and the mock gateway.
type testStack struct {
	bookings  *fakeBookingRepo
	payments  *fakePaymentRepo
	catalog   *fakeCatalogRepo
	earnings  *fakeEarningsRepo
	publisher *capturingPublisher
	gateway   *countingGateway

	bookingSvc  *BookingService
	paymentSvc  *PaymentService
	earningsSvc *EarningsService
	configSvc   *ConfigService

	serviceID  uuid.UUID
	providerID uuid.UUID
	customerID uuid.UUID
}

func newTestStack(t *testing.T) *testStack {
	t.Helper()

	bookings := newFakeBookingRepo()
	payments := newFakePaymentRepo()
	services := newFakeCatalogRepo()
	configRepo := &fakeConfigRepo{}
	earnings := newFakeEarningsRepo()
	publisher := &capturingPublisher{}
	gateway := &countingGateway{mock: adapter.NewMockGatewayAdapter(testGatewaySecret, zap.NewNop())}
	locks := lock.NewKeyedMutex()
	logger := zap.NewNop()

	sagaSvc := saga.NewPaymentSagaService(payments, bookings, gateway, publisher, locks, "INR", logger)

	stack := &testStack{
		bookings:  bookings,
		payments:  payments,
		catalog:   services,
		earnings:  earnings,
		publisher: publisher,
		gateway:   gateway,

		bookingSvc:  NewBookingService(bookings, payments, services, configRepo, earnings, publisher, locks, "INR", logger),
		paymentSvc:  NewPaymentService(payments, bookings, gateway, sagaSvc, publisher, locks, "key_id", logger),
		earningsSvc: NewEarningsService(earnings, bookings, logger),
		configSvc:   NewConfigService(configRepo, logger),

		serviceID:  uuid.New(),
		providerID: uuid.New(),
		customerID: uuid.New(),
	}

	stack.catalog.Upsert(context.Background(), &catalog.Service{
		ID:         stack.serviceID,
		ProviderID: stack.providerID,
		Title:      "Deep home cleaning",
		Price:      decimal.RequireFromString("100.00"),
		Active:     true,
		UpdatedAt:  time.Now().UTC(),
	})

	return stack
}

func (s *testStack) createBooking(t *testing.T) *BookingDTO {
	t.Helper()
	dto, err := s.bookingSvc.CreateBooking(context.Background(), s.customerID, CreateBookingRequest{
		ServiceID:     s.serviceID,
		ScheduledDate: time.Now().Add(48 * time.Hour),
		TimeSlot:      "09:00-11:00",
		Address:       "12 Rose St",
	})
	if err != nil {
		t.Fatalf("create booking: %v", err)
	}
	return dto
}

// payBooking drives the full online payment flow: order, signed callback, verify.
func (s *testStack) payBooking(t *testing.T, bookingID uuid.UUID) *VerifyResultDTO {
	t.Helper()
	ctx := context.Background()

	order, err := s.paymentSvc.CreateOrder(ctx, s.customerID, bookingID)
	if err != nil {
		t.Fatalf("create order: %v", err)
	}

	paymentID := "pay_" + uuid.NewString()
	result, err := s.paymentSvc.VerifyPayment(ctx, s.customerID, VerifyPaymentRequest{
		GatewayOrderID:   order.GatewayOrderID,
		GatewayPaymentID: paymentID,
		Signature:        s.gateway.mock.SignatureFor(order.GatewayOrderID, paymentID),
	})
	if err != nil {
		t.Fatalf("verify payment: %v", err)
	}
	return result
}
