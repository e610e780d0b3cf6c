package application

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/servilink/service-booking/internal/domain"
	bookingDomain "github.com/servilink/service-booking/internal/domain/booking"
	"github.com/servilink/service-booking/internal/domain/catalog"
	"github.com/servilink/service-booking/internal/domain/earnings"
	paymentDomain "github.com/servilink/service-booking/internal/domain/payment"
	"github.com/servilink/service-booking/internal/domain/platformcfg"
	"github.com/servilink/service-booking/internal/domain/pricing"
	"github.com/servilink/service-booking/internal/events"
	"github.com/servilink/service-booking/internal/platform/auth"
	"github.com/servilink/service-booking/internal/platform/kafka"
	"github.com/servilink/service-booking/internal/platform/lock"
)

// CreateBookingRequest is the DTO for creating a new booking.
type CreateBookingRequest struct {
	ServiceID     uuid.UUID `json:"service_id" binding:"required"`
	ScheduledDate time.Time `json:"scheduled_date" binding:"required"`
	TimeSlot      string    `json:"time_slot" binding:"required"`
	Address       string    `json:"address" binding:"required"`
	Notes         string    `json:"notes"`
}

// BookingDTO is the API response DTO for booking data.
type BookingDTO struct {
	ID            uuid.UUID       `json:"id"`
	CustomerID    uuid.UUID       `json:"customer_id"`
	ServiceID     uuid.UUID       `json:"service_id"`
	ProviderID    uuid.UUID       `json:"provider_id"`
	ScheduledDate time.Time       `json:"scheduled_date"`
	TimeSlot      string          `json:"time_slot"`
	Address       string          `json:"address"`
	Notes         string          `json:"notes,omitempty"`
	ServiceAmount decimal.Decimal `json:"service_amount"`
	PlatformFee   decimal.Decimal `json:"platform_fee"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	Status        string          `json:"status"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// CompleteResultDTO carries the completed booking plus an explicit flag for
// the duplicate-completion no-op case.
type CompleteResultDTO struct {
	Booking          BookingDTO `json:"booking"`
	AlreadyCompleted bool       `json:"already_completed"`
}

// BookingService is the application service that orchestrates the booking
// lifecycle use cases.
type BookingService struct {
	bookings bookingDomain.Repository
	payments paymentDomain.Repository
	services catalog.Repository
	config   platformcfg.Repository
	earnings earnings.Repository
	producer kafka.Publisher
	locks    *lock.KeyedMutex
	currency string
	logger   *zap.Logger
}

// NewBookingService creates a new BookingService.
func NewBookingService(
	bookings bookingDomain.Repository,
	payments paymentDomain.Repository,
	services catalog.Repository,
	config platformcfg.Repository,
	earnings earnings.Repository,
	producer kafka.Publisher,
	locks *lock.KeyedMutex,
	currency string,
	logger *zap.Logger,
) *BookingService {
	return &BookingService{
		bookings: bookings,
		payments: payments,
		services: services,
		config:   config,
		earnings: earnings,
		producer: producer,
		locks:    locks,
		currency: currency,
		logger:   logger,
	}
}

// CreateBooking creates a pending booking for a catalog service. The amounts
// are computed from the catalog price and the platform fee percentage in
// force right now, and never change afterwards.
func (s *BookingService) CreateBooking(ctx context.Context, customerID uuid.UUID, req CreateBookingRequest) (*BookingDTO, error) {
	svc, err := s.services.FindByID(ctx, req.ServiceID)
	if err != nil {
		return nil, err
	}
	if !svc.Active {
		return nil, domain.NewInvalidInputError("service is not available for booking")
	}
	if svc.ProviderID == customerID {
		return nil, domain.NewInvalidInputError("cannot book your own service")
	}

	cfg, err := s.config.GetOrCreateDefault(ctx)
	if err != nil {
		return nil, err
	}

	quote, err := pricing.ComputeAmounts(svc.Price, cfg.FeePercentage)
	if err != nil {
		return nil, err
	}

	b := bookingDomain.NewBooking(
		customerID, svc.ID, svc.ProviderID,
		req.ScheduledDate, req.TimeSlot, req.Address, req.Notes,
		quote,
	)
	if err := s.bookings.Save(ctx, b); err != nil {
		return nil, err
	}

	s.logger.Info("booking created",
		zap.String("booking_id", b.ID().String()),
		zap.String("customer_id", customerID.String()),
		zap.String("service_id", svc.ID.String()),
		zap.String("total_amount", b.TotalAmount().String()),
	)

	s.publishBookingEvent(ctx, events.BookingCreated, b)

	dto := toBookingDTO(b)
	return &dto, nil
}

// AcceptBooking records an explicit provider accept of a pending booking
// (the pay-on-completion path; verified payment accepts implicitly).
func (s *BookingService) AcceptBooking(ctx context.Context, providerID, bookingID uuid.UUID) (*BookingDTO, error) {
	return s.transition(ctx, bookingID, func(b *bookingDomain.Booking) error {
		if b.ProviderID() != providerID {
			return domain.NewForbiddenError("booking belongs to another provider")
		}
		return b.Accept()
	}, events.BookingAccepted)
}

// RejectBooking records a provider rejection of a pending booking. A paid
// (accepted) booking can no longer be rejected; it must be refunded.
func (s *BookingService) RejectBooking(ctx context.Context, providerID, bookingID uuid.UUID) (*BookingDTO, error) {
	return s.transition(ctx, bookingID, func(b *bookingDomain.Booking) error {
		if b.ProviderID() != providerID {
			return domain.NewForbiddenError("booking belongs to another provider")
		}
		return b.Reject()
	}, events.BookingRejected)
}

// CancelBooking cancels the customer's own pending booking. Once the booking
// is accepted (paid or not) direct cancellation is closed; the refund flow
// owns cancellation from there.
func (s *BookingService) CancelBooking(ctx context.Context, customerID, bookingID uuid.UUID) (*BookingDTO, error) {
	return s.transition(ctx, bookingID, func(b *bookingDomain.Booking) error {
		if b.CustomerID() != customerID {
			return domain.NewForbiddenError("booking belongs to another customer")
		}
		if b.Status() != bookingDomain.StatusPending {
			return domain.NewInvalidTransitionError(string(b.Status()), string(bookingDomain.StatusCancelled))
		}
		return b.Cancel()
	}, events.BookingCancelled)
}

// CompleteBooking marks the work done, settles the payment record and credits
// the provider's earnings with the service amount, exactly once. Completing
// an already-completed booking is an explicit no-op success.
func (s *BookingService) CompleteBooking(ctx context.Context, providerID, bookingID uuid.UUID) (*CompleteResultDTO, error) {
	unlock := s.locks.Lock(bookingID)
	defer unlock()

	b, err := s.bookings.FindByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if b.ProviderID() != providerID {
		return nil, domain.NewForbiddenError("booking belongs to another provider")
	}
	if b.Status() == bookingDomain.StatusCompleted {
		// A prior attempt may have failed between the status write and the
		// settlement. Settle and credit are idempotent, so re-driving them
		// here makes the retry heal instead of losing the credit.
		if err := s.settlePayment(ctx, b); err != nil {
			return nil, err
		}
		if err := s.earnings.Credit(ctx, providerID, b.ID(), b.ServiceAmount()); err != nil {
			return nil, err
		}
		return &CompleteResultDTO{Booking: toBookingDTO(b), AlreadyCompleted: true}, nil
	}

	if err := b.Complete(); err != nil {
		return nil, err
	}
	b.IncrementVersion()
	// The conditional update is the single winner-picking step: a racing
	// completion on another instance loses here and credits nothing.
	if err := s.bookings.Update(ctx, b); err != nil {
		return nil, err
	}

	if err := s.settlePayment(ctx, b); err != nil {
		return nil, err
	}

	if err := s.earnings.Credit(ctx, providerID, b.ID(), b.ServiceAmount()); err != nil {
		return nil, err
	}

	s.logger.Info("booking completed",
		zap.String("booking_id", b.ID().String()),
		zap.String("provider_id", providerID.String()),
		zap.String("provider_amount", b.ServiceAmount().String()),
	)

	s.publishCompletedEvent(ctx, b)

	return &CompleteResultDTO{Booking: toBookingDTO(b)}, nil
}

// settlePayment brings the payment record in line with a completed booking:
// a verified payment stays as is, a pending one is settled offline, and the
// pay-on-completion path creates the settlement record now.
func (s *BookingService) settlePayment(ctx context.Context, b *bookingDomain.Booking) error {
	quote := pricing.Quote{
		ServiceAmount: b.ServiceAmount(),
		PlatformFee:   b.PlatformFee(),
		TotalAmount:   b.TotalAmount(),
	}

	p, err := s.payments.FindByBookingID(ctx, b.ID())
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			return err
		}
		return s.payments.Save(ctx, paymentDomain.NewSettlementPayment(
			b.ID(), b.CustomerID(), b.ProviderID(), quote, s.currency))
	}

	if p.Status() != paymentDomain.StatusPending {
		return nil
	}
	if err := p.Settle(); err != nil {
		return err
	}
	p.IncrementVersion()
	return s.payments.Update(ctx, p)
}

// GetBooking retrieves one booking for its customer, its provider or an admin.
func (s *BookingService) GetBooking(ctx context.Context, userID uuid.UUID, role string, bookingID uuid.UUID) (*BookingDTO, error) {
	b, err := s.bookings.FindByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if role != auth.RoleAdmin && b.CustomerID() != userID && b.ProviderID() != userID {
		return nil, domain.NewForbiddenError("not a party to this booking")
	}
	dto := toBookingDTO(b)
	return &dto, nil
}

// ListForCustomer retrieves the customer's bookings, newest first.
func (s *BookingService) ListForCustomer(ctx context.Context, customerID uuid.UUID, page, limit int) ([]BookingDTO, int64, error) {
	list, total, err := s.bookings.FindByCustomer(ctx, customerID, page, limit)
	if err != nil {
		return nil, 0, err
	}
	return toBookingDTOs(list), total, nil
}

// ListForProvider retrieves the provider's bookings, newest first.
func (s *BookingService) ListForProvider(ctx context.Context, providerID uuid.UUID, page, limit int) ([]BookingDTO, int64, error) {
	list, total, err := s.bookings.FindByProvider(ctx, providerID, page, limit)
	if err != nil {
		return nil, 0, err
	}
	return toBookingDTOs(list), total, nil
}

// transition applies one guarded state change under the booking's lock and
// publishes the matching lifecycle event.
func (s *BookingService) transition(ctx context.Context, bookingID uuid.UUID, apply func(*bookingDomain.Booking) error, eventType string) (*BookingDTO, error) {
	unlock := s.locks.Lock(bookingID)
	defer unlock()

	b, err := s.bookings.FindByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if err := apply(b); err != nil {
		return nil, err
	}
	b.IncrementVersion()
	if err := s.bookings.Update(ctx, b); err != nil {
		return nil, err
	}

	s.logger.Info("booking transitioned",
		zap.String("booking_id", b.ID().String()),
		zap.String("status", string(b.Status())),
	)

	s.publishBookingEvent(ctx, eventType, b)

	dto := toBookingDTO(b)
	return &dto, nil
}

// publishBookingEvent publishes a lifecycle event; delivery failure is logged
// and never fails the operation, the state change is already durable.
func (s *BookingService) publishBookingEvent(ctx context.Context, eventType string, b *bookingDomain.Booking) {
	event := events.BookingEvent{
		BookingID:   b.ID(),
		CustomerID:  b.CustomerID(),
		ProviderID:  b.ProviderID(),
		ServiceID:   b.ServiceID(),
		Status:      string(b.Status()),
		TotalAmount: b.TotalAmount(),
		OccurredAt:  time.Now().UTC(),
	}
	ce, err := kafka.NewCloudEvent(events.EventSource, eventType, event)
	if err != nil {
		s.logger.Error("failed to build booking event", zap.Error(err))
		return
	}
	if err := s.producer.PublishEvent(ctx, events.TopicBookingEvents, ce); err != nil {
		s.logger.Error("failed to publish booking event",
			zap.String("type", eventType),
			zap.Error(err),
		)
	}
}

func (s *BookingService) publishCompletedEvent(ctx context.Context, b *bookingDomain.Booking) {
	event := events.BookingCompletedEvent{
		BookingID:      b.ID(),
		CustomerID:     b.CustomerID(),
		ProviderID:     b.ProviderID(),
		ProviderAmount: b.ServiceAmount(),
		OccurredAt:     time.Now().UTC(),
	}
	ce, err := kafka.NewCloudEvent(events.EventSource, events.BookingCompleted, event)
	if err != nil {
		s.logger.Error("failed to build booking completed event", zap.Error(err))
		return
	}
	if err := s.producer.PublishEvent(ctx, events.TopicBookingEvents, ce); err != nil {
		s.logger.Error("failed to publish booking completed event", zap.Error(err))
	}
}

func toBookingDTO(b *bookingDomain.Booking) BookingDTO {
	return BookingDTO{
		ID:            b.ID(),
		CustomerID:    b.CustomerID(),
		ServiceID:     b.ServiceID(),
		ProviderID:    b.ProviderID(),
		ScheduledDate: b.ScheduledDate(),
		TimeSlot:      b.TimeSlot(),
		Address:       b.Address(),
		Notes:         b.Notes(),
		ServiceAmount: b.ServiceAmount(),
		PlatformFee:   b.PlatformFee(),
		TotalAmount:   b.TotalAmount(),
		Status:        string(b.Status()),
		CreatedAt:     b.CreatedAt(),
		UpdatedAt:     b.UpdatedAt(),
	}
}

func toBookingDTOs(list []*bookingDomain.Booking) []BookingDTO {
	dtos := make([]BookingDTO, 0, len(list))
	for _, b := range list {
		dtos = append(dtos, toBookingDTO(b))
	}
	return dtos
}
