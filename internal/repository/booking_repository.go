package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/servilink/service-booking/internal/domain"
	bookingDomain "github.com/servilink/service-booking/internal/domain/booking"
)

// BookingModel is the GORM persistence model for the bookings table.
type BookingModel struct {
	ID            uuid.UUID       `gorm:"type:uuid;primaryKey"`
	CustomerID    uuid.UUID       `gorm:"type:uuid;not null;index"`
	ServiceID     uuid.UUID       `gorm:"type:uuid;not null"`
	ProviderID    uuid.UUID       `gorm:"type:uuid;not null;index"`
	ScheduledDate time.Time       `gorm:"type:date;not null"`
	TimeSlot      string          `gorm:"type:varchar(50);not null"`
	Address       string          `gorm:"type:text;not null"`
	Notes         string          `gorm:"type:text"`
	ServiceAmount decimal.Decimal `gorm:"type:numeric(12,2);not null"`
	PlatformFee   decimal.Decimal `gorm:"type:numeric(12,2);not null"`
	TotalAmount   decimal.Decimal `gorm:"type:numeric(12,2);not null"`
	Status        string          `gorm:"type:varchar(20);not null;default:'pending';index"`
	Version       int64           `gorm:"not null;default:1"`
	CreatedAt     time.Time       `gorm:"type:timestamptz;not null;default:now()"`
	UpdatedAt     time.Time       `gorm:"type:timestamptz;not null;default:now()"`
}

// TableName specifies the table name for GORM.
func (BookingModel) TableName() string {
	return "bookings"
}

// BookingRepositoryImpl is the GORM-based implementation of booking.Repository.
type BookingRepositoryImpl struct {
	db *gorm.DB
}

// NewBookingRepository creates a new GORM-based booking repository.
func NewBookingRepository(db *gorm.DB) *BookingRepositoryImpl {
	return &BookingRepositoryImpl{db: db}
}

// FindByID retrieves a booking by its unique ID.
func (r *BookingRepositoryImpl) FindByID(ctx context.Context, id uuid.UUID) (*bookingDomain.Booking, error) {
	var model BookingModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("booking", id.String())
		}
		return nil, err
	}
	return toBookingDomain(&model), nil
}

// FindByCustomer retrieves a customer's bookings, newest first.
func (r *BookingRepositoryImpl) FindByCustomer(ctx context.Context, customerID uuid.UUID, page, limit int) ([]*bookingDomain.Booking, int64, error) {
	return r.findBy(ctx, "customer_id = ?", customerID, page, limit)
}

// FindByProvider retrieves a provider's bookings, newest first.
func (r *BookingRepositoryImpl) FindByProvider(ctx context.Context, providerID uuid.UUID, page, limit int) ([]*bookingDomain.Booking, int64, error) {
	return r.findBy(ctx, "provider_id = ?", providerID, page, limit)
}

func (r *BookingRepositoryImpl) findBy(ctx context.Context, cond string, id uuid.UUID, page, limit int) ([]*bookingDomain.Booking, int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&BookingModel{}).Where(cond, id).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var models []BookingModel
	offset := (page - 1) * limit
	if err := r.db.WithContext(ctx).
		Where(cond, id).
		Order("created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&models).Error; err != nil {
		return nil, 0, err
	}

	bookings := make([]*bookingDomain.Booking, len(models))
	for i := range models {
		bookings[i] = toBookingDomain(&models[i])
	}
	return bookings, total, nil
}

// SumCompletedServiceAmount derives a provider's earnings from completed bookings.
func (r *BookingRepositoryImpl) SumCompletedServiceAmount(ctx context.Context, providerID uuid.UUID) (decimal.Decimal, error) {
	var sum decimal.Decimal
	err := r.db.WithContext(ctx).Model(&BookingModel{}).
		Where("provider_id = ? AND status = ?", providerID, string(bookingDomain.StatusCompleted)).
		Select("COALESCE(SUM(service_amount), 0)").
		Scan(&sum).Error
	if err != nil {
		return decimal.Zero, err
	}
	return sum, nil
}

// Save persists a new booking aggregate.
func (r *BookingRepositoryImpl) Save(ctx context.Context, b *bookingDomain.Booking) error {
	model := toBookingModel(b)
	return r.db.WithContext(ctx).Create(model).Error
}

// Update persists changes to an existing booking with optimistic locking.
func (r *BookingRepositoryImpl) Update(ctx context.Context, b *bookingDomain.Booking) error {
	model := toBookingModel(b)
	previousVersion := b.Version() - 1

	result := r.db.WithContext(ctx).
		Model(&BookingModel{}).
		Where("id = ? AND version = ?", model.ID, previousVersion).
		Select("Status", "Version", "UpdatedAt").
		Updates(model)

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.NewConflictError("booking was modified by another transaction")
	}
	return nil
}

func toBookingDomain(m *BookingModel) *bookingDomain.Booking {
	return bookingDomain.Reconstitute(
		m.ID,
		m.CustomerID,
		m.ServiceID,
		m.ProviderID,
		m.ScheduledDate,
		m.TimeSlot,
		m.Address,
		m.Notes,
		m.ServiceAmount,
		m.PlatformFee,
		m.TotalAmount,
		bookingDomain.Status(m.Status),
		m.Version,
		m.CreatedAt,
		m.UpdatedAt,
	)
}

func toBookingModel(b *bookingDomain.Booking) *BookingModel {
	return &BookingModel{
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
		Version:       b.Version(),
		CreatedAt:     b.CreatedAt(),
		UpdatedAt:     b.UpdatedAt(),
	}
}
