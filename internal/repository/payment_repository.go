package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/servilink/service-booking/internal/domain"
	paymentDomain "github.com/servilink/service-booking/internal/domain/payment"
)

// PaymentModel is the GORM persistence model for the payments table.
type PaymentModel struct {
	ID               uuid.UUID       `gorm:"type:uuid;primaryKey"`
	BookingID        uuid.UUID       `gorm:"type:uuid;uniqueIndex;not null"`
	CustomerID       uuid.UUID       `gorm:"type:uuid;not null"`
	ProviderID       uuid.UUID       `gorm:"type:uuid;not null;index"`
	Amount           decimal.Decimal `gorm:"type:numeric(12,2);not null"`
	PlatformFee      decimal.Decimal `gorm:"type:numeric(12,2);not null"`
	ProviderAmount   decimal.Decimal `gorm:"type:numeric(12,2);not null"`
	Currency         string          `gorm:"type:varchar(3);not null"`
	GatewayOrderID   string          `gorm:"type:varchar(255);index"`
	GatewayPaymentID string          `gorm:"type:varchar(255)"`
	GatewaySignature string          `gorm:"type:varchar(255)"`
	RefundID         string          `gorm:"type:varchar(255)"`
	RefundReason     string          `gorm:"type:text"`
	Status           string          `gorm:"type:varchar(20);not null;default:'pending';index"`
	Version          int64           `gorm:"not null;default:1"`
	CreatedAt        time.Time       `gorm:"type:timestamptz;not null;default:now()"`
	UpdatedAt        time.Time       `gorm:"type:timestamptz;not null;default:now()"`
}

// TableName specifies the table name for GORM.
func (PaymentModel) TableName() string {
	return "payments"
}

// PaymentRepositoryImpl is the GORM-based implementation of payment.Repository.
type PaymentRepositoryImpl struct {
	db *gorm.DB
}

// NewPaymentRepository creates a new GORM-based payment repository.
func NewPaymentRepository(db *gorm.DB) *PaymentRepositoryImpl {
	return &PaymentRepositoryImpl{db: db}
}

// FindByID retrieves a payment by its unique ID.
func (r *PaymentRepositoryImpl) FindByID(ctx context.Context, id uuid.UUID) (*paymentDomain.Payment, error) {
	return r.findOne(ctx, "id = ?", id.String())
}

// FindByBookingID retrieves the payment for a booking.
func (r *PaymentRepositoryImpl) FindByBookingID(ctx context.Context, bookingID uuid.UUID) (*paymentDomain.Payment, error) {
	return r.findOne(ctx, "booking_id = ?", bookingID.String())
}

// FindByGatewayOrderID retrieves the payment correlated with a gateway order.
func (r *PaymentRepositoryImpl) FindByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*paymentDomain.Payment, error) {
	return r.findOne(ctx, "gateway_order_id = ?", gatewayOrderID)
}

func (r *PaymentRepositoryImpl) findOne(ctx context.Context, cond, arg string) (*paymentDomain.Payment, error) {
	var model PaymentModel
	if err := r.db.WithContext(ctx).Where(cond, arg).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("payment", arg)
		}
		return nil, err
	}
	return toPaymentDomain(&model), nil
}

// Save persists a new payment aggregate.
func (r *PaymentRepositoryImpl) Save(ctx context.Context, p *paymentDomain.Payment) error {
	model := toPaymentModel(p)
	return r.db.WithContext(ctx).Create(model).Error
}

// Update persists changes to an existing payment with optimistic locking.
func (r *PaymentRepositoryImpl) Update(ctx context.Context, p *paymentDomain.Payment) error {
	model := toPaymentModel(p)
	previousVersion := p.Version() - 1

	result := r.db.WithContext(ctx).
		Model(&PaymentModel{}).
		Where("id = ? AND version = ?", model.ID, previousVersion).
		Select("Amount", "PlatformFee", "ProviderAmount", "GatewayOrderID",
			"GatewayPaymentID", "GatewaySignature", "RefundID", "RefundReason",
			"Status", "Version", "UpdatedAt").
		Updates(model)

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.NewConflictError("payment was modified by another transaction")
	}
	return nil
}

// ListAll retrieves all payments with pagination (admin).
func (r *PaymentRepositoryImpl) ListAll(ctx context.Context, page, limit int) ([]*paymentDomain.Payment, int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&PaymentModel{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var models []PaymentModel
	offset := (page - 1) * limit
	if err := r.db.WithContext(ctx).Order("created_at DESC").Offset(offset).Limit(limit).Find(&models).Error; err != nil {
		return nil, 0, err
	}

	payments := make([]*paymentDomain.Payment, len(models))
	for i := range models {
		payments[i] = toPaymentDomain(&models[i])
	}
	return payments, total, nil
}

// GetRevenueStats returns total platform fees from completed payments and
// counts by status (admin).
func (r *PaymentRepositoryImpl) GetRevenueStats(ctx context.Context) (decimal.Decimal, map[string]int64, error) {
	var totalFees decimal.Decimal
	if err := r.db.WithContext(ctx).Model(&PaymentModel{}).
		Where("status = ?", string(paymentDomain.StatusCompleted)).
		Select("COALESCE(SUM(platform_fee), 0)").
		Scan(&totalFees).Error; err != nil {
		return decimal.Zero, nil, err
	}

	type statusCount struct {
		Status string
		Count  int64
	}
	var results []statusCount
	if err := r.db.WithContext(ctx).Model(&PaymentModel{}).
		Select("status, count(*) as count").
		Group("status").
		Find(&results).Error; err != nil {
		return decimal.Zero, nil, err
	}

	counts := make(map[string]int64)
	for _, sc := range results {
		counts[sc.Status] = sc.Count
	}
	return totalFees, counts, nil
}

func toPaymentDomain(m *PaymentModel) *paymentDomain.Payment {
	return paymentDomain.Reconstitute(
		m.ID,
		m.BookingID,
		m.CustomerID,
		m.ProviderID,
		m.Amount,
		m.PlatformFee,
		m.ProviderAmount,
		m.Currency,
		m.GatewayOrderID,
		m.GatewayPaymentID,
		m.GatewaySignature,
		m.RefundID,
		m.RefundReason,
		paymentDomain.Status(m.Status),
		m.Version,
		m.CreatedAt,
		m.UpdatedAt,
	)
}

func toPaymentModel(p *paymentDomain.Payment) *PaymentModel {
	return &PaymentModel{
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
		GatewaySignature: p.GatewaySignature(),
		RefundID:         p.RefundID(),
		RefundReason:     p.RefundReason(),
		Status:           string(p.Status()),
		Version:          p.Version(),
		CreatedAt:        p.CreatedAt(),
		UpdatedAt:        p.UpdatedAt(),
	}
}
