package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/servilink/service-booking/internal/domain/earnings"
)

// ProviderEarningsModel is the GORM model for the provider_earnings table.
type ProviderEarningsModel struct {
	ProviderID uuid.UUID       `gorm:"type:uuid;primaryKey"`
	Total      decimal.Decimal `gorm:"type:numeric(14,2);not null;default:0"`
	UpdatedAt  time.Time       `gorm:"type:timestamptz;not null;default:now()"`
}

// TableName specifies the table name for GORM.
func (ProviderEarningsModel) TableName() string {
	return "provider_earnings"
}

// EarningsEntryModel records one credit per completed booking. The booking id
// primary key makes crediting idempotent.
type EarningsEntryModel struct {
	BookingID  uuid.UUID       `gorm:"type:uuid;primaryKey"`
	ProviderID uuid.UUID       `gorm:"type:uuid;not null;index"`
	Amount     decimal.Decimal `gorm:"type:numeric(12,2);not null"`
	CreatedAt  time.Time       `gorm:"type:timestamptz;not null;default:now()"`
}

// TableName specifies the table name for GORM.
func (EarningsEntryModel) TableName() string {
	return "provider_earnings_entries"
}

// EarningsRepositoryImpl is the GORM-based implementation of earnings.Repository.
type EarningsRepositoryImpl struct {
	db *gorm.DB
}

// NewEarningsRepository creates a new GORM-based earnings repository.
func NewEarningsRepository(db *gorm.DB) *EarningsRepositoryImpl {
	return &EarningsRepositoryImpl{db: db}
}

// Credit atomically increases the provider's total, creating the row on
// first credit. The entry insert and the counter increment share one
// transaction keyed by booking id: a duplicate credit hits the entry's
// primary key, inserts nothing and leaves the counter untouched.
func (r *EarningsRepositoryImpl) Credit(ctx context.Context, providerID, bookingID uuid.UUID, amount decimal.Decimal) error {
	now := time.Now().UTC()
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		entry := tx.Clauses(clause.OnConflict{DoNothing: true}).
			Create(&EarningsEntryModel{
				BookingID:  bookingID,
				ProviderID: providerID,
				Amount:     amount,
				CreatedAt:  now,
			})
		if entry.Error != nil {
			return entry.Error
		}
		if entry.RowsAffected == 0 {
			// Already credited for this booking.
			return nil
		}

		return tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "provider_id"}},
			DoUpdates: clause.Assignments(map[string]any{
				"total":      gorm.Expr("provider_earnings.total + ?", amount),
				"updated_at": now,
			}),
		}).
			Create(&ProviderEarningsModel{
				ProviderID: providerID,
				Total:      amount,
				UpdatedAt:  now,
			}).Error
	})
}

// TotalFor returns the provider's current total, zero when never credited.
func (r *EarningsRepositoryImpl) TotalFor(ctx context.Context, providerID uuid.UUID) (decimal.Decimal, error) {
	var model ProviderEarningsModel
	if err := r.db.WithContext(ctx).Where("provider_id = ?", providerID).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return decimal.Zero, nil
		}
		return decimal.Zero, err
	}
	return model.Total, nil
}

var _ earnings.Repository = (*EarningsRepositoryImpl)(nil)
