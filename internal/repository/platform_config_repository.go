package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/servilink/service-booking/internal/domain/platformcfg"
)

// PlatformConfigModel is the GORM model for the singleton platform_config row.
type PlatformConfigModel struct {
	ID            int16     `gorm:"primaryKey"`
	FeePercentage int64     `gorm:"not null"`
	UpdatedAt     time.Time `gorm:"type:timestamptz;not null;default:now()"`
}

// TableName specifies the table name for GORM.
func (PlatformConfigModel) TableName() string {
	return "platform_config"
}

// singletonID pins the table to one row.
const singletonID int16 = 1

// PlatformConfigRepositoryImpl is the GORM-based implementation of
// platformcfg.Repository.
type PlatformConfigRepositoryImpl struct {
	db *gorm.DB
}

// NewPlatformConfigRepository creates a new GORM-based config repository.
func NewPlatformConfigRepository(db *gorm.DB) *PlatformConfigRepositoryImpl {
	return &PlatformConfigRepositoryImpl{db: db}
}

// GetOrCreateDefault returns the config, lazily creating it with the default
// fee on first use. The insert ignores conflicts so concurrent first readers
// converge on one row.
func (r *PlatformConfigRepositoryImpl) GetOrCreateDefault(ctx context.Context) (*platformcfg.Config, error) {
	seed := PlatformConfigModel{
		ID:            singletonID,
		FeePercentage: platformcfg.DefaultFeePercentage,
		UpdatedAt:     time.Now().UTC(),
	}
	if err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&seed).Error; err != nil {
		return nil, err
	}

	var model PlatformConfigModel
	if err := r.db.WithContext(ctx).Where("id = ?", singletonID).First(&model).Error; err != nil {
		return nil, err
	}

	return &platformcfg.Config{
		FeePercentage: model.FeePercentage,
		UpdatedAt:     model.UpdatedAt,
	}, nil
}

// Update persists an administrative change to the singleton row.
func (r *PlatformConfigRepositoryImpl) Update(ctx context.Context, c *platformcfg.Config) error {
	return r.db.WithContext(ctx).
		Model(&PlatformConfigModel{}).
		Where("id = ?", singletonID).
		Updates(map[string]any{
			"fee_percentage": c.FeePercentage,
			"updated_at":     c.UpdatedAt,
		}).Error
}
