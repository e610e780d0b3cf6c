package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/servilink/service-booking/internal/domain"
	"github.com/servilink/service-booking/internal/domain/catalog"
)

// ServiceModel is the GORM model for the catalog_services read-model table.
type ServiceModel struct {
	ID         uuid.UUID       `gorm:"type:uuid;primaryKey"`
	ProviderID uuid.UUID       `gorm:"type:uuid;not null;index"`
	Title      string          `gorm:"type:varchar(255);not null"`
	Price      decimal.Decimal `gorm:"type:numeric(12,2);not null"`
	Active     bool            `gorm:"not null;default:true"`
	UpdatedAt  time.Time       `gorm:"type:timestamptz;not null;default:now()"`
}

// TableName specifies the table name for GORM.
func (ServiceModel) TableName() string {
	return "catalog_services"
}

// ServiceRepositoryImpl is the GORM-based implementation of catalog.Repository.
type ServiceRepositoryImpl struct {
	db *gorm.DB
}

// NewServiceRepository creates a new GORM-based catalog read-model repository.
func NewServiceRepository(db *gorm.DB) *ServiceRepositoryImpl {
	return &ServiceRepositoryImpl{db: db}
}

// FindByID retrieves one catalog entry.
func (r *ServiceRepositoryImpl) FindByID(ctx context.Context, id uuid.UUID) (*catalog.Service, error) {
	var model ServiceModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("service", id.String())
		}
		return nil, err
	}
	return &catalog.Service{
		ID:         model.ID,
		ProviderID: model.ProviderID,
		Title:      model.Title,
		Price:      model.Price,
		Active:     model.Active,
		UpdatedAt:  model.UpdatedAt,
	}, nil
}

// Upsert creates or replaces a catalog entry. Stale events are ignored by
// comparing update timestamps.
func (r *ServiceRepositoryImpl) Upsert(ctx context.Context, s *catalog.Service) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"provider_id", "title", "price", "active", "updated_at",
			}),
			Where: clause.Where{Exprs: []clause.Expression{
				gorm.Expr("catalog_services.updated_at <= ?", s.UpdatedAt),
			}},
		}).
		Create(&ServiceModel{
			ID:         s.ID,
			ProviderID: s.ProviderID,
			Title:      s.Title,
			Price:      s.Price,
			Active:     s.Active,
			UpdatedAt:  s.UpdatedAt,
		}).Error
}

// Delete removes a catalog entry.
func (r *ServiceRepositoryImpl) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&ServiceModel{}).Error
}
