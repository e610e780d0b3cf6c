package application

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/servilink/service-booking/internal/domain/platformcfg"
)

// UpdateConfigRequest is the DTO for the administrative fee change.
type UpdateConfigRequest struct {
	FeePercentage *int64 `json:"fee_percentage" binding:"required"`
}

// ConfigDTO is the API response DTO for the platform configuration.
type ConfigDTO struct {
	FeePercentage int64     `json:"fee_percentage"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// ConfigService exposes the singleton platform configuration. Fee changes
// apply only to bookings created afterwards; existing bookings keep the
// amounts computed at creation.
type ConfigService struct {
	config platformcfg.Repository
	logger *zap.Logger
}

// NewConfigService creates a new ConfigService.
func NewConfigService(config platformcfg.Repository, logger *zap.Logger) *ConfigService {
	return &ConfigService{config: config, logger: logger}
}

// GetConfig returns the current configuration, creating the default record
// on first use.
func (s *ConfigService) GetConfig(ctx context.Context) (*ConfigDTO, error) {
	cfg, err := s.config.GetOrCreateDefault(ctx)
	if err != nil {
		return nil, err
	}
	return &ConfigDTO{FeePercentage: cfg.FeePercentage, UpdatedAt: cfg.UpdatedAt}, nil
}

// UpdateFeePercentage applies an administrative fee change.
func (s *ConfigService) UpdateFeePercentage(ctx context.Context, req UpdateConfigRequest) (*ConfigDTO, error) {
	cfg, err := s.config.GetOrCreateDefault(ctx)
	if err != nil {
		return nil, err
	}
	if err := cfg.SetFeePercentage(*req.FeePercentage); err != nil {
		return nil, err
	}
	if err := s.config.Update(ctx, cfg); err != nil {
		return nil, err
	}

	s.logger.Info("platform fee updated", zap.Int64("fee_percentage", cfg.FeePercentage))
	return &ConfigDTO{FeePercentage: cfg.FeePercentage, UpdatedAt: cfg.UpdatedAt}, nil
}
