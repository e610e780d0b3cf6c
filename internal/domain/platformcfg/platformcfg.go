// Package platformcfg holds the singleton platform configuration record.
package platformcfg

import (
	"context"
	"time"

	"github.com/servilink/service-booking/internal/domain"
	"github.com/servilink/service-booking/internal/domain/pricing"
)

// DefaultFeePercentage is applied when the record is lazily created on first use.
const DefaultFeePercentage = 10

// Config is the singleton platform configuration. It is created lazily on
// the first booking if absent and mutated only by an administrative action.
type Config struct {
	FeePercentage int64
	UpdatedAt     time.Time
}

// SetFeePercentage validates and applies a new platform fee percentage.
func (c *Config) SetFeePercentage(pct int64) error {
	if pct < 0 || pct > pricing.MaxFeePercentage {
		return domain.NewInvalidInputError("fee percentage must be between 0 and 50")
	}
	c.FeePercentage = pct
	c.UpdatedAt = time.Now().UTC()
	return nil
}

// Repository defines persistence for the singleton config record.
type Repository interface {
	// GetOrCreateDefault returns the config, creating it with
	// DefaultFeePercentage when absent.
	GetOrCreateDefault(ctx context.Context) (*Config, error)

	// Update persists an administrative change.
	Update(ctx context.Context, c *Config) error
}
