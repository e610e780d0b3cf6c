package events

import (
	"context"
	"strings"

	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/servilink/service-booking/internal/domain/catalog"
	"github.com/servilink/service-booking/internal/platform/kafka"
)

// CatalogEventConsumer keeps the local catalog read model in sync with the
// external catalog service.
type CatalogEventConsumer struct {
	consumer *kafka.Consumer
	services catalog.Repository
	logger   *zap.Logger
}

// NewCatalogEventConsumer creates a consumer for catalog events.
func NewCatalogEventConsumer(brokers []string, groupID string, services catalog.Repository, logger *zap.Logger) *CatalogEventConsumer {
	consumer := kafka.NewConsumer(brokers, groupID, TopicCatalogEvents, logger)
	return &CatalogEventConsumer{
		consumer: consumer,
		services: services,
		logger:   logger,
	}
}

// Start begins consuming catalog events. It blocks until ctx is cancelled.
func (c *CatalogEventConsumer) Start(ctx context.Context) error {
	return c.consumer.Consume(ctx, c.handleMessage)
}

func (c *CatalogEventConsumer) handleMessage(ctx context.Context, msg kafkago.Message) error {
	ce, err := kafka.ParseCloudEvent(msg.Value)
	if err != nil {
		c.logger.Error("failed to parse cloud event from catalog topic",
			zap.Error(err),
			zap.String("raw", string(msg.Value)),
		)
		return err
	}

	switch {
	case strings.EqualFold(ce.Type, ServiceUpserted):
		return c.handleUpserted(ctx, ce)

	case strings.EqualFold(ce.Type, ServiceDeleted):
		return c.handleDeleted(ctx, ce)

	default:
		c.logger.Debug("ignoring unhandled catalog event type", zap.String("type", ce.Type))
		return nil
	}
}

func (c *CatalogEventConsumer) handleUpserted(ctx context.Context, ce kafka.CloudEvent) error {
	var event ServiceUpsertedEvent
	if err := ce.ParseData(&event); err != nil {
		c.logger.Error("failed to parse ServiceUpsertedEvent data", zap.Error(err))
		return err
	}

	return c.services.Upsert(ctx, &catalog.Service{
		ID:         event.ServiceID,
		ProviderID: event.ProviderID,
		Title:      event.Title,
		Price:      event.Price,
		Active:     event.Active,
		UpdatedAt:  event.OccurredAt,
	})
}

func (c *CatalogEventConsumer) handleDeleted(ctx context.Context, ce kafka.CloudEvent) error {
	var event ServiceDeletedEvent
	if err := ce.ParseData(&event); err != nil {
		c.logger.Error("failed to parse ServiceDeletedEvent data", zap.Error(err))
		return err
	}

	return c.services.Delete(ctx, event.ServiceID)
}

// Close closes the underlying Kafka consumer.
func (c *CatalogEventConsumer) Close() error {
	return c.consumer.Close()
}
