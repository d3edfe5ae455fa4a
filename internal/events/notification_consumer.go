package events

import (
	"context"

	"github.com/motobiketours/service-booking/internal/notification"
	"github.com/motobiketours/service-booking/internal/platform/kafka"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Deliverer sends a rendered notification to the customer.
type Deliverer interface {
	Deliver(ctx context.Context, kind notification.Kind, b notification.Booking) error
}

// NotificationConsumer drains the notifications topic into email.
type NotificationConsumer struct {
	consumer  *kafka.Consumer
	deliverer Deliverer
	logger    *zap.Logger
}

// NewNotificationConsumer creates a new NotificationConsumer.
func NewNotificationConsumer(
	brokers []string,
	groupID string,
	topic string,
	deliverer Deliverer,
	logger *zap.Logger,
) *NotificationConsumer {
	return &NotificationConsumer{
		consumer:  kafka.NewConsumer(brokers, groupID, topic, logger),
		deliverer: deliverer,
		logger:    logger,
	}
}

// Start begins consuming notification events. This blocks until the context is cancelled.
func (c *NotificationConsumer) Start(ctx context.Context) error {
	return c.consumer.Consume(ctx, c.handleMessage)
}

// Close closes the underlying Kafka consumer.
func (c *NotificationConsumer) Close() error {
	return c.consumer.Close()
}

func (c *NotificationConsumer) handleMessage(ctx context.Context, msg kafkago.Message) error {
	cloudEvent, err := kafka.ParseCloudEvent(msg.Value)
	if err != nil {
		c.logger.Error("failed to parse cloud event from notifications topic",
			zap.Error(err),
			zap.String("raw", string(msg.Value)),
		)
		return nil // Don't retry malformed messages
	}

	kind := notification.Kind(cloudEvent.Type)
	if !kind.IsValid() {
		c.logger.Debug("ignoring unhandled notification event type",
			zap.String("type", cloudEvent.Type),
		)
		return nil
	}

	var b notification.Booking
	if err := cloudEvent.ParseData(&b); err != nil {
		c.logger.Error("failed to parse notification data",
			zap.String("type", cloudEvent.Type),
			zap.Error(err),
		)
		return nil // Don't retry malformed data
	}

	if err := c.deliverer.Deliver(ctx, kind, b); err != nil {
		c.logger.Error("failed to deliver notification",
			zap.String("type", cloudEvent.Type),
			zap.String("booking_id", b.BookingID.String()),
			zap.Error(err),
		)
		return err
	}
	return nil
}
