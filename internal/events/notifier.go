package events

import (
	"context"

	"github.com/motobiketours/service-booking/internal/application"
	"github.com/motobiketours/service-booking/internal/notification"
	"github.com/motobiketours/service-booking/internal/platform/kafka"
	"go.uber.org/zap"
)

// Source identifies this service in published CloudEvents.
const Source = "motobike-tours/service-booking"

// EventPublisher writes CloudEvents to a topic.
type EventPublisher interface {
	PublishEvent(ctx context.Context, topic string, ce kafka.CloudEvent) error
}

// KafkaNotifier hands customer notifications to the notifications topic
// instead of sending them inline.
type KafkaNotifier struct {
	publisher EventPublisher
	topic     string
	logger    *zap.Logger
}

// NewKafkaNotifier creates a new KafkaNotifier.
func NewKafkaNotifier(publisher EventPublisher, topic string, logger *zap.Logger) *KafkaNotifier {
	return &KafkaNotifier{publisher: publisher, topic: topic, logger: logger}
}

func (n *KafkaNotifier) SendBookingConfirmation(ctx context.Context, b application.BookingDTO) error {
	return n.publish(ctx, notification.BookingConfirmed, b)
}

func (n *KafkaNotifier) SendBookingCancellation(ctx context.Context, b application.BookingDTO) error {
	return n.publish(ctx, notification.BookingCancelled, b)
}

func (n *KafkaNotifier) SendPaymentSuccess(ctx context.Context, b application.BookingDTO) error {
	return n.publish(ctx, notification.PaymentSucceeded, b)
}

func (n *KafkaNotifier) publish(ctx context.Context, kind notification.Kind, b application.BookingDTO) error {
	ce, err := kafka.NewCloudEvent(Source, string(kind), notification.FromBookingDTO(b))
	if err != nil {
		return err
	}
	ce.Subject = b.ID.String()

	if err := n.publisher.PublishEvent(ctx, n.topic, ce); err != nil {
		n.logger.Error("failed to publish notification event",
			zap.String("type", ce.Type),
			zap.String("booking_id", ce.Subject),
			zap.Error(err),
		)
		return err
	}
	return nil
}
