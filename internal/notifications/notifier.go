package notifications

import (
	"context"
	"fmt"

	"seatbook/internal/shared/config"
	"seatbook/pkg/logger"
)

const (
	BackendKafka    = "kafka"
	BackendRabbitMQ = "rabbitmq"
	BackendNoop     = "noop"
)

// Notifier publishes booking notifications. Delivery is fire-and-forget for callers.
type Notifier interface {
	Publish(ctx context.Context, notification *BookingNotification) error
	Close() error
}

// New builds the notifier selected by cfg.Backend
func New(cfg config.NotificationConfig) (Notifier, error) {
	switch cfg.Backend {
	case BackendKafka:
		return NewKafkaNotifier(DefaultKafkaProducerConfig(cfg.KafkaBrokers, cfg.KafkaTopic))
	case BackendRabbitMQ:
		return NewAMQPNotifier(cfg.AMQPURL, cfg.AMQPQueue)
	case BackendNoop, "":
		return NoopNotifier{}, nil
	default:
		return nil, fmt.Errorf("unknown notifier backend %q", cfg.Backend)
	}
}

// NoopNotifier only logs
type NoopNotifier struct{}

func (NoopNotifier) Publish(ctx context.Context, notification *BookingNotification) error {
	logger.GetDefault().InfoWithContext(ctx, "notification skipped", map[string]interface{}{
		"type":       string(notification.Type),
		"booking_id": notification.BookingID.String(),
	})
	return nil
}

func (NoopNotifier) Close() error {
	return nil
}
