package notifications

import (
	"context"
	"fmt"
	"time"

	"seatbook/pkg/logger"

	"github.com/IBM/sarama"
)

// KafkaProducerConfig contains configuration for the Kafka notification producer
type KafkaProducerConfig struct {
	Brokers          []string
	Topic            string
	RetryMax         int
	Timeout          time.Duration
	RequiredAcks     sarama.RequiredAcks
	CompressionType  sarama.CompressionCodec
	IdempotentWrites bool
	MaxMessageBytes  int
}

// DefaultKafkaProducerConfig returns a producer configuration for the given brokers and topic
func DefaultKafkaProducerConfig(brokers []string, topic string) *KafkaProducerConfig {
	return &KafkaProducerConfig{
		Brokers:          brokers,
		Topic:            topic,
		RetryMax:         3,
		Timeout:          10 * time.Second,
		RequiredAcks:     sarama.WaitForAll,
		CompressionType:  sarama.CompressionSnappy,
		IdempotentWrites: true,
		MaxMessageBytes:  1000000,
	}
}

// KafkaNotifier publishes booking notifications to a Kafka topic
type KafkaNotifier struct {
	producer sarama.SyncProducer
	topic    string
}

// NewKafkaNotifier creates a sync producer for config
func NewKafkaNotifier(config *KafkaProducerConfig) (*KafkaNotifier, error) {
	saramaConfig := sarama.NewConfig()

	saramaConfig.Producer.Return.Successes = true
	saramaConfig.Producer.Return.Errors = true
	saramaConfig.Producer.RequiredAcks = config.RequiredAcks
	saramaConfig.Producer.Compression = config.CompressionType
	saramaConfig.Producer.Retry.Max = config.RetryMax
	saramaConfig.Producer.Timeout = config.Timeout
	saramaConfig.Producer.Idempotent = config.IdempotentWrites
	saramaConfig.Producer.MaxMessageBytes = config.MaxMessageBytes
	if config.IdempotentWrites {
		saramaConfig.Net.MaxOpenRequests = 1
	}
	saramaConfig.Producer.Partitioner = sarama.NewHashPartitioner

	producer, err := sarama.NewSyncProducer(config.Brokers, saramaConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka producer: %w", err)
	}

	logger.GetDefault().Info("Kafka notifier created", "brokers", config.Brokers, "topic", config.Topic)
	return NewKafkaNotifierWithProducer(producer, config.Topic), nil
}

// NewKafkaNotifierWithProducer wraps an existing producer
func NewKafkaNotifierWithProducer(producer sarama.SyncProducer, topic string) *KafkaNotifier {
	return &KafkaNotifier{producer: producer, topic: topic}
}

func (k *KafkaNotifier) Publish(ctx context.Context, notification *BookingNotification) error {
	payload, err := notification.ToJSON()
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	message := &sarama.ProducerMessage{
		Topic:     k.topic,
		Key:       sarama.StringEncoder(notification.GetPartitionKey()),
		Value:     sarama.ByteEncoder(payload),
		Headers:   createHeaders(notification),
		Timestamp: notification.OccurredAt,
	}

	partition, offset, err := k.producer.SendMessage(message)
	if err != nil {
		return fmt.Errorf("failed to send notification to Kafka: %w", err)
	}

	logger.GetDefault().InfoWithContext(ctx, "notification published", map[string]interface{}{
		"topic":      k.topic,
		"partition":  partition,
		"offset":     offset,
		"type":       string(notification.Type),
		"booking_id": notification.BookingID.String(),
	})
	return nil
}

func createHeaders(notification *BookingNotification) []sarama.RecordHeader {
	return []sarama.RecordHeader{
		{Key: []byte("notification_id"), Value: []byte(notification.ID.String())},
		{Key: []byte("notification_type"), Value: []byte(notification.Type)},
		{Key: []byte("booking_id"), Value: []byte(notification.BookingID.String())},
		{Key: []byte("event_id"), Value: []byte(notification.EventID.String())},
		{Key: []byte("producer"), Value: []byte("seatbook")},
	}
}

func (k *KafkaNotifier) Close() error {
	if k.producer == nil {
		return nil
	}
	if err := k.producer.Close(); err != nil {
		return fmt.Errorf("failed to close Kafka producer: %w", err)
	}
	return nil
}
