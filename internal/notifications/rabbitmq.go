package notifications

import (
	"context"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
)

// AMQPNotifier publishes booking notifications to a durable RabbitMQ queue
type AMQPNotifier struct {
	conn  *amqp.Connection
	queue string

	mu sync.Mutex
	ch *amqp.Channel
}

func NewAMQPNotifier(url, queue string) (*AMQPNotifier, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("rabbitmq: dial failed: %w", err)
	}

	n := &AMQPNotifier{conn: conn, queue: queue}
	if _, err := n.channel(); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return n, nil
}

// channel returns the open channel, reopening it after a channel-level error. Callers hold mu.
func (n *AMQPNotifier) channel() (*amqp.Channel, error) {
	if n.ch != nil && !n.ch.IsClosed() {
		return n.ch, nil
	}

	ch, err := n.conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("rabbitmq: channel open failed: %w", err)
	}
	if _, err := ch.QueueDeclare(
		n.queue, // name
		true,    // durable
		false,   // autoDelete
		false,   // exclusive
		false,   // noWait
		nil,     // args
	); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("rabbitmq: queue declare failed: %w", err)
	}
	n.ch = ch
	return ch, nil
}

func (n *AMQPNotifier) Publish(ctx context.Context, notification *BookingNotification) error {
	body, err := notification.ToJSON()
	if err != nil {
		return fmt.Errorf("rabbitmq: marshal notification failed: %w", err)
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	ch, err := n.channel()
	if err != nil {
		return err
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    notification.ID.String(),
		Type:         string(notification.Type),
		Timestamp:    notification.OccurredAt.UTC(),
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx,
		"",      // default exchange
		n.queue, // routing key = queue name
		false,   // mandatory
		false,   // immediate
		pub,
	); err != nil {
		return fmt.Errorf("rabbitmq: publish failed: %w", err)
	}
	return nil
}

func (n *AMQPNotifier) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.ch != nil {
		_ = n.ch.Close()
	}
	if err := n.conn.Close(); err != nil {
		return fmt.Errorf("rabbitmq: close failed: %w", err)
	}
	return nil
}
