package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const kindHeader = "x-notification-kind"

// RabbitMQPublisher publishes delivery messages on a confirm-mode channel and waits for the
// broker ack before returning.
type RabbitMQPublisher struct {
	client *RabbitMQ
	now    func() time.Time
}

func NewRabbitMQPublisher(client *RabbitMQ) *RabbitMQPublisher {
	return &RabbitMQPublisher{client: client, now: time.Now}
}

func (p *RabbitMQPublisher) Publish(ctx context.Context, msg DeliveryMessage) error {
	if p == nil || p.client == nil {
		return fmt.Errorf("publisher is not initialized")
	}

	publishing, err := newPublishing(msg, p.now().UTC())
	if err != nil {
		return err
	}

	ch, err := p.client.channel(ctx)
	if err != nil {
		return err
	}
	defer ch.Close() //nolint:errcheck

	if err := ch.Confirm(false); err != nil {
		return fmt.Errorf("failed to enable publisher confirms: %w", err)
	}

	confirm, err := ch.PublishWithDeferredConfirmWithContext(ctx, "", DeliveriesQueue, true, false, publishing)
	if err != nil {
		return fmt.Errorf("failed to publish %s to queue %q: %w", msg.NotificationID, DeliveriesQueue, err)
	}

	acked, err := confirm.WaitContext(ctx)
	if err != nil {
		return fmt.Errorf("waiting for broker confirm of %s: %w", msg.NotificationID, err)
	}
	if !acked {
		return fmt.Errorf("broker nacked delivery message %s", msg.NotificationID)
	}
	return nil
}

func (p *RabbitMQPublisher) Close() error {
	if p == nil || p.client == nil {
		return nil
	}
	return p.client.Close()
}

// newPublishing builds the persistent AMQP message for msg. The notification id doubles as
// the message id so duplicate publishes can be spotted on the broker.
func newPublishing(msg DeliveryMessage, at time.Time) (amqp.Publishing, error) {
	if err := msg.Validate(); err != nil {
		return amqp.Publishing{}, fmt.Errorf("invalid delivery message: %w", err)
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return amqp.Publishing{}, fmt.Errorf("failed to marshal delivery message: %w", err)
	}

	publishing := amqp.Publishing{
		ContentType:   "application/json",
		DeliveryMode:  amqp.Persistent,
		Timestamp:     at,
		MessageId:     msg.NotificationID,
		CorrelationId: msg.CorrelationID,
		Body:          body,
	}
	if msg.Kind != "" {
		publishing.Type = msg.Kind
		publishing.Headers = amqp.Table{kindHeader: msg.Kind}
	}
	return publishing, nil
}
