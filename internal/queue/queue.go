package queue

import (
	"context"
	"fmt"
)

// Publisher publishes delivery messages to the work queue.
type Publisher interface {
	Publish(ctx context.Context, msg DeliveryMessage) error
	Close() error
}

// MessageHandler handles a consumed delivery message.
type MessageHandler func(ctx context.Context, msg DeliveryMessage) error

// Consumer consumes delivery messages from the work queue.
type Consumer interface {
	Consume(ctx context.Context, handler MessageHandler) error
	Close() error
}

const (
	// DeliveriesQueue carries notifications waiting for channel fan-out.
	DeliveriesQueue = "notification.deliveries"

	deliveriesRoutingKey = "deliveries"
)

// DLQName returns the dead-letter queue name for a work queue, e.g. notification.deliveries.dlq.
func DLQName(queue string) string {
	return fmt.Sprintf("%s.dlq", queue)
}
