package queue

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

const (
	dlxExchangeName   = "notify.dlx"
	connectionName    = "notify-dispatcher"
	heartbeatInterval = 10 * time.Second
	initialDialWait   = 15 * time.Second
	minRedialBackoff  = time.Second
	maxRedialBackoff  = 30 * time.Second
)

// RabbitMQ owns one broker connection shared by publishers and consumers. A dropped
// connection is redialed on the next channel request.
type RabbitMQ struct {
	url    string
	logger *zap.Logger

	dialMu   sync.Mutex
	mu       sync.Mutex
	conn     *amqp.Connection
	declared bool
}

func NewRabbitMQ(url string, logger *zap.Logger) (*RabbitMQ, error) {
	if strings.TrimSpace(url) == "" {
		return nil, fmt.Errorf("rabbitmq url is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	r := &RabbitMQ{url: url, logger: logger}

	ctx, cancel := context.WithTimeout(context.Background(), initialDialWait)
	defer cancel()

	if _, err := r.connection(ctx); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *RabbitMQ) Close() error {
	r.mu.Lock()
	conn := r.conn
	r.conn = nil
	r.declared = false
	r.mu.Unlock()

	if conn == nil || conn.IsClosed() {
		return nil
	}
	return conn.Close()
}

// Healthcheck reports whether the broker connection is open.
func (r *RabbitMQ) Healthcheck(context.Context) error {
	r.mu.Lock()
	conn := r.conn
	r.mu.Unlock()

	if conn == nil || conn.IsClosed() {
		return fmt.Errorf("rabbitmq connection is closed")
	}
	return nil
}

// channel opens a channel on a live connection, declaring the delivery topology the first
// time a connection is used.
func (r *RabbitMQ) channel(ctx context.Context) (*amqp.Channel, error) {
	conn, err := r.connection(ctx)
	if err != nil {
		return nil, err
	}

	ch, err := conn.Channel()
	if err != nil {
		// The connection can die between the liveness check and Channel; drop it and redial once.
		r.discard(conn)
		if conn, err = r.connection(ctx); err != nil {
			return nil, err
		}
		if ch, err = conn.Channel(); err != nil {
			return nil, fmt.Errorf("failed to open rabbitmq channel: %w", err)
		}
	}

	r.mu.Lock()
	declared := r.declared && r.conn == conn
	r.mu.Unlock()
	if declared {
		return ch, nil
	}

	if err := declareTopology(ch); err != nil {
		_ = ch.Close()
		return nil, err
	}

	r.mu.Lock()
	if r.conn == conn {
		r.declared = true
	}
	r.mu.Unlock()

	return ch, nil
}

// connection returns the current connection, dialing with exponential backoff until ctx ends.
func (r *RabbitMQ) connection(ctx context.Context) (*amqp.Connection, error) {
	r.dialMu.Lock()
	defer r.dialMu.Unlock()

	r.mu.Lock()
	current := r.conn
	r.mu.Unlock()
	if current != nil && !current.IsClosed() {
		return current, nil
	}

	wait := minRedialBackoff
	for attempt := 1; ; attempt++ {
		conn, err := amqp.DialConfig(r.url, amqp.Config{
			Heartbeat:  heartbeatInterval,
			Properties: amqp.Table{"connection_name": connectionName},
		})
		if err == nil {
			r.mu.Lock()
			r.conn = conn
			r.declared = false
			r.mu.Unlock()
			if attempt > 1 {
				r.logger.Info("rabbitmq connection restored", zap.Int("attempts", attempt))
			}
			return conn, nil
		}

		r.logger.Warn("rabbitmq dial failed",
			zap.Int("attempt", attempt),
			zap.Duration("retryIn", wait),
			zap.Error(err),
		)

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("rabbitmq dial canceled: %w", ctx.Err())
		case <-time.After(wait):
		}
		wait = nextRedialBackoff(wait)
	}
}

func (r *RabbitMQ) discard(conn *amqp.Connection) {
	r.mu.Lock()
	if r.conn == conn {
		r.conn = nil
		r.declared = false
	}
	r.mu.Unlock()

	if conn != nil && !conn.IsClosed() {
		_ = conn.Close()
	}
}

func nextRedialBackoff(current time.Duration) time.Duration {
	return min(current*2, maxRedialBackoff)
}

// declareTopology declares the deliveries queue and its dead-letter route.
func declareTopology(ch *amqp.Channel) error {
	if err := ch.ExchangeDeclare(dlxExchangeName, amqp.ExchangeDirect, true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare dlx exchange: %w", err)
	}

	dlqName := DLQName(DeliveriesQueue)
	if _, err := ch.QueueDeclare(dlqName, true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare dlq %q: %w", dlqName, err)
	}
	if err := ch.QueueBind(dlqName, deliveriesRoutingKey, dlxExchangeName, false, nil); err != nil {
		return fmt.Errorf("failed to bind dlq %q: %w", dlqName, err)
	}

	args := amqp.Table{
		"x-dead-letter-exchange":    dlxExchangeName,
		"x-dead-letter-routing-key": deliveriesRoutingKey,
	}
	if _, err := ch.QueueDeclare(DeliveriesQueue, true, false, false, false, args); err != nil {
		return fmt.Errorf("failed to declare queue %q: %w", DeliveriesQueue, err)
	}
	return nil
}
