package service

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/kursadbilgin/notify-dispatcher/internal/domain"
	"github.com/kursadbilgin/notify-dispatcher/internal/observability"
	"github.com/kursadbilgin/notify-dispatcher/internal/queue"
)

func TestWorkerServiceProcessMessage(t *testing.T) {
	t.Parallel()

	deliverErr := errors.New("store unavailable")

	tests := []struct {
		name       string
		deliverErr error
		wantErr    error
	}{
		{name: "delivered", deliverErr: nil, wantErr: nil},
		{name: "missing record is acked", deliverErr: fmt.Errorf("lookup: %w", domain.ErrNotFound), wantErr: nil},
		{name: "other errors propagate", deliverErr: deliverErr, wantErr: deliverErr},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var gotID, gotCorrelation string
			deliverer := &fakeRecordDeliverer{
				deliverNowFn: func(ctx context.Context, id string) (*domain.Notification, error) {
					gotID = id
					gotCorrelation, _ = observability.CorrelationIDFromContext(ctx)
					return nil, tt.deliverErr
				},
			}
			worker, err := NewWorkerService(&fakeConsumer{}, deliverer, 1, nil)
			if err != nil {
				t.Fatalf("NewWorkerService() error = %v", err)
			}

			err = worker.processMessage(context.Background(), queue.DeliveryMessage{
				NotificationID: "n-1",
				CorrelationID:  "corr-1",
				Kind:           "account",
			})
			if tt.wantErr == nil && err != nil {
				t.Fatalf("processMessage() error = %v, want nil", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Fatalf("processMessage() error = %v, want %v", err, tt.wantErr)
			}
			if gotID != "n-1" {
				t.Fatalf("delivered id = %q, want n-1", gotID)
			}
			if gotCorrelation != "corr-1" {
				t.Fatalf("correlation id = %q, want corr-1", gotCorrelation)
			}
		})
	}
}

func TestWorkerServiceStartRunsConsumers(t *testing.T) {
	t.Parallel()

	var consumers atomic.Int32
	consumer := &fakeConsumer{
		consumeFn: func(ctx context.Context, handler queue.MessageHandler) error {
			consumers.Add(1)
			return handler(ctx, queue.DeliveryMessage{NotificationID: "n-1"})
		},
	}
	var deliveries atomic.Int32
	deliverer := &fakeRecordDeliverer{
		deliverNowFn: func(ctx context.Context, id string) (*domain.Notification, error) {
			deliveries.Add(1)
			return &domain.Notification{ID: id}, nil
		},
	}

	worker, err := NewWorkerService(consumer, deliverer, 3, nil)
	if err != nil {
		t.Fatalf("NewWorkerService() error = %v", err)
	}
	if err := worker.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if consumers.Load() != 3 || deliveries.Load() != 3 {
		t.Fatalf("consumers = %d deliveries = %d, want 3 and 3", consumers.Load(), deliveries.Load())
	}
}

func TestWorkerServiceStartPropagatesConsumerError(t *testing.T) {
	t.Parallel()

	consumeErr := errors.New("channel closed")
	consumer := &fakeConsumer{
		consumeFn: func(ctx context.Context, handler queue.MessageHandler) error {
			return consumeErr
		},
	}

	worker, err := NewWorkerService(consumer, &fakeRecordDeliverer{}, 2, nil)
	if err != nil {
		t.Fatalf("NewWorkerService() error = %v", err)
	}
	if err := worker.Start(context.Background()); !errors.Is(err, consumeErr) {
		t.Fatalf("Start() error = %v, want %v", err, consumeErr)
	}
}

func TestNewWorkerServiceValidation(t *testing.T) {
	t.Parallel()

	if _, err := NewWorkerService(nil, &fakeRecordDeliverer{}, 1, nil); err == nil {
		t.Fatal("expected error for missing consumer")
	}
	if _, err := NewWorkerService(&fakeConsumer{}, nil, 1, nil); err == nil {
		t.Fatal("expected error for missing deliverer")
	}

	worker, err := NewWorkerService(&fakeConsumer{}, &fakeRecordDeliverer{}, 0, nil)
	if err != nil {
		t.Fatalf("NewWorkerService() error = %v", err)
	}
	if worker.concurrency != 1 {
		t.Fatalf("concurrency = %d, want 1", worker.concurrency)
	}
}
