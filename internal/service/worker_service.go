package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/kursadbilgin/notify-dispatcher/internal/domain"
	"github.com/kursadbilgin/notify-dispatcher/internal/observability"
	"github.com/kursadbilgin/notify-dispatcher/internal/queue"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const minWorkerConcurrency = 1

// RecordDeliverer loads a stored record and delivers it inline.
type RecordDeliverer interface {
	DeliverNow(ctx context.Context, id string) (*domain.Notification, error)
}

type WorkerService struct {
	consumer    queue.Consumer
	deliverer   RecordDeliverer
	logger      *zap.Logger
	concurrency int
}

func NewWorkerService(
	consumer queue.Consumer,
	deliverer RecordDeliverer,
	concurrency int,
	logger *zap.Logger,
) (*WorkerService, error) {
	if consumer == nil {
		return nil, fmt.Errorf("consumer is required")
	}
	if deliverer == nil {
		return nil, fmt.Errorf("deliverer is required")
	}
	if concurrency < minWorkerConcurrency {
		concurrency = minWorkerConcurrency
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &WorkerService{
		consumer:    consumer,
		deliverer:   deliverer,
		logger:      logger,
		concurrency: concurrency,
	}, nil
}

// Start runs the configured number of consumers on the deliveries queue until context cancellation.
func (s *WorkerService) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	g, groupCtx := errgroup.WithContext(ctx)
	for i := 0; i < s.concurrency; i++ {
		workerID := i + 1

		g.Go(func() error {
			s.logger.Info("worker started",
				zap.Int("workerId", workerID),
				zap.String("queue", queue.DeliveriesQueue),
			)

			err := s.consumer.Consume(groupCtx, s.processMessage)
			if err != nil {
				s.logger.Error("worker stopped with error",
					zap.Int("workerId", workerID),
					zap.Error(err),
				)
				return err
			}

			s.logger.Info("worker stopped", zap.Int("workerId", workerID))
			return nil
		})
	}

	return g.Wait()
}

func (s *WorkerService) processMessage(ctx context.Context, msg queue.DeliveryMessage) error {
	if msg.CorrelationID != "" {
		ctx = observability.WithCorrelationID(ctx, msg.CorrelationID)
	}

	if _, err := s.deliverer.DeliverNow(ctx, msg.NotificationID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			observability.WithContextLogger(s.logger, ctx).Warn("notification not found, skipping delivery",
				zap.String("notificationId", msg.NotificationID),
			)
			return nil
		}
		return fmt.Errorf("failed to deliver notification %s: %w", msg.NotificationID, err)
	}
	return nil
}
