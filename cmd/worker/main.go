package main

import (
	"context"
	"errors"
	"log"
	"os/signal"
	"syscall"

	"github.com/kursadbilgin/notify-dispatcher/internal/app"
	"github.com/kursadbilgin/notify-dispatcher/internal/config"
	"github.com/kursadbilgin/notify-dispatcher/internal/observability"
	"github.com/kursadbilgin/notify-dispatcher/internal/queue"
	"github.com/kursadbilgin/notify-dispatcher/internal/service"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	if cfg.RabbitMQURL == "" {
		logger.Fatal("RABBITMQ_URL is required for the worker")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("worker initialization failed", zap.Error(err))
	}
	defer a.Close() //nolint:errcheck

	consumer := queue.NewRabbitMQConsumer(a.Queue, cfg.WorkerConcurrency, logger)
	worker, err := service.NewWorkerService(consumer, a.Notifications, cfg.WorkerConcurrency, logger)
	if err != nil {
		logger.Fatal("worker service initialization failed", zap.Error(err))
	}

	logger.Info("notify-dispatcher worker started",
		zap.Int("concurrency", cfg.WorkerConcurrency),
		zap.String("queue", queue.DeliveriesQueue),
	)
	if err := worker.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker stopped with error", zap.Error(err))
	}
	logger.Info("worker shut down")
}
