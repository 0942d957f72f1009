package main

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/kursadbilgin/notify-dispatcher/internal/app"
	"github.com/kursadbilgin/notify-dispatcher/internal/config"
	"github.com/kursadbilgin/notify-dispatcher/internal/handler"
	"github.com/kursadbilgin/notify-dispatcher/internal/observability"
	"github.com/kursadbilgin/notify-dispatcher/internal/transport"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("api initialization failed", zap.Error(err))
	}
	defer a.Close() //nolint:errcheck

	server := fiber.New(fiber.Config{
		AppName:               "notify-dispatcher",
		DisableStartupMessage: true,
		ErrorHandler:          transport.ErrorHandler(logger),
	})
	server.Use(recover.New())
	server.Use(requestid.New())
	server.Use(a.Metrics.HTTPMiddleware())

	handler.RegisterHealthRoutes(server, a.Checks)
	server.Get("/metrics", adaptor.HTTPHandler(a.Metrics.Handler()))
	if err := handler.RegisterNotificationRoutes(server, a.Notifications); err != nil {
		logger.Fatal("route registration failed", zap.Error(err))
	}

	go func() {
		if err := a.Sweeper.Start(ctx); err != nil {
			logger.Error("retention sweeper stopped", zap.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		logger.Info("shutting down api")
		if err := server.ShutdownWithTimeout(shutdownTimeout); err != nil {
			logger.Error("api shutdown failed", zap.Error(err))
		}
	}()

	logger.Info("notify-dispatcher api started",
		zap.Int("port", cfg.APIPort),
		zap.String("deliveryMode", cfg.DeliveryMode),
		zap.String("storeBackend", cfg.StoreBackend),
	)
	if err := server.Listen(fmt.Sprintf(":%d", cfg.APIPort)); err != nil {
		logger.Error("api server stopped", zap.Error(err))
	}
}
