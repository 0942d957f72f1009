// Package app wires configuration into the stores, transports and services shared by the
// api and worker binaries.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kursadbilgin/notify-dispatcher/internal/config"
	"github.com/kursadbilgin/notify-dispatcher/internal/domain"
	"github.com/kursadbilgin/notify-dispatcher/internal/handler"
	"github.com/kursadbilgin/notify-dispatcher/internal/infra/mongodb"
	"github.com/kursadbilgin/notify-dispatcher/internal/infra/postgresql"
	"github.com/kursadbilgin/notify-dispatcher/internal/infra/postgresql/migrations"
	infraredis "github.com/kursadbilgin/notify-dispatcher/internal/infra/redis"
	"github.com/kursadbilgin/notify-dispatcher/internal/observability"
	"github.com/kursadbilgin/notify-dispatcher/internal/provider"
	"github.com/kursadbilgin/notify-dispatcher/internal/queue"
	"github.com/kursadbilgin/notify-dispatcher/internal/repository"
	"github.com/kursadbilgin/notify-dispatcher/internal/service"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const shoutrrrTimeout = 10 * time.Second

type App struct {
	Config        *config.Config
	Logger        *zap.Logger
	Metrics       *observability.Metrics
	Notifications *service.NotificationService
	Sweeper       *service.RetentionSweeper
	Queue         *queue.RabbitMQ
	Checks        map[string]handler.HealthCheck

	closers []func() error
}

// New connects every backing service named by cfg. On error, whatever was opened is closed.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (_ *App, err error) {
	a := &App{
		Config:  cfg,
		Logger:  logger,
		Metrics: observability.NewMetrics(),
		Checks:  make(map[string]handler.HealthCheck),
	}
	defer func() {
		if err != nil {
			_ = a.Close()
		}
	}()

	db, err := postgresql.NewPostgres(cfg.DatabaseDSN)
	if err != nil {
		return nil, err
	}
	if sqlDB, dbErr := db.DB(); dbErr == nil {
		a.closers = append(a.closers, sqlDB.Close)
	}
	if err := migrations.Migrate(db); err != nil {
		return nil, err
	}
	a.Checks["postgres"] = postgresql.Healthcheck(db)

	rdb, err := infraredis.NewRedis(ctx, cfg.RedisURL)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, rdb.Close)
	a.Checks["redis"] = infraredis.Healthcheck(rdb)

	locker, err := infraredis.NewLocker(rdb, 0)
	if err != nil {
		return nil, err
	}

	store, err := a.notificationStore(ctx, cfg, db)
	if err != nil {
		return nil, err
	}

	devices := repository.NewGormDeviceDirectory(db, cfg.DeviceDormancy)
	catalog, err := config.LoadCatalog(cfg.ActionsFile, devices, func(dormancy time.Duration) domain.DeviceDirectory {
		return repository.NewGormDeviceDirectory(db, dormancy)
	})
	if err != nil {
		return nil, err
	}
	for _, kind := range catalog.Kinds() {
		typeCfg, _ := catalog.Lookup(kind)
		logger.Info("notification kind loaded", zap.String("kind", kind), zap.Strings("actions", typeCfg.Actions()))
	}

	mail, err := newMailSender(cfg, logger)
	if err != nil {
		return nil, err
	}
	push, err := newPushSender(cfg)
	if err != nil {
		return nil, err
	}

	dispatcher, err := service.NewDispatcher(catalog, store, mail, push, cfg.DeviceConcurrency, logger)
	if err != nil {
		return nil, err
	}
	dispatcher.SetMetrics(a.Metrics)

	sweeper, err := service.NewRetentionSweeper(store, locker, cfg.RetentionWindow, service.BackgroundSweep{
		Window:   cfg.BackgroundRetentionWindow,
		Interval: cfg.SweepInterval,
	}, logger)
	if err != nil {
		return nil, err
	}
	sweeper.SetMetrics(a.Metrics)
	a.Sweeper = sweeper

	var publisher queue.Publisher
	if cfg.RabbitMQURL != "" {
		rabbit, err := queue.NewRabbitMQ(cfg.RabbitMQURL, logger)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, rabbit.Close)
		a.Checks["rabbitmq"] = rabbit.Healthcheck
		a.Queue = rabbit
		publisher = queue.NewRabbitMQPublisher(rabbit)
	}

	a.Notifications, err = service.NewNotificationService(
		catalog,
		store,
		repository.NewGormUserRepo(db),
		sweeper,
		dispatcher,
		publisher,
		cfg.DeliveryMode,
		logger,
	)
	if err != nil {
		return nil, err
	}

	return a, nil
}

// Close releases connections in reverse order of opening.
func (a *App) Close() error {
	if a == nil {
		return nil
	}

	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

func (a *App) notificationStore(ctx context.Context, cfg *config.Config, db *gorm.DB) (repository.NotificationStore, error) {
	if cfg.StoreBackend != config.StoreBackendMongo {
		return repository.NewGormNotificationRepo(db), nil
	}

	mdb, err := mongodb.NewMongo(ctx, cfg.MongoURL, cfg.MongoDatabase)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, func() error {
		return mdb.Client().Disconnect(context.Background())
	})
	a.Checks["mongodb"] = mongodb.Healthcheck(mdb)

	store := repository.NewMongoNotificationRepo(mdb)
	if err := store.EnsureIndexes(ctx); err != nil {
		return nil, err
	}
	return store, nil
}

func newMailSender(cfg *config.Config, logger *zap.Logger) (provider.MailSender, error) {
	if cfg.PostmarkServerToken == "" {
		logger.Warn("POSTMARK_SERVER_TOKEN is not set, email delivery is disabled")
		return provider.DisabledMail{}, nil
	}
	return provider.NewPostmarkMailer(cfg.PostmarkServerToken, cfg.PostmarkAccountToken, cfg.MailSender)
}

func newPushSender(cfg *config.Config) (provider.PushSender, error) {
	switch cfg.PushBackend {
	case config.PushBackendGateway:
		return provider.NewAPNSGateway(cfg.PushGatewayURL)
	case config.PushBackendShoutrrr:
		return provider.NewShoutrrrPush(cfg.ShoutrrrURLs(), shoutrrrTimeout)
	case config.PushBackendNone:
		return provider.DisabledPush{}, nil
	default:
		return nil, fmt.Errorf("unknown push backend %q", cfg.PushBackend)
	}
}
