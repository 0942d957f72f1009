package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/kursadbilgin/notify-dispatcher/internal/domain"
	"github.com/kursadbilgin/notify-dispatcher/internal/observability"
	"github.com/kursadbilgin/notify-dispatcher/internal/provider"
	"github.com/kursadbilgin/notify-dispatcher/internal/repository"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const minDeviceConcurrency = 1

// Dispatcher fans a notification out to its requested platforms and records every attempt
// in the status log. Transport failures never escape Deliver.
type Dispatcher struct {
	catalog           *domain.Catalog
	notifications     repository.NotificationStore
	mail              provider.MailSender
	push              provider.PushSender
	logger            *zap.Logger
	metrics           *observability.Metrics
	deviceConcurrency int
	now               func() time.Time
}

func NewDispatcher(
	catalog *domain.Catalog,
	notifications repository.NotificationStore,
	mail provider.MailSender,
	push provider.PushSender,
	deviceConcurrency int,
	logger *zap.Logger,
) (*Dispatcher, error) {
	if catalog == nil {
		return nil, fmt.Errorf("action catalog is required")
	}
	if notifications == nil {
		return nil, fmt.Errorf("notification store is required")
	}
	if mail == nil {
		return nil, fmt.Errorf("mail sender is required")
	}
	if push == nil {
		push = provider.DisabledPush{}
	}
	if deviceConcurrency < minDeviceConcurrency {
		deviceConcurrency = minDeviceConcurrency
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Dispatcher{
		catalog:           catalog,
		notifications:     notifications,
		mail:              mail,
		push:              push,
		logger:            logger,
		deviceConcurrency: deviceConcurrency,
		now:               time.Now,
	}, nil
}

func (d *Dispatcher) SetMetrics(metrics *observability.Metrics) {
	if d == nil {
		return
	}
	d.metrics = metrics
}

// delivery is the state of one Deliver call. mu serializes status log appends and saves.
type delivery struct {
	*Dispatcher
	n      *domain.Notification
	logger *zap.Logger
	mu     sync.Mutex
}

// Deliver attempts every platform of n in request order.
func (d *Dispatcher) Deliver(ctx context.Context, n *domain.Notification) {
	if n == nil {
		return
	}

	defer d.metrics.TrackDelivery()()

	run := &delivery{
		Dispatcher: d,
		n:          n,
		logger:     observability.WithContextLogger(d.logger, ctx).With(observability.NotificationFields(n)...),
	}

	for _, platform := range n.Platforms() {
		switch platform {
		case domain.PlatformEmail:
			run.deliverEmail(ctx)
		case domain.PlatformIOS:
			run.deliverIOS(ctx)
		case domain.PlatformAndroid:
			run.logger.Debug("android delivery is not supported, skipping")
		}
	}
}

func (r *delivery) deliverEmail(ctx context.Context) {
	user := r.n.Recipient()

	start := r.now()
	err := r.sendMail(ctx, user)
	r.metrics.ObserveTransportSendDuration(domain.PlatformEmail.String(), r.now().Sub(start))

	if err != nil {
		r.logger.Error("email delivery failed",
			zap.String("platform", domain.PlatformEmail.String()),
			zap.Bool("transient", provider.IsTransient(err)),
			zap.Error(err),
		)
		r.record(ctx, domain.PlatformEmail, domain.StatusError, user.Email)
		return
	}

	r.record(ctx, domain.PlatformEmail, domain.StatusSent, user.Email)
}

func (r *delivery) sendMail(ctx context.Context, user domain.User) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("mail transport panicked: %v", rec)
		}
	}()
	return r.mail.SendNotification(ctx, user, r.n)
}

func (r *delivery) deliverIOS(ctx context.Context) {
	directory, err := r.directoryFor(r.n)
	if err != nil {
		r.logger.Error("device directory unavailable",
			zap.String("platform", domain.PlatformIOS.String()),
			zap.Error(err),
		)
		return
	}

	devices, err := directory.RegisteredTo(ctx, r.n.UserID, domain.PlatformIOS)
	if err != nil {
		r.logger.Error("failed to list registered devices",
			zap.String("platform", domain.PlatformIOS.String()),
			zap.Error(err),
		)
		return
	}

	if r.deviceConcurrency <= minDeviceConcurrency || len(devices) <= 1 {
		for _, device := range devices {
			r.deliverDevice(ctx, directory, device)
		}
		return
	}

	var g errgroup.Group
	g.SetLimit(r.deviceConcurrency)
	for _, device := range devices {
		g.Go(func() error {
			r.deliverDevice(ctx, directory, device)
			return nil
		})
	}
	_ = g.Wait()
}

func (r *delivery) deliverDevice(ctx context.Context, directory domain.DeviceDirectory, device domain.Device) {
	if device.IsDormant() {
		if err := directory.Unregister(ctx, device.ID); err != nil {
			r.logger.Warn("failed to unregister dormant device",
				zap.String("deviceId", device.ID),
				zap.Error(err),
			)
			return
		}
		r.metrics.IncDormantUnregistered(device.Platform.String())
		r.logger.Info("dormant device unregistered", zap.String("deviceId", device.ID))
		return
	}

	r.record(ctx, domain.PlatformIOS, domain.StatusSending, device.ID)

	start := r.now()
	err := r.sendPush(ctx, device)
	r.metrics.ObserveTransportSendDuration(domain.PlatformIOS.String(), r.now().Sub(start))

	if err != nil {
		r.logger.Error("push delivery failed",
			zap.String("platform", domain.PlatformIOS.String()),
			zap.String("deviceId", device.ID),
			zap.Bool("transient", provider.IsTransient(err)),
			zap.Error(err),
		)
		r.record(ctx, domain.PlatformIOS, domain.StatusError, device.ID)
		return
	}

	r.record(ctx, domain.PlatformIOS, domain.StatusSent, device.ID)
}

func (r *delivery) sendPush(ctx context.Context, device domain.Device) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("push transport panicked: %v", rec)
		}
	}()
	return r.push.Send(ctx, device, r.n)
}

// record appends one status entry and persists the whole record. Save failures are logged only.
func (r *delivery) record(ctx context.Context, platform domain.Platform, code domain.StatusCode, note string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.n.AppendStatus(platform, code, note)
	r.metrics.IncStatusEntry(platform.String(), code.String())

	err := r.notifications.Save(ctx, r.n)
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrNotFound):
		r.logger.Warn("notification removed during delivery, status not saved",
			zap.String("platform", platform.String()),
			zap.String("status", code.String()),
		)
	default:
		r.logger.Error("failed to save status log",
			zap.String("platform", platform.String()),
			zap.String("status", code.String()),
			zap.Error(err),
		)
	}
}

func (d *Dispatcher) directoryFor(n *domain.Notification) (domain.DeviceDirectory, error) {
	cfg, err := d.catalog.Lookup(n.Kind)
	if err != nil {
		return nil, err
	}

	directory := cfg.DeviceDirectory()
	if directory == nil {
		return nil, fmt.Errorf("no device directory configured for kind %q", cfg.Name())
	}
	return directory, nil
}
