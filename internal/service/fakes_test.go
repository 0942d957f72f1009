package service

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/kursadbilgin/notify-dispatcher/internal/domain"
	"github.com/kursadbilgin/notify-dispatcher/internal/queue"
	"github.com/kursadbilgin/notify-dispatcher/internal/repository"
)

func strPtr(s string) *string { return &s }

type fakeNotificationStore struct {
	mu sync.Mutex

	createFn                 func(ctx context.Context, n *domain.Notification) error
	saveFn                   func(ctx context.Context, n *domain.Notification) error
	deleteCreatedBeforeFn    func(ctx context.Context, kind string, userID string, cutoff time.Time) (int64, error)
	deleteAllCreatedBeforeFn func(ctx context.Context, cutoff time.Time) (int64, error)
	getByIDFn                func(ctx context.Context, id string) (*domain.Notification, error)
	listByUserFn             func(ctx context.Context, userID string, params repository.ListParams) ([]domain.Notification, int64, error)

	created []*domain.Notification
	// saves holds a copy of the status log at every Save call.
	saves [][]domain.StatusEntry
}

var _ repository.NotificationStore = (*fakeNotificationStore)(nil)

func (f *fakeNotificationStore) Create(ctx context.Context, n *domain.Notification) error {
	f.mu.Lock()
	f.created = append(f.created, n)
	f.mu.Unlock()

	if f.createFn != nil {
		return f.createFn(ctx, n)
	}
	return nil
}

func (f *fakeNotificationStore) Save(ctx context.Context, n *domain.Notification) error {
	f.mu.Lock()
	f.saves = append(f.saves, slices.Clone(n.StatusLog))
	f.mu.Unlock()

	if f.saveFn != nil {
		return f.saveFn(ctx, n)
	}
	return nil
}

func (f *fakeNotificationStore) DeleteCreatedBefore(ctx context.Context, kind string, userID string, cutoff time.Time) (int64, error) {
	if f.deleteCreatedBeforeFn != nil {
		return f.deleteCreatedBeforeFn(ctx, kind, userID, cutoff)
	}
	return 0, nil
}

func (f *fakeNotificationStore) DeleteAllCreatedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	if f.deleteAllCreatedBeforeFn != nil {
		return f.deleteAllCreatedBeforeFn(ctx, cutoff)
	}
	return 0, nil
}

func (f *fakeNotificationStore) GetByID(ctx context.Context, id string) (*domain.Notification, error) {
	if f.getByIDFn != nil {
		return f.getByIDFn(ctx, id)
	}
	return nil, domain.ErrNotFound
}

func (f *fakeNotificationStore) ListByUser(ctx context.Context, userID string, params repository.ListParams) ([]domain.Notification, int64, error) {
	if f.listByUserFn != nil {
		return f.listByUserFn(ctx, userID, params)
	}
	return nil, 0, nil
}

func (f *fakeNotificationStore) saveCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.saves)
}

type fakeMailSender struct {
	sendFn func(ctx context.Context, user domain.User, n domain.Notifiable) error
}

func (f *fakeMailSender) SendNotification(ctx context.Context, user domain.User, n domain.Notifiable) error {
	if f.sendFn != nil {
		return f.sendFn(ctx, user, n)
	}
	return nil
}

type fakePushSender struct {
	sendFn func(ctx context.Context, device domain.Device, n domain.Notifiable) error
}

func (f *fakePushSender) Send(ctx context.Context, device domain.Device, n domain.Notifiable) error {
	if f.sendFn != nil {
		return f.sendFn(ctx, device, n)
	}
	return nil
}

type fakeDeviceDirectory struct {
	mu sync.Mutex

	registeredToFn func(ctx context.Context, userID string, platform domain.Platform) ([]domain.Device, error)
	unregisterFn   func(ctx context.Context, deviceID string) error

	lookups      int
	unregistered []string
}

func (f *fakeDeviceDirectory) RegisteredTo(ctx context.Context, userID string, platform domain.Platform) ([]domain.Device, error) {
	f.mu.Lock()
	f.lookups++
	f.mu.Unlock()

	if f.registeredToFn != nil {
		return f.registeredToFn(ctx, userID, platform)
	}
	return nil, nil
}

func (f *fakeDeviceDirectory) Unregister(ctx context.Context, deviceID string) error {
	f.mu.Lock()
	f.unregistered = append(f.unregistered, deviceID)
	f.mu.Unlock()

	if f.unregisterFn != nil {
		return f.unregisterFn(ctx, deviceID)
	}
	return nil
}

type fakeUserDirectory struct {
	getByIDFn func(ctx context.Context, id string) (*domain.User, error)
}

func (f *fakeUserDirectory) GetByID(ctx context.Context, id string) (*domain.User, error) {
	if f.getByIDFn != nil {
		return f.getByIDFn(ctx, id)
	}
	return nil, domain.ErrNotFound
}

type sweepCall struct {
	kind   string
	userID string
	now    time.Time
}

type fakeSweeper struct {
	mu    sync.Mutex
	calls []sweepCall
}

func (f *fakeSweeper) Sweep(ctx context.Context, kind string, userID string, now time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, sweepCall{kind: kind, userID: userID, now: now})
}

type fakeDeliverer struct {
	deliverFn func(ctx context.Context, n *domain.Notification)
	delivered []*domain.Notification
}

func (f *fakeDeliverer) Deliver(ctx context.Context, n *domain.Notification) {
	f.delivered = append(f.delivered, n)
	if f.deliverFn != nil {
		f.deliverFn(ctx, n)
	}
}

type fakePublisher struct {
	publishFn func(ctx context.Context, msg queue.DeliveryMessage) error
	closeFn   func() error
}

func (f *fakePublisher) Publish(ctx context.Context, msg queue.DeliveryMessage) error {
	if f.publishFn != nil {
		return f.publishFn(ctx, msg)
	}
	return nil
}

func (f *fakePublisher) Close() error {
	if f.closeFn != nil {
		return f.closeFn()
	}
	return nil
}

type fakeConsumer struct {
	consumeFn func(ctx context.Context, handler queue.MessageHandler) error
	closeFn   func() error
}

func (f *fakeConsumer) Consume(ctx context.Context, handler queue.MessageHandler) error {
	if f.consumeFn != nil {
		return f.consumeFn(ctx, handler)
	}
	return nil
}

func (f *fakeConsumer) Close() error {
	if f.closeFn != nil {
		return f.closeFn()
	}
	return nil
}

type fakeRecordDeliverer struct {
	deliverNowFn func(ctx context.Context, id string) (*domain.Notification, error)
}

func (f *fakeRecordDeliverer) DeliverNow(ctx context.Context, id string) (*domain.Notification, error) {
	if f.deliverNowFn != nil {
		return f.deliverNowFn(ctx, id)
	}
	return &domain.Notification{ID: id}, nil
}

type fakeLocker struct {
	withLockFn func(ctx context.Context, name string, fn func(context.Context) error) (bool, error)
}

func (f *fakeLocker) WithLock(ctx context.Context, name string, fn func(context.Context) error) (bool, error) {
	if f.withLockFn != nil {
		return f.withLockFn(ctx, name, fn)
	}
	return true, fn(ctx)
}
