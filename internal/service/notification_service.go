package service

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kursadbilgin/notify-dispatcher/internal/config"
	"github.com/kursadbilgin/notify-dispatcher/internal/domain"
	"github.com/kursadbilgin/notify-dispatcher/internal/observability"
	"github.com/kursadbilgin/notify-dispatcher/internal/queue"
	"github.com/kursadbilgin/notify-dispatcher/internal/repository"
	"go.uber.org/zap"
)

// Deliverer runs channel delivery for a loaded record.
type Deliverer interface {
	Deliver(ctx context.Context, n *domain.Notification)
}

// Sweeper retires a user's old records.
type Sweeper interface {
	Sweep(ctx context.Context, kind string, userID string, now time.Time)
}

// CreateOptions carries the optional payload of a new notification.
type CreateOptions struct {
	Message           *string
	ShortMessage      *string
	FullMessage       *string
	Subject           *string
	DeliveryPlatforms []string
	Metadata          map[string]any
	DeliverySettings  map[string]map[string]any
}

type NotificationService struct {
	catalog       *domain.Catalog
	notifications repository.NotificationStore
	users         repository.UserDirectory
	sweeper       Sweeper
	dispatcher    Deliverer
	publisher     queue.Publisher
	deliveryMode  string
	logger        *zap.Logger
	now           func() time.Time
	newID         func() string
}

func NewNotificationService(
	catalog *domain.Catalog,
	notifications repository.NotificationStore,
	users repository.UserDirectory,
	sweeper Sweeper,
	dispatcher Deliverer,
	publisher queue.Publisher,
	deliveryMode string,
	logger *zap.Logger,
) (*NotificationService, error) {
	if catalog == nil {
		return nil, fmt.Errorf("action catalog is required")
	}
	if notifications == nil {
		return nil, fmt.Errorf("notification store is required")
	}
	if sweeper == nil {
		return nil, fmt.Errorf("retention sweeper is required")
	}
	if dispatcher == nil {
		return nil, fmt.Errorf("dispatcher is required")
	}

	mode := strings.ToLower(strings.TrimSpace(deliveryMode))
	if mode == "" {
		mode = config.DeliveryModeSync
	}
	if mode == config.DeliveryModeQueue && publisher == nil {
		return nil, fmt.Errorf("publisher is required in %s delivery mode", config.DeliveryModeQueue)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &NotificationService{
		catalog:       catalog,
		notifications: notifications,
		users:         users,
		sweeper:       sweeper,
		dispatcher:    dispatcher,
		publisher:     publisher,
		deliveryMode:  mode,
		logger:        logger,
		now:           time.Now,
		newID:         uuid.NewString,
	}, nil
}

// Create builds and persists a notification for user. Only an unknown kind or action, or a
// missing user id, is returned as an error; a failed write is recorded on the returned record.
// A persisted record triggers exactly one retention sweep for the user.
func (s *NotificationService) Create(
	ctx context.Context,
	kind string,
	user domain.User,
	actionSymbol string,
	opts CreateOptions,
) (*domain.Notification, error) {
	cfg, err := s.catalog.Lookup(kind)
	if err != nil {
		return nil, err
	}
	code, err := cfg.Resolve(actionSymbol)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	n := &domain.Notification{
		ID:                s.newID(),
		Kind:              cfg.Name(),
		UserID:            strings.TrimSpace(user.ID),
		User:              user,
		ActionCode:        code,
		Message:           opts.Message,
		ShortMessage:      opts.ShortMessage,
		FullMessage:       opts.FullMessage,
		Subject:           opts.Subject,
		DeliveryPlatforms: slices.Clone(opts.DeliveryPlatforms),
		Meta:              maps.Clone(opts.Metadata),
		DeliverySettings:  cloneDeliverySettings(opts.DeliverySettings),
		StatusLog:         []domain.StatusEntry{},
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := n.Validate(); err != nil {
		return nil, err
	}

	logger := observability.WithContextLogger(s.logger, ctx).With(observability.NotificationFields(n)...)
	if err := s.notifications.Create(ctx, n); err != nil {
		n.Persisted = false
		n.PersistErr = err
		logger.Error("failed to persist notification", zap.Error(err))
		return n, nil
	}
	n.Persisted = true

	s.sweeper.Sweep(ctx, n.Kind, n.UserID, now)
	return n, nil
}

// CreateAndDispatch creates the record and, when it was persisted, hands it to delivery.
func (s *NotificationService) CreateAndDispatch(
	ctx context.Context,
	kind string,
	user domain.User,
	actionSymbol string,
	opts CreateOptions,
) (*domain.Notification, error) {
	n, err := s.Create(ctx, kind, user, actionSymbol, opts)
	if err != nil {
		return nil, err
	}
	if !n.Persisted {
		return n, nil
	}

	if err := s.dispatch(ctx, n); err != nil {
		return n, err
	}
	return n, nil
}

// Dispatch delivers a stored record inline or enqueues it, depending on the delivery mode.
func (s *NotificationService) Dispatch(ctx context.Context, id string) (*domain.Notification, error) {
	n, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.dispatch(ctx, n); err != nil {
		return n, err
	}
	return n, nil
}

// DeliverNow loads a stored record with its owner and runs channel delivery inline.
func (s *NotificationService) DeliverNow(ctx context.Context, id string) (*domain.Notification, error) {
	n, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	s.dispatcher.Deliver(ctx, n)
	return n, nil
}

func (s *NotificationService) GetByID(ctx context.Context, id string) (*domain.Notification, error) {
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("%w: id is required", domain.ErrValidation)
	}
	return s.notifications.GetByID(ctx, id)
}

func (s *NotificationService) ListByUser(
	ctx context.Context,
	userID string,
	params repository.ListParams,
) ([]domain.Notification, int64, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, 0, fmt.Errorf("%w: user id is required", domain.ErrValidation)
	}
	return s.notifications.ListByUser(ctx, userID, params)
}

// ActionSymbol maps the record's action code back to the symbol registered for its kind.
func (s *NotificationService) ActionSymbol(n *domain.Notification) (string, error) {
	if n == nil {
		return "", fmt.Errorf("%w: notification is required", domain.ErrValidation)
	}
	cfg, err := s.catalog.Lookup(n.Kind)
	if err != nil {
		return "", err
	}
	return cfg.ActionSymbolOf(n)
}

func (s *NotificationService) dispatch(ctx context.Context, n *domain.Notification) error {
	if s.deliveryMode != config.DeliveryModeQueue {
		s.dispatcher.Deliver(ctx, n)
		return nil
	}

	correlationID, _ := observability.CorrelationIDFromContext(ctx)
	msg := queue.DeliveryMessage{
		NotificationID: n.ID,
		CorrelationID:  correlationID,
		Kind:           n.Kind,
	}
	if err := s.publisher.Publish(ctx, msg); err != nil {
		observability.WithContextLogger(s.logger, ctx).Error("failed to enqueue delivery",
			append(observability.NotificationFields(n), zap.Error(err))...,
		)
		return fmt.Errorf("failed to enqueue delivery: %w", err)
	}
	return nil
}

// load fetches a record and attaches its owner. A missing owner leaves only the user id set.
func (s *NotificationService) load(ctx context.Context, id string) (*domain.Notification, error) {
	n, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if s.users == nil {
		return n, nil
	}

	user, err := s.users.GetByID(ctx, n.UserID)
	switch {
	case err == nil && user != nil:
		n.User = *user
	case errors.Is(err, domain.ErrNotFound):
		s.logger.Warn("notification owner not found", observability.NotificationFields(n)...)
	case err != nil:
		return nil, fmt.Errorf("failed to load notification owner: %w", err)
	}
	return n, nil
}

func cloneDeliverySettings(settings map[string]map[string]any) map[string]map[string]any {
	cloned := make(map[string]map[string]any, len(settings))
	for platform, values := range settings {
		cloned[strings.ToLower(strings.TrimSpace(platform))] = maps.Clone(values)
	}
	return cloned
}
