package service

import (
	"context"
	"fmt"
	"time"

	"github.com/kursadbilgin/notify-dispatcher/internal/observability"
	"github.com/kursadbilgin/notify-dispatcher/internal/repository"
	"go.uber.org/zap"
)

const (
	DefaultRetentionWindow = 30 * 24 * time.Hour
	sweepLockName          = "retention-sweep"
)

// Locker runs fn only when the named lock is free, reporting whether fn ran.
type Locker interface {
	WithLock(ctx context.Context, name string, fn func(context.Context) error) (bool, error)
}

// BackgroundSweep is an optional retention policy applied to every record regardless of
// owner or kind. A zero Interval disables it. Window falls back to the per-user window.
type BackgroundSweep struct {
	Window   time.Duration
	Interval time.Duration
}

func (b BackgroundSweep) Enabled() bool {
	return b.Interval > 0
}

// RetentionSweeper retires a user's old records of a kind whenever a new one is created, and
// optionally runs the background policy.
type RetentionSweeper struct {
	notifications repository.NotificationStore
	locker        Locker
	logger        *zap.Logger
	metrics       *observability.Metrics
	window        time.Duration
	background    BackgroundSweep
	now           func() time.Time
}

func NewRetentionSweeper(
	notifications repository.NotificationStore,
	locker Locker,
	window time.Duration,
	background BackgroundSweep,
	logger *zap.Logger,
) (*RetentionSweeper, error) {
	if notifications == nil {
		return nil, fmt.Errorf("notification store is required")
	}
	if window <= 0 {
		window = DefaultRetentionWindow
	}
	if background.Window <= 0 {
		background.Window = window
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &RetentionSweeper{
		notifications: notifications,
		locker:        locker,
		logger:        logger,
		window:        window,
		background:    background,
		now:           time.Now,
	}, nil
}

func (s *RetentionSweeper) SetMetrics(metrics *observability.Metrics) {
	if s == nil {
		return
	}
	s.metrics = metrics
}

// Cutoff is the newest creation time that is still old enough to delete.
func (s *RetentionSweeper) Cutoff(now time.Time) time.Time {
	return now.Add(-s.window)
}

// Sweep deletes the user's records of kind created at or before now minus the window.
// Failures are logged and swallowed.
func (s *RetentionSweeper) Sweep(ctx context.Context, kind string, userID string, now time.Time) {
	cutoff := s.Cutoff(now)
	deleted, err := s.notifications.DeleteCreatedBefore(ctx, kind, userID, cutoff)
	if err != nil {
		observability.WithContextLogger(s.logger, ctx).Warn("retention sweep failed",
			zap.String("kind", kind),
			zap.String("userId", userID),
			zap.Time("cutoff", cutoff),
			zap.Error(err),
		)
		return
	}

	s.metrics.AddSweepDeleted("user", deleted)
	if deleted > 0 {
		s.logger.Debug("retention sweep removed records",
			zap.String("kind", kind),
			zap.String("userId", userID),
			zap.Int64("deleted", deleted),
		)
	}
}

// SweepAll deletes every record created at or before now minus the background window.
func (s *RetentionSweeper) SweepAll(ctx context.Context, now time.Time) (int64, error) {
	deleted, err := s.notifications.DeleteAllCreatedBefore(ctx, now.Add(-s.background.Window))
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired notifications: %w", err)
	}
	s.metrics.AddSweepDeleted("all", deleted)
	return deleted, nil
}

// Start runs SweepAll every background interval until ctx is done and returns at once when the
// background policy is disabled. With a locker only one replica sweeps per tick.
func (s *RetentionSweeper) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if !s.background.Enabled() {
		s.logger.Info("background retention sweep disabled")
		return nil
	}

	s.logger.Info("background retention sweep enabled",
		zap.Duration("window", s.background.Window),
		zap.Duration("interval", s.background.Interval),
	)
	s.runOnce(ctx)

	ticker := time.NewTicker(s.background.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.runOnce(ctx)
		}
	}
}

func (s *RetentionSweeper) runOnce(ctx context.Context) {
	sweep := func(ctx context.Context) error {
		deleted, err := s.SweepAll(ctx, s.now().UTC())
		if err != nil {
			return err
		}
		s.logger.Info("retention sweep completed", zap.Int64("deleted", deleted))
		return nil
	}

	if s.locker == nil {
		if err := sweep(ctx); err != nil && ctx.Err() == nil {
			s.logger.Error("retention sweep failed", zap.Error(err))
		}
		return
	}

	ran, err := s.locker.WithLock(ctx, sweepLockName, sweep)
	if err != nil {
		if ctx.Err() == nil {
			s.logger.Error("retention sweep failed", zap.Error(err))
		}
		return
	}
	if !ran {
		s.logger.Debug("retention sweep skipped, another replica holds the lock")
	}
}
