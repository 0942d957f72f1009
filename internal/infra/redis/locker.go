package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

const (
	lockKeyPrefix  = "lock:"
	defaultLockTTL = time.Minute
)

var ErrLockNotHeld = errors.New("lock not held")

var releaseScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`)

// Locker hands out short-lived exclusive leases so only one replica runs a periodic job at a time.
type Locker struct {
	client *goredis.Client
	ttl    time.Duration
	token  func() string
	script *goredis.Script
}

// Lease is a held lock. Release it once the guarded work is done.
type Lease struct {
	locker *Locker
	key    string
	token  string
}

func NewLocker(client *goredis.Client, ttl time.Duration) (*Locker, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if ttl <= 0 {
		ttl = defaultLockTTL
	}

	return &Locker{
		client: client,
		ttl:    ttl,
		token:  uuid.NewString,
		script: releaseScript,
	}, nil
}

// TryAcquire returns a lease when name is free, or nil when another holder has it.
func (l *Locker) TryAcquire(ctx context.Context, name string) (*Lease, error) {
	if l == nil || l.client == nil {
		return nil, fmt.Errorf("locker is not initialized")
	}

	normalized := strings.ToLower(strings.TrimSpace(name))
	if normalized == "" {
		return nil, fmt.Errorf("lock name is required")
	}

	key := lockKeyPrefix + normalized
	token := l.token()
	ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire lock %q: %w", normalized, err)
	}
	if !ok {
		return nil, nil
	}

	return &Lease{locker: l, key: key, token: token}, nil
}

func (l *Lease) Release(ctx context.Context) error {
	if l == nil {
		return nil
	}

	released, err := l.locker.script.Run(ctx, l.locker.client, []string{l.key}, l.token).Int()
	if err != nil {
		return fmt.Errorf("failed to release lock: %w", err)
	}
	if released == 0 {
		return ErrLockNotHeld
	}
	return nil
}

// WithLock runs fn while holding name. It reports false without calling fn when the lock is taken.
func (l *Locker) WithLock(ctx context.Context, name string, fn func(context.Context) error) (bool, error) {
	lease, err := l.TryAcquire(ctx, name)
	if err != nil {
		return false, err
	}
	if lease == nil {
		return false, nil
	}

	fnErr := fn(ctx)
	if err := lease.Release(context.WithoutCancel(ctx)); err != nil && !errors.Is(err, ErrLockNotHeld) {
		return true, errors.Join(fnErr, err)
	}
	return true, fnErr
}
