// Package lock serializes writers of one transaction-number series across
// processes.
package lock

import (
	"context"
	"errors"
	"time"

	"github.com/bsm/redislock"
	redis "github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

var ErrNotObtained = errors.New("lock not obtained")

type Locker interface {
	// Obtain returns a release func; callers must call it exactly once.
	Obtain(ctx context.Context, key string, ttl time.Duration) (func(), error)
}

type Noop struct{}

func (Noop) Obtain(_ context.Context, _ string, _ time.Duration) (func(), error) {
	return func() {}, nil
}

type RedisLocker struct {
	client  *redislock.Client
	backoff time.Duration
	retries int
	logger  *logrus.Logger
}

func NewRedisLocker(client redis.UniversalClient, logger *logrus.Logger) *RedisLocker {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &RedisLocker{
		client:  redislock.New(client),
		backoff: 50 * time.Millisecond,
		retries: 40,
		logger:  logger,
	}
}

func (l *RedisLocker) Obtain(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	lk, err := l.client.Obtain(ctx, "lock:"+key, ttl, &redislock.Options{
		RetryStrategy: redislock.LimitRetry(redislock.LinearBackoff(l.backoff), l.retries),
	})
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, ErrNotObtained
	}
	if err != nil {
		return nil, err
	}
	return func() { l.release(lk, key) }, nil
}

type releaser interface {
	Release(ctx context.Context) error
}

// release drops the lock. A failed release is only logged: the lock then
// expires with its ttl.
func (l *RedisLocker) release(lk releaser, key string) {
	releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	err := lk.Release(releaseCtx)
	if err == nil {
		return
	}
	entry := l.logger.WithFields(logrus.Fields{"module": "lock", "key": key}).WithError(err)
	if errors.Is(err, redislock.ErrLockNotHeld) {
		entry.Warn("series lock expired before release")
		return
	}
	entry.Warn("series lock release failed")
}
