package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
	appleakage "github.com/spendaudit/backend/internal/application/leakage"
	"github.com/spendaudit/backend/internal/domain/shared"
)

// RedisLockerConfig configures RedisLocker
type RedisLockerConfig struct {
	KeyPrefix     string
	TTL           time.Duration
	RetryInterval time.Duration
	RetryLimit    int
}

// RedisLocker serializes writers across processes with Redis locks
type RedisLocker struct {
	client *redislock.Client
	cfg    RedisLockerConfig
}

// NewRedisLocker creates a RedisLocker on an existing client
func NewRedisLocker(client *redis.Client, cfg RedisLockerConfig) *RedisLocker {
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = "leakage:lock:"
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 30 * time.Second
	}
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = 50 * time.Millisecond
	}
	if cfg.RetryLimit <= 0 {
		cfg.RetryLimit = 100
	}
	return &RedisLocker{client: redislock.New(client), cfg: cfg}
}

// Acquire implements appleakage.Locker. When the lock stays held by another
// writer past the retry budget it returns CONCURRENCY_CONFLICT.
func (l *RedisLocker) Acquire(ctx context.Context, key string) (appleakage.Lock, error) {
	lk, err := l.client.Obtain(ctx, l.cfg.KeyPrefix+key, l.cfg.TTL, &redislock.Options{
		RetryStrategy: redislock.LimitRetry(redislock.LinearBackoff(l.cfg.RetryInterval), l.cfg.RetryLimit),
	})
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, shared.NewDomainErrorf(shared.CodeConcurrencyConflict, "Lock %s is held by another writer", key)
	}
	if err != nil {
		return nil, fmt.Errorf("obtain lock %s: %w", key, err)
	}
	return &redisLock{lock: lk}, nil
}

type redisLock struct {
	lock *redislock.Lock
}

// Release frees the lock. A lock that already expired is not an error.
func (h *redisLock) Release(ctx context.Context) error {
	err := h.lock.Release(ctx)
	if errors.Is(err, redislock.ErrLockNotHeld) {
		return nil
	}
	return err
}

var _ appleakage.Locker = (*RedisLocker)(nil)
