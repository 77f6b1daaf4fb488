package enrichment

import (
	"context"
	"time"

	"github.com/bsm/redislock"
	"github.com/sirupsen/logrus"

	"github.com/mmdatafocus/clearview_backend/config"
)

// Locker serializes cache fills for one fingerprint across instances. It is
// best effort: when the lock cannot be taken the caller goes ahead anyway.
type Locker interface {
	Lock(ctx context.Context, key string) (release func())
}

// RedisLocker asks client for the lock client on every call, so it can be
// wired before Redis is reachable.
type RedisLocker struct {
	client func() *redislock.Client
	ttl    time.Duration
	wait   time.Duration
	logger *logrus.Logger
}

// NewRedisLocker holds locks for ttl and waits up to wait for a busy one.
func NewRedisLocker(client func() *redislock.Client, ttl, wait time.Duration, logger *logrus.Logger) *RedisLocker {
	return &RedisLocker{client: client, ttl: ttl, wait: wait, logger: logger}
}

func (l *RedisLocker) Lock(ctx context.Context, key string) func() {
	noop := func() {}
	if l == nil || l.client == nil {
		return noop
	}
	client := l.client()
	if client == nil {
		return noop
	}
	waitCtx, cancel := context.WithTimeout(ctx, l.wait)
	defer cancel()

	lock, err := client.Obtain(waitCtx, "lock:"+cacheKeyPrefix+key, l.ttl, &redislock.Options{
		RetryStrategy: redislock.LinearBackoff(100 * time.Millisecond),
	})
	if err != nil {
		if l.logger != nil && err != redislock.ErrNotObtained {
			config.LogError(l.logger, "lock.go", "Lock", "Error obtaining enrichment lock", key, err)
		}
		return noop
	}
	return func() {
		_ = lock.Release(context.Background())
	}
}
