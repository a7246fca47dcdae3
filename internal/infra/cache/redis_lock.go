package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// releaseScript deletes the key only while it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

// renewScript pushes the expiry out only while the key still holds our token.
var renewScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0`)

// RedisLocker is a SET NX PX lock shared by every process using the same Redis.
// A held lock is renewed every ttl/3, so ttl bounds how long a crashed
// holder blocks the key, not how long a live holder may keep it.
type RedisLocker struct {
	client     *redis.Client
	prefix     string
	retryEvery time.Duration
	logger     *logrus.Entry
}

func NewRedisLocker(client *redis.Client, prefix string, logger *logrus.Entry) *RedisLocker {
	return &RedisLocker{
		client:     client,
		prefix:     prefix,
		retryEvery: 50 * time.Millisecond,
		logger:     logger,
	}
}

func (l *RedisLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	fullKey := l.prefix + key
	token := uuid.NewString()

	ticker := time.NewTicker(l.retryEvery)
	defer ticker.Stop()
	for {
		ok, err := l.client.SetNX(ctx, fullKey, token, ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("error acquiring lock %s: %w", fullKey, err)
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("waiting for lock %s: %w", fullKey, ctx.Err())
		case <-ticker.C:
		}
	}

	stop := make(chan struct{})
	stopped := make(chan struct{})
	go l.keepAlive(fullKey, token, ttl, stop, stopped)

	var once sync.Once
	return func() {
		once.Do(func() {
			close(stop)
			<-stopped

			// The request context may already be cancelled here.
			relCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := releaseScript.Run(relCtx, l.client, []string{fullKey}, token).Err(); err != nil && err != redis.Nil {
				l.logger.WithError(err).WithField("key", fullKey).Warn("Failed to release lock; it will expire")
			}
		})
	}, nil
}

func (l *RedisLocker) keepAlive(key, token string, ttl time.Duration, stop <-chan struct{}, stopped chan<- struct{}) {
	defer close(stopped)
	if ttl <= 0 {
		// No expiry was set, so there is nothing to renew.
		<-stop
		return
	}

	every := ttl / 3
	if every <= 0 {
		every = ttl
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	log := l.logger.WithField("key", key)
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}

		ctx, cancel := context.WithTimeout(context.Background(), every)
		renewed, err := renewScript.Run(ctx, l.client, []string{key}, token, ttl.Milliseconds()).Int()
		cancel()
		if err != nil {
			log.WithError(err).Warn("Failed to renew lock")
			continue
		}
		if renewed == 0 {
			log.Error("Lock expired while still held")
			return
		}
	}
}
