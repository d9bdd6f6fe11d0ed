// Package lease keeps two consumers from transforming the same task at the
// same time.
package lease

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const keyPrefix = "task:lease:"

// Locker hands out leases keyed by task external id. Acquire returns ok
// false when another holder owns an unexpired lease. release is safe to call
// more than once and never removes a lease taken over by someone else.
type Locker interface {
	Acquire(ctx context.Context, taskID string, ttl time.Duration) (release func(), ok bool, err error)
}

// releaseScript deletes the key only while it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

type RedisLocker struct {
	rdb    redis.UniversalClient
	logger *zap.Logger
}

func NewRedisLocker(rdb redis.UniversalClient, logger *zap.Logger) *RedisLocker {
	return &RedisLocker{rdb: rdb, logger: logger}
}

func (l *RedisLocker) Acquire(ctx context.Context, taskID string, ttl time.Duration) (func(), bool, error) {
	key := keyPrefix + taskID
	token := uuid.New().String()

	ok, err := l.rdb.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("acquire lease %s: %w", taskID, err)
	}
	if !ok {
		return nil, false, nil
	}

	var once sync.Once
	release := func() {
		once.Do(func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := releaseScript.Run(ctx, l.rdb, []string{key}, token).Err(); err != nil {
				l.logger.Warn("Failed to release lease, it expires with its TTL",
					zap.String("task_id", taskID),
					zap.Error(err),
				)
			}
		})
	}
	return release, true, nil
}

// MemoryLocker is the single process fallback used when Redis is not
// configured.
type MemoryLocker struct {
	mu      sync.Mutex
	entries *cache.Cache
}

func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{entries: cache.New(cache.NoExpiration, time.Minute)}
}

func (l *MemoryLocker) Acquire(ctx context.Context, taskID string, ttl time.Duration) (func(), bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	token := uuid.New().String()
	l.mu.Lock()
	err := l.entries.Add(taskID, token, ttl)
	l.mu.Unlock()
	if err != nil {
		return nil, false, nil
	}

	var once sync.Once
	release := func() {
		once.Do(func() {
			l.mu.Lock()
			defer l.mu.Unlock()
			if current, found := l.entries.Get(taskID); found && current == token {
				l.entries.Delete(taskID)
			}
		})
	}
	return release, true, nil
}
