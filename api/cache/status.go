package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"videotasks/api/database"
	"videotasks/models"
)

// KeyPrefix is shared with the worker, which writes the same keys after a
// pipeline outcome. Only terminal statuses are cached since they never
// change again.
const (
	KeyPrefix = "task:status:"
	statusTTL = 10 * time.Minute
)

var ErrMiss = errors.New("status not cached")

type StatusCache struct {
	cache *database.Cache
}

func NewStatusCache(cache *database.Cache) *StatusCache {
	return &StatusCache{cache: cache}
}

func Key(ownerID, taskID int64) string {
	return fmt.Sprintf("%s%d:%d", KeyPrefix, ownerID, taskID)
}

func (sc *StatusCache) Get(ctx context.Context, ownerID, taskID int64) (models.TaskStatus, error) {
	data, err := sc.cache.Get(ctx, Key(ownerID, taskID))
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrMiss
		}
		return "", err
	}

	status := models.TaskStatus(data)
	if !status.Valid() {
		return "", ErrMiss
	}
	return status, nil
}

func (sc *StatusCache) Set(ctx context.Context, ownerID, taskID int64, status models.TaskStatus) error {
	if !status.Terminal() {
		return nil
	}
	return sc.cache.Set(ctx, Key(ownerID, taskID), string(status), statusTTL)
}

func (sc *StatusCache) Delete(ctx context.Context, ownerID, taskID int64) error {
	return sc.cache.Del(ctx, Key(ownerID, taskID))
}
