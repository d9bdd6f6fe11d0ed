package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"videotasks/models"
)

// Keys match the API status cache so its reads see the worker's writes.
const (
	keyPrefix = "task:status:"
	statusTTL = 10 * time.Minute
)

type StatusCache struct {
	client redis.UniversalClient
}

func NewStatusCache(client redis.UniversalClient) *StatusCache {
	return &StatusCache{client: client}
}

func Key(ownerID, taskID int64) string {
	return fmt.Sprintf("%s%d:%d", keyPrefix, ownerID, taskID)
}

// Set records a task outcome. Non-terminal statuses are ignored.
func (c *StatusCache) Set(ctx context.Context, ownerID, taskID int64, status models.TaskStatus) error {
	if !status.Terminal() {
		return nil
	}
	return c.client.Set(ctx, Key(ownerID, taskID), string(status), statusTTL).Err()
}
