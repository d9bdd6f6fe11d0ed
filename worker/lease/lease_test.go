package lease

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestMemoryLocker_ExclusiveUntilReleased(t *testing.T) {
	l := NewMemoryLocker()
	ctx := context.Background()

	release, ok, err := l.Acquire(ctx, "task-1", time.Minute)
	if err != nil || !ok {
		t.Fatalf("Expected first acquire to succeed, got ok=%v err=%v", ok, err)
	}

	if _, ok, _ := l.Acquire(ctx, "task-1", time.Minute); ok {
		t.Fatal("Expected second acquire to fail while held")
	}
	if _, ok, _ := l.Acquire(ctx, "task-2", time.Minute); !ok {
		t.Error("Expected a different task to be acquirable")
	}

	release()
	release()

	if _, ok, _ := l.Acquire(ctx, "task-1", time.Minute); !ok {
		t.Error("Expected acquire to succeed after release")
	}
}

func TestMemoryLocker_ExpiredLeaseCanBeTaken(t *testing.T) {
	l := NewMemoryLocker()
	ctx := context.Background()

	staleRelease, ok, _ := l.Acquire(ctx, "task-1", 10*time.Millisecond)
	if !ok {
		t.Fatal("Expected acquire to succeed")
	}
	time.Sleep(30 * time.Millisecond)

	_, ok, _ = l.Acquire(ctx, "task-1", time.Minute)
	if !ok {
		t.Fatal("Expected expired lease to be taken over")
	}

	staleRelease()
	if _, ok, _ := l.Acquire(ctx, "task-1", time.Minute); ok {
		t.Error("Expected stale release not to drop the new holder's lease")
	}
}

func TestMemoryLocker_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, _, err := NewMemoryLocker().Acquire(ctx, "task-1", time.Minute); err == nil {
		t.Error("Expected error for cancelled context")
	}
}

var errScriptFailed = errors.New("script failed")

// scriptedRedis answers SET NX locally and fails every script call, so the
// client never dials a server.
type scriptedRedis struct{}

func (scriptedRedis) DialHook(next redis.DialHook) redis.DialHook { return next }

func (scriptedRedis) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		switch c := cmd.(type) {
		case *redis.BoolCmd:
			c.SetVal(true)
			return nil
		default:
			cmd.SetErr(errScriptFailed)
			return errScriptFailed
		}
	}
}

func (scriptedRedis) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return next
}

func TestRedisLocker_LogsFailedRelease(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	defer rdb.Close()
	rdb.AddHook(scriptedRedis{})

	core, logs := observer.New(zap.WarnLevel)
	l := NewRedisLocker(rdb, zap.New(core))

	release, ok, err := l.Acquire(context.Background(), "task-1", time.Minute)
	if err != nil || !ok {
		t.Fatalf("Expected acquire to succeed, got ok=%v err=%v", ok, err)
	}
	release()
	release()

	entries := logs.FilterMessage("Failed to release lease, it expires with its TTL").All()
	if len(entries) != 1 {
		t.Fatalf("Expected one release warning, got %d", len(entries))
	}
	if got := entries[0].ContextMap()["task_id"]; got != "task-1" {
		t.Errorf("Expected task_id task-1, got %v", got)
	}
}
