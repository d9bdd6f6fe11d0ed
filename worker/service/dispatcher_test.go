package service

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"go.uber.org/zap/zaptest"

	"videotasks/events"
	"videotasks/worker/pool"
)

type processorFunc func(ctx context.Context, ev events.ProcessVideo) error

func (f processorFunc) Process(ctx context.Context, ev events.ProcessVideo) error {
	return f(ctx, ev)
}

func newTestDispatcher(t *testing.T, fn processorFunc) *Dispatcher {
	t.Helper()
	p := pool.NewWorkerPool(2, 2)
	t.Cleanup(p.Close)
	return NewDispatcher(p, fn, zaptest.NewLogger(t))
}

func TestDispatcher_ProcessVideoRunsOnPool(t *testing.T) {
	var got events.ProcessVideo
	d := newTestDispatcher(t, func(ctx context.Context, ev events.ProcessVideo) error {
		got = ev
		return nil
	})

	if err := d.Handle(context.Background(), events.ProcessVideo{VideoID: 3, TaskID: 4}); err != nil {
		t.Fatalf("Handle failed: %v", err)
	}
	if got.VideoID != 3 || got.TaskID != 4 {
		t.Errorf("Unexpected event %+v", got)
	}
}

func TestDispatcher_PoisonIsSwallowed(t *testing.T) {
	d := newTestDispatcher(t, func(ctx context.Context, ev events.ProcessVideo) error {
		return fmt.Errorf("%w: task 4 not found", ErrPoisonMessage)
	})

	if err := d.Handle(context.Background(), events.ProcessVideo{VideoID: 3, TaskID: 4}); err != nil {
		t.Errorf("Expected poison message to be dropped, got %v", err)
	}
}

func TestDispatcher_InfrastructureErrorIsReturned(t *testing.T) {
	boom := errors.New("database unavailable")
	d := newTestDispatcher(t, func(ctx context.Context, ev events.ProcessVideo) error {
		return boom
	})

	if err := d.Handle(context.Background(), events.ProcessVideo{VideoID: 3, TaskID: 4}); !errors.Is(err, boom) {
		t.Errorf("Expected %v, got %v", boom, err)
	}
}

func TestDispatcher_DummyIsLogged(t *testing.T) {
	called := false
	d := newTestDispatcher(t, func(ctx context.Context, ev events.ProcessVideo) error {
		called = true
		return nil
	})

	if err := d.Handle(context.Background(), events.Dummy{Data: map[string]any{"ping": true}}); err != nil {
		t.Errorf("Expected nil, got %v", err)
	}
	if called {
		t.Error("Expected processor not to run for dummy events")
	}
}
