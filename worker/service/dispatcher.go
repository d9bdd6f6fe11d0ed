package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"videotasks/events"
	"videotasks/worker/pool"
)

type VideoProcessor interface {
	Process(ctx context.Context, ev events.ProcessVideo) error
}

// Dispatcher routes decoded events. ProcessVideo runs on the worker pool
// and Handle waits for it, so a message is acknowledged only after its
// pipeline run ends.
type Dispatcher struct {
	pool      *pool.WorkerPool
	processor VideoProcessor
	logger    *zap.Logger
}

func NewDispatcher(p *pool.WorkerPool, processor VideoProcessor, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{pool: p, processor: processor, logger: logger}
}

func (d *Dispatcher) Handle(ctx context.Context, ev events.Event) error {
	switch e := ev.(type) {
	case events.ProcessVideo:
		return d.processVideo(ctx, e)
	case events.Dummy:
		d.logger.Info("Dummy event received", zap.Any("data", e.Data))
		return nil
	default:
		return fmt.Errorf("no handler for event %T", ev)
	}
}

func (d *Dispatcher) processVideo(ctx context.Context, ev events.ProcessVideo) error {
	result, err := d.pool.Submit(ctx, func(ctx context.Context) error {
		return d.processor.Process(ctx, ev)
	})
	if err != nil {
		return err
	}

	select {
	case err = <-result:
	case <-ctx.Done():
		return ctx.Err()
	}

	if errors.Is(err, ErrPoisonMessage) {
		d.logger.Warn("Dropping poison message",
			zap.Int64("task", ev.TaskID),
			zap.Int64("video_id", ev.VideoID),
			zap.Error(err),
		)
		return nil
	}
	return err
}
