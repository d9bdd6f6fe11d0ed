package pool

import (
	"context"
	"errors"
	"sync"
)

var ErrPoolClosed = errors.New("worker pool closed")

type Job func(ctx context.Context) error

type request struct {
	ctx    context.Context
	job    Job
	result chan error
}

// WorkerPool runs jobs on a fixed set of goroutines fed from a bounded
// queue. Submit blocks while the queue is full.
type WorkerPool struct {
	queue chan request
	wg    sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

func NewWorkerPool(maxWorkers, queueSize int) *WorkerPool {
	if maxWorkers < 1 {
		maxWorkers = 1
	}
	if queueSize < 0 {
		queueSize = 0
	}

	p := &WorkerPool{queue: make(chan request, queueSize)}
	for i := 0; i < maxWorkers; i++ {
		p.wg.Add(1)
		go p.work()
	}
	return p
}

func (p *WorkerPool) work() {
	defer p.wg.Done()
	for req := range p.queue {
		if err := req.ctx.Err(); err != nil {
			req.result <- err
			continue
		}
		req.result <- req.job(req.ctx)
	}
}

// Submit queues job and returns a channel that receives its error once it
// has run. The channel is buffered so nobody has to read it.
func (p *WorkerPool) Submit(ctx context.Context, job Job) (<-chan error, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return nil, ErrPoolClosed
	}

	req := request{ctx: ctx, job: job, result: make(chan error, 1)}
	select {
	case p.queue <- req:
		return req.result, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close stops accepting jobs and waits for the queued ones to finish.
func (p *WorkerPool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.queue)
	p.mu.Unlock()

	p.wg.Wait()
}
