package pool

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"webmpipe/internal/encoder"
	"webmpipe/internal/logging"
	"webmpipe/internal/services"
)

var (
	// ErrCancelled rejects jobs that were queued or running when the pool
	// was destroyed, and jobs spawned afterwards.
	ErrCancelled = fmt.Errorf("pool destroyed: %w", services.ErrCancelled)
	// ErrClosed rejects jobs spawned after Shutdown started.
	ErrClosed = errors.New("pool closed")
)

// JobError is the rejection for a job whose worker failed. Its message is
// the worker's own message; errors.Is also matches services.ErrExternalTool.
type JobError struct {
	Err error
}

func (e *JobError) Error() string {
	if e == nil || e.Err == nil {
		return "worker failed"
	}
	return e.Err.Error()
}

func (e *JobError) Unwrap() []error {
	return []error{services.ErrExternalTool, e.Err}
}

// Stats is a point-in-time view of pool occupancy.
type Stats struct {
	Capacity int
	Running  int
	Queued   int
}

// Pool dispatches jobs to at most capacity concurrent workers.
type Pool struct {
	worker   encoder.Worker
	capacity int
	logger   *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	running   map[*Future]context.CancelFunc
	queue     []*Future
	closed    bool
	destroyed bool
	pending   sync.WaitGroup
}

// New creates a pool. A capacity below one is raised to one.
func New(worker encoder.Worker, capacity int, logger *slog.Logger) *Pool {
	if capacity < 1 {
		capacity = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Pool{
		worker:   worker,
		capacity: capacity,
		logger:   logging.NewComponentLogger(logger, "pool"),
		ctx:      ctx,
		cancel:   cancel,
		running:  make(map[*Future]context.CancelFunc),
	}
}

// Capacity reports the number of worker slots.
func (p *Pool) Capacity() int {
	return p.capacity
}

// Spawn submits a job. It never blocks. onLog receives worker lines in order
// until the future resolves.
func (p *Pool) Spawn(job encoder.Job, onLog func(string)) *Future {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.destroyed {
		return rejected(ErrCancelled)
	}
	if p.closed {
		return rejected(ErrClosed)
	}

	f := newFuture(job, onLog)
	p.pending.Add(1)
	if len(p.running) < p.capacity {
		p.startLocked(f)
	} else {
		p.queue = append(p.queue, f)
		p.logger.Debug("job queued", logging.Int("queued", len(p.queue)))
	}
	return f
}

func (p *Pool) startLocked(f *Future) {
	ctx, cancel := context.WithCancel(p.ctx)
	p.running[f] = cancel
	go p.run(ctx, f)
}

func (p *Pool) run(ctx context.Context, f *Future) {
	defer p.pending.Done()

	files, err := p.invoke(ctx, f)

	p.mu.Lock()
	defer p.mu.Unlock()

	if cancel, ok := p.running[f]; ok {
		cancel()
		delete(p.running, f)
	}
	if p.destroyed {
		f.resolve(nil, ErrCancelled)
		return
	}
	if err != nil {
		f.resolve(nil, &JobError{Err: err})
	} else {
		f.resolve(files, nil)
	}

	for len(p.queue) > 0 && len(p.running) < p.capacity {
		next := p.queue[0]
		p.queue[0] = nil
		p.queue = p.queue[1:]
		p.startLocked(next)
	}
}

// invoke runs the worker, converting a panic into an error.
func (p *Pool) invoke(ctx context.Context, f *Future) (files []encoder.File, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("worker crashed: %v", r)
		}
	}()
	return p.worker.Run(ctx, f.job, f.log)
}

// Destroy cancels every running job and rejects every queued one with
// ErrCancelled. It does not wait for workers to exit and may be called more
// than once.
func (p *Pool) Destroy() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.destroyed {
		return
	}
	p.destroyed = true
	p.closed = true

	queued := p.queue
	p.queue = nil
	for _, f := range queued {
		f.resolve(nil, ErrCancelled)
		p.pending.Done()
	}
	for f, cancel := range p.running {
		cancel()
		f.resolve(nil, ErrCancelled)
	}
	p.cancel()

	if len(queued) > 0 || len(p.running) > 0 {
		p.logger.Debug("pool destroyed",
			logging.Int("queued", len(queued)),
			logging.Int("running", len(p.running)),
		)
	}
}

// Shutdown stops accepting jobs and waits for queued and running jobs to
// finish. When ctx ends first the pool is destroyed and ctx's error returned.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()

	idle := make(chan struct{})
	go func() {
		p.pending.Wait()
		close(idle)
	}()

	select {
	case <-idle:
		p.cancel()
		return nil
	case <-ctx.Done():
		p.Destroy()
		return ctx.Err()
	}
}

// Stats reports current occupancy.
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Stats{Capacity: p.capacity, Running: len(p.running), Queued: len(p.queue)}
}
