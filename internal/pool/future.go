package pool

import (
	"context"
	"sync"

	"webmpipe/internal/encoder"
)

// Future is the eventual result of a spawned job.
type Future struct {
	job   encoder.Job
	onLog func(string)

	once  sync.Once
	done  chan struct{}
	files []encoder.File
	err   error
}

func newFuture(job encoder.Job, onLog func(string)) *Future {
	return &Future{job: job, onLog: onLog, done: make(chan struct{})}
}

func rejected(err error) *Future {
	f := newFuture(encoder.Job{}, nil)
	f.resolve(nil, err)
	return f
}

// resolve settles the future; later calls are ignored.
func (f *Future) resolve(files []encoder.File, err error) bool {
	settled := false
	f.once.Do(func() {
		f.files = files
		f.err = err
		close(f.done)
		settled = true
	})
	return settled
}

func (f *Future) resolved() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

// Done is closed once the future resolves.
func (f *Future) Done() <-chan struct{} {
	return f.done
}

// Wait blocks until the future resolves or ctx ends.
func (f *Future) Wait(ctx context.Context) ([]encoder.File, error) {
	select {
	case <-f.done:
		return f.files, f.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Result returns the outcome without blocking. ok is false while the job is
// still queued or running.
func (f *Future) Result() ([]encoder.File, bool, error) {
	if !f.resolved() {
		return nil, false, nil
	}
	return f.files, true, f.err
}

// log forwards a worker line unless the future already settled.
func (f *Future) log(line string) {
	if f.onLog == nil || f.resolved() {
		return
	}
	f.onLog(line)
}
