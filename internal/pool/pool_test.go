package pool_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"webmpipe/internal/encoder"
	"webmpipe/internal/logging"
	"webmpipe/internal/pool"
	"webmpipe/internal/services"
)

// gatedWorker blocks each job until its name is released.
type gatedWorker struct {
	mu      sync.Mutex
	gates   map[string]chan struct{}
	started chan string
	active  atomic.Int32
	peak    atomic.Int32
}

func newGatedWorker() *gatedWorker {
	return &gatedWorker{gates: make(map[string]chan struct{}), started: make(chan string, 64)}
}

func (w *gatedWorker) gate(name string) chan struct{} {
	w.mu.Lock()
	defer w.mu.Unlock()
	g, ok := w.gates[name]
	if !ok {
		g = make(chan struct{})
		w.gates[name] = g
	}
	return g
}

func (w *gatedWorker) release(name string) { close(w.gate(name)) }

func (w *gatedWorker) Run(ctx context.Context, job encoder.Job, onLog func(string)) ([]encoder.File, error) {
	name := job.Args[0]
	n := w.active.Add(1)
	defer w.active.Add(-1)
	for {
		peak := w.peak.Load()
		if n <= peak || w.peak.CompareAndSwap(peak, n) {
			break
		}
	}
	w.started <- name
	onLog(name + " running")
	select {
	case <-w.gate(name):
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if len(job.Args) > 1 && job.Args[1] == "fail" {
		return nil, errors.New("exit status 1")
	}
	return []encoder.File{{Name: name + ".out", Data: []byte(name)}}, nil
}

func waitStarted(t *testing.T, w *gatedWorker) string {
	t.Helper()
	select {
	case name := <-w.started:
		return name
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for job start")
		return ""
	}
}

func TestSpawnRunsFIFOWithinCapacity(t *testing.T) {
	w := newGatedWorker()
	p := pool.New(w, 2, logging.NewNop())

	futures := make([]*pool.Future, 4)
	for i := range futures {
		futures[i] = p.Spawn(encoder.Job{Args: []string{fmt.Sprintf("job%d", i)}}, nil)
	}

	first, second := waitStarted(t, w), waitStarted(t, w)
	if !(first == "job0" && second == "job1" || first == "job1" && second == "job0") {
		t.Fatalf("expected job0 and job1 to start first, got %s and %s", first, second)
	}
	if stats := p.Stats(); stats.Running != 2 || stats.Queued != 2 || stats.Capacity != 2 {
		t.Fatalf("unexpected stats %+v", stats)
	}

	w.release("job1")
	if got := waitStarted(t, w); got != "job2" {
		t.Fatalf("expected job2 next, got %s", got)
	}
	w.release("job0")
	if got := waitStarted(t, w); got != "job3" {
		t.Fatalf("expected job3 next, got %s", got)
	}
	w.release("job2")
	w.release("job3")

	for i, f := range futures {
		files, err := f.Wait(context.Background())
		if err != nil {
			t.Fatalf("future %d: %v", i, err)
		}
		if len(files) != 1 || files[0].Name != fmt.Sprintf("job%d.out", i) {
			t.Fatalf("future %d: unexpected files %+v", i, files)
		}
	}
	if peak := w.peak.Load(); peak > 2 {
		t.Fatalf("capacity exceeded: peak %d", peak)
	}
}

func TestWorkerFailureRejectsWithExternalToolMarker(t *testing.T) {
	w := newGatedWorker()
	p := pool.New(w, 1, nil)

	f := p.Spawn(encoder.Job{Args: []string{"bad", "fail"}}, nil)
	waitStarted(t, w)
	w.release("bad")

	_, err := f.Wait(context.Background())
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected ErrExternalTool, got %v", err)
	}
}

func TestWorkerPanicBecomesRejection(t *testing.T) {
	p := pool.New(encoder.WorkerFunc(func(context.Context, encoder.Job, func(string)) ([]encoder.File, error) {
		panic("boom")
	}), 1, nil)

	_, err := p.Spawn(encoder.Job{Args: []string{"x"}}, nil).Wait(context.Background())
	if err == nil || !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected crash rejection, got %v", err)
	}
}

func TestDestroyRejectsQueuedAndRunning(t *testing.T) {
	w := newGatedWorker()
	p := pool.New(w, 1, nil)

	running := p.Spawn(encoder.Job{Args: []string{"a"}}, nil)
	queued := p.Spawn(encoder.Job{Args: []string{"b"}}, nil)
	waitStarted(t, w)

	p.Destroy()
	p.Destroy()

	for name, f := range map[string]*pool.Future{"running": running, "queued": queued} {
		_, ok, err := f.Result()
		if !ok {
			t.Fatalf("%s future not resolved after Destroy", name)
		}
		if !errors.Is(err, pool.ErrCancelled) || !services.IsCancellation(err) {
			t.Fatalf("%s: expected ErrCancelled, got %v", name, err)
		}
	}

	late := p.Spawn(encoder.Job{Args: []string{"c"}}, nil)
	if _, ok, err := late.Result(); !ok || !errors.Is(err, pool.ErrCancelled) {
		t.Fatalf("expected spawn after destroy to be rejected, got %v (resolved=%v)", err, ok)
	}

	select {
	case name := <-w.started:
		t.Fatalf("queued job %s started after destroy", name)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestDestroyFromLogCallback(t *testing.T) {
	w := newGatedWorker()
	p := pool.New(w, 1, nil)

	var lines atomic.Int32
	f := p.Spawn(encoder.Job{Args: []string{"a"}}, func(string) {
		lines.Add(1)
		p.Destroy()
	})

	select {
	case <-f.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("destroy from callback did not resolve the future")
	}
	if _, _, err := f.Result(); !errors.Is(err, pool.ErrCancelled) {
		t.Fatalf("expected ErrCancelled, got %v", err)
	}
	if lines.Load() != 1 {
		t.Fatalf("expected exactly one forwarded line, got %d", lines.Load())
	}
}

func TestShutdownDrainsQueue(t *testing.T) {
	w := newGatedWorker()
	p := pool.New(w, 1, nil)

	a := p.Spawn(encoder.Job{Args: []string{"a"}}, nil)
	b := p.Spawn(encoder.Job{Args: []string{"b"}}, nil)

	go func() {
		<-w.started
		w.release("a")
		<-w.started
		w.release("b")
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := p.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown returned error: %v", err)
	}
	for _, f := range []*pool.Future{a, b} {
		if _, ok, err := f.Result(); !ok || err != nil {
			t.Fatalf("expected successful resolution, got %v (resolved=%v)", err, ok)
		}
	}
	if _, _, err := p.Spawn(encoder.Job{Args: []string{"c"}}, nil).Result(); !errors.Is(err, pool.ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}

func TestShutdownTimeoutDestroys(t *testing.T) {
	w := newGatedWorker()
	p := pool.New(w, 1, nil)
	f := p.Spawn(encoder.Job{Args: []string{"stuck"}}, nil)
	waitStarted(t, w)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := p.Shutdown(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}
	if _, ok, err := f.Result(); !ok || !errors.Is(err, pool.ErrCancelled) {
		t.Fatalf("expected cancelled future, got %v (resolved=%v)", err, ok)
	}
}

func TestNewClampsCapacity(t *testing.T) {
	if got := pool.New(newGatedWorker(), 0, nil).Capacity(); got != 1 {
		t.Fatalf("expected capacity 1, got %d", got)
	}
}

func TestJobErrorKeepsWorkerMessage(t *testing.T) {
	p := pool.New(encoder.WorkerFunc(func(context.Context, encoder.Job, func(string)) ([]encoder.File, error) {
		return nil, errors.New("decoder error")
	}), 1, nil)

	_, err := p.Spawn(encoder.Job{Args: []string{"x"}}, nil).Wait(context.Background())
	var jobErr *pool.JobError
	if !errors.As(err, &jobErr) {
		t.Fatalf("expected JobError, got %T", err)
	}
	if err.Error() != "decoder error" {
		t.Fatalf("unexpected message %q", err.Error())
	}
}
