package pipeline

import (
	"context"
	"errors"
	"slices"
	"testing"
	"time"

	"webmpipe/internal/encoder"
	"webmpipe/internal/pool"
	"webmpipe/internal/testsupport"
)

// diamond builds a -> b, c -> d with b and c independent.
func diamond(t *testing.T) *Graph {
	t.Helper()
	g := NewGraph()
	for _, st := range []*Stage{
		{ID: "a", Key: "A", Args: []string{"a"}},
		{ID: "b", Key: "B", Args: []string{"b"}, Deps: []string{"a"}},
		{ID: "c", Key: "C", Args: []string{"c"}},
		{ID: "d", Key: "D", Args: []string{"d"}, Deps: []string{"b", "c"}, Inputs: []encoder.File{{Name: "static"}}},
	} {
		if err := g.Add(st); err != nil {
			t.Fatalf("Add(%s): %v", st.ID, err)
		}
	}
	return g
}

func TestGraphAddRejectsDuplicatesAndUnknownDeps(t *testing.T) {
	g := NewGraph()
	if err := g.Add(&Stage{ID: "a"}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := g.Add(&Stage{ID: "a"}); !errors.Is(err, ErrDuplicateStage) {
		t.Fatalf("expected ErrDuplicateStage, got %v", err)
	}
	if err := g.Add(&Stage{ID: "b", Deps: []string{"missing"}}); !errors.Is(err, ErrUnknownDependency) {
		t.Fatalf("expected ErrUnknownDependency, got %v", err)
	}
	if err := g.Add(&Stage{ID: "c", Deps: []string{"c"}}); !errors.Is(err, ErrUnknownDependency) {
		t.Fatalf("expected self dependency to be rejected, got %v", err)
	}
}

func TestExecuteWaitsForEveryDependency(t *testing.T) {
	worker := testsupport.NewFakeWorker()
	releaseC := worker.BlockWhen(testsupport.Output("c"))
	spy := newSpy(worker, 4)
	obs := newRecordingObserver()

	type outcome struct {
		results map[string][]encoder.File
		err     error
	}
	g := diamond(t)
	done := make(chan outcome, 1)
	go func() {
		results, err := g.Execute(context.Background(), spy, obs)
		done <- outcome{results, err}
	}()

	seen := map[string]bool{}
	for !seen["b"] {
		select {
		case id := <-obs.finished:
			seen[id] = true
		case <-time.After(3 * time.Second):
			t.Fatal("b never finished")
		}
	}
	if slices.Contains(spy.Events(), "spawn d") {
		t.Fatalf("d spawned before c finished: %v", spy.Events())
	}
	releaseC()

	out := <-done
	if out.err != nil {
		t.Fatalf("Execute returned error: %v", out.err)
	}
	d := out.results["d"]
	if len(d) != 1 || string(d[0].Data) != "static,b,c" {
		t.Fatalf("d received unexpected inputs: %+v", d)
	}
	if got := obs.Started(); got[0] != "a" || got[1] != "c" || got[len(got)-1] != "d" {
		t.Fatalf("unexpected start order %v", got)
	}
}

func TestExecuteFailureDestroysBeforeFurtherProcessing(t *testing.T) {
	worker := testsupport.NewFakeWorker()
	worker.FailWhen(testsupport.Output("a"), errors.New("decoder error"))
	releaseC := worker.BlockWhen(testsupport.Output("c"))
	defer releaseC()
	spy := newSpy(worker, 4)

	_, err := diamond(t).Execute(context.Background(), spy, nil)
	var se *StageError
	if !errors.As(err, &se) {
		t.Fatalf("expected StageError, got %v", err)
	}
	if se.Key != "A" || se.ID != "a" || se.Message() != "decoder error" {
		t.Fatalf("unexpected stage error %+v (%s)", se, se.Message())
	}

	assertNoSpawnAfterDestroy(t, spy.Events())
	if slices.Contains(spy.Events(), "spawn b") {
		t.Fatalf("dependent of failed stage spawned: %v", spy.Events())
	}
}

func TestExecuteCancellationRejectsPendingFutures(t *testing.T) {
	worker := testsupport.NewFakeWorker()
	worker.BlockWhen(func(encoder.Job) bool { return true })
	capture := &captureSubmitter{spySubmitter: newSpy(worker, 4)}

	g := diamond(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := g.Execute(ctx, capture, nil)
		done <- err
	}()

	<-worker.Started()
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Execute did not return after cancel")
	}
	assertNoSpawnAfterDestroy(t, capture.Events())
	for _, f := range capture.Futures() {
		if _, ok, err := f.Result(); !ok || !errors.Is(err, pool.ErrCancelled) {
			t.Fatalf("expected cancelled future, got %v (resolved=%v)", err, ok)
		}
	}
}

func TestExecuteAlreadyCancelledSpawnsNothing(t *testing.T) {
	spy := newSpy(testsupport.NewFakeWorker(), 1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := diamond(t).Execute(ctx, spy, nil); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if events := spy.Events(); !slices.Equal(events, []string{"destroy"}) {
		t.Fatalf("unexpected events %v", events)
	}
}

type captureSubmitter struct {
	*spySubmitter
	futures []*pool.Future
}

func (c *captureSubmitter) Spawn(job encoder.Job, onLog func(string)) *pool.Future {
	f := c.spySubmitter.Spawn(job, onLog)
	c.mu.Lock()
	c.futures = append(c.futures, f)
	c.mu.Unlock()
	return f
}

func (c *captureSubmitter) Futures() []*pool.Future {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.futures)
}
