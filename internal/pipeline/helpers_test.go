package pipeline

import (
	"slices"
	"sync"
	"testing"
	"time"

	"webmpipe/internal/encoder"
	"webmpipe/internal/pool"
)

// spySubmitter records spawn and destroy calls in order before delegating to
// a real pool.
type spySubmitter struct {
	pool *pool.Pool

	mu     sync.Mutex
	events []string
}

func newSpy(worker encoder.Worker, capacity int) *spySubmitter {
	return &spySubmitter{pool: pool.New(worker, capacity, nil)}
}

func (s *spySubmitter) Spawn(job encoder.Job, onLog func(string)) *pool.Future {
	s.mu.Lock()
	s.events = append(s.events, "spawn "+job.Args[len(job.Args)-1])
	s.mu.Unlock()
	return s.pool.Spawn(job, onLog)
}

func (s *spySubmitter) Destroy() {
	s.mu.Lock()
	s.events = append(s.events, "destroy")
	s.mu.Unlock()
	s.pool.Destroy()
}

func (s *spySubmitter) Events() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.events)
}

// assertNoSpawnAfterDestroy fails when a spawn was recorded after the first
// destroy.
func assertNoSpawnAfterDestroy(t *testing.T, events []string) {
	t.Helper()
	destroyed := false
	for _, ev := range events {
		if ev == "destroy" {
			destroyed = true
			continue
		}
		if destroyed {
			t.Fatalf("spawn after destroy: %v", events)
		}
	}
	if !destroyed {
		t.Fatalf("pool was not destroyed: %v", events)
	}
}

type recordingObserver struct {
	mu       sync.Mutex
	started  []string
	finished chan string
}

func newRecordingObserver() *recordingObserver {
	return &recordingObserver{finished: make(chan string, 64)}
}

func (o *recordingObserver) StageStarted(st *Stage) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.started = append(o.started, st.ID)
}

func (o *recordingObserver) StageLog(*Stage, string) {}

func (o *recordingObserver) StageFinished(st *Stage, _ []encoder.File) {
	o.finished <- st.ID
}

func (o *recordingObserver) Started() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return slices.Clone(o.started)
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}
