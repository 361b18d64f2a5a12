package testsupport

import (
	"context"
	"slices"
	"strings"
	"sync"

	"webmpipe/internal/encoder"
)

// PassLogName is the statistics file the fake worker produces for "-f null -"
// runs, mirroring ffmpeg's default.
const PassLogName = "ffmpeg2pass-0.log"

// JobMatcher selects jobs for a FakeWorker rule.
type JobMatcher func(encoder.Job) bool

// ArgsContain matches jobs whose argument list contains seq contiguously.
func ArgsContain(seq ...string) JobMatcher {
	return func(job encoder.Job) bool {
		if len(seq) == 0 {
			return true
		}
		for i := 0; i+len(seq) <= len(job.Args); i++ {
			if slices.Equal(job.Args[i:i+len(seq)], seq) {
				return true
			}
		}
		return false
	}
}

// Output matches jobs whose final argument is name.
func Output(name string) JobMatcher {
	return func(job encoder.Job) bool {
		return len(job.Args) > 0 && job.Args[len(job.Args)-1] == name
	}
}

// All matches jobs satisfying every matcher.
func All(matchers ...JobMatcher) JobMatcher {
	return func(job encoder.Job) bool {
		for _, m := range matchers {
			if !m(job) {
				return false
			}
		}
		return true
	}
}

type rule struct {
	match JobMatcher
	err   error
	lines []string
	gate  chan struct{}
}

// FakeWorker is a scriptable encoder.Worker. By default a job succeeds and
// produces one file named after its last argument whose content lists the
// job's input names; "-" produces PassLogName.
type FakeWorker struct {
	mu      sync.Mutex
	rules   []*rule
	jobs    []encoder.Job
	started chan encoder.Job
}

// NewFakeWorker returns a worker with no rules.
func NewFakeWorker() *FakeWorker {
	return &FakeWorker{started: make(chan encoder.Job, 256)}
}

// FailWhen makes matching jobs return err.
func (w *FakeWorker) FailWhen(match JobMatcher, err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.rules = append(w.rules, &rule{match: match, err: err})
}

// EmitWhen makes matching jobs report lines before finishing.
func (w *FakeWorker) EmitWhen(match JobMatcher, lines ...string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.rules = append(w.rules, &rule{match: match, lines: lines})
}

// BlockWhen holds matching jobs until the returned release function is
// called or the job's context ends.
func (w *FakeWorker) BlockWhen(match JobMatcher) (release func()) {
	gate := make(chan struct{})
	w.mu.Lock()
	w.rules = append(w.rules, &rule{match: match, gate: gate})
	w.mu.Unlock()
	var once sync.Once
	return func() { once.Do(func() { close(gate) }) }
}

// Started delivers every job as it begins.
func (w *FakeWorker) Started() <-chan encoder.Job {
	return w.started
}

// Jobs returns every job received so far in arrival order.
func (w *FakeWorker) Jobs() []encoder.Job {
	w.mu.Lock()
	defer w.mu.Unlock()
	return slices.Clone(w.jobs)
}

// Run implements encoder.Worker.
func (w *FakeWorker) Run(ctx context.Context, job encoder.Job, onLog func(string)) ([]encoder.File, error) {
	w.mu.Lock()
	w.jobs = append(w.jobs, job)
	var matched []*rule
	for _, r := range w.rules {
		if r.match(job) {
			matched = append(matched, r)
		}
	}
	w.mu.Unlock()

	select {
	case w.started <- job:
	default:
	}

	for _, r := range matched {
		for _, line := range r.lines {
			if onLog != nil {
				onLog(line)
			}
		}
	}
	for _, r := range matched {
		if r.gate == nil {
			continue
		}
		select {
		case <-r.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	for _, r := range matched {
		if r.err != nil {
			return nil, r.err
		}
	}

	if len(job.Args) == 0 {
		return nil, nil
	}
	name := job.Args[len(job.Args)-1]
	if name == "-" {
		name = PassLogName
	}
	inputs := make([]string, 0, len(job.Inputs))
	for _, in := range job.Inputs {
		inputs = append(inputs, in.Name)
	}
	return []encoder.File{{Name: name, Data: []byte(strings.Join(inputs, ","))}}, nil
}

var _ encoder.Worker = (*FakeWorker)(nil)
