package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"webmpipe/internal/encoder"
	"webmpipe/internal/logging"
	"webmpipe/internal/naming"
	"webmpipe/internal/options"
	"webmpipe/internal/services"
)

// ErrAlreadyExecuted is returned when Execute is called twice on one Run.
var ErrAlreadyExecuted = errors.New("run already executed")

// RunStatus is the disposition of a run. Cancelled is not a terminal result:
// a cancelled run carries no Result.
type RunStatus int

const (
	RunPending RunStatus = iota
	RunRunning
	RunSucceeded
	RunFailed
	RunCancelled
)

func (s RunStatus) String() string {
	switch s {
	case RunPending:
		return "pending"
	case RunRunning:
		return "running"
	case RunSucceeded:
		return "succeeded"
	case RunFailed:
		return "failed"
	case RunCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Result is the terminal outcome of a run: either the artifact or the
// failure with the key of the stage that caused it.
type Result struct {
	OutputName string
	Output     []byte
	Err        error
	Key        string
}

// Failed reports whether the result carries an error.
func (r Result) Failed() bool {
	return r.Err != nil
}

// Message is the human-readable failure message.
func (r Result) Message() string {
	var se *StageError
	if errors.As(r.Err, &se) {
		return se.Message()
	}
	if r.Err != nil {
		return r.Err.Error()
	}
	return ""
}

// RunOption configures a Run.
type RunOption func(*Run)

// WithLogger sets the process logger that Main milestones are teed into.
func WithLogger(logger *slog.Logger) RunOption {
	return func(r *Run) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithRunID overrides the generated run identifier.
func WithRunID(id string) RunOption {
	return func(r *Run) {
		if id != "" {
			r.id = id
		}
	}
}

// WithStreams records logs into an existing stream set instead of a fresh
// one. Keys must not be registered yet.
func WithStreams(set *logging.StreamSet) RunOption {
	return func(r *Run) {
		if set != nil {
			r.streams = set
		}
	}
}

type stageState struct {
	stage *Stage
	info  StageInfo
}

// Run is one execution of a pipeline.
type Run struct {
	id         string
	cfg        Config
	graph      *Graph
	streams    *logging.StreamSet
	logger     *slog.Logger
	main       *slog.Logger
	outputName string

	mu       sync.Mutex
	status   RunStatus
	started  time.Time
	finished time.Time
	result   Result
	stages   map[string]*stageState
	order    []string
}

// NewRun builds the graph for cfg and registers one log stream for Main and
// one per stage key.
func NewRun(cfg Config, opts ...RunOption) (*Run, error) {
	cfg = cfg.clone()
	graph, err := Build(cfg)
	if err != nil {
		return nil, err
	}

	r := &Run{
		id:         uuid.NewString(),
		cfg:        cfg,
		graph:      graph,
		logger:     logging.NewNop(),
		outputName: naming.OutputName(cfg.Source.Name, cfg.Extension),
		stages:     make(map[string]*stageState),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.streams == nil {
		r.streams = logging.NewStreamSet()
	}

	if err := r.streams.Register(KeyMain); err != nil {
		return nil, err
	}
	seen := map[string]struct{}{KeyMain: {}}
	for _, st := range graph.Stages() {
		r.stages[st.ID] = &stageState{stage: st, info: st.info()}
		r.order = append(r.order, st.ID)
		if _, ok := seen[st.Key]; ok {
			continue
		}
		seen[st.Key] = struct{}{}
		if err := r.streams.Register(st.Key); err != nil {
			return nil, err
		}
	}

	base := logging.NewComponentLogger(r.logger, "pipeline").With(logging.String(logging.FieldRunID, r.id))
	r.logger = base
	r.main = logging.TeeLogger(base, logging.NewStreamHandler(r.streams, KeyMain))
	return r, nil
}

// ID returns the run identifier.
func (r *Run) ID() string { return r.id }

// OutputName is the artifact name derived from the source name.
func (r *Run) OutputName() string { return r.outputName }

// Threads is the number of video pairs.
func (r *Run) Threads() int { return r.cfg.Threads }

// Streams exposes the log streams of the run.
func (r *Run) Streams() *logging.StreamSet { return r.streams }

// Snapshot returns the log streams in registration order.
func (r *Run) Snapshot() []logging.Stream { return r.streams.Snapshot() }

// Status reports the current disposition.
func (r *Run) Status() RunStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

// Started returns the time Execute began, or zero.
func (r *Run) Started() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.started
}

// Elapsed is the wall-clock duration of the run so far.
func (r *Run) Elapsed() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.elapsedLocked()
}

func (r *Run) elapsedLocked() time.Duration {
	switch {
	case r.started.IsZero():
		return 0
	case r.finished.IsZero():
		return time.Since(r.started)
	default:
		return r.finished.Sub(r.started)
	}
}

// Result returns the terminal outcome. ok is false while running and after
// cancellation.
func (r *Run) Result() (Result, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.status != RunSucceeded && r.status != RunFailed {
		return Result{}, false
	}
	return r.result, true
}

// Stages returns a view of every stage in graph order.
func (r *Run) Stages() []StageInfo {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]StageInfo, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.stages[id].info)
	}
	return out
}

// Progress is the mean completion of all stages on a 0 to 100 scale.
func (r *Run) Progress() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.status == RunSucceeded {
		return 100
	}
	if len(r.order) == 0 {
		return 0
	}
	var sum float64
	for _, id := range r.order {
		sum += r.stages[id].info.Progress
	}
	return sum / float64(len(r.order)) * 100
}

// Execute drives the graph through sub. It returns the Result and nil on
// success, the Result and a *StageError on failure, and ctx's error with an
// empty Result when cancelled. Execute may only be called once.
func (r *Run) Execute(ctx context.Context, sub Submitter) (Result, error) {
	r.mu.Lock()
	if r.status != RunPending {
		r.mu.Unlock()
		return Result{}, ErrAlreadyExecuted
	}
	r.status = RunRunning
	r.started = time.Now()
	if !r.cfg.Source.Keep {
		// Stage inputs hold the only remaining reference.
		r.cfg.Source.Data = nil
	}
	r.mu.Unlock()

	ctx = services.WithRunID(ctx, r.id)
	r.main.Info(fmt.Sprintf("spawning %d video thread(s)", r.cfg.Threads))

	outputs, err := r.graph.Execute(ctx, sub, r)
	if err != nil {
		var se *StageError
		switch {
		case errors.As(err, &se):
			return r.fail(se), se
		case services.IsCancellation(err):
			r.cancelled()
			return Result{}, err
		default:
			se = &StageError{Key: KeyMain, Err: err}
			return r.fail(se), se
		}
	}

	out, ok := encoder.Lookup(outputs["mux"], MuxOutput)
	if !ok {
		se := &StageError{ID: "mux", Key: KeyMux, Err: fmt.Errorf("malformed output: %s missing", MuxOutput)}
		return r.fail(se), se
	}
	return r.succeed(out), nil
}

func (r *Run) succeed(out encoder.File) Result {
	r.mu.Lock()
	r.status = RunSucceeded
	r.finished = time.Now()
	r.result = Result{OutputName: r.outputName, Output: out.Data}
	elapsed := r.elapsedLocked()
	result := r.result
	r.mu.Unlock()

	r.main.Info(r.summary(elapsed, int64(len(out.Data))))
	return result
}

func (r *Run) fail(se *StageError) Result {
	r.mu.Lock()
	if r.status != RunRunning {
		result := r.result
		r.mu.Unlock()
		return result
	}
	r.status = RunFailed
	r.finished = time.Now()
	r.result = Result{Err: se, Key: se.Key}
	if st, ok := r.stages[se.ID]; ok {
		st.info.Status = StatusFailed
		st.info.Finished = r.finished
		st.info.Err = se.Message()
	}
	r.abortRunningLocked()
	result := r.result
	r.mu.Unlock()

	logging.ErrorWithContext(r.main, fmt.Sprintf("Fatal error at %s: %s", se.Key, se.Message()), "stage_failed",
		logging.String(logging.FieldStage, se.Key),
	)
	return result
}

func (r *Run) cancelled() {
	r.mu.Lock()
	if r.status != RunRunning {
		r.mu.Unlock()
		return
	}
	r.status = RunCancelled
	r.finished = time.Now()
	r.abortRunningLocked()
	elapsed := r.elapsedLocked()
	r.mu.Unlock()

	r.main.Info(fmt.Sprintf("Cancelled after %s", naming.FormatDuration(elapsed)))
}

// abortRunningLocked closes out every stage still in flight at the terminal
// transition.
func (r *Run) abortRunningLocked() {
	for _, id := range r.order {
		state := r.stages[id]
		if state.info.Status != StatusRunning {
			continue
		}
		state.info.Status = StatusAborted
		state.info.Finished = r.finished
		state.info.Err = "aborted"
	}
}

func (r *Run) summary(elapsed time.Duration, size int64) string {
	video := bitrateOption(r.cfg.Options, "-b:v")
	audio := "none"
	if r.cfg.Audio {
		audio = bitrateOption(r.cfg.Options, "-b:a")
	}
	line := fmt.Sprintf("Done in %s, output size %s (%s bytes), video bitrate %s, audio bitrate %s",
		naming.FormatDuration(elapsed),
		naming.FormatSize(size),
		naming.FormatBytes(size),
		video,
		audio,
	)
	if r.cfg.Duration > 0 {
		line += ", effective " + naming.FormatBitrate(naming.EffectiveBitrate(size, r.cfg.Duration))
	}
	return line
}

func bitrateOption(list []string, flag string) string {
	if v := options.Value(list, flag, ""); v != "" {
		return v
	}
	return "default"
}

// StageStarted implements Observer.
func (r *Run) StageStarted(st *Stage) {
	r.mu.Lock()
	if r.status != RunRunning {
		r.mu.Unlock()
		return
	}
	state := r.stages[st.ID]
	state.info.Status = StatusRunning
	state.info.Started = time.Now()
	_ = r.streams.Append(st.Key, "$ "+r.cfg.BinaryName+" "+options.Join(st.Args))
	r.mu.Unlock()

	if st.Pass > 0 {
		r.main.Info(fmt.Sprintf("%s started pass %d", st.Key, st.Pass))
	} else {
		r.main.Info(st.Key + " started")
	}
}

// StageLog implements Observer. Lines arriving after the run ended are
// dropped.
func (r *Run) StageLog(st *Stage, line string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.status != RunRunning {
		return
	}
	state := r.stages[st.ID]
	if state.info.Status != StatusRunning {
		return
	}
	if pos, ok := parseProgressTime(line); ok {
		if f := stageFraction(pos, st.Span); f > state.info.Progress {
			state.info.Progress = f
		}
	}
	_ = r.streams.Append(st.Key, line)
}

// StageFinished implements Observer.
func (r *Run) StageFinished(st *Stage, outputs []encoder.File) {
	r.mu.Lock()
	if r.status != RunRunning {
		r.mu.Unlock()
		return
	}
	state := r.stages[st.ID]
	state.info.Status = StatusCompleted
	state.info.Finished = time.Now()
	state.info.OutputBytes = encoder.TotalSize(outputs)
	state.info.Progress = 1
	r.mu.Unlock()

	if st.Pass > 0 {
		r.main.Info(fmt.Sprintf("%s finished pass %d", st.Key, st.Pass))
	} else {
		r.main.Info(st.Key + " finished")
	}
}

var _ Observer = (*Run)(nil)
