package controller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"webmpipe/internal/config"
	"webmpipe/internal/encoder"
	"webmpipe/internal/history"
	"webmpipe/internal/logging"
	"webmpipe/internal/options"
	"webmpipe/internal/pipeline"
	"webmpipe/internal/pool"
	"webmpipe/internal/services"
)

var (
	// ErrRunActive is returned by Start while a run is in progress.
	ErrRunActive = errors.New("a run is already active")
	// ErrNoRun is returned by Restart before anything was started.
	ErrNoRun = errors.New("no previous run")
	// ErrSourceConsumed is returned by Restart when the previous source was
	// not kept.
	ErrSourceConsumed = errors.New("source was consumed by the previous run")
)

// Input describes one run. Nil Options selects the configured defaults.
type Input struct {
	Source   pipeline.Source
	Options  []string
	Font     *encoder.File
	BurnSubs bool
	Audio    bool
	Threads  int
	Duration time.Duration
}

// Recorder receives every terminal outcome.
type Recorder interface {
	Record(ctx context.Context, e history.Entry) error
}

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the process logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Controller) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithRecorder journals finished runs.
func WithRecorder(r Recorder) Option {
	return func(c *Controller) {
		c.recorder = r
	}
}

// Controller runs one pipeline at a time.
type Controller struct {
	cfg      *config.Config
	worker   encoder.Worker
	logger   *slog.Logger
	recorder Recorder

	mu        sync.Mutex
	run       *pipeline.Run
	pool      *pool.Pool
	cancel    context.CancelFunc
	done      chan struct{}
	input     Input
	hasInput  bool
	consumed  bool
	result    pipeline.Result
	hasResult bool
	runErr    error
}

// New constructs a controller that dispatches work to worker.
func New(cfg *config.Config, worker encoder.Worker, opts ...Option) *Controller {
	c := &Controller{cfg: cfg, worker: worker, logger: logging.NewNop()}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = logging.NewComponentLogger(c.logger, "controller")
	return c
}

func (c *Controller) activeLocked() bool {
	if c.done == nil {
		return false
	}
	select {
	case <-c.done:
		return false
	default:
		return true
	}
}

// Start begins a run. The run continues in the background until it
// finishes, Cancel is called, or ctx ends.
func (c *Controller) Start(ctx context.Context, in Input) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.activeLocked() {
		return ErrRunActive
	}

	cfg := c.pipelineConfig(in)
	run, err := pipeline.NewRun(cfg, pipeline.WithLogger(c.logger))
	if err != nil {
		return err
	}
	p := pool.New(c.worker, c.cfg.Pool.Workers, c.logger)

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	c.run = run
	c.pool = p
	c.cancel = cancel
	c.done = done
	c.result = pipeline.Result{}
	c.hasResult = false
	c.runErr = nil
	c.input = in
	c.hasInput = true
	c.consumed = !in.Source.Keep
	if c.consumed {
		c.input.Source.Data = nil
	}

	c.logger.Info("run started",
		logging.String(logging.FieldRunID, run.ID()),
		logging.String("source", in.Source.Name),
		logging.Int("threads", cfg.Threads),
		logging.Int("workers", p.Capacity()),
	)

	go c.execute(runCtx, cancel, run, p, done)
	return nil
}

func (c *Controller) pipelineConfig(in Input) pipeline.Config {
	opts := in.Options
	if opts == nil {
		opts = options.Parse(c.cfg.Encoder.DefaultOptions)
	}
	return pipeline.Config{
		Options:        opts,
		Source:         in.Source,
		Font:           in.Font,
		BurnSubs:       in.BurnSubs,
		Audio:          in.Audio,
		Threads:        c.cfg.ClampThreads(in.Threads),
		Duration:       in.Duration,
		FirstPassSpeed: c.cfg.Encoder.FirstPassSpeed,
		Extension:      c.cfg.Encoder.TargetExtension,
		BinaryName:     filepath.Base(c.cfg.Encoder.FFmpegBinary),
	}
}

func (c *Controller) execute(ctx context.Context, cancel context.CancelFunc, run *pipeline.Run, p *pool.Pool, done chan struct{}) {
	defer close(done)
	defer cancel()

	ctx = services.WithRunID(ctx, run.ID())
	logger := logging.WithContext(ctx, c.logger)

	res, err := run.Execute(ctx, p)
	if err == nil {
		if shutdownErr := p.Shutdown(context.Background()); shutdownErr != nil {
			logger.Warn("pool shutdown failed", logging.Error(shutdownErr))
		}
	} else {
		p.Destroy()
	}

	c.mu.Lock()
	if _, ok := run.Result(); ok {
		c.result = res
		c.hasResult = true
	}
	c.runErr = err
	c.mu.Unlock()

	switch {
	case err == nil:
		logger.Info("run succeeded", logging.String("output", res.OutputName), logging.Int("bytes", len(res.Output)))
	case services.IsCancellation(err):
		logger.Info("run cancelled")
	default:
		logger.Warn("run failed",
			logging.String(logging.FieldStage, res.Key),
			logging.Error(err),
			logging.String(logging.FieldEventType, "run_failed"),
			logging.String(logging.FieldErrorHint, "see the stage log for the failing command"),
		)
	}

	c.record(run, res, err)
}

func (c *Controller) record(run *pipeline.Run, res pipeline.Result, runErr error) {
	if c.recorder == nil {
		return
	}
	c.mu.Lock()
	in := c.input
	c.mu.Unlock()

	entry := history.Entry{
		ID:         run.ID(),
		Source:     in.Source.Name,
		Threads:    run.Threads(),
		Audio:      in.Audio,
		StartedAt:  run.Started(),
		FinishedAt: run.Started().Add(run.Elapsed()),
	}
	if in.Options != nil {
		entry.Options = options.Join(in.Options)
	} else {
		entry.Options = c.cfg.Encoder.DefaultOptions
	}
	switch {
	case runErr == nil:
		entry.Status = history.StatusSucceeded
		entry.Output = res.OutputName
		entry.OutputBytes = int64(len(res.Output))
	case res.Failed():
		entry.Status = history.StatusFailed
		entry.FailedKey = res.Key
		entry.Message = res.Message()
	default:
		entry.Status = history.StatusCancelled
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.recorder.Record(ctx, entry); err != nil {
		c.logger.Warn("history record failed",
			logging.String(logging.FieldRunID, entry.ID),
			logging.Error(err),
		)
	}
}

// Cancel aborts the active run. It is a no-op when nothing is running.
func (c *Controller) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.activeLocked() && c.cancel != nil {
		c.cancel()
	}
}

// Restart cancels the active run, waits for it to stop, and starts again
// with the previous input.
func (c *Controller) Restart(ctx context.Context) error {
	c.mu.Lock()
	in, hasInput, consumed := c.input, c.hasInput, c.consumed
	c.mu.Unlock()

	if !hasInput {
		return ErrNoRun
	}
	if consumed {
		return ErrSourceConsumed
	}

	c.Cancel()
	// The previous outcome is irrelevant here; only ctx ending aborts.
	_, _ = c.Wait(ctx)
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("wait for previous run: %w", err)
	}
	return c.Start(ctx, in)
}

// Wait blocks until the current run finishes or ctx ends. It returns the
// result with a nil error on success, the result with the stage error on
// failure, and context.Canceled after cancellation.
func (c *Controller) Wait(ctx context.Context) (pipeline.Result, error) {
	c.mu.Lock()
	done := c.done
	c.mu.Unlock()
	if done == nil {
		return pipeline.Result{}, ErrNoRun
	}

	select {
	case <-done:
	case <-ctx.Done():
		return pipeline.Result{}, ctx.Err()
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.result, c.runErr
}

// Result returns the terminal result of the latest run. ok is false while
// running, after cancellation, and before the first run.
func (c *Controller) Result() (pipeline.Result, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.result, c.hasResult
}

// Active reports whether a run is in progress.
func (c *Controller) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.activeLocked()
}

func (c *Controller) current() *pipeline.Run {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.run
}

// RunID identifies the latest run.
func (c *Controller) RunID() string {
	if run := c.current(); run != nil {
		return run.ID()
	}
	return ""
}

// Snapshot returns the log streams of the latest run.
func (c *Controller) Snapshot() []logging.Stream {
	if run := c.current(); run != nil {
		return run.Snapshot()
	}
	return nil
}

// Stages returns the stage view of the latest run.
func (c *Controller) Stages() []pipeline.StageInfo {
	if run := c.current(); run != nil {
		return run.Stages()
	}
	return nil
}

// Progress returns the latest run's completion on a 0 to 100 scale.
func (c *Controller) Progress() float64 {
	if run := c.current(); run != nil {
		return run.Progress()
	}
	return 0
}

// Updates blocks until the latest run's logs change past version.
func (c *Controller) Updates(ctx context.Context, version uint64) (uint64, error) {
	run := c.current()
	if run == nil {
		return 0, ErrNoRun
	}
	return run.Streams().Wait(ctx, version)
}

// PoolStats reports the occupancy of the latest run's pool.
func (c *Controller) PoolStats() pool.Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pool == nil {
		return pool.Stats{}
	}
	return c.pool.Stats()
}
