package encoder

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"webmpipe/internal/logging"
	"webmpipe/internal/services"
)

var commandContext = exec.CommandContext

// killGrace bounds how long Wait blocks on pipes after the process group was
// killed.
const killGrace = 5 * time.Second

// Option configures a Process worker.
type Option func(*Process)

// WithBinary overrides the executable name.
func WithBinary(binary string) Option {
	return func(p *Process) {
		if strings.TrimSpace(binary) != "" {
			p.binary = strings.TrimSpace(binary)
		}
	}
}

// WithWorkDir sets the parent directory for per-job scratch directories.
func WithWorkDir(dir string) Option {
	return func(p *Process) {
		p.workDir = strings.TrimSpace(dir)
	}
}

// WithLogger attaches a debug logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Process) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// Process runs ffmpeg as a child process. Every job gets its own scratch
// directory: inputs are written into it, the command runs with it as the
// working directory, and every file the command leaves behind becomes an
// output.
type Process struct {
	binary  string
	workDir string
	logger  *slog.Logger
}

// NewProcess constructs an ffmpeg worker.
func NewProcess(opts ...Option) *Process {
	p := &Process{binary: "ffmpeg", logger: logging.NewNop()}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Binary reports the configured executable.
func (p *Process) Binary() string {
	return p.binary
}

// Run implements Worker.
func (p *Process) Run(ctx context.Context, job Job, onLog func(string)) ([]File, error) {
	if len(job.Args) == 0 {
		return nil, services.Wrap(services.ErrValidation, "encoder", "run", "empty argument list", nil)
	}
	if onLog == nil {
		onLog = func(string) {}
	}

	if p.workDir != "" {
		if err := os.MkdirAll(p.workDir, 0o755); err != nil {
			return nil, fmt.Errorf("ensure work dir: %w", err)
		}
	}
	scratch, err := os.MkdirTemp(p.workDir, "job-")
	if err != nil {
		return nil, fmt.Errorf("create scratch dir: %w", err)
	}
	defer func() {
		if err := os.RemoveAll(scratch); err != nil {
			p.logger.Warn("scratch cleanup failed", logging.String("path", scratch), logging.Error(err))
		}
	}()

	inputs := make(map[string][]byte, len(job.Inputs))
	for _, in := range job.Inputs {
		if err := validateName(in.Name); err != nil {
			return nil, services.Wrap(services.ErrValidation, "encoder", "stage input", "", err)
		}
		if err := os.WriteFile(filepath.Join(scratch, in.Name), in.Data, 0o644); err != nil {
			return nil, fmt.Errorf("write input %s: %w", in.Name, err)
		}
		inputs[in.Name] = in.Data
	}

	args := append([]string{"-hide_banner", "-nostdin", "-y"}, job.Args...)
	cmd := commandContext(ctx, p.binary, args...) //nolint:gosec
	cmd.Dir = scratch
	configureProcessGroup(cmd)
	cmd.WaitDelay = killGrace

	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("stderr pipe: %w", err)
	}
	cmd.Stdout = io.Discard

	p.logger.Debug("starting encoder process",
		logging.String("binary", p.binary),
		logging.Int("inputs", len(job.Inputs)),
		logging.String("dir", scratch),
	)
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", p.binary, err)
	}

	var lastLine string
	scanner := bufio.NewScanner(stderr)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	scanner.Split(scanLogLines)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), " ")
		if line == "" {
			continue
		}
		lastLine = line
		onLog(line)
	}
	scanErr := scanner.Err()

	waitErr := cmd.Wait()
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	if waitErr != nil {
		if lastLine != "" {
			return nil, fmt.Errorf("%s exited: %w: %s", filepath.Base(p.binary), waitErr, lastLine)
		}
		return nil, fmt.Errorf("%s exited: %w", filepath.Base(p.binary), waitErr)
	}
	if scanErr != nil && !errors.Is(scanErr, os.ErrClosed) {
		return nil, fmt.Errorf("read %s output: %w", filepath.Base(p.binary), scanErr)
	}

	outputs, err := collectOutputs(scratch, inputs)
	if err != nil {
		return nil, err
	}
	if len(outputs) == 0 {
		return nil, fmt.Errorf("malformed output: %s produced no files", filepath.Base(p.binary))
	}
	return outputs, nil
}

// collectOutputs reads every regular file in dir except inputs that were
// left untouched.
func collectOutputs(dir string, inputs map[string][]byte) ([]File, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read scratch dir: %w", err)
	}
	var outputs []File
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("read output %s: %w", entry.Name(), err)
		}
		if original, ok := inputs[entry.Name()]; ok && bytes.Equal(original, data) {
			continue
		}
		outputs = append(outputs, File{Name: entry.Name(), Data: data})
	}
	return outputs, nil
}

// scanLogLines splits on '\n' and on the bare '\r' ffmpeg uses to redraw its
// status line.
func scanLogLines(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		advance = i + 1
		if data[i] == '\r' && i+1 < len(data) && data[i+1] == '\n' {
			advance++
		} else if data[i] == '\r' && i+1 == len(data) && !atEOF {
			// Need one more byte to tell "\r" from "\r\n".
			return 0, nil, nil
		}
		return advance, data[:i], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}

var _ Worker = (*Process)(nil)
