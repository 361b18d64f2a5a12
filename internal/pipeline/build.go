package pipeline

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"webmpipe/internal/encoder"
	"webmpipe/internal/options"
)

// videoOnlyFlags do not apply to an audio-only encode.
var videoOnlyFlags = []string{"-speed", "-auto-alt-ref", "-lag-in-frames"}

// Build constructs the stage graph for cfg: N video pairs, an optional audio
// stage, and the mux stage that joins them.
func Build(cfg Config) (*Graph, error) {
	cfg = cfg.clone()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	n := cfg.Threads
	srcName := sourceFileName(cfg)
	source := encoder.File{Name: srcName, Data: cfg.Source.Data}
	videoInputs := []encoder.File{source}
	if cfg.BurnSubs && cfg.Font != nil {
		videoInputs = append(videoInputs, *cfg.Font)
	}

	g := NewGraph()
	muxDeps := make([]string, 0, n+1)
	segments := splitSegments(cfg.Duration, n)

	for i := 1; i <= n; i++ {
		seg := segments[i-1]
		pass1 := &Stage{
			ID:     videoID(i, 1),
			Key:    VideoKey(i),
			Pass:   1,
			Args:   firstPassArgs(cfg, srcName, seg),
			Inputs: append([]encoder.File(nil), videoInputs...),
			Span:   seg.length,
		}
		pass2 := &Stage{
			ID:     videoID(i, 2),
			Key:    VideoKey(i),
			Pass:   2,
			Args:   secondPassArgs(cfg, srcName, seg, VideoOutput(i)),
			Inputs: append([]encoder.File(nil), videoInputs...),
			Deps:   []string{pass1.ID},
			Span:   seg.length,
		}
		if err := g.Add(pass1); err != nil {
			return nil, err
		}
		if err := g.Add(pass2); err != nil {
			return nil, err
		}
		muxDeps = append(muxDeps, pass2.ID)
	}

	if cfg.Audio {
		audio := &Stage{
			ID:     "audio",
			Key:    KeyAudio,
			Args:   audioArgs(cfg, srcName),
			Inputs: []encoder.File{source},
			Span:   cfg.Duration,
		}
		if err := g.Add(audio); err != nil {
			return nil, err
		}
		muxDeps = append(muxDeps, audio.ID)
	}

	mux := &Stage{
		ID:     "mux",
		Key:    KeyMux,
		Args:   muxArgs(cfg.Audio),
		Inputs: []encoder.File{ConcatList(n)},
		Deps:   muxDeps,
		Span:   cfg.Duration,
	}
	if err := g.Add(mux); err != nil {
		return nil, err
	}
	return g, nil
}

// ConcatList renders the concat demuxer script naming each pass-2 output in
// index order.
func ConcatList(n int) encoder.File {
	var b strings.Builder
	for i := 1; i <= n; i++ {
		fmt.Fprintf(&b, "file '%s'\n", VideoOutput(i))
	}
	return encoder.File{Name: ListName, Data: []byte(b.String())}
}

type segment struct {
	start  time.Duration
	length time.Duration
	// bounded is false for the last segment, which runs to the end of input.
	bounded bool
	split   bool
}

// splitSegments divides d into n contiguous pieces. Without a known duration
// or with a single thread every pair encodes the whole input.
func splitSegments(d time.Duration, n int) []segment {
	segments := make([]segment, n)
	if d <= 0 || n <= 1 {
		for i := range segments {
			segments[i] = segment{length: d}
		}
		return segments
	}
	step := d / time.Duration(n)
	for i := range segments {
		start := step * time.Duration(i)
		length := step
		if i == n-1 {
			length = d - start
		}
		segments[i] = segment{start: start, length: length, bounded: i < n-1, split: true}
	}
	return segments
}

func (s segment) args() []string {
	if !s.split {
		return nil
	}
	args := []string{"-ss", formatSeconds(s.start)}
	if s.bounded {
		args = append(args, "-t", formatSeconds(s.length))
	}
	return args
}

func formatSeconds(d time.Duration) string {
	return strconv.FormatFloat(d.Seconds(), 'f', 3, 64)
}

func firstPassArgs(cfg Config, src string, seg segment) []string {
	speed := options.Value(cfg.Options, "-speed", "")
	if speed == "" {
		speed = cfg.FirstPassSpeed
	}
	base := options.Clear(cfg.Options, "-speed")

	args := append(seg.args(), "-i", src)
	args = append(args, base...)
	args = append(args, "-an", "-speed", speed, "-pass", "1", "-f", "null", "-")
	return args
}

func secondPassArgs(cfg Config, src string, seg segment, output string) []string {
	args := append(seg.args(), "-i", src)
	args = append(args, cfg.Options...)
	args = append(args, "-an", "-pass", "2", output)
	return args
}

func audioArgs(cfg Config, src string) []string {
	base := cfg.Options
	for _, flag := range videoOnlyFlags {
		base = options.Clear(base, flag)
	}
	args := []string{"-i", src}
	args = append(args, base...)
	args = append(args, "-vn", AudioOutput)
	return args
}

func muxArgs(audio bool) []string {
	args := []string{"-f", "concat", "-i", ListName}
	if audio {
		args = append(args, "-i", AudioOutput)
	}
	return append(args, "-c", "copy", MuxOutput)
}

// sourceFileName is the name the source takes inside a worker's scratch
// directory. Names that would collide with a stage artifact are prefixed.
func sourceFileName(cfg Config) string {
	name := filepath.Base(strings.TrimSpace(cfg.Source.Name))
	if isReservedName(name, cfg) {
		return "source-" + name
	}
	return name
}

func isReservedName(name string, cfg Config) bool {
	switch {
	case name == ListName, name == AudioOutput, name == MuxOutput:
		return true
	case strings.HasPrefix(name, passLogPrefix):
		return true
	case cfg.Font != nil && name == cfg.Font.Name:
		return true
	}
	for i := 1; i <= cfg.Threads; i++ {
		if name == VideoOutput(i) {
			return true
		}
	}
	return false
}
