package pipeline

import (
	"fmt"
	"slices"
	"time"

	"webmpipe/internal/encoder"
)

// Stage keys used for log streams and error attribution.
const (
	KeyMain  = "Main"
	KeyAudio = "Audio"
	KeyMux   = "Mux"
)

// Output names exchanged between stages.
const (
	ListName      = "list.txt"
	AudioOutput   = "audio.webm"
	MuxOutput     = "out.webm"
	passLogPrefix = "ffmpeg2pass"
)

// VideoKey is the shared key of both passes of video pair i.
func VideoKey(i int) string {
	return fmt.Sprintf("Video %d", i)
}

// VideoOutput is the pass-2 output of pair i.
func VideoOutput(i int) string {
	return fmt.Sprintf("%d.webm", i)
}

func videoID(i, pass int) string {
	return fmt.Sprintf("video%d-pass%d", i, pass)
}

// Status is the lifecycle position of a stage.
type Status int

const (
	StatusPending Status = iota
	StatusRunning
	StatusCompleted
	StatusFailed
	// StatusAborted marks a stage that was in flight when the run failed or
	// was cancelled.
	StatusAborted
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusRunning:
		return "running"
	case StatusCompleted:
		return "completed"
	case StatusFailed:
		return "failed"
	case StatusAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// Stage is one schedulable unit of encode work. Inputs holds the static
// buffers; outputs of every dependency are appended when the stage is
// dispatched.
type Stage struct {
	ID     string
	Key    string
	Pass   int
	Args   []string
	Inputs []encoder.File
	Deps   []string
	// Span is the media length the stage processes, used for progress.
	Span time.Duration
}

// StageInfo is a read-only view of a stage for presentation layers.
type StageInfo struct {
	ID          string
	Key         string
	Pass        int
	Status      Status
	Args        []string
	Started     time.Time
	Finished    time.Time
	OutputBytes int64
	Progress    float64
	Err         string
}

// Label names the stage for tables, e.g. "Video 2 pass 1".
func (i StageInfo) Label() string {
	if i.Pass > 0 {
		return fmt.Sprintf("%s pass %d", i.Key, i.Pass)
	}
	return i.Key
}

// Elapsed returns the running or final duration of the stage.
func (i StageInfo) Elapsed() time.Duration {
	switch {
	case i.Started.IsZero():
		return 0
	case i.Finished.IsZero():
		return time.Since(i.Started)
	default:
		return i.Finished.Sub(i.Started)
	}
}

func (s *Stage) info() StageInfo {
	return StageInfo{ID: s.ID, Key: s.Key, Pass: s.Pass, Args: slices.Clone(s.Args)}
}
