package logging

import (
	"context"
	"log/slog"
	"strings"
	"time"
)

// streamTimeLayout prefixes every mirrored line.
const streamTimeLayout = "15:04:05"

type streamHandler struct {
	set *StreamSet
	key string
}

// NewStreamHandler returns a handler that appends INFO and above records to
// the stream registered as key, formatted as "[HH:MM:SS] message". Attributes
// are not rendered; the stream is meant for people watching a run.
func NewStreamHandler(set *StreamSet, key string) slog.Handler {
	if set == nil {
		return NoopHandler{}
	}
	return &streamHandler{set: set, key: key}
}

func (h *streamHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= slog.LevelInfo
}

func (h *streamHandler) Handle(_ context.Context, record slog.Record) error {
	ts := record.Time
	if ts.IsZero() {
		ts = time.Now()
	}
	var b strings.Builder
	b.WriteByte('[')
	b.WriteString(ts.Format(streamTimeLayout))
	b.WriteString("] ")
	b.WriteString(strings.TrimSpace(record.Message))
	return h.set.Append(h.key, b.String())
}

func (h *streamHandler) WithAttrs([]slog.Attr) slog.Handler { return h }

func (h *streamHandler) WithGroup(string) slog.Handler { return h }
