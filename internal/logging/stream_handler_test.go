package logging_test

import (
	"bytes"
	"log/slog"
	"regexp"
	"strings"
	"testing"

	"webmpipe/internal/logging"
)

func TestStreamHandlerMirrorsInfoWithTimestamp(t *testing.T) {
	set := logging.NewStreamSet()
	if err := set.Register("Main"); err != nil {
		t.Fatalf("Register: %v", err)
	}

	var buf bytes.Buffer
	base := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelWarn}))
	logger := logging.TeeLogger(base, logging.NewStreamHandler(set, "Main")).With(logging.String("run_id", "abc"))

	logger.Debug("hidden")
	logger.Info("Video 1 started pass 1", logging.Int("pass", 1))
	logger.Error("Fatal error at Video 1: boom")

	got, _ := set.Contents("Main")
	lines := strings.Split(strings.TrimSuffix(got, "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 mirrored lines, got %q", got)
	}
	pattern := regexp.MustCompile(`^\[\d{2}:\d{2}:\d{2}\] Video 1 started pass 1$`)
	if !pattern.MatchString(lines[0]) {
		t.Fatalf("unexpected first line %q", lines[0])
	}
	if !strings.HasSuffix(lines[1], "] Fatal error at Video 1: boom") {
		t.Fatalf("unexpected second line %q", lines[1])
	}

	// The base handler only accepts WARN and above.
	if strings.Contains(buf.String(), "started pass") {
		t.Fatalf("base handler received info record: %q", buf.String())
	}
	if !strings.Contains(buf.String(), "run_id=abc") {
		t.Fatalf("expected base handler to keep attrs, got %q", buf.String())
	}
}

func TestStreamHandlerNilSetIsNoop(t *testing.T) {
	if _, ok := logging.NewStreamHandler(nil, "Main").(logging.NoopHandler); !ok {
		t.Fatal("expected NoopHandler for nil set")
	}
}
