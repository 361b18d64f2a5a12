package naming

import (
	"testing"
	"time"
)

func TestOutputName(t *testing.T) {
	tests := []struct {
		source string
		ext    string
		want   string
	}{
		{"in.mkv", ".webm", "in.webm"},
		{"clip.webm", ".webm", "clip.webm.webm"},
		{"noext", ".webm", "noext.webm"},
		{"movie.part1.mp4", ".webm", "movie.part1.webm"},
		{"/videos/in.mkv", "webm", "in.webm"},
		{".hidden", ".webm", ".hidden.webm"},
	}
	for _, tt := range tests {
		if got := OutputName(tt.source, tt.ext); got != tt.want {
			t.Errorf("OutputName(%q, %q) = %q, want %q", tt.source, tt.ext, got, tt.want)
		}
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{4200 * time.Millisecond, "4.2s"},
		{0, "0.0s"},
		{3*time.Minute + 7*time.Second, "3m07s"},
		{time.Hour + 2*time.Minute + 3*time.Second, "1h02m03s"},
		{-time.Second, "0.0s"},
	}
	for _, tt := range tests {
		if got := FormatDuration(tt.in); got != tt.want {
			t.Errorf("FormatDuration(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFormatSize(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{512, "512 B"},
		{1536, "1.5 KiB"},
		{5 * 1024 * 1024, "5.0 MiB"},
		{3 * 1024 * 1024 * 1024, "3.0 GiB"},
	}
	for _, tt := range tests {
		if got := FormatSize(tt.in); got != tt.want {
			t.Errorf("FormatSize(%d) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFormatBytesGroupsThousands(t *testing.T) {
	if got := FormatBytes(1234567); got != "1,234,567" {
		t.Fatalf("FormatBytes = %q", got)
	}
	if got := FormatBytes(42); got != "42" {
		t.Fatalf("FormatBytes = %q", got)
	}
}

func TestFormatBitrate(t *testing.T) {
	if got := FormatBitrate(EffectiveBitrate(1_000_000, 8*time.Second)); got != "1,000 kb/s" {
		t.Fatalf("FormatBitrate = %q", got)
	}
	if got := FormatBitrate(EffectiveBitrate(100, 0)); got != "0 kb/s" {
		t.Fatalf("FormatBitrate = %q", got)
	}
}
