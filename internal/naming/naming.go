// Package naming derives artifact names and renders durations, sizes, and
// bitrates for log lines and tables.
package naming

import (
	"fmt"
	"math"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var printer = message.NewPrinter(language.English)

// OutputName derives the artifact name for source. When the source already
// carries ext the full base name is kept and ext appended again; otherwise
// the last extension is replaced.
func OutputName(source, ext string) string {
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	base := filepath.Base(strings.TrimSpace(source))
	if base == "." || base == string(filepath.Separator) {
		base = "output"
	}
	if current := filepath.Ext(base); current != ext && current != "" && current != base {
		base = strings.TrimSuffix(base, current)
	}
	return base + ext
}

// FormatDuration renders d as "4.2s", "3m07s", or "1h02m03s".
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	total := int64(d.Round(time.Second) / time.Second)
	hours := total / 3600
	minutes := (total % 3600) / 60
	seconds := total % 60
	if hours > 0 {
		return fmt.Sprintf("%dh%02dm%02ds", hours, minutes, seconds)
	}
	return fmt.Sprintf("%dm%02ds", minutes, seconds)
}

// FormatSize returns a human-readable size in binary units.
func FormatSize(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit && exp < 4; n /= unit {
		div *= unit
		exp++
	}
	suffixes := []string{"KiB", "MiB", "GiB", "TiB", "PiB"}
	return fmt.Sprintf("%.1f %s", float64(bytes)/float64(div), suffixes[exp])
}

// FormatBytes renders n with thousands separators.
func FormatBytes(n int64) string {
	return printer.Sprintf("%d", n)
}

// FormatBitrate renders a bits-per-second value in kb/s.
func FormatBitrate(bitsPerSecond float64) string {
	if bitsPerSecond <= 0 || math.IsNaN(bitsPerSecond) || math.IsInf(bitsPerSecond, 0) {
		return "0 kb/s"
	}
	return printer.Sprintf("%d kb/s", int64(math.Round(bitsPerSecond/1000)))
}

// EffectiveBitrate returns the average bits per second for size bytes played
// over d, or zero when d is not positive.
func EffectiveBitrate(size int64, d time.Duration) float64 {
	if d <= 0 {
		return 0
	}
	return float64(size) * 8 / d.Seconds()
}
