package pipeline

import (
	"regexp"
	"strconv"
	"time"
)

// ffmpeg status lines carry "time=HH:MM:SS.cc"; a leading minus appears
// while the muxer is still priming and is ignored.
var timePattern = regexp.MustCompile(`time=\s*(-?)(\d+):(\d{2}):(\d{2}(?:\.\d+)?)`)

// maxRunningFraction keeps an unfinished stage below completion even when
// ffmpeg reports the full span.
const maxRunningFraction = 0.99

// parseProgressTime extracts the encoded position from an ffmpeg status
// line.
func parseProgressTime(line string) (time.Duration, bool) {
	m := timePattern.FindStringSubmatch(line)
	if m == nil || m[1] == "-" {
		return 0, false
	}
	hours, err := strconv.Atoi(m[2])
	if err != nil {
		return 0, false
	}
	minutes, err := strconv.Atoi(m[3])
	if err != nil {
		return 0, false
	}
	seconds, err := strconv.ParseFloat(m[4], 64)
	if err != nil {
		return 0, false
	}
	total := time.Duration(hours)*time.Hour + time.Duration(minutes)*time.Minute + time.Duration(seconds*float64(time.Second))
	return total, true
}

func stageFraction(position, span time.Duration) float64 {
	if span <= 0 || position <= 0 {
		return 0
	}
	f := float64(position) / float64(span)
	if f > maxRunningFraction {
		return maxRunningFraction
	}
	return f
}
