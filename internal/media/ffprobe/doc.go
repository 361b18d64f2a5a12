// Package ffprobe provides a typed wrapper around ffprobe JSON output.
//
// The CLI probes the source before a run to learn its duration, which the
// pipeline uses to split the video into contiguous segments and to report an
// effective bitrate, and whether it carries an audio stream.
//
// Primary entry point:
//   - Inspect: executes ffprobe and returns parsed Result
package ffprobe
