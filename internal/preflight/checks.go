package preflight

import (
	"context"
	"fmt"
	"os"

	"golang.org/x/sys/unix"

	"webmpipe/internal/config"
	"webmpipe/internal/deps"
)

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckSystemDeps evaluates the external binaries named by the encoder config.
// Both the encode and check commands use this to avoid duplicating the
// requirements list.
func CheckSystemDeps(_ context.Context, cfg *config.Config) []deps.Status {
	requirements := []deps.Requirement{
		{
			Name:        "FFmpeg",
			Command:     cfg.Encoder.FFmpegBinary,
			Description: "Required for encoding",
		},
		{
			Name:        "FFprobe",
			Command:     cfg.Encoder.FFprobeBinary,
			Description: "Required for duration probing",
		},
	}
	return deps.CheckBinaries(requirements)
}

// CheckEncoderVersion runs the configured ffmpeg with -version and reports
// its banner line.
func CheckEncoderVersion(ctx context.Context, cfg *config.Config) Result {
	const name = "FFmpeg version"
	version, err := deps.Version(ctx, cfg.Encoder.FFmpegBinary)
	if err != nil {
		return Result{Name: name, Detail: err.Error()}
	}
	return Result{Name: name, Passed: true, Detail: version}
}
