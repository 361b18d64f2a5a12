package preflight

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"webmpipe/internal/testsupport"
)

func TestCheckDirectoryAccess_OK(t *testing.T) {
	dir := t.TempDir()
	result := CheckDirectoryAccess("test", dir)
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if result.Detail == "" {
		t.Fatal("expected non-empty detail")
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	testsupport.WriteFile(t, f, 1)
	result := CheckDirectoryAccess("test", f)
	if result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func TestRunAll_NilConfig(t *testing.T) {
	results := RunAll(context.Background(), nil)
	if results != nil {
		t.Fatal("expected nil results for nil config")
	}
}

func TestRunAll_AllPass(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries())
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}

	results := RunAll(context.Background(), cfg)
	// work + log + history directories, ffmpeg + ffprobe
	if len(results) != 5 {
		t.Fatalf("expected 5 results, got %d: %+v", len(results), results)
	}
	if failed := Failed(results); len(failed) != 0 {
		t.Fatalf("unexpected failures: %+v", failed)
	}
}

func TestRunAll_ReportsMissingBinaryAndDirectory(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithHistoryDisabled())
	cfg.Encoder.FFmpegBinary = "clearly-not-present-ffmpeg"
	cfg.Encoder.FFprobeBinary = "clearly-not-present-ffprobe"
	if err := os.MkdirAll(cfg.Paths.LogDir, 0o755); err != nil {
		t.Fatal(err)
	}

	failed := Failed(RunAll(context.Background(), cfg))
	names := make([]string, 0, len(failed))
	for _, r := range failed {
		names = append(names, r.Name)
	}
	if got := strings.Join(names, ","); got != "Work directory,FFmpeg,FFprobe" {
		t.Fatalf("unexpected failures %q", got)
	}
}

func TestCheckEncoderVersion(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	bin := filepath.Join(testsupport.BaseDir(cfg), "ffmpeg")
	if err := os.WriteFile(bin, []byte("#!/bin/sh\necho 'ffmpeg version n7.1'\n"), 0o755); err != nil {
		t.Fatal(err)
	}
	cfg.Encoder.FFmpegBinary = bin

	result := CheckEncoderVersion(context.Background(), cfg)
	if !result.Passed || result.Detail != "ffmpeg version n7.1" {
		t.Fatalf("unexpected result %+v", result)
	}

	cfg.Encoder.FFmpegBinary = filepath.Join(testsupport.BaseDir(cfg), "missing")
	if CheckEncoderVersion(context.Background(), cfg).Passed {
		t.Fatal("expected failure for missing binary")
	}
}
