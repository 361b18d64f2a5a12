package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"webmpipe/internal/config"
)

func TestLoadDefaultConfigExpandsPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Chdir(t.TempDir())

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantWork := filepath.Join(tempHome, ".cache", "webmpipe", "work")
	if cfg.Paths.WorkDir != wantWork {
		t.Fatalf("unexpected work dir: got %q want %q", cfg.Paths.WorkDir, wantWork)
	}
	if cfg.Paths.HistoryPath != filepath.Join(tempHome, ".local", "share", "webmpipe", "history.db") {
		t.Fatalf("unexpected history path: %q", cfg.Paths.HistoryPath)
	}
	if cfg.Encoder.TargetExtension != ".webm" {
		t.Fatalf("unexpected target extension %q", cfg.Encoder.TargetExtension)
	}
	if cfg.Threads.Default != 4 || cfg.Pool.Workers != 4 {
		t.Fatalf("unexpected thread/pool defaults: %+v %+v", cfg.Threads, cfg.Pool)
	}
}

func TestLoadCustomConfigNormalizes(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)

	custom := config.Default()
	custom.Paths.WorkDir = "~/scratch"
	custom.Encoder.TargetExtension = "WEBM"
	custom.Encoder.FFmpegBinary = "  "
	custom.Logging.Format = " JSON "
	custom.Threads = config.Threads{Default: 2, Min: 1, Max: 3}

	data, err := toml.Marshal(custom)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	path := filepath.Join(t.TempDir(), "webmpipe.toml")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != path {
		t.Fatalf("expected explicit path to be used, got %q exists=%v", resolved, exists)
	}
	if cfg.Paths.WorkDir != filepath.Join(tempHome, "scratch") {
		t.Fatalf("unexpected work dir %q", cfg.Paths.WorkDir)
	}
	if cfg.Encoder.TargetExtension != ".webm" {
		t.Fatalf("expected normalized extension, got %q", cfg.Encoder.TargetExtension)
	}
	if cfg.Encoder.FFmpegBinary != "ffmpeg" {
		t.Fatalf("expected ffmpeg default, got %q", cfg.Encoder.FFmpegBinary)
	}
	if cfg.Logging.Format != "json" {
		t.Fatalf("expected json format, got %q", cfg.Logging.Format)
	}
}

func TestLoadMissingExplicitPath(t *testing.T) {
	_, _, _, err := config.Load(filepath.Join(t.TempDir(), "missing.toml"))
	if err == nil || !strings.Contains(err.Error(), "not found") {
		t.Fatalf("expected not found error, got %v", err)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{"min below one", func(c *config.Config) { c.Threads.Min = 0 }, "threads.min"},
		{"max below min", func(c *config.Config) { c.Threads.Max = 0; c.Threads.Min = 1 }, "threads.max"},
		{"default outside", func(c *config.Config) { c.Threads.Default = 99 }, "threads.default"},
		{"no workers", func(c *config.Config) { c.Pool.Workers = 0 }, "pool.workers"},
		{"bad format", func(c *config.Config) { c.Logging.Format = "xml" }, "logging.format"},
		{"bad level", func(c *config.Config) { c.Logging.Level = "loud" }, "logging.level"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.Default()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected %q error, got %v", tc.want, err)
			}
		})
	}
}

func TestClampThreadsFallsBackToDefault(t *testing.T) {
	cfg := config.Default()
	cfg.Threads = config.Threads{Default: 4, Min: 1, Max: 8}

	cases := map[int]int{0: 4, -3: 4, 1: 1, 8: 8, 9: 4, 3: 3}
	for requested, want := range cases {
		if got := cfg.ClampThreads(requested); got != want {
			t.Fatalf("ClampThreads(%d) = %d, want %d", requested, got, want)
		}
	}
}

func TestCreateSampleIsLoadable(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}
	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load sample: %v", err)
	}
	if !exists {
		t.Fatal("expected sample to exist")
	}
	if !strings.Contains(cfg.Encoder.DefaultOptions, "libvpx-vp9") {
		t.Fatalf("unexpected default options %q", cfg.Encoder.DefaultOptions)
	}
}
