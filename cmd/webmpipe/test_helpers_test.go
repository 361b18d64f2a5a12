package main

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"webmpipe/internal/config"
	"webmpipe/internal/encoder"
	"webmpipe/internal/media/ffprobe"
	"webmpipe/internal/testsupport"
)

type cliTestEnv struct {
	cfg        *config.Config
	worker     *testsupport.FakeWorker
	probe      ffprobe.Result
	probeCalls int
	configPath string
	baseDir    string
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	cfg := testsupport.NewConfig(t, testsupport.WithThreads(2, 1, 8), testsupport.WithWorkers(4))
	base := testsupport.BaseDir(cfg)
	t.Setenv("HOME", filepath.Join(base, "home"))

	binDir := filepath.Join(base, "bin")
	if err := os.MkdirAll(binDir, 0o755); err != nil {
		t.Fatalf("mkdir bin dir: %v", err)
	}
	for _, name := range []string{"ffmpeg", "ffprobe"} {
		script := "#!/bin/sh\necho '" + name + " version test'\n"
		if err := os.WriteFile(filepath.Join(binDir, name), []byte(script), 0o755); err != nil {
			t.Fatalf("write stub %s: %v", name, err)
		}
	}
	cfg.Encoder.FFmpegBinary = filepath.Join(binDir, "ffmpeg")
	cfg.Encoder.FFprobeBinary = filepath.Join(binDir, "ffprobe")
	cfg.Encoder.DefaultOptions = "-c:v libvpx-vp9 -b:v 1000k -c:a libopus -b:a 64k"

	configPath := filepath.Join(base, "config.toml")
	writeTestConfig(t, configPath, cfg)

	return &cliTestEnv{
		cfg:        cfg,
		worker:     testsupport.NewFakeWorker(),
		probe:      ffprobe.Result{Format: ffprobe.Format{Duration: "60"}, Streams: []ffprobe.Stream{{CodecType: "video"}, {CodecType: "audio"}}},
		configPath: configPath,
		baseDir:    base,
	}
}

func (env *cliTestEnv) override(ctx *commandContext) {
	ctx.newWorker = func(*config.Config, *slog.Logger) encoder.Worker { return env.worker }
	ctx.probe = func(context.Context, string, string) (ffprobe.Result, error) {
		env.probeCalls++
		return env.probe, nil
	}
}

func (env *cliTestEnv) writeSource(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(env.baseDir, "media", name)
	testsupport.WriteFile(t, path, 4096)
	return path
}

func runCLI(t *testing.T, env *cliTestEnv, args ...string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand(env.override)
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(append([]string{"--config", env.configPath}, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	content, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
