package main

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"webmpipe/internal/config"
	"webmpipe/internal/encoder"
	"webmpipe/internal/logging"
	"webmpipe/internal/media/ffprobe"
)

type probeFunc func(ctx context.Context, binary, path string) (ffprobe.Result, error)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error

	loggerOnce sync.Once
	logger     *slog.Logger
	loggerErr  error

	// Replaced in tests.
	newWorker func(cfg *config.Config, logger *slog.Logger) encoder.Worker
	probe     probeFunc
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{
		configFlag: configFlag,
		newWorker:  defaultWorker,
		probe:      ffprobe.Inspect,
	}
}

func defaultWorker(cfg *config.Config, logger *slog.Logger) encoder.Worker {
	return encoder.NewProcess(
		encoder.WithBinary(cfg.Encoder.FFmpegBinary),
		encoder.WithWorkDir(cfg.Paths.WorkDir),
		encoder.WithLogger(logger),
	)
}

func (c *commandContext) configPath() string {
	if c.configFlag == nil {
		return ""
	}
	return strings.TrimSpace(*c.configFlag)
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		cfg, _, _, err := config.Load(c.configPath())
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) ensureLogger() (*slog.Logger, error) {
	c.loggerOnce.Do(func() {
		cfg, err := c.ensureConfig()
		if err != nil {
			c.loggerErr = err
			return
		}
		c.logger, c.loggerErr = logging.NewFromConfig(cfg)
	})
	return c.logger, c.loggerErr
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}
