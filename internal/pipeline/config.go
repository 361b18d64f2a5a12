package pipeline

import (
	"fmt"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"webmpipe/internal/encoder"
	"webmpipe/internal/services"
)

const (
	// DefaultFirstPassSpeed is the -speed used for pass 1 when the base
	// options carry none.
	DefaultFirstPassSpeed = "4"
	// DefaultExtension is the container produced by the mux stage.
	DefaultExtension = ".webm"
	// DefaultBinaryName labels command lines in stage logs.
	DefaultBinaryName = "ffmpeg"
)

// Source is the media file being transcoded. When Keep is false the run
// releases the bytes once they have been handed to the pool.
type Source struct {
	Name string
	Data []byte
	Keep bool
}

// Config is everything a run needs. Threads must already be clamped to the
// allowed range.
type Config struct {
	Options        []string
	Source         Source
	Font           *encoder.File
	BurnSubs       bool
	Audio          bool
	Threads        int
	Duration       time.Duration
	FirstPassSpeed string
	Extension      string
	BinaryName     string
}

// clone copies the token slice and fills defaults so later caller mutations
// cannot reach the run.
func (c Config) clone() Config {
	out := c
	out.Options = slices.Clone(c.Options)
	if c.Font != nil {
		font := *c.Font
		out.Font = &font
	}
	if strings.TrimSpace(out.FirstPassSpeed) == "" {
		out.FirstPassSpeed = DefaultFirstPassSpeed
	}
	if strings.TrimSpace(out.Extension) == "" {
		out.Extension = DefaultExtension
	}
	if !strings.HasPrefix(out.Extension, ".") {
		out.Extension = "." + out.Extension
	}
	if strings.TrimSpace(out.BinaryName) == "" {
		out.BinaryName = DefaultBinaryName
	}
	return out
}

func (c Config) validate() error {
	if c.Threads < 1 {
		return services.Wrap(services.ErrValidation, "pipeline", "build", fmt.Sprintf("thread count %d", c.Threads), nil)
	}
	name := filepath.Base(strings.TrimSpace(c.Source.Name))
	if name == "" || name == "." || name == string(filepath.Separator) {
		return services.Wrap(services.ErrValidation, "pipeline", "build", "source name required", nil)
	}
	if c.BurnSubs && c.Font != nil && strings.TrimSpace(c.Font.Name) == "" {
		return services.Wrap(services.ErrValidation, "pipeline", "build", "font name required", nil)
	}
	if c.Duration < 0 {
		return services.Wrap(services.ErrValidation, "pipeline", "build", "negative duration", nil)
	}
	return nil
}
