package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateThreads(); err != nil {
		return err
	}
	if err := c.validatePool(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateThreads() error {
	if c.Threads.Min < 1 {
		return errors.New("threads.min must be at least 1")
	}
	if c.Threads.Max < c.Threads.Min {
		return fmt.Errorf("threads.max (%d) must not be below threads.min (%d)", c.Threads.Max, c.Threads.Min)
	}
	if c.Threads.Default < c.Threads.Min || c.Threads.Default > c.Threads.Max {
		return fmt.Errorf("threads.default must be between %d and %d", c.Threads.Min, c.Threads.Max)
	}
	return nil
}

func (c *Config) validatePool() error {
	if c.Pool.Workers < 1 {
		return errors.New("pool.workers must be at least 1")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}
