// Package config loads, normalizes, and validates webmpipe configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), and reads TOML files. The Config type centralizes every knob
// the controller and CLI need: encoder binaries and default option tokens,
// the valid thread range used for segment splitting, worker pool capacity,
// logging, and the optional run history journal.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
