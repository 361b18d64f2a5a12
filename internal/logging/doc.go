// Package logging assembles structured slog loggers and the per-run log
// streams shown to presentation layers.
//
// It owns the configurable console/JSON handlers, centralizes level and output
// plumbing, and exposes context-aware helpers so pipeline code can tag log
// lines with run IDs and stage keys. StreamSet is the keyed, append-only log
// aggregator a pipeline run writes to; NewStreamHandler bridges slog records
// into one of its streams so lifecycle milestones reach both the process log
// and the run's Main stream. The package also provides a no-op logger for
// tests and wiring code that cannot fail.
package logging
