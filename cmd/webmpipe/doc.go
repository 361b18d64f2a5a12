// Package main hosts the webmpipe CLI entrypoint and command graph.
//
// The Cobra-based command tree loads configuration, runs preflight checks,
// probes the source with ffprobe, and drives a single pipeline run through
// the controller while rendering progress to the terminal. Finished runs are
// journaled to the history store and can be listed with "webmpipe history".
//
// Keep this package lean: encoding semantics live in internal/pipeline and
// internal/controller; commands here only translate flags into inputs and
// results into output files and tables.
package main
