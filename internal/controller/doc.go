// Package controller is the boundary between a presentation layer and the
// pipeline. It owns at most one active run, creates a fresh worker pool for
// every run, and exposes cancel, restart, log snapshots, progress, and the
// terminal result.
package controller
