// Package pipeline turns a source file and a list of encoder options into a
// stage graph and drives it through a worker pool.
//
// The graph has a fixed shape: N two-pass video pairs that run in parallel,
// an optional audio stage, and a mux stage gated on all of them. Execution
// happens on a single control goroutine. Stage completions arrive on one
// channel, dependents are submitted as soon as their dependencies finish,
// and the first failure destroys the pool before anything else is processed.
//
// A Run wraps one execution with its log streams, progress accounting, and a
// single terminal outcome.
package pipeline
