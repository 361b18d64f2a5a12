// Package services defines shared utilities consumed by the pipeline, the
// worker pool, and the controller.
//
// Key responsibilities:
//   - Context helpers that stamp run IDs and stage keys for logging.
//   - Structured error markers plus the Wrap helper that keep worker,
//     teardown, and configuration failures distinguishable after wrapping.
//
// Use these helpers when wiring new stage logic so error attribution and
// observability stay uniform across the pipeline.
package services
