// Package history keeps a SQLite journal of finished pipeline runs.
//
// The journal is an outer-layer record: runs themselves are entirely in
// memory, and a run never reads from the journal. The CLI appends one entry
// per terminal outcome (success, failure, or cancellation) and lists recent
// entries on request.
package history
