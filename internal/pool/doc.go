// Package pool runs encode jobs on a bounded set of worker slots.
//
// Spawn never blocks: a job starts immediately when a slot is free and is
// queued in FIFO order otherwise. Each job resolves exactly once through its
// Future. Destroy tears the pool down from any goroutine, including from a
// log callback, rejecting queued futures and cancelling running ones.
package pool
