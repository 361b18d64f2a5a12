// Package encoder defines the contract between the worker pool and a single
// encode worker, and ships the ffmpeg subprocess implementation.
//
// A Worker receives a Job (argument list plus named input buffers), reports
// every diagnostic line through a callback in production order, and returns
// the named buffers it produced. Process runs ffmpeg inside a scratch
// directory so that argument lists can refer to inputs and outputs by bare
// file name.
package encoder
