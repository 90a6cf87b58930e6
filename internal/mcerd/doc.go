// Package mcerd drives the external MCERD Monte-Carlo transport binary.
//
// It stages the binary's input files from a settings bundle, spawns and
// supervises the child process, converts its line-oriented output into a
// typed progress stream, and exposes cancellation and result collection.
//
// One Process owns one child at a time. Its output pipes and a periodic
// liveness poll are merged into a single terminating Record stream; the
// stream ends when the binary prints its terminal marker or when the
// process is observed to have exited, whichever comes first.
package mcerd
