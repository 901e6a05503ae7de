// Package stopflag is the process-wide shutdown signal: created once at
// process start, set by the SIGINT/SIGTERM handler, and observed by
// every session and the dispatcher. It is passed explicitly into
// constructors rather than referenced as a package global, so tests can
// construct an isolated flag per case.
package stopflag

import "sync/atomic"

// Flag is a concurrency-safe boolean, set once and read by many
// goroutines.
type Flag struct {
	stopped atomic.Bool
}

func New() *Flag {
	return &Flag{}
}

// Stop sets the flag. Safe to call more than once.
func (f *Flag) Stop() {
	f.stopped.Store(true)
}

// Stopped reports whether Stop has been called.
func (f *Flag) Stopped() bool {
	return f.stopped.Load()
}
