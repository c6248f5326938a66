// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package playback

import "time"

// Sink receives engine signals for one delivery attempt. Engines may call it
// from any goroutine.
type Sink interface {
	// Ready reports that the stream started producing media.
	Ready()
	// Waiting reports a buffering stall on a stream that was playing.
	Waiting()
	FatalError(kind ErrorKind, details string)
	NonFatalError(details string)
}

// Engine delivers a single stream. Destroy must stop all delivery and is
// called exactly once per engine.
type Engine interface {
	LoadSource(url string)
	Destroy()
}

// EngineFactory creates engines of one kind.
type EngineFactory interface {
	Name() string
	// Supported reports whether this engine can run on the host.
	Supported() bool
	New(sink Sink) Engine
}

// Timer is a pending scheduled callback.
type Timer interface {
	Stop() bool
}

// Scheduler defers callbacks. Backoff never blocks the caller.
type Scheduler interface {
	AfterFunc(d time.Duration, fn func()) Timer
}

type realScheduler struct{}

func (realScheduler) AfterFunc(d time.Duration, fn func()) Timer {
	return time.AfterFunc(d, fn)
}

// RealScheduler returns a Scheduler backed by time.AfterFunc.
func RealScheduler() Scheduler { return realScheduler{} }
