// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package playback

import (
	"time"

	"github.com/ManuGH/tvplay/internal/playlist"
)

type fakeTimer struct {
	delay   time.Duration
	fn      func()
	stopped bool
	fired   bool
}

func (t *fakeTimer) Stop() bool {
	wasActive := !t.stopped && !t.fired
	t.stopped = true
	return wasActive
}

// fakeScheduler records timers and fires them on demand.
type fakeScheduler struct {
	timers []*fakeTimer
}

func (s *fakeScheduler) AfterFunc(d time.Duration, fn func()) Timer {
	t := &fakeTimer{delay: d, fn: fn}
	s.timers = append(s.timers, t)
	return t
}

func (s *fakeScheduler) delays() []time.Duration {
	out := make([]time.Duration, 0, len(s.timers))
	for _, t := range s.timers {
		out = append(out, t.delay)
	}
	return out
}

// fireLast fires the most recent timer, even when it was stopped, to
// simulate a callback that raced with cancellation.
func (s *fakeScheduler) fireLast() {
	t := s.timers[len(s.timers)-1]
	t.fired = true
	t.fn()
}

func (s *fakeScheduler) pending() int {
	n := 0
	for _, t := range s.timers {
		if !t.stopped && !t.fired {
			n++
		}
	}
	return n
}

type fakeEngine struct {
	factory   *fakeFactory
	sink      Sink
	loaded    []string
	destroyed bool
}

func (e *fakeEngine) LoadSource(url string) {
	e.loaded = append(e.loaded, url)
	e.factory.loads = append(e.factory.loads, url)
}

func (e *fakeEngine) Destroy() { e.destroyed = true }

type fakeFactory struct {
	name      string
	supported bool
	engines   []*fakeEngine
	loads     []string
}

func (f *fakeFactory) Name() string    { return f.name }
func (f *fakeFactory) Supported() bool { return f.supported }

func (f *fakeFactory) New(sink Sink) Engine {
	e := &fakeEngine{factory: f, sink: sink}
	f.engines = append(f.engines, e)
	return e
}

func (f *fakeFactory) last() *fakeEngine {
	return f.engines[len(f.engines)-1]
}

// fakeCatalog is a minimal in-memory Catalog tracking the active position.
type fakeCatalog struct {
	channels []playlist.Channel
	active   int
	set      bool
}

func (c *fakeCatalog) Len() int { return len(c.channels) }

func (c *fakeCatalog) ResolveByIndex(i int) (playlist.Channel, bool) {
	if i < 0 || i >= len(c.channels) {
		return playlist.Channel{}, false
	}
	return c.channels[i], true
}

func (c *fakeCatalog) ActiveIndex() int {
	if !c.set {
		return -1
	}
	return c.active
}

func (c *fakeCatalog) SetActiveAt(i int) { c.active, c.set = i, true }

type recordingObserver struct {
	switches    []int
	transitions [][2]Status
	retries     []time.Duration
	failures    []error
}

func (o *recordingObserver) ChannelSwitched(index int, _ playlist.Channel) {
	o.switches = append(o.switches, index)
}

func (o *recordingObserver) StatusChanged(from, to Status, _ Session) {
	o.transitions = append(o.transitions, [2]Status{from, to})
}

func (o *recordingObserver) RetryScheduled(_, _ int, delay time.Duration) {
	o.retries = append(o.retries, delay)
}

func (o *recordingObserver) PlaybackFailed(_ playlist.Channel, err error) {
	o.failures = append(o.failures, err)
}
