// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package player

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ManuGH/tvplay/internal/catalog"
	"github.com/ManuGH/tvplay/internal/kv"
	"github.com/ManuGH/tvplay/internal/playback"
)

type manualTimer struct {
	s       *manualScheduler
	delay   time.Duration
	fn      func()
	stopped bool
	fired   bool
}

func (t *manualTimer) Stop() bool {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	was := !t.stopped && !t.fired
	t.stopped = true
	return was
}

// manualScheduler records timers; tests fire them explicitly.
type manualScheduler struct {
	mu     sync.Mutex
	timers []*manualTimer
}

func (s *manualScheduler) AfterFunc(d time.Duration, fn func()) playback.Timer {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := &manualTimer{s: s, delay: d, fn: fn}
	s.timers = append(s.timers, t)
	return t
}

// pending returns the delays of timers that are neither stopped nor fired.
func (s *manualScheduler) pending() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []time.Duration
	for _, t := range s.timers {
		if !t.stopped && !t.fired {
			out = append(out, t.delay)
		}
	}
	return out
}

// firePending fires every live timer once.
func (s *manualScheduler) firePending() {
	s.mu.Lock()
	var live []*manualTimer
	for _, t := range s.timers {
		if !t.stopped && !t.fired {
			t.fired = true
			live = append(live, t)
		}
	}
	s.mu.Unlock()
	for _, t := range live {
		t.fn()
	}
}

type fakeEngine struct {
	sink      playback.Sink
	loaded    []string
	destroyed bool
}

func (e *fakeEngine) LoadSource(url string) { e.loaded = append(e.loaded, url) }
func (e *fakeEngine) Destroy()              { e.destroyed = true }

type fakeFactory struct {
	mu      sync.Mutex
	engines []*fakeEngine
}

func (f *fakeFactory) Name() string    { return "fake" }
func (f *fakeFactory) Supported() bool { return true }
func (f *fakeFactory) New(sink playback.Sink) playback.Engine {
	f.mu.Lock()
	defer f.mu.Unlock()
	e := &fakeEngine{sink: sink}
	f.engines = append(f.engines, e)
	return e
}

func (f *fakeFactory) last() *fakeEngine {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.engines) == 0 {
		return nil
	}
	return f.engines[len(f.engines)-1]
}

// fakeFetcher serves playlist text by URL.
type fakeFetcher struct {
	mu    sync.Mutex
	pages map[string]string
	calls int
}

func (f *fakeFetcher) Fetch(_ context.Context, url string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	text, ok := f.pages[url]
	if !ok {
		return "", errors.New("HTTP 404")
	}
	return text, nil
}

type shellEvent struct {
	kind  string
	msg   string
	level Level
}

type recordingShell struct {
	mu       sync.Mutex
	events   []shellEvent
	channels []catalog.VisibleEntry
	active   int
	loading  bool
	playing  string
}

func (s *recordingShell) add(e shellEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
}

func (s *recordingShell) Status(msg string, level Level) {
	s.add(shellEvent{kind: "status", msg: msg, level: level})
}
func (s *recordingShell) Toast(msg string, level Level) {
	s.add(shellEvent{kind: "toast", msg: msg, level: level})
}
func (s *recordingShell) Error(msg string) { s.add(shellEvent{kind: "error", msg: msg}) }
func (s *recordingShell) Loading(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading = on
}
func (s *recordingShell) NowPlaying(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.playing = name
}
func (s *recordingShell) Channels(visible []catalog.VisibleEntry, active int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.channels, s.active = visible, active
}

func (s *recordingShell) messages(kind string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for _, e := range s.events {
		if e.kind == kind {
			out = append(out, e.msg)
		}
	}
	return out
}

// countingKV counts writes per key. onSet, when set, runs before each write.
type countingKV struct {
	*kv.Memory
	mu     sync.Mutex
	writes map[string]int
	onSet  func(key string)
}

func newCountingKV() *countingKV {
	return &countingKV{Memory: kv.NewMemory(), writes: map[string]int{}}
}

func (c *countingKV) Set(ctx context.Context, key, value string) error {
	c.mu.Lock()
	c.writes[key]++
	hook := c.onSet
	c.mu.Unlock()
	if hook != nil {
		hook(key)
	}
	return c.Memory.Set(ctx, key, value)
}

func (c *countingKV) count(key string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.writes[key]
}

func m3u(names ...string) string {
	text := "#EXTM3U\n"
	for _, n := range names {
		text += fmt.Sprintf("#EXTINF:-1,%s\nhttp://stream.example/%s\n", n, n)
	}
	return text
}
