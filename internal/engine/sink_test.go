// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package engine

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/ManuGH/tvplay/internal/playback"
)

type event struct {
	kind    string // ready, waiting, fatal, nonfatal
	errKind playback.ErrorKind
	details string
}

func (e event) String() string {
	return fmt.Sprintf("%s(%s %s)", e.kind, e.errKind, e.details)
}

// recordingSink collects engine signals from any goroutine.
type recordingSink struct {
	mu     sync.Mutex
	events []event
	notify chan event
}

func newRecordingSink() *recordingSink {
	return &recordingSink{notify: make(chan event, 64)}
}

func (s *recordingSink) add(e event) {
	s.mu.Lock()
	s.events = append(s.events, e)
	s.mu.Unlock()
	select {
	case s.notify <- e:
	default:
	}
}

func (s *recordingSink) Ready()   { s.add(event{kind: "ready"}) }
func (s *recordingSink) Waiting() { s.add(event{kind: "waiting"}) }
func (s *recordingSink) FatalError(kind playback.ErrorKind, details string) {
	s.add(event{kind: "fatal", errKind: kind, details: details})
}
func (s *recordingSink) NonFatalError(details string) {
	s.add(event{kind: "nonfatal", details: details})
}

func (s *recordingSink) snapshot() []event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]event(nil), s.events...)
}

// await blocks until an event of kind arrives.
func (s *recordingSink) await(t *testing.T, kind string, timeout time.Duration) event {
	t.Helper()
	deadline := time.After(timeout)
	for {
		select {
		case e := <-s.notify:
			if e.kind == kind {
				return e
			}
		case <-deadline:
			t.Fatalf("no %q event within %v, got %v", kind, timeout, s.snapshot())
			return event{}
		}
	}
}
