// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package player

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

// ErrLoopStopped is returned by Do once the loop has exited.
var ErrLoopStopped = errors.New("player loop stopped")

// Loop runs posted functions one at a time on a single goroutine. All player
// state is owned by that goroutine.
type Loop struct {
	mu      sync.Mutex
	queue   []func()
	stopped bool

	wake chan struct{}
	done chan struct{}

	// lastBeat is the unix nano time the loop last ran a task or idled.
	lastBeat atomic.Int64
	running  atomic.Bool
}

// NewLoop creates a loop that is not yet running.
func NewLoop() *Loop {
	return &Loop{
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
}

// Post queues fn without blocking. It reports false once the loop stopped.
func (l *Loop) Post(fn func()) bool {
	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		return false
	}
	l.queue = append(l.queue, fn)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
	return true
}

// Do runs fn on the loop and waits for it to finish.
func (l *Loop) Do(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	if !l.Post(func() {
		defer close(finished)
		fn()
	}) {
		return ErrLoopStopped
	}
	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-l.done:
		// The task may have run just before shutdown.
		select {
		case <-finished:
			return nil
		default:
			return ErrLoopStopped
		}
	}
}

// Run processes tasks until ctx is cancelled. Tasks still queued at that
// point are dropped. Run must be called at most once.
func (l *Loop) Run(ctx context.Context) error {
	l.running.Store(true)
	l.beat()
	defer func() {
		l.mu.Lock()
		l.stopped = true
		l.queue = nil
		l.mu.Unlock()
		l.running.Store(false)
		close(l.done)
	}()

	heartbeat := time.NewTicker(time.Second)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-heartbeat.C:
			l.beat()
		case <-l.wake:
			for {
				fn := l.next()
				if fn == nil {
					break
				}
				fn()
				l.beat()
				if ctx.Err() != nil {
					return nil
				}
			}
		}
	}
}

func (l *Loop) next() func() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.queue) == 0 {
		return nil
	}
	fn := l.queue[0]
	l.queue[0] = nil
	l.queue = l.queue[1:]
	return fn
}

func (l *Loop) beat() { l.lastBeat.Store(time.Now().UnixNano()) }

// Done is closed when Run returns.
func (l *Loop) Done() <-chan struct{} { return l.done }

// Healthy reports whether the loop is running and made progress within
// maxLag.
func (l *Loop) Healthy(maxLag time.Duration) bool {
	if !l.running.Load() {
		return false
	}
	return time.Since(time.Unix(0, l.lastBeat.Load())) <= maxLag
}
