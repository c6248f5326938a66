// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package playback owns the stream playback state machine:
//
//	idle -> loading -> playing
//	loading|playing -> retrying -> loading (backoff expired)
//	retrying|loading|playing -> failed (retries exhausted, unsupported)
//	failed -> loading (explicit PlayChannelAt / RetryCurrent only)
//
// Each delivery attempt carries a generation number. Engine signals and
// backoff callbacks from an older generation are dropped.
package playback

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	xglog "github.com/ManuGH/tvplay/internal/log"
	"github.com/ManuGH/tvplay/internal/metrics"
	"github.com/ManuGH/tvplay/internal/playlist"
	"github.com/rs/zerolog"
)

const (
	DefaultMaxRetries = 3
	DefaultRetryStep  = time.Second
)

// Catalog is the part of the channel catalog the controller needs.
type Catalog interface {
	Len() int
	ResolveByIndex(i int) (playlist.Channel, bool)
	ActiveIndex() int
	// SetActiveAt marks position i active, distinguishing duplicate URLs.
	SetActiveAt(i int)
}

// Observer is told about user-visible playback events. ChannelSwitched
// precedes any status change of the new attempt.
type Observer interface {
	ChannelSwitched(index int, ch playlist.Channel)
	StatusChanged(from, to Status, s Session)
	RetryScheduled(retry, max int, delay time.Duration)
	PlaybackFailed(ch playlist.Channel, err error)
}

// NopObserver ignores every event.
type NopObserver struct{}

func (NopObserver) ChannelSwitched(int, playlist.Channel)  {}
func (NopObserver) StatusChanged(Status, Status, Session)  {}
func (NopObserver) RetryScheduled(int, int, time.Duration) {}
func (NopObserver) PlaybackFailed(playlist.Channel, error) {}

// Options configures a Controller. Zero values select defaults.
type Options struct {
	Primary  EngineFactory
	Fallback EngineFactory

	Scheduler Scheduler
	// Dispatch runs fn on the goroutine that owns the controller. Engine
	// signals and backoff expiry are funnelled through it. Defaults to a
	// direct call, which is only safe with synchronous engines and timers.
	Dispatch func(fn func())
	Observer Observer

	MaxRetries int
	RetryStep  time.Duration
	// Intn returns a uniform random int in [0,n).
	Intn func(n int) int

	Logger *zerolog.Logger
}

// Controller drives playback of catalog channels. It is not safe for
// concurrent use; every method must run on the owning goroutine.
type Controller struct {
	catalog   Catalog
	primary   EngineFactory
	fallback  EngineFactory
	scheduler Scheduler
	dispatch  func(fn func())
	observer  Observer
	logger    zerolog.Logger

	maxRetries int
	retryStep  time.Duration
	intn       func(n int) int

	session Session
	engine  Engine
	timer   Timer
}

// New creates an idle controller.
func New(cat Catalog, opts Options) *Controller {
	c := &Controller{
		catalog:    cat,
		primary:    opts.Primary,
		fallback:   opts.Fallback,
		scheduler:  opts.Scheduler,
		dispatch:   opts.Dispatch,
		observer:   opts.Observer,
		maxRetries: opts.MaxRetries,
		retryStep:  opts.RetryStep,
		intn:       opts.Intn,
		session:    Session{Status: StatusIdle},
	}
	if c.scheduler == nil {
		c.scheduler = RealScheduler()
	}
	if c.dispatch == nil {
		c.dispatch = func(fn func()) { fn() }
	}
	if c.observer == nil {
		c.observer = NopObserver{}
	}
	if c.maxRetries <= 0 {
		c.maxRetries = DefaultMaxRetries
	}
	if c.retryStep <= 0 {
		c.retryStep = DefaultRetryStep
	}
	if c.intn == nil {
		c.intn = rand.IntN
	}
	if opts.Logger != nil {
		c.logger = *opts.Logger
	} else {
		c.logger = xglog.WithComponent("playback")
	}
	metrics.SetPlaybackStatus(string(StatusIdle))
	return c
}

// Session returns a snapshot of the current playback state.
func (c *Controller) Session() Session {
	return c.session.clone()
}

// MaxRetries reports the retry budget per attempt.
func (c *Controller) MaxRetries() int { return c.maxRetries }

// PlayChannelAt switches to the channel at position i of the full catalog.
// An out-of-range index is a no-op and returns false.
func (c *Controller) PlayChannelAt(i int) bool {
	ch, ok := c.catalog.ResolveByIndex(i)
	if !ok {
		c.logger.Debug().
			Str(xglog.FieldEvent, "playback.switch_rejected").
			Int(xglog.FieldIndex, i).
			Int("catalog_len", c.catalog.Len()).
			Msg("channel index out of range")
		return false
	}

	c.session.SwitchCount++
	c.session.Channel = &ch
	c.session.RetryCount = 0
	c.session.LastError = ""
	c.catalog.SetActiveAt(i)
	metrics.RecordChannelSwitch()

	c.logger.Info().
		Str(xglog.FieldEvent, "playback.switch").
		Int(xglog.FieldIndex, i).
		Str(xglog.FieldChannel, ch.Name).
		Str(xglog.FieldChannelURL, ch.URL).
		Int("switch_count", c.session.SwitchCount).
		Msg("switching channel")

	c.observer.ChannelSwitched(i, ch)
	c.deliver()
	return true
}

// PlayNext plays the channel after the active one, wrapping to the start.
func (c *Controller) PlayNext() bool {
	n := c.catalog.Len()
	if n == 0 {
		return false
	}
	return c.PlayChannelAt((c.catalog.ActiveIndex() + 1) % n)
}

// PlayPrevious plays the channel before the active one, wrapping to the end.
func (c *Controller) PlayPrevious() bool {
	n := c.catalog.Len()
	if n == 0 {
		return false
	}
	return c.PlayChannelAt(((c.catalog.ActiveIndex()-1)%n + n) % n)
}

// ShufflePlay plays a uniformly random channel.
func (c *Controller) ShufflePlay() bool {
	n := c.catalog.Len()
	if n == 0 {
		return false
	}
	return c.PlayChannelAt(c.intn(n))
}

// RetryCurrent restarts the active channel with a fresh retry budget.
func (c *Controller) RetryCurrent() bool {
	idx := c.catalog.ActiveIndex()
	if idx < 0 {
		return false
	}
	return c.PlayChannelAt(idx)
}

// Stop cancels any pending retry, releases the engine and returns to idle.
func (c *Controller) Stop() {
	c.cancelTimer()
	c.releaseEngine()
	c.session.Attempt++
	c.session.Channel = nil
	c.session.RetryCount = 0
	c.setStatus(StatusIdle)
}

// OnEngineReady handles the engine's ready signal for the live attempt.
func (c *Controller) OnEngineReady() {
	switch c.session.Status {
	case StatusLoading, StatusRetrying, StatusPlaying:
	default:
		return
	}
	c.cancelTimer()
	c.session.RetryCount = 0
	c.session.LastError = ""
	c.setStatus(StatusPlaying)
}

// OnEngineWaiting handles a buffering stall: playing falls back to loading.
func (c *Controller) OnEngineWaiting() {
	if c.session.Status == StatusPlaying {
		c.setStatus(StatusLoading)
	}
}

// OnEngineError handles an engine failure. Every error is counted. Errors
// while Idle or Failed go no further. Non-fatal errors are only counted.
// Fatal errors consume the retry budget with a linear backoff of
// retry * RetryStep, then fail the attempt.
func (c *Controller) OnEngineError(kind ErrorKind, fatal bool, details string) {
	c.session.ErrorCount++
	metrics.RecordEngineError(string(kind), fatal)

	switch c.session.Status {
	case StatusLoading, StatusPlaying, StatusRetrying:
	default:
		return
	}

	evt := c.logger.Warn()
	if !fatal {
		evt = c.logger.Debug()
	}
	evt.Str(xglog.FieldEvent, "playback.engine_error").
		Str(xglog.FieldErrorKind, string(kind)).
		Bool("fatal", fatal).
		Str("details", details).
		Uint64(xglog.FieldAttempt, c.session.Attempt).
		Int("error_count", c.session.ErrorCount).
		Msg("stream engine error")

	if !fatal {
		return
	}
	engineErr := &EngineError{Kind: kind, Fatal: true, Details: details}
	c.session.LastError = engineErr.Error()

	if c.session.Status == StatusRetrying {
		// One backoff is already pending for this attempt.
		return
	}

	if c.session.RetryCount < c.maxRetries {
		c.scheduleRetry()
		return
	}
	c.fail(fmt.Errorf("%w: %w", ErrRetriesExhausted, engineErr))
}

func (c *Controller) scheduleRetry() {
	c.session.RetryCount++
	retry := c.session.RetryCount
	delay := time.Duration(retry) * c.retryStep
	attempt := c.session.Attempt

	c.setStatus(StatusRetrying)
	c.cancelTimer()
	c.timer = c.scheduler.AfterFunc(delay, func() {
		c.dispatch(func() { c.retryExpired(attempt) })
	})
	metrics.RecordRetryScheduled()

	c.logger.Info().
		Str(xglog.FieldEvent, "playback.retry_scheduled").
		Int(xglog.FieldRetryCount, retry).
		Int("max_retries", c.maxRetries).
		Dur(xglog.FieldDelay, delay).
		Uint64(xglog.FieldAttempt, attempt).
		Msg("retrying stream")
	c.observer.RetryScheduled(retry, c.maxRetries, delay)
}

func (c *Controller) retryExpired(attempt uint64) {
	if attempt != c.session.Attempt || c.session.Status != StatusRetrying {
		c.logger.Debug().
			Str(xglog.FieldEvent, "playback.retry_stale").
			Uint64(xglog.FieldAttempt, attempt).
			Msg("dropping stale retry")
		return
	}
	c.timer = nil
	c.deliver()
}

// deliver starts a new attempt for the session channel on a fresh engine.
func (c *Controller) deliver() {
	c.cancelTimer()
	c.releaseEngine()
	c.session.Attempt++

	factory := c.selectFactory()
	if factory == nil {
		c.session.Engine = ""
		c.fail(ErrUnsupportedPlayback)
		return
	}

	c.session.Engine = factory.Name()
	c.setStatus(StatusLoading)

	sink := &attemptSink{c: c, attempt: c.session.Attempt}
	c.engine = factory.New(sink)
	c.logger.Debug().
		Str(xglog.FieldEvent, "playback.deliver").
		Str(xglog.FieldEngine, factory.Name()).
		Uint64(xglog.FieldAttempt, c.session.Attempt).
		Int(xglog.FieldRetryCount, c.session.RetryCount).
		Msg("loading stream")
	c.engine.LoadSource(c.session.Channel.URL)
}

func (c *Controller) selectFactory() EngineFactory {
	if c.primary != nil && c.primary.Supported() {
		return c.primary
	}
	if c.fallback != nil && c.fallback.Supported() {
		return c.fallback
	}
	return nil
}

func (c *Controller) fail(err error) {
	c.cancelTimer()
	c.releaseEngine()
	c.session.LastError = err.Error()
	c.setStatus(StatusFailed)

	kind := ErrorUnknown
	var engineErr *EngineError
	switch {
	case errors.Is(err, ErrUnsupportedPlayback):
		kind = ErrorUnsupported
	case errors.As(err, &engineErr):
		kind = engineErr.Kind
	}
	metrics.RecordPlaybackFailure(string(kind))

	var ch playlist.Channel
	if c.session.Channel != nil {
		ch = *c.session.Channel
	}
	c.logger.Error().
		Err(err).
		Str(xglog.FieldEvent, "playback.failed").
		Str(xglog.FieldChannelURL, ch.URL).
		Int(xglog.FieldRetryCount, c.session.RetryCount).
		Msg("playback failed")
	c.observer.PlaybackFailed(ch, err)
}

func (c *Controller) setStatus(to Status) {
	from := c.session.Status
	c.session.Status = to
	if from == to {
		return
	}
	metrics.SetPlaybackStatus(string(to))
	c.logger.Debug().
		Str(xglog.FieldEvent, "playback.state").
		Str(xglog.FieldOldState, string(from)).
		Str(xglog.FieldNewState, string(to)).
		Msg("playback state changed")
	c.observer.StatusChanged(from, to, c.session.clone())
}

func (c *Controller) cancelTimer() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

func (c *Controller) releaseEngine() {
	if c.engine != nil {
		c.engine.Destroy()
		c.engine = nil
	}
}

// attemptSink binds engine signals to the attempt that created the engine.
type attemptSink struct {
	c       *Controller
	attempt uint64
}

func (s *attemptSink) run(fn func()) {
	s.c.dispatch(func() {
		if s.attempt != s.c.session.Attempt {
			return
		}
		fn()
	})
}

func (s *attemptSink) Ready()   { s.run(s.c.OnEngineReady) }
func (s *attemptSink) Waiting() { s.run(s.c.OnEngineWaiting) }

func (s *attemptSink) FatalError(kind ErrorKind, details string) {
	s.run(func() { s.c.OnEngineError(kind, true, details) })
}

func (s *attemptSink) NonFatalError(details string) {
	s.run(func() { s.c.OnEngineError(ErrorUnknown, false, details) })
}
