// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package playback

import (
	"errors"
	"testing"
	"time"

	"github.com/ManuGH/tvplay/internal/catalog"
	"github.com/ManuGH/tvplay/internal/playlist"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type harness struct {
	cat      *fakeCatalog
	sched    *fakeScheduler
	primary  *fakeFactory
	fallback *fakeFactory
	obs      *recordingObserver
	ctrl     *Controller
}

func newHarness(t *testing.T, n int) *harness {
	t.Helper()
	channels := make([]playlist.Channel, n)
	for i := range channels {
		channels[i] = playlist.Channel{
			Name: string(rune('A' + i)),
			URL:  "http://stream/" + string(rune('a'+i)),
		}
	}
	h := &harness{
		cat:      &fakeCatalog{channels: channels},
		sched:    &fakeScheduler{},
		primary:  &fakeFactory{name: "hls", supported: true},
		fallback: &fakeFactory{name: "progressive", supported: true},
		obs:      &recordingObserver{},
	}
	h.ctrl = New(h.cat, Options{
		Primary:   h.primary,
		Fallback:  h.fallback,
		Scheduler: h.sched,
		Observer:  h.obs,
		Intn:      func(n int) int { return n - 1 },
	})
	return h
}

func TestPlayChannelAt_StartsLoading(t *testing.T) {
	h := newHarness(t, 3)

	require.True(t, h.ctrl.PlayChannelAt(1))

	s := h.ctrl.Session()
	assert.Equal(t, StatusLoading, s.Status)
	assert.Equal(t, 1, s.SwitchCount)
	assert.Equal(t, 0, s.RetryCount)
	require.NotNil(t, s.Channel)
	assert.Equal(t, "http://stream/b", s.Channel.URL)
	assert.Equal(t, "hls", s.Engine)
	assert.Equal(t, []string{"http://stream/b"}, h.primary.loads)
	assert.Equal(t, 1, h.cat.ActiveIndex())
	assert.Equal(t, []int{1}, h.obs.switches)
}

func TestPlayChannelAt_OutOfRangeIsNoop(t *testing.T) {
	h := newHarness(t, 3)

	assert.False(t, h.ctrl.PlayChannelAt(5))
	assert.False(t, h.ctrl.PlayChannelAt(-1))

	s := h.ctrl.Session()
	assert.Equal(t, StatusIdle, s.Status)
	assert.Equal(t, 0, s.SwitchCount)
	assert.Nil(t, s.Channel)
	assert.Empty(t, h.primary.engines)
	assert.Empty(t, h.obs.switches)
}

func TestPlayChannelAt_ReleasesPreviousEngine(t *testing.T) {
	h := newHarness(t, 3)

	h.ctrl.PlayChannelAt(0)
	first := h.primary.last()
	h.ctrl.PlayChannelAt(1)

	assert.True(t, first.destroyed)
	assert.False(t, h.primary.last().destroyed)
	assert.Len(t, h.primary.engines, 2)
}

func TestEngineReady_TransitionsToPlaying(t *testing.T) {
	h := newHarness(t, 1)
	h.ctrl.PlayChannelAt(0)

	h.primary.last().sink.Ready()

	assert.Equal(t, StatusPlaying, h.ctrl.Session().Status)
	assert.Equal(t, [][2]Status{
		{StatusIdle, StatusLoading},
		{StatusLoading, StatusPlaying},
	}, h.obs.transitions)
}

func TestRetryPolicy_LinearBackoffThenFailed(t *testing.T) {
	h := newHarness(t, 1)
	h.ctrl.PlayChannelAt(0)

	for i := 1; i <= DefaultMaxRetries; i++ {
		h.primary.last().sink.FatalError(ErrorNetwork, "manifestLoadError")
		require.Equal(t, StatusRetrying, h.ctrl.Session().Status)
		require.Equal(t, i, h.ctrl.Session().RetryCount)

		h.sched.fireLast()
		require.Equal(t, StatusLoading, h.ctrl.Session().Status)
	}

	h.primary.last().sink.FatalError(ErrorNetwork, "manifestLoadError")

	s := h.ctrl.Session()
	assert.Equal(t, StatusFailed, s.Status)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second, 3 * time.Second}, h.sched.delays())
	assert.Equal(t, 0, h.sched.pending(), "no fourth attempt may be scheduled")
	assert.Equal(t, DefaultMaxRetries+1, s.ErrorCount)
	// initial attempt plus three retries, same url each time
	assert.Equal(t, []string{"http://stream/a", "http://stream/a", "http://stream/a", "http://stream/a"}, h.primary.loads)
	require.Len(t, h.obs.failures, 1)
	assert.True(t, errors.Is(h.obs.failures[0], ErrRetriesExhausted))
	var engineErr *EngineError
	require.True(t, errors.As(h.obs.failures[0], &engineErr))
	assert.Equal(t, ErrorNetwork, engineErr.Kind)
	assert.True(t, h.primary.last().destroyed)
}

func TestScenario_TwoFatalErrorsThenReady(t *testing.T) {
	h := newHarness(t, 3)
	h.ctrl.PlayChannelAt(0)

	h.primary.last().sink.FatalError(ErrorNetwork, "manifestLoadError")
	h.sched.fireLast()
	h.primary.last().sink.FatalError(ErrorMedia, "bufferAppendError")
	h.sched.fireLast()
	h.primary.last().sink.Ready()

	s := h.ctrl.Session()
	assert.Equal(t, StatusPlaying, s.Status)
	assert.Equal(t, 0, s.RetryCount)
	assert.Equal(t, 2, s.ErrorCount)
	assert.Equal(t, 1, s.SwitchCount)
}

func TestScenario_DirectCallsWithoutTimerFiring(t *testing.T) {
	h := newHarness(t, 3)
	h.ctrl.PlayChannelAt(0)

	h.ctrl.OnEngineError(ErrorNetwork, true, "a")
	h.ctrl.OnEngineError(ErrorNetwork, true, "b")
	h.ctrl.OnEngineReady()

	s := h.ctrl.Session()
	assert.Equal(t, StatusPlaying, s.Status)
	assert.Equal(t, 0, s.RetryCount)
	assert.Equal(t, 2, s.ErrorCount)
	assert.Equal(t, 1, s.SwitchCount)
	assert.Equal(t, 0, h.sched.pending(), "ready cancels the pending backoff")
}

func TestReady_ResetsRetryCountMidway(t *testing.T) {
	h := newHarness(t, 1)
	h.ctrl.PlayChannelAt(0)

	h.primary.last().sink.FatalError(ErrorNetwork, "x")
	h.sched.fireLast()
	h.primary.last().sink.FatalError(ErrorNetwork, "x")
	h.sched.fireLast()
	require.Equal(t, 2, h.ctrl.Session().RetryCount)

	h.primary.last().sink.Ready()
	require.Equal(t, 0, h.ctrl.Session().RetryCount)

	// a fresh failure starts the backoff from the first step again
	h.primary.last().sink.FatalError(ErrorNetwork, "x")
	assert.Equal(t, time.Second, h.sched.delays()[len(h.sched.delays())-1])
}

func TestNonFatalErrors_AreCountedOnly(t *testing.T) {
	h := newHarness(t, 1)
	h.ctrl.PlayChannelAt(0)
	h.primary.last().sink.Ready()

	h.primary.last().sink.NonFatalError("fragLoadError")
	h.primary.last().sink.NonFatalError("fragLoadError")

	s := h.ctrl.Session()
	assert.Equal(t, StatusPlaying, s.Status)
	assert.Equal(t, 2, s.ErrorCount)
	assert.Equal(t, 0, s.RetryCount)
	assert.Empty(t, h.sched.timers)
}

func TestSwitch_SupersedesPendingRetry(t *testing.T) {
	h := newHarness(t, 2)
	h.ctrl.PlayChannelAt(0)
	staleSink := h.primary.last().sink
	staleSink.FatalError(ErrorNetwork, "x")
	require.Equal(t, StatusRetrying, h.ctrl.Session().Status)

	h.ctrl.PlayChannelAt(1)
	require.Equal(t, 0, h.sched.pending())

	// the cancelled backoff callback still races in
	h.sched.fireLast()
	staleSink.Ready()
	staleSink.FatalError(ErrorNetwork, "late")

	s := h.ctrl.Session()
	assert.Equal(t, StatusLoading, s.Status)
	assert.Equal(t, "http://stream/b", s.Channel.URL)
	assert.Equal(t, 1, s.ErrorCount)
	assert.Equal(t, []string{"http://stream/a", "http://stream/b"}, h.primary.loads)
}

func TestFailed_RecoversViaRetryCurrent(t *testing.T) {
	h := newHarness(t, 2)
	h.ctrl.PlayChannelAt(1)
	for i := 0; i < DefaultMaxRetries; i++ {
		h.primary.last().sink.FatalError(ErrorNetwork, "x")
		h.sched.fireLast()
	}
	h.primary.last().sink.FatalError(ErrorNetwork, "x")
	require.Equal(t, StatusFailed, h.ctrl.Session().Status)

	// errors after failure are ignored
	h.ctrl.OnEngineError(ErrorNetwork, true, "ignored")
	require.Equal(t, StatusFailed, h.ctrl.Session().Status)

	require.True(t, h.ctrl.RetryCurrent())
	s := h.ctrl.Session()
	assert.Equal(t, StatusLoading, s.Status)
	assert.Equal(t, 0, s.RetryCount)
	assert.Equal(t, 2, s.SwitchCount)
	assert.Equal(t, "http://stream/b", s.Channel.URL)
}

func TestEngineErrors_CountedButNotRetriedWhenFailedOrIdle(t *testing.T) {
	h := newHarness(t, 1)
	h.ctrl.OnEngineError(ErrorNetwork, true, "before play")
	s := h.ctrl.Session()
	assert.Equal(t, StatusIdle, s.Status)
	assert.Equal(t, 1, s.ErrorCount)
	assert.Empty(t, s.LastError)
	assert.Zero(t, h.sched.pending())

	h.ctrl.PlayChannelAt(0)
	for i := 0; i < DefaultMaxRetries; i++ {
		h.primary.last().sink.FatalError(ErrorNetwork, "x")
		h.sched.fireLast()
	}
	h.primary.last().sink.FatalError(ErrorNetwork, "x")
	require.Equal(t, StatusFailed, h.ctrl.Session().Status)
	before := h.ctrl.Session()
	timers := len(h.sched.timers)

	h.ctrl.OnEngineError(ErrorMedia, true, "after failure")
	h.ctrl.OnEngineError(ErrorUnknown, false, "after failure")

	s = h.ctrl.Session()
	assert.Equal(t, StatusFailed, s.Status)
	assert.Equal(t, before.ErrorCount+2, s.ErrorCount)
	assert.Equal(t, before.RetryCount, s.RetryCount)
	assert.Equal(t, before.LastError, s.LastError)
	assert.Len(t, h.sched.timers, timers, "no retry scheduled")
	assert.Zero(t, h.sched.pending())
}

func TestRetryCurrent_NoActiveIsNoop(t *testing.T) {
	h := newHarness(t, 2)
	assert.False(t, h.ctrl.RetryCurrent())
	assert.Equal(t, StatusIdle, h.ctrl.Session().Status)
}

func TestNavigation_Wraps(t *testing.T) {
	h := newHarness(t, 3)

	require.True(t, h.ctrl.PlayNext())
	assert.Equal(t, 0, h.cat.ActiveIndex(), "next with no active channel starts at 0")

	h.ctrl.PlayChannelAt(2)
	h.ctrl.PlayNext()
	assert.Equal(t, 0, h.cat.ActiveIndex(), "next wraps from the last index")

	h.ctrl.PlayPrevious()
	assert.Equal(t, 2, h.cat.ActiveIndex(), "previous wraps from index 0")

	h.ctrl.PlayPrevious()
	assert.Equal(t, 1, h.cat.ActiveIndex())
}

func TestNavigation_DuplicateURLsKeepPlayedPosition(t *testing.T) {
	cat := catalog.New()
	cat.Load([]playlist.Channel{
		{Name: "A", URL: "http://u1"},
		{Name: "B", URL: "http://u2"},
		{Name: "C", URL: "http://u1"},
	})
	primary := &fakeFactory{name: "hls", supported: true}
	ctrl := New(cat, Options{Primary: primary, Scheduler: &fakeScheduler{}})

	require.True(t, ctrl.PlayChannelAt(2))
	assert.Equal(t, 2, cat.ActiveIndex())

	require.True(t, ctrl.PlayNext())
	assert.Equal(t, 0, cat.ActiveIndex(), "next after the last entry wraps")
	assert.Equal(t, "A", ctrl.Session().Channel.Name)

	require.True(t, ctrl.PlayPrevious())
	assert.Equal(t, 2, cat.ActiveIndex())
	assert.Equal(t, "C", ctrl.Session().Channel.Name)
}

func TestNavigation_EmptyCatalogIsNoop(t *testing.T) {
	h := newHarness(t, 0)

	assert.NotPanics(t, func() {
		assert.False(t, h.ctrl.PlayNext())
		assert.False(t, h.ctrl.PlayPrevious())
		assert.False(t, h.ctrl.ShufflePlay())
	})
	assert.Equal(t, StatusIdle, h.ctrl.Session().Status)
}

func TestShufflePlay_UsesRandomIndex(t *testing.T) {
	h := newHarness(t, 4)

	require.True(t, h.ctrl.ShufflePlay())
	assert.Equal(t, 3, h.cat.ActiveIndex())
}

func TestEngineSelection_FallbackAndUnsupported(t *testing.T) {
	h := newHarness(t, 1)
	h.primary.supported = false

	h.ctrl.PlayChannelAt(0)
	assert.Equal(t, "progressive", h.ctrl.Session().Engine)
	assert.Len(t, h.fallback.engines, 1)

	h.fallback.supported = false
	h.ctrl.PlayChannelAt(0)

	s := h.ctrl.Session()
	assert.Equal(t, StatusFailed, s.Status)
	assert.Empty(t, h.sched.timers, "unsupported playback is never retried")
	require.NotEmpty(t, h.obs.failures)
	assert.ErrorIs(t, h.obs.failures[len(h.obs.failures)-1], ErrUnsupportedPlayback)
}

func TestWaiting_DropsPlayingToLoading(t *testing.T) {
	h := newHarness(t, 1)
	h.primary.supported = false
	h.ctrl.PlayChannelAt(0)
	sink := h.fallback.last().sink

	sink.Ready()
	sink.Waiting()
	assert.Equal(t, StatusLoading, h.ctrl.Session().Status)
	sink.Ready()
	assert.Equal(t, StatusPlaying, h.ctrl.Session().Status)
}

func TestStop_CancelsEverything(t *testing.T) {
	h := newHarness(t, 1)
	h.ctrl.PlayChannelAt(0)
	sink := h.primary.last().sink
	sink.FatalError(ErrorNetwork, "x")

	h.ctrl.Stop()

	assert.Equal(t, StatusIdle, h.ctrl.Session().Status)
	assert.Nil(t, h.ctrl.Session().Channel)
	assert.Equal(t, 0, h.sched.pending())
	assert.True(t, h.primary.last().destroyed)

	sink.Ready()
	assert.Equal(t, StatusIdle, h.ctrl.Session().Status)
}

func TestDispatch_RoutesSignals(t *testing.T) {
	var queued []func()
	cat := &fakeCatalog{channels: []playlist.Channel{{Name: "A", URL: "http://a"}}}
	primary := &fakeFactory{name: "hls", supported: true}
	ctrl := New(cat, Options{
		Primary:   primary,
		Scheduler: &fakeScheduler{},
		Dispatch:  func(fn func()) { queued = append(queued, fn) },
	})

	ctrl.PlayChannelAt(0)
	primary.last().sink.Ready()
	assert.Equal(t, StatusLoading, ctrl.Session().Status, "signal waits for the owning loop")

	for _, fn := range queued {
		fn()
	}
	assert.Equal(t, StatusPlaying, ctrl.Session().Status)
}
