// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog"

	xglog "github.com/ManuGH/tvplay/internal/log"
	"github.com/ManuGH/tvplay/internal/metrics"
	platformnet "github.com/ManuGH/tvplay/internal/platform/net"
	"github.com/ManuGH/tvplay/internal/playback"
)

const readBufferSize = 32 << 10

// ProgressiveFactory creates engines that read one continuous HTTP stream
// (MPEG-TS, AAC, MP3, ...).
type ProgressiveFactory struct {
	opts Options
}

// NewProgressive returns the progressive engine factory.
func NewProgressive(opts Options) *ProgressiveFactory {
	return &ProgressiveFactory{opts: opts.withDefaults()}
}

func (f *ProgressiveFactory) Name() string    { return NameProgressive }
func (f *ProgressiveFactory) Supported() bool { return f.opts.Client != nil }

func (f *ProgressiveFactory) New(sink playback.Sink) playback.Engine {
	return &progressiveEngine{opts: f.opts, sink: sink, logger: xglog.WithComponent("engine.progressive")}
}

type progressiveEngine struct {
	opts   Options
	sink   playback.Sink
	logger zerolog.Logger
	run    runner
}

func (e *progressiveEngine) LoadSource(src string) {
	e.run.start(func(ctx context.Context) { e.stream(ctx, src) })
}

func (e *progressiveEngine) Destroy() { e.run.destroy() }

func (e *progressiveEngine) stream(ctx context.Context, src string) {
	start := time.Now()

	req, err := newRequest(ctx, src, e.opts.UserAgent)
	if err != nil {
		e.sink.FatalError(playback.ErrorNetwork, err.Error())
		return
	}
	resp, err := e.opts.Client.Do(req)
	if err != nil {
		if ctx.Err() == nil {
			e.sink.FatalError(playback.ErrorNetwork, fmt.Sprintf("stream request failed: %v", err))
		}
		return
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		e.sink.FatalError(playback.ErrorNetwork, fmt.Sprintf("stream HTTP %d", resp.StatusCode))
		return
	}

	w := &stallWatch{sink: e.sink, timeout: e.opts.StallTimeout}
	defer w.stop()

	buf := make([]byte, readBufferSize)
	for {
		n, err := resp.Body.Read(buf)
		if ctx.Err() != nil {
			return
		}
		if n > 0 {
			metrics.AddStreamBytes(NameProgressive, int64(n))
			if w.progress() {
				metrics.ObserveStreamStartup(NameProgressive, time.Since(start))
				e.logger.Debug().
					Str(xglog.FieldEvent, "engine.ready").
					Str(xglog.FieldChannelURL, platformnet.SanitizeURL(src)).
					Dur("startup", time.Since(start)).
					Msg("stream producing data")
			}
		}
		if errors.Is(err, io.EOF) {
			e.sink.FatalError(playback.ErrorNetwork, "stream ended")
			return
		}
		if err != nil {
			e.sink.FatalError(playback.ErrorNetwork, fmt.Sprintf("stream read failed: %v", err))
			return
		}
	}
}

// stallWatch reports Ready on the first bytes and Waiting when data stops
// flowing for longer than timeout, then Ready again when it resumes.
type stallWatch struct {
	sink    playback.Sink
	timeout time.Duration

	mu      sync.Mutex
	timer   *time.Timer
	started bool
	stalled bool
	done    bool
}

// progress records received data and reports whether this was the first.
func (w *stallWatch) progress() bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	first := !w.started
	if first || w.stalled {
		w.started, w.stalled = true, false
		w.sink.Ready()
	}
	if w.timer == nil {
		w.timer = time.AfterFunc(w.timeout, w.stall)
	} else {
		w.timer.Reset(w.timeout)
	}
	return first
}

func (w *stallWatch) stall() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.done || w.stalled {
		return
	}
	w.stalled = true
	w.sink.Waiting()
}

func (w *stallWatch) stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.done = true
	if w.timer != nil {
		w.timer.Stop()
	}
}
