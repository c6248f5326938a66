// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package engine provides the stream engines driven by the playback
// controller: an HLS engine that follows live media playlists and a
// progressive engine that reads a single continuous HTTP stream.
//
// Engines run their delivery in one goroutine per LoadSource and report
// through a playback.Sink. Destroy cancels delivery and waits for it.
package engine

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/ManuGH/tvplay/internal/platform/httpx"
)

// Engine names.
const (
	NameHLS         = "hls"
	NameProgressive = "progressive"
	NameNone        = "none"
)

// Options configures both engine kinds.
type Options struct {
	// Client is used for manifests, segments and streams. It must not
	// carry an overall timeout.
	Client    *http.Client
	UserAgent string
	// RequestTimeout bounds a single manifest or segment request.
	RequestTimeout time.Duration
	// MaxConsecutiveFailures turns repeated non-fatal failures fatal.
	MaxConsecutiveFailures int
	// MinPollInterval is the lower bound between live playlist reloads.
	MinPollInterval time.Duration
	// SegmentsPerSecond paces segment downloads when catching up.
	SegmentsPerSecond float64
	// StallTimeout is how long a progressive stream may go without data
	// before it reports Waiting.
	StallTimeout time.Duration
}

func (o Options) withDefaults() Options {
	if o.Client == nil {
		o.Client = httpx.NewStreamClient(5 * time.Second)
	}
	if o.UserAgent == "" {
		o.UserAgent = "tvplay"
	}
	if o.RequestTimeout <= 0 {
		o.RequestTimeout = 10 * time.Second
	}
	if o.MaxConsecutiveFailures <= 0 {
		o.MaxConsecutiveFailures = 3
	}
	if o.MinPollInterval <= 0 {
		o.MinPollInterval = time.Second
	}
	if o.SegmentsPerSecond <= 0 {
		o.SegmentsPerSecond = 4
	}
	if o.StallTimeout <= 0 {
		o.StallTimeout = 5 * time.Second
	}
	return o
}

// runner owns the delivery goroutine of one engine instance.
type runner struct {
	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
	closed bool
}

// start cancels any running delivery and launches fn.
func (r *runner) start(fn func(ctx context.Context)) {
	r.stop()

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		fn(ctx)
	}()
}

func (r *runner) stop() {
	r.mu.Lock()
	cancel := r.cancel
	r.cancel = nil
	r.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	r.wg.Wait()
}

func (r *runner) destroy() {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
	r.stop()
}

func newRequest(ctx context.Context, url, userAgent string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	return req, nil
}
