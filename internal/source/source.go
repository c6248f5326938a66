// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package source retrieves playlist text from remote URLs and local files.
package source

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	xglog "github.com/ManuGH/tvplay/internal/log"
	"github.com/ManuGH/tvplay/internal/metrics"
	"github.com/ManuGH/tvplay/internal/platform/httpx"
	platformnet "github.com/ManuGH/tvplay/internal/platform/net"
	"github.com/ManuGH/tvplay/internal/playlist"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/singleflight"
)

// DefaultFetchTimeout bounds a whole playlist fetch, body included.
const DefaultFetchTimeout = 15 * time.Second

// AcceptHeader is sent with every playlist request.
const AcceptHeader = "application/x-mpegurl, text/plain"

// ErrInvalidURL is returned for blank or non-http(s) input.
var ErrInvalidURL = errors.New("invalid playlist url")

// FetchError describes a failed playlist download. Status is set for non-2xx
// responses; Err carries transport failures, including
// context.DeadlineExceeded on timeout.
type FetchError struct {
	URL    string
	Status int
	Err    error
}

func (e *FetchError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("HTTP %d: %s", e.Status, http.StatusText(e.Status))
	}
	if errors.Is(e.Err, context.DeadlineExceeded) {
		return "playlist request timed out"
	}
	return fmt.Sprintf("fetch playlist: %v", e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Options configures a Fetcher.
type Options struct {
	Timeout   time.Duration
	UserAgent string
	Client    *http.Client
}

// Fetcher downloads playlists. Concurrent fetches of the same URL share one
// request.
type Fetcher struct {
	client    *http.Client
	timeout   time.Duration
	userAgent string
	group     singleflight.Group
}

// NewFetcher creates a Fetcher with a hardened, traced client unless one is
// given.
func NewFetcher(opts Options) *Fetcher {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultFetchTimeout
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "tvplay"
	}
	client := opts.Client
	if client == nil {
		client = httpx.NewClient(opts.Timeout)
		client.Transport = otelhttp.NewTransport(client.Transport,
			otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
				return "playlist.fetch " + r.URL.Host
			}),
		)
	}
	return &Fetcher{client: client, timeout: opts.Timeout, userAgent: opts.UserAgent}
}

// Fetch returns the decoded playlist text at rawURL.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (string, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return "", ErrInvalidURL
	}
	u, err := platformnet.ParseStreamURL(rawURL)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidURL, err)
	}
	target := u.String()

	// Callers may cancel independently of the shared request.
	ch := f.group.DoChan(target, func() (any, error) {
		return f.fetch(context.WithoutCancel(ctx), target)
	})
	select {
	case <-ctx.Done():
		return "", &FetchError{URL: target, Err: ctx.Err()}
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	}
}

func (f *Fetcher) fetch(ctx context.Context, target string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	logger := xglog.WithComponentFromContext(ctx, "source")
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return "", &FetchError{URL: target, Err: err}
	}
	req.Header.Set("Accept", AcceptHeader)
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		metrics.ObservePlaylistFetch("error", time.Since(start))
		if ctx.Err() != nil {
			err = ctx.Err()
		}
		return "", &FetchError{URL: target, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		metrics.ObservePlaylistFetch("http_error", time.Since(start))
		return "", &FetchError{URL: target, Status: resp.StatusCode}
	}

	text, err := playlist.ReadText(resp.Body)
	if err != nil {
		metrics.ObservePlaylistFetch("error", time.Since(start))
		if ctx.Err() != nil {
			err = ctx.Err()
		}
		return "", &FetchError{URL: target, Err: err}
	}

	metrics.ObservePlaylistFetch("success", time.Since(start))
	logger.Debug().
		Str(xglog.FieldEvent, "playlist.fetched").
		Str(xglog.FieldSource, platformnet.SanitizeURL(target)).
		Int("bytes", len(text)).
		Dur("duration", time.Since(start)).
		Msg("playlist downloaded")
	return text, nil
}

// ReadFile returns the decoded playlist text of a local file.
func ReadFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open playlist file: %w", err)
	}
	defer func() { _ = f.Close() }()

	text, err := playlist.ReadText(f)
	if err != nil {
		return "", fmt.Errorf("read playlist file %s: %w", path, err)
	}
	return text, nil
}

// IsRemote reports whether a source string names an http(s) playlist.
func IsRemote(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}
