// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package engine

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/grafov/m3u8"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	xglog "github.com/ManuGH/tvplay/internal/log"
	"github.com/ManuGH/tvplay/internal/metrics"
	platformnet "github.com/ManuGH/tvplay/internal/platform/net"
	"github.com/ManuGH/tvplay/internal/playback"
)

// liveEdgeSegments is how many trailing segments are fetched on start.
const liveEdgeSegments = 3

// errNotMedia is returned when a variant URI resolves to another master.
var errNotMedia = errors.New("variant is not a media playlist")

// HLSFactory creates HLS engines.
type HLSFactory struct {
	opts Options
}

// NewHLS returns the HLS engine factory.
func NewHLS(opts Options) *HLSFactory {
	return &HLSFactory{opts: opts.withDefaults()}
}

func (f *HLSFactory) Name() string    { return NameHLS }
func (f *HLSFactory) Supported() bool { return f.opts.Client != nil }

func (f *HLSFactory) New(sink playback.Sink) playback.Engine {
	return &hlsEngine{opts: f.opts, sink: sink, logger: xglog.WithComponent("engine.hls")}
}

type hlsEngine struct {
	opts   Options
	sink   playback.Sink
	logger zerolog.Logger
	run    runner
}

func (e *hlsEngine) LoadSource(src string) {
	e.run.start(func(ctx context.Context) { e.follow(ctx, src) })
}

func (e *hlsEngine) Destroy() { e.run.destroy() }

// follow resolves the manifest and tracks the live media playlist until the
// context is cancelled, the playlist ends, or failures become fatal.
func (e *hlsEngine) follow(ctx context.Context, src string) {
	start := time.Now()
	logger := e.logger.With().Str(xglog.FieldChannelURL, platformnet.SanitizeURL(src)).Logger()

	mediaURL, media, err := e.resolveMedia(ctx, src)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		var decodeErr *decodeError
		if errors.As(err, &decodeErr) || errors.Is(err, errNotMedia) {
			e.sink.FatalError(playback.ErrorMedia, "manifestParsingError: "+err.Error())
			return
		}
		e.sink.FatalError(playback.ErrorNetwork, "manifestLoadError: "+err.Error())
		return
	}
	if len(segmentsOf(media)) == 0 {
		e.sink.FatalError(playback.ErrorMedia, "levelEmptyError: media playlist has no segments")
		return
	}

	limiter := rate.NewLimiter(rate.Limit(e.opts.SegmentsPerSecond), 1)
	var (
		waiting  bool
		failures int
		nextSeq  uint64
	)

	segments := segmentsOf(media)
	if len(segments) > liveEdgeSegments && !media.Closed {
		segments = segments[len(segments)-liveEdgeSegments:]
	}

	// A parsed media playlist with segments is playable; segment delivery
	// only drives the waiting/ready stall cycle from here on.
	metrics.ObserveStreamStartup(NameHLS, time.Since(start))
	logger.Debug().Str(xglog.FieldEvent, "engine.ready").Dur("startup", time.Since(start)).Msg("manifest parsed")
	e.sink.Ready()

	// fail records one non-fatal failure and reports whether delivery
	// must stop.
	fail := func(details string) bool {
		failures++
		if !waiting {
			waiting = true
			e.sink.Waiting()
		}
		if failures >= e.opts.MaxConsecutiveFailures {
			e.sink.FatalError(playback.ErrorNetwork, fmt.Sprintf("levelLoadError: %s (%d consecutive failures)", details, failures))
			return true
		}
		e.sink.NonFatalError(details)
		return false
	}

	for {
		for _, seg := range segments {
			if seg.SeqId < nextSeq {
				continue
			}
			if err := limiter.Wait(ctx); err != nil {
				return
			}
			n, err := e.fetchSegment(ctx, mediaURL, seg.URI)
			if ctx.Err() != nil {
				return
			}
			if err != nil {
				if fail("fragLoadError: " + err.Error()) {
					return
				}
				break
			}
			failures = 0
			nextSeq = seg.SeqId + 1
			metrics.AddStreamBytes(NameHLS, n)
			if waiting {
				waiting = false
				e.sink.Ready()
			}
		}

		if media.Closed && nextSeq > lastSeq(media) {
			logger.Debug().Str(xglog.FieldEvent, "engine.ended").Msg("playlist ended")
			return
		}

		if !sleepCtx(ctx, e.pollInterval(media)) {
			return
		}

		next, err := e.loadMedia(ctx, mediaURL)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			if fail("levelLoadError: " + err.Error()) {
				return
			}
			segments = nil
			continue
		}
		media = next
		segments = segmentsOf(media)
	}
}

// resolveMedia loads src and, for a master playlist, its first variant.
func (e *hlsEngine) resolveMedia(ctx context.Context, src string) (string, *m3u8.MediaPlaylist, error) {
	pl, listType, err := e.loadPlaylist(ctx, src)
	if err != nil {
		return "", nil, err
	}
	if listType == m3u8.MEDIA {
		return src, pl.(*m3u8.MediaPlaylist), nil
	}

	master := pl.(*m3u8.MasterPlaylist)
	if len(master.Variants) == 0 || master.Variants[0] == nil {
		return "", nil, &decodeError{err: errors.New("master playlist has no variants")}
	}
	variantURL, err := resolveRef(src, master.Variants[0].URI)
	if err != nil {
		return "", nil, &decodeError{err: err}
	}
	media, err := e.loadMedia(ctx, variantURL)
	if err != nil {
		return "", nil, err
	}
	return variantURL, media, nil
}

func (e *hlsEngine) loadMedia(ctx context.Context, u string) (*m3u8.MediaPlaylist, error) {
	pl, listType, err := e.loadPlaylist(ctx, u)
	if err != nil {
		return nil, err
	}
	if listType != m3u8.MEDIA {
		return nil, errNotMedia
	}
	return pl.(*m3u8.MediaPlaylist), nil
}

type decodeError struct{ err error }

func (e *decodeError) Error() string { return "decode playlist: " + e.err.Error() }
func (e *decodeError) Unwrap() error { return e.err }

func (e *hlsEngine) loadPlaylist(ctx context.Context, u string) (m3u8.Playlist, m3u8.ListType, error) {
	ctx, cancel := context.WithTimeout(ctx, e.opts.RequestTimeout)
	defer cancel()

	req, err := newRequest(ctx, u, e.opts.UserAgent)
	if err != nil {
		return nil, 0, err
	}
	resp, err := e.opts.Client.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return nil, 0, fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	pl, listType, err := m3u8.DecodeFrom(bufio.NewReader(resp.Body), false)
	if err != nil {
		if ctx.Err() != nil {
			return nil, 0, ctx.Err()
		}
		return nil, 0, &decodeError{err: err}
	}
	return pl, listType, nil
}

func (e *hlsEngine) fetchSegment(ctx context.Context, base, ref string) (int64, error) {
	u, err := resolveRef(base, ref)
	if err != nil {
		return 0, err
	}
	ctx, cancel := context.WithTimeout(ctx, e.opts.RequestTimeout)
	defer cancel()

	req, err := newRequest(ctx, u, e.opts.UserAgent)
	if err != nil {
		return 0, err
	}
	resp, err := e.opts.Client.Do(req)
	if err != nil {
		return 0, err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("segment HTTP %d", resp.StatusCode)
	}
	return io.Copy(io.Discard, resp.Body)
}

func (e *hlsEngine) pollInterval(media *m3u8.MediaPlaylist) time.Duration {
	d := time.Duration(media.TargetDuration * float64(time.Second))
	if d < e.opts.MinPollInterval {
		d = e.opts.MinPollInterval
	}
	return d
}

// segmentsOf returns the populated segments; the library keeps a ring
// buffer with trailing nil slots.
func segmentsOf(media *m3u8.MediaPlaylist) []*m3u8.MediaSegment {
	out := make([]*m3u8.MediaSegment, 0, media.Count())
	for _, seg := range media.Segments {
		if seg != nil {
			out = append(out, seg)
		}
	}
	return out
}

func lastSeq(media *m3u8.MediaPlaylist) uint64 {
	segs := segmentsOf(media)
	if len(segs) == 0 {
		return 0
	}
	return segs[len(segs)-1].SeqId
}

func resolveRef(base, ref string) (string, error) {
	b, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	r, err := url.Parse(ref)
	if err != nil {
		return "", err
	}
	return b.ResolveReference(r).String(), nil
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
