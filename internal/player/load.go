// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package player

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	xglog "github.com/ManuGH/tvplay/internal/log"
	"github.com/ManuGH/tvplay/internal/metrics"
	platformnet "github.com/ManuGH/tvplay/internal/platform/net"
	"github.com/ManuGH/tvplay/internal/playlist"
	"github.com/ManuGH/tvplay/internal/source"
	"github.com/ManuGH/tvplay/internal/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	originURL  = "url"
	originFile = "file"
)

const tracerName = "tvplay.player"

func startLoadSpan(ctx context.Context, origin string) (context.Context, trace.Span) {
	return telemetry.Tracer(tracerName).Start(ctx, "playlist.load",
		trace.WithAttributes(telemetry.PlaylistAttributes(origin, -1)...))
}

func endLoadSpan(span trace.Span, n int, err error) {
	if err == nil {
		span.SetAttributes(attribute.Int(telemetry.PlaylistChannelsKey, n))
	}
	telemetry.EndSpan(span, err)
}

// LoadURL downloads and loads a remote playlist and auto-plays its first
// channel after the autoplay delay. It returns the channel count.
func (p *Player) LoadURL(ctx context.Context, rawURL string) (int, error) {
	return p.loadURL(ctx, rawURL, 0)
}

func (p *Player) loadURL(ctx context.Context, rawURL string, autoplayIndex int) (n int, err error) {
	ctx, span := startLoadSpan(ctx, originURL)
	defer func() { endLoadSpan(span, n, err) }()

	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" || !source.IsRemote(rawURL) {
		_ = p.do(ctx, func() { p.shell.Toast("Please enter a valid URL", LevelError) })
		return 0, ErrInvalidURL
	}
	if p.fetcher == nil {
		return 0, errors.New("player: no playlist fetcher configured")
	}

	var gen uint64
	if err := p.do(ctx, func() {
		gen = p.beginLoad("Loading playlist...")
	}); err != nil {
		return 0, err
	}

	text, fetchErr := p.fetcher.Fetch(ctx, rawURL)

	if doErr := p.do(context.WithoutCancel(ctx), func() {
		n, err = p.finishLoad(ctx, gen, rawURL, originURL, text, fetchErr, autoplayIndex)
	}); doErr != nil {
		return 0, doErr
	}
	return n, err
}

// LoadFile reads and loads a local playlist and plays its first channel
// immediately. Compressed files are decoded transparently.
func (p *Player) LoadFile(ctx context.Context, path string) (n int, err error) {
	ctx, span := startLoadSpan(ctx, originFile)
	defer func() { endLoadSpan(span, n, err) }()

	path = strings.TrimSpace(path)
	if path == "" {
		return 0, errors.New("player: empty playlist path")
	}

	var gen uint64
	if err := p.do(ctx, func() {
		gen = p.beginLoad("Loading playlist file...")
	}); err != nil {
		return 0, err
	}

	text, readErr := p.readFile(path)

	if doErr := p.do(context.WithoutCancel(ctx), func() {
		n, err = p.finishLoad(ctx, gen, path, originFile, text, readErr, 0)
	}); doErr != nil {
		return 0, doErr
	}
	return n, err
}

func (p *Player) beginLoad(status string) uint64 {
	p.loadGen++
	p.shell.Loading(true)
	p.shell.Status(status, LevelInfo)
	return p.loadGen
}

// finishLoad applies a completed read on the loop.
func (p *Player) finishLoad(ctx context.Context, gen uint64, src, origin, text string, readErr error, autoplayIndex int) (int, error) {
	logger := xglog.WithContext(ctx, p.logger)

	if gen != p.loadGen {
		metrics.RecordPlaylistLoad(origin, "superseded")
		return 0, ErrLoadSuperseded
	}
	p.shell.Loading(false)

	if readErr != nil {
		metrics.RecordPlaylistLoad(origin, "failure")
		logger.Warn().
			Err(readErr).
			Str(xglog.FieldEvent, "playlist.load_failed").
			Str(xglog.FieldSource, displaySource(src, origin)).
			Msg("playlist load failed")
		if origin == originFile {
			p.shell.Toast("Failed to read file", LevelError)
		} else {
			p.shell.Toast("Failed to load playlist: "+readErr.Error(), LevelError)
		}
		p.shell.Status("Load failed", LevelError)
		return 0, readErr
	}

	channels := playlist.Parse(text)
	if len(channels) == 0 {
		metrics.RecordPlaylistLoad(origin, "empty")
		logger.Warn().
			Str(xglog.FieldEvent, "playlist.empty").
			Str(xglog.FieldSource, displaySource(src, origin)).
			Msg("playlist has no valid channels")
		if origin == originFile {
			p.shell.Toast("Failed to parse playlist file", LevelError)
		} else {
			p.shell.Toast("Failed to load playlist: No valid channels found in playlist", LevelError)
		}
		p.shell.Status("Load failed", LevelError)
		return 0, ErrEmptyPlaylist
	}

	p.applyPlaylist(ctx, src, origin, channels)
	metrics.RecordPlaylistLoad(origin, "success")
	logger.Info().
		Str(xglog.FieldEvent, "playlist.loaded").
		Str(xglog.FieldSource, displaySource(src, origin)).
		Int(xglog.FieldChannels, len(channels)).
		Msg("playlist loaded")

	if origin == originFile {
		p.shell.Status(fmt.Sprintf("Loaded %d channels from file", len(channels)), LevelSuccess)
		p.shell.Toast(fmt.Sprintf("Loaded %d channels from %s", len(channels), filepath.Base(src)), LevelSuccess)
		p.ctrl.PlayChannelAt(0)
		return len(channels), nil
	}

	p.shell.Status(fmt.Sprintf("Loaded %d channels", len(channels)), LevelSuccess)
	p.shell.Toast(fmt.Sprintf("Successfully loaded %d channels", len(channels)), LevelSuccess)
	if err := p.store.RecordRecentPlaylist(ctx, src); err != nil {
		logger.Warn().Err(err).Str(xglog.FieldEvent, "session.recent_failed").Msg("failed to record recent playlist")
	}
	if autoplayIndex < 0 || autoplayIndex >= len(channels) {
		autoplayIndex = 0
	}
	p.scheduleAutoplay(gen, autoplayIndex, p.opts.AutoplayDelay)
	return len(channels), nil
}

// applyPlaylist replaces the catalog with a freshly loaded playlist.
func (p *Player) applyPlaylist(ctx context.Context, src, origin string, channels []playlist.Channel) {
	p.cancelAutoplay()
	p.ctrl.Stop()
	p.catalog.Load(channels)
	p.source = src
	p.isFile = origin == originFile
	metrics.SetChannelsLoaded(len(channels))
	p.refreshChannels()

	p.stopWatcher()
	if p.isFile && p.opts.WatchFiles {
		p.startWatcher(ctx, src)
	}
}

func (p *Player) startWatcher(ctx context.Context, path string) {
	gen := p.loadGen
	w, err := startFileWatcher(path, p.opts.WatchDebounce, func() {
		text, err := p.readFile(path)
		p.loop.Post(func() { p.reloadFile(context.WithoutCancel(ctx), gen, path, text, err) })
	}, p.logger)
	if err != nil {
		p.logger.Warn().Err(err).Str(xglog.FieldEvent, "playlist.watch_failed").Msg("cannot watch playlist file")
		return
	}
	p.watcher = w
}

func (p *Player) stopWatcher() {
	if p.watcher != nil {
		p.watcher.Stop()
		p.watcher = nil
	}
}

// reloadFile applies a changed local playlist without interrupting playback
// when the active channel is still present.
func (p *Player) reloadFile(ctx context.Context, gen uint64, path, text string, readErr error) {
	if gen != p.loadGen || p.closed || p.source != path {
		return
	}
	logger := xglog.WithContext(ctx, p.logger)
	if readErr != nil {
		logger.Warn().Err(readErr).Str(xglog.FieldEvent, "playlist.reload_failed").Msg("playlist reload failed")
		return
	}
	channels := playlist.Parse(text)
	if len(channels) == 0 {
		logger.Warn().Str(xglog.FieldEvent, "playlist.reload_empty").Msg("reloaded playlist is empty, keeping current channels")
		return
	}

	var activeURL string
	if active, ok := p.catalog.Active(); ok {
		activeURL = active.URL
	}
	query := p.catalog.Query()

	p.catalog.Load(channels)
	if query != "" {
		p.catalog.Search(query)
	}
	metrics.RecordPlaylistLoad("reload", "success")
	metrics.SetChannelsLoaded(len(channels))

	if activeURL != "" {
		if p.catalog.IndexOf(activeURL) >= 0 {
			p.catalog.SetActive(activeURL)
		} else {
			p.ctrl.Stop()
		}
	}
	p.refreshChannels()
	p.shell.Toast(fmt.Sprintf("Playlist reloaded: %d channels", len(channels)), LevelInfo)
	logger.Info().
		Str(xglog.FieldEvent, "playlist.reloaded").
		Int(xglog.FieldChannels, len(channels)).
		Msg("playlist file reloaded")
}

func displaySource(src, origin string) string {
	if origin == originURL {
		return platformnet.SanitizeURL(src)
	}
	return src
}
