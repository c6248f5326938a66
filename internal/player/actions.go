// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package player

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/ManuGH/tvplay/internal/catalog"
	xglog "github.com/ManuGH/tvplay/internal/log"
	"github.com/ManuGH/tvplay/internal/playback"
	"github.com/ManuGH/tvplay/internal/playlist"
	"github.com/ManuGH/tvplay/internal/session"
	"github.com/ManuGH/tvplay/internal/source"
	"github.com/ManuGH/tvplay/internal/telemetry"
)

// Snapshot is a consistent view of the player.
type Snapshot struct {
	Source      string                 `json:"source,omitempty"`
	Query       string                 `json:"query"`
	Total       int                    `json:"total"`
	Visible     []catalog.VisibleEntry `json:"visible"`
	ActiveIndex int                    `json:"activeIndex"`
	Playback    playback.Session       `json:"playback"`
	MaxRetries  int                    `json:"maxRetries"`
	Preferences session.Preferences    `json:"preferences"`
	Link        string                 `json:"link,omitempty"`
}

// Search filters the visible channels by a case-insensitive name substring.
func (p *Player) Search(ctx context.Context, query string) error {
	return p.do(ctx, func() {
		p.catalog.Search(query)
		p.refreshChannels()
	})
}

// SortByName sorts the catalog by channel name. The active channel is kept.
func (p *Player) SortByName(ctx context.Context) error {
	return p.do(ctx, func() {
		p.catalog.SortByName()
		p.refreshChannels()
		p.shell.Toast("Channels sorted", LevelSuccess)
	})
}

// PlayChannelAt plays the channel at full-catalog index i. It reports false
// for an out-of-range index.
func (p *Player) PlayChannelAt(ctx context.Context, i int) (bool, error) {
	return p.navigate(ctx, "player.play", func() bool { return p.ctrl.PlayChannelAt(i) })
}

// PlayNext plays the next channel, wrapping around.
func (p *Player) PlayNext(ctx context.Context) (bool, error) {
	return p.navigate(ctx, "player.next", p.ctrl.PlayNext)
}

// PlayPrevious plays the previous channel, wrapping around.
func (p *Player) PlayPrevious(ctx context.Context) (bool, error) {
	return p.navigate(ctx, "player.previous", p.ctrl.PlayPrevious)
}

// ShufflePlay plays a random channel.
func (p *Player) ShufflePlay(ctx context.Context) (bool, error) {
	return p.navigate(ctx, "player.shuffle", p.ctrl.ShufflePlay)
}

// RetryCurrent restarts the active channel with a fresh retry budget.
func (p *Player) RetryCurrent(ctx context.Context) (bool, error) {
	return p.navigate(ctx, "player.retry", p.ctrl.RetryCurrent)
}

// Stop stops playback.
func (p *Player) Stop(ctx context.Context) error {
	return p.do(ctx, func() {
		p.cancelAutoplay()
		p.ctrl.Stop()
	})
}

func (p *Player) navigate(ctx context.Context, op string, fn func() bool) (bool, error) {
	ctx, span := telemetry.Tracer(tracerName).Start(ctx, op)
	var ok bool
	err := p.do(ctx, func() {
		if p.closed {
			return
		}
		p.cancelAutoplay()
		ok = fn()
		if !ok {
			span.SetAttributes(telemetry.ErrorAttributes("no_channel")...)
			return
		}
		s := p.ctrl.Session()
		name := ""
		if s.Channel != nil {
			name = s.Channel.Name
		}
		span.SetAttributes(telemetry.ChannelAttributes(p.catalog.ActiveIndex(), name)...)
		span.SetAttributes(telemetry.EngineAttributes(s.Engine, s.Attempt)...)
	})
	telemetry.EndSpan(span, err)
	return ok, err
}

// SetVolume sets the output volume, clamped to [0,1].
func (p *Player) SetVolume(ctx context.Context, v float64) error {
	return p.do(ctx, func() {
		p.prefs.Volume = min(max(v, 0), 1)
	})
}

// SetMuted mutes or unmutes output.
func (p *Player) SetMuted(ctx context.Context, muted bool) error {
	return p.do(ctx, func() { p.prefs.Muted = muted })
}

// SetPlaybackRate sets the playback rate. Non-positive rates are rejected.
func (p *Player) SetPlaybackRate(ctx context.Context, rate float64) error {
	if rate <= 0 {
		return fmt.Errorf("player: playback rate must be positive, got %v", rate)
	}
	return p.do(ctx, func() { p.prefs.PlaybackRate = rate })
}

// ShowRecent returns the most recently loaded playlist source.
func (p *Player) ShowRecent(ctx context.Context) (string, bool, error) {
	var (
		src string
		ok  bool
	)
	err := p.do(ctx, func() {
		recent := p.store.RecentPlaylists(ctx)
		if len(recent) == 0 {
			p.shell.Toast("No recent playlists", LevelInfo)
			return
		}
		src, ok = recent[0], true
		p.shell.Toast("Loaded most recent playlist", LevelInfo)
	})
	return src, ok, err
}

// RecentPlaylists returns all remembered sources, most recent first.
func (p *Player) RecentPlaylists(ctx context.Context) ([]string, error) {
	var recent []string
	err := p.do(ctx, func() { recent = p.store.RecentPlaylists(ctx) })
	return recent, err
}

// Snapshot returns the current player state.
func (p *Player) Snapshot(ctx context.Context) (Snapshot, error) {
	var s Snapshot
	err := p.do(ctx, func() {
		s = Snapshot{
			Source:      p.source,
			Query:       p.catalog.Query(),
			Total:       p.catalog.Len(),
			Visible:     p.catalog.VisibleEntries(),
			ActiveIndex: p.catalog.ActiveIndex(),
			Playback:    p.ctrl.Session(),
			MaxRetries:  p.ctrl.MaxRetries(),
			Preferences: p.currentPreferences(),
			Link:        p.link(),
		}
	})
	return s, err
}

// Link returns the shareable deep link for the active channel, or "" when
// the source is not a URL or nothing is active.
func (p *Player) Link(ctx context.Context) (string, error) {
	var link string
	err := p.do(ctx, func() { link = p.link() })
	return link, err
}

func (p *Player) link() string {
	idx := p.catalog.ActiveIndex()
	if idx < 0 || p.isFile || !source.IsRemote(p.source) {
		return ""
	}
	return EncodeFragment(p.source, idx)
}

// ExportM3U writes the visible channels as an M3U playlist.
func (p *Player) ExportM3U(ctx context.Context, w io.Writer) error {
	var visible []playlist.Channel
	if err := p.do(ctx, func() { visible = p.catalog.Visible() }); err != nil {
		return err
	}
	return playlist.WriteM3U(w, visible)
}

// Start restores saved preferences and loads the initial playlist, if any.
// initial may be a deep-link fragment, a URL or a local path.
func (p *Player) Start(ctx context.Context, initial string) error {
	if err := p.do(ctx, func() {
		prefs, ok := p.store.Restore(ctx)
		if ok {
			p.prefs.Volume = prefs.Volume
			p.prefs.Muted = prefs.Muted
			p.prefs.PlaybackRate = prefs.PlaybackRate
			logger := xglog.WithContext(ctx, p.logger)
			logger.Info().
				Str(xglog.FieldEvent, "session.restored").
				Float64("volume", prefs.Volume).
				Bool("muted", prefs.Muted).
				Float64("playback_rate", prefs.PlaybackRate).
				Msg("player state restored")
		}
		p.shell.Status("Ready", LevelSuccess)
	}); err != nil {
		return err
	}

	initial = strings.TrimSpace(initial)
	if initial == "" {
		return nil
	}
	if src, index, ok := ParseFragment(initial); ok {
		_, err := p.loadURL(ctx, src, index)
		return err
	}
	_, err := p.LoadFile(ctx, initial)
	return err
}
