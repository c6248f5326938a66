// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package player wires the channel catalog, the playback controller and the
// session store behind a single event loop, and reports to a Shell.
//
// Every exported method is safe for concurrent use: it hands its work to the
// loop and waits for the result. Network reads happen off the loop and post
// their continuation back to it.
package player

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/language"

	"github.com/ManuGH/tvplay/internal/catalog"
	"github.com/ManuGH/tvplay/internal/kv"
	xglog "github.com/ManuGH/tvplay/internal/log"
	"github.com/ManuGH/tvplay/internal/playback"
	"github.com/ManuGH/tvplay/internal/playlist"
	"github.com/ManuGH/tvplay/internal/session"
	"github.com/ManuGH/tvplay/internal/source"
)

// Defaults for Options.
const (
	DefaultAutoplayDelay    = 500 * time.Millisecond
	DefaultAutosaveInterval = 30 * time.Second
)

var (
	// ErrEmptyPlaylist is returned when a playlist yields no channels.
	ErrEmptyPlaylist = errors.New("no valid channels found in playlist")
	// ErrInvalidURL is returned for blank or non-http(s) playlist URLs.
	ErrInvalidURL = source.ErrInvalidURL
	// ErrLoadSuperseded is returned when a newer load finished first.
	ErrLoadSuperseded = errors.New("playlist load superseded by a newer load")
)

// Fetcher downloads playlist text.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// FileReader reads local playlist text.
type FileReader func(path string) (string, error)

// Options configures a Player. Fetcher is required for URL loads; a nil
// Store keeps the session in memory only.
type Options struct {
	Fetcher  Fetcher
	ReadFile FileReader
	Store    *session.Store
	Shell    Shell

	Primary  playback.EngineFactory
	Fallback playback.EngineFactory
	// Scheduler drives backoff and autoplay timers.
	Scheduler playback.Scheduler

	MaxRetries       int
	RetryStep        time.Duration
	AutoplayDelay    time.Duration
	AutosaveInterval time.Duration
	WatchDebounce    time.Duration
	// WatchFiles reloads a local playlist source when it changes.
	WatchFiles bool
	Collation  language.Tag
	Intn       func(n int) int
}

// Player is the IPTV player core.
type Player struct {
	loop      *Loop
	catalog   *catalog.Catalog
	ctrl      *playback.Controller
	store     *session.Store
	shell     Shell
	fetcher   Fetcher
	readFile  FileReader
	scheduler playback.Scheduler
	opts      Options
	logger    zerolog.Logger

	// Loop-owned state.
	prefs       session.Preferences
	source      string
	isFile      bool
	loadGen     uint64
	autoplay    playback.Timer
	watcher     *fileWatcher
	closed      bool
	lastAttempt uint64
}

// New creates a player. Call Run to start its loop.
func New(opts Options) *Player {
	if opts.Shell == nil {
		opts.Shell = NopShell{}
	}
	if opts.Store == nil {
		opts.Store = session.NewStore(kv.NewMemory())
	}
	if opts.ReadFile == nil {
		opts.ReadFile = source.ReadFile
	}
	if opts.Scheduler == nil {
		opts.Scheduler = playback.RealScheduler()
	}
	if opts.AutoplayDelay <= 0 {
		opts.AutoplayDelay = DefaultAutoplayDelay
	}
	if opts.AutosaveInterval <= 0 {
		opts.AutosaveInterval = DefaultAutosaveInterval
	}
	if opts.Collation == (language.Tag{}) {
		opts.Collation = language.Und
	}

	p := &Player{
		loop:      NewLoop(),
		catalog:   catalog.New(catalog.WithCollation(opts.Collation)),
		store:     opts.Store,
		shell:     opts.Shell,
		fetcher:   opts.Fetcher,
		readFile:  opts.ReadFile,
		scheduler: opts.Scheduler,
		opts:      opts,
		logger:    xglog.WithComponent("player"),
		prefs:     session.DefaultPreferences(),
	}
	p.ctrl = playback.New(p.catalog, playback.Options{
		Primary:    opts.Primary,
		Fallback:   opts.Fallback,
		Scheduler:  opts.Scheduler,
		Dispatch:   func(fn func()) { p.loop.Post(fn) },
		Observer:   observer{p},
		MaxRetries: opts.MaxRetries,
		RetryStep:  opts.RetryStep,
		Intn:       opts.Intn,
	})
	return p
}

// Loop exposes the player loop, for health checks.
func (p *Player) Loop() *Loop { return p.loop }

// Run runs the loop and the autosave ticker until ctx is cancelled, then
// tears down: playback stops and the session is saved.
func (p *Player) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return p.loop.Run(gctx) })
	g.Go(func() error {
		p.autosaveLoop(gctx)
		return nil
	})
	err := g.Wait()

	// The loop has exited; this goroutine now owns player state.
	p.teardown(context.WithoutCancel(ctx))
	return err
}

// Close stops playback and saves the session. Run calls it implicitly on
// exit; calling it earlier is allowed.
func (p *Player) Close(ctx context.Context) error {
	err := p.loop.Do(ctx, func() { p.teardown(ctx) })
	if errors.Is(err, ErrLoopStopped) {
		return nil
	}
	return err
}

func (p *Player) teardown(ctx context.Context) {
	if p.closed {
		return
	}
	p.closed = true
	p.cancelAutoplay()
	p.stopWatcher()
	p.ctrl.Stop()
	p.persist(ctx, "teardown")
}

func (p *Player) autosaveLoop(ctx context.Context) {
	ticker := time.NewTicker(p.opts.AutosaveInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.loop.Post(func() { p.autosave(ctx) })
		}
	}
}

func (p *Player) autosave(ctx context.Context) {
	if p.closed {
		return
	}
	if p.ctrl.Session().Status == playback.StatusRetrying {
		return
	}
	p.persist(ctx, "autosave")
}

// persist saves the current preferences. Failures are logged and dropped.
func (p *Player) persist(ctx context.Context, reason string) {
	prefs := p.currentPreferences()
	if err := p.store.Save(ctx, prefs); err != nil {
		p.logger.Warn().
			Err(err).
			Str(xglog.FieldEvent, "session.save_failed").
			Str("reason", reason).
			Msg("failed to save player state")
		return
	}
	p.logger.Debug().
		Str(xglog.FieldEvent, "session.saved").
		Str("reason", reason).
		Int(xglog.FieldIndex, prefs.LastChannelIndex).
		Msg("player state saved")
}

func (p *Player) currentPreferences() session.Preferences {
	prefs := p.prefs
	prefs.LastChannelIndex = p.catalog.ActiveIndex()
	prefs.LastPlaylistSource = p.source
	return prefs
}

// do runs fn on the loop. It fails only when the loop is gone or ctx ends.
func (p *Player) do(ctx context.Context, fn func()) error {
	if err := p.loop.Do(ctx, fn); err != nil {
		return fmt.Errorf("player: %w", err)
	}
	return nil
}

func (p *Player) refreshChannels() {
	p.shell.Channels(p.catalog.VisibleEntries(), p.catalog.ActiveIndex())
}

func (p *Player) cancelAutoplay() {
	if p.autoplay != nil {
		p.autoplay.Stop()
		p.autoplay = nil
	}
}

func (p *Player) scheduleAutoplay(gen uint64, index int, delay time.Duration) {
	p.cancelAutoplay()
	p.autoplay = p.scheduler.AfterFunc(delay, func() {
		p.loop.Post(func() {
			if gen != p.loadGen || p.closed {
				return
			}
			p.autoplay = nil
			p.ctrl.PlayChannelAt(index)
		})
	})
}

// observer forwards controller events to the shell and the store.
type observer struct{ p *Player }

func (o observer) ChannelSwitched(_ int, ch playlist.Channel) {
	p := o.p
	p.shell.Status("Playing: "+ch.Name, LevelSuccess)
	p.shell.NowPlaying(ch.Name)
	p.refreshChannels()
	p.persist(context.Background(), "switch")
}

// StatusChanged reports buffering only for a stall of the running attempt;
// a new attempt also passes through Playing -> Loading.
func (o observer) StatusChanged(from, to playback.Status, s playback.Session) {
	sameAttempt := s.Attempt == o.p.lastAttempt
	o.p.lastAttempt = s.Attempt
	switch {
	case from == playback.StatusPlaying && to == playback.StatusLoading && sameAttempt:
		o.p.shell.Status("Buffering...", LevelInfo)
	case to == playback.StatusIdle:
		o.p.shell.NowPlaying("")
	}
}

func (o observer) RetryScheduled(retry, max int, _ time.Duration) {
	o.p.shell.Toast(fmt.Sprintf("Retrying... (%d/%d)", retry, max), LevelWarning)
}

func (o observer) PlaybackFailed(_ playlist.Channel, err error) {
	msg := "Stream error: " + err.Error()
	switch {
	case errors.Is(err, playback.ErrRetriesExhausted):
		msg = playback.ErrRetriesExhausted.Error()
	case errors.Is(err, playback.ErrUnsupportedPlayback):
		msg = "no supported stream engine available"
	}
	o.p.shell.Error(capitalize(msg))
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	if c := s[0]; c >= 'a' && c <= 'z' {
		return string(c-'a'+'A') + s[1:]
	}
	return s
}
