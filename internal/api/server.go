// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package api exposes the player over an HTTP control API.
package api

import (
	"context"
	"io"
	"net/http"

	"github.com/ManuGH/tvplay/internal/api/middleware"
	"github.com/ManuGH/tvplay/internal/health"
	"github.com/ManuGH/tvplay/internal/player"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// BaseURL prefixes every control route.
const BaseURL = "/api/v1"

// Player is the subset of *player.Player the API drives.
type Player interface {
	LoadURL(ctx context.Context, url string) (int, error)
	LoadFile(ctx context.Context, path string) (int, error)
	ExportM3U(ctx context.Context, w io.Writer) error
	Search(ctx context.Context, query string) error
	SortByName(ctx context.Context) error
	PlayChannelAt(ctx context.Context, i int) (bool, error)
	PlayNext(ctx context.Context) (bool, error)
	PlayPrevious(ctx context.Context) (bool, error)
	ShufflePlay(ctx context.Context) (bool, error)
	RetryCurrent(ctx context.Context) (bool, error)
	Stop(ctx context.Context) error
	Snapshot(ctx context.Context) (player.Snapshot, error)
	RecentPlaylists(ctx context.Context) ([]string, error)
	SetVolume(ctx context.Context, v float64) error
	SetMuted(ctx context.Context, muted bool) error
	SetPlaybackRate(ctx context.Context, rate float64) error
	Link(ctx context.Context) (string, error)
}

var _ Player = (*player.Player)(nil)

// Config tunes the HTTP surface.
type Config struct {
	// LoadsPerMinute limits playlist loads per client IP. Zero selects the default.
	LoadsPerMinute int
	EnableMetrics  bool
	EnableLogging  bool
	// TracingService names request spans; empty disables tracing.
	TracingService string
}

// Server routes HTTP requests to a player.
type Server struct {
	cfg    Config
	player Player
	board  *Board
	health *health.Manager
}

// New creates a server. board must be the Shell the player reports to;
// hm may be nil, in which case the probes always report healthy.
func New(cfg Config, p Player, board *Board, hm *health.Manager) *Server {
	if board == nil {
		board = NewBoard(0)
	}
	if hm == nil {
		hm = health.NewManager("")
	}
	return &Server{cfg: cfg, player: p, board: board, health: hm}
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := middleware.NewRouter(middleware.StackConfig{
		EnableSecurityHeaders: true,
		CSP:                   middleware.DefaultCSP,
		EnableMetrics:         s.cfg.EnableMetrics,
		EnableLogging:         s.cfg.EnableLogging,
		TracingService:        s.cfg.TracingService,
	})

	r.Get("/healthz", s.health.ServeHealth)
	r.Get("/readyz", s.health.ServeReady)
	if s.cfg.EnableMetrics {
		r.Handle("/metrics", promhttp.Handler())
	}

	r.Route(BaseURL, func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(middleware.LoadRateLimit(s.cfg.LoadsPerMinute))
			r.Post("/playlist/url", s.handleLoadURL)
			r.Post("/playlist/file", s.handleLoadFile)
		})
		r.Get("/playlist.m3u", s.handleExport)
		r.Get("/channels", s.handleChannels)
		r.Post("/search", s.handleSearch)
		r.Post("/sort", s.handleSort)
		r.Post("/play/{index}", s.handlePlay)
		r.Post("/next", s.navigate(s.player.PlayNext))
		r.Post("/previous", s.navigate(s.player.PlayPrevious))
		r.Post("/shuffle", s.navigate(s.player.ShufflePlay))
		r.Post("/retry", s.navigate(s.player.RetryCurrent))
		r.Post("/stop", s.handleStop)
		r.Get("/status", s.handleStatus)
		r.Get("/recent", s.handleRecent)
		r.Put("/preferences", s.handlePreferences)
		r.Get("/link", s.handleLink)
	})
	return r
}
