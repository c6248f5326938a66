// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"context"
	"fmt"
	"time"

	"github.com/ManuGH/tvplay/internal/api"
	"github.com/ManuGH/tvplay/internal/config"
	"github.com/ManuGH/tvplay/internal/engine"
	"github.com/ManuGH/tvplay/internal/health"
	"github.com/ManuGH/tvplay/internal/kv"
	"github.com/ManuGH/tvplay/internal/playback"
	"github.com/ManuGH/tvplay/internal/player"
	"github.com/ManuGH/tvplay/internal/session"
	"github.com/ManuGH/tvplay/internal/source"
	"github.com/ManuGH/tvplay/internal/telemetry"
	"golang.org/x/text/language"
)

const serviceName = "tvplay"

// tracingConfig maps the tracing section onto the telemetry provider.
func tracingConfig(cfg config.Config) telemetry.Config {
	return telemetry.Config{
		Enabled:        cfg.Tracing.Enabled,
		ServiceName:    serviceName,
		ServiceVersion: cfg.Version,
		Environment:    cfg.Tracing.Environment,
		ExporterType:   cfg.Tracing.Exporter,
		Endpoint:       cfg.Tracing.Endpoint,
		SamplingRate:   cfg.Tracing.SamplingRate,
	}
}

// app holds the wired components of one daemon instance.
type app struct {
	store   kv.Store
	player  *player.Player
	board   *api.Board
	health  *health.Manager
	handler *api.Server
}

// buildEngines maps the engine section onto factories. "none" yields a nil
// factory, which the controller skips.
func buildEngines(cfg config.EngineConfig) (primary, fallback playback.EngineFactory) {
	opts := engine.Options{
		UserAgent:         cfg.UserAgent,
		RequestTimeout:    cfg.RequestTimeout,
		SegmentsPerSecond: cfg.SegmentsPerSecond,
		StallTimeout:      cfg.StallTimeout,
	}
	if cfg.Primary == engine.NameHLS {
		primary = engine.NewHLS(opts)
	}
	if cfg.Fallback == engine.NameProgressive {
		fallback = engine.NewProgressive(opts)
	}
	return primary, fallback
}

// buildApp opens the store and wires player, API and probes. The caller
// owns app.store and must close it.
func buildApp(ctx context.Context, cfg config.Config) (*app, error) {
	store, err := kv.Open(ctx, cfg.KV())
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.KV().Backend, err)
	}

	collation, err := language.Parse(cfg.Collation)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("collation: %w", err)
	}

	primary, fallback := buildEngines(cfg.Engine)
	board := api.NewBoard(api.DefaultToastHistory)
	p := player.New(player.Options{
		Fetcher: source.NewFetcher(source.Options{
			Timeout:   cfg.FetchTimeout,
			UserAgent: cfg.Engine.UserAgent,
		}),
		Store:            session.NewStore(store),
		Shell:            board,
		Primary:          primary,
		Fallback:         fallback,
		MaxRetries:       cfg.MaxRetries,
		RetryStep:        cfg.RetryStep,
		AutoplayDelay:    cfg.AutoplayDelay,
		AutosaveInterval: cfg.AutosaveInterval,
		WatchFiles:       cfg.WatchFiles,
		Collation:        collation,
	})

	hm := health.NewManager(cfg.Version)
	hm.RegisterChecker(health.NewStoreChecker("store_"+cfg.KV().Backend, store))
	hm.RegisterChecker(health.NewLoopChecker(p.Loop(), 5*time.Second))

	apiCfg := api.Config{
		LoadsPerMinute: cfg.RateLimit.LoadsPerMinute,
		EnableMetrics:  cfg.Metrics,
		EnableLogging:  true,
	}
	if cfg.Tracing.Enabled {
		apiCfg.TracingService = serviceName
	}
	srv := api.New(apiCfg, p, board, hm)

	return &app{store: store, player: p, board: board, health: hm, handler: srv}, nil
}
