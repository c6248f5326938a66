// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Command tvplay runs the IPTV player daemon and its HTTP control API.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ManuGH/tvplay/internal/config"
	"github.com/ManuGH/tvplay/internal/daemon"
	"github.com/ManuGH/tvplay/internal/health"
	xglog "github.com/ManuGH/tvplay/internal/log"
	"github.com/ManuGH/tvplay/internal/player"
	"github.com/ManuGH/tvplay/internal/telemetry"
	"github.com/ManuGH/tvplay/internal/version"
	"github.com/google/uuid"
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "healthcheck" {
		os.Exit(runHealthcheckCLI(os.Args[2:]))
	}

	showVersion := flag.Bool("version", false, "print version and exit")
	configPath := flag.String("config", "", "path to config file (YAML)")
	playlist := flag.String("playlist", "", "playlist URL, deep link or file to load at startup (overrides config)")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		os.Exit(0)
	}

	// Safe defaults until config is loaded.
	xglog.Configure(xglog.Config{Level: "info", Service: "tvplay", Version: version.Version})
	logger := xglog.WithComponent("daemon")

	cfg, err := config.NewLoader(*configPath, version.Version).Load()
	if err != nil {
		logger.Fatal().
			Err(err).
			Str(xglog.FieldEvent, "config.load_failed").
			Str("config_path", *configPath).
			Msg("failed to load configuration")
	}
	if *playlist != "" {
		cfg.Playlist = *playlist
	}

	xglog.Configure(xglog.Config{Level: cfg.LogLevel, Service: "tvplay", Version: cfg.Version})
	logger = xglog.WithComponent("daemon")
	logger.Info().
		Str(xglog.FieldEvent, "config.loaded").
		Str("path", *configPath).
		Str("listen", cfg.Listen).
		Str(xglog.FieldBackend, cfg.KV().Backend).
		Bool("tracing", cfg.Tracing.Enabled).
		Msg("configuration loaded")

	if err := run(cfg); err != nil {
		logger.Error().Err(err).Str(xglog.FieldEvent, "daemon.exit_error").Msg("daemon stopped with error")
		os.Exit(1)
	}
}

func run(cfg config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sessionID := uuid.NewString()
	ctx = xglog.ContextWithSessionID(ctx, sessionID)
	logger := xglog.WithComponentFromContext(ctx, "daemon")

	if err := health.CheckDataDir(cfg.DataDir); err != nil {
		return fmt.Errorf("startup check: %w", err)
	}

	tp, err := telemetry.NewProvider(ctx, tracingConfig(cfg))
	if err != nil {
		return fmt.Errorf("tracing: %w", err)
	}

	a, err := buildApp(ctx, cfg)
	if err != nil {
		_ = tp.Shutdown(context.Background())
		return err
	}

	mgr, err := daemon.NewManager(daemon.DefaultServerConfig(cfg.Listen), daemon.Deps{
		Logger:     logger,
		APIHandler: a.handler.Handler(),
		Player:     a.player,
	})
	if err != nil {
		_ = a.store.Close()
		_ = tp.Shutdown(context.Background())
		return err
	}
	// Hooks run LIFO, after the player has saved its session on teardown.
	mgr.RegisterShutdownHook("tracing", tp.Shutdown)
	mgr.RegisterShutdownHook("store", func(context.Context) error { return a.store.Close() })

	go func() {
		if err := a.player.Start(ctx, cfg.Playlist); err != nil && !errors.Is(err, player.ErrLoopStopped) {
			logger.Warn().Err(err).Str(xglog.FieldEvent, "player.start_failed").Msg("initial playlist not loaded")
		}
	}()

	logger.Info().
		Str(xglog.FieldEvent, "daemon.start").
		Str(xglog.FieldSessionID, sessionID).
		Msg("tvplay starting")
	return mgr.Start(ctx)
}
