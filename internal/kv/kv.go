// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package kv provides the durable string key-value stores used for player
// session state.
package kv

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// ErrNotFound is returned by Get when the key has no value.
var ErrNotFound = errors.New("kv: key not found")

// Store is a durable string key-value store. Implementations are safe for
// concurrent use.
type Store interface {
	// Get returns the value for key or ErrNotFound.
	Get(ctx context.Context, key string) (string, error)
	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key, value string) error
	// Ping verifies the backend is reachable.
	Ping(ctx context.Context) error
	Close() error
}

// Backend names accepted by Open.
const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendBadger = "badger"
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
)

// Config selects and configures a backend.
type Config struct {
	Backend string
	// Path is the file path (file, sqlite) or directory (badger).
	Path  string
	Redis RedisConfig
}

// Open creates the configured store.
func Open(ctx context.Context, cfg Config) (Store, error) {
	switch strings.ToLower(cfg.Backend) {
	case "", BackendFile:
		path := cfg.Path
		if path == "" {
			path = "state.json"
		}
		return OpenFile(path)
	case BackendMemory:
		return NewMemory(), nil
	case BackendBadger:
		if cfg.Path == "" {
			return nil, fmt.Errorf("kv: badger backend requires a path")
		}
		return OpenBadger(cfg.Path)
	case BackendSQLite:
		if cfg.Path == "" {
			return nil, fmt.Errorf("kv: sqlite backend requires a path")
		}
		return OpenSQLite(ctx, filepath.Clean(cfg.Path), DefaultSQLiteConfig())
	case BackendRedis:
		return OpenRedis(ctx, cfg.Redis)
	default:
		return nil, fmt.Errorf("kv: unknown backend %q", cfg.Backend)
	}
}
