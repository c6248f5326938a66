// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package config loads the tvplay daemon configuration.
//
// Precedence is defaults < YAML file < TVPLAY_* environment. The file is
// parsed strictly: unknown keys are an error.
package config

import (
	"path/filepath"
	"time"

	"github.com/ManuGH/tvplay/internal/kv"
)

// Config is the complete daemon configuration.
type Config struct {
	Listen   string `yaml:"listen"`
	LogLevel string `yaml:"logLevel"`
	DataDir  string `yaml:"dataDir"`
	// Playlist is loaded at startup: a URL, a deep-link fragment or a local path.
	Playlist string `yaml:"playlist"`

	FetchTimeout     time.Duration `yaml:"fetchTimeout"`
	AutosaveInterval time.Duration `yaml:"autosaveInterval"`
	AutoplayDelay    time.Duration `yaml:"autoplayDelay"`
	MaxRetries       int           `yaml:"maxRetries"`
	RetryStep        time.Duration `yaml:"retryStep"`
	// Collation is a BCP 47 tag used when sorting channel names.
	Collation  string `yaml:"collation"`
	WatchFiles bool   `yaml:"watchFiles"`
	Metrics    bool   `yaml:"metrics"`

	Engine    EngineConfig    `yaml:"engine"`
	Store     StoreConfig     `yaml:"store"`
	RateLimit RateLimitConfig `yaml:"rateLimit"`
	Tracing   TracingConfig   `yaml:"tracing"`

	// Version is set from the binary, never from file or environment.
	Version string `yaml:"-"`
}

// EngineConfig selects the stream engines.
type EngineConfig struct {
	// Primary is "hls" or "none".
	Primary string `yaml:"primary"`
	// Fallback is "progressive" or "none".
	Fallback          string        `yaml:"fallback"`
	UserAgent         string        `yaml:"userAgent"`
	RequestTimeout    time.Duration `yaml:"requestTimeout"`
	SegmentsPerSecond float64       `yaml:"segmentsPerSecond"`
	StallTimeout      time.Duration `yaml:"stallTimeout"`
}

// StoreConfig selects the preference store backend.
type StoreConfig struct {
	Backend string      `yaml:"backend"`
	Path    string      `yaml:"path"`
	Redis   RedisConfig `yaml:"redis"`
}

// RedisConfig configures the redis backend.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// RateLimitConfig limits playlist loads on the control API.
type RateLimitConfig struct {
	LoadsPerMinute int `yaml:"loadsPerMinute"`
}

// TracingConfig configures OpenTelemetry export. Disabled by default.
type TracingConfig struct {
	Enabled bool `yaml:"enabled"`
	// Exporter is "grpc" or "http" (OTLP).
	Exporter     string  `yaml:"exporter"`
	Endpoint     string  `yaml:"endpoint"`
	SamplingRate float64 `yaml:"samplingRate"`
	Environment  string  `yaml:"environment"`
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		Listen:           ":8088",
		LogLevel:         "info",
		DataDir:          "data",
		FetchTimeout:     15 * time.Second,
		AutosaveInterval: 30 * time.Second,
		AutoplayDelay:    500 * time.Millisecond,
		MaxRetries:       3,
		RetryStep:        time.Second,
		Collation:        "und",
		WatchFiles:       true,
		Metrics:          true,
		Engine: EngineConfig{
			Primary:           "hls",
			Fallback:          "progressive",
			UserAgent:         "tvplay",
			RequestTimeout:    10 * time.Second,
			SegmentsPerSecond: 4,
			StallTimeout:      5 * time.Second,
		},
		Store: StoreConfig{
			Backend: kv.BackendFile,
		},
		RateLimit: RateLimitConfig{LoadsPerMinute: 10},
		Tracing: TracingConfig{
			Exporter:     "grpc",
			Endpoint:     "localhost:4317",
			SamplingRate: 1.0,
			Environment:  "production",
		},
	}
}

// KV maps the store section onto kv.Config. Relative paths, and the
// default path of each local backend, resolve under DataDir.
func (c Config) KV() kv.Config {
	path := c.Store.Path
	if path == "" {
		switch c.Store.Backend {
		case kv.BackendFile, "":
			path = "state.json"
		case kv.BackendBadger:
			path = "badger"
		case kv.BackendSQLite:
			path = "state.db"
		}
	}
	if path != "" && !filepath.IsAbs(path) {
		path = filepath.Join(c.DataDir, path)
	}
	return kv.Config{
		Backend: c.Store.Backend,
		Path:    path,
		Redis: kv.RedisConfig{
			Addr:     c.Store.Redis.Addr,
			Password: c.Store.Redis.Password,
			DB:       c.Store.Redis.DB,
		},
	}
}
