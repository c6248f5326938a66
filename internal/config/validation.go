// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/ManuGH/tvplay/internal/engine"
	"github.com/ManuGH/tvplay/internal/kv"
	"github.com/ManuGH/tvplay/internal/telemetry"
	"github.com/ManuGH/tvplay/internal/validate"
	"golang.org/x/text/language"
)

// Validate checks every field and reports all problems at once. It creates
// DataDir when missing.
func Validate(cfg Config) error {
	v := validate.New()

	v.ListenAddr("listen", cfg.Listen)
	v.LogLevel("logLevel", cfg.LogLevel)
	v.Directory("dataDir", cfg.DataDir, false)

	v.DurationRange("fetchTimeout", cfg.FetchTimeout, time.Second, 5*time.Minute)
	v.DurationRange("autosaveInterval", cfg.AutosaveInterval, time.Second, time.Hour)
	// Zero would be replaced by the player's built-in defaults, so it is
	// rejected rather than silently reinterpreted.
	v.DurationRange("autoplayDelay", cfg.AutoplayDelay, time.Millisecond, time.Minute)
	v.Range("maxRetries", cfg.MaxRetries, 1, 20)
	v.DurationRange("retryStep", cfg.RetryStep, time.Millisecond, time.Minute)
	if _, err := language.Parse(cfg.Collation); err != nil {
		v.AddError("collation", fmt.Sprintf("invalid language tag: %v", err), cfg.Collation)
	}

	v.OneOf("engine.primary", cfg.Engine.Primary, []string{engine.NameHLS, engine.NameNone})
	v.OneOf("engine.fallback", cfg.Engine.Fallback, []string{engine.NameProgressive, engine.NameNone})
	v.DurationRange("engine.requestTimeout", cfg.Engine.RequestTimeout, 100*time.Millisecond, time.Minute)
	if cfg.Engine.SegmentsPerSecond <= 0 {
		v.AddError("engine.segmentsPerSecond", "must be positive", cfg.Engine.SegmentsPerSecond)
	}
	v.DurationRange("engine.stallTimeout", cfg.Engine.StallTimeout, 100*time.Millisecond, time.Minute)

	backend := strings.ToLower(cfg.Store.Backend)
	v.OneOf("store.backend", backend, []string{
		kv.BackendFile, kv.BackendBadger, kv.BackendSQLite, kv.BackendRedis, kv.BackendMemory,
	})
	if backend == kv.BackendRedis {
		v.NotEmpty("store.redis.addr", cfg.Store.Redis.Addr)
		v.Range("store.redis.db", cfg.Store.Redis.DB, 0, 15)
	}

	v.NonNegative("rateLimit.loadsPerMinute", cfg.RateLimit.LoadsPerMinute)

	if cfg.Tracing.Enabled {
		v.OneOf("tracing.exporter", cfg.Tracing.Exporter, []string{telemetry.ExporterGRPC, telemetry.ExporterHTTP})
		v.NotEmpty("tracing.endpoint", cfg.Tracing.Endpoint)
		if cfg.Tracing.SamplingRate < 0 || cfg.Tracing.SamplingRate > 1 {
			v.AddError("tracing.samplingRate", "must be between 0 and 1", cfg.Tracing.SamplingRate)
		}
	}

	return v.Err()
}
