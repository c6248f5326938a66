// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// EnvPrefix prefixes every environment key.
const EnvPrefix = "TVPLAY_"

// envReader applies TVPLAY_* overrides. Empty variables are ignored;
// unparseable ones are collected as errors.
type envReader struct {
	lookup func(string) (string, bool)
	used   map[string]string
	errs   []error
}

func (e *envReader) value(key string) (string, bool) {
	key = EnvPrefix + key
	v, ok := e.lookup(key)
	if !ok || strings.TrimSpace(v) == "" {
		return "", false
	}
	if isSensitive(key) {
		e.used[key] = "***"
	} else {
		e.used[key] = v
	}
	return strings.TrimSpace(v), true
}

func (e *envReader) fail(key, kind, v string, err error) {
	e.errs = append(e.errs, fmt.Errorf("%s%s: invalid %s %q: %w", EnvPrefix, key, kind, v, err))
}

func (e *envReader) str(key string, dst *string) {
	if v, ok := e.value(key); ok {
		*dst = v
	}
}

func (e *envReader) integer(key string, dst *int) {
	if v, ok := e.value(key); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			e.fail(key, "integer", v, err)
			return
		}
		*dst = n
	}
}

func (e *envReader) float(key string, dst *float64) {
	if v, ok := e.value(key); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			e.fail(key, "number", v, err)
			return
		}
		*dst = f
	}
}

func (e *envReader) duration(key string, dst *time.Duration) {
	if v, ok := e.value(key); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			e.fail(key, "duration", v, err)
			return
		}
		*dst = d
	}
}

// boolean accepts true/false, 1/0 and yes/no, case-insensitively.
func (e *envReader) boolean(key string, dst *bool) {
	if v, ok := e.value(key); ok {
		switch strings.ToLower(v) {
		case "true", "1", "yes":
			*dst = true
		case "false", "0", "no":
			*dst = false
		default:
			e.fail(key, "boolean", v, fmt.Errorf("want true or false"))
		}
	}
}

func isSensitive(key string) bool {
	lower := strings.ToLower(key)
	return strings.Contains(lower, "password") || strings.Contains(lower, "token")
}

// applyEnv overrides cfg from the environment.
func (e *envReader) applyEnv(cfg *Config) {
	e.str("LISTEN", &cfg.Listen)
	e.str("LOG_LEVEL", &cfg.LogLevel)
	e.str("DATA_DIR", &cfg.DataDir)
	e.str("PLAYLIST", &cfg.Playlist)
	e.duration("FETCH_TIMEOUT", &cfg.FetchTimeout)
	e.duration("AUTOSAVE_INTERVAL", &cfg.AutosaveInterval)
	e.duration("AUTOPLAY_DELAY", &cfg.AutoplayDelay)
	e.integer("MAX_RETRIES", &cfg.MaxRetries)
	e.duration("RETRY_STEP", &cfg.RetryStep)
	e.str("COLLATION", &cfg.Collation)
	e.boolean("WATCH_FILES", &cfg.WatchFiles)
	e.boolean("METRICS", &cfg.Metrics)

	e.str("ENGINE_PRIMARY", &cfg.Engine.Primary)
	e.str("ENGINE_FALLBACK", &cfg.Engine.Fallback)
	e.str("ENGINE_USER_AGENT", &cfg.Engine.UserAgent)
	e.duration("ENGINE_REQUEST_TIMEOUT", &cfg.Engine.RequestTimeout)
	e.float("ENGINE_SEGMENTS_PER_SECOND", &cfg.Engine.SegmentsPerSecond)
	e.duration("ENGINE_STALL_TIMEOUT", &cfg.Engine.StallTimeout)

	e.str("STORE_BACKEND", &cfg.Store.Backend)
	e.str("STORE_PATH", &cfg.Store.Path)
	e.str("STORE_REDIS_ADDR", &cfg.Store.Redis.Addr)
	e.str("STORE_REDIS_PASSWORD", &cfg.Store.Redis.Password)
	e.integer("STORE_REDIS_DB", &cfg.Store.Redis.DB)

	e.integer("RATE_LIMIT_LOADS_PER_MINUTE", &cfg.RateLimit.LoadsPerMinute)

	e.boolean("TRACING_ENABLED", &cfg.Tracing.Enabled)
	e.str("TRACING_EXPORTER", &cfg.Tracing.Exporter)
	e.str("TRACING_ENDPOINT", &cfg.Tracing.Endpoint)
	e.float("TRACING_SAMPLING_RATE", &cfg.Tracing.SamplingRate)
	e.str("TRACING_ENVIRONMENT", &cfg.Tracing.Environment)
}
