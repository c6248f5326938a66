// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ManuGH/tvplay/internal/config"
	"github.com/ManuGH/tvplay/internal/engine"
	"github.com/ManuGH/tvplay/internal/kv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildEngines(t *testing.T) {
	cfg := config.Defaults().Engine
	primary, fallback := buildEngines(cfg)
	require.NotNil(t, primary)
	require.NotNil(t, fallback)
	assert.Equal(t, engine.NameHLS, primary.Name())
	assert.Equal(t, engine.NameProgressive, fallback.Name())

	cfg.Primary, cfg.Fallback = engine.NameNone, engine.NameNone
	primary, fallback = buildEngines(cfg)
	assert.Nil(t, primary)
	assert.Nil(t, fallback)
}

func TestBuildApp(t *testing.T) {
	cfg := config.Defaults()
	cfg.DataDir = t.TempDir()
	cfg.Store.Backend = kv.BackendMemory
	cfg.Version = "v-test"

	a, err := buildApp(context.Background(), cfg)
	require.NoError(t, err)
	defer func() { _ = a.store.Close() }()

	w := httptest.NewRecorder()
	a.handler.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz?verbose=true", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "store_memory")
	assert.Contains(t, w.Body.String(), "player_loop")
}

func TestBuildApp_BadStore(t *testing.T) {
	cfg := config.Defaults()
	cfg.DataDir = t.TempDir()
	cfg.Store.Backend = kv.BackendRedis

	_, err := buildApp(context.Background(), cfg)
	assert.Error(t, err)
}

func TestHealthcheck(t *testing.T) {
	ready := true
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/healthz":
			w.WriteHeader(http.StatusOK)
		case r.URL.Path == "/readyz" && ready:
			w.WriteHeader(http.StatusOK)
		default:
			w.WriteHeader(http.StatusServiceUnavailable)
		}
	}))
	defer srv.Close()

	var out, errOut bytes.Buffer
	assert.Equal(t, 0, healthcheck([]string{"-addr", srv.URL}, &out, &errOut))
	assert.Contains(t, out.String(), "successful (ready)")

	ready = false
	assert.Equal(t, 1, healthcheck([]string{"-addr", srv.URL}, &out, &errOut))
	assert.Contains(t, errOut.String(), "503")
	assert.Equal(t, 0, healthcheck([]string{"-addr", srv.URL, "-mode", "live"}, &out, &errOut))

	assert.Equal(t, 2, healthcheck([]string{"-bogus"}, &out, &errOut))
}

func TestTracingConfig(t *testing.T) {
	cfg := config.Defaults()
	cfg.Version = "v-test"
	cfg.Tracing.Enabled = true
	cfg.Tracing.Exporter = "http"

	tc := tracingConfig(cfg)
	assert.True(t, tc.Enabled)
	assert.Equal(t, serviceName, tc.ServiceName)
	assert.Equal(t, "v-test", tc.ServiceVersion)
	assert.Equal(t, "http", tc.ExporterType)
	assert.Equal(t, "localhost:4317", tc.Endpoint)
}
