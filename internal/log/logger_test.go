// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package log

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigure_WritesServiceAndComponent(t *testing.T) {
	var buf bytes.Buffer
	Configure(Config{Level: "debug", Output: &buf, Service: "tvplay-test", Version: "v0.0.1"})
	t.Cleanup(func() { Configure(Config{}) })

	l := WithComponent("catalog")
	l.Info().Str(FieldEvent, "catalog.loaded").Msg("loaded")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "tvplay-test", entry["service"])
	assert.Equal(t, "v0.0.1", entry["version"])
	assert.Equal(t, "catalog", entry[FieldComponent])
	assert.Equal(t, "catalog.loaded", entry[FieldEvent])
}

func TestWithContext_AddsCorrelationFields(t *testing.T) {
	var buf bytes.Buffer
	Configure(Config{Output: &buf})
	t.Cleanup(func() { Configure(Config{}) })

	ctx := ContextWithRequestID(context.Background(), "req-1")
	ctx = ContextWithSessionID(ctx, "sess-1")

	l := WithComponentFromContext(ctx, "api")
	l.Info().Msg("hello")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "req-1", entry[FieldRequestID])
	assert.Equal(t, "sess-1", entry[FieldSessionID])
}

func TestContextHelpers_NilContext(t *testing.T) {
	//nolint:staticcheck // nil context is part of the contract
	assert.Equal(t, "", RequestIDFromContext(nil))
	//nolint:staticcheck
	assert.Equal(t, "", SessionIDFromContext(nil))
	//nolint:staticcheck
	ctx := ContextWithRequestID(nil, "abc")
	assert.Equal(t, "abc", RequestIDFromContext(ctx))
	//nolint:staticcheck
	assert.NotNil(t, FromContext(nil))
}
