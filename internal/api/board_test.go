// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"fmt"
	"testing"

	"github.com/ManuGH/tvplay/internal/catalog"
	"github.com/ManuGH/tvplay/internal/player"
	"github.com/ManuGH/tvplay/internal/playlist"
	"github.com/stretchr/testify/assert"
)

func TestBoard_ToastHistoryIsBounded(t *testing.T) {
	b := NewBoard(3)
	for i := range 5 {
		b.Toast(fmt.Sprintf("toast %d", i), player.LevelInfo)
	}
	s := b.State()
	assert.Len(t, s.Toasts, 3)
	assert.Equal(t, "toast 2", s.Toasts[0].Message)
	assert.Equal(t, "toast 4", s.Toasts[2].Message)
}

func TestBoard_Overlays(t *testing.T) {
	b := NewBoard(0)
	assert.Equal(t, -1, b.State().ActiveIndex)

	b.Loading(true)
	b.Error("Failed to load stream after multiple attempts")
	s := b.State()
	assert.False(t, s.Loading, "error hides the loading overlay")
	assert.Equal(t, "Failed to load stream after multiple attempts", s.Error)

	b.NowPlaying("Bravo")
	assert.Empty(t, b.State().Error)

	b.Error("Stream error: boom")
	b.Loading(true)
	assert.Empty(t, b.State().Error)

	b.NowPlaying("")
	assert.Empty(t, b.State().NowPlaying)
}

func TestBoard_StateIsACopy(t *testing.T) {
	b := NewBoard(0)
	b.Channels([]catalog.VisibleEntry{{Index: 0, Channel: playlist.Channel{Name: "Alpha", URL: "http://a"}}}, 0)
	b.Toast("hi", player.LevelSuccess)

	s := b.State()
	s.Channels[0].Channel.Name = "mutated"
	s.Toasts[0].Message = "mutated"

	again := b.State()
	assert.Equal(t, "Alpha", again.Channels[0].Channel.Name)
	assert.Equal(t, "hi", again.Toasts[0].Message)
	assert.Equal(t, 0, again.ActiveIndex)
}
