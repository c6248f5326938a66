// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package session persists player preferences and the recent-playlist list.
// Persistence is best-effort: a record that cannot be read is treated as
// absent, and write failures are returned for the caller to log.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/ManuGH/tvplay/internal/kv"
	xglog "github.com/ManuGH/tvplay/internal/log"
	"github.com/ManuGH/tvplay/internal/metrics"
)

// Persistence keys.
const (
	PreferencesKey = "iptv_player_data"
	RecentKey      = "iptv_recent_playlists"
)

// MaxRecentPlaylists bounds the recent-playlist list.
const MaxRecentPlaylists = 10

// NoChannel marks the absence of a last channel.
const NoChannel = -1

// Preferences is the persisted player record.
type Preferences struct {
	LastChannelIndex   int     `json:"currentChannelIndex"`
	LastPlaylistSource string  `json:"playlistUrl"`
	Volume             float64 `json:"volume"`
	Muted              bool    `json:"muted"`
	PlaybackRate       float64 `json:"playbackRate"`
}

// DefaultPreferences returns the preferences of a fresh install.
func DefaultPreferences() Preferences {
	return Preferences{
		LastChannelIndex: NoChannel,
		Volume:           1,
		PlaybackRate:     1,
	}
}

// normalize clamps values into their valid ranges.
func (p Preferences) normalize() Preferences {
	switch {
	case p.Volume < 0:
		p.Volume = 0
	case p.Volume > 1:
		p.Volume = 1
	}
	if p.PlaybackRate <= 0 {
		p.PlaybackRate = 1
	}
	if p.LastChannelIndex < NoChannel {
		p.LastChannelIndex = NoChannel
	}
	return p
}

// Store reads and writes session records through a kv.Store.
type Store struct {
	kv kv.Store
}

// NewStore wraps a persistence collaborator.
func NewStore(store kv.Store) *Store {
	return &Store{kv: store}
}

// Save overwrites the preferences record.
func (s *Store) Save(ctx context.Context, prefs Preferences) error {
	data, err := json.Marshal(prefs.normalize())
	if err != nil {
		return fmt.Errorf("session: encode preferences: %w", err)
	}
	if err := s.kv.Set(ctx, PreferencesKey, string(data)); err != nil {
		metrics.RecordPersistence("save", "failure")
		return fmt.Errorf("session: save preferences: %w", err)
	}
	metrics.RecordPersistence("save", "success")
	return nil
}

// Restore returns the saved preferences. ok is false when nothing usable is
// stored. Fields missing from the record keep their defaults.
func (s *Store) Restore(ctx context.Context) (Preferences, bool) {
	logger := xglog.FromContext(ctx)

	raw, err := s.kv.Get(ctx, PreferencesKey)
	if err != nil {
		if !errors.Is(err, kv.ErrNotFound) {
			metrics.RecordPersistence("restore", "failure")
			logger.Warn().Err(err).Str(xglog.FieldEvent, "session.restore_failed").Msg("preferences unreadable, starting fresh")
		}
		return DefaultPreferences(), false
	}

	prefs := DefaultPreferences()
	if err := json.Unmarshal([]byte(raw), &prefs); err != nil {
		metrics.RecordPersistence("restore", "failure")
		logger.Warn().Err(err).Str(xglog.FieldEvent, "session.restore_corrupt").Msg("preferences record is corrupt, ignoring")
		return DefaultPreferences(), false
	}
	metrics.RecordPersistence("restore", "success")
	return prefs.normalize(), true
}

// RecordRecentPlaylist moves source to the front of the recent list,
// removing any earlier occurrence and evicting past MaxRecentPlaylists. An
// unreadable list is left untouched and the read error is returned.
func (s *Store) RecordRecentPlaylist(ctx context.Context, source string) error {
	source = strings.TrimSpace(source)
	if source == "" {
		return nil
	}

	recent, err := s.readRecent(ctx)
	if err != nil {
		metrics.RecordPersistence("recent", "failure")
		return err
	}
	recent = slices.DeleteFunc(recent, func(v string) bool { return v == source })
	recent = slices.Insert(recent, 0, source)
	if len(recent) > MaxRecentPlaylists {
		recent = recent[:MaxRecentPlaylists]
	}

	data, err := json.Marshal(recent)
	if err != nil {
		return fmt.Errorf("session: encode recent playlists: %w", err)
	}
	if err := s.kv.Set(ctx, RecentKey, string(data)); err != nil {
		metrics.RecordPersistence("recent", "failure")
		return fmt.Errorf("session: save recent playlists: %w", err)
	}
	metrics.RecordPersistence("recent", "success")
	return nil
}

// RecentPlaylists returns the recent sources, most recent first. A missing,
// unreadable or corrupt record yields an empty list.
func (s *Store) RecentPlaylists(ctx context.Context) []string {
	recent, err := s.readRecent(ctx)
	if err != nil {
		xglog.FromContext(ctx).Warn().Err(err).Str(xglog.FieldEvent, "session.recent_unreadable").Msg("recent playlists unreadable")
		return []string{}
	}
	return recent
}

// readRecent fails only when the store itself cannot be read, so callers
// never rewrite history they could not see.
func (s *Store) readRecent(ctx context.Context) ([]string, error) {
	raw, err := s.kv.Get(ctx, RecentKey)
	if errors.Is(err, kv.ErrNotFound) {
		return []string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("session: read recent playlists: %w", err)
	}
	var recent []string
	if err := json.Unmarshal([]byte(raw), &recent); err != nil {
		xglog.FromContext(ctx).Warn().Err(err).Str(xglog.FieldEvent, "session.recent_corrupt").Msg("recent playlists record is corrupt, ignoring")
		return []string{}, nil
	}
	if recent == nil {
		return []string{}, nil
	}
	if len(recent) > MaxRecentPlaylists {
		recent = recent[:MaxRecentPlaylists]
	}
	return recent, nil
}
