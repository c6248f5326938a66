// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package kv

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// exerciseStore runs the behaviour every backend must share.
func exerciseStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	_, err := s.Get(ctx, "missing")
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Set(ctx, "iptv_player_data", `{"volume":1}`))
	v, err := s.Get(ctx, "iptv_player_data")
	require.NoError(t, err)
	assert.Equal(t, `{"volume":1}`, v)

	require.NoError(t, s.Set(ctx, "iptv_player_data", `{"volume":0.5}`))
	v, err = s.Get(ctx, "iptv_player_data")
	require.NoError(t, err)
	assert.Equal(t, `{"volume":0.5}`, v)

	require.NoError(t, s.Set(ctx, "empty", ""))
	v, err = s.Get(ctx, "empty")
	require.NoError(t, err)
	assert.Empty(t, v)

	assert.NoError(t, s.Ping(ctx))
}

func TestMemory(t *testing.T) {
	exerciseStore(t, NewMemory())
}

func TestMemory_ConcurrentAccess(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.Set(ctx, "k", "v")
			_, _ = s.Get(ctx, "k")
		}()
	}
	wg.Wait()

	v, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", v)
}

func TestFile(t *testing.T) {
	s, err := OpenFile(filepath.Join(t.TempDir(), "state", "state.json"))
	require.NoError(t, err)
	exerciseStore(t, s)
}

func TestFile_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	ctx := context.Background()

	s, err := OpenFile(path)
	require.NoError(t, err)
	require.NoError(t, s.Set(ctx, "iptv_recent_playlists", `["a","b"]`))
	require.NoError(t, s.Close())

	reopened, err := OpenFile(path)
	require.NoError(t, err)
	v, err := reopened.Get(ctx, "iptv_recent_playlists")
	require.NoError(t, err)
	assert.Equal(t, `["a","b"]`, v)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no pending temp files left behind")
}

func TestFile_CorruptDocumentIsAnError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	_, err := OpenFile(path)
	require.Error(t, err)
}

func TestBadger(t *testing.T) {
	s, err := OpenBadger(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	exerciseStore(t, s)
}

func TestBadger_PersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	s, err := OpenBadger(dir)
	require.NoError(t, err)
	require.NoError(t, s.Set(ctx, "k", "v"))
	require.NoError(t, s.Close())

	s, err = OpenBadger(dir)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	v, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", v)
}

func TestSQLite(t *testing.T) {
	s, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "state.db"), DefaultSQLiteConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	exerciseStore(t, s)
}

func setupMiniRedis(t *testing.T) (*miniredis.Miniredis, *Redis) {
	t.Helper()

	mr := miniredis.NewMiniRedis()
	require.NoError(t, mr.Start())
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	s := newRedis(client, "")
	t.Cleanup(func() { _ = s.Close() })
	return mr, s
}

func TestRedis(t *testing.T) {
	_, s := setupMiniRedis(t)
	exerciseStore(t, s)
}

func TestRedis_KeysArePrefixed(t *testing.T) {
	mr, s := setupMiniRedis(t)
	require.NoError(t, s.Set(context.Background(), "iptv_player_data", "x"))

	v, err := mr.Get("tvplay:iptv_player_data")
	require.NoError(t, err)
	assert.Equal(t, "x", v)
	assert.Zero(t, mr.TTL("tvplay:iptv_player_data"))
}

func TestOpenRedis_RequiresAddr(t *testing.T) {
	_, err := OpenRedis(context.Background(), RedisConfig{})
	require.Error(t, err)
}

func TestOpen_SelectsBackend(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	mr := miniredis.NewMiniRedis()
	require.NoError(t, mr.Start())
	t.Cleanup(mr.Close)

	tests := []struct {
		name string
		cfg  Config
		want any
	}{
		{"default is file", Config{Path: filepath.Join(dir, "a.json")}, &File{}},
		{"memory", Config{Backend: "memory"}, &Memory{}},
		{"badger", Config{Backend: "badger", Path: filepath.Join(dir, "badger")}, &Badger{}},
		{"sqlite", Config{Backend: "SQLite", Path: filepath.Join(dir, "s.db")}, &SQLite{}},
		{"redis", Config{Backend: "redis", Redis: RedisConfig{Addr: mr.Addr()}}, &Redis{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := Open(ctx, tt.cfg)
			require.NoError(t, err)
			t.Cleanup(func() { _ = s.Close() })
			assert.IsType(t, tt.want, s)
		})
	}

	_, err := Open(ctx, Config{Backend: "etcd"})
	require.Error(t, err)
	_, err = Open(ctx, Config{Backend: "badger"})
	require.Error(t, err)
}
