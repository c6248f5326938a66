// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package kv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	xglog "github.com/ManuGH/tvplay/internal/log"
	"github.com/google/renameio/v2"
)

// File keeps all keys in one JSON document that is replaced atomically on
// every Set.
type File struct {
	mu      sync.Mutex
	path    string
	entries map[string]string
}

// OpenFile loads the document at path. A missing file starts empty; an
// unreadable document is an error so it is never silently overwritten.
func OpenFile(path string) (*File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("kv: create state dir: %w", err)
	}
	f := &File{path: path, entries: make(map[string]string)}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return f, nil
	case err != nil:
		return nil, fmt.Errorf("kv: read %s: %w", path, err)
	}
	if len(data) == 0 {
		return f, nil
	}
	if err := json.Unmarshal(data, &f.entries); err != nil {
		return nil, fmt.Errorf("kv: decode %s: %w", path, err)
	}
	return f, nil
}

func (f *File) Get(_ context.Context, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.entries[key]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

func (f *File) Set(ctx context.Context, key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	prev, had := f.entries[key]
	f.entries[key] = value
	if err := f.flush(ctx); err != nil {
		if had {
			f.entries[key] = prev
		} else {
			delete(f.entries, key)
		}
		return err
	}
	return nil
}

// flush writes the document with fsync + atomic rename.
func (f *File) flush(ctx context.Context) error {
	logger := xglog.FromContext(ctx)

	data, err := json.MarshalIndent(f.entries, "", "  ")
	if err != nil {
		return fmt.Errorf("kv: encode state: %w", err)
	}

	pendingFile, err := renameio.NewPendingFile(f.path)
	if err != nil {
		return fmt.Errorf("kv: create pending state file: %w", err)
	}
	defer func() {
		if err := pendingFile.Cleanup(); err != nil {
			logger.Debug().Err(err).Msg("cleanup pending state file")
		}
	}()

	if _, err := pendingFile.Write(data); err != nil {
		return fmt.Errorf("kv: write state: %w", err)
	}
	if err := pendingFile.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("kv: replace state file: %w", err)
	}
	return nil
}

func (f *File) Ping(context.Context) error {
	_, err := os.Stat(filepath.Dir(f.path))
	return err
}

func (f *File) Close() error { return nil }
