// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package source

import (
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = "#EXTM3U\n#EXTINF:-1,One\nhttp://a/1\n"

func TestFetch_SendsHeadersAndReturnsText(t *testing.T) {
	var gotAccept, gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAccept = r.Header.Get("Accept")
		gotUA = r.Header.Get("User-Agent")
		_, _ = w.Write([]byte(sample))
	}))
	defer srv.Close()

	f := NewFetcher(Options{UserAgent: "tvplay/test"})
	text, err := f.Fetch(context.Background(), "  "+srv.URL+"/list.m3u ")
	require.NoError(t, err)
	assert.Equal(t, sample, text)
	assert.Equal(t, AcceptHeader, gotAccept)
	assert.Equal(t, "tvplay/test", gotUA)
}

func TestFetch_DecompressesGzipBody(t *testing.T) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, _ = zw.Write([]byte(sample))
	require.NoError(t, zw.Close())

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/octet-stream")
		_, _ = w.Write(buf.Bytes())
	}))
	defer srv.Close()

	text, err := NewFetcher(Options{}).Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, sample, text)
}

func TestFetch_NonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := NewFetcher(Options{}).Fetch(context.Background(), srv.URL)
	var fe *FetchError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, http.StatusNotFound, fe.Status)
	assert.Equal(t, "HTTP 404: Not Found", fe.Error())
}

func TestFetch_TimeoutSurfacesAsFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	f := NewFetcher(Options{Timeout: 50 * time.Millisecond, Client: srv.Client()})
	_, err := f.Fetch(context.Background(), srv.URL)

	var fe *FetchError
	require.ErrorAs(t, err, &fe)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, "playlist request timed out", fe.Error())
}

func TestFetch_CallerCancellation(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewFetcher(Options{Client: srv.Client()}).Fetch(ctx, srv.URL)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFetch_InvalidURL(t *testing.T) {
	f := NewFetcher(Options{})
	for _, in := range []string{"", "   ", "ftp://example.com/x.m3u", "not a url"} {
		_, err := f.Fetch(context.Background(), in)
		assert.ErrorIs(t, err, ErrInvalidURL, "input %q", in)
	}
}

func TestFetch_CollapsesConcurrentIdenticalRequests(t *testing.T) {
	var hits atomic.Int32
	started := make(chan struct{}, 1)
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		select {
		case started <- struct{}{}:
		default:
		}
		<-release
		_, _ = w.Write([]byte(sample))
	}))
	defer srv.Close()

	f := NewFetcher(Options{Client: srv.Client()})
	var wg sync.WaitGroup
	results := make([]string, 3)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], _ = f.Fetch(context.Background(), srv.URL)
		}()
	}

	<-started
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), hits.Load())
	for _, r := range results {
		assert.Equal(t, sample, r)
	}
}

func TestReadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "list.m3u")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o600))

	text, err := ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, sample, text)

	_, err = ReadFile(filepath.Join(t.TempDir(), "missing.m3u"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestIsRemote(t *testing.T) {
	assert.True(t, IsRemote("HTTP://x"))
	assert.True(t, IsRemote(" https://x"))
	assert.False(t, IsRemote("/tmp/list.m3u"))
	assert.False(t, IsRemote("ftp://x"))
}
