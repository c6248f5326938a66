// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package playlist

import (
	"bytes"
	"compress/gzip"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ulikunitz/xz"
)

const sample = "#EXTM3U\n#EXTINF:-1,One\nhttp://stream/1\n#EXTINF:-1,Two\nhttp://stream/2\n"

func TestParseReader_Plain(t *testing.T) {
	got, err := ParseReader(strings.NewReader(sample))
	require.NoError(t, err)
	assert.Equal(t, Parse(sample), got)
}

func TestParseReader_Gzip(t *testing.T) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, err := zw.Write([]byte(sample))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	got, err := ParseReader(&buf)
	require.NoError(t, err)
	assert.Equal(t, Parse(sample), got)
}

func TestParseReader_XZ(t *testing.T) {
	var buf bytes.Buffer
	xw, err := xz.NewWriter(&buf)
	require.NoError(t, err)
	_, err = xw.Write([]byte(sample))
	require.NoError(t, err)
	require.NoError(t, xw.Close())

	got, err := ParseReader(&buf)
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestParseReader_CorruptGzip(t *testing.T) {
	_, err := ParseReader(bytes.NewReader([]byte{0x1f, 0x8b, 0x00, 0x01}))
	assert.Error(t, err)
}

func TestParseReader_Empty(t *testing.T) {
	got, err := ParseReader(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestReadText_RejectsOversizedPlaylist(t *testing.T) {
	head := "#EXTM3U\n#EXTINF:-1,A\n"
	body := head + "http://example.com/long/stream.m3u8\n"
	limit := int64(len(head) + len("http://example.com/lo"))

	text, err := readText(strings.NewReader(body), limit)
	require.ErrorIs(t, err, ErrPlaylistTooLarge)
	assert.Empty(t, text)

	text, err = readText(strings.NewReader(body), int64(len(body)))
	require.NoError(t, err)
	assert.Len(t, Parse(text), 1)
}
