// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package playlist

import (
	"bufio"
	"compress/bzip2"
	"compress/gzip"
	"errors"
	"fmt"
	"io"

	"github.com/ulikunitz/xz"
)

// MaxPlaylistBytes bounds how much decoded playlist text is read.
const MaxPlaylistBytes = 64 << 20

// ErrPlaylistTooLarge is returned when decoded playlist text exceeds
// MaxPlaylistBytes. A partial playlist is never parsed.
var ErrPlaylistTooLarge = errors.New("playlist too large")

// ParseReader reads a playlist that may be gzip, bzip2 or xz compressed and
// parses it. Only a corrupt compressed stream or a read error is reported.
func ParseReader(r io.Reader) ([]Channel, error) {
	text, err := ReadText(r)
	if err != nil {
		return nil, err
	}
	return Parse(text), nil
}

// ReadText returns the decoded playlist text, detecting compression by
// magic bytes.
func ReadText(r io.Reader) (string, error) {
	return readText(r, MaxPlaylistBytes)
}

func readText(r io.Reader, limit int64) (string, error) {
	br := bufio.NewReader(r)
	header, err := br.Peek(6)
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("peek playlist header: %w", err)
	}

	var reader io.Reader = br
	switch {
	case len(header) >= 2 && header[0] == 0x1f && header[1] == 0x8b:
		gzr, err := gzip.NewReader(br)
		if err != nil {
			return "", fmt.Errorf("open gzip playlist: %w", err)
		}
		defer gzr.Close()
		reader = gzr
	case len(header) >= 3 && header[0] == 'B' && header[1] == 'Z' && header[2] == 'h':
		reader = bzip2.NewReader(br)
	case len(header) >= 6 && header[0] == 0xfd && header[1] == '7' && header[2] == 'z' &&
		header[3] == 'X' && header[4] == 'Z' && header[5] == 0x00:
		xzr, err := xz.NewReader(br)
		if err != nil {
			return "", fmt.Errorf("open xz playlist: %w", err)
		}
		reader = xzr
	}

	data, err := io.ReadAll(io.LimitReader(reader, limit+1))
	if err != nil {
		return "", fmt.Errorf("read playlist: %w", err)
	}
	if int64(len(data)) > limit {
		return "", fmt.Errorf("%w: exceeds %d bytes", ErrPlaylistTooLarge, limit)
	}
	return string(data), nil
}
