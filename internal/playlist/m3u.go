// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package playlist parses and writes M3U/M3U8 channel playlists.
package playlist

import (
	"regexp"
	"strings"
)

const (
	headerMarker = "#EXTM3U"
	entryMarker  = "#EXTINF:"

	// UnknownChannelName is used when an entry line carries no usable name.
	UnknownChannelName = "Unknown Channel"
)

// Channel is a named live stream source. Identity is URL.
type Channel struct {
	Name string `json:"name"`
	URL  string `json:"url"`
	Logo string `json:"logo,omitempty"`
}

var (
	durationRe = regexp.MustCompile(`^-?\d+`)
	logoRe     = regexp.MustCompile(`logo="([^"]+)"`)
)

// Parse converts raw M3U text into channels in file order. It never fails:
// malformed lines are skipped, so bad input yields fewer or zero channels.
func Parse(text string) []Channel {
	var (
		out     []Channel
		pending *Channel
	)

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)

		switch {
		case line == "":
			continue
		case strings.HasPrefix(line, entryMarker):
			// A new marker drops any entry that never got its URL line.
			entry := parseEntryLine(line)
			pending = &entry
		case strings.HasPrefix(line, "#"):
			// header and other directives
			continue
		case isStreamURL(line):
			if pending == nil || pending.Name == "" {
				continue
			}
			pending.URL = line
			out = append(out, *pending)
			pending = nil
		}
	}

	return out
}

func parseEntryLine(line string) Channel {
	rest := strings.TrimPrefix(line, entryMarker)

	loc := durationRe.FindStringIndex(rest)
	comma := lastTopLevelComma(rest)
	if loc == nil || comma < 0 {
		// Unstructured line: take whatever follows the first comma.
		if idx := strings.Index(rest, ","); idx >= 0 {
			return Channel{Name: nameOrUnknown(rest[idx+1:])}
		}
		return Channel{Name: UnknownChannelName}
	}

	entry := Channel{Name: nameOrUnknown(rest[comma+1:])}
	if m := logoRe.FindAllStringSubmatch(rest[:comma], -1); len(m) > 0 {
		entry.Logo = m[len(m)-1][1]
	}
	return entry
}

// lastTopLevelComma returns the index of the last comma that is not inside a
// double-quoted attribute value, or -1.
func lastTopLevelComma(s string) int {
	idx := -1
	inQuotes := false
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '"':
			inQuotes = !inQuotes
		case ',':
			if !inQuotes {
				idx = i
			}
		}
	}
	return idx
}

func nameOrUnknown(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return UnknownChannelName
	}
	return s
}

func isStreamURL(line string) bool {
	lower := strings.ToLower(line)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}
