// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package player

import (
	"net/url"
	"strconv"
	"strings"
)

// EncodeFragment builds the shareable "<source>|<index>" deep link.
func EncodeFragment(source string, index int) string {
	return source + "|" + strconv.Itoa(index)
}

// ParseFragment decodes a deep link. A leading '#' is ignored and the text is
// URL-decoded. Only http(s) sources are accepted. index is -1 when the
// fragment carries no channel index.
func ParseFragment(fragment string) (source string, index int, ok bool) {
	f := strings.TrimPrefix(strings.TrimSpace(fragment), "#")
	if decoded, err := url.PathUnescape(f); err == nil {
		f = decoded
	}
	if !strings.HasPrefix(strings.ToLower(f), "http") {
		return "", -1, false
	}

	index = -1
	if sep := strings.LastIndexByte(f, '|'); sep >= 0 {
		if n, err := strconv.Atoi(f[sep+1:]); err == nil && n >= 0 {
			f, index = f[:sep], n
		}
	}
	if f == "" {
		return "", -1, false
	}
	return f, index, true
}
