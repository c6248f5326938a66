// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package playlist

import (
	"bytes"
	"fmt"
	"io"
	"strings"
)

// WriteM3U exports channels as an extended M3U playlist that Parse reads back.
func WriteM3U(w io.Writer, channels []Channel) error {
	buf := &bytes.Buffer{}
	buf.WriteString(headerMarker + "\n")
	for _, ch := range channels {
		if ch.Logo != "" {
			fmt.Fprintf(buf, `%s-1 tvg-logo="%s",%s`+"\n", entryMarker, escapeAttr(ch.Logo), ch.Name)
		} else {
			fmt.Fprintf(buf, "%s-1,%s\n", entryMarker, ch.Name)
		}
		buf.WriteString(ch.URL + "\n")
	}
	_, err := io.Copy(w, buf)
	return err
}

func escapeAttr(s string) string {
	return strings.ReplaceAll(s, `"`, "%22")
}
