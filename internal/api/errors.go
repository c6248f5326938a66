// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"net/http"

	"github.com/ManuGH/tvplay/internal/log"
	"github.com/ManuGH/tvplay/internal/player"
	"github.com/ManuGH/tvplay/internal/playlist"
	"github.com/ManuGH/tvplay/internal/source"
)

// Error codes returned in the "error" field of failure bodies.
const (
	CodeBadRequest      = "bad_request"
	CodeInvalidURL      = "invalid_url"
	CodeEmptyPlaylist   = "empty_playlist"
	CodeFetchFailed     = "fetch_failed"
	CodeFetchTimeout    = "fetch_timeout"
	CodeTooLarge        = "playlist_too_large"
	CodeFileNotFound    = "file_not_found"
	CodeSuperseded      = "load_superseded"
	CodeChannelNotFound = "channel_not_found"
	CodeNoChannel       = "no_channel"
	CodeNoLink          = "no_link"
	CodeUnavailable     = "unavailable"
	CodeInternal        = "internal_error"
)

type errorBody struct {
	Error  string `json:"error"`
	Detail string `json:"detail,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeProblem(w http.ResponseWriter, status int, code, detail string) {
	writeJSON(w, status, errorBody{Error: code, Detail: detail})
}

// writeError maps player and source errors onto HTTP statuses.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var fe *source.FetchError
	switch {
	case errors.Is(err, player.ErrInvalidURL):
		writeProblem(w, http.StatusBadRequest, CodeInvalidURL, "Please enter a valid URL")
	case errors.Is(err, player.ErrEmptyPlaylist):
		writeProblem(w, http.StatusUnprocessableEntity, CodeEmptyPlaylist, err.Error())
	case errors.Is(err, player.ErrLoadSuperseded):
		writeProblem(w, http.StatusConflict, CodeSuperseded, err.Error())
	case errors.Is(err, playlist.ErrPlaylistTooLarge):
		writeProblem(w, http.StatusRequestEntityTooLarge, CodeTooLarge, err.Error())
	case errors.As(err, &fe) && errors.Is(fe, context.DeadlineExceeded):
		writeProblem(w, http.StatusGatewayTimeout, CodeFetchTimeout, fe.Error())
	case errors.As(err, &fe):
		writeProblem(w, http.StatusBadGateway, CodeFetchFailed, fe.Error())
	case errors.Is(err, fs.ErrNotExist):
		writeProblem(w, http.StatusNotFound, CodeFileNotFound, "playlist file not found")
	case errors.Is(err, player.ErrLoopStopped), errors.Is(err, context.Canceled):
		writeProblem(w, http.StatusServiceUnavailable, CodeUnavailable, "player is shutting down")
	default:
		logger := log.WithComponentFromContext(r.Context(), "api")
		logger.Error().
			Err(err).
			Str(log.FieldEvent, "api.request_failed").
			Str("path", r.URL.Path).
			Msg("request failed")
		writeProblem(w, http.StatusInternalServerError, CodeInternal, "internal error")
	}
}
