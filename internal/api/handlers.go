// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/ManuGH/tvplay/internal/catalog"
	"github.com/ManuGH/tvplay/internal/player"
	"github.com/go-chi/chi/v5"
)

const maxBodyBytes = 64 << 10

type loadURLRequest struct {
	URL string `json:"url"`
}

type loadFileRequest struct {
	Path string `json:"path"`
}

type loadResponse struct {
	Channels int `json:"channels"`
}

type searchRequest struct {
	Query string `json:"query"`
}

type channelsResponse struct {
	Query       string                 `json:"query"`
	Total       int                    `json:"total"`
	ActiveIndex int                    `json:"activeIndex"`
	Channels    []catalog.VisibleEntry `json:"channels"`
}

type statusResponse struct {
	Board  BoardState      `json:"board"`
	Player player.Snapshot `json:"player"`
}

type preferencesRequest struct {
	Volume       *float64 `json:"volume"`
	Muted        *bool    `json:"muted"`
	PlaybackRate *float64 `json:"playbackRate"`
}

// decodeBody reads a small JSON body, rejecting unknown fields.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeProblem(w, http.StatusBadRequest, CodeBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return false
	}
	return true
}

func (s *Server) handleLoadURL(w http.ResponseWriter, r *http.Request) {
	var req loadURLRequest
	if !decodeBody(w, r, &req) {
		return
	}
	n, err := s.player.LoadURL(r.Context(), req.URL)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, loadResponse{Channels: n})
}

func (s *Server) handleLoadFile(w http.ResponseWriter, r *http.Request) {
	var req loadFileRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Path == "" {
		writeProblem(w, http.StatusBadRequest, CodeBadRequest, "path is required")
		return
	}
	n, err := s.player.LoadFile(r.Context(), req.Path)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, loadResponse{Channels: n})
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := s.player.ExportM3U(r.Context(), &buf); err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "audio/x-mpegurl")
	w.Header().Set("Content-Disposition", `attachment; filename="playlist.m3u"`)
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

// handleChannels lists the visible channels. A q parameter applies a search first.
func (s *Server) handleChannels(w http.ResponseWriter, r *http.Request) {
	if q, ok := r.URL.Query()["q"]; ok {
		if err := s.player.Search(r.Context(), q[0]); err != nil {
			writeError(w, r, err)
			return
		}
	}
	s.writeChannels(w, r)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := s.player.Search(r.Context(), req.Query); err != nil {
		writeError(w, r, err)
		return
	}
	s.writeChannels(w, r)
}

func (s *Server) handleSort(w http.ResponseWriter, r *http.Request) {
	if err := s.player.SortByName(r.Context()); err != nil {
		writeError(w, r, err)
		return
	}
	s.writeChannels(w, r)
}

func (s *Server) writeChannels(w http.ResponseWriter, r *http.Request) {
	snap, err := s.player.Snapshot(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, channelsResponse{
		Query:       snap.Query,
		Total:       snap.Total,
		ActiveIndex: snap.ActiveIndex,
		Channels:    snap.Visible,
	})
}

func (s *Server) handlePlay(w http.ResponseWriter, r *http.Request) {
	idx, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		writeProblem(w, http.StatusBadRequest, CodeBadRequest, "index must be an integer")
		return
	}
	ok, err := s.player.PlayChannelAt(r.Context(), idx)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if !ok {
		writeProblem(w, http.StatusNotFound, CodeChannelNotFound, fmt.Sprintf("no channel at index %d", idx))
		return
	}
	s.writeStatus(w, r, http.StatusAccepted)
}

// navigate adapts next/previous/shuffle/retry. They report false when there
// is nothing to play.
func (s *Server) navigate(fn func(context.Context) (bool, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ok, err := fn(r.Context())
		if err != nil {
			writeError(w, r, err)
			return
		}
		if !ok {
			writeProblem(w, http.StatusConflict, CodeNoChannel, "no channel to play")
			return
		}
		s.writeStatus(w, r, http.StatusAccepted)
	}
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	if err := s.player.Stop(r.Context()); err != nil {
		writeError(w, r, err)
		return
	}
	s.writeStatus(w, r, http.StatusOK)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.writeStatus(w, r, http.StatusOK)
}

func (s *Server) writeStatus(w http.ResponseWriter, r *http.Request, code int) {
	snap, err := s.player.Snapshot(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, code, statusResponse{Board: s.board.State(), Player: snap})
}

func (s *Server) handleRecent(w http.ResponseWriter, r *http.Request) {
	recent, err := s.player.RecentPlaylists(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	if recent == nil {
		recent = []string{}
	}
	writeJSON(w, http.StatusOK, map[string][]string{"playlists": recent})
}

func (s *Server) handlePreferences(w http.ResponseWriter, r *http.Request) {
	var req preferencesRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.PlaybackRate != nil && *req.PlaybackRate <= 0 {
		writeProblem(w, http.StatusBadRequest, CodeBadRequest, "playbackRate must be positive")
		return
	}
	ctx := r.Context()
	if req.Volume != nil {
		if err := s.player.SetVolume(ctx, *req.Volume); err != nil {
			writeError(w, r, err)
			return
		}
	}
	if req.Muted != nil {
		if err := s.player.SetMuted(ctx, *req.Muted); err != nil {
			writeError(w, r, err)
			return
		}
	}
	if req.PlaybackRate != nil {
		if err := s.player.SetPlaybackRate(ctx, *req.PlaybackRate); err != nil {
			writeError(w, r, err)
			return
		}
	}
	snap, err := s.player.Snapshot(ctx)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snap.Preferences)
}

func (s *Server) handleLink(w http.ResponseWriter, r *http.Request) {
	link, err := s.player.Link(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	if link == "" {
		writeProblem(w, http.StatusNotFound, CodeNoLink, "no shareable channel is active")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"link": "#" + link})
}
