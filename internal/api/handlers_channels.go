// ChatPulse - Real-Time Chat Analytics and Hype Detection
// Copyright 2026 ChatPulse Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/chatpulse/chatpulse

package api

import (
	"net/http"
	"regexp"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
)

// channelNamePattern matches valid Twitch login names.
var channelNamePattern = regexp.MustCompile(`^[a-zA-Z0-9_]{1,25}$`)

// channelInfo is one tracked channel's view in the channels listing.
type channelInfo struct {
	Name         string  `json:"name"`
	Buffered     int     `json:"buffered_messages"`
	BaselineMean float64 `json:"baseline_mean"`
	BaselineStd  float64 `json:"baseline_std"`
}

type joinChannelRequest struct {
	Channel string `json:"channel"`
}

// ListChannels returns the channels the ingestion client monitors along
// with buffer occupancy and detector baselines.
func (h *Handler) ListChannels(w http.ResponseWriter, r *http.Request) {
	if h.ingest == nil {
		respondError(w, http.StatusServiceUnavailable, "INGEST_UNAVAILABLE",
			"Chat ingestion is not configured", nil)
		return
	}

	channels := h.ingest.Channels()
	infos := make([]channelInfo, 0, len(channels))
	for _, name := range channels {
		info := channelInfo{Name: name}
		if h.buf != nil {
			info.Buffered = h.buf.Len(name)
		}
		if h.detector != nil {
			info.BaselineMean, info.BaselineStd = h.detector.Baseline(name)
		}
		infos = append(infos, info)
	}

	respondSuccess(w, http.StatusOK, map[string]interface{}{
		"channels": infos,
		"count":    len(infos),
	})
}

// JoinChannel starts monitoring a channel. The JOIN goes out immediately
// when connected, or on the next successful handshake otherwise.
func (h *Handler) JoinChannel(w http.ResponseWriter, r *http.Request) {
	if h.ingest == nil {
		respondError(w, http.StatusServiceUnavailable, "INGEST_UNAVAILABLE",
			"Chat ingestion is not configured", nil)
		return
	}

	var req joinChannelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR",
			"Request body must be JSON with a channel field", err)
		return
	}

	name := normalizeChannelName(req.Channel)
	if !channelNamePattern.MatchString(name) {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR",
			"Channel name must be 1-25 alphanumeric or underscore characters", nil)
		return
	}

	if h.ingest.Monitors(name) {
		respondSuccess(w, http.StatusOK, map[string]interface{}{
			"channel": name,
			"joined":  false,
			"reason":  "already monitored",
		})
		return
	}

	if err := h.ingest.Join(r.Context(), name); err != nil {
		respondError(w, http.StatusBadGateway, "INGEST_ERROR",
			"Failed to join channel", err)
		return
	}

	respondSuccess(w, http.StatusCreated, map[string]interface{}{
		"channel": name,
		"joined":  true,
	})
}

// PartChannel stops monitoring a channel and discards its buffered
// messages and detector baseline.
func (h *Handler) PartChannel(w http.ResponseWriter, r *http.Request) {
	if h.ingest == nil {
		respondError(w, http.StatusServiceUnavailable, "INGEST_UNAVAILABLE",
			"Chat ingestion is not configured", nil)
		return
	}

	name := normalizeChannelName(chi.URLParam(r, "name"))
	if !channelNamePattern.MatchString(name) {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR",
			"Channel name must be 1-25 alphanumeric or underscore characters", nil)
		return
	}

	if !h.ingest.Monitors(name) {
		respondError(w, http.StatusNotFound, "NOT_FOUND",
			"Channel is not monitored", nil)
		return
	}

	if err := h.ingest.Part(name); err != nil {
		respondError(w, http.StatusBadGateway, "INGEST_ERROR",
			"Failed to part channel", err)
		return
	}
	if h.buf != nil {
		h.buf.Remove(name)
	}
	if h.detector != nil {
		h.detector.Reset(name)
	}

	respondSuccess(w, http.StatusOK, map[string]interface{}{
		"channel": name,
		"parted":  true,
	})
}

func normalizeChannelName(name string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(name), "#"))
}
