// ChatPulse - Real-Time Chat Analytics and Hype Detection
// Copyright 2026 ChatPulse Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/chatpulse/chatpulse

package api

import (
	"net/http"

	"github.com/chatpulse/chatpulse/internal/logging"
	"github.com/chatpulse/chatpulse/internal/websocket"
)

// MetricsWebSocket upgrades the connection and subscribes it to the
// per-second metrics stream.
func (h *Handler) MetricsWebSocket(w http.ResponseWriter, r *http.Request) {
	h.serveWebSocket(w, r, websocket.TopicMetrics)
}

// HypeWebSocket upgrades the connection and subscribes it to detected
// hype events.
func (h *Handler) HypeWebSocket(w http.ResponseWriter, r *http.Request) {
	h.serveWebSocket(w, r, websocket.TopicHype)
}

func (h *Handler) serveWebSocket(w http.ResponseWriter, r *http.Request, topic string) {
	if h.hub == nil {
		respondError(w, http.StatusServiceUnavailable, "HUB_UNAVAILABLE",
			"Streaming is not configured", nil)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote an HTTP error to the client.
		logging.Warn().
			Err(err).
			Str("topic", topic).
			Str("remote_addr", r.RemoteAddr).
			Msg("websocket upgrade failed")
		return
	}

	client := websocket.NewClient(h.hub, conn, topic)
	h.hub.Register <- client
	client.Start()
}
