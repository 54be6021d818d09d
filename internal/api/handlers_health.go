// ChatPulse - Real-Time Chat Analytics and Hype Detection
// Copyright 2026 ChatPulse Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/chatpulse/chatpulse

package api

import (
	"net/http"
	"time"

	"github.com/chatpulse/chatpulse/internal/models"
)

// Health returns the full pipeline health view: ingest connectivity,
// store connectivity, tracked channels with buffer occupancy, and the
// subscriber count.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ingestConnected := h.ingest != nil && h.ingest.Connected()
	dbConnected := h.store != nil && h.store.Ping(r.Context()) == nil

	status := "healthy"
	if !ingestConnected || !dbConnected {
		status = "degraded"
	}

	channels := []string{}
	occupancy := map[string]int{}
	if h.buf != nil {
		channels = h.buf.Channels()
		occupancy = h.buf.Occupancy()
	}

	clientCount := 0
	if h.hub != nil {
		clientCount = h.hub.ClientCount()
	}

	respondSuccess(w, http.StatusOK, models.HealthStatus{
		Status:            status,
		Version:           Version,
		IngestConnected:   ingestConnected,
		DatabaseConnected: dbConnected,
		ChannelCount:      len(channels),
		Channels:          channels,
		BufferOccupancy:   occupancy,
		WebSocketClients:  clientCount,
		Uptime:            time.Since(h.startTime).Seconds(),
	})
}

// HealthLive is the liveness probe: 200 whenever the process responds,
// regardless of dependencies.
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	respondSuccess(w, http.StatusOK, map[string]interface{}{
		"alive":  true,
		"uptime": time.Since(h.startTime).Seconds(),
	})
}

// HealthReady is the readiness probe: 200 only when the event store
// responds. Ingest may legitimately be mid-reconnect, so it does not
// gate readiness, it is only reported.
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	dbConnected := h.store != nil && h.store.Ping(r.Context()) == nil
	ingestConnected := h.ingest != nil && h.ingest.Connected()

	statusCode := http.StatusOK
	status := "ready"
	if !dbConnected {
		statusCode = http.StatusServiceUnavailable
		status = "not_ready"
	}

	respondJSON(w, statusCode, &models.APIResponse{
		Status: status,
		Data: map[string]interface{}{
			"database_connected": dbConnected,
			"ingest_connected":   ingestConnected,
			"ready_to_serve":     dbConnected,
			"uptime":             time.Since(h.startTime).Seconds(),
		},
		Metadata: models.Metadata{
			Timestamp: time.Now().UTC(),
		},
	})
}
