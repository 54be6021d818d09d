// ChatPulse - Real-Time Chat Analytics and Hype Detection
// Copyright 2026 ChatPulse Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/chatpulse/chatpulse

package models

import (
	"time"
)

// APIResponse is the standardized response wrapper used by all HTTP endpoints.
//
// Status field values:
//   - "success": request completed, see Data
//   - "error": request failed, see Error
type APIResponse struct {
	Status   string      `json:"status"`
	Data     interface{} `json:"data"`
	Metadata Metadata    `json:"metadata"`
	Error    *APIError   `json:"error,omitempty"`
}

// Metadata contains response metadata for observability.
type Metadata struct {
	Timestamp   time.Time `json:"timestamp"`
	QueryTimeMS int64     `json:"query_time_ms,omitempty"`
}

// APIError carries structured error details.
//
// Common codes: VALIDATION_ERROR, DATABASE_ERROR, NOT_FOUND,
// INGEST_UNAVAILABLE, METHOD_NOT_ALLOWED.
type APIError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// HealthStatus is the read-only health view over the pipeline's state.
type HealthStatus struct {
	Status string `json:"status"`

	Version string `json:"version"`

	// IngestConnected reports whether the chat ingestion client currently
	// holds a live connection.
	IngestConnected bool `json:"ingest_connected"`

	// DatabaseConnected reports whether the hype event store responds to
	// pings.
	DatabaseConnected bool `json:"database_connected"`

	ChannelCount int      `json:"channel_count"`
	Channels     []string `json:"channels"`

	// BufferOccupancy maps channel name to buffered message count.
	BufferOccupancy map[string]int `json:"buffer_occupancy"`

	WebSocketClients int `json:"websocket_clients"`

	Uptime float64 `json:"uptime_seconds"`
}
