// ChatPulse - Real-Time Chat Analytics and Hype Detection
// Copyright 2026 ChatPulse Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/chatpulse/chatpulse

package api

import (
	"context"
	"net/http"
	"time"

	gorillaws "github.com/gorilla/websocket"

	"github.com/chatpulse/chatpulse/internal/buffer"
	"github.com/chatpulse/chatpulse/internal/detection"
	"github.com/chatpulse/chatpulse/internal/store"
	"github.com/chatpulse/chatpulse/internal/websocket"
)

// Version reported by the health endpoint.
const Version = "1.0.0"

// ChatIngester is the slice of the ingestion client the API drives.
type ChatIngester interface {
	Connected() bool
	Channels() []string
	Monitors(channel string) bool
	Join(ctx context.Context, channel string) error
	Part(channel string) error
}

// Handler serves the HTTP API. Nil dependencies degrade gracefully: the
// affected endpoints report unavailable instead of panicking.
type Handler struct {
	ingest   ChatIngester
	buf      *buffer.Buffer
	hub      *websocket.Hub
	detector *detection.HypeDetector
	store    *store.Store

	maxExportRows int
	startTime     time.Time
	upgrader      gorillaws.Upgrader
}

// HandlerDeps carries the pipeline components the API exposes.
type HandlerDeps struct {
	Ingest   ChatIngester
	Buffer   *buffer.Buffer
	Hub      *websocket.Hub
	Detector *detection.HypeDetector
	Store    *store.Store

	// MaxExportRows caps a single CSV export. Zero means the store's
	// default listing limit applies.
	MaxExportRows int
}

// NewHandler creates the API handler.
func NewHandler(deps HandlerDeps) *Handler {
	return &Handler{
		ingest:        deps.Ingest,
		buf:           deps.Buffer,
		hub:           deps.Hub,
		detector:      deps.Detector,
		store:         deps.Store,
		maxExportRows: deps.MaxExportRows,
		startTime:     time.Now(),
		upgrader: gorillaws.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Cross-origin dashboards are expected; CORS policy is
			// enforced at the router layer.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}
