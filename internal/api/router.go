// ChatPulse - Real-Time Chat Analytics and Hype Detection
// Copyright 2026 ChatPulse Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/chatpulse/chatpulse

// Package api provides the HTTP surface: health probes, channel
// management, hype event queries and export, and the streaming
// websocket endpoints.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/chatpulse/chatpulse/internal/middleware"
)

// RouterConfig holds the cross-cutting HTTP policy knobs.
type RouterConfig struct {
	// CORSOrigins lists allowed origins; "*" allows any.
	CORSOrigins []string

	// RateLimitRequests per RateLimitWindow per client IP.
	// Zero disables rate limiting.
	RateLimitRequests int
	RateLimitWindow   time.Duration
}

// rateLimitHealth keeps monitoring probes flowing while still bounding
// abuse.
var rateLimitHealth = struct {
	requests int
	window   time.Duration
}{1000, time.Minute}

// NewRouter assembles the chi router around the handler.
func NewRouter(h *Handler, cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.SecurityHeaders)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type"},
		MaxAge:         86400,
	}))

	r.Route("/api/v1/health", func(r chi.Router) {
		r.Use(httprate.LimitByIP(rateLimitHealth.requests, rateLimitHealth.window))
		r.Get("/live", h.HealthLive)
		r.Get("/ready", h.HealthReady)
		r.Get("/", h.Health)
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(rateLimit(cfg))
		r.Use(middleware.PrometheusMetrics)
		r.Use(middleware.Compression)

		r.Route("/channels", func(r chi.Router) {
			r.Get("/", h.ListChannels)
			r.Post("/", h.JoinChannel)
			r.Delete("/{name}", h.PartChannel)
		})

		r.Route("/hype-events", func(r chi.Router) {
			r.Get("/", h.ListHypeEvents)
			r.Get("/recent", h.RecentHypeEvents)
			r.Get("/export", h.ExportHypeEvents)
			r.Get("/{id}", h.GetHypeEvent)
		})

		// Websocket upgrades skip Compression via the Upgrade header
		// check inside that middleware.
		r.Get("/ws/metrics", h.MetricsWebSocket)
		r.Get("/ws/hype", h.HypeWebSocket)
	})

	r.Handle("/metrics", promhttp.Handler())

	return r
}

// rateLimit builds the per-IP limiter, or a no-op when disabled.
func rateLimit(cfg RouterConfig) func(http.Handler) http.Handler {
	if cfg.RateLimitRequests <= 0 {
		return func(next http.Handler) http.Handler {
			return next
		}
	}
	window := cfg.RateLimitWindow
	if window <= 0 {
		window = time.Minute
	}
	return httprate.LimitByIP(cfg.RateLimitRequests, window)
}
