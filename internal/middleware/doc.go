// ChatPulse - Real-Time Chat Analytics and Hype Detection
// Copyright 2026 ChatPulse Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/chatpulse/chatpulse

// Package middleware provides HTTP middleware for the API server.
//
// The middleware compose with chi's Use chain:
//
//	r.Use(middleware.RequestID)
//	r.Use(middleware.SecurityHeaders)
//	r.Use(middleware.PrometheusMetrics)
//	r.Use(middleware.Compression)
//
// RequestID tags every request for log correlation, SecurityHeaders sets
// browser hardening headers, PrometheusMetrics records per-route latency
// and status counts, and Compression gzips bodies for clients that accept
// it. Websocket upgrade requests pass
// through Compression untouched and PrometheusMetrics preserves the
// http.Hijacker contract the upgrade needs.
package middleware
