// ChatPulse - Real-Time Chat Analytics and Hype Detection
// Copyright 2026 ChatPulse Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/chatpulse/chatpulse

// Package metrics provides Prometheus instrumentation for the pipeline:
// ingestion throughput, buffer occupancy, tick latency, detection firings,
// websocket fan-out, and persistence health.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Ingestion metrics
	MessagesIngested = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_messages_ingested_total",
			Help: "Total chat messages ingested per channel",
		},
		[]string{"channel"},
	)

	IngestReconnects = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ingest_reconnects_total",
			Help: "Total Twitch IRC reconnect attempts",
		},
	)

	IngestConnected = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ingest_connected",
			Help: "Whether the Twitch IRC connection is up (1) or down (0)",
		},
	)

	// Buffer metrics
	BufferOccupancy = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "channel_buffer_messages",
			Help: "Current buffered message count per channel",
		},
		[]string{"channel"},
	)

	// Tick loop metrics
	TickDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tick_duration_seconds",
			Help:    "Duration of one full scheduler tick across all channels",
			Buckets: prometheus.DefBuckets,
		},
	)

	ChannelComputePanics = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "channel_compute_panics_total",
			Help: "Per-channel tick computations recovered from a panic",
		},
		[]string{"channel"},
	)

	// Detection metrics
	HypeEventsFired = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hype_events_fired_total",
			Help: "Total hype events detected per channel",
		},
		[]string{"channel"},
	)

	// WebSocket metrics
	WebSocketClients = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "websocket_clients",
			Help: "Connected websocket clients per topic",
		},
		[]string{"topic"},
	)

	// Persistence metrics
	StoreWriteDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "store_write_duration_seconds",
			Help:    "Duration of hype event writes to DuckDB",
			Buckets: prometheus.DefBuckets,
		},
	)

	StoreWriteErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "store_write_errors_total",
			Help: "Total failed hype event writes",
		},
	)

	StoreRetryQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "store_retry_queue_depth",
			Help: "Hype events waiting for a persistence retry",
		},
	)

	// HTTP metrics
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint", "status_code"},
	)

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)
)

// RecordHTTPRequest records one served HTTP request.
func RecordHTTPRequest(method, endpoint string, statusCode int, duration time.Duration) {
	code := strconv.Itoa(statusCode)
	HTTPRequestDuration.WithLabelValues(method, endpoint, code).Observe(duration.Seconds())
	HTTPRequestsTotal.WithLabelValues(method, endpoint, code).Inc()
}

// RecordStoreWrite records one persistence attempt.
func RecordStoreWrite(duration time.Duration, err error) {
	StoreWriteDuration.Observe(duration.Seconds())
	if err != nil {
		StoreWriteErrors.Inc()
	}
}

// SetIngestConnected flips the connection gauge.
func SetIngestConnected(connected bool) {
	if connected {
		IngestConnected.Set(1)
	} else {
		IngestConnected.Set(0)
	}
}
