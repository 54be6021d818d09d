// ChatPulse - Real-Time Chat Analytics and Hype Detection
// Copyright 2026 ChatPulse Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/chatpulse/chatpulse

// Package main is the entry point for the ChatPulse server.
//
// ChatPulse ingests Twitch chat over IRC, aggregates per-channel activity
// metrics on a fixed tick, detects hype moments with rolling statistics, and
// streams both metrics and hype events to dashboards over WebSocket. Hype
// events are persisted to DuckDB for historical queries and CSV export.
//
// # Application Architecture
//
// The server initializes components in the following order:
//
//  1. Configuration: environment variables and config file (Koanf v2)
//  2. Storage: DuckDB hype event store with a circuit-breaker retry writer
//  3. Pipeline: ring buffer, aggregator, hype detector, watermill router
//  4. Ingest: Twitch IRC client feeding the pipeline
//  5. WebSocket Hub: real-time fan-out to connected dashboards
//  6. HTTP Server: REST API, WebSocket endpoints, Prometheus metrics
//
// All long-running components run under a suture v4 supervisor tree with
// three layers (data, pipeline, api) for failure isolation.
//
// # Configuration
//
// Configuration is loaded via Koanf v2 with layered sources (highest
// priority wins):
//   - Environment variables (TWITCH_CHANNELS, HTTP_PORT, DUCKDB_PATH, ...)
//   - Config file (config.yaml, or CONFIG_PATH)
//   - Built-in defaults
//
// # Example Usage
//
// Anonymous ingest of two channels:
//
//	export TWITCH_CHANNELS=sodapoppin,xqc
//	./chatpulse
//
// Authenticated ingest with a custom detection threshold:
//
//	export TWITCH_TOKEN=oauth:your-token
//	export TWITCH_NICK=your-bot
//	export TWITCH_CHANNELS=shroud
//	export HYPE_THRESHOLD_STD=3.0
//	./chatpulse
//
// # Signal Handling
//
// The server handles graceful shutdown on SIGINT and SIGTERM:
//   - Stops accepting new connections
//   - Waits for in-flight requests to complete
//   - Closes WebSocket clients, the IRC session, and the database
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/chatpulse/chatpulse/internal/analytics"
	"github.com/chatpulse/chatpulse/internal/api"
	"github.com/chatpulse/chatpulse/internal/buffer"
	"github.com/chatpulse/chatpulse/internal/config"
	"github.com/chatpulse/chatpulse/internal/detection"
	"github.com/chatpulse/chatpulse/internal/ingest"
	"github.com/chatpulse/chatpulse/internal/logging"
	"github.com/chatpulse/chatpulse/internal/scheduler"
	"github.com/chatpulse/chatpulse/internal/store"
	"github.com/chatpulse/chatpulse/internal/supervisor"
	"github.com/chatpulse/chatpulse/internal/supervisor/services"
	ws "github.com/chatpulse/chatpulse/internal/websocket"
)

func main() {
	// Load configuration first to get logging settings
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Caller:    cfg.Logging.Caller,
		Timestamp: true,
	})

	logging.Info().
		Strs("channels", cfg.Ingest.Channels).
		Str("db_path", cfg.Database.Path).
		Dur("tick_interval", cfg.Analytics.TickInterval).
		Msg("Configuration loaded")

	// Persistence. A failed open is fatal; a flaky database at runtime is
	// absorbed by the retry writer instead.
	st, err := store.New(cfg.Database)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer func() {
		if err := st.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing database")
		}
	}()
	logging.Info().Msg("Database initialized successfully")

	writer := store.NewResilientWriter(st)

	// Analytics pipeline
	buf := buffer.New(cfg.Buffer.Capacity)
	aggregator := analytics.New(buf)

	detector, err := detection.New(cfg.Detection)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize hype detector")
	}

	hub := ws.NewHub(cfg.WebSocket)

	pipeline, err := ingest.NewPipeline(buf)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize message pipeline")
	}
	defer func() {
		if err := pipeline.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing message pipeline")
		}
	}()

	client := ingest.NewClient(cfg.Ingest)
	client.SetHandler(pipeline.Publish)

	sched := scheduler.New(
		cfg.Analytics.TickInterval,
		scheduler.Union(client, buf),
		aggregator,
		detector,
		hub,
		writer,
	)

	// HTTP API
	handler := api.NewHandler(api.HandlerDeps{
		Ingest:        client,
		Buffer:        buf,
		Hub:           hub,
		Detector:      detector,
		Store:         st,
		MaxExportRows: cfg.API.MaxExportRows,
	})
	router := api.NewRouter(handler, api.RouterConfig{
		CORSOrigins:       cfg.API.CORSOrigins,
		RateLimitRequests: cfg.API.RateLimitRequests,
		RateLimitWindow:   cfg.API.RateLimitWindow,
	})

	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	// Context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Bridge zerolog to slog for sutureslog compatibility
	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create supervisor tree")
	}

	tree.AddDataService(services.NewRunnerService("store-retry-writer", writer))

	tree.AddPipelineService(services.NewWebSocketHubService(hub))
	tree.AddPipelineService(services.NewRunnerService("message-pipeline", pipeline))
	tree.AddPipelineService(services.NewRunnerService("irc-client", client))
	tree.AddPipelineService(services.NewRunnerService("analytics-scheduler", sched))

	tree.AddAPIService(services.NewHTTPServerService(server, cfg.Server.ShutdownTimeout))
	logging.Info().Str("addr", server.Addr).Msg("HTTP server service added")

	// Signal handling
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	logging.Info().Msg("Starting supervisor tree")
	errCh := tree.ServeBackground(ctx)

	select {
	case <-ctx.Done():
		logging.Info().Msg("Context canceled, waiting for supervisor to finish")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree error")
		}
	}

	// Wait for the error channel to close (supervisor finished)
	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor shutdown error")
		}
	}

	// Report any services that failed to stop within timeout
	unstopped, _ := tree.UnstoppedServiceReport()
	if len(unstopped) > 0 {
		logging.Warn().Int("count", len(unstopped)).Msg("Services failed to stop within timeout")
		for _, svc := range unstopped {
			logging.Warn().Str("service", svc.Name).Msg("Service failed to stop")
		}
	}

	logging.Info().Msg("Application stopped gracefully")
}
