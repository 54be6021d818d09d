// ChatPulse - Real-Time Chat Analytics and Hype Detection
// Copyright 2026 ChatPulse Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/chatpulse/chatpulse

/*
Package supervisor provides process supervision for ChatPulse using suture v4.

This package implements a hierarchical supervisor tree that manages the
lifecycle of all long-running services in the application. It provides
Erlang/OTP-style supervision with automatic restart, failure isolation, and
graceful shutdown.

# Overview

The supervisor tree organizes services into three layers for failure isolation:

	RootSupervisor ("chatpulse")
	├── DataSupervisor ("data-layer")
	│   └── RetryWriterService (DuckDB write retry loop)
	├── PipelineSupervisor ("pipeline-layer")
	│   ├── WebSocketHubService
	│   ├── MessagePipelineService (watermill router)
	│   ├── IRCClientService (Twitch chat ingest)
	│   └── SchedulerService (analytics ticker)
	└── APISupervisor ("api-layer")
	    └── HTTPServerService

This hierarchy ensures that:
  - An IRC reconnect storm doesn't affect WebSocket connections to dashboards
  - DuckDB write failures don't impact API availability
  - Each layer restarts independently with its own failure counting

# Key Features

Automatic Restart:
  - Crashed services are automatically restarted
  - Exponential backoff prevents restart storms

Graceful Shutdown:
  - Context cancellation triggers orderly shutdown
  - UnstoppedServiceReport for debugging hangs

Structured Logging:
  - Supervision events flow through sutureslog into the zerolog pipeline
    via the logging package's slog adapter

# Usage Example

Basic setup in main.go:

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	if err != nil {
	    logging.Fatal().Err(err).Msg("Failed to create supervisor tree")
	}

	tree.AddDataService(services.NewRunnerService("store-retry-writer", writer))
	tree.AddPipelineService(services.NewWebSocketHubService(hub))
	tree.AddPipelineService(services.NewRunnerService("irc-client", client))
	tree.AddAPIService(services.NewHTTPServerService(server, cfg.Server.ShutdownTimeout))

	if err := tree.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
	    logging.Error().Err(err).Msg("Supervisor tree exited with error")
	}
*/
package supervisor
