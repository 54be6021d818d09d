// ChatPulse - Real-Time Chat Analytics and Hype Detection
// Copyright 2026 ChatPulse Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/chatpulse/chatpulse

/*
Package services provides suture.Service wrappers for ChatPulse components.

This package adapts application components to the suture v4 supervision
model, translating their lifecycle patterns (Run, RunWithContext,
ListenAndServe) into suture's context-aware Serve pattern.

Each wrapper implements the suture.Service interface:

	type Service interface {
	    Serve(ctx context.Context) error
	}

# Available Services

HTTP Server (HTTPServerService):
  - Wraps *http.Server with graceful shutdown
  - Converts ListenAndServe pattern to Serve
  - Configurable shutdown timeout for draining connections

WebSocket Hub (WebSocketHubService):
  - Wraps websocket.Hub's RunWithContext loop
  - Closes connected clients on shutdown

Runner (RunnerService):
  - Wraps any component with a Run(ctx) error lifecycle
  - Used for the IRC client, message pipeline, analytics scheduler,
    and store retry writer
*/
package services
