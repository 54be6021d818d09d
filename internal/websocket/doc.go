// ChatPulse - Real-Time Chat Analytics and Hype Detection
// Copyright 2026 ChatPulse Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/chatpulse/chatpulse

// Package websocket implements the real-time fan-out layer.
//
// A single Hub owns all connected clients. Each client subscribes to one
// topic, either per-channel metrics snapshots or hype events, and receives
// flat JSON frames carrying a "type" discriminator. The hub is constructed
// by the composition root and passed by handle to producers and to the HTTP
// upgrade handlers; there is no package-level hub instance.
//
// Liveness is policed two ways: protocol-level ping/pong driven by the
// write pump, and an application-level "ping" text frame any client may
// send, answered with "pong". A client silent for the configured grace
// period is disconnected, and a client whose outbound queue overflows is
// dropped without delaying the remaining subscribers.
package websocket
