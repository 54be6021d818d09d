// ChatPulse - Real-Time Chat Analytics and Hype Detection
// Copyright 2026 ChatPulse Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/chatpulse/chatpulse

package websocket

import (
	"bytes"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/chatpulse/chatpulse/internal/logging"
)

const maxMessageSize = 4 * 1024

// Application-level liveness probe. Browser clients cannot send protocol
// pings, so a bare "ping" text frame is accepted and answered with "pong".
var (
	livenessProbe = []byte("ping")
	livenessReply = []byte("pong")
)

// clientIDCounter generates unique, monotonically increasing IDs.
// DETERMINISM: broadcast order sorts on these IDs, eliminating
// non-deterministic map iteration order.
var clientIDCounter atomic.Uint64

// Client is a middleman between one websocket connection and the hub.
// Each client subscribes to exactly one topic.
type Client struct {
	id    uint64
	topic string
	hub   *Hub
	conn  *websocket.Conn
	send  chan []byte
}

// NewClient creates a Client subscribed to topic. The caller registers it
// with the hub and calls Start.
func NewClient(hub *Hub, conn *websocket.Conn, topic string) *Client {
	return &Client{
		id:    clientIDCounter.Add(1),
		topic: topic,
		hub:   hub,
		conn:  conn,
		send:  make(chan []byte, hub.cfg.SendBuffer),
	}
}

// ID returns the client's unique identifier.
func (c *Client) ID() uint64 {
	return c.id
}

// Topic returns the topic this client subscribed to.
func (c *Client) Topic() string {
	return c.topic
}

// readPump consumes inbound frames. Any inbound traffic counts as a
// liveness signal; a "ping" text frame additionally gets a "pong" reply.
// Exiting the loop unregisters the client.
func (c *Client) readPump() {
	defer func() {
		c.hub.Unregister <- c
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(c.hub.cfg.HeartbeatGrace)); err != nil {
		logging.Error().Err(err).Msg("failed to set read deadline")
		return
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.hub.cfg.HeartbeatGrace))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logging.Error().Err(err).Msg("unexpected websocket close error")
			}
			break
		}

		if err := c.conn.SetReadDeadline(time.Now().Add(c.hub.cfg.HeartbeatGrace)); err != nil {
			break
		}

		if bytes.Equal(bytes.TrimSpace(data), livenessProbe) {
			select {
			case c.send <- livenessReply:
			default:
			}
		}
	}
}

// writePump delivers queued frames and keeps the connection alive with
// protocol pings at 9/10 of the heartbeat grace.
func (c *Client) writePump() {
	ticker := time.NewTicker(c.hub.cfg.HeartbeatGrace * 9 / 10)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(c.hub.cfg.WriteTimeout)); err != nil {
				logging.Error().Err(err).Msg("failed to set write deadline")
				return
			}

			if !ok {
				// The hub closed the channel.
				if err := c.conn.WriteMessage(websocket.CloseMessage, []byte{}); err != nil {
					logging.Debug().Err(err).Msg("failed to write close message")
				}
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				logging.Debug().Err(err).Msg("failed to write frame")
				return
			}

		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(c.hub.cfg.WriteTimeout)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Start begins reading and writing for the client.
func (c *Client) Start() {
	go c.writePump()
	go c.readPump()
}
