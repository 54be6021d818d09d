// ChatPulse - Real-Time Chat Analytics and Hype Detection
// Copyright 2026 ChatPulse Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/chatpulse/chatpulse

package websocket

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/chatpulse/chatpulse/internal/logging"
	"github.com/chatpulse/chatpulse/internal/metrics"
	"github.com/chatpulse/chatpulse/internal/models"
)

// Topics a client can subscribe to.
const (
	TopicMetrics = "metrics"
	TopicHype    = "hype"
)

// Frame type discriminators on the wire.
const (
	FrameTypeMetrics = "metrics"
	FrameTypeHype    = "hype_event"
)

// ShutdownReason identifies why the hub is shutting down.
type ShutdownReason string

const (
	// ShutdownReasonContextCanceled is the normal graceful shutdown path.
	ShutdownReasonContextCanceled ShutdownReason = "context_canceled"

	// ShutdownReasonContextDeadline may indicate a hung operation during
	// shutdown.
	ShutdownReasonContextDeadline ShutdownReason = "context_deadline"
)

// Message is a marshaled frame addressed to one topic's subscribers.
type Message struct {
	Topic   string
	Payload []byte
}

// Config holds the hub's externally visible timing knobs.
type Config struct {
	// HeartbeatGrace is how long a client may stay silent before it is
	// considered dead. Clients must send a "ping" text frame (or answer
	// protocol pings) inside this window.
	HeartbeatGrace time.Duration `koanf:"heartbeat_grace"`
	// WriteTimeout bounds each delivery attempt to a subscriber.
	WriteTimeout time.Duration `koanf:"write_timeout"`
	// SendBuffer is the per-client outbound queue size. A client whose
	// queue is full at broadcast time is dropped.
	SendBuffer int `koanf:"send_buffer"`
}

// DefaultConfig returns the hub timing defaults.
func DefaultConfig() Config {
	return Config{
		HeartbeatGrace: 60 * time.Second,
		WriteTimeout:   10 * time.Second,
		SendBuffer:     256,
	}
}

// Hub maintains the set of active subscribers per topic and fans broadcast
// frames out to them. One slow or dead subscriber never blocks the others:
// delivery into a client's queue is non-blocking and a full queue removes
// the client.
type Hub struct {
	cfg Config

	clients    map[*Client]bool
	broadcast  chan Message
	Register   chan *Client
	Unregister chan *Client
	mu         sync.RWMutex
}

// NewHub creates a Hub, filling zero Config fields with defaults.
func NewHub(cfg Config) *Hub {
	def := DefaultConfig()
	if cfg.HeartbeatGrace == 0 {
		cfg.HeartbeatGrace = def.HeartbeatGrace
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = def.WriteTimeout
	}
	if cfg.SendBuffer == 0 {
		cfg.SendBuffer = def.SendBuffer
	}
	return &Hub{
		cfg:        cfg,
		broadcast:  make(chan Message, 256),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		clients:    make(map[*Client]bool),
	}
}

// RunWithContext runs the hub event loop until the context is canceled, then
// closes all clients and returns ctx.Err(). Designed for suture supervision.
//
// DETERMINISM: priority-based selection keeps behavior predictable when
// multiple channels are ready:
// - Priority 1: context cancellation (shutdown)
// - Priority 2: client lifecycle events (Register/Unregister)
// - Priority 3: broadcast messages
func (h *Hub) RunWithContext(ctx context.Context) error {
	for {
		// Priority 1: shutdown check (non-blocking)
		select {
		case <-ctx.Done():
			h.logGracefulShutdown(ctx)
			return ctx.Err()
		default:
		}

		// Priority 2: lifecycle events (non-blocking check)
		select {
		case client := <-h.Register:
			h.addClient(client)
			continue
		case client := <-h.Unregister:
			h.removeClient(client)
			continue
		default:
		}

		// Priority 3: broadcast or wait for any event (blocking)
		select {
		case <-ctx.Done():
			h.logGracefulShutdown(ctx)
			return ctx.Err()

		case client := <-h.Register:
			h.addClient(client)

		case client := <-h.Unregister:
			h.removeClient(client)

		case message := <-h.broadcast:
			h.broadcastToClients(message)
		}
	}
}

func (h *Hub) addClient(client *Client) {
	h.mu.Lock()
	h.clients[client] = true
	total := len(h.clients)
	h.mu.Unlock()
	metrics.WebSocketClients.WithLabelValues(client.topic).Inc()
	logging.Info().
		Str("topic", client.topic).
		Int("total_clients", total).
		Msg("websocket client connected")
}

func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	removed := false
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client.send)
		removed = true
	}
	total := len(h.clients)
	h.mu.Unlock()
	if removed {
		metrics.WebSocketClients.WithLabelValues(client.topic).Dec()
	}
	logging.Info().
		Str("topic", client.topic).
		Int("total_clients", total).
		Msg("websocket client disconnected")
}

// broadcastToClients delivers a message to every subscriber of its topic.
//
// DETERMINISM: clients are sorted by their monotonically assigned ID so
// delivery order, and therefore drop order under backpressure, is
// reproducible.
func (h *Hub) broadcastToClients(message Message) {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		if client.topic == message.Topic {
			clients = append(clients, client)
		}
	}
	sort.Slice(clients, func(i, j int) bool {
		return clients[i].id < clients[j].id
	})

	var toRemove []*Client
	for _, client := range clients {
		select {
		case client.send <- message.Payload:
		default:
			// Queue full, the client is not keeping up.
			toRemove = append(toRemove, client)
		}
	}

	for _, client := range toRemove {
		close(client.send)
		delete(h.clients, client)
		metrics.WebSocketClients.WithLabelValues(client.topic).Dec()
		logging.Warn().
			Str("topic", client.topic).
			Uint64("client_id", client.id).
			Msg("dropping slow websocket client")
	}
}

// closeAllClients closes every connected client in ID order. Called once
// during shutdown.
func (h *Hub) closeAllClients() {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	sort.Slice(clients, func(i, j int) bool {
		return clients[i].id < clients[j].id
	})

	for _, client := range clients {
		close(client.send)
		delete(h.clients, client)
		metrics.WebSocketClients.WithLabelValues(client.topic).Dec()
	}
}

func (h *Hub) logGracefulShutdown(ctx context.Context) {
	clientCount := h.ClientCount()
	h.closeAllClients()

	reason := ShutdownReasonContextCanceled
	if ctx.Err() == context.DeadlineExceeded {
		reason = ShutdownReasonContextDeadline
	}

	logging.Info().
		Str("component", "websocket-hub").
		Str("reason", string(reason)).
		Int("clients_closed", clientCount).
		Msg("websocket hub stopped")
}

// metricsFrame flattens the snapshot fields next to the type discriminator.
type metricsFrame struct {
	Type string `json:"type"`
	*models.ChannelMetrics
}

// hypeFrame flattens the event fields next to the type discriminator.
type hypeFrame struct {
	Type string `json:"type"`
	*models.HypeEvent
}

// BroadcastMetrics queues a metrics snapshot for every metrics subscriber.
// The frame is dropped, with a warning, if the hub's queue is full.
func (h *Hub) BroadcastMetrics(m *models.ChannelMetrics) {
	payload, err := json.Marshal(metricsFrame{Type: FrameTypeMetrics, ChannelMetrics: m})
	if err != nil {
		logging.Error().Err(err).Msg("failed to marshal metrics frame")
		return
	}
	h.enqueue(Message{Topic: TopicMetrics, Payload: payload})
}

// BroadcastHypeEvent queues a hype event for every hype subscriber.
func (h *Hub) BroadcastHypeEvent(e *models.HypeEvent) {
	payload, err := json.Marshal(hypeFrame{Type: FrameTypeHype, HypeEvent: e})
	if err != nil {
		logging.Error().Err(err).Msg("failed to marshal hype frame")
		return
	}
	h.enqueue(Message{Topic: TopicHype, Payload: payload})
}

func (h *Hub) enqueue(message Message) {
	select {
	case h.broadcast <- message:
	default:
		logging.Warn().Str("topic", message.Topic).Msg("broadcast channel full, dropping message")
	}
}

// ClientCount returns the number of connected clients across all topics.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// TopicClientCount returns the number of clients subscribed to one topic.
func (h *Hub) TopicClientCount(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for client := range h.clients {
		if client.topic == topic {
			n++
		}
	}
	return n
}
