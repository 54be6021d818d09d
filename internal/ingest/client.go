// ChatPulse - Real-Time Chat Analytics and Hype Detection
// Copyright 2026 ChatPulse Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/chatpulse/chatpulse

// Package ingest connects to Twitch chat over IRC-on-WebSocket, parses
// messages, and feeds them into the analytics pipeline.
//
// The connection lifecycle depends only on the endpoint identity. Behavior
// is consulted through an updatable handler handle, so swapping the message
// handler never forces a reconnect.
package ingest

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/chatpulse/chatpulse/internal/logging"
	"github.com/chatpulse/chatpulse/internal/metrics"
	"github.com/chatpulse/chatpulse/internal/models"
)

// DefaultURL is Twitch's IRC-over-WebSocket endpoint.
const DefaultURL = "wss://irc-ws.chat.twitch.tv:443"

// MessageHandler consumes each parsed chat message.
type MessageHandler func(models.ChatMessage)

// Config holds the Twitch connection settings.
type Config struct {
	// URL is the IRC WebSocket endpoint.
	URL string `koanf:"url"`
	// Token is an OAuth access token with chat:read scope. Empty selects
	// anonymous mode with a justinfan nick, which can read but not send.
	Token string `koanf:"token"`
	// Nick is the login name matching the token. Ignored in anonymous
	// mode.
	Nick string `koanf:"nick"`
	// Channels to join at connect time.
	Channels []string `koanf:"channels"`
	// JoinBurst is how many JOINs Twitch allows per ten second window.
	JoinBurst int `koanf:"join_burst"`
	// ReconnectMin and ReconnectMax bound the exponential backoff.
	ReconnectMin time.Duration `koanf:"reconnect_min"`
	ReconnectMax time.Duration `koanf:"reconnect_max"`
}

// DefaultConfig returns ingestion defaults: anonymous mode, the official
// endpoint, and the documented unauthenticated join budget.
func DefaultConfig() Config {
	return Config{
		URL:          DefaultURL,
		JoinBurst:    18,
		ReconnectMin: time.Second,
		ReconnectMax: 2 * time.Minute,
	}
}

// Client maintains one IRC connection and the set of joined channels.
// Safe for concurrent Join/Part/Connected calls alongside the Run loop.
type Client struct {
	cfg         Config
	joinLimiter *rate.Limiter

	// handler is consulted per message through atomic indirection so it
	// can be swapped at runtime without touching the connection.
	handler atomic.Pointer[MessageHandler]

	connected atomic.Bool

	mu       sync.Mutex
	channels map[string]bool
	conn     *websocket.Conn
	writeMu  sync.Mutex
}

// NewClient creates a Client. Call SetHandler before Run, or messages are
// dropped on the floor.
func NewClient(cfg Config) *Client {
	def := DefaultConfig()
	if cfg.URL == "" {
		cfg.URL = def.URL
	}
	if cfg.JoinBurst <= 0 {
		cfg.JoinBurst = def.JoinBurst
	}
	if cfg.ReconnectMin <= 0 {
		cfg.ReconnectMin = def.ReconnectMin
	}
	if cfg.ReconnectMax < cfg.ReconnectMin {
		cfg.ReconnectMax = def.ReconnectMax
	}

	channels := make(map[string]bool, len(cfg.Channels))
	for _, ch := range cfg.Channels {
		channels[normalizeChannel(ch)] = true
	}

	return &Client{
		cfg:      cfg,
		channels: channels,
		// Twitch enforces the join budget per ten second window.
		joinLimiter: rate.NewLimiter(rate.Every(10*time.Second/time.Duration(cfg.JoinBurst)), cfg.JoinBurst),
	}
}

// SetHandler swaps the per-message handler. Takes effect for the next
// message; never interrupts the connection.
func (c *Client) SetHandler(h MessageHandler) {
	c.handler.Store(&h)
}

// Connected reports whether the IRC session is established.
func (c *Client) Connected() bool {
	return c.connected.Load()
}

// Channels returns the currently monitored channel names.
func (c *Client) Channels() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.channels))
	for ch := range c.channels {
		out = append(out, ch)
	}
	return out
}

// Monitors reports whether a channel is in the monitored set.
func (c *Client) Monitors(channel string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.channels[normalizeChannel(channel)]
}

// Join adds a channel to the monitored set and, when connected, sends the
// JOIN under the rate limit.
func (c *Client) Join(ctx context.Context, channel string) error {
	channel = normalizeChannel(channel)
	if channel == "" {
		return fmt.Errorf("empty channel name")
	}

	c.mu.Lock()
	already := c.channels[channel]
	c.channels[channel] = true
	conn := c.conn
	c.mu.Unlock()
	if already || conn == nil {
		return nil
	}

	if err := c.joinLimiter.Wait(ctx); err != nil {
		return fmt.Errorf("join rate limit wait: %w", err)
	}
	return c.send("JOIN #" + channel)
}

// Part removes a channel from the monitored set and leaves it if connected.
func (c *Client) Part(channel string) error {
	channel = normalizeChannel(channel)

	c.mu.Lock()
	known := c.channels[channel]
	delete(c.channels, channel)
	conn := c.conn
	c.mu.Unlock()
	if !known || conn == nil {
		return nil
	}
	return c.send("PART #" + channel)
}

// Run connects and consumes chat until the context is canceled, redialing
// with exponential backoff on connection loss. Designed for suture
// supervision; returns ctx.Err() on shutdown.
func (c *Client) Run(ctx context.Context) error {
	backoff := c.cfg.ReconnectMin
	for {
		established, err := c.session(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if established {
			// The last session got past the handshake, so the escalated
			// backoff from earlier failures no longer applies.
			backoff = c.cfg.ReconnectMin
		}

		metrics.IngestReconnects.Inc()
		logging.Warn().
			Err(err).
			Dur("backoff", backoff).
			Msg("twitch connection lost, reconnecting")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > c.cfg.ReconnectMax {
			backoff = c.cfg.ReconnectMax
		}
	}
}

// session runs one connection: dial, handshake, join, then the read loop.
func (c *Client) session(ctx context.Context) (established bool, err error) {
	dialer := websocket.Dialer{HandshakeTimeout: 15 * time.Second}
	conn, resp, err := dialer.DialContext(ctx, c.cfg.URL, nil)
	if resp != nil && resp.Body != nil {
		defer resp.Body.Close()
	}
	if err != nil {
		return false, fmt.Errorf("dial %s: %w", c.cfg.URL, err)
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	defer func() {
		c.connected.Store(false)
		metrics.SetIngestConnected(false)
		c.mu.Lock()
		c.conn = nil
		c.mu.Unlock()
		_ = conn.Close()
	}()

	if err := c.handshake(ctx); err != nil {
		return false, err
	}

	// Close the connection when the context ends so the blocking read
	// below unblocks.
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return true, fmt.Errorf("read: %w", err)
		}
		// One frame may carry several CRLF separated lines.
		for _, line := range strings.Split(string(data), "\r\n") {
			if line == "" {
				continue
			}
			if err := c.handleLine(line); err != nil {
				return true, err
			}
		}
	}
}

// handshake authenticates and joins the monitored channels. Anonymous mode
// uses a random justinfan nick, which Twitch accepts without a token.
func (c *Client) handshake(ctx context.Context) error {
	nick := c.cfg.Nick
	pass := c.cfg.Token
	if pass == "" {
		nick = fmt.Sprintf("justinfan%d", 10000+rand.Intn(80000)) //nolint:gosec // not security sensitive
		pass = "SCHMOOPIIE"
	} else if !strings.HasPrefix(pass, "oauth:") {
		pass = "oauth:" + pass
	}

	lines := []string{
		"CAP REQ :twitch.tv/tags twitch.tv/commands",
		"PASS " + pass,
		"NICK " + nick,
	}
	for _, line := range lines {
		if err := c.send(line); err != nil {
			return err
		}
	}

	c.connected.Store(true)
	metrics.SetIngestConnected(true)
	logging.Info().Str("nick", nick).Bool("anonymous", c.cfg.Token == "").Msg("connected to twitch irc")

	for _, channel := range c.Channels() {
		if err := c.joinLimiter.Wait(ctx); err != nil {
			return fmt.Errorf("join rate limit wait: %w", err)
		}
		if err := c.send("JOIN #" + channel); err != nil {
			return err
		}
	}
	return nil
}

// handleLine dispatches one parsed IRC line.
func (c *Client) handleLine(line string) error {
	msg := parseIRCLine(line)
	switch msg.Command {
	case "PING":
		return c.send("PONG :" + msg.Trailing)

	case "RECONNECT":
		// Twitch asks clients to reconnect before maintenance.
		return fmt.Errorf("server requested reconnect")

	case "PRIVMSG":
		chat := msg.chatMessage()
		metrics.MessagesIngested.WithLabelValues(chat.Channel).Inc()
		if h := c.handler.Load(); h != nil {
			(*h)(chat)
		}

	case "NOTICE":
		logging.Warn().Str("notice", msg.Trailing).Msg("twitch notice")
	}
	return nil
}

// send writes one IRC line. Writes are serialized across goroutines.
func (c *Client) send(line string) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return fmt.Errorf("not connected")
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := conn.SetWriteDeadline(time.Now().Add(10 * time.Second)); err != nil {
		return err
	}
	if err := conn.WriteMessage(websocket.TextMessage, []byte(line)); err != nil {
		return fmt.Errorf("write %q: %w", firstWord(line), err)
	}
	return nil
}

// firstWord keeps credentials out of error messages.
func firstWord(line string) string {
	if idx := strings.Index(line, " "); idx >= 0 {
		return line[:idx]
	}
	return line
}

func normalizeChannel(channel string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(channel), "#"))
}
