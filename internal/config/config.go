// ChatPulse - Real-Time Chat Analytics and Hype Detection
// Copyright 2026 ChatPulse Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/chatpulse/chatpulse

package config

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/chatpulse/chatpulse/internal/detection"
	"github.com/chatpulse/chatpulse/internal/ingest"
	"github.com/chatpulse/chatpulse/internal/store"
	"github.com/chatpulse/chatpulse/internal/websocket"
)

// Config is the complete application configuration.
//
// Precedence is ENV > config file > defaults; see Load.
type Config struct {
	Server    ServerConfig     `koanf:"server"`
	Logging   LoggingConfig    `koanf:"logging"`
	Buffer    BufferConfig     `koanf:"buffer"`
	Ingest    ingest.Config    `koanf:"ingest"`
	Detection detection.Config `koanf:"detection"`
	Analytics AnalyticsConfig  `koanf:"analytics"`
	WebSocket websocket.Config `koanf:"websocket"`
	Database  store.Config     `koanf:"database"`
	API       APIConfig        `koanf:"api"`
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port" validate:"min=1,max=65535"`
	ReadTimeout     time.Duration `koanf:"read_timeout" validate:"min=1s"`
	WriteTimeout    time.Duration `koanf:"write_timeout" validate:"min=1s"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" validate:"min=1s"`
}

// Addr returns the host:port the server binds to.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// LoggingConfig holds log output settings.
type LoggingConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn error fatal panic"`
	Format string `koanf:"format" validate:"oneof=json console"`
	Caller bool   `koanf:"caller"`
}

// BufferConfig holds the per-channel ring buffer settings.
type BufferConfig struct {
	// Capacity is the number of messages retained per channel.
	Capacity int `koanf:"capacity" validate:"min=100,max=1000000"`
}

// AnalyticsConfig holds the metrics tick settings.
type AnalyticsConfig struct {
	// TickInterval is the cadence of metrics computation and broadcast.
	TickInterval time.Duration `koanf:"tick_interval" validate:"min=100ms,max=1m"`
}

// APIConfig holds HTTP API behavior settings.
type APIConfig struct {
	// CORSOrigins lists allowed origins; "*" allows any.
	CORSOrigins []string `koanf:"cors_origins"`
	// RateLimitRequests is the per-IP request budget per window.
	// Zero disables rate limiting.
	RateLimitRequests int `koanf:"rate_limit_requests" validate:"min=0"`
	// RateLimitWindow is the rate limit accounting window.
	RateLimitWindow time.Duration `koanf:"rate_limit_window" validate:"min=1s"`
	// MaxExportRows caps a single CSV export.
	MaxExportRows int `koanf:"max_export_rows" validate:"min=1"`
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

// structValidator returns the shared validator instance.
func structValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// Validate checks that the loaded configuration is internally consistent.
// Tag-level constraints run first, then the cross-field checks the tags
// cannot express.
func (c *Config) Validate() error {
	if err := structValidator().Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("config field %s failed %q validation (value %v)",
				strings.ToLower(fe.Namespace()), fe.Tag(), fe.Value())
		}
		return fmt.Errorf("config validation: %w", err)
	}

	if err := c.Detection.Validate(); err != nil {
		return fmt.Errorf("detection config: %w", err)
	}

	for _, ch := range c.Ingest.Channels {
		if strings.TrimSpace(ch) == "" {
			return fmt.Errorf("ingest.channels contains an empty channel name")
		}
	}
	if c.Ingest.Token != "" && c.Ingest.Nick == "" {
		return fmt.Errorf("ingest.nick is required when ingest.token is set")
	}
	if c.Ingest.ReconnectMin > c.Ingest.ReconnectMax {
		return fmt.Errorf("ingest.reconnect_min %v exceeds ingest.reconnect_max %v",
			c.Ingest.ReconnectMin, c.Ingest.ReconnectMax)
	}

	if c.WebSocket.WriteTimeout >= c.WebSocket.HeartbeatGrace {
		return fmt.Errorf("websocket.write_timeout %v must be below websocket.heartbeat_grace %v",
			c.WebSocket.WriteTimeout, c.WebSocket.HeartbeatGrace)
	}

	return nil
}
