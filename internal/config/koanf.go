// ChatPulse - Real-Time Chat Analytics and Hype Detection
// Copyright 2026 ChatPulse Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/chatpulse/chatpulse

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/chatpulse/chatpulse/internal/buffer"
	"github.com/chatpulse/chatpulse/internal/detection"
	"github.com/chatpulse/chatpulse/internal/ingest"
	"github.com/chatpulse/chatpulse/internal/scheduler"
	"github.com/chatpulse/chatpulse/internal/store"
	"github.com/chatpulse/chatpulse/internal/websocket"
)

// DefaultConfigPaths lists where config files are searched, in order.
// The first file found wins.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/chatpulse/config.yaml",
	"/etc/chatpulse/config.yml",
}

// ConfigPathEnvVar overrides the config file search entirely.
const ConfigPathEnvVar = "CONFIG_PATH"

// defaultConfig returns a Config with every field set to its default.
// Defaults are applied first, then overridden by file and env layers.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8000,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
		Buffer: BufferConfig{
			Capacity: buffer.DefaultCapacity,
		},
		Ingest:    ingest.DefaultConfig(),
		Detection: detection.DefaultConfig(),
		Analytics: AnalyticsConfig{
			TickInterval: scheduler.DefaultInterval,
		},
		WebSocket: websocket.DefaultConfig(),
		Database:  store.DefaultConfig(),
		API: APIConfig{
			CORSOrigins:       []string{"*"},
			RateLimitRequests: 100,
			RateLimitWindow:   time.Minute,
			MaxExportRows:     100000,
		},
	}
}

// Load builds the configuration from three layers:
//  1. Defaults from defaultConfig
//  2. An optional YAML config file (see DefaultConfigPaths)
//  3. Environment variables, which override everything
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	// TWITCH_CHANNELS -> ingest.channels, HTTP_PORT -> server.port, etc.
	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile returns the first existing config file path, or "".
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// sliceConfigPaths lists config paths parsed as comma-separated slices
// when they arrive as env var strings.
var sliceConfigPaths = []string{
	"ingest.channels",
	"api.cors_origins",
}

// processSliceFields splits comma-separated string values into slices for
// the known slice fields. YAML-sourced slices pass through untouched.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		val := k.Get(path)
		if val == nil {
			continue
		}
		if _, ok := val.([]interface{}); ok {
			continue
		}
		if _, ok := val.([]string); ok {
			continue
		}

		strVal, ok := val.(string)
		if !ok || strVal == "" {
			continue
		}
		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if len(trimmed) > 0 {
			if err := k.Set(path, trimmed); err != nil {
				return fmt.Errorf("failed to set %s: %w", path, err)
			}
		}
	}
	return nil
}

// envTransformFunc maps environment variable names to koanf config paths.
// Unmapped variables are dropped so stray environment noise never reaches
// the config.
//
// Examples:
//   - TWITCH_CHANNELS -> ingest.channels
//   - TWITCH_TOKEN -> ingest.token
//   - HTTP_PORT -> server.port
//   - DUCKDB_PATH -> database.path
func envTransformFunc(key string) string {
	key = strings.ToLower(key)

	envMappings := map[string]string{
		// Server mappings
		"http_host":             "server.host",
		"http_port":             "server.port",
		"http_read_timeout":     "server.read_timeout",
		"http_write_timeout":    "server.write_timeout",
		"http_shutdown_timeout": "server.shutdown_timeout",

		// Logging mappings
		"log_level":  "logging.level",
		"log_format": "logging.format",
		"log_caller": "logging.caller",

		// Buffer mappings
		"buffer_capacity": "buffer.capacity",

		// Twitch ingest mappings
		"twitch_irc_url":       "ingest.url",
		"twitch_token":         "ingest.token",
		"twitch_nick":          "ingest.nick",
		"twitch_channels":      "ingest.channels",
		"twitch_join_burst":    "ingest.join_burst",
		"twitch_reconnect_min": "ingest.reconnect_min",
		"twitch_reconnect_max": "ingest.reconnect_max",

		// Detection mappings
		"hype_window_size":   "detection.window_size",
		"hype_threshold_std": "detection.threshold_std",
		"hype_cooldown":      "detection.cooldown",
		"hype_min_velocity":  "detection.min_velocity",
		"hype_min_samples":   "detection.min_samples",

		// Analytics mappings
		"tick_interval": "analytics.tick_interval",

		// WebSocket mappings
		"ws_heartbeat_grace": "websocket.heartbeat_grace",
		"ws_write_timeout":   "websocket.write_timeout",
		"ws_send_buffer":     "websocket.send_buffer",

		// Database mappings
		"duckdb_path":       "database.path",
		"duckdb_max_memory": "database.max_memory",
		"duckdb_threads":    "database.threads",

		// API mappings
		"cors_origins":        "api.cors_origins",
		"rate_limit_requests": "api.rate_limit_requests",
		"rate_limit_window":   "api.rate_limit_window",
		"max_export_rows":     "api.max_export_rows",
	}

	if mapped, ok := envMappings[key]; ok {
		return mapped
	}

	return ""
}
