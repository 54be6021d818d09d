// ChatPulse - Real-Time Chat Analytics and Hype Detection
// Copyright 2026 ChatPulse Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/chatpulse/chatpulse

// Package store persists hype events in DuckDB and serves the query surface
// behind the HTTP API. Durability is decoupled from real-time delivery: a
// failed write never blocks or loses a live broadcast.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"

	"github.com/chatpulse/chatpulse/internal/logging"
)

// Config holds database tuning options.
type Config struct {
	// Path is the database file location. ":memory:" keeps everything
	// in process, used by tests.
	Path string `koanf:"path"`
	// MaxMemory caps DuckDB's memory usage, e.g. "512MB".
	MaxMemory string `koanf:"max_memory"`
	// Threads is the DuckDB worker thread count. Zero means NumCPU.
	Threads int `koanf:"threads"`
}

// DefaultConfig returns the storage defaults.
func DefaultConfig() Config {
	return Config{
		Path:      "data/chatpulse.db",
		MaxMemory: "512MB",
	}
}

// Store wraps the DuckDB connection and provides hype event persistence.
type Store struct {
	conn *sql.DB
	cfg  Config
}

// New opens the database, creating the parent directory and schema as
// needed.
func New(cfg Config) (*Store, error) {
	if cfg.Path == "" {
		cfg.Path = DefaultConfig().Path
	}
	if cfg.MaxMemory == "" {
		cfg.MaxMemory = DefaultConfig().MaxMemory
	}
	numThreads := cfg.Threads
	if numThreads <= 0 {
		numThreads = runtime.NumCPU()
	}

	// The parent directory must exist before DuckDB opens the file.
	// 0750 per gosec G301.
	if cfg.Path != ":memory:" {
		dbDir := filepath.Dir(cfg.Path)
		if dbDir != "" && dbDir != "." {
			if err := os.MkdirAll(dbDir, 0o750); err != nil {
				return nil, fmt.Errorf("failed to create database directory %s: %w", dbDir, err)
			}
		}
	}

	// Disable auto-install/auto-load to prevent hangs in restricted
	// network environments.
	connStr := fmt.Sprintf("%s?access_mode=read_write&threads=%d&max_memory=%s&autoinstall_known_extensions=false&autoload_known_extensions=false",
		cfg.Path, numThreads, cfg.MaxMemory)

	conn, err := sql.Open("duckdb", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &Store{conn: conn, cfg: cfg}
	s.configureConnectionPool()

	if err := s.initialize(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	logging.Info().Str("path", cfg.Path).Msg("hype event store opened")
	return s, nil
}

func (s *Store) configureConnectionPool() {
	s.conn.SetMaxOpenConns(runtime.NumCPU())
	s.conn.SetMaxIdleConns(2)
	s.conn.SetConnMaxLifetime(time.Hour)
	s.conn.SetConnMaxIdleTime(5 * time.Minute)
}

// initialize creates the schema. Idempotent, runs at every startup.
func (s *Store) initialize() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	statements := []string{
		`CREATE SEQUENCE IF NOT EXISTS hype_events_id_seq`,
		`CREATE TABLE IF NOT EXISTS hype_events (
			id            BIGINT PRIMARY KEY DEFAULT nextval('hype_events_id_seq'),
			channel       VARCHAR NOT NULL,
			detected_at   TIMESTAMP NOT NULL,
			velocity      DOUBLE NOT NULL,
			baseline_mean DOUBLE NOT NULL,
			baseline_std  DOUBLE NOT NULL,
			multiplier    DOUBLE NOT NULL,
			top_emotes    VARCHAR NOT NULL DEFAULT '[]'
		)`,
		`CREATE INDEX IF NOT EXISTS idx_hype_events_channel_time
			ON hype_events (channel, detected_at)`,
	}
	for _, stmt := range statements {
		if _, err := s.conn.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("schema statement failed: %w", err)
		}
	}
	return nil
}

// Ping checks if the database connection is alive.
func (s *Store) Ping(ctx context.Context) error {
	if s.conn == nil {
		return fmt.Errorf("database connection is nil")
	}
	return s.conn.PingContext(ctx)
}

// Close checkpoints the WAL and closes the connection. The checkpoint is
// best effort; a failure is logged, not returned.
func (s *Store) Close() error {
	if s.conn == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	if _, err := s.conn.ExecContext(ctx, "CHECKPOINT"); err != nil {
		logging.Warn().Err(err).Msg("failed to checkpoint database before close")
	}
	cancel()

	return s.conn.Close()
}
