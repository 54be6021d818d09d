// ChatPulse - Real-Time Chat Analytics and Hype Detection
// Copyright 2026 ChatPulse Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/chatpulse/chatpulse

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/chatpulse/chatpulse/internal/models"
)

// ErrNotFound is returned when a requested hype event does not exist.
var ErrNotFound = errors.New("hype event not found")

// Filter narrows hype event queries. Zero values mean "no constraint"
// except Limit, which defaults to 50 and is capped at 500.
type Filter struct {
	Channel string
	Since   time.Time
	Limit   int
	Offset  int
}

const (
	defaultLimit = 50
	maxLimit     = 500
)

func (f Filter) limit() int {
	switch {
	case f.Limit <= 0:
		return defaultLimit
	case f.Limit > maxLimit:
		return maxLimit
	default:
		return f.Limit
	}
}

// buildConditions renders the filter's WHERE clauses and bind args.
func (f Filter) buildConditions() (string, []interface{}) {
	var (
		conditions []string
		args       []interface{}
	)
	if f.Channel != "" {
		conditions = append(conditions, "channel = ?")
		args = append(args, strings.ToLower(f.Channel))
	}
	if !f.Since.IsZero() {
		conditions = append(conditions, "detected_at >= ?")
		args = append(args, f.Since.UTC())
	}
	if len(conditions) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conditions, " AND "), args
}

const hypeEventColumns = "id, channel, detected_at, velocity, baseline_mean, baseline_std, multiplier, top_emotes"

// Save persists one hype event and fills in its assigned ID.
func (s *Store) Save(ctx context.Context, event *models.HypeEvent) error {
	emotes, err := json.Marshal(event.TopEmotes)
	if err != nil {
		return fmt.Errorf("failed to marshal top emotes: %w", err)
	}

	row := s.conn.QueryRowContext(ctx, `
		INSERT INTO hype_events (channel, detected_at, velocity, baseline_mean, baseline_std, multiplier, top_emotes)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		RETURNING id`,
		event.Channel, event.Timestamp.UTC(), event.Velocity,
		event.BaselineMean, event.BaselineStd, event.Multiplier, string(emotes))

	if err := row.Scan(&event.ID); err != nil {
		return fmt.Errorf("failed to insert hype event: %w", err)
	}
	return nil
}

// Get fetches one hype event by ID.
func (s *Store) Get(ctx context.Context, id int64) (*models.HypeEvent, error) {
	row := s.conn.QueryRowContext(ctx,
		"SELECT "+hypeEventColumns+" FROM hype_events WHERE id = ?", id)

	event, err := scanHypeEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get hype event %d: %w", id, err)
	}
	return event, nil
}

// List returns hype events matching the filter, newest first.
func (s *Store) List(ctx context.Context, filter Filter) ([]models.HypeEvent, error) {
	where, args := filter.buildConditions()
	query := "SELECT " + hypeEventColumns + " FROM hype_events" + where +
		" ORDER BY detected_at DESC, id DESC LIMIT ? OFFSET ?"
	args = append(args, filter.limit(), filter.Offset)

	rows, err := s.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list hype events: %w", err)
	}
	defer rows.Close()

	events := make([]models.HypeEvent, 0, filter.limit())
	for rows.Next() {
		event, err := scanHypeEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan hype event: %w", err)
		}
		events = append(events, *event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("hype event rows: %w", err)
	}
	return events, nil
}

// Recent returns the most recent events across all channels, a convenience
// over List for the dashboard's landing view.
func (s *Store) Recent(ctx context.Context, limit int) ([]models.HypeEvent, error) {
	return s.List(ctx, Filter{Limit: limit})
}

// Count returns the number of events matching the filter, ignoring limit
// and offset.
func (s *Store) Count(ctx context.Context, filter Filter) (int64, error) {
	where, args := filter.buildConditions()
	var n int64
	err := s.conn.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM hype_events"+where, args...).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count hype events: %w", err)
	}
	return n, nil
}

// ExportCSV streams matching events to w in CSV form, oldest first, with
// the header row first. The emote column is omitted to keep the export
// spreadsheet-friendly. A positive filter Limit caps the row count
// directly, without the listing default.
func (s *Store) ExportCSV(ctx context.Context, w io.Writer, filter Filter) error {
	where, args := filter.buildConditions()
	query := "SELECT " + hypeEventColumns + " FROM hype_events" + where +
		" ORDER BY detected_at ASC, id ASC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to query hype events for export: %w", err)
	}
	defer rows.Close()

	if _, err := io.WriteString(w, models.HypeEventCSVHeader+"\n"); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}

	for rows.Next() {
		event, err := scanHypeEvent(rows)
		if err != nil {
			return fmt.Errorf("failed to scan hype event for export: %w", err)
		}
		if _, err := io.WriteString(w, event.CSVRow()+"\n"); err != nil {
			return fmt.Errorf("failed to write CSV row: %w", err)
		}
	}
	return rows.Err()
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanHypeEvent(row scanner) (*models.HypeEvent, error) {
	var (
		event  models.HypeEvent
		emotes string
	)
	if err := row.Scan(&event.ID, &event.Channel, &event.Timestamp,
		&event.Velocity, &event.BaselineMean, &event.BaselineStd,
		&event.Multiplier, &emotes); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(emotes), &event.TopEmotes); err != nil {
		return nil, fmt.Errorf("malformed top_emotes column: %w", err)
	}
	event.Timestamp = event.Timestamp.UTC()
	return &event, nil
}
