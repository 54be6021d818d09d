// ChatPulse - Real-Time Chat Analytics and Hype Detection
// Copyright 2026 ChatPulse Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/chatpulse/chatpulse

package models

import (
	"fmt"
	"time"
)

// HypeEvent records one detected chat activity spike. Events are immutable
// once created by the detector; the store assigns ID on persistence.
type HypeEvent struct {
	ID        int64     `json:"id,omitempty"`
	Channel   string    `json:"channel"`
	Timestamp time.Time `json:"timestamp"`

	// Velocity is the messages-per-second sample that triggered the event.
	Velocity float64 `json:"velocity"`

	// BaselineMean and BaselineStd describe the rolling velocity baseline
	// at the moment of detection.
	BaselineMean float64 `json:"baseline_mean"`
	BaselineStd  float64 `json:"baseline_std"`

	// Multiplier is velocity divided by the baseline mean. When the mean
	// is zero the detector substitutes the raw velocity as a sentinel.
	Multiplier float64 `json:"multiplier"`

	// TopEmotes is copied from the metrics snapshot of the same tick.
	TopEmotes []EmoteCount `json:"top_emotes"`
}

// HypeEventCSVHeader is the header row for CSV export.
const HypeEventCSVHeader = "channel,timestamp,velocity,baseline_mean,baseline_std,multiplier"

// CSVRow renders the event as one CSV export row.
// Columns match HypeEventCSVHeader.
func (e *HypeEvent) CSVRow() string {
	return fmt.Sprintf("%s,%s,%.1f,%.1f,%.1f,%.2f",
		e.Channel,
		e.Timestamp.UTC().Format(time.RFC3339),
		e.Velocity,
		e.BaselineMean,
		e.BaselineStd,
		e.Multiplier,
	)
}
