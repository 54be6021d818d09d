// ChatPulse - Real-Time Chat Analytics and Hype Detection
// Copyright 2026 ChatPulse Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/chatpulse/chatpulse

// Package analytics computes windowed per-channel metrics from buffered chat
// messages. Aggregation is stateless: each call reads one snapshot and derives
// every figure from it, so a snapshot is internally consistent even while new
// messages keep arriving.
package analytics

import (
	"sort"
	"time"

	"github.com/chatpulse/chatpulse/internal/buffer"
	"github.com/chatpulse/chatpulse/internal/models"
)

// TopEmoteLimit caps the emote leaderboard in a metrics snapshot.
const TopEmoteLimit = 10

// Window sizes for the derived figures.
const (
	velocityWindow = time.Second
	minuteWindow   = time.Minute
	longWindow     = 5 * time.Minute
)

// Aggregator derives ChannelMetrics from a message buffer.
type Aggregator struct {
	buf *buffer.Buffer
}

// New creates an Aggregator reading from buf.
func New(buf *buffer.Buffer) *Aggregator {
	return &Aggregator{buf: buf}
}

// Compute builds the metrics snapshot for a channel as of now.
//
// One 300s snapshot is taken and the shorter windows are filtered from it
// locally, so the three counts agree with each other. An empty buffer yields
// an all-zero snapshot rather than an error.
func (a *Aggregator) Compute(channel string, now time.Time) models.ChannelMetrics {
	window := a.buf.SnapshotSince(channel, now.Add(-longWindow))

	m := models.ChannelMetrics{
		Channel:   channel,
		Timestamp: now,
		TopEmotes: []models.EmoteCount{},
	}
	if len(window) == 0 {
		return m
	}

	secondCutoff := now.Add(-velocityWindow)
	minuteCutoff := now.Add(-minuteWindow)

	chatters := make(map[string]struct{})
	var totalLength int
	for _, msg := range window {
		if !msg.Timestamp.Before(secondCutoff) {
			m.MessagesPerSecond++
		}
		if !msg.Timestamp.Before(minuteCutoff) {
			m.MessagesLastMinute++
		}
		chatters[msg.Username] = struct{}{}
		totalLength += len(msg.Content)
	}

	m.UniqueChatters5Min = len(chatters)
	m.AvgMessageLength = float64(totalLength) / float64(len(window))
	m.TopEmotes = topEmotes(window, TopEmoteLimit)
	return m
}

// topEmotes counts emote occurrences across the window and returns the top
// limit codes, ordered by count descending with ties broken by the order the
// codes first appeared.
func topEmotes(window []models.ChatMessage, limit int) []models.EmoteCount {
	counts := make(map[string]int)
	firstSeen := make(map[string]int)
	for _, msg := range window {
		for _, code := range msg.Emotes {
			if _, ok := counts[code]; !ok {
				firstSeen[code] = len(firstSeen)
			}
			counts[code]++
		}
	}
	if len(counts) == 0 {
		return []models.EmoteCount{}
	}

	ranked := make([]models.EmoteCount, 0, len(counts))
	for code, n := range counts {
		ranked = append(ranked, models.EmoteCount{Code: code, Count: n})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Count != ranked[j].Count {
			return ranked[i].Count > ranked[j].Count
		}
		return firstSeen[ranked[i].Code] < firstSeen[ranked[j].Code]
	})

	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked
}
