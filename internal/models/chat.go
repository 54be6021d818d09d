// ChatPulse - Real-Time Chat Analytics and Hype Detection
// Copyright 2026 ChatPulse Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/chatpulse/chatpulse

package models

import (
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

// ChatMessage represents a single ingested chat message.
// Messages are immutable once created; the channel buffer owns them after
// ingestion and they are never mutated.
type ChatMessage struct {
	// ID is a unique identifier assigned at ingestion.
	ID string `json:"id"`

	// Channel is the chat channel name without the # prefix.
	// Acts as the partition key for buffering, metrics, and detection.
	Channel string `json:"channel"`

	// Username is the display name of the sender.
	Username string `json:"username"`

	// Content is the text of the message.
	Content string `json:"content"`

	// Timestamp is the source-assigned UTC time of the message.
	Timestamp time.Time `json:"timestamp"`

	// Emotes lists emote codes used in the message, in order of
	// appearance. Repeats are allowed.
	Emotes []string `json:"emotes,omitempty"`

	// Badges lists sender badges (subscriber, moderator, ...).
	Badges []string `json:"badges,omitempty"`
}

// NewChatMessage constructs a ChatMessage with a fresh ID and the given
// source timestamp.
func NewChatMessage(channel, username, content string, ts time.Time, emotes []string) ChatMessage {
	return ChatMessage{
		ID:        uuid.New().String(),
		Channel:   channel,
		Username:  username,
		Content:   content,
		Timestamp: ts,
		Emotes:    emotes,
	}
}

// EmoteCount is one (emote code, occurrence count) pair.
// It marshals to the wire format ["KEKW", 42] used by the metrics and
// hype payloads.
type EmoteCount struct {
	Code  string
	Count int
}

// MarshalJSON encodes the pair as a two-element array.
func (e EmoteCount) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]interface{}{e.Code, e.Count})
}

// UnmarshalJSON decodes the two-element array form.
func (e *EmoteCount) UnmarshalJSON(data []byte) error {
	var raw [2]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("emote count must be a [code, count] pair: %w", err)
	}
	if err := json.Unmarshal(raw[0], &e.Code); err != nil {
		return fmt.Errorf("emote code: %w", err)
	}
	if err := json.Unmarshal(raw[1], &e.Count); err != nil {
		return fmt.Errorf("emote count: %w", err)
	}
	return nil
}

// ChannelMetrics is the per-channel metrics snapshot computed once per tick.
// Snapshots are derived data: recomputed every second, never persisted, and
// superseded by the next tick.
type ChannelMetrics struct {
	Channel   string    `json:"channel"`
	Timestamp time.Time `json:"timestamp"`

	// MessagesPerSecond is the instantaneous count in the most recent
	// 1-second window. This is the velocity signal consumed by the hype
	// detector; it is deliberately unsmoothed.
	MessagesPerSecond float64 `json:"messages_per_second"`

	// MessagesLastMinute is the count in the most recent 60-second window.
	MessagesLastMinute int `json:"messages_last_minute"`

	// UniqueChatters5Min is the distinct sender count over 300 seconds.
	UniqueChatters5Min int `json:"unique_chatters_5min"`

	// TopEmotes holds the most used emotes over 300 seconds, ordered by
	// count descending with first-seen order breaking ties.
	TopEmotes []EmoteCount `json:"top_emotes"`

	// AvgMessageLength is the mean content length over 300 seconds,
	// 0 when the window is empty.
	AvgMessageLength float64 `json:"avg_message_length"`
}
