// ChatPulse - Real-Time Chat Analytics and Hype Detection
// Copyright 2026 ChatPulse Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/chatpulse/chatpulse

// Package buffer provides the bounded per-channel message store that feeds
// metrics aggregation.
//
// Each channel owns a fixed-capacity ring indexed by a monotonically advancing
// write cursor; eviction of the oldest message is an implicit overwrite, not a
// separate delete step. Appends from the ingest path and snapshot reads from
// the tick loop run concurrently under a per-channel RWMutex, so no global
// lock serializes unrelated channels.
package buffer

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/chatpulse/chatpulse/internal/models"
)

// DefaultCapacity is the per-channel message limit when none is configured.
const DefaultCapacity = 10000

// Buffer stores recent chat messages for all monitored channels.
type Buffer struct {
	capacity int

	mu    sync.RWMutex
	rings map[string]*ring
}

// ring is one channel's fixed-capacity message store.
// head is the next write position; size grows until it reaches capacity and
// then stays there, with each append overwriting the oldest entry.
type ring struct {
	mu   sync.RWMutex
	buf  []models.ChatMessage
	head int
	size int
}

// New creates a Buffer with the given per-channel capacity.
// A non-positive capacity falls back to DefaultCapacity.
func New(capacity int) *Buffer {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Buffer{
		capacity: capacity,
		rings:    make(map[string]*ring),
	}
}

// Capacity returns the per-channel message limit.
func (b *Buffer) Capacity() int {
	return b.capacity
}

// Append adds a message to its channel's ring, creating the ring on first
// use. When the ring is full the oldest message is overwritten. Append never
// fails.
func (b *Buffer) Append(msg models.ChatMessage) {
	r := b.ring(normalize(msg.Channel))

	r.mu.Lock()
	r.buf[r.head] = msg
	r.head = (r.head + 1) % len(r.buf)
	if r.size < len(r.buf) {
		r.size++
	}
	r.mu.Unlock()
}

// ring returns the channel's ring, creating it if needed.
func (b *Buffer) ring(channel string) *ring {
	b.mu.RLock()
	r, ok := b.rings[channel]
	b.mu.RUnlock()
	if ok {
		return r
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if r, ok = b.rings[channel]; ok {
		return r
	}
	r = &ring{buf: make([]models.ChatMessage, b.capacity)}
	b.rings[channel] = r
	return r
}

// SnapshotSince returns, oldest first, the channel's messages with
// timestamp >= cutoff. It never mutates the ring; the returned slice is a
// copy. An unknown channel or an empty window yields an empty slice.
func (b *Buffer) SnapshotSince(channel string, cutoff time.Time) []models.ChatMessage {
	b.mu.RLock()
	r, ok := b.rings[normalize(channel)]
	b.mu.RUnlock()
	if !ok {
		return nil
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	// Scan the full window oldest to newest. Source timestamps can arrive
	// out of order (tag clock vs local fallback), so one old-stamped
	// straggler must not hide qualifying messages behind it.
	out := make([]models.ChatMessage, 0, r.size)
	start := (r.head - r.size + len(r.buf)) % len(r.buf)
	for i := 0; i < r.size; i++ {
		idx := (start + i) % len(r.buf)
		if !r.buf[idx].Timestamp.Before(cutoff) {
			out = append(out, r.buf[idx])
		}
	}
	return out
}

// Channels returns the sorted set of channels that have a ring.
func (b *Buffer) Channels() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	channels := make([]string, 0, len(b.rings))
	for ch := range b.rings {
		channels = append(channels, ch)
	}
	sort.Strings(channels)
	return channels
}

// Len returns the number of messages currently buffered for a channel.
func (b *Buffer) Len(channel string) int {
	b.mu.RLock()
	r, ok := b.rings[normalize(channel)]
	b.mu.RUnlock()
	if !ok {
		return 0
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.size
}

// Remove drops a channel's ring and releases its messages.
// Used when a channel is unmonitored.
func (b *Buffer) Remove(channel string) {
	b.mu.Lock()
	delete(b.rings, normalize(channel))
	b.mu.Unlock()
}

// Occupancy reports the buffered message count per channel.
func (b *Buffer) Occupancy() map[string]int {
	b.mu.RLock()
	rings := make(map[string]*ring, len(b.rings))
	for ch, r := range b.rings {
		rings[ch] = r
	}
	b.mu.RUnlock()

	occupancy := make(map[string]int, len(rings))
	for ch, r := range rings {
		r.mu.RLock()
		occupancy[ch] = r.size
		r.mu.RUnlock()
	}
	return occupancy
}

// normalize lowercases channel names so "#Chan" and "chan" share a ring.
func normalize(channel string) string {
	return strings.ToLower(strings.TrimPrefix(channel, "#"))
}
