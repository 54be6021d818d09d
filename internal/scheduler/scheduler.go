// ChatPulse - Real-Time Chat Analytics and Hype Detection
// Copyright 2026 ChatPulse Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/chatpulse/chatpulse

// Package scheduler drives the once-per-second analytics tick: compute each
// channel's metrics snapshot, feed its velocity to the hype detector,
// broadcast, and persist any detected event.
package scheduler

import (
	"context"
	"runtime/debug"
	"time"

	"github.com/chatpulse/chatpulse/internal/analytics"
	"github.com/chatpulse/chatpulse/internal/detection"
	"github.com/chatpulse/chatpulse/internal/logging"
	"github.com/chatpulse/chatpulse/internal/metrics"
	"github.com/chatpulse/chatpulse/internal/models"
	"github.com/chatpulse/chatpulse/internal/store"
)

// DefaultInterval is the tick cadence.
const DefaultInterval = time.Second

// ChannelLister supplies the channel set for each tick. The ingest client
// and the buffer both implement it; tests use a fixed list.
type ChannelLister interface {
	Channels() []string
}

// Union combines listers into one deduplicated channel set, preserving
// first-lister order. The composition root tracks the union of configured
// channels and channels holding buffered messages, so a channel parted
// mid-window still gets its final ticks.
func Union(listers ...ChannelLister) ChannelLister {
	return unionLister(listers)
}

type unionLister []ChannelLister

func (u unionLister) Channels() []string {
	seen := make(map[string]bool)
	var out []string
	for _, l := range u {
		for _, ch := range l.Channels() {
			if !seen[ch] {
				seen[ch] = true
				out = append(out, ch)
			}
		}
	}
	return out
}

// Broadcaster is the fan-out surface the scheduler publishes to.
type Broadcaster interface {
	BroadcastMetrics(m *models.ChannelMetrics)
	BroadcastHypeEvent(e *models.HypeEvent)
}

// Scheduler owns the tick loop. Channel set changes take effect on the next
// tick boundary; mid-tick joins and parts are not observed.
type Scheduler struct {
	interval   time.Duration
	channels   ChannelLister
	aggregator *analytics.Aggregator
	detector   *detection.HypeDetector
	hub        Broadcaster
	writer     store.Saver
}

// New assembles a Scheduler. writer may be nil when persistence is
// disabled; interval zero selects the default cadence.
func New(
	interval time.Duration,
	channels ChannelLister,
	aggregator *analytics.Aggregator,
	detector *detection.HypeDetector,
	hub Broadcaster,
	writer store.Saver,
) *Scheduler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Scheduler{
		interval:   interval,
		channels:   channels,
		aggregator: aggregator,
		detector:   detector,
		hub:        hub,
		writer:     writer,
	}
}

// Run ticks until the context is canceled. A tick in flight finishes before
// Run returns. time.Ticker keeps the cadence steady instead of re-arming a
// sleep, so slow ticks do not accumulate drift. Designed for suture
// supervision.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	logging.Info().Dur("interval", s.interval).Msg("scheduler started")
	for {
		select {
		case <-ctx.Done():
			logging.Info().Msg("scheduler stopped")
			return ctx.Err()
		case now := <-ticker.C:
			s.Tick(ctx, now.UTC())
		}
	}
}

// Tick runs one full pass over the current channel set. Exported so tests
// and tools can drive the loop with a synthetic clock.
func (s *Scheduler) Tick(ctx context.Context, now time.Time) {
	started := time.Now()
	for _, channel := range s.channels.Channels() {
		s.tickChannel(ctx, channel, now)
	}
	metrics.TickDuration.Observe(time.Since(started).Seconds())
}

// tickChannel computes, detects, persists, and broadcasts for one channel.
// A panic here is a programming error in the computation; it is contained
// so the remaining channels still get their tick.
func (s *Scheduler) tickChannel(ctx context.Context, channel string, now time.Time) {
	defer func() {
		if r := recover(); r != nil {
			metrics.ChannelComputePanics.WithLabelValues(channel).Inc()
			logging.Error().
				Str("channel", channel).
				Interface("panic", r).
				Str("stack", string(debug.Stack())).
				Msg("channel tick panicked")
		}
	}()

	snapshot := s.aggregator.Compute(channel, now)
	s.hub.BroadcastMetrics(&snapshot)

	event := s.detector.Observe(channel, snapshot.MessagesPerSecond, snapshot.TopEmotes, now)
	if event == nil {
		return
	}

	metrics.HypeEventsFired.WithLabelValues(channel).Inc()
	logging.Info().
		Str("channel", channel).
		Float64("velocity", event.Velocity).
		Float64("baseline_mean", event.BaselineMean).
		Float64("multiplier", event.Multiplier).
		Msg("hype detected")

	// Durability and real-time delivery are decoupled: the broadcast
	// happens whether or not the write lands.
	if s.writer != nil {
		started := time.Now()
		err := s.writer.Save(ctx, event)
		metrics.RecordStoreWrite(time.Since(started), err)
		if err != nil {
			logging.Error().Err(err).Str("channel", channel).Msg("failed to persist hype event")
		}
	}

	s.hub.BroadcastHypeEvent(event)
}
