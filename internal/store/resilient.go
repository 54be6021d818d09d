// ChatPulse - Real-Time Chat Analytics and Hype Detection
// Copyright 2026 ChatPulse Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/chatpulse/chatpulse

package store

import (
	"context"
	"sync"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/chatpulse/chatpulse/internal/logging"
	"github.com/chatpulse/chatpulse/internal/metrics"
	"github.com/chatpulse/chatpulse/internal/models"
)

// Saver is the write interface the tick loop depends on.
type Saver interface {
	Save(ctx context.Context, event *models.HypeEvent) error
}

// ResilientWriter wraps a Saver with a circuit breaker and a bounded retry
// queue. A hype event whose write fails is queued and retried in the
// background; real-time broadcast happens regardless, so a down database
// never suppresses a live alert.
type ResilientWriter struct {
	saver   Saver
	breaker *gobreaker.CircuitBreaker[interface{}]

	mu      sync.Mutex
	pending []*models.HypeEvent

	retryInterval time.Duration
	maxPending    int
}

// NewResilientWriter creates a writer around saver. Call Run to start the
// retry loop.
func NewResilientWriter(saver Saver) *ResilientWriter {
	settings := gobreaker.Settings{
		Name:        "hype-event-writes",
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     15 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("circuit breaker state change")
		},
	}

	return &ResilientWriter{
		saver:         saver,
		breaker:       gobreaker.NewCircuitBreaker[interface{}](settings),
		retryInterval: 5 * time.Second,
		maxPending:    1000,
	}
}

// Save attempts the write through the breaker. On failure the event is
// queued for retry and the error is returned so the caller can log it;
// the caller should still broadcast the event.
func (w *ResilientWriter) Save(ctx context.Context, event *models.HypeEvent) error {
	_, err := w.breaker.Execute(func() (interface{}, error) {
		return nil, w.saver.Save(ctx, event)
	})
	if err != nil {
		w.enqueueRetry(event)
		return err
	}
	return nil
}

// enqueueRetry queues an event for the retry loop, evicting the oldest pending
// event when the queue is full.
func (w *ResilientWriter) enqueueRetry(event *models.HypeEvent) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if len(w.pending) >= w.maxPending {
		w.pending = w.pending[1:]
		logging.Warn().Msg("retry queue full, dropping oldest pending hype event")
	}
	w.pending = append(w.pending, event)
	metrics.StoreRetryQueueDepth.Set(float64(len(w.pending)))
}

// PendingCount reports the retry queue depth.
func (w *ResilientWriter) PendingCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.pending)
}

// Run drains the retry queue until the context is canceled. Designed for
// suture supervision; returns ctx.Err() on shutdown.
func (w *ResilientWriter) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.retryInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			w.drain(ctx)
		}
	}
}

// drain retries pending writes in arrival order, stopping at the first
// failure to avoid hammering a database that is still down.
func (w *ResilientWriter) drain(ctx context.Context) {
	for {
		w.mu.Lock()
		if len(w.pending) == 0 {
			w.mu.Unlock()
			return
		}
		event := w.pending[0]
		w.mu.Unlock()

		_, err := w.breaker.Execute(func() (interface{}, error) {
			return nil, w.saver.Save(ctx, event)
		})
		if err != nil {
			return
		}

		w.mu.Lock()
		// Pop the event we just wrote, but only if it is still the
		// head: a concurrent full-queue eviction can remove it while
		// the write is in flight.
		if len(w.pending) > 0 && w.pending[0] == event {
			w.pending = w.pending[1:]
		}
		metrics.StoreRetryQueueDepth.Set(float64(len(w.pending)))
		w.mu.Unlock()

		logging.Info().
			Str("channel", event.Channel).
			Msg("retried hype event write succeeded")
	}
}
