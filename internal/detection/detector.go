// ChatPulse - Real-Time Chat Analytics and Hype Detection
// Copyright 2026 ChatPulse Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/chatpulse/chatpulse

// Package detection implements statistical spike detection over per-channel
// chat velocity. A hype event fires when the current velocity exceeds the
// rolling baseline mean by a configurable number of standard deviations,
// subject to a per-channel cooldown.
package detection

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/chatpulse/chatpulse/internal/models"
)

// zeroVarianceEpsilon guards the flat-history case: with stdDev == 0 the
// trigger requires velocity strictly above the mean by more than this margin,
// so a perfectly steady series never fires on its own value.
const zeroVarianceEpsilon = 1e-9

// Config holds the detector's tunables. Zero values are replaced by
// defaults in New.
type Config struct {
	// WindowSize is the number of velocity samples kept per channel,
	// one sample per tick.
	WindowSize int `koanf:"window_size" validate:"omitempty,min=2,max=3600"`
	// ThresholdStd is the number of standard deviations above the mean
	// required to trigger.
	ThresholdStd float64 `koanf:"threshold_std" validate:"omitempty,gt=0"`
	// Cooldown is the minimum interval between events per channel.
	Cooldown time.Duration `koanf:"cooldown" validate:"omitempty,min=1s"`
	// MinVelocity is the floor below which no velocity counts as hype,
	// whatever the baseline says.
	MinVelocity float64 `koanf:"min_velocity" validate:"omitempty,gte=0"`
	// MinSamples is the series size below which detection is suppressed.
	MinSamples int `koanf:"min_samples" validate:"omitempty,min=2"`
}

// DefaultConfig returns the detector defaults.
func DefaultConfig() Config {
	return Config{
		WindowSize:   60,
		ThresholdStd: 2.0,
		Cooldown:     30 * time.Second,
		MinVelocity:  5.0,
		MinSamples:   5,
	}
}

// Validate rejects configurations that would disable or destabilize
// detection.
func (c Config) Validate() error {
	if c.WindowSize < 2 {
		return fmt.Errorf("window_size %d: must be at least 2", c.WindowSize)
	}
	if c.ThresholdStd <= 0 {
		return fmt.Errorf("threshold_std %v: must be positive", c.ThresholdStd)
	}
	if c.Cooldown <= 0 {
		return fmt.Errorf("cooldown %v: must be positive", c.Cooldown)
	}
	if c.MinVelocity < 0 {
		return fmt.Errorf("min_velocity %v: must not be negative", c.MinVelocity)
	}
	if c.MinSamples < 2 || c.MinSamples > c.WindowSize {
		return fmt.Errorf("min_samples %d: must be in [2, window_size]", c.MinSamples)
	}
	return nil
}

// series is one channel's rolling velocity window plus its cooldown marker.
type series struct {
	samples   []float64
	head      int
	size      int
	lastFired time.Time
}

// HypeDetector tracks per-channel velocity baselines and emits hype events.
// Safe for concurrent use, though the tick loop is its only writer in
// practice.
type HypeDetector struct {
	cfg Config

	mu     sync.Mutex
	series map[string]*series
}

// New creates a detector, filling zero Config fields with defaults.
func New(cfg Config) (*HypeDetector, error) {
	def := DefaultConfig()
	if cfg.WindowSize == 0 {
		cfg.WindowSize = def.WindowSize
	}
	if cfg.ThresholdStd == 0 {
		cfg.ThresholdStd = def.ThresholdStd
	}
	if cfg.Cooldown == 0 {
		cfg.Cooldown = def.Cooldown
	}
	if cfg.MinVelocity == 0 {
		cfg.MinVelocity = def.MinVelocity
	}
	if cfg.MinSamples == 0 {
		cfg.MinSamples = def.MinSamples
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("detector config: %w", err)
	}
	return &HypeDetector{
		cfg:    cfg,
		series: make(map[string]*series),
	}, nil
}

// Observe records one velocity sample for a channel and returns a hype event
// if the sample crosses the baseline threshold. The sample is always
// recorded, even when detection is suppressed by cooldown or insufficient
// history.
//
// Numeric edge cases never error. A zero-variance history fires only on a
// velocity strictly above the mean, and a zero mean yields the raw velocity
// as the multiplier instead of dividing by zero.
func (d *HypeDetector) Observe(channel string, velocity float64, topEmotes []models.EmoteCount, now time.Time) *models.HypeEvent {
	d.mu.Lock()
	defer d.mu.Unlock()

	s, ok := d.series[channel]
	if !ok {
		s = &series{samples: make([]float64, d.cfg.WindowSize)}
		d.series[channel] = s
	}

	s.samples[s.head] = velocity
	s.head = (s.head + 1) % len(s.samples)
	if s.size < len(s.samples) {
		s.size++
	}

	if s.size < d.cfg.MinSamples {
		return nil
	}
	if !s.lastFired.IsZero() && now.Sub(s.lastFired) < d.cfg.Cooldown {
		return nil
	}
	if velocity < d.cfg.MinVelocity {
		return nil
	}

	mean, std := s.stats()
	if std == 0 {
		if velocity <= mean+zeroVarianceEpsilon {
			return nil
		}
	} else if velocity <= mean+d.cfg.ThresholdStd*std {
		return nil
	}

	multiplier := velocity
	if mean > 0 {
		multiplier = velocity / mean
	}
	s.lastFired = now

	if topEmotes == nil {
		topEmotes = []models.EmoteCount{}
	}
	return &models.HypeEvent{
		Channel:      channel,
		Timestamp:    now,
		Velocity:     velocity,
		BaselineMean: mean,
		BaselineStd:  std,
		Multiplier:   multiplier,
		TopEmotes:    topEmotes,
	}
}

// Baseline returns the current mean and population standard deviation of a
// channel's velocity series. Unknown channels report zeros.
func (d *HypeDetector) Baseline(channel string) (mean, std float64) {
	d.mu.Lock()
	defer d.mu.Unlock()

	s, ok := d.series[channel]
	if !ok || s.size == 0 {
		return 0, 0
	}
	return s.stats()
}

// Reset drops a channel's velocity history and cooldown state.
func (d *HypeDetector) Reset(channel string) {
	d.mu.Lock()
	delete(d.series, channel)
	d.mu.Unlock()
}

// stats computes population mean and standard deviation over the series'
// current contents.
func (s *series) stats() (mean, std float64) {
	var sum float64
	for i := 0; i < s.size; i++ {
		sum += s.samples[i]
	}
	mean = sum / float64(s.size)

	var sq float64
	for i := 0; i < s.size; i++ {
		diff := s.samples[i] - mean
		sq += diff * diff
	}
	return mean, math.Sqrt(sq / float64(s.size))
}
