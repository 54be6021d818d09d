// ChatPulse - Real-Time Chat Analytics and Hype Detection
// Copyright 2026 ChatPulse Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/chatpulse/chatpulse

package detection

import (
	"testing"
	"time"
)

func newTestDetector(t *testing.T, cfg Config) *HypeDetector {
	t.Helper()
	d, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return d
}

func TestNoFireBeforeMinSamples(t *testing.T) {
	d := newTestDetector(t, Config{})
	now := time.Now()

	// Four samples recorded, fifth observation hits the minimum while the
	// threshold check still uses an all-but-flat series. Huge velocities
	// before the minimum must stay silent.
	for i := 0; i < 4; i++ {
		if ev := d.Observe("c", 1000, nil, now.Add(time.Duration(i)*time.Second)); ev != nil {
			t.Fatalf("fired at sample %d, before minimum", i+1)
		}
	}
}

func TestCooldownSuppressesRepeatFiring(t *testing.T) {
	d := newTestDetector(t, Config{Cooldown: 30 * time.Second})
	now := time.Now()

	// Build a flat low baseline.
	for i := 0; i < 10; i++ {
		d.Observe("c", 2, nil, now.Add(time.Duration(i)*time.Second))
	}
	t0 := now.Add(10 * time.Second)
	if ev := d.Observe("c", 50, nil, t0); ev == nil {
		t.Fatal("expected first spike to fire")
	}

	// Trigger condition holds every tick but cooldown gates it.
	for i := 1; i < 30; i++ {
		if ev := d.Observe("c", 50, nil, t0.Add(time.Duration(i)*time.Second)); ev != nil {
			t.Fatalf("fired %ds after previous event, inside cooldown", i)
		}
	}
	if ev := d.Observe("c", 500, nil, t0.Add(31*time.Second)); ev == nil {
		t.Error("expected firing after cooldown expired")
	}
}

func TestFlatSeriesDoesNotFireOnOwnValue(t *testing.T) {
	d := newTestDetector(t, Config{})
	now := time.Now()

	for i := 0; i < 7; i++ {
		if ev := d.Observe("c", 10, nil, now.Add(time.Duration(i)*time.Second)); ev != nil {
			t.Fatalf("flat series fired at sample %d", i+1)
		}
	}
}

func TestFlatSeriesFiresOnStrictlyGreater(t *testing.T) {
	d := newTestDetector(t, Config{})
	now := time.Now()

	for i := 0; i < 6; i++ {
		d.Observe("c", 10, nil, now.Add(time.Duration(i)*time.Second))
	}
	ev := d.Observe("c", 40, nil, now.Add(6*time.Second))
	if ev == nil {
		t.Fatal("expected spike above flat baseline to fire")
	}
	if ev.Velocity != 40 {
		t.Errorf("Velocity = %v, want 40", ev.Velocity)
	}
}

func TestThresholdBoundary(t *testing.T) {
	// Full window alternating 15/25: mean 20, population stdDev 5.
	// With the triggering sample folded into the stats, 31 clears
	// mean + 2 sigma and 29 does not.
	fill := func(d *HypeDetector, now time.Time) time.Time {
		for i := 0; i < 60; i++ {
			v := 15.0
			if i%2 == 1 {
				v = 25.0
			}
			d.Observe("c", v, nil, now.Add(time.Duration(i)*time.Second))
		}
		return now.Add(60 * time.Second)
	}

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	d := newTestDetector(t, Config{})
	if ev := d.Observe("c", 31, nil, fill(d, now)); ev == nil {
		t.Error("31 against mean 20 stdDev 5 should fire")
	}

	d = newTestDetector(t, Config{})
	if ev := d.Observe("c", 29, nil, fill(d, now)); ev != nil {
		t.Errorf("29 against mean 20 stdDev 5 should not fire, got %+v", ev)
	}
}

func TestMinVelocityFloor(t *testing.T) {
	d := newTestDetector(t, Config{MinVelocity: 5})
	now := time.Now()

	// Near-zero baseline, then a spike below the floor.
	for i := 0; i < 10; i++ {
		d.Observe("c", 0.1, nil, now.Add(time.Duration(i)*time.Second))
	}
	if ev := d.Observe("c", 4, nil, now.Add(10*time.Second)); ev != nil {
		t.Errorf("velocity 4 below floor 5 fired: %+v", ev)
	}
	if ev := d.Observe("c", 30, nil, now.Add(11*time.Second)); ev == nil {
		t.Error("velocity 30 above floor should fire")
	}
}

func TestMultiplierZeroMeanSentinel(t *testing.T) {
	d := newTestDetector(t, Config{})
	now := time.Now()

	for i := 0; i < 10; i++ {
		d.Observe("c", 0, nil, now.Add(time.Duration(i)*time.Second))
	}
	ev := d.Observe("c", 12, nil, now.Add(10*time.Second))
	if ev == nil {
		t.Fatal("expected spike above zero baseline to fire")
	}
	// Zero mean makes a ratio undefined; the raw velocity stands in.
	if ev.Multiplier != 12 {
		t.Errorf("Multiplier = %v, want 12", ev.Multiplier)
	}
	if ev.BaselineMean >= 1 {
		t.Errorf("BaselineMean = %v, want near zero", ev.BaselineMean)
	}
}

func TestWindowSlides(t *testing.T) {
	d := newTestDetector(t, Config{WindowSize: 10, MinSamples: 5})
	now := time.Now()

	// Fill with high values, then push them all out with low ones. The
	// baseline must reflect only the last WindowSize samples.
	for i := 0; i < 10; i++ {
		d.Observe("c", 100, nil, now.Add(time.Duration(i)*time.Second))
	}
	for i := 10; i < 20; i++ {
		d.Observe("c", 10, nil, now.Add(time.Duration(i)*time.Second))
	}
	mean, std := d.Baseline("c")
	if mean != 10 || std != 0 {
		t.Errorf("baseline = (%v, %v), want (10, 0)", mean, std)
	}
}

func TestChannelsAreIndependent(t *testing.T) {
	d := newTestDetector(t, Config{})
	now := time.Now()

	for i := 0; i < 10; i++ {
		d.Observe("a", 2, nil, now.Add(time.Duration(i)*time.Second))
	}
	// Channel b has no history; a spike there stays silent while the same
	// spike on a fires.
	if ev := d.Observe("b", 50, nil, now.Add(10*time.Second)); ev != nil {
		t.Error("channel b fired without history")
	}
	if ev := d.Observe("a", 50, nil, now.Add(10*time.Second)); ev == nil {
		t.Error("channel a should fire")
	}
}

func TestReset(t *testing.T) {
	d := newTestDetector(t, Config{})
	now := time.Now()

	for i := 0; i < 10; i++ {
		d.Observe("c", 5, nil, now.Add(time.Duration(i)*time.Second))
	}
	d.Reset("c")
	if mean, std := d.Baseline("c"); mean != 0 || std != 0 {
		t.Errorf("baseline after reset = (%v, %v), want zeros", mean, std)
	}
	if ev := d.Observe("c", 100, nil, now.Add(11*time.Second)); ev != nil {
		t.Error("fired immediately after reset with one sample")
	}
}

func TestConfigValidation(t *testing.T) {
	cases := []struct {
		name string
		cfg  Config
	}{
		{"negative threshold", Config{ThresholdStd: -1}},
		{"window too small", Config{WindowSize: 1}},
		{"min samples above window", Config{WindowSize: 5, MinSamples: 10}},
		{"negative min velocity", Config{MinVelocity: -2}},
		{"negative cooldown", Config{Cooldown: -time.Second}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := New(tc.cfg); err == nil {
				t.Errorf("New(%+v) accepted invalid config", tc.cfg)
			}
		})
	}
}
