// StreamBoard - Media Stream Fleet Dashboard Runtime
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/streamboard

package eventstream

import (
	"math/rand/v2"
	"testing"
	"time"

	"github.com/tomtom215/streamboard/internal/config"
)

func TestBackoff_GrowsAndCaps(t *testing.T) {
	t.Parallel()

	b := NewBackoff(100*time.Millisecond, time.Second, 2, 0)
	want := []time.Duration{
		100 * time.Millisecond,
		200 * time.Millisecond,
		400 * time.Millisecond,
		800 * time.Millisecond,
		time.Second,
		time.Second,
	}
	for i, w := range want {
		if got := b.Next(); got != w {
			t.Errorf("delay %d = %v, want %v", i+1, got, w)
		}
	}
	if b.Attempt() != len(want) {
		t.Errorf("Attempt = %d", b.Attempt())
	}
}

func TestBackoff_ResetReturnsToFirstDelay(t *testing.T) {
	t.Parallel()

	b := NewBackoff(50*time.Millisecond, time.Second, 2, 0)
	d1 := b.Next()
	b.Next()
	b.Next()

	b.Reset()
	if got := b.Next(); got != d1 {
		t.Errorf("delay after reset = %v, want %v", got, d1)
	}
}

func TestBackoff_ResetWithDefaultJitter(t *testing.T) {
	t.Parallel()

	ev := config.Default().Events
	if ev.BackoffJitter <= 0 {
		t.Fatalf("default jitter = %v, want > 0", ev.BackoffJitter)
	}
	upper := time.Duration(float64(ev.BackoffMin) * (1 + ev.BackoffJitter))
	if upper > ev.BackoffMax {
		upper = ev.BackoffMax
	}

	for seed := uint64(0); seed < 50; seed++ {
		rng := rand.New(rand.NewPCG(seed, seed+3))
		b := NewBackoff(ev.BackoffMin, ev.BackoffMax, ev.BackoffMultiplier, ev.BackoffJitter)
		b.rand = rng.Float64

		for i := 0; i < 6; i++ {
			b.Next()
		}
		b.Reset()
		if d := b.Next(); d < ev.BackoffMin || d > upper {
			t.Fatalf("seed %d: first delay after reset = %v, want within [%v, %v]", seed, d, ev.BackoffMin, upper)
		}
		if b.Attempt() != 1 {
			t.Fatalf("seed %d: attempt after reset = %d, want 1", seed, b.Attempt())
		}
	}
}

func TestBackoff_MonotonicWithJitter(t *testing.T) {
	t.Parallel()

	for seed := uint64(0); seed < 50; seed++ {
		rng := rand.New(rand.NewPCG(seed, seed*7+1))
		b := NewBackoff(10*time.Millisecond, 500*time.Millisecond, 1.5, 0.5)
		b.rand = rng.Float64

		for round := 0; round < 3; round++ {
			var prev time.Duration
			for i := 0; i < 20; i++ {
				d := b.Next()
				if d < prev {
					t.Fatalf("seed %d: delay %d = %v < previous %v", seed, i, d, prev)
				}
				if d < b.Min || d > b.Max {
					t.Fatalf("seed %d: delay %v outside [%v, %v]", seed, d, b.Min, b.Max)
				}
				prev = d
			}
			b.Reset()
			if first := b.Next(); first > b.Min+b.Min/2 {
				t.Fatalf("seed %d: first delay after reset %v exceeds min plus jitter", seed, first)
			}
			b.Reset()
		}
	}
}

func TestNewBackoff_Defaults(t *testing.T) {
	t.Parallel()

	b := NewBackoff(0, 0, 0, -1)
	if b.Min != time.Second || b.Max != 30*time.Second || b.Multiplier != 2 || b.Jitter != 0 {
		t.Errorf("defaults = %+v", b)
	}
}

func TestCanTransition(t *testing.T) {
	t.Parallel()

	tests := []struct {
		from, to State
		want     bool
	}{
		{StateIdle, StateConnecting, true},
		{StateIdle, StateOpen, false},
		{StateConnecting, StateOpen, true},
		{StateConnecting, StateReconnecting, true},
		{StateOpen, StateReconnecting, true},
		{StateOpen, StateConnecting, false},
		{StateReconnecting, StateConnecting, true},
		{StateReconnecting, StateOpen, false},
		{StateOpen, StateClosed, true},
		{StateIdle, StateClosed, true},
		{StateClosed, StateClosed, false},
		{StateClosed, StateConnecting, false},
		{StateClosed, StateIdle, true},
	}
	for _, tt := range tests {
		if got := canTransition(tt.from, tt.to); got != tt.want {
			t.Errorf("canTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}
