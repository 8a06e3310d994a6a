// StreamBoard - Media Stream Fleet Dashboard Runtime
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/streamboard

package eventstream

import (
	"math"
	"math/rand/v2"
	"time"
)

// Backoff computes reconnect delays. Consecutive delays never decrease;
// Reset returns to the minimum. Not safe for concurrent use.
type Backoff struct {
	Min        time.Duration
	Max        time.Duration
	Multiplier float64
	Jitter     float64 // fraction of the delay added at random, 0 disables

	attempt int
	last    time.Duration
	rand    func() float64
}

// NewBackoff returns a backoff with the given bounds. Zero values get
// defaults of 1s, 30s and a multiplier of 2.
func NewBackoff(minDelay, maxDelay time.Duration, multiplier, jitter float64) *Backoff {
	if minDelay <= 0 {
		minDelay = time.Second
	}
	if maxDelay < minDelay {
		maxDelay = 30 * time.Second
		if maxDelay < minDelay {
			maxDelay = minDelay
		}
	}
	if multiplier < 1 {
		multiplier = 2
	}
	if jitter < 0 {
		jitter = 0
	}
	return &Backoff{Min: minDelay, Max: maxDelay, Multiplier: multiplier, Jitter: jitter, rand: rand.Float64}
}

// Next returns the delay before the next attempt and advances the attempt count.
func (b *Backoff) Next() time.Duration {
	base := float64(b.Min) * math.Pow(b.Multiplier, float64(b.attempt))
	if base > float64(b.Max) {
		base = float64(b.Max)
	}
	if b.Jitter > 0 && b.rand != nil {
		base += base * b.Jitter * b.rand()
	}
	d := time.Duration(base)
	if d > b.Max {
		d = b.Max
	}
	if d < b.last {
		d = b.last
	}
	b.last = d
	b.attempt++
	return d
}

// Reset returns the backoff to its first delay.
func (b *Backoff) Reset() {
	b.attempt = 0
	b.last = 0
}

// Attempt returns how many delays have been handed out since the last Reset.
func (b *Backoff) Attempt() int {
	return b.attempt
}
