// StreamBoard - Media Stream Fleet Dashboard Runtime
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/streamboard

package services

import (
	"context"
	"time"
)

// TickerService calls fn every interval until the supervisor stops it.
// fn runs on the service goroutine; a slow fn delays the next tick.
type TickerService struct {
	name     string
	interval time.Duration
	fn       func(ctx context.Context, now time.Time)
}

// NewTickerService creates a ticker service. A non-positive interval means 1s.
func NewTickerService(name string, interval time.Duration, fn func(ctx context.Context, now time.Time)) *TickerService {
	if interval <= 0 {
		interval = time.Second
	}
	return &TickerService{name: name, interval: interval, fn: fn}
}

// Serve implements suture.Service.
func (s *TickerService) Serve(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			s.fn(ctx, now)
		}
	}
}

// String implements fmt.Stringer for suture logging.
func (s *TickerService) String() string {
	return s.name
}
