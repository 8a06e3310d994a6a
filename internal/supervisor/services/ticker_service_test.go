// StreamBoard - Media Stream Fleet Dashboard Runtime
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/streamboard

package services

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestTickerService_TicksUntilCanceled(t *testing.T) {
	var ticks atomic.Int32
	svc := NewTickerService("simulated-feed", 5*time.Millisecond, func(context.Context, time.Time) {
		ticks.Add(1)
	})

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- svc.Serve(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for ticks.Load() < 3 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	cancel()

	if err := <-errCh; !errors.Is(err, context.Canceled) {
		t.Errorf("Serve = %v", err)
	}
	if ticks.Load() < 3 {
		t.Errorf("ticks = %d, want >= 3", ticks.Load())
	}
	if svc.String() != "simulated-feed" {
		t.Errorf("String = %q", svc.String())
	}
}

func TestNewTickerService_DefaultInterval(t *testing.T) {
	svc := NewTickerService("x", 0, func(context.Context, time.Time) {})
	if svc.interval != time.Second {
		t.Errorf("interval = %v", svc.interval)
	}
}
