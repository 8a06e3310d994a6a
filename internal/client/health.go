// StreamBoard - Media Stream Fleet Dashboard Runtime
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/streamboard

package client

import (
	"context"
	"sync"
	"time"

	"github.com/tomtom215/streamboard/internal/logging"
	"github.com/tomtom215/streamboard/internal/metrics"
	"github.com/tomtom215/streamboard/internal/models"
)

// Connectivity is the observed reachability of the control API.
type Connectivity string

const (
	ConnectivityChecking Connectivity = "checking"
	ConnectivityOnline   Connectivity = "online"
	ConnectivityOffline  Connectivity = "offline"
)

func (c Connectivity) gauge() float64 {
	switch c {
	case ConnectivityOnline:
		return 1
	case ConnectivityOffline:
		return 2
	default:
		return 0
	}
}

// Prober is the part of Client the health monitor uses.
type Prober interface {
	Health(ctx context.Context) (*models.HealthStatus, error)
}

// HealthMonitor polls the health endpoint and tracks connectivity.
// Probe failures only change the connectivity indicator.
type HealthMonitor struct {
	prober   Prober
	interval time.Duration

	mu          sync.RWMutex
	status      Connectivity
	lastErr     error
	lastChecked time.Time
	subs        map[int]chan Connectivity
	nextSub     int
}

// NewHealthMonitor creates a monitor in the checking state.
func NewHealthMonitor(prober Prober, interval time.Duration) *HealthMonitor {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	metrics.APIConnectivity.Set(ConnectivityChecking.gauge())
	return &HealthMonitor{
		prober:   prober,
		interval: interval,
		status:   ConnectivityChecking,
		subs:     make(map[int]chan Connectivity),
	}
}

// Serve implements suture.Service. It probes immediately, then every interval,
// and returns ctx.Err() when ctx is canceled.
func (m *HealthMonitor) Serve(ctx context.Context) error {
	m.Check(ctx)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			m.Check(ctx)
		}
	}
}

// String implements fmt.Stringer for suture logging.
func (m *HealthMonitor) String() string {
	return "health-monitor"
}

// Check runs one probe and returns the resulting connectivity.
func (m *HealthMonitor) Check(ctx context.Context) Connectivity {
	probeCtx, cancel := context.WithTimeout(ctx, m.interval)
	_, err := m.prober.Health(probeCtx)
	cancel()

	if ctx.Err() != nil {
		return m.Status()
	}

	next := ConnectivityOnline
	if err != nil {
		next = ConnectivityOffline
	}
	m.set(next, err)
	return next
}

func (m *HealthMonitor) set(next Connectivity, err error) {
	m.mu.Lock()
	prev := m.status
	m.status = next
	m.lastErr = err
	m.lastChecked = time.Now()
	var subs []chan Connectivity
	if prev != next {
		for _, ch := range m.subs {
			subs = append(subs, ch)
		}
	}
	m.mu.Unlock()

	if prev == next {
		return
	}
	metrics.APIConnectivity.Set(next.gauge())
	ev := logging.Info()
	if err != nil {
		ev = logging.Warn().Err(err)
	}
	ev.Str("from", string(prev)).Str("to", string(next)).Msg("Control API connectivity changed")

	for _, ch := range subs {
		// latest value wins for slow subscribers
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- next:
		default:
		}
	}
}

// Status returns the current connectivity.
func (m *HealthMonitor) Status() Connectivity {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

// LastCheck returns when the last probe completed and its error.
func (m *HealthMonitor) LastCheck() (time.Time, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastChecked, m.lastErr
}

// Subscribe returns a channel receiving connectivity changes and a cancel
// function. The channel holds only the most recent change.
func (m *HealthMonitor) Subscribe() (<-chan Connectivity, func()) {
	ch := make(chan Connectivity, 1)
	m.mu.Lock()
	id := m.nextSub
	m.nextSub++
	m.subs[id] = ch
	m.mu.Unlock()

	return ch, func() {
		m.mu.Lock()
		delete(m.subs, id)
		m.mu.Unlock()
	}
}
