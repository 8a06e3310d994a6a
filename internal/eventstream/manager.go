// StreamBoard - Media Stream Fleet Dashboard Runtime
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/streamboard

package eventstream

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/tomtom215/streamboard/internal/config"
	"github.com/tomtom215/streamboard/internal/events"
	"github.com/tomtom215/streamboard/internal/logging"
	"github.com/tomtom215/streamboard/internal/metrics"
)

const (
	writeWait      = 10 * time.Second
	maxMessageSize = 512 * 1024
)

var (
	// ErrNoToken is recorded when a token is required and none is stored.
	ErrNoToken = errors.New("eventstream: no session token available")

	// ErrClosed is returned by Start on a closed manager; use Restart.
	ErrClosed = errors.New("eventstream: manager is closed")
)

// TokenSource supplies the bearer token for the handshake.
type TokenSource interface {
	LoadToken() (string, bool)
}

// Options configures a Manager.
type Options struct {
	Config config.EventsConfig

	// URL overrides Config.EventURL() when set.
	URL string

	Tokens TokenSource

	// Sink receives every decoded event on the read goroutine.
	Sink func(events.InboundEvent)

	// OnOpen runs on the connection goroutine each time a connection opens.
	// It must not block.
	OnOpen func()

	// OnStateChange is called after each transition.
	OnStateChange func(from, to State)

	Dialer *websocket.Dialer
}

// Manager maintains one event stream connection.
//
// Stop blocks until the connection goroutine has exited, so it must not be
// called from Sink, OnOpen or OnStateChange.
type Manager struct {
	opts    Options
	url     string
	dialer  *websocket.Dialer
	backoff *Backoff
	logger  zerolog.Logger

	mu       sync.Mutex
	state    State
	run      uint64 // incremented on every Start; stale runs may not transition
	cancel   context.CancelFunc
	done     chan struct{}
	failures int
	offline  bool
	lastErr  error
}

// New creates a manager in the Idle state.
func New(opts Options) *Manager {
	cfg := opts.Config
	dialer := opts.Dialer
	if dialer == nil {
		dialer = &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: cfg.HandshakeTimeout,
		}
	}
	url := opts.URL
	if url == "" {
		url = cfg.EventURL()
	}
	if opts.Sink == nil {
		opts.Sink = func(events.InboundEvent) {}
	}
	metrics.EventStreamState.Set(float64(StateIdle))
	return &Manager{
		opts:    opts,
		url:     url,
		dialer:  dialer,
		backoff: NewBackoff(cfg.BackoffMin, cfg.BackoffMax, cfg.BackoffMultiplier, cfg.BackoffJitter),
		logger:  logging.WithComponent("eventstream"),
		state:   StateIdle,
	}
}

// State returns the current state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Offline reports whether consecutive failures reached the offline threshold.
func (m *Manager) Offline() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.offline
}

// Failures returns the number of consecutive failed attempts.
func (m *Manager) Failures() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.failures
}

// LastError returns the most recent connection error, if any.
func (m *Manager) LastError() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastErr
}

// URL returns the event stream endpoint.
func (m *Manager) URL() string {
	return m.url
}

// Start moves Idle to Connecting and runs the connection in the background.
// It is a no-op when already running and fails with ErrClosed after Stop.
func (m *Manager) Start() error {
	m.mu.Lock()
	switch m.state {
	case StateClosed:
		m.mu.Unlock()
		return ErrClosed
	case StateIdle:
	default:
		m.mu.Unlock()
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	m.run++
	run := m.run
	m.cancel = cancel
	m.done = make(chan struct{})
	done := m.done
	m.mu.Unlock()

	go m.loop(ctx, run, done)
	return nil
}

// Stop tears the connection down and moves to Closed. It is idempotent.
func (m *Manager) Stop() {
	m.mu.Lock()
	cancel, done := m.cancel, m.done
	m.cancel, m.done = nil, nil
	from := m.state
	changed := m.state != StateClosed
	m.state = StateClosed
	m.run++
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
	if changed {
		m.logger.Info().Str("from", from.String()).Msg("[eventstream] Stopped")
		m.notify(from, StateClosed)
	}
}

// Restart stops any current connection and starts again from Idle.
func (m *Manager) Restart() error {
	m.Stop()

	m.mu.Lock()
	m.state = StateIdle
	m.failures = 0
	m.offline = false
	m.lastErr = nil
	m.backoff.Reset()
	m.mu.Unlock()

	metrics.SetOffline(false)
	m.notify(StateClosed, StateIdle)
	return m.Start()
}

// transition moves to next if run is current and the move is legal.
func (m *Manager) transition(run uint64, next State) bool {
	m.mu.Lock()
	if run != m.run || !canTransition(m.state, next) {
		m.mu.Unlock()
		return false
	}
	from := m.state
	m.state = next
	m.mu.Unlock()

	m.notify(from, next)
	return true
}

func (m *Manager) notify(from, to State) {
	metrics.RecordTransition(from.String(), to.String(), float64(to))
	if m.opts.OnStateChange != nil {
		m.opts.OnStateChange(from, to)
	}
}

func (m *Manager) loop(ctx context.Context, run uint64, done chan struct{}) {
	defer close(done)

	for ctx.Err() == nil {
		token := ""
		if m.opts.Tokens != nil {
			token, _ = m.opts.Tokens.LoadToken()
		}
		if token == "" && m.opts.Config.RequireToken {
			m.closeUnrecoverable(run, ErrNoToken)
			return
		}

		if !m.transition(run, StateConnecting) {
			return
		}
		conn, err := m.dial(ctx, token)
		if err != nil {
			if ctx.Err() != nil || !m.fail(ctx, run, err) {
				return
			}
			continue
		}

		if !m.opened(run) {
			_ = conn.Close()
			return
		}
		err = m.serve(ctx, run, conn)
		if ctx.Err() != nil || !m.fail(ctx, run, err) {
			return
		}
	}
}

func (m *Manager) dial(ctx context.Context, token string) (*websocket.Conn, error) {
	header := http.Header{}
	if token != "" {
		header.Set("Authorization", "Bearer "+token)
	}
	conn, resp, err := m.dialer.DialContext(ctx, m.url, header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("handshake rejected with status %d: %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("dial %s: %w", m.url, err)
	}
	return conn, nil
}

// opened records a successful handshake.
func (m *Manager) opened(run uint64) bool {
	if !m.transition(run, StateOpen) {
		return false
	}
	m.mu.Lock()
	wasOffline := m.offline
	m.failures = 0
	m.offline = false
	m.lastErr = nil
	m.backoff.Reset()
	m.mu.Unlock()

	metrics.SetOffline(false)
	ev := m.logger.Info().Str("url", m.url)
	if wasOffline {
		ev = ev.Bool("recovered", true)
	}
	ev.Msg("[eventstream] Connected")

	if m.opts.OnOpen != nil {
		m.opts.OnOpen()
	}
	return true
}

// fail moves to Reconnecting, waits the backoff delay and reports whether
// the loop should continue.
func (m *Manager) fail(ctx context.Context, run uint64, err error) bool {
	if !m.transition(run, StateReconnecting) {
		return false
	}

	m.mu.Lock()
	m.failures++
	m.lastErr = err
	failures := m.failures
	threshold := m.opts.Config.OfflineThreshold
	wentOffline := threshold > 0 && failures >= threshold && !m.offline
	if wentOffline {
		m.offline = true
	}
	delay := m.backoff.Next()
	m.mu.Unlock()

	metrics.EventStreamReconnects.Inc()
	if wentOffline {
		metrics.SetOffline(true)
		m.logger.Error().Err(err).Int("failures", failures).
			Msg("[eventstream] Event stream offline, still retrying")
	} else {
		m.logger.Warn().Err(err).Int("failures", failures).Dur("retry_in", delay).
			Msg("[eventstream] Connection failed")
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func (m *Manager) closeUnrecoverable(run uint64, err error) {
	m.mu.Lock()
	if run != m.run {
		m.mu.Unlock()
		return
	}
	from := m.state
	cancel := m.cancel
	m.state = StateClosed
	m.lastErr = err
	m.cancel = nil
	m.done = nil
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	m.logger.Error().Err(err).Msg("[eventstream] Cannot connect, closing")
	m.notify(from, StateClosed)
}

// serve reads until the connection fails or ctx is canceled.
func (m *Manager) serve(ctx context.Context, run uint64, conn *websocket.Conn) error {
	connCtx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	defer func() {
		cancel()
		_ = conn.Close()
		wg.Wait()
	}()

	pongWait := m.opts.Config.PongTimeout
	if pongWait <= 0 {
		pongWait = 60 * time.Second
	}
	pingPeriod := m.opts.Config.PingInterval
	if pingPeriod <= 0 || pingPeriod >= pongWait {
		pingPeriod = (pongWait * 9) / 10
	}

	conn.SetReadLimit(maxMessageSize)
	if err := conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		return err
	}
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	wg.Add(1)
	go func() {
		defer wg.Done()
		m.keepalive(connCtx, conn, pingPeriod)
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				return fmt.Errorf("server closed the event stream: %w", err)
			}
			return err
		}
		m.dispatch(run, data)
	}
}

// keepalive pings until ctx is done and closes conn on ctx cancellation so
// the blocked reader returns.
func (m *Manager) keepalive(ctx context.Context, conn *websocket.Conn, period time.Duration) {
	ticker := time.NewTicker(period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
			_ = conn.Close()
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				m.logger.Debug().Err(err).Msg("[eventstream] Ping failed")
				_ = conn.Close()
				return
			}
		}
	}
}

func (m *Manager) dispatch(run uint64, data []byte) {
	ev, err := events.Decode(data)
	if err != nil {
		metrics.EventsMalformed.Inc()
		m.logger.Warn().Err(err).Int("bytes", len(data)).Msg("[eventstream] Dropping malformed event")
		return
	}

	m.mu.Lock()
	current := run == m.run && m.state == StateOpen
	m.mu.Unlock()
	if !current {
		return
	}

	metrics.EventsReceived.WithLabelValues(string(ev.Kind)).Inc()
	m.opts.Sink(ev)
}
