// StreamBoard - Media Stream Fleet Dashboard Runtime
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/streamboard

package session

import (
	"context"
	"errors"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/tomtom215/streamboard/internal/config"
	"github.com/tomtom215/streamboard/internal/credentials"
	"github.com/tomtom215/streamboard/internal/logging"
	"github.com/tomtom215/streamboard/internal/metrics"
	"github.com/tomtom215/streamboard/internal/notify"
)

// Logout reasons
const (
	ReasonUser        = "user"
	ReasonIdleTimeout = "idle_timeout"
	ReasonAuthFailed  = "auth_failed"
)

var (
	// ErrNotAuthenticated is returned by operations that need a session.
	ErrNotAuthenticated = errors.New("session: not authenticated")

	// ErrEmptyToken is returned by CompleteLogin without a token.
	ErrEmptyToken = errors.New("session: empty token")
)

// TokenSetter is the API client's token entry point.
type TokenSetter interface {
	SetToken(token string)
}

// Stopper is the event stream connection.
type Stopper interface {
	Stop()
}

// Resetter is the entity cache.
type Resetter interface {
	Reset()
}

// PreferenceClearer drops stored display preferences.
type PreferenceClearer interface {
	ClearPreferences()
}

// AuthSubscriber delivers auth.failed signals.
type AuthSubscriber interface {
	OnAuthFailed(ctx context.Context, fn func(notify.AuthFailure)) error
}

// Deps are the components the logout sequence acts on.
type Deps struct {
	Tokens      credentials.TokenStore
	Client      TokenSetter
	Stream      Stopper
	Cache       Resetter
	Preferences PreferenceClearer // used when clear_preferences_on_logout is set
	Signals     AuthSubscriber

	// OnWarning is called when the idle warning is raised.
	OnWarning func(deadline time.Time)
	// OnLogout is called after every completed logout.
	OnLogout func(reason, redirect string)
}

// Decision is the outcome of a navigation.
type Decision struct {
	Allowed  bool   `json:"allowed"`
	Path     string `json:"path"`               // where the user ends up
	Intended string `json:"intended,omitempty"` // recorded destination when redirected
}

// Redirected reports whether the user was sent somewhere else.
func (d Decision) Redirected() bool { return !d.Allowed }

// Snapshot is an observable copy of the session.
type Snapshot struct {
	Authenticated bool      `json:"authenticated"`
	Location      string    `json:"location"`
	Intended      string    `json:"intended,omitempty"`
	IssuedAt      time.Time `json:"issued_at,omitempty"`
	IdleDeadline  time.Time `json:"idle_deadline,omitempty"`
	Warning       bool      `json:"warning"`
	LastLogout    string    `json:"last_logout,omitempty"`
}

// Guard owns the session.
type Guard struct {
	cfg   config.SessionConfig
	deps  Deps
	audit *logging.SessionLogger
	now   func() time.Time

	logoutMu sync.Mutex // serializes the logout sequence

	ready     chan struct{} // closed after the first successful Watch
	readyOnce sync.Once

	mu            sync.Mutex
	token         string
	authenticated bool
	issuedAt      time.Time
	deadline      time.Time
	warning       bool
	location      string
	intended      string
	lastLogout    string
	timerGen      uint64
	warnTimer     *time.Timer
	idleTimer     *time.Timer
}

// NewGuard creates an unauthenticated guard at the login view.
func NewGuard(cfg config.SessionConfig, deps Deps) *Guard {
	if cfg.LoginPath == "" {
		cfg.LoginPath = "/login"
	}
	if cfg.DefaultView == "" {
		cfg.DefaultView = "/dashboard"
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = 30 * time.Minute
	}
	if cfg.WarningGrace < 0 || cfg.WarningGrace >= cfg.IdleTimeout {
		cfg.WarningGrace = cfg.IdleTimeout / 10
	}
	metrics.SessionAuthenticated.Set(0)
	return &Guard{
		cfg:      cfg,
		deps:     deps,
		audit:    logging.NewSessionLogger(),
		now:      time.Now,
		location: cfg.LoginPath,
		ready:    make(chan struct{}),
	}
}

// Inherit carries the recorded destination and last logout reason of a
// replaced guard into g. It does not copy the token.
func (g *Guard) Inherit(prior Snapshot) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.authenticated {
		return
	}
	if prior.Intended != "" {
		g.intended = normalize(prior.Intended, g.cfg.DefaultView)
	}
	if prior.LastLogout != "" {
		g.lastLogout = prior.LastLogout
	}
}

// Restore adopts a persisted token. Expired JWTs are discarded. It reports
// whether a session was restored.
func (g *Guard) Restore() bool {
	if g.deps.Tokens == nil {
		return false
	}
	token, ok := g.deps.Tokens.LoadToken()
	if !ok || token == "" {
		return false
	}

	issued, expires := tokenTimes(token)
	now := g.now()
	if !expires.IsZero() && !now.Before(expires) {
		g.deps.Tokens.ClearToken()
		g.audit.LogEvent(&logging.SessionEvent{Event: "restore_discarded", Reason: "expired", Token: token})
		return false
	}
	if issued.IsZero() {
		issued = now
	}

	g.mu.Lock()
	g.token = token
	g.authenticated = true
	g.issuedAt = issued
	g.location = g.cfg.DefaultView
	g.armLocked()
	g.mu.Unlock()

	if g.deps.Client != nil {
		g.deps.Client.SetToken(token)
	}
	metrics.SessionAuthenticated.Set(1)
	g.audit.LogEvent(&logging.SessionEvent{Event: "restore", Token: token})
	return true
}

// tokenTimes reads iat and exp from a JWT without verifying it. Opaque
// tokens yield zero times.
func tokenTimes(token string) (issued, expires time.Time) {
	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, time.Time{}
	}
	if claims.IssuedAt != nil {
		issued = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		expires = claims.ExpiresAt.Time
	}
	return issued, expires
}

// Watch subscribes to auth.failed. The subscription ends with ctx.
func (g *Guard) Watch(ctx context.Context) error {
	if g.deps.Signals != nil {
		err := g.deps.Signals.OnAuthFailed(ctx, func(f notify.AuthFailure) {
			logging.Warn().Str("operation", f.Operation).Int("status", f.StatusCode).
				Msg("[session] Server rejected the session token")
			g.Logout(ReasonAuthFailed)
		})
		if err != nil {
			return err
		}
	}
	g.readyOnce.Do(func() { close(g.ready) })
	return nil
}

// Ready is closed once the guard is subscribed to auth.failed.
func (g *Guard) Ready() <-chan struct{} {
	return g.ready
}

// Serve implements suture.Service.
func (g *Guard) Serve(ctx context.Context) error {
	if err := g.Watch(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	return ctx.Err()
}

// String implements fmt.Stringer for suture logging.
func (g *Guard) String() string {
	return "session-guard"
}

// Close stops the idle timers without logging out.
func (g *Guard) Close() {
	g.mu.Lock()
	g.disarmLocked()
	g.mu.Unlock()
}

// Authenticated reports whether a token is held and the idle deadline has not passed.
func (g *Guard) Authenticated() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.authenticatedLocked()
}

func (g *Guard) authenticatedLocked() bool {
	return g.authenticated && g.token != "" && g.now().Before(g.deadline)
}

// Snapshot returns the current session state.
func (g *Guard) Snapshot() Snapshot {
	g.mu.Lock()
	defer g.mu.Unlock()
	s := Snapshot{
		Authenticated: g.authenticatedLocked(),
		Location:      g.location,
		Intended:      g.intended,
		Warning:       g.warning,
		LastLogout:    g.lastLogout,
	}
	if s.Authenticated {
		s.IssuedAt = g.issuedAt
		s.IdleDeadline = g.deadline
	}
	return s
}

// LoginPath returns the login view path.
func (g *Guard) LoginPath() string { return g.cfg.LoginPath }

// Navigate decides whether target may be shown.
func (g *Guard) Navigate(target string) Decision {
	target = normalize(target, g.cfg.DefaultView)

	g.mu.Lock()
	expired := g.authenticated && !g.now().Before(g.deadline)
	g.mu.Unlock()
	if expired {
		g.Logout(ReasonIdleTimeout)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if target == g.cfg.LoginPath {
		if g.authenticatedLocked() {
			g.location = g.cfg.DefaultView
			return Decision{Allowed: false, Path: g.cfg.DefaultView}
		}
		g.location = target
		return Decision{Allowed: true, Path: target}
	}

	if !g.authenticatedLocked() {
		g.intended = target
		g.location = g.cfg.LoginPath
		metrics.SessionRedirects.Inc()
		return Decision{Allowed: false, Path: g.cfg.LoginPath, Intended: target}
	}

	g.location = target
	g.touchLocked()
	return Decision{Allowed: true, Path: target}
}

// CompleteLogin stores token, starts the idle timer and returns the view to
// show: the recorded destination, or the default view.
func (g *Guard) CompleteLogin(token string) (string, error) {
	if token == "" {
		return "", ErrEmptyToken
	}
	if g.deps.Tokens != nil {
		g.deps.Tokens.SaveToken(token)
	}
	if g.deps.Client != nil {
		g.deps.Client.SetToken(token)
	}

	issued, _ := tokenTimes(token)
	if issued.IsZero() {
		issued = g.now()
	}

	g.mu.Lock()
	g.token = token
	g.authenticated = true
	g.issuedAt = issued
	target := g.intended
	if target == "" {
		target = g.cfg.DefaultView
	}
	g.intended = ""
	g.location = target
	g.armLocked()
	g.mu.Unlock()

	metrics.SessionAuthenticated.Set(1)
	g.audit.LogEvent(&logging.SessionEvent{Event: "login", Token: token, Location: target})
	return target, nil
}

// Touch records activity and pushes the idle deadline forward. It is a
// no-op without a session.
func (g *Guard) Touch() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.authenticatedLocked() {
		g.touchLocked()
	}
}

// Extend renews the session after an idle warning.
func (g *Guard) Extend() (time.Time, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.authenticatedLocked() {
		return time.Time{}, ErrNotAuthenticated
	}
	g.touchLocked()
	return g.deadline, nil
}

func (g *Guard) touchLocked() {
	g.armLocked()
}

// armLocked sets a fresh deadline and schedules the warning and logout timers.
func (g *Guard) armLocked() {
	g.disarmLocked()
	g.warning = false
	g.deadline = g.now().Add(g.cfg.IdleTimeout)
	gen := g.timerGen

	g.warnTimer = time.AfterFunc(g.cfg.IdleTimeout-g.cfg.WarningGrace, func() { g.warn(gen) })
	g.idleTimer = time.AfterFunc(g.cfg.IdleTimeout, func() { g.expire(gen) })
}

// disarmLocked cancels both timers; callbacks already running see a stale generation.
func (g *Guard) disarmLocked() {
	g.timerGen++
	if g.warnTimer != nil {
		g.warnTimer.Stop()
		g.warnTimer = nil
	}
	if g.idleTimer != nil {
		g.idleTimer.Stop()
		g.idleTimer = nil
	}
}

func (g *Guard) warn(gen uint64) {
	g.mu.Lock()
	if gen != g.timerGen || !g.authenticated {
		g.mu.Unlock()
		return
	}
	g.warning = true
	deadline, location := g.deadline, g.location
	g.mu.Unlock()

	g.audit.LogEvent(&logging.SessionEvent{Event: "idle_warning", Location: location})
	if g.deps.OnWarning != nil {
		g.deps.OnWarning(deadline)
	}
}

func (g *Guard) expire(gen uint64) {
	g.mu.Lock()
	current := gen == g.timerGen
	g.mu.Unlock()
	if current {
		g.Logout(ReasonIdleTimeout)
	}
}

// Logout ends the session: clear the stored token, detach it from the API
// client, stop the event stream, reset the cache and move to the login view
// keeping the current protected location as the destination after the next
// login. It reports whether a session was ended; repeated calls do nothing.
func (g *Guard) Logout(reason string) bool {
	g.logoutMu.Lock()
	defer g.logoutMu.Unlock()

	g.mu.Lock()
	if !g.authenticated && g.token == "" {
		g.mu.Unlock()
		return false
	}
	token := g.token
	g.token = ""
	g.authenticated = false
	g.issuedAt = time.Time{}
	g.deadline = time.Time{}
	g.warning = false
	g.disarmLocked()
	if g.location != g.cfg.LoginPath && g.location != "" {
		g.intended = g.location
	}
	g.location = g.cfg.LoginPath
	g.lastLogout = reason
	intended := g.intended
	g.mu.Unlock()

	if g.deps.Tokens != nil {
		g.deps.Tokens.ClearToken()
	}
	if g.deps.Client != nil {
		g.deps.Client.SetToken("")
	}
	if g.deps.Stream != nil {
		g.deps.Stream.Stop()
	}
	if g.deps.Cache != nil {
		g.deps.Cache.Reset()
	}
	if g.cfg.ClearPreferencesOnLogout && g.deps.Preferences != nil {
		g.deps.Preferences.ClearPreferences()
	}

	metrics.SessionAuthenticated.Set(0)
	metrics.SessionLogouts.WithLabelValues(reason).Inc()
	g.audit.LogEvent(&logging.SessionEvent{Event: "logout", Reason: reason, Token: token, Location: intended})

	if g.deps.OnLogout != nil {
		g.deps.OnLogout(reason, g.cfg.LoginPath)
	}
	return true
}

// normalize cleans a view path; empty becomes fallback.
func normalize(p, fallback string) string {
	p = strings.TrimSpace(p)
	if p == "" || p == "/" {
		return fallback
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return path.Clean(p)
}
