// StreamBoard - Media Stream Fleet Dashboard Runtime
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/streamboard

package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/thejerf/suture/v4"

	"github.com/tomtom215/streamboard/internal/cache"
	"github.com/tomtom215/streamboard/internal/client"
	"github.com/tomtom215/streamboard/internal/config"
	"github.com/tomtom215/streamboard/internal/credentials"
	"github.com/tomtom215/streamboard/internal/eventstream"
	"github.com/tomtom215/streamboard/internal/logging"
	"github.com/tomtom215/streamboard/internal/metrics"
	"github.com/tomtom215/streamboard/internal/notify"
	"github.com/tomtom215/streamboard/internal/reconcile"
	"github.com/tomtom215/streamboard/internal/session"
	"github.com/tomtom215/streamboard/internal/supervisor"
	"github.com/tomtom215/streamboard/internal/supervisor/services"
)

// ReasonRebuild is the logout reason used when the backend variant changes.
const ReasonRebuild = "rebuild"

const guardReadyTimeout = 5 * time.Second

var (
	// ErrClosed is returned after Shutdown.
	ErrClosed = errors.New("app: runtime is shut down")

	// ErrNoEventStream is returned by Connect with the simulated backend.
	ErrNoEventStream = errors.New("app: simulated backend has no event stream")
)

// Options supplies optional pre-built collaborators. Nil fields are built
// from the configuration and owned by the runtime.
type Options struct {
	Store      *credentials.Store
	Bus        *notify.Bus
	HTTPClient *http.Client
	Dialer     *websocket.Dialer
}

// components are the pieces that depend on the backend variant.
type components struct {
	client client.Client
	sim    *client.SimulatedClient // nil with the remote backend
	stream *eventstream.Manager    // nil with the simulated backend
	health *client.HealthMonitor
	guard  *session.Guard

	guardToken suture.ServiceToken
	syncTokens []suture.ServiceToken
}

// Runtime owns every component of a running dashboard.
type Runtime struct {
	opts   Options
	logger zerolog.Logger

	store      *credentials.Store
	ownsStore  bool
	bus        *notify.Bus
	ownsBus    bool
	cache      *cache.Cache
	reconciler *reconcile.Reconciler

	base       context.Context // canceled by Shutdown; parent of background refreshes
	baseCancel context.CancelFunc
	wg         sync.WaitGroup

	lifeMu sync.Mutex // serializes Start, Rebuild and Shutdown

	mu        sync.RWMutex
	cfg       config.Config
	comp      *components
	tree      *supervisor.Tree
	runCancel context.CancelFunc
	treeErr   <-chan error
	started   bool
	closed    bool

	noticeMu sync.Mutex
	notices  []notify.Notice
}

// New builds the runtime. Nothing runs until Start or Login.
func New(ctx context.Context, cfg *config.Config, opts Options) (*Runtime, error) {
	if cfg == nil {
		return nil, errors.New("app: nil config")
	}

	r := &Runtime{
		opts:   opts,
		logger: logging.WithComponent("app"),
		store:  opts.Store,
		bus:    opts.Bus,
		cfg:    *cfg,
	}

	if r.store == nil {
		store, err := credentials.Open(credentials.Options{
			Path:          cfg.Storage.Path,
			InMemory:      cfg.Storage.InMemory,
			EncryptionKey: cfg.Storage.EncryptionKey,
		})
		if err != nil {
			return nil, fmt.Errorf("open credential store: %w", err)
		}
		r.store, r.ownsStore = store, true
	}
	if r.bus == nil {
		r.bus, r.ownsBus = notify.NewBus(), true
	}

	r.cache = cache.New()
	r.reconciler = reconcile.New(r.cache, r.bus)
	r.base, r.baseCancel = context.WithCancel(context.Background())

	comp, err := r.build(ctx, &r.cfg)
	if err != nil {
		r.baseCancel()
		r.closeOwned()
		return nil, err
	}
	r.comp = comp

	r.logger.Info().
		Str("variant", comp.client.Variant()).
		Bool("durable_storage", r.store.Durable()).
		Msg("[app] Runtime built")
	return r, nil
}

// build creates the variant-specific components for cfg.
func (r *Runtime) build(ctx context.Context, cfg *config.Config) (*components, error) {
	c, err := client.New(ctx, cfg, client.Deps{Signals: r.bus, HTTPClient: r.opts.HTTPClient, Keys: r.store})
	if err != nil {
		return nil, fmt.Errorf("build control API client: %w", err)
	}

	comp := &components{
		client: c,
		health: client.NewHealthMonitor(c, cfg.API.HealthInterval),
	}

	if sim, ok := c.(*client.SimulatedClient); ok {
		comp.sim = sim
	} else {
		comp.stream = eventstream.New(eventstream.Options{
			Config: cfg.Events,
			Tokens: r.store,
			Sink:   r.reconciler.Apply,
			OnOpen: func() { r.refreshAsync(comp, triggerReconnect) },
			OnStateChange: func(from, to eventstream.State) {
				r.logger.Debug().Str("from", from.String()).Str("to", to.String()).
					Msg("[app] Event stream state changed")
			},
			Dialer: r.opts.Dialer,
		})
	}

	deps := session.Deps{
		Tokens:      r.store,
		Client:      c,
		Cache:       r.cache,
		Preferences: r.store,
		Signals:     r.bus,
		OnWarning:   r.idleWarning,
		OnLogout:    r.loggedOut,
	}
	if comp.stream != nil {
		deps.Stream = comp.stream
	}
	comp.guard = session.NewGuard(cfg.Session, deps)
	return comp, nil
}

func (r *Runtime) current() *components {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.comp
}

// Start runs the supervised services, waits for the session guard to
// subscribe to auth.failed and restores a persisted session. ctx bounds the
// lifetime of the services.
func (r *Runtime) Start(ctx context.Context) error {
	r.lifeMu.Lock()
	defer r.lifeMu.Unlock()

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return ErrClosed
	}
	if r.started {
		r.mu.Unlock()
		return nil
	}

	runCtx, cancel := context.WithCancel(ctx)
	if err := r.bus.OnNotice(runCtx, r.recordNotice); err != nil {
		r.mu.Unlock()
		cancel()
		return fmt.Errorf("subscribe to notices: %w", err)
	}

	r.tree = supervisor.NewTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	comp := r.comp
	r.attach(comp)
	r.treeErr = r.tree.ServeBackground(runCtx)
	r.runCancel = cancel
	r.started = true
	r.mu.Unlock()

	if err := awaitGuard(ctx, comp.guard); err != nil {
		return err
	}
	r.restore(comp)

	r.logger.Info().Str("variant", comp.client.Variant()).Msg("[app] Runtime started")
	return nil
}

// AddConsoleService runs svc in the console layer of the supervision tree.
func (r *Runtime) AddConsoleService(svc suture.Service) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.tree == nil || r.closed {
		return errors.New("app: runtime not started")
	}
	r.tree.AddConsoleService(svc)
	return nil
}

// attach adds comp's services to the tree. Caller holds r.mu.
func (r *Runtime) attach(comp *components) {
	comp.guardToken = r.tree.AddSessionService(comp.guard)
	comp.syncTokens = append(comp.syncTokens[:0], r.tree.AddSyncService(comp.health))

	if comp.sim != nil && r.cfg.Simulated.FeedInterval > 0 {
		feed := services.NewTickerService("simulated-feed", r.cfg.Simulated.FeedInterval,
			func(_ context.Context, now time.Time) { r.feed(comp, now) })
		comp.syncTokens = append(comp.syncTokens, r.tree.AddSyncService(feed))
	}
}

// detach removes comp's services and stops its timers and connection.
func (r *Runtime) detach(tree *supervisor.Tree, comp *components) {
	if tree != nil {
		for _, token := range comp.syncTokens {
			if err := tree.RemoveSyncService(token); err != nil {
				r.logger.Warn().Err(err).Msg("[app] Sync service did not stop in time")
			}
		}
		if err := tree.RemoveSessionService(comp.guardToken); err != nil {
			r.logger.Warn().Err(err).Msg("[app] Session guard did not stop in time")
		}
	}
	comp.guard.Close()
	if comp.stream != nil {
		comp.stream.Stop()
	}
}

func awaitGuard(ctx context.Context, guard *session.Guard) error {
	timer := time.NewTimer(guardReadyTimeout)
	defer timer.Stop()
	select {
	case <-guard.Ready():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return errors.New("app: session guard did not subscribe to auth.failed")
	}
}

// restore adopts a persisted token and resumes the session.
func (r *Runtime) restore(comp *components) {
	if !comp.guard.Restore() {
		return
	}
	r.logger.Info().Msg("[app] Persisted session restored")
	r.startStream(comp)
	r.refreshAsync(comp, triggerRestore)
}

// startStream restarts the event stream when auto start is configured.
func (r *Runtime) startStream(comp *components) {
	if comp.stream == nil || !r.config().Events.AutoStart {
		return
	}
	if err := comp.stream.Restart(); err != nil {
		r.logger.Warn().Err(err).Msg("[app] Event stream not started")
	}
}

// feed applies the simulated backend's fabricated events while a session
// is active.
func (r *Runtime) feed(comp *components, now time.Time) {
	if !comp.guard.Authenticated() {
		return
	}
	gen := r.cache.Generation()
	for _, ev := range comp.sim.Feed(now) {
		r.reconciler.ApplyAt(gen, ev)
	}
}

func (r *Runtime) config() config.Config {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.cfg
}

// Rebuild switches between the remote and simulated backends. The current
// session is logged out because tokens are backend specific.
func (r *Runtime) Rebuild(ctx context.Context, simulated bool) error {
	r.lifeMu.Lock()
	defer r.lifeMu.Unlock()

	r.mu.RLock()
	if r.closed {
		r.mu.RUnlock()
		return ErrClosed
	}
	cfg := r.cfg
	r.mu.RUnlock()

	cfg.Simulated.Enabled = simulated
	next, err := r.build(ctx, &cfg)
	if err != nil {
		return err
	}

	old := r.current()
	old.guard.Logout(ReasonRebuild)
	next.guard.Inherit(old.guard.Snapshot())

	r.mu.Lock()
	tree := r.tree
	r.mu.Unlock()
	r.detach(tree, old)

	r.mu.Lock()
	r.cfg = cfg
	r.comp = next
	started := r.started
	if started {
		r.attach(next)
	}
	r.mu.Unlock()

	variant := next.client.Variant()
	metrics.RuntimeRebuilds.WithLabelValues(variant).Inc()
	r.logger.Info().Str("variant", variant).Msg("[app] Backend rebuilt")

	if started {
		return awaitGuard(ctx, next.guard)
	}
	return nil
}

// Shutdown stops every service and releases owned resources. The stored
// session survives for the next start.
func (r *Runtime) Shutdown(ctx context.Context) error {
	r.lifeMu.Lock()
	defer r.lifeMu.Unlock()

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	comp, cancel, treeErr := r.comp, r.runCancel, r.treeErr
	r.mu.Unlock()

	r.baseCancel()
	if comp.stream != nil {
		comp.stream.Stop()
	}
	comp.guard.Close()

	var errs []error
	if cancel != nil {
		cancel()
		select {
		case err := <-treeErr:
			if err != nil && !errors.Is(err, context.Canceled) {
				r.logger.Debug().Err(err).Msg("[app] Supervisor tree stopped")
			}
		case <-ctx.Done():
			errs = append(errs, fmt.Errorf("wait for services: %w", ctx.Err()))
		}
	}

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		errs = append(errs, fmt.Errorf("wait for refreshes: %w", ctx.Err()))
	}

	if err := r.closeOwned(); err != nil {
		errs = append(errs, err)
	}
	r.logger.Info().Msg("[app] Runtime stopped")
	return errors.Join(errs...)
}

func (r *Runtime) closeOwned() error {
	var errs []error
	if r.ownsBus && r.bus != nil {
		if err := r.bus.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close bus: %w", err))
		}
	}
	if r.ownsStore && r.store != nil {
		if err := r.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close credential store: %w", err))
		}
	}
	return errors.Join(errs...)
}

func (r *Runtime) idleWarning(deadline time.Time) {
	r.logger.Info().Time("deadline", deadline).Msg("[app] Session about to expire")
	err := r.bus.PublishNotice(notify.Notice{
		Kind:    NoticeIdleWarning,
		Message: "session expires at " + deadline.Format(time.RFC3339),
		At:      time.Now().UTC(),
	})
	if err != nil && !errors.Is(err, notify.ErrClosed) {
		r.logger.Debug().Err(err).Msg("[app] Idle warning notice not delivered")
	}
}

func (r *Runtime) loggedOut(reason, redirect string) {
	r.logger.Info().Str("reason", reason).Str("redirect", redirect).Msg("[app] Logged out")
}
