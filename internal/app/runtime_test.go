// StreamBoard - Media Stream Fleet Dashboard Runtime
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/streamboard

package app

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/tomtom215/streamboard/internal/client"
	"github.com/tomtom215/streamboard/internal/config"
	"github.com/tomtom215/streamboard/internal/credentials"
	"github.com/tomtom215/streamboard/internal/eventstream"
	"github.com/tomtom215/streamboard/internal/models"
	"github.com/tomtom215/streamboard/internal/notify"
	"github.com/tomtom215/streamboard/internal/session"
)

const testToken = "remote-token-1"

func simulatedConfig() *config.Config {
	cfg := config.Default()
	cfg.Simulated.Enabled = true
	cfg.Simulated.SigningKey = "test-signing-key-with-enough-bytes"
	cfg.Simulated.FeedInterval = 0
	cfg.Storage.InMemory = true
	cfg.API.HealthInterval = 20 * time.Millisecond
	return cfg
}

func newRuntime(t *testing.T, cfg *config.Config, opts Options) *Runtime {
	t.Helper()
	r, err := New(context.Background(), cfg, opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := r.Shutdown(ctx); err != nil {
			t.Errorf("Shutdown: %v", err)
		}
	})
	return r
}

func startRuntime(t *testing.T, r *Runtime) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	if err := r.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
}

func openStore(t *testing.T) *credentials.Store {
	t.Helper()
	store, err := credentials.Open(credentials.Options{InMemory: true})
	if err != nil {
		t.Fatalf("credentials.Open: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

// controlServer fakes the control API and its event endpoint.
type controlServer struct {
	*httptest.Server
	upgrader websocket.Upgrader
	reject   atomic.Bool // answer authenticated calls with 401
	conns    atomic.Int32
	open     atomic.Int32
}

func newControlServer(t *testing.T) *controlServer {
	t.Helper()
	s := &controlServer{}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, models.HealthStatus{Status: "ok"})
	})
	mux.HandleFunc("/api/auth/login", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, models.LoginResponse{Token: testToken})
	})
	mux.HandleFunc("/api/streams", s.authorized(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, []models.Stream{{
			ID:             "cam-1",
			SourceURL:      "rtsp://cam-1.local/live",
			Status:         models.StatusRunning,
			RecordingState: models.RecordingIdle,
		}})
	}))
	mux.HandleFunc("/api/recordings", s.authorized(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, []models.Recording{{Filename: "cam-1_0001.mp4", StreamID: "cam-1"}})
	}))
	mux.HandleFunc("/ws", s.events)

	s.Server = httptest.NewServer(mux)
	t.Cleanup(s.Close)
	return s
}

func (s *controlServer) authorized(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.reject.Load() || r.Header.Get("Authorization") != "Bearer "+testToken {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "token rejected"})
			return
		}
		next(w, r)
	}
}

func (s *controlServer) events(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("Authorization") != "Bearer "+testToken {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer func() { _ = conn.Close() }()
	s.conns.Add(1)
	s.open.Add(1)
	defer s.open.Add(-1)

	warning := `{"type":"system.warning","message":"disk almost full","timestamp":"2026-03-01T10:00:00Z"}`
	if err := conn.WriteMessage(websocket.TextMessage, []byte(warning)); err != nil {
		return
	}
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// remoteConfig points the API and the event stream at s.
func (s *controlServer) remoteConfig(t *testing.T) *config.Config {
	t.Helper()
	u, err := url.Parse(s.URL)
	if err != nil {
		t.Fatalf("parse server URL: %v", err)
	}
	host, portStr, err := net.SplitHostPort(u.Host)
	if err != nil {
		t.Fatalf("split host: %v", err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		t.Fatalf("port: %v", err)
	}

	cfg := config.Default()
	cfg.API.BaseURL = s.URL
	cfg.API.Timeout = 2 * time.Second
	cfg.API.HealthInterval = 20 * time.Millisecond
	cfg.Events.Host = host
	cfg.Events.Port = port
	cfg.Events.BackoffMin = 5 * time.Millisecond
	cfg.Events.BackoffMax = 20 * time.Millisecond
	cfg.Events.HandshakeTimeout = time.Second
	cfg.Storage.InMemory = true
	return cfg
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestRuntime_LoginReturnsToIntendedView(t *testing.T) {
	r := newRuntime(t, simulatedConfig(), Options{})
	startRuntime(t, r)

	d := r.Navigate("/streams")
	if d.Allowed || d.Path != "/login" || d.Intended != "/streams" {
		t.Fatalf("Navigate(/streams) = %+v, want redirect to /login recording /streams", d)
	}

	target, err := r.Login(context.Background(), "operator", "secret")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if target != "/streams" {
		t.Errorf("Login target = %q, want /streams", target)
	}
	if got := len(r.Streams()); got != 3 {
		t.Errorf("cached streams after login = %d, want 3", got)
	}
	if got := len(r.Recordings()); got == 0 {
		t.Error("no recordings cached after login")
	}

	st := r.State()
	if !st.Session.Authenticated {
		t.Error("State().Session.Authenticated = false after login")
	}
	if st.Variant != client.VariantSimulated {
		t.Errorf("Variant = %q, want %q", st.Variant, client.VariantSimulated)
	}
	if st.Connection != ConnectionDisabled {
		t.Errorf("Connection = %q, want %q", st.Connection, ConnectionDisabled)
	}
}

func TestRuntime_LogoutClearsSessionState(t *testing.T) {
	store := openStore(t)
	r := newRuntime(t, simulatedConfig(), Options{Store: store})
	startRuntime(t, r)

	if _, err := r.Login(context.Background(), "operator", "secret"); err != nil {
		t.Fatalf("Login: %v", err)
	}
	if err := r.SetTheme(credentials.ThemeDark); err != nil {
		t.Fatalf("SetTheme: %v", err)
	}

	if !r.Logout() {
		t.Fatal("Logout() = false with an active session")
	}
	if r.Logout() {
		t.Error("second Logout() = true")
	}

	if _, ok := store.LoadToken(); ok {
		t.Error("token still stored after logout")
	}
	if got := len(r.Streams()); got != 0 {
		t.Errorf("cached streams after logout = %d, want 0", got)
	}
	s := r.Session()
	if s.Authenticated || s.Location != "/login" || s.LastLogout != session.ReasonUser {
		t.Errorf("session after logout = %+v", s)
	}
	if got := r.Theme(); got != credentials.ThemeDark {
		t.Errorf("Theme() = %q after logout, want preference kept", got)
	}
}

func TestRuntime_CommandsRequireSession(t *testing.T) {
	r := newRuntime(t, simulatedConfig(), Options{})
	ctx := context.Background()

	checks := []struct {
		name string
		call func() error
	}{
		{"Refresh", func() error { return r.Refresh(ctx) }},
		{"ListStreams", func() error { _, err := r.ListStreams(ctx, models.StreamFilter{}); return err }},
		{"StartRecording", func() error { _, err := r.StartRecording(ctx, "lobby-cam"); return err }},
		{"DeleteStream", func() error { return r.DeleteStream(ctx, "lobby-cam") }},
		{"GetConfig", func() error { _, err := r.GetConfig(ctx); return err }},
		{"Connect", r.Connect},
	}
	for _, tc := range checks {
		if err := tc.call(); !errors.Is(err, session.ErrNotAuthenticated) {
			t.Errorf("%s error = %v, want ErrNotAuthenticated", tc.name, err)
		}
	}
}

func TestRuntime_StreamCommandsUpdateCache(t *testing.T) {
	r := newRuntime(t, simulatedConfig(), Options{})
	ctx := context.Background()
	if _, err := r.Login(ctx, "operator", "secret"); err != nil {
		t.Fatalf("Login: %v", err)
	}

	if _, err := r.StopRecording(ctx, "lobby-cam"); err != nil {
		t.Fatalf("StopRecording: %v", err)
	}
	e, ok := r.Stream("lobby-cam")
	if !ok || e.RecordingState != models.RecordingIdle {
		t.Errorf("lobby-cam after StopRecording = %+v, want recording idle", e)
	}

	created, err := r.CreateStream(ctx, &models.CreateStreamRequest{ID: "gate-cam", SourceURL: "rtsp://gate.local/live"})
	if err != nil {
		t.Fatalf("CreateStream: %v", err)
	}
	if _, ok := r.Stream(created.ID); !ok {
		t.Error("created stream not cached")
	}

	if err := r.DeleteStream(ctx, "gate-cam"); err != nil {
		t.Fatalf("DeleteStream: %v", err)
	}
	if _, ok := r.Stream("gate-cam"); ok {
		t.Error("deleted stream still cached")
	}

	_, err = r.StartRecording(ctx, "no-such-cam")
	if !errors.Is(err, client.ErrNotFound) {
		t.Errorf("StartRecording(unknown) error = %v, want ErrNotFound", err)
	}

	if err := r.Connect(); !errors.Is(err, ErrNoEventStream) {
		t.Errorf("Connect() with simulated backend = %v, want ErrNoEventStream", err)
	}
}

func TestRuntime_SimulatedRejectionLogsOut(t *testing.T) {
	store := openStore(t)
	r := newRuntime(t, simulatedConfig(), Options{Store: store})
	startRuntime(t, r)

	if _, err := r.Login(context.Background(), "operator", "secret"); err != nil {
		t.Fatalf("Login: %v", err)
	}
	r.Navigate("/recordings")
	r.current().sim.Revoke()

	err := r.Refresh(context.Background())
	if !errors.Is(err, client.ErrAuthenticationFailed) {
		t.Fatalf("Refresh error = %v, want ErrAuthenticationFailed", err)
	}

	s := r.Session()
	if s.Authenticated || s.Location != "/login" || s.Intended != "/recordings" {
		t.Errorf("session = %+v, want login view keeping /recordings", s)
	}
	if s.LastLogout != session.ReasonAuthFailed {
		t.Errorf("LastLogout = %q, want %q", s.LastLogout, session.ReasonAuthFailed)
	}
	if _, ok := store.LoadToken(); ok {
		t.Error("token still stored")
	}
}

func TestRuntime_RemoteUnauthorizedStopsEventStream(t *testing.T) {
	srv := newControlServer(t)
	store := openStore(t)
	r := newRuntime(t, srv.remoteConfig(t), Options{Store: store})
	startRuntime(t, r)

	if d := r.Navigate("/streams"); d.Allowed {
		t.Fatalf("Navigate(/streams) allowed before login")
	}
	target, err := r.Login(context.Background(), "operator", "secret")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if target != "/streams" {
		t.Errorf("Login target = %q, want /streams", target)
	}

	waitFor(t, "event stream open", func() bool {
		return r.State().Connection == eventstream.StateOpen.String()
	})
	waitFor(t, "server notice", func() bool {
		for _, n := range r.Notices() {
			if n.Message == "disk almost full" {
				return true
			}
		}
		return false
	})
	if _, ok := r.Stream("cam-1"); !ok {
		t.Fatal("cam-1 not cached after login")
	}

	srv.reject.Store(true)
	err = r.Refresh(context.Background())
	if !errors.Is(err, client.ErrAuthenticationFailed) {
		t.Fatalf("Refresh error = %v, want ErrAuthenticationFailed", err)
	}

	// The auth.failed handler has finished by the time the publisher returns.
	st := r.State()
	if st.Session.Authenticated || st.Session.Location != "/login" {
		t.Errorf("session = %+v, want logged out at /login", st.Session)
	}
	if st.Session.Intended != "/streams" {
		t.Errorf("Intended = %q, want /streams", st.Session.Intended)
	}
	if st.Connection != eventstream.StateClosed.String() {
		t.Errorf("Connection = %q, want closed", st.Connection)
	}
	if st.Streams != 0 || st.Recordings != 0 {
		t.Errorf("cache not reset: %d streams, %d recordings", st.Streams, st.Recordings)
	}
	if _, ok := store.LoadToken(); ok {
		t.Error("token still stored")
	}
	waitFor(t, "server side socket closed", func() bool { return srv.open.Load() == 0 })
}

func TestRuntime_RestoresPersistedSession(t *testing.T) {
	tests := []struct {
		name  string
		setup func(t *testing.T) (*config.Config, Options)
	}{
		{"configured signing key", func(t *testing.T) (*config.Config, Options) {
			return simulatedConfig(), Options{Store: openStore(t)}
		}},
		{"stored signing key", func(t *testing.T) (*config.Config, Options) {
			cfg := simulatedConfig()
			cfg.Simulated.SigningKey = ""
			cfg.Storage.InMemory = false
			cfg.Storage.Path = t.TempDir()
			return cfg, Options{}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, opts := tt.setup(t)

			first, err := New(context.Background(), cfg, opts)
			if err != nil {
				t.Fatalf("New: %v", err)
			}
			if _, err := first.Login(context.Background(), "operator", "secret"); err != nil {
				t.Fatalf("Login: %v", err)
			}
			if err := first.Shutdown(context.Background()); err != nil {
				t.Fatalf("Shutdown: %v", err)
			}

			second := newRuntime(t, cfg, opts)
			startRuntime(t, second)

			if !second.Session().Authenticated {
				t.Fatal("persisted session not restored")
			}
			if err := second.Refresh(context.Background()); err != nil {
				t.Fatalf("Refresh after restore: %v", err)
			}
			if s := second.Session(); !s.Authenticated || s.LastLogout != "" {
				t.Errorf("session after refresh = %+v", s)
			}
			if got := len(second.Streams()); got != 3 {
				t.Errorf("streams = %d, want 3", got)
			}
		})
	}
}

func TestRuntime_RebuildSwitchesVariantAndLogsOut(t *testing.T) {
	srv := newControlServer(t)
	r := newRuntime(t, srv.remoteConfig(t), Options{})
	startRuntime(t, r)

	if _, err := r.Login(context.Background(), "operator", "secret"); err != nil {
		t.Fatalf("Login: %v", err)
	}
	if got := r.Variant(); got != client.VariantRemote {
		t.Fatalf("Variant = %q, want remote", got)
	}
	if d := r.Navigate("/streams"); !d.Allowed {
		t.Fatalf("Navigate(/streams) = %+v, want allowed", d)
	}

	if err := r.Rebuild(context.Background(), true); err != nil {
		t.Fatalf("Rebuild: %v", err)
	}
	if got := r.Variant(); got != client.VariantSimulated {
		t.Errorf("Variant after rebuild = %q, want simulated", got)
	}
	s := r.Session()
	if s.Authenticated || s.LastLogout != ReasonRebuild || s.Intended != "/streams" {
		t.Errorf("session after rebuild = %+v", s)
	}
	waitFor(t, "old event stream closed", func() bool { return srv.open.Load() == 0 })

	target, err := r.Login(context.Background(), "operator", "secret")
	if err != nil {
		t.Fatalf("Login after rebuild: %v", err)
	}
	if target != "/streams" {
		t.Errorf("login target after rebuild = %q, want /streams", target)
	}
	if got := len(r.Streams()); got != 3 {
		t.Errorf("simulated streams = %d, want 3", got)
	}
}

func TestRuntime_SimulatedFeedAppliesEvents(t *testing.T) {
	cfg := simulatedConfig()
	cfg.Simulated.FeedInterval = 10 * time.Millisecond
	r := newRuntime(t, cfg, Options{})
	startRuntime(t, r)

	if _, err := r.Login(context.Background(), "operator", "secret"); err != nil {
		t.Fatalf("Login: %v", err)
	}
	waitFor(t, "fabricated metrics", func() bool {
		e, ok := r.Stream("lobby-cam")
		return ok && !e.LastEventAt.IsZero()
	})
}

func TestRuntime_NoticeHistoryIsBounded(t *testing.T) {
	r := newRuntime(t, simulatedConfig(), Options{})

	for i := 0; i < maxNotices+10; i++ {
		r.recordNotice(notify.Notice{Kind: "system.warning", Message: strconv.Itoa(i)})
	}
	got := r.Notices()
	if len(got) != maxNotices {
		t.Fatalf("len(Notices) = %d, want %d", len(got), maxNotices)
	}
	if got[0].Message != "10" || got[len(got)-1].Message != strconv.Itoa(maxNotices+9) {
		t.Errorf("notices span %q..%q, want 10..%d", got[0].Message, got[len(got)-1].Message, maxNotices+9)
	}
}

func TestRuntime_StartAfterShutdown(t *testing.T) {
	r, err := New(context.Background(), simulatedConfig(), Options{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := r.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	if err := r.Start(context.Background()); !errors.Is(err, ErrClosed) {
		t.Errorf("Start after Shutdown = %v, want ErrClosed", err)
	}
	if err := r.Shutdown(context.Background()); err != nil {
		t.Errorf("second Shutdown: %v", err)
	}
}
