// StreamBoard - Media Stream Fleet Dashboard Runtime
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/streamboard

package client

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/tomtom215/streamboard/internal/config"
	"github.com/tomtom215/streamboard/internal/metrics"
	"github.com/tomtom215/streamboard/internal/models"
	"github.com/tomtom215/streamboard/internal/notify"
)

// signalRecorder captures auth.failed publications.
type signalRecorder struct {
	mu       sync.Mutex
	failures []notify.AuthFailure
}

func (r *signalRecorder) PublishAuthFailed(f notify.AuthFailure) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures = append(r.failures, f)
	return nil
}

func (r *signalRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.failures)
}

func newTestRemote(t *testing.T, handler http.Handler) (*RemoteClient, *signalRecorder) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	signals := &signalRecorder{}
	c, err := NewRemoteClient(&config.APIConfig{BaseURL: srv.URL, Timeout: 2 * time.Second}, signals, nil)
	if err != nil {
		t.Fatalf("NewRemoteClient: %v", err)
	}
	return c, signals
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestNewRemoteClient_RejectsBadBaseURL(t *testing.T) {
	t.Parallel()

	for _, raw := range []string{"ftp://example.com", "://nope"} {
		if _, err := NewRemoteClient(&config.APIConfig{BaseURL: raw}, nil, nil); err == nil {
			t.Errorf("NewRemoteClient(%q) succeeded", raw)
		}
	}
}

func TestRemoteClient_ListStreamsSendsTokenAndFilter(t *testing.T) {
	t.Parallel()

	var gotAuth, gotQuery string
	c, _ := newTestRemote(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/streams" || r.Method != http.MethodGet {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		gotQuery = r.URL.RawQuery
		writeJSON(w, http.StatusOK, []models.Stream{{ID: "cam-1", Status: models.StatusRunning}})
	}))

	c.SetToken("tok-123")
	recording := true
	streams, err := c.ListStreams(context.Background(), models.StreamFilter{Status: models.StatusRunning, Recording: &recording})
	if err != nil {
		t.Fatalf("ListStreams: %v", err)
	}
	if len(streams) != 1 || streams[0].ID != "cam-1" {
		t.Errorf("streams = %+v", streams)
	}
	if gotAuth != "Bearer tok-123" {
		t.Errorf("Authorization = %q", gotAuth)
	}
	if gotQuery != "recording=true&status=running" {
		t.Errorf("query = %q", gotQuery)
	}
}

func TestRemoteClient_NoTokenNoHeader(t *testing.T) {
	t.Parallel()

	c, _ := newTestRemote(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h := r.Header.Get("Authorization"); h != "" {
			t.Errorf("Authorization = %q, want empty", h)
		}
		writeJSON(w, http.StatusOK, models.HealthStatus{Status: "ok"})
	}))

	h, err := c.Health(context.Background())
	if err != nil || h.Status != "ok" {
		t.Fatalf("Health = %+v, %v", h, err)
	}
}

func TestRemoteClient_StatusMapping(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		status     int
		wantErr    error
		wantSignal bool
	}{
		{"unauthorized", http.StatusUnauthorized, ErrAuthenticationFailed, true},
		{"forbidden", http.StatusForbidden, ErrAuthenticationFailed, true},
		{"bad gateway", http.StatusBadGateway, ErrUnavailable, false},
		{"service unavailable", http.StatusServiceUnavailable, ErrUnavailable, false},
		{"gateway timeout", http.StatusGatewayTimeout, ErrUnavailable, false},
		{"not found", http.StatusNotFound, ErrNotFound, false},
		{"conflict", http.StatusConflict, ErrInvalidRequest, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			c, signals := newTestRemote(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, tt.status, map[string]string{"error": "boom"})
			}))

			_, err := c.GetConfig(context.Background())
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			var ce *Error
			if !errors.As(err, &ce) || ce.StatusCode != tt.status || ce.Message != "boom" {
				t.Errorf("error detail = %+v", ce)
			}
			if got := signals.count() == 1; got != tt.wantSignal {
				t.Errorf("auth signal published = %v, want %v", got, tt.wantSignal)
			}
		})
	}
}

func TestRemoteClient_InternalErrorIsNotUnavailable(t *testing.T) {
	t.Parallel()

	c, _ := newTestRemote(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "kaboom", http.StatusInternalServerError)
	}))

	_, err := c.GetConfig(context.Background())
	if err == nil || errors.Is(err, ErrUnavailable) || KindOf(err) != KindServer {
		t.Fatalf("err = %v, want server error", err)
	}
}

func TestRemoteClient_HealthNeverSignals(t *testing.T) {
	t.Parallel()

	c, signals := newTestRemote(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))

	if _, err := c.Health(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if n := signals.count(); n != 0 {
		t.Errorf("health probe published %d auth signals", n)
	}
}

func TestRemoteClient_LoginRejectedIsInvalidCredentials(t *testing.T) {
	t.Parallel()

	c, signals := newTestRemote(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "bad password"})
	}))

	_, err := c.Login(context.Background(), &models.LoginRequest{Username: "op", Password: "wrong"})
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("err = %v, want ErrInvalidCredentials", err)
	}
	if signals.count() != 0 {
		t.Error("login rejection must not raise auth.failed")
	}
}

func TestRemoteClient_LoginReturnsToken(t *testing.T) {
	t.Parallel()

	c, _ := newTestRemote(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		if !strings.Contains(string(body), `"username":"op"`) {
			t.Errorf("body = %s", body)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Content-Type = %q", ct)
		}
		writeJSON(w, http.StatusOK, models.LoginResponse{Token: "jwt"})
	}))

	resp, err := c.Login(context.Background(), &models.LoginRequest{Username: "op", Password: "pw"})
	if err != nil || resp.Token != "jwt" {
		t.Fatalf("Login = %+v, %v", resp, err)
	}
}

func TestRemoteClient_TransportFailureIsUnavailable(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c, err := NewRemoteClient(&config.APIConfig{BaseURL: url, Timeout: time.Second}, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := c.ListStreams(context.Background(), models.StreamFilter{}); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("err = %v, want ErrUnavailable", err)
	}
}

func TestRemoteClient_CanceledContext(t *testing.T) {
	t.Parallel()

	c, _ := newTestRemote(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, []models.Stream{})
	}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.ListStreams(ctx, models.StreamFilter{})
	if !errors.Is(err, context.Canceled) || KindOf(err) != KindCanceled {
		t.Fatalf("err = %v, want canceled", err)
	}
}

func TestRemoteClient_ValidationBeforeRequest(t *testing.T) {
	t.Parallel()

	var hits int
	c, _ := newTestRemote(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.WriteHeader(http.StatusOK)
	}))

	ctx := context.Background()
	_, err := c.CreateStream(ctx, &models.CreateStreamRequest{ID: "bad id!", SourceURL: "not a url"})
	if !errors.Is(err, ErrInvalidRequest) {
		t.Errorf("CreateStream err = %v", err)
	}
	if err := c.DeleteStream(ctx, ""); !errors.Is(err, ErrInvalidRequest) {
		t.Errorf("DeleteStream err = %v", err)
	}
	if _, err := c.UpdateConfig(ctx, models.ConfigPatch{"network": {}}); !errors.Is(err, ErrInvalidRequest) {
		t.Errorf("UpdateConfig err = %v", err)
	}
	if hits != 0 {
		t.Errorf("server hit %d times", hits)
	}
}

func TestRemoteClient_RecordingAndDeletePaths(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	var seen []string
	c, _ := newTestRemote(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		seen = append(seen, r.Method+" "+r.URL.Path)
		mu.Unlock()
		if r.Method == http.MethodDelete {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		writeJSON(w, http.StatusOK, models.Stream{ID: "cam-1", RecordingState: models.RecordingActive})
	}))

	ctx := context.Background()
	if _, err := c.StartRecording(ctx, "cam-1"); err != nil {
		t.Fatal(err)
	}
	if _, err := c.StopRecording(ctx, "cam-1"); err != nil {
		t.Fatal(err)
	}
	if _, err := c.UpdateStream(ctx, "cam-1", &models.StreamPatch{}); err != nil {
		t.Fatal(err)
	}
	if err := c.DeleteStream(ctx, "cam-1"); err != nil {
		t.Fatal(err)
	}

	want := []string{
		"POST /api/streams/cam-1/recording/start",
		"POST /api/streams/cam-1/recording/stop",
		"PATCH /api/streams/cam-1",
		"DELETE /api/streams/cam-1",
	}
	if strings.Join(seen, "|") != strings.Join(want, "|") {
		t.Errorf("requests = %v, want %v", seen, want)
	}
}

func TestRemoteClient_RecordsMetrics(t *testing.T) {
	c, _ := newTestRemote(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))

	before := testutil.ToFloat64(metrics.APIRequests.WithLabelValues("get_config", "unavailable"))
	_, _ = c.GetConfig(context.Background())
	after := testutil.ToFloat64(metrics.APIRequests.WithLabelValues("get_config", "unavailable"))
	if after-before != 1 {
		t.Errorf("unavailable counter delta = %v, want 1", after-before)
	}
}
