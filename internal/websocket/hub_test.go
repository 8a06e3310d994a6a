// StreamBoard - Media Stream Fleet Dashboard Runtime
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/streamboard

package websocket

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
)

type frame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// startHub runs a hub behind an httptest server.
func startHub(t *testing.T) (*Hub, *httptest.Server, context.CancelFunc) {
	t.Helper()
	hub := NewHub(nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = hub.Serve(ctx)
	}()
	srv := httptest.NewServer(hub)
	t.Cleanup(func() {
		cancel()
		<-done
		srv.Close()
	})
	return hub, srv, cancel
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if resp != nil && resp.Body != nil {
		defer resp.Body.Close()
	}
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) frame {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var f frame
	if err := conn.ReadJSON(&f); err != nil {
		t.Fatalf("read frame: %v", err)
	}
	return f
}

func waitClients(t *testing.T, hub *Hub, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for hub.ClientCount() != want {
		if time.Now().After(deadline) {
			t.Fatalf("client count = %d, want %d", hub.ClientCount(), want)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestHub_BroadcastReachesAllClients(t *testing.T) {
	hub, srv, _ := startHub(t)
	a := dial(t, srv)
	b := dial(t, srv)
	waitClients(t, hub, 2)

	if !hub.Broadcast(MessageTypeState, map[string]int{"generation": 3}) {
		t.Fatal("Broadcast dropped the message")
	}
	for name, conn := range map[string]*websocket.Conn{"a": a, "b": b} {
		f := readFrame(t, conn)
		if f.Type != MessageTypeState || string(f.Data) != `{"generation":3}` {
			t.Errorf("client %s got %s %s", name, f.Type, f.Data)
		}
	}
}

func TestHub_ReplaysLatestStateToNewClients(t *testing.T) {
	hub, srv, _ := startHub(t)
	hub.Broadcast(MessageTypeState, map[string]string{"session": "x"})

	conn := dial(t, srv)
	f := readFrame(t, conn)
	if f.Type != MessageTypeState || string(f.Data) != `{"session":"x"}` {
		t.Errorf("replayed frame = %s %s", f.Type, f.Data)
	}
}

func TestClient_PingGetsPong(t *testing.T) {
	hub, srv, _ := startHub(t)
	conn := dial(t, srv)
	waitClients(t, hub, 1)

	if err := conn.WriteJSON(Message{Type: MessageTypePing}); err != nil {
		t.Fatalf("write ping: %v", err)
	}
	if f := readFrame(t, conn); f.Type != MessageTypePong {
		t.Errorf("reply type = %q, want pong", f.Type)
	}
}

func TestHub_ShutdownClosesClients(t *testing.T) {
	hub, srv, cancel := startHub(t)
	conn := dial(t, srv)
	waitClients(t, hub, 1)

	cancel()
	waitClients(t, hub, 0)

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Error("read after shutdown succeeded, want close")
	}

	late := dial(t, srv)
	_ = late.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := late.ReadMessage(); err == nil {
		t.Error("client connecting after shutdown was not closed")
	}
}

func TestHub_ClientDisconnectUnregisters(t *testing.T) {
	hub, srv, _ := startHub(t)
	conn := dial(t, srv)
	waitClients(t, hub, 1)

	_ = conn.Close()
	waitClients(t, hub, 0)
}

func TestStatePublisher_OnlyPublishesChanges(t *testing.T) {
	hub := NewHub(nil)
	gen := 1
	p := NewStatePublisher(hub, func() interface{} { return map[string]int{"generation": gen} })

	now := time.Now()
	tests := []struct {
		name string
		bump bool
		want bool
	}{
		{"first snapshot", false, true},
		{"unchanged", false, false},
		{"changed", true, true},
		{"unchanged again", false, false},
	}
	for _, tt := range tests {
		if tt.bump {
			gen++
		}
		if got := p.Publish(context.Background(), now); got != tt.want {
			t.Errorf("%s: Publish = %v, want %v", tt.name, got, tt.want)
		}
	}
	if n := len(hub.broadcast); n != 2 {
		t.Errorf("queued frames = %d, want 2", n)
	}
}
