// StreamBoard - Media Stream Fleet Dashboard Runtime
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/streamboard

package websocket

import (
	"context"
	"net/http"
	"sort"
	"sync"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/tomtom215/streamboard/internal/logging"
	"github.com/tomtom215/streamboard/internal/metrics"
)

// Message types pushed to subscribers.
const (
	MessageTypeState = "state"
	MessageTypePing  = "ping"
	MessageTypePong  = "pong"
)

// Message is one frame on the live socket.
type Message struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// Hub fans state messages out to connected console subscribers. It runs as a
// supervised service; clients may connect before Serve starts and receive
// the latest state once it is published.
type Hub struct {
	upgrader  websocket.Upgrader
	broadcast chan []byte

	mu      sync.RWMutex
	clients map[*Client]struct{}
	latest  []byte // last encoded state frame, replayed to new clients
	closed  bool
}

// NewHub creates a hub. originOK decides which browser origins may connect;
// nil keeps gorilla's same-origin check.
func NewHub(originOK func(r *http.Request) bool) *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     originOK,
		},
		broadcast: make(chan []byte, 64),
		clients:   make(map[*Client]struct{}),
	}
}

// Serve delivers broadcasts until ctx is done, then closes every client.
func (h *Hub) Serve(ctx context.Context) error {
	h.mu.Lock()
	h.closed = false
	h.mu.Unlock()

	for {
		// Shutdown wins over pending broadcasts.
		select {
		case <-ctx.Done():
			h.shutdown()
			return ctx.Err()
		default:
		}

		select {
		case <-ctx.Done():
			h.shutdown()
			return ctx.Err()
		case frame := <-h.broadcast:
			h.deliver(frame)
		}
	}
}

// String implements fmt.Stringer for supervisor logs.
func (h *Hub) String() string { return "live-hub" }

// Broadcast queues a message for every client. It reports false when the
// message was dropped.
func (h *Hub) Broadcast(msgType string, data interface{}) bool {
	frame, err := json.Marshal(Message{Type: msgType, Data: data})
	if err != nil {
		logging.Warn().Err(err).Str("message_type", msgType).Msg("[live] Failed to encode message")
		return false
	}
	if msgType == MessageTypeState {
		h.mu.Lock()
		h.latest = frame
		h.mu.Unlock()
	}

	select {
	case h.broadcast <- frame:
		return true
	default:
		metrics.LiveMessagesDropped.Inc()
		logging.Warn().Str("message_type", msgType).Msg("[live] Broadcast queue full, dropping message")
		return false
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ServeHTTP upgrades the request and subscribes the connection.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		logging.Ctx(r.Context()).Debug().Err(err).Msg("[live] Upgrade failed")
		return
	}

	c := NewClient(h, conn)
	if !h.register(c) {
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"))
		_ = conn.Close()
		return
	}
	c.Start()
}

func (h *Hub) register(c *Client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.clients[c] = struct{}{}
	if h.latest != nil {
		c.send <- h.latest // fresh buffer, cannot block
	}
	metrics.LiveClients.Set(float64(len(h.clients)))
	logging.Debug().Int("total_clients", len(h.clients)).Msg("[live] Client connected")
	return true
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
		metrics.LiveClients.Set(float64(len(h.clients)))
		logging.Debug().Int("total_clients", len(h.clients)).Msg("[live] Client disconnected")
	}
}

// deliver sends frame to clients in connection order. Slow clients whose
// buffer is full are dropped.
func (h *Hub) deliver(frame []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, c := range h.ordered() {
		select {
		case c.send <- frame:
		default:
			close(c.send)
			delete(h.clients, c)
			logging.Warn().Uint64("client_id", c.id).Msg("[live] Dropping slow client")
		}
	}
	metrics.LiveClients.Set(float64(len(h.clients)))
}

func (h *Hub) shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := len(h.clients)
	for _, c := range h.ordered() {
		close(c.send)
		delete(h.clients, c)
	}
	h.closed = true
	metrics.LiveClients.Set(0)
	logging.Info().Int("clients_closed", n).Msg("[live] Hub stopped")
}

// ordered returns clients sorted by id. Caller holds h.mu.
func (h *Hub) ordered() []*Client {
	out := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out
}
