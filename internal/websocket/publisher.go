// StreamBoard - Media Stream Fleet Dashboard Runtime
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/streamboard

package websocket

import (
	"bytes"
	"context"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/streamboard/internal/logging"
)

// StatePublisher broadcasts a state snapshot whenever it differs from the
// last one sent. Publish is meant to be driven by a ticker service.
type StatePublisher struct {
	hub      *Hub
	snapshot func() interface{}

	mu   sync.Mutex
	last []byte
}

// NewStatePublisher creates a publisher reading state from snapshot.
func NewStatePublisher(hub *Hub, snapshot func() interface{}) *StatePublisher {
	return &StatePublisher{hub: hub, snapshot: snapshot}
}

// Publish sends the current snapshot if it changed. It reports whether a
// message was queued.
func (p *StatePublisher) Publish(_ context.Context, _ time.Time) bool {
	state := p.snapshot()
	encoded, err := json.Marshal(state)
	if err != nil {
		logging.Warn().Err(err).Msg("[live] Failed to encode state")
		return false
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if bytes.Equal(encoded, p.last) {
		return false
	}
	if !p.hub.Broadcast(MessageTypeState, json.RawMessage(encoded)) {
		return false
	}
	p.last = encoded
	return true
}

// Tick adapts Publish to the ticker service callback.
func (p *StatePublisher) Tick(ctx context.Context, now time.Time) {
	p.Publish(ctx, now)
}
