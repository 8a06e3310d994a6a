// StreamBoard - Media Stream Fleet Dashboard Runtime
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/streamboard

// Package events decodes the JSON envelopes pushed by the control server's
// event stream into InboundEvent values.
//
// The set of kinds is closed. A message whose type is unknown, whose JSON is
// invalid, or whose payload is missing a field its kind requires is rejected
// with ErrMalformedEvent and must be dropped whole.
package events

import (
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/streamboard/internal/models"
)

// ErrMalformedEvent marks a message that does not decode into an InboundEvent.
var ErrMalformedEvent = errors.New("malformed event")

// Kind is an event type in wire spelling.
type Kind string

const (
	StreamStarted    Kind = "stream.started"
	StreamStopped    Kind = "stream.stopped"
	StreamError      Kind = "stream.error"
	RecordingStarted Kind = "recording.started"
	RecordingStopped Kind = "recording.stopped"
	SegmentCreated   Kind = "segment.created"
	MetricsUpdate    Kind = "metrics.update"
	ConfigReloaded   Kind = "config.reloaded"
	SystemWarning    Kind = "system.warning"
	SystemError      Kind = "system.error"
)

var kinds = map[Kind]bool{
	StreamStarted: true, StreamStopped: true, StreamError: true,
	RecordingStarted: true, RecordingStopped: true, SegmentCreated: true,
	MetricsUpdate: true, ConfigReloaded: true, SystemWarning: true, SystemError: true,
}

// Valid reports whether k is in the closed kind set.
func (k Kind) Valid() bool {
	return kinds[k]
}

// EntityScoped reports whether events of this kind target a stream.
func (k Kind) EntityScoped() bool {
	switch k {
	case ConfigReloaded, SystemWarning, SystemError:
		return false
	}
	return k.Valid()
}

// InboundEvent is one decoded server event.
type InboundEvent struct {
	Kind      Kind                 `json:"type"`
	SubjectID string               `json:"stream_id,omitempty"`
	Filename  string               `json:"filename,omitempty"`
	Error     *string              `json:"error,omitempty"`
	Message   string               `json:"message,omitempty"`
	Metrics   *models.MetricsPatch `json:"metrics,omitempty"`
	Timestamp time.Time            `json:"timestamp"`
}

// wireEvent keeps the timestamp raw so a bad timestamp is reported as
// malformed rather than failing the whole unmarshal with a time error.
type wireEvent struct {
	Kind      Kind                 `json:"type"`
	StreamID  string               `json:"stream_id"`
	Filename  string               `json:"filename"`
	Error     *string              `json:"error"`
	Message   string               `json:"message"`
	Metrics   *models.MetricsPatch `json:"metrics"`
	Timestamp string               `json:"timestamp"`
}

// Decode parses one wire message.
func Decode(data []byte) (InboundEvent, error) {
	var w wireEvent
	if err := json.Unmarshal(data, &w); err != nil {
		return InboundEvent{}, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	if !w.Kind.Valid() {
		return InboundEvent{}, fmt.Errorf("%w: unknown type %q", ErrMalformedEvent, w.Kind)
	}

	ev := InboundEvent{
		Kind:      w.Kind,
		SubjectID: w.StreamID,
		Filename:  w.Filename,
		Error:     w.Error,
		Message:   w.Message,
		Metrics:   w.Metrics,
	}
	if w.Timestamp == "" {
		return InboundEvent{}, fmt.Errorf("%w: %s without timestamp", ErrMalformedEvent, w.Kind)
	}
	ts, err := time.Parse(time.RFC3339Nano, w.Timestamp)
	if err != nil {
		return InboundEvent{}, fmt.Errorf("%w: bad timestamp %q", ErrMalformedEvent, w.Timestamp)
	}
	ev.Timestamp = ts

	if err := ev.check(); err != nil {
		return InboundEvent{}, err
	}
	return ev, nil
}

// check enforces per-kind required fields.
func (e *InboundEvent) check() error {
	if e.Kind.EntityScoped() && e.SubjectID == "" {
		return fmt.Errorf("%w: %s without stream_id", ErrMalformedEvent, e.Kind)
	}
	switch e.Kind {
	case SegmentCreated:
		if e.Filename == "" {
			return fmt.Errorf("%w: %s without filename", ErrMalformedEvent, e.Kind)
		}
	case MetricsUpdate:
		if e.Metrics == nil {
			return fmt.Errorf("%w: %s without metrics", ErrMalformedEvent, e.Kind)
		}
	}
	return nil
}

// Encode renders an event in wire form. The simulated backend and tests use it.
func Encode(e InboundEvent) ([]byte, error) {
	w := struct {
		Kind      Kind                 `json:"type"`
		StreamID  string               `json:"stream_id,omitempty"`
		Filename  string               `json:"filename,omitempty"`
		Error     *string              `json:"error,omitempty"`
		Message   string               `json:"message,omitempty"`
		Metrics   *models.MetricsPatch `json:"metrics,omitempty"`
		Timestamp string               `json:"timestamp"`
	}{
		Kind:      e.Kind,
		StreamID:  e.SubjectID,
		Filename:  e.Filename,
		Error:     e.Error,
		Message:   e.Message,
		Metrics:   e.Metrics,
		Timestamp: e.Timestamp.UTC().Format(time.RFC3339Nano),
	}
	return json.Marshal(w)
}
