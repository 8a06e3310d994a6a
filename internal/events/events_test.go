// StreamBoard - Media Stream Fleet Dashboard Runtime
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/streamboard

package events

import (
	"errors"
	"testing"
	"time"
)

func TestDecode_MetricsUpdate(t *testing.T) {
	t.Parallel()

	ev, err := Decode([]byte(`{"type":"metrics.update","stream_id":"cam-1","metrics":{"bitrate":4000},"timestamp":"2026-03-01T10:00:00Z"}`))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if ev.Kind != MetricsUpdate || ev.SubjectID != "cam-1" {
		t.Errorf("got %s/%s", ev.Kind, ev.SubjectID)
	}
	if ev.Metrics == nil || ev.Metrics.Bitrate == nil || *ev.Metrics.Bitrate != 4000 {
		t.Fatalf("bitrate not decoded: %+v", ev.Metrics)
	}
	if ev.Metrics.Framerate != nil || ev.Metrics.Resolution != nil {
		t.Error("absent metrics fields must stay nil")
	}
	if !ev.Timestamp.Equal(time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)) {
		t.Errorf("Timestamp = %v", ev.Timestamp)
	}
}

func TestDecode_Valid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		raw  string
		kind Kind
	}{
		{"started", `{"type":"stream.started","stream_id":"a","timestamp":"2026-01-01T00:00:00Z"}`, StreamStarted},
		{"stopped", `{"type":"stream.stopped","stream_id":"a","timestamp":"2026-01-01T00:00:00Z"}`, StreamStopped},
		{"error", `{"type":"stream.error","stream_id":"a","error":"source lost","timestamp":"2026-01-01T00:00:00Z"}`, StreamError},
		{"recording started", `{"type":"recording.started","stream_id":"a","timestamp":"2026-01-01T00:00:00Z"}`, RecordingStarted},
		{"recording stopped", `{"type":"recording.stopped","stream_id":"a","timestamp":"2026-01-01T00:00:00Z"}`, RecordingStopped},
		{"segment", `{"type":"segment.created","stream_id":"a","filename":"a-001.mp4","timestamp":"2026-01-01T00:00:00Z"}`, SegmentCreated},
		{"config", `{"type":"config.reloaded","timestamp":"2026-01-01T00:00:00Z"}`, ConfigReloaded},
		{"warning", `{"type":"system.warning","message":"disk 90%","timestamp":"2026-01-01T00:00:00Z"}`, SystemWarning},
		{"system error", `{"type":"system.error","message":"gpu fault","timestamp":"2026-01-01T00:00:00Z"}`, SystemError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ev, err := Decode([]byte(tt.raw))
			if err != nil {
				t.Fatalf("Decode() error = %v", err)
			}
			if ev.Kind != tt.kind {
				t.Errorf("Kind = %s, want %s", ev.Kind, tt.kind)
			}
		})
	}
}

func TestDecode_Malformed(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		raw  string
	}{
		{"not json", `stream started`},
		{"unknown type", `{"type":"stream.paused","stream_id":"a","timestamp":"2026-01-01T00:00:00Z"}`},
		{"missing type", `{"stream_id":"a"}`},
		{"entity without id", `{"type":"stream.started","timestamp":"2026-01-01T00:00:00Z"}`},
		{"segment without filename", `{"type":"segment.created","stream_id":"a","timestamp":"2026-01-01T00:00:00Z"}`},
		{"metrics without payload", `{"type":"metrics.update","stream_id":"a","timestamp":"2026-01-01T00:00:00Z"}`},
		{"missing timestamp", `{"type":"stream.started","stream_id":"a"}`},
		{"bad timestamp", `{"type":"stream.started","stream_id":"a","timestamp":"yesterday"}`},
		{"wrong field type", `{"type":"metrics.update","stream_id":"a","metrics":{"bitrate":"fast"},"timestamp":"2026-01-01T00:00:00Z"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := Decode([]byte(tt.raw))
			if !errors.Is(err, ErrMalformedEvent) {
				t.Errorf("Decode() error = %v, want ErrMalformedEvent", err)
			}
		})
	}
}

func TestEncode_Decodes(t *testing.T) {
	t.Parallel()

	msg := "source lost"
	in := InboundEvent{Kind: StreamError, SubjectID: "cam-2", Error: &msg, Timestamp: time.Now().UTC().Truncate(time.Millisecond)}
	data, err := Encode(in)
	if err != nil {
		t.Fatal(err)
	}
	out, err := Decode(data)
	if err != nil {
		t.Fatal(err)
	}
	if out.Kind != in.Kind || out.SubjectID != in.SubjectID || *out.Error != msg || !out.Timestamp.Equal(in.Timestamp) {
		t.Errorf("Decode(Encode()) = %+v", out)
	}
}

func TestKind_EntityScoped(t *testing.T) {
	t.Parallel()
	if ConfigReloaded.EntityScoped() || SystemWarning.EntityScoped() || SystemError.EntityScoped() {
		t.Error("system kinds must not be entity scoped")
	}
	if !SegmentCreated.EntityScoped() || Kind("bogus").EntityScoped() {
		t.Error("unexpected EntityScoped result")
	}
}
