// StreamBoard - Media Stream Fleet Dashboard Runtime
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/streamboard

package models

import (
	"testing"
	"time"

	"github.com/goccy/go-json"
)

func TestMetricsPatch_ApplyTo(t *testing.T) {
	t.Parallel()

	var patch MetricsPatch
	if err := json.Unmarshal([]byte(`{"bitrate":4000}`), &patch); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	m := MetricsSnapshot{Bitrate: 1000, Framerate: 30, Resolution: "1920x1080", Viewers: 4}
	patch.ApplyTo(&m)

	want := MetricsSnapshot{Bitrate: 4000, Framerate: 30, Resolution: "1920x1080", Viewers: 4}
	if m != want {
		t.Errorf("ApplyTo() = %+v, want %+v", m, want)
	}
	if patch.Empty() {
		t.Error("patch with bitrate should not be empty")
	}
	if !(&MetricsPatch{}).Empty() {
		t.Error("zero patch should be empty")
	}
}

func TestStreamStatus_Valid(t *testing.T) {
	t.Parallel()
	for _, s := range []StreamStatus{StatusIdle, StatusStarting, StatusRunning, StatusStopped, StatusError} {
		if !s.Valid() {
			t.Errorf("%q should be valid", s)
		}
	}
	if StreamStatus("paused").Valid() {
		t.Error("paused should be invalid")
	}
	if RecordingState("paused").Valid() {
		t.Error("recording state paused should be invalid")
	}
}

func TestStreamFilter(t *testing.T) {
	t.Parallel()

	recording := true
	f := StreamFilter{Status: StatusRunning, Recording: &recording}
	if got := f.Query().Encode(); got != "recording=true&status=running" {
		t.Errorf("Query() = %q", got)
	}
	if !f.Matches(&Stream{Status: StatusRunning, RecordingState: RecordingActive}) {
		t.Error("expected match")
	}
	if f.Matches(&Stream{Status: StatusRunning, RecordingState: RecordingIdle}) {
		t.Error("expected recording filter to reject idle stream")
	}
	if !(StreamFilter{}).IsZero() {
		t.Error("empty filter should be zero")
	}
}

func TestRecordingFilter(t *testing.T) {
	t.Parallel()

	from := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	f := RecordingFilter{StreamID: "cam-1", From: from, Limit: 5}
	if got := f.Query().Encode(); got != "from=2026-01-01T00%3A00%3A00Z&limit=5&stream_id=cam-1" {
		t.Errorf("Query() = %q", got)
	}
	if f.Matches(&Recording{StreamID: "cam-1", CreatedAt: from.Add(-time.Hour)}) {
		t.Error("recording before From should not match")
	}
	if !f.Matches(&Recording{StreamID: "cam-1", CreatedAt: from.Add(time.Hour)}) {
		t.Error("expected match")
	}
}

func TestConfigPatch(t *testing.T) {
	t.Parallel()

	if err := (ConfigPatch{}).Validate(); err == nil {
		t.Error("empty patch should be rejected")
	}
	if err := (ConfigPatch{"network": {"mtu": 1500}}).Validate(); err == nil {
		t.Error("unknown section should be rejected")
	}

	patch := ConfigPatch{"recording": {"retention_days": 14}}
	if err := patch.Validate(); err != nil {
		t.Fatalf("Validate() = %v", err)
	}

	cfg := SystemConfig{Recording: ConfigSection{"retention_days": 7, "path": "/data"}}
	patch.ApplyTo(&cfg)
	if cfg.Recording["retention_days"] != 14 || cfg.Recording["path"] != "/data" {
		t.Errorf("Recording = %v", cfg.Recording)
	}
}
