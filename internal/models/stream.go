// StreamBoard - Media Stream Fleet Dashboard Runtime
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/streamboard

package models

import (
	"net/url"
	"strconv"
	"time"
)

// StreamStatus is the lifecycle state of a managed stream.
type StreamStatus string

const (
	StatusIdle     StreamStatus = "idle"
	StatusStarting StreamStatus = "starting"
	StatusRunning  StreamStatus = "running"
	StatusStopped  StreamStatus = "stopped"
	StatusError    StreamStatus = "error"
)

// Valid reports whether s is one of the known statuses.
func (s StreamStatus) Valid() bool {
	switch s {
	case StatusIdle, StatusStarting, StatusRunning, StatusStopped, StatusError:
		return true
	}
	return false
}

// RecordingState is whether a stream is currently being recorded.
type RecordingState string

const (
	RecordingIdle   RecordingState = "idle"
	RecordingActive RecordingState = "recording"
)

// Valid reports whether r is one of the known recording states.
func (r RecordingState) Valid() bool {
	return r == RecordingIdle || r == RecordingActive
}

// MetricsSnapshot is the latest known runtime metrics of a stream.
type MetricsSnapshot struct {
	Bitrate       float64 `json:"bitrate"`   // kbit/s
	Framerate     float64 `json:"framerate"` // frames/s
	Resolution    string  `json:"resolution"`
	DroppedFrames int64   `json:"dropped_frames"`
	Viewers       int     `json:"viewers"`
}

// MetricsPatch holds the metrics present in one update; nil fields are absent.
type MetricsPatch struct {
	Bitrate       *float64 `json:"bitrate,omitempty"`
	Framerate     *float64 `json:"framerate,omitempty"`
	Resolution    *string  `json:"resolution,omitempty"`
	DroppedFrames *int64   `json:"dropped_frames,omitempty"`
	Viewers       *int     `json:"viewers,omitempty"`
}

// Empty reports whether the patch carries no fields.
func (p *MetricsPatch) Empty() bool {
	return p == nil || (p.Bitrate == nil && p.Framerate == nil && p.Resolution == nil &&
		p.DroppedFrames == nil && p.Viewers == nil)
}

// ApplyTo overwrites the fields of m that are present in p.
func (p *MetricsPatch) ApplyTo(m *MetricsSnapshot) {
	if p == nil {
		return
	}
	if p.Bitrate != nil {
		m.Bitrate = *p.Bitrate
	}
	if p.Framerate != nil {
		m.Framerate = *p.Framerate
	}
	if p.Resolution != nil {
		m.Resolution = *p.Resolution
	}
	if p.DroppedFrames != nil {
		m.DroppedFrames = *p.DroppedFrames
	}
	if p.Viewers != nil {
		m.Viewers = *p.Viewers
	}
}

// Stream is a stream as reported by the control API.
type Stream struct {
	ID             string            `json:"id"`
	SourceURL      string            `json:"source_url"`
	Status         StreamStatus      `json:"status"`
	RecordingState RecordingState    `json:"recording_state,omitempty"`
	Metrics        *MetricsSnapshot  `json:"metrics,omitempty"`
	Error          string            `json:"error,omitempty"`
	Recording      *RecordingOptions `json:"recording,omitempty"`
	Inference      *InferenceOptions `json:"inference,omitempty"`
	Reconnect      *ReconnectOptions `json:"reconnect,omitempty"`
	UpdatedAt      time.Time         `json:"updated_at,omitempty"`
}

// RecordingOptions configures server-side recording of a stream.
type RecordingOptions struct {
	Enabled        bool   `json:"enabled"`
	SegmentSeconds int    `json:"segment_seconds,omitempty" validate:"omitempty,gte=1,lte=3600"`
	Format         string `json:"format,omitempty" validate:"omitempty,oneof=mp4 mkv ts"`
}

// InferenceOptions configures server-side inference on a stream.
type InferenceOptions struct {
	Enabled   bool    `json:"enabled"`
	Model     string  `json:"model,omitempty" validate:"required_if=Enabled true"`
	Threshold float64 `json:"threshold,omitempty" validate:"gte=0,lte=1"`
}

// ReconnectOptions configures how the server reconnects to a lost source.
type ReconnectOptions struct {
	Enabled      bool `json:"enabled"`
	MaxAttempts  int  `json:"max_attempts,omitempty" validate:"gte=0"`
	DelaySeconds int  `json:"delay_seconds,omitempty" validate:"gte=0,lte=600"`
}

// CreateStreamRequest is the body of POST /api/streams.
type CreateStreamRequest struct {
	ID        string            `json:"id" validate:"required,streamid"`
	SourceURL string            `json:"source_url" validate:"required,url"`
	Recording *RecordingOptions `json:"recording,omitempty" validate:"omitempty"`
	Inference *InferenceOptions `json:"inference,omitempty" validate:"omitempty"`
	Reconnect *ReconnectOptions `json:"reconnect,omitempty" validate:"omitempty"`
}

// StreamPatch is the body of PATCH /api/streams/{id}; nil fields are left unchanged.
type StreamPatch struct {
	SourceURL *string           `json:"source_url,omitempty" validate:"omitempty,url"`
	Recording *RecordingOptions `json:"recording,omitempty" validate:"omitempty"`
	Inference *InferenceOptions `json:"inference,omitempty" validate:"omitempty"`
	Reconnect *ReconnectOptions `json:"reconnect,omitempty" validate:"omitempty"`
}

// StreamFilter narrows GET /api/streams.
type StreamFilter struct {
	Status    StreamStatus `json:"status,omitempty" validate:"omitempty,oneof=idle starting running stopped error"`
	Recording *bool        `json:"recording,omitempty"`
}

// Query encodes the filter as URL query parameters.
func (f StreamFilter) Query() url.Values {
	q := url.Values{}
	if f.Status != "" {
		q.Set("status", string(f.Status))
	}
	if f.Recording != nil {
		q.Set("recording", strconv.FormatBool(*f.Recording))
	}
	return q
}

// IsZero reports whether the filter selects every stream.
func (f StreamFilter) IsZero() bool {
	return f.Status == "" && f.Recording == nil
}

// Matches reports whether s passes the filter.
func (f StreamFilter) Matches(s *Stream) bool {
	if f.Status != "" && s.Status != f.Status {
		return false
	}
	if f.Recording != nil && (s.RecordingState == RecordingActive) != *f.Recording {
		return false
	}
	return true
}
