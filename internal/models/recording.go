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

// Recording is a recorded segment file held by the server.
type Recording struct {
	Filename  string    `json:"filename"`
	StreamID  string    `json:"stream_id,omitempty"`
	Size      int64     `json:"size"`     // bytes
	Duration  float64   `json:"duration"` // seconds
	CreatedAt time.Time `json:"created_at"`
}

// RecordingFilter narrows GET /api/recordings.
type RecordingFilter struct {
	StreamID string    `json:"stream_id,omitempty"`
	From     time.Time `json:"from,omitempty"`
	To       time.Time `json:"to,omitempty"`
	Limit    int       `json:"limit,omitempty" validate:"gte=0,lte=1000"`
}

// Query encodes the filter as URL query parameters.
func (f RecordingFilter) Query() url.Values {
	q := url.Values{}
	if f.StreamID != "" {
		q.Set("stream_id", f.StreamID)
	}
	if !f.From.IsZero() {
		q.Set("from", f.From.UTC().Format(time.RFC3339))
	}
	if !f.To.IsZero() {
		q.Set("to", f.To.UTC().Format(time.RFC3339))
	}
	if f.Limit > 0 {
		q.Set("limit", strconv.Itoa(f.Limit))
	}
	return q
}

// IsZero reports whether the filter selects every recording.
func (f RecordingFilter) IsZero() bool {
	return f.StreamID == "" && f.From.IsZero() && f.To.IsZero() && f.Limit == 0
}

// Matches reports whether r passes the stream and date filters. Limit is not applied.
func (f RecordingFilter) Matches(r *Recording) bool {
	if f.StreamID != "" && r.StreamID != f.StreamID {
		return false
	}
	if !f.From.IsZero() && r.CreatedAt.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && r.CreatedAt.After(f.To) {
		return false
	}
	return true
}
