// StreamBoard - Media Stream Fleet Dashboard Runtime
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/streamboard

package app

import (
	"github.com/tomtom215/streamboard/internal/cache"
	"github.com/tomtom215/streamboard/internal/client"
	"github.com/tomtom215/streamboard/internal/events"
	"github.com/tomtom215/streamboard/internal/models"
	"github.com/tomtom215/streamboard/internal/notify"
	"github.com/tomtom215/streamboard/internal/session"
)

// NoticeIdleWarning is the notice kind raised before an idle logout.
const NoticeIdleWarning = "session.idle_warning"

// maxNotices bounds the recent notice history.
const maxNotices = 50

// ConnectionDisabled is reported as the connection state with the simulated backend.
const ConnectionDisabled = "disabled"

// State is an observable snapshot of the runtime for the presentation layer.
type State struct {
	Session      session.Snapshot `json:"session"`
	Variant      string           `json:"variant"`
	Connection   string           `json:"connection"`
	Offline      bool             `json:"offline"`
	Failures     int              `json:"reconnect_failures"`
	LastError    string           `json:"last_error,omitempty"`
	Connectivity string           `json:"connectivity"`
	Breaker      string           `json:"breaker,omitempty"`

	Generation uint64 `json:"generation"`
	Streams    int    `json:"streams"`
	Recordings int    `json:"recordings"`

	Theme          string          `json:"theme"`
	DurableStorage bool            `json:"durable_storage"`
	Notices        []notify.Notice `json:"notices"`
}

// State returns the current snapshot.
func (r *Runtime) State() State {
	comp := r.current()
	streams, recordings := r.cache.Counts()

	st := State{
		Session:        comp.guard.Snapshot(),
		Variant:        comp.client.Variant(),
		Connection:     ConnectionDisabled,
		Connectivity:   string(comp.health.Status()),
		Generation:     r.cache.Generation(),
		Streams:        streams,
		Recordings:     recordings,
		Theme:          r.store.Theme(),
		DurableStorage: r.store.Durable(),
		Notices:        r.Notices(),
	}
	if comp.stream != nil {
		st.Connection = comp.stream.State().String()
		st.Offline = comp.stream.Offline()
		st.Failures = comp.stream.Failures()
		if err := comp.stream.LastError(); err != nil {
			st.LastError = err.Error()
		}
	}
	if cb, ok := comp.client.(*client.CircuitBreakerClient); ok {
		st.Breaker = cb.State()
	}
	return st
}

// Streams returns the cached streams.
func (r *Runtime) Streams() []cache.StreamEntity {
	return r.cache.Streams()
}

// Stream returns one cached stream.
func (r *Runtime) Stream(id string) (cache.StreamEntity, bool) {
	return r.cache.Stream(id)
}

// Recordings returns the cached recordings.
func (r *Runtime) Recordings() []models.Recording {
	return r.cache.Recordings()
}

// Session returns the session snapshot.
func (r *Runtime) Session() session.Snapshot {
	return r.current().guard.Snapshot()
}

// Connectivity returns the control API reachability.
func (r *Runtime) Connectivity() client.Connectivity {
	return r.current().health.Status()
}

// Variant reports the active backend variant.
func (r *Runtime) Variant() string {
	return r.current().client.Variant()
}

// Theme returns the stored display theme.
func (r *Runtime) Theme() string {
	return r.store.Theme()
}

// SetTheme stores the display theme.
func (r *Runtime) SetTheme(theme string) error {
	return r.store.SetTheme(theme)
}

// Notices returns the most recent notices, oldest first.
func (r *Runtime) Notices() []notify.Notice {
	r.noticeMu.Lock()
	defer r.noticeMu.Unlock()
	out := make([]notify.Notice, len(r.notices))
	copy(out, r.notices)
	return out
}

func (r *Runtime) recordNotice(n notify.Notice) {
	ev := r.logger.Info()
	if n.Kind == string(events.SystemError) {
		ev = r.logger.Warn()
	}
	ev.Str("kind", n.Kind).Str("stream_id", n.StreamID).Str("message", n.Message).Msg("[app] Server notice")

	r.noticeMu.Lock()
	defer r.noticeMu.Unlock()
	if len(r.notices) == maxNotices {
		copy(r.notices, r.notices[1:])
		r.notices = r.notices[:maxNotices-1]
	}
	r.notices = append(r.notices, n)
}
