// StreamBoard - Media Stream Fleet Dashboard Runtime
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/streamboard

// Package reconcile applies inbound events and API responses to the entity
// cache. It is the cache's only writer.
//
// Events are partial: the fields an event carries overwrite the entity's
// fields, everything else is left as it was. Terminal events change status
// only; a stream leaves the cache only through a delete response or by being
// absent from an unfiltered list refresh. Events that do not concern an
// entity are forwarded as notices and never touch the cache.
package reconcile

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/streamboard/internal/cache"
	"github.com/tomtom215/streamboard/internal/events"
	"github.com/tomtom215/streamboard/internal/logging"
	"github.com/tomtom215/streamboard/internal/metrics"
	"github.com/tomtom215/streamboard/internal/models"
	"github.com/tomtom215/streamboard/internal/notify"
)

// NoticePublisher receives non-entity events.
type NoticePublisher interface {
	PublishNotice(n notify.Notice) error
}

// Reconciler merges observations into a cache.
type Reconciler struct {
	cache   *cache.Cache
	notices NoticePublisher
	logger  zerolog.Logger
	now     func() time.Time
}

// New creates a reconciler writing to c. notices may be nil.
func New(c *cache.Cache, notices NoticePublisher) *Reconciler {
	return &Reconciler{
		cache:   c,
		notices: notices,
		logger:  logging.WithComponent("reconcile"),
		now:     time.Now,
	}
}

// Cache returns the cache this reconciler writes to.
func (r *Reconciler) Cache() *cache.Cache {
	return r.cache
}

// Apply applies one event to the current generation.
func (r *Reconciler) Apply(ev events.InboundEvent) {
	r.ApplyAt(r.cache.Generation(), ev)
}

// ApplyAt applies one event if the cache is still at generation gen.
// It reports false when the event was discarded as stale.
func (r *Reconciler) ApplyAt(gen uint64, ev events.InboundEvent) bool {
	if !ev.Kind.EntityScoped() {
		r.forward(ev)
		return true
	}

	applied := r.cache.UpdateAt(gen, func(tx *cache.Tx) {
		if ev.Kind == events.SegmentCreated {
			createdAt := ev.Timestamp
			if createdAt.IsZero() {
				createdAt = r.now().UTC()
			}
			tx.AddRecording(models.Recording{
				Filename:  ev.Filename,
				StreamID:  ev.SubjectID,
				CreatedAt: createdAt,
			})
			return
		}

		s := tx.Stream(ev.SubjectID)
		switch ev.Kind {
		case events.StreamStarted:
			s.Status = models.StatusRunning
		case events.StreamStopped:
			s.Status = models.StatusStopped
		case events.StreamError:
			s.Status = models.StatusError
			if ev.Error != nil {
				s.LastError = *ev.Error
			}
		case events.RecordingStarted:
			s.RecordingState = models.RecordingActive
		case events.RecordingStopped:
			s.RecordingState = models.RecordingIdle
		case events.MetricsUpdate:
			ev.Metrics.ApplyTo(&s.Metrics)
		}
		if !ev.Timestamp.IsZero() {
			s.LastEventAt = ev.Timestamp
		}
	})

	if !applied {
		metrics.ReconcileStale.Inc()
		r.logger.Debug().Str("kind", string(ev.Kind)).Msg("[reconcile] Dropping event for previous session")
		return false
	}
	metrics.ReconcileApplied.WithLabelValues("event").Inc()
	return true
}

func (r *Reconciler) forward(ev events.InboundEvent) {
	metrics.ReconcileApplied.WithLabelValues("notice").Inc()
	if r.notices == nil {
		return
	}
	n := notify.Notice{
		Kind:     string(ev.Kind),
		Message:  ev.Message,
		StreamID: ev.SubjectID,
		At:       ev.Timestamp,
	}
	if n.Message == "" && ev.Error != nil {
		n.Message = *ev.Error
	}
	if err := r.notices.PublishNotice(n); err != nil {
		r.logger.Warn().Err(err).Str("kind", n.Kind).Msg("[reconcile] Notice not delivered")
	}
}

// ApplyStreamList applies a GET /api/streams response captured at gen.
// An unfiltered list is authoritative: streams missing from it are removed.
// A filtered list only updates the streams it contains.
func (r *Reconciler) ApplyStreamList(gen uint64, filter models.StreamFilter, list []models.Stream) bool {
	return r.respond(gen, "refresh", func(tx *cache.Tx) {
		keep := make(map[string]struct{}, len(list))
		for i := range list {
			keep[list[i].ID] = struct{}{}
			r.overlay(tx.Stream(list[i].ID), &list[i], true)
		}
		if filter.IsZero() {
			tx.RetainStreams(keep)
		}
	})
}

// ApplyStream applies a single-stream response (create, update, recording start/stop).
func (r *Reconciler) ApplyStream(gen uint64, s *models.Stream) bool {
	return r.respond(gen, "response", func(tx *cache.Tx) {
		r.overlay(tx.Stream(s.ID), s, false)
	})
}

// ApplyStreamDeleted applies a successful delete response.
func (r *Reconciler) ApplyStreamDeleted(gen uint64, id string) bool {
	return r.respond(gen, "response", func(tx *cache.Tx) {
		tx.DeleteStream(id)
	})
}

// ApplyRecordingList applies a GET /api/recordings response captured at gen.
// An unfiltered list replaces the recording set.
func (r *Reconciler) ApplyRecordingList(gen uint64, filter models.RecordingFilter, list []models.Recording) bool {
	return r.respond(gen, "refresh", func(tx *cache.Tx) {
		if filter.IsZero() {
			tx.ReplaceRecordings(list)
			return
		}
		for _, rec := range list {
			tx.AddRecording(rec)
		}
	})
}

func (r *Reconciler) respond(gen uint64, source string, fn func(tx *cache.Tx)) bool {
	if !r.cache.UpdateAt(gen, fn) {
		metrics.ReconcileStale.Inc()
		r.logger.Debug().Uint64("generation", gen).Msg("[reconcile] Dropping response for previous session")
		return false
	}
	metrics.ReconcileApplied.WithLabelValues(source).Inc()
	return true
}

// overlay copies a server representation onto an entity. Only a listed
// stream is authoritative for the error message; a single-stream response
// without one clears it only when the stream has left the error status.
func (r *Reconciler) overlay(e *cache.StreamEntity, s *models.Stream, listed bool) {
	if s.SourceURL != "" {
		e.SourceURL = s.SourceURL
	}
	if s.Status.Valid() {
		e.Status = s.Status
	} else if s.Status != "" {
		r.logger.Warn().Str("stream_id", s.ID).Str("status", string(s.Status)).Msg("[reconcile] Ignoring unknown status")
	}
	if s.RecordingState.Valid() {
		e.RecordingState = s.RecordingState
	}
	if s.Metrics != nil {
		e.Metrics = *s.Metrics
	}
	switch {
	case listed, s.Error != "":
		e.LastError = s.Error
	case s.Status.Valid() && s.Status != models.StatusError:
		e.LastError = ""
	}
}
