// StreamBoard - Media Stream Fleet Dashboard Runtime
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/streamboard

package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tomtom215/streamboard/internal/metrics"
	"github.com/tomtom215/streamboard/internal/models"
	"github.com/tomtom215/streamboard/internal/session"
)

// Refresh triggers
const (
	triggerLogin     = "login"
	triggerRestore   = "restore"
	triggerReconnect = "reconnect"
	triggerManual    = "manual"
)

// Login authenticates against the active backend and starts a fresh visit.
// It returns the view to show: the destination recorded before the login
// redirect, or the default view.
func (r *Runtime) Login(ctx context.Context, username, password string) (string, error) {
	comp := r.current()
	resp, err := comp.client.Login(ctx, &models.LoginRequest{Username: username, Password: password})
	if err != nil {
		return "", err
	}

	r.cache.Reset()
	target, err := comp.guard.CompleteLogin(resp.Token)
	if err != nil {
		return "", err
	}

	r.startStream(comp)
	if err := r.refresh(ctx, comp, triggerLogin); err != nil {
		r.logger.Warn().Err(err).Msg("[app] Initial refresh failed")
	}
	return target, nil
}

// Logout ends the session on user request. It reports whether a session was ended.
func (r *Runtime) Logout() bool {
	return r.current().guard.Logout(session.ReasonUser)
}

// Navigate asks the session guard whether path may be shown.
func (r *Runtime) Navigate(path string) session.Decision {
	return r.current().guard.Navigate(path)
}

// Activity records user activity.
func (r *Runtime) Activity() {
	r.current().guard.Touch()
}

// Extend renews the session after an idle warning.
func (r *Runtime) Extend() (time.Time, error) {
	return r.current().guard.Extend()
}

// Connect starts or restarts the event stream.
func (r *Runtime) Connect() error {
	comp, err := r.active()
	if err != nil {
		return err
	}
	if comp.stream == nil {
		return ErrNoEventStream
	}
	return comp.stream.Restart()
}

// Refresh re-fetches the stream and recording lists. The responses replace
// the cached sets unless a logout happened in the meantime.
func (r *Runtime) Refresh(ctx context.Context) error {
	comp, err := r.active()
	if err != nil {
		return err
	}
	return r.refresh(ctx, comp, triggerManual)
}

func (r *Runtime) refresh(ctx context.Context, comp *components, trigger string) error {
	if !comp.guard.Authenticated() {
		return session.ErrNotAuthenticated
	}
	gen := r.cache.Generation()

	streams, err := comp.client.ListStreams(ctx, models.StreamFilter{})
	if err != nil {
		metrics.RuntimeRefreshes.WithLabelValues(trigger, "error").Inc()
		return fmt.Errorf("refresh streams: %w", err)
	}
	recordings, err := comp.client.ListRecordings(ctx, models.RecordingFilter{})
	if err != nil {
		metrics.RuntimeRefreshes.WithLabelValues(trigger, "error").Inc()
		return fmt.Errorf("refresh recordings: %w", err)
	}

	if !r.reconciler.ApplyStreamList(gen, models.StreamFilter{}, streams) ||
		!r.reconciler.ApplyRecordingList(gen, models.RecordingFilter{}, recordings) {
		metrics.RuntimeRefreshes.WithLabelValues(trigger, "stale").Inc()
		return nil
	}
	metrics.RuntimeRefreshes.WithLabelValues(trigger, "ok").Inc()
	r.logger.Debug().Str("trigger", trigger).Int("streams", len(streams)).
		Int("recordings", len(recordings)).Msg("[app] Refreshed")
	return nil
}

// refreshAsync runs a refresh in the background. It is used from the event
// stream's OnOpen hook, which must not block.
func (r *Runtime) refreshAsync(comp *components, trigger string) {
	if r.base.Err() != nil {
		return
	}
	timeout := r.config().API.Timeout * 2
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		ctx, cancel := context.WithTimeout(r.base, timeout)
		defer cancel()
		err := r.refresh(ctx, comp, trigger)
		if err != nil && !errors.Is(err, session.ErrNotAuthenticated) && !errors.Is(err, context.Canceled) {
			r.logger.Warn().Err(err).Str("trigger", trigger).Msg("[app] Background refresh failed")
		}
	}()
}

// active returns the components of an authenticated session and records
// the command as activity.
func (r *Runtime) active() (*components, error) {
	comp := r.current()
	if !comp.guard.Authenticated() {
		return nil, session.ErrNotAuthenticated
	}
	comp.guard.Touch()
	return comp, nil
}

// ListStreams fetches streams matching filter and merges them into the cache.
// An empty filter is a full, authoritative refresh of the stream set.
func (r *Runtime) ListStreams(ctx context.Context, filter models.StreamFilter) ([]models.Stream, error) {
	comp, err := r.active()
	if err != nil {
		return nil, err
	}
	gen := r.cache.Generation()
	list, err := comp.client.ListStreams(ctx, filter)
	if err != nil {
		return nil, err
	}
	r.reconciler.ApplyStreamList(gen, filter, list)
	return list, nil
}

// ListRecordings fetches recordings matching filter and merges them into the cache.
func (r *Runtime) ListRecordings(ctx context.Context, filter models.RecordingFilter) ([]models.Recording, error) {
	comp, err := r.active()
	if err != nil {
		return nil, err
	}
	gen := r.cache.Generation()
	list, err := comp.client.ListRecordings(ctx, filter)
	if err != nil {
		return nil, err
	}
	r.reconciler.ApplyRecordingList(gen, filter, list)
	return list, nil
}

// CreateStream registers a stream.
func (r *Runtime) CreateStream(ctx context.Context, req *models.CreateStreamRequest) (*models.Stream, error) {
	return r.streamCommand(ctx, func(ctx context.Context, comp *components) (*models.Stream, error) {
		return comp.client.CreateStream(ctx, req)
	})
}

// UpdateStream changes a stream's settings.
func (r *Runtime) UpdateStream(ctx context.Context, id string, patch *models.StreamPatch) (*models.Stream, error) {
	return r.streamCommand(ctx, func(ctx context.Context, comp *components) (*models.Stream, error) {
		return comp.client.UpdateStream(ctx, id, patch)
	})
}

// StartRecording starts recording a stream.
func (r *Runtime) StartRecording(ctx context.Context, id string) (*models.Stream, error) {
	return r.streamCommand(ctx, func(ctx context.Context, comp *components) (*models.Stream, error) {
		return comp.client.StartRecording(ctx, id)
	})
}

// StopRecording stops recording a stream.
func (r *Runtime) StopRecording(ctx context.Context, id string) (*models.Stream, error) {
	return r.streamCommand(ctx, func(ctx context.Context, comp *components) (*models.Stream, error) {
		return comp.client.StopRecording(ctx, id)
	})
}

func (r *Runtime) streamCommand(ctx context.Context, call func(context.Context, *components) (*models.Stream, error)) (*models.Stream, error) {
	comp, err := r.active()
	if err != nil {
		return nil, err
	}
	gen := r.cache.Generation()
	s, err := call(ctx, comp)
	if err != nil {
		return nil, err
	}
	r.reconciler.ApplyStream(gen, s)
	return s, nil
}

// DeleteStream removes a stream; the cache entry goes with the successful response.
func (r *Runtime) DeleteStream(ctx context.Context, id string) error {
	comp, err := r.active()
	if err != nil {
		return err
	}
	gen := r.cache.Generation()
	if err := comp.client.DeleteStream(ctx, id); err != nil {
		return err
	}
	r.reconciler.ApplyStreamDeleted(gen, id)
	return nil
}

// GetConfig returns the server configuration.
func (r *Runtime) GetConfig(ctx context.Context) (*models.SystemConfig, error) {
	comp, err := r.active()
	if err != nil {
		return nil, err
	}
	return comp.client.GetConfig(ctx)
}

// UpdateConfig applies a partial configuration change.
func (r *Runtime) UpdateConfig(ctx context.Context, patch models.ConfigPatch) (*models.SystemConfig, error) {
	comp, err := r.active()
	if err != nil {
		return nil, err
	}
	return comp.client.UpdateConfig(ctx, patch)
}
