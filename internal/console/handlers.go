// StreamBoard - Media Stream Fleet Dashboard Runtime
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/streamboard

package console

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/tomtom215/streamboard/internal/app"
	"github.com/tomtom215/streamboard/internal/cache"
	"github.com/tomtom215/streamboard/internal/client"
	"github.com/tomtom215/streamboard/internal/credentials"
	"github.com/tomtom215/streamboard/internal/logging"
	"github.com/tomtom215/streamboard/internal/models"
	"github.com/tomtom215/streamboard/internal/session"
	"github.com/tomtom215/streamboard/internal/validation"
)

const maxBodyBytes = 1 << 20

type navigateRequest struct {
	Path string `json:"path" validate:"required,max=512"`
}

type loginRequest struct {
	Username string `json:"username" validate:"required,max=128"`
	Password string `json:"password" validate:"required,max=512"`
}

type loginResponse struct {
	Target string `json:"target"`
}

type themeRequest struct {
	Theme string `json:"theme" validate:"required,oneof=system light dark"`
}

type backendRequest struct {
	Simulated bool `json:"simulated"`
}

// decodeJSON reads a JSON body into v. It writes the error response and
// returns false on failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		respond(w, r).badRequest("invalid JSON body: " + err.Error())
		return false
	}
	return true
}

// decode is decodeJSON followed by struct validation.
func decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if !decodeJSON(w, r, v) {
		return false
	}
	if verr := validation.ValidateStruct(v); verr != nil {
		respond(w, r).fail(http.StatusBadRequest, CodeValidationFailed, verr.Error(), verr.Fields)
		return false
	}
	return true
}

// writeError maps runtime errors to console responses.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	rw := respond(w, r)

	switch {
	case errors.Is(err, session.ErrNotAuthenticated):
		rw.fail(http.StatusUnauthorized, CodeUnauthorized, "login required", nil)
		return
	case errors.Is(err, credentials.ErrInvalidTheme):
		rw.badRequest(err.Error())
		return
	case errors.Is(err, app.ErrNoEventStream):
		rw.fail(http.StatusConflict, CodeConflict, err.Error(), nil)
		return
	}

	var ce *client.Error
	if !errors.As(err, &ce) {
		logging.Ctx(r.Context()).Error().Err(err).Msg("[console] Request failed")
		rw.fail(http.StatusInternalServerError, CodeInternalError, "internal error", nil)
		return
	}

	switch ce.Kind {
	case client.KindInvalidCredentials, client.KindAuthenticationFailed:
		rw.fail(http.StatusUnauthorized, CodeUnauthorized, ce.Message, nil)
	case client.KindInvalidRequest:
		var verr *validation.RequestValidationError
		switch {
		case errors.As(err, &verr):
			rw.fail(http.StatusBadRequest, CodeValidationFailed, verr.Error(), verr.Fields)
		case ce.StatusCode == http.StatusConflict:
			rw.fail(http.StatusConflict, CodeConflict, ce.Message, nil)
		default:
			rw.badRequest(ce.Message)
		}
	case client.KindNotFound:
		rw.fail(http.StatusNotFound, CodeNotFound, ce.Message, nil)
	case client.KindUnavailable, client.KindCanceled:
		rw.fail(http.StatusServiceUnavailable, CodeServiceUnavailable, ce.Error(), nil)
	default:
		logging.Ctx(r.Context()).Warn().Err(err).Msg("[console] Control API error")
		rw.fail(http.StatusBadGateway, CodeUpstreamFailed, ce.Error(), nil)
	}
}

// Healthz reports liveness of the console and the active backend.
func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	respond(w, r).ok(map[string]string{
		"status":       "ok",
		"variant":      h.rt.Variant(),
		"connectivity": string(h.rt.Connectivity()),
	})
}

// State returns the runtime snapshot.
func (h *Handler) State(w http.ResponseWriter, r *http.Request) {
	respond(w, r).ok(h.rt.State())
}

// Navigate moves the presentation to a view.
func (h *Handler) Navigate(w http.ResponseWriter, r *http.Request) {
	var req navigateRequest
	if !decode(w, r, &req) {
		return
	}
	respond(w, r).ok(h.rt.Navigate(req.Path))
}

// Login authenticates and returns the view to show.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decode(w, r, &req) {
		return
	}
	target, err := h.rt.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}
	respond(w, r).ok(loginResponse{Target: target})
}

// Logout ends the session.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	ended := h.rt.Logout()
	respond(w, r).ok(map[string]interface{}{
		"logged_out": ended,
		"session":    h.rt.State().Session,
	})
}

// Activity records user activity.
func (h *Handler) Activity(w http.ResponseWriter, r *http.Request) {
	h.rt.Activity()
	respond(w, r).ok(h.rt.State().Session)
}

// Extend renews the session after an idle warning.
func (h *Handler) Extend(w http.ResponseWriter, r *http.Request) {
	deadline, err := h.rt.Extend()
	if err != nil {
		writeError(w, r, err)
		return
	}
	respond(w, r).ok(map[string]time.Time{"idle_deadline": deadline})
}

// GetTheme returns the stored theme.
func (h *Handler) GetTheme(w http.ResponseWriter, r *http.Request) {
	respond(w, r).ok(themeRequest{Theme: h.rt.Theme()})
}

// PutTheme stores the theme.
func (h *Handler) PutTheme(w http.ResponseWriter, r *http.Request) {
	var req themeRequest
	if !decode(w, r, &req) {
		return
	}
	if err := h.rt.SetTheme(req.Theme); err != nil {
		writeError(w, r, err)
		return
	}
	respond(w, r).ok(req)
}

// Backend rebuilds the runtime on the requested backend variant.
func (h *Handler) Backend(w http.ResponseWriter, r *http.Request) {
	var req backendRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.rt.Rebuild(r.Context(), req.Simulated); err != nil {
		writeError(w, r, err)
		return
	}
	respond(w, r).ok(h.rt.State())
}

// ListStreams returns the cached streams, optionally narrowed by status.
func (h *Handler) ListStreams(w http.ResponseWriter, r *http.Request) {
	status := models.StreamStatus(r.URL.Query().Get("status"))
	if status != "" && !status.Valid() {
		respond(w, r).badRequest(fmt.Sprintf("unknown status %q", status))
		return
	}

	all := h.rt.Streams()
	out := make([]cache.StreamEntity, 0, len(all))
	for i := range all {
		if status == "" || all[i].Status == status {
			out = append(out, all[i])
		}
	}
	respond(w, r).ok(out)
}

// CreateStream registers a stream.
func (h *Handler) CreateStream(w http.ResponseWriter, r *http.Request) {
	var req models.CreateStreamRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	s, err := h.rt.CreateStream(r.Context(), &req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	respond(w, r).created(s)
}

// UpdateStream applies a stream patch.
func (h *Handler) UpdateStream(w http.ResponseWriter, r *http.Request) {
	var patch models.StreamPatch
	if !decodeJSON(w, r, &patch) {
		return
	}
	s, err := h.rt.UpdateStream(r.Context(), chi.URLParam(r, "id"), &patch)
	if err != nil {
		writeError(w, r, err)
		return
	}
	respond(w, r).ok(s)
}

// DeleteStream removes a stream.
func (h *Handler) DeleteStream(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.rt.DeleteStream(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	respond(w, r).ok(map[string]string{"deleted": id})
}

// Recording starts or stops recording a stream.
func (h *Handler) Recording(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var (
		s   *models.Stream
		err error
	)
	switch action := chi.URLParam(r, "action"); action {
	case "start":
		s, err = h.rt.StartRecording(r.Context(), id)
	case "stop":
		s, err = h.rt.StopRecording(r.Context(), id)
	default:
		respond(w, r).fail(http.StatusNotFound, CodeNotFound, fmt.Sprintf("unknown recording action %q", action), nil)
		return
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	respond(w, r).ok(s)
}

// ListRecordings returns the cached recordings, optionally for one stream.
func (h *Handler) ListRecordings(w http.ResponseWriter, r *http.Request) {
	streamID := r.URL.Query().Get("stream_id")
	all := h.rt.Recordings()
	if streamID == "" {
		respond(w, r).ok(all)
		return
	}
	out := make([]models.Recording, 0, len(all))
	for _, rec := range all {
		if rec.StreamID == streamID {
			out = append(out, rec)
		}
	}
	respond(w, r).ok(out)
}

// Refresh re-fetches the authoritative lists.
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	if err := h.rt.Refresh(r.Context()); err != nil {
		writeError(w, r, err)
		return
	}
	respond(w, r).ok(h.rt.State())
}

// GetConfig returns the server configuration.
func (h *Handler) GetConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.rt.GetConfig(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	respond(w, r).ok(cfg)
}

// UpdateConfig applies a partial server configuration change.
func (h *Handler) UpdateConfig(w http.ResponseWriter, r *http.Request) {
	var patch models.ConfigPatch
	if !decodeJSON(w, r, &patch) {
		return
	}
	cfg, err := h.rt.UpdateConfig(r.Context(), patch)
	if err != nil {
		writeError(w, r, err)
		return
	}
	respond(w, r).ok(cfg)
}
