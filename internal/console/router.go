// StreamBoard - Media Stream Fleet Dashboard Runtime
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/streamboard

package console

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/streamboard/internal/app"
	"github.com/tomtom215/streamboard/internal/cache"
	"github.com/tomtom215/streamboard/internal/client"
	"github.com/tomtom215/streamboard/internal/config"
	"github.com/tomtom215/streamboard/internal/models"
	"github.com/tomtom215/streamboard/internal/session"
)

// Views guarded by the session.
const (
	ViewDashboard  = "/dashboard"
	ViewStreams    = "/streams"
	ViewRecordings = "/recordings"
	ViewSettings   = "/settings"
)

// Runtime is the part of app.Runtime the console drives.
type Runtime interface {
	State() app.State
	Variant() string
	Connectivity() client.Connectivity
	Streams() []cache.StreamEntity
	Recordings() []models.Recording

	Navigate(path string) session.Decision
	Login(ctx context.Context, username, password string) (string, error)
	Logout() bool
	Activity()
	Extend() (time.Time, error)

	Refresh(ctx context.Context) error
	CreateStream(ctx context.Context, req *models.CreateStreamRequest) (*models.Stream, error)
	UpdateStream(ctx context.Context, id string, patch *models.StreamPatch) (*models.Stream, error)
	DeleteStream(ctx context.Context, id string) error
	StartRecording(ctx context.Context, id string) (*models.Stream, error)
	StopRecording(ctx context.Context, id string) (*models.Stream, error)
	GetConfig(ctx context.Context) (*models.SystemConfig, error)
	UpdateConfig(ctx context.Context, patch models.ConfigPatch) (*models.SystemConfig, error)

	Theme() string
	SetTheme(theme string) error
	Rebuild(ctx context.Context, simulated bool) error
}

var _ Runtime = (*app.Runtime)(nil)

// Handler serves the console routes.
type Handler struct {
	rt Runtime
}

// NewRouter builds the console router. live, when non-nil, serves the
// state push socket at /api/live.
func NewRouter(rt Runtime, cfg config.ConsoleConfig, live http.Handler) http.Handler {
	h := &Handler{rt: rt}
	mw := NewMiddleware(cfg)

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(RequestLogging)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(mw.CORS())
	r.Use(Metrics)

	r.Get("/healthz", h.Healthz)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Use(mw.RateLimit())
		r.Use(SecurityHeaders)

		r.Get("/state", h.State)
		r.Post("/navigate", h.Navigate)

		r.Route("/session", func(r chi.Router) {
			r.With(mw.RateLimitLogin()).Post("/login", h.Login)
			r.Post("/logout", h.Logout)
			r.Post("/activity", h.Activity)
			r.Post("/extend", h.Extend)
		})

		r.Get("/preferences/theme", h.GetTheme)
		r.Put("/preferences/theme", h.PutTheme)
		r.Post("/backend", h.Backend)

		r.Route("/streams", func(r chi.Router) {
			r.Use(h.requireView(ViewStreams))
			r.Get("/", h.ListStreams)
			r.Post("/", h.CreateStream)
			r.Patch("/{id}", h.UpdateStream)
			r.Delete("/{id}", h.DeleteStream)
			r.Post("/{id}/recording/{action}", h.Recording)
		})

		if live != nil {
			r.With(h.requireView(ViewDashboard)).Get("/live", live.ServeHTTP)
		}

		r.With(h.requireView(ViewRecordings)).Get("/recordings", h.ListRecordings)
		r.With(h.requireView(ViewDashboard)).Post("/refresh", h.Refresh)

		r.Route("/config", func(r chi.Router) {
			r.Use(h.requireView(ViewSettings))
			r.Get("/", h.GetConfig)
			r.Patch("/", h.UpdateConfig)
		})
	})

	return r
}

// requireView passes the request through the session guard as a navigation
// to view. A redirect is answered with 401 carrying the login path.
func (h *Handler) requireView(view string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			d := h.rt.Navigate(view)
			if !d.Allowed {
				respond(w, r).fail(http.StatusUnauthorized, CodeUnauthorized, "login required", d)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
