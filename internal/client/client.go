// StreamBoard - Media Stream Fleet Dashboard Runtime
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/streamboard

package client

import (
	"context"
	"net/http"
	"time"

	"github.com/tomtom215/streamboard/internal/config"
	"github.com/tomtom215/streamboard/internal/logging"
	"github.com/tomtom215/streamboard/internal/models"
	"github.com/tomtom215/streamboard/internal/notify"
)

// Client is the control API contract shared by the remote and simulated backends.
type Client interface {
	Health(ctx context.Context) (*models.HealthStatus, error)
	Login(ctx context.Context, req *models.LoginRequest) (*models.LoginResponse, error)

	ListStreams(ctx context.Context, filter models.StreamFilter) ([]models.Stream, error)
	CreateStream(ctx context.Context, req *models.CreateStreamRequest) (*models.Stream, error)
	UpdateStream(ctx context.Context, id string, patch *models.StreamPatch) (*models.Stream, error)
	DeleteStream(ctx context.Context, id string) error
	StartRecording(ctx context.Context, id string) (*models.Stream, error)
	StopRecording(ctx context.Context, id string) (*models.Stream, error)

	ListRecordings(ctx context.Context, filter models.RecordingFilter) ([]models.Recording, error)

	GetConfig(ctx context.Context) (*models.SystemConfig, error)
	UpdateConfig(ctx context.Context, patch models.ConfigPatch) (*models.SystemConfig, error)

	// SetToken sets the bearer token attached to subsequent calls. Empty clears it.
	SetToken(token string)

	// Variant reports "remote" or "simulated".
	Variant() string
}

// AuthSignaler receives the authentication-failed signal.
type AuthSignaler interface {
	PublishAuthFailed(f notify.AuthFailure) error
}

// Variants
const (
	VariantRemote    = "remote"
	VariantSimulated = "simulated"
)

// Deps are the collaborators a client needs.
type Deps struct {
	Signals    AuthSignaler
	HTTPClient *http.Client // optional
	Keys       SigningKeys  // optional; keeps simulated tokens valid across restarts
}

// New selects and builds the backend once. The simulated backend is used when
// explicitly enabled, or when api.fallback_to_simulated is set and the remote
// health probe fails.
func New(ctx context.Context, cfg *config.Config, deps Deps) (Client, error) {
	if cfg.Simulated.Enabled {
		logging.Info().Msg("Using simulated control API backend")
		return NewSimulatedClient(&cfg.Simulated, deps.Signals, deps.Keys)
	}

	remote, err := NewRemoteClient(&cfg.API, deps.Signals, deps.HTTPClient)
	if err != nil {
		return nil, err
	}

	if cfg.API.FallbackToSimulated {
		probeCtx, cancel := context.WithTimeout(ctx, probeTimeout(cfg.API.Timeout))
		_, perr := remote.Health(probeCtx)
		cancel()
		if perr != nil {
			logging.Warn().Err(perr).Str("base_url", cfg.API.BaseURL).
				Msg("Control API unreachable at startup, falling back to simulated backend")
			return NewSimulatedClient(&cfg.Simulated, deps.Signals, deps.Keys)
		}
	}

	if !cfg.API.BreakerEnabled {
		return remote, nil
	}
	return NewCircuitBreakerClient(remote, BreakerConfig{
		Name:             "control-api",
		MaxRequests:      cfg.API.BreakerMaxRequests,
		Interval:         cfg.API.BreakerInterval,
		Timeout:          cfg.API.BreakerTimeout,
		FailureThreshold: cfg.API.BreakerFailureThreshold,
	}), nil
}

func probeTimeout(d time.Duration) time.Duration {
	if d <= 0 || d > 5*time.Second {
		return 5 * time.Second
	}
	return d
}
