// StreamBoard - Media Stream Fleet Dashboard Runtime
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/streamboard

package client

import (
	"context"
	"errors"
	"fmt"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/streamboard/internal/logging"
	"github.com/tomtom215/streamboard/internal/metrics"
	"github.com/tomtom215/streamboard/internal/models"
)

// BreakerConfig configures a CircuitBreakerClient.
type BreakerConfig struct {
	Name             string
	MaxRequests      uint32        // requests allowed while half-open
	Interval         time.Duration // closed-state count reset period
	Timeout          time.Duration // open duration before half-open
	FailureThreshold uint32        // consecutive failures that open the circuit
}

// CircuitBreakerClient wraps a Client with a circuit breaker.
//
// Only unavailability and server errors count as failures. Authentication,
// validation and not-found responses pass through without tripping the
// circuit. Health probes bypass the breaker so connectivity is still observed
// while it is open.
type CircuitBreakerClient struct {
	next Client
	cb   *gobreaker.CircuitBreaker[interface{}]
	name string
}

var _ Client = (*CircuitBreakerClient)(nil)

// NewCircuitBreakerClient wraps next.
func NewCircuitBreakerClient(next Client, cfg BreakerConfig) *CircuitBreakerClient {
	if cfg.Name == "" {
		cfg.Name = "control-api"
	}
	threshold := cfg.FailureThreshold
	if threshold == 0 {
		threshold = 5
	}

	metrics.CircuitBreakerState.WithLabelValues(cfg.Name).Set(0)

	cb := gobreaker.NewCircuitBreaker[interface{}](gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,

		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.ConsecutiveFailures < threshold {
				return false
			}
			logging.Warn().Uint32("consecutive_failures", counts.ConsecutiveFailures).
				Msg("[CIRCUIT BREAKER] Opening circuit")
			return true
		},

		IsSuccessful: func(err error) bool {
			if err == nil {
				return true
			}
			switch KindOf(err) {
			case KindUnavailable, KindServer:
				return false
			}
			return true
		},

		OnStateChange: func(name string, from, to gobreaker.State) {
			fromStr, toStr := stateToString(from), stateToString(to)
			logging.Info().Str("from", fromStr).Str("to", toStr).Msg("[CIRCUIT BREAKER] State transition")
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, fromStr, toStr).Inc()
		},
	})

	return &CircuitBreakerClient{next: next, cb: cb, name: cfg.Name}
}

// State returns the current breaker state name.
func (c *CircuitBreakerClient) State() string {
	return stateToString(c.cb.State())
}

func (c *CircuitBreakerClient) execute(op string, fn func() (interface{}, error)) (interface{}, error) {
	result, err := c.cb.Execute(fn)
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			metrics.CircuitBreakerRequests.WithLabelValues(c.name, "rejected").Inc()
			metrics.RecordAPIRequest(op, "unavailable", 0)
			logging.Debug().Str("operation", op).Msg("[CIRCUIT BREAKER] Request rejected")
			return nil, &Error{Op: op, Kind: KindUnavailable, Message: "circuit breaker open", Err: err}
		}
		metrics.CircuitBreakerRequests.WithLabelValues(c.name, "failure").Inc()
		return nil, err
	}
	metrics.CircuitBreakerRequests.WithLabelValues(c.name, "success").Inc()
	return result, nil
}

// run adapts a typed call to the breaker.
func run[T any](c *CircuitBreakerClient, op string, fn func() (T, error)) (T, error) {
	var zero T
	result, err := c.execute(op, func() (interface{}, error) {
		return fn()
	})
	if err != nil {
		return zero, err
	}
	typed, ok := result.(T)
	if !ok {
		return zero, fmt.Errorf("circuit breaker: unexpected result type %T", result)
	}
	return typed, nil
}

// Variant implements Client.
func (c *CircuitBreakerClient) Variant() string { return c.next.Variant() }

// SetToken implements Client.
func (c *CircuitBreakerClient) SetToken(token string) { c.next.SetToken(token) }

// Health bypasses the breaker.
func (c *CircuitBreakerClient) Health(ctx context.Context) (*models.HealthStatus, error) {
	return c.next.Health(ctx)
}

// Login implements Client.
func (c *CircuitBreakerClient) Login(ctx context.Context, req *models.LoginRequest) (*models.LoginResponse, error) {
	return run(c, "login", func() (*models.LoginResponse, error) { return c.next.Login(ctx, req) })
}

// ListStreams implements Client.
func (c *CircuitBreakerClient) ListStreams(ctx context.Context, filter models.StreamFilter) ([]models.Stream, error) {
	return run(c, "list_streams", func() ([]models.Stream, error) { return c.next.ListStreams(ctx, filter) })
}

// CreateStream implements Client.
func (c *CircuitBreakerClient) CreateStream(ctx context.Context, req *models.CreateStreamRequest) (*models.Stream, error) {
	return run(c, "create_stream", func() (*models.Stream, error) { return c.next.CreateStream(ctx, req) })
}

// UpdateStream implements Client.
func (c *CircuitBreakerClient) UpdateStream(ctx context.Context, id string, patch *models.StreamPatch) (*models.Stream, error) {
	return run(c, "update_stream", func() (*models.Stream, error) { return c.next.UpdateStream(ctx, id, patch) })
}

// DeleteStream implements Client.
func (c *CircuitBreakerClient) DeleteStream(ctx context.Context, id string) error {
	_, err := c.execute("delete_stream", func() (interface{}, error) {
		return nil, c.next.DeleteStream(ctx, id)
	})
	return err
}

// StartRecording implements Client.
func (c *CircuitBreakerClient) StartRecording(ctx context.Context, id string) (*models.Stream, error) {
	return run(c, "start_recording", func() (*models.Stream, error) { return c.next.StartRecording(ctx, id) })
}

// StopRecording implements Client.
func (c *CircuitBreakerClient) StopRecording(ctx context.Context, id string) (*models.Stream, error) {
	return run(c, "stop_recording", func() (*models.Stream, error) { return c.next.StopRecording(ctx, id) })
}

// ListRecordings implements Client.
func (c *CircuitBreakerClient) ListRecordings(ctx context.Context, filter models.RecordingFilter) ([]models.Recording, error) {
	return run(c, "list_recordings", func() ([]models.Recording, error) { return c.next.ListRecordings(ctx, filter) })
}

// GetConfig implements Client.
func (c *CircuitBreakerClient) GetConfig(ctx context.Context) (*models.SystemConfig, error) {
	return run(c, "get_config", func() (*models.SystemConfig, error) { return c.next.GetConfig(ctx) })
}

// UpdateConfig implements Client.
func (c *CircuitBreakerClient) UpdateConfig(ctx context.Context, patch models.ConfigPatch) (*models.SystemConfig, error) {
	return run(c, "update_config", func() (*models.SystemConfig, error) { return c.next.UpdateConfig(ctx, patch) })
}

func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

func stateToString(state gobreaker.State) string {
	switch state {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateHalfOpen:
		return "half-open"
	case gobreaker.StateOpen:
		return "open"
	default:
		return "unknown"
	}
}
