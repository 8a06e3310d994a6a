// StreamBoard - Media Stream Fleet Dashboard Runtime
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/streamboard

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Event Stream Metrics
	EventStreamState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "streamboard_eventstream_state",
			Help: "Event stream connection state (0=idle, 1=connecting, 2=open, 3=reconnecting, 4=closed)",
		},
	)

	EventStreamTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "streamboard_eventstream_transitions_total",
			Help: "Total number of event stream state transitions",
		},
		[]string{"from_state", "to_state"},
	)

	EventStreamReconnects = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "streamboard_eventstream_reconnect_attempts_total",
			Help: "Total number of scheduled reconnect attempts",
		},
	)

	EventStreamOffline = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "streamboard_eventstream_offline",
			Help: "1 when consecutive connection failures exceeded the offline threshold",
		},
	)

	EventsReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "streamboard_events_received_total",
			Help: "Total number of decoded inbound events",
		},
		[]string{"kind"},
	)

	EventsMalformed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "streamboard_events_malformed_total",
			Help: "Total number of inbound messages dropped as malformed",
		},
	)

	// Reconciler Metrics
	ReconcileApplied = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "streamboard_reconcile_applied_total",
			Help: "Total number of events and responses applied to the entity cache",
		},
		[]string{"source"}, // "event", "response", "refresh"
	)

	ReconcileStale = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "streamboard_reconcile_stale_total",
			Help: "Total number of responses discarded because the cache generation moved on",
		},
	)

	CacheEntities = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "streamboard_cache_entities",
			Help: "Number of entities held in the cache",
		},
		[]string{"type"}, // "stream", "recording"
	)

	// API Client Metrics
	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "streamboard_api_request_duration_seconds",
			Help:    "Duration of control API requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	APIRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "streamboard_api_requests_total",
			Help: "Total number of control API requests",
		},
		[]string{"operation", "outcome"}, // outcome: "ok", "unavailable", "auth_failed", "error"
	)

	APIConnectivity = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "streamboard_api_connectivity",
			Help: "Control API connectivity (0=checking, 1=online, 2=offline)",
		},
	)

	// Circuit Breaker Metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "streamboard_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "streamboard_circuit_breaker_requests_total",
			Help: "Total number of requests through circuit breaker",
		},
		[]string{"name", "result"}, // result: "success", "failure", "rejected"
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "streamboard_circuit_breaker_state_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from_state", "to_state"},
	)

	// Session Metrics
	SessionAuthenticated = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "streamboard_session_authenticated",
			Help: "1 while an authenticated session is active",
		},
	)

	SessionLogouts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "streamboard_session_logouts_total",
			Help: "Total number of logouts",
		},
		[]string{"reason"}, // "user", "idle_timeout", "auth_failed", "token_expired"
	)

	SessionRedirects = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "streamboard_session_login_redirects_total",
			Help: "Total number of protected navigations redirected to login",
		},
	)

	// Runtime Metrics
	RuntimeRefreshes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "streamboard_runtime_refreshes_total",
			Help: "Total number of full refreshes by trigger and outcome",
		},
		[]string{"trigger", "outcome"}, // trigger: "login", "restore", "reconnect", "manual"
	)

	RuntimeRebuilds = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "streamboard_runtime_rebuilds_total",
			Help: "Total number of backend variant rebuilds",
		},
		[]string{"variant"},
	)

	// Console Metrics
	ConsoleRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "streamboard_console_request_duration_seconds",
			Help:    "Local console request latency",
			Buckets: []float64{.001, .005, .01, .05, .1, .5, 1, 5},
		},
		[]string{"method", "route"},
	)

	ConsoleRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "streamboard_console_requests_total",
			Help: "Total number of local console requests",
		},
		[]string{"method", "route", "status"},
	)

	LiveClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "streamboard_console_live_clients",
			Help: "Number of connected live state subscribers",
		},
	)

	LiveMessagesDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "streamboard_console_live_dropped_total",
			Help: "Live messages dropped because the broadcast queue was full",
		},
	)

	// Credential Store Metrics
	CredentialStoreDegraded = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "streamboard_credential_store_degraded",
			Help: "1 when durable storage is unavailable and state is kept in memory only",
		},
	)
)

// RecordAPIRequest records the duration and outcome of a control API call.
func RecordAPIRequest(operation, outcome string, duration time.Duration) {
	APIRequestDuration.WithLabelValues(operation).Observe(duration.Seconds())
	APIRequests.WithLabelValues(operation, outcome).Inc()
}

// RecordConsoleRequest records one console request.
func RecordConsoleRequest(method, route, status string, duration time.Duration) {
	ConsoleRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
	ConsoleRequests.WithLabelValues(method, route, status).Inc()
}

// RecordTransition records an event stream state change.
func RecordTransition(from, to string, toValue float64) {
	EventStreamTransitions.WithLabelValues(from, to).Inc()
	EventStreamState.Set(toValue)
}

// SetOffline sets the offline indicator gauge.
func SetOffline(offline bool) {
	EventStreamOffline.Set(boolToFloat(offline))
}

// SetCacheSize updates the cache size gauges.
func SetCacheSize(streams, recordings int) {
	CacheEntities.WithLabelValues("stream").Set(float64(streams))
	CacheEntities.WithLabelValues("recording").Set(float64(recordings))
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
