// StreamBoard - Media Stream Fleet Dashboard Runtime
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/streamboard

package config

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"time"
)

// Config holds all runtime configuration.
type Config struct {
	API       APIConfig       `koanf:"api"`
	Events    EventsConfig    `koanf:"events"`
	Simulated SimulatedConfig `koanf:"simulated"`
	Session   SessionConfig   `koanf:"session"`
	Storage   StorageConfig   `koanf:"storage"`
	Console   ConsoleConfig   `koanf:"console"`
	Logging   LoggingConfig   `koanf:"logging"`
}

// APIConfig holds control API client settings
type APIConfig struct {
	BaseURL        string        `koanf:"base_url"`
	Timeout        time.Duration `koanf:"timeout"`
	HealthInterval time.Duration `koanf:"health_interval"`

	// Probe the API once at startup and use the simulated backend if it is unreachable
	FallbackToSimulated bool `koanf:"fallback_to_simulated"`

	// Client-side request limiter (requests per second, 0 = unlimited)
	RateLimit float64 `koanf:"rate_limit"`
	RateBurst int     `koanf:"rate_burst"`

	// Circuit breaker around the remote client
	BreakerEnabled          bool          `koanf:"breaker_enabled"`
	BreakerMaxRequests      uint32        `koanf:"breaker_max_requests"`
	BreakerInterval         time.Duration `koanf:"breaker_interval"`
	BreakerTimeout          time.Duration `koanf:"breaker_timeout"`
	BreakerFailureThreshold uint32        `koanf:"breaker_failure_threshold"`
}

// EventsConfig holds event-stream connection settings
type EventsConfig struct {
	Host         string `koanf:"host"`
	Port         int    `koanf:"port"`
	Path         string `koanf:"path"`
	Secure       bool   `koanf:"secure"`        // wss:// instead of ws://
	RequireToken bool   `koanf:"require_token"` // missing token closes the connection for good
	AutoStart    bool   `koanf:"auto_start"`    // start the connection right after login

	BackoffMin        time.Duration `koanf:"backoff_min"`
	BackoffMax        time.Duration `koanf:"backoff_max"`
	BackoffMultiplier float64       `koanf:"backoff_multiplier"`
	BackoffJitter     float64       `koanf:"backoff_jitter"` // fraction of the delay, 0..1
	OfflineThreshold  int           `koanf:"offline_threshold"`

	HandshakeTimeout time.Duration `koanf:"handshake_timeout"`
	PingInterval     time.Duration `koanf:"ping_interval"`
	PongTimeout      time.Duration `koanf:"pong_timeout"`
}

// SimulatedConfig selects and tunes the in-process backend.
type SimulatedConfig struct {
	Enabled      bool          `koanf:"enabled"`
	FeedInterval time.Duration `koanf:"feed_interval"` // 0 disables the fabricated event feed
	SigningKey   string        `koanf:"signing_key"`   // empty uses a key kept in the credential store
	TokenTTL     time.Duration `koanf:"token_ttl"`
}

// SessionConfig holds session guard settings
type SessionConfig struct {
	IdleTimeout              time.Duration `koanf:"idle_timeout"`
	WarningGrace             time.Duration `koanf:"warning_grace"`
	LoginPath                string        `koanf:"login_path"`
	DefaultView              string        `koanf:"default_view"`
	ClearPreferencesOnLogout bool          `koanf:"clear_preferences_on_logout"`
}

// StorageConfig holds durable client state settings
type StorageConfig struct {
	Path          string `koanf:"path"`
	InMemory      bool   `koanf:"in_memory"`
	EncryptionKey string `koanf:"encryption_key"`
}

// ConsoleConfig holds the local HTTP console settings
type ConsoleConfig struct {
	Enabled         bool          `koanf:"enabled"`
	ListenAddr      string        `koanf:"listen_addr"`
	CORSOrigins     []string      `koanf:"cors_origins"`
	RateLimitReqs   int           `koanf:"rate_limit_reqs"`
	RateLimitWindow time.Duration `koanf:"rate_limit_window"`
	LiveInterval    time.Duration `koanf:"live_interval"` // state push period for /api/live
}

// LoggingConfig holds logging settings
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// EventURL returns the websocket URL of the event stream.
func (e *EventsConfig) EventURL() string {
	scheme := "ws"
	if e.Secure {
		scheme = "wss"
	}
	u := url.URL{
		Scheme: scheme,
		Host:   net.JoinHostPort(e.Host, strconv.Itoa(e.Port)),
		Path:   e.Path,
	}
	return u.String()
}

// String summarizes the backend selection for startup logs.
func (c *Config) String() string {
	if c.Simulated.Enabled {
		return "backend=simulated"
	}
	return fmt.Sprintf("backend=remote api=%s events=%s", c.API.BaseURL, c.Events.EventURL())
}
