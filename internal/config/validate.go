// StreamBoard - Media Stream Fleet Dashboard Runtime
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/streamboard

package config

import (
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/tomtom215/streamboard/internal/logging"
)

// Validate checks that the configuration is complete and consistent.
func (c *Config) Validate() error {
	if err := c.validateAPI(); err != nil {
		return err
	}
	if err := c.validateEvents(); err != nil {
		return err
	}
	if err := c.validateSimulated(); err != nil {
		return err
	}
	if err := c.validateSession(); err != nil {
		return err
	}
	if err := c.validateStorage(); err != nil {
		return err
	}
	if err := c.validateConsole(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateAPI() error {
	// The remote API is never contacted in simulated mode.
	if !c.Simulated.Enabled {
		if c.API.BaseURL == "" {
			return fmt.Errorf("API_BASE_URL is required unless USE_SIMULATED_BACKEND=true")
		}
		if err := validateHTTPURL(c.API.BaseURL, "API_BASE_URL"); err != nil {
			return err
		}
	}
	if c.API.Timeout <= 0 {
		return fmt.Errorf("API_TIMEOUT must be positive, got %v", c.API.Timeout)
	}
	if c.API.HealthInterval < time.Second {
		return fmt.Errorf("API_HEALTH_INTERVAL must be at least 1s, got %v", c.API.HealthInterval)
	}
	if c.API.RateLimit < 0 {
		return fmt.Errorf("API_RATE_LIMIT cannot be negative")
	}
	if c.API.RateLimit > 0 && c.API.RateBurst < 1 {
		return fmt.Errorf("API_RATE_BURST must be at least 1 when API_RATE_LIMIT is set")
	}
	if c.API.BreakerEnabled && c.API.BreakerFailureThreshold == 0 {
		return fmt.Errorf("API_BREAKER_FAILURE_THRESHOLD must be at least 1")
	}
	return nil
}

func (c *Config) validateEvents() error {
	e := &c.Events
	if e.Host == "" {
		return fmt.Errorf("EVENT_HOST is required")
	}
	if e.Port < 1 || e.Port > 65535 {
		return fmt.Errorf("EVENT_PORT must be between 1 and 65535, got %d", e.Port)
	}
	if !strings.HasPrefix(e.Path, "/") {
		return fmt.Errorf("EVENT_PATH must start with '/', got %q", e.Path)
	}
	if e.BackoffMin <= 0 {
		return fmt.Errorf("EVENT_BACKOFF_MIN must be positive")
	}
	if e.BackoffMax < e.BackoffMin {
		return fmt.Errorf("EVENT_BACKOFF_MAX (%v) must not be less than EVENT_BACKOFF_MIN (%v)", e.BackoffMax, e.BackoffMin)
	}
	if e.BackoffMultiplier < 1 {
		return fmt.Errorf("EVENT_BACKOFF_MULTIPLIER must be >= 1, got %v", e.BackoffMultiplier)
	}
	if e.BackoffJitter < 0 || e.BackoffJitter > 1 {
		return fmt.Errorf("EVENT_BACKOFF_JITTER must be between 0 and 1, got %v", e.BackoffJitter)
	}
	if e.OfflineThreshold < 1 {
		return fmt.Errorf("EVENT_OFFLINE_THRESHOLD must be at least 1")
	}
	if e.PingInterval <= 0 || e.PongTimeout <= e.PingInterval {
		return fmt.Errorf("EVENT_PONG_TIMEOUT (%v) must exceed EVENT_PING_INTERVAL (%v)", e.PongTimeout, e.PingInterval)
	}
	return nil
}

func (c *Config) validateSimulated() error {
	if !c.Simulated.Enabled {
		return nil
	}
	if c.Simulated.FeedInterval < 0 {
		return fmt.Errorf("SIMULATED_FEED_INTERVAL cannot be negative")
	}
	if c.Simulated.TokenTTL <= 0 {
		return fmt.Errorf("SIMULATED_TOKEN_TTL must be positive")
	}
	return nil
}

func (c *Config) validateSession() error {
	s := &c.Session
	if s.IdleTimeout < time.Minute {
		return fmt.Errorf("SESSION_IDLE_TIMEOUT must be at least 1m, got %v", s.IdleTimeout)
	}
	if s.WarningGrace <= 0 || s.WarningGrace >= s.IdleTimeout {
		return fmt.Errorf("SESSION_WARNING_GRACE must be positive and shorter than SESSION_IDLE_TIMEOUT")
	}
	if !strings.HasPrefix(s.LoginPath, "/") || !strings.HasPrefix(s.DefaultView, "/") {
		return fmt.Errorf("SESSION_LOGIN_PATH and SESSION_DEFAULT_VIEW must be absolute paths")
	}
	if s.LoginPath == s.DefaultView {
		return fmt.Errorf("SESSION_DEFAULT_VIEW must differ from SESSION_LOGIN_PATH")
	}
	return nil
}

func (c *Config) validateStorage() error {
	if !c.Storage.InMemory && c.Storage.Path == "" {
		return fmt.Errorf("STORAGE_PATH is required unless STORAGE_IN_MEMORY=true")
	}
	if key := c.Storage.EncryptionKey; key != "" && len(key) < 32 {
		return fmt.Errorf("STORAGE_ENCRYPTION_KEY must be at least 32 characters")
	}
	return nil
}

func (c *Config) validateConsole() error {
	if !c.Console.Enabled {
		return nil
	}
	if _, _, err := net.SplitHostPort(c.Console.ListenAddr); err != nil {
		return fmt.Errorf("CONSOLE_LISTEN_ADDR is invalid: %w", err)
	}
	if c.Console.RateLimitReqs < 0 {
		return fmt.Errorf("CONSOLE_RATE_LIMIT_REQS cannot be negative")
	}
	if c.Console.LiveInterval < 100*time.Millisecond {
		return fmt.Errorf("CONSOLE_LIVE_INTERVAL must be at least 100ms, got %v", c.Console.LiveInterval)
	}
	return nil
}

func (c *Config) validateLogging() error {
	if !logging.ValidLevel(c.Logging.Level) {
		return fmt.Errorf("LOG_LEVEL must be one of trace, debug, info, warn, error; got %q", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("LOG_FORMAT must be json or console, got %q", c.Logging.Format)
	}
	return nil
}

// validateHTTPURL checks that rawURL is an http(s) base URL with a host.
func validateHTTPURL(rawURL, fieldName string) error {
	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("%s failed to parse URL: %w", fieldName, err)
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return fmt.Errorf("%s scheme must be http or https, got: %s", fieldName, parsedURL.Scheme)
	}
	if parsedURL.Host == "" {
		return fmt.Errorf("%s host is required", fieldName)
	}
	if parsedURL.RawQuery != "" {
		return fmt.Errorf("%s should not contain query parameters, remove: ?%s", fieldName, parsedURL.RawQuery)
	}
	return nil
}
