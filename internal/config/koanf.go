// StreamBoard - Media Stream Fleet Dashboard Runtime
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/streamboard

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where config files are searched in order of priority.
// The first file found will be used.
var DefaultConfigPaths = []string{
	"streamboard.yaml",
	"streamboard.yml",
	"/etc/streamboard/config.yaml",
	"/etc/streamboard/config.yml",
}

// ConfigPathEnvVar is the environment variable that can override the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// Default returns a Config with all defaults applied.
func Default() *Config {
	return &Config{
		API: APIConfig{
			BaseURL:                 "http://localhost:8080",
			Timeout:                 10 * time.Second,
			HealthInterval:          5 * time.Second,
			FallbackToSimulated:     false,
			RateLimit:               20,
			RateBurst:               10,
			BreakerEnabled:          true,
			BreakerMaxRequests:      3,
			BreakerInterval:         time.Minute,
			BreakerTimeout:          30 * time.Second,
			BreakerFailureThreshold: 5,
		},
		Events: EventsConfig{
			Host:              "localhost",
			Port:              8080,
			Path:              "/ws",
			RequireToken:      true,
			AutoStart:         true,
			BackoffMin:        time.Second,
			BackoffMax:        30 * time.Second,
			BackoffMultiplier: 2.0,
			BackoffJitter:     0.2,
			OfflineThreshold:  5,
			HandshakeTimeout:  10 * time.Second,
			PingInterval:      30 * time.Second,
			PongTimeout:       60 * time.Second,
		},
		Simulated: SimulatedConfig{
			Enabled:      false,
			FeedInterval: 2 * time.Second,
			SigningKey:   "",
			TokenTTL:     12 * time.Hour,
		},
		Session: SessionConfig{
			IdleTimeout:              30 * time.Minute,
			WarningGrace:             60 * time.Second,
			LoginPath:                "/login",
			DefaultView:              "/dashboard",
			ClearPreferencesOnLogout: false,
		},
		Storage: StorageConfig{
			Path:     defaultStoragePath(),
			InMemory: false,
		},
		Console: ConsoleConfig{
			Enabled:         true,
			ListenAddr:      "127.0.0.1:8787",
			CORSOrigins:     []string{"http://localhost:*", "http://127.0.0.1:*"},
			RateLimitReqs:   120,
			RateLimitWindow: time.Minute,
			LiveInterval:    time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

func defaultStoragePath() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return dir + "/streamboard/state"
	}
	return ".streamboard/state"
}

// Load loads configuration with layered sources:
//  1. Defaults
//  2. Config File: optional YAML file (CONFIG_PATH or DefaultConfigPaths)
//  3. Environment Variables: override any mapped setting
//
// The result is validated before it is returned.
func Load() (*Config, error) {
	return load(findConfigFile())
}

// LoadFile loads configuration like Load but from an explicit file path.
func LoadFile(path string) (*Config, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("config file %s: %w", path, err)
	}
	return load(path)
}

func load(configPath string) (*Config, error) {
	k := koanf.New(".")

	// Layer 1: defaults
	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// Layer 2: config file (optional)
	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// Layer 3: environment variables
	// API_BASE_URL -> api.base_url
	// USE_SIMULATED_BACKEND -> simulated.enabled
	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile returns the first config file found, or "".
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// sliceConfigPaths defines which config paths should be parsed as comma-separated slices
var sliceConfigPaths = []string{
	"console.cors_origins",
}

// processSliceFields converts comma-separated env values to slices.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		strVal, ok := k.Get(path).(string)
		if !ok || strVal == "" {
			continue
		}
		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if err := k.Set(path, trimmed); err != nil {
			return fmt.Errorf("failed to set %s: %w", path, err)
		}
	}
	return nil
}

// envMappings maps environment variable names (lowercased) to koanf paths.
var envMappings = map[string]string{
	// Control API
	"api_base_url":                  "api.base_url",
	"api_timeout":                   "api.timeout",
	"api_health_interval":           "api.health_interval",
	"api_fallback_simulated":        "api.fallback_to_simulated",
	"api_rate_limit":                "api.rate_limit",
	"api_rate_burst":                "api.rate_burst",
	"api_breaker_enabled":           "api.breaker_enabled",
	"api_breaker_max_requests":      "api.breaker_max_requests",
	"api_breaker_interval":          "api.breaker_interval",
	"api_breaker_timeout":           "api.breaker_timeout",
	"api_breaker_failure_threshold": "api.breaker_failure_threshold",

	// Event stream
	"event_host":               "events.host",
	"event_port":               "events.port",
	"event_path":               "events.path",
	"event_secure":             "events.secure",
	"event_require_token":      "events.require_token",
	"event_auto_start":         "events.auto_start",
	"event_backoff_min":        "events.backoff_min",
	"event_backoff_max":        "events.backoff_max",
	"event_backoff_multiplier": "events.backoff_multiplier",
	"event_backoff_jitter":     "events.backoff_jitter",
	"event_offline_threshold":  "events.offline_threshold",
	"event_handshake_timeout":  "events.handshake_timeout",
	"event_ping_interval":      "events.ping_interval",
	"event_pong_timeout":       "events.pong_timeout",

	// Simulated backend
	"use_simulated_backend":   "simulated.enabled",
	"simulated_feed_interval": "simulated.feed_interval",
	"simulated_signing_key":   "simulated.signing_key",
	"simulated_token_ttl":     "simulated.token_ttl",

	// Session
	"session_idle_timeout":      "session.idle_timeout",
	"session_warning_grace":     "session.warning_grace",
	"session_login_path":        "session.login_path",
	"session_default_view":      "session.default_view",
	"session_clear_preferences": "session.clear_preferences_on_logout",

	// Storage
	"storage_path":           "storage.path",
	"storage_in_memory":      "storage.in_memory",
	"storage_encryption_key": "storage.encryption_key",

	// Console
	"console_enabled":           "console.enabled",
	"console_listen_addr":       "console.listen_addr",
	"cors_origins":              "console.cors_origins",
	"console_rate_limit_reqs":   "console.rate_limit_reqs",
	"console_rate_limit_window": "console.rate_limit_window",
	"console_live_interval":     "console.live_interval",

	// Logging
	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",
}

// envTransformFunc transforms environment variable names to koanf config paths.
// Unmapped variables return "" and are skipped.
func envTransformFunc(key string) string {
	return envMappings[strings.ToLower(key)]
}
