// StreamBoard - Media Stream Fleet Dashboard Runtime
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/streamboard

package models

import (
	"fmt"
	"time"

	"github.com/tomtom215/streamboard/internal/validation"
)

// ConfigSection is one free-form section of the server configuration.
type ConfigSection map[string]interface{}

// SystemConfig is the server-, recording- and inference-section configuration.
type SystemConfig struct {
	Server    ConfigSection `json:"server"`
	Recording ConfigSection `json:"recording"`
	Inference ConfigSection `json:"inference"`
}

// ConfigPatch is the body of PATCH /api/config, keyed by section name.
type ConfigPatch map[string]ConfigSection

// Validate rejects unknown sections and empty patches.
func (p ConfigPatch) Validate() error {
	if len(p) == 0 {
		return fmt.Errorf("config patch is empty")
	}
	for name := range p {
		if !validation.IsConfigSection(name) {
			return fmt.Errorf("unknown config section %q", name)
		}
	}
	return nil
}

// ApplyTo merges the patch into cfg key by key.
func (p ConfigPatch) ApplyTo(cfg *SystemConfig) {
	for name, values := range p {
		var dst *ConfigSection
		switch name {
		case "server":
			dst = &cfg.Server
		case "recording":
			dst = &cfg.Recording
		case "inference":
			dst = &cfg.Inference
		default:
			continue
		}
		if *dst == nil {
			*dst = ConfigSection{}
		}
		for k, v := range values {
			(*dst)[k] = v
		}
	}
}

// HealthStatus is the body of GET /api/health.
type HealthStatus struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
	Uptime  string `json:"uptime,omitempty"`
}

// LoginRequest is the body of POST /api/auth/login.
type LoginRequest struct {
	Username string `json:"username" validate:"required,max=128"`
	Password string `json:"password" validate:"required,max=512"`
}

// LoginResponse is returned by a successful login.
type LoginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at,omitempty"`
}
