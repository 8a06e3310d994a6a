// StreamBoard - Media Stream Fleet Dashboard Runtime
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/streamboard

/*
Package config provides layered configuration loading for StreamBoard.

Configuration is resolved in three layers with increasing priority:

 1. Built-in defaults (Default)
 2. An optional YAML file: CONFIG_PATH, streamboard.yaml or /etc/streamboard/config.yaml
 3. Environment variables

# Startup Surface

The three settings every deployment touches:

  - API_BASE_URL: control API base URL (default: http://localhost:8080)
  - EVENT_HOST / EVENT_PORT: event-stream endpoint (default: localhost:8080, path /ws)
  - USE_SIMULATED_BACKEND: answer from the in-process simulated backend (default: false)

# Session

  - SESSION_IDLE_TIMEOUT: idle window before forced logout (default: 30m)
  - SESSION_WARNING_GRACE: warning lead time before logout (default: 60s)

# Example

	cfg, err := config.Load()
	if err != nil {
	    return err
	}
	fmt.Println(cfg.Events.EventURL())

Every section is validated by Config.Validate; Load never returns an
unvalidated Config.
*/
package config
