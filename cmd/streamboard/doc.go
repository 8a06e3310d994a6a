// StreamBoard - Media Stream Fleet Dashboard Runtime
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/streamboard

// Package main is the streamboard command.
//
// StreamBoard keeps a live, authenticated view of a fleet of media streams
// managed by a remote control API. The serve command runs the runtime under
// a supervisor tree and exposes the local operator console over HTTP. The
// remaining commands are one-shot operations against the same runtime and
// share its persisted login.
//
// # Commands
//
//	streamboard serve              run the runtime and the console
//	streamboard login -u USER      log in and persist the session token
//	streamboard logout             end the persisted session
//	streamboard streams            refresh and print the stream fleet
//	streamboard theme [get|set X]  read or store the display theme
//	streamboard version            print build information
//
// # Configuration
//
// Configuration is loaded via Koanf v2 (highest priority wins):
//   - Environment variables (API_BASE_URL, STORAGE_PATH, LOG_LEVEL, ...)
//   - Config file (--config, $CONFIG_PATH, or config.yaml)
//   - Built-in defaults
//
// Set USE_SIMULATED_BACKEND=true, or pass --simulated, to run against the
// in-process backend instead of a control API. Set SIMULATED_SIGNING_KEY
// when one-shot commands should share a simulated login.
//
// # Signal Handling
//
// serve shuts down on SIGINT and SIGTERM. The event stream and session
// guard stop first, then the supervisor tree drains the console server.
// The persisted session token is kept so the next start restores it.
package main
