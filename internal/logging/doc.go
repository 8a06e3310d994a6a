// StreamBoard - Media Stream Fleet Dashboard Runtime
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/streamboard

// Package logging provides centralized zerolog-based structured logging for StreamBoard.
//
// Every component logs through the package-level helpers so a single Init call
// from main controls level and format for the whole runtime:
//
//	logging.Init(logging.Config{Level: "info", Format: "json"})
//	logging.Info().Str("state", "open").Msg("[eventstream] Connected")
//
// Bridges are provided for libraries that expect a different logger type:
// NewSlogLogger feeds suture's sutureslog hook and NewWatermillAdapter feeds
// the watermill gochannel bus used by the notify package.
//
// Environment variables (applied through the config package):
//   - LOG_LEVEL: trace, debug, info, warn, error (default: info)
//   - LOG_FORMAT: json, console (default: json)
//   - LOG_CALLER: true/false (default: false)
package logging
