// StreamBoard - Media Stream Fleet Dashboard Runtime
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/streamboard

// Package services adapts blocking components to suture.Service.
//
// HTTPServerService runs an http.Server and shuts it down gracefully when
// the supervisor stops. TickerService calls a function on a fixed interval.
package services
