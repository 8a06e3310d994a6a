// StreamBoard - Media Stream Fleet Dashboard Runtime
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/streamboard

/*
Package client implements the control API contract.

Three implementations satisfy Client:

  - RemoteClient speaks HTTP+JSON to the server, attaching the bearer token
    to every call and rate limiting requests locally.
  - CircuitBreakerClient wraps another Client and fails fast with
    ErrUnavailable while the server is down.
  - SimulatedClient serves a fabricated dataset in process and issues its
    own JWTs, so every path including authentication failure works offline.

New picks one of them once at startup.

# Errors

Every operation returns a *Error. Match it with errors.Is:

	streams, err := c.ListStreams(ctx, models.StreamFilter{})
	switch {
	case errors.Is(err, client.ErrAuthenticationFailed):
	    // the session guard has already been signalled
	case errors.Is(err, client.ErrUnavailable):
	    // transport failure, 502/503/504 or open breaker
	}

A 401 or 403 on any call except Health and Login publishes auth.failed
through the AuthSignaler before returning. Calls are never retried here.

# Connectivity

HealthMonitor polls Health on an interval and exposes checking, online and
offline states. It runs as a suture service.
*/
package client
