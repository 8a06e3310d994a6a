// StreamBoard - Media Stream Fleet Dashboard Runtime
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/streamboard

/*
Package metrics provides Prometheus instrumentation for the StreamBoard runtime.

Metrics are registered with the default registry through promauto and are
exposed by the console at /metrics:

	curl http://127.0.0.1:8787/metrics

Covered areas:
  - Event stream connection state, transitions, reconnects and offline flag
  - Inbound events by kind and malformed drops
  - Reconciler applications and stale discards, cache sizes
  - Control API latency and outcomes, connectivity and circuit breaker state
  - Session authentication and logouts by reason
*/
package metrics
