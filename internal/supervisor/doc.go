// StreamBoard - Media Stream Fleet Dashboard Runtime
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/streamboard

/*
Package supervisor runs the runtime's long-lived goroutines under a suture v4
supervision tree.

	streamboard (root)
	├── session-layer
	│   └── session-guard        auth.failed subscription
	├── sync-layer
	│   ├── health-monitor       connectivity probe
	│   └── simulated-feed       only with the simulated backend
	└── console-layer
	    ├── live-hub             /api/live subscribers
	    ├── live-state           snapshot publisher ticker
	    └── console              local HTTP console

A service that returns an error or panics is restarted with suture's
backoff. Services return ctx.Err() when the tree shuts down. Supervisor
events are logged through sutureslog, which writes to the zerolog bridge in
internal/logging:

	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	tree.AddSyncService(healthMonitor)
	errCh := tree.ServeBackground(ctx)

The event stream connection is not a supervised service; it has its own
reconnect loop and lifecycle tied to the session.
*/
package supervisor
