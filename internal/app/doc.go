// StreamBoard - Media Stream Fleet Dashboard Runtime
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/streamboard

/*
Package app is the composition point of the StreamBoard runtime.

A Runtime constructs every component once and passes them to each other
explicitly: the credential store, the notification bus, the entity cache and
its reconciler, the control API client, the event stream connection, the
health monitor and the session guard. It owns their lifecycles.

# Lifecycle

	rt, err := app.New(ctx, cfg, app.Options{})
	if err != nil {
		return err
	}
	if err := rt.Start(ctx); err != nil {
		return err
	}
	defer rt.Shutdown(context.Background())

	target, err := rt.Login(ctx, "operator", "secret")

Start runs the supervised services (session guard, health monitor and, with
the simulated backend, the fabricated event feed), waits until the guard is
subscribed to auth.failed and then restores a persisted session.

Login resets the cache, stores the token, restarts the event stream when
events.auto_start is set and performs a full refresh. Every time the event
stream opens a new connection another full refresh runs in the background,
so events missed while disconnected are recovered from the authoritative
lists.

# Backend variants

The remote or simulated backend is chosen once per build. Rebuild switches
variants by logging out, tearing down the variant-specific components and
constructing new ones; the cache, store and bus are kept.
*/
package app
