// StreamBoard - Media Stream Fleet Dashboard Runtime
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/streamboard

/*
Package websocket pushes live runtime state to console subscribers.

The console mounts a Hub at /api/live. Each connected browser gets a Client
with a read pump and a write pump; the hub serializes every message once
and fans the frame out to all clients in connection order. Slow clients
whose send buffer fills are disconnected rather than stalling the rest.

A StatePublisher, driven by a supervised ticker, snapshots the runtime and
broadcasts only when the encoded snapshot changed. The hub keeps the last
state frame and replays it to clients as they connect, so a new subscriber
renders immediately.

Frames:

	{"type":"state","data":{...runtime snapshot...}}
	{"type":"pong","data":null}   reply to a client {"type":"ping"}

This package is the browser-facing side. The runtime's own connection to
the control API event stream lives in package eventstream.
*/
package websocket
