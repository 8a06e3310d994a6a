// StreamBoard - Media Stream Fleet Dashboard Runtime
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/streamboard

// Package eventstream owns the websocket connection to the server's event
// stream.
//
// A Manager moves through Idle, Connecting, Open, Reconnecting and Closed.
// Failed attempts are retried with exponential backoff that never shrinks
// between consecutive failures and resets once a connection opens. After a
// configured number of consecutive failures the manager reports Offline but
// keeps retrying. Closed is entered only by Stop or when a token is required
// and none is stored; it is left only by Restart.
//
// Messages are decoded with events.Decode and handed to the sink on the read
// goroutine, one at a time, in the order they arrived. Nothing is buffered
// across reconnects; the OnOpen hook lets the owner re-fetch state instead.
package eventstream
