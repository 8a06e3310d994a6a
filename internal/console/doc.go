// StreamBoard - Media Stream Fleet Dashboard Runtime
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/streamboard

/*
Package console serves the local HTTP surface that stands in for the
dashboard's presentation layer.

The console reads the entity cache, drives navigation and login through the
session guard, forwards stream commands to the runtime and exposes the
Prometheus registry. It listens on a loopback address by default.

# Routes

	GET    /healthz
	GET    /metrics
	GET    /api/state
	POST   /api/navigate                        {"path": "/streams"}
	POST   /api/session/login                   {"username": "...", "password": "..."}
	POST   /api/session/logout
	POST   /api/session/activity
	POST   /api/session/extend
	GET    /api/preferences/theme
	PUT    /api/preferences/theme               {"theme": "dark"}
	POST   /api/backend                         {"simulated": true}

Protected views pass through SessionGuard.Navigate first; an unauthenticated
request gets 401 with the login path and the recorded destination:

	GET    /api/streams                         view /streams
	POST   /api/streams
	PATCH  /api/streams/{id}
	DELETE /api/streams/{id}
	POST   /api/streams/{id}/recording/{action} start | stop
	GET    /api/live                            view /dashboard, websocket
	GET    /api/recordings                      view /recordings
	POST   /api/refresh                         view /dashboard
	GET    /api/config                          view /settings
	PATCH  /api/config

The live socket carries {"type":"state"} frames holding LiveState, pushed
whenever the snapshot changes (see package websocket).

Every response uses the same JSON envelope:

	{"success": true, "data": {...}, "meta": {"request_id": "...", "timestamp": "..."}}
	{"success": false, "error": {"code": "UNAUTHORIZED", "message": "..."}}
*/
package console
