// StreamBoard - Media Stream Fleet Dashboard Runtime
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/streamboard

package console

import (
	"github.com/tomtom215/streamboard/internal/app"
	"github.com/tomtom215/streamboard/internal/cache"
)

// LiveState is the snapshot pushed over /api/live.
type LiveState struct {
	app.State
	StreamEntities []cache.StreamEntity `json:"stream_entities"`
}

// LiveSnapshot returns the snapshot function for a websocket.StatePublisher.
func LiveSnapshot(rt Runtime) func() interface{} {
	return func() interface{} {
		return LiveState{State: rt.State(), StreamEntities: rt.Streams()}
	}
}
