// StreamBoard - Media Stream Fleet Dashboard Runtime
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/streamboard

/*
Package models defines the wire types exchanged with the control server.

Streams, recordings and the system configuration are decoded from the REST
API by the client package; request types carry validate tags checked before
anything is sent. Status and recording state are closed sets:

	StreamStatus:   idle | starting | running | stopped | error
	RecordingState: idle | recording

MetricsPatch carries the optional fields of a metrics.update event and is
overlaid onto a MetricsSnapshot field by field.
*/
package models
