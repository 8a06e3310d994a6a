// StreamBoard - Media Stream Fleet Dashboard Runtime
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/streamboard

// Package validation validates outbound API requests and console input with
// go-playground/validator v10.
//
// A single validator instance is shared process-wide. Besides the built-in
// tags it registers:
//   - streamid: stream identifiers accepted by the control server
//   - configsection: one of server, recording, inference
//
// Error field names follow the json tag of the struct field.
package validation
