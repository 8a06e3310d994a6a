// StreamBoard - Media Stream Fleet Dashboard Runtime
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/streamboard

// Package credentials persists the durable client state: the session token
// and the display theme.
//
// State is kept in a BadgerDB directory so it survives restarts. When the
// directory cannot be opened or a write fails, the store degrades to memory
// (state is lost on restart) and keeps serving callers; storage problems are
// logged and exported as the streamboard_credential_store_degraded gauge but
// never returned from token operations.
//
// When an encryption secret is configured the token is sealed with AES-GCM
// under an HKDF-derived key before it is written.
package credentials
