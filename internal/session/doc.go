// StreamBoard - Media Stream Fleet Dashboard Runtime
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/streamboard

// Package session gates protected views behind an authenticated session.
//
// The Guard decides every navigation, remembers where an unauthenticated
// user wanted to go, and owns the idle timer: activity pushes the deadline
// forward, a warning fires a grace period before it, and reaching it logs
// out. Logout is the one path that tears a session down, whether it was
// requested by the user, the idle timer or an auth.failed signal, and
// running it twice leaves the same state as running it once.
package session
