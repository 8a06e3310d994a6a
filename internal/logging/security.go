// StreamBoard - Media Stream Fleet Dashboard Runtime
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/streamboard

package logging

import (
	"strings"

	"github.com/rs/zerolog"
)

// SessionEvent is a security-relevant session transition for audit logging.
type SessionEvent struct {
	// Event is the transition: "login", "logout", "restore", "idle_warning".
	Event string
	// Reason explains forced transitions ("idle_timeout", "auth_failed", "user").
	Reason string
	// Token is redacted before it reaches the log.
	Token string
	// Location is the view the user was on.
	Location string
}

// SessionLogger writes session transitions with tokens redacted.
type SessionLogger struct {
	logger zerolog.Logger
}

// NewSessionLogger creates a session audit logger.
func NewSessionLogger() *SessionLogger {
	return &SessionLogger{logger: WithComponent("session")}
}

// LogEvent logs a session event.
func (l *SessionLogger) LogEvent(ev *SessionEvent) {
	e := l.logger.Info().Str("event", ev.Event)
	if ev.Reason != "" {
		e = e.Str("reason", ev.Reason)
	}
	if ev.Token != "" {
		e = e.Str("token", RedactToken(ev.Token))
	}
	if ev.Location != "" {
		e = e.Str("location", ev.Location)
	}
	e.Msg("[session] " + strings.ReplaceAll(ev.Event, "_", " "))
}

// RedactToken keeps the first four characters of a token for correlation.
func RedactToken(token string) string {
	if len(token) <= 8 {
		return "[REDACTED]"
	}
	return token[:4] + "...[REDACTED]"
}
