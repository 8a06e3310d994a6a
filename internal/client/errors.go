// StreamBoard - Media Stream Fleet Dashboard Runtime
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/streamboard

package client

import (
	"errors"
	"fmt"
)

// Sentinel errors matched with errors.Is against a *Error.
var (
	// ErrUnavailable means the control API could not be reached or answered 502/503/504.
	ErrUnavailable = errors.New("control API unavailable")

	// ErrAuthenticationFailed means the server rejected the session token.
	ErrAuthenticationFailed = errors.New("authentication failed")

	// ErrInvalidCredentials means a login attempt was refused.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrInvalidRequest means the request failed local validation or the server refused it.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrNotFound means the addressed entity does not exist.
	ErrNotFound = errors.New("not found")
)

// Kind classifies a client error.
type Kind int

const (
	KindServer Kind = iota
	KindUnavailable
	KindAuthenticationFailed
	KindInvalidCredentials
	KindInvalidRequest
	KindNotFound
	KindCanceled
)

func (k Kind) String() string {
	switch k {
	case KindUnavailable:
		return "unavailable"
	case KindAuthenticationFailed:
		return "auth_failed"
	case KindInvalidCredentials:
		return "invalid_credentials"
	case KindInvalidRequest:
		return "invalid_request"
	case KindNotFound:
		return "not_found"
	case KindCanceled:
		return "canceled"
	default:
		return "error"
	}
}

// Error is returned by every Client operation.
type Error struct {
	Op         string // operation name, e.g. "list_streams"
	Kind       Kind
	StatusCode int // 0 when no response was received
	Message    string
	Err        error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: %s (status %d): %s", e.Op, e.Kind, e.StatusCode, msg)
	}
	return fmt.Sprintf("%s: %s: %s", e.Op, e.Kind, msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the package sentinels by kind.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrUnavailable:
		return e.Kind == KindUnavailable
	case ErrAuthenticationFailed:
		return e.Kind == KindAuthenticationFailed
	case ErrInvalidCredentials:
		return e.Kind == KindInvalidCredentials
	case ErrInvalidRequest:
		return e.Kind == KindInvalidRequest
	case ErrNotFound:
		return e.Kind == KindNotFound
	}
	return false
}

// KindOf returns the kind of err, or KindServer when err is not a *Error.
func KindOf(err error) Kind {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return KindServer
}

// outcome maps an error to the metrics outcome label.
func outcome(err error) string {
	if err == nil {
		return "ok"
	}
	switch KindOf(err) {
	case KindUnavailable:
		return "unavailable"
	case KindAuthenticationFailed:
		return "auth_failed"
	default:
		return "error"
	}
}
