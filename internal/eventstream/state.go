// StreamBoard - Media Stream Fleet Dashboard Runtime
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/streamboard

package eventstream

// State is the connection state.
type State int

const (
	StateIdle State = iota
	StateConnecting
	StateOpen
	StateReconnecting
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateReconnecting:
		return "reconnecting"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// allowed lists the legal transitions. Any state may move to Closed.
var allowed = map[State][]State{
	StateIdle:         {StateConnecting},
	StateConnecting:   {StateOpen, StateReconnecting},
	StateOpen:         {StateReconnecting},
	StateReconnecting: {StateConnecting},
	StateClosed:       {StateIdle},
}

func canTransition(from, to State) bool {
	if to == StateClosed {
		return from != StateClosed
	}
	for _, s := range allowed[from] {
		if s == to {
			return true
		}
	}
	return false
}
