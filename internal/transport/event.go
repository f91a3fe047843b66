// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package transport

import (
	"github.com/jeranaias/gigchat-tui/internal/model"
)

// EventKind tags the variant carried by an Event. The set is closed;
// consumers dispatch with a switch and an unknown kind is a programming
// error, not a runtime extension point.
type EventKind int

const (
	// EventState reports a transport state transition (Event.State).
	EventState EventKind = iota

	// EventMessage carries one incoming message (Event.Message).
	EventMessage

	// EventHistory carries a wholesale message snapshot (Event.History),
	// from the join handshake or a fallback poll.
	EventHistory

	// EventTyping carries a typing signal (Event.Typing, Event.TypingActive).
	EventTyping

	// EventPresence carries an online-users snapshot (Event.Presence).
	EventPresence

	// EventError reports a non-fatal transport error (Event.Err).
	EventError
)

// String returns the kind name for logs.
func (k EventKind) String() string {
	switch k {
	case EventState:
		return "state"
	case EventMessage:
		return "message"
	case EventHistory:
		return "history"
	case EventTyping:
		return "typing"
	case EventPresence:
		return "presence"
	case EventError:
		return "error"
	default:
		return "unknown"
	}
}

// Event is one inbound transport occurrence. Only the fields for its
// Kind are populated.
type Event struct {
	Kind EventKind

	State        State
	Message      *model.Message
	History      []*model.Message
	Typing       model.TypingEntry
	TypingActive bool
	Presence     model.PresenceState
	Err          error
}
