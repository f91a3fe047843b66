// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"time"
)

// =============================================================================
// CONVERSATION TYPE
// =============================================================================

// Conversation holds the identity of a marketplace chat thread.
//
// The id is server-assigned and stable for the lifetime of a logical chat
// target; the logical key is the client-derived pairing string that the
// resolver maps onto the id. Conversations are never deleted by the
// client; deletion is a backend concern.
type Conversation struct {
	// Identity
	ID         string `json:"id"`
	LogicalKey string `json:"-"`

	// Display
	Title string `json:"title,omitempty"`

	// Timestamps
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TypingEntry records one remote participant who is currently typing in a
// conversation. Entries are keyed by sender identity and removed when the
// matching typing-stop signal arrives.
type TypingEntry struct {
	ConversationID string
	UserID         string
	UserName       string
}

// Key returns the identity key for the entry. The user id is preferred;
// some backends only deliver a display name on typing signals.
func (t TypingEntry) Key() string {
	if t.UserID != "" {
		return t.UserID
	}
	return t.UserName
}

// PresenceState is the per-conversation online snapshot pushed by the
// transport. Snapshots replace each other wholesale; there is no
// incremental merge.
type PresenceState struct {
	ConversationID string
	Online         []string
}

// IsOnline reports whether any remote participant is online.
func (p PresenceState) IsOnline() bool {
	return len(p.Online) > 0
}

// Contains reports whether the given user id is in the snapshot.
func (p PresenceState) Contains(userID string) bool {
	for _, id := range p.Online {
		if id == userID {
			return true
		}
	}
	return false
}
