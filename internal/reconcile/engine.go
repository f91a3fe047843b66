// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package reconcile

import (
	"time"

	"github.com/jeranaias/gigchat-tui/internal/model"
)

// pendingMatchWindow bounds the content-based fallback match between a
// pending message and a server copy that came back under a different id.
// Outside this window two identical texts are treated as separate sends.
const pendingMatchWindow = 2 * time.Minute

// Engine reconciles one conversation's message list.
//
// All methods are called from the UI goroutine; the engine does no
// locking of its own.
type Engine struct {
	conversationID string
	messages       []*model.Message
}

// New creates an empty engine for the given conversation.
func New(conversationID string) *Engine {
	return &Engine{conversationID: conversationID}
}

// ConversationID returns the conversation this engine is scoped to.
func (e *Engine) ConversationID() string {
	return e.conversationID
}

// Messages returns the current list, sorted by creation time. The slice
// is a copy; callers may not reorder engine state through it.
func (e *Engine) Messages() []*model.Message {
	out := make([]*model.Message, len(e.messages))
	copy(out, e.messages)
	return out
}

// Len returns the number of messages currently held.
func (e *Engine) Len() int {
	return len(e.messages)
}

// =============================================================================
// OPTIMISTIC SENDS
// =============================================================================

// AppendPending adds an optimistic local message. The entry renders
// immediately and is replaced when the server's copy arrives.
func (e *Engine) AppendPending(msg *model.Message) {
	msg.ConversationID = e.conversationID
	msg.Pending = true
	e.messages = append(e.messages, msg)
	model.SortByCreatedAt(e.messages)
}

// MarkFailed flags a pending message whose send failed. The message
// stays in the list so the user can see it and resend it.
func (e *Engine) MarkFailed(id string) bool {
	for _, m := range e.messages {
		if m.ID == id && m.Pending {
			m.Failed = true
			return true
		}
	}
	return false
}

// TakeFailed removes a failed pending message and returns it, so the
// caller can resend its content as a fresh optimistic message.
func (e *Engine) TakeFailed(id string) (*model.Message, bool) {
	for i, m := range e.messages {
		if m.ID == id && m.Failed {
			e.messages = append(e.messages[:i], e.messages[i+1:]...)
			return m, true
		}
	}
	return nil, false
}

// =============================================================================
// INCOMING MESSAGES
// =============================================================================

// Apply folds one server message into the list. The same message may be
// delivered more than once (live echo plus a poll, or a reconnect
// replay); re-delivery is a no-op apart from refreshing mutable fields
// such as the deleted flag.
//
// Matching order:
//  1. Same id already present: update in place.
//  2. A pending message with the same author and content, created within
//     pendingMatchWindow of the server copy: the server copy replaces it.
//  3. Otherwise the message is new; append it.
func (e *Engine) Apply(incoming *model.Message) {
	if incoming == nil {
		return
	}
	if incoming.ConversationID != "" && incoming.ConversationID != e.conversationID {
		return
	}
	incoming.Pending = false
	incoming.Failed = false

	// Exact id match: a re-delivery or an edit (e.g. deletion).
	for i, m := range e.messages {
		if m.ID == incoming.ID {
			e.messages[i] = incoming
			model.SortByCreatedAt(e.messages)
			return
		}
	}

	// Server copy of one of our in-flight sends.
	for i, m := range e.messages {
		if !m.Pending || !m.MatchesAuthorContent(incoming) {
			continue
		}
		if !withinMatchWindow(m.CreatedAt, incoming.CreatedAt) {
			continue
		}
		e.messages[i] = incoming
		model.SortByCreatedAt(e.messages)
		return
	}

	e.messages = append(e.messages, incoming)
	model.SortByCreatedAt(e.messages)
}

// =============================================================================
// HISTORY MERGE
// =============================================================================

// MergeHistory replaces the confirmed portion of the list with the
// server's snapshot while keeping local messages still in flight.
//
// A pending message whose server copy appears in the snapshot is
// considered confirmed and dropped in favor of that copy; pendings with
// no counterpart survive the merge unchanged.
func (e *Engine) MergeHistory(history []*model.Message) {
	merged := make([]*model.Message, 0, len(history)+len(e.messages))

	for _, h := range history {
		if h == nil {
			continue
		}
		if h.ConversationID != "" && h.ConversationID != e.conversationID {
			continue
		}
		h.Pending = false
		h.Failed = false
		merged = append(merged, h)
	}

	for _, m := range e.messages {
		if !m.Pending {
			continue
		}
		if historyContains(merged, m) {
			continue
		}
		merged = append(merged, m)
	}

	model.SortByCreatedAt(merged)
	e.messages = merged
}

// historyContains reports whether the snapshot already carries the
// server copy of a pending message, by id or by author+content within
// the match window.
func historyContains(history []*model.Message, pending *model.Message) bool {
	for _, h := range history {
		if h.ID == pending.ID {
			return true
		}
		if pending.MatchesAuthorContent(h) && withinMatchWindow(pending.CreatedAt, h.CreatedAt) {
			return true
		}
	}
	return false
}

func withinMatchWindow(a, b time.Time) bool {
	delta := b.Sub(a)
	return delta >= -pendingMatchWindow && delta <= pendingMatchWindow
}
