// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// ROLE TYPE
// =============================================================================

// Role identifies the kind of account that authored a message.
type Role string

const (
	RoleUser       Role = "user"
	RoleClient     Role = "client"
	RoleFreelancer Role = "freelancer"
	RoleManager    Role = "manager"

	// RoleAssistant is the sentinel role for system-authored messages,
	// e.g. automated replies on the support channel.
	RoleAssistant Role = "assistant"
)

// String returns the string representation of the role.
func (r Role) String() string {
	return string(r)
}

// DisplayName returns a human-readable name for the role.
func (r Role) DisplayName() string {
	switch r {
	case RoleClient:
		return "Client"
	case RoleFreelancer:
		return "Freelancer"
	case RoleManager:
		return "Project Manager"
	case RoleAssistant:
		return "Assistant"
	case RoleUser:
		return "You"
	default:
		return string(r)
	}
}

// =============================================================================
// MESSAGE TYPE
// =============================================================================

// pendingIDPrefix marks client-generated ids for optimistic messages.
// Server-assigned ids never carry this prefix, so the two are
// distinguishable by shape alone.
const pendingIDPrefix = "tmp_"

// DeletedPlaceholder is rendered in place of the content of a message the
// server has marked as deleted. Deleted messages stay in the sequence.
const DeletedPlaceholder = "This message was deleted"

// Attachment describes a file attached to a message. Only the metadata
// travels with the message; the payload lives behind a download endpoint.
type Attachment struct {
	Name string `json:"name"`
	Size int64  `json:"size,omitempty"`
	Mime string `json:"mime,omitempty"`
}

// Message represents a single message in a conversation.
type Message struct {
	// Identity
	ID             string `json:"id"`
	ConversationID string `json:"conversationId"`

	// Content
	Content    string      `json:"content"`
	Attachment *Attachment `json:"attachment,omitempty"`

	// Author
	SenderID   string `json:"senderId"`
	SenderRole Role   `json:"senderRole"`
	SenderName string `json:"senderName"`

	// Ordering
	CreatedAt time.Time `json:"createdAt"`

	// Lifecycle flags
	Pending bool `json:"-"` // optimistic copy, not yet confirmed
	Failed  bool `json:"-"` // fallback send failed; kept for manual resend
	Deleted bool `json:"deleted,omitempty"`
}

// NewPendingMessage creates the optimistic local copy of an outgoing
// message. The id is client-generated and distinct in shape from server
// ids; reconciliation replaces it when the confirmed copy arrives.
func NewPendingMessage(conversationID, content string, senderID string, role Role, name string) *Message {
	return &Message{
		ID:             pendingIDPrefix + uuid.NewString(),
		ConversationID: conversationID,
		Content:        content,
		SenderID:       senderID,
		SenderRole:     role,
		SenderName:     name,
		CreatedAt:      time.Now(),
		Pending:        true,
	}
}

// IsOptimistic reports whether the message id is client-generated.
func (m *Message) IsOptimistic() bool {
	return strings.HasPrefix(m.ID, pendingIDPrefix)
}

// DisplayContent returns the content to render. Deleted messages render as
// a placeholder rather than being removed from the sequence.
func (m *Message) DisplayContent() string {
	if m.Deleted {
		return DeletedPlaceholder
	}
	return m.Content
}

// MatchesAuthorContent reports whether other carries the same content and
// author role as m. This is the fallback correlation used to reconcile an
// optimistic copy that has no server id yet.
func (m *Message) MatchesAuthorContent(other *Message) bool {
	return m.Content == other.Content && m.SenderRole == other.SenderRole
}

// IsEmpty returns true if the message has no content and no attachment.
func (m *Message) IsEmpty() bool {
	return m.Content == "" && m.Attachment == nil
}

// Preview returns a truncated preview of the message content.
// Uses rune-based truncation to handle Unicode correctly.
func (m *Message) Preview(maxLen int) string {
	content := m.DisplayContent()
	runes := []rune(content)
	if len(runes) <= maxLen {
		return content
	}
	return string(runes[:maxLen-3]) + "..."
}

// =============================================================================
// ORDERING
// =============================================================================

// SortByCreatedAt orders messages by CreatedAt ascending. The sort is
// stable: equal or missing timestamps keep their arrival order.
func SortByCreatedAt(msgs []*Message) {
	sort.SliceStable(msgs, func(i, j int) bool {
		return msgs[i].CreatedAt.Before(msgs[j].CreatedAt)
	})
}
