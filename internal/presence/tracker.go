// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package presence

import (
	"sort"
	"sync"
	"time"

	"github.com/jeranaias/gigchat-tui/internal/model"
)

// remoteTypingTTL caps how long a remote typist stays visible without a
// fresh start signal. The server sends explicit stops, but a dropped stop
// must not leave a phantom "is typing" on screen forever.
const remoteTypingTTL = 6 * time.Second

// Tracker holds per-conversation typing and online state.
//
// Safe for concurrent use: the transport goroutine feeds it while the UI
// goroutine reads it.
type Tracker struct {
	mu sync.Mutex

	selfID   string
	selfName string

	// conversationID -> typist key -> entry
	typing map[string]map[string]typingState

	// conversationID -> online user ids (wholesale snapshots)
	online map[string][]string

	now func() time.Time // test hook
}

type typingState struct {
	entry    model.TypingEntry
	deadline time.Time
}

// NewTracker creates a tracker that filters out events about the given
// local user.
func NewTracker(selfID, selfName string) *Tracker {
	return &Tracker{
		selfID:   selfID,
		selfName: selfName,
		typing:   make(map[string]map[string]typingState),
		online:   make(map[string][]string),
		now:      time.Now,
	}
}

// isSelf reports whether the entry describes the local user. Some event
// sources only carry a display name, so both fields are checked.
func (t *Tracker) isSelf(e model.TypingEntry) bool {
	if e.UserID != "" && e.UserID == t.selfID {
		return true
	}
	return e.UserID == "" && e.UserName != "" && e.UserName == t.selfName
}

// =============================================================================
// TYPING
// =============================================================================

// HandleTyping applies one typing signal. Events about the local user are
// dropped. active=true adds or refreshes the typist; active=false removes
// them immediately.
func (t *Tracker) HandleTyping(e model.TypingEntry, active bool) {
	if t.isSelf(e) {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	byKey := t.typing[e.ConversationID]
	if !active {
		if byKey != nil {
			delete(byKey, e.Key())
		}
		return
	}

	if byKey == nil {
		byKey = make(map[string]typingState)
		t.typing[e.ConversationID] = byKey
	}
	byKey[e.Key()] = typingState{entry: e, deadline: t.now().Add(remoteTypingTTL)}
}

// Typists returns everyone currently typing in the conversation, sorted
// by display name for stable rendering. Expired entries are pruned.
func (t *Tracker) Typists(conversationID string) []model.TypingEntry {
	t.mu.Lock()
	defer t.mu.Unlock()

	byKey := t.typing[conversationID]
	if len(byKey) == 0 {
		return nil
	}

	now := t.now()
	out := make([]model.TypingEntry, 0, len(byKey))
	for key, st := range byKey {
		if now.After(st.deadline) {
			delete(byKey, key)
			continue
		}
		out = append(out, st.entry)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].UserName < out[j].UserName
	})
	return out
}

// ClearTyping forgets all typists for a conversation, e.g. on detach.
func (t *Tracker) ClearTyping(conversationID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.typing, conversationID)
}

// =============================================================================
// PRESENCE
// =============================================================================

// SetOnline replaces the online set for a conversation with the server's
// snapshot. Snapshots are wholesale: users absent from the list are
// offline.
func (t *Tracker) SetOnline(conversationID string, userIDs []string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	snapshot := make([]string, len(userIDs))
	copy(snapshot, userIDs)
	t.online[conversationID] = snapshot
}

// IsOnline reports whether the user appears in the conversation's latest
// presence snapshot.
func (t *Tracker) IsOnline(conversationID, userID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, id := range t.online[conversationID] {
		if id == userID {
			return true
		}
	}
	return false
}

// Online returns a copy of the conversation's online set.
func (t *Tracker) Online(conversationID string) []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	src := t.online[conversationID]
	out := make([]string, len(src))
	copy(out, src)
	return out
}
