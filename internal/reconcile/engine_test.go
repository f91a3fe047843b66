// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package reconcile

import (
	"testing"
	"time"

	"github.com/jeranaias/gigchat-tui/internal/model"
)

func serverMsg(id, content string, role model.Role, at time.Time) *model.Message {
	return &model.Message{
		ID:             id,
		ConversationID: "c1",
		Content:        content,
		SenderID:       "u1",
		SenderRole:     role,
		SenderName:     "Ada",
		CreatedAt:      at,
	}
}

func contents(msgs []*model.Message) []string {
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = m.Content
	}
	return out
}

// =============================================================================
// OPTIMISTIC SEND TESTS
// =============================================================================

func TestEngine_AppendPending(t *testing.T) {
	e := New("c1")
	p := model.NewPendingMessage("c1", "hello", "u1", model.RoleClient, "Ada")
	e.AppendPending(p)

	msgs := e.Messages()
	if len(msgs) != 1 {
		t.Fatalf("Len = %d, want 1", len(msgs))
	}
	if !msgs[0].Pending || !msgs[0].IsOptimistic() {
		t.Error("appended message should be pending with an optimistic id")
	}
}

func TestEngine_Apply_ConfirmReplacesPendingByContent(t *testing.T) {
	e := New("c1")
	p := model.NewPendingMessage("c1", "hello", "u1", model.RoleClient, "Ada")
	e.AppendPending(p)

	confirmed := serverMsg("m1", "hello", model.RoleClient, p.CreatedAt.Add(200*time.Millisecond))
	e.Apply(confirmed)

	msgs := e.Messages()
	if len(msgs) != 1 {
		t.Fatalf("Len = %d, want 1 (confirm must not duplicate)", len(msgs))
	}
	if msgs[0].ID != "m1" || msgs[0].Pending {
		t.Errorf("pending should be replaced by server copy, got %+v", msgs[0])
	}
}

func TestEngine_Apply_MatchWindowLimitsContentFallback(t *testing.T) {
	e := New("c1")
	p := model.NewPendingMessage("c1", "ok", "u1", model.RoleClient, "Ada")
	e.AppendPending(p)

	// Same text, but sent long before the pending copy: a different message.
	old := serverMsg("m1", "ok", model.RoleClient, p.CreatedAt.Add(-10*time.Minute))
	e.Apply(old)

	if e.Len() != 2 {
		t.Errorf("Len = %d, want 2 (stale copy must not consume the pending)", e.Len())
	}
}

func TestEngine_MarkFailedAndTakeFailed(t *testing.T) {
	e := New("c1")
	p := model.NewPendingMessage("c1", "hello", "u1", model.RoleClient, "Ada")
	e.AppendPending(p)

	if !e.MarkFailed(p.ID) {
		t.Fatal("MarkFailed should find the pending message")
	}
	if msgs := e.Messages(); !msgs[0].Failed {
		t.Error("message should carry the failed flag")
	}

	got, ok := e.TakeFailed(p.ID)
	if !ok || got.Content != "hello" {
		t.Fatalf("TakeFailed = (%v, %v)", got, ok)
	}
	if e.Len() != 0 {
		t.Error("TakeFailed should remove the message")
	}
}

// =============================================================================
// INCOMING MESSAGE TESTS
// =============================================================================

func TestEngine_Apply_RedeliveryIsIdempotent(t *testing.T) {
	e := New("c1")
	at := time.Now()
	e.Apply(serverMsg("m1", "hi", model.RoleFreelancer, at))
	e.Apply(serverMsg("m1", "hi", model.RoleFreelancer, at))
	e.Apply(serverMsg("m1", "hi", model.RoleFreelancer, at))

	if e.Len() != 1 {
		t.Errorf("Len = %d, want 1 after triple delivery", e.Len())
	}
}

func TestEngine_Apply_DeletionUpdatesInPlace(t *testing.T) {
	e := New("c1")
	at := time.Now()
	e.Apply(serverMsg("m1", "secret", model.RoleFreelancer, at))

	deleted := serverMsg("m1", "secret", model.RoleFreelancer, at)
	deleted.Deleted = true
	e.Apply(deleted)

	msgs := e.Messages()
	if len(msgs) != 1 {
		t.Fatalf("Len = %d, want 1", len(msgs))
	}
	if got := msgs[0].DisplayContent(); got != model.DeletedPlaceholder {
		t.Errorf("DisplayContent = %q, want placeholder", got)
	}
}

func TestEngine_Apply_IgnoresOtherConversations(t *testing.T) {
	e := New("c1")
	other := serverMsg("m1", "hi", model.RoleFreelancer, time.Now())
	other.ConversationID = "c2"
	e.Apply(other)

	if e.Len() != 0 {
		t.Error("messages for other conversations must be ignored")
	}
}

func TestEngine_Apply_KeepsCreatedAtOrder(t *testing.T) {
	e := New("c1")
	base := time.Now()
	e.Apply(serverMsg("m2", "second", model.RoleFreelancer, base.Add(time.Second)))
	e.Apply(serverMsg("m1", "first", model.RoleClient, base))
	e.Apply(serverMsg("m3", "third", model.RoleFreelancer, base.Add(2*time.Second)))

	got := contents(e.Messages())
	want := []string{"first", "second", "third"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order = %v, want %v", got, want)
		}
	}
}

// =============================================================================
// HISTORY MERGE TESTS
// =============================================================================

func TestEngine_MergeHistory_PreservesInFlight(t *testing.T) {
	e := New("c1")
	base := time.Now()
	e.Apply(serverMsg("m1", "hi", model.RoleFreelancer, base))

	p := model.NewPendingMessage("c1", "on my way", "u1", model.RoleClient, "Ada")
	e.AppendPending(p)

	// Poll snapshot that does not yet include our in-flight send.
	e.MergeHistory([]*model.Message{
		serverMsg("m1", "hi", model.RoleFreelancer, base),
		serverMsg("m2", "any update?", model.RoleFreelancer, base.Add(time.Second)),
	})

	msgs := e.Messages()
	if len(msgs) != 3 {
		t.Fatalf("Len = %d, want 3: %v", len(msgs), contents(msgs))
	}
	found := false
	for _, m := range msgs {
		if m.ID == p.ID && m.Pending {
			found = true
		}
	}
	if !found {
		t.Error("history merge must keep the in-flight pending message")
	}
}

func TestEngine_MergeHistory_ConfirmsPending(t *testing.T) {
	e := New("c1")
	p := model.NewPendingMessage("c1", "on my way", "u1", model.RoleClient, "Ada")
	e.AppendPending(p)

	// Snapshot that includes the server copy of the pending send.
	e.MergeHistory([]*model.Message{
		serverMsg("m5", "on my way", model.RoleClient, p.CreatedAt.Add(100*time.Millisecond)),
	})

	msgs := e.Messages()
	if len(msgs) != 1 {
		t.Fatalf("Len = %d, want 1: %v", len(msgs), contents(msgs))
	}
	if msgs[0].ID != "m5" || msgs[0].Pending {
		t.Errorf("pending should have been confirmed by history, got %+v", msgs[0])
	}
}

func TestEngine_MergeHistory_DropsStaleConfirmed(t *testing.T) {
	e := New("c1")
	base := time.Now()
	e.Apply(serverMsg("m1", "hi", model.RoleFreelancer, base))
	e.Apply(serverMsg("m2", "gone", model.RoleFreelancer, base.Add(time.Second)))

	// The server snapshot is the source of truth for confirmed messages.
	e.MergeHistory([]*model.Message{
		serverMsg("m1", "hi", model.RoleFreelancer, base),
	})

	msgs := e.Messages()
	if len(msgs) != 1 || msgs[0].ID != "m1" {
		t.Errorf("merge should mirror the snapshot, got %v", contents(msgs))
	}
}

func TestEngine_MergeHistory_Repeatable(t *testing.T) {
	e := New("c1")
	base := time.Now()
	snapshot := []*model.Message{
		serverMsg("m1", "hi", model.RoleFreelancer, base),
		serverMsg("m2", "hello", model.RoleClient, base.Add(time.Second)),
	}
	e.MergeHistory(snapshot)
	e.MergeHistory(snapshot)

	if e.Len() != 2 {
		t.Errorf("Len = %d, want 2 after repeated identical merges", e.Len())
	}
}
