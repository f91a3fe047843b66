// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jeranaias/gigchat-tui/internal/identity"
	"github.com/jeranaias/gigchat-tui/internal/model"
	"github.com/jeranaias/gigchat-tui/internal/resolver"
	"github.com/jeranaias/gigchat-tui/internal/transport"
)

// backend fakes the marketplace chat REST API: conversation resolution,
// message polling and message sends.
type backend struct {
	srv *httptest.Server

	mu        sync.Mutex
	nextID    int
	byService map[string]string
	history   map[string][]*model.Message
	polls     map[string]int
	posts     map[string]int
	failSends bool
}

func newBackend(t *testing.T) *backend {
	b := &backend{
		byService: map[string]string{},
		history:   map[string][]*model.Message{},
		polls:     map[string]int{},
		posts:     map[string]int{},
	}
	b.srv = httptest.NewServer(http.HandlerFunc(b.handle))
	t.Cleanup(b.srv.Close)
	return b
}

func (b *backend) handle(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch {
	case r.Method == http.MethodPost && r.URL.Path == "/api/chat/conversations":
		var req struct {
			Service string `json:"service"`
		}
		json.NewDecoder(r.Body).Decode(&req)
		id, ok := b.byService[req.Service]
		if !ok {
			b.nextID++
			id = fmt.Sprintf("c%d", b.nextID)
			b.byService[req.Service] = id
		}
		json.NewEncoder(w).Encode(map[string]string{"id": id})

	case r.Method == http.MethodGet && strings.HasSuffix(r.URL.Path, "/messages"):
		id := conversationFromPath(r.URL.Path)
		b.polls[id]++
		json.NewEncoder(w).Encode(b.history[id])

	case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/messages"):
		if b.failSends {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		id := conversationFromPath(r.URL.Path)
		b.posts[id]++
		w.Write([]byte(`{}`))

	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func conversationFromPath(path string) string {
	parts := strings.Split(path, "/")
	// /api/chat/conversations/{id}/messages
	return parts[len(parts)-2]
}

func (b *backend) pollCount(id string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.polls[id]
}

func (b *backend) postCount(id string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.posts[id]
}

func (b *backend) setHistory(id string, msgs []*model.Message) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.history[id] = msgs
}

func (b *backend) setFailSends(fail bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failSends = fail
}

func newTestSession(t *testing.T, b *backend, retries int) *Session {
	t.Helper()

	api := identity.NewClient(b.srv.URL, "tok", identity.Identity{
		UserID: "me", UserName: "Ada", Role: model.RoleClient,
	}).WithMaxRetries(retries)

	cache, err := resolver.OpenCache(filepath.Join(t.TempDir(), "conversations.db"))
	if err != nil {
		t.Fatalf("OpenCache: %v", err)
	}
	t.Cleanup(func() { cache.Close() })

	s := New(api, resolver.New(api, cache), transport.Config{
		// No live endpoint in these tests: every attach degrades to
		// polling, which exercises the full event pump anyway.
		SocketURL:    "ws://127.0.0.1:1/ws",
		PollInterval: 25 * time.Millisecond,
	}, nil)
	t.Cleanup(s.Close)
	return s
}

func waitFor(t *testing.T, cond func() bool, what string) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

// =============================================================================
// LIFECYCLE TESTS
// =============================================================================

func TestSession_OpenAttachesAndPolls(t *testing.T) {
	b := newBackend(t)
	s := newTestSession(t, b, 1)

	key := resolver.PairKey("me", "u2")
	if err := s.Open(context.Background(), key); err != nil {
		t.Fatalf("Open: %v", err)
	}

	id := s.ConversationID()
	if id == "" {
		t.Fatal("conversation should be open")
	}
	b.setHistory(id, []*model.Message{{
		ID: "m1", ConversationID: id, Content: "hi",
		SenderID: "u2", SenderRole: model.RoleFreelancer,
		SenderName: "Bob", CreatedAt: time.Now(),
	}})

	waitFor(t, func() bool { return len(s.Messages()) == 1 }, "polled message")
	waitFor(t, func() bool { return s.State() == transport.StateFallback }, "fallback state")
}

func TestSession_OpenFailureKeepsNothingOpen(t *testing.T) {
	b := newBackend(t)
	s := newTestSession(t, b, 1)
	b.srv.Close() // backend gone: resolution must fail

	err := s.Open(context.Background(), resolver.ServiceKey("support"))
	if err == nil {
		t.Fatal("Open should fail when resolution fails")
	}
	if s.ConversationID() != "" {
		t.Error("failed open must not leave a conversation attached")
	}
}

func TestSession_SwitchingDetachesOldConversation(t *testing.T) {
	b := newBackend(t)
	s := newTestSession(t, b, 1)

	if err := s.Open(context.Background(), resolver.PairKey("me", "u2")); err != nil {
		t.Fatalf("Open: %v", err)
	}
	first := s.ConversationID()
	waitFor(t, func() bool { return b.pollCount(first) >= 1 }, "first conversation polling")

	if err := s.Open(context.Background(), resolver.PairKey("me", "u3")); err != nil {
		t.Fatalf("Open second: %v", err)
	}
	second := s.ConversationID()
	if second == first {
		t.Fatal("distinct keys should map to distinct conversations")
	}

	// The old conversation's poller must be fully stopped.
	settled := b.pollCount(first)
	time.Sleep(120 * time.Millisecond)
	if got := b.pollCount(first); got != settled {
		t.Errorf("old conversation polled after switch: %d -> %d", settled, got)
	}
	waitFor(t, func() bool { return b.pollCount(second) >= 1 }, "second conversation polling")
}

// =============================================================================
// SEND TESTS
// =============================================================================

func TestSession_SendOptimisticThenPreservedAcrossPoll(t *testing.T) {
	b := newBackend(t)
	s := newTestSession(t, b, 1)

	if err := s.Open(context.Background(), resolver.PairKey("me", "u2")); err != nil {
		t.Fatalf("Open: %v", err)
	}
	id := s.ConversationID()
	waitFor(t, func() bool { return s.State() == transport.StateFallback }, "fallback")

	if err := s.Send(context.Background(), "on my way"); err != nil {
		t.Fatalf("Send: %v", err)
	}

	msgs := s.Messages()
	if len(msgs) != 1 || !msgs[0].Pending {
		t.Fatalf("messages = %v, want one pending", msgs)
	}
	waitFor(t, func() bool { return b.postCount(id) == 1 }, "HTTP send")

	// The next polls don't include our send yet; it must survive the
	// merges untouched.
	time.Sleep(100 * time.Millisecond)
	msgs = s.Messages()
	if len(msgs) != 1 || !msgs[0].Pending {
		t.Errorf("pending lost across poll merges: %v", msgs)
	}

	// Once the server echoes it, the pending copy is confirmed in place.
	b.setHistory(id, []*model.Message{{
		ID: "m9", ConversationID: id, Content: "on my way",
		SenderID: "me", SenderRole: model.RoleClient,
		SenderName: "Ada", CreatedAt: time.Now(),
	}})
	waitFor(t, func() bool {
		msgs := s.Messages()
		return len(msgs) == 1 && !msgs[0].Pending && msgs[0].ID == "m9"
	}, "confirmation")
}

func TestSession_FailedSendKeptAndResendable(t *testing.T) {
	b := newBackend(t)
	s := newTestSession(t, b, 1)

	if err := s.Open(context.Background(), resolver.PairKey("me", "u2")); err != nil {
		t.Fatalf("Open: %v", err)
	}
	id := s.ConversationID()
	waitFor(t, func() bool { return s.State() == transport.StateFallback }, "fallback")

	b.setFailSends(true)
	if err := s.Send(context.Background(), "hello?"); err == nil {
		t.Fatal("Send should report the delivery failure")
	}

	msgs := s.Messages()
	if len(msgs) != 1 || !msgs[0].Failed {
		t.Fatalf("failed send should stay on screen flagged, got %v", msgs)
	}
	failedID := msgs[0].ID

	b.setFailSends(false)
	if err := s.Resend(context.Background(), failedID); err != nil {
		t.Fatalf("Resend: %v", err)
	}
	waitFor(t, func() bool { return b.postCount(id) == 1 }, "resend delivery")

	msgs = s.Messages()
	if len(msgs) != 1 || msgs[0].Failed || msgs[0].Content != "hello?" {
		t.Errorf("resent message state wrong: %v", msgs)
	}
}

func TestSession_SendWithoutOpenConversation(t *testing.T) {
	b := newBackend(t)
	s := newTestSession(t, b, 1)

	if err := s.Send(context.Background(), "hi"); err == nil {
		t.Error("Send with no open conversation should fail")
	}
	s.Keystroke() // must not panic with no notifier
}
