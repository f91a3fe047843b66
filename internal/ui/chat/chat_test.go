// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"path/filepath"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/gigchat-tui/internal/identity"
	"github.com/jeranaias/gigchat-tui/internal/model"
	"github.com/jeranaias/gigchat-tui/internal/resolver"
	"github.com/jeranaias/gigchat-tui/internal/session"
	"github.com/jeranaias/gigchat-tui/internal/transport"
	"github.com/jeranaias/gigchat-tui/internal/ui/styles"
)

func testModel(t *testing.T) *Model {
	t.Helper()

	self := identity.Identity{UserID: "me", UserName: "Ada", Role: model.RoleClient}
	api := identity.NewClient("http://127.0.0.1:1", "tok", self)

	cache, err := resolver.OpenCache(filepath.Join(t.TempDir(), "conversations.db"))
	if err != nil {
		t.Fatalf("OpenCache: %v", err)
	}
	t.Cleanup(func() { cache.Close() })

	sess := session.New(api, resolver.New(api, cache), transport.Config{
		SocketURL: "ws://127.0.0.1:1/ws",
	}, nil)
	t.Cleanup(sess.Close)

	contacts := []Contact{
		{Name: "Bob", LogicalKey: resolver.PairKey("me", "u2")},
		{Name: "Support", LogicalKey: resolver.ServiceKey("support")},
	}
	return New(styles.NewTheme(), sess, self, contacts, true)
}

func TestModel_ViewBeforeReady(t *testing.T) {
	m := testModel(t)
	if got := m.View(); got != "starting..." {
		t.Errorf("View before sizing = %q", got)
	}
}

func TestModel_WindowSizeMakesReady(t *testing.T) {
	m := testModel(t)
	updated, _ := m.Update(tea.WindowSizeMsg{Width: 80, Height: 24})
	m = updated.(*Model)
	if !m.ready {
		t.Fatal("model should be ready after a window size message")
	}
	if m.viewport.Width != 80 {
		t.Errorf("viewport width = %d, want 80", m.viewport.Width)
	}
	if out := m.View(); out == "" || out == "starting..." {
		t.Error("sized model should render the full screen")
	}
}

func TestModel_NotifyNeverBlocks(t *testing.T) {
	m := testModel(t)
	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			m.Notify()
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Notify blocked with no listener")
	}
}

func TestModel_QuitKeys(t *testing.T) {
	m := testModel(t)
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	if cmd == nil {
		t.Fatal("ctrl+c should produce a command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("ctrl+c should quit")
	}
}

func TestModel_TabCyclesContacts(t *testing.T) {
	m := testModel(t)
	if m.ActiveContact().Name != "Bob" {
		t.Fatalf("initial contact = %q", m.ActiveContact().Name)
	}

	updated, cmd := m.Update(tea.KeyMsg{Type: tea.KeyTab})
	m = updated.(*Model)
	if m.ActiveContact().Name != "Support" {
		t.Errorf("after tab contact = %q, want Support", m.ActiveContact().Name)
	}
	if cmd == nil {
		t.Error("tab should trigger an open command")
	}
	if !m.opening {
		t.Error("model should be in opening state while the switch runs")
	}
}

func TestModel_RenderMessageStates(t *testing.T) {
	m := testModel(t)
	m.width = 80

	own := &model.Message{
		ID: "m1", Content: "hello", SenderID: "me",
		SenderRole: model.RoleClient, SenderName: "Ada",
		CreatedAt: time.Now(),
	}
	if out := m.renderMessage(own); !strings.Contains(out, "You") || !strings.Contains(out, "hello") {
		t.Errorf("own message render missing pieces: %q", out)
	}

	pending := &model.Message{
		ID: "tmp_1", Content: "sending", SenderID: "me",
		SenderRole: model.RoleClient, SenderName: "Ada",
		CreatedAt: time.Now(), Pending: true,
	}
	if out := m.renderMessage(pending); !strings.Contains(out, styles.StatusIndicators.Pending) {
		t.Errorf("pending message should carry the pending marker: %q", out)
	}

	failed := &model.Message{
		ID: "tmp_2", Content: "lost", SenderID: "me",
		SenderRole: model.RoleClient, SenderName: "Ada",
		CreatedAt: time.Now(), Pending: true, Failed: true,
	}
	if out := m.renderMessage(failed); !strings.Contains(out, styles.StatusIndicators.Failed) {
		t.Errorf("failed message should carry the failed marker: %q", out)
	}

	deleted := &model.Message{
		ID: "m2", Content: "secret", SenderID: "u2",
		SenderRole: model.RoleFreelancer, SenderName: "Bob",
		CreatedAt: time.Now(), Deleted: true,
	}
	out := m.renderMessage(deleted)
	if strings.Contains(out, "secret") {
		t.Error("deleted message must not render its content")
	}
	if !strings.Contains(out, model.DeletedPlaceholder) {
		t.Errorf("deleted message should render the placeholder: %q", out)
	}
}
