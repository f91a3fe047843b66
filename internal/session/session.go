// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/jeranaias/gigchat-tui/internal/identity"
	"github.com/jeranaias/gigchat-tui/internal/model"
	"github.com/jeranaias/gigchat-tui/internal/presence"
	"github.com/jeranaias/gigchat-tui/internal/reconcile"
	"github.com/jeranaias/gigchat-tui/internal/resolver"
	"github.com/jeranaias/gigchat-tui/internal/transport"
)

// Session is the single active conversation and everything attached to
// it. Open, Send, Keystroke and Close are called from the UI goroutine;
// the event pump runs on its own goroutine and takes the same lock.
type Session struct {
	api      identity.Provider
	resolver *resolver.Resolver
	tracker  *presence.Tracker
	cfg      transport.Config
	onUpdate func() // nudges the UI after pumped events; may be nil

	mu             sync.Mutex
	conversationID string
	tr             *transport.Transport
	engine         *reconcile.Engine
	notifier       *presence.Notifier
	pumpDone       chan struct{}
	state          transport.State
	lastErr        error
}

// New creates a session. onUpdate is invoked (on the pump goroutine)
// whenever pumped events changed visible state; pass nil if not needed.
func New(api identity.Provider, res *resolver.Resolver, cfg transport.Config, onUpdate func()) *Session {
	id := api.Identity()
	return &Session{
		api:      api,
		resolver: res,
		tracker:  presence.NewTracker(id.UserID, id.UserName),
		cfg:      cfg,
		onUpdate: onUpdate,
		state:    transport.StateUnattached,
	}
}

// Tracker exposes the shared presence tracker for display queries.
func (s *Session) Tracker() *presence.Tracker {
	return s.tracker
}

// =============================================================================
// LIFECYCLE
// =============================================================================

// Open resolves the logical key and attaches to its conversation. Any
// previously open conversation is detached first, synchronously, so its
// timers and socket cannot bleed into the new one. On resolution failure
// nothing changes and the previous conversation stays open.
func (s *Session) Open(ctx context.Context, logicalKey string) error {
	conversationID, err := s.resolver.Resolve(ctx, logicalKey)
	if err != nil {
		return fmt.Errorf("open %q: %w", logicalKey, err)
	}

	s.Close()

	tr := transport.New(s.api, s.cfg)
	engine := reconcile.New(conversationID)
	notifier := presence.NewNotifier(func(active bool) {
		if err := tr.SendTyping(context.Background(), active); err != nil {
			log.Printf("session: typing signal failed: %v", err)
		}
	})

	s.mu.Lock()
	s.conversationID = conversationID
	s.tr = tr
	s.engine = engine
	s.notifier = notifier
	s.state = transport.StateLiveAttempt
	s.lastErr = nil
	s.pumpDone = make(chan struct{})
	done := s.pumpDone
	s.mu.Unlock()

	if err := tr.Attach(ctx, conversationID); err != nil {
		return fmt.Errorf("attach %q: %w", conversationID, err)
	}
	go s.pump(tr, engine, done)
	return nil
}

// Close detaches the current conversation, if any, and blocks until the
// transport and the event pump have fully stopped.
func (s *Session) Close() {
	s.mu.Lock()
	tr := s.tr
	notifier := s.notifier
	conversationID := s.conversationID
	done := s.pumpDone
	s.tr = nil
	s.notifier = nil
	s.conversationID = ""
	s.engine = nil
	s.pumpDone = nil
	s.state = transport.StateUnattached
	s.mu.Unlock()

	if notifier != nil {
		notifier.Close()
	}
	if tr != nil {
		tr.Detach()
	}
	if done != nil {
		<-done
	}
	if conversationID != "" {
		s.tracker.ClearTyping(conversationID)
	}
}

// =============================================================================
// QUERIES
// =============================================================================

// ConversationID returns the open conversation, or "" when none is.
func (s *Session) ConversationID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conversationID
}

// State returns the transport state as of the last pumped event.
func (s *Session) State() transport.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// LastError returns the most recent absorbed transport error, if any.
func (s *Session) LastError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// Messages returns the reconciled message list for rendering.
func (s *Session) Messages() []*model.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.engine == nil {
		return nil
	}
	return s.engine.Messages()
}

// Typists returns who is typing in the open conversation.
func (s *Session) Typists() []model.TypingEntry {
	s.mu.Lock()
	conversationID := s.conversationID
	s.mu.Unlock()
	if conversationID == "" {
		return nil
	}
	return s.tracker.Typists(conversationID)
}

// Online returns the open conversation's presence snapshot.
func (s *Session) Online() []string {
	s.mu.Lock()
	conversationID := s.conversationID
	s.mu.Unlock()
	if conversationID == "" {
		return nil
	}
	return s.tracker.Online(conversationID)
}

// =============================================================================
// OUTBOUND
// =============================================================================

// Send delivers content as an optimistic message. The message renders
// pending immediately; delivery failure marks it failed but keeps it on
// screen for a manual resend.
func (s *Session) Send(ctx context.Context, content string) error {
	s.mu.Lock()
	tr := s.tr
	engine := s.engine
	notifier := s.notifier
	conversationID := s.conversationID
	s.mu.Unlock()

	if tr == nil || engine == nil {
		return fmt.Errorf("no open conversation")
	}

	id := s.api.Identity()
	msg := model.NewPendingMessage(conversationID, content, id.UserID, id.Role, id.UserName)

	s.mu.Lock()
	engine.AppendPending(msg)
	s.mu.Unlock()

	// Sending ends the typing burst.
	if notifier != nil {
		notifier.Flush()
	}

	if err := tr.Send(ctx, msg); err != nil {
		s.mu.Lock()
		engine.MarkFailed(msg.ID)
		s.mu.Unlock()
		return fmt.Errorf("send: %w", err)
	}
	return nil
}

// Resend retries a failed message. The failed copy is removed and its
// content goes out as a fresh optimistic send.
func (s *Session) Resend(ctx context.Context, id string) error {
	s.mu.Lock()
	engine := s.engine
	s.mu.Unlock()
	if engine == nil {
		return fmt.Errorf("no open conversation")
	}

	s.mu.Lock()
	failed, ok := engine.TakeFailed(id)
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("no failed message %q", id)
	}
	return s.Send(ctx, failed.Content)
}

// Keystroke records local typing activity for the debounced notifier.
func (s *Session) Keystroke() {
	s.mu.Lock()
	notifier := s.notifier
	s.mu.Unlock()
	if notifier != nil {
		notifier.Keystroke()
	}
}

// =============================================================================
// EVENT PUMP
// =============================================================================

// pump translates transport events into engine and tracker updates. It
// exits when the transport closes its event channel on detach.
func (s *Session) pump(tr *transport.Transport, engine *reconcile.Engine, done chan struct{}) {
	defer close(done)

	for ev := range tr.Events() {
		switch ev.Kind {
		case transport.EventState:
			s.mu.Lock()
			s.state = ev.State
			s.mu.Unlock()

		case transport.EventMessage:
			s.mu.Lock()
			engine.Apply(ev.Message)
			s.mu.Unlock()

		case transport.EventHistory:
			s.mu.Lock()
			engine.MergeHistory(ev.History)
			s.mu.Unlock()

		case transport.EventTyping:
			s.tracker.HandleTyping(ev.Typing, ev.TypingActive)

		case transport.EventPresence:
			s.tracker.SetOnline(ev.Presence.ConversationID, ev.Presence.Online)

		case transport.EventError:
			// Absorbed: the view reads LastError if it cares, nothing
			// is thrown.
			s.mu.Lock()
			s.lastErr = ev.Err
			s.mu.Unlock()
			log.Printf("session: transport: %v", ev.Err)
		}

		if s.onUpdate != nil {
			s.onUpdate()
		}
	}
}
