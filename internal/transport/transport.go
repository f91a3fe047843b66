// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package transport

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/jeranaias/gigchat-tui/internal/identity"
	"github.com/jeranaias/gigchat-tui/internal/model"
)

// Transport timing defaults.
const (
	// DefaultPollInterval is the fallback polling cadence.
	DefaultPollInterval = 5 * time.Second

	// eventBuffer sizes the inbound event channel. The UI drains fast;
	// the buffer only absorbs short bursts like a history snapshot
	// arriving with presence.
	eventBuffer = 32
)

var (
	// ErrAlreadyAttached is returned when Attach is called twice. A
	// transport is scoped to a single attach; create a new one per
	// conversation.
	ErrAlreadyAttached = errors.New("transport already attached")

	// ErrDetached is returned from send operations after Detach.
	ErrDetached = errors.New("transport detached")
)

// Config carries the endpoints a transport needs.
type Config struct {
	// SocketURL is the websocket endpoint (ws:// or wss://).
	SocketURL string

	// Token authorizes the websocket handshake. HTTP fallback traffic is
	// authorized by the identity client itself.
	Token string

	// PollInterval overrides the fallback cadence; zero means
	// DefaultPollInterval.
	PollInterval time.Duration
}

// Transport carries one conversation's traffic. It is created, attached
// once, and detached once; the socket and tickers it owns never outlive
// it.
//
// Attach, Send, SendTyping and Detach are called from the owning
// goroutine; Events may be drained from anywhere.
type Transport struct {
	api identity.Provider
	cfg Config

	events chan Event
	wg     sync.WaitGroup

	mu             sync.Mutex
	state          State
	conversationID string
	conn           *websocket.Conn
	cancel         context.CancelFunc

	writeMu sync.Mutex // gorilla permits one concurrent writer
}

// New creates an unattached transport.
func New(api identity.Provider, cfg Config) *Transport {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	return &Transport{
		api:    api,
		cfg:    cfg,
		events: make(chan Event, eventBuffer),
		state:  StateUnattached,
	}
}

// Events returns the inbound event stream. The channel is closed by
// Detach once all transport goroutines have stopped.
func (t *Transport) Events() <-chan Event {
	return t.events
}

// State returns the current attachment state.
func (t *Transport) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// ConversationID returns the conversation this transport is attached to.
func (t *Transport) ConversationID() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.conversationID
}

// =============================================================================
// LIFECYCLE
// =============================================================================

// Attach binds the transport to a conversation and starts moving
// traffic. The live channel is tried first; if it cannot be established
// the transport degrades to polling without returning an error, so the
// caller sees a working conversation either way.
func (t *Transport) Attach(ctx context.Context, conversationID string) error {
	t.mu.Lock()
	if t.state != StateUnattached {
		t.mu.Unlock()
		return ErrAlreadyAttached
	}
	ctx, cancel := context.WithCancel(ctx)
	t.cancel = cancel
	t.conversationID = conversationID
	t.state = StateLiveAttempt
	t.mu.Unlock()

	t.emit(ctx, Event{Kind: EventState, State: StateLiveAttempt})

	conn, err := t.dial(ctx)
	if err != nil {
		t.enterFallback(ctx, fmt.Errorf("live channel unavailable: %w", err))
		return nil
	}

	t.mu.Lock()
	if t.state == StateDetached {
		// Detach raced the dial; do not leak the socket.
		t.mu.Unlock()
		conn.Close()
		return nil
	}
	t.conn = conn
	t.mu.Unlock()

	if err := t.join(conn, conversationID); err != nil {
		t.enterFallback(ctx, fmt.Errorf("join failed: %w", err))
		return nil
	}

	t.wg.Add(2)
	go t.readLoop(ctx, conn)
	go t.pingLoop(ctx, conn)
	return nil
}

// Detach tears the transport down and blocks until every goroutine it
// started has stopped. After Detach returns no timer fires and no event
// is delivered; the events channel is closed.
func (t *Transport) Detach() {
	t.mu.Lock()
	if t.state == StateDetached {
		t.mu.Unlock()
		return
	}
	t.state = StateDetached
	cancel := t.cancel
	conn := t.conn
	t.conn = nil
	t.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if conn != nil {
		t.writeMu.Lock()
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		t.writeMu.Unlock()
		conn.Close()
	}

	t.wg.Wait()
	close(t.events)
}

// =============================================================================
// OUTBOUND
// =============================================================================

// Send delivers one message. On the live channel the socket write is
// used; if that write fails the transport degrades to fallback and the
// message is re-sent over HTTP so it is not lost. In fallback (and while
// the live attempt is still in flight) HTTP is used directly.
func (t *Transport) Send(ctx context.Context, msg *model.Message) error {
	t.mu.Lock()
	state := t.state
	conn := t.conn
	t.mu.Unlock()

	switch state {
	case StateLive:
		err := t.writeEnvelope(conn, envelope{
			Type:           typeMessage,
			ConversationID: msg.ConversationID,
			Message:        msg,
		})
		if err == nil {
			return nil
		}
		t.enterFallback(ctx, fmt.Errorf("live send failed: %w", err))
		return t.postMessage(ctx, msg)
	case StateLiveAttempt, StateFallback:
		return t.postMessage(ctx, msg)
	default:
		return ErrDetached
	}
}

// SendTyping signals the local user's typing state. Typing is a live
// channel nicety: in fallback it is silently dropped rather than queued.
func (t *Transport) SendTyping(ctx context.Context, active bool) error {
	t.mu.Lock()
	state := t.state
	conn := t.conn
	conversationID := t.conversationID
	t.mu.Unlock()

	if state != StateLive {
		return nil
	}

	id := t.api.Identity()
	err := t.writeEnvelope(conn, envelope{
		Type:           typeTyping,
		ConversationID: conversationID,
		UserID:         id.UserID,
		UserName:       id.UserName,
		Active:         active,
	})
	if err != nil {
		t.enterFallback(ctx, fmt.Errorf("typing send failed: %w", err))
	}
	return nil
}

// =============================================================================
// INTERNALS
// =============================================================================

// enterFallback performs the one-way transition to the polling channel.
// Idempotent; a no-op after detach.
func (t *Transport) enterFallback(ctx context.Context, cause error) {
	t.mu.Lock()
	if t.state == StateDetached || t.state == StateFallback {
		t.mu.Unlock()
		return
	}
	t.state = StateFallback
	conn := t.conn
	t.conn = nil
	t.mu.Unlock()

	if conn != nil {
		conn.Close()
	}

	log.Printf("transport: degrading to polling: %v", cause)
	t.emit(ctx, Event{Kind: EventError, Err: cause})
	t.emit(ctx, Event{Kind: EventState, State: StateFallback})

	t.wg.Add(1)
	go t.pollLoop(ctx)
}

// setLive marks the join handshake complete.
func (t *Transport) setLive(ctx context.Context) {
	t.mu.Lock()
	if t.state != StateLiveAttempt {
		t.mu.Unlock()
		return
	}
	t.state = StateLive
	t.mu.Unlock()

	t.emit(ctx, Event{Kind: EventState, State: StateLive})
}

// emit delivers an event unless the attach context is gone. Never blocks
// past detach.
func (t *Transport) emit(ctx context.Context, ev Event) {
	if ctx.Err() != nil {
		return
	}
	select {
	case t.events <- ev:
	case <-ctx.Done():
	}
}

// postMessage sends a message over HTTP, used by the fallback path. The
// response carries the canonical stored message; surfacing it right away
// confirms the sender's optimistic copy instead of leaving it pending
// until the next poll tick.
func (t *Transport) postMessage(ctx context.Context, msg *model.Message) error {
	path := fmt.Sprintf(messagesPathFmt, msg.ConversationID)
	var created model.Message
	if err := t.api.Do(ctx, http.MethodPost, path, sendRequest{
		Content:    msg.Content,
		SenderRole: msg.SenderRole,
		SenderName: msg.SenderName,
		Attachment: msg.Attachment,
	}, &created); err != nil {
		return fmt.Errorf("send failed: %w", err)
	}
	if created.ID != "" {
		t.emit(ctx, Event{Kind: EventMessage, Message: &created})
	}
	return nil
}
