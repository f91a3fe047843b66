// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package transport

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/jeranaias/gigchat-tui/internal/model"
)

// Live channel timing.
const (
	handshakeTimeout = 10 * time.Second
	readTimeout      = 60 * time.Second
	pingInterval     = 30 * time.Second
	writeTimeout     = 10 * time.Second
)

// Envelope types spoken on the live channel.
const (
	typeJoin     = "chat:join"
	typeJoined   = "chat:joined"
	typeHistory  = "chat:history"
	typeMessage  = "chat:message"
	typeTyping   = "chat:typing"
	typePresence = "chat:presence"
	typeError    = "chat:error"
)

// envelope is the single frame shape on the live channel. Type selects
// which fields are meaningful.
type envelope struct {
	Type           string           `json:"type"`
	ConversationID string           `json:"conversationId,omitempty"`
	Message        *model.Message   `json:"message,omitempty"`
	Messages       []*model.Message `json:"messages,omitempty"`
	UserID         string           `json:"userId,omitempty"`
	UserName       string           `json:"userName,omitempty"`
	Active         bool             `json:"active,omitempty"`
	Online         []string         `json:"online,omitempty"`
	Error          string           `json:"error,omitempty"`
}

// dial establishes the websocket connection with the bearer token on the
// handshake.
func (t *Transport) dial(ctx context.Context) (*websocket.Conn, error) {
	dialer := websocket.Dialer{HandshakeTimeout: handshakeTimeout}
	header := http.Header{}
	if t.cfg.Token != "" {
		header.Set("Authorization", "Bearer "+t.cfg.Token)
	}

	conn, resp, err := dialer.DialContext(ctx, t.cfg.SocketURL, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s: status %d: %w", t.cfg.SocketURL, resp.StatusCode, err)
		}
		return nil, fmt.Errorf("dial %s: %w", t.cfg.SocketURL, err)
	}
	return conn, nil
}

// join announces which conversation this socket carries. The server
// answers with a joined acknowledgement and usually a history snapshot.
func (t *Transport) join(conn *websocket.Conn, conversationID string) error {
	return t.writeEnvelope(conn, envelope{
		Type:           typeJoin,
		ConversationID: conversationID,
	})
}

// writeEnvelope serializes one frame under the shared write lock.
func (t *Transport) writeEnvelope(conn *websocket.Conn, env envelope) error {
	if conn == nil {
		return errors.New("no live connection")
	}
	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return conn.WriteJSON(env)
}

// readLoop consumes frames until the socket dies or the attach context
// is cancelled. A read failure while still attached triggers fallback.
func (t *Transport) readLoop(ctx context.Context, conn *websocket.Conn) {
	defer t.wg.Done()

	conn.SetReadDeadline(time.Now().Add(readTimeout))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(readTimeout))
		return nil
	})

	for {
		var env envelope
		if err := conn.ReadJSON(&env); err != nil {
			if ctx.Err() == nil && t.State() != StateDetached {
				t.enterFallback(ctx, fmt.Errorf("live channel lost: %w", err))
			}
			return
		}
		conn.SetReadDeadline(time.Now().Add(readTimeout))
		t.handleEnvelope(ctx, env)
	}
}

// handleEnvelope maps one wire frame onto the event stream.
func (t *Transport) handleEnvelope(ctx context.Context, env envelope) {
	switch env.Type {
	case typeJoined:
		t.setLive(ctx)

	case typeHistory:
		t.emit(ctx, Event{Kind: EventHistory, History: env.Messages})

	case typeMessage:
		if env.Message == nil {
			return
		}
		t.emit(ctx, Event{Kind: EventMessage, Message: env.Message})

	case typeTyping:
		t.emit(ctx, Event{
			Kind: EventTyping,
			Typing: model.TypingEntry{
				ConversationID: env.ConversationID,
				UserID:         env.UserID,
				UserName:       env.UserName,
			},
			TypingActive: env.Active,
		})

	case typePresence:
		t.emit(ctx, Event{
			Kind: EventPresence,
			Presence: model.PresenceState{
				ConversationID: env.ConversationID,
				Online:         env.Online,
			},
		})

	case typeError:
		// The server reports chat:error for conditions it will not
		// recover on this socket; degrade instead of staying on a broken
		// channel. enterFallback surfaces the error event itself.
		t.enterFallback(ctx, fmt.Errorf("server error: %s", env.Error))

	default:
		// Unknown frame types are skipped so protocol additions don't
		// break older clients.
	}
}

// pingLoop keeps the socket alive; the server answers pongs which push
// the read deadline forward.
func (t *Transport) pingLoop(ctx context.Context, conn *websocket.Conn) {
	defer t.wg.Done()

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.writeMu.Lock()
			err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout))
			t.writeMu.Unlock()
			if err != nil {
				// The read loop will observe the dead socket and handle
				// the transition.
				return
			}
		}
	}
}
