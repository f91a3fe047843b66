// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package transport

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/jeranaias/gigchat-tui/internal/model"
)

// messagesPathFmt is the REST message collection for a conversation,
// used for both polling and fallback sends.
const messagesPathFmt = "/api/chat/conversations/%s/messages"

// sendRequest is the HTTP send payload. The server assigns the id and
// timestamp; the optimistic copy carries placeholders until then.
type sendRequest struct {
	Content       string            `json:"content"`
	SenderRole    model.Role        `json:"senderRole"`
	SenderName    string            `json:"senderName"`
	Attachment    *model.Attachment `json:"attachment,omitempty"`
	SkipAssistant bool              `json:"skipAssistant,omitempty"`
}

// pollLoop fetches the full message list on a fixed cadence and surfaces
// each response as a history snapshot; reconciliation dedupes against
// what is already rendered. The first poll runs immediately so degrading
// mid-conversation doesn't blank the screen for a whole interval.
func (t *Transport) pollLoop(ctx context.Context) {
	defer t.wg.Done()

	t.pollOnce(ctx)

	ticker := time.NewTicker(t.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.pollOnce(ctx)
		}
	}
}

// pollOnce performs a single fetch. Errors are logged and skipped; the
// next tick retries.
func (t *Transport) pollOnce(ctx context.Context) {
	t.mu.Lock()
	conversationID := t.conversationID
	t.mu.Unlock()

	path := fmt.Sprintf(messagesPathFmt, conversationID)
	var msgs []*model.Message
	if err := t.api.Do(ctx, http.MethodGet, path, nil, &msgs); err != nil {
		if ctx.Err() == nil {
			log.Printf("transport: poll failed: %v", err)
		}
		return
	}

	t.emit(ctx, Event{Kind: EventHistory, History: msgs})
}
