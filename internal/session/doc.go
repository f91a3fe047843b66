// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package session orchestrates one active conversation.
//
// A Session owns the transport, the reconciliation engine and the typing
// notifier for whatever conversation is on screen, plus the resolver and
// presence tracker shared across conversations. It pumps transport
// events into engine and tracker updates, absorbs transport errors into
// queryable state instead of surfacing them to the view, and guarantees
// that switching conversations fully detaches the old transport before
// the new one attaches.
package session
