// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package resolver maps logical chat targets onto durable conversation ids.
//
// A logical key (e.g. "CHAT:u1:u2", or a named service channel) identifies
// a pairing before any backend conversation exists. The resolver keeps a
// small persistent SQLite cache of logicalKey -> conversationId so repeated
// visits reuse the same conversation without a network round trip; on a
// cache miss it calls the backend's idempotent create-or-reuse endpoint.
package resolver
