// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for marketplace conversations
// and messages.
//
// A Conversation is identified by an opaque server-assigned id and, on the
// client side, by a logical key derived from the participants (see
// PairKey in the resolver package). Messages carry the sender's identity
// and role, a creation timestamp used for ordering, and a pending flag for
// optimistic copies that have not been confirmed by the server yet.
package model
