// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package transport moves chat traffic for one attached conversation.
//
// A Transport prefers a live websocket channel and degrades to HTTP
// polling when the socket cannot be established or dies. The degradation
// is one-directional for the lifetime of the attach: once polling, the
// transport stays polling until it is detached, and only a fresh attach
// tries the live channel again. Detach tears down the socket and all
// tickers synchronously so nothing bleeds into the next conversation.
//
// Inbound traffic is surfaced as a single stream of tagged Event values;
// consumers dispatch on Event.Kind.
package transport
