// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package reconcile keeps the rendered message list consistent while
// messages arrive from several sources at once.
//
// The engine holds one conversation's messages. Sends are appended
// immediately as pending entries; server copies of the same message
// (echoed live, polled, or returned in history) replace the pending
// entry instead of duplicating it. A full history snapshot can be merged
// at any time without dropping messages still in flight.
package reconcile
