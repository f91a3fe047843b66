// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package presence tracks who is online and who is typing.
//
// The tracker consumes typing and presence events from the transport and
// answers display queries; the notifier debounces the local user's
// keystrokes into start/stop typing signals for the server. Events about
// the local user are filtered out so one never sees "you are typing".
package presence
