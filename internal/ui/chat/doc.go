// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat implements the conversation screen.
//
// The model follows the standard Bubble Tea split: model.go holds state
// and construction, update.go the message loop, view.go the rendering.
// All chat state lives in the session; this package only renders it and
// translates key presses into session calls.
package chat
