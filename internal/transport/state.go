// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package transport

// State is the attachment state of a transport.
//
// The lifecycle is linear: Unattached -> LiveAttempt -> Live, with a
// one-way exit from either live state to Fallback, and Detached terminal
// from everywhere. A detached transport is never reused.
type State int

const (
	// StateUnattached is the initial state before Attach.
	StateUnattached State = iota

	// StateLiveAttempt means the websocket is dialing or waiting for the
	// server's join acknowledgement.
	StateLiveAttempt

	// StateLive means the websocket channel is established and carrying
	// traffic.
	StateLive

	// StateFallback means the live channel failed and the transport is
	// polling over HTTP. Sticky until detach.
	StateFallback

	// StateDetached is terminal; all resources have been released.
	StateDetached
)

// String returns the state name for logs.
func (s State) String() string {
	switch s {
	case StateUnattached:
		return "unattached"
	case StateLiveAttempt:
		return "live-attempt"
	case StateLive:
		return "live"
	case StateFallback:
		return "fallback"
	case StateDetached:
		return "detached"
	default:
		return "unknown"
	}
}

// IsActive reports whether the transport can still carry traffic.
func (s State) IsActive() bool {
	return s == StateLiveAttempt || s == StateLive || s == StateFallback
}
