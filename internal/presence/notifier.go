// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package presence

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Typing signal timing.
const (
	// TypingStopDelay is how long the input must stay quiet before a
	// stop signal is emitted. Each keystroke resets the clock.
	TypingStopDelay = 1500 * time.Millisecond

	// typingKeepaliveInterval throttles repeated start signals while the
	// user keeps typing, so a long burst refreshes the server-side state
	// without flooding the channel.
	typingKeepaliveInterval = 3 * time.Second
)

// Notifier turns raw keystrokes into debounced typing signals.
//
// The first keystroke emits a start immediately; further keystrokes only
// re-emit at the keepalive rate. Once the input has been quiet for
// TypingStopDelay a single stop is emitted. Safe for concurrent use.
type Notifier struct {
	mu      sync.Mutex
	emit    func(active bool)
	limiter *rate.Limiter
	timer   *time.Timer
	quiet   time.Duration
	active  bool
	closed  bool
}

// NewNotifier creates a notifier that calls emit with true for typing
// start and false for typing stop. emit runs on a timer goroutine for
// stop signals; it must not block.
func NewNotifier(emit func(active bool)) *Notifier {
	return &Notifier{
		emit:    emit,
		limiter: rate.NewLimiter(rate.Every(typingKeepaliveInterval), 1),
		quiet:   TypingStopDelay,
	}
}

// WithQuietPeriod overrides the debounce delay. Used by tests.
func (n *Notifier) WithQuietPeriod(d time.Duration) *Notifier {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.quiet = d
	return n
}

// Keystroke records input activity. It emits a start signal when a
// typing burst begins and pushes the pending stop further out.
func (n *Notifier) Keystroke() {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.closed {
		return
	}

	if !n.active {
		n.active = true
		n.limiter.Allow() // consume the token the initial start represents
		n.emit(true)
	} else if n.limiter.Allow() {
		n.emit(true)
	}

	if n.timer != nil {
		n.timer.Stop()
	}
	n.timer = time.AfterFunc(n.quiet, n.timeout)
}

// timeout fires when the input has been quiet for the full delay.
func (n *Notifier) timeout() {
	n.mu.Lock()
	defer n.mu.Unlock()

	if !n.active || n.closed {
		return
	}
	n.active = false
	n.emit(false)
}

// Flush emits the stop signal immediately if a burst is in progress.
// Called when a message is sent, which implicitly ends typing.
func (n *Notifier) Flush() {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.timer != nil {
		n.timer.Stop()
		n.timer = nil
	}
	if n.active && !n.closed {
		n.active = false
		n.emit(false)
	}
}

// Close flushes any pending stop and disables the notifier.
func (n *Notifier) Close() {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.timer != nil {
		n.timer.Stop()
		n.timer = nil
	}
	if n.active && !n.closed {
		n.active = false
		n.emit(false)
	}
	n.closed = true
}
