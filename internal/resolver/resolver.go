// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package resolver

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/jeranaias/gigchat-tui/internal/identity"
)

// Configuration constants for conversation resolution.
const (
	// DefaultResolveTimeout bounds the create-or-reuse round trip so a
	// slow backend degrades to "conversation unavailable" instead of
	// hanging the caller.
	DefaultResolveTimeout = 5 * time.Second

	// createPath is the backend's idempotent create-or-reuse endpoint.
	createPath = "/api/chat/conversations"
)

// ErrUnavailable indicates the conversation could not be resolved. No
// partial state has been written; the caller may retry on the next
// interaction without side effects.
var ErrUnavailable = errors.New("conversation unavailable")

// =============================================================================
// LOGICAL KEYS
// =============================================================================

// PairKey builds the logical key for a two-party conversation. The
// participant ids are ordered lexicographically so both sides derive the
// same key.
func PairKey(a, b string) string {
	lo, hi := a, b
	if strings.Compare(lo, hi) > 0 {
		lo, hi = hi, lo
	}
	return "CHAT:" + lo + ":" + hi
}

// ServiceKey builds the logical key for a named service channel, e.g. the
// support desk.
func ServiceKey(name string) string {
	return "SERVICE:" + name
}

// =============================================================================
// RESOLVER
// =============================================================================

// createRequest is the payload for the create-or-reuse endpoint. The
// backend maps the same service key to the same conversation id across
// calls from any client.
type createRequest struct {
	Service string `json:"service"`
}

type createResponse struct {
	ID string `json:"id"`
}

// Resolver obtains durable conversation ids for logical chat targets.
type Resolver struct {
	api     identity.Provider
	cache   *Cache
	timeout time.Duration
}

// New creates a resolver backed by the given authorized client and cache.
func New(api identity.Provider, cache *Cache) *Resolver {
	return &Resolver{
		api:     api,
		cache:   cache,
		timeout: DefaultResolveTimeout,
	}
}

// WithTimeout sets the bound on the create-or-reuse round trip.
func (r *Resolver) WithTimeout(d time.Duration) *Resolver {
	r.timeout = d
	return r
}

// Resolve returns the conversation id for the logical key.
//
// A cache hit returns immediately with no network call. On a miss the
// backend's create-or-reuse endpoint is called and the returned id is
// cached under the logical key. On failure nothing is written, so the
// next call retries cleanly.
func (r *Resolver) Resolve(ctx context.Context, logicalKey string) (string, error) {
	if id, ok, err := r.cache.Get(logicalKey); err != nil {
		log.Printf("resolver: cache lookup for %q failed: %v", logicalKey, err)
	} else if ok {
		return id, nil
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var resp createResponse
	err := r.api.Do(ctx, http.MethodPost, createPath, createRequest{Service: logicalKey}, &resp)
	if err != nil {
		if errors.Is(err, identity.ErrUnauthorized) {
			return "", err
		}
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if resp.ID == "" {
		return "", fmt.Errorf("%w: backend returned empty conversation id", ErrUnavailable)
	}

	// The cache write is the only persisted side effect of resolution.
	// A failed write is not fatal: the id is still valid for this
	// session and the next visit simply resolves again.
	if err := r.cache.Put(logicalKey, resp.ID); err != nil {
		log.Printf("resolver: caching %q failed: %v", logicalKey, err)
	}

	return resp.ID, nil
}
