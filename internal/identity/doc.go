// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package identity is the chat core's view of the marketplace auth service.
//
// The auth service itself (token issuance, profile verification, session
// persistence) is an external collaborator; this package only carries the
// authenticated user's identity and the authorized-request function that
// attaches bearer credentials to backend calls. An HTTP 401 clears the
// session through a caller-provided callback unless the individual request
// opts out.
package identity
