// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for
// gigchat.
//
// Configuration is TOML at ~/.gigchat/config.toml with sensible
// defaults, environment variable overrides and validation. A watcher can
// hot-reload the file while the client runs.
//
// Environment overrides:
//
//	GIGCHAT_API_URL        API base URL
//	GIGCHAT_SOCKET_URL     websocket endpoint
//	GIGCHAT_TOKEN          bearer token
//	GIGCHAT_THEME          UI theme name
//	GIGCHAT_POLL_INTERVAL  fallback poll interval in seconds
package config
