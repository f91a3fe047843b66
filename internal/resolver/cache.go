// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package resolver

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// ErrCacheClosed is returned when the cache is used after Close.
var ErrCacheClosed = errors.New("conversation cache closed")

// Cache is the persistent logicalKey -> conversationId mapping.
//
// It is read and written from the UI goroutine only; the single-connection
// pool below is about SQLite's writer model, not about guarding callers.
type Cache struct {
	db *sql.DB
}

// DefaultCachePath returns the cache location under the user's home
// directory (~/.gigchat/conversations.db).
func DefaultCachePath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".gigchat", "conversations.db"), nil
}

// OpenCache opens (creating if necessary) the cache database at path.
func OpenCache(path string) (*Cache, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache database: %w", err)
	}

	// SQLite only supports one writer at a time, so limit connections.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA temp_store=MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	schema := `
	CREATE TABLE IF NOT EXISTS conversation_cache (
		logical_key     TEXT PRIMARY KEY,
		conversation_id TEXT NOT NULL,
		updated_at      TIMESTAMP NOT NULL
	)`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create cache schema: %w", err)
	}

	return &Cache{db: db}, nil
}

// Get returns the cached conversation id for the logical key, if present.
func (c *Cache) Get(logicalKey string) (string, bool, error) {
	if c.db == nil {
		return "", false, ErrCacheClosed
	}

	var id string
	err := c.db.QueryRow(
		`SELECT conversation_id FROM conversation_cache WHERE logical_key = ?`,
		logicalKey,
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("cache lookup failed: %w", err)
	}
	return id, true, nil
}

// Put stores (or replaces) the mapping for a logical key.
func (c *Cache) Put(logicalKey, conversationID string) error {
	if c.db == nil {
		return ErrCacheClosed
	}

	_, err := c.db.Exec(
		`INSERT INTO conversation_cache (logical_key, conversation_id, updated_at)
		 VALUES (?, ?, ?)
		 ON CONFLICT(logical_key) DO UPDATE SET
		   conversation_id = excluded.conversation_id,
		   updated_at      = excluded.updated_at`,
		logicalKey, conversationID, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("cache write failed: %w", err)
	}
	return nil
}

// Delete removes the mapping for a logical key.
func (c *Cache) Delete(logicalKey string) error {
	if c.db == nil {
		return ErrCacheClosed
	}
	_, err := c.db.Exec(`DELETE FROM conversation_cache WHERE logical_key = ?`, logicalKey)
	if err != nil {
		return fmt.Errorf("cache delete failed: %w", err)
	}
	return nil
}

// Clear removes all cached mappings.
func (c *Cache) Clear() error {
	if c.db == nil {
		return ErrCacheClosed
	}
	_, err := c.db.Exec(`DELETE FROM conversation_cache`)
	return err
}

// Close releases the underlying database.
func (c *Cache) Close() error {
	if c.db == nil {
		return nil
	}
	err := c.db.Close()
	c.db = nil
	return err
}
