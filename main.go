// gigchat TUI - A terminal chat client for the gig marketplace.
//
// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later
package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/gigchat-tui/internal/config"
	"github.com/jeranaias/gigchat-tui/internal/identity"
	"github.com/jeranaias/gigchat-tui/internal/model"
	"github.com/jeranaias/gigchat-tui/internal/resolver"
	"github.com/jeranaias/gigchat-tui/internal/session"
	"github.com/jeranaias/gigchat-tui/internal/transport"
	"github.com/jeranaias/gigchat-tui/internal/ui/chat"
	"github.com/jeranaias/gigchat-tui/internal/ui/styles"
)

// Version information (set at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
)

func main() {
	if len(os.Args) > 1 && (os.Args[1] == "--version" || os.Args[1] == "version") {
		fmt.Printf("gigchat %s (%s)\n", Version, GitCommit)
		return
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "gigchat: %v\n", err)
		os.Exit(1)
	}
	config.SetGlobal(cfg)

	if cfg.API.Token == "" {
		fmt.Fprintln(os.Stderr, "gigchat: no token configured (set GIGCHAT_TOKEN or api.token in ~/.gigchat/config.toml)")
		os.Exit(1)
	}

	self := identity.Identity{
		UserID:   os.Getenv("GIGCHAT_USER_ID"),
		UserName: os.Getenv("GIGCHAT_USER_NAME"),
		Role:     model.RoleClient,
	}
	if self.UserName == "" {
		self.UserName = "You"
	}

	api := identity.NewClient(cfg.API.BaseURL, cfg.API.Token, self).
		WithSessionClearedCallback(func() {
			fmt.Fprintln(os.Stderr, "gigchat: session expired, please sign in again")
		})

	cachePath := cfg.Chat.CachePath
	if cachePath == "" {
		cachePath, err = resolver.DefaultCachePath()
		if err != nil {
			fmt.Fprintf(os.Stderr, "gigchat: %v\n", err)
			os.Exit(1)
		}
	}
	cache, err := resolver.OpenCache(cachePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "gigchat: open conversation cache: %v\n", err)
		os.Exit(1)
	}
	defer cache.Close()

	// The session pump nudges the screen; the indirection exists because
	// the screen needs the session at construction.
	var screen *chat.Model
	sess := session.New(api, resolver.New(api, cache), transport.Config{
		SocketURL:    cfg.ResolvedSocketURL(),
		Token:        cfg.API.Token,
		PollInterval: time.Duration(cfg.Chat.PollIntervalSecs) * time.Second,
	}, func() {
		if screen != nil {
			screen.Notify()
		}
	})
	defer sess.Close()

	screen = chat.New(styles.NewTheme(), sess, self, loadContacts(self), cfg.UI.ShowTimestamps)

	// Hot-reload picks up config edits while the client runs; the open
	// conversation keeps its current transport settings.
	if path, err := config.ConfigPath(); err == nil {
		if w, werr := config.NewWatcher(path, config.SetGlobal); werr == nil {
			if w.Watch() == nil {
				defer w.Close()
			}
		}
	}

	p := tea.NewProgram(screen, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "gigchat: %v\n", err)
		os.Exit(1)
	}
}

// loadContacts builds the reachable conversation targets. The support
// channel is always present; a direct peer can be supplied via
// GIGCHAT_PEER ("id:name").
func loadContacts(self identity.Identity) []chat.Contact {
	contacts := []chat.Contact{
		{Name: "Support", LogicalKey: resolver.ServiceKey("support")},
	}
	if peer := os.Getenv("GIGCHAT_PEER"); peer != "" {
		id, name := peer, peer
		if i := strings.IndexByte(peer, ':'); i > 0 {
			id, name = peer[:i], peer[i+1:]
		}
		contacts = append([]chat.Contact{{
			Name:       name,
			LogicalKey: resolver.PairKey(self.UserID, id),
		}}, contacts...)
	}
	return contacts
}
