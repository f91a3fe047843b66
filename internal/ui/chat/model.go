// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/gigchat-tui/internal/identity"
	"github.com/jeranaias/gigchat-tui/internal/session"
	"github.com/jeranaias/gigchat-tui/internal/ui/styles"
)

// Contact is one reachable chat target: a person or a named service
// channel.
type Contact struct {
	// Name is the display label.
	Name string
	// LogicalKey identifies the conversation (resolver key).
	LogicalKey string
}

// Model is the chat screen.
type Model struct {
	theme *styles.Theme
	sess  *session.Session
	self  identity.Identity

	contacts []Contact
	active   int

	viewport viewport.Model
	input    textinput.Model
	spin     spinner.Model

	// updates is nudged by the session's event pump; the listen command
	// turns nudges into refresh messages.
	updates chan struct{}

	width   int
	height  int
	ready   bool
	opening bool
	status  string

	showTimestamps bool
}

// New creates the chat screen. The first contact is opened on Init.
func New(theme *styles.Theme, sess *session.Session, self identity.Identity, contacts []Contact, showTimestamps bool) *Model {
	input := textinput.New()
	input.Placeholder = "Type a message..."
	input.Prompt = "> "
	input.PromptStyle = theme.InputPrompt
	input.PlaceholderStyle = theme.InputPlaceholder
	input.CharLimit = 4000
	input.Focus()

	spin := spinner.New()
	spin.Spinner = spinner.Dot

	return &Model{
		theme:          theme,
		sess:           sess,
		self:           self,
		contacts:       contacts,
		updates:        make(chan struct{}, 1),
		input:          input,
		spin:           spin,
		showTimestamps: showTimestamps,
	}
}

// Notify nudges the screen to re-render; safe from any goroutine. Wire
// it as the session's onUpdate callback.
func (m *Model) Notify() {
	select {
	case m.updates <- struct{}{}:
	default:
	}
}

// ActiveContact returns the currently selected contact.
func (m *Model) ActiveContact() Contact {
	if len(m.contacts) == 0 {
		return Contact{}
	}
	return m.contacts[m.active]
}

// Init opens the first contact and starts the background listeners.
func (m *Model) Init() tea.Cmd {
	cmds := []tea.Cmd{
		m.listen(),
		m.tick(),
		m.spin.Tick,
		textinput.Blink,
	}
	if len(m.contacts) > 0 {
		cmds = append(cmds, m.openContact(m.active))
	}
	return tea.Batch(cmds...)
}
