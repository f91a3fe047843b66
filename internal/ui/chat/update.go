// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
)

// tickInterval drives periodic re-renders for time-based display state
// (typing expiry, relative timestamps).
const tickInterval = time.Second

// =============================================================================
// MESSAGES
// =============================================================================

// refreshMsg signals that session state changed and the view is stale.
type refreshMsg struct{}

// tickMsg drives periodic refresh.
type tickMsg time.Time

// openedMsg reports the outcome of opening a contact.
type openedMsg struct {
	index int
	err   error
}

// sentMsg reports the outcome of a send.
type sentMsg struct{ err error }

// =============================================================================
// COMMANDS
// =============================================================================

// listen blocks until the session pump nudges us, then refreshes.
func (m *Model) listen() tea.Cmd {
	return func() tea.Msg {
		<-m.updates
		return refreshMsg{}
	}
}

func (m *Model) tick() tea.Cmd {
	return tea.Tick(tickInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// openContact switches the session to the given contact.
func (m *Model) openContact(index int) tea.Cmd {
	key := m.contacts[index].LogicalKey
	return func() tea.Msg {
		err := m.sess.Open(context.Background(), key)
		return openedMsg{index: index, err: err}
	}
}

// send delivers the composed message through the session.
func (m *Model) send(content string) tea.Cmd {
	return func() tea.Msg {
		return sentMsg{err: m.sess.Send(context.Background(), content)}
	}
}

// =============================================================================
// UPDATE
// =============================================================================

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.layout()
		m.refreshViewport()
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case refreshMsg:
		m.refreshViewport()
		return m, m.listen()

	case tickMsg:
		// Typing entries expire on their own; re-render so the line
		// disappears without a pump event.
		m.refreshViewport()
		return m, m.tick()

	case openedMsg:
		m.opening = false
		if msg.err != nil {
			m.status = "could not open conversation: " + msg.err.Error()
			return m, nil
		}
		m.status = ""
		m.refreshViewport()
		m.viewport.GotoBottom()
		return m, nil

	case sentMsg:
		if msg.err != nil {
			m.status = "send failed - press ctrl+r to retry"
		}
		m.refreshViewport()
		m.viewport.GotoBottom()
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {

	case "ctrl+c", "esc":
		return m, tea.Quit

	case "enter":
		content := strings.TrimSpace(m.input.Value())
		if content == "" || m.opening {
			return m, nil
		}
		m.input.Reset()
		m.status = ""
		return m, m.send(content)

	case "tab":
		if len(m.contacts) < 2 || m.opening {
			return m, nil
		}
		m.active = (m.active + 1) % len(m.contacts)
		m.opening = true
		m.status = ""
		return m, m.openContact(m.active)

	case "shift+tab":
		if len(m.contacts) < 2 || m.opening {
			return m, nil
		}
		m.active = (m.active - 1 + len(m.contacts)) % len(m.contacts)
		m.opening = true
		m.status = ""
		return m, m.openContact(m.active)

	case "ctrl+r":
		return m, m.resendFailed()

	case "pgup", "pgdown", "up", "down":
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}

	// Everything else edits the input; printable keys also feed the
	// typing notifier.
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	if msg.Type == tea.KeyRunes || msg.Type == tea.KeySpace || msg.Type == tea.KeyBackspace {
		m.sess.Keystroke()
	}
	return m, cmd
}

// resendFailed retries the oldest failed message, if any.
func (m *Model) resendFailed() tea.Cmd {
	for _, msg := range m.sess.Messages() {
		if msg.Failed {
			id := msg.ID
			return func() tea.Msg {
				return sentMsg{err: m.sess.Resend(context.Background(), id)}
			}
		}
	}
	return nil
}
