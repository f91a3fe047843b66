// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/gigchat-tui/internal/model"
	"github.com/jeranaias/gigchat-tui/internal/transport"
	"github.com/jeranaias/gigchat-tui/internal/ui/styles"
	"github.com/jeranaias/gigchat-tui/internal/util"
)

// chrome is the number of rows used outside the viewport: header, typing
// line, input box (3 with border), status bar.
const chrome = 6

// layout sizes the viewport and input to the current terminal.
func (m *Model) layout() {
	if m.width == 0 || m.height == 0 {
		return
	}
	vpHeight := m.height - chrome
	if vpHeight < 3 {
		vpHeight = 3
	}
	if !m.ready {
		m.viewport = viewport.New(m.width, vpHeight)
		m.ready = true
	} else {
		m.viewport.Width = m.width
		m.viewport.Height = vpHeight
	}
	m.input.Width = m.width - 6
}

// refreshViewport re-renders the message list into the viewport,
// keeping the scroll pinned to the bottom when it already was.
func (m *Model) refreshViewport() {
	if !m.ready {
		return
	}
	atBottom := m.viewport.AtBottom()
	m.viewport.SetContent(m.renderMessages())
	if atBottom {
		m.viewport.GotoBottom()
	}
}

// View implements tea.Model.
func (m *Model) View() string {
	if !m.ready {
		return "starting..."
	}

	var b strings.Builder
	b.WriteString(m.renderHeader())
	b.WriteString("\n")
	b.WriteString(m.viewport.View())
	b.WriteString("\n")
	b.WriteString(m.renderTypingLine())
	b.WriteString("\n")
	b.WriteString(m.theme.InputContainer.Width(m.width - 2).Render(m.input.View()))
	b.WriteString("\n")
	b.WriteString(m.renderStatusBar())
	return b.String()
}

// =============================================================================
// SECTIONS
// =============================================================================

func (m *Model) renderHeader() string {
	contact := m.ActiveContact()

	dot := m.theme.OfflineDot.Render(styles.StatusIndicators.Offline)
	online := m.sess.Online()
	if len(online) > 0 {
		dot = m.theme.OnlineDot.Render(styles.StatusIndicators.Online)
	}

	title := m.theme.HeaderTitle.Render("gigchat")
	name := m.theme.HeaderContact.Render(contact.Name)
	line := fmt.Sprintf("%s  %s %s", title, dot, name)
	if m.opening {
		line += "  " + m.spin.View() + " opening"
	}
	return m.theme.Header.Width(m.width).Render(line)
}

func (m *Model) renderMessages() string {
	msgs := m.sess.Messages()
	if len(msgs) == 0 {
		return m.theme.InputPlaceholder.Render("No messages yet. Say hello!")
	}

	lines := make([]string, 0, len(msgs))
	for _, msg := range msgs {
		lines = append(lines, m.renderMessage(msg))
	}
	return strings.Join(lines, "\n")
}

func (m *Model) renderMessage(msg *model.Message) string {
	own := msg.SenderID == m.self.UserID

	style := m.theme.PeerMessage
	if own {
		style = m.theme.OwnMessage
	} else if msg.SenderRole == model.RoleAssistant {
		style = m.theme.SystemMessage
	}

	name := msg.SenderName
	if own {
		name = "You"
	}
	header := m.theme.SenderName.Render(name)
	if m.showTimestamps && !msg.CreatedAt.IsZero() {
		header += " " + m.theme.Timestamp.Render(msg.CreatedAt.Format("15:04"))
	}

	content := msg.DisplayContent()
	switch {
	case msg.Deleted:
		content = m.theme.DeletedMessage.Render(content)
	case msg.Failed:
		content = m.theme.FailedMessage.Render(styles.StatusIndicators.Failed+" "+content) +
			m.theme.Timestamp.Render("  (failed - ctrl+r to retry)")
	case msg.Pending:
		content = m.theme.PendingMessage.Render(styles.StatusIndicators.Pending + " " + content)
	}

	if msg.Attachment != nil {
		content += "\n" + m.theme.Attachment.Render("[attachment] "+msg.Attachment.Name)
	}

	width := m.width - 4
	if width < 10 {
		width = 10
	}
	return style.MaxWidth(width).Render(header+"\n"+content) + "\n"
}

func (m *Model) renderTypingLine() string {
	typists := m.sess.Typists()
	if len(typists) == 0 {
		return ""
	}

	names := make([]string, len(typists))
	for i, t := range typists {
		names[i] = t.UserName
	}

	var text string
	if len(names) == 1 {
		text = names[0] + " is typing..."
	} else {
		text = strings.Join(names, ", ") + " are typing..."
	}
	return m.theme.TypingIndicator.Render(util.TruncateWidth(text, m.width-2))
}

func (m *Model) renderStatusBar() string {
	var mode string
	switch m.sess.State() {
	case transport.StateLive:
		mode = m.theme.TransportLive.Render(styles.StatusIndicators.Live)
	case transport.StateFallback:
		mode = m.theme.TransportPoll.Render(styles.StatusIndicators.Polling)
	case transport.StateLiveAttempt:
		mode = m.spin.View()
	default:
		mode = m.theme.ShortcutDesc.Render("[---]")
	}

	left := mode
	if m.status != "" {
		left += "  " + m.theme.StatusError.Render(m.status)
	}

	help := strings.Join([]string{
		m.theme.ShortcutKey.Render("tab") + m.theme.ShortcutDesc.Render(" switch"),
		m.theme.ShortcutKey.Render("enter") + m.theme.ShortcutDesc.Render(" send"),
		m.theme.ShortcutKey.Render("ctrl+c") + m.theme.ShortcutDesc.Render(" quit"),
	}, "  ")

	gap := m.width - lipgloss.Width(left) - lipgloss.Width(help) - 2
	if gap < 1 {
		gap = 1
	}
	return m.theme.StatusBar.Width(m.width).Render(left + strings.Repeat(" ", gap) + help)
}
