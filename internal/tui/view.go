package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"chat-client/internal/models"
)

func (m Model) View() string {
	if m.mode == modeLogin {
		return m.loginView()
	}
	if !m.ready {
		return "Loading..."
	}
	return strings.Join([]string{
		m.header(),
		m.viewport.View(),
		m.typingLine(),
		strings.Repeat("─", max(m.width, 1)),
		m.composer.View(),
		m.statusLine(),
	}, "\n")
}

func (m Model) loginView() string {
	form := lipgloss.JoinVertical(lipgloss.Left,
		titleStyle.Render("Sign in"),
		"",
		m.username.View(),
		m.password.View(),
		"",
		dimStyle.Render("tab next field · enter submit · esc quit"),
	)
	return lipgloss.JoinVertical(lipgloss.Left, panelStyle.Render(form), m.statusLine())
}

func (m Model) header() string {
	channel := "general"
	if !m.peer.IsZero() {
		channel = "direct " + m.peer.String()
		if m.snap.IsOnline(m.peer) {
			channel += " (online)"
		}
	}
	parts := []string{
		titleStyle.Render("chat"),
		channel,
		statusStyle(m.snap.Connected()).Render("● " + string(m.snap.Status)),
		fmt.Sprintf("%d online", len(m.snap.Online)),
	}
	if m.snap.Unread > 0 {
		parts = append(parts, fmt.Sprintf("%d unread", m.snap.Unread))
	}
	if m.query != "" {
		parts = append(parts, fmt.Sprintf("search %q", m.query))
	}
	return strings.Join(parts, dimStyle.Render(" · "))
}

func (m Model) typingLine() string {
	var names []string
	for _, t := range m.snap.Typing {
		if !m.peer.IsZero() && t.UserID != m.peer {
			continue
		}
		names = append(names, t.Username)
	}
	switch len(names) {
	case 0:
		return ""
	case 1:
		return dimStyle.Render(names[0] + " is typing...")
	default:
		return dimStyle.Render(strings.Join(names, ", ") + " are typing...")
	}
}

func (m Model) statusLine() string {
	if m.status == "" {
		return ""
	}
	if m.statusError {
		return errorStyle.Render(m.status)
	}
	return dimStyle.Render(m.status)
}

func renderMessages(msgs []models.Message, self models.ID, width int) string {
	if len(msgs) == 0 {
		return dimStyle.Render("No messages yet")
	}
	lines := make([]string, 0, len(msgs))
	for _, msg := range msgs {
		lines = append(lines, renderMessage(msg, self, width))
	}
	return strings.Join(lines, "\n")
}

func renderMessage(msg models.Message, self models.ID, width int) string {
	stamp := "--:--"
	if !msg.Timestamp.IsZero() {
		stamp = msg.Timestamp.Local().Format("15:04")
	}
	name := msg.SenderName
	if name == "" {
		name = msg.SenderID.String()
	}
	sender := peerStyle.Render(name)
	if msg.SenderID == self {
		sender = selfStyle.Render(name)
	}

	body := msg.Content
	if msg.Type == models.MessageFile {
		body = fileStyle.Render("[file] "+msg.Content) + dimStyle.Render(" "+msg.FilePath)
	}

	line := fmt.Sprintf("%s %s %s %s", timeStyle.Render(stamp), dimStyle.Render("#"+msg.ID.String()), sender, body)
	if reactions := renderReactions(msg.Reactions); reactions != "" {
		line += " " + reactions
	}
	if width > 0 {
		line = lipgloss.NewStyle().Width(width).Render(line)
	}
	return line
}

func renderReactions(reactions []models.Reaction) string {
	parts := make([]string, 0, len(reactions))
	for _, r := range reactions {
		if r.Count == 0 {
			continue
		}
		part := fmt.Sprintf("%s%d", r.Emoji, r.Count)
		if r.ReactedByMe {
			part = okStyle.Render(part)
		}
		parts = append(parts, "["+part+"]")
	}
	return strings.Join(parts, " ")
}
