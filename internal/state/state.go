// Package state holds the observable session aggregate: the message list,
// presence and typing sets, unread counter and connection status.
//
// Snapshots are values. Reduce never mutates its input, so a snapshot handed
// to a subscriber stays valid after later events are applied.
package state

import (
	"strings"

	"chat-client/internal/models"
)

type Status string

const (
	StatusDisconnected Status = "disconnected"
	StatusConnecting   Status = "connecting"
	StatusConnected    Status = "connected"
	StatusReconnecting Status = "reconnecting"
)

type Snapshot struct {
	Self     models.User            `json:"self"`
	Status   Status                 `json:"status"`
	Messages []models.Message       `json:"messages"`
	Online   []models.PresenceEntry `json:"online"`
	Typing   []models.TypingEntry   `json:"typing"`
	Unread   int                    `json:"unread"`
	Version  uint64                 `json:"version"`
}

func (s Snapshot) Connected() bool { return s.Status == StatusConnected }

// Conversation returns the messages of the general channel when peer is
// zero, otherwise those exchanged between the current user and peer.
func (s Snapshot) Conversation(peer models.ID) []models.Message {
	out := make([]models.Message, 0, len(s.Messages))
	for _, m := range s.Messages {
		if peer.IsZero() {
			if m.IsGeneral() {
				out = append(out, m)
			}
			continue
		}
		if (m.SenderID == peer && m.ReceiverID == s.Self.ID) ||
			(m.SenderID == s.Self.ID && m.ReceiverID == peer) {
			out = append(out, m)
		}
	}
	return out
}

// IsTyping reports whether peer has an active typing entry.
func (s Snapshot) IsTyping(peer models.ID) bool {
	return indexTyping(s.Typing, peer) >= 0
}

// IsOnline reports whether peer is in the presence set.
func (s Snapshot) IsOnline(peer models.ID) bool {
	return indexPresence(s.Online, peer) >= 0
}

// Search keeps messages whose content or sender name contains query,
// ignoring case. An empty query keeps everything.
func Search(messages []models.Message, query string) []models.Message {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return messages
	}
	out := make([]models.Message, 0)
	for _, m := range messages {
		if strings.Contains(strings.ToLower(m.Content), query) ||
			strings.Contains(strings.ToLower(m.SenderName), query) {
			out = append(out, m)
		}
	}
	return out
}

func indexMessage(messages []models.Message, id models.ID) int {
	for i := range messages {
		if messages[i].ID == id {
			return i
		}
	}
	return -1
}

func indexPresence(online []models.PresenceEntry, id models.ID) int {
	for i := range online {
		if online[i].UserID == id {
			return i
		}
	}
	return -1
}

func indexTyping(typing []models.TypingEntry, id models.ID) int {
	for i := range typing {
		if typing[i].UserID == id {
			return i
		}
	}
	return -1
}
