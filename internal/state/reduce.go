package state

import (
	"fmt"

	"chat-client/internal/models"
	"chat-client/internal/notify"
	"chat-client/internal/protocol"
)

// Reduce applies one event to s and returns the resulting snapshot together
// with the notifications the event should surface. Unrecognized events
// leave s unchanged.
func Reduce(s Snapshot, ev protocol.Event) (Snapshot, []notify.Notification) {
	switch e := ev.(type) {
	case protocol.ConnectionAck:
		return s, []notify.Notification{{
			Kind:  notify.KindConnectionAck,
			Level: notify.LevelInfo,
			Text:  ackText(e.Message),
		}}
	case protocol.MessageHistory:
		s.Messages = dedupeMessages(e.Messages)
		return s, nil
	case protocol.NewMessage:
		return applyNewMessage(s, e.Message)
	case protocol.UserStatus:
		return applyUserStatus(s, e), nil
	case protocol.OnlineUsers:
		s.Online = presenceSnapshot(e.Users, s.Self.ID)
		return s, nil
	case protocol.Typing:
		return applyTyping(s, e), nil
	case protocol.ReactionUpdate:
		return applyReaction(s, e)
	case MarkRead:
		s.Unread = 0
		return s, nil
	case PeersCleared:
		s.Online = nil
		s.Typing = nil
		return s, nil
	case StatusChanged:
		s.Status = e.Status
		return s, nil
	case SessionReset:
		return Snapshot{Self: e.User, Status: StatusDisconnected, Version: s.Version}, nil
	default:
		return s, nil
	}
}

func ackText(msg string) string {
	if msg == "" {
		return "Connected to chat"
	}
	return msg
}

// dedupeMessages keeps the first position of each id and the last payload
// seen for it.
func dedupeMessages(in []models.Message) []models.Message {
	out := make([]models.Message, 0, len(in))
	seen := make(map[models.ID]int, len(in))
	for _, m := range in {
		if i, ok := seen[m.ID]; ok && !m.ID.IsZero() {
			out[i] = m
			continue
		}
		seen[m.ID] = len(out)
		out = append(out, m)
	}
	return out
}

func applyNewMessage(s Snapshot, m models.Message) (Snapshot, []notify.Notification) {
	if i := indexMessage(s.Messages, m.ID); i >= 0 && !m.ID.IsZero() {
		s.Messages = replaceMessage(s.Messages, i, m)
		return s, nil
	}

	messages := make([]models.Message, len(s.Messages), len(s.Messages)+1)
	copy(messages, s.Messages)
	s.Messages = append(messages, m)

	if m.SenderID == s.Self.ID && !s.Self.ID.IsZero() {
		return s, nil
	}
	s.Unread++

	text := "New message from " + senderLabel(m)
	if !m.IsGeneral() {
		text = "Direct message from " + senderLabel(m)
	}
	return s, []notify.Notification{{
		Kind:  notify.KindNewMessage,
		Level: notify.LevelInfo,
		Text:  text,
		Attrs: map[string]string{
			"message_id": m.ID.String(),
			"sender_id":  m.SenderID.String(),
		},
	}}
}

func senderLabel(m models.Message) string {
	if m.SenderName != "" {
		return m.SenderName
	}
	return m.SenderID.String()
}

func replaceMessage(messages []models.Message, i int, m models.Message) []models.Message {
	out := make([]models.Message, len(messages))
	copy(out, messages)
	out[i] = m
	return out
}

func applyUserStatus(s Snapshot, e protocol.UserStatus) Snapshot {
	if e.UserID.IsZero() || e.UserID == s.Self.ID {
		return s
	}

	if !e.IsOnline {
		if i := indexPresence(s.Online, e.UserID); i >= 0 {
			s.Online = removeAt(s.Online, i)
		}
		if i := indexTyping(s.Typing, e.UserID); i >= 0 {
			s.Typing = removeAt(s.Typing, i)
		}
		return s
	}

	if indexPresence(s.Online, e.UserID) >= 0 {
		return s
	}
	online := make([]models.PresenceEntry, len(s.Online), len(s.Online)+1)
	copy(online, s.Online)
	s.Online = append(online, models.PresenceEntry{
		UserID:      e.UserID,
		Username:    e.Username,
		DisplayName: e.FullName,
	})
	return s
}

func presenceSnapshot(users []models.PresenceEntry, self models.ID) []models.PresenceEntry {
	out := make([]models.PresenceEntry, 0, len(users))
	for _, u := range users {
		if u.UserID.IsZero() || u.UserID == self || indexPresence(out, u.UserID) >= 0 {
			continue
		}
		out = append(out, u)
	}
	return out
}

func applyTyping(s Snapshot, e protocol.Typing) Snapshot {
	if e.UserID.IsZero() || e.UserID == s.Self.ID {
		return s
	}

	i := indexTyping(s.Typing, e.UserID)
	entry := models.TypingEntry{UserID: e.UserID, Username: e.Username}
	switch {
	case e.IsTyping && i >= 0:
		typing := make([]models.TypingEntry, len(s.Typing))
		copy(typing, s.Typing)
		typing[i] = entry
		s.Typing = typing
	case e.IsTyping:
		typing := make([]models.TypingEntry, len(s.Typing), len(s.Typing)+1)
		copy(typing, s.Typing)
		s.Typing = append(typing, entry)
	case i >= 0:
		s.Typing = removeAt(s.Typing, i)
	}
	return s
}

func applyReaction(s Snapshot, e protocol.ReactionUpdate) (Snapshot, []notify.Notification) {
	if i := indexMessage(s.Messages, e.MessageID); i >= 0 {
		m := s.Messages[i]
		m.Reactions = localizeReactions(e.Reactions, s.Self)
		s.Messages = replaceMessage(s.Messages, i, m)
	}

	if e.Action == protocol.ReactionRemoved || reactorIsSelf(e, s.Self) {
		return s, nil
	}
	who := e.UserName
	if who == "" {
		who = "Someone"
	}
	return s, []notify.Notification{{
		Kind:  notify.KindReaction,
		Level: notify.LevelInfo,
		Text:  fmt.Sprintf("%s reacted with %s", who, e.Emoji),
		Attrs: map[string]string{
			"message_id": e.MessageID.String(),
			"emoji":      e.Emoji,
		},
	}}
}

// localizeReactions recomputes ReactedByMe for the local user. The backend
// computes the flag relative to whoever triggered the broadcast.
func localizeReactions(in []models.Reaction, self models.User) []models.Reaction {
	out := make([]models.Reaction, len(in))
	for i, r := range in {
		switch {
		case len(r.UserIDs) > 0:
			r.ReactedByMe = containsID(r.UserIDs, self.ID)
		case self.Username != "" || self.FullName != "":
			r.ReactedByMe = containsName(r.Users, self)
		}
		out[i] = r
	}
	return out
}

func reactorIsSelf(e protocol.ReactionUpdate, self models.User) bool {
	if !e.UserID.IsZero() {
		return e.UserID == self.ID
	}
	return e.UserName != "" && (e.UserName == self.Username || e.UserName == self.FullName)
}

func containsID(ids []models.ID, id models.ID) bool {
	if id.IsZero() {
		return false
	}
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func containsName(names []string, self models.User) bool {
	for _, n := range names {
		if n != "" && (n == self.Username || n == self.FullName) {
			return true
		}
	}
	return false
}

func removeAt[T any](in []T, i int) []T {
	out := make([]T, 0, len(in)-1)
	out = append(out, in[:i]...)
	return append(out, in[i+1:]...)
}
