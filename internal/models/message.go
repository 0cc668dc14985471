package models

import (
	"encoding/json"
	"strings"
	"time"
)

// MessageType distinguishes plain text from shared files.
type MessageType string

const (
	MessageText MessageType = "text"
	MessageFile MessageType = "file"
)

// Message is a chat message as delivered by the messaging service. It is
// immutable once received except for its Reactions.
type Message struct {
	ID         ID          `json:"id"`
	SenderID   ID          `json:"sender_id"`
	SenderName string      `json:"sender_name"`
	Content    string      `json:"content"`
	Type       MessageType `json:"message_type,omitempty"`
	FilePath   string      `json:"file_path,omitempty"`
	ReceiverID ID          `json:"receiver_id,omitempty"`
	Timestamp  Timestamp   `json:"timestamp"`
	Reactions  []Reaction  `json:"reactions"`
}

// IsGeneral reports whether the message belongs to the general channel.
func (m Message) IsGeneral() bool { return m.ReceiverID.IsZero() }

// UnmarshalJSON accepts created_at when timestamp is absent, and ignores a
// reactions value that is not a list.
func (m *Message) UnmarshalJSON(data []byte) error {
	type plain Message
	var aux struct {
		plain
		CreatedAt Timestamp       `json:"created_at"`
		Reactions json.RawMessage `json:"reactions"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*m = Message(aux.plain)
	if m.Timestamp.IsZero() {
		m.Timestamp = aux.CreatedAt
	}
	if len(aux.Reactions) > 0 && aux.Reactions[0] == '[' {
		if err := json.Unmarshal(aux.Reactions, &m.Reactions); err != nil {
			return err
		}
	}
	return nil
}

// Reaction is the aggregated view of one emoji on a message.
type Reaction struct {
	Emoji       string   `json:"emoji"`
	Count       int      `json:"count"`
	Users       []string `json:"users"`
	UserIDs     []ID     `json:"user_ids,omitempty"`
	ReactedByMe bool     `json:"reacted_by_me"`
}

// Timestamp tolerates the timezone-less ISO layout the backend produces
// as well as RFC 3339. Unparseable values decode to the zero time.
type Timestamp struct {
	time.Time
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		// numbers, null and objects are not timestamps we understand
		t.Time = time.Time{}
		return nil
	}
	raw = strings.TrimSpace(raw)
	for _, layout := range timestampLayouts {
		if parsed, err := time.Parse(layout, raw); err == nil {
			t.Time = parsed
			return nil
		}
	}
	t.Time = time.Time{}
	return nil
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.UTC().Format(time.RFC3339Nano))
}
