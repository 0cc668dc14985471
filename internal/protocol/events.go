package protocol

import "chat-client/internal/models"

// Inbound discriminators.
const (
	TypeConnection     = "connection"
	TypeMessageHistory = "message_history"
	TypeNewMessage     = "new_message"
	TypeUserStatus     = "user_status"
	TypeOnlineUsers    = "online_users"
	TypeTyping         = "typing"
	TypeReactionUpdate = "reaction_update"
	TypePong           = "pong"
)

// Event is one decoded inbound frame, or a locally produced event applied
// through the same path.
type Event interface {
	EventType() string
}

// ConnectionAck greets a freshly opened connection.
type ConnectionAck struct {
	Message string `json:"message"`
}

// MessageHistory replaces the message list wholesale.
type MessageHistory struct {
	Messages []models.Message `json:"messages"`
}

// NewMessage appends one message.
type NewMessage struct {
	Message models.Message `json:"message"`
}

// UserStatus reports a single peer going online or offline.
type UserStatus struct {
	UserID   models.ID `json:"user_id"`
	Username string    `json:"username"`
	FullName string    `json:"full_name"`
	IsOnline bool      `json:"is_online"`
}

// OnlineUsers is a full presence snapshot.
type OnlineUsers struct {
	Users []models.PresenceEntry `json:"users"`
}

// Typing is a peer's typing signal.
type Typing struct {
	UserID   models.ID `json:"user_id"`
	Username string    `json:"username"`
	IsTyping bool      `json:"is_typing"`
}

// Reaction actions reported by the backend.
const (
	ReactionAdded   = "added"
	ReactionRemoved = "removed"
)

// ReactionUpdate carries the full replacement reaction list of a message.
type ReactionUpdate struct {
	MessageID models.ID         `json:"message_id"`
	Reactions []models.Reaction `json:"reactions"`
	Action    string            `json:"action"`
	UserID    models.ID         `json:"user_id,omitempty"`
	UserName  string            `json:"user_name"`
	Emoji     string            `json:"emoji"`
}

// Pong confirms liveness.
type Pong struct{}

// Unrecognized is any frame whose discriminator is unknown.
type Unrecognized struct {
	Type string
}

func (ConnectionAck) EventType() string  { return TypeConnection }
func (MessageHistory) EventType() string { return TypeMessageHistory }
func (NewMessage) EventType() string     { return TypeNewMessage }
func (UserStatus) EventType() string     { return TypeUserStatus }
func (OnlineUsers) EventType() string    { return TypeOnlineUsers }
func (Typing) EventType() string         { return TypeTyping }
func (ReactionUpdate) EventType() string { return TypeReactionUpdate }
func (Pong) EventType() string           { return TypePong }
func (u Unrecognized) EventType() string { return u.Type }
