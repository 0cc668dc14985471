package protocol

import (
	"encoding/json"
	"errors"
	"fmt"

	"chat-client/internal/models"
)

// ErrMalformedFrame is returned for frames that are not a JSON object with
// a string type discriminator, or whose payload does not match its type.
var ErrMalformedFrame = errors.New("malformed frame")

type envelope struct {
	Type string `json:"type"`
}

// Decode turns one inbound frame into a typed event. Unknown fields are
// ignored; unknown discriminators yield Unrecognized rather than an error.
func Decode(data []byte) (Event, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	if env.Type == "" {
		return nil, fmt.Errorf("%w: missing type", ErrMalformedFrame)
	}

	var event Event
	var err error
	switch env.Type {
	case TypeConnection:
		event, err = decodeInto[ConnectionAck](data)
	case TypeMessageHistory:
		event, err = decodeInto[MessageHistory](data)
	case TypeNewMessage:
		event, err = decodeInto[NewMessage](data)
	case TypeUserStatus:
		event, err = decodeInto[UserStatus](data)
	case TypeOnlineUsers:
		event, err = decodeInto[OnlineUsers](data)
	case TypeTyping:
		event, err = decodeInto[Typing](data)
	case TypeReactionUpdate:
		event, err = decodeInto[ReactionUpdate](data)
	case TypePong:
		event = Pong{}
	default:
		event = Unrecognized{Type: env.Type}
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformedFrame, env.Type, err)
	}
	return event, nil
}

func decodeInto[T Event](data []byte) (Event, error) {
	var payload T
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, err
	}
	return payload, nil
}

// Outbound discriminators.
const (
	TypeChatMessage = "chat_message"
	TypePing        = "ping"
	TypeGetHistory  = "get_history"
)

// Intent is an outbound request serialized onto the wire.
type Intent interface {
	IntentType() string
}

// ChatMessage sends a message to the general channel or to ReceiverID.
type ChatMessage struct {
	Content     string             `json:"content"`
	ReceiverID  models.ID          `json:"receiver_id,omitempty"`
	MessageType models.MessageType `json:"message_type"`
	FilePath    string             `json:"file_path,omitempty"`
}

// TypingSignal starts or stops the local typing indicator.
type TypingSignal struct {
	IsTyping   bool      `json:"is_typing"`
	ReceiverID models.ID `json:"receiver_id,omitempty"`
}

// Ping is the keepalive signal.
type Ping struct{}

// GetHistory asks the service to resend the message history.
type GetHistory struct{}

func (ChatMessage) IntentType() string  { return TypeChatMessage }
func (TypingSignal) IntentType() string { return TypeTyping }
func (Ping) IntentType() string         { return TypePing }
func (GetHistory) IntentType() string   { return TypeGetHistory }

// Encode serializes an intent with its type discriminator.
func Encode(intent Intent) ([]byte, error) {
	switch v := intent.(type) {
	case ChatMessage:
		if v.MessageType == "" {
			v.MessageType = models.MessageText
		}
		return json.Marshal(struct {
			Type string `json:"type"`
			ChatMessage
		}{TypeChatMessage, v})
	case TypingSignal:
		return json.Marshal(struct {
			Type string `json:"type"`
			TypingSignal
		}{TypeTyping, v})
	case Ping, GetHistory:
		return json.Marshal(envelope{Type: intent.IntentType()})
	default:
		return nil, fmt.Errorf("protocol: unsupported intent %T", intent)
	}
}
