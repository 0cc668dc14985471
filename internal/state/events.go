package state

import "chat-client/internal/models"

// Local events are produced inside the process rather than decoded from the
// wire. They are applied through Reduce like any inbound frame.
const (
	TypeMarkRead      = "local.mark_read"
	TypePeersCleared  = "local.peers_cleared"
	TypeStatusChanged = "local.status_changed"
	TypeSessionReset  = "local.session_reset"
)

// MarkRead resets the unread counter.
type MarkRead struct{}

// PeersCleared drops presence and typing state after the connection is lost.
type PeersCleared struct{}

type StatusChanged struct {
	Status Status
}

// SessionReset starts an empty aggregate for a new identity. A zero user
// means nobody is logged in.
type SessionReset struct {
	User models.User
}

func (MarkRead) EventType() string      { return TypeMarkRead }
func (PeersCleared) EventType() string  { return TypePeersCleared }
func (StatusChanged) EventType() string { return TypeStatusChanged }
func (SessionReset) EventType() string  { return TypeSessionReset }
