package ws

import (
	"time"

	"github.com/google/uuid"
)

// ConnInfo describes one physical connection for logs and metrics.
type ConnInfo struct {
	ConnID      string
	UserID      string
	Attempt     int
	ConnectedAt time.Time
}

func NewConnInfo(userID string, attempt int) ConnInfo {
	return ConnInfo{
		ConnID:  newConnID(),
		UserID:  userID,
		Attempt: attempt,
	}
}

func newConnID() string {
	return uuid.NewString()
}
