// Package notify carries user-facing notifications out of the messaging
// core. The core never performs user-facing I/O itself: it hands
// Notification values to a Notifier, and the composition root decides
// where they go (log, UI stream, message broker).
package notify

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Kind classifies a notification.
type Kind string

const (
	KindConnected      Kind = "connected"
	KindConnectionLost Kind = "connection_lost"
	KindConnectionAck  Kind = "connection_ack"
	KindAuthRejected   Kind = "auth_rejected"
	KindNewMessage     Kind = "new_message"
	KindReaction       Kind = "reaction"
	KindSendFailed     Kind = "send_failed"
	KindUploadFailed   Kind = "upload_failed"
	KindReactionFailed Kind = "reaction_failed"
	KindHistoryFailed  Kind = "history_failed"
	KindLoggedIn       Kind = "logged_in"
	KindLoggedOut      Kind = "logged_out"
	KindSessionExpired Kind = "session_expired"
)

// Level is the presentation severity.
type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelError   Level = "error"
)

// Notification is one user-facing event.
type Notification struct {
	ID    string            `json:"id"`
	Kind  Kind              `json:"kind"`
	Level Level             `json:"level"`
	Text  string            `json:"text"`
	At    time.Time         `json:"at"`
	Attrs map[string]string `json:"attrs,omitempty"`
}

// Stamp fills in the id and time of a notification that lacks them.
func Stamp(n Notification, now time.Time) Notification {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.At.IsZero() {
		n.At = now
	}
	return n
}

// Notifier receives notifications. Implementations must not block for
// long: the messaging core calls Notify from its event loop.
type Notifier interface {
	Notify(ctx context.Context, n Notification)
}

// Func adapts a function to Notifier.
type Func func(ctx context.Context, n Notification)

func (f Func) Notify(ctx context.Context, n Notification) { f(ctx, n) }

// Nop discards everything.
type Nop struct{}

func (Nop) Notify(context.Context, Notification) {}

type multi []Notifier

// Multi fans a notification out to every non-nil notifier in order.
func Multi(notifiers ...Notifier) Notifier {
	out := make(multi, 0, len(notifiers))
	for _, n := range notifiers {
		if n != nil {
			out = append(out, n)
		}
	}
	return out
}

func (m multi) Notify(ctx context.Context, n Notification) {
	for _, notifier := range m {
		notifier.Notify(ctx, n)
	}
}

// Log writes notifications to a structured logger.
type Log struct {
	Logger *slog.Logger
}

func (l Log) Notify(ctx context.Context, n Notification) {
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}
	level := slog.LevelInfo
	if n.Level == LevelError {
		level = slog.LevelWarn
	}
	logger.Log(ctx, level, "notification", "kind", n.Kind, "text", n.Text)
}
