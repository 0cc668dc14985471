package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"chat-client/internal/auth"
	"chat-client/internal/backend"
	"chat-client/internal/models"
	"chat-client/internal/notify"
	"chat-client/internal/protocol"
	"chat-client/internal/session"
	"chat-client/internal/state"
)

const (
	requestIDContextKey = "request_id"
	// UserContextKey holds the models.User set by middleware.RequireSession.
	UserContextKey = "user"
)

var nowFunc = time.Now

// Sessions is the authenticator surface used by the gateway.
type Sessions interface {
	Login(ctx context.Context, username, password string) (*auth.Session, error)
	Logout(ctx context.Context)
	Current() (auth.Session, bool)
	Invalidate(ctx context.Context, reason string)
	IsAdmin() bool
	IsCoordinator() bool
}

// Transport is the messaging transport surface used by the gateway.
type Transport interface {
	State() session.State
	SendMessage(ctx context.Context, msg protocol.ChatMessage) error
	SendTyping(ctx context.Context, isTyping bool, receiver models.ID) error
	RequestHistory(ctx context.Context) error
	MarkRead(ctx context.Context) error
	ApplyHistory(ctx context.Context, messages []models.Message) error
	ApplyPresence(ctx context.Context, users []models.PresenceEntry) error
}

// StateView is the read side of the session state.
type StateView interface {
	Snapshot() state.Snapshot
	Messages(peer models.ID, query string) []models.Message
	Subscribe() (<-chan state.Snapshot, func())
}

// Backend is the side channel to the REST backend.
type Backend interface {
	UploadFile(ctx context.Context, token, filename string, content io.Reader) (*backend.UploadedFile, error)
	ToggleReaction(ctx context.Context, token string, messageID models.ID, emoji string) (*backend.ReactionResult, error)
	Reactions(ctx context.Context, token string, messageID models.ID) ([]models.Reaction, error)
	Messages(ctx context.Context, token string) ([]models.Message, error)
	OnlineUsers(ctx context.Context, token string) ([]models.PresenceEntry, error)
	DashboardOverview(ctx context.Context, token string) (json.RawMessage, error)
	Boards(ctx context.Context, token string) (json.RawMessage, error)
	Board(ctx context.Context, token string, boardID models.ID) (json.RawMessage, error)
	Users(ctx context.Context, token string) (json.RawMessage, error)
	MoveTask(ctx context.Context, token string, taskID models.ID, move backend.MoveTaskRequest) error
}

func requestIDFromContext(c *gin.Context) string {
	if val, ok := c.Get(requestIDContextKey); ok {
		if id, ok := val.(string); ok && id != "" {
			return id
		}
	}

	requestID := c.GetHeader("X-Request-ID")
	if requestID == "" {
		requestID = uuid.NewString()
	}
	c.Set(requestIDContextKey, requestID)
	return requestID
}

func userFromContext(c *gin.Context) (models.User, bool) {
	val, ok := c.Get(UserContextKey)
	if !ok {
		return models.User{}, false
	}
	user, ok := val.(models.User)
	return user, ok
}

func tokenOf(sessions Sessions) string {
	s, ok := sessions.Current()
	if !ok {
		return ""
	}
	return s.Token
}

// sideChannel reports a failed backend call. A rejected token ends the
// session; anything else becomes an error notification and a 502.
type sideChannel struct {
	sessions Sessions
	notifier notify.Notifier
	logger   *slog.Logger
}

func (s sideChannel) fail(c *gin.Context, operation string, kind notify.Kind, text string, err error) {
	ctx := c.Request.Context()
	s.logger.Warn("backend call failed",
		"operation", operation,
		"request_id", requestIDFromContext(c),
		"error", err,
	)

	if backend.IsUnauthorized(err) {
		s.sessions.Invalidate(ctx, "Session expired")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "session expired"})
		return
	}

	if kind != "" {
		s.notifier.Notify(ctx, notify.Stamp(notify.Notification{
			Kind:  kind,
			Level: notify.LevelError,
			Text:  text,
			Attrs: map[string]string{"operation": operation},
		}, nowFunc()))
	}

	var apiErr *backend.APIError
	if errors.As(err, &apiErr) && apiErr.Detail != "" {
		c.JSON(http.StatusBadGateway, gin.H{"error": text, "detail": apiErr.Detail})
		return
	}
	c.JSON(http.StatusBadGateway, gin.H{"error": text})
}
