package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"chat-client/internal/models"
	"chat-client/internal/notify"
	"chat-client/internal/protocol"
	"chat-client/internal/session"
)

// ChatHandler exposes the conversation state and the outbound operations
// of the messaging transport.
type ChatHandler struct {
	sessions  Sessions
	transport Transport
	view      StateView
	backend   Backend
	notifier  notify.Notifier
	side      sideChannel
	logger    *slog.Logger
}

func NewChatHandler(sessions Sessions, transport Transport, view StateView, backend Backend, notifier notify.Notifier, logger *slog.Logger) *ChatHandler {
	if notifier == nil {
		notifier = notify.Nop{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ChatHandler{
		sessions:  sessions,
		transport: transport,
		view:      view,
		backend:   backend,
		notifier:  notifier,
		side:      sideChannel{sessions: sessions, notifier: notifier, logger: logger},
		logger:    logger,
	}
}

// State handles GET /chat/state.
func (h *ChatHandler) State(c *gin.Context) {
	c.JSON(http.StatusOK, h.view.Snapshot())
}

// Messages handles GET /chat/messages. peer selects a direct conversation,
// its absence the general channel; q filters by content or sender name.
func (h *ChatHandler) Messages(c *gin.Context) {
	peer := models.ID(c.Query("peer"))
	msgs := h.view.Messages(peer, c.Query("q"))
	if msgs == nil {
		msgs = []models.Message{}
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

// PostMessage handles POST /chat/messages.
func (h *ChatHandler) PostMessage(c *gin.Context) {
	var req struct {
		Content    string    `json:"content" binding:"required"`
		ReceiverID models.ID `json:"receiver_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	msg := protocol.ChatMessage{Content: req.Content, ReceiverID: req.ReceiverID, MessageType: models.MessageText}
	if err := h.transport.SendMessage(c.Request.Context(), msg); err != nil {
		h.sendFailed(c, err)
		return
	}
	c.Status(http.StatusAccepted)
}

// Typing handles POST /chat/typing.
func (h *ChatHandler) Typing(c *gin.Context) {
	var req struct {
		IsTyping   bool      `json:"is_typing"`
		ReceiverID models.ID `json:"receiver_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.transport.SendTyping(c.Request.Context(), req.IsTyping, req.ReceiverID); err != nil {
		c.JSON(sendStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusAccepted)
}

// RequestHistory handles POST /chat/history.
func (h *ChatHandler) RequestHistory(c *gin.Context) {
	if err := h.transport.RequestHistory(c.Request.Context()); err != nil {
		c.JSON(sendStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusAccepted)
}

// FetchHistory handles POST /chat/history/fetch: the history is loaded over
// HTTP and applied as a full replacement.
func (h *ChatHandler) FetchHistory(c *gin.Context) {
	ctx := c.Request.Context()
	msgs, err := h.backend.Messages(ctx, tokenOf(h.sessions))
	if err != nil {
		h.side.fail(c, "messages", notify.KindHistoryFailed, "Failed to load message history", err)
		return
	}
	if err := h.transport.ApplyHistory(ctx, msgs); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": len(msgs)})
}

// FetchPresence handles POST /chat/presence/fetch: the online set is
// loaded over HTTP and replaces the one held for the open connection.
func (h *ChatHandler) FetchPresence(c *gin.Context) {
	ctx := c.Request.Context()
	users, err := h.backend.OnlineUsers(ctx, tokenOf(h.sessions))
	if err != nil {
		h.side.fail(c, "online_users", "", "Failed to load online users", err)
		return
	}
	if err := h.transport.ApplyPresence(ctx, users); err != nil {
		c.JSON(sendStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": len(users)})
}

// MarkRead handles POST /chat/read.
func (h *ChatHandler) MarkRead(c *gin.Context) {
	if err := h.transport.MarkRead(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}

// React handles POST /chat/messages/:id/reactions. The resulting reaction
// list reaches the state through the socket, not through this response.
func (h *ChatHandler) React(c *gin.Context) {
	messageID := models.ID(c.Param("id"))
	var req struct {
		Emoji string `json:"emoji" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.backend.ToggleReaction(c.Request.Context(), tokenOf(h.sessions), messageID, req.Emoji)
	if err != nil {
		h.side.fail(c, "reaction", notify.KindReactionFailed, "Failed to react to message", err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// Reactions handles GET /chat/messages/:id/reactions.
func (h *ChatHandler) Reactions(c *gin.Context) {
	messageID := models.ID(c.Param("id"))
	reactions, err := h.backend.Reactions(c.Request.Context(), tokenOf(h.sessions), messageID)
	if err != nil {
		h.side.fail(c, "reactions", "", "Failed to load reactions", err)
		return
	}
	if reactions == nil {
		reactions = []models.Reaction{}
	}
	c.JSON(http.StatusOK, gin.H{"message_id": messageID, "reactions": reactions})
}

// UploadFile handles POST /chat/files: the multipart field "file" is
// uploaded to the backend, then shared as a file message.
func (h *ChatHandler) UploadFile(c *gin.Context) {
	if h.transport.State() != session.Open {
		h.sendFailed(c, session.ErrNotConnected)
		return
	}

	header, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing file"})
		return
	}
	file, err := header.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable file"})
		return
	}
	defer file.Close()

	ctx := c.Request.Context()
	uploaded, err := h.backend.UploadFile(ctx, tokenOf(h.sessions), header.Filename, file)
	if err != nil {
		h.side.fail(c, "upload", notify.KindUploadFailed, "Failed to upload file", err)
		return
	}

	name := uploaded.Filename
	if name == "" {
		name = header.Filename
	}
	msg := protocol.ChatMessage{
		Content:     name,
		ReceiverID:  models.ID(c.PostForm("receiver_id")),
		MessageType: models.MessageFile,
		FilePath:    uploaded.FilePath,
	}
	if err := h.transport.SendMessage(ctx, msg); err != nil {
		h.sendFailed(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"file": uploaded})
}

func (h *ChatHandler) sendFailed(c *gin.Context, err error) {
	text := "Failed to send message"
	if errors.Is(err, session.ErrNotConnected) {
		text = "Not connected to the chat"
	}
	h.notifier.Notify(c.Request.Context(), notify.Stamp(notify.Notification{
		Kind:  notify.KindSendFailed,
		Level: notify.LevelError,
		Text:  text,
	}, nowFunc()))
	c.JSON(sendStatus(err), gin.H{"error": text})
}

func sendStatus(err error) int {
	switch {
	case errors.Is(err, session.ErrNotConnected):
		return http.StatusConflict
	case errors.Is(err, session.ErrSendBufferFull), errors.Is(err, session.ErrClientStopped):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
