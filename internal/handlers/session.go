package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"chat-client/internal/auth"
)

// SessionHandler exposes login, logout and the current session.
type SessionHandler struct {
	sessions  Sessions
	transport Transport
	logger    *slog.Logger
}

func NewSessionHandler(sessions Sessions, transport Transport, logger *slog.Logger) *SessionHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionHandler{sessions: sessions, transport: transport, logger: logger}
}

// Login handles POST /session/login.
func (h *SessionHandler) Login(c *gin.Context) {
	var req struct {
		Username string `json:"username" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	s, err := h.sessions.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		status := http.StatusBadGateway
		switch {
		case auth.IsKind(err, auth.InvalidCredentials):
			status = http.StatusUnauthorized
		case auth.IsKind(err, auth.NetworkUnavailable):
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{"error": auth.Message(err)})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user":           s.User,
		"is_admin":       h.sessions.IsAdmin(),
		"is_coordinator": h.sessions.IsCoordinator(),
	})
}

// Logout handles POST /session/logout.
func (h *SessionHandler) Logout(c *gin.Context) {
	h.sessions.Logout(c.Request.Context())
	c.Status(http.StatusNoContent)
}

// Current handles GET /session.
func (h *SessionHandler) Current(c *gin.Context) {
	user, ok := userFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not logged in"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"user":           user,
		"is_admin":       h.sessions.IsAdmin(),
		"is_coordinator": h.sessions.IsCoordinator(),
		"connection":     h.transport.State().Status(),
	})
}
