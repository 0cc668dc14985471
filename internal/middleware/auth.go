package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"chat-client/internal/auth"
)

// SessionSource reports the active session.
type SessionSource interface {
	Current() (auth.Session, bool)
}

// RequireSession rejects requests while nobody is logged in and stores the
// session user under the "user" key otherwise.
func RequireSession(sessions SessionSource) gin.HandlerFunc {
	return func(c *gin.Context) {
		s, ok := sessions.Current()
		if !ok || s.Token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "not logged in"})
			return
		}

		c.Set("user", s.User)
		c.Next()
	}
}

// RequireCoordinator must run after RequireSession.
func RequireCoordinator(perms interface{ IsCoordinator() bool }) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !perms.IsCoordinator() {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "coordinator access required"})
			return
		}
		c.Next()
	}
}
