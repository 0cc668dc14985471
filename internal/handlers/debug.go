package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"chat-client/internal/notify"
)

// RegisterDebugRoutes wires debug-only endpoints.
func RegisterDebugRoutes(router gin.IRouter, notifier notify.Notifier, enabled bool) {
	if !enabled {
		return
	}

	router.POST("/debug/notify-test", func(c *gin.Context) {
		if notifier == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "notifier not configured"})
			return
		}
		n := notify.Stamp(notify.Notification{
			Kind:  notify.KindConnectionAck,
			Level: notify.LevelInfo,
			Text:  "notification test",
			Attrs: map[string]string{"request_id": requestIDFromContext(c)},
		}, nowFunc())
		notifier.Notify(c.Request.Context(), n)
		c.JSON(http.StatusOK, gin.H{"status": "ok", "id": n.ID})
	})
}
