package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"chat-client/internal/notify"
)

// NotificationSource hands out notification subscriptions.
type NotificationSource interface {
	Subscribe(buffer int) (<-chan notify.Notification, func())
}

// EventsHandler streams state snapshots and notifications as server-sent
// events.
type EventsHandler struct {
	view          StateView
	notifications NotificationSource
}

func NewEventsHandler(view StateView, notifications NotificationSource) *EventsHandler {
	return &EventsHandler{view: view, notifications: notifications}
}

// Stream handles GET /chat/events. The first event is always the current
// snapshot. Snapshots are latest-wins, so a slow client skips intermediate
// ones but always sees the newest.
func (h *EventsHandler) Stream(c *gin.Context) {
	snaps, stopSnaps := h.view.Subscribe()
	defer stopSnaps()
	notes, stopNotes := h.notifications.Subscribe(32)
	defer stopNotes()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Status(http.StatusOK)

	ctx := c.Request.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case snap, ok := <-snaps:
			if !ok {
				return
			}
			c.SSEvent("snapshot", snap)
		case n, ok := <-notes:
			if !ok {
				return
			}
			c.SSEvent("notification", n)
		}
		c.Writer.Flush()
	}
}
