package handlers

import (
	"github.com/gin-gonic/gin"

	"chat-client/internal/middleware"
)

// Set groups the gateway handlers.
type Set struct {
	Session   *SessionHandler
	Chat      *ChatHandler
	Events    *EventsHandler
	Workspace *WorkspaceHandler
}

// Register wires the gateway routes. Everything except login and logout
// requires an active session.
func Register(router gin.IRouter, sessions Sessions, h Set) {
	requireSession := middleware.RequireSession(sessions)

	router.POST("/session/login", h.Session.Login)
	router.POST("/session/logout", h.Session.Logout)
	router.GET("/session", requireSession, h.Session.Current)

	chat := router.Group("/chat", requireSession)
	chat.GET("/state", h.Chat.State)
	chat.GET("/messages", h.Chat.Messages)
	chat.POST("/messages", h.Chat.PostMessage)
	chat.GET("/messages/:id/reactions", h.Chat.Reactions)
	chat.POST("/messages/:id/reactions", h.Chat.React)
	chat.POST("/typing", h.Chat.Typing)
	chat.POST("/history", h.Chat.RequestHistory)
	chat.POST("/history/fetch", h.Chat.FetchHistory)
	chat.POST("/presence/fetch", h.Chat.FetchPresence)
	chat.POST("/read", h.Chat.MarkRead)
	chat.POST("/files", h.Chat.UploadFile)
	chat.GET("/events", h.Events.Stream)

	workspace := router.Group("/workspace", requireSession)
	workspace.GET("/dashboard", h.Workspace.Dashboard)
	workspace.GET("/boards", h.Workspace.Boards)
	workspace.GET("/boards/:id", h.Workspace.Board)
	workspace.PUT("/tasks/:id/move", h.Workspace.MoveTask)
	workspace.GET("/users", middleware.RequireCoordinator(sessions), h.Workspace.Users)
}
