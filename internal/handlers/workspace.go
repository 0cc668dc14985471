package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"chat-client/internal/backend"
	"chat-client/internal/models"
	"chat-client/internal/notify"
)

// WorkspaceHandler passes the dashboard and kanban endpoints through to the
// backend with the session token.
type WorkspaceHandler struct {
	sessions Sessions
	backend  Backend
	side     sideChannel
}

func NewWorkspaceHandler(sessions Sessions, backend Backend, logger *slog.Logger) *WorkspaceHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &WorkspaceHandler{
		sessions: sessions,
		backend:  backend,
		side:     sideChannel{sessions: sessions, notifier: notify.Nop{}, logger: logger},
	}
}

// Dashboard handles GET /workspace/dashboard.
func (h *WorkspaceHandler) Dashboard(c *gin.Context) {
	data, err := h.backend.DashboardOverview(c.Request.Context(), tokenOf(h.sessions))
	h.respond(c, "dashboard", data, err)
}

// Boards handles GET /workspace/boards.
func (h *WorkspaceHandler) Boards(c *gin.Context) {
	data, err := h.backend.Boards(c.Request.Context(), tokenOf(h.sessions))
	h.respond(c, "boards", data, err)
}

// Board handles GET /workspace/boards/:id.
func (h *WorkspaceHandler) Board(c *gin.Context) {
	data, err := h.backend.Board(c.Request.Context(), tokenOf(h.sessions), models.ID(c.Param("id")))
	h.respond(c, "board", data, err)
}

// Users handles GET /workspace/users.
func (h *WorkspaceHandler) Users(c *gin.Context) {
	data, err := h.backend.Users(c.Request.Context(), tokenOf(h.sessions))
	h.respond(c, "users", data, err)
}

// MoveTask handles PUT /workspace/tasks/:id/move.
func (h *WorkspaceHandler) MoveTask(c *gin.Context) {
	var req struct {
		ColumnID models.ID `json:"column_id" binding:"required"`
		Position *int      `json:"position" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if *req.Position < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "position must not be negative"})
		return
	}

	move := backend.MoveTaskRequest{ColumnID: req.ColumnID, Position: *req.Position}
	if err := h.backend.MoveTask(c.Request.Context(), tokenOf(h.sessions), models.ID(c.Param("id")), move); err != nil {
		h.side.fail(c, "move_task", "", "Failed to move task", err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *WorkspaceHandler) respond(c *gin.Context, operation string, data json.RawMessage, err error) {
	if err != nil {
		h.side.fail(c, operation, "", "Failed to load "+operation, err)
		return
	}
	c.Data(http.StatusOK, "application/json; charset=utf-8", data)
}
