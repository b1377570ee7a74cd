package ws

import (
	"context"

	"github.com/gin-gonic/gin"

	"collab-service/internal/models"
)

// ChatViewer decides whether a caller may watch a private chat.
type ChatViewer interface {
	CanViewChat(ctx context.Context, caller models.Caller, chatID int) error
}

// ChatWebSocketHandler handles private chat websocket connections.
type ChatWebSocketHandler struct {
	hub    *Hub
	viewer ChatViewer
}

// NewChatWebSocketHandler builds a handler.
func NewChatWebSocketHandler(hub *Hub, viewer ChatViewer) *ChatWebSocketHandler {
	return &ChatWebSocketHandler{hub: hub, viewer: viewer}
}

// Handle upgrades GET /ws/chats/:chat_id.
func (h *ChatWebSocketHandler) Handle(c *gin.Context) {
	chatID, ok := paramID(c, "chat_id")
	if !ok {
		return
	}
	caller, ok := requireCaller(c)
	if !ok {
		return
	}
	if err := h.viewer.CanViewChat(c.Request.Context(), caller, chatID); err != nil {
		deny(c, err)
		return
	}
	h.hub.serve(c, "chat", caller, chatID, ChatRoom(chatID))
}
