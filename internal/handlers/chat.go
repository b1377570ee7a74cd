package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"collab-service/internal/apperr"
	"collab-service/internal/blob"
	"collab-service/internal/models"
)

// Chats resolves private chats and writes their messages.
type Chats interface {
	Resolve(ctx context.Context, caller models.Caller, otherUserID int) (models.PrivateChat, error)
	SendToUser(ctx context.Context, caller models.Caller, otherUserID int, body string, upload *blob.Upload) (models.PrivateChat, models.PrivateMessage, error)
	ListChats(ctx context.Context, caller models.Caller) ([]models.PrivateChat, error)
	GetChat(ctx context.Context, caller models.Caller, chatID int) (models.ChatDetail, error)
	PostPrivateMessage(ctx context.Context, caller models.Caller, chatID int, body string, upload *blob.Upload) (models.PrivateMessage, error)
	EditPrivateMessage(ctx context.Context, caller models.Caller, chatID, messageID int, body string) (models.PrivateMessage, error)
	DeletePrivateMessage(ctx context.Context, caller models.Caller, chatID, messageID int) error
}

// ChatHandler manages private chat endpoints.
type ChatHandler struct {
	chats     Chats
	maxUpload int64
}

// NewChatHandler builds a ChatHandler.
func NewChatHandler(chats Chats, maxUpload int64) *ChatHandler {
	return &ChatHandler{chats: chats, maxUpload: maxUpload}
}

// Register mounts the chat routes.
func (h *ChatHandler) Register(r gin.IRoutes) {
	r.GET("/chats", h.ListChats)
	r.POST("/chats", h.OpenChat)
	r.GET("/chats/:chat_id", h.GetChat)
	r.POST("/chats/:chat_id/messages", h.PostMessage)
	r.PATCH("/chats/:chat_id/messages/:message_id", h.EditMessage)
	r.DELETE("/chats/:chat_id/messages/:message_id", h.DeleteMessage)
}

// ListChats returns the chats of the authenticated user.
func (h *ChatHandler) ListChats(c *gin.Context) {
	caller, ok := callerOrAbort(c)
	if !ok {
		return
	}
	chats, err := h.chats.ListChats(c.Request.Context(), caller)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"chats": nonNil(chats)})
}

// OpenChat returns the chat with user_id, creating it on first contact. A body or
// file in the same request is posted as the first message.
func (h *ChatHandler) OpenChat(c *gin.Context) {
	caller, ok := callerOrAbort(c)
	if !ok {
		return
	}
	in, upload, ok := bindMessage(c, h.maxUpload)
	if !ok {
		return
	}
	if in.UserID <= 0 {
		respondError(c, apperr.Invalid("user_id is required"))
		return
	}

	if in.Body == "" && upload == nil {
		chat, err := h.chats.Resolve(c.Request.Context(), caller, in.UserID)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"chat": chat})
		return
	}

	chat, msg, err := h.chats.SendToUser(c.Request.Context(), caller, in.UserID, in.Body, upload)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"chat": chat, "message": msg})
}

// GetChat returns a chat with its messages.
func (h *ChatHandler) GetChat(c *gin.Context) {
	caller, ok := callerOrAbort(c)
	if !ok {
		return
	}
	chatID, ok := paramID(c, "chat_id")
	if !ok {
		return
	}
	detail, err := h.chats.GetChat(c.Request.Context(), caller, chatID)
	if err != nil {
		respondError(c, err)
		return
	}
	detail.Messages = nonNil(detail.Messages)
	c.JSON(http.StatusOK, detail)
}

// PostMessage persists a private message.
func (h *ChatHandler) PostMessage(c *gin.Context) {
	caller, ok := callerOrAbort(c)
	if !ok {
		return
	}
	chatID, ok := paramID(c, "chat_id")
	if !ok {
		return
	}
	in, upload, ok := bindMessage(c, h.maxUpload)
	if !ok {
		return
	}

	msg, err := h.chats.PostPrivateMessage(c.Request.Context(), caller, chatID, in.Body, upload)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, msg)
}

// EditMessage handles PATCH /chats/:chat_id/messages/:message_id.
func (h *ChatHandler) EditMessage(c *gin.Context) {
	caller, ok := callerOrAbort(c)
	if !ok {
		return
	}
	chatID, messageID, ok := parseChatIDs(c)
	if !ok {
		return
	}
	var req struct {
		Body string `json:"body"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperr.Invalid("invalid request payload"))
		return
	}

	msg, err := h.chats.EditPrivateMessage(c.Request.Context(), caller, chatID, messageID, req.Body)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, msg)
}

// DeleteMessage soft-deletes the caller's own message.
func (h *ChatHandler) DeleteMessage(c *gin.Context) {
	caller, ok := callerOrAbort(c)
	if !ok {
		return
	}
	chatID, messageID, ok := parseChatIDs(c)
	if !ok {
		return
	}
	if err := h.chats.DeletePrivateMessage(c.Request.Context(), caller, chatID, messageID); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func parseChatIDs(c *gin.Context) (int, int, bool) {
	chatID, ok := paramID(c, "chat_id")
	if !ok {
		return 0, 0, false
	}
	messageID, ok := paramID(c, "message_id")
	if !ok {
		return 0, 0, false
	}
	return chatID, messageID, true
}
