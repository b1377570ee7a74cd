package ws

import "github.com/gin-gonic/gin"

// NotificationWebSocketHandler streams a user's notifications and broadcasts.
type NotificationWebSocketHandler struct {
	hub *Hub
}

func NewNotificationWebSocketHandler(hub *Hub) *NotificationWebSocketHandler {
	return &NotificationWebSocketHandler{hub: hub}
}

// Handle upgrades GET /ws/notifications.
func (h *NotificationWebSocketHandler) Handle(c *gin.Context) {
	caller, ok := requireCaller(c)
	if !ok {
		return
	}
	h.hub.serve(c, "notifications", caller, caller.UserID, UserRoom(caller.UserID), BroadcastRoom)
}
