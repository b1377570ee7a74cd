package ws

import (
	"context"

	"github.com/gin-gonic/gin"

	"collab-service/internal/models"
)

// GroupViewer decides whether a caller may watch a group.
type GroupViewer interface {
	CanViewGroup(ctx context.Context, caller models.Caller, groupID int) error
}

// GroupWebSocketHandler handles group websocket connections.
type GroupWebSocketHandler struct {
	hub    *Hub
	viewer GroupViewer
}

// NewGroupWebSocketHandler constructs a GroupWebSocketHandler.
func NewGroupWebSocketHandler(hub *Hub, viewer GroupViewer) *GroupWebSocketHandler {
	return &GroupWebSocketHandler{hub: hub, viewer: viewer}
}

// Handle upgrades GET /ws/groups/:group_id for members of the group and admins.
func (h *GroupWebSocketHandler) Handle(c *gin.Context) {
	groupID, ok := paramID(c, "group_id")
	if !ok {
		return
	}
	caller, ok := requireCaller(c)
	if !ok {
		return
	}
	if err := h.viewer.CanViewGroup(c.Request.Context(), caller, groupID); err != nil {
		deny(c, err)
		return
	}
	h.hub.serve(c, "group", caller, groupID, GroupRoom(groupID))
}
