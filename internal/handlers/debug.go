package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"collab-service/internal/telemetry"
)

// RoomCounter reports how many sockets sit in a realtime room.
type RoomCounter interface {
	RoomSize(room string) int
}

// RegisterDebugRoutes wires debug-only endpoints. Nothing is registered unless enabled.
func RegisterDebugRoutes(router gin.IRoutes, emitter *telemetry.AuditEmitter, rooms RoomCounter, enabled bool) {
	if !enabled {
		return
	}

	router.POST("/debug/audit", func(c *gin.Context) {
		if emitter == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "audit emitter not configured"})
			return
		}
		emitAudit(c, emitter, telemetry.AuditPayload{Text: "debug audit event", Action: "debug.audit"})
		c.JSON(http.StatusAccepted, gin.H{"request_id": requestIDFromContext(c)})
	})

	// room is e.g. group:5, chat:2, user:7 or notifications:all
	router.GET("/debug/rooms/:room", func(c *gin.Context) {
		room := c.Param("room")
		c.JSON(http.StatusOK, gin.H{"room": room, "connections": rooms.RoomSize(room)})
	})
}
