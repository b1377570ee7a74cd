package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"collab-service/internal/middleware"
	"collab-service/internal/observability"
	"collab-service/internal/telemetry"
)

const requestIDContextKey = "request_id"

// requestIDFromContext returns the request id, minting and caching one when the client sent none.
func requestIDFromContext(c *gin.Context) string {
	if id := c.GetString(requestIDContextKey); id != "" {
		return id
	}

	requestID := c.GetHeader(observability.RequestIDHeader)
	if requestID == "" {
		requestID = uuid.NewString()
	}
	c.Set(requestIDContextKey, requestID)
	return requestID
}

func auditActor(c *gin.Context) telemetry.Actor {
	actor := telemetry.Actor{RequestID: requestIDFromContext(c)}
	if caller, ok := middleware.CallerFrom(c); ok {
		actor.UserID = caller.UserID
	}
	return actor
}

// emitAudit records a membership or group change. A nil emitter is a no-op.
func emitAudit(c *gin.Context, emitter *telemetry.AuditEmitter, payload telemetry.AuditPayload) {
	emitter.Emit(c.Request.Context(), auditActor(c), payload)
}
