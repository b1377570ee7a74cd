package ws

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel/trace"

	"collab-service/internal/apperr"
	"collab-service/internal/middleware"
	"collab-service/internal/models"
	"collab-service/internal/observability"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// serve upgrades the request and keeps the connection in rooms until the client goes away.
// Clients only listen; anything they send is discarded.
func (h *Hub) serve(c *gin.Context, kind string, caller models.Caller, resourceID int, rooms ...string) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	ctx := c.Request.Context()
	info := ConnInfo{
		ConnID:      uuid.NewString(),
		Kind:        kind,
		UserID:      caller.UserID,
		ResourceID:  resourceID,
		Client:      observability.ClientFromRequest(c.Request),
		ConnectedAt: time.Now(),
	}
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		info.TraceID = sc.TraceID().String()
	}

	for _, room := range rooms {
		h.Join(room, conn, info)
	}
	observability.IncWSActive(kind)
	h.publishLifecycle(context.WithoutCancel(ctx), "ws_connect", info, "")

	go func() {
		reason := "client_closed"
		defer func() {
			for _, room := range rooms {
				h.Leave(room, conn)
			}
			conn.Close()
			observability.DecWSActive(kind)
			h.publishLifecycle(context.Background(), "ws_disconnect", info, reason)
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					reason = err.Error()
					h.publishWSError(info, err)
				}
				return
			}
		}
	}()
}

func paramID(c *gin.Context, name string) (int, bool) {
	id, err := strconv.Atoi(c.Param(name))
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return 0, false
	}
	return id, true
}

func requireCaller(c *gin.Context) (models.Caller, bool) {
	caller, ok := middleware.CallerFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing credentials"})
	}
	return caller, ok
}

// deny answers a failed access check before the upgrade.
func deny(c *gin.Context, err error) {
	status := http.StatusServiceUnavailable
	switch apperr.KindOf(err) {
	case apperr.KindForbidden:
		status = http.StatusForbidden
	case apperr.KindNotFound:
		status = http.StatusNotFound
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
