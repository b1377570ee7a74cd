package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"collab-service/internal/observability"
)

const writeTimeout = 5 * time.Second

// BroadcastRoom is joined by every notification socket.
const BroadcastRoom = "notifications:all"

// GroupRoom names the room of a group.
func GroupRoom(groupID int) string { return fmt.Sprintf("group:%d", groupID) }

// ChatRoom names the room of a private chat.
func ChatRoom(chatID int) string { return fmt.Sprintf("chat:%d", chatID) }

// UserRoom names the personal notification room of a user.
func UserRoom(userID int) string { return fmt.Sprintf("user:%d", userID) }

// EventPublisher ships websocket lifecycle events to the message bus.
type EventPublisher interface {
	Publish(ctx context.Context, routingKey string, event any) error
}

type client struct {
	conn  *websocket.Conn
	info  ConnInfo
	rooms int
	mu    sync.Mutex // serializes writes; gorilla connections allow one writer
}

// Hub maintains active websocket rooms. A connection may sit in several rooms.
type Hub struct {
	clients   map[*websocket.Conn]*client
	rooms     map[string]map[*client]struct{}
	publisher EventPublisher
	mu        sync.RWMutex
}

// NewHub creates an empty hub. publisher may be nil.
func NewHub(publisher EventPublisher) *Hub {
	return &Hub{
		clients:   make(map[*websocket.Conn]*client),
		rooms:     make(map[string]map[*client]struct{}),
		publisher: publisher,
	}
}

// Join registers conn in room.
func (h *Hub) Join(room string, conn *websocket.Conn, info ConnInfo) {
	h.mu.Lock()
	defer h.mu.Unlock()

	cl, ok := h.clients[conn]
	if !ok {
		cl = &client{conn: conn, info: info}
		h.clients[conn] = cl
	}
	members, ok := h.rooms[room]
	if !ok {
		members = make(map[*client]struct{})
		h.rooms[room] = members
	}
	if _, already := members[cl]; !already {
		members[cl] = struct{}{}
		cl.rooms++
	}
}

// Leave removes conn from room. The connection is forgotten once it left every room.
func (h *Hub) Leave(room string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.leaveLocked(room, conn)
}

func (h *Hub) leaveLocked(room string, conn *websocket.Conn) {
	cl, ok := h.clients[conn]
	if !ok {
		return
	}
	members, ok := h.rooms[room]
	if !ok {
		return
	}
	if _, in := members[cl]; !in {
		return
	}
	delete(members, cl)
	if len(members) == 0 {
		delete(h.rooms, room)
	}
	cl.rooms--
	if cl.rooms == 0 {
		delete(h.clients, conn)
	}
}

// EvictUser drops every connection of userID from room. A socket left in no room is
// closed with a policy-violation close frame.
func (h *Hub) EvictUser(room string, userID int) {
	h.evict(room, func(cl *client) bool { return cl.info.UserID == userID })
}

// CloseRoom drops every connection from room, closing sockets left in no room.
func (h *Hub) CloseRoom(room string) {
	h.evict(room, func(*client) bool { return true })
}

func (h *Hub) evict(room string, match func(*client) bool) {
	h.mu.Lock()
	var orphaned []*client
	for cl := range h.rooms[room] {
		if !match(cl) {
			continue
		}
		h.leaveLocked(room, cl.conn)
		if cl.rooms == 0 {
			orphaned = append(orphaned, cl)
		}
	}
	h.mu.Unlock()

	for _, cl := range orphaned {
		cl.close(websocket.ClosePolicyViolation, "access revoked")
	}
}

// RoomSize returns the number of connections in room.
func (h *Hub) RoomSize(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

// Broadcast sends event as JSON to every connection in room. Connections that fail
// to receive it are closed and dropped.
func (h *Hub) Broadcast(room string, event any) {
	h.mu.RLock()
	targets := make([]*client, 0, len(h.rooms[room]))
	for cl := range h.rooms[room] {
		targets = append(targets, cl)
	}
	h.mu.RUnlock()
	if len(targets) == 0 {
		return
	}

	payload, err := json.Marshal(event)
	if err != nil {
		slog.Error("websocket marshal failed", "room", room, "err", err)
		return
	}

	for _, cl := range targets {
		if err := cl.write(payload); err != nil {
			slog.Warn("websocket write error", "room", room, "conn_id", cl.info.ConnID, "err", err)
			cl.conn.Close()
			h.Leave(room, cl.conn)
			h.publishWSError(cl.info, err)
		}
	}
}

func (c *client) close(code int, reason string) {
	msg := websocket.FormatCloseMessage(code, reason)
	_ = c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeTimeout))
	c.conn.Close()
}

func (c *client) write(payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return err
	}
	return c.conn.WriteMessage(websocket.TextMessage, payload)
}

func (h *Hub) publishWSError(info ConnInfo, err error) {
	h.publishLifecycle(context.Background(), "ws_error", info, err.Error())
}

// publishLifecycle emits a connect, disconnect or error event for a connection.
func (h *Hub) publishLifecycle(ctx context.Context, event string, info ConnInfo, reason string) {
	observability.IncWSEvent(info.Kind, event)
	if h.publisher == nil {
		return
	}

	var durationMS int64
	if event != "ws_connect" {
		durationMS = info.uptime().Milliseconds()
	}
	envelope := observability.EventEnvelope{
		EventType: "ws_events",
		EventName: event,
		Payload: map[string]any{
			"ws": map[string]any{
				"kind":        info.Kind,
				"resource_id": info.ResourceID,
				"event":       event,
				"conn_id":     info.ConnID,
				"duration_ms": durationMS,
				"reason":      reason,
			},
			"identity": map[string]any{
				"user_id":   info.UserID,
				"device_id": info.Client.DeviceID,
				"ip":        info.Client.IP,
			},
		},
	}
	ctx = observability.WithEventHeaders(ctx, info.Client.RequestID, info.TraceID)
	if err := h.publisher.Publish(ctx, wsRoutingKey(info.Kind), envelope); err != nil {
		slog.Warn("ws event publish failed", "event", event, "err", err)
	}
}

func wsRoutingKey(kind string) string {
	switch kind {
	case "group":
		return "ws_events.groups"
	case "chat":
		return "ws_events.chats"
	default:
		return "ws_events.notifications"
	}
}
