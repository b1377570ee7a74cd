package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"collab-service/internal/apperr"
	"collab-service/internal/models"
	"collab-service/internal/services"
	"collab-service/internal/telemetry"
)

// Notifications lists, acknowledges and announces notifications.
type Notifications interface {
	ListForUser(ctx context.Context, caller models.Caller, limit int) ([]models.Notification, error)
	MarkRead(ctx context.Context, caller models.Caller, id int) error
	Announce(ctx context.Context, caller models.Caller, a services.Announcement) ([]models.Notification, error)
}

type NotificationHandler struct {
	notifications Notifications
	audit         *telemetry.AuditEmitter
}

func NewNotificationHandler(notifications Notifications, audit *telemetry.AuditEmitter) *NotificationHandler {
	return &NotificationHandler{notifications: notifications, audit: audit}
}

// Register mounts the notification routes.
func (h *NotificationHandler) Register(r gin.IRoutes) {
	r.GET("/notifications", h.List)
	r.POST("/notifications", h.Announce)
	r.POST("/notifications/:id/read", h.MarkRead)
}

// List handles GET /notifications?limit=N.
func (h *NotificationHandler) List(c *gin.Context) {
	caller, ok := callerOrAbort(c)
	if !ok {
		return
	}
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			respondError(c, apperr.Invalid("invalid limit"))
			return
		}
		limit = n
	}

	list, err := h.notifications.ListForUser(c.Request.Context(), caller, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"notifications": nonNil(list)})
}

// MarkRead handles POST /notifications/:id/read.
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	caller, ok := callerOrAbort(c)
	if !ok {
		return
	}
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.notifications.MarkRead(c.Request.Context(), caller, id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Announce handles POST /notifications for staff. Without recipient_id the
// announcement reaches everyone.
func (h *NotificationHandler) Announce(c *gin.Context) {
	caller, ok := callerOrAbort(c)
	if !ok {
		return
	}
	var req struct {
		Title       string `json:"title" binding:"required"`
		Body        string `json:"body"`
		ActionURL   string `json:"action_url"`
		RecipientID *int   `json:"recipient_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperr.Invalid("invalid request payload"))
		return
	}

	created, err := h.notifications.Announce(c.Request.Context(), caller, services.Announcement{
		Title:       req.Title,
		Body:        req.Body,
		ActionURL:   req.ActionURL,
		RecipientID: req.RecipientID,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	payload := telemetry.AuditPayload{Text: "announcement sent", Action: "notification.announce"}
	if req.RecipientID != nil {
		payload.TargetID = *req.RecipientID
	}
	emitAudit(c, h.audit, payload)
	c.JSON(http.StatusCreated, gin.H{"notifications": created})
}
