package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"collab-service/internal/apperr"
	"collab-service/internal/blob"
	"collab-service/internal/models"
	"collab-service/internal/telemetry"
)

// GroupMessages reads groups and writes their messages.
type GroupMessages interface {
	GetGroup(ctx context.Context, caller models.Caller, groupID int) (models.GroupDetail, error)
	PostGroupMessage(ctx context.Context, caller models.Caller, groupID int, body string, upload *blob.Upload) (models.GroupMessage, error)
	EditGroupMessage(ctx context.Context, caller models.Caller, groupID, messageID int, body string) (models.GroupMessage, error)
	DeleteGroupMessage(ctx context.Context, caller models.Caller, groupID, messageID int) error
}

// GroupLifecycle changes groups and their membership.
type GroupLifecycle interface {
	CreateGroup(ctx context.Context, caller models.Caller, name, description string, memberIDs []int) (models.Group, error)
	ListMine(ctx context.Context, caller models.Caller) ([]models.Group, error)
	ListAll(ctx context.Context, caller models.Caller) ([]models.Group, error)
	AddMember(ctx context.Context, caller models.Caller, groupID, targetID int) (bool, error)
	AddMemberByName(ctx context.Context, caller models.Caller, groupID int, username string) (models.User, bool, error)
	RemoveMember(ctx context.Context, caller models.Caller, groupID, targetID int) error
	LeaveGroup(ctx context.Context, caller models.Caller, groupID int) (models.LeaveOutcome, error)
	DeleteGroup(ctx context.Context, caller models.Caller, groupID int) error
	UpdatePhoto(ctx context.Context, caller models.Caller, groupID int, upload *blob.Upload) (models.Group, error)
	SetViewMode(ctx context.Context, caller models.Caller, groupID int, mode string) error
}

// GroupHandler manages group-related endpoints.
type GroupHandler struct {
	messages  GroupMessages
	lifecycle GroupLifecycle
	audit     *telemetry.AuditEmitter
	maxUpload int64
}

// NewGroupHandler constructs a GroupHandler. audit may be nil.
func NewGroupHandler(messages GroupMessages, lifecycle GroupLifecycle, audit *telemetry.AuditEmitter, maxUpload int64) *GroupHandler {
	return &GroupHandler{messages: messages, lifecycle: lifecycle, audit: audit, maxUpload: maxUpload}
}

// Register mounts the group routes.
func (h *GroupHandler) Register(r gin.IRoutes) {
	r.POST("/groups", h.CreateGroup)
	r.GET("/groups", h.ListGroups)
	r.GET("/groups/all", h.ListAllGroups)
	r.GET("/groups/:group_id", h.GetGroup)
	r.DELETE("/groups/:group_id", h.DeleteGroup)
	r.POST("/groups/:group_id/messages", h.PostGroupMessage)
	r.PATCH("/groups/:group_id/messages/:message_id", h.EditGroupMessage)
	r.DELETE("/groups/:group_id/messages/:message_id", h.DeleteGroupMessage)
	r.POST("/groups/:group_id/members", h.AddMember)
	r.DELETE("/groups/:group_id/members/:user_id", h.RemoveMember)
	r.POST("/groups/:group_id/leave", h.LeaveGroup)
	r.PUT("/groups/:group_id/photo", h.UpdatePhoto)
	r.PUT("/groups/:group_id/view-mode", h.SetViewMode)
}

// CreateGroup handles POST /groups.
func (h *GroupHandler) CreateGroup(c *gin.Context) {
	caller, ok := callerOrAbort(c)
	if !ok {
		return
	}
	var req struct {
		Name        string `json:"name" binding:"required"`
		Description string `json:"description"`
		MemberIDs   []int  `json:"member_ids"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperr.Invalid("invalid request payload"))
		return
	}

	group, err := h.lifecycle.CreateGroup(c.Request.Context(), caller, req.Name, req.Description, req.MemberIDs)
	if err != nil {
		respondError(c, err)
		return
	}
	emitAudit(c, h.audit, telemetry.AuditPayload{Text: "group created", Action: "group.create", GroupID: group.ID})
	c.JSON(http.StatusCreated, group)
}

// ListGroups returns groups the caller belongs to.
func (h *GroupHandler) ListGroups(c *gin.Context) {
	caller, ok := callerOrAbort(c)
	if !ok {
		return
	}
	groups, err := h.lifecycle.ListMine(c.Request.Context(), caller)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"groups": nonNil(groups)})
}

// ListAllGroups returns every group to admins.
func (h *GroupHandler) ListAllGroups(c *gin.Context) {
	caller, ok := callerOrAbort(c)
	if !ok {
		return
	}
	groups, err := h.lifecycle.ListAll(c.Request.Context(), caller)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"groups": nonNil(groups)})
}

// GetGroup returns the group with members and messages.
func (h *GroupHandler) GetGroup(c *gin.Context) {
	caller, ok := callerOrAbort(c)
	if !ok {
		return
	}
	groupID, ok := paramID(c, "group_id")
	if !ok {
		return
	}
	detail, err := h.messages.GetGroup(c.Request.Context(), caller, groupID)
	if err != nil {
		respondError(c, err)
		return
	}
	detail.Members = nonNil(detail.Members)
	detail.Messages = nonNil(detail.Messages)
	c.JSON(http.StatusOK, detail)
}

// PostGroupMessage accepts JSON {"body"} or a multipart form with body and file.
func (h *GroupHandler) PostGroupMessage(c *gin.Context) {
	caller, ok := callerOrAbort(c)
	if !ok {
		return
	}
	groupID, ok := paramID(c, "group_id")
	if !ok {
		return
	}
	in, upload, ok := bindMessage(c, h.maxUpload)
	if !ok {
		return
	}

	msg, err := h.messages.PostGroupMessage(c.Request.Context(), caller, groupID, in.Body, upload)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, msg)
}

// EditGroupMessage handles PATCH /groups/:group_id/messages/:message_id.
func (h *GroupHandler) EditGroupMessage(c *gin.Context) {
	caller, ok := callerOrAbort(c)
	if !ok {
		return
	}
	groupID, messageID, ok := parseGroupIDs(c)
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

	msg, err := h.messages.EditGroupMessage(c.Request.Context(), caller, groupID, messageID, req.Body)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, msg)
}

// DeleteGroupMessage soft-deletes a message for everyone.
func (h *GroupHandler) DeleteGroupMessage(c *gin.Context) {
	caller, ok := callerOrAbort(c)
	if !ok {
		return
	}
	groupID, messageID, ok := parseGroupIDs(c)
	if !ok {
		return
	}
	if err := h.messages.DeleteGroupMessage(c.Request.Context(), caller, groupID, messageID); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// AddMember accepts {"user_id"} or {"username"}.
func (h *GroupHandler) AddMember(c *gin.Context) {
	caller, ok := callerOrAbort(c)
	if !ok {
		return
	}
	groupID, ok := paramID(c, "group_id")
	if !ok {
		return
	}
	var req struct {
		UserID   int    `json:"user_id"`
		Username string `json:"username"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || (req.UserID == 0 && req.Username == "") {
		respondError(c, apperr.Invalid("user_id or username is required"))
		return
	}

	var (
		created bool
		err     error
	)
	targetID := req.UserID
	if targetID != 0 {
		created, err = h.lifecycle.AddMember(c.Request.Context(), caller, groupID, targetID)
	} else {
		var user models.User
		user, created, err = h.lifecycle.AddMemberByName(c.Request.Context(), caller, groupID, req.Username)
		targetID = user.ID
	}
	if err != nil {
		respondError(c, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
		emitAudit(c, h.audit, telemetry.AuditPayload{Text: "member added", Action: "member.add", GroupID: groupID, TargetID: targetID})
	}
	c.JSON(status, gin.H{"group_id": groupID, "user_id": targetID, "added": created})
}

// RemoveMember handles DELETE /groups/:group_id/members/:user_id.
func (h *GroupHandler) RemoveMember(c *gin.Context) {
	caller, ok := callerOrAbort(c)
	if !ok {
		return
	}
	groupID, ok := paramID(c, "group_id")
	if !ok {
		return
	}
	targetID, ok := paramID(c, "user_id")
	if !ok {
		return
	}
	if err := h.lifecycle.RemoveMember(c.Request.Context(), caller, groupID, targetID); err != nil {
		respondError(c, err)
		return
	}
	emitAudit(c, h.audit, telemetry.AuditPayload{Text: "member removed", Action: "member.remove", GroupID: groupID, TargetID: targetID})
	c.Status(http.StatusNoContent)
}

// LeaveGroup handles POST /groups/:group_id/leave.
func (h *GroupHandler) LeaveGroup(c *gin.Context) {
	caller, ok := callerOrAbort(c)
	if !ok {
		return
	}
	groupID, ok := paramID(c, "group_id")
	if !ok {
		return
	}
	outcome, err := h.lifecycle.LeaveGroup(c.Request.Context(), caller, groupID)
	if err != nil {
		respondError(c, err)
		return
	}

	emitAudit(c, h.audit, telemetry.AuditPayload{Text: "member left", Action: "member.leave", GroupID: groupID})
	resp := gin.H{"group_deleted": outcome.GroupDeleted}
	if outcome.NewOwnerID != 0 {
		resp["new_owner_id"] = outcome.NewOwnerID
		emitAudit(c, h.audit, telemetry.AuditPayload{Text: "ownership transferred", Action: "group.owner", GroupID: groupID, TargetID: outcome.NewOwnerID})
	}
	c.JSON(http.StatusOK, resp)
}

// DeleteGroup handles DELETE /groups/:group_id.
func (h *GroupHandler) DeleteGroup(c *gin.Context) {
	caller, ok := callerOrAbort(c)
	if !ok {
		return
	}
	groupID, ok := paramID(c, "group_id")
	if !ok {
		return
	}
	if err := h.lifecycle.DeleteGroup(c.Request.Context(), caller, groupID); err != nil {
		respondError(c, err)
		return
	}
	emitAudit(c, h.audit, telemetry.AuditPayload{Level: telemetry.AuditWarn, Text: "group deleted", Action: "group.delete", GroupID: groupID})
	c.Status(http.StatusNoContent)
}

// UpdatePhoto accepts a multipart form with a "photo" image.
func (h *GroupHandler) UpdatePhoto(c *gin.Context) {
	caller, ok := callerOrAbort(c)
	if !ok {
		return
	}
	groupID, ok := paramID(c, "group_id")
	if !ok {
		return
	}
	if !isMultipart(c) {
		respondError(c, apperr.Invalid("photo must be sent as multipart/form-data"))
		return
	}
	limitBody(c, h.maxUpload)
	upload, err := readUpload(c, "photo", h.maxUpload)
	if err != nil {
		respondError(c, err)
		return
	}

	group, err := h.lifecycle.UpdatePhoto(c.Request.Context(), caller, groupID, upload)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, group)
}

// SetViewMode handles PUT /groups/:group_id/view-mode.
func (h *GroupHandler) SetViewMode(c *gin.Context) {
	caller, ok := callerOrAbort(c)
	if !ok {
		return
	}
	groupID, ok := paramID(c, "group_id")
	if !ok {
		return
	}
	var req struct {
		ViewMode string `json:"view_mode" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperr.Invalid("view_mode is required"))
		return
	}
	if err := h.lifecycle.SetViewMode(c.Request.Context(), caller, groupID, req.ViewMode); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func parseGroupIDs(c *gin.Context) (int, int, bool) {
	groupID, ok := paramID(c, "group_id")
	if !ok {
		return 0, 0, false
	}
	msgID, ok := paramID(c, "message_id")
	if !ok {
		return 0, 0, false
	}
	return groupID, msgID, true
}

// nonNil keeps empty lists encoding as [] rather than null.
func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
