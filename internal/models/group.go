package models

import (
	"database/sql"
	"time"
)

// Group is a chat group. OwnerID is null only while the group has no members.
type Group struct {
	ID             int           `db:"id" json:"id"`
	Name           string        `db:"name" json:"name"`
	Description    string        `db:"description" json:"description"`
	OwnerID        sql.NullInt64 `db:"owner_id" json:"-"`
	IsDefault      bool          `db:"is_default" json:"is_default"`
	CreatedByID    int           `db:"created_by_id" json:"created_by_id"`
	PhotoURL       string        `db:"photo_url" json:"photo_url,omitempty"`
	CreatedAt      time.Time     `db:"created_at" json:"created_at"`
	LastActivityAt time.Time     `db:"last_activity_at" json:"last_activity_at"`
}

// Owner returns the owner id, or 0 when the group has no owner.
func (g Group) Owner() int {
	if !g.OwnerID.Valid {
		return 0
	}
	return int(g.OwnerID.Int64)
}

// View modes a member can pick for a group.
const (
	ViewModeComfortable = "comfortable"
	ViewModeCompact     = "compact"
)

// Membership links a user to a group.
type Membership struct {
	GroupID  int       `db:"group_id" json:"group_id"`
	UserID   int       `db:"user_id" json:"user_id"`
	JoinedAt time.Time `db:"joined_at" json:"joined_at"`
	ViewMode string    `db:"view_mode" json:"view_mode"`
}

// Attachment references a stored blob. The URL is opaque to the service.
type Attachment struct {
	URL          string `json:"url"`
	OriginalName string `json:"original_name"`
	ContentType  string `json:"content_type"`
	Size         int64  `json:"size"`
}

// GroupMessage is a message posted in a group.
type GroupMessage struct {
	ID             int            `db:"id" json:"id"`
	GroupID        int            `db:"group_id" json:"group_id"`
	SenderID       int            `db:"sender_id" json:"sender_id"`
	Body           string         `db:"body" json:"body"`
	AttachmentURL  sql.NullString `db:"attachment_url" json:"-"`
	AttachmentName sql.NullString `db:"attachment_name" json:"-"`
	AttachmentType sql.NullString `db:"attachment_type" json:"-"`
	AttachmentSize sql.NullInt64  `db:"attachment_size" json:"-"`
	SentAt         time.Time      `db:"sent_at" json:"sent_at"`
	LastEditedAt   sql.NullTime   `db:"last_edited_at" json:"-"`
	IsDeleted      bool           `db:"is_deleted" json:"is_deleted"`
}

// Attachment returns the message attachment, if any.
func (m GroupMessage) Attachment() *Attachment {
	return attachmentFrom(m.AttachmentURL, m.AttachmentName, m.AttachmentType, m.AttachmentSize)
}

// GroupDetail is a group together with its members and messages.
type GroupDetail struct {
	Group    Group          `json:"group"`
	Members  []Membership   `json:"members"`
	Messages []GroupMessage `json:"messages"`
}

// Event types pushed to websocket rooms.
const (
	EventMessage        = "message"
	EventMessageEdited  = "message_edited"
	EventMessageDeleted = "message_deleted"
	EventMemberAdded    = "member_added"
	EventMemberRemoved  = "member_removed"
	EventMemberLeft     = "member_left"
	EventOwnerChanged   = "owner_changed"
	EventGroupDeleted   = "group_deleted"
	EventNotification   = "notification"
)

// GroupEvent is emitted over WebSocket connections for groups.
type GroupEvent struct {
	Type      string        `json:"type"`
	GroupID   int           `json:"group_id"`
	Message   *GroupMessage `json:"message,omitempty"`
	MessageID int           `json:"message_id,omitempty"`
	UserID    int           `json:"user_id,omitempty"`
}

// LeaveOutcome describes what happened to a group when a member left.
type LeaveOutcome struct {
	GroupDeleted bool
	NewOwnerID   int
}

func attachmentFrom(url, name, contentType sql.NullString, size sql.NullInt64) *Attachment {
	if !url.Valid || url.String == "" {
		return nil
	}
	return &Attachment{
		URL:          url.String,
		OriginalName: name.String,
		ContentType:  contentType.String,
		Size:         size.Int64,
	}
}
