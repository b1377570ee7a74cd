package models

import (
	"database/sql"
	"time"
)

// PrivateChat is a chat between exactly two users. UserAID < UserBID always holds.
type PrivateChat struct {
	ID             int       `db:"id" json:"id"`
	UserAID        int       `db:"user_low_id" json:"user_a_id"`
	UserBID        int       `db:"user_high_id" json:"user_b_id"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	LastActivityAt time.Time `db:"last_activity_at" json:"last_activity_at"`
}

// HasParticipant reports whether userID is one side of the chat.
func (c PrivateChat) HasParticipant(userID int) bool {
	return c.UserAID == userID || c.UserBID == userID
}

// Other returns the participant that is not userID.
func (c PrivateChat) Other(userID int) int {
	if c.UserAID == userID {
		return c.UserBID
	}
	return c.UserAID
}

// PrivateMessage is a message sent in a private chat.
type PrivateMessage struct {
	ID             int            `db:"id" json:"id"`
	ChatID         int            `db:"chat_id" json:"chat_id"`
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
func (m PrivateMessage) Attachment() *Attachment {
	return attachmentFrom(m.AttachmentURL, m.AttachmentName, m.AttachmentType, m.AttachmentSize)
}

// ChatDetail is a chat together with its messages.
type ChatDetail struct {
	Chat     PrivateChat      `json:"chat"`
	Messages []PrivateMessage `json:"messages"`
}

// ChatEvent is broadcast through websockets.
type ChatEvent struct {
	Type      string          `json:"type"`
	ChatID    int             `json:"chat_id"`
	Message   *PrivateMessage `json:"message,omitempty"`
	MessageID int             `json:"message_id,omitempty"`
}
