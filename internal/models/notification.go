package models

import (
	"database/sql"
	"time"
)

// Notification is a message to a single recipient, or to everyone when RecipientID is null.
type Notification struct {
	ID          int           `db:"id" json:"id"`
	RecipientID sql.NullInt64 `db:"recipient_id" json:"-"`
	SenderID    int           `db:"sender_id" json:"sender_id"`
	Title       string        `db:"title" json:"title"`
	Body        string        `db:"body" json:"body"`
	ActionURL   string        `db:"action_url" json:"action_url,omitempty"`
	SentAt      time.Time     `db:"sent_at" json:"sent_at"`
	IsRead      bool          `db:"is_read" json:"is_read"`
}

// IsBroadcast reports whether the notification has no single recipient.
func (n Notification) IsBroadcast() bool { return !n.RecipientID.Valid }

// NotificationDraft is the content of a notification before it is addressed.
type NotificationDraft struct {
	SenderID  int
	Title     string
	Body      string
	ActionURL string
}

// NotificationEvent is pushed to a recipient's notification socket.
type NotificationEvent struct {
	Type         string       `json:"type"`
	Notification Notification `json:"notification"`
}
