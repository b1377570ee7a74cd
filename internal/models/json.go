package models

import (
	"database/sql"
	"encoding/json"
	"time"
)

func (g Group) MarshalJSON() ([]byte, error) {
	type alias Group
	return json.Marshal(struct {
		alias
		OwnerID *int `json:"owner_id"`
	}{alias(g), nullInt(g.OwnerID)})
}

func (m GroupMessage) MarshalJSON() ([]byte, error) {
	type alias GroupMessage
	return json.Marshal(struct {
		alias
		Attachment   *Attachment `json:"attachment,omitempty"`
		LastEditedAt *time.Time  `json:"last_edited_at,omitempty"`
	}{alias(m), m.Attachment(), nullTime(m.LastEditedAt)})
}

func (m PrivateMessage) MarshalJSON() ([]byte, error) {
	type alias PrivateMessage
	return json.Marshal(struct {
		alias
		Attachment   *Attachment `json:"attachment,omitempty"`
		LastEditedAt *time.Time  `json:"last_edited_at,omitempty"`
	}{alias(m), m.Attachment(), nullTime(m.LastEditedAt)})
}

func (n Notification) MarshalJSON() ([]byte, error) {
	type alias Notification
	return json.Marshal(struct {
		alias
		RecipientID *int `json:"recipient_id"`
		Broadcast   bool `json:"broadcast"`
	}{alias(n), nullInt(n.RecipientID), n.IsBroadcast()})
}

func nullInt(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	i := int(v.Int64)
	return &i
}

func nullTime(v sql.NullTime) *time.Time {
	if !v.Valid {
		return nil
	}
	return &v.Time
}
