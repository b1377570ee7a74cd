package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"collab-service/internal/apperr"
	"collab-service/internal/models"
)

const notificationColumns = `id, recipient_id, sender_id, title, body, action_url, sent_at, is_read`

// NotificationRepository stores notifications.
type NotificationRepository interface {
	CreateBatch(ctx context.Context, draft models.NotificationDraft, recipientIDs []int) ([]models.Notification, error)
	CreateBroadcast(ctx context.Context, draft models.NotificationDraft) (models.Notification, error)
	ListForUser(ctx context.Context, userID int, limit int) ([]models.Notification, error)
	GetNotification(ctx context.Context, id int) (models.Notification, error)
	MarkRead(ctx context.Context, id int, recipientID int) error
}

// NotificationRepo is a sqlx implementation of NotificationRepository.
type NotificationRepo struct {
	db *sqlx.DB
}

// NewNotificationRepo constructs a NotificationRepo.
func NewNotificationRepo(db *sqlx.DB) *NotificationRepo {
	return &NotificationRepo{db: db}
}

// CreateBatch inserts one notification per recipient with a single statement, so either
// every recipient gets the row or none does.
func (r *NotificationRepo) CreateBatch(ctx context.Context, draft models.NotificationDraft, recipientIDs []int) ([]models.Notification, error) {
	created := []models.Notification{}
	if len(recipientIDs) == 0 {
		return created, nil
	}

	var sb strings.Builder
	sb.WriteString(`INSERT INTO notifications (recipient_id, sender_id, title, body, action_url) VALUES `)
	args := make([]any, 0, len(recipientIDs)+4)
	args = append(args, draft.SenderID, draft.Title, draft.Body, draft.ActionURL)
	for i, id := range recipientIDs {
		if i > 0 {
			sb.WriteString(", ")
		}
		args = append(args, id)
		fmt.Fprintf(&sb, "($%d, $1, $2, $3, $4)", len(args))
	}
	sb.WriteString(` RETURNING ` + notificationColumns)

	err := r.db.SelectContext(ctx, &created, sb.String(), args...)
	return created, err
}

// CreateBroadcast inserts a notification addressed to every user.
func (r *NotificationRepo) CreateBroadcast(ctx context.Context, draft models.NotificationDraft) (models.Notification, error) {
	var n models.Notification
	err := r.db.GetContext(ctx, &n, `INSERT INTO notifications (recipient_id, sender_id, title, body, action_url)
        VALUES (NULL, $1, $2, $3, $4) RETURNING `+notificationColumns,
		draft.SenderID, draft.Title, draft.Body, draft.ActionURL)
	return n, err
}

// ListForUser returns the user's direct notifications and all broadcasts, newest first.
func (r *NotificationRepo) ListForUser(ctx context.Context, userID int, limit int) ([]models.Notification, error) {
	list := []models.Notification{}
	err := r.db.SelectContext(ctx, &list, `SELECT `+notificationColumns+` FROM notifications
        WHERE recipient_id = $1 OR recipient_id IS NULL
        ORDER BY sent_at DESC, id DESC LIMIT $2`, userID, limit)
	return list, err
}

// GetNotification fetches one notification.
func (r *NotificationRepo) GetNotification(ctx context.Context, id int) (models.Notification, error) {
	var n models.Notification
	err := r.db.GetContext(ctx, &n, `SELECT `+notificationColumns+` FROM notifications WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Notification{}, apperr.ErrNotificationNotFound
	}
	return n, err
}

// MarkRead flags a direct notification as read. Only its recipient matches.
func (r *NotificationRepo) MarkRead(ctx context.Context, id int, recipientID int) error {
	res, err := r.db.ExecContext(ctx, `UPDATE notifications SET is_read = TRUE WHERE id = $1 AND recipient_id = $2`, id, recipientID)
	return expectAffected(res, err, apperr.ErrNotificationNotFound)
}
