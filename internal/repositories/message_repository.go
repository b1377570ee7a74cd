package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"collab-service/internal/apperr"
	"collab-service/internal/models"
)

const privateMessageColumns = `id, chat_id, ` + messageFields

// MessageRepository defines interactions for private chat messages.
type MessageRepository interface {
	CreatePrivateMessage(ctx context.Context, msg models.PrivateMessage) (models.PrivateMessage, error)
	ListPrivateMessages(ctx context.Context, chatID int) ([]models.PrivateMessage, error)
	GetPrivateMessage(ctx context.Context, messageID int) (models.PrivateMessage, error)
	EditPrivateMessage(ctx context.Context, messageID int, body string) (models.PrivateMessage, error)
	SoftDeletePrivateMessage(ctx context.Context, messageID int) error
}

// MessageRepo is a sqlx-backed repository.
type MessageRepo struct {
	db *sqlx.DB
}

// NewMessageRepo constructs MessageRepo.
func NewMessageRepo(db *sqlx.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

// CreatePrivateMessage stores a message and bumps the chat's activity timestamp in one transaction.
func (r *MessageRepo) CreatePrivateMessage(ctx context.Context, msg models.PrivateMessage) (models.PrivateMessage, error) {
	var saved models.PrivateMessage
	err := withTx(ctx, r.db, func(tx *sqlx.Tx) error {
		err := tx.GetContext(ctx, &saved, `INSERT INTO private_messages
            (chat_id, sender_id, body, attachment_url, attachment_name, attachment_type, attachment_size)
            VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING `+privateMessageColumns,
			msg.ChatID, msg.SenderID, msg.Body, msg.AttachmentURL, msg.AttachmentName, msg.AttachmentType, msg.AttachmentSize)
		if err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, `UPDATE private_chats SET last_activity_at = $2 WHERE id = $1`, msg.ChatID, saved.SentAt)
		return expectAffected(res, err, apperr.ErrChatNotFound)
	})
	if err != nil {
		return models.PrivateMessage{}, err
	}
	return saved, nil
}

// ListPrivateMessages returns the chat's messages in commit order.
func (r *MessageRepo) ListPrivateMessages(ctx context.Context, chatID int) ([]models.PrivateMessage, error) {
	msgs := []models.PrivateMessage{}
	err := r.db.SelectContext(ctx, &msgs, `SELECT `+privateMessageColumns+` FROM private_messages WHERE chat_id = $1 ORDER BY id`, chatID)
	return msgs, err
}

// GetPrivateMessage retrieves a single message.
func (r *MessageRepo) GetPrivateMessage(ctx context.Context, messageID int) (models.PrivateMessage, error) {
	var msg models.PrivateMessage
	err := r.db.GetContext(ctx, &msg, `SELECT `+privateMessageColumns+` FROM private_messages WHERE id = $1`, messageID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.PrivateMessage{}, apperr.ErrMessageNotFound
	}
	return msg, err
}

// EditPrivateMessage replaces the body of a live message.
func (r *MessageRepo) EditPrivateMessage(ctx context.Context, messageID int, body string) (models.PrivateMessage, error) {
	var msg models.PrivateMessage
	err := r.db.GetContext(ctx, &msg, `UPDATE private_messages SET body = $2, last_edited_at = NOW()
        WHERE id = $1 AND NOT is_deleted RETURNING `+privateMessageColumns, messageID, body)
	if errors.Is(err, sql.ErrNoRows) {
		if _, getErr := r.GetPrivateMessage(ctx, messageID); getErr != nil {
			return models.PrivateMessage{}, getErr
		}
		return models.PrivateMessage{}, apperr.ErrMessageDeleted
	}
	return msg, err
}

// SoftDeletePrivateMessage marks a message deleted and clears its content.
func (r *MessageRepo) SoftDeletePrivateMessage(ctx context.Context, messageID int) error {
	res, err := r.db.ExecContext(ctx, `UPDATE private_messages SET is_deleted = TRUE, body = '',
        attachment_url = NULL, attachment_name = NULL, attachment_type = NULL, attachment_size = NULL
        WHERE id = $1`, messageID)
	return expectAffected(res, err, apperr.ErrMessageNotFound)
}
