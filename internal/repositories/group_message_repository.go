package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"collab-service/internal/apperr"
	"collab-service/internal/models"
)

const messageFields = `sender_id, body, attachment_url, attachment_name, attachment_type, attachment_size, sent_at, last_edited_at, is_deleted`

const groupMessageColumns = `id, group_id, ` + messageFields

// GroupMessageRepository defines interactions for group messages.
type GroupMessageRepository interface {
	CreateGroupMessage(ctx context.Context, msg models.GroupMessage) (models.GroupMessage, error)
	ListGroupMessages(ctx context.Context, groupID int) ([]models.GroupMessage, error)
	GetGroupMessage(ctx context.Context, messageID int) (models.GroupMessage, error)
	EditGroupMessage(ctx context.Context, messageID int, body string) (models.GroupMessage, error)
	SoftDeleteGroupMessage(ctx context.Context, messageID int) error
}

// GroupMessageRepo is a sqlx-backed implementation.
type GroupMessageRepo struct {
	db *sqlx.DB
}

// NewGroupMessageRepo constructs a GroupMessageRepo.
func NewGroupMessageRepo(db *sqlx.DB) *GroupMessageRepo {
	return &GroupMessageRepo{db: db}
}

// CreateGroupMessage persists a message and bumps the group's activity timestamp in one transaction.
// The group row is share-locked and the sender's membership re-checked first, so a post cannot
// land after a concurrent removal, leave or delete has committed.
func (r *GroupMessageRepo) CreateGroupMessage(ctx context.Context, msg models.GroupMessage) (models.GroupMessage, error) {
	var saved models.GroupMessage
	err := withTx(ctx, r.db, func(tx *sqlx.Tx) error {
		if err := lockSenderMembership(ctx, tx, msg.GroupID, msg.SenderID); err != nil {
			return err
		}
		err := tx.GetContext(ctx, &saved, `INSERT INTO group_messages
            (group_id, sender_id, body, attachment_url, attachment_name, attachment_type, attachment_size)
            VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING `+groupMessageColumns,
			msg.GroupID, msg.SenderID, msg.Body, msg.AttachmentURL, msg.AttachmentName, msg.AttachmentType, msg.AttachmentSize)
		if err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, `UPDATE groups SET last_activity_at = $2 WHERE id = $1`, msg.GroupID, saved.SentAt)
		return expectAffected(res, err, apperr.ErrGroupNotFound)
	})
	if err != nil {
		return models.GroupMessage{}, err
	}
	return saved, nil
}

// lockSenderMembership holds a shared lock on the group for the rest of the transaction.
// It conflicts with the exclusive lock taken by membership changes.
func lockSenderMembership(ctx context.Context, tx *sqlx.Tx, groupID, senderID int) error {
	var id int
	err := tx.GetContext(ctx, &id, `SELECT id FROM groups WHERE id = $1 FOR SHARE`, groupID)
	if errors.Is(err, sql.ErrNoRows) {
		return apperr.ErrGroupNotFound
	}
	if err != nil {
		return err
	}
	var member bool
	if err := tx.GetContext(ctx, &member,
		`SELECT EXISTS (SELECT 1 FROM group_members WHERE group_id = $1 AND user_id = $2)`, groupID, senderID); err != nil {
		return err
	}
	if !member {
		return apperr.ErrForbidden
	}
	return nil
}

// ListGroupMessages returns messages in commit order, soft-deleted ones included.
func (r *GroupMessageRepo) ListGroupMessages(ctx context.Context, groupID int) ([]models.GroupMessage, error) {
	msgs := []models.GroupMessage{}
	err := r.db.SelectContext(ctx, &msgs, `SELECT `+groupMessageColumns+` FROM group_messages WHERE group_id = $1 ORDER BY id`, groupID)
	return msgs, err
}

// GetGroupMessage fetches a single message.
func (r *GroupMessageRepo) GetGroupMessage(ctx context.Context, messageID int) (models.GroupMessage, error) {
	var msg models.GroupMessage
	err := r.db.GetContext(ctx, &msg, `SELECT `+groupMessageColumns+` FROM group_messages WHERE id = $1`, messageID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.GroupMessage{}, apperr.ErrMessageNotFound
	}
	return msg, err
}

// EditGroupMessage replaces the body of a live message.
func (r *GroupMessageRepo) EditGroupMessage(ctx context.Context, messageID int, body string) (models.GroupMessage, error) {
	var msg models.GroupMessage
	err := r.db.GetContext(ctx, &msg, `UPDATE group_messages SET body = $2, last_edited_at = NOW()
        WHERE id = $1 AND NOT is_deleted RETURNING `+groupMessageColumns, messageID, body)
	if errors.Is(err, sql.ErrNoRows) {
		if _, getErr := r.GetGroupMessage(ctx, messageID); getErr != nil {
			return models.GroupMessage{}, getErr
		}
		return models.GroupMessage{}, apperr.ErrMessageDeleted
	}
	return msg, err
}

// SoftDeleteGroupMessage clears body and attachment and flags the message deleted.
// Deleting twice is a no-op.
func (r *GroupMessageRepo) SoftDeleteGroupMessage(ctx context.Context, messageID int) error {
	res, err := r.db.ExecContext(ctx, `UPDATE group_messages SET is_deleted = TRUE, body = '',
        attachment_url = NULL, attachment_name = NULL, attachment_type = NULL, attachment_size = NULL
        WHERE id = $1`, messageID)
	return expectAffected(res, err, apperr.ErrMessageNotFound)
}
