package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"collab-service/internal/apperr"
	"collab-service/internal/models"
)

const chatColumns = `id, user_low_id, user_high_id, created_at, last_activity_at`

// ChatRepository abstracts private chat persistence.
type ChatRepository interface {
	ResolveChat(ctx context.Context, userA int, userB int) (models.PrivateChat, error)
	GetChat(ctx context.Context, chatID int) (models.PrivateChat, error)
	ListChatsForUser(ctx context.Context, userID int) ([]models.PrivateChat, error)
}

// ChatRepo is a sqlx implementation of ChatRepository.
type ChatRepo struct {
	db *sqlx.DB
}

// NewChatRepo constructs a ChatRepo.
func NewChatRepo(db *sqlx.DB) *ChatRepo {
	return &ChatRepo{db: db}
}

// ResolveChat returns the chat between two users, creating it on first use. The pair is
// stored normalized so the unique constraint collapses concurrent creations into one row.
func (r *ChatRepo) ResolveChat(ctx context.Context, userA int, userB int) (models.PrivateChat, error) {
	if userA == userB {
		return models.PrivateChat{}, apperr.ErrSelfChat
	}
	low, high := userA, userB
	if low > high {
		low, high = high, low
	}

	var chat models.PrivateChat
	err := r.db.GetContext(ctx, &chat, `INSERT INTO private_chats (user_low_id, user_high_id) VALUES ($1, $2)
        ON CONFLICT (user_low_id, user_high_id) DO NOTHING
        RETURNING `+chatColumns, low, high)
	if errors.Is(err, sql.ErrNoRows) {
		// lost the race or the chat already existed
		err = r.db.GetContext(ctx, &chat, `SELECT `+chatColumns+` FROM private_chats WHERE user_low_id = $1 AND user_high_id = $2`, low, high)
	}
	if err != nil {
		return models.PrivateChat{}, err
	}
	return chat, nil
}

// GetChat fetches a chat by id.
func (r *ChatRepo) GetChat(ctx context.Context, chatID int) (models.PrivateChat, error) {
	var chat models.PrivateChat
	err := r.db.GetContext(ctx, &chat, `SELECT `+chatColumns+` FROM private_chats WHERE id = $1`, chatID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.PrivateChat{}, apperr.ErrChatNotFound
	}
	return chat, err
}

// ListChatsForUser returns the user's chats, most recently active first.
func (r *ChatRepo) ListChatsForUser(ctx context.Context, userID int) ([]models.PrivateChat, error) {
	chats := []models.PrivateChat{}
	err := r.db.SelectContext(ctx, &chats, `SELECT `+chatColumns+` FROM private_chats
        WHERE user_low_id = $1 OR user_high_id = $1
        ORDER BY last_activity_at DESC, id DESC`, userID)
	return chats, err
}
