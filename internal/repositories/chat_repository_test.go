package repositories

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"collab-service/internal/apperr"
)

var chatCols = []string{"id", "user_low_id", "user_high_id", "created_at", "last_activity_at"}

func TestResolveChatNormalizesPair(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewChatRepo(db)
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO private_chats (user_low_id, user_high_id) VALUES ($1, $2)")).
		WithArgs(3, 8).
		WillReturnRows(sqlmock.NewRows(chatCols).AddRow(1, 3, 8, now, now))

	chat, err := repo.ResolveChat(context.Background(), 8, 3)
	require.NoError(t, err)
	assert.Equal(t, 1, chat.ID)
	assert.Equal(t, 3, chat.UserAID)
	assert.Equal(t, 8, chat.UserBID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestResolveChatRereadsOnConflict(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewChatRepo(db)
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO private_chats")).WithArgs(3, 8).
		WillReturnRows(sqlmock.NewRows(chatCols))
	mock.ExpectQuery(regexp.QuoteMeta("FROM private_chats WHERE user_low_id = $1 AND user_high_id = $2")).
		WithArgs(3, 8).
		WillReturnRows(sqlmock.NewRows(chatCols).AddRow(42, 3, 8, now, now))

	chat, err := repo.ResolveChat(context.Background(), 3, 8)
	require.NoError(t, err)
	assert.Equal(t, 42, chat.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestResolveChatRejectsSelf(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewChatRepo(db)

	_, err := repo.ResolveChat(context.Background(), 5, 5)
	require.ErrorIs(t, err, apperr.ErrSelfChat)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetChatNotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewChatRepo(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM private_chats WHERE id = $1")).WithArgs(9).
		WillReturnRows(sqlmock.NewRows(chatCols))

	_, err := repo.GetChat(context.Background(), 9)
	require.ErrorIs(t, err, apperr.ErrChatNotFound)
}
