package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"collab-service/internal/apperr"
	"collab-service/internal/models"
)

const userColumns = `id, username, display_name, role, is_deleted`

// UserRepository reads the shared user directory.
type UserRepository interface {
	GetUser(ctx context.Context, userID int) (models.User, error)
	FindUserByName(ctx context.Context, username string) (models.User, error)
	SearchUsers(ctx context.Context, query string, limit int) ([]models.User, error)
}

// UserRepo is a read-only sqlx view of the users table.
type UserRepo struct {
	db *sqlx.DB
}

// NewUserRepo constructs a UserRepo.
func NewUserRepo(db *sqlx.DB) *UserRepo {
	return &UserRepo{db: db}
}

// GetUser fetches a user by id, deleted accounts included.
func (r *UserRepo) GetUser(ctx context.Context, userID int) (models.User, error) {
	var u models.User
	err := r.db.GetContext(ctx, &u, `SELECT `+userColumns+` FROM users WHERE id = $1`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, apperr.ErrUserNotFound
	}
	return u, err
}

// FindUserByName looks a user up by username, ignoring case.
func (r *UserRepo) FindUserByName(ctx context.Context, username string) (models.User, error) {
	var u models.User
	err := r.db.GetContext(ctx, &u, `SELECT `+userColumns+` FROM users WHERE LOWER(username) = LOWER($1)`, username)
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, apperr.ErrUserNotFound
	}
	return u, err
}

// SearchUsers matches active users by username or display name.
func (r *UserRepo) SearchUsers(ctx context.Context, query string, limit int) ([]models.User, error) {
	users := []models.User{}
	err := r.db.SelectContext(ctx, &users, `SELECT `+userColumns+` FROM users
        WHERE NOT is_deleted AND (username ILIKE $1 OR display_name ILIKE $1)
        ORDER BY username LIMIT $2`, containsPattern(query), limit)
	return users, err
}
