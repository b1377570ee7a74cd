package db

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"collab-service/internal/config"
)

// Connect initializes the database connection and runs migrations.
func Connect(ctx context.Context, cfg config.DatabaseConfig) (*sqlx.DB, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("connect db: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if err := runMigrations(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return db, nil
}

// The users table belongs to the user directory; it is created here only so a fresh
// database is usable on its own.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS users (
            id SERIAL PRIMARY KEY,
            username TEXT NOT NULL UNIQUE,
            display_name TEXT NOT NULL DEFAULT '',
            role TEXT NOT NULL DEFAULT 'student',
            is_deleted BOOLEAN NOT NULL DEFAULT FALSE
        );`,
	`CREATE TABLE IF NOT EXISTS groups (
            id SERIAL PRIMARY KEY,
            name TEXT NOT NULL,
            description TEXT NOT NULL DEFAULT '',
            owner_id INT,
            is_default BOOLEAN NOT NULL DEFAULT FALSE,
            created_by_id INT NOT NULL DEFAULT 0,
            photo_url TEXT NOT NULL DEFAULT '',
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            last_activity_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        );`,
	`CREATE UNIQUE INDEX IF NOT EXISTS groups_default_name_idx ON groups (name) WHERE is_default;`,
	`CREATE TABLE IF NOT EXISTS group_members (
            group_id INT NOT NULL REFERENCES groups(id) ON DELETE CASCADE,
            user_id INT NOT NULL,
            joined_at TIMESTAMPTZ NOT NULL DEFAULT clock_timestamp(),
            view_mode TEXT NOT NULL DEFAULT 'comfortable',
            PRIMARY KEY (group_id, user_id)
        );`,
	`CREATE INDEX IF NOT EXISTS group_members_user_idx ON group_members (user_id);`,
	`CREATE TABLE IF NOT EXISTS group_messages (
            id SERIAL PRIMARY KEY,
            group_id INT NOT NULL REFERENCES groups(id) ON DELETE CASCADE,
            sender_id INT NOT NULL,
            body TEXT NOT NULL DEFAULT '',
            attachment_url TEXT,
            attachment_name TEXT,
            attachment_type TEXT,
            attachment_size BIGINT,
            sent_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            last_edited_at TIMESTAMPTZ,
            is_deleted BOOLEAN NOT NULL DEFAULT FALSE
        );`,
	`CREATE INDEX IF NOT EXISTS group_messages_group_idx ON group_messages (group_id, id);`,
	`CREATE TABLE IF NOT EXISTS private_chats (
            id SERIAL PRIMARY KEY,
            user_low_id INT NOT NULL,
            user_high_id INT NOT NULL,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            last_activity_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            UNIQUE (user_low_id, user_high_id),
            CHECK (user_low_id < user_high_id)
        );`,
	`CREATE TABLE IF NOT EXISTS private_messages (
            id SERIAL PRIMARY KEY,
            chat_id INT NOT NULL REFERENCES private_chats(id) ON DELETE CASCADE,
            sender_id INT NOT NULL,
            body TEXT NOT NULL DEFAULT '',
            attachment_url TEXT,
            attachment_name TEXT,
            attachment_type TEXT,
            attachment_size BIGINT,
            sent_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            last_edited_at TIMESTAMPTZ,
            is_deleted BOOLEAN NOT NULL DEFAULT FALSE
        );`,
	`CREATE INDEX IF NOT EXISTS private_messages_chat_idx ON private_messages (chat_id, id);`,
	`CREATE TABLE IF NOT EXISTS notifications (
            id SERIAL PRIMARY KEY,
            recipient_id INT,
            sender_id INT NOT NULL,
            title TEXT NOT NULL,
            body TEXT NOT NULL DEFAULT '',
            action_url TEXT NOT NULL DEFAULT '',
            sent_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            is_read BOOLEAN NOT NULL DEFAULT FALSE
        );`,
	`CREATE INDEX IF NOT EXISTS notifications_recipient_idx ON notifications (recipient_id, id DESC);`,
}

func runMigrations(ctx context.Context, db *sqlx.DB) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	for _, m := range migrations {
		if _, err := db.ExecContext(ctx, m); err != nil {
			return err
		}
	}
	slog.Info("database migrations applied", "count", len(migrations))
	return nil
}
