package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"breakbot/internal/models"
)

// CreateOrUpdateUser inserts the user on first contact or refreshes
// the display name on every later one.
func (db *DB) CreateOrUpdateUser(ctx context.Context, u *models.User) error {
	if u == nil {
		return fmt.Errorf("user is nil")
	}
	_, err := upsertUser(ctx, db.DB, u)
	return err
}

// GetUserByTelegramID returns the user row for a Telegram identity.
func (db *DB) GetUserByTelegramID(ctx context.Context, telegramID int64) (*models.User, error) {
	var u models.User
	var username, firstName sql.NullString
	err := db.QueryRowContext(ctx, `
		SELECT id, telegram_id, username, first_name, created_at, updated_at
		FROM users WHERE telegram_id = ?`, telegramID).
		Scan(&u.ID, &u.TelegramID, &username, &firstName, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	u.Username = username.String
	u.FirstName = firstName.String
	return &u, nil
}

// execer covers both *sql.DB and *sql.Tx so the upsert can run inside
// a ledger transaction.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

func upsertUser(ctx context.Context, q execer, u *models.User) (int64, error) {
	now := time.Now()
	_, err := q.ExecContext(ctx, `
		INSERT INTO users (telegram_id, username, first_name, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(telegram_id) DO UPDATE SET
			username = excluded.username,
			first_name = excluded.first_name,
			updated_at = excluded.updated_at`,
		u.TelegramID, u.Username, u.FirstName, now, now)
	if err != nil {
		return 0, fmt.Errorf("upsert user: %w", err)
	}

	var id int64
	if err := q.QueryRowContext(ctx,
		`SELECT id FROM users WHERE telegram_id = ?`, u.TelegramID).Scan(&id); err != nil {
		return 0, fmt.Errorf("resolve user id: %w", err)
	}
	u.ID = id
	return id, nil
}
