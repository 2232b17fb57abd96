package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"breakbot/internal/models"
)

// Reserve books one seat of the slot for the user. The user row is
// created or refreshed in the same transaction, so a first-contact
// reserve works. Check order: slot exists, slot has a free seat, user
// does not already hold the slot. Returns the confirmation with the
// other current holders' names, or one of ErrSlotNotFound, ErrSlotFull,
// ErrAlreadyBooked.
func (db *DB) Reserve(ctx context.Context, user *models.User, slotID int64) (*models.Confirmation, error) {
	if user == nil {
		return nil, fmt.Errorf("user is nil")
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin reserve tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	slot, err := scanSlot(tx.QueryRowContext(ctx, `
		SELECT id, day, start_time, end_time, capacity, created_at
		FROM slots WHERE id = ?`, slotID))
	if err == sql.ErrNoRows {
		return nil, ErrSlotNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load slot: %w", err)
	}

	userID, err := upsertUser(ctx, tx, user)
	if err != nil {
		return nil, err
	}

	var occupied int
	if err := tx.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM bookings
		WHERE slot_id = ? AND status = ?`, slotID, models.StatusActive).Scan(&occupied); err != nil {
		return nil, fmt.Errorf("count holders: %w", err)
	}
	if occupied >= slot.Capacity {
		return nil, ErrSlotFull
	}

	var mine int
	if err := tx.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM bookings
		WHERE slot_id = ? AND user_id = ? AND status = ?`,
		slotID, userID, models.StatusActive).Scan(&mine); err != nil {
		return nil, fmt.Errorf("check duplicate: %w", err)
	}
	if mine > 0 {
		return nil, ErrAlreadyBooked
	}

	now := time.Now()
	res, err := tx.ExecContext(ctx, `
		INSERT INTO bookings (user_id, slot_id, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)`,
		userID, slotID, models.StatusActive, now, now)
	if err != nil {
		return nil, fmt.Errorf("insert booking: %w", err)
	}
	bookingID, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}

	others, err := slotHolders(ctx, tx, slotID, userID)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit reserve: %w", err)
	}

	return &models.Confirmation{BookingID: bookingID, Slot: *slot, Others: others}, nil
}

// Cancel soft-cancels the user's booking and returns the freed slot.
// Only the owner may cancel; a missing or already-cancelled booking is
// ErrBookingNotFound. Cancelled is terminal — booking again creates a
// new row.
func (db *DB) Cancel(ctx context.Context, telegramID, bookingID int64) (*models.Slot, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin cancel tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var ownerTelegramID, slotID int64
	err = tx.QueryRowContext(ctx, `
		SELECT u.telegram_id, b.slot_id
		FROM bookings b
		JOIN users u ON u.id = b.user_id
		WHERE b.id = ? AND b.status = ?`, bookingID, models.StatusActive).
		Scan(&ownerTelegramID, &slotID)
	if err == sql.ErrNoRows {
		return nil, ErrBookingNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load booking: %w", err)
	}
	if ownerTelegramID != telegramID {
		return nil, ErrNotOwner
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE bookings SET status = ?, updated_at = ? WHERE id = ?`,
		models.StatusCancelled, time.Now(), bookingID); err != nil {
		return nil, fmt.Errorf("cancel booking: %w", err)
	}

	slot, err := scanSlot(tx.QueryRowContext(ctx, `
		SELECT id, day, start_time, end_time, capacity, created_at
		FROM slots WHERE id = ?`, slotID))
	if err != nil {
		return nil, fmt.Errorf("load freed slot: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit cancel: %w", err)
	}
	return slot, nil
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
}

// slotHolders lists display names of the slot's active holders in
// booking order, excluding the given user (0 excludes nobody).
func slotHolders(ctx context.Context, q querier, slotID, excludeUserID int64) ([]string, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT u.telegram_id, u.username, u.first_name
		FROM bookings b
		JOIN users u ON u.id = b.user_id
		WHERE b.slot_id = ? AND b.status = ? AND b.user_id != ?
		ORDER BY b.id ASC`, slotID, models.StatusActive, excludeUserID)
	if err != nil {
		return nil, fmt.Errorf("list holders: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var u models.User
		var username, firstName sql.NullString
		if err := rows.Scan(&u.TelegramID, &username, &firstName); err != nil {
			return nil, err
		}
		u.Username = username.String
		u.FirstName = firstName.String
		names = append(names, u.DisplayName())
	}
	return names, rows.Err()
}
