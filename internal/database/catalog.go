package database

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"breakbot/internal/models"
)

// GenerateDay creates the slot catalog for the given day: fixed-length
// windows from dayStart to dayEnd, each with the given capacity.
// Idempotent — a (day, start) pair that already exists is left alone,
// so calling it twice never duplicates slots. Returns the number of
// slots actually inserted.
//
// dayEnd may be "24:00"; a window starting at 23:45 then ends at 00:00
// of the next day.
func (db *DB) GenerateDay(ctx context.Context, day time.Time, dayStart, dayEnd string, slotMinutes, capacity int) (int, error) {
	if slotMinutes <= 0 {
		slotMinutes = 15
	}
	if capacity <= 0 {
		capacity = 3
	}

	start, err := parseTimeOnDate(day, dayStart)
	if err != nil {
		return 0, fmt.Errorf("parse day start: %w", err)
	}
	end, err := parseTimeOnDate(day, dayEnd)
	if err != nil {
		return 0, fmt.Errorf("parse day end: %w", err)
	}
	if !end.After(start) {
		return 0, fmt.Errorf("day end %s is not after day start %s", dayEnd, dayStart)
	}

	window := time.Duration(slotMinutes) * time.Minute
	dayKey := day.Format("2006-01-02")
	now := time.Now()

	inserted := 0
	for cursor := start; cursor.Before(end); cursor = cursor.Add(window) {
		// Times are stored in UTC so that range comparisons in SQL are
		// consistent regardless of the configured display timezone.
		res, err := db.ExecContext(ctx, `
			INSERT OR IGNORE INTO slots (day, start_time, end_time, capacity, created_at)
			VALUES (?, ?, ?, ?, ?)`,
			dayKey, cursor.UTC(), cursor.Add(window).UTC(), capacity, now)
		if err != nil {
			return inserted, fmt.Errorf("insert slot %s: %w", cursor.Format("15:04"), err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return inserted, err
		}
		inserted += int(n)
	}
	return inserted, nil
}

// GetSlot returns a slot by id, or ErrSlotNotFound.
func (db *DB) GetSlot(ctx context.Context, id int64) (*models.Slot, error) {
	s, err := scanSlot(db.QueryRowContext(ctx, `
		SELECT id, day, start_time, end_time, capacity, created_at
		FROM slots WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, ErrSlotNotFound
	}
	return s, err
}

// ListSlotsInWindow returns slots whose start falls within [from, to),
// ordered by start time ascending and truncated to limit.
func (db *DB) ListSlotsInWindow(ctx context.Context, from, to time.Time, limit int) ([]models.Slot, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, day, start_time, end_time, capacity, created_at
		FROM slots
		WHERE start_time >= ? AND start_time < ?
		ORDER BY start_time ASC
		LIMIT ?`, from.UTC(), to.UTC(), limit)
	if err != nil {
		return nil, fmt.Errorf("list slots: %w", err)
	}
	defer rows.Close()
	return collectSlots(rows)
}

// ListSlotsForDay returns every slot of a day ordered by start time.
func (db *DB) ListSlotsForDay(ctx context.Context, day time.Time) ([]models.Slot, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, day, start_time, end_time, capacity, created_at
		FROM slots
		WHERE day = ?
		ORDER BY start_time ASC`, day.Format("2006-01-02"))
	if err != nil {
		return nil, fmt.Errorf("list day slots: %w", err)
	}
	defer rows.Close()
	return collectSlots(rows)
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSlot(r rowScanner) (*models.Slot, error) {
	var s models.Slot
	if err := r.Scan(&s.ID, &s.Day, &s.StartTime, &s.EndTime, &s.Capacity, &s.CreatedAt); err != nil {
		return nil, err
	}
	return &s, nil
}

func collectSlots(rows *sql.Rows) ([]models.Slot, error) {
	var slots []models.Slot
	for rows.Next() {
		s, err := scanSlot(rows)
		if err != nil {
			return nil, err
		}
		slots = append(slots, *s)
	}
	return slots, rows.Err()
}

// parseTimeOnDate anchors an "HH:MM" string on the given date in the
// date's location. Hour 24 rolls over to midnight of the next day.
func parseTimeOnDate(date time.Time, timeStr string) (time.Time, error) {
	parts := strings.Split(timeStr, ":")
	if len(parts) < 2 {
		return time.Time{}, fmt.Errorf("invalid time format: %s", timeStr)
	}

	hour, err := strconv.Atoi(parts[0])
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid hour: %w", err)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid minute: %w", err)
	}
	if hour < 0 || hour > 24 || minute < 0 || minute > 59 {
		return time.Time{}, fmt.Errorf("time out of range: %s", timeStr)
	}
	// Hour 24 is only valid as end-of-day midnight; "24:30" would
	// silently normalize to 00:30 of the next day.
	if hour == 24 && minute != 0 {
		return time.Time{}, fmt.Errorf("time out of range: %s", timeStr)
	}

	return time.Date(date.Year(), date.Month(), date.Day(), hour, minute, 0, 0, date.Location()), nil
}
