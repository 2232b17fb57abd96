package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"breakbot/internal/models"
)

// AvailableInNext returns slots starting at or after now and before
// now + hours, ordered by start time, annotated with occupancy. Every
// call re-reads the ledger; nothing is cached.
func (db *DB) AvailableInNext(ctx context.Context, now time.Time, hours, limit int) ([]models.SlotStatus, error) {
	slots, err := db.ListSlotsInWindow(ctx, now, now.Add(time.Duration(hours)*time.Hour), limit)
	if err != nil {
		return nil, err
	}
	return db.annotateSlots(ctx, slots)
}

// RosterForDay returns every slot of the day annotated with occupancy.
func (db *DB) RosterForDay(ctx context.Context, day time.Time) ([]models.SlotStatus, error) {
	slots, err := db.ListSlotsForDay(ctx, day)
	if err != nil {
		return nil, err
	}
	return db.annotateSlots(ctx, slots)
}

// BookingsFor returns the user's active bookings ordered by slot start
// time, each with the other holders of the same slot.
func (db *DB) BookingsFor(ctx context.Context, telegramID int64) ([]models.UserBooking, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT b.id, b.user_id, b.slot_id, b.status, b.created_at, b.updated_at,
		       s.id, s.day, s.start_time, s.end_time, s.capacity, s.created_at
		FROM bookings b
		JOIN users u ON u.id = b.user_id
		JOIN slots s ON s.id = b.slot_id
		WHERE u.telegram_id = ? AND b.status = ?
		ORDER BY s.start_time ASC`, telegramID, models.StatusActive)
	if err != nil {
		return nil, fmt.Errorf("list user bookings: %w", err)
	}
	defer rows.Close()

	var result []models.UserBooking
	for rows.Next() {
		var ub models.UserBooking
		if err := rows.Scan(
			&ub.Booking.ID, &ub.Booking.UserID, &ub.Booking.SlotID,
			&ub.Booking.Status, &ub.Booking.CreatedAt, &ub.Booking.UpdatedAt,
			&ub.Slot.ID, &ub.Slot.Day, &ub.Slot.StartTime, &ub.Slot.EndTime,
			&ub.Slot.Capacity, &ub.Slot.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, ub)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range result {
		others, err := slotHolders(ctx, db.DB, result[i].Slot.ID, result[i].Booking.UserID)
		if err != nil {
			return nil, err
		}
		result[i].Others = others
	}
	return result, nil
}

// AggregateStats returns the totals plus the busiest slot: the one
// with the most active bookings, ties broken by earliest start time.
func (db *DB) AggregateStats(ctx context.Context) (*models.Stats, error) {
	var stats models.Stats

	counts := []struct {
		query string
		dest  *int
	}{
		{`SELECT COUNT(*) FROM users`, &stats.Users},
		{`SELECT COUNT(*) FROM slots`, &stats.Slots},
		{`SELECT COUNT(*) FROM bookings WHERE status = ?`, &stats.Active},
		{`SELECT COUNT(*) FROM slots s WHERE NOT EXISTS (
			SELECT 1 FROM bookings b WHERE b.slot_id = s.id AND b.status = ?)`, &stats.FreeSlots},
	}
	for _, c := range counts {
		var args []interface{}
		if c.dest == &stats.Active || c.dest == &stats.FreeSlots {
			args = append(args, models.StatusActive)
		}
		if err := db.QueryRowContext(ctx, c.query, args...).Scan(c.dest); err != nil {
			return nil, fmt.Errorf("aggregate counts: %w", err)
		}
	}

	var busiest models.SlotStatus
	err := db.QueryRowContext(ctx, `
		SELECT s.id, s.day, s.start_time, s.end_time, s.capacity, s.created_at, COUNT(b.id)
		FROM bookings b
		JOIN slots s ON s.id = b.slot_id
		WHERE b.status = ?
		GROUP BY s.id
		ORDER BY COUNT(b.id) DESC, s.start_time ASC
		LIMIT 1`, models.StatusActive).
		Scan(&busiest.Slot.ID, &busiest.Slot.Day, &busiest.Slot.StartTime,
			&busiest.Slot.EndTime, &busiest.Slot.Capacity, &busiest.Slot.CreatedAt,
			&busiest.Occupied)
	switch err {
	case nil:
		holders, err := slotHolders(ctx, db.DB, busiest.Slot.ID, 0)
		if err != nil {
			return nil, err
		}
		busiest.Holders = holders
		stats.BusiestSlot = &busiest
	case sql.ErrNoRows:
		// no active bookings, busiest stays nil
	default:
		return nil, fmt.Errorf("busiest slot: %w", err)
	}

	return &stats, nil
}

// annotateSlots attaches occupancy counts and holder names to slots.
func (db *DB) annotateSlots(ctx context.Context, slots []models.Slot) ([]models.SlotStatus, error) {
	statuses := make([]models.SlotStatus, 0, len(slots))
	for _, s := range slots {
		holders, err := slotHolders(ctx, db.DB, s.ID, 0)
		if err != nil {
			return nil, err
		}
		statuses = append(statuses, models.SlotStatus{
			Slot:     s,
			Occupied: len(holders),
			Holders:  holders,
		})
	}
	return statuses, nil
}
