package database

import (
	"context"
	"testing"
	"time"

	"breakbot/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAvailableInNext(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	day := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	_, err := db.GenerateDay(ctx, day, "09:00", "11:00", 30, 3)
	require.NoError(t, err)
	slots, err := db.ListSlotsForDay(ctx, day)
	require.NoError(t, err)
	require.Len(t, slots, 4)

	// 09:00 stays empty, 09:30 gets one holder, 10:00 is filled.
	_, err = db.Reserve(ctx, testUser(1), slots[1].ID)
	require.NoError(t, err)
	for i := int64(2); i <= 4; i++ {
		_, err = db.Reserve(ctx, testUser(i), slots[2].ID)
		require.NoError(t, err)
	}

	now := time.Date(2024, 1, 1, 8, 30, 0, 0, time.UTC)
	statuses, err := db.AvailableInNext(ctx, now, 2, 10)
	require.NoError(t, err)
	require.Len(t, statuses, 4, "09:00 through 10:30 start within two hours")

	assert.Equal(t, models.OccupancyFree, statuses[0].Occupancy())
	assert.Equal(t, models.OccupancyNearlyFull, statuses[1].Occupancy())
	assert.Equal(t, models.OccupancyFull, statuses[2].Occupancy())
	assert.Equal(t, models.OccupancyFree, statuses[3].Occupancy())

	assert.Equal(t, []string{"User 1"}, statuses[1].Holders)
	assert.Equal(t, 3, statuses[2].Occupied)
	assert.Equal(t, 3, statuses[2].Slot.Capacity)
}

func TestAvailableInNext_WindowAndLimit(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	day := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	_, err := db.GenerateDay(ctx, day, "08:00", "20:00", 15, 3)
	require.NoError(t, err)

	// Slots already started are not offered.
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	statuses, err := db.AvailableInNext(ctx, now, 1, 100)
	require.NoError(t, err)
	require.Len(t, statuses, 4)
	assert.Equal(t, "12:00", statuses[0].Slot.StartTime.UTC().Format("15:04"))
	assert.Equal(t, "12:45", statuses[3].Slot.StartTime.UTC().Format("15:04"))

	limited, err := db.AvailableInNext(ctx, now, 4, 5)
	require.NoError(t, err)
	assert.Len(t, limited, 5)
}

func TestBookingsFor(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	day := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	_, err := db.GenerateDay(ctx, day, "09:00", "11:00", 30, 3)
	require.NoError(t, err)
	slots, err := db.ListSlotsForDay(ctx, day)
	require.NoError(t, err)

	// Book the later slot first to verify ordering by start time.
	_, err = db.Reserve(ctx, testUser(1), slots[3].ID)
	require.NoError(t, err)
	_, err = db.Reserve(ctx, testUser(1), slots[0].ID)
	require.NoError(t, err)
	_, err = db.Reserve(ctx, testUser(2), slots[0].ID)
	require.NoError(t, err)

	bookings, err := db.BookingsFor(ctx, testUser(1).TelegramID)
	require.NoError(t, err)
	require.Len(t, bookings, 2)

	assert.Equal(t, slots[0].ID, bookings[0].Slot.ID)
	assert.Equal(t, slots[3].ID, bookings[1].Slot.ID)
	assert.Equal(t, []string{"User 2"}, bookings[0].Others)
	assert.Empty(t, bookings[1].Others)

	// Cancelled bookings disappear from the view.
	_, err = db.Cancel(ctx, testUser(1).TelegramID, bookings[1].Booking.ID)
	require.NoError(t, err)
	bookings, err = db.BookingsFor(ctx, testUser(1).TelegramID)
	require.NoError(t, err)
	assert.Len(t, bookings, 1)

	none, err := db.BookingsFor(ctx, 777777)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestRosterForDay(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	day := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	_, err := db.GenerateDay(ctx, day, "09:00", "10:00", 30, 2)
	require.NoError(t, err)
	slots, err := db.ListSlotsForDay(ctx, day)
	require.NoError(t, err)

	_, err = db.Reserve(ctx, testUser(1), slots[1].ID)
	require.NoError(t, err)

	roster, err := db.RosterForDay(ctx, day)
	require.NoError(t, err)
	require.Len(t, roster, 2)
	assert.Equal(t, 0, roster[0].Occupied)
	assert.Equal(t, 1, roster[1].Occupied)
	assert.Equal(t, []string{"User 1"}, roster[1].Holders)

	other, err := db.RosterForDay(ctx, day.AddDate(0, 0, 1))
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestAggregateStats(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	day := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	_, err := db.GenerateDay(ctx, day, "09:00", "11:00", 30, 3)
	require.NoError(t, err)
	slots, err := db.ListSlotsForDay(ctx, day)
	require.NoError(t, err)
	require.Len(t, slots, 4)

	// Two holders each on the 09:00 and 10:00 slots; the tie goes to
	// the earlier start.
	for i := int64(1); i <= 2; i++ {
		_, err = db.Reserve(ctx, testUser(i), slots[0].ID)
		require.NoError(t, err)
		_, err = db.Reserve(ctx, testUser(i), slots[2].ID)
		require.NoError(t, err)
	}

	stats, err := db.AggregateStats(ctx)
	require.NoError(t, err)

	assert.Equal(t, 2, stats.Users)
	assert.Equal(t, 4, stats.Slots)
	assert.Equal(t, 4, stats.Active)
	assert.Equal(t, 2, stats.FreeSlots)

	require.NotNil(t, stats.BusiestSlot)
	assert.Equal(t, slots[0].ID, stats.BusiestSlot.Slot.ID)
	assert.Equal(t, 2, stats.BusiestSlot.Occupied)
	assert.Len(t, stats.BusiestSlot.Holders, 2)
}

func TestAggregateStats_Empty(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	stats, err := db.AggregateStats(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.Users)
	assert.Zero(t, stats.Active)
	assert.Nil(t, stats.BusiestSlot)
}

func TestAggregateStats_CancelledExcluded(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	slot := seedSlot(t, db, 3)

	conf, err := db.Reserve(ctx, testUser(1), slot.ID)
	require.NoError(t, err)
	_, err = db.Cancel(ctx, testUser(1).TelegramID, conf.BookingID)
	require.NoError(t, err)

	stats, err := db.AggregateStats(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.Active)
	assert.Equal(t, 1, stats.FreeSlots)
	assert.Nil(t, stats.BusiestSlot)
}
