package service

import (
	"context"
	"io"
	"testing"
	"time"

	"breakbot/internal/config"
	"breakbot/internal/database"
	"breakbot/internal/events"
	"breakbot/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type mockLedger struct {
	mock.Mock
}

func (m *mockLedger) CreateOrUpdateUser(ctx context.Context, u *models.User) error {
	return m.Called(ctx, u).Error(0)
}

func (m *mockLedger) GenerateDay(ctx context.Context, day time.Time, dayStart, dayEnd string, slotMinutes, capacity int) (int, error) {
	args := m.Called(ctx, day, dayStart, dayEnd, slotMinutes, capacity)
	return args.Int(0), args.Error(1)
}

func (m *mockLedger) Reserve(ctx context.Context, user *models.User, slotID int64) (*models.Confirmation, error) {
	args := m.Called(ctx, user, slotID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Confirmation), args.Error(1)
}

func (m *mockLedger) Cancel(ctx context.Context, telegramID, bookingID int64) (*models.Slot, error) {
	args := m.Called(ctx, telegramID, bookingID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Slot), args.Error(1)
}

func (m *mockLedger) AvailableInNext(ctx context.Context, now time.Time, hours, limit int) ([]models.SlotStatus, error) {
	args := m.Called(ctx, now, hours, limit)
	return args.Get(0).([]models.SlotStatus), args.Error(1)
}

func (m *mockLedger) RosterForDay(ctx context.Context, day time.Time) ([]models.SlotStatus, error) {
	args := m.Called(ctx, day)
	return args.Get(0).([]models.SlotStatus), args.Error(1)
}

func (m *mockLedger) BookingsFor(ctx context.Context, telegramID int64) ([]models.UserBooking, error) {
	args := m.Called(ctx, telegramID)
	return args.Get(0).([]models.UserBooking), args.Error(1)
}

func (m *mockLedger) AggregateStats(ctx context.Context) (*models.Stats, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Stats), args.Error(1)
}

type mockEventBus struct {
	mock.Mock
}

func (m *mockEventBus) PublishJSON(eventType string, payload interface{}) error {
	return m.Called(eventType, payload).Error(0)
}

func testSchedule() config.ScheduleConfig {
	return config.ScheduleConfig{
		DayStart:       "08:00",
		DayEnd:         "20:00",
		SlotMinutes:    15,
		Capacity:       3,
		LookaheadHours: 4,
		ListLimit:      12,
	}
}

func TestBookingService(t *testing.T) {
	ledger := new(mockLedger)
	bus := new(mockEventBus)
	logger := zerolog.New(io.Discard)
	svc := NewBookingService(ledger, bus, testSchedule(), time.UTC, &logger)
	ctx := context.Background()

	slot := models.Slot{
		ID:        5,
		Day:       "2024-01-01",
		StartTime: time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC),
		EndTime:   time.Date(2024, 1, 1, 10, 15, 0, 0, time.UTC),
		Capacity:  3,
	}

	t.Run("Reserve", func(t *testing.T) {
		user := &models.User{TelegramID: 100, FirstName: "Ann"}
		conf := &models.Confirmation{BookingID: 7, Slot: slot}

		ledger.On("Reserve", ctx, user, int64(5)).Return(conf, nil).Once()
		bus.On("PublishJSON", events.TypeBookingCreated, BookingEvent{
			BookingID:  7,
			TelegramID: 100,
			SlotID:     5,
			Day:        "2024-01-01",
			TimeLabel:  "10:00-10:15",
		}).Return(nil).Once()

		got, err := svc.Reserve(ctx, user, 5)
		assert.NoError(t, err)
		assert.Equal(t, conf, got)
		ledger.AssertExpectations(t)
		bus.AssertExpectations(t)
	})

	t.Run("ReserveFullNoEvent", func(t *testing.T) {
		ledger := new(mockLedger)
		bus := new(mockEventBus)
		svc := NewBookingService(ledger, bus, testSchedule(), time.UTC, &logger)
		user := &models.User{TelegramID: 100}
		ledger.On("Reserve", ctx, user, int64(5)).Return(nil, database.ErrSlotFull).Once()

		_, err := svc.Reserve(ctx, user, 5)
		assert.ErrorIs(t, err, database.ErrSlotFull)
		ledger.AssertExpectations(t)
		bus.AssertNotCalled(t, "PublishJSON", events.TypeBookingCreated, mock.Anything)
	})

	t.Run("Cancel", func(t *testing.T) {
		ledger.On("Cancel", ctx, int64(100), int64(7)).Return(&slot, nil).Once()
		bus.On("PublishJSON", events.TypeBookingCancelled, mock.Anything).Return(nil).Once()

		freed, err := svc.Cancel(ctx, 100, 7)
		assert.NoError(t, err)
		assert.Equal(t, slot.ID, freed.ID)
		ledger.AssertExpectations(t)
		bus.AssertExpectations(t)
	})

	t.Run("CancelNotOwner", func(t *testing.T) {
		ledger.On("Cancel", ctx, int64(200), int64(7)).Return(nil, database.ErrNotOwner).Once()

		_, err := svc.Cancel(ctx, 200, 7)
		assert.ErrorIs(t, err, database.ErrNotOwner)
		ledger.AssertExpectations(t)
	})

	t.Run("AvailableEnsuresCatalog", func(t *testing.T) {
		ledger.On("GenerateDay", ctx, mock.Anything, "08:00", "20:00", 15, 3).Return(0, nil)
		ledger.On("AvailableInNext", ctx, mock.Anything, 4, 12).
			Return([]models.SlotStatus{{Slot: slot, Occupied: 1}}, nil).Once()

		statuses, err := svc.Available(ctx)
		assert.NoError(t, err)
		assert.Len(t, statuses, 1)
		ledger.AssertExpectations(t)
	})
}
