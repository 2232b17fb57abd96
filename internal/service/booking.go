package service

import (
	"context"
	"errors"
	"time"

	"breakbot/internal/config"
	"breakbot/internal/database"
	"breakbot/internal/events"
	"breakbot/internal/metrics"
	"breakbot/internal/models"

	"github.com/rs/zerolog"
)

// Ledger is the storage surface the booking service drives.
type Ledger interface {
	CreateOrUpdateUser(ctx context.Context, u *models.User) error
	GenerateDay(ctx context.Context, day time.Time, dayStart, dayEnd string, slotMinutes, capacity int) (int, error)
	Reserve(ctx context.Context, user *models.User, slotID int64) (*models.Confirmation, error)
	Cancel(ctx context.Context, telegramID, bookingID int64) (*models.Slot, error)
	AvailableInNext(ctx context.Context, now time.Time, hours, limit int) ([]models.SlotStatus, error)
	RosterForDay(ctx context.Context, day time.Time) ([]models.SlotStatus, error)
	BookingsFor(ctx context.Context, telegramID int64) ([]models.UserBooking, error)
	AggregateStats(ctx context.Context) (*models.Stats, error)
}

// EventPublisher publishes domain events.
type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}

// BookingEvent is the payload for booking.created / booking.cancelled.
type BookingEvent struct {
	BookingID  int64  `json:"booking_id"`
	TelegramID int64  `json:"telegram_id"`
	SlotID     int64  `json:"slot_id"`
	Day        string `json:"day"`
	TimeLabel  string `json:"time_label"`
}

// BookingService is the single mutation path over the ledger. It keeps
// the slot catalog generated on demand and publishes domain events.
type BookingService struct {
	ledger   Ledger
	bus      EventPublisher
	schedule config.ScheduleConfig
	loc      *time.Location
	logger   *zerolog.Logger
}

func NewBookingService(ledger Ledger, bus EventPublisher, schedule config.ScheduleConfig, loc *time.Location, logger *zerolog.Logger) *BookingService {
	if loc == nil {
		loc = time.UTC
	}
	return &BookingService{
		ledger:   ledger,
		bus:      bus,
		schedule: schedule,
		loc:      loc,
		logger:   logger,
	}
}

// Now returns the current time in the configured timezone.
func (s *BookingService) Now() time.Time {
	return time.Now().In(s.loc)
}

// Location returns the configured display timezone.
func (s *BookingService) Location() *time.Location {
	return s.loc
}

// Register creates the user on first contact or refreshes the name.
func (s *BookingService) Register(ctx context.Context, user *models.User) error {
	return s.ledger.CreateOrUpdateUser(ctx, user)
}

// EnsureDay generates the slot catalog for the given day. Generation is
// idempotent, so callers may invoke it before every listing.
func (s *BookingService) EnsureDay(ctx context.Context, day time.Time) error {
	day = time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, s.loc)
	n, err := s.ledger.GenerateDay(ctx, day, s.schedule.DayStart, s.schedule.DayEnd,
		s.schedule.SlotMinutes, s.schedule.Capacity)
	if err != nil {
		return err
	}
	if n > 0 {
		s.logger.Info().
			Str("day", day.Format("2006-01-02")).
			Int("slots", n).
			Msg("Slot catalog generated")
	}
	return nil
}

// ensureUpcoming generates today's catalog, and tomorrow's as well when
// the look-ahead window crosses midnight.
func (s *BookingService) ensureUpcoming(ctx context.Context, now time.Time) error {
	if err := s.EnsureDay(ctx, now); err != nil {
		return err
	}
	horizon := now.Add(time.Duration(s.schedule.LookaheadHours) * time.Hour)
	if horizon.In(s.loc).Day() != now.In(s.loc).Day() {
		return s.EnsureDay(ctx, horizon)
	}
	return nil
}

// Available returns the upcoming slots within the look-ahead window.
func (s *BookingService) Available(ctx context.Context) ([]models.SlotStatus, error) {
	now := s.Now()
	if err := s.ensureUpcoming(ctx, now); err != nil {
		return nil, err
	}
	return s.ledger.AvailableInNext(ctx, now, s.schedule.LookaheadHours, s.schedule.ListLimit)
}

// Reserve books a seat and publishes booking.created.
func (s *BookingService) Reserve(ctx context.Context, user *models.User, slotID int64) (*models.Confirmation, error) {
	conf, err := s.ledger.Reserve(ctx, user, slotID)
	if err != nil {
		switch {
		case errors.Is(err, database.ErrSlotNotFound):
			metrics.IncReserveRejected("slot_not_found")
		case errors.Is(err, database.ErrSlotFull):
			metrics.IncReserveRejected("slot_full")
		case errors.Is(err, database.ErrAlreadyBooked):
			metrics.IncReserveRejected("already_booked")
		}
		return nil, err
	}

	if pubErr := s.bus.PublishJSON(events.TypeBookingCreated, BookingEvent{
		BookingID:  conf.BookingID,
		TelegramID: user.TelegramID,
		SlotID:     conf.Slot.ID,
		Day:        conf.Slot.Day,
		TimeLabel:  conf.Slot.TimeLabel(s.loc),
	}); pubErr != nil {
		s.logger.Warn().Err(pubErr).Msg("Failed to publish booking.created")
	}
	return conf, nil
}

// Cancel releases the user's booking and publishes booking.cancelled.
func (s *BookingService) Cancel(ctx context.Context, telegramID, bookingID int64) (*models.Slot, error) {
	slot, err := s.ledger.Cancel(ctx, telegramID, bookingID)
	if err != nil {
		return nil, err
	}

	if pubErr := s.bus.PublishJSON(events.TypeBookingCancelled, BookingEvent{
		BookingID:  bookingID,
		TelegramID: telegramID,
		SlotID:     slot.ID,
		Day:        slot.Day,
		TimeLabel:  slot.TimeLabel(s.loc),
	}); pubErr != nil {
		s.logger.Warn().Err(pubErr).Msg("Failed to publish booking.cancelled")
	}
	return slot, nil
}

// MyBookings returns the user's active bookings.
func (s *BookingService) MyBookings(ctx context.Context, telegramID int64) ([]models.UserBooking, error) {
	return s.ledger.BookingsFor(ctx, telegramID)
}

// Roster returns the full annotated slot list for the given day.
func (s *BookingService) Roster(ctx context.Context, day time.Time) ([]models.SlotStatus, error) {
	if err := s.EnsureDay(ctx, day); err != nil {
		return nil, err
	}
	return s.ledger.RosterForDay(ctx, day)
}

// Stats returns the aggregate totals.
func (s *BookingService) Stats(ctx context.Context) (*models.Stats, error) {
	return s.ledger.AggregateStats(ctx)
}
