package models

import (
	"fmt"
	"time"
)

// Booking statuses.
const (
	StatusActive    = "active"
	StatusCancelled = "cancelled"
)

// User represents a bot user, created on first contact.
type User struct {
	ID         int64     `json:"id"`
	TelegramID int64     `json:"telegram_id"`
	Username   string    `json:"username"`
	FirstName  string    `json:"first_name"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// DisplayName returns the best available human-readable name.
func (u *User) DisplayName() string {
	if u.FirstName != "" {
		return u.FirstName
	}
	if u.Username != "" {
		return "@" + u.Username
	}
	return fmt.Sprintf("user %d", u.TelegramID)
}

// Slot is a fixed bookable time window with a seat capacity.
// Identity within a day is the (Day, StartTime) pair.
type Slot struct {
	ID        int64     `json:"id"`
	Day       string    `json:"day"` // YYYY-MM-DD
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
	Capacity  int       `json:"capacity"`
	CreatedAt time.Time `json:"created_at"`
}

// Duration returns the slot window length.
func (s *Slot) Duration() time.Duration {
	return s.EndTime.Sub(s.StartTime)
}

// TimeLabel returns the "HH:MM-HH:MM" label used in keyboards and
// lists. Slots are stored as UTC instants, so the label converts to
// the display timezone; nil falls back to UTC.
func (s *Slot) TimeLabel(loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return s.StartTime.In(loc).Format("15:04") + "-" + s.EndTime.In(loc).Format("15:04")
}

// Booking is one user's claim on one seat of one slot.
type Booking struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	SlotID    int64     `json:"slot_id"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsActive reports whether the booking still occupies a seat.
func (b *Booking) IsActive() bool {
	return b.Status == StatusActive
}

// Occupancy is the traffic-light classification of a slot.
type Occupancy int

const (
	OccupancyFree Occupancy = iota
	OccupancyNearlyFull
	OccupancyFull
)

func (o Occupancy) String() string {
	switch o {
	case OccupancyFree:
		return "free"
	case OccupancyNearlyFull:
		return "nearly_full"
	case OccupancyFull:
		return "full"
	}
	return "unknown"
}

// ClassifyOccupancy maps an active-booking count against capacity:
// zero occupants is free, anything strictly between zero and capacity
// is nearly full, capacity or more is full.
func ClassifyOccupancy(occupied, capacity int) Occupancy {
	switch {
	case occupied <= 0:
		return OccupancyFree
	case occupied < capacity:
		return OccupancyNearlyFull
	default:
		return OccupancyFull
	}
}

// SlotStatus is a slot annotated with its current occupants.
type SlotStatus struct {
	Slot     Slot     `json:"slot"`
	Occupied int      `json:"occupied"`
	Holders  []string `json:"holders"`
}

// Occupancy returns the traffic-light classification for the slot.
func (s *SlotStatus) Occupancy() Occupancy {
	return ClassifyOccupancy(s.Occupied, s.Slot.Capacity)
}

// UserBooking is an active booking joined with its slot and the names
// of the other users holding the same slot.
type UserBooking struct {
	Booking Booking  `json:"booking"`
	Slot    Slot     `json:"slot"`
	Others  []string `json:"others"`
}

// Confirmation is returned by a successful reserve call. Others lists
// the display names of the slot's other current holders; it is for
// presentation only and carries no capacity meaning.
type Confirmation struct {
	BookingID int64    `json:"booking_id"`
	Slot      Slot     `json:"slot"`
	Others    []string `json:"others"`
}

// Stats is the aggregate view over users, slots and bookings.
// BusiestSlot is nil when there are no active bookings.
type Stats struct {
	Users       int         `json:"users"`
	Slots       int         `json:"slots"`
	Active      int         `json:"active_bookings"`
	FreeSlots   int         `json:"free_slots"`
	BusiestSlot *SlotStatus `json:"busiest_slot,omitempty"`
}

// UserState keeps short-lived conversation state for a user, such as a
// pending cancellation awaiting confirmation.
type UserState struct {
	UserID int64                  `json:"user_id"`
	Step   string                 `json:"step"`
	Data   map[string]interface{} `json:"data,omitempty"`
}

// GetInt64 reads an int64 value from state data, tolerating the
// float64 that JSON round-trips produce.
func (s *UserState) GetInt64(key string) int64 {
	if s.Data == nil {
		return 0
	}
	switch v := s.Data[key].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case float64:
		return int64(v)
	}
	return 0
}

// GetString reads a string value from state data.
func (s *UserState) GetString(key string) string {
	if s.Data == nil {
		return ""
	}
	if v, ok := s.Data[key].(string); ok {
		return v
	}
	return ""
}
