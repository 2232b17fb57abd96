package google

import (
	"testing"
	"time"

	"breakbot/internal/models"
)

func TestRosterRowValues(t *testing.T) {
	start := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	status := &models.SlotStatus{
		Slot: models.Slot{
			Day:       "2024-01-01",
			StartTime: start,
			EndTime:   start.Add(15 * time.Minute),
			Capacity:  3,
		},
		Occupied: 2,
		Holders:  []string{"Аня", "Борис"},
	}

	values := rosterRowValues("2024-01-01", status, time.UTC)

	expected := []interface{}{
		"2024-01-01",
		"10:00-10:15",
		2,
		3,
		"nearly_full",
		"Аня, Борис",
	}

	if len(values) != len(expected) {
		t.Fatalf("Expected %d values, got %d", len(expected), len(values))
	}
	for i, v := range values {
		if v != expected[i] {
			t.Errorf("At index %d: expected %v, got %v", i, expected[i], v)
		}
	}
}

func TestRosterHeaderMatchesRowWidth(t *testing.T) {
	status := &models.SlotStatus{}
	if len(rosterHeader()) != len(rosterRowValues("2024-01-01", status, time.UTC)) {
		t.Error("Header and row widths differ")
	}
}
