package bot

import (
	"fmt"
	"strings"
	"time"

	"breakbot/internal/models"
)

func formatAvailableHeader(now time.Time) string {
	return fmt.Sprintf("Свободные перерывы (сейчас %s):", now.Format("15:04"))
}

func formatConfirmation(conf *models.Confirmation, loc *time.Location) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("✅ Вы записаны на %s (%s).", conf.Slot.TimeLabel(loc), conf.Slot.Day))
	if len(conf.Others) > 0 {
		sb.WriteString("\nВместе с вами: " + strings.Join(conf.Others, ", ") + ".")
	} else {
		sb.WriteString("\nПока вы первый на этом перерыве.")
	}
	return sb.String()
}

func formatMyBookings(bookings []models.UserBooking, loc *time.Location) string {
	var sb strings.Builder
	sb.WriteString("Ваши записи:\n")
	for i := range bookings {
		ub := &bookings[i]
		sb.WriteString(fmt.Sprintf("\n📅 %s %s", ub.Slot.Day, ub.Slot.TimeLabel(loc)))
		if len(ub.Others) > 0 {
			sb.WriteString("\n   вместе с: " + strings.Join(ub.Others, ", "))
		}
	}
	return sb.String()
}

func formatRoster(day time.Time, roster []models.SlotStatus, loc *time.Location) string {
	var sb strings.Builder
	sb.WriteString("🏢 Бронирования на " + day.Format("02.01.2006") + ":\n")
	if len(roster) == 0 {
		sb.WriteString("\nРасписание пусто.")
		return sb.String()
	}
	for i := range roster {
		s := &roster[i]
		sb.WriteString(fmt.Sprintf("\n%s %s (%d/%d)",
			occupancyEmoji(s.Occupancy()), s.Slot.TimeLabel(loc), s.Occupied, s.Slot.Capacity))
		if len(s.Holders) > 0 {
			sb.WriteString(" — " + strings.Join(s.Holders, ", "))
		}
	}
	return sb.String()
}

func formatStats(stats *models.Stats, loc *time.Location) string {
	var sb strings.Builder
	sb.WriteString("📊 Статистика:\n")
	sb.WriteString(fmt.Sprintf("\n👥 Пользователей: %d", stats.Users))
	sb.WriteString(fmt.Sprintf("\n🕐 Слотов в расписании: %d", stats.Slots))
	sb.WriteString(fmt.Sprintf("\n✅ Активных записей: %d", stats.Active))
	sb.WriteString(fmt.Sprintf("\n🟢 Полностью свободных слотов: %d", stats.FreeSlots))
	if stats.BusiestSlot != nil {
		sb.WriteString(fmt.Sprintf("\n🔥 Самый занятой: %s (%d чел.)",
			stats.BusiestSlot.Slot.TimeLabel(loc), stats.BusiestSlot.Occupied))
	}
	return sb.String()
}
