package bot

import (
	"fmt"
	"time"

	"breakbot/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Main menu buttons, matched verbatim in handleMessage.
const (
	buttonBook       = "📅 Записаться"
	buttonMyBookings = "👤 Мои записи"
	buttonRoster     = "🏢 Все бронирования"
	buttonStats      = "📊 Статистика"
)

const helpText = "Команды:\n" +
	"/book — записаться на перерыв\n" +
	"/my — мои записи\n" +
	"/all — все бронирования на сегодня\n" +
	"/stats — статистика"

var mainMenu = tgbotapi.NewReplyKeyboard(
	tgbotapi.NewKeyboardButtonRow(
		tgbotapi.NewKeyboardButton(buttonBook),
		tgbotapi.NewKeyboardButton(buttonMyBookings),
	),
	tgbotapi.NewKeyboardButtonRow(
		tgbotapi.NewKeyboardButton(buttonRoster),
		tgbotapi.NewKeyboardButton(buttonStats),
	),
)

// occupancyEmoji is the traffic light shown next to each slot.
func occupancyEmoji(o models.Occupancy) string {
	switch o {
	case models.OccupancyFree:
		return "🟢"
	case models.OccupancyNearlyFull:
		return "🟡"
	default:
		return "🔴"
	}
}

// slotButtonLabel renders one keyboard line: light, window, seats.
func slotButtonLabel(s *models.SlotStatus, loc *time.Location) string {
	return fmt.Sprintf("%s %s · %d/%d",
		occupancyEmoji(s.Occupancy()), s.Slot.TimeLabel(loc), s.Occupied, s.Slot.Capacity)
}

// slotsKeyboard lists upcoming slots one per row. Full slots stay
// visible but tap to nothing.
func slotsKeyboard(statuses []models.SlotStatus, loc *time.Location) tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	for i := range statuses {
		s := &statuses[i]
		callback := fmt.Sprintf("slot:%d", s.Slot.ID)
		if s.Occupancy() == models.OccupancyFull {
			callback = "noop"
		}
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(slotButtonLabel(s, loc), callback),
		))
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("🔄 Обновить", "refresh"),
	))
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

// cancelKeyboard offers one cancel button per active booking.
func cancelKeyboard(bookings []models.UserBooking, loc *time.Location) tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	for i := range bookings {
		ub := &bookings[i]
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(
				"❌ Отменить "+ub.Slot.TimeLabel(loc),
				fmt.Sprintf("cancel:%d", ub.Booking.ID),
			),
		))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func confirmCancelKeyboard(bookingID int64) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✅ Да, отменить", fmt.Sprintf("confirm_cancel:%d", bookingID)),
			tgbotapi.NewInlineKeyboardButtonData("↩️ Оставить", "keep"),
		),
	)
}
