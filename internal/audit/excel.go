package audit

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"breakbot/internal/models"

	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"
)

const (
	rosterSheet = "Расписание"
	statsSheet  = "Статистика"
)

// Exporter renders the manager export: the day roster and the
// aggregate stats as an xlsx workbook.
type Exporter struct {
	loc    *time.Location
	logger *zerolog.Logger
}

func NewExporter(loc *time.Location, logger *zerolog.Logger) *Exporter {
	if loc == nil {
		loc = time.UTC
	}
	return &Exporter{loc: loc, logger: logger}
}

// DayReport builds the workbook and returns its bytes.
func (e *Exporter) DayReport(day string, roster []models.SlotStatus, stats *models.Stats) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	// Rename the default sheet rather than leaving an empty Sheet1.
	f.SetSheetName("Sheet1", rosterSheet)
	if err := e.writeRoster(f, day, roster); err != nil {
		return nil, err
	}

	if _, err := f.NewSheet(statsSheet); err != nil {
		return nil, fmt.Errorf("create stats sheet: %w", err)
	}
	if err := e.writeStats(f, stats); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	e.logger.Info().Str("day", day).Int("slots", len(roster)).Msg("Export workbook built")
	return buf.Bytes(), nil
}

func (e *Exporter) writeRoster(f *excelize.File, day string, roster []models.SlotStatus) error {
	if err := writeHeader(f, rosterSheet, 1, []string{"Дата", "Время", "Занято", "Мест", "Статус", "Участники"}); err != nil {
		return err
	}
	for i := range roster {
		s := &roster[i]
		row := []interface{}{
			day,
			s.Slot.TimeLabel(e.loc),
			s.Occupied,
			s.Slot.Capacity,
			occupancyLabel(s.Occupancy()),
			strings.Join(s.Holders, ", "),
		}
		if err := writeRow(f, rosterSheet, i+2, row); err != nil {
			return err
		}
	}
	return nil
}

func (e *Exporter) writeStats(f *excelize.File, stats *models.Stats) error {
	if err := writeHeader(f, statsSheet, 1, []string{"Показатель", "Значение"}); err != nil {
		return err
	}
	rows := [][]interface{}{
		{"Пользователей", stats.Users},
		{"Слотов", stats.Slots},
		{"Активных записей", stats.Active},
		{"Свободных слотов", stats.FreeSlots},
	}
	if stats.BusiestSlot != nil {
		rows = append(rows, []interface{}{
			"Самый занятой слот",
			fmt.Sprintf("%s (%d чел.)", stats.BusiestSlot.Slot.TimeLabel(e.loc), stats.BusiestSlot.Occupied),
		})
	}
	for i, row := range rows {
		if err := writeRow(f, statsSheet, i+2, row); err != nil {
			return err
		}
	}
	return nil
}

func occupancyLabel(o models.Occupancy) string {
	switch o {
	case models.OccupancyFree:
		return "свободно"
	case models.OccupancyNearlyFull:
		return "есть места"
	default:
		return "занято"
	}
}

func writeHeader(f *excelize.File, sheet string, rowNum int, columns []string) error {
	cols := make([]interface{}, len(columns))
	for i, c := range columns {
		cols[i] = c
	}
	if err := writeRow(f, sheet, rowNum, cols); err != nil {
		return err
	}

	style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err == nil {
		startCell, _ := excelize.CoordinatesToCellName(1, rowNum)
		endCell, _ := excelize.CoordinatesToCellName(len(columns), rowNum)
		_ = f.SetCellStyle(sheet, startCell, endCell, style)
	}
	return nil
}

func writeRow(f *excelize.File, sheet string, rowNum int, values []interface{}) error {
	for i, val := range values {
		cell, err := excelize.CoordinatesToCellName(i+1, rowNum)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, cell, val); err != nil {
			return fmt.Errorf("set cell %s!%s: %w", sheet, cell, err)
		}
	}
	return nil
}
