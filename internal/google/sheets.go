package google

import (
	"context"
	"fmt"
	"strings"
	"time"

	"breakbot/internal/models"

	"github.com/rs/zerolog"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// SheetsService mirrors the day roster into a Google Sheet. It is an
// optional observer: failures are logged by the caller and never block
// booking flow.
type SheetsService struct {
	srv           *sheets.Service
	spreadsheetID string
	loc           *time.Location
	logger        *zerolog.Logger
}

func NewSheetsService(ctx context.Context, credentialsFile, spreadsheetID string, loc *time.Location, logger *zerolog.Logger) (*SheetsService, error) {
	srv, err := sheets.NewService(ctx, option.WithCredentialsFile(credentialsFile))
	if err != nil {
		return nil, fmt.Errorf("create sheets client: %w", err)
	}
	if loc == nil {
		loc = time.UTC
	}
	return &SheetsService{
		srv:           srv,
		spreadsheetID: spreadsheetID,
		loc:           loc,
		logger:        logger,
	}, nil
}

// SyncRoster overwrites the spreadsheet from A1 with the current
// roster. The whole range is rewritten on every call; the roster is
// small enough that diffing is not worth the bookkeeping.
func (s *SheetsService) SyncRoster(ctx context.Context, day string, roster []models.SlotStatus) error {
	values := [][]interface{}{rosterHeader()}
	for i := range roster {
		values = append(values, rosterRowValues(day, &roster[i], s.loc))
	}

	vr := &sheets.ValueRange{Values: values}
	_, err := s.srv.Spreadsheets.Values.
		Update(s.spreadsheetID, "A1", vr).
		ValueInputOption("RAW").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("update roster range: %w", err)
	}

	s.logger.Debug().Str("day", day).Int("rows", len(roster)).Msg("Roster mirrored to sheet")
	return nil
}

func rosterHeader() []interface{} {
	return []interface{}{"Дата", "Время", "Занято", "Мест", "Статус", "Участники"}
}

func rosterRowValues(day string, s *models.SlotStatus, loc *time.Location) []interface{} {
	return []interface{}{
		day,
		s.Slot.TimeLabel(loc),
		s.Occupied,
		s.Slot.Capacity,
		s.Occupancy().String(),
		strings.Join(s.Holders, ", "),
	}
}
