package bot

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"breakbot/internal/database"
	"breakbot/internal/models"
	"breakbot/internal/repository"
	"breakbot/internal/service"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

type telegramClient interface {
	Send(tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetUpdatesChan(tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	SelfUser() tgbotapi.User
}

type realTelegramClient struct {
	api *tgbotapi.BotAPI
}

func (c *realTelegramClient) Send(msg tgbotapi.Chattable) (tgbotapi.Message, error) {
	return c.api.Send(msg)
}

func (c *realTelegramClient) Request(msg tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	return c.api.Request(msg)
}

func (c *realTelegramClient) GetUpdatesChan(cfg tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	return c.api.GetUpdatesChan(cfg)
}

func (c *realTelegramClient) SelfUser() tgbotapi.User {
	return c.api.Self
}

// ReportBuilder renders the manager export workbook.
type ReportBuilder interface {
	DayReport(day string, roster []models.SlotStatus, stats *models.Stats) ([]byte, error)
}

const stepCancelConfirm = "cancel_confirm"

// Bot is the Telegram front of the booking service. All formatting and
// keyboards live here; the service returns structured results only.
type Bot struct {
	tg       telegramClient
	svc      *service.BookingService
	state    repository.StateRepository
	reports  ReportBuilder
	managers map[int64]struct{}
	// limiter paces outbound sends against the Telegram API budget.
	limiter       *rate.Limiter
	userPerMinute int
	// loc is the display timezone; slot instants are stored in UTC.
	loc    *time.Location
	logger *zerolog.Logger
}

func New(
	token string,
	debug bool,
	svc *service.BookingService,
	state repository.StateRepository,
	reports ReportBuilder,
	managers []int64,
	userPerMinute int,
	logger *zerolog.Logger,
) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}
	api.Debug = debug
	return newBot(&realTelegramClient{api: api}, svc, state, reports, managers, userPerMinute, logger)
}

// NewWithTelegramClient allows injecting a mocked Telegram client for tests.
func NewWithTelegramClient(
	tg telegramClient,
	svc *service.BookingService,
	state repository.StateRepository,
	reports ReportBuilder,
	managers []int64,
	userPerMinute int,
	logger *zerolog.Logger,
) (*Bot, error) {
	return newBot(tg, svc, state, reports, managers, userPerMinute, logger)
}

func newBot(
	tg telegramClient,
	svc *service.BookingService,
	state repository.StateRepository,
	reports ReportBuilder,
	managers []int64,
	userPerMinute int,
	logger *zerolog.Logger,
) (*Bot, error) {
	if tg == nil {
		return nil, errors.New("telegram client is nil")
	}
	mgrs := make(map[int64]struct{})
	for _, id := range managers {
		mgrs[id] = struct{}{}
	}
	if userPerMinute <= 0 {
		userPerMinute = 20
	}
	loc := time.UTC
	if svc != nil {
		loc = svc.Location()
	}
	return &Bot{
		tg:            tg,
		svc:           svc,
		state:         state,
		reports:       reports,
		managers:      mgrs,
		limiter:       rate.NewLimiter(rate.Limit(25), 5),
		userPerMinute: userPerMinute,
		loc:           loc,
		logger:        logger,
	}, nil
}

// Start begins polling updates and blocks until the context ends.
func (b *Bot) Start(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := b.tg.GetUpdatesChan(u)
	b.logger.Info().Str("username", b.tg.SelfUser().UserName).Msg("Bot authorized")

	for {
		select {
		case <-ctx.Done():
			return
		case update := <-updates:
			requestID := uuid.New().String()
			l := b.logger.With().Str("request_id", requestID).Logger()
			updateCtx := l.WithContext(ctx)
			b.handleUpdate(updateCtx, &update)
		}
	}
}

func (b *Bot) handleUpdate(ctx context.Context, update *tgbotapi.Update) {
	l := zerolog.Ctx(ctx)
	if update.CallbackQuery != nil {
		l.Debug().
			Int64("user_id", update.CallbackQuery.From.ID).
			Str("data", update.CallbackQuery.Data).
			Msg("Handling callback query")
		b.handleCallback(ctx, update.CallbackQuery)
		return
	}
	if update.Message != nil {
		l.Debug().
			Int64("user_id", update.Message.From.ID).
			Str("text", update.Message.Text).
			Msg("Handling message")
		b.handleMessage(ctx, update.Message)
		return
	}
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg == nil || msg.From == nil {
		return
	}
	if !b.allowUser(ctx, msg.From.ID) {
		b.reply(ctx, msg.Chat.ID, "Слишком много запросов, попробуйте через минуту.")
		return
	}

	text := strings.TrimSpace(msg.Text)
	switch {
	case strings.HasPrefix(text, "/start"):
		b.handleStart(ctx, msg)
	case text == buttonBook || strings.HasPrefix(text, "/book"):
		b.handleBook(ctx, msg.Chat.ID)
	case text == buttonMyBookings || strings.HasPrefix(text, "/my"):
		b.handleMyBookings(ctx, msg.Chat.ID, msg.From.ID)
	case text == buttonRoster || strings.HasPrefix(text, "/all"):
		b.handleRoster(ctx, msg.Chat.ID)
	case text == buttonStats || strings.HasPrefix(text, "/stats"):
		b.handleStats(ctx, msg.Chat.ID)
	case strings.HasPrefix(text, "/export") && b.isManager(msg.From.ID):
		b.handleExport(ctx, msg.Chat.ID)
	case strings.HasPrefix(text, "/help"):
		b.reply(ctx, msg.Chat.ID, helpText)
	default:
		b.reply(ctx, msg.Chat.ID, "Не понимаю. Воспользуйтесь кнопками меню или /help.")
	}
}

func (b *Bot) handleStart(ctx context.Context, msg *tgbotapi.Message) {
	user := userFromMessage(msg)
	if err := b.svc.Register(ctx, user); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("Failed to register user")
		b.reply(ctx, msg.Chat.ID, "Не удалось зарегистрироваться, попробуйте ещё раз.")
		return
	}
	_ = b.state.ClearState(ctx, msg.From.ID)

	out := tgbotapi.NewMessage(msg.Chat.ID,
		"Привет, "+user.DisplayName()+"! Я помогу забронировать перерыв.")
	out.ReplyMarkup = mainMenu
	b.send(ctx, out)
}

func (b *Bot) handleBook(ctx context.Context, chatID int64) {
	statuses, err := b.svc.Available(ctx)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("Failed to list available slots")
		b.reply(ctx, chatID, "Не удалось загрузить свободные перерывы.")
		return
	}
	if len(statuses) == 0 {
		b.reply(ctx, chatID, "Ближайших перерывов нет. Загляните позже.")
		return
	}

	out := tgbotapi.NewMessage(chatID, formatAvailableHeader(b.svc.Now()))
	out.ReplyMarkup = slotsKeyboard(statuses, b.loc)
	b.send(ctx, out)
}

func (b *Bot) handleMyBookings(ctx context.Context, chatID, userID int64) {
	bookings, err := b.svc.MyBookings(ctx, userID)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("Failed to list user bookings")
		b.reply(ctx, chatID, "Не удалось получить ваши записи.")
		return
	}
	if len(bookings) == 0 {
		b.reply(ctx, chatID, "У вас нет активных записей.")
		return
	}

	out := tgbotapi.NewMessage(chatID, formatMyBookings(bookings, b.loc))
	out.ReplyMarkup = cancelKeyboard(bookings, b.loc)
	b.send(ctx, out)
}

func (b *Bot) handleRoster(ctx context.Context, chatID int64) {
	now := b.svc.Now()
	roster, err := b.svc.Roster(ctx, now)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("Failed to load roster")
		b.reply(ctx, chatID, "Не удалось получить расписание.")
		return
	}
	b.reply(ctx, chatID, formatRoster(now, roster, b.loc))
}

func (b *Bot) handleStats(ctx context.Context, chatID int64) {
	stats, err := b.svc.Stats(ctx)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("Failed to load stats")
		b.reply(ctx, chatID, "Не удалось получить статистику.")
		return
	}
	b.reply(ctx, chatID, formatStats(stats, b.loc))
}

func (b *Bot) handleExport(ctx context.Context, chatID int64) {
	now := b.svc.Now()
	roster, err := b.svc.Roster(ctx, now)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("Failed to load roster for export")
		b.reply(ctx, chatID, "Не удалось подготовить выгрузку.")
		return
	}
	stats, err := b.svc.Stats(ctx)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("Failed to load stats for export")
		b.reply(ctx, chatID, "Не удалось подготовить выгрузку.")
		return
	}

	day := now.Format("2006-01-02")
	data, err := b.reports.DayReport(day, roster, stats)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("Failed to build export workbook")
		b.reply(ctx, chatID, "Не удалось подготовить выгрузку.")
		return
	}

	doc := tgbotapi.NewDocument(chatID, tgbotapi.FileBytes{
		Name:  "breaks_" + day + ".xlsx",
		Bytes: data,
	})
	b.send(ctx, doc)
}

func (b *Bot) handleCallback(ctx context.Context, cq *tgbotapi.CallbackQuery) {
	if cq == nil || cq.Message == nil {
		return
	}
	data := cq.Data
	b.answerCallback(cq.ID)
	if data == "noop" {
		return
	}

	userID := cq.From.ID
	chatID := cq.Message.Chat.ID

	switch {
	case strings.HasPrefix(data, "slot:"):
		b.handleSlotPick(ctx, chatID, cq, strings.TrimPrefix(data, "slot:"))
	case strings.HasPrefix(data, "cancel:"):
		b.handleCancelPick(ctx, chatID, userID, strings.TrimPrefix(data, "cancel:"))
	case strings.HasPrefix(data, "confirm_cancel:"):
		b.handleCancelConfirm(ctx, chatID, userID, strings.TrimPrefix(data, "confirm_cancel:"))
	case data == "keep":
		_ = b.state.ClearState(ctx, userID)
		b.reply(ctx, chatID, "Запись сохранена.")
	case data == "refresh":
		b.handleBook(ctx, chatID)
	}
}

func (b *Bot) handleSlotPick(ctx context.Context, chatID int64, cq *tgbotapi.CallbackQuery, idStr string) {
	slotID, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		b.reply(ctx, chatID, "Некорректный перерыв.")
		return
	}

	user := userFromCallback(cq)
	conf, err := b.svc.Reserve(ctx, user, slotID)
	switch {
	case err == nil:
		b.reply(ctx, chatID, formatConfirmation(conf, b.loc))
	case errors.Is(err, database.ErrSlotNotFound):
		b.reply(ctx, chatID, "Такого перерыва уже нет. Обновите список.")
	case errors.Is(err, database.ErrSlotFull):
		b.reply(ctx, chatID, "Увы, все места на этот перерыв заняты.")
		b.handleBook(ctx, chatID)
	case errors.Is(err, database.ErrAlreadyBooked):
		b.reply(ctx, chatID, "Вы уже записаны на этот перерыв.")
	default:
		zerolog.Ctx(ctx).Error().Err(err).Int64("slot_id", slotID).Msg("Reserve failed")
		b.reply(ctx, chatID, "Не удалось забронировать, попробуйте ещё раз.")
	}
}

func (b *Bot) handleCancelPick(ctx context.Context, chatID, userID int64, idStr string) {
	bookingID, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		b.reply(ctx, chatID, "Некорректная запись.")
		return
	}

	if err := b.state.SetState(ctx, &models.UserState{
		UserID: userID,
		Step:   stepCancelConfirm,
		Data:   map[string]interface{}{"booking_id": bookingID},
	}); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Msg("Failed to store cancel state")
	}

	out := tgbotapi.NewMessage(chatID, "Отменить эту запись?")
	out.ReplyMarkup = confirmCancelKeyboard(bookingID)
	b.send(ctx, out)
}

func (b *Bot) handleCancelConfirm(ctx context.Context, chatID, userID int64, idStr string) {
	bookingID, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		b.reply(ctx, chatID, "Некорректная запись.")
		return
	}

	st, err := b.state.GetState(ctx, userID)
	if err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Msg("Failed to read cancel state")
	}
	if st == nil || st.Step != stepCancelConfirm || st.GetInt64("booking_id") != bookingID {
		b.reply(ctx, chatID, "Сценарий устарел, откройте «Мои записи» заново.")
		return
	}

	slot, err := b.svc.Cancel(ctx, userID, bookingID)
	_ = b.state.ClearState(ctx, userID)
	switch {
	case err == nil:
		b.reply(ctx, chatID, "Запись на "+slot.TimeLabel(b.loc)+" отменена.")
	case errors.Is(err, database.ErrBookingNotFound):
		b.reply(ctx, chatID, "Запись не найдена или уже отменена.")
	case errors.Is(err, database.ErrNotOwner):
		b.reply(ctx, chatID, "Нельзя отменить чужую запись.")
	default:
		zerolog.Ctx(ctx).Error().Err(err).Int64("booking_id", bookingID).Msg("Cancel failed")
		b.reply(ctx, chatID, "Не удалось отменить запись.")
	}
}

// allowUser enforces the per-user request budget. Storage errors fail
// open: a broken state repo must not lock everyone out.
func (b *Bot) allowUser(ctx context.Context, userID int64) bool {
	ok, err := b.state.CheckRateLimit(ctx, userID, b.userPerMinute, time.Minute)
	if err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Msg("Rate limit check failed")
		return true
	}
	return ok
}

func (b *Bot) isManager(id int64) bool {
	_, ok := b.managers[id]
	return ok
}

func (b *Bot) reply(ctx context.Context, chatID int64, text string) {
	b.send(ctx, tgbotapi.NewMessage(chatID, text))
}

func (b *Bot) send(ctx context.Context, msg tgbotapi.Chattable) {
	if err := b.limiter.Wait(ctx); err != nil {
		return
	}
	if _, err := b.tg.Send(msg); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Msg("Telegram send failed")
	}
}

func (b *Bot) answerCallback(id string) {
	_, _ = b.tg.Request(tgbotapi.NewCallback(id, ""))
}

func userFromMessage(msg *tgbotapi.Message) *models.User {
	return &models.User{
		TelegramID: msg.From.ID,
		Username:   msg.From.UserName,
		FirstName:  msg.From.FirstName,
	}
}

func userFromCallback(cq *tgbotapi.CallbackQuery) *models.User {
	return &models.User{
		TelegramID: cq.From.ID,
		Username:   cq.From.UserName,
		FirstName:  cq.From.FirstName,
	}
}
