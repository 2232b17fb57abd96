package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"breakbot/internal/audit"
	"breakbot/internal/bot"
	"breakbot/internal/config"
	"breakbot/internal/database"
	"breakbot/internal/events"
	"breakbot/internal/google"
	"breakbot/internal/metrics"
	"breakbot/internal/repository"
	"breakbot/internal/service"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func main() {
	_ = godotenv.Load()

	output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	logger := zerolog.New(output).With().Timestamp().Logger()

	cfg, err := config.Load(os.Getenv("BREAKBOT_CONFIG_PATH"))
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if cfg.Telegram.BotToken == "" || cfg.Telegram.BotToken == "YOUR_BOT_TOKEN_HERE" {
		logger.Fatal().Msg("set telegram.bot_token in config")
	}

	loc, err := cfg.Location()
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid timezone")
	}

	db, err := database.NewDB(cfg.Database.Path, &logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("open db error")
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Conversation state lives in Redis when configured, with an
	// in-memory fallback either way.
	var rdb *redis.Client
	var stateRepo repository.StateRepository = repository.NewMemoryStateRepository()
	if cfg.Redis.Address != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		stateRepo = repository.NewFailoverStateRepository(
			repository.NewRedisStateRepository(rdb),
			repository.NewMemoryStateRepository(),
			&logger,
		)
	}

	bus := events.NewEventBus()
	svc := service.NewBookingService(db, bus, cfg.Schedule, loc, &logger)

	if cfg.Monitoring.PrometheusEnabled {
		metrics.Register()
		bus.Subscribe(events.TypeBookingCreated, func(events.Event) error {
			metrics.IncBookingCreated()
			return nil
		})
		bus.Subscribe(events.TypeBookingCancelled, func(events.Event) error {
			metrics.IncBookingCancelled()
			return nil
		})
	}

	if cfg.Sheets.SpreadsheetID != "" && cfg.Sheets.CredentialsFile != "" {
		sheetsSvc, err := google.NewSheetsService(ctx, cfg.Sheets.CredentialsFile, cfg.Sheets.SpreadsheetID, loc, &logger)
		if err != nil {
			logger.Error().Err(err).Msg("sheets mirror disabled")
		} else {
			mirror := rosterMirror(svc, sheetsSvc, loc, &logger)
			bus.Subscribe(events.TypeBookingCreated, mirror)
			bus.Subscribe(events.TypeBookingCancelled, mirror)
			logger.Info().Msg("Sheets roster mirror enabled")
		}
	}

	if cfg.Backup.Enabled {
		backup := database.NewBackupService(cfg.Database.Path, cfg.Backup, &logger)
		go backup.Start(ctx)
	}

	exporter := audit.NewExporter(loc, &logger)
	b, err := bot.New(
		cfg.Telegram.BotToken,
		cfg.Telegram.Debug,
		svc,
		stateRepo,
		exporter,
		cfg.Managers,
		cfg.RateLimit.PerUserPerMinute,
		&logger,
	)
	if err != nil {
		logger.Fatal().Err(err).Msg("create bot error")
	}

	if cfg.Monitoring.HealthCheckPort == 0 {
		cfg.Monitoring.HealthCheckPort = 8090
	}
	go startHealthServer(ctx, cfg.Monitoring.HealthCheckPort, db, rdb, &logger)

	if cfg.Monitoring.PrometheusEnabled {
		if cfg.Monitoring.PrometheusPort == 0 {
			cfg.Monitoring.PrometheusPort = 9090
		}
		go startMetricsServer(ctx, cfg.Monitoring.PrometheusPort, &logger)
	}

	logger.Info().Msg("Break booking bot started")
	b.Start(ctx)
}

// rosterMirror pushes the event's day roster to the sheet without
// blocking the publisher.
func rosterMirror(svc *service.BookingService, sheetsSvc *google.SheetsService, loc *time.Location, logger *zerolog.Logger) events.EventHandler {
	return func(e events.Event) error {
		var payload service.BookingEvent
		if err := json.Unmarshal(e.Payload, &payload); err != nil {
			return err
		}
		day, err := time.ParseInLocation("2006-01-02", payload.Day, loc)
		if err != nil {
			return err
		}
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()
			roster, err := svc.Roster(ctx, day)
			if err != nil {
				logger.Warn().Err(err).Msg("Roster load for sheet mirror failed")
				return
			}
			if err := sheetsSvc.SyncRoster(ctx, payload.Day, roster); err != nil {
				logger.Warn().Err(err).Msg("Sheet mirror sync failed")
			}
		}()
		return nil
	}
}

func startHealthServer(ctx context.Context, port int, db *database.DB, rdb *redis.Client, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		ctxPing, cancel := context.WithTimeout(ctx, time.Second)
		defer cancel()
		if err := db.PingContext(ctxPing); err != nil {
			http.Error(w, "db not ready", http.StatusServiceUnavailable)
			return
		}
		if rdb != nil {
			if err := rdb.Ping(ctxPing).Err(); err != nil {
				http.Error(w, "redis not ready", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("health server error")
	}
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("metrics server error")
	}
}
