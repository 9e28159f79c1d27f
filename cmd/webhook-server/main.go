package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/agendabot/clinic-scheduling/internal/calendar"
	"github.com/agendabot/clinic-scheduling/internal/config"
	redisclient "github.com/agendabot/clinic-scheduling/internal/redis"
	"github.com/agendabot/clinic-scheduling/internal/schedule"
	"github.com/agendabot/clinic-scheduling/internal/webhook"
)

const version = "1.2.0"

func main() {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	logger.Info().Msg("webhook-server starting up")

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("config load error")
	}
	logger.Info().Str("env", cfg.Env).Str("http_port", cfg.HTTPPort).Str("calendar_id", cfg.CalendarID).Msg("configured")

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		logger.Fatal().Err(err).Str("timezone", cfg.Timezone).Msg("invalid timezone")
	}

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := calendar.NewGoogleStore(rootCtx, cfg.CalendarID, cfg.CredentialsFile, loc)
	if err != nil {
		logger.Fatal().Err(err).Msg("calendar client error")
	}

	// The per-slot booking lock is optional hardening: without Redis the
	// engine still re-checks availability before every insert.
	var rdb *redis.Client
	var locker redisclient.Locker
	if cfg.RedisAddr != "" {
		rdb, err = redisclient.NewRedisClient(cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword)
		if err != nil {
			logger.Fatal().Err(err).Msg("redis connection error")
		}
		defer func() {
			if err := rdb.Close(); err != nil {
				logger.Error().Err(err).Msg("error closing redis")
			}
		}()
		locker = redisclient.NewRedisSlotLocker(rdb, cfg.LockTTL)
		logger.Info().Msg("slot booking lock enabled")
	}

	svc := schedule.NewService(store, locker, cfg, loc, logger)
	handler := webhook.NewHandler(svc, loc, logger)

	router := webhook.NewRouter(webhook.RouterConfig{
		Handler: handler,
		Redis:   rdb,
		Env:     cfg.Env,
		Version: version,
		Logger:  logger,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("http server error")
		}
	}()

	<-rootCtx.Done()
	logger.Info().Msg("shutting down webhook-server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("shutdown error")
	}
}
