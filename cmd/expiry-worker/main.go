package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/wardline/clinic-workflow/internal/appointment"
	"github.com/wardline/clinic-workflow/internal/audit"
	"github.com/wardline/clinic-workflow/internal/clock"
	"github.com/wardline/clinic-workflow/internal/config"
	"github.com/wardline/clinic-workflow/internal/db"
	"github.com/wardline/clinic-workflow/internal/notify"
	redisclient "github.com/wardline/clinic-workflow/internal/redis"
	"github.com/wardline/clinic-workflow/internal/theater"
)

// expiry-worker sweeps theater bookings whose provisional hold outlived its
// TTL and marks them expired, freeing the slot for other cases. It also
// cancels appointments that sat unconfirmed past the appointment TTL.
func main() {
	logger := zerolog.New(os.Stdout).With().Timestamp().Str("service", "expiry-worker").Logger()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("config load error")
	}
	if cfg.Env == "dev" {
		logger = logger.Output(zerolog.ConsoleWriter{Out: os.Stdout})
	}

	logger.Info().Str("env", cfg.Env).Str("schedule", cfg.SweepSchedule).Msg("expiry-worker starting up")

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
	cancelPg()
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres connection error")
	}
	defer pgPool.Close()
	logger.Info().Msg("connected to Postgres")

	rdb, err := redisclient.NewRedisClient(cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis connection error")
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			logger.Error().Err(err).Msg("error closing redis")
		}
	}()
	logger.Info().Msg("connected to Redis")

	theaterSvc := theater.NewService(
		theater.NewPgRepository(pgPool),
		redisclient.NewRedisLocker(rdb, cfg.LockTTL),
		notify.NewLogMailer(logger),
		audit.NewPgRecorder(pgPool),
		clock.System(),
		logger,
		cfg.HoldTTL,
	)
	apptSvc := appointment.NewService(
		appointment.NewPgRepository(pgPool),
		notify.NewLogMailer(logger),
		audit.NewPgRecorder(pgPool),
		clock.System(),
		logger,
	)

	sweep := func() {
		runCtx, cancel := context.WithTimeout(rootCtx, 20*time.Second)
		defer cancel()

		start := time.Now()
		holds, err := theaterSvc.ExpireOverdue(runCtx)
		if err != nil {
			logger.Error().Err(err).Msg("hold sweep error")
			return
		}
		appts, err := apptSvc.ExpireStale(runCtx, cfg.AppointmentTTL)
		if err != nil {
			logger.Error().Err(err).Msg("appointment sweep error")
			return
		}
		logger.Info().
			Int("expired_holds", holds).
			Int("expired_appointments", appts).
			Dur("took", time.Since(start)).
			Msg("sweep run complete")
	}

	// Run once at startup so a restart never leaves stale holds waiting for
	// the first tick.
	sweep()

	c := cron.New()
	if _, err := c.AddFunc(cfg.SweepSchedule, sweep); err != nil {
		logger.Fatal().Err(err).Str("schedule", cfg.SweepSchedule).Msg("invalid sweep schedule")
	}
	c.Start()

	<-rootCtx.Done()
	logger.Info().Msg("shutdown signal received, stopping expiry worker")

	stopCtx := c.Stop()
	<-stopCtx.Done()
}
