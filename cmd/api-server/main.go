package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/wardline/clinic-workflow/internal/api"
	"github.com/wardline/clinic-workflow/internal/appointment"
	"github.com/wardline/clinic-workflow/internal/audit"
	"github.com/wardline/clinic-workflow/internal/clock"
	"github.com/wardline/clinic-workflow/internal/config"
	"github.com/wardline/clinic-workflow/internal/consultation"
	"github.com/wardline/clinic-workflow/internal/db"
	"github.com/wardline/clinic-workflow/internal/notify"
	redisclient "github.com/wardline/clinic-workflow/internal/redis"
	"github.com/wardline/clinic-workflow/internal/theater"
)

const version = "0.3.0"

func main() {
	logger := zerolog.New(os.Stdout).With().Timestamp().Str("service", "api-server").Logger()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("config load error")
	}
	if cfg.Env == "dev" {
		logger = logger.Output(zerolog.ConsoleWriter{Out: os.Stdout})
	}

	logger.Info().Str("env", cfg.Env).Str("http_port", cfg.HTTPPort).Msg("api-server starting up")

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

	migCtx, cancelMig := context.WithTimeout(rootCtx, 30*time.Second)
	applied, err := db.Migrate(migCtx, pgPool)
	cancelMig()
	if err != nil {
		logger.Fatal().Err(err).Msg("migration error")
	}
	logger.Info().Int("applied", applied).Msg("migrations up to date")

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

	var mailer notify.Mailer
	if cfg.SMTPHost != "" {
		mailer = notify.NewSMTPMailer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPFrom)
	} else {
		mailer = notify.NewLogMailer(logger)
	}

	recorder := audit.NewPgRecorder(pgPool)
	clk := clock.System()
	locker := redisclient.NewRedisLocker(rdb, cfg.LockTTL)

	appointments := appointment.NewService(
		appointment.NewPgRepository(pgPool), mailer, recorder, clk, logger)
	consultations := consultation.NewService(
		consultation.NewPgRepository(pgPool), appointment.NewPgRepository(pgPool),
		mailer, recorder, clk, logger)
	theaters := theater.NewService(
		theater.NewPgRepository(pgPool), locker, mailer, recorder, clk, logger, cfg.HoldTTL)

	publisher := audit.NewPublisher(pgPool, recorder, logger, audit.PublisherConfig{
		Brokers:   cfg.KafkaBrokers,
		PollEvery: cfg.OutboxPoll,
	})
	go publisher.Run(rootCtx)

	router := api.NewRouter(api.RouterConfig{
		Appointments:  appointments,
		Consultations: consultations,
		Theater:       theaters,
		PgPool:        pgPool,
		Redis:         rdb,
		Logger:        logger,
		Env:           cfg.Env,
		Version:       version,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("http server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-rootCtx.Done():
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("http server error")
		}
	}

	logger.Info().Msg("shutting down api-server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}
}
