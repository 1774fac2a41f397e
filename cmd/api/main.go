package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/namdorg/engage-upgrades/internal/app"
	"github.com/namdorg/engage-upgrades/internal/applog"
	"github.com/namdorg/engage-upgrades/internal/clock"
	"github.com/namdorg/engage-upgrades/internal/config"
	"github.com/namdorg/engage-upgrades/internal/storage/postgres"
	"github.com/namdorg/engage-upgrades/internal/tasks"
	transporthttp "github.com/namdorg/engage-upgrades/internal/transport/http"
	"github.com/namdorg/engage-upgrades/migrations"
	"github.com/sirupsen/logrus"
)

const (
	serviceName     = "engage-upgrades"
	shutdownTimeout = 10 * time.Second
)

func main() {
	config.LoadDotEnv(logrus.StandardLogger())

	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("load config")
	}

	logger, err := applog.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		logrus.WithError(err).Fatal("configure logger")
	}

	startupCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	poolCfg, err := pgxpool.ParseConfig(cfg.Database.URL)
	if err != nil {
		logger.WithError(err).Fatal("parse database url")
	}
	if cfg.Database.MaxConns > 0 {
		poolCfg.MaxConns = cfg.Database.MaxConns
	}
	pool, err := pgxpool.NewWithConfig(startupCtx, poolCfg)
	if err != nil {
		logger.WithError(err).Fatal("connect to db")
	}
	defer pool.Close()

	if err := pool.Ping(startupCtx); err != nil {
		logger.WithError(err).Fatal("db ping")
	}
	applied, err := migrations.Apply(startupCtx, pool)
	if err != nil {
		logger.WithError(err).Fatal("apply migrations")
	}
	if len(applied) > 0 {
		logger.WithField("migrations", applied).Info("schema migrated")
	}

	clk := clock.NewSystem()
	reservationRepo := postgres.NewReservationRepository(pool)
	settlementRepo := postgres.NewSettlementRepository(pool)
	catalogRepo := postgres.NewCatalogRepository(pool)

	managerOpts := []app.ReservationManagerOption{app.WithReservationLogger(logger)}
	if cfg.CloudTasks.Enabled() {
		scheduler, err := tasks.NewScheduler(startupCtx, tasks.Options{
			QueuePath:       cfg.CloudTasks.QueuePath(),
			CallbackURL:     cfg.CloudTasks.CallbackURL,
			Token:           cfg.Server.InternalToken,
			CredentialsFile: cfg.CloudTasks.CredentialsFile,
		}, logger)
		if err != nil {
			logger.WithError(err).Fatal("cloud tasks scheduler")
		}
		defer scheduler.Close()
		managerOpts = append(managerOpts, app.WithExpiryScheduler(scheduler))
		logger.WithField("queue", cfg.CloudTasks.QueuePath()).Info("expiry callbacks scheduled on cloud tasks")
	}

	manager, err := app.NewReservationManager(reservationRepo, clk, cfg.Reservations.TTL, managerOpts...)
	if err != nil {
		logger.WithError(err).Fatal("reservation manager")
	}
	reaper, err := app.NewExpiryReaper(settlementRepo, clk, cfg.Reservations.ReaperInterval,
		app.WithReaperBatchSize(cfg.Reservations.ReaperBatchSize),
		app.WithReaperLogger(logger),
	)
	if err != nil {
		logger.WithError(err).Fatal("expiry reaper")
	}

	if cfg.Server.InternalToken == "" {
		logger.Warn("INTERNAL_TOKEN not set, /internal and /admin routes are disabled")
	}
	if cfg.Stripe.WebhookSecret == "" {
		logger.Warn("STRIPE_WEBHOOK_SECRET not set, stripe webhook is disabled")
	}

	catalog := app.NewCatalogService(catalogRepo, clk)
	handler := transporthttp.NewRouter(transporthttp.Services{
		Stock:        app.NewStockLedger(reservationRepo, catalog, clk),
		Reservations: manager,
		Settlement:   app.NewFinalizationCoordinator(settlementRepo, clk, logger),
		Expiry:       reaper,
		Catalog:      catalog,
	}, transporthttp.RouterOptions{
		ServiceName:         serviceName,
		Logger:              logger,
		CORSOrigins:         cfg.Server.CORSOrigins,
		InternalToken:       cfg.Server.InternalToken,
		StripeWebhookSecret: cfg.Stripe.WebhookSecret,
		Ready:               pool,
	})

	server := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	stopCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := reaper.Run(stopCtx); err != nil {
			logger.WithError(err).Error("expiry reaper stopped")
		}
	}()

	logger.WithFields(logrus.Fields{
		"port":            cfg.Server.Port,
		"reservation_ttl": cfg.Reservations.TTL.String(),
		"reaper_interval": cfg.Reservations.ReaperInterval.String(),
	}).Info("api listening")

	srvErr := make(chan error, 1)
	go func() {
		srvErr <- server.ListenAndServe()
	}()

	select {
	case err := <-srvErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Error("server error")
		}
		stop()
	case <-stopCtx.Done():
		logger.Info("shutdown signal received, stopping server")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.WithError(err).Error("server shutdown error")
	}
	wg.Wait()
	logger.Info("server stopped")
}
