package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/zhukovDV72toru/alice/internal/api/router"
	"github.com/zhukovDV72toru/alice/internal/app/bootstrap"
	appconfig "github.com/zhukovDV72toru/alice/internal/config"
	"github.com/zhukovDV72toru/alice/internal/dialog"
	"github.com/zhukovDV72toru/alice/internal/http/handlers"
	"github.com/zhukovDV72toru/alice/internal/observability/metrics"
	"github.com/zhukovDV72toru/alice/internal/registry"
	"github.com/zhukovDV72toru/alice/internal/schedule"
	"github.com/zhukovDV72toru/alice/internal/session"
	"github.com/zhukovDV72toru/alice/pkg/logging"
)

func main() {
	// Load .env for local development; production relies on real env vars.
	_ = godotenv.Load()

	cfg := appconfig.Load()

	logger := logging.New(cfg.LogLevel)
	logger.Info("starting appointment skill API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	redisClient := bootstrap.BuildRedisClient(ctx, cfg, logger, true)
	if redisClient == nil {
		logger.Error("redis is required for sessions and task results")
		os.Exit(1)
	}
	defer redisClient.Close()

	sqlDB := bootstrap.BuildPostgres(ctx, cfg, logger)
	if sqlDB != nil {
		defer sqlDB.Close()
	}

	registryClient, err := bootstrap.BuildRegistryClient(cfg, logger)
	if err != nil {
		logger.Error("failed to build registry client", "error", err)
		os.Exit(1)
	}

	catalog, err := registry.LoadProfessionCatalog(cfg.ProfessionsCSV)
	if err != nil {
		logger.Error("failed to load profession catalog", "path", cfg.ProfessionsCSV, "error", err)
		os.Exit(1)
	}
	aliases, err := registry.LoadFacilityAliases(cfg.FacilityAliasJSON)
	if err != nil {
		logger.Error("failed to load facility aliases", "path", cfg.FacilityAliasJSON, "error", err)
		os.Exit(1)
	}

	promRegistry := prometheus.NewRegistry()
	m := metrics.New(promRegistry)

	coordinator := bootstrap.BuildCoordinator(redisClient, registryClient, cfg, logger, m)
	coordinator.Start(ctx)

	machine, err := dialog.New(dialog.Deps{
		Sessions:            session.NewStore(redisClient, nil),
		Registry:            registryClient,
		Tasks:               coordinator,
		Finder:              schedule.NewFinder(registryClient),
		Catalog:             catalog,
		Aliases:             aliases,
		Journal:             bootstrap.BuildJournal(sqlDB, logger),
		Metrics:             m,
		Logger:              logger,
		BookingWait:         cfg.BookingWait,
		DefaultProfessionID: cfg.DefaultProfessionID,
	})
	if err != nil {
		logger.Error("failed to build dialogue engine", "error", err)
		os.Exit(1)
	}

	r := router.New(&router.Config{
		Logger:         logger,
		Webhook:        handlers.NewWebhookHandler(machine, logger),
		Health:         handlers.NewHealthHandler(redisClient, sqlDB),
		MetricsHandler: promhttp.HandlerFor(promRegistry, promhttp.HandlerOpts{}),
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}

	// Workers stop on ctx cancellation; drain them before exiting so
	// in-flight bookings finish writing their results.
	coordinator.Wait()

	logger.Info("server stopped")
}
