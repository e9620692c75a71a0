// Package bootstrap wires configuration into runtime collaborators.
// Builders return nil for optional pieces that are not configured, so
// callers can hand the result straight to the dialogue engine.
package bootstrap

import (
	"context"
	"crypto/tls"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/redis/go-redis/v9"

	"github.com/zhukovDV72toru/alice/internal/bookings"
	appconfig "github.com/zhukovDV72toru/alice/internal/config"
	"github.com/zhukovDV72toru/alice/internal/observability/metrics"
	"github.com/zhukovDV72toru/alice/internal/registry"
	"github.com/zhukovDV72toru/alice/internal/tasks"
	"github.com/zhukovDV72toru/alice/pkg/logging"
)

// BuildRedisClient returns a configured Redis client or nil when disabled.
// When verify is true, a ping is issued and failures return nil.
func BuildRedisClient(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger, verify bool) *redis.Client {
	if cfg == nil || strings.TrimSpace(cfg.RedisAddr) == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	if ctx == nil {
		ctx = context.Background()
	}

	redisOptions := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}
	if cfg.RedisTLS {
		redisOptions.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	client := redis.NewClient(redisOptions)
	if !verify {
		return client
	}
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis not available", "error", err)
		return nil
	}
	return client
}

// BuildPostgres opens the booking journal database or returns nil when
// no DATABASE_URL is configured. Connection failures are reported, not
// fatal; the skill books fine without the journal.
func BuildPostgres(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) *sql.DB {
	if cfg == nil || strings.TrimSpace(cfg.DatabaseURL) == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	if ctx == nil {
		ctx = context.Background()
	}

	db, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		logger.Warn("postgres open failed", "error", err)
		return nil
	}
	if err := db.PingContext(ctx); err != nil {
		logger.Warn("postgres not available", "error", err)
		_ = db.Close()
		return nil
	}
	return db
}

// BuildJournal wires the optional appointment journal.
func BuildJournal(db *sql.DB, logger *logging.Logger) *bookings.Journal {
	journal := bookings.NewJournal(db)
	if journal != nil && logger != nil {
		logger.Info("appointment journal enabled")
	}
	return journal
}

// BuildRegistryClient constructs the SOAP registry client.
func BuildRegistryClient(cfg *appconfig.Config, logger *logging.Logger) (registry.Client, error) {
	if cfg == nil {
		return nil, fmt.Errorf("bootstrap: config is required")
	}
	if strings.TrimSpace(cfg.RegistryURL) == "" {
		return nil, fmt.Errorf("bootstrap: FER_URL is required")
	}
	return registry.NewSOAPClient(cfg.RegistryURL, cfg.RegistryLogin, cfg.RegistryPassword, cfg.RegistryTimeout, logger)
}

// BuildCoordinator assembles the task coordinator from config and binds
// the registry executors.
func BuildCoordinator(redisClient *redis.Client, client registry.Client, cfg *appconfig.Config, logger *logging.Logger, m *metrics.Metrics) *tasks.Coordinator {
	opts := []tasks.Option{tasks.WithMetrics(m)}
	if cfg != nil {
		if cfg.WorkerCount > 0 {
			opts = append(opts, tasks.WithWorkers(cfg.WorkerCount))
		}
		if cfg.TaskMaxAttempts > 0 {
			opts = append(opts, tasks.WithRetryPolicy(cfg.TaskMaxAttempts, cfg.TaskRetryDelay))
		}
	}
	coordinator := tasks.NewCoordinator(redisClient, logger, opts...)
	tasks.RegisterRegistryExecutors(coordinator, client)
	return coordinator
}
