package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("ENV", "")
	t.Setenv("LOG_LEVEL", "")
	t.Setenv("FER_URL", "")
	cfg := Load()
	if cfg.Port != "8000" {
		t.Fatalf("expected default port, got %s", cfg.Port)
	}
	if cfg.Env != "development" {
		t.Fatalf("expected default env, got %s", cfg.Env)
	}
	if cfg.RegistryURL != "" {
		t.Fatalf("expected empty registry url, got %s", cfg.RegistryURL)
	}
	if cfg.RegistryTimeout != 10*time.Second {
		t.Fatalf("expected default registry timeout, got %s", cfg.RegistryTimeout)
	}
	if cfg.TaskMaxAttempts != 3 {
		t.Fatalf("expected default task attempts, got %d", cfg.TaskMaxAttempts)
	}
	if cfg.TaskRetryDelay != 60*time.Second {
		t.Fatalf("expected default retry delay, got %s", cfg.TaskRetryDelay)
	}
	if cfg.DefaultProfessionID != 109 {
		t.Fatalf("expected default profession id, got %d", cfg.DefaultProfessionID)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("ENV", "production")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("FER_URL", "https://registry.example/soap")
	t.Setenv("FER_TIMEOUT", "30s")
	t.Setenv("REDIS_ADDR", "redis:6380")
	t.Setenv("REDIS_TLS", "true")
	t.Setenv("WORKER_COUNT", "8")
	t.Setenv("BOOKING_WAIT", "5s")
	t.Setenv("DATABASE_URL", "postgres://user@host/db")

	cfg := Load()
	if cfg.Port != "9090" {
		t.Fatalf("expected overridden port, got %s", cfg.Port)
	}
	if cfg.Env != "production" {
		t.Fatalf("expected overridden env, got %s", cfg.Env)
	}
	if cfg.RegistryURL != "https://registry.example/soap" {
		t.Fatalf("expected overridden registry url, got %s", cfg.RegistryURL)
	}
	if cfg.RegistryTimeout != 30*time.Second {
		t.Fatalf("expected overridden registry timeout, got %s", cfg.RegistryTimeout)
	}
	if cfg.RedisAddr != "redis:6380" {
		t.Fatalf("expected overridden redis addr, got %s", cfg.RedisAddr)
	}
	if !cfg.RedisTLS {
		t.Fatal("expected redis tls enabled")
	}
	if cfg.WorkerCount != 8 {
		t.Fatalf("expected overridden worker count, got %d", cfg.WorkerCount)
	}
	if cfg.BookingWait != 5*time.Second {
		t.Fatalf("expected overridden booking wait, got %s", cfg.BookingWait)
	}
	if cfg.DatabaseURL != "postgres://user@host/db" {
		t.Fatalf("expected overridden database url, got %s", cfg.DatabaseURL)
	}
}

func TestLoadIgnoresMalformedValues(t *testing.T) {
	t.Setenv("WORKER_COUNT", "many")
	t.Setenv("FER_TIMEOUT", "soon")
	t.Setenv("REDIS_TLS", "sure")

	cfg := Load()
	if cfg.WorkerCount != 2 {
		t.Fatalf("expected default worker count, got %d", cfg.WorkerCount)
	}
	if cfg.RegistryTimeout != 10*time.Second {
		t.Fatalf("expected default registry timeout, got %s", cfg.RegistryTimeout)
	}
	if cfg.RedisTLS {
		t.Fatal("expected redis tls disabled")
	}
}
