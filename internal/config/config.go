package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds application configuration
type Config struct {
	Port     string
	Env      string
	LogLevel string

	// External registry (FER) endpoint
	RegistryURL      string
	RegistryLogin    string
	RegistryPassword string
	RegistryTimeout  time.Duration

	// Redis session / task result storage
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisTLS      bool

	// Async task coordinator
	WorkerCount     int
	TaskMaxAttempts int
	TaskRetryDelay  time.Duration
	BookingWait     time.Duration

	// Optional booking journal (Postgres); empty disables persistence
	DatabaseURL string

	// Local data files
	ProfessionsCSV    string
	FacilityAliasJSON string

	// Default profession used for the speculative facility prefetch
	DefaultProfessionID int
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:     getEnv("PORT", "8000"),
		Env:      getEnv("ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		RegistryURL:      getEnv("FER_URL", ""),
		RegistryLogin:    getEnv("FER_LOGIN", ""),
		RegistryPassword: getEnv("FER_PASSWORD", ""),
		RegistryTimeout:  getEnvAsDuration("FER_TIMEOUT", 10*time.Second),

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvAsInt("REDIS_DB", 0),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),

		WorkerCount:     getEnvAsInt("WORKER_COUNT", 2),
		TaskMaxAttempts: getEnvAsInt("TASK_MAX_ATTEMPTS", 3),
		TaskRetryDelay:  getEnvAsDuration("TASK_RETRY_DELAY", 60*time.Second),
		BookingWait:     getEnvAsDuration("BOOKING_WAIT", 3*time.Second),

		DatabaseURL: getEnv("DATABASE_URL", ""),

		ProfessionsCSV:    getEnv("PROFESSIONS_CSV", "professions.csv"),
		FacilityAliasJSON: getEnv("FACILITY_ALIAS_JSON", ""),

		DefaultProfessionID: getEnvAsInt("DEFAULT_PROFESSION_ID", 109),
	}
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}
