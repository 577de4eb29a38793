// Package config loads and validates application configuration from environment variables.
package config

import (
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pkordes/barcrawl/backend/internal/routing"
	"github.com/pkordes/barcrawl/backend/internal/worker"
)

// Config holds all configuration values for the API server.
// Values are populated by Load from environment variables.
type Config struct {
	// Port is the TCP port the HTTP server listens on. Defaults to "8080".
	Port string

	// DatabaseURL is the Postgres connection string. Required.
	DatabaseURL string

	// JWTSecret verifies the HS256 signature of bearer tokens. Required.
	JWTSecret string

	// LogLevel controls the minimum log level. Defaults to "info".
	// Valid values: debug, info, warn, error.
	LogLevel string

	// LogFormat is "json" (default) or "text" for coloured console output.
	LogFormat string

	// CORSOrigins is the list of allowed cross-origin request origins.
	// Defaults to ["http://localhost:5173"] (Vite dev server).
	// Set CORS_ORIGINS to a comma-separated list to override.
	CORSOrigins []string

	// MaxBodyBytes caps request bodies. Defaults to 1 MiB.
	MaxBodyBytes int64

	// RabbitMQURL, when set, publishes routing notifications to RabbitMQ.
	// Otherwise they are only logged.
	RabbitMQURL string

	// Routing holds the scoring constants. WALKING_SPEED_KPH, DWELL_MINUTES,
	// and MIN_WAIT_MINUTES override the defaults.
	Routing routing.Params

	// Worker sizes the routing dispatcher (ROUTING_QUEUE_SIZE, ROUTING_WORKERS).
	Worker worker.Config
}

// Load reads configuration from environment variables and returns a Config.
// Returns an error listing any required variables that are not set, or the
// first variable that does not parse.
func Load() (Config, error) {
	cfg := Config{
		Port:        getEnv("PORT", "8080"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		LogFormat:   getEnv("LOG_FORMAT", "json"),
		CORSOrigins: splitCSV(getEnv("CORS_ORIGINS", "http://localhost:5173")),
		RabbitMQURL: os.Getenv("RABBITMQ_URL"),
		Routing:     routing.DefaultParams(),
		Worker:      worker.DefaultConfig(),
	}

	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}
	cfg.JWTSecret = os.Getenv("JWT_SECRET")
	if cfg.JWTSecret == "" {
		missing = append(missing, "JWT_SECRET")
	}

	if len(missing) > 0 {
		return Config{}, fmt.Errorf("required environment variables not set: %s", strings.Join(missing, ", "))
	}

	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		return Config{}, fmt.Errorf("LOG_FORMAT: must be json or text, got %q", cfg.LogFormat)
	}

	var err error
	if cfg.MaxBodyBytes, err = getInt64("MAX_BODY_BYTES", 1<<20); err != nil {
		return Config{}, err
	}
	if cfg.Worker.QueueSize, err = getInt("ROUTING_QUEUE_SIZE", cfg.Worker.QueueSize); err != nil {
		return Config{}, err
	}
	if cfg.Worker.Workers, err = getInt("ROUTING_WORKERS", cfg.Worker.Workers); err != nil {
		return Config{}, err
	}
	if cfg.Routing.WalkingSpeedKPH, err = getFloat("WALKING_SPEED_KPH", cfg.Routing.WalkingSpeedKPH); err != nil {
		return Config{}, err
	}
	if cfg.Routing.DwellTime, err = getMinutes("DWELL_MINUTES", cfg.Routing.DwellTime); err != nil {
		return Config{}, err
	}
	if cfg.Routing.MinWait, err = getMinutes("MIN_WAIT_MINUTES", cfg.Routing.MinWait); err != nil {
		return Config{}, err
	}
	if err := cfg.Routing.Validate(); err != nil {
		return Config{}, fmt.Errorf("routing: %w", err)
	}

	return cfg, nil
}

// getEnv returns the value of the environment variable named by key,
// or fallback if the variable is not set or is empty.
func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%s: must be a positive integer, got %q", key, v)
	}
	return n, nil
}

func getInt64(key string, fallback int64) (int64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%s: must be a positive integer, got %q", key, v)
	}
	return n, nil
}

func getFloat(key string, fallback float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("%s: must be a finite number, got %q", key, v)
	}
	return f, nil
}

// getMinutes reads a whole number of minutes.
func getMinutes(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%s: must be a whole number of minutes, got %q", key, v)
	}
	return time.Duration(n) * time.Minute, nil
}

// splitCSV splits a comma-separated string into a trimmed slice, ignoring empty entries.
func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if t := strings.TrimSpace(part); t != "" {
			out = append(out, t)
		}
	}
	return out
}
