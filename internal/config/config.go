package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

const defaultJWTSecret = "change-this-secret"

type Config struct {
	Port          string
	DBPath        string
	MigrationsDir string
	LogLevel      string

	JWTSecret   string
	TokenTTL    time.Duration
	CORSOrigins []string

	// CollaboratorTimeout bounds each session write made by a live timer.
	CollaboratorTimeout time.Duration
	// ShutdownTimeout is how long in-flight requests and event streams get
	// to finish after a stop signal.
	ShutdownTimeout time.Duration
}

func Load() Config {
	return Config{
		Port:                getEnv("PORT", "8080"),
		DBPath:              getEnv("DB_PATH", "./data/cortex.db"),
		MigrationsDir:       getEnv("MIGRATIONS_DIR", "./migrations"),
		LogLevel:            getEnv("LOG_LEVEL", "info"),
		JWTSecret:           getEnv("JWT_SECRET", defaultJWTSecret),
		TokenTTL:            getEnvDuration("TOKEN_TTL_HOURS", time.Hour, 72),
		CORSOrigins:         getEnvList("CORS_ORIGINS", []string{"http://localhost:5173", "http://127.0.0.1:5173"}),
		CollaboratorTimeout: getEnvDuration("COLLABORATOR_TIMEOUT_SECONDS", time.Second, 5),
		ShutdownTimeout:     getEnvDuration("SHUTDOWN_TIMEOUT_SECONDS", time.Second, 10),
	}
}

// Warnings lists settings that are acceptable for development only.
func (c Config) Warnings() []string {
	var warnings []string
	if c.JWTSecret == defaultJWTSecret {
		warnings = append(warnings, "JWT_SECRET is the built-in default; set it before exposing the server")
	}
	for _, origin := range c.CORSOrigins {
		if origin == "*" {
			warnings = append(warnings, "CORS_ORIGINS allows every origin")
			break
		}
	}
	return warnings
}

func getEnv(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}

// getEnvDuration reads a positive integer count of unit.
func getEnvDuration(key string, unit time.Duration, fallback int) time.Duration {
	count := fallback
	if parsed, err := strconv.Atoi(getEnv(key, "")); err == nil && parsed > 0 {
		count = parsed
	}
	return time.Duration(count) * unit
}

func getEnvList(key string, fallback []string) []string {
	var items []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			items = append(items, trimmed)
		}
	}
	if len(items) == 0 {
		return fallback
	}
	return items
}
