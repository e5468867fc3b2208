package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration.
type Config struct {
	ServerPort      string
	GinMode         string
	LogLevel        string
	LogFormat       string
	DatabaseURL     string
	MaxDBConns      int32
	RedisURL        string
	JWTSecret       string
	JWTIssuer       string
	JWTExpiry       time.Duration
	BcryptCost      int
	DefaultLanguage string
	// AllowedOrigins controls HTTP CORS and WebSocket origin validation.
	// Empty slice means all origins are permitted (dev default).
	AllowedOrigins []string

	PaperCacheTTL   time.Duration
	SweepInterval   time.Duration
	SweepBatchSize  int
	AnswerRateLimit int
}

// Load reads configuration from environment variables with sensible defaults.
// It loads .env file if present but does not fail if missing.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		ServerPort:      getEnv("PORT", "8080"),
		GinMode:         getEnv("GIN_MODE", "debug"),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		LogFormat:       getEnv("LOG_FORMAT", "json"),
		DatabaseURL:     getEnv("DATABASE_URL", ""),
		MaxDBConns:      int32(getEnvInt("DB_MAX_CONNS", 20)),
		RedisURL:        getEnv("REDIS_URL", "redis://localhost:6379/0"),
		JWTSecret:       getEnv("JWT_SECRET", ""),
		JWTIssuer:       getEnv("JWT_ISSUER", "examhub"),
		JWTExpiry:       time.Duration(getEnvInt("JWT_TTL_HOURS", 12)) * time.Hour,
		BcryptCost:      getEnvInt("BCRYPT_COST", 10),
		DefaultLanguage: getEnv("DEFAULT_LANGUAGE", "en"),
		AllowedOrigins:  parseOrigins(getEnv("ALLOWED_ORIGINS", "")),
		PaperCacheTTL:   time.Duration(getEnvInt("PAPER_CACHE_TTL_MINUTES", 30)) * time.Minute,
		SweepInterval:   time.Duration(getEnvInt("SWEEP_INTERVAL_SECONDS", 5)) * time.Second,
		SweepBatchSize:  getEnvInt("SWEEP_BATCH_SIZE", 100),
		AnswerRateLimit: getEnvInt("ANSWER_RATE_LIMIT_PER_MINUTE", 120),
	}
}

// Validate reports the first setting that would leave the server unusable.
func (c *Config) Validate() error {
	switch {
	case c.DatabaseURL == "":
		return errors.New("DATABASE_URL is required")
	case c.JWTSecret == "":
		return errors.New("JWT_SECRET is required")
	case c.SweepInterval <= 0:
		return errors.New("SWEEP_INTERVAL_SECONDS must be positive")
	case c.SweepBatchSize <= 0:
		return errors.New("SWEEP_BATCH_SIZE must be positive")
	case c.AnswerRateLimit <= 0:
		return errors.New("ANSWER_RATE_LIMIT_PER_MINUTE must be positive")
	case c.PaperCacheTTL <= 0:
		return errors.New("PAPER_CACHE_TTL_MINUTES must be positive")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

// parseOrigins splits a comma-separated origins string into a trimmed slice.
// Returns nil (allow-all) if the input is empty.
func parseOrigins(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	origins := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	return origins
}
