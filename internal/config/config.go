package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Storage backends
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
)

type Config struct {
	Port             string
	Environment      string
	LogLevel         slog.Level
	LogFile          string
	StorageBackend   string
	RedisURL         string
	SQLitePath       string
	KeyPrefix        string
	AutosaveDebounce time.Duration
	StoryFile        string
	CatalogFile      string
	MaxSlots         int
	PublishEvents    bool
}

// Load reads configuration from the environment. A .env file in the working
// directory is loaded first when present; real environment variables win.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	cfg := &Config{
		Port:           getEnv("PORT", "8080"),
		Environment:    getEnv("ENVIRONMENT", "development"),
		LogLevel:       parseLogLevel(getEnv("LOG_LEVEL", "info")),
		LogFile:        getEnv("LOG_FILE", ""),
		StorageBackend: strings.ToLower(getEnv("STORAGE_BACKEND", BackendMemory)),
		RedisURL:       getEnv("REDIS_URL", "redis://localhost:6379/0"),
		SQLitePath:     getEnv("SQLITE_PATH", "story-runtime.db"),
		KeyPrefix:      getEnv("KEY_PREFIX", "story"),
		StoryFile:      getEnv("STORY_FILE", ""),
		CatalogFile:    getEnv("CATALOG_FILE", ""),
	}

	var err error
	if cfg.AutosaveDebounce, err = time.ParseDuration(getEnv("AUTOSAVE_DEBOUNCE", "500ms")); err != nil {
		return nil, fmt.Errorf("invalid AUTOSAVE_DEBOUNCE: %w", err)
	}
	if cfg.MaxSlots, err = strconv.Atoi(getEnv("MAX_SLOTS", "20")); err != nil {
		return nil, fmt.Errorf("invalid MAX_SLOTS: %w", err)
	}
	if cfg.PublishEvents, err = strconv.ParseBool(getEnv("PUBLISH_EVENTS", "false")); err != nil {
		return nil, fmt.Errorf("invalid PUBLISH_EVENTS: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks value ranges and the backend name
func (c *Config) Validate() error {
	switch c.StorageBackend {
	case BackendMemory, BackendSQLite, BackendRedis:
	default:
		return fmt.Errorf("unknown STORAGE_BACKEND: %s", c.StorageBackend)
	}
	if c.AutosaveDebounce < 0 {
		return fmt.Errorf("AUTOSAVE_DEBOUNCE cannot be negative")
	}
	if c.MaxSlots < 0 {
		return fmt.Errorf("MAX_SLOTS cannot be negative")
	}
	if c.KeyPrefix == "" {
		return fmt.Errorf("KEY_PREFIX cannot be empty")
	}
	return nil
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
