package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type StorageBackend string

const (
	StorageMemory   StorageBackend = "memory"
	StoragePostgres StorageBackend = "postgres"
	StorageRedis    StorageBackend = "redis"
)

// Config is the deployment-provided configuration of the API service.
type Config struct {
	Port string

	Storage        StorageBackend
	DatabaseURL    string
	RedisAddr      string
	RedisPassword  string
	RedisDB        int
	RedisNamespace string

	// SettingsPrefix namespaces every rule store key ("<prefix>_type_field_id", "<prefix>_<id>_types").
	SettingsPrefix string
	// CatalogPath points at the YAML member-type/profile-field catalog; empty means no catalog.
	CatalogPath string
	DefaultLang string

	// DevSubject is used as the current user when no X-User-ID header is sent (local dev only).
	DevSubject string

	FadeDuration    time.Duration
	ShutdownTimeout time.Duration
	// IdempotencyTTL bounds how long an admin edit can be replayed under the same Idempotency-Key.
	IdempotencyTTL time.Duration
}

func LoadFromEnv() (Config, error) {
	// Reasonable defaults that make local/dev/test behavior predictable.
	cfg := Config{
		Port:            getenv("PORT", "8080"),
		Storage:         StorageBackend(strings.ToLower(getenv("STORAGE_BACKEND", string(StorageMemory)))),
		DatabaseURL:     os.Getenv("DATABASE_URL"),
		RedisAddr:       os.Getenv("REDIS_ADDR"),
		RedisPassword:   os.Getenv("REDIS_PASSWORD"),
		RedisNamespace:  getenv("REDIS_NAMESPACE", "mtcf:"),
		SettingsPrefix:  getenv("SETTINGS_PREFIX", "mtcf"),
		CatalogPath:     os.Getenv("CATALOG_PATH"),
		DefaultLang:     getenv("DEFAULT_LANG", "en"),
		DevSubject:      os.Getenv("DEV_SUBJECT"),
		FadeDuration:    100 * time.Millisecond,
		ShutdownTimeout: 10 * time.Second,
		IdempotencyTTL:  24 * time.Hour,
	}

	switch cfg.Storage {
	case StorageMemory:
	case StoragePostgres:
		if cfg.DatabaseURL == "" {
			return Config{}, fmt.Errorf("missing required env var for STORAGE_BACKEND=postgres: DATABASE_URL")
		}
	case StorageRedis:
		if cfg.RedisAddr == "" {
			return Config{}, fmt.Errorf("missing required env var for STORAGE_BACKEND=redis: REDIS_ADDR")
		}
	default:
		return Config{}, fmt.Errorf("STORAGE_BACKEND must be one of memory|postgres|redis, got %q", cfg.Storage)
	}

	if v := os.Getenv("REDIS_DB"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return Config{}, fmt.Errorf("REDIS_DB must be a non-negative integer, got %q", v)
		}
		cfg.RedisDB = n
	}
	if v := os.Getenv("FADE_DURATION"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("FADE_DURATION must be a duration (e.g. 100ms): %w", err)
		}
		cfg.FadeDuration = d
	}
	if v := os.Getenv("SHUTDOWN_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("SHUTDOWN_TIMEOUT must be a duration (e.g. 10s): %w", err)
		}
		cfg.ShutdownTimeout = d
	}
	if v := os.Getenv("IDEMPOTENCY_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return Config{}, fmt.Errorf("IDEMPOTENCY_TTL must be a positive duration (e.g. 24h), got %q", v)
		}
		cfg.IdempotencyTTL = d
	}

	return cfg, nil
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
