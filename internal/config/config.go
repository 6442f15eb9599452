package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

const (
	defaultDBPath   = "./dev.db"
	defaultPort     = "8080"
	defaultDraftKey = "dealplanner.draft.v2"
	defaultDraftTTL = 720 * time.Hour
)

// Config holds application configuration sourced from environment variables.
type Config struct {
	AppEnv             string
	Port               string
	DBPath             string
	RedisURL           string
	DraftKey           string
	DraftTTL           time.Duration
	CatalogPath        string
	CustomersPath      string
	LogLevel           string
	LogFormat          string
	CORSAllowedOrigins []string

	// Warnings lists non-fatal problems found while loading.
	Warnings []string
}

// Load reads .env (if present) and the process environment.
func Load() (Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return Config{}, fmt.Errorf("load env: %w", err)
	}
	return fromKoanf(k), nil
}

func fromKoanf(k *koanf.Koanf) Config {
	cfg := Config{
		AppEnv:             valueOrDefault(k.String("APP_ENV"), "development"),
		Port:               valueOrDefault(k.String("PORT"), defaultPort),
		DBPath:             valueOrDefault(k.String("DB_PATH"), defaultDBPath),
		RedisURL:           strings.TrimSpace(k.String("REDIS_URL")),
		DraftKey:           valueOrDefault(k.String("DRAFT_KEY"), defaultDraftKey),
		CatalogPath:        strings.TrimSpace(k.String("CATALOG_PATH")),
		CustomersPath:      strings.TrimSpace(k.String("CUSTOMERS_PATH")),
		LogLevel:           valueOrDefault(k.String("LOG_LEVEL"), "info"),
		LogFormat:          valueOrDefault(k.String("LOG_FORMAT"), "json"),
		CORSAllowedOrigins: splitAndTrim(k.String("CORS_ALLOWED_ORIGINS")),
	}
	if len(cfg.CORSAllowedOrigins) == 0 {
		cfg.CORSAllowedOrigins = []string{"*"}
	}

	cfg.DraftTTL = defaultDraftTTL
	if raw := strings.TrimSpace(k.String("DRAFT_TTL")); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d < 0 {
			cfg.Warnings = append(cfg.Warnings, fmt.Sprintf("DRAFT_TTL %q is invalid, using %s", raw, defaultDraftTTL))
		} else {
			cfg.DraftTTL = d
		}
	}
	if cfg.RedisURL == "" {
		cfg.Warnings = append(cfg.Warnings, "REDIS_URL is not set: working draft will not be persisted")
	}
	return cfg
}

// IsDev reports whether the app runs in development mode.
func (c Config) IsDev() bool {
	switch strings.ToLower(strings.TrimSpace(c.AppEnv)) {
	case "", "dev", "development", "local":
		return true
	}
	return false
}

// HTTPAddr returns the address the HTTP server should bind to.
func (c Config) HTTPAddr() string {
	port := strings.TrimSpace(c.Port)
	if port == "" {
		port = defaultPort
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return ":" + port
}

func splitAndTrim(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func valueOrDefault(value, fallback string) string {
	if v := strings.TrimSpace(value); v != "" {
		return v
	}
	return fallback
}
