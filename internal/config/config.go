package config

import (
	"fmt"
	"strings"
	"time"
	_ "time/tzdata" // zone database for hosts without zoneinfo

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds runtime configuration values for the school application.
type Config struct {
	AppName           string
	AppEnv            string
	AppPort           string
	Timezone          string
	DatabaseDriver    string
	DatabaseURL       string
	RedisURL          string
	SessionSecret     string
	SessionTTL        time.Duration
	PageSize          int
	StatsCacheTTL     time.Duration
	BootstrapUsername string
	BootstrapPassword string
	BootstrapFullName string
	LoginRateLimit    int
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// Location resolves the configured timezone used to decide what "today" is.
func (c Config) Location() (*time.Location, error) {
	if strings.TrimSpace(c.Timezone) == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(c.Timezone)
}

// IsProduction reports whether the app runs with production settings.
func (c Config) IsProduction() bool {
	return strings.EqualFold(c.AppEnv, "production")
}

// Load reads configuration values from environment variables and optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("HALQAT")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "Halqat")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("app.timezone", "UTC")
	v.SetDefault("database.driver", "postgres")
	v.SetDefault("session.ttl", "12h")
	v.SetDefault("list.page_size", 20)
	v.SetDefault("stats.cache_ttl", "1m")
	v.SetDefault("login.rate_limit", 10)

	sessionTTL, err := time.ParseDuration(v.GetString("session.ttl"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid session ttl: %w", err)
	}
	statsTTL, err := time.ParseDuration(v.GetString("stats.cache_ttl"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid stats cache ttl: %w", err)
	}

	cfg := Config{
		AppName:           v.GetString("app.name"),
		AppEnv:            v.GetString("app.env"),
		AppPort:           v.GetString("app.port"),
		Timezone:          v.GetString("app.timezone"),
		DatabaseDriver:    strings.ToLower(v.GetString("database.driver")),
		DatabaseURL:       v.GetString("database.url"),
		RedisURL:          v.GetString("redis.url"),
		SessionSecret:     v.GetString("session.secret"),
		SessionTTL:        sessionTTL,
		PageSize:          v.GetInt("list.page_size"),
		StatsCacheTTL:     statsTTL,
		BootstrapUsername: v.GetString("bootstrap.username"),
		BootstrapPassword: v.GetString("bootstrap.password"),
		BootstrapFullName: v.GetString("bootstrap.full_name"),
		LoginRateLimit:    v.GetInt("login.rate_limit"),
	}

	if cfg.SessionSecret == "" {
		return Config{}, fmt.Errorf("session secret must be provided")
	}
	if cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("database url must be provided")
	}
	if cfg.DatabaseDriver != "postgres" && cfg.DatabaseDriver != "sqlite" {
		return Config{}, fmt.Errorf("unsupported database driver %q", cfg.DatabaseDriver)
	}
	if _, err := cfg.Location(); err != nil {
		return Config{}, fmt.Errorf("invalid timezone: %w", err)
	}

	if cfg.PageSize <= 0 {
		cfg.PageSize = 20
	}
	if cfg.LoginRateLimit <= 0 {
		cfg.LoginRateLimit = 10
	}

	return cfg, nil
}
