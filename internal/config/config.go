// Package config loads the web front-end configuration from .env, the
// environment and an optional YAML file.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	ModeDev  = "dev"
	ModeProd = "prod"

	SessionBackendCookie   = "cookie"
	SessionBackendPostgres = "postgres"
)

// Config holds all configuration for the application.
type Config struct {
	AppMode  string         `mapstructure:"app_mode" validate:"oneof=dev prod"`
	Port     string         `mapstructure:"port" validate:"required,numeric"`
	LogLevel string         `mapstructure:"log_level" validate:"oneof=debug info warn error"`
	BasePath string         `mapstructure:"base_path" validate:"omitempty,startswith=/,endsnotwith=/"`
	API      APIConfig      `mapstructure:"api"`
	Session  SessionConfig  `mapstructure:"session"`
	Cookie   CookieConfig   `mapstructure:"cookie"`
	Database DatabaseConfig `mapstructure:"database"`
	Query    QueryConfig    `mapstructure:"query"`
}

// APIConfig describes the remote attendance API.
type APIConfig struct {
	BaseURL string        `mapstructure:"base_url" validate:"required,url"`
	Timeout time.Duration `mapstructure:"timeout" validate:"gte=0"`
}

type SessionConfig struct {
	Secret  string `mapstructure:"secret" validate:"required,min=16"`
	Backend string `mapstructure:"backend" validate:"oneof=cookie postgres"`
}

type CookieConfig struct {
	Secure bool `mapstructure:"secure"`
}

// DatabaseConfig is only used by the postgres session backend.
type DatabaseConfig struct {
	URL string `mapstructure:"url"`
}

// QueryConfig tunes the page data cache.
type QueryConfig struct {
	StaleTime time.Duration `mapstructure:"stale_time" validate:"gte=0"`
	GCTime    time.Duration `mapstructure:"gc_time" validate:"gtefield=StaleTime"`
	CacheSize int           `mapstructure:"cache_size" validate:"gt=0"`
}

// Every key needs a default so that AutomaticEnv can see it during Unmarshal.
// Nested keys map to env vars with "." replaced by "_": api.base_url -> API_BASE_URL.
var defaults = map[string]any{
	"app_mode":         ModeDev,
	"port":             "3000",
	"log_level":        "info",
	"base_path":        "",
	"api.base_url":     "http://localhost:5000/api",
	"api.timeout":      30 * time.Second,
	"session.secret":   "",
	"session.backend":  SessionBackendCookie,
	"cookie.secure":    false,
	"database.url":     "",
	"query.stale_time": 60 * time.Second,
	"query.gc_time":    5 * time.Minute,
	"query.cache_size": 1024,
}

const devSessionSecret = "attendance-development-session-secret"

// Load reads .env (if present), then the optional config file, then the
// environment. Environment variables win over the file.
func Load(configFile string) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug(".env file not found, using environment variables")
	}

	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config.Load: read %s: %w", configFile, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config.Load: decode: %w", err)
	}
	cfg.AppMode = strings.TrimSpace(cfg.AppMode)
	cfg.API.BaseURL = strings.TrimRight(cfg.API.BaseURL, "/")

	if cfg.Session.Secret == "" && cfg.IsDev() {
		cfg.Session.Secret = devSessionSecret
		slog.Warn("SESSION_SECRET not set, using the development secret")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the struct tags and the cross-section rules.
func (c *Config) Validate() error {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.Struct(c); err != nil {
		return formatValidationErrors(err)
	}
	if c.Session.Backend == SessionBackendPostgres && c.Database.URL == "" {
		return errors.New("config: DATABASE_URL is required when SESSION_BACKEND=postgres")
	}
	if c.IsProd() && c.Session.Secret == devSessionSecret {
		return errors.New("config: SESSION_SECRET must be set in prod mode")
	}
	return nil
}

// formatValidationErrors lists failing fields without echoing their values,
// some of them are secrets.
func formatValidationErrors(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("config: %w", err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s: failed %q", fe.Namespace(), fe.Tag()))
	}
	return fmt.Errorf("config: invalid configuration: %s", strings.Join(msgs, "; "))
}

func (c *Config) IsDev() bool {
	return c.AppMode == ModeDev
}

func (c *Config) IsProd() bool {
	return c.AppMode == ModeProd
}

// Addr is the listen address for the HTTP server.
func (c *Config) Addr() string {
	return ":" + c.Port
}
