package infra

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Store drivers accepted by STORE_DRIVER.
const (
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv              string   `env:"APP_ENV" envDefault:"development"`
	Port                string   `env:"PORT" envDefault:"8080"`
	StoreDriver         string   `env:"STORE_DRIVER" envDefault:"postgres"`
	DatabaseURL         string   `env:"DATABASE_URL"`
	JWTSecret           string   `env:"JWT_SECRET"`
	JWTIssuer           string   `env:"JWT_ISSUER" envDefault:"clothdonate"`
	DefaultLocale       string   `env:"DEFAULT_LOCALE" envDefault:"en"`
	GeoIPDBPath         string   `env:"GEOIP_DB_PATH"`
	CORSAllowedOrigins  []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:","`
	RateLimitPerMin     int      `env:"RATE_LIMIT_PER_MINUTE" envDefault:"120"`
	HTTPReadTimeoutSec  int      `env:"HTTP_READ_TIMEOUT_SECONDS" envDefault:"15"`
	HTTPWriteTimeoutSec int      `env:"HTTP_WRITE_TIMEOUT_SECONDS" envDefault:"30"`
	HTTPIdleTimeoutSec  int      `env:"HTTP_IDLE_TIMEOUT_SECONDS" envDefault:"60"`
	OTelEndpoint        string   `env:"OTEL_ENDPOINT"`
	OTelServiceName     string   `env:"OTEL_SERVICE_NAME" envDefault:"clothdonate-api"`

	HTTPReadTimeout  time.Duration `env:"-"`
	HTTPWriteTimeout time.Duration `env:"-"`
	HTTPIdleTimeout  time.Duration `env:"-"`
}

// LoadDotEnv reads .env and .env.local when present. Missing files are fine.
func LoadDotEnv() {
	for _, name := range []string{".env", ".env.local"} {
		_ = godotenv.Load(name)
	}
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	cfg.StoreDriver = strings.ToLower(strings.TrimSpace(cfg.StoreDriver))
	switch cfg.StoreDriver {
	case StoreDriverPostgres:
		if cfg.DatabaseURL == "" {
			return nil, errors.New("DATABASE_URL is required")
		}
	case StoreDriverMemory:
	default:
		return nil, fmt.Errorf("STORE_DRIVER %q is not supported", cfg.StoreDriver)
	}

	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}
	if cfg.RateLimitPerMin <= 0 {
		return nil, fmt.Errorf("RATE_LIMIT_PER_MINUTE must be positive, got %d", cfg.RateLimitPerMin)
	}

	origins := cfg.CORSAllowedOrigins[:0]
	for _, o := range cfg.CORSAllowedOrigins {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	cfg.CORSAllowedOrigins = origins

	cfg.HTTPReadTimeout = time.Second * time.Duration(cfg.HTTPReadTimeoutSec)
	cfg.HTTPWriteTimeout = time.Second * time.Duration(cfg.HTTPWriteTimeoutSec)
	cfg.HTTPIdleTimeout = time.Second * time.Duration(cfg.HTTPIdleTimeoutSec)
	return cfg, nil
}

// IsDevelopment reports whether the service runs with development defaults.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}
