// Package config provides application configuration management.
// Configuration is loaded from environment variables following 12-factor
// principles, optionally seeded from a .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

// Config holds all application configuration.
// All fields are populated from environment variables.
type Config struct {
	// Application settings
	AppEnv  string `env:"APP_ENV" envDefault:"development"`
	AppPort int    `env:"APP_PORT" envDefault:"8080"`

	// Key store: postgres://, bolt://path, or a SQLite path
	DatabaseURL string `env:"DATABASE_URL" envDefault:"epochzone.db"`

	// Verification cache (Redis), disabled when empty
	RedisURL string `env:"REDIS_URL"`

	// Admin credential for /admin routes
	AdminAPIKey          string `env:"ADMIN_API_KEY,required,unset"`
	AdminAPIKeyMinLength int    `env:"ADMIN_API_KEY_MIN_LENGTH" envDefault:"32"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	// Server timeouts
	ReadTimeout     time.Duration `env:"READ_TIMEOUT" envDefault:"5s"`
	WriteTimeout    time.Duration `env:"WRITE_TIMEOUT" envDefault:"10s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"30s"`

	// CORS configuration
	// Comma-separated list of allowed origins (e.g., "https://example.com,https://app.example.com")
	CORSAllowedOrigins string `env:"CORS_ALLOWED_ORIGINS" envDefault:"http://localhost:5173,https://epochzone-ui-production.up.railway.app,https://epoch.zone"`

	// Request body size limit in bytes (default 1MB)
	MaxRequestBodySize int64 `env:"MAX_REQUEST_BODY_SIZE" envDefault:"1048576"`

	// Authentication
	AuthMinDuration time.Duration `env:"AUTH_MIN_DURATION" envDefault:"50ms"`
	AuthCacheTTL    time.Duration `env:"AUTH_CACHE_TTL" envDefault:"5m"`

	// argon2id cost for newly issued keys
	Argon2Time      uint32 `env:"ARGON2_TIME" envDefault:"3"`
	Argon2MemoryKiB uint32 `env:"ARGON2_MEMORY_KIB" envDefault:"65536"`
	Argon2Threads   uint8  `env:"ARGON2_THREADS" envDefault:"4"`

	// Build the zone catalog from this zoneinfo tree instead of the
	// embedded identifier list
	ZoneinfoDir string `env:"ZONEINFO_DIR"`

	// Serve /api/location from the embedded tzf boundaries
	GeolocationEnabled bool `env:"GEOLOCATION_ENABLED" envDefault:"true"`
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

// GetCORSAllowedOrigins parses the comma-separated origins string into a slice.
func (c *Config) GetCORSAllowedOrigins() []string {
	if c.CORSAllowedOrigins == "" {
		return nil
	}

	origins := strings.Split(c.CORSAllowedOrigins, ",")
	result := make([]string, 0, len(origins))

	for _, origin := range origins {
		trimmed := strings.TrimSpace(origin)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}

// Validate checks values that struct tags cannot express.
func (c *Config) Validate() error {
	if len(c.AdminAPIKey) < c.AdminAPIKeyMinLength {
		return fmt.Errorf("ADMIN_API_KEY must be at least %d characters", c.AdminAPIKeyMinLength)
	}
	if c.AppPort <= 0 || c.AppPort > 65535 {
		return fmt.Errorf("APP_PORT out of range: %d", c.AppPort)
	}
	if c.Argon2Time == 0 || c.Argon2Threads == 0 {
		return errors.New("ARGON2_TIME and ARGON2_THREADS must be positive")
	}
	if c.Argon2MemoryKiB < 8*uint32(c.Argon2Threads) {
		return fmt.Errorf("ARGON2_MEMORY_KIB must be at least %d", 8*uint32(c.Argon2Threads))
	}
	if c.MaxRequestBodySize <= 0 {
		return fmt.Errorf("MAX_REQUEST_BODY_SIZE must be positive")
	}
	return nil
}

// Load reads the optional env file named by ENV_FILE (default .env),
// parses environment variables and validates the result. Variables
// already set in the environment win over the file.
func Load() (*Config, error) {
	envFile := os.Getenv("ENV_FILE")
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load %s: %w", envFile, err)
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}
