// Package main is the entrypoint for the Epoch Zone API server.
package main

import (
	"context"
	"log/slog"
	"net/url"
	"os"
	"regexp"
	"strings"

	"github.com/epochzone/epochzone/internal/auth"
	"github.com/epochzone/epochzone/internal/cache"
	"github.com/epochzone/epochzone/internal/config"
	"github.com/epochzone/epochzone/internal/handler"
	"github.com/epochzone/epochzone/internal/metrics"
	"github.com/epochzone/epochzone/internal/repository"
	"github.com/epochzone/epochzone/internal/server"
	"github.com/epochzone/epochzone/internal/timezone"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := initLogger(cfg)

	catalog, err := loadCatalog(cfg, logger)
	if err != nil {
		logger.Error("failed to load timezone catalog", "error", err, "zoneinfo_dir", cfg.ZoneinfoDir)
		os.Exit(1)
	}

	var locator *timezone.Locator
	if cfg.GeolocationEnabled {
		if locator, err = timezone.NewDefaultLocator(catalog); err != nil {
			logger.Error("failed to load geolocation boundaries", "error", err)
			os.Exit(1)
		}
		logger.Info("geolocation ready")
	}

	store, err := repository.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error(
			"failed to open key store",
			slog.String("error", sanitizeError(err, cfg.DatabaseURL)),
			slog.String("database_url", redactURL(cfg.DatabaseURL)),
		)
		os.Exit(1)
	}
	logger.Info("key store ready", "backend", repository.Backend(cfg.DatabaseURL))

	// Interfaces stay nil when Redis is not configured.
	var (
		verifyCache auth.VerificationCache
		cacheHealth handler.HealthChecker
		cacheClient *cache.Cache
	)
	if cfg.RedisURL != "" {
		cacheClient, err = cache.New(ctx, cfg.RedisURL, cfg.AuthCacheTTL)
		if err != nil {
			logger.Error(
				"failed to connect to Redis",
				slog.String("error", sanitizeError(err, cfg.RedisURL)),
				slog.String("redis_url", redactURL(cfg.RedisURL)),
			)
			_ = store.Close()
			os.Exit(1)
		}
		verifyCache = cacheClient
		cacheHealth = cacheClient
		logger.Info("connected to Redis", "verified_ttl", cfg.AuthCacheTTL)
	} else {
		logger.Info("Redis not configured, every verify runs argon2id")
	}

	recorder := metrics.NewInMemory()

	authService, err := auth.NewService(store, auth.Config{
		AdminKey: cfg.AdminAPIKey,
		Argon2: auth.Argon2Params{
			Time:    cfg.Argon2Time,
			Memory:  cfg.Argon2MemoryKiB,
			Threads: cfg.Argon2Threads,
			KeyLen:  auth.DefaultArgon2Params.KeyLen,
			SaltLen: auth.DefaultArgon2Params.SaltLen,
		},
		Cache:   verifyCache,
		Metrics: recorder,
		Logger:  logger,
	})
	if err != nil {
		logger.Error("failed to create auth service", "error", err)
		os.Exit(1)
	}

	r := newRouter(routerDeps{
		Config:  cfg,
		Logger:  logger,
		Version: version,
		Engine:  timezone.NewEngine(catalog),
		Locator: locator,
		Auth:    authService,
		Metrics: recorder,
		Store:   store,
		Cache:   cacheHealth,
	})

	srv := server.New(r, server.Config{
		Port:            cfg.AppPort,
		ReadTimeout:     cfg.ReadTimeout,
		WriteTimeout:    cfg.WriteTimeout,
		ShutdownTimeout: cfg.ShutdownTimeout,
	}, logger)

	srv.OnShutdown("key store", func(context.Context) error { return store.Close() })
	if cacheClient != nil {
		srv.OnShutdown("redis", func(context.Context) error { return cacheClient.Close() })
	}

	logger.Info("starting server",
		"port", cfg.AppPort,
		"env", cfg.AppEnv,
		"version", version,
		"zones", catalog.Len(),
	)

	if err := srv.Run(ctx); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

// loadCatalog builds the zone catalog from ZONEINFO_DIR when set, or from
// the embedded identifier list.
func loadCatalog(cfg *config.Config, logger *slog.Logger) (*timezone.Catalog, error) {
	var (
		catalog *timezone.Catalog
		skipped []string
	)
	if cfg.ZoneinfoDir != "" {
		var err error
		catalog, skipped, err = timezone.LoadDir(os.DirFS(cfg.ZoneinfoDir))
		if err != nil {
			return nil, err
		}
	} else {
		catalog, skipped = timezone.Default()
	}

	if len(skipped) > 0 {
		logger.Warn("skipped unloadable zones", "count", len(skipped), "zones", skipped)
	}
	return catalog, nil
}

// initLogger initializes the slog logger based on configuration.
func initLogger(cfg *config.Config) *slog.Logger {
	var h slog.Handler

	opts := &slog.HandlerOptions{
		Level: parseLogLevel(cfg.LogLevel),
	}

	if cfg.LogFormat == "json" {
		h = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		h = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(h)
	slog.SetDefault(logger)

	return logger
}

// parseLogLevel converts string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

var passwordPattern = regexp.MustCompile(`(?i)password=[^\s]+`)

func redactURL(raw string) string {
	if raw == "" {
		return ""
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return "[redacted]"
	}

	if parsed.User != nil {
		username := parsed.User.Username()
		if username == "" {
			parsed.User = url.User("redacted")
		} else {
			parsed.User = url.User(username)
		}
	}

	return parsed.String()
}

func sanitizeError(err error, secrets ...string) string {
	if err == nil {
		return ""
	}

	msg := err.Error()
	for _, secret := range secrets {
		if secret == "" {
			continue
		}
		redacted := redactURL(secret)
		if redacted == "" {
			redacted = "[redacted]"
		}
		msg = strings.ReplaceAll(msg, secret, redacted)
	}

	return passwordPattern.ReplaceAllString(msg, "password=redacted")
}
