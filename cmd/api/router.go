package main

import (
	"log/slog"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/epochzone/epochzone/internal/auth"
	"github.com/epochzone/epochzone/internal/config"
	"github.com/epochzone/epochzone/internal/handler"
	"github.com/epochzone/epochzone/internal/metrics"
	"github.com/epochzone/epochzone/internal/middleware"
	"github.com/epochzone/epochzone/internal/timezone"
)

type routerDeps struct {
	Config  *config.Config
	Logger  *slog.Logger
	Version string
	Engine  *timezone.Engine
	Locator *timezone.Locator // nil when geolocation is off
	Auth    *auth.Service
	Metrics *metrics.InMemoryRecorder
	Store   handler.HealthChecker
	Cache   handler.HealthChecker // nil when Redis is off
}

// newRouter configures the chi router with all routes and middleware.
func newRouter(d routerDeps) *chi.Mux {
	r := chi.NewRouter()

	corsCfg := middleware.DefaultCORSConfig()
	corsCfg.AllowedOrigins = d.Config.GetCORSAllowedOrigins()

	// Global middleware
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(d.Logger))
	r.Use(middleware.Recoverer(d.Logger))
	r.Use(middleware.Security(middleware.SecurityConfig{IsDevelopment: d.Config.IsDevelopment()}))
	r.Use(middleware.CORS(corsCfg))
	r.Use(middleware.MaxBodySize(d.Config.MaxRequestBodySize))

	h := handler.New(d.Version)
	healthHandler := handler.NewHealthHandler(d.Store, d.Cache)
	metricsHandler := handler.NewMetricsHandler(d.Metrics)
	timezoneHandler := handler.NewTimezoneHandler(d.Engine, d.Locator, d.Metrics, d.Logger)
	apiKeyHandler := handler.NewAPIKeyHandler(d.Auth, d.Logger)

	// Unauthenticated endpoints
	r.Get("/", h.Hello)
	r.Get("/health", h.Hello)
	r.Get("/healthz", healthHandler.Healthz)
	r.Get("/readyz", healthHandler.Readyz)
	r.Get("/metrics", metricsHandler.Metrics)

	authCfg := middleware.AuthConfig{
		Logger:      d.Logger,
		Verifier:    d.Auth,
		MinDuration: d.Config.AuthMinDuration,
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.APIKeyAuth(authCfg))

		r.Get("/timezones", timezoneHandler.List)
		r.Get("/time/*", timezoneHandler.GetTime)
		r.Post("/convert", timezoneHandler.Convert)
		if d.Locator != nil {
			r.Get("/location", timezoneHandler.Locate)
		}
	})

	r.Route("/admin", func(r chi.Router) {
		r.Use(middleware.AdminAuth(authCfg))

		r.Route("/api-keys", func(r chi.Router) {
			r.Post("/", apiKeyHandler.Create)
			r.Get("/", apiKeyHandler.List)
			r.Delete("/{id}", apiKeyHandler.Revoke)
		})
	})

	// 404 and 405 handlers
	r.NotFound(h.NotFound)
	r.MethodNotAllowed(h.MethodNotAllowed)

	return r
}
