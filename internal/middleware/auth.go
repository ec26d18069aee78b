package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/epochzone/epochzone/internal/auth"
	"github.com/epochzone/epochzone/internal/model"
)

// KeyVerifier authenticates presented keys. *auth.Service satisfies it.
type KeyVerifier interface {
	Verify(ctx context.Context, presented string) (*model.APIKey, error)
	VerifyAdmin(presented string) error
}

// AuthConfig holds configuration for the auth middlewares.
type AuthConfig struct {
	Logger   *slog.Logger
	Verifier KeyVerifier
	// MinDuration is the least time spent before answering, so accepted
	// and rejected keys take about as long. Zero disables it.
	MinDuration time.Duration
}

// APIKeyAuth returns a middleware that authenticates requests against
// stored API keys and injects the auth context.
func APIKeyAuth(cfg AuthConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			presented := extractAPIKey(r)
			key, err := cfg.Verifier.Verify(r.Context(), presented)
			waitMinDuration(start, cfg.MinDuration)

			if err != nil {
				handleAuthError(w, r, cfg.Logger, err, presented)
				return
			}

			ctx := auth.ContextWithAuth(r.Context(), &model.AuthContext{
				KeyID:     key.ID,
				KeyPrefix: key.KeyPrefix,
				Label:     key.Label,
			})
			SetLogKeyID(ctx, key.ID)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// AdminAuth returns a middleware that only admits the configured admin
// key. It runs before any handler lookup, so unauthenticated callers
// learn nothing about admin resources.
func AdminAuth(cfg AuthConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			err := cfg.Verifier.VerifyAdmin(r.Header.Get("X-API-Key"))
			waitMinDuration(start, cfg.MinDuration)

			if err != nil {
				handleAuthError(w, r, cfg.Logger, err, "")
				return
			}

			ctx := auth.ContextWithAuth(r.Context(), &model.AuthContext{Admin: true})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func waitMinDuration(start time.Time, floor time.Duration) {
	if elapsed := time.Since(start); elapsed < floor {
		time.Sleep(floor - elapsed)
	}
}

// handleAuthError logs the failure and answers with the uniform 401. The
// visible prefix of a well-formed presented key is logged, never the secret.
func handleAuthError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error, presented string) {
	if errors.Is(err, auth.ErrUnauthorized) {
		attrs := []any{
			slog.String("reason", auth.FailureReason(err)),
			slog.String("ip", r.RemoteAddr),
			slog.String("endpoint", r.Method+" "+r.URL.Path),
			slog.String("request_id", GetRequestID(r.Context())),
		}
		if parsed, perr := auth.ParseAPIKey(presented); perr == nil {
			attrs = append(attrs, slog.String("key_prefix", parsed.Prefix))
		}
		logger.Warn("authentication failed", attrs...)
		writeAuthError(w)
		return
	}

	logger.Error("key store error during auth",
		slog.String("error", err.Error()),
		slog.String("request_id", GetRequestID(r.Context())),
	)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusInternalServerError)
	_, _ = w.Write([]byte(`{"error":{"code":"INTERNAL_ERROR","message":"Internal server error"}}`))
}

// extractAPIKey extracts the API key from the request.
// Supports both "X-API-Key: <key>" and "Authorization: Bearer <key>".
func extractAPIKey(r *http.Request) string {
	if key := r.Header.Get("X-API-Key"); key != "" {
		return key
	}
	if authHeader := r.Header.Get("Authorization"); strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimPrefix(authHeader, "Bearer ")
	}
	return ""
}

// writeAuthError writes a 401 Unauthorized response.
// Uses the same message for all auth failures to prevent enumeration.
func writeAuthError(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":{"code":"UNAUTHORIZED","message":"Invalid or missing API key"}}`))
}
