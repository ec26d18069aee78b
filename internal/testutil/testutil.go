// Package testutil holds helpers shared by package tests.
package testutil

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/epochzone/epochzone/internal/model"
)

// RequireEnv returns an environment variable or skips the test if missing.
func RequireEnv(t testing.TB, key string) string {
	t.Helper()
	value := os.Getenv(key)
	if value == "" {
		t.Skipf("%s not set", key)
	}
	return value
}

// ResetAPIKeysSchema drops the api_keys table and goose's version table
// so the next open re-runs migrations from scratch.
func ResetAPIKeysSchema(ctx context.Context, db *sql.DB) error {
	for _, stmt := range []string{
		"DROP TABLE IF EXISTS api_keys",
		"DROP TABLE IF EXISTS goose_db_version",
	} {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("reset schema: %w", err)
		}
	}
	return nil
}

// DiscardLogger returns a logger that drops everything.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// NewTestAPIKey creates a key record with random hashes. The hashes are
// not derived from any usable secret.
func NewTestAPIKey(t testing.TB, label string) *model.APIKey {
	t.Helper()

	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		t.Fatalf("rand: %v", err)
	}
	sum := sha256.Sum256(raw)

	return &model.APIKey{
		ID:         ulid.Make().String(),
		Label:      label,
		KeyPrefix:  hex.EncodeToString(raw[:4]),
		KeyHash:    "$argon2id$v=19$m=64,t=1,p=1$" + hex.EncodeToString(raw[4:12]) + "$" + hex.EncodeToString(raw[12:]),
		LookupHash: hex.EncodeToString(sum[:]),
		CreatedAt:  time.Now().UTC().Truncate(time.Microsecond),
	}
}

// UniqueID generates a unique ID for tests.
func UniqueID(prefix string) string {
	return fmt.Sprintf("%s-%d", prefix, time.Now().UnixNano())
}
