// Package repository provides the API key store.
package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/epochzone/epochzone/internal/model"
)

// ErrAPIKeyNotFound is returned when no key matches a lookup.
var ErrAPIKeyNotFound = errors.New("API key not found")

// Store persists API key records. Records are never deleted; revocation
// only sets revoked_at.
type Store interface {
	Insert(ctx context.Context, key *model.APIKey) error
	FindByHash(ctx context.Context, lookupHash string) (*model.APIKey, error)
	// List returns all keys ordered by created_at, then id.
	List(ctx context.Context) ([]*model.APIKey, error)
	// Revoke sets revoked_at unless already set and reports whether it
	// did. Unknown ids return ErrAPIKeyNotFound.
	Revoke(ctx context.Context, id string, at time.Time) (bool, error)
	Ping(ctx context.Context) error
	Close() error
}

// Open picks a backend from databaseURL:
//
//	postgres://..., postgresql://...  PostgreSQL via pgx
//	bolt:///path/to/file.db           bbolt file
//	sqlite:///path, file.db, :memory: SQLite
func Open(ctx context.Context, databaseURL string) (Store, error) {
	switch {
	case strings.HasPrefix(databaseURL, "postgres://"), strings.HasPrefix(databaseURL, "postgresql://"):
		return OpenPostgres(ctx, databaseURL)
	case strings.HasPrefix(databaseURL, "bolt://"):
		return OpenBolt(ctx, strings.TrimPrefix(databaseURL, "bolt://"))
	default:
		return OpenSQLite(ctx, strings.TrimPrefix(databaseURL, "sqlite://"))
	}
}

// Backend names the store implementation behind databaseURL, for logs.
func Backend(databaseURL string) string {
	switch {
	case strings.HasPrefix(databaseURL, "postgres://"), strings.HasPrefix(databaseURL, "postgresql://"):
		return "postgres"
	case strings.HasPrefix(databaseURL, "bolt://"):
		return "bolt"
	default:
		return "sqlite"
	}
}

// Times are stored as unix microseconds in UTC.
func toMicros(t time.Time) int64 {
	return t.UnixMicro()
}

func fromMicros(us int64) time.Time {
	return time.UnixMicro(us).UTC()
}

func toNullMicros(t *time.Time) *int64 {
	if t == nil {
		return nil
	}
	us := t.UnixMicro()
	return &us
}

func fromNullMicros(us *int64) *time.Time {
	if us == nil {
		return nil
	}
	t := fromMicros(*us)
	return &t
}
