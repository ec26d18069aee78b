//go:build integration

package repository

import (
	"context"
	"testing"
	"time"

	"github.com/epochzone/epochzone/internal/testutil"
)

func newPostgresTestStore(t *testing.T) (context.Context, *SQLStore) {
	t.Helper()
	databaseURL := testutil.RequireEnv(t, "TEST_DATABASE_URL")
	ctx := context.Background()

	store, err := OpenPostgres(ctx, databaseURL)
	if err != nil {
		t.Fatalf("OpenPostgres failed: %v", err)
	}
	if err := testutil.ResetAPIKeysSchema(ctx, store.db); err != nil {
		t.Fatalf("reset schema: %v", err)
	}
	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("Migrate failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return ctx, store
}

func TestIntegrationPostgres_Lifecycle(t *testing.T) {
	ctx, store := newPostgresTestStore(t)

	key := testutil.NewTestAPIKey(t, "integration")
	if err := store.Insert(ctx, key); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	got, err := store.FindByHash(ctx, key.LookupHash)
	if err != nil {
		t.Fatalf("FindByHash failed: %v", err)
	}
	if got.ID != key.ID || !got.CreatedAt.Equal(key.CreatedAt) {
		t.Errorf("round trip mismatch: got %+v, want %+v", got, key)
	}

	at := time.Now().UTC().Truncate(time.Microsecond)
	if changed, err := store.Revoke(ctx, key.ID, at); err != nil || !changed {
		t.Fatalf("Revoke = %v, %v; want true, nil", changed, err)
	}
	if changed, err := store.Revoke(ctx, key.ID, at.Add(time.Hour)); err != nil || changed {
		t.Fatalf("second Revoke = %v, %v; want false, nil", changed, err)
	}

	got, err = store.FindByHash(ctx, key.LookupHash)
	if err != nil {
		t.Fatalf("FindByHash failed: %v", err)
	}
	if got.RevokedAt == nil || !got.RevokedAt.Equal(at) {
		t.Errorf("RevokedAt = %v, want %v", got.RevokedAt, at)
	}

	if _, err := store.Revoke(ctx, "missing", at); err != ErrAPIKeyNotFound {
		t.Errorf("Revoke unknown error = %v, want ErrAPIKeyNotFound", err)
	}
}
