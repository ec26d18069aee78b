package repository

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/epochzone/epochzone/internal/model"
)

//go:embed migrations/sqlite/*.sql migrations/postgres/*.sql
var embedMigrations embed.FS

// Dialect selects SQL placeholder style and migration set.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite3"
	DialectPostgres Dialect = "postgres"
)

func (d Dialect) migrationsDir() string {
	if d == DialectPostgres {
		return "migrations/postgres"
	}
	return "migrations/sqlite"
}

// goose keeps dialect and filesystem in package globals.
var migrateMu sync.Mutex

// SQLStore implements Store on database/sql.
type SQLStore struct {
	db      *sql.DB
	dialect Dialect
}

// NewSQLStore wraps an open database. It does not run migrations.
func NewSQLStore(db *sql.DB, dialect Dialect) *SQLStore {
	return &SQLStore{db: db, dialect: dialect}
}

// OpenSQLite opens (or creates) a SQLite database and migrates it.
// Use ":memory:" for an in-memory database.
func OpenSQLite(ctx context.Context, path string) (*SQLStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// One connection serializes writers and keeps :memory: databases alive.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxIdleTime(0)
	db.SetConnMaxLifetime(0)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL;",
		"PRAGMA synchronous = NORMAL;",
		"PRAGMA busy_timeout = 5000;",
	}
	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	store := NewSQLStore(db, DialectSQLite)
	if err := store.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

// OpenPostgres connects to PostgreSQL through the pgx stdlib driver and
// migrates the schema.
func OpenPostgres(ctx context.Context, databaseURL string) (*SQLStore, error) {
	config, err := pgx.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	db := stdlib.OpenDB(*config)

	// Connection pool settings
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)
	db.SetConnMaxIdleTime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := NewSQLStore(db, DialectPostgres)
	if err := store.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

// Migrate applies the embedded migrations for the store's dialect.
func (s *SQLStore) Migrate(ctx context.Context) error {
	migrateMu.Lock()
	defer migrateMu.Unlock()

	goose.SetBaseFS(embedMigrations)
	if err := goose.SetDialect(string(s.dialect)); err != nil {
		return fmt.Errorf("set migration dialect: %w", err)
	}
	if err := goose.UpContext(ctx, s.db, s.dialect.migrationsDir()); err != nil {
		return fmt.Errorf("goose up failed: %w", err)
	}
	return nil
}

// rebind rewrites ? placeholders to $n for PostgreSQL.
func (s *SQLStore) rebind(query string) string {
	if s.dialect != DialectPostgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

const apiKeyColumns = "id, label, key_prefix, key_hash, lookup_hash, created_at, expires_at, revoked_at"

// Insert stores a new key.
func (s *SQLStore) Insert(ctx context.Context, key *model.APIKey) error {
	query := s.rebind(`
		INSERT INTO api_keys (` + apiKeyColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)

	_, err := s.db.ExecContext(ctx, query,
		key.ID,
		key.Label,
		key.KeyPrefix,
		key.KeyHash,
		key.LookupHash,
		toMicros(key.CreatedAt),
		nullInt64(toNullMicros(key.ExpiresAt)),
		nullInt64(toNullMicros(key.RevokedAt)),
	)
	if err != nil {
		return fmt.Errorf("failed to insert API key: %w", err)
	}
	return nil
}

// FindByHash returns the key whose lookup hash matches.
func (s *SQLStore) FindByHash(ctx context.Context, lookupHash string) (*model.APIKey, error) {
	query := s.rebind(`SELECT ` + apiKeyColumns + ` FROM api_keys WHERE lookup_hash = ?`)

	key, err := scanAPIKey(s.db.QueryRowContext(ctx, query, lookupHash))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAPIKeyNotFound
		}
		return nil, fmt.Errorf("failed to find API key: %w", err)
	}
	return key, nil
}

// List returns every key, oldest first.
func (s *SQLStore) List(ctx context.Context) ([]*model.APIKey, error) {
	query := `SELECT ` + apiKeyColumns + ` FROM api_keys ORDER BY created_at ASC, id ASC`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list API keys: %w", err)
	}
	defer rows.Close()

	keys := make([]*model.APIKey, 0)
	for rows.Next() {
		key, err := scanAPIKey(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan API key: %w", err)
		}
		keys = append(keys, key)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating API keys: %w", err)
	}
	return keys, nil
}

// Revoke sets revoked_at, keeping an earlier revocation time if present.
func (s *SQLStore) Revoke(ctx context.Context, id string, at time.Time) (bool, error) {
	query := s.rebind(`UPDATE api_keys SET revoked_at = ? WHERE id = ? AND revoked_at IS NULL`)

	result, err := s.db.ExecContext(ctx, query, toMicros(at), id)
	if err != nil {
		return false, fmt.Errorf("failed to revoke API key: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to revoke API key: %w", err)
	}
	if n > 0 {
		return true, nil
	}

	// Nothing updated: either the id is unknown or the key was already revoked.
	var one int
	err = s.db.QueryRowContext(ctx, s.rebind(`SELECT 1 FROM api_keys WHERE id = ?`), id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, ErrAPIKeyNotFound
	}
	if err != nil {
		return false, fmt.Errorf("failed to revoke API key: %w", err)
	}
	return false, nil
}

// Ping checks database connectivity.
func (s *SQLStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAPIKey(row rowScanner) (*model.APIKey, error) {
	var key model.APIKey
	var createdAt int64
	var expiresAt, revokedAt sql.NullInt64

	err := row.Scan(
		&key.ID,
		&key.Label,
		&key.KeyPrefix,
		&key.KeyHash,
		&key.LookupHash,
		&createdAt,
		&expiresAt,
		&revokedAt,
	)
	if err != nil {
		return nil, err
	}

	key.CreatedAt = fromMicros(createdAt)
	key.ExpiresAt = fromNullInt64(expiresAt)
	key.RevokedAt = fromNullInt64(revokedAt)
	return &key, nil
}

func nullInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

func fromNullInt64(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	return fromNullMicros(&v.Int64)
}
