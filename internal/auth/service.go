package auth

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/oklog/ulid/v2"

	"github.com/epochzone/epochzone/internal/metrics"
	"github.com/epochzone/epochzone/internal/model"
	"github.com/epochzone/epochzone/internal/repository"
)

// MaxLabelLen is the longest label accepted for a new key, in runes.
const MaxLabelLen = 128

// KeyStore is the persistence the service needs. repository.Store
// satisfies it.
type KeyStore interface {
	Insert(ctx context.Context, key *model.APIKey) error
	FindByHash(ctx context.Context, lookupHash string) (*model.APIKey, error)
	List(ctx context.Context) ([]*model.APIKey, error)
	Revoke(ctx context.Context, id string, at time.Time) (bool, error)
}

// VerificationCache remembers which lookup hashes already passed the
// argon2id check, and for which key ID.
type VerificationCache interface {
	GetVerified(ctx context.Context, lookupHash string) (keyID string, ok bool, err error)
	SetVerified(ctx context.Context, lookupHash, keyID string) error
	ForgetVerified(ctx context.Context, lookupHash string) error
}

type noopCache struct{}

func (noopCache) GetVerified(context.Context, string) (string, bool, error) { return "", false, nil }
func (noopCache) SetVerified(context.Context, string, string) error         { return nil }
func (noopCache) ForgetVerified(context.Context, string) error              { return nil }

// Config configures a Service.
type Config struct {
	AdminKey string
	Argon2   Argon2Params
	Cache    VerificationCache // optional
	Metrics  metrics.Recorder  // optional
	Logger   *slog.Logger      // optional
	Now      func() time.Time  // optional, for tests
}

// Service issues, verifies and revokes API keys.
type Service struct {
	store       KeyStore
	adminDigest [sha256.Size]byte
	argon2      Argon2Params
	cache       VerificationCache
	metrics     metrics.Recorder
	logger      *slog.Logger
	now         func() time.Time
}

// NewService creates a Service. The admin key is required.
func NewService(store KeyStore, cfg Config) (*Service, error) {
	if cfg.AdminKey == "" {
		return nil, ErrAdminKeyRequired
	}
	if cfg.Argon2 == (Argon2Params{}) {
		cfg.Argon2 = DefaultArgon2Params
	}
	if cfg.Cache == nil {
		cfg.Cache = noopCache{}
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.NewNoop()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &Service{
		store:       store,
		adminDigest: sha256.Sum256([]byte(cfg.AdminKey)),
		argon2:      cfg.Argon2,
		cache:       cfg.Cache,
		metrics:     cfg.Metrics,
		logger:      cfg.Logger,
		now:         cfg.Now,
	}, nil
}

// CreateKeyInput holds the caller-supplied fields of a new key.
type CreateKeyInput struct {
	Label     string
	ExpiresAt *time.Time
}

// CreatedKey is a newly issued key. Secret is the only copy of the
// plaintext and must be shown to the caller once.
type CreatedKey struct {
	Key    *model.APIKey
	Secret string
}

// GenerateKey issues a new key and persists its hashes.
func (s *Service) GenerateKey(ctx context.Context, in CreateKeyInput) (*CreatedKey, error) {
	label := strings.TrimSpace(in.Label)
	if err := validateLabel(label); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	var expiresAt *time.Time
	if in.ExpiresAt != nil {
		if !in.ExpiresAt.After(now) {
			return nil, ErrExpiresInPast
		}
		exp := in.ExpiresAt.UTC()
		expiresAt = &exp
	}

	generated, err := GenerateAPIKey(s.argon2)
	if err != nil {
		return nil, fmt.Errorf("generate key: %w", err)
	}

	key := &model.APIKey{
		ID:         ulid.Make().String(),
		Label:      label,
		KeyPrefix:  generated.Prefix,
		KeyHash:    generated.Hash,
		LookupHash: generated.LookupHash,
		CreatedAt:  now,
		ExpiresAt:  expiresAt,
	}

	if err := s.store.Insert(ctx, key); err != nil {
		return nil, fmt.Errorf("%w: insert: %w", ErrStoreFailure, err)
	}

	s.metrics.IncKeyCreated()
	s.logger.Info("api key created",
		"key_id", key.ID,
		"key_prefix", key.KeyPrefix,
	)

	return &CreatedKey{Key: key, Secret: generated.Plaintext}, nil
}

func validateLabel(label string) error {
	if utf8.RuneCountInString(label) > MaxLabelLen {
		return fmt.Errorf("%w: longer than %d characters", ErrInvalidLabel, MaxLabelLen)
	}
	for _, r := range label {
		if unicode.IsControl(r) {
			return fmt.Errorf("%w: contains control characters", ErrInvalidLabel)
		}
	}
	return nil
}

// Verify authenticates a presented key. Every rejection matches
// ErrUnauthorized; store errors match ErrStoreFailure instead.
func (s *Service) Verify(ctx context.Context, presented string) (*model.APIKey, error) {
	start := time.Now()
	key, err := s.verify(ctx, presented)
	s.metrics.ObserveVerifyDuration(time.Since(start))

	if err != nil {
		if reason := FailureReason(err); reason != "" {
			s.metrics.IncAuthFailure(reason)
		}
		return nil, err
	}
	s.metrics.IncAuthSuccess()
	return key, nil
}

func (s *Service) verify(ctx context.Context, presented string) (*model.APIKey, error) {
	if presented == "" {
		return nil, unauthorized(ReasonMissingKey)
	}
	if !ValidateKeyFormat(presented) {
		return nil, unauthorized(ReasonInvalidFormat)
	}

	lookup := LookupHash(presented)
	key, err := s.store.FindByHash(ctx, lookup)
	if err != nil {
		if errors.Is(err, repository.ErrAPIKeyNotFound) {
			return nil, unauthorized(ReasonInvalidKey)
		}
		return nil, fmt.Errorf("%w: find key: %w", ErrStoreFailure, err)
	}

	if subtle.ConstantTimeCompare([]byte(key.LookupHash), []byte(lookup)) != 1 {
		return nil, unauthorized(ReasonInvalidKey)
	}

	// Status always comes from the store so a cached verification can
	// never outlive a revocation.
	if key.IsRevoked() {
		s.forget(ctx, lookup)
		return nil, unauthorized(ReasonRevoked)
	}
	if key.IsExpired(s.now()) {
		s.forget(ctx, lookup)
		return nil, unauthorized(ReasonExpired)
	}

	cachedID, hit, err := s.cache.GetVerified(ctx, lookup)
	if err != nil {
		s.logger.Warn("verification cache read failed", "error", err)
	}
	if hit && cachedID == key.ID {
		s.metrics.IncVerifyCacheHit()
		return key, nil
	}
	s.metrics.IncVerifyCacheMiss()

	ok, err := VerifySecret(presented, key.KeyHash)
	if err != nil {
		s.logger.Error("stored key hash is unreadable", "key_id", key.ID, "error", err)
		return nil, unauthorized(ReasonInvalidKey)
	}
	if !ok {
		return nil, unauthorized(ReasonInvalidKey)
	}

	if err := s.cache.SetVerified(ctx, lookup, key.ID); err != nil {
		s.logger.Warn("verification cache write failed", "error", err)
	}
	return key, nil
}

func (s *Service) forget(ctx context.Context, lookup string) {
	if err := s.cache.ForgetVerified(ctx, lookup); err != nil {
		s.logger.Warn("verification cache delete failed", "error", err)
	}
}

// VerifyAdmin checks presented against the configured admin key in
// constant time.
func (s *Service) VerifyAdmin(presented string) error {
	if presented == "" {
		s.metrics.IncAuthFailure(ReasonMissingKey)
		return unauthorized(ReasonMissingKey)
	}
	digest := sha256.Sum256([]byte(presented))
	if subtle.ConstantTimeCompare(digest[:], s.adminDigest[:]) != 1 {
		s.metrics.IncAuthFailure(ReasonInvalidAdminKey)
		return unauthorized(ReasonInvalidAdminKey)
	}
	s.metrics.IncAuthSuccess()
	return nil
}

// RevokeKey revokes the key with id. Revoking an already revoked key
// succeeds, keeps the first revocation time and is not counted again.
func (s *Service) RevokeKey(ctx context.Context, id string) error {
	changed, err := s.store.Revoke(ctx, id, s.now().UTC())
	if err != nil {
		if errors.Is(err, repository.ErrAPIKeyNotFound) {
			return ErrKeyNotFound
		}
		return fmt.Errorf("%w: revoke: %w", ErrStoreFailure, err)
	}
	if !changed {
		return nil
	}

	s.metrics.IncKeyRevoked()
	s.logger.Info("api key revoked", "key_id", id)
	return nil
}

// ListKeys returns every key record, revoked ones included.
func (s *Service) ListKeys(ctx context.Context) ([]*model.APIKey, error) {
	keys, err := s.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: list: %w", ErrStoreFailure, err)
	}
	return keys, nil
}
