package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"go.etcd.io/bbolt"

	"github.com/epochzone/epochzone/internal/model"
)

var (
	bucketAPIKeys = []byte("api_keys")         // id -> boltRecord JSON
	bucketByHash  = []byte("api_keys_by_hash") // lookup hash -> id
)

// boltRecord is the stored form of a key. model.APIKey hides its hashes
// from JSON, so it cannot be stored directly.
type boltRecord struct {
	ID         string `json:"id"`
	Label      string `json:"label"`
	KeyPrefix  string `json:"key_prefix"`
	KeyHash    string `json:"key_hash"`
	LookupHash string `json:"lookup_hash"`
	CreatedAt  int64  `json:"created_at"`
	ExpiresAt  *int64 `json:"expires_at,omitempty"`
	RevokedAt  *int64 `json:"revoked_at,omitempty"`
}

func toBoltRecord(k *model.APIKey) boltRecord {
	return boltRecord{
		ID:         k.ID,
		Label:      k.Label,
		KeyPrefix:  k.KeyPrefix,
		KeyHash:    k.KeyHash,
		LookupHash: k.LookupHash,
		CreatedAt:  toMicros(k.CreatedAt),
		ExpiresAt:  toNullMicros(k.ExpiresAt),
		RevokedAt:  toNullMicros(k.RevokedAt),
	}
}

func (r boltRecord) toModel() *model.APIKey {
	return &model.APIKey{
		ID:         r.ID,
		Label:      r.Label,
		KeyPrefix:  r.KeyPrefix,
		KeyHash:    r.KeyHash,
		LookupHash: r.LookupHash,
		CreatedAt:  fromMicros(r.CreatedAt),
		ExpiresAt:  fromNullMicros(r.ExpiresAt),
		RevokedAt:  fromNullMicros(r.RevokedAt),
	}
}

// BoltStore implements Store on an embedded bbolt file.
type BoltStore struct {
	db *bbolt.DB
}

// OpenBolt opens (or creates) a bbolt file at path.
func OpenBolt(ctx context.Context, path string) (*BoltStore, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open boltdb: %w", err)
	}

	store := &BoltStore{db: db}
	if err := store.initBuckets(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize buckets: %w", err)
	}
	return store, nil
}

func (s *BoltStore) initBuckets() error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{bucketAPIKeys, bucketByHash} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("create bucket %s: %w", name, err)
			}
		}
		return nil
	})
}

// Insert stores a new key and its lookup index entry.
func (s *BoltStore) Insert(ctx context.Context, key *model.APIKey) error {
	data, err := json.Marshal(toBoltRecord(key))
	if err != nil {
		return fmt.Errorf("marshal API key: %w", err)
	}

	err = s.db.Update(func(tx *bbolt.Tx) error {
		keys := tx.Bucket(bucketAPIKeys)
		index := tx.Bucket(bucketByHash)

		if keys.Get([]byte(key.ID)) != nil {
			return fmt.Errorf("duplicate id %s", key.ID)
		}
		if index.Get([]byte(key.LookupHash)) != nil {
			return fmt.Errorf("duplicate lookup hash")
		}
		if err := keys.Put([]byte(key.ID), data); err != nil {
			return err
		}
		return index.Put([]byte(key.LookupHash), []byte(key.ID))
	})
	if err != nil {
		return fmt.Errorf("failed to insert API key: %w", err)
	}
	return nil
}

// FindByHash returns the key whose lookup hash matches.
func (s *BoltStore) FindByHash(ctx context.Context, lookupHash string) (*model.APIKey, error) {
	var rec boltRecord
	err := s.db.View(func(tx *bbolt.Tx) error {
		id := tx.Bucket(bucketByHash).Get([]byte(lookupHash))
		if id == nil {
			return ErrAPIKeyNotFound
		}
		data := tx.Bucket(bucketAPIKeys).Get(id)
		if data == nil {
			return ErrAPIKeyNotFound
		}
		return json.Unmarshal(data, &rec)
	})
	if err != nil {
		if err == ErrAPIKeyNotFound {
			return nil, err
		}
		return nil, fmt.Errorf("failed to find API key: %w", err)
	}
	return rec.toModel(), nil
}

// List returns every key, oldest first.
func (s *BoltStore) List(ctx context.Context) ([]*model.APIKey, error) {
	keys := make([]*model.APIKey, 0)
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketAPIKeys).ForEach(func(_, data []byte) error {
			var rec boltRecord
			if err := json.Unmarshal(data, &rec); err != nil {
				return err
			}
			keys = append(keys, rec.toModel())
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list API keys: %w", err)
	}

	sort.SliceStable(keys, func(i, j int) bool {
		if !keys[i].CreatedAt.Equal(keys[j].CreatedAt) {
			return keys[i].CreatedAt.Before(keys[j].CreatedAt)
		}
		return keys[i].ID < keys[j].ID
	})
	return keys, nil
}

// Revoke sets revoked_at, keeping an earlier revocation time if present.
func (s *BoltStore) Revoke(ctx context.Context, id string, at time.Time) (bool, error) {
	var changed bool
	err := s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketAPIKeys)
		data := bucket.Get([]byte(id))
		if data == nil {
			return ErrAPIKeyNotFound
		}

		var rec boltRecord
		if err := json.Unmarshal(data, &rec); err != nil {
			return err
		}
		if rec.RevokedAt != nil {
			return nil
		}

		us := toMicros(at)
		rec.RevokedAt = &us
		updated, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		if err := bucket.Put([]byte(id), updated); err != nil {
			return err
		}
		changed = true
		return nil
	})
	if err != nil {
		if err == ErrAPIKeyNotFound {
			return false, err
		}
		return false, fmt.Errorf("failed to revoke API key: %w", err)
	}
	return changed, nil
}

// Ping reports whether the file is still open.
func (s *BoltStore) Ping(ctx context.Context) error {
	return s.db.View(func(*bbolt.Tx) error { return nil })
}

// Close closes the database file.
func (s *BoltStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}
