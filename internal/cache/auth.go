package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// verifiedPrefix is the Redis key prefix for verified lookup hashes.
	verifiedPrefix = "auth:verified:"
	// DefaultVerifiedTTL is used when no TTL is configured.
	DefaultVerifiedTTL = 5 * time.Minute
)

func verifiedKey(lookupHash string) string {
	return verifiedPrefix + lookupHash
}

// GetVerified reports whether lookupHash already passed argon2id
// verification and for which key ID. A miss is not an error.
func (c *Cache) GetVerified(ctx context.Context, lookupHash string) (string, bool, error) {
	keyID, err := c.client.Get(ctx, verifiedKey(lookupHash)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return keyID, true, nil
}

// SetVerified remembers that lookupHash verified for keyID.
func (c *Cache) SetVerified(ctx context.Context, lookupHash, keyID string) error {
	return c.client.Set(ctx, verifiedKey(lookupHash), keyID, c.ttl).Err()
}

// ForgetVerified drops a remembered verification.
func (c *Cache) ForgetVerified(ctx context.Context, lookupHash string) error {
	return c.client.Del(ctx, verifiedKey(lookupHash)).Err()
}
