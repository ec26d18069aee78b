package auth

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"regexp"
)

// Key format: ez_{prefix}_{secret}
// Example: ez_7a9f3c2b_4f8d2e1b9c7a5f3d2e1b9c7a5f3d2e1b4f8d2e1b9c7a5f3d2e1b9c7a5f3d2e1b
const (
	KeyPrefixLen = 8  // Visible prefix length (hex encoded 4 bytes)
	KeySecretLen = 64 // Secret length (hex encoded 32 bytes, 256 bits)
)

var (
	// ErrInvalidKeyFormat indicates the key format is invalid.
	ErrInvalidKeyFormat = errors.New("invalid API key format")
	// keyFormatRegex validates the key format.
	keyFormatRegex = regexp.MustCompile(`^ez_([a-f0-9]{8})_([a-f0-9]{64})$`)
)

// GeneratedKey contains the parts of a newly generated API key.
type GeneratedKey struct {
	Plaintext  string // Full key (show once only)
	Hash       string // argon2id hash for storage
	LookupHash string // SHA-256 for the store index
	Prefix     string // 8-char visible prefix
}

// GenerateAPIKey creates a new API key hashed with params.
func GenerateAPIKey(params Argon2Params) (*GeneratedKey, error) {
	prefixBytes := make([]byte, KeyPrefixLen/2)
	if _, err := rand.Read(prefixBytes); err != nil {
		return nil, fmt.Errorf("generate prefix: %w", err)
	}
	prefix := hex.EncodeToString(prefixBytes)

	secretBytes := make([]byte, KeySecretLen/2)
	if _, err := rand.Read(secretBytes); err != nil {
		return nil, fmt.Errorf("generate secret: %w", err)
	}

	plaintext := fmt.Sprintf("ez_%s_%s", prefix, hex.EncodeToString(secretBytes))

	hash, err := HashSecret(plaintext, params)
	if err != nil {
		return nil, fmt.Errorf("hash key: %w", err)
	}

	return &GeneratedKey{
		Plaintext:  plaintext,
		Hash:       hash,
		LookupHash: LookupHash(plaintext),
		Prefix:     prefix,
	}, nil
}

// ParsedKey contains the parsed parts of an API key.
type ParsedKey struct {
	Prefix string
	Secret string
}

// ParseAPIKey extracts the components from a plaintext API key.
func ParseAPIKey(key string) (*ParsedKey, error) {
	matches := keyFormatRegex.FindStringSubmatch(key)
	if matches == nil {
		return nil, ErrInvalidKeyFormat
	}

	return &ParsedKey{
		Prefix: matches[1],
		Secret: matches[2],
	}, nil
}

// ValidateKeyFormat checks if the key matches the expected format.
func ValidateKeyFormat(key string) bool {
	return keyFormatRegex.MatchString(key)
}
