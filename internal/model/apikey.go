// Package model defines domain entities for the application.
package model

import "time"

// APIKey is an issued API key. The plaintext secret is never part of it.
type APIKey struct {
	ID         string     `json:"id"`
	Label      string     `json:"label,omitempty"`
	KeyPrefix  string     `json:"key_prefix"`
	KeyHash    string     `json:"-"` // argon2id PHC string
	LookupHash string     `json:"-"` // SHA-256 of the plaintext, used as the store index
	CreatedAt  time.Time  `json:"created_at"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
	RevokedAt  *time.Time `json:"revoked_at,omitempty"`
}

// IsRevoked returns true if the key has been revoked.
func (k *APIKey) IsRevoked() bool {
	return k.RevokedAt != nil
}

// IsExpired reports whether the key has an expiry at or before now.
func (k *APIKey) IsExpired(now time.Time) bool {
	return k.ExpiresAt != nil && !now.Before(*k.ExpiresAt)
}

// IsActive reports whether the key may authenticate at now.
func (k *APIKey) IsActive(now time.Time) bool {
	return !k.IsRevoked() && !k.IsExpired(now)
}

// AuthContext holds the authenticated caller of a request.
// It is injected into the request context by the auth middleware.
type AuthContext struct {
	KeyID     string
	KeyPrefix string
	Label     string
	Admin     bool
}

// APIKeyCreateRequest is the body of POST /admin/api-keys.
// Name is accepted as an alias of Label.
type APIKeyCreateRequest struct {
	Label     string     `json:"label,omitempty"`
	Name      string     `json:"name,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// EffectiveLabel returns Label, falling back to Name.
func (r APIKeyCreateRequest) EffectiveLabel() string {
	if r.Label != "" {
		return r.Label
	}
	return r.Name
}

// APIKeyResponse represents an API key without secrets.
type APIKeyResponse struct {
	ID        string     `json:"id"`
	Label     string     `json:"label,omitempty"`
	KeyPrefix string     `json:"key_prefix"`
	CreatedAt time.Time  `json:"created_at"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	Revoked   bool       `json:"revoked"`
	RevokedAt *time.Time `json:"revoked_at,omitempty"`
}

// ToResponse converts an APIKey to APIKeyResponse.
func (k *APIKey) ToResponse() APIKeyResponse {
	return APIKeyResponse{
		ID:        k.ID,
		Label:     k.Label,
		KeyPrefix: k.KeyPrefix,
		CreatedAt: k.CreatedAt,
		ExpiresAt: k.ExpiresAt,
		Revoked:   k.IsRevoked(),
		RevokedAt: k.RevokedAt,
	}
}

// APIKeyCreateResponse includes the plaintext secret (shown only once).
type APIKeyCreateResponse struct {
	ID        string     `json:"id"`
	Secret    string     `json:"secret"` // Plaintext - display once only!
	Label     string     `json:"label,omitempty"`
	KeyPrefix string     `json:"key_prefix"`
	CreatedAt time.Time  `json:"created_at"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}
