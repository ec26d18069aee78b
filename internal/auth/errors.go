package auth

import "errors"

// Failure reasons reported by UnauthorizedError and counted by metrics.
const (
	ReasonMissingKey      = "missing_key"
	ReasonInvalidFormat   = "invalid_format"
	ReasonInvalidKey      = "invalid_key"
	ReasonRevoked         = "revoked"
	ReasonExpired         = "expired"
	ReasonInvalidAdminKey = "invalid_admin_key"
)

var (
	// ErrUnauthorized is matched by every verification failure.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrKeyNotFound is returned when revoking an unknown key ID.
	ErrKeyNotFound = errors.New("api key not found")
	// ErrStoreFailure wraps errors from the key store.
	ErrStoreFailure = errors.New("key store failure")
	// ErrExpiresInPast rejects keys created with an expiry that already passed.
	ErrExpiresInPast = errors.New("expires_at must be in the future")
	// ErrInvalidLabel rejects labels that are too long or contain control characters.
	ErrInvalidLabel = errors.New("invalid label")
	// ErrAdminKeyRequired is returned by NewService without an admin key.
	ErrAdminKeyRequired = errors.New("admin key is required")
)

// UnauthorizedError describes why a presented key was rejected. The
// reason is for logs and metrics only; clients see a uniform 401.
type UnauthorizedError struct {
	Reason string
}

func (e *UnauthorizedError) Error() string {
	return "unauthorized: " + e.Reason
}

// Is makes errors.Is(err, ErrUnauthorized) hold for every reason.
func (e *UnauthorizedError) Is(target error) bool {
	return target == ErrUnauthorized
}

func unauthorized(reason string) error {
	return &UnauthorizedError{Reason: reason}
}

// FailureReason extracts the reason from an UnauthorizedError, or "".
func FailureReason(err error) string {
	var ue *UnauthorizedError
	if errors.As(err, &ue) {
		return ue.Reason
	}
	return ""
}
