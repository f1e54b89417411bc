// Package securestore defines the encrypted key-value storage collaborator
// used to persist the credential record, lockout counters and the session
// token. Implementations guarantee encryption at rest; callers treat values
// as plain strings.
package securestore

import "context"

// Persisted keys, one value each.
const (
	KeyUserID             = "user_id"
	KeyUsername           = "username"
	KeyPasswordHash       = "password_hash"
	KeySalt               = "salt"
	KeySessionToken       = "session_token"
	KeySessionState       = "session_state"
	KeyBiometricEnabled   = "biometric_enabled"
	KeyLastLogin          = "last_login"
	KeyFailedAttempts     = "failed_attempts"
	KeyLockoutUntil       = "lockout_until"
	KeySecurityQuestion   = "security_question"
	KeySecurityAnswerHash = "security_answer_hash"
)

// Store is a string-keyed secure store. Every method fails only with an
// error wrapping errors.ErrStorage.
type Store interface {
	// Get returns the value for key and whether it was present
	Get(ctx context.Context, key string) (string, bool, error)

	// Set creates or replaces the value for key
	Set(ctx context.Context, key, value string) error

	// Delete removes key; deleting a missing key is not an error
	Delete(ctx context.Context, key string) error

	// Clear removes every key
	Clear(ctx context.Context) error
}
