package config

import "time"

const (
	maxFailedAttemptsVar = "AUTH_MAX_FAILED_ATTEMPTS"
	lockoutDurationVar   = "AUTH_LOCKOUT_DURATION"
	hashIterationsVar    = "AUTH_HASH_ITERATIONS"
)

type SecurityConfig interface {
	GetMaxFailedAttempts() int
	GetLockoutDuration() time.Duration
	GetHashIterations() int
}

type Security struct {
	src *source
}

var _ SecurityConfig = Security{}

func (s Security) GetMaxFailedAttempts() int {
	return s.src.int(maxFailedAttemptsVar, 5)
}

func (s Security) GetLockoutDuration() time.Duration {
	return s.src.duration(lockoutDurationVar, 15*time.Minute)
}

// GetHashIterations returns the digest iteration count. Changing it makes
// previously stored password hashes unverifiable.
func (s Security) GetHashIterations() int {
	return s.src.int(hashIterationsVar, 10000)
}
