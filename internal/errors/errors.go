package errors

import (
	"errors"
	"fmt"
)

// Common error types shared by the credential, lockout and session packages
var (
	// Collaborator errors
	ErrStorage = errors.New("secure storage failure")
	ErrCrypto  = errors.New("corrupted credential encoding")

	// Record errors
	ErrNotFound = errors.New("not found")

	// Session errors
	ErrNoSession      = errors.New("no active session")
	ErrSessionExpired = errors.New("session expired")

	// Biometric errors
	ErrBiometricUnavailable = errors.New("biometric authentication unavailable")
)

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// Storage marks err as a storage failure while keeping the original cause matchable.
func Storage(err error, op string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", op, ErrStorage, err)
}
