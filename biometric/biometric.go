// Package biometric defines the device biometric collaborator. Enrollment is
// owned by the platform; this package only asks whether a prompt can be shown
// and whether it succeeded.
package biometric

import "context"

// Authenticator prompts the device user for a biometric match.
type Authenticator interface {
	// IsAvailable reports whether the device has usable biometric hardware
	IsAvailable(ctx context.Context) bool

	// Authenticate shows a prompt with reason and reports whether it succeeded
	Authenticate(ctx context.Context, reason string) (bool, error)
}

// Unavailable is an Authenticator for devices without biometric support.
type Unavailable struct{}

var _ Authenticator = Unavailable{}

func (Unavailable) IsAvailable(context.Context) bool {
	return false
}

func (Unavailable) Authenticate(context.Context, string) (bool, error) {
	return false, nil
}
