package auth

import (
	"strings"
	"time"

	"github.com/jrsteele09/go-offline-auth/internal/utils"
)

// RegisterParameters carries the inputs to Coordinator.Register. The security
// question and answer are optional but must be given together.
type RegisterParameters struct {
	Username         string
	Password         string
	SecurityQuestion *string
	SecurityAnswer   *string
}

func (p RegisterParameters) hasQuestion() bool {
	return strings.TrimSpace(utils.Value(p.SecurityQuestion)) != ""
}

func (p RegisterParameters) hasAnswer() bool {
	return strings.TrimSpace(utils.Value(p.SecurityAnswer)) != ""
}

// Status is a read-only summary of the installation's authentication state.
type Status struct {
	Registered       bool
	Username         string
	SessionState     string
	Remaining        time.Duration
	NeedsRefresh     bool
	FailedAttempts   int
	LockedFor        time.Duration
	BiometricEnabled bool
	LastLogin        *time.Time
}
