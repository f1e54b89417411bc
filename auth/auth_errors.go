package auth

import (
	"fmt"
	"strings"
	"time"

	errs "github.com/jrsteele09/go-offline-auth/internal/errors"
)

// Kind identifies a class of authentication failure.
type Kind int

const (
	KindUnknown Kind = iota
	KindInvalidCredentials
	KindUserNotFound
	KindUserAlreadyExists
	KindWeakPassword
	KindAccountLocked
	KindSessionExpired
	KindUserNotAuthenticated
	KindSecurityAnswerIncorrect
	KindCurrentPasswordIncorrect
	KindValidation
	KindCrypto
	KindSecureStorage
	KindBiometricUnavailable
)

var kindNames = map[Kind]string{
	KindInvalidCredentials:       "invalid credentials",
	KindUserNotFound:             "user not found",
	KindUserAlreadyExists:        "user already exists",
	KindWeakPassword:             "password too weak",
	KindAccountLocked:            "account locked",
	KindSessionExpired:           "session expired",
	KindUserNotAuthenticated:     "user not authenticated",
	KindSecurityAnswerIncorrect:  "security answer incorrect",
	KindCurrentPasswordIncorrect: "current password incorrect",
	KindValidation:               "validation failed",
	KindCrypto:                   "corrupted credential data",
	KindSecureStorage:            "secure storage failure",
	KindBiometricUnavailable:     "biometric authentication unavailable",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown error"
}

// Message keys handed to the presentation layer. Every kind maps to exactly
// one key and anything unrecognised maps to MessageKeyGeneric.
const MessageKeyGeneric = "error.generic"

var messageKeys = map[Kind]string{
	KindInvalidCredentials:       "error.auth.invalid_credentials",
	KindUserNotFound:             "error.auth.user_not_found",
	KindUserAlreadyExists:        "error.auth.user_already_exists",
	KindWeakPassword:             "error.auth.weak_password",
	KindAccountLocked:            "error.auth.account_locked",
	KindSessionExpired:           "error.session.expired",
	KindUserNotAuthenticated:     "error.session.not_authenticated",
	KindSecurityAnswerIncorrect:  "error.recovery.answer_incorrect",
	KindCurrentPasswordIncorrect: "error.auth.current_password_incorrect",
	KindValidation:               "error.validation",
	KindCrypto:                   "error.crypto",
	KindSecureStorage:            "error.storage",
	KindBiometricUnavailable:     "error.biometric.unavailable",
}

// FieldError describes one invalid input field.
type FieldError struct {
	Field   string
	Message string
}

// Error is the typed failure returned by every Coordinator operation.
type Error struct {
	Kind        Kind
	Remaining   time.Duration // set for KindAccountLocked
	FieldErrors []FieldError  // set for KindValidation
	Err         error         // underlying cause, if any
}

// Sentinels for errors.Is comparisons. Matching is by Kind only.
var (
	ErrInvalidCredentials       = &Error{Kind: KindInvalidCredentials}
	ErrUserNotFound             = &Error{Kind: KindUserNotFound}
	ErrUserAlreadyExists        = &Error{Kind: KindUserAlreadyExists}
	ErrWeakPassword             = &Error{Kind: KindWeakPassword}
	ErrAccountLocked            = &Error{Kind: KindAccountLocked}
	ErrSessionExpired           = &Error{Kind: KindSessionExpired}
	ErrUserNotAuthenticated     = &Error{Kind: KindUserNotAuthenticated}
	ErrSecurityAnswerIncorrect  = &Error{Kind: KindSecurityAnswerIncorrect}
	ErrCurrentPasswordIncorrect = &Error{Kind: KindCurrentPasswordIncorrect}
	ErrValidation               = &Error{Kind: KindValidation}
	ErrCrypto                   = &Error{Kind: KindCrypto}
	ErrSecureStorage            = &Error{Kind: KindSecureStorage}
	ErrBiometricUnavailable     = &Error{Kind: KindBiometricUnavailable}
)

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.String())

	switch e.Kind {
	case KindAccountLocked:
		fmt.Fprintf(&b, ": retry in %s", e.Remaining.Round(time.Second))
	case KindValidation:
		parts := make([]string, 0, len(e.FieldErrors))
		for _, fe := range e.FieldErrors {
			parts = append(parts, fe.Field+" "+fe.Message)
		}
		if len(parts) > 0 {
			b.WriteString(": ")
			b.WriteString(strings.Join(parts, "; "))
		}
	}

	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same Kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// MessageKey returns the stable message key for err.
func MessageKey(err error) string {
	var e *Error
	if !errs.As(err, &e) {
		return MessageKeyGeneric
	}
	if key, ok := messageKeys[e.Kind]; ok {
		return key
	}
	return MessageKeyGeneric
}

// KindOf returns the Kind carried by err, or KindUnknown.
func KindOf(err error) Kind {
	var e *Error
	if errs.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

func newError(kind Kind, cause error) *Error {
	return &Error{Kind: kind, Err: cause}
}

func lockedError(remaining time.Duration) *Error {
	return &Error{Kind: KindAccountLocked, Remaining: remaining}
}

// translate lifts a lower-layer failure into the taxonomy. Crypto and storage
// failures keep their cause; an existing *Error passes through unchanged.
func translate(err error, op string) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errs.As(err, &e) {
		return err
	}
	switch {
	case errs.Is(err, errs.ErrCrypto):
		return newError(KindCrypto, errs.Wrapf(err, "%s", op))
	case errs.Is(err, errs.ErrStorage):
		return newError(KindSecureStorage, errs.Wrapf(err, "%s", op))
	case errs.Is(err, errs.ErrNotFound):
		return newError(KindUserNotFound, nil)
	case errs.Is(err, errs.ErrSessionExpired):
		return newError(KindSessionExpired, nil)
	case errs.Is(err, errs.ErrNoSession):
		return newError(KindUserNotAuthenticated, nil)
	case errs.Is(err, errs.ErrBiometricUnavailable):
		return newError(KindBiometricUnavailable, nil)
	}
	return errs.Wrapf(err, "%s", op)
}
