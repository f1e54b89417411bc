// Package credentials holds the password hashing primitives and the single
// credential record persisted in secure storage.
package credentials

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"strings"

	"github.com/google/uuid"
	errs "github.com/jrsteele09/go-offline-auth/internal/errors"
	"github.com/pkg/errors"
)

const (
	// DefaultIterations is the number of digest applications per hash.
	DefaultIterations = 10000

	SaltSize         = 32
	SessionTokenSize = 32
	OpaqueIDSize     = 16

	answerSeparator = "$"
)

// Hasher derives password and security-answer hashes by iterating SHA-256
// over password‖salt. The work factor is the iteration count.
type Hasher struct {
	iterations int
}

// HasherOption defines a function type to modify the Hasher instance.
type HasherOption func(*Hasher)

// WithIterations overrides the iteration count. Values below 1 are ignored.
func WithIterations(n int) HasherOption {
	return func(h *Hasher) {
		if n > 0 {
			h.iterations = n
		}
	}
}

func NewHasher(options ...HasherOption) *Hasher {
	h := &Hasher{iterations: DefaultIterations}
	for _, opt := range options {
		opt(h)
	}
	return h
}

func (h *Hasher) Iterations() int {
	return h.iterations
}

// GenerateSalt returns SaltSize random bytes, base64 encoded for storage.
func GenerateSalt() (string, error) {
	b := make([]byte, SaltSize)
	if _, err := rand.Read(b); err != nil {
		return "", errors.Wrap(err, "[GenerateSalt] rand.Read")
	}
	return base64.StdEncoding.EncodeToString(b), nil
}

// HashBytes applies SHA-256 to password‖salt, then re-hashes the digest until
// the digest function has run Iterations() times in total.
func (h *Hasher) HashBytes(password string, salt []byte) []byte {
	input := make([]byte, 0, len(password)+len(salt))
	input = append(input, password...)
	input = append(input, salt...)

	digest := sha256.Sum256(input)
	for i := 1; i < h.iterations; i++ {
		digest = sha256.Sum256(digest[:])
	}
	return digest[:]
}

// Hash hashes password with a base64 encoded salt and returns the base64
// encoded digest. It fails with ErrCrypto only when salt cannot be decoded.
func (h *Hasher) Hash(password, salt string) (string, error) {
	saltBytes, err := decode(salt, "salt")
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(h.HashBytes(password, saltBytes)), nil
}

// Verify recomputes the hash of password and compares it to storedHash in
// constant time.
func (h *Hasher) Verify(password, storedHash, salt string) (bool, error) {
	want, err := decode(storedHash, "password hash")
	if err != nil {
		return false, err
	}
	saltBytes, err := decode(salt, "salt")
	if err != nil {
		return false, err
	}
	return ConstantTimeEqual(h.HashBytes(password, saltBytes), want), nil
}

// NormalizeAnswer lowercases and trims a security answer so comparisons
// ignore case and surrounding whitespace.
func NormalizeAnswer(answer string) string {
	return strings.ToLower(strings.TrimSpace(answer))
}

// HashAnswer hashes a normalized security answer under its own fresh salt.
// The result is "salt$hash" so the answer survives password changes.
func (h *Hasher) HashAnswer(answer string) (string, error) {
	salt, err := GenerateSalt()
	if err != nil {
		return "", err
	}
	hash, err := h.Hash(NormalizeAnswer(answer), salt)
	if err != nil {
		return "", err
	}
	return salt + answerSeparator + hash, nil
}

// VerifyAnswer checks answer against a value produced by HashAnswer.
func (h *Hasher) VerifyAnswer(answer, stored string) (bool, error) {
	salt, hash, ok := strings.Cut(stored, answerSeparator)
	if !ok {
		return false, errors.Wrap(errs.ErrCrypto, "[Hasher.VerifyAnswer] malformed answer hash")
	}
	return h.Verify(NormalizeAnswer(answer), hash, salt)
}

// ConstantTimeEqual reports whether a and b are equal without an early exit
// on the first differing byte. Unequal lengths return false immediately.
func ConstantTimeEqual(a, b []byte) bool {
	return subtle.ConstantTimeCompare(a, b) == 1
}

// GenerateSessionToken returns SessionTokenSize random bytes, URL-safe encoded.
func GenerateSessionToken() (string, error) {
	return randomURLString(SessionTokenSize)
}

// GenerateOpaqueID returns OpaqueIDSize random bytes, URL-safe encoded.
func GenerateOpaqueID() (string, error) {
	return randomURLString(OpaqueIDSize)
}

// NewUserID returns a random identifier for a credential record.
func NewUserID() string {
	return uuid.New().String()
}

func randomURLString(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", errors.Wrap(err, "randomURLString rand.Read")
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func decode(value, what string) ([]byte, error) {
	b, err := base64.StdEncoding.DecodeString(value)
	if err != nil || len(b) == 0 {
		return nil, errors.Wrapf(errs.ErrCrypto, "decode %s", what)
	}
	return b, nil
}
