package credentials_test

import (
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"testing"

	"github.com/jrsteele09/go-offline-auth/credentials"
	errs "github.com/jrsteele09/go-offline-auth/internal/errors"
	"github.com/stretchr/testify/require"
)

const fixedSalt = "c2FsdHNhbHRzYWx0c2FsdHNhbHRzYWx0c2FsdHNhbHQ="

func TestHasher_DefaultIterationsPinned(t *testing.T) {
	require.Equal(t, 10000, credentials.DefaultIterations)
	require.Equal(t, 10000, credentials.NewHasher().Iterations())
	require.Equal(t, 10000, credentials.NewHasher(credentials.WithIterations(0)).Iterations())
}

func TestHasher_HashMatchesIteratedSHA256(t *testing.T) {
	h := credentials.NewHasher()
	salt, err := base64.StdEncoding.DecodeString(fixedSalt)
	require.NoError(t, err)

	digest := sha256.Sum256(append([]byte("Str0ng!Pass123"), salt...))
	for i := 1; i < credentials.DefaultIterations; i++ {
		digest = sha256.Sum256(digest[:])
	}

	got, err := h.Hash("Str0ng!Pass123", fixedSalt)
	require.NoError(t, err)
	require.Equal(t, base64.StdEncoding.EncodeToString(digest[:]), got)
}

func TestHasher_Deterministic(t *testing.T) {
	h := credentials.NewHasher()
	a, err := h.Hash("password", fixedSalt)
	require.NoError(t, err)
	b, err := h.Hash("password", fixedSalt)
	require.NoError(t, err)
	require.Equal(t, a, b)

	ok, err := h.Verify("password", a, fixedSalt)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = h.Verify("Password", a, fixedSalt)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestHasher_IterationCountChangesOutput(t *testing.T) {
	a, err := credentials.NewHasher(credentials.WithIterations(1)).Hash("password", fixedSalt)
	require.NoError(t, err)
	b, err := credentials.NewHasher(credentials.WithIterations(2)).Hash("password", fixedSalt)
	require.NoError(t, err)
	require.NotEqual(t, a, b)
}

func TestHasher_NoCollisionsAcrossPasswords(t *testing.T) {
	h := credentials.NewHasher(credentials.WithIterations(10))
	seen := make(map[string]string, 2000)
	for i := 0; i < 2000; i++ {
		pw := fmt.Sprintf("password-%d", i)
		hash, err := h.Hash(pw, fixedSalt)
		require.NoError(t, err)
		prev, dup := seen[hash]
		require.False(t, dup, "collision between %q and %q", prev, pw)
		seen[hash] = pw
	}
}

func TestHasher_DifferentSaltsDiffer(t *testing.T) {
	h := credentials.NewHasher(credentials.WithIterations(10))
	s1, err := credentials.GenerateSalt()
	require.NoError(t, err)
	s2, err := credentials.GenerateSalt()
	require.NoError(t, err)

	a, err := h.Hash("password", s1)
	require.NoError(t, err)
	b, err := h.Hash("password", s2)
	require.NoError(t, err)
	require.NotEqual(t, a, b)
}

func TestGenerateSalt_Unique(t *testing.T) {
	seen := make(map[string]struct{}, 10000)
	for i := 0; i < 10000; i++ {
		salt, err := credentials.GenerateSalt()
		require.NoError(t, err)
		raw, err := base64.StdEncoding.DecodeString(salt)
		require.NoError(t, err)
		require.Len(t, raw, credentials.SaltSize)
		_, dup := seen[salt]
		require.False(t, dup)
		seen[salt] = struct{}{}
	}
}

func TestHasher_CorruptedEncoding(t *testing.T) {
	h := credentials.NewHasher(credentials.WithIterations(1))

	t.Run("bad salt", func(t *testing.T) {
		_, err := h.Hash("password", "!!not-base64!!")
		require.ErrorIs(t, err, errs.ErrCrypto)
	})

	t.Run("bad stored hash", func(t *testing.T) {
		_, err := h.Verify("password", "%%%", fixedSalt)
		require.ErrorIs(t, err, errs.ErrCrypto)
	})

	t.Run("bad answer hash", func(t *testing.T) {
		_, err := h.VerifyAnswer("blue", "no-separator")
		require.ErrorIs(t, err, errs.ErrCrypto)
	})
}

func TestConstantTimeEqual(t *testing.T) {
	require.True(t, credentials.ConstantTimeEqual([]byte{1, 2, 3}, []byte{1, 2, 3}))
	require.False(t, credentials.ConstantTimeEqual([]byte{1, 2, 3}, []byte{1, 2, 4}))
	require.False(t, credentials.ConstantTimeEqual([]byte{1, 2, 3}, []byte{1, 2}))
}

func TestHasher_SecurityAnswerNormalized(t *testing.T) {
	h := credentials.NewHasher(credentials.WithIterations(5))
	stored, err := h.HashAnswer("  Fluffy ")
	require.NoError(t, err)

	for _, answer := range []string{"fluffy", "FLUFFY", "  fLuFfY\t"} {
		ok, err := h.VerifyAnswer(answer, stored)
		require.NoError(t, err)
		require.True(t, ok, answer)
	}

	ok, err := h.VerifyAnswer("rex", stored)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestGenerateSessionToken(t *testing.T) {
	a, err := credentials.GenerateSessionToken()
	require.NoError(t, err)
	b, err := credentials.GenerateSessionToken()
	require.NoError(t, err)
	require.NotEqual(t, a, b)

	raw, err := base64.RawURLEncoding.DecodeString(a)
	require.NoError(t, err)
	require.Len(t, raw, credentials.SessionTokenSize)

	id, err := credentials.GenerateOpaqueID()
	require.NoError(t, err)
	raw, err = base64.RawURLEncoding.DecodeString(id)
	require.NoError(t, err)
	require.Len(t, raw, credentials.OpaqueIDSize)

	require.NotEqual(t, credentials.NewUserID(), credentials.NewUserID())
}
