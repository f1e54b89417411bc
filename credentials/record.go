package credentials

import (
	"context"

	errs "github.com/jrsteele09/go-offline-auth/internal/errors"
	"github.com/jrsteele09/go-offline-auth/securestore"
	"github.com/pkg/errors"
)

// Record is the single credential held by an installation. PasswordHash and
// Salt are always present together.
type Record struct {
	UserID             string
	Username           string
	PasswordHash       string
	Salt               string
	SecurityQuestion   *string
	SecurityAnswerHash *string
}

// HasRecovery reports whether a security question and answer are configured.
func (r *Record) HasRecovery() bool {
	return r.SecurityQuestion != nil && r.SecurityAnswerHash != nil
}

// Repo persists the credential record in secure storage.
type Repo struct {
	store securestore.Store
}

func NewRepo(store securestore.Store) *Repo {
	return &Repo{store: store}
}

// Exists reports whether a credential record has been registered.
func (r *Repo) Exists(ctx context.Context) (bool, error) {
	_, ok, err := r.store.Get(ctx, securestore.KeyUsername)
	if err != nil {
		return false, errors.Wrap(err, "[Repo.Exists] store.Get")
	}
	return ok, nil
}

// Load reads the credential record. It returns ErrNotFound when nothing is
// registered and ErrCrypto when only half of the hash/salt pair is present.
func (r *Repo) Load(ctx context.Context) (*Record, error) {
	username, ok, err := r.store.Get(ctx, securestore.KeyUsername)
	if err != nil {
		return nil, errors.Wrap(err, "[Repo.Load] username")
	}
	if !ok {
		return nil, errs.ErrNotFound
	}

	rec := &Record{Username: username}
	var hasHash, hasSalt bool

	fields := []struct {
		key     string
		dst     *string
		present *bool
	}{
		{securestore.KeyUserID, &rec.UserID, nil},
		{securestore.KeyPasswordHash, &rec.PasswordHash, &hasHash},
		{securestore.KeySalt, &rec.Salt, &hasSalt},
	}
	for _, f := range fields {
		v, ok, err := r.store.Get(ctx, f.key)
		if err != nil {
			return nil, errors.Wrapf(err, "[Repo.Load] %s", f.key)
		}
		*f.dst = v
		if f.present != nil {
			*f.present = ok
		}
	}
	if hasHash != hasSalt || !hasHash {
		return nil, errors.Wrap(errs.ErrCrypto, "[Repo.Load] incomplete password hash/salt pair")
	}

	if rec.SecurityQuestion, err = r.optional(ctx, securestore.KeySecurityQuestion); err != nil {
		return nil, err
	}
	if rec.SecurityAnswerHash, err = r.optional(ctx, securestore.KeySecurityAnswerHash); err != nil {
		return nil, err
	}
	return rec, nil
}

// Save writes a complete record. The username is written last so a partially
// written record is never reported by Exists.
func (r *Repo) Save(ctx context.Context, rec *Record) error {
	writes := []struct{ key, value string }{
		{securestore.KeyUserID, rec.UserID},
		{securestore.KeySalt, rec.Salt},
		{securestore.KeyPasswordHash, rec.PasswordHash},
	}
	if rec.HasRecovery() {
		writes = append(writes,
			struct{ key, value string }{securestore.KeySecurityQuestion, *rec.SecurityQuestion},
			struct{ key, value string }{securestore.KeySecurityAnswerHash, *rec.SecurityAnswerHash},
		)
	}
	for _, w := range writes {
		if err := r.store.Set(ctx, w.key, w.value); err != nil {
			r.discard(ctx)
			return errors.Wrapf(err, "[Repo.Save] %s", w.key)
		}
	}
	if err := r.store.Set(ctx, securestore.KeyUsername, rec.Username); err != nil {
		r.discard(ctx)
		return errors.Wrap(err, "[Repo.Save] username")
	}
	return nil
}

// ReplacePassword swaps the hash and salt as a pair. If the second write
// fails the first is rolled back so the stored pair stays consistent.
func (r *Repo) ReplacePassword(ctx context.Context, hash, salt string) error {
	oldSalt, _, err := r.store.Get(ctx, securestore.KeySalt)
	if err != nil {
		return errors.Wrap(err, "[Repo.ReplacePassword] read salt")
	}
	if err := r.store.Set(ctx, securestore.KeySalt, salt); err != nil {
		return errors.Wrap(err, "[Repo.ReplacePassword] salt")
	}
	if err := r.store.Set(ctx, securestore.KeyPasswordHash, hash); err != nil {
		if rbErr := r.store.Set(ctx, securestore.KeySalt, oldSalt); rbErr != nil {
			return errors.Wrap(rbErr, "[Repo.ReplacePassword] rollback salt")
		}
		return errors.Wrap(err, "[Repo.ReplacePassword] hash")
	}
	return nil
}

// Delete removes every credential key.
func (r *Repo) Delete(ctx context.Context) error {
	for _, key := range credentialKeys {
		if err := r.store.Delete(ctx, key); err != nil {
			return errors.Wrapf(err, "[Repo.Delete] %s", key)
		}
	}
	return nil
}

var credentialKeys = []string{
	securestore.KeyUsername,
	securestore.KeyUserID,
	securestore.KeyPasswordHash,
	securestore.KeySalt,
	securestore.KeySecurityQuestion,
	securestore.KeySecurityAnswerHash,
}

func (r *Repo) optional(ctx context.Context, key string) (*string, error) {
	v, ok, err := r.store.Get(ctx, key)
	if err != nil {
		return nil, errors.Wrapf(err, "[Repo.Load] %s", key)
	}
	if !ok {
		return nil, nil
	}
	return &v, nil
}

// discard removes a partially written record. Its errors are dropped in favour
// of the write error being returned.
func (r *Repo) discard(ctx context.Context) {
	_ = r.Delete(ctx)
}
