// Package sqlitestore is a durable securestore.Store kept in a local SQLite
// database. Values are sealed with XChaCha20-Poly1305 under a key derived
// from a passphrase with argon2id; the key name is bound as associated data
// so a ciphertext cannot be replayed under another key.
package sqlitestore

import (
	"context"
	"crypto/rand"
	"database/sql"
	"errors"
	"fmt"

	errs "github.com/jrsteele09/go-offline-auth/internal/errors"
	"github.com/jrsteele09/go-offline-auth/securestore"
	"github.com/jrsteele09/go-offline-auth/securestore/sqlitestore/migrations"
	"github.com/pressly/goose/v3"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
	_ "modernc.org/sqlite" // pure-Go SQLite driver
)

const (
	metaKDFSalt  = "kdf_salt"
	metaVerifier = "verifier"
	kdfSaltSize  = 16
	verifierText = "go-offline-auth"
)

// ErrWrongPassphrase is returned by Open when the passphrase does not match
// the one the database was created with.
var ErrWrongPassphrase = errors.New("wrong store passphrase")

var _ securestore.Store = (*Store)(nil)

type Store struct {
	db   *sql.DB
	aead cipherAEAD
}

// cipherAEAD is the subset of cipher.AEAD used here.
type cipherAEAD interface {
	NonceSize() int
	Seal(dst, nonce, plaintext, additionalData []byte) []byte
	Open(dst, nonce, ciphertext, additionalData []byte) ([]byte, error)
}

// Open opens (creating if necessary) the database at dsn, runs migrations
// and unlocks it with passphrase.
func Open(ctx context.Context, dsn string, passphrase []byte) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, errs.Storage(err, "[sqlitestore.Open] sql.Open")
	}
	db.SetMaxOpenConns(1)

	if err := RunMigrations(ctx, db); err != nil {
		db.Close()
		return nil, errs.Storage(err, "[sqlitestore.Open] migrations")
	}

	s := &Store{db: db}
	if err := s.unlock(ctx, passphrase); err != nil {
		db.Close()
		return nil, err
	}

	log.Debug().Str("dsn", dsn).Msg("secure store opened")
	return s, nil
}

func RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	goose.SetLogger(goose.NopLogger())

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}
	return goose.UpContext(ctx, db, ".")
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) unlock(ctx context.Context, passphrase []byte) error {
	salt, err := s.getMeta(ctx, metaKDFSalt)
	if err != nil {
		return errs.Storage(err, "[sqlitestore.unlock] read salt")
	}
	blob, err := s.getMeta(ctx, metaVerifier)
	if err != nil {
		return errs.Storage(err, "[sqlitestore.unlock] read verifier")
	}

	fresh := salt == nil
	if !fresh && blob == nil {
		// Salt without verifier: initialisation never finished. Start over
		// unless something was already sealed under that salt.
		empty, err := s.empty(ctx)
		if err != nil {
			return errs.Storage(err, "[sqlitestore.unlock] count secrets")
		}
		if !empty {
			return errs.Storage(ErrWrongPassphrase, "[sqlitestore.unlock] verifier missing")
		}
		fresh = true
	}
	if fresh {
		salt = make([]byte, kdfSaltSize)
		if _, err := rand.Read(salt); err != nil {
			return errs.Storage(err, "[sqlitestore.unlock] rand.Read")
		}
	}

	key := argon2.IDKey(passphrase, salt, 1, 64*1024, 4, chacha20poly1305.KeySize)
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return errs.Storage(err, "[sqlitestore.unlock] chacha20poly1305.NewX")
	}
	s.aead = aead

	if fresh {
		nonce, sealed, err := s.seal(metaVerifier, verifierText)
		if err != nil {
			return err
		}
		return s.initMeta(ctx, salt, append(nonce, sealed...))
	}

	ns := s.aead.NonceSize()
	if len(blob) < ns {
		return errs.Storage(ErrWrongPassphrase, "[sqlitestore.unlock] verifier truncated")
	}
	plain, err := s.open(metaVerifier, blob[:ns], blob[ns:])
	if err != nil || plain != verifierText {
		return errs.Storage(ErrWrongPassphrase, "[sqlitestore.unlock]")
	}
	return nil
}

func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	var nonce, sealed []byte
	err := s.db.QueryRowContext(ctx, `SELECT nonce, value FROM secrets WHERE key = ?`, key).Scan(&nonce, &sealed)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, errs.Storage(err, fmt.Sprintf("failed to get secret[%s]", key))
	}

	value, err := s.open(key, nonce, sealed)
	if err != nil {
		return "", false, errs.Storage(err, fmt.Sprintf("failed to open secret[%s]", key))
	}
	return value, true, nil
}

func (s *Store) Set(ctx context.Context, key, value string) error {
	nonce, sealed, err := s.seal(key, value)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO secrets (key, nonce, value) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET nonce = excluded.nonce, value = excluded.value
	`, key, nonce, sealed)
	if err != nil {
		return errs.Storage(err, fmt.Sprintf("failed to set secret[%s]", key))
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM secrets WHERE key = ?`, key); err != nil {
		return errs.Storage(err, fmt.Sprintf("failed to delete secret[%s]", key))
	}
	return nil
}

func (s *Store) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM secrets`); err != nil {
		return errs.Storage(err, "failed to clear secrets")
	}
	return nil
}

func (s *Store) seal(key, value string) (nonce, sealed []byte, err error) {
	nonce = make([]byte, s.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, nil, errs.Storage(err, "[sqlitestore.seal] rand.Read")
	}
	return nonce, s.aead.Seal(nil, nonce, []byte(value), []byte(key)), nil
}

func (s *Store) open(key string, nonce, sealed []byte) (string, error) {
	plain, err := s.aead.Open(nil, nonce, sealed, []byte(key))
	if err != nil {
		return "", err
	}
	return string(plain), nil
}

func (s *Store) getMeta(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := s.db.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return value, err
}

// initMeta writes the KDF salt and the verifier together so a database is
// never left with one and not the other.
func (s *Store) initMeta(ctx context.Context, salt, verifier []byte) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errs.Storage(err, "[sqlitestore.initMeta] begin tx")
	}
	defer tx.Rollback() // no-op after commit

	if err := setMeta(ctx, tx, metaKDFSalt, salt); err != nil {
		return errs.Storage(err, "[sqlitestore.initMeta] write salt")
	}
	if err := setMeta(ctx, tx, metaVerifier, verifier); err != nil {
		return errs.Storage(err, "[sqlitestore.initMeta] write verifier")
	}
	if err := tx.Commit(); err != nil {
		return errs.Storage(err, "[sqlitestore.initMeta] commit tx")
	}
	return nil
}

func (s *Store) empty(ctx context.Context) (bool, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM secrets`).Scan(&n); err != nil {
		return false, err
	}
	return n == 0, nil
}

// execer is satisfied by both *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func setMeta(ctx context.Context, db execer, key string, value []byte) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO meta (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	return err
}
