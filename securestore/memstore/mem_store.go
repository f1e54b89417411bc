package memstore

import (
	"context"
	"errors"
	"sync"

	errs "github.com/jrsteele09/go-offline-auth/internal/errors"
	"github.com/jrsteele09/go-offline-auth/securestore"
)

var _ securestore.Store = (*MemStore)(nil)

// Op names a store operation for failure injection.
type Op string

const (
	OpGet    Op = "get"
	OpSet    Op = "set"
	OpDelete Op = "delete"
	OpClear  Op = "clear"
)

var errInjected = errors.New("injected failure")

// MemStore is an in-memory Store used by tests and as a volatile store.
type MemStore struct {
	values  map[string]string
	fail    map[Op]bool
	failKey map[Op]map[string]bool
	lock    sync.RWMutex
}

func New() *MemStore {
	return &MemStore{
		values:  make(map[string]string),
		fail:    make(map[Op]bool),
		failKey: make(map[Op]map[string]bool),
	}
}

// FailOn makes every subsequent call of op return a storage error.
func (s *MemStore) FailOn(op Op) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.fail[op] = true
}

// FailOnKey makes subsequent calls of op on key return a storage error.
func (s *MemStore) FailOnKey(op Op, key string) {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.failKey[op] == nil {
		s.failKey[op] = make(map[string]bool)
	}
	s.failKey[op][key] = true
}

// Recover clears all injected failures.
func (s *MemStore) Recover() {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.fail = make(map[Op]bool)
	s.failKey = make(map[Op]map[string]bool)
}

func (s *MemStore) failing(op Op, key string) bool {
	return s.fail[op] || s.failKey[op][key]
}

// Snapshot returns a copy of the stored values.
func (s *MemStore) Snapshot() map[string]string {
	s.lock.RLock()
	defer s.lock.RUnlock()
	out := make(map[string]string, len(s.values))
	for k, v := range s.values {
		out[k] = v
	}
	return out
}

func (s *MemStore) Get(_ context.Context, key string) (string, bool, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()

	if s.failing(OpGet, key) {
		return "", false, errs.Storage(errInjected, "memstore get "+key)
	}
	v, ok := s.values[key]
	return v, ok, nil
}

func (s *MemStore) Set(_ context.Context, key, value string) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	if s.failing(OpSet, key) {
		return errs.Storage(errInjected, "memstore set "+key)
	}
	s.values[key] = value
	return nil
}

func (s *MemStore) Delete(_ context.Context, key string) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	if s.failing(OpDelete, key) {
		return errs.Storage(errInjected, "memstore delete "+key)
	}
	delete(s.values, key)
	return nil
}

func (s *MemStore) Clear(_ context.Context) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	if s.fail[OpClear] {
		return errs.Storage(errInjected, "memstore clear")
	}
	s.values = make(map[string]string)
	return nil
}
