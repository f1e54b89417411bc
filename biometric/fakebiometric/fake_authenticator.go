package fakebiometric

import (
	"context"
	"sync"

	"github.com/jrsteele09/go-offline-auth/biometric"
)

var _ biometric.Authenticator = (*FakeAuthenticator)(nil)

// FakeAuthenticator returns scripted results and records the prompts it was shown.
type FakeAuthenticator struct {
	available bool
	result    bool
	err       error
	reasons   []string
	lock      sync.Mutex
}

// New returns an available authenticator that accepts every prompt.
func New() *FakeAuthenticator {
	return &FakeAuthenticator{available: true, result: true}
}

func (f *FakeAuthenticator) SetAvailable(available bool) {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.available = available
}

// SetResult scripts the outcome of every subsequent Authenticate call.
func (f *FakeAuthenticator) SetResult(ok bool, err error) {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.result = ok
	f.err = err
}

// Prompts returns the reasons passed to Authenticate, oldest first.
func (f *FakeAuthenticator) Prompts() []string {
	f.lock.Lock()
	defer f.lock.Unlock()
	return append([]string(nil), f.reasons...)
}

func (f *FakeAuthenticator) IsAvailable(context.Context) bool {
	f.lock.Lock()
	defer f.lock.Unlock()
	return f.available
}

func (f *FakeAuthenticator) Authenticate(_ context.Context, reason string) (bool, error) {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.reasons = append(f.reasons, reason)
	return f.result, f.err
}
