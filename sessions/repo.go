package sessions

import (
	"context"
	"encoding/json"
	"time"

	errs "github.com/jrsteele09/go-offline-auth/internal/errors"
	"github.com/jrsteele09/go-offline-auth/securestore"
	"github.com/pkg/errors"
)

// persistedState is the session metadata stored next to the token.
type persistedState struct {
	UserID       string        `json:"user_id"`
	CreatedAt    time.Time     `json:"created_at"`
	LastActivity time.Time     `json:"last_activity"`
	Timeout      time.Duration `json:"timeout"`
}

// Repo stores the session token and its metadata in secure storage.
type Repo struct {
	store securestore.Store
}

func NewRepo(store securestore.Store) *Repo {
	return &Repo{store: store}
}

// Save writes the token and metadata for s.
func (r *Repo) Save(ctx context.Context, s *Session) error {
	state, err := json.Marshal(persistedState{
		UserID:       s.UserID,
		CreatedAt:    s.CreatedAt,
		LastActivity: s.LastActivity,
		Timeout:      s.Timeout,
	})
	if err != nil {
		return errors.Wrap(err, "[Repo.Save] json.Marshal")
	}
	if err := r.store.Set(ctx, securestore.KeySessionToken, s.Token); err != nil {
		return errors.Wrap(err, "[Repo.Save] token")
	}
	if err := r.store.Set(ctx, securestore.KeySessionState, string(state)); err != nil {
		return errors.Wrap(err, "[Repo.Save] state")
	}
	return nil
}

// Load returns the persisted session or ErrNoSession when none is stored.
// The returned session is marked active; validity is the caller's decision.
func (r *Repo) Load(ctx context.Context) (*Session, error) {
	token, ok, err := r.store.Get(ctx, securestore.KeySessionToken)
	if err != nil {
		return nil, errors.Wrap(err, "[Repo.Load] token")
	}
	if !ok {
		return nil, errs.ErrNoSession
	}
	raw, ok, err := r.store.Get(ctx, securestore.KeySessionState)
	if err != nil {
		return nil, errors.Wrap(err, "[Repo.Load] state")
	}
	if !ok {
		return nil, errs.ErrNoSession
	}

	var state persistedState
	if err := json.Unmarshal([]byte(raw), &state); err != nil {
		return nil, errs.Storage(err, "[Repo.Load] json.Unmarshal")
	}
	if state.UserID == "" || state.Timeout <= 0 {
		return nil, errs.ErrNoSession
	}

	s := &Session{
		UserID:    state.UserID,
		Token:     token,
		CreatedAt: state.CreatedAt,
		Timeout:   state.Timeout,
		Active:    true,
	}
	s.touch(state.LastActivity)
	return s, nil
}

// Delete removes the token and metadata.
func (r *Repo) Delete(ctx context.Context) error {
	if err := r.store.Delete(ctx, securestore.KeySessionToken); err != nil {
		return errors.Wrap(err, "[Repo.Delete] token")
	}
	if err := r.store.Delete(ctx, securestore.KeySessionState); err != nil {
		return errors.Wrap(err, "[Repo.Delete] state")
	}
	return nil
}
