// Package sessions owns the single active session: creation, activity
// tracking, token refresh, and the warning/expiry timers that end it.
package sessions

import (
	"context"
	"sync"
	"time"

	"github.com/jrsteele09/go-offline-auth/clock"
	"github.com/jrsteele09/go-offline-auth/credentials"
	errs "github.com/jrsteele09/go-offline-auth/internal/errors"
	"github.com/jrsteele09/go-offline-auth/securestore"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const (
	DefaultTimeout          = 8 * time.Hour
	DefaultWarningWindow    = 5 * time.Minute
	DefaultMaxBackground    = 15 * time.Minute
	DefaultRefreshThreshold = 1 * time.Hour
)

// Manager serializes every mutation of the current session behind one
// mutex. Timer callbacks take the same mutex and act only if the generation
// they were armed with is still current, so a superseded timer is inert even
// if Stop lost the race with its firing.
type Manager struct {
	repo             *Repo
	clock            clock.Clock
	timeout          time.Duration
	warningWindow    time.Duration
	maxBackground    time.Duration
	refreshThreshold time.Duration
	newToken         func() (string, error)
	handlers         []EventHandler

	mu             sync.Mutex
	current        *Session
	warned         bool
	expired        bool
	generation     uint64
	warningTimer   clock.Timer
	expiryTimer    clock.Timer
	backgroundedAt time.Time

	pending  []Event
	draining bool
}

// ManagerOption defines a function type to modify the Manager instance.
type ManagerOption func(*Manager)

// WithClock sets the clock used for timestamps and timers (primarily for testing).
func WithClock(c clock.Clock) ManagerOption {
	return func(m *Manager) {
		m.clock = c
	}
}

// WithTimeout sets the default inactivity timeout used by Create.
func WithTimeout(d time.Duration) ManagerOption {
	return func(m *Manager) {
		if d > 0 {
			m.timeout = d
		}
	}
}

// WithWarningWindow sets how long before expiry the warning event fires.
func WithWarningWindow(d time.Duration) ManagerOption {
	return func(m *Manager) {
		if d >= 0 {
			m.warningWindow = d
		}
	}
}

// WithMaxBackgroundTime sets how long the app may stay backgrounded before
// returning to the foreground forces expiry.
func WithMaxBackgroundTime(d time.Duration) ManagerOption {
	return func(m *Manager) {
		if d > 0 {
			m.maxBackground = d
		}
	}
}

// WithRefreshThreshold sets the remaining time at or below which NeedsRefresh reports true.
func WithRefreshThreshold(d time.Duration) ManagerOption {
	return func(m *Manager) {
		if d >= 0 {
			m.refreshThreshold = d
		}
	}
}

// WithEventHandler registers a handler for session events.
func WithEventHandler(h EventHandler) ManagerOption {
	return func(m *Manager) {
		if h != nil {
			m.handlers = append(m.handlers, h)
		}
	}
}

// WithTokenGenerator replaces the session token source.
func WithTokenGenerator(gen func() (string, error)) ManagerOption {
	return func(m *Manager) {
		if gen != nil {
			m.newToken = gen
		}
	}
}

func NewManager(store securestore.Store, opts ...ManagerOption) *Manager {
	m := &Manager{
		repo:             NewRepo(store),
		clock:            clock.Real(),
		timeout:          DefaultTimeout,
		warningWindow:    DefaultWarningWindow,
		maxBackground:    DefaultMaxBackground,
		refreshThreshold: DefaultRefreshThreshold,
		newToken:         credentials.GenerateSessionToken,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Manager) Timeout() time.Duration {
	return m.timeout
}

// Create replaces any existing session with a new one for userID. A timeout
// of zero uses the configured default.
func (m *Manager) Create(ctx context.Context, userID string, timeout time.Duration) (Session, error) {
	if timeout <= 0 {
		timeout = m.timeout
	}

	token, err := m.newToken()
	if err != nil {
		return Session{}, errors.Wrap(err, "[Manager.Create] newToken")
	}

	m.mu.Lock()
	defer m.drain()
	defer m.mu.Unlock()

	if m.current != nil {
		prior := m.current.UserID
		m.clearLocked()
		m.enqueue(EventEnded, prior)
	}

	now := m.clock.Now()
	s := &Session{
		UserID:    userID,
		Token:     token,
		CreatedAt: now,
		Timeout:   timeout,
		Active:    true,
	}
	s.touch(now)

	if err := m.repo.Save(ctx, s); err != nil {
		if derr := m.repo.Delete(ctx); derr != nil {
			log.Err(derr).Msg("failed to delete superseded persisted session")
		}
		return Session{}, errors.Wrap(err, "[Manager.Create] persist")
	}

	m.installLocked(s)
	m.enqueue(EventCreated, "")

	log.Info().
		Str("user_id", userID).
		Str("token", tokenPrefix(token)).
		Time("expires_at", s.ExpiresAt).
		Msg("session created")
	return *s, nil
}

// Restore re-installs the persisted session if it is still within its
// timeout. An expired copy is removed and ErrSessionExpired returned.
func (m *Manager) Restore(ctx context.Context) (Session, error) {
	m.mu.Lock()
	defer m.drain()
	defer m.mu.Unlock()

	s, err := m.repo.Load(ctx)
	if err != nil {
		return Session{}, err
	}

	if !s.IsValid(m.clock.Now()) {
		if err := m.repo.Delete(ctx); err != nil {
			log.Err(err).Msg("failed to delete expired persisted session")
		}
		if m.current == nil {
			m.expired = true
		}
		return Session{}, errs.ErrSessionExpired
	}

	if m.current != nil {
		m.clearLocked()
	}
	m.installLocked(s)
	m.enqueue(EventRestored, "")

	log.Info().Str("user_id", s.UserID).Time("expires_at", s.ExpiresAt).Msg("session restored")
	return *s, nil
}

// UpdateActivity records activity now and pushes expiry out by the timeout.
// It does nothing when there is no valid session.
func (m *Manager) UpdateActivity(ctx context.Context) error {
	m.mu.Lock()
	defer m.drain()
	defer m.mu.Unlock()

	if !m.validLocked() {
		return nil
	}
	return m.touchLocked(ctx, "[Manager.UpdateActivity]", nil)
}

// Extend re-derives the expiry from now without changing the token.
func (m *Manager) Extend(ctx context.Context) (Session, error) {
	m.mu.Lock()
	defer m.drain()
	defer m.mu.Unlock()

	if !m.validLocked() {
		return Session{}, errs.ErrNoSession
	}
	if err := m.touchLocked(ctx, "[Manager.Extend]", nil); err != nil {
		return Session{}, err
	}
	m.enqueue(EventExtended, "")
	return *m.current, nil
}

// RefreshToken issues a new token, keeping UserID and CreatedAt, and resets
// the activity clock.
func (m *Manager) RefreshToken(ctx context.Context) (Session, error) {
	token, err := m.newToken()
	if err != nil {
		return Session{}, errors.Wrap(err, "[Manager.RefreshToken] newToken")
	}

	m.mu.Lock()
	defer m.drain()
	defer m.mu.Unlock()

	if !m.validLocked() {
		return Session{}, errs.ErrNoSession
	}

	setToken := func(s *Session) { s.Token = token }
	if err := m.touchLocked(ctx, "[Manager.RefreshToken]", setToken); err != nil {
		return Session{}, err
	}
	m.enqueue(EventRefreshed, "")

	log.Info().
		Str("user_id", m.current.UserID).
		Str("token", tokenPrefix(token)).
		Msg("session token refreshed")
	return *m.current, nil
}

// Expire forces the current session to end as if its timer had fired.
func (m *Manager) Expire(ctx context.Context) {
	m.mu.Lock()
	defer m.drain()
	defer m.mu.Unlock()

	m.expireLocked(ctx, "forced")
}

// End clears the session for logout. Memory is cleared first; the returned
// error reports only a failure to remove the persisted copy.
func (m *Manager) End(ctx context.Context) error {
	m.mu.Lock()
	defer m.drain()
	defer m.mu.Unlock()

	if m.current != nil {
		userID := m.current.UserID
		m.clearLocked()
		m.enqueue(EventEnded, userID)
		log.Info().Str("user_id", userID).Msg("session ended")
	}
	m.expired = false
	m.backgroundedAt = time.Time{}

	if err := m.repo.Delete(ctx); err != nil {
		return errors.Wrap(err, "[Manager.End] delete persisted session")
	}
	return nil
}

// EnterBackground records when the app left the foreground.
func (m *Manager) EnterBackground() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.backgroundedAt = m.clock.Now()
}

// EnterForeground expires the session if the app was backgrounded for longer
// than the maximum background time, or if the session lapsed meanwhile. It
// reports whether a valid session remains.
func (m *Manager) EnterForeground(ctx context.Context) bool {
	m.mu.Lock()
	defer m.drain()
	defer m.mu.Unlock()

	now := m.clock.Now()
	since := m.backgroundedAt
	m.backgroundedAt = time.Time{}

	if m.current == nil {
		return false
	}
	if !since.IsZero() && now.Sub(since) > m.maxBackground {
		m.expireLocked(ctx, "background timeout")
		return false
	}
	if !m.current.IsValid(now) {
		m.expireLocked(ctx, "timeout")
		return false
	}
	return true
}

// Current returns a copy of the session if one is installed.
func (m *Manager) Current() (Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current == nil {
		return Session{}, false
	}
	return *m.current, true
}

func (m *Manager) IsValid() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.validLocked()
}

func (m *Manager) RemainingTime() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current == nil {
		return 0
	}
	return m.current.RemainingTime(m.clock.Now())
}

func (m *Manager) NeedsRefresh() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current == nil {
		return false
	}
	return m.current.NeedsRefresh(m.clock.Now(), m.refreshThreshold)
}

func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch {
	case m.current == nil && m.expired:
		return Expired
	case m.current == nil:
		return NoSession
	case !m.current.IsValid(m.clock.Now()):
		return Expired
	case m.warned || m.current.RemainingTime(m.clock.Now()) <= m.warningWindow:
		return Warning
	default:
		return Active
	}
}

func (m *Manager) validLocked() bool {
	return m.current != nil && m.current.IsValid(m.clock.Now())
}

// touchLocked applies change, restarts the activity clock and persists the
// result. If persisting fails the prior record, its timers and its stored
// copy are put back.
func (m *Manager) touchLocked(ctx context.Context, op string, change func(*Session)) error {
	prior, warned := *m.current, m.warned
	if change != nil {
		change(m.current)
	}
	m.current.touch(m.clock.Now())
	m.warned = false
	m.armLocked()

	err := m.repo.Save(ctx, m.current)
	if err == nil {
		return nil
	}

	*m.current = prior
	m.warned = warned
	m.armLocked()
	if rerr := m.repo.Save(ctx, m.current); rerr != nil {
		log.Err(rerr).Str("user_id", prior.UserID).Msg("failed to restore persisted session")
	}
	return errors.Wrapf(err, "%s persist", op)
}

func (m *Manager) installLocked(s *Session) {
	m.current = s
	m.expired = false
	m.warned = false
	m.armLocked()
}

// armLocked cancels both timers and arms fresh ones against the current
// expiry. Old timers are stopped before the new generation is published.
func (m *Manager) armLocked() {
	m.stopTimersLocked()
	m.generation++
	gen := m.generation

	untilExpiry := m.current.ExpiresAt.Sub(m.clock.Now())
	untilWarning := untilExpiry - m.warningWindow
	if untilWarning < 0 {
		untilWarning = 0
	}

	m.warningTimer = m.clock.AfterFunc(untilWarning, func() { m.onWarning(gen) })
	m.expiryTimer = m.clock.AfterFunc(untilExpiry, func() { m.onExpiry(gen) })
}

func (m *Manager) stopTimersLocked() {
	if m.warningTimer != nil {
		m.warningTimer.Stop()
		m.warningTimer = nil
	}
	if m.expiryTimer != nil {
		m.expiryTimer.Stop()
		m.expiryTimer = nil
	}
}

func (m *Manager) clearLocked() {
	m.stopTimersLocked()
	m.generation++
	m.current.Active = false
	m.current = nil
	m.warned = false
}

func (m *Manager) expireLocked(ctx context.Context, reason string) {
	if m.current == nil {
		return
	}
	userID := m.current.UserID
	m.clearLocked()
	m.expired = true
	m.enqueue(EventExpired, userID)

	if err := m.repo.Delete(ctx); err != nil {
		log.Err(err).Str("user_id", userID).Msg("failed to delete expired session")
	}
	log.Info().Str("user_id", userID).Str("reason", reason).Msg("session expired")
}

func (m *Manager) onWarning(gen uint64) {
	m.mu.Lock()
	defer m.drain()
	defer m.mu.Unlock()

	if gen != m.generation || m.current == nil || m.warned {
		return
	}
	m.warned = true
	m.enqueue(EventWarning, "")
	log.Info().Str("user_id", m.current.UserID).Time("expires_at", m.current.ExpiresAt).Msg("session expiring soon")
}

func (m *Manager) onExpiry(gen uint64) {
	m.mu.Lock()
	defer m.drain()
	defer m.mu.Unlock()

	if gen != m.generation {
		return
	}
	m.expireLocked(context.Background(), "timeout")
}

// enqueue records an event for delivery once the lock is released. userID
// is used when the session has already been cleared.
func (m *Manager) enqueue(t EventType, userID string) {
	ev := Event{Type: t, UserID: userID, At: m.clock.Now()}
	if m.current != nil {
		ev.UserID = m.current.UserID
		ev.ExpiresAt = m.current.ExpiresAt
	}
	m.pending = append(m.pending, ev)
}

// drain delivers queued events in order. Re-entrant calls made from a
// handler only enqueue; the outermost drain delivers everything.
func (m *Manager) drain() {
	m.mu.Lock()
	if m.draining {
		m.mu.Unlock()
		return
	}
	m.draining = true
	for len(m.pending) > 0 {
		ev := m.pending[0]
		m.pending = m.pending[1:]
		m.mu.Unlock()
		for _, h := range m.handlers {
			h(ev)
		}
		m.mu.Lock()
	}
	m.draining = false
	m.mu.Unlock()
}

func tokenPrefix(token string) string {
	if len(token) <= 6 {
		return token
	}
	return token[:6] + "…"
}
