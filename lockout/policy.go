// Package lockout tracks consecutive failed login attempts and refuses
// further attempts for a fixed window once a threshold is reached.
package lockout

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/jrsteele09/go-offline-auth/clock"
	errs "github.com/jrsteele09/go-offline-auth/internal/errors"
	"github.com/jrsteele09/go-offline-auth/securestore"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const (
	DefaultMaxAttempts     = 5
	DefaultLockoutDuration = 15 * time.Minute
)

// Policy persists the failed-attempt counter and lockout deadline in secure
// storage. All methods are serialized.
type Policy struct {
	store           securestore.Store
	clock           clock.Clock
	maxAttempts     int
	lockoutDuration time.Duration
	mu              sync.Mutex
}

// PolicyOption is a functional option for configuring Policy.
type PolicyOption func(*Policy)

// WithMaxAttempts sets the number of consecutive failures that triggers a lockout.
func WithMaxAttempts(max int) PolicyOption {
	return func(p *Policy) {
		if max > 0 {
			p.maxAttempts = max
		}
	}
}

// WithLockoutDuration sets how long a lockout lasts.
func WithLockoutDuration(d time.Duration) PolicyOption {
	return func(p *Policy) {
		if d > 0 {
			p.lockoutDuration = d
		}
	}
}

// WithClock sets the time source (primarily for testing).
func WithClock(c clock.Clock) PolicyOption {
	return func(p *Policy) {
		p.clock = c
	}
}

func NewPolicy(store securestore.Store, opts ...PolicyOption) *Policy {
	p := &Policy{
		store:           store,
		clock:           clock.Real(),
		maxAttempts:     DefaultMaxAttempts,
		lockoutDuration: DefaultLockoutDuration,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Policy) MaxAttempts() int {
	return p.maxAttempts
}

func (p *Policy) LockoutDuration() time.Duration {
	return p.lockoutDuration
}

// Check evaluates the persisted state against the current time. A lockout
// whose deadline has passed reads as Unlocked without any write.
func (p *Policy) Check(ctx context.Context) (Status, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	rec, err := p.load(ctx)
	if err != nil {
		return Status{}, err
	}
	return rec.status(p.clock.Now()), nil
}

// RecordFailure counts a failed attempt. Reaching the threshold while not
// locked starts a lockout window; failures during an active window neither
// extend it nor push the counter past the threshold.
func (p *Policy) RecordFailure(ctx context.Context) (Status, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	rec, err := p.load(ctx)
	if err != nil {
		return Status{}, err
	}
	now := p.clock.Now()
	locked := rec.status(now).IsLocked()

	rec.failedAttempts++
	if rec.failedAttempts > p.maxAttempts {
		rec.failedAttempts = p.maxAttempts
	}

	if !locked && rec.failedAttempts >= p.maxAttempts {
		rec.until = now.Add(p.lockoutDuration)
		if err := p.save(ctx, rec); err != nil {
			return Status{}, err
		}
		log.Warn().
			Int("failed_attempts", rec.failedAttempts).
			Time("locked_until", rec.until).
			Msg("account locked after repeated login failures")
		return rec.status(now), nil
	}

	if err := p.saveCount(ctx, rec.failedAttempts); err != nil {
		return Status{}, err
	}
	log.Debug().Int("failed_attempts", rec.failedAttempts).Msg("failed login recorded")
	return rec.status(now), nil
}

// Reset clears the counter and any lockout deadline.
func (p *Policy) Reset(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.store.Delete(ctx, securestore.KeyLockoutUntil); err != nil {
		return errors.Wrap(err, "[Policy.Reset] lockout_until")
	}
	if err := p.store.Delete(ctx, securestore.KeyFailedAttempts); err != nil {
		return errors.Wrap(err, "[Policy.Reset] failed_attempts")
	}
	return nil
}

func (p *Policy) FailedAttempts(ctx context.Context) (int, error) {
	status, err := p.Check(ctx)
	if err != nil {
		return 0, err
	}
	return status.FailedAttempts, nil
}

// Remaining returns the time left in the lockout window, zero when unlocked.
func (p *Policy) Remaining(ctx context.Context) (time.Duration, error) {
	status, err := p.Check(ctx)
	if err != nil {
		return 0, err
	}
	return status.Remaining, nil
}

func (p *Policy) load(ctx context.Context) (record, error) {
	var rec record

	count, ok, err := p.store.Get(ctx, securestore.KeyFailedAttempts)
	if err != nil {
		return rec, errors.Wrap(err, "[Policy.load] failed_attempts")
	}
	if ok {
		if rec.failedAttempts, err = strconv.Atoi(count); err != nil || rec.failedAttempts < 0 {
			return rec, errs.Storage(errors.Errorf("invalid failed attempt count %q", count), "[Policy.load]")
		}
	}

	until, ok, err := p.store.Get(ctx, securestore.KeyLockoutUntil)
	if err != nil {
		return rec, errors.Wrap(err, "[Policy.load] lockout_until")
	}
	if ok {
		if rec.until, err = time.Parse(time.RFC3339Nano, until); err != nil {
			return rec, errs.Storage(err, "[Policy.load] lockout_until")
		}
	}
	return rec, nil
}

func (p *Policy) save(ctx context.Context, rec record) error {
	if err := p.saveCount(ctx, rec.failedAttempts); err != nil {
		return err
	}
	if err := p.store.Set(ctx, securestore.KeyLockoutUntil, rec.until.UTC().Format(time.RFC3339Nano)); err != nil {
		return errors.Wrap(err, "[Policy.save] lockout_until")
	}
	return nil
}

func (p *Policy) saveCount(ctx context.Context, count int) error {
	if err := p.store.Set(ctx, securestore.KeyFailedAttempts, strconv.Itoa(count)); err != nil {
		return errors.Wrap(err, "[Policy.saveCount] failed_attempts")
	}
	return nil
}
