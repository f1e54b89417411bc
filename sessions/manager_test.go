package sessions_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/jrsteele09/go-offline-auth/clock"
	"github.com/jrsteele09/go-offline-auth/clock/fakeclock"
	errs "github.com/jrsteele09/go-offline-auth/internal/errors"
	"github.com/jrsteele09/go-offline-auth/securestore"
	"github.com/jrsteele09/go-offline-auth/securestore/memstore"
	"github.com/jrsteele09/go-offline-auth/sessions"
	"github.com/stretchr/testify/require"
)

const testUserID = "user-1"

var t0 = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

type fixture struct {
	clock   *fakeclock.FakeClock
	store   *memstore.MemStore
	manager *sessions.Manager
	events  []sessions.Event
}

func setup(t *testing.T, opts ...sessions.ManagerOption) *fixture {
	t.Helper()
	f := &fixture{clock: fakeclock.New(t0), store: memstore.New()}
	base := []sessions.ManagerOption{
		sessions.WithClock(f.clock),
		sessions.WithEventHandler(func(e sessions.Event) { f.events = append(f.events, e) }),
	}
	f.manager = sessions.NewManager(f.store, append(base, opts...)...)
	return f
}

func (f *fixture) eventTypes() []sessions.EventType {
	out := make([]sessions.EventType, 0, len(f.events))
	for _, e := range f.events {
		out = append(out, e.Type)
	}
	return out
}

func (f *fixture) create(t *testing.T) sessions.Session {
	t.Helper()
	s, err := f.manager.Create(context.Background(), testUserID, 0)
	require.NoError(t, err)
	return s
}

func TestManager_Create(t *testing.T) {
	f := setup(t)
	s := f.create(t)

	require.Equal(t, testUserID, s.UserID)
	require.NotEmpty(t, s.Token)
	require.True(t, s.Active)
	require.Equal(t, t0, s.CreatedAt)
	require.Equal(t, t0, s.LastActivity)
	require.Equal(t, 8*time.Hour, s.Timeout)
	require.Equal(t, s.LastActivity.Add(s.Timeout), s.ExpiresAt)

	require.True(t, f.manager.IsValid())
	require.Equal(t, 8*time.Hour, f.manager.RemainingTime())
	require.Equal(t, sessions.Active, f.manager.State())
	require.False(t, f.manager.NeedsRefresh())
	require.Equal(t, []sessions.EventType{sessions.EventCreated}, f.eventTypes())
	require.Equal(t, 2, f.clock.Pending())

	require.Equal(t, s.Token, f.store.Snapshot()[securestore.KeySessionToken])
}

func TestManager_CreateCustomTimeout(t *testing.T) {
	f := setup(t)
	s, err := f.manager.Create(context.Background(), testUserID, time.Hour)
	require.NoError(t, err)
	require.Equal(t, t0.Add(time.Hour), s.ExpiresAt)
	require.True(t, f.manager.NeedsRefresh())
}

func TestManager_ValidityAndActivity(t *testing.T) {
	ctx := context.Background()

	t.Run("valid just before timeout", func(t *testing.T) {
		f := setup(t)
		f.create(t)
		f.clock.Advance(7*time.Hour + 59*time.Minute)
		require.True(t, f.manager.IsValid())
	})

	t.Run("activity pushes expiry out", func(t *testing.T) {
		f := setup(t)
		f.create(t)
		f.clock.Advance(7*time.Hour + 59*time.Minute)
		require.NoError(t, f.manager.UpdateActivity(ctx))

		s, ok := f.manager.Current()
		require.True(t, ok)
		require.Equal(t, t0.Add(7*time.Hour+59*time.Minute+8*time.Hour), s.ExpiresAt)
		require.Equal(t, t0, s.CreatedAt)

		// the original expiry deadline passes without ending the session
		f.clock.Set(t0.Add(8*time.Hour + time.Minute))
		require.True(t, f.manager.IsValid())
		require.Equal(t, 2, f.clock.Pending())
	})

	t.Run("invalid after timeout without activity", func(t *testing.T) {
		f := setup(t)
		f.create(t)
		f.clock.Advance(8*time.Hour + time.Minute)
		require.False(t, f.manager.IsValid())
		require.Zero(t, f.manager.RemainingTime())
		require.Equal(t, sessions.Expired, f.manager.State())
		require.Equal(t,
			[]sessions.EventType{sessions.EventCreated, sessions.EventWarning, sessions.EventExpired},
			f.eventTypes())
		require.NotContains(t, f.store.Snapshot(), securestore.KeySessionToken)
	})

	t.Run("activity without session is a no-op", func(t *testing.T) {
		f := setup(t)
		require.NoError(t, f.manager.UpdateActivity(ctx))
		require.Equal(t, sessions.NoSession, f.manager.State())
		require.Zero(t, f.clock.Pending())
	})
}

func TestManager_WarningWindow(t *testing.T) {
	f := setup(t)
	f.create(t)

	f.clock.Advance(8*time.Hour - 5*time.Minute - time.Second)
	require.Equal(t, sessions.Active, f.manager.State())

	f.clock.Advance(time.Second)
	require.Equal(t, sessions.Warning, f.manager.State())
	require.True(t, f.manager.IsValid())
	require.Equal(t, sessions.EventWarning, f.events[len(f.events)-1].Type)
	require.Equal(t, t0.Add(8*time.Hour), f.events[len(f.events)-1].ExpiresAt)

	require.NoError(t, f.manager.UpdateActivity(context.Background()))
	require.Equal(t, sessions.Active, f.manager.State())
}

func TestManager_Extend(t *testing.T) {
	f := setup(t)
	created := f.create(t)

	f.clock.Advance(2 * time.Hour)
	s, err := f.manager.Extend(context.Background())
	require.NoError(t, err)
	require.Equal(t, created.Token, s.Token)
	require.Equal(t, t0.Add(10*time.Hour), s.ExpiresAt)
	require.Equal(t, s.LastActivity.Add(s.Timeout), s.ExpiresAt)
	require.Equal(t, sessions.EventExtended, f.events[len(f.events)-1].Type)

	t.Run("without session", func(t *testing.T) {
		f := setup(t)
		_, err := f.manager.Extend(context.Background())
		require.ErrorIs(t, err, errs.ErrNoSession)
	})
}

func TestManager_RefreshToken(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	created := f.create(t)

	f.clock.Advance(3 * time.Hour)
	s, err := f.manager.RefreshToken(ctx)
	require.NoError(t, err)
	require.NotEqual(t, created.Token, s.Token)
	require.Equal(t, created.UserID, s.UserID)
	require.Equal(t, created.CreatedAt, s.CreatedAt)
	require.Equal(t, t0.Add(3*time.Hour), s.LastActivity)
	require.Equal(t, t0.Add(11*time.Hour), s.ExpiresAt)
	require.Equal(t, s.Token, f.store.Snapshot()[securestore.KeySessionToken])
	require.Equal(t, sessions.EventRefreshed, f.events[len(f.events)-1].Type)

	t.Run("without session", func(t *testing.T) {
		f := setup(t)
		_, err := f.manager.RefreshToken(ctx)
		require.ErrorIs(t, err, errs.ErrNoSession)
	})
}

func TestManager_CreateReplacesExisting(t *testing.T) {
	f := setup(t)
	first := f.create(t)
	f.clock.Advance(time.Hour)

	second, err := f.manager.Create(context.Background(), "user-2", 0)
	require.NoError(t, err)
	require.NotEqual(t, first.Token, second.Token)
	require.Equal(t, 2, f.clock.Pending())

	// the first session's expiry instant passes harmlessly
	f.clock.Set(first.ExpiresAt)
	require.True(t, f.manager.IsValid())
	cur, _ := f.manager.Current()
	require.Equal(t, "user-2", cur.UserID)

	require.Equal(t,
		[]sessions.EventType{sessions.EventCreated, sessions.EventEnded, sessions.EventCreated},
		f.eventTypes()[:3])
	require.Equal(t, testUserID, f.events[1].UserID)
}

func TestManager_End(t *testing.T) {
	ctx := context.Background()

	t.Run("clears memory and storage", func(t *testing.T) {
		f := setup(t)
		f.create(t)
		require.NoError(t, f.manager.End(ctx))
		require.False(t, f.manager.IsValid())
		require.Equal(t, sessions.NoSession, f.manager.State())
		require.Zero(t, f.clock.Pending())
		require.NotContains(t, f.store.Snapshot(), securestore.KeySessionToken)
		require.Equal(t, sessions.EventEnded, f.events[len(f.events)-1].Type)
	})

	t.Run("storage failure still clears memory", func(t *testing.T) {
		f := setup(t)
		f.create(t)
		f.store.FailOn(memstore.OpDelete)
		err := f.manager.End(ctx)
		require.ErrorIs(t, err, errs.ErrStorage)
		require.False(t, f.manager.IsValid())
		_, ok := f.manager.Current()
		require.False(t, ok)
		require.Zero(t, f.clock.Pending())
	})
}

func TestManager_Expire(t *testing.T) {
	f := setup(t)
	f.create(t)
	f.manager.Expire(context.Background())

	require.Equal(t, sessions.Expired, f.manager.State())
	require.Zero(t, f.clock.Pending())
	require.Equal(t, sessions.EventExpired, f.events[len(f.events)-1].Type)
	require.Equal(t, testUserID, f.events[len(f.events)-1].UserID)

	// no second expiry when nothing is installed
	f.manager.Expire(context.Background())
	require.Len(t, f.events, 2)
}

func TestManager_BackgroundPolicy(t *testing.T) {
	ctx := context.Background()

	t.Run("short background keeps session", func(t *testing.T) {
		f := setup(t)
		f.create(t)
		f.manager.EnterBackground()
		f.clock.Advance(15 * time.Minute)
		require.True(t, f.manager.EnterForeground(ctx))
		require.True(t, f.manager.IsValid())
	})

	t.Run("long background forces expiry", func(t *testing.T) {
		f := setup(t)
		f.create(t)
		f.manager.EnterBackground()
		f.clock.Advance(15*time.Minute + time.Second)
		require.False(t, f.manager.EnterForeground(ctx))
		require.Equal(t, sessions.Expired, f.manager.State())
		require.Zero(t, f.clock.Pending())
	})

	t.Run("custom limit", func(t *testing.T) {
		f := setup(t, sessions.WithMaxBackgroundTime(time.Minute))
		f.create(t)
		f.manager.EnterBackground()
		f.clock.Advance(2 * time.Minute)
		require.False(t, f.manager.EnterForeground(ctx))
	})

	t.Run("foreground without session", func(t *testing.T) {
		f := setup(t)
		require.False(t, f.manager.EnterForeground(ctx))
	})
}

func TestManager_Restore(t *testing.T) {
	ctx := context.Background()

	t.Run("valid persisted session", func(t *testing.T) {
		f := setup(t)
		created := f.create(t)
		f.clock.Advance(time.Hour)

		other := sessions.NewManager(f.store, sessions.WithClock(f.clock))
		s, err := other.Restore(ctx)
		require.NoError(t, err)
		require.Equal(t, created.Token, s.Token)
		require.True(t, created.CreatedAt.Equal(s.CreatedAt))
		require.True(t, created.ExpiresAt.Equal(s.ExpiresAt))
		require.Equal(t, 7*time.Hour, other.RemainingTime())
	})

	t.Run("expired persisted session", func(t *testing.T) {
		f := setup(t)
		f.create(t)

		later := fakeclock.New(t0.Add(9 * time.Hour))
		other := sessions.NewManager(f.store, sessions.WithClock(later))
		_, err := other.Restore(ctx)
		require.ErrorIs(t, err, errs.ErrSessionExpired)
		require.NotContains(t, f.store.Snapshot(), securestore.KeySessionToken)
		require.Equal(t, sessions.Expired, other.State())
		require.False(t, other.IsValid())
	})

	t.Run("nothing persisted", func(t *testing.T) {
		f := setup(t)
		_, err := f.manager.Restore(ctx)
		require.ErrorIs(t, err, errs.ErrNoSession)
	})
}

func TestManager_PersistFailure(t *testing.T) {
	f := setup(t)
	f.store.FailOn(memstore.OpSet)
	_, err := f.manager.Create(context.Background(), testUserID, 0)
	require.ErrorIs(t, err, errs.ErrStorage)
	require.False(t, f.manager.IsValid())
	require.Zero(t, f.clock.Pending())
}

func TestManager_CreateFailureDropsSupersededSession(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	prior := f.create(t)

	f.store.FailOnKey(memstore.OpSet, securestore.KeySessionState)
	_, err := f.manager.Create(ctx, "user-2", 0)
	require.ErrorIs(t, err, errs.ErrStorage)
	require.False(t, f.manager.IsValid())
	f.store.Recover()

	snap := f.store.Snapshot()
	require.NotContains(t, snap, securestore.KeySessionToken)
	require.NotContains(t, snap, securestore.KeySessionState)

	other := sessions.NewManager(f.store, sessions.WithClock(f.clock))
	s, err := other.Restore(ctx)
	require.ErrorIs(t, err, errs.ErrNoSession)
	require.NotEqual(t, prior.Token, s.Token)
}

func TestManager_RefreshFailureRestoresRecord(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	prior := f.create(t)
	f.clock.Advance(time.Hour)

	f.store.FailOnKey(memstore.OpSet, securestore.KeySessionState)
	_, err := f.manager.RefreshToken(ctx)
	require.ErrorIs(t, err, errs.ErrStorage)
	f.store.Recover()

	current, ok := f.manager.Current()
	require.True(t, ok)
	require.Equal(t, prior.Token, current.Token)
	require.True(t, prior.LastActivity.Equal(current.LastActivity))
	require.True(t, prior.ExpiresAt.Equal(current.ExpiresAt))
	require.Equal(t, prior.Token, f.store.Snapshot()[securestore.KeySessionToken])
	require.Equal(t, 2, f.clock.Pending())

	t.Run("timers follow the restored expiry", func(t *testing.T) {
		f.clock.Advance(7 * time.Hour)
		require.Equal(t, sessions.Expired, f.manager.State())
	})
}

func TestManager_ActivityFailureRestoresRecord(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	prior := f.create(t)
	f.clock.Advance(2 * time.Hour)

	f.store.FailOn(memstore.OpSet)
	require.ErrorIs(t, f.manager.UpdateActivity(ctx), errs.ErrStorage)
	f.store.Recover()

	current, ok := f.manager.Current()
	require.True(t, ok)
	require.True(t, prior.ExpiresAt.Equal(current.ExpiresAt))
	require.Equal(t, 6*time.Hour, f.manager.RemainingTime())
}

func TestManager_TokenGeneratorFailure(t *testing.T) {
	f := setup(t, sessions.WithTokenGenerator(func() (string, error) {
		return "", fmt.Errorf("entropy exhausted")
	}))
	_, err := f.manager.Create(context.Background(), testUserID, 0)
	require.Error(t, err)
	require.False(t, f.manager.IsValid())
}

// unstoppableClock hands out timers whose Stop always loses the race, as if
// the callback had already been dispatched.
type unstoppableClock struct {
	*fakeclock.FakeClock
}

type unstoppableTimer struct{}

func (unstoppableTimer) Stop() bool { return false }

func (c unstoppableClock) AfterFunc(d time.Duration, f func()) clock.Timer {
	c.FakeClock.AfterFunc(d, f)
	return unstoppableTimer{}
}

func TestManager_StaleTimerAfterActivityIsIgnored(t *testing.T) {
	ctx := context.Background()
	c := unstoppableClock{fakeclock.New(t0)}
	var events []sessions.EventType
	m := sessions.NewManager(memstore.New(),
		sessions.WithClock(c),
		sessions.WithEventHandler(func(e sessions.Event) { events = append(events, e.Type) }),
	)

	_, err := m.Create(ctx, testUserID, 0)
	require.NoError(t, err)

	c.Advance(7 * time.Hour)
	require.NoError(t, m.UpdateActivity(ctx))

	// the first generation's warning and expiry both fire here
	c.Advance(1*time.Hour + time.Minute)
	require.True(t, m.IsValid())
	require.Equal(t, sessions.Active, m.State())
	require.Equal(t, []sessions.EventType{sessions.EventCreated}, events)
}

func TestManager_HandlerMayCallBack(t *testing.T) {
	f := &fixture{clock: fakeclock.New(t0), store: memstore.New()}
	var seenValid []bool
	var m *sessions.Manager
	m = sessions.NewManager(f.store,
		sessions.WithClock(f.clock),
		sessions.WithEventHandler(func(e sessions.Event) {
			seenValid = append(seenValid, m.IsValid())
			if e.Type == sessions.EventExpired {
				_, _ = m.Create(context.Background(), "user-2", 0)
			}
		}),
	)

	_, err := m.Create(context.Background(), testUserID, 0)
	require.NoError(t, err)
	m.Expire(context.Background())

	require.Equal(t, []bool{true, false, true}, seenValid)
	cur, ok := m.Current()
	require.True(t, ok)
	require.Equal(t, "user-2", cur.UserID)
}
