package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/jrsteele09/go-offline-auth/auth"
	"github.com/jrsteele09/go-offline-auth/biometric"
	"github.com/jrsteele09/go-offline-auth/credentials"
	"github.com/jrsteele09/go-offline-auth/internal/config"
	"github.com/jrsteele09/go-offline-auth/internal/logging"
	"github.com/jrsteele09/go-offline-auth/lockout"
	"github.com/jrsteele09/go-offline-auth/securestore/sqlitestore"
	"github.com/jrsteele09/go-offline-auth/sessions"
	"github.com/rs/zerolog/log"
)

// app is the wiring shared by every command: the encrypted store and a
// Coordinator over it, with any persisted session restored.
type app struct {
	cfg         config.Config
	store       *sqlitestore.Store
	coordinator *auth.Coordinator
}

func openApp(ctx context.Context, g *Globals) (*app, error) {
	cfg, err := config.Load(g.ConfigFile)
	if err != nil {
		return nil, err
	}

	level := cfg.GetLogLevel()
	if g.Debug {
		level = "debug"
	}
	logging.Setup(level, true)

	if err := os.MkdirAll(cfg.GetDataFolder(), 0o700); err != nil {
		return nil, fmt.Errorf("create data folder: %w", err)
	}

	passphrase := cfg.GetStorePassphrase()
	if passphrase == "" {
		if passphrase, err = promptSecret(g.out(), "Store passphrase: "); err != nil {
			return nil, err
		}
	}

	store, err := sqlitestore.Open(ctx, cfg.GetDatabasePath(), []byte(passphrase))
	if err != nil {
		return nil, err
	}

	manager := sessions.NewManager(store,
		sessions.WithTimeout(cfg.GetSessionTimeout()),
		sessions.WithWarningWindow(cfg.GetSessionWarning()),
		sessions.WithMaxBackgroundTime(cfg.GetMaxBackgroundTime()),
		sessions.WithRefreshThreshold(cfg.GetRefreshThreshold()),
		sessions.WithEventHandler(logEvent),
	)
	policy := lockout.NewPolicy(store,
		lockout.WithMaxAttempts(cfg.GetMaxFailedAttempts()),
		lockout.WithLockoutDuration(cfg.GetLockoutDuration()),
	)
	coordinator, err := auth.NewCoordinator(auth.Deps{
		Store:     store,
		Sessions:  manager,
		Lockout:   policy,
		Hasher:    credentials.NewHasher(credentials.WithIterations(cfg.GetHashIterations())),
		Biometric: biometric.Unavailable{},
	})
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	if _, err := coordinator.RestoreSession(ctx); err != nil {
		log.Debug().Err(err).Msg("no session restored")
	}

	return &app{cfg: cfg, store: store, coordinator: coordinator}, nil
}

func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		log.Err(err).Msg("failed to close store")
	}
}

func logEvent(e sessions.Event) {
	log.Debug().
		Str("event", e.Type.String()).
		Str("user_id", e.UserID).
		Time("expires_at", e.ExpiresAt).
		Msg("session event")
}

// withApp opens the app, runs fn and closes the store.
func withApp(ctx context.Context, g *Globals, fn func(*app) error) error {
	a, err := openApp(ctx, g)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a)
}
