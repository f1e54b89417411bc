package commands

import (
	"context"
	"fmt"
)

type LoginCmd struct {
	Username  string `arg:"" optional:"" help:"Username (not needed with --biometric)"`
	Biometric bool   `help:"Sign in with the device biometric prompt instead of a password"`
}

func (l *LoginCmd) Run(ctx context.Context, globals *Globals) error {
	return withApp(ctx, globals, func(a *app) error {
		w := globals.out()
		if l.Biometric {
			s, err := a.coordinator.LoginWithBiometric(ctx, "Sign in to "+a.cfg.GetAppName())
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "Signed in; session valid until %s\n", s.ExpiresAt.Format("15:04:05"))
			return nil
		}

		password, err := promptSecret(w, "Password: ")
		if err != nil {
			return err
		}
		s, err := a.coordinator.Login(ctx, l.Username, password)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "Signed in as %s; session valid until %s\n", l.Username, s.ExpiresAt.Format("15:04:05"))
		return nil
	})
}
