package commands

import (
	"context"
	"fmt"

	"github.com/jrsteele09/go-offline-auth/auth"
)

type RegisterCmd struct {
	Username string `arg:"" help:"Username for the local account"`
	Question string `help:"Security question used for password reset" default:""`
}

func (r *RegisterCmd) Run(ctx context.Context, globals *Globals) error {
	return withApp(ctx, globals, func(a *app) error {
		w := globals.out()
		password, err := promptNewSecret(w, "Password: ")
		if err != nil {
			return err
		}

		params := auth.RegisterParameters{Username: r.Username, Password: password}
		if r.Question != "" {
			answer, err := promptSecret(w, "Security answer: ")
			if err != nil {
				return err
			}
			params.SecurityQuestion = &r.Question
			params.SecurityAnswer = &answer
		}

		s, err := a.coordinator.Register(ctx, params)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "Registered %s; session valid until %s\n", r.Username, s.ExpiresAt.Format("15:04:05"))
		return nil
	})
}
