package commands

import (
	"context"
	"fmt"

	"github.com/jrsteele09/go-offline-auth/auth"
)

type ChangePasswordCmd struct{}

func (c *ChangePasswordCmd) Run(ctx context.Context, globals *Globals) error {
	return withApp(ctx, globals, func(a *app) error {
		w := globals.out()
		if _, err := a.coordinator.RequireSession(); err != nil {
			return err
		}
		current, err := promptSecret(w, "Current password: ")
		if err != nil {
			return err
		}
		next, err := promptNewSecret(w, "New password: ")
		if err != nil {
			return err
		}
		if err := a.coordinator.ChangePassword(ctx, current, next); err != nil {
			return err
		}
		fmt.Fprintln(w, "Password changed; session token reissued")
		return nil
	})
}

type ResetPasswordCmd struct{}

func (r *ResetPasswordCmd) Run(ctx context.Context, globals *Globals) error {
	return withApp(ctx, globals, func(a *app) error {
		w := globals.out()
		question, ok, err := a.coordinator.SecurityQuestion(ctx)
		if err != nil {
			return err
		}
		if !ok {
			return &auth.Error{Kind: auth.KindSecurityAnswerIncorrect, Err: fmt.Errorf("no security question was set at registration")}
		}
		fmt.Fprintln(w, question)
		answer, err := promptSecret(w, "Answer: ")
		if err != nil {
			return err
		}
		next, err := promptNewSecret(w, "New password: ")
		if err != nil {
			return err
		}
		if err := a.coordinator.ResetPassword(ctx, answer, next); err != nil {
			return err
		}
		fmt.Fprintln(w, "Password reset; sign in with the new password")
		return nil
	})
}
