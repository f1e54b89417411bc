package commands

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"
)

type StatusCmd struct{}

func (s *StatusCmd) Run(ctx context.Context, globals *Globals) error {
	return withApp(ctx, globals, func(a *app) error {
		st, err := a.coordinator.Status(ctx)
		if err != nil {
			return err
		}

		tw := tabwriter.NewWriter(globals.out(), 0, 0, 2, ' ', 0)
		fmt.Fprintf(tw, "Registered:\t%t\n", st.Registered)
		if st.Registered {
			fmt.Fprintf(tw, "Username:\t%s\n", st.Username)
		}
		fmt.Fprintf(tw, "Session:\t%s\n", st.SessionState)
		if st.Remaining > 0 {
			fmt.Fprintf(tw, "Remaining:\t%s\n", st.Remaining.Round(time.Second))
			fmt.Fprintf(tw, "Needs refresh:\t%t\n", st.NeedsRefresh)
		}
		fmt.Fprintf(tw, "Failed attempts:\t%d\n", st.FailedAttempts)
		if st.LockedFor > 0 {
			fmt.Fprintf(tw, "Locked for:\t%s\n", st.LockedFor.Round(time.Second))
		}
		fmt.Fprintf(tw, "Biometric:\t%t\n", st.BiometricEnabled)
		if st.LastLogin != nil {
			fmt.Fprintf(tw, "Last login:\t%s\n", st.LastLogin.Local().Format(time.RFC1123))
		}
		return tw.Flush()
	})
}

type TouchCmd struct{}

func (t *TouchCmd) Run(ctx context.Context, globals *Globals) error {
	return withApp(ctx, globals, func(a *app) error {
		if err := a.coordinator.RecordActivity(ctx); err != nil {
			return err
		}
		s, err := a.coordinator.RequireSession()
		if err != nil {
			return err
		}
		fmt.Fprintf(globals.out(), "Session extended until %s\n", s.ExpiresAt.Format("15:04:05"))
		return nil
	})
}

type RefreshCmd struct{}

func (r *RefreshCmd) Run(ctx context.Context, globals *Globals) error {
	return withApp(ctx, globals, func(a *app) error {
		s, err := a.coordinator.RefreshSession(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(globals.out(), "Session token rotated; valid until %s\n", s.ExpiresAt.Format("15:04:05"))
		return nil
	})
}

type LogoutCmd struct{}

func (l *LogoutCmd) Run(ctx context.Context, globals *Globals) error {
	return withApp(ctx, globals, func(a *app) error {
		a.coordinator.Logout(ctx)
		fmt.Fprintln(globals.out(), "Signed out")
		return nil
	})
}
