package commands

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

type WipeCmd struct {
	Yes bool `help:"Skip the confirmation prompt"`
}

func (c *WipeCmd) Run(ctx context.Context, globals *Globals) error {
	return withApp(ctx, globals, func(a *app) error {
		w := globals.out()
		if !c.Yes {
			reply, err := promptLine(w, "This removes the account and all stored data. Type 'wipe' to continue: ")
			if err != nil {
				return err
			}
			if !strings.EqualFold(reply, "wipe") {
				return errors.New("wipe cancelled")
			}
		}
		if err := a.coordinator.WipeAllData(ctx); err != nil {
			return err
		}
		fmt.Fprintln(w, "All data wiped")
		return nil
	})
}
