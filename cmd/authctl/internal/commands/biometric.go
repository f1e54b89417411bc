package commands

import (
	"context"
	"fmt"
)

type BiometricCmd struct {
	Action string `arg:"" enum:"enable,disable,status" help:"enable, disable or status"`
}

func (b *BiometricCmd) Run(ctx context.Context, globals *Globals) error {
	return withApp(ctx, globals, func(a *app) error {
		w := globals.out()
		switch b.Action {
		case "enable", "disable":
			if err := a.coordinator.SetBiometricEnabled(ctx, b.Action == "enable"); err != nil {
				return err
			}
		}
		enabled, err := a.coordinator.BiometricEnabled(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "Biometric login enabled: %t\n", enabled)
		return nil
	})
}
