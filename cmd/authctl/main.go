package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime/debug"

	"github.com/alecthomas/kong"
	"github.com/common-nighthawk/go-figure"
	"github.com/jrsteele09/go-offline-auth/cmd/authctl/internal/commands"
	"github.com/jrsteele09/go-offline-auth/internal/config"
)

var (
	version = "dev"
	cli     struct {
		Register       commands.RegisterCmd       `cmd:"" help:"Register the local account and sign in"`
		Login          commands.LoginCmd          `cmd:"" help:"Sign in"`
		Status         commands.StatusCmd         `cmd:"" help:"Show account, session and lockout state"`
		Touch          commands.TouchCmd          `cmd:"" help:"Record activity and extend the session"`
		Refresh        commands.RefreshCmd        `cmd:"" help:"Rotate the session token"`
		ChangePassword commands.ChangePasswordCmd `cmd:"" help:"Change the password of the signed-in user"`
		ResetPassword  commands.ResetPasswordCmd  `cmd:"" help:"Reset the password with the security answer"`
		Biometric      commands.BiometricCmd      `cmd:"" help:"Enable, disable or inspect biometric login"`
		Logout         commands.LogoutCmd         `cmd:"" help:"Sign out"`
		Wipe           commands.WipeCmd           `cmd:"" help:"Remove the account and all stored data"`

		Config  string `help:"Path to a TOML config file." type:"path" env:"AUTH_CONFIG_FILE"`
		Debug   bool   `help:"Enable debug logging."`
		Quiet   bool   `help:"Do not print the banner."`
		Version kong.VersionFlag
	}
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", commands.Describe(err))
		os.Exit(1)
	}
}

func run() (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "Recovered from panic: %v\n", r)
			debug.PrintStack()
			returnError = errors.New("panic recovered")
		}
	}()

	ctx := context.Background()
	cmd := kong.Parse(&cli,
		kong.Name("authctl"),
		kong.Description("Offline account, lockout and session management."),
		kong.Vars{
			"version": version,
		},
		kong.BindTo(ctx, (*context.Context)(nil)))

	if !cli.Quiet {
		if c, err := config.Load(cli.Config); err == nil {
			displayAppname(c.GetAppName())
		}
	}
	return cmd.Run(&commands.Globals{ConfigFile: cli.Config, Debug: cli.Debug, Version: version})
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
