package commands

import (
	"io"
	"os"

	"github.com/jrsteele09/go-offline-auth/auth"
)

type Globals struct {
	ConfigFile string
	Debug      bool
	Version    string
	Out        io.Writer
}

func (g *Globals) out() io.Writer {
	if g.Out == nil {
		return os.Stdout
	}
	return g.Out
}

// Describe renders err with its message key for the terminal.
func Describe(err error) string {
	return err.Error() + " [" + auth.MessageKey(err) + "]"
}
