package cmd

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/eternalrp/eternalrp/cli/render"
	"github.com/eternalrp/eternalrp/ipc"
)

// DebugCommand returns the debug command with subcommands.
// Debug commands are opt-in, read-only diagnostics.
func DebugCommand() *cli.Command {
	return &cli.Command{
		Name:  "debug",
		Usage: "Diagnostic tools (ipc)",
		Subcommands: []*cli.Command{
			debugIPCCommand(),
		},
	}
}

func debugIPCCommand() *cli.Command {
	return &cli.Command{
		Name:   "ipc",
		Usage:  "Probe the well-known Discord IPC endpoints",
		Flags:  append(ReadOnlyFlags(), ConfigFlag, ClientIDFlag),
		Action: debugIPCAction,
	}
}

func debugIPCAction(c *cli.Context) error {
	if c.Bool("tui") {
		return cli.Exit("--tui is not supported for debug commands", 1)
	}

	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}

	cfg, err := loadConfig(c)
	if err != nil {
		return cli.Exit(fmt.Sprintf("config: %v", err), exitConfigError)
	}
	clientID := cfg.ClientID
	if v := c.String("client-id"); v != "" {
		clientID = v
	}

	return r.Render(ipc.ProbeEndpoints(clientID))
}
