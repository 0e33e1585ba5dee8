package cmd

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/eternalrp/eternalrp/presence"
)

// ClearCommand returns the clear command, a one-shot removal of a stuck
// activity left behind by a crashed bridge.
func ClearCommand() *cli.Command {
	return &cli.Command{
		Name:  "clear",
		Usage: "Remove any lingering Discord activity and exit",
		Flags: []cli.Flag{
			ConfigFlag,
			ClientIDFlag,
		},
		Action: clearAction,
	}
}

func clearAction(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return cli.Exit(fmt.Sprintf("config: %v", err), exitConfigError)
	}
	if v := c.String("client-id"); v != "" {
		cfg.ClientID = v
	}
	if cfg.ClientID == "" {
		return cli.Exit("client_id is required (config file or --client-id)", exitConfigError)
	}

	sink := presence.NewRPCSink(cfg.ClientID)
	if err := sink.Connect(); err != nil {
		// Absence of the daemon means there is nothing to clear.
		fmt.Println("Discord is not running; nothing to clear.")
		return cli.Exit("", exitSuccess)
	}
	defer func() { _ = sink.Close() }()

	if err := sink.Clear(); err != nil {
		return cli.Exit(fmt.Sprintf("clear failed: %v", err), exitRunFailure)
	}
	fmt.Println("Activity cleared.")
	return cli.Exit("", exitSuccess)
}
