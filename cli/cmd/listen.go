package cmd

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/eternalrp/eternalrp/cli/render"
	"github.com/eternalrp/eternalrp/presence"
)

// ListenCommand returns the listen command, the entry point the OS protocol
// handler invokes with a join secret when a remote peer clicks Join.
func ListenCommand() *cli.Command {
	return &cli.Command{
		Name:      "listen",
		Usage:     "Display the playback state carried by a sync URI",
		ArgsUsage: "<eternalrp://sync?...>",
		Flags:     ReadOnlyFlags(),
		Action:    listenAction,
	}
}

func listenAction(c *cli.Context) error {
	if c.NArg() < 1 {
		return cli.Exit("sync uri required", 1)
	}
	if c.Bool("tui") {
		return cli.Exit("--tui is not supported for listen", 1)
	}

	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}

	req := presence.ParseJoinSecret(c.Args().First())
	r.Banner("Listen along", syncLines(req)...)
	return nil
}

// syncLines formats the parsed sync request for the banner, skipping fields
// the secret did not carry.
func syncLines(req presence.SyncRequest) []string {
	lines := []string{req.Track}
	if req.Artist != "" {
		lines = append(lines, "by "+req.Artist)
	}
	if req.Position >= 0 {
		lines = append(lines, fmt.Sprintf("position %d:%02d", req.Position/60, req.Position%60))
	}
	return lines
}
