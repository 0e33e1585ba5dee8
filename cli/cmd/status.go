package cmd

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/eternalrp/eternalrp/cli/render"
	"github.com/eternalrp/eternalrp/cli/tui"
	"github.com/eternalrp/eternalrp/host"
	"github.com/eternalrp/eternalrp/ipc"
	"github.com/eternalrp/eternalrp/metrics"
	"github.com/eternalrp/eternalrp/provider"
)

// StatusResponse is the one-shot status snapshot: Discord reachability plus
// whatever the configured providers report right now.
type StatusResponse struct {
	Discord       string `json:"discord"`
	Endpoint      int    `json:"endpoint"`
	Provider      string `json:"provider,omitempty"`
	Track         string `json:"track,omitempty"`
	Artist        string `json:"artist,omitempty"`
	Album         string `json:"album,omitempty"`
	Position      int    `json:"position"`
	Polls         int64  `json:"polls"`
	ProviderFails int64  `json:"provider_fails"`
}

// StatusCommand returns the status command.
func StatusCommand() *cli.Command {
	return &cli.Command{
		Name:   "status",
		Usage:  "Show Discord reachability and the current now-playing snapshot",
		Flags:  append(ReadOnlyFlags(), ConfigFlag),
		Action: statusAction,
	}
}

func statusAction(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return cli.Exit(fmt.Sprintf("config: %v", err), exitConfigError)
	}

	mc := metrics.NewCollector()
	agg := buildAggregator(cfg, mc)

	if c.Bool("tui") {
		if !tui.IsTUISupported() {
			return cli.Exit("--tui requires an interactive terminal", 1)
		}
		interval := cfg.PollInterval.Duration
		if interval <= 0 {
			interval = host.DefaultPollInterval
		}
		return tui.RunStatusTUI(func() tui.StatusData {
			return statusData(agg, mc)
		}, interval)
	}

	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}
	return r.Render(statusResponse(agg, mc))
}

// statusData takes one status sample for the live view.
func statusData(agg *provider.Aggregator, mc *metrics.Collector) tui.StatusData {
	state, _ := probeDiscord()
	data := tui.StatusData{
		ListenerState: state,
		Position:      -1,
	}
	if snap := agg.Poll(); snap != nil {
		data.Track = snap.Title
		data.Artist = snap.Artist
		data.Album = snap.Album
		if pos, ok := snap.PositionSeconds(); ok {
			data.Position = pos
		}
	}
	data.ActiveProvider = agg.Active()
	data.Metrics = mc.Snapshot()
	return data
}

// statusResponse takes one status sample for the one-shot render.
func statusResponse(agg *provider.Aggregator, mc *metrics.Collector) StatusResponse {
	state, endpoint := probeDiscord()
	resp := StatusResponse{
		Discord:  state,
		Endpoint: endpoint,
		Position: -1,
	}
	if snap := agg.Poll(); snap != nil {
		resp.Track = snap.Title
		resp.Artist = snap.Artist
		resp.Album = snap.Album
		if pos, ok := snap.PositionSeconds(); ok {
			resp.Position = pos
		}
	}
	resp.Provider = agg.Active()

	s := mc.Snapshot()
	resp.Polls = s.Polls
	resp.ProviderFails = s.ProviderFails
	return resp
}

// probeDiscord checks whether any well-known endpoint opens.
func probeDiscord() (state string, endpoint int) {
	conn, index, err := ipc.Discover()
	if err != nil || conn == nil {
		return "unreachable", -1
	}
	_ = conn.Close()
	return "reachable", index
}
