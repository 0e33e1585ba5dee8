package provider

import (
	"math"
	"strconv"

	"github.com/fhs/gompd/v2/mpd"

	"github.com/eternalrp/eternalrp/types"
)

// MPD reads now-playing from a Music Player Daemon instance. Each call
// dials a fresh connection; the daemon is local and the poll interval is
// long enough that holding a connection open buys nothing but stale-handle
// handling.
type MPD struct {
	network  string
	addr     string
	password string
}

// NewMPD creates the provider. network/addr follow net.Dial conventions
// ("tcp", "localhost:6600" or "unix", "/run/mpd/socket").
func NewMPD(network, addr, password string) *MPD {
	if network == "" {
		network = "tcp"
	}
	if addr == "" {
		addr = "localhost:6600"
	}
	return &MPD{network: network, addr: addr, password: password}
}

func (m *MPD) Name() string { return "MPD" }

// IsAvailable reports whether the daemon answers at all.
func (m *MPD) IsAvailable() bool {
	client, err := m.dial()
	if err != nil {
		return false
	}
	defer client.Close()
	return client.Ping() == nil
}

// GetNowPlaying returns the current song, or nil when the player is stopped
// or the daemon is unreachable-as-expected (reported as an error so the
// aggregator can fall through).
func (m *MPD) GetNowPlaying() (*types.TrackSnapshot, error) {
	client, err := m.dial()
	if err != nil {
		return nil, err
	}
	defer client.Close()

	status, err := client.Status()
	if err != nil {
		return nil, err
	}
	state := status["state"]
	if state != "play" && state != "pause" {
		return nil, nil
	}

	song, err := client.CurrentSong()
	if err != nil {
		return nil, err
	}

	snap := &types.TrackSnapshot{
		Title:   song["Title"],
		Artist:  song["Artist"],
		Album:   song["Album"],
		Playing: state == "play",
	}
	if elapsed, err := strconv.ParseFloat(status["elapsed"], 64); err == nil && elapsed >= 0 {
		snap.Position = types.IntPtr(int(math.Floor(elapsed)))
	}
	return snap, nil
}

func (m *MPD) dial() (*mpd.Client, error) {
	if m.password != "" {
		return mpd.DialAuthenticated(m.network, m.addr, m.password)
	}
	return mpd.Dial(m.network, m.addr)
}

var _ Provider = (*MPD)(nil)
