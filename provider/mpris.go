package provider

import (
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/godbus/dbus/v5"

	"github.com/eternalrp/eternalrp/types"
)

const (
	mprisPrefix = "org.mpris.MediaPlayer2."
	mprisPath   = "/org/mpris/MediaPlayer2"
	playerIface = "org.mpris.MediaPlayer2.Player"
)

// MPRIS reads now-playing from the first media player exposing the
// org.mpris.MediaPlayer2 interface on the session bus.
type MPRIS struct {
	mu   sync.Mutex
	conn *dbus.Conn
	http *http.Client

	artMu      sync.Mutex
	lastArtURL string
	lastArt    []byte
}

// NewMPRIS creates the provider. The bus connection is opened lazily on the
// first call, so construction never fails off a desktop session.
func NewMPRIS() *MPRIS {
	return &MPRIS{http: &http.Client{Timeout: 5 * time.Second}}
}

func (m *MPRIS) Name() string { return "MPRIS" }

// IsAvailable reports whether any MPRIS player is on the bus.
func (m *MPRIS) IsAvailable() bool {
	names, err := m.playerNames()
	return err == nil && len(names) > 0
}

// GetNowPlaying walks the registered players and returns the first one that
// is playing or paused. Stopped players and property errors fall through.
func (m *MPRIS) GetNowPlaying() (*types.TrackSnapshot, error) {
	names, err := m.playerNames()
	if err != nil {
		return nil, err
	}

	conn, err := m.bus()
	if err != nil {
		return nil, err
	}
	for _, name := range names {
		obj := conn.Object(name, mprisPath)

		status, err := obj.GetProperty(playerIface + ".PlaybackStatus")
		if err != nil {
			continue
		}
		state, _ := status.Value().(string)
		if state != "Playing" && state != "Paused" {
			continue
		}

		mdVar, err := obj.GetProperty(playerIface + ".Metadata")
		if err != nil {
			continue
		}
		md, _ := mdVar.Value().(map[string]dbus.Variant)
		if md == nil {
			continue
		}

		snap := &types.TrackSnapshot{
			Title:   variantString(md["xesam:title"]),
			Artist:  firstVariantString(md["xesam:artist"]),
			Album:   variantString(md["xesam:album"]),
			Playing: state == "Playing",
		}
		if posVar, err := obj.GetProperty(playerIface + ".Position"); err == nil {
			if micros, ok := posVar.Value().(int64); ok && micros >= 0 {
				snap.Position = types.IntPtr(int(micros / 1_000_000))
			}
		}
		if artURL := variantString(md["mpris:artUrl"]); artURL != "" {
			snap.CoverArt = m.loadArt(artURL)
		}
		return snap, nil
	}
	return nil, nil
}

func (m *MPRIS) bus() (*dbus.Conn, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.conn != nil {
		return m.conn, nil
	}
	conn, err := dbus.SessionBus()
	if err != nil {
		return nil, err
	}
	m.conn = conn
	return conn, nil
}

func (m *MPRIS) playerNames() ([]string, error) {
	conn, err := m.bus()
	if err != nil {
		return nil, err
	}
	var names []string
	if err := conn.BusObject().Call("org.freedesktop.DBus.ListNames", 0).Store(&names); err != nil {
		return nil, err
	}
	players := names[:0]
	for _, name := range names {
		if strings.HasPrefix(name, mprisPrefix) {
			players = append(players, name)
		}
	}
	return players, nil
}

// loadArt fetches cover bytes from a file:// or http(s) art URL, caching the
// last URL so an unchanged cover is not re-read every poll tick.
func (m *MPRIS) loadArt(artURL string) []byte {
	m.artMu.Lock()
	defer m.artMu.Unlock()
	if artURL == m.lastArtURL {
		return m.lastArt
	}
	m.lastArtURL = artURL
	m.lastArt = nil

	u, err := url.Parse(artURL)
	if err != nil {
		return nil
	}
	switch u.Scheme {
	case "file":
		if data, err := os.ReadFile(u.Path); err == nil {
			m.lastArt = data
		}
	case "http", "https":
		resp, err := m.http.Get(artURL)
		if err != nil {
			return nil
		}
		defer resp.Body.Close()
		if resp.StatusCode == http.StatusOK {
			if data, err := io.ReadAll(io.LimitReader(resp.Body, 20<<20)); err == nil {
				m.lastArt = data
			}
		}
	}
	return m.lastArt
}

func variantString(v dbus.Variant) string {
	s, _ := v.Value().(string)
	return s
}

func firstVariantString(v dbus.Variant) string {
	if list, ok := v.Value().([]string); ok && len(list) > 0 {
		return list[0]
	}
	return variantString(v)
}

var _ Provider = (*MPRIS)(nil)
