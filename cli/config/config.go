package config

import (
	"errors"
	"fmt"
	"time"
)

// Config represents an eternalrp.yaml configuration file.
// All values act as defaults for the run command; CLI flags override them.
type Config struct {
	// ClientID is the application id registered with the presence daemon.
	ClientID string `yaml:"client_id"`
	// AssetKey is the fallback art-asset name when no cover URL resolves.
	AssetKey string `yaml:"asset_key"`
	// PollInterval paces the now-playing poll loop (default 5s).
	PollInterval Duration `yaml:"poll_interval"`
	// Providers is the source priority order; entries are "mpris", "mpd",
	// "spotify". Empty means all available in that order.
	Providers []string `yaml:"providers"`

	MPD     MPDConfig     `yaml:"mpd"`
	Spotify SpotifyConfig `yaml:"spotify"`
	Cover   CoverConfig   `yaml:"cover"`
	Adapter AdapterConfig `yaml:"adapter"`
}

// MPDConfig holds MPD connection defaults.
type MPDConfig struct {
	Network  string `yaml:"network"`
	Addr     string `yaml:"addr"`
	Password string `yaml:"password,omitempty"`
}

// SpotifyConfig holds the Spotify OAuth credentials.
type SpotifyConfig struct {
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	RefreshToken string `yaml:"refresh_token"`
}

// CoverConfig selects the cover-art host.
type CoverConfig struct {
	// Backend is "catbox" (default), "s3", or "none".
	Backend string `yaml:"backend"`
	// CachePath is where the hash-to-URL cache persists; empty keeps the
	// cache in memory only.
	CachePath string   `yaml:"cache_path"`
	S3        S3Config `yaml:"s3"`
}

// S3Config holds the S3 cover host settings.
type S3Config struct {
	Bucket        string `yaml:"bucket"`
	Prefix        string `yaml:"prefix"`
	Region        string `yaml:"region"`
	Endpoint      string `yaml:"endpoint"`
	PathStyle     bool   `yaml:"path_style"`
	PublicBaseURL string `yaml:"public_base_url"`
}

// AdapterConfig holds downstream event adapter defaults.
type AdapterConfig struct {
	// Type is "webhook", "redis", or empty to disable.
	Type    string            `yaml:"type"`
	URL     string            `yaml:"url"`
	Channel string            `yaml:"channel,omitempty"`
	Headers map[string]string `yaml:"headers,omitempty"`
	Timeout Duration          `yaml:"timeout,omitempty"`
	Retries *int              `yaml:"retries,omitempty"`
}

// Duration wraps time.Duration for YAML string parsing (e.g. "10s", "5m").
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses a duration string like "10s" or "5m30s".
func (d *Duration) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	if s == "" {
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	d.Duration = parsed
	return nil
}

// Validate checks the fields the run command cannot proceed without.
func (c *Config) Validate() error {
	if c.ClientID == "" {
		return errors.New("client_id is required")
	}
	switch c.Cover.Backend {
	case "", "catbox", "none":
	case "s3":
		if c.Cover.S3.Bucket == "" {
			return errors.New("cover.s3.bucket is required for the s3 backend")
		}
	default:
		return fmt.Errorf("unknown cover backend %q", c.Cover.Backend)
	}
	switch c.Adapter.Type {
	case "", "webhook", "redis":
	default:
		return fmt.Errorf("unknown adapter type %q", c.Adapter.Type)
	}
	for _, name := range c.Providers {
		switch name {
		case "mpris", "mpd", "spotify":
		default:
			return fmt.Errorf("unknown provider %q", name)
		}
	}
	return nil
}
