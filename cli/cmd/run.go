package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/eternalrp/eternalrp/adapter"
	"github.com/eternalrp/eternalrp/adapter/redis"
	"github.com/eternalrp/eternalrp/adapter/webhook"
	"github.com/eternalrp/eternalrp/cli/config"
	"github.com/eternalrp/eternalrp/cover"
	"github.com/eternalrp/eternalrp/host"
	"github.com/eternalrp/eternalrp/metrics"
	"github.com/eternalrp/eternalrp/presence"
	"github.com/eternalrp/eternalrp/provider"
)

// Exit codes for the run command.
const (
	exitSuccess     = 0
	exitConfigError = 1
	exitRunFailure  = 2
)

// defaultConfigPath is probed when --config is not given.
const defaultConfigPath = "eternalrp.yaml"

// RunCommand returns the run command, the long-lived bridge mode.
func RunCommand() *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "Run the presence bridge (poll players, publish to Discord)",
		Flags: []cli.Flag{
			ConfigFlag,
			ClientIDFlag,
			&cli.StringFlag{
				Name:  "asset-key",
				Usage: "Fallback art asset name (overrides config)",
			},
			&cli.DurationFlag{
				Name:  "poll-interval",
				Usage: "Now-playing poll interval (overrides config)",
			},
			&cli.StringSliceFlag{
				Name:  "provider",
				Usage: "Provider priority order: mpris, mpd, spotify (overrides config)",
			},
		},
		Action: runAction,
	}
}

func runAction(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return cli.Exit(fmt.Sprintf("config: %v", err), exitConfigError)
	}
	applyRunFlags(cfg, c)
	if err := cfg.Validate(); err != nil {
		return cli.Exit(fmt.Sprintf("config: %v", err), exitConfigError)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	mc := metrics.NewCollector()

	resolver, err := buildResolver(ctx, cfg, mc)
	if err != nil {
		return cli.Exit(fmt.Sprintf("cover backend: %v", err), exitConfigError)
	}

	downstream, err := buildAdapter(cfg)
	if err != nil {
		return cli.Exit(fmt.Sprintf("adapter: %v", err), exitConfigError)
	}
	if downstream != nil {
		defer func() { _ = downstream.Close() }()
	}

	engine := presence.NewEngine(presence.EngineConfig{
		Sink:      presence.NewRPCSink(cfg.ClientID),
		AssetKey:  cfg.AssetKey,
		Collector: mc,
	})

	session, err := host.NewSession(host.SessionConfig{
		ClientID:     cfg.ClientID,
		Source:       buildAggregator(cfg, mc),
		Engine:       engine,
		Resolver:     resolver,
		Adapter:      downstream,
		Collector:    mc,
		PollInterval: cfg.PollInterval.Duration,
	})
	if err != nil {
		return cli.Exit(fmt.Sprintf("session: %v", err), exitConfigError)
	}

	if err := session.Run(ctx); err != nil {
		return cli.Exit(fmt.Sprintf("session failed: %v", err), exitRunFailure)
	}
	return cli.Exit("", exitSuccess)
}

// loadConfig reads the config file named by --config, falling back to
// ./eternalrp.yaml when present. No file at all yields an empty config so
// flag-only invocations still work.
func loadConfig(c *cli.Context) (*config.Config, error) {
	path := c.String("config")
	if path == "" {
		if _, err := os.Stat(defaultConfigPath); err == nil {
			path = defaultConfigPath
		}
	}
	if path == "" {
		return &config.Config{}, nil
	}
	return config.Load(path)
}

// applyRunFlags layers CLI flag overrides onto the file config.
func applyRunFlags(cfg *config.Config, c *cli.Context) {
	if v := c.String("client-id"); v != "" {
		cfg.ClientID = v
	}
	if v := c.String("asset-key"); v != "" {
		cfg.AssetKey = v
	}
	if v := c.Duration("poll-interval"); v > 0 {
		cfg.PollInterval.Duration = v
	}
	if v := c.StringSlice("provider"); len(v) > 0 {
		cfg.Providers = v
	}
}

// buildAggregator assembles the provider chain in configured priority order.
func buildAggregator(cfg *config.Config, mc *metrics.Collector) *provider.Aggregator {
	names := cfg.Providers
	if len(names) == 0 {
		names = []string{"mpris", "mpd", "spotify"}
	}

	var providers []provider.Provider
	for _, name := range names {
		switch name {
		case "mpris":
			providers = append(providers, provider.NewMPRIS())
		case "mpd":
			providers = append(providers, provider.NewMPD(
				cfg.MPD.Network, cfg.MPD.Addr, cfg.MPD.Password))
		case "spotify":
			providers = append(providers, provider.NewSpotify(
				cfg.Spotify.ClientID, cfg.Spotify.ClientSecret, cfg.Spotify.RefreshToken))
		}
	}
	return provider.NewAggregator(providers, mc)
}

// buildResolver selects the cover-art backend; nil disables cover hosting.
func buildResolver(ctx context.Context, cfg *config.Config, mc *metrics.Collector) (*cover.Resolver, error) {
	switch cfg.Cover.Backend {
	case "none":
		return nil, nil
	case "", "catbox":
		return cover.NewResolver(cover.NewCatbox(), cfg.Cover.CachePath, mc), nil
	case "s3":
		uploader, err := cover.NewS3(ctx, cover.S3Config{
			Bucket:        cfg.Cover.S3.Bucket,
			Prefix:        cfg.Cover.S3.Prefix,
			Region:        cfg.Cover.S3.Region,
			Endpoint:      cfg.Cover.S3.Endpoint,
			UsePathStyle:  cfg.Cover.S3.PathStyle,
			PublicBaseURL: cfg.Cover.S3.PublicBaseURL,
		})
		if err != nil {
			return nil, err
		}
		return cover.NewResolver(uploader, cfg.Cover.CachePath, mc), nil
	default:
		return nil, fmt.Errorf("unknown cover backend %q", cfg.Cover.Backend)
	}
}

// buildAdapter selects the downstream event adapter; nil disables publishing.
func buildAdapter(cfg *config.Config) (adapter.Adapter, error) {
	retries := func(def int) int {
		if cfg.Adapter.Retries != nil {
			return *cfg.Adapter.Retries
		}
		return def
	}

	switch cfg.Adapter.Type {
	case "":
		return nil, nil
	case "webhook":
		return webhook.New(webhook.Config{
			URL:     cfg.Adapter.URL,
			Headers: cfg.Adapter.Headers,
			Timeout: cfg.Adapter.Timeout.Duration,
			Retries: retries(webhook.DefaultRetries),
		})
	case "redis":
		return redis.New(redis.Config{
			URL:     cfg.Adapter.URL,
			Channel: cfg.Adapter.Channel,
			Timeout: cfg.Adapter.Timeout.Duration,
			Retries: retries(redis.DefaultRetries),
		})
	default:
		return nil, fmt.Errorf("unknown adapter type %q", cfg.Adapter.Type)
	}
}
