package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeTemp(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "eternalrp.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write temp config: %v", err)
	}
	return path
}

func assertEqual(t *testing.T, field, got, want string) {
	t.Helper()
	if got != want {
		t.Errorf("%s = %q, want %q", field, got, want)
	}
}

func TestLoad_FullConfig(t *testing.T) {
	yaml := `client_id: "1334509586952425545"
asset_key: apple_music
poll_interval: 5s
providers: [mpris, spotify]

mpd:
  network: tcp
  addr: localhost:6600
  password: hunter2

spotify:
  client_id: spotify-cid
  client_secret: spotify-secret
  refresh_token: spotify-rt

cover:
  backend: s3
  cache_path: /var/lib/eternalrp/covers.msgpack
  s3:
    bucket: covers
    prefix: art
    region: eu-west-1
    endpoint: https://minio.example
    path_style: true
    public_base_url: https://cdn.example

adapter:
  type: webhook
  url: https://hooks.example.com/track
  headers:
    Authorization: Bearer token123
  timeout: 10s
  retries: 3
`
	path := writeTemp(t, yaml)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	assertEqual(t, "client_id", cfg.ClientID, "1334509586952425545")
	assertEqual(t, "asset_key", cfg.AssetKey, "apple_music")
	if cfg.PollInterval.Duration != 5*time.Second {
		t.Errorf("poll_interval = %v, want 5s", cfg.PollInterval.Duration)
	}
	if len(cfg.Providers) != 2 || cfg.Providers[0] != "mpris" || cfg.Providers[1] != "spotify" {
		t.Errorf("providers = %v", cfg.Providers)
	}

	assertEqual(t, "mpd.addr", cfg.MPD.Addr, "localhost:6600")
	assertEqual(t, "mpd.password", cfg.MPD.Password, "hunter2")

	assertEqual(t, "spotify.client_id", cfg.Spotify.ClientID, "spotify-cid")
	assertEqual(t, "spotify.refresh_token", cfg.Spotify.RefreshToken, "spotify-rt")

	assertEqual(t, "cover.backend", cfg.Cover.Backend, "s3")
	assertEqual(t, "cover.cache_path", cfg.Cover.CachePath, "/var/lib/eternalrp/covers.msgpack")
	assertEqual(t, "cover.s3.bucket", cfg.Cover.S3.Bucket, "covers")
	assertEqual(t, "cover.s3.public_base_url", cfg.Cover.S3.PublicBaseURL, "https://cdn.example")
	if !cfg.Cover.S3.PathStyle {
		t.Error("expected cover.s3.path_style=true")
	}

	assertEqual(t, "adapter.type", cfg.Adapter.Type, "webhook")
	assertEqual(t, "adapter.url", cfg.Adapter.URL, "https://hooks.example.com/track")
	if cfg.Adapter.Timeout.Duration != 10*time.Second {
		t.Errorf("adapter.timeout = %v, want 10s", cfg.Adapter.Timeout.Duration)
	}
	if cfg.Adapter.Retries == nil || *cfg.Adapter.Retries != 3 {
		t.Error("expected adapter.retries=3")
	}
	if cfg.Adapter.Headers["Authorization"] != "Bearer token123" {
		t.Error("expected Authorization header")
	}
}

func TestLoad_EmptyConfig(t *testing.T) {
	path := writeTemp(t, "")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.ClientID != "" {
		t.Errorf("expected empty client_id, got %q", cfg.ClientID)
	}
}

func TestLoad_FileNotFound(t *testing.T) {
	_, err := Load("/nonexistent/eternalrp.yaml")
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeTemp(t, "{{invalid yaml")
	_, err := Load(path)
	if err == nil {
		t.Fatal("expected error for invalid YAML")
	}
	if !strings.Contains(err.Error(), "invalid YAML") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestLoad_EnvExpansion(t *testing.T) {
	t.Setenv("ERP_CLIENT_ID", "env-client")
	t.Setenv("SPOTIFY_SECRET", "env-secret")

	yaml := `client_id: ${ERP_CLIENT_ID}
spotify:
  client_secret: ${SPOTIFY_SECRET}
  refresh_token: ${UNSET_RT_12345:-fallback-rt}
`
	cfg, err := Load(writeTemp(t, yaml))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	assertEqual(t, "client_id", cfg.ClientID, "env-client")
	assertEqual(t, "spotify.client_secret", cfg.Spotify.ClientSecret, "env-secret")
	assertEqual(t, "spotify.refresh_token", cfg.Spotify.RefreshToken, "fallback-rt")
}

func TestLoad_InvalidDuration(t *testing.T) {
	path := writeTemp(t, "poll_interval: not-a-duration")
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for invalid duration")
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"missing client id", Config{}, true},
		{"minimal", Config{ClientID: "app"}, false},
		{"s3 without bucket", Config{ClientID: "app", Cover: CoverConfig{Backend: "s3"}}, true},
		{"s3 with bucket", Config{ClientID: "app", Cover: CoverConfig{Backend: "s3", S3: S3Config{Bucket: "b"}}}, false},
		{"unknown cover backend", Config{ClientID: "app", Cover: CoverConfig{Backend: "gopher"}}, true},
		{"unknown adapter", Config{ClientID: "app", Adapter: AdapterConfig{Type: "carrier-pigeon"}}, true},
		{"unknown provider", Config{ClientID: "app", Providers: []string{"winamp"}}, true},
		{"known providers", Config{ClientID: "app", Providers: []string{"mpd", "spotify"}}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.cfg.Validate()
			if (err != nil) != tc.wantErr {
				t.Errorf("Validate() = %v, wantErr %v", err, tc.wantErr)
			}
		})
	}
}
