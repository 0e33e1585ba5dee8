package provider

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/eternalrp/eternalrp/types"
)

const (
	spotifyTokenURL = "https://accounts.spotify.com/api/token"
	spotifyAPIURL   = "https://api.spotify.com"
)

// Spotify reads now-playing from the Spotify Web API using the OAuth2
// refresh-token flow. The refresh token is obtained out of band (one
// interactive consent); this provider only exchanges it for short-lived
// access tokens.
type Spotify struct {
	clientID     string
	clientSecret string
	refreshToken string
	http         *http.Client
	tokenURL     string
	apiURL       string

	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time

	artMu       sync.Mutex
	lastAlbumID string
	lastCover   []byte
}

// NewSpotify creates the provider. Missing credentials simply make it
// report unavailable; the aggregator falls through to the next source.
func NewSpotify(clientID, clientSecret, refreshToken string) *Spotify {
	return &Spotify{
		clientID:     clientID,
		clientSecret: clientSecret,
		refreshToken: refreshToken,
		http:         &http.Client{Timeout: 10 * time.Second},
		tokenURL:     spotifyTokenURL,
		apiURL:       spotifyAPIURL,
	}
}

func (s *Spotify) Name() string { return "Spotify" }

// IsAvailable reports whether credentials are configured and a token can be
// obtained.
func (s *Spotify) IsAvailable() bool {
	if s.clientID == "" || s.clientSecret == "" || s.refreshToken == "" {
		return false
	}
	_, err := s.token()
	return err == nil
}

// spotifyPlaying is the subset of the currently-playing response consumed
// here. Unknown fields are ignored.
type spotifyPlaying struct {
	IsPlaying  bool  `json:"is_playing"`
	ProgressMs int64 `json:"progress_ms"`
	Item       *struct {
		Name    string `json:"name"`
		Artists []struct {
			Name string `json:"name"`
		} `json:"artists"`
		Album struct {
			ID     string `json:"id"`
			Name   string `json:"name"`
			Images []struct {
				URL string `json:"url"`
			} `json:"images"`
		} `json:"album"`
	} `json:"item"`
}

// GetNowPlaying queries /v1/me/player/currently-playing. No active playback
// (HTTP 204 or an empty item) is (nil, nil), not an error.
func (s *Spotify) GetNowPlaying() (*types.TrackSnapshot, error) {
	if s.refreshToken == "" {
		return nil, nil
	}
	token, err := s.token()
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequest(http.MethodGet, s.apiURL+"/v1/me/player/currently-playing", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := s.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNoContent:
		return nil, nil
	case resp.StatusCode == http.StatusUnauthorized:
		s.invalidateToken()
		return nil, fmt.Errorf("spotify: access token rejected")
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("spotify: currently-playing status %d", resp.StatusCode)
	}

	var playing spotifyPlaying
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&playing); err != nil {
		return nil, fmt.Errorf("spotify: decode response: %w", err)
	}
	if playing.Item == nil {
		return nil, nil
	}

	snap := &types.TrackSnapshot{
		Title:    playing.Item.Name,
		Album:    playing.Item.Album.Name,
		Position: types.IntPtr(int(playing.ProgressMs / 1000)),
		Playing:  playing.IsPlaying,
	}
	if len(playing.Item.Artists) > 0 {
		snap.Artist = playing.Item.Artists[0].Name
	}
	if len(playing.Item.Album.Images) > 0 {
		snap.CoverArt = s.fetchCover(playing.Item.Album.ID, playing.Item.Album.Images[0].URL)
	}
	return snap, nil
}

// fetchCover downloads the album cover once per album id; repeated tracks
// from the same album reuse the cached bytes.
func (s *Spotify) fetchCover(albumID, imageURL string) []byte {
	s.artMu.Lock()
	defer s.artMu.Unlock()
	if albumID != "" && albumID == s.lastAlbumID {
		return s.lastCover
	}
	s.lastAlbumID = albumID
	s.lastCover = nil

	if imageURL == "" {
		return nil
	}
	resp, err := s.http.Get(imageURL)
	if err != nil {
		return nil
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil
	}
	if data, err := io.ReadAll(io.LimitReader(resp.Body, 20<<20)); err == nil {
		s.lastCover = data
	}
	return s.lastCover
}

// token returns a valid access token, exchanging the refresh token when the
// cached one is missing or within a minute of expiry.
func (s *Spotify) token() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.accessToken != "" && time.Until(s.tokenExpiry) > time.Minute {
		return s.accessToken, nil
	}

	form := url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {s.refreshToken},
	}
	req, err := http.NewRequest(http.MethodPost, s.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.SetBasicAuth(s.clientID, s.clientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("spotify: token refresh status %d", resp.StatusCode)
	}

	var tok struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&tok); err != nil {
		return "", fmt.Errorf("spotify: decode token: %w", err)
	}
	if tok.AccessToken == "" {
		return "", fmt.Errorf("spotify: token response missing access_token")
	}
	s.accessToken = tok.AccessToken
	s.tokenExpiry = time.Now().Add(time.Duration(tok.ExpiresIn) * time.Second)
	return s.accessToken, nil
}

func (s *Spotify) invalidateToken() {
	s.mu.Lock()
	s.accessToken = ""
	s.mu.Unlock()
}

var _ Provider = (*Spotify)(nil)
