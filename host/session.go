// Package host runs the long-lived session: the IPC event listener and the
// fixed-interval poll loop that feeds snapshots through the cover resolver
// and the presence engine.
package host

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/eternalrp/eternalrp/adapter"
	"github.com/eternalrp/eternalrp/cover"
	"github.com/eternalrp/eternalrp/ipc"
	"github.com/eternalrp/eternalrp/log"
	"github.com/eternalrp/eternalrp/metrics"
	"github.com/eternalrp/eternalrp/presence"
	"github.com/eternalrp/eternalrp/types"
)

// DefaultPollInterval paces the now-playing poll loop.
const DefaultPollInterval = 5 * time.Second

// Poller yields track snapshots; satisfied by the provider aggregator.
type Poller interface {
	Poll() *types.TrackSnapshot
	Active() string
}

// SessionConfig wires the session's collaborators.
type SessionConfig struct {
	// ClientID identifies the application to the presence daemon (required).
	ClientID string
	// Source polls track snapshots (required).
	Source Poller
	// Engine decides and publishes presence updates (required).
	Engine *presence.Engine
	// Resolver turns cover bytes into URLs; nil skips cover art.
	Resolver *cover.Resolver
	// Adapter receives track-change events; nil disables publishing.
	Adapter adapter.Adapter
	// OnJoin receives the parsed playback state from a remote join.
	OnJoin func(presence.SyncRequest)
	// Collector receives session counters; nil disables metrics.
	Collector *metrics.Collector
	// Logger defaults to a component logger when nil.
	Logger *log.Logger
	// PollInterval defaults to DefaultPollInterval.
	PollInterval time.Duration
}

// Session owns the two loops for the life of the process. The loops share
// no mutable state; the join callback crosses between them as a detached
// invocation.
type Session struct {
	cfg      SessionConfig
	listener *ipc.Listener
	logger   *log.Logger
	mc       *metrics.Collector

	mu           sync.Mutex
	paused       bool
	pauseCleared bool
	lastTrackKey string
}

// NewSession validates the wiring and builds the session. A missing client
// id or collaborator is a construction error, caught before any loop starts.
func NewSession(cfg SessionConfig) (*Session, error) {
	if cfg.ClientID == "" {
		return nil, errors.New("host: client id is required")
	}
	if cfg.Source == nil || cfg.Engine == nil {
		return nil, errors.New("host: source and engine are required")
	}
	if cfg.Logger == nil {
		cfg.Logger = log.NewLogger("host.session")
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}

	s := &Session{cfg: cfg, logger: cfg.Logger, mc: cfg.Collector}
	listener, err := ipc.NewListener(ipc.ListenerConfig{
		ClientID:  cfg.ClientID,
		OnJoin:    s.handleJoin,
		Collector: cfg.Collector,
	})
	if err != nil {
		return nil, err
	}
	s.listener = listener
	return s, nil
}

// Run starts the listener and blocks in the poll loop until ctx is
// canceled. Shutdown stops both loops and clears the remote status; it is
// bounded by the listener's longest backoff wait.
func (s *Session) Run(ctx context.Context) error {
	s.listener.Start()
	defer s.listener.Stop()
	defer s.cfg.Engine.Clear()

	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	s.logger.Info("session started",
		zap.Duration("poll_interval", s.cfg.PollInterval))

	// Poll immediately rather than waiting out the first tick.
	s.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("session stopping")
			return nil
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

// SetPaused toggles publishing. Entering the paused state issues a single
// Clear; leaving it makes the next poll behave like a fresh start.
func (s *Session) SetPaused(paused bool) {
	s.mu.Lock()
	s.paused = paused
	if !paused {
		s.pauseCleared = false
	}
	s.mu.Unlock()
}

// Paused reports whether publishing is suspended.
func (s *Session) Paused() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.paused
}

// ListenerState exposes the IPC connection state for status reporting.
func (s *Session) ListenerState() ipc.ConnState {
	return s.listener.State()
}

// tick runs one poll cycle: snapshot, cover, engine decision, and the
// track-change event when the track identity moved.
func (s *Session) tick(ctx context.Context) {
	s.mu.Lock()
	paused := s.paused
	cleared := s.pauseCleared
	s.mu.Unlock()

	if paused {
		if !cleared {
			s.cfg.Engine.Clear()
			s.mu.Lock()
			s.pauseCleared = true
			s.lastTrackKey = ""
			s.mu.Unlock()
		}
		return
	}

	snap := s.cfg.Source.Poll()
	if snap == nil {
		s.mu.Lock()
		hadTrack := s.lastTrackKey != ""
		s.lastTrackKey = ""
		s.mu.Unlock()
		if hadTrack {
			s.cfg.Engine.Clear()
		}
		return
	}

	coverURL := ""
	if s.cfg.Resolver != nil && len(snap.CoverArt) > 0 {
		url, err := s.cfg.Resolver.Resolve(ctx, snap.CoverArt)
		if err != nil {
			s.logger.Warn("cover resolve failed", zap.Error(err))
		} else {
			coverURL = url
		}
	}

	s.cfg.Engine.Update(snap, coverURL)

	trackKey := snap.Title + "|" + snap.Artist
	s.mu.Lock()
	changed := trackKey != s.lastTrackKey
	s.lastTrackKey = trackKey
	s.mu.Unlock()
	if changed && s.cfg.Adapter != nil {
		s.publishTrackChange(ctx, snap, coverURL)
	}
}

// publishTrackChange notifies the downstream adapter without stalling the
// poll loop; delivery failures are logged and dropped.
func (s *Session) publishTrackChange(ctx context.Context, snap *types.TrackSnapshot, coverURL string) {
	pos := -1
	if p, ok := snap.PositionSeconds(); ok {
		pos = p
	}
	event := &adapter.TrackChangedEvent{
		Version:   types.Version,
		EventType: "track_changed",
		Title:     snap.Title,
		Artist:    snap.Artist,
		Album:     snap.Album,
		Position:  pos,
		CoverURL:  coverURL,
		Provider:  s.cfg.Source.Active(),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	go func() {
		publishCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
		defer cancel()
		if err := s.cfg.Adapter.Publish(publishCtx, event); err != nil {
			s.logger.Warn("track event publish failed", zap.Error(err))
		}
	}()
}

// handleJoin receives the raw join secret from the IPC listener, already
// off the dispatch path.
func (s *Session) handleJoin(secret string) {
	req := presence.ParseJoinSecret(secret)
	s.logger.Info("remote join",
		zap.String("track", req.Track),
		zap.String("artist", req.Artist),
		zap.Int("position", req.Position))
	if s.cfg.OnJoin != nil {
		s.cfg.OnJoin(req)
	}
}
