package presence

import (
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/eternalrp/eternalrp/ipc"
	"github.com/eternalrp/eternalrp/log"
	"github.com/eternalrp/eternalrp/metrics"
	"github.com/eternalrp/eternalrp/types"
)

// Decision thresholds.
const (
	// SeekTolerance is the drift allowed between the anchored start and a
	// freshly computed start before a seek is assumed. Position naturally
	// drifts by the poll interval plus network latency; only a drift
	// STRICTLY greater than this is a seek.
	SeekTolerance = 5 * time.Second
	// StaleAfter forces a republish when nothing else changed, bounding
	// how long the remote display can trail reality.
	StaleAfter = 30 * time.Second
)

// Fallback labels for sources that report empty or junk metadata.
const (
	unknownTitle  = "Unknown"
	unknownArtist = "Unknown Artist"
)

// EngineConfig configures the update decision engine.
type EngineConfig struct {
	// Sink receives the publish/clear calls (required).
	Sink Sink
	// AssetKey is the art-asset name shown when no cover URL resolved.
	AssetKey string
	// Logger defaults to a component logger when nil.
	Logger *log.Logger
	// Collector receives engine counters; nil disables metrics.
	Collector *metrics.Collector
	// Clock overrides time.Now (test seam).
	Clock func() time.Time
}

// Engine holds the per-process presence state and decides, per track
// snapshot, whether and what to push to the remote display.
//
// The locked start anchors the remote countdown: it is recomputed only on a
// track change or a detected seek, so the displayed timer does not jitter
// with every poll tick even though the measured position always drifts.
type Engine struct {
	sink     Sink
	assetKey string
	logger   *log.Logger
	mc       *metrics.Collector
	now      func() time.Time
	partyID  string

	mu             sync.Mutex
	lastTrackKey   string
	lockedStart    int64
	hasLockedStart bool
	lastCoverURL   string
	lastPublished  time.Time
	currentTitle   string
	currentArtist  string
}

// NewEngine creates the engine. One instance exists per process lifetime.
func NewEngine(cfg EngineConfig) *Engine {
	if cfg.Logger == nil {
		cfg.Logger = log.NewLogger("presence.engine")
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.AssetKey == "" {
		cfg.AssetKey = "apple_music"
	}
	return &Engine{
		sink:     cfg.Sink,
		assetKey: cfg.AssetKey,
		logger:   cfg.Logger,
		mc:       cfg.Collector,
		now:      cfg.Clock,
		partyID:  "eternalrp-" + uuid.NewString(),
	}
}

// Update runs one decide-and-apply pass for a snapshot and its resolved
// cover URL. It publishes only when the track changed, a seek was detected,
// the cover changed, or the last publish has gone stale; otherwise the call
// is a no-op and the remote sink is not contacted. Sink failures are logged
// and counted, never propagated: the worst outcome is no update this cycle.
func (e *Engine) Update(snap *types.TrackSnapshot, coverURL string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	title := normalize(snap.Title, unknownTitle)
	artist := normalize(snap.Artist, unknownArtist)
	trackKey := title + "|by " + artist
	now := e.now()

	var computedStart int64
	hasComputed := false
	if pos, ok := snap.PositionSeconds(); ok && pos >= 0 {
		computedStart = now.Unix() - int64(pos)
		hasComputed = true
	}

	trackChanged := trackKey != e.lastTrackKey

	seekDetected := false
	if !trackChanged && e.hasLockedStart && hasComputed {
		drift := computedStart - e.lockedStart
		if drift < 0 {
			drift = -drift
		}
		seekDetected = drift > int64(SeekTolerance/time.Second)
	}

	if trackChanged || seekDetected {
		e.lockedStart = computedStart
		e.hasLockedStart = hasComputed
	}

	coverChanged := coverURL != e.lastCoverURL
	stale := now.Sub(e.lastPublished) >= StaleAfter

	if !(trackChanged || seekDetected || coverChanged || stale) {
		e.mc.IncPublishSkips()
		return false
	}

	if trackChanged {
		e.logger.Info("now playing",
			zap.String("title", title), zap.String("artist", artist))
	}

	pos := -1
	if e.hasLockedStart {
		pos = int(now.Unix() - e.lockedStart)
	}
	activity := &ipc.Activity{
		State:   "by " + artist,
		Details: title,
		Assets: &ipc.Assets{
			LargeImage: e.assetKey,
			LargeText:  title,
		},
		Party:   &ipc.Party{ID: e.partyID, Size: [2]int{1, 2}},
		Secrets: &ipc.Secrets{Join: BuildJoinSecret(title, artist, pos)},
	}
	if coverURL != "" {
		activity.Assets.LargeImage = coverURL
	}
	if snap.Album != "" {
		activity.Assets.LargeText = snap.Album
	}
	if e.hasLockedStart {
		activity.Timestamps = &ipc.Timestamps{Start: e.lockedStart}
	}

	if err := e.sink.Update(activity); err != nil {
		e.mc.IncSinkErrors()
		e.logger.Warn("presence update failed", zap.Error(err))
		return false
	}

	e.lastTrackKey = trackKey
	e.lastCoverURL = coverURL
	e.lastPublished = now
	e.currentTitle = title
	e.currentArtist = artist
	e.mc.IncPublishes()
	return true
}

// Clear resets the track anchor and removes the remote status.
// Idempotent and never panics; the next Update behaves like a fresh start.
func (e *Engine) Clear() {
	e.mu.Lock()
	e.lastTrackKey = ""
	e.hasLockedStart = false
	e.lockedStart = 0
	e.currentTitle = ""
	e.currentArtist = ""
	e.mu.Unlock()

	if err := e.sink.Clear(); err != nil {
		e.mc.IncSinkErrors()
		e.logger.Warn("presence clear failed", zap.Error(err))
		return
	}
	e.mc.IncClearsIssued()
}

// Current returns the most recently published title and artist.
func (e *Engine) Current() (title, artist string, ok bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.currentTitle, e.currentArtist, e.currentTitle != ""
}

// normalize substitutes the fallback when the value is shorter than two
// characters; sources report "" or a single dash while loading.
func normalize(s, fallback string) string {
	if utf8.RuneCountInString(s) < 2 {
		return fallback
	}
	return s
}
