package types

// TrackSnapshot is normalized now-playing metadata returned by a provider.
// A snapshot is immutable once returned; every poll produces a fresh one.
type TrackSnapshot struct {
	// Title is the track title. Empty or near-empty titles are normalized
	// to "Unknown" by the presence engine, not here.
	Title string
	// Artist is the primary artist.
	Artist string
	// Album is the album name, empty when the source does not report one.
	Album string
	// Position is the playback position in whole seconds.
	// Nil when the source does not expose a position.
	Position *int
	// CoverArt holds raw cover image bytes when the source exposes them.
	CoverArt []byte
	// Playing reports whether playback is active (as opposed to paused).
	Playing bool
}

// PositionSeconds returns the playback position and whether it is known.
func (t *TrackSnapshot) PositionSeconds() (int, bool) {
	if t.Position == nil {
		return 0, false
	}
	return *t.Position, true
}

// IntPtr is a convenience for building snapshots with a known position.
func IntPtr(v int) *int { return &v }
