// Package adapter defines the downstream event boundary.
//
// Adapters publish track-change notifications to downstream systems (an
// overlay webhook, a redis channel, ...). The host session owns adapter
// lifecycle; users provide configuration only.
package adapter

import "context"

// TrackChangedEvent is the payload published when the active track changes.
type TrackChangedEvent struct {
	Version   string `json:"version"`
	EventType string `json:"event_type"` // always "track_changed"
	Title     string `json:"title"`
	Artist    string `json:"artist"`
	Album     string `json:"album,omitempty"`
	// Position is the playback position in seconds at publish time;
	// -1 when the source reported none.
	Position int    `json:"position"`
	CoverURL string `json:"cover_url,omitempty"`
	// Provider names the source that produced the snapshot.
	Provider  string `json:"provider"`
	Timestamp string `json:"timestamp"` // ISO 8601
}

// Adapter publishes track-change events to a downstream system.
type Adapter interface {
	// Publish sends a track-change event to the downstream system.
	// Must respect context cancellation and deadlines.
	Publish(ctx context.Context, event *TrackChangedEvent) error

	// Close releases adapter resources.
	Close() error
}
