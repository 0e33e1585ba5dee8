// Package metrics provides process-lifetime counters for the bridge.
//
// The Collector accumulates counters across both long-running loops. It is a
// leaf package with no internal dependencies. All increment methods are
// nil-receiver safe so call sites never need to guard against an unwired
// collector.
package metrics

import "sync"

// Snapshot is an immutable point-in-time view of all counters.
// Returned by Collector.Snapshot(). Safe to read concurrently after creation.
type Snapshot struct {
	// IPC event listener
	FramesRead       int64
	FramesDiscarded  int64 // malformed or undecodable, dropped without killing the loop
	Reconnects       int64
	HandshakeErrors  int64
	JoinEvents       int64
	JoinRequests     int64
	InvitesSent      int64

	// Presence engine
	Publishes      int64
	PublishSkips   int64
	SinkErrors     int64
	ClearsIssued   int64

	// Provider aggregator
	Polls         int64
	EmptyPolls    int64
	ProviderFails int64

	// Cover resolver
	CoverUploads    int64
	CoverCacheHits  int64

	// Dimensions (informational, set at construction)
	ActiveProvider string
}

// Collector accumulates counters for the life of the process.
// Thread-safe via sync.Mutex.
type Collector struct {
	mu sync.Mutex

	framesRead      int64
	framesDiscarded int64
	reconnects      int64
	handshakeErrors int64
	joinEvents      int64
	joinRequests    int64
	invitesSent     int64

	publishes    int64
	publishSkips int64
	sinkErrors   int64
	clearsIssued int64

	polls         int64
	emptyPolls    int64
	providerFails int64

	coverUploads   int64
	coverCacheHits int64

	activeProvider string
}

// NewCollector creates an empty collector.
func NewCollector() *Collector {
	return &Collector{}
}

func (c *Collector) inc(field *int64) {
	if c == nil {
		return
	}
	c.mu.Lock()
	*field++
	c.mu.Unlock()
}

// IncFramesRead records a successfully decoded inbound frame.
func (c *Collector) IncFramesRead() {
	if c == nil {
		return
	}
	c.inc(&c.framesRead)
}

// IncFramesDiscarded records a malformed or undecodable frame dropped
// without terminating the event loop.
func (c *Collector) IncFramesDiscarded() {
	if c == nil {
		return
	}
	c.inc(&c.framesDiscarded)
}

// IncReconnects records a transition back to the disconnected state.
func (c *Collector) IncReconnects() {
	if c == nil {
		return
	}
	c.inc(&c.reconnects)
}

// IncHandshakeErrors records a failed or timed-out handshake.
func (c *Collector) IncHandshakeErrors() {
	if c == nil {
		return
	}
	c.inc(&c.handshakeErrors)
}

// IncJoinEvents records a received ACTIVITY_JOIN event with a secret.
func (c *Collector) IncJoinEvents() {
	if c == nil {
		return
	}
	c.inc(&c.joinEvents)
}

// IncJoinRequests records a received ACTIVITY_JOIN_REQUEST event.
func (c *Collector) IncJoinRequests() {
	if c == nil {
		return
	}
	c.inc(&c.joinRequests)
}

// IncInvitesSent records an outbound auto-accept invite.
func (c *Collector) IncInvitesSent() {
	if c == nil {
		return
	}
	c.inc(&c.invitesSent)
}

// IncPublishes records a presence update pushed to the sink.
func (c *Collector) IncPublishes() {
	if c == nil {
		return
	}
	c.inc(&c.publishes)
}

// IncPublishSkips records a poll tick where the engine decided not to publish.
func (c *Collector) IncPublishSkips() {
	if c == nil {
		return
	}
	c.inc(&c.publishSkips)
}

// IncSinkErrors records a failed sink update.
func (c *Collector) IncSinkErrors() {
	if c == nil {
		return
	}
	c.inc(&c.sinkErrors)
}

// IncClearsIssued records a presence clear.
func (c *Collector) IncClearsIssued() {
	if c == nil {
		return
	}
	c.inc(&c.clearsIssued)
}

// IncPolls records an aggregator poll.
func (c *Collector) IncPolls() {
	if c == nil {
		return
	}
	c.inc(&c.polls)
}

// IncEmptyPolls records a poll where no provider yielded a snapshot.
func (c *Collector) IncEmptyPolls() {
	if c == nil {
		return
	}
	c.inc(&c.emptyPolls)
}

// IncProviderFails records a provider call that errored and fell through.
func (c *Collector) IncProviderFails() {
	if c == nil {
		return
	}
	c.inc(&c.providerFails)
}

// IncCoverUploads records a cover-art upload.
func (c *Collector) IncCoverUploads() {
	if c == nil {
		return
	}
	c.inc(&c.coverUploads)
}

// IncCoverCacheHits records a cover-art resolution served from cache.
func (c *Collector) IncCoverCacheHits() {
	if c == nil {
		return
	}
	c.inc(&c.coverCacheHits)
}

// SetActiveProvider records the provider that most recently yielded data.
// Empty string means no provider is active.
func (c *Collector) SetActiveProvider(name string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.activeProvider = name
	c.mu.Unlock()
}

// Snapshot returns an immutable view of all counters.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return Snapshot{
		FramesRead:      c.framesRead,
		FramesDiscarded: c.framesDiscarded,
		Reconnects:      c.reconnects,
		HandshakeErrors: c.handshakeErrors,
		JoinEvents:      c.joinEvents,
		JoinRequests:    c.joinRequests,
		InvitesSent:     c.invitesSent,
		Publishes:       c.publishes,
		PublishSkips:    c.publishSkips,
		SinkErrors:      c.sinkErrors,
		ClearsIssued:    c.clearsIssued,
		Polls:           c.polls,
		EmptyPolls:      c.emptyPolls,
		ProviderFails:   c.providerFails,
		CoverUploads:    c.coverUploads,
		CoverCacheHits:  c.coverCacheHits,
		ActiveProvider:  c.activeProvider,
	}
}
